package model

import "time"

// AutomationLock is the singleton lease row guarding the single outbound
// transport. Ownership is a random holder token so that a restarted process
// cannot release a lock it no longer holds.
type AutomationLock struct {
	IsLocked bool       `db:"is_locked" json:"is_locked"`
	LockedBy string     `db:"locked_by" json:"locked_by,omitempty"`
	LockedAt *time.Time `db:"locked_at" json:"locked_at,omitempty"`
}
