package model

import "github.com/google/uuid"

type Constituent struct {
	ID        uuid.UUID `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Postcode  string    `db:"postcode" json:"postcode,omitempty"`
}

func (c Constituent) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

type ContactType string

const (
	ContactEmail   ContactType = "email"
	ContactPhone   ContactType = "phone"
	ContactAddress ContactType = "address"
)

// ConstituentContact is a registered contact point. The primary email contact,
// not the raw message sender address, is the recipient source of truth for
// bulk dispatch.
type ConstituentContact struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	ConstituentID uuid.UUID   `db:"constituent_id" json:"constituent_id"`
	Type          ContactType `db:"contact_type" json:"contact_type"`
	Value         string      `db:"value" json:"value"`
	IsPrimary     bool        `db:"is_primary" json:"is_primary"`
}
