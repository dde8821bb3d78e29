package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/civicdesk/correspondence-backend/internal/apperrors"
	"github.com/civicdesk/correspondence-backend/internal/model"
)

// LockRepositoryInterface is the automation lock: a singleton lease row
// serializing all physical sends. It lives in the database rather than in
// process memory because ownership must survive restarts.
type LockRepositoryInterface interface {
	Acquire(ctx context.Context, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, holder string) error
	Extend(ctx context.Context, holder string) error
	Get(ctx context.Context) (*model.AutomationLock, error)
}

type LockRepository struct {
	DB *sql.DB
}

// Acquire attempts to take the lease. Non-blocking: returns false immediately
// when another holder has it. A holder whose lease is older than ttl is
// considered stale and forcibly displaced in the same conditional update, so
// acquisition is never a read-then-write.
func (r *LockRepository) Acquire(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE automation_lock
        SET is_locked = TRUE, locked_by = $1, locked_at = NOW()
        WHERE id = 1
          AND (is_locked = FALSE OR locked_at < NOW() - ($2 * interval '1 second'))
    `, holder, int(ttl.Seconds()))
	if err != nil {
		return false, fmt.Errorf("acquire automation lock: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// Release frees the lease only if the caller still owns it.
func (r *LockRepository) Release(ctx context.Context, holder string) error {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE automation_lock
        SET is_locked = FALSE, locked_by = '', locked_at = NULL
        WHERE id = 1 AND locked_by = $1
    `, holder)
	if err != nil {
		return fmt.Errorf("release automation lock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewConflict("automation_lock", "not held by "+holder)
	}
	return nil
}

// Extend refreshes the lease timestamp for a long-running drain. Failing to
// extend means the lease was stolen as stale; the holder must stop sending.
func (r *LockRepository) Extend(ctx context.Context, holder string) error {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE automation_lock
        SET locked_at = NOW()
        WHERE id = 1 AND is_locked AND locked_by = $1
    `, holder)
	if err != nil {
		return fmt.Errorf("extend automation lock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewConflict("automation_lock", "lease lost by "+holder)
	}
	return nil
}

func (r *LockRepository) Get(ctx context.Context) (*model.AutomationLock, error) {
	var l model.AutomationLock
	err := r.DB.QueryRowContext(ctx, `
        SELECT is_locked, COALESCE(locked_by, ''), locked_at FROM automation_lock WHERE id = 1
    `).Scan(&l.IsLocked, &l.LockedBy, &l.LockedAt)
	if err != nil {
		return nil, fmt.Errorf("get automation lock: %w", err)
	}
	return &l, nil
}

var _ LockRepositoryInterface = (*LockRepository)(nil)
