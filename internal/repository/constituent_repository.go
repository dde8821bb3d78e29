package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/civicdesk/correspondence-backend/internal/model"
)

// ConstituentRepositoryInterface is read-only by design: this pipeline never
// creates or mutates constituent records. Creation is a separate explicit
// action outside the triage core.
type ConstituentRepositoryInterface interface {
	FindByEmail(ctx context.Context, email string) (*model.Constituent, error)
}

type ConstituentRepository struct {
	DB *sql.DB
}

// FindByEmail resolves a sender address to a constituent via an exact
// (case-insensitive) match on registered email contacts. Returns nil when no
// contact matches.
func (r *ConstituentRepository) FindByEmail(ctx context.Context, email string) (*model.Constituent, error) {
	var c model.Constituent
	err := r.DB.QueryRowContext(ctx, `
        SELECT c.id, c.first_name, c.last_name, COALESCE(c.postcode, '')
        FROM constituents c
        JOIN constituent_contacts cc ON cc.constituent_id = c.id
        WHERE cc.contact_type = 'email' AND LOWER(cc.value) = LOWER($1)
        LIMIT 1
    `, email).Scan(&c.ID, &c.FirstName, &c.LastName, &c.Postcode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find constituent by email: %w", err)
	}
	return &c, nil
}

var _ ConstituentRepositoryInterface = (*ConstituentRepository)(nil)
