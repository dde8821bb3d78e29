// Package audit is the sink for triage audit events. The state machine
// treats it as fire-and-forget: a failed audit write never blocks the
// transition, it is logged and counted as a degraded-mode signal.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type Recorder interface {
	RecordAuditEvent(ctx context.Context, action string, actorID uuid.UUID, entityType, entityID string, metadata map[string]interface{}) error
}

type PostgresRecorder struct {
	DB *sql.DB
}

func (r *PostgresRecorder) RecordAuditEvent(ctx context.Context, action string, actorID uuid.UUID, entityType, entityID string, metadata map[string]interface{}) error {
	var metaJSON []byte
	if metadata != nil {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
	}
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO audit_events (id, action, actor_id, entity_type, entity_id, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
    `, uuid.New(), action, actorID, entityType, entityID, metaJSON)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

var _ Recorder = (*PostgresRecorder)(nil)
