package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// AuditRepository appends webhook event log rows. Rows are never mutated.
type AuditRepository interface {
	Insert(ctx context.Context, entry *EventLog) error
}

type auditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates the audit log repository
func NewAuditRepository(db *sqlx.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Insert(ctx context.Context, entry *EventLog) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	payload := entry.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO webhook_events (id, stripe_event_id, event_type, processed, error_message, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`,
		entry.ID,
		entry.StripeEventID,
		entry.EventType,
		entry.Processed,
		entry.ErrorMessage,
		[]byte(payload),
	)
	if err != nil {
		return fmt.Errorf("insert webhook event log: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
