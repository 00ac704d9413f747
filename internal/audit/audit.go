// Package audit records administrative and response actions for later
// review. Entries here are keyed to the single operator account and to the
// automated actions the swarm itself takes.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/iff-guardian/nanoguard/pkg/database"
)

// Entry is one recorded audit event.
type Entry struct {
	ID         uuid.UUID
	OperatorID *uuid.UUID
	Action     string
	Resource   string
	Details    map[string]any
	IPAddress  string
	UserAgent  string
	Success    bool
	ErrorMsg   string
	CreatedAt  time.Time
}

// Sink persists audit entries. Record is called synchronously, once per
// forwarded action, from the gateway's background forwardActionsToAudit loop.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// NoopSink discards every entry. It is the default when no database is
// configured, keeping the audit trail optional since multi-tenant compliance
// tooling is out of scope for a single-operator deployment.
type NoopSink struct{}

// Record implements Sink by discarding entry.
func (NoopSink) Record(ctx context.Context, entry Entry) error { return nil }

// PostgresSink persists entries to the audit_log table.
type PostgresSink struct {
	db *database.DB
}

// NewPostgresSink wraps db as a Sink.
func NewPostgresSink(db *database.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

const insertAuditLog = `
INSERT INTO audit_log (id, operator_id, action, resource, details, ip_address, user_agent, success, error_message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// Record inserts entry into the audit_log table, stamping an ID and
// timestamp if not already set.
func (s *PostgresSink) Record(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, insertAuditLog,
		entry.ID, entry.OperatorID, entry.Action, entry.Resource, details,
		entry.IPAddress, entry.UserAgent, entry.Success, entry.ErrorMsg, entry.CreatedAt,
	)
	return err
}
