package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action identifies what the administrator did
type Action string

const (
	ActionDepositApprove Action = "deposit.approve"
	ActionDepositReject  Action = "deposit.reject"
	ActionPluginCreate   Action = "plugin.create"
	ActionPluginUpdate   Action = "plugin.update"
	ActionPluginDelete   Action = "plugin.delete"
	ActionSettingsUpdate Action = "settings.update"
)

// Entry is one recorded administrator action
type Entry struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	Action     Action    `json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists audit entries
type Store struct {
	db *sql.DB
}

// NewStore creates a new audit store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record appends one entry to the audit trail
func (s *Store) Record(ctx context.Context, actorID string, action Action, targetType, targetID, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor_id, action, target_type, target_id, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), actorID, action, targetType, targetID, detail, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor_id, action, target_type, target_id, detail, created_at
		 FROM audit_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.TargetType, &e.TargetID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
