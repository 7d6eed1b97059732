package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id         UUID PRIMARY KEY,
	seq        BIGINT NOT NULL,
	type       TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS notifications_seq_idx ON notifications (seq);
CREATE INDEX IF NOT EXISTS notifications_type_idx ON notifications (type);
`

// StoredNotification is a notification as read back from the journal. The
// payload is kept as raw JSON since its Go type depends on Type.
type StoredNotification struct {
	ID        uuid.UUID               `json:"id"`
	Seq       uint64                  `json:"seq"`
	Type      ledger.NotificationType `json:"type"`
	Data      json.RawMessage         `json:"data"`
	CreatedAt time.Time               `json:"createdAt"`
}

// Repository journals ledger notifications in Postgres
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateSchema creates the journal table if it does not exist
func (r *Repository) CreateSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// InsertNotification appends n to the journal. Re-inserting a notification
// with the same ID is a no-op.
func (r *Repository) InsertNotification(ctx context.Context, n ledger.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to encode notification %s: %w", n.ID, err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (id, seq, type, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, n.ID, int64(n.Seq), string(n.Type), data, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns up to limit notifications with a sequence number
// greater than since, oldest first
func (r *Repository) ListNotifications(ctx context.Context, since uint64, limit int) ([]StoredNotification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, seq, type, data, created_at
		FROM notifications
		WHERE seq > $1
		ORDER BY seq ASC
		LIMIT $2
	`, int64(since), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []StoredNotification
	for rows.Next() {
		var n StoredNotification
		var seq int64
		var typ string
		if err := rows.Scan(&n.ID, &seq, &typ, &n.Data, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Seq = uint64(seq)
		n.Type = ledger.NotificationType(typ)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}
	return out, nil
}

// GetNotification returns the journaled notification with the given ID
func (r *Repository) GetNotification(ctx context.Context, id uuid.UUID) (*StoredNotification, error) {
	var n StoredNotification
	var seq int64
	var typ string
	err := r.pool.QueryRow(ctx, `
		SELECT id, seq, type, data, created_at FROM notifications WHERE id = $1
	`, id).Scan(&n.ID, &seq, &typ, &n.Data, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	n.Seq = uint64(seq)
	n.Type = ledger.NotificationType(typ)
	return &n, nil
}

// LastSequence returns the highest journaled sequence number, or 0
func (r *Repository) LastSequence(ctx context.Context) (uint64, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM notifications`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to get last sequence: %w", err)
	}
	return uint64(seq), nil
}
