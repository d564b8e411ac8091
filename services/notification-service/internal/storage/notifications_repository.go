package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/services/notification-service/internal/inbox"
)

var ErrNotFound = errors.New("notification not found")

const (
	DeliveryInApp  = "in_app"
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type Notification struct {
	ID             string
	EventID        string
	RecipientKind  string
	RecipientID    string
	Type           string
	Message        string
	AppointmentID  string
	DeliveryStatus string
	DeliveryError  string
	ReadAt         *time.Time
	CreatedAt      time.Time
}

type ListFilter struct {
	RecipientID string
	// RecipientKind narrows the list when ids could collide across kinds.
	RecipientKind string
	UnreadOnly    bool
	Limit         int
}

type Repository struct {
	pool  *db.Pool
	inbox *inbox.Repository
}

func NewRepository(pool *db.Pool, inboxRepo *inbox.Repository) *Repository {
	return &Repository{pool: pool, inbox: inboxRepo}
}

// Save claims n.EventID in the inbox and inserts n in one transaction. A
// replayed event reports duplicate and writes nothing.
func (r *Repository) Save(ctx context.Context, eventType string, n Notification) (saved Notification, duplicate bool, err error) {
	err = r.pool.InTx(ctx, func(tx pgx.Tx) error {
		fresh, err := r.inbox.Record(ctx, tx, n.EventID, eventType)
		if err != nil {
			return err
		}
		if !fresh {
			duplicate = true
			return nil
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO notifications (event_id, recipient_kind, recipient_id, type, message, appointment_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+columns,
			n.EventID, n.RecipientKind, n.RecipientID, n.Type, n.Message, n.AppointmentID)
		saved, err = scan(row)
		return err
	})
	if err != nil {
		return Notification{}, false, err
	}
	return saved, duplicate, nil
}

func (r *Repository) SetDelivery(ctx context.Context, id, status, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications SET delivery_status = $2, delivery_error = $3 WHERE id = $1
	`, id, status, reason)
	return err
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]Notification, error) {
	args := []any{f.RecipientID}
	sql := `SELECT ` + columns + ` FROM notifications WHERE recipient_id = $1`
	if f.RecipientKind != "" {
		args = append(args, f.RecipientKind)
		sql += fmt.Sprintf(` AND recipient_kind = $%d`, len(args))
	}
	if f.UnreadOnly {
		sql += ` AND read_at IS NULL`
	}
	args = append(args, ClampLimit(f.Limit))
	sql += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Notification, 0)
	for rows.Next() {
		n, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead sets read_at once; marking an already read notification keeps the
// first timestamp. Only the recipient, matched on kind and id, may mark it.
func (r *Repository) MarkRead(ctx context.Context, id, recipientKind, recipientID string) (Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Notification{}, ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE notifications
		SET read_at = COALESCE(read_at, now())
		WHERE id = $1 AND recipient_kind = $2 AND recipient_id = $3
		RETURNING `+columns, id, recipientKind, recipientID)
	n, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Notification{}, ErrNotFound
	}
	return n, err
}

func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > MaxListLimit:
		return MaxListLimit
	default:
		return n
	}
}

const columns = `id::text, event_id, recipient_kind, recipient_id, type, message, appointment_id,
	delivery_status, delivery_error, read_at, created_at`

func scan(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.EventID, &n.RecipientKind, &n.RecipientID, &n.Type, &n.Message, &n.AppointmentID,
		&n.DeliveryStatus, &n.DeliveryError, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		return Notification{}, err
	}
	return n, nil
}
