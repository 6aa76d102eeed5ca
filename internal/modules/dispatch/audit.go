// README: Delivery log in Postgres; the sink for delivered and dropped notifications.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"driverbot/internal/types"
)

type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeDropped   Outcome = "dropped"
)

type DeliveryRecord struct {
	OrderID  types.ID
	ChatID   types.ChatID
	Outcome  Outcome
	Attempts int
	Error    string
	At       time.Time
}

// Recorder receives the final outcome of every task.
type Recorder interface {
	RecordDelivery(ctx context.Context, rec DeliveryRecord) error
}

type AuditStore struct {
	db *pgxpool.Pool
}

func NewAuditStore(db *pgxpool.Pool) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) RecordDelivery(ctx context.Context, rec DeliveryRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	var orderID *int64
	if rec.OrderID != 0 {
		v := int64(rec.OrderID)
		orderID = &v
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO dispatch_deliveries (order_id, chat_id, outcome, attempts, error, created_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		orderID, int64(rec.ChatID), string(rec.Outcome), rec.Attempts, rec.Error, rec.At)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// Stats counts outcomes recorded since the given time.
func (s *AuditStore) Stats(ctx context.Context, since time.Time) (map[Outcome]int64, error) {
	rows, err := s.db.Query(ctx, `
SELECT outcome, count(*) FROM dispatch_deliveries
WHERE created_at >= $1
GROUP BY outcome`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[Outcome]int64{OutcomeDelivered: 0, OutcomeDropped: 0}
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		out[Outcome(outcome)] = n
	}
	return out, rows.Err()
}

// ListForOrder returns the delivery log of one order, oldest first.
func (s *AuditStore) ListForOrder(ctx context.Context, orderID types.ID) ([]DeliveryRecord, error) {
	rows, err := s.db.Query(ctx, `
SELECT chat_id, outcome, attempts, COALESCE(error, ''), created_at
FROM dispatch_deliveries WHERE order_id = $1 ORDER BY created_at, id`, int64(orderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DeliveryRecord
	for rows.Next() {
		rec := DeliveryRecord{OrderID: orderID}
		var chatID int64
		var outcome string
		if err := rows.Scan(&chatID, &outcome, &rec.Attempts, &rec.Error, &rec.At); err != nil {
			return nil, err
		}
		rec.ChatID = types.ChatID(chatID)
		rec.Outcome = Outcome(outcome)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *AuditStore) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM dispatch_deliveries WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
