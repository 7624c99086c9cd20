package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studiobook/internal/events"
)

type eventRow struct {
	TenantID      string         `db:"tenant_id"`
	ReservationID sql.NullString `db:"reservation_id"`
	Type          string         `db:"type"`
	Payload       sql.NullString `db:"payload"`
	CreatedAt     int64          `db:"created_at"`
}

// RecordEvent appends a reservation event to the audit trail. Its signature
// matches events.EventHandler so it can be subscribed directly.
func (db *DB) RecordEvent(event events.Event) error {
	ctx, cancel := db.ctx(context.Background())
	defer cancel()

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := db.ExecContext(ctx, db.Rebind(`
		INSERT INTO reservation_events (tenant_id, reservation_id, type, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		event.TenantID, nullString(event.ReservationID), event.Type, nullString(string(event.Payload)), createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record %s event: %w", event.Type, err)
	}
	return nil
}

// ListEvents returns the audit trail of one reservation, oldest first.
func (db *DB) ListEvents(ctx context.Context, tenantID, reservationID string) ([]events.Event, error) {
	ctx, cancel := db.ctx(ctx)
	defer cancel()

	var rows []eventRow
	err := db.SelectContext(ctx, &rows, db.Rebind(`
		SELECT tenant_id, reservation_id, type, payload, created_at
		FROM reservation_events
		WHERE tenant_id = ? AND reservation_id = ?
		ORDER BY id`), tenantID, reservationID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	out := make([]events.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, events.Event{
			Type:          r.Type,
			TenantID:      r.TenantID,
			ReservationID: r.ReservationID.String,
			Payload:       []byte(r.Payload.String),
			CreatedAt:     time.UnixMilli(r.CreatedAt),
		})
	}
	return out, nil
}
