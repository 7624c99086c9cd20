package database

import (
	"context"
	"database/sql"
	"fmt"

	"studiobook/internal/calendar"
	"studiobook/internal/interval"
)

type exceptionRow struct {
	Scope    string         `db:"scope"`
	TargetID sql.NullString `db:"target_id"`
	StartAt  int64          `db:"start_at"`
	EndAt    int64          `db:"end_at"`
}

// ListCalendarExceptions returns every exception of the tenant that
// intersects window.
func (db *DB) ListCalendarExceptions(ctx context.Context, tenantID string, window interval.Interval) ([]calendar.Exception, error) {
	ctx, cancel := db.ctx(ctx)
	defer cancel()

	var rows []exceptionRow
	err := db.SelectContext(ctx, &rows, db.Rebind(`
		SELECT scope, target_id, start_at, end_at
		FROM calendar_exceptions
		WHERE tenant_id = ? AND start_at < ? AND end_at > ?
		ORDER BY start_at, id`), tenantID, window.End, window.Start)
	if err != nil {
		return nil, fmt.Errorf("list calendar exceptions: %w", err)
	}

	out := make([]calendar.Exception, 0, len(rows))
	for _, r := range rows {
		out = append(out, calendar.Exception{
			Scope:    calendar.Scope{Kind: calendar.ScopeKind(r.Scope), TargetID: r.TargetID.String},
			Interval: interval.Interval{Start: r.StartAt, End: r.EndAt},
		})
	}
	return out, nil
}
