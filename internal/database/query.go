package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"studiobook/internal/interval"
)

// inFilter renders a membership predicate for column. Postgres binds the ids
// as one array parameter; SQLite expands them through sqlx.In.
func (db *DB) inFilter(column string, ids []string) (string, any) {
	if db.driver == DriverPostgres {
		return column + " = ANY(?)", pq.Array(ids)
	}
	return column + " IN (?)", ids
}

func (db *DB) selectIn(ctx context.Context, dest any, query string, args ...any) error {
	if db.driver != DriverPostgres {
		var err error
		query, args, err = sqlx.In(query, args...)
		if err != nil {
			return fmt.Errorf("expand query: %w", err)
		}
	}
	return db.SelectContext(ctx, dest, db.Rebind(query), args...)
}

// occupiedLiteral selects the occupied range of the reservation aliased as
// alias, rendered as a "[start,end)" literal.
func (db *DB) occupiedLiteral(alias string) string {
	if db.driver == DriverPostgres {
		return alias + ".occupied::text"
	}
	return fmt.Sprintf(
		"'[' || (%[1]s.start_at - %[1]s.buffer_before_min * 60000) || ',' || (%[1]s.end_at + %[1]s.buffer_after_min * 60000) || ')'",
		alias,
	)
}

// occupiedOverlaps restricts alias to reservations whose occupied range
// intersects window.
func (db *DB) occupiedOverlaps(alias string, window interval.Interval) (string, []any) {
	if db.driver == DriverPostgres {
		return alias + ".occupied && int8range(?, ?)", []any{window.Start, window.End}
	}
	return fmt.Sprintf(
		"%[1]s.start_at - %[1]s.buffer_before_min * 60000 < ? AND %[1]s.end_at + %[1]s.buffer_after_min * 60000 > ?",
		alias,
	), []any{window.End, window.Start}
}
