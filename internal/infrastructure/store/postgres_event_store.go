package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/ec-backoffice/internal/event"
)

// PostgresEventLog stores published events in PostgreSQL
type PostgresEventLog struct {
	db *sql.DB
}

func NewPostgresEventLog(db *sql.DB) *PostgresEventLog {
	return &PostgresEventLog{db: db}
}

// Append inserts an event; replays of the same event id are ignored
func (l *PostgresEventLog) Append(ctx context.Context, e event.Envelope) (bool, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO events (id, aggregate_id, aggregate_type, event_type, data, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID,
		e.AggregateID,
		e.AggregateType,
		e.EventType,
		[]byte(e.Data),
		e.Version,
		e.Timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("append event %s: %w", e.ID, translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append event %s: %w", e.ID, err)
	}
	return n == 1, nil
}

// ListByAggregate returns all events for an aggregate from PostgreSQL
func (l *PostgresEventLog) ListByAggregate(ctx context.Context, aggregateID string) ([]event.Envelope, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, aggregate_id, aggregate_type, event_type, data, version, created_at
		 FROM events
		 WHERE aggregate_id = $1
		 ORDER BY created_at ASC, version ASC`,
		aggregateID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", aggregateID, err)
	}
	defer rows.Close()

	var events []event.Envelope
	for rows.Next() {
		var e event.Envelope
		var data []byte
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &data, &e.Version, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Data = data
		events = append(events, e)
	}
	return events, rows.Err()
}
