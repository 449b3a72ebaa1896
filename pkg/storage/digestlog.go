package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LogDigestOutcome appends one recipient outcome. A zero OccurredAt means now.
func (d *DB) LogDigestOutcome(ctx context.Context, e DigestLogEntry) error {
	switch e.Status {
	case StatusSent, StatusFailed, StatusSkipped:
	default:
		return fmt.Errorf("invalid digest status %q", e.Status)
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	var subscriberID interface{}
	if e.SubscriberID != 0 {
		subscriberID = e.SubscriberID
	}
	_, err := d.sql.ExecContext(ctx, `INSERT INTO digest_log(run_id, subscriber_id, email, status, error, contests_count, occurred_at) VALUES(?,?,?,?,?,?,?)`,
		e.RunID, subscriberID, e.Email, e.Status, nullIfEmpty(e.Error), e.ContestsCount, formatTimestamp(e.OccurredAt))
	return err
}

// ListDigestLog returns the most recent N outcomes, newest first. A non-empty
// runID restricts the listing to that run.
func (d *DB) ListDigestLog(ctx context.Context, runID string, limit int) ([]DigestLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT id, run_id, subscriber_id, email, status, error, contests_count, occurred_at FROM digest_log"
	args := []interface{}{}
	if runID != "" {
		q += " WHERE run_id = ?"
		args = append(args, runID)
	}
	q += " ORDER BY occurred_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []DigestLogEntry{}
	for rows.Next() {
		var (
			e           DigestLogEntry
			subscriber  sql.NullInt64
			errText     sql.NullString
			occurredStr string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &subscriber, &e.Email, &e.Status, &errText, &e.ContestsCount, &occurredStr); err != nil {
			return nil, err
		}
		e.SubscriberID = subscriber.Int64
		e.Error = errText.String
		e.OccurredAt = parseTimestamp(occurredStr)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
