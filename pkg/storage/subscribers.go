package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// AddSubscriber inserts a new enabled subscriber. Emails are stored lower
// case; adding an existing address returns ErrSubscriberExists.
func (d *DB) AddSubscriber(ctx context.Context, email, name string) (Subscriber, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return Subscriber{}, fmt.Errorf("invalid email %q", email)
	}

	res, err := d.sql.ExecContext(ctx, `INSERT INTO subscribers(email, name, enabled) VALUES(?,?,1) ON CONFLICT(email) DO NOTHING`, email, nullIfEmpty(strings.TrimSpace(name)))
	if err != nil {
		return Subscriber{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Subscriber{}, ErrSubscriberExists
	}
	return d.GetSubscriber(ctx, email)
}

func (d *DB) GetSubscriber(ctx context.Context, email string) (Subscriber, error) {
	row := d.sql.QueryRowContext(ctx, "SELECT id, email, name, enabled, created_at FROM subscribers WHERE email = ?", normalizeEmail(email))
	s, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscriber{}, ErrSubscriberNotFound
	}
	return s, err
}

// ListSubscribers returns subscribers ordered by id. With onlyEnabled,
// disabled ones are left out.
func (d *DB) ListSubscribers(ctx context.Context, onlyEnabled bool) ([]Subscriber, error) {
	q := "SELECT id, email, name, enabled, created_at FROM subscribers"
	if onlyEnabled {
		q += " WHERE enabled = 1"
	}
	q += " ORDER BY id"

	rows, err := d.sql.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []Subscriber{}
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (d *DB) SetSubscriberEnabled(ctx context.Context, email string, enabled bool) error {
	res, err := d.sql.ExecContext(ctx, "UPDATE subscribers SET enabled = ? WHERE email = ?", boolToInt(enabled), normalizeEmail(email))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (d *DB) RemoveSubscriber(ctx context.Context, email string) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM subscribers WHERE email = ?", normalizeEmail(email))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscriber(r rowScanner) (Subscriber, error) {
	var (
		s          Subscriber
		name       sql.NullString
		enabled    int
		createdStr string
	)
	if err := r.Scan(&s.ID, &s.Email, &name, &enabled, &createdStr); err != nil {
		return Subscriber{}, err
	}
	s.Name = name.String
	s.Enabled = enabled == 1
	s.CreatedAt = parseTimestamp(createdStr)
	return s, nil
}
