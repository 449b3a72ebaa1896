package storage

import "time"

// Digest delivery outcomes as stored in digest_log.status.
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Subscriber is one digest recipient.
type Subscriber struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// DigestLogEntry records what happened to one recipient in one digest run.
type DigestLogEntry struct {
	ID            int64
	RunID         string
	SubscriberID  int64
	Email         string
	Status        string // sent | failed | skipped
	Error         string
	ContestsCount int
	OccurredAt    time.Time
}
