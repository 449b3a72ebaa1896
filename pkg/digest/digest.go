package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/metrics"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/storage"
	"github.com/google/uuid"
)

const DefaultWindow = 24 * time.Hour

const outcomeLogTimeout = 5 * time.Second

// SelectWithinWindow keeps the contests starting in [start, end), in their
// original order.
func SelectWithinWindow(contests []contest.Contest, start, end time.Time) []contest.Contest {
	out := make([]contest.Contest, 0)
	for _, c := range contests {
		if c.StartTime.Before(start) || !c.StartTime.Before(end) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ContestSource supplies the merged contest list.
type ContestSource interface {
	Contests(ctx context.Context) ([]contest.Contest, error)
}

// ContestSourceFunc adapts a function to ContestSource.
type ContestSourceFunc func(ctx context.Context) ([]contest.Contest, error)

func (f ContestSourceFunc) Contests(ctx context.Context) ([]contest.Contest, error) { return f(ctx) }

// Subscribers lists digest recipients. *storage.DB satisfies it.
type Subscribers interface {
	ListSubscribers(ctx context.Context, onlyEnabled bool) ([]storage.Subscriber, error)
}

// OutcomeLog records per-recipient outcomes. *storage.DB satisfies it.
type OutcomeLog interface {
	LogDigestOutcome(ctx context.Context, e storage.DigestLogEntry) error
}

// Sender delivers one digest to one recipient.
type Sender interface {
	SendDigest(ctx context.Context, to storage.Subscriber, contests []contest.Contest) error
}

// Summary is the result of one digest run, as returned by the trigger.
type Summary struct {
	Success       bool     `json:"success"`
	TotalUsers    int      `json:"totalUsers"`
	EmailsSent    int      `json:"emailsSent"`
	EmailsFailed  int      `json:"emailsFailed"`
	EmailsSkipped int      `json:"emailsSkipped"`
	ContestsCount int      `json:"contestsCount"`
	RunID         string   `json:"runId"`
	Errors        []string `json:"errors,omitempty"`
}

// Runner fans one window selection out to every enabled subscriber.
type Runner struct {
	Contests    ContestSource
	Subscribers Subscribers
	Sender      Sender
	OutcomeLog  OutcomeLog // optional
	Window      time.Duration
	Log         platforms.Logger
	Metrics     *metrics.Metrics
}

// Run selects contests starting in [now, now+Window) and sends them to each
// enabled subscriber. A failed send is counted and logged but never stops
// the remaining sends. Recipients are skipped when nothing starts in the
// window. Only failures to read contests or subscribers abort the run.
//
// Once the recipients are known, cancelling ctx no longer affects the run:
// every recipient gets a send attempt and a recorded outcome.
func (r *Runner) Run(ctx context.Context, now time.Time) (Summary, error) {
	log := r.Log
	if log == nil {
		log = platforms.NopLogger()
	}
	window := r.Window
	if window <= 0 {
		window = DefaultWindow
	}
	if r.Contests == nil || r.Subscribers == nil || r.Sender == nil {
		return Summary{}, errors.New("digest runner is not fully configured")
	}

	sum := Summary{RunID: uuid.NewString()}

	all, err := r.Contests.Contests(ctx)
	if err != nil {
		return sum, fmt.Errorf("fetch contests: %w", err)
	}
	selected := SelectWithinWindow(all, now, now.Add(window))
	sum.ContestsCount = len(selected)

	subs, err := r.Subscribers.ListSubscribers(ctx, true)
	if err != nil {
		return sum, fmt.Errorf("list subscribers: %w", err)
	}
	sum.TotalUsers = len(subs)
	log.Infof("digest %s: %d contests in the next %s for %d subscribers", sum.RunID, len(selected), window, len(subs))

	ctx = context.WithoutCancel(ctx)

	for _, sub := range subs {
		entry := storage.DigestLogEntry{
			RunID:         sum.RunID,
			SubscriberID:  sub.ID,
			Email:         sub.Email,
			ContestsCount: len(selected),
		}

		switch {
		case len(selected) == 0:
			entry.Status = storage.StatusSkipped
			sum.EmailsSkipped++
		default:
			if err := r.send(ctx, sub, selected); err != nil {
				entry.Status = storage.StatusFailed
				entry.Error = err.Error()
				sum.EmailsFailed++
				sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", sub.Email, err))
				log.Warnf("digest %s: sending to %s failed: %v", sum.RunID, sub.Email, err)
			} else {
				entry.Status = storage.StatusSent
				sum.EmailsSent++
				log.Debugf("digest %s: sent to %s", sum.RunID, sub.Email)
			}
		}
		r.Metrics.ObserveDigest(entry.Status)

		if r.OutcomeLog != nil {
			entry.OccurredAt = time.Now()
			if err := r.logOutcome(ctx, entry); err != nil {
				log.Warnf("digest %s: could not record outcome for %s: %v", sum.RunID, sub.Email, err)
			}
		}
	}

	sum.Success = true
	log.Infof("digest %s: %d sent, %d failed, %d skipped", sum.RunID, sum.EmailsSent, sum.EmailsFailed, sum.EmailsSkipped)
	return sum, nil
}

func (r *Runner) send(ctx context.Context, to storage.Subscriber, contests []contest.Contest) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sender panicked: %v", rec)
		}
	}()
	return r.Sender.SendDigest(ctx, to, contests)
}

func (r *Runner) logOutcome(ctx context.Context, e storage.DigestLogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, outcomeLogTimeout)
	defer cancel()
	return r.OutcomeLog.LogDigestOutcome(ctx, e)
}

// Subject is the digest mail subject for n contests.
func Subject(n int) string {
	if n == 1 {
		return "🔥 1 Contest Starting Soon!"
	}
	return fmt.Sprintf("🔥 %d Contests Starting Soon!", n)
}
