package dev

import (
	"context"
	"fmt"
	"time"

	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/platforms"
)

// Poller serves a fixed schedule relative to now, so the server and the
// digest can be exercised without touching any real platform.
type Poller struct {
	opts platforms.Options
}

func NewPoller(opts platforms.Options) *Poller {
	return &Poller{opts: opts.WithDefaults("https://example.com")}
}

func (p *Poller) Name() string { return "dev" }

func (p *Poller) FetchContests(ctx context.Context) ([]contest.Contest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := p.opts.Now().UTC().Truncate(time.Minute)

	schedule := []struct {
		platform contest.Platform
		in       time.Duration
		duration time.Duration
	}{
		{contest.Codeforces, -30 * time.Minute, 2 * time.Hour},
		{contest.LeetCode, 3 * time.Hour, 90 * time.Minute},
		{contest.AtCoder, 20 * time.Hour, 100 * time.Minute},
		{contest.CodeChef, 40 * time.Hour, 3 * time.Hour},
		{contest.HackerRank, 5 * 24 * time.Hour, 24 * time.Hour},
		{contest.SPOJ, 6 * 24 * time.Hour, 0},
	}

	contests := make([]contest.Contest, 0, len(schedule))
	for i, s := range schedule {
		native := fmt.Sprintf("%d", i+1)
		contests = append(contests, contest.Contest{
			ID:            contest.BuildID("dev", native),
			Platform:      s.platform,
			Title:         fmt.Sprintf("%s Sample Round %s", s.platform, native),
			URL:           p.opts.BaseURL + "/contest/" + native,
			StartTime:     now.Add(s.in),
			Duration:      s.duration,
			DurationKnown: s.duration > 0,
		})
	}
	return contest.DropEnded(contests, now), nil
}
