package dev

import (
	"context"
	"testing"
	"time"

	"github.com/dsaquest/contestscope/pkg/platforms"
)

func TestFetchContests(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	p := NewPoller(platforms.Options{Now: func() time.Time { return now }})

	contests, err := p.FetchContests(context.Background())
	if err != nil {
		t.Fatalf("FetchContests: %v", err)
	}
	if len(contests) != 6 {
		t.Fatalf("got %d contests, want 6", len(contests))
	}
	if !contests[0].IsLive(now) {
		t.Fatalf("first contest should be live: %+v", contests[0])
	}
	for _, c := range contests {
		if err := c.Validate(); err != nil {
			t.Fatalf("invalid contest: %v", err)
		}
	}
	if last := contests[len(contests)-1]; last.DurationKnown {
		t.Fatalf("last contest should have an unknown duration")
	}
}
