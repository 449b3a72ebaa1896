package aggregator

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/platforms/test"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func mk(id string, startIn time.Duration) contest.Contest {
	return contest.Contest{
		ID:            id,
		Platform:      contest.Codeforces,
		Title:         id,
		URL:           "https://example.com/" + id,
		StartTime:     now.Add(startIn),
		Duration:      2 * time.Hour,
		DurationKnown: true,
	}
}

func newAggregator(sources ...platforms.Source) *Aggregator {
	return New(sources, Options{Now: func() time.Time { return now }})
}

func TestAggregateToleratesFailures(t *testing.T) {
	tests := []struct {
		name string
		b    *test.Poller
	}{
		{"network error", &test.Poller{SourceName: "b", Err: errors.New("dial tcp: connection refused")}},
		{"panic", &test.Poller{SourceName: "b", Panic: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &test.Poller{SourceName: "a", Contests: []contest.Contest{mk("a-1", 3*time.Hour), mk("a-2", time.Hour)}}
			c := &test.Poller{SourceName: "c", Contests: []contest.Contest{mk("c-1", 2*time.Hour)}}

			res := newAggregator(a, tt.b, c).Aggregate(context.Background())

			want := []string{"a-2", "c-1", "a-1"}
			if got := test.IDs(res.Contests); !reflect.DeepEqual(got, want) {
				t.Fatalf("ids = %v, want %v", got, want)
			}
			if !res.GeneratedAt.Equal(now) {
				t.Fatalf("generatedAt = %v", res.GeneratedAt)
			}
			if res.RunID == "" {
				t.Fatalf("run id not set")
			}
			if res.Sources[1].Source != "b" || res.Sources[1].Error == "" {
				t.Fatalf("report for b = %+v", res.Sources[1])
			}
		})
	}
}

func TestCollectOutcomes(t *testing.T) {
	cause := errors.New("HTTP 503")
	outcomes := newAggregator(
		&test.Poller{SourceName: "ok", Contests: []contest.Contest{mk("ok-1", time.Hour)}},
		&test.Poller{SourceName: "down", Err: cause},
		&test.Poller{SourceName: "boom", Panic: true},
	).Collect(context.Background())

	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes", len(outcomes))
	}
	if outcomes[0].Err != nil || len(outcomes[0].Contests) != 1 {
		t.Fatalf("ok outcome = %+v", outcomes[0])
	}
	if !errors.Is(outcomes[1].Err, cause) || outcomes[1].Err.Source != "down" {
		t.Fatalf("down outcome = %+v", outcomes[1])
	}
	if outcomes[2].Err == nil || !outcomes[2].Err.Panicked {
		t.Fatalf("boom outcome = %+v", outcomes[2])
	}
}

func TestAggregateRunsSourcesConcurrently(t *testing.T) {
	var sources []platforms.Source
	for _, name := range []string{"s1", "s2", "s3", "s4"} {
		sources = append(sources, &test.Poller{
			SourceName: name,
			Delay:      200 * time.Millisecond,
			Contests:   []contest.Contest{mk(name+"-1", time.Hour)},
		})
	}

	start := time.Now()
	res := newAggregator(sources...).Aggregate(context.Background())
	if elapsed := time.Since(start); elapsed > 700*time.Millisecond {
		t.Fatalf("aggregation took %s, sources are not running concurrently", elapsed)
	}
	if len(res.Contests) != 4 {
		t.Fatalf("got %d contests", len(res.Contests))
	}
}

func TestAggregateIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newAggregator(&test.Poller{
		SourceName: "slow",
		Delay:      20 * time.Millisecond,
		Contests:   []contest.Contest{mk("slow-1", time.Hour)},
	}).Aggregate(ctx)

	if len(res.Contests) != 1 {
		t.Fatalf("cancelled caller should not starve sources, got %d contests", len(res.Contests))
	}
}

func TestAggregateAllEmpty(t *testing.T) {
	res := newAggregator(
		&test.Poller{SourceName: "a", Err: errors.New("down")},
		&test.Poller{SourceName: "b"},
	).Aggregate(context.Background())

	if res == nil || res.Contests == nil || len(res.Contests) != 0 {
		t.Fatalf("want empty non-nil contests, got %#v", res)
	}
}

func TestMergeDedupesAndOrders(t *testing.T) {
	dup := mk("x-1", time.Hour)
	dup.Title = "second copy"
	invalid := mk("", time.Hour)

	outcomes := []Outcome{
		{Source: "x", Contests: []contest.Contest{mk("x-1", time.Hour), mk("x-2", time.Hour)}},
		{Source: "y", Contests: []contest.Contest{dup, invalid, mk("y-1", 30*time.Minute)}},
		{Source: "z", Contests: []contest.Contest{mk("z-1", 0)}, Err: &FetchError{Source: "z", Err: errors.New("x")}},
	}

	merged := Merge(outcomes, nil)
	want := []string{"y-1", "x-1", "x-2"}
	if got := test.IDs(merged); !reflect.DeepEqual(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	if merged[1].Title != "x-1" {
		t.Fatalf("first occurrence should win, got %q", merged[1].Title)
	}

	seen := map[string]bool{}
	for _, c := range merged {
		if seen[c.ID] {
			t.Fatalf("duplicate id %s", c.ID)
		}
		seen[c.ID] = true
	}

	if again := Merge(outcomes, nil); !reflect.DeepEqual(test.IDs(again), want) {
		t.Fatalf("merge is not deterministic: %v", test.IDs(again))
	}
}
