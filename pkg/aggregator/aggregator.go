package aggregator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/metrics"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/google/uuid"
)

// FetchError records why one source contributed nothing.
type FetchError struct {
	Source   string
	Err      error
	Panicked bool
}

func (e *FetchError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("%s: panic: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Outcome is what one source produced in one run. Exactly one of Contests
// and Err is meaningful.
type Outcome struct {
	Source   string
	Contests []contest.Contest
	Err      *FetchError
	Elapsed  time.Duration
}

// SourceReport is the per-source summary kept alongside a Result.
type SourceReport struct {
	Source    string `json:"source"`
	Contests  int    `json:"contests"`
	ElapsedMs int64  `json:"elapsedMs"`
	Error     string `json:"error,omitempty"`
}

// Result is one merged aggregation. It is shared read-only once built.
type Result struct {
	Contests    []contest.Contest `json:"contests"`
	GeneratedAt time.Time         `json:"generatedAt"`
	RunID       string            `json:"runId"`
	Sources     []SourceReport    `json:"sources"`
}

type Options struct {
	Log     platforms.Logger
	Now     func() time.Time
	Metrics *metrics.Metrics
}

// Aggregator fans out to every registered source and merges what comes back.
type Aggregator struct {
	sources []platforms.Source
	log     platforms.Logger
	now     func() time.Time
	metrics *metrics.Metrics
}

func New(sources []platforms.Source, opts Options) *Aggregator {
	a := &Aggregator{
		sources: sources,
		log:     opts.Log,
		now:     opts.Now,
		metrics: opts.Metrics,
	}
	if a.log == nil {
		a.log = platforms.NopLogger()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Sources lists the registered source names in registration order.
func (a *Aggregator) Sources() []string {
	names := make([]string, 0, len(a.sources))
	for _, s := range a.sources {
		names = append(names, s.Name())
	}
	return names
}

// Collect runs every source concurrently and waits for all of them. A
// failing or panicking source never cancels or delays the others. The
// caller's cancellation is not propagated to the sources.
func (a *Aggregator) Collect(ctx context.Context) []Outcome {
	ctx = context.WithoutCancel(ctx)
	outcomes := make([]Outcome, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src platforms.Source) {
			defer wg.Done()
			outcomes[i] = a.run(ctx, src)
		}(i, src)
	}
	wg.Wait()
	return outcomes
}

func (a *Aggregator) run(ctx context.Context, src platforms.Source) (out Outcome) {
	name := src.Name()
	out.Source = name
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out.Contests = nil
			out.Err = &FetchError{Source: name, Err: fmt.Errorf("%v", r), Panicked: true}
		}
		out.Elapsed = time.Since(start)

		if out.Err != nil {
			a.log.Warnf("source %s unavailable: %v", name, out.Err.Err)
			a.metrics.ObserveSource(name, 0, out.Elapsed, out.Err)
			return
		}
		a.log.Debugf("source %s returned %d contests in %s", name, len(out.Contests), out.Elapsed)
		a.metrics.ObserveSource(name, len(out.Contests), out.Elapsed, nil)
	}()

	contests, err := src.FetchContests(ctx)
	if err != nil {
		out.Err = &FetchError{Source: name, Err: err}
		return out
	}
	out.Contests = contests
	return out
}

// Aggregate collects every source and merges the successes. It never fails:
// when every source is down the result is simply empty.
func (a *Aggregator) Aggregate(ctx context.Context) *Result {
	start := time.Now()
	outcomes := a.Collect(ctx)

	res := &Result{
		Contests: Merge(outcomes, a.log),
		RunID:    uuid.NewString(),
		Sources:  make([]SourceReport, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		rep := SourceReport{
			Source:    o.Source,
			Contests:  len(o.Contests),
			ElapsedMs: o.Elapsed.Milliseconds(),
		}
		if o.Err != nil {
			rep.Error = o.Err.Error()
		}
		res.Sources = append(res.Sources, rep)
	}
	res.GeneratedAt = a.now().UTC()

	a.metrics.ObserveAggregate(time.Since(start))
	a.log.Infof("aggregated %d contests from %d sources (run %s)", len(res.Contests), len(outcomes), res.RunID)
	return res
}

// Merge concatenates successful outcomes in order, drops invalid records and
// duplicate IDs (first wins) and sorts by start time, then ID.
func Merge(outcomes []Outcome, log platforms.Logger) []contest.Contest {
	if log == nil {
		log = platforms.NopLogger()
	}

	seen := make(map[string]bool)
	merged := make([]contest.Contest, 0)
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		for _, c := range o.Contests {
			if err := c.Validate(); err != nil {
				log.Warnf("source %s: dropping record: %v", o.Source, err)
				continue
			}
			if seen[c.ID] {
				log.Debugf("source %s: duplicate contest %s", o.Source, c.ID)
				continue
			}
			seen[c.ID] = true
			merged = append(merged, c)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].StartTime.Equal(merged[j].StartTime) {
			return merged[i].StartTime.Before(merged[j].StartTime)
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
