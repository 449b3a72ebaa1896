package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dsaquest/contestscope/internal/utils"
	"github.com/dsaquest/contestscope/pkg/aggregator"
	"github.com/dsaquest/contestscope/pkg/cache"
	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/digest"
	"github.com/dsaquest/contestscope/pkg/metrics"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/platforms/test"
	"github.com/dsaquest/contestscope/pkg/ranking"
	"github.com/dsaquest/contestscope/pkg/storage"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

const secret = "s3cret"

func mk(id, platform string, startIn time.Duration) contest.Contest {
	return contest.Contest{
		ID:            id,
		Platform:      platform,
		Title:         "Contest " + id,
		URL:           "https://example.com/" + id,
		StartTime:     now.Add(startIn),
		Duration:      2 * time.Hour,
		DurationKnown: true,
	}
}

type subscriberList []storage.Subscriber

func (l subscriberList) ListSubscribers(context.Context, bool) ([]storage.Subscriber, error) {
	return l, nil
}

type countingSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *countingSender) SendDigest(_ context.Context, to storage.Subscriber, _ []contest.Contest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to.Email)
	return nil
}

type fixture struct {
	srv    *httptest.Server
	loads  *int64
	sender *countingSender
	cfg    *Config
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	sources := []platforms.Source{
		&test.Poller{SourceName: "codeforces", Contests: []contest.Contest{mk("codeforces-1", contest.Codeforces, 30*time.Hour)}},
		&test.Poller{SourceName: "spoj", Contests: []contest.Contest{mk("spoj-1", contest.SPOJ, 2*time.Hour)}},
		&test.Poller{SourceName: "codechef", Contests: []contest.Contest{mk("codechef-1", contest.CodeChef, 50*time.Hour)}},
		&test.Poller{SourceName: "clist", Contests: []contest.Contest{
			mk("clist-codesignal", contest.CodeSignal, 84*time.Hour),
			mk("hackerrank-1", contest.HackerRank, 96*time.Hour),
		}},
		&test.Poller{SourceName: "atcoder", Err: errors.New("upstream down")},
	}
	clock := func() time.Time { return now }
	m := metrics.New()
	agg := aggregator.New(sources, aggregator.Options{Now: clock, Metrics: m})

	var loads int64
	load := func(ctx context.Context) (*aggregator.Result, error) {
		atomic.AddInt64(&loads, 1)
		return agg.Aggregate(ctx), nil
	}
	c := cache.New(10*time.Minute, cache.Options{Now: clock, Metrics: m})

	sender := &countingSender{}
	cfg := Config{
		Cache:   c,
		Load:    load,
		Ranking: ranking.DefaultTable(),
		Digest: &digest.Runner{
			Contests: digest.ContestSourceFunc(func(ctx context.Context) ([]contest.Contest, error) {
				res, _, err := c.GetOrLoad(ctx, load)
				if err != nil {
					return nil, err
				}
				return res.Contests, nil
			}),
			Subscribers: subscriberList{
				{ID: 1, Email: "a@example.com", Enabled: true},
				{ID: 2, Email: "b@example.com", Enabled: true},
			},
			Sender: sender,
		},
		DigestSecret: secret,
		Metrics:      m,
		Now:          clock,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv := httptest.NewServer(New(cfg).Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, loads: &loads, sender: sender, cfg: &cfg}
}

func (f *fixture) do(t *testing.T, method, path, auth string, out interface{}) int {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

type envelope struct {
	Success     bool              `json:"success"`
	Contests    []contest.Contest `json:"contests"`
	LastUpdated string            `json:"lastUpdated"`
	Cached      bool              `json:"cached"`
	Error       string            `json:"error"`
}

func ids(contests []contest.Contest) []string {
	return test.IDs(contests)
}

func TestContestsServedFromCache(t *testing.T) {
	f := newFixture(t, nil)

	var first envelope
	if code := f.do(t, "GET", "/api/contests", "", &first); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !first.Success || first.Cached {
		t.Fatalf("first = %+v", first)
	}
	if first.LastUpdated != "2026-06-01T00:00:00Z" {
		t.Fatalf("lastUpdated = %q", first.LastUpdated)
	}
	want := []string{"spoj-1", "codeforces-1", "codechef-1", "clist-codesignal", "hackerrank-1"}
	if !reflect.DeepEqual(ids(first.Contests), want) {
		t.Fatalf("contests = %v, want %v", ids(first.Contests), want)
	}

	var second envelope
	f.do(t, "GET", "/api/contests", "", &second)
	if !second.Cached || !reflect.DeepEqual(ids(second.Contests), want) {
		t.Fatalf("second = %+v", second)
	}
	if got := atomic.LoadInt64(f.loads); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

func TestContestsFailureEnvelope(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Load = func(context.Context) (*aggregator.Result, error) {
			panic("merge exploded")
		}
	})

	var body envelope
	if code := f.do(t, "GET", "/api/contests", "", &body); code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", code)
	}
	if body.Success || body.Error == "" {
		t.Fatalf("body = %+v", body)
	}
}

func TestRankedContests(t *testing.T) {
	f := newFixture(t, nil)

	var body envelope
	if code := f.do(t, "GET", "/api/contests/ranked", "", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	want := []string{"spoj-1", "codeforces-1", "codechef-1", "hackerrank-1", "clist-codesignal"}
	if !reflect.DeepEqual(ids(body.Contests), want) {
		t.Fatalf("ranked = %v, want %v", ids(body.Contests), want)
	}
}

func TestUpcomingContests(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		query    string
		wantCode int
		wantIDs  []string
	}{
		{"", http.StatusOK, []string{"spoj-1"}},
		{"?hours=48", http.StatusOK, []string{"spoj-1", "codeforces-1"}},
		{"?hours=0", http.StatusBadRequest, nil},
		{"?hours=abc", http.StatusBadRequest, nil},
		{"?hours=100000", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		var body envelope
		code := f.do(t, "GET", "/api/contests/upcoming"+tt.query, "", &body)
		if code != tt.wantCode {
			t.Fatalf("%q: status = %d, want %d", tt.query, code, tt.wantCode)
		}
		if tt.wantCode == http.StatusOK && !reflect.DeepEqual(ids(body.Contests), tt.wantIDs) {
			t.Fatalf("%q: contests = %v, want %v", tt.query, ids(body.Contests), tt.wantIDs)
		}
		if tt.wantCode != http.StatusOK && (body.Success || body.Error == "") {
			t.Fatalf("%q: body = %+v", tt.query, body)
		}
	}
}

func TestSourcesReport(t *testing.T) {
	f := newFixture(t, nil)

	var before struct {
		Sources []aggregator.SourceReport `json:"sources"`
	}
	f.do(t, "GET", "/api/sources", "", &before)
	if len(before.Sources) != 0 || atomic.LoadInt64(f.loads) != 0 {
		t.Fatalf("sources endpoint triggered a fetch")
	}

	f.do(t, "GET", "/api/contests", "", nil)

	var after struct {
		Sources []aggregator.SourceReport `json:"sources"`
	}
	f.do(t, "GET", "/api/sources", "", &after)
	if len(after.Sources) != 5 {
		t.Fatalf("sources = %+v", after.Sources)
	}
	for _, r := range after.Sources {
		if r.Source == "atcoder" && r.Error == "" {
			t.Fatalf("atcoder failure not reported: %+v", r)
		}
	}
}

func TestSendDigestRequiresSecret(t *testing.T) {
	f := newFixture(t, nil)

	for _, auth := range []string{"", "Bearer wrong", "Basic " + secret, secret} {
		var body envelope
		if code := f.do(t, "POST", "/api/cron/send-digest", auth, &body); code != http.StatusUnauthorized {
			t.Fatalf("auth %q: status = %d, want 401", auth, code)
		}
		if body.Success {
			t.Fatalf("auth %q: body = %+v", auth, body)
		}
	}
	if got := atomic.LoadInt64(f.loads); got != 0 {
		t.Fatalf("unauthorized trigger aggregated %d times", got)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("unauthorized trigger sent %v", f.sender.sent)
	}
}

func TestSendDigest(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.DigestLockPath = filepath.Join(t.TempDir(), "contestscope.sqlite")
	})

	for _, method := range []string{"GET", "POST"} {
		var sum digest.Summary
		if code := f.do(t, method, "/api/cron/send-digest", "Bearer "+secret, &sum); code != http.StatusOK {
			t.Fatalf("%s: status = %d", method, code)
		}
		if !sum.Success || sum.TotalUsers != 2 || sum.EmailsSent != 2 || sum.ContestsCount != 1 {
			t.Fatalf("%s: summary = %+v", method, sum)
		}
	}
	if got := atomic.LoadInt64(f.loads); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

type slowSender struct {
	mu     sync.Mutex
	sent   []string
	failed []string
}

func (s *slowSender) SendDigest(ctx context.Context, to storage.Subscriber, _ []contest.Contest) error {
	time.Sleep(40 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		s.failed = append(s.failed, to.Email)
		return err
	}
	s.sent = append(s.sent, to.Email)
	return nil
}

func (s *slowSender) attempts() (sent, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent), len(s.failed)
}

func TestSendDigestOutlivesCaller(t *testing.T) {
	sender := &slowSender{}
	f := newFixture(t, func(cfg *Config) {
		cfg.Digest.Sender = sender
	})

	req, err := http.NewRequest("POST", f.srv.URL+"/api/cron/send-digest", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+secret)
	client := &http.Client{Timeout: 60 * time.Millisecond}
	if resp, err := client.Do(req); err == nil {
		resp.Body.Close()
		t.Fatalf("request finished before the client gave up")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		sent, failed := sender.attempts()
		if failed != 0 {
			t.Fatalf("%d sends failed after the caller went away", failed)
		}
		if sent == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sent %d of 2 digests", sent)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSendDigestBusy(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "contestscope.sqlite")
	f := newFixture(t, func(cfg *Config) {
		cfg.DigestLockPath = dbPath
	})

	held, err := utils.NewRunLock(dbPath)
	if err != nil {
		t.Fatalf("NewRunLock: %v", err)
	}
	if err := held.TryLock(); err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	defer held.Unlock()

	if code := f.do(t, "POST", "/api/cron/send-digest", "Bearer "+secret, nil); code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", code)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("busy trigger sent %v", f.sender.sent)
	}
}

func TestSendDigestNotConfigured(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.DigestSecret = ""
	})
	if code := f.do(t, "POST", "/api/cron/send-digest", "Bearer ", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)

	if code := f.do(t, "GET", "/healthz", "", nil); code != http.StatusOK {
		t.Fatalf("healthz status = %d", code)
	}
	f.do(t, "GET", "/api/contests", "", nil)

	resp, err := http.Get(f.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
}
