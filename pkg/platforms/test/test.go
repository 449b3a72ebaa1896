package test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/whttp"
)

// Poller is a canned Source. It can fail, panic or stall to exercise the
// aggregator's fault isolation.
type Poller struct {
	SourceName string
	Contests   []contest.Contest
	Err        error
	Panic      bool
	Delay      time.Duration
}

func (p *Poller) Name() string { return p.SourceName }

func (p *Poller) FetchContests(ctx context.Context) ([]contest.Contest, error) {
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.Panic {
		panic("test poller " + p.SourceName + " exploded")
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Contests, nil
}

// Route is a canned upstream response.
type Route struct {
	Status      int
	Body        string
	ContentType string
	// Check, when set, can reject the request before the canned answer.
	Check func(r *http.Request) (int, bool)
}

// Serve starts an upstream stub keyed by request path. Unknown paths 404.
func Serve(t testing.TB, routes map[string]Route) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if route.Check != nil {
			if code, pass := route.Check(r); !pass {
				w.WriteHeader(code)
				return
			}
		}
		if route.ContentType != "" {
			w.Header().Set("Content-Type", route.ContentType)
		}
		status := route.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(route.Body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// Options points an adapter at baseURL with a frozen clock and no retries.
func Options(t testing.TB, baseURL string, now time.Time) platforms.Options {
	t.Helper()
	client, err := whttp.NewClient(whttp.ClientOptions{Timeout: 5 * time.Second, RetryMax: 0})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return platforms.Options{
		BaseURL: baseURL,
		Client:  client,
		Now:     func() time.Time { return now },
	}
}

// IDs lists contest IDs in order.
func IDs(contests []contest.Contest) []string {
	ids := make([]string, 0, len(contests))
	for _, c := range contests {
		ids = append(ids, c.ID)
	}
	return ids
}
