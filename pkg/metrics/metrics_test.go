package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSource(t *testing.T) {
	m := New()
	m.ObserveSource("codeforces", 4, 120*time.Millisecond, nil)
	m.ObserveSource("codeforces", 0, time.Second, errors.New("boom"))
	m.ObserveSource("atcoder", 2, 10*time.Millisecond, nil)

	if got := testutil.ToFloat64(m.sourceFetches.WithLabelValues("codeforces", "ok")); got != 1 {
		t.Fatalf("codeforces ok = %v", got)
	}
	if got := testutil.ToFloat64(m.sourceFetches.WithLabelValues("codeforces", "error")); got != 1 {
		t.Fatalf("codeforces error = %v", got)
	}
	// A failed fetch keeps the last good count.
	if got := testutil.ToFloat64(m.sourceContests.WithLabelValues("codeforces")); got != 4 {
		t.Fatalf("codeforces contests = %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveSource("x", 1, time.Second, nil)
	m.ObserveCache("hit")
	m.ObserveDigest("sent")
	m.ObserveAggregate(time.Second)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveCache("hit")
	m.ObserveDigest("skipped")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`contestscope_cache_requests_total{result="hit"} 1`,
		`contestscope_digest_recipients_total{status="skipped"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
