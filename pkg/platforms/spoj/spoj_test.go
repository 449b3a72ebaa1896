package spoj

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/dsaquest/contestscope/pkg/platforms/test"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

const contestsPage = `<html><body><table class="problems">
<thead><tr><th>Contest</th><th>Start</th><th>End</th></tr></thead>
<tbody>
<tr><td><a href="/JUNE26/">June  Long Challenge</a></td><td>2026-06-05 10:00:00</td><td>2026-06-08 10:00:00</td></tr>
<tr><td><a href="/ACM26">ACM Warmup</a></td><td>2026-06-10 12:00</td><td>-</td></tr>
<tr><td><a href="/MAY26/">May Long</a></td><td>2026-05-01 00:00:00</td><td>2026-05-02 00:00:00</td></tr>
<tr><td><a href="/JUNE26/">June Long Challenge (mirror)</a></td><td>2026-06-05 10:00:00</td><td>2026-06-08 10:00:00</td></tr>
<tr><td><a href="/problems/classical/">Problems</a></td><td>2026-06-05 10:00:00</td></tr>
</tbody></table></body></html>`

func TestFetchContests(t *testing.T) {
	srv := test.Serve(t, map[string]test.Route{
		"/contests/": {Body: contestsPage},
	})

	contests, err := NewPoller(test.Options(t, srv.URL, now)).FetchContests(context.Background())
	if err != nil {
		t.Fatalf("FetchContests: %v", err)
	}

	want := []string{"spoj-JUNE26", "spoj-ACM26"}
	if got := test.IDs(contests); !reflect.DeepEqual(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}

	june := contests[0]
	if june.Title != "June Long Challenge" {
		t.Fatalf("title = %q", june.Title)
	}
	if !june.DurationKnown || june.Duration != 72*time.Hour {
		t.Fatalf("duration = %v known=%v", june.Duration, june.DurationKnown)
	}
	if june.URL != "https://www.spoj.com/JUNE26/" {
		t.Fatalf("url = %q", june.URL)
	}

	acm := contests[1]
	if acm.DurationKnown {
		t.Fatalf("ACM26 has no parseable end, duration should be unknown")
	}
	if !acm.StartTime.Equal(time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", acm.StartTime)
	}
}
