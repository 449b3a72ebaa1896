package codeforces

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/platforms/test"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

const contestList = `{
  "status": "OK",
  "result": [
    {"id": 2100, "name": "Codeforces Round 1000 (Div. 2)", "phase": "BEFORE", "durationSeconds": 7200, "startTimeSeconds": 1780315200},
    {"id": 2099, "name": "Educational  Round 180", "phase": "CODING", "durationSeconds": 7200, "startTimeSeconds": 1780268400},
    {"id": 2050, "name": "Gym without start", "phase": "BEFORE", "durationSeconds": 18000},
    {"id": 2000, "name": "Finished Round", "phase": "FINISHED", "durationSeconds": 7200, "startTimeSeconds": 1779235200}
  ]
}`

func TestFetchContests(t *testing.T) {
	srv := test.Serve(t, map[string]test.Route{
		"/api/contest.list": {Body: contestList, ContentType: "application/json"},
	})

	contests, err := NewPoller(test.Options(t, srv.URL, now)).FetchContests(context.Background())
	if err != nil {
		t.Fatalf("FetchContests: %v", err)
	}

	want := []string{"codeforces-2100", "codeforces-2099"}
	if got := test.IDs(contests); !reflect.DeepEqual(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}

	first := contests[0]
	if first.Title != "Codeforces Round 1000 (Div. 2)" {
		t.Fatalf("title = %q", first.Title)
	}
	if first.URL != "https://codeforces.com/contests/2100" {
		t.Fatalf("url = %q", first.URL)
	}
	if !first.StartTime.Equal(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", first.StartTime)
	}
	if !first.DurationKnown || first.Duration != 2*time.Hour {
		t.Fatalf("duration = %v known=%v", first.Duration, first.DurationKnown)
	}
	if contests[1].Title != "Educational Round 180" {
		t.Fatalf("title not collapsed: %q", contests[1].Title)
	}
	if !contests[1].IsLive(now) {
		t.Fatalf("round 2099 should be live")
	}
}

func TestFetchContestsFailures(t *testing.T) {
	tests := []struct {
		name  string
		route test.Route
	}{
		{"api status", test.Route{Body: `{"status":"FAILED","comment":"call limit exceeded"}`}},
		{"server error", test.Route{Status: 503, Body: "down"}},
		{"not json", test.Route{Body: "<html>maintenance</html>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := test.Serve(t, map[string]test.Route{"/api/contest.list": tt.route})
			_, err := NewPoller(test.Options(t, srv.URL, now)).FetchContests(context.Background())
			if !errors.Is(err, platforms.ErrSourceUnavailable) {
				t.Fatalf("err = %v, want ErrSourceUnavailable", err)
			}
		})
	}
}
