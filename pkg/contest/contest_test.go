package contest

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name string
		in   string
		loc  *time.Location
		want time.Time
	}{
		{"rfc3339", "2026-03-01T14:30:00Z", nil, time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)},
		{"rfc3339 offset", "2026-03-01T20:00:00+05:30", nil, time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)},
		{"atcoder", "2026-03-01 21:00:00+0900", nil, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"epoch seconds", "1772375400", nil, time.Unix(1772375400, 0).UTC()},
		{"zone-less in location", "2026-03-01 20:00:00", ist, time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)},
		{"zone-less defaults to utc", "2026-03-01T20:00:00", nil, time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTime(tc.in, tc.loc)
			if err != nil {
				t.Fatalf("ParseTime(%q): %v", tc.in, err)
			}
			if !got.Equal(tc.want) || got.Location() != time.UTC {
				t.Fatalf("ParseTime(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}

	for _, bad := range []string{"", "soon", "2026-13-45"} {
		if _, err := ParseTime(bad, nil); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestHasEnded(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	running := Contest{StartTime: now.Add(-time.Hour), Duration: 2 * time.Hour, DurationKnown: true}
	finished := Contest{StartTime: now.Add(-3 * time.Hour), Duration: 2 * time.Hour, DurationKnown: true}
	unknownFuture := Contest{StartTime: now.Add(time.Hour)}
	unknownPast := Contest{StartTime: now.Add(-time.Minute)}

	if running.HasEnded(now) || !running.IsLive(now) {
		t.Fatalf("running contest should be live")
	}
	if !finished.HasEnded(now) {
		t.Fatalf("finished contest should have ended")
	}
	if unknownFuture.HasEnded(now) || unknownFuture.IsLive(now) {
		t.Fatalf("future contest with unknown duration should be upcoming")
	}
	if !unknownPast.HasEnded(now) {
		t.Fatalf("started contest with unknown duration should be dropped")
	}

	kept := DropEnded([]Contest{running, finished, unknownFuture, unknownPast}, now)
	if len(kept) != 2 {
		t.Fatalf("expected 2 contests kept, got %d", len(kept))
	}
}

func TestContestJSON(t *testing.T) {
	c := Contest{
		ID:            "codeforces-2001",
		Platform:      Codeforces,
		Title:         "Codeforces Round",
		URL:           "https://codeforces.com/contests/2001",
		StartTime:     time.Date(2026, 5, 1, 14, 35, 0, 0, time.UTC),
		Duration:      2 * time.Hour,
		DurationKnown: true,
	}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"id":"codeforces-2001","platform":"Codeforces","title":"Codeforces Round","url":"https://codeforces.com/contests/2001","start_time":"2026-05-01T14:35:00Z","duration":7200,"duration_known":true}`
	if string(data) != want {
		t.Fatalf("unexpected wire shape.\nwant: %s\ngot:  %s", want, data)
	}

	var legacy Contest
	if err := json.Unmarshal([]byte(`{"id":"spoj-X","platform":"SPOJ","start_time":"2026-05-01T00:00:00Z","duration":0}`), &legacy); err != nil {
		t.Fatal(err)
	}
	if legacy.DurationKnown {
		t.Fatalf("zero duration without duration_known should be unknown")
	}
}

func TestCleanTitle(t *testing.T) {
	tests := map[string]string{
		"  Weekly   Contest\n 400 ":               "Weekly Contest 400",
		"<b>AtCoder</b> Beginner &amp; Contest":    "AtCoder Beginner & Contest",
		"\n\t<span>Starters 140</span>\n":          "Starters 140",
	}
	for in, want := range tests {
		if got := CleanTitle(in); got != want {
			t.Fatalf("CleanTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
