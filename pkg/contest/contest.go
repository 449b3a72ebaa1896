package contest

import (
	"encoding/json"
	"fmt"
	"time"
)

// Platform is the display name of a contest host.
type Platform = string

const (
	CodeChef      Platform = "CodeChef"
	Codeforces    Platform = "Codeforces"
	GeeksforGeeks Platform = "GeeksforGeeks"
	LeetCode      Platform = "LeetCode"
	HackerEarth   Platform = "HackerEarth"
	AtCoder       Platform = "AtCoder"
	HackerRank    Platform = "HackerRank"
	SPOJ          Platform = "SPOJ"
	TopCoder      Platform = "TopCoder"
	CodeSignal    Platform = "CodeSignal"
	TechGig       Platform = "TechGig"
)

// Contest is one upcoming or running contest, normalized across sources.
// Values are never mutated after an adapter builds them.
type Contest struct {
	ID        string
	Platform  Platform
	Title     string
	URL       string
	StartTime time.Time

	// Duration is only meaningful when DurationKnown is set. Sources that
	// cannot tell when a contest ends leave it unknown.
	Duration      time.Duration
	DurationKnown bool
}

// BuildID joins a platform slug and the source-native identifier.
func BuildID(slug, nativeID string) string {
	return slug + "-" + nativeID
}

// End returns the end instant, or StartTime when the duration is unknown.
func (c Contest) End() time.Time {
	if !c.DurationKnown {
		return c.StartTime
	}
	return c.StartTime.Add(c.Duration)
}

// IsLive reports whether now falls inside [start, end].
func (c Contest) IsLive(now time.Time) bool {
	if !c.DurationKnown {
		return false
	}
	return !now.Before(c.StartTime) && !now.After(c.End())
}

// HasEnded reports whether the contest is over at now. A contest with an
// unknown duration counts as ended once it has started.
func (c Contest) HasEnded(now time.Time) bool {
	if !c.DurationKnown {
		return c.StartTime.Before(now)
	}
	return c.End().Before(now)
}

// Validate checks the fields every adapter must fill.
func (c Contest) Validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("contest has no id")
	case c.Platform == "":
		return fmt.Errorf("contest %s has no platform", c.ID)
	case c.StartTime.IsZero():
		return fmt.Errorf("contest %s has no start time", c.ID)
	case c.Duration < 0:
		return fmt.Errorf("contest %s has negative duration", c.ID)
	}
	return nil
}

// DropEnded returns the contests still running or upcoming at now.
func DropEnded(contests []Contest, now time.Time) []Contest {
	out := make([]Contest, 0, len(contests))
	for _, c := range contests {
		if c.HasEnded(now) {
			continue
		}
		out = append(out, c)
	}
	return out
}

type wireContest struct {
	ID            string `json:"id"`
	Platform      string `json:"platform"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	StartTime     string `json:"start_time"`
	Duration      int64  `json:"duration"`
	DurationKnown bool   `json:"duration_known"`
}

// MarshalJSON writes start_time as RFC3339 UTC and duration as whole
// seconds, 0 when unknown.
func (c Contest) MarshalJSON() ([]byte, error) {
	w := wireContest{
		ID:            c.ID,
		Platform:      c.Platform,
		Title:         c.Title,
		URL:           c.URL,
		StartTime:     c.StartTime.UTC().Format(time.RFC3339),
		DurationKnown: c.DurationKnown,
	}
	if c.DurationKnown {
		w.Duration = int64(c.Duration / time.Second)
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts payloads without duration_known, treating a
// positive duration as known.
func (c *Contest) UnmarshalJSON(data []byte) error {
	var w struct {
		wireContest
		DurationKnown *bool `json:"duration_known"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	known := w.Duration > 0
	if w.DurationKnown != nil {
		known = *w.DurationKnown
	}
	start, err := time.Parse(time.RFC3339, w.StartTime)
	if err != nil {
		return fmt.Errorf("contest %s: bad start_time: %w", w.ID, err)
	}
	*c = Contest{
		ID:            w.ID,
		Platform:      w.Platform,
		Title:         w.Title,
		URL:           w.URL,
		StartTime:     start.UTC(),
		Duration:      time.Duration(w.Duration) * time.Second,
		DurationKnown: known,
	}
	return nil
}
