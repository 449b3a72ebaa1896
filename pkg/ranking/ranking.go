package ranking

import (
	"sort"
	"strings"
	"time"

	"github.com/dsaquest/contestscope/pkg/contest"
)

// Tier is a relevance bucket; lower sorts first.
type Tier int

const (
	TierHot Tier = iota + 1
	TierPriority
	TierMajor
	TierSpecial
	TierRest
)

func (t Tier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierPriority:
		return "priority"
	case TierMajor:
		return "major"
	case TierSpecial:
		return "special"
	default:
		return "rest"
	}
}

// PlatformWindow promotes the listed platforms when they start within Window.
type PlatformWindow struct {
	Platforms []string      `json:"platforms"`
	Window    time.Duration `json:"window"`
}

func (pw PlatformWindow) covers(platform string, until time.Duration) bool {
	return until >= 0 && until <= pw.Window && containsFold(pw.Platforms, platform)
}

// Table is the platform-to-tier policy. It is plain data so it can be
// loaded from configuration.
type Table struct {
	HotWindow time.Duration  `json:"hotWindow"`
	Priority  PlatformWindow `json:"priority"`
	Major     PlatformWindow `json:"major"`
	Special   []string       `json:"special"`
}

func DefaultTable() Table {
	return Table{
		HotWindow: 24 * time.Hour,
		Priority: PlatformWindow{
			Platforms: []string{contest.LeetCode, contest.Codeforces},
			Window:    48 * time.Hour,
		},
		Major: PlatformWindow{
			Platforms: []string{
				contest.CodeChef, contest.AtCoder, contest.TopCoder,
				contest.GeeksforGeeks, contest.HackerEarth, contest.SPOJ,
			},
			Window: 72 * time.Hour,
		},
		Special: []string{contest.HackerRank},
	}
}

// Classify places c in a tier as seen at now. Rules are checked top-down:
// live or starting within HotWindow, priority platform in its window, major
// platform in its window, special platform, everything else.
func (t Table) Classify(c contest.Contest, now time.Time) Tier {
	until := c.StartTime.Sub(now)
	switch {
	case c.IsLive(now) || (until >= 0 && until <= t.HotWindow):
		return TierHot
	case t.Priority.covers(c.Platform, until):
		return TierPriority
	case t.Major.covers(c.Platform, until):
		return TierMajor
	case containsFold(t.Special, c.Platform):
		return TierSpecial
	}
	return TierRest
}

// Rank returns a new slice ordered by tier, then start time, then ID. The
// input is not modified.
func (t Table) Rank(contests []contest.Contest, now time.Time) []contest.Contest {
	type ranked struct {
		c    contest.Contest
		tier Tier
	}
	rs := make([]ranked, len(contests))
	for i, c := range contests {
		rs[i] = ranked{c: c, tier: t.Classify(c, now)}
	}

	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		if !a.c.StartTime.Equal(b.c.StartTime) {
			return a.c.StartTime.Before(b.c.StartTime)
		}
		return a.c.ID < b.c.ID
	})

	out := make([]contest.Contest, len(rs))
	for i, r := range rs {
		out[i] = r.c
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
