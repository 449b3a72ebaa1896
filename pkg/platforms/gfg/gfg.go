package gfg

import (
	"context"
	"time"

	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	API_URL      = "https://practiceapi.geeksforgeeks.org"
	PLATFORM_URL = "https://practice.geeksforgeeks.org"
	slug         = "gfg"
)

// Poller reads the GeeksforGeeks events API. Its timestamps carry no
// offset and are published in Indian Standard Time.
type Poller struct {
	opts platforms.Options
	loc  *time.Location
}

// NewPoller uses loc for zone-less timestamps; nil means Asia/Kolkata, or a
// fixed +05:30 zone when tzdata is unavailable.
func NewPoller(opts platforms.Options, loc *time.Location) *Poller {
	if loc == nil {
		var err error
		if loc, err = time.LoadLocation("Asia/Kolkata"); err != nil {
			loc = time.FixedZone("IST", 5*3600+30*60)
		}
	}
	return &Poller{opts: opts.WithDefaults(API_URL), loc: loc}
}

func (p *Poller) Name() string { return slug }

func (p *Poller) FetchContests(ctx context.Context) ([]contest.Contest, error) {
	body, err := platforms.Fetch(ctx, slug, p.opts.Client, &whttp.WHTTPReq{
		Method:  "GET",
		URL:     p.opts.BaseURL + "/api/vr/events/?type=contest&sub_type=upcoming",
		Headers: []whttp.WHTTPHeader{{Name: "Accept", Value: "application/json"}},
	})
	if err != nil {
		return nil, err
	}

	upcoming := gjson.Get(body, "results.upcoming")
	if !upcoming.IsArray() {
		return nil, platforms.Malformed(slug, "results.upcoming missing")
	}

	now := p.opts.Now()
	var contests []contest.Contest
	for _, c := range upcoming.Array() {
		s := c.Get("slug").Str
		if s == "" {
			continue
		}
		start, err := contest.ParseTime(c.Get("start_time").Str, p.loc)
		if err != nil {
			p.opts.Log.Debugf("gfg: skipping %s: %v", s, err)
			continue
		}

		cc := contest.Contest{
			ID:        contest.BuildID(slug, s),
			Platform:  contest.GeeksforGeeks,
			Title:     contest.CleanTitle(c.Get("name").Str),
			URL:       PLATFORM_URL + "/contest/" + s,
			StartTime: start,
		}
		if end, err := contest.ParseTime(c.Get("end_time").Str, p.loc); err == nil {
			cc.Duration, cc.DurationKnown = contest.SpanBetween(start, end)
		}
		if cc.HasEnded(now) {
			continue
		}
		contests = append(contests, cc)
	}
	return contests, nil
}
