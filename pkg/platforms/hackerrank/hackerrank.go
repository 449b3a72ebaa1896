package hackerrank

import (
	"context"

	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	PLATFORM_URL = "https://www.hackerrank.com"
	slug         = "hackerrank"
	pageSize     = 20
)

type Poller struct {
	opts platforms.Options
}

func NewPoller(opts platforms.Options) *Poller {
	return &Poller{opts: opts.WithDefaults(PLATFORM_URL)}
}

func (p *Poller) Name() string { return slug }

func (p *Poller) FetchContests(ctx context.Context) ([]contest.Contest, error) {
	body, err := platforms.Fetch(ctx, slug, p.opts.Client, &whttp.WHTTPReq{
		Method:  "GET",
		URL:     p.opts.BaseURL + "/rest/contests/upcoming?offset=0&limit=20",
		Headers: []whttp.WHTTPHeader{{Name: "Accept", Value: "application/json"}},
	})
	if err != nil {
		return nil, err
	}

	models := gjson.Get(body, "models")
	if !models.IsArray() {
		return nil, platforms.Malformed(slug, "models missing")
	}

	now := p.opts.Now()
	var contests []contest.Contest
	for _, c := range models.Array() {
		s := c.Get("slug").Str
		if s == "" || !c.Get("epoch_starttime").Exists() {
			continue
		}

		start := contest.FromUnix(c.Get("epoch_starttime").Int())
		cc := contest.Contest{
			ID:        contest.BuildID(slug, s),
			Platform:  contest.HackerRank,
			Title:     contest.CleanTitle(c.Get("name").Str),
			URL:       PLATFORM_URL + "/contests/" + s,
			StartTime: start,
		}
		// Some permanent contests have no end.
		if end := c.Get("epoch_endtime"); end.Exists() && end.Type != gjson.Null {
			cc.Duration, cc.DurationKnown = contest.SpanBetween(start, contest.FromUnix(end.Int()))
		}
		if cc.HasEnded(now) {
			continue
		}
		contests = append(contests, cc)
	}
	return contests, nil
}
