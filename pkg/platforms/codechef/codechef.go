package codechef

import (
	"context"

	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	PLATFORM_URL = "https://www.codechef.com"
	slug         = "codechef"
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
		URL:     p.opts.BaseURL + "/api/list/contests/all?sort_by=START&sorting_order=asc",
		Headers: []whttp.WHTTPHeader{{Name: "Accept", Value: "application/json"}},
	})
	if err != nil {
		return nil, err
	}
	if !gjson.Valid(body) {
		return nil, platforms.Malformed(slug, "response is not JSON")
	}

	now := p.opts.Now()
	var contests []contest.Contest
	for _, list := range []string{"present_contests", "future_contests"} {
		for _, c := range gjson.Get(body, list).Array() {
			code := c.Get("contest_code").Str
			if code == "" {
				continue
			}

			start, err := contest.ParseTime(c.Get("contest_start_date_iso").Str, nil)
			if err != nil {
				p.opts.Log.Debugf("codechef: skipping %s: %v", code, err)
				continue
			}
			cc := contest.Contest{
				ID:        contest.BuildID(slug, code),
				Platform:  contest.CodeChef,
				Title:     contest.CleanTitle(c.Get("contest_name").Str),
				URL:       PLATFORM_URL + "/" + code,
				StartTime: start,
			}
			if end, err := contest.ParseTime(c.Get("contest_end_date_iso").Str, nil); err == nil {
				cc.Duration, cc.DurationKnown = contest.SpanBetween(start, end)
			}

			if cc.HasEnded(now) {
				continue
			}
			contests = append(contests, cc)
		}
	}
	return contests, nil
}
