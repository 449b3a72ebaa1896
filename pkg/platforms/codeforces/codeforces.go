package codeforces

import (
	"context"
	"strconv"
	"time"

	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	PLATFORM_URL = "https://codeforces.com"
	slug         = "codeforces"
)

type Poller struct {
	opts platforms.Options
}

func NewPoller(opts platforms.Options) *Poller {
	return &Poller{opts: opts.WithDefaults(PLATFORM_URL)}
}

func (p *Poller) Name() string { return slug }

// FetchContests reads contest.list, which also returns finished contests,
// so ended ones are dropped here.
func (p *Poller) FetchContests(ctx context.Context) ([]contest.Contest, error) {
	body, err := platforms.Fetch(ctx, slug, p.opts.Client, &whttp.WHTTPReq{
		Method:  "GET",
		URL:     p.opts.BaseURL + "/api/contest.list",
		Headers: []whttp.WHTTPHeader{{Name: "Accept", Value: "application/json"}},
	})
	if err != nil {
		return nil, err
	}

	if status := gjson.Get(body, "status").Str; status != "OK" {
		return nil, platforms.Malformed(slug, "api status %q: %s", status, gjson.Get(body, "comment").Str)
	}

	now := p.opts.Now()
	var contests []contest.Contest
	for _, c := range gjson.Get(body, "result").Array() {
		id := c.Get("id").Int()
		start := c.Get("startTimeSeconds")
		if id == 0 || !start.Exists() {
			continue
		}

		cc := contest.Contest{
			ID:            contest.BuildID(slug, strconv.FormatInt(id, 10)),
			Platform:      contest.Codeforces,
			Title:         contest.CleanTitle(c.Get("name").Str),
			URL:           PLATFORM_URL + "/contests/" + strconv.FormatInt(id, 10),
			StartTime:     contest.FromUnix(start.Int()),
			Duration:      time.Duration(c.Get("durationSeconds").Int()) * time.Second,
			DurationKnown: c.Get("durationSeconds").Exists(),
		}
		if cc.HasEnded(now) {
			continue
		}
		contests = append(contests, cc)
	}
	return contests, nil
}
