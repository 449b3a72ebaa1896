package leetcode

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	PLATFORM_URL = "https://leetcode.com"
	slug         = "leetcode"
)

type Poller struct {
	opts platforms.Options
}

func NewPoller(opts platforms.Options) *Poller {
	return &Poller{opts: opts.WithDefaults(PLATFORM_URL)}
}

func (p *Poller) Name() string { return slug }

// FetchContests queries the public GraphQL endpoint. allContests includes
// the full history, so finished contests are filtered out.
func (p *Poller) FetchContests(ctx context.Context) ([]contest.Contest, error) {
	payload, err := json.Marshal(map[string]string{"query": allContestsQuery})
	if err != nil {
		return nil, err
	}

	body, err := platforms.Fetch(ctx, slug, p.opts.Client, &whttp.WHTTPReq{
		Method: "POST",
		URL:    p.opts.BaseURL + "/graphql",
		Headers: []whttp.WHTTPHeader{
			{Name: "Content-Type", Value: "application/json"},
			{Name: "Referer", Value: PLATFORM_URL + "/contest/"},
		},
		Body: string(payload),
	})
	if err != nil {
		return nil, err
	}

	if errs := gjson.Get(body, "errors"); errs.Exists() && len(errs.Array()) > 0 {
		return nil, platforms.Malformed(slug, "graphql error: %s", errs.Array()[0].Get("message").Str)
	}

	now := p.opts.Now()
	var contests []contest.Contest
	for _, c := range gjson.Get(body, "data.allContests").Array() {
		titleSlug := c.Get("titleSlug").Str
		if titleSlug == "" || !c.Get("startTime").Exists() {
			continue
		}
		cc := contest.Contest{
			ID:            contest.BuildID(slug, titleSlug),
			Platform:      contest.LeetCode,
			Title:         contest.CleanTitle(c.Get("title").Str),
			URL:           PLATFORM_URL + "/contest/" + titleSlug,
			StartTime:     contest.FromUnix(c.Get("startTime").Int()),
			Duration:      time.Duration(c.Get("duration").Int()) * time.Second,
			DurationKnown: c.Get("duration").Int() > 0,
		}
		if cc.HasEnded(now) {
			continue
		}
		contests = append(contests, cc)
	}
	return contests, nil
}
