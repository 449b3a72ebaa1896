package spoj

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/whttp"
)

const (
	PLATFORM_URL = "https://www.spoj.com"
	slug         = "spoj"
)

var contestPathRegex = regexp.MustCompile(`^/([A-Za-z0-9_]+)/?$`)

// Poller scrapes the SPOJ contests table. The end column is often missing
// or free text, in which case the duration stays unknown.
type Poller struct {
	opts platforms.Options
}

func NewPoller(opts platforms.Options) *Poller {
	return &Poller{opts: opts.WithDefaults(PLATFORM_URL)}
}

func (p *Poller) Name() string { return slug }

func (p *Poller) FetchContests(ctx context.Context) ([]contest.Contest, error) {
	page, err := platforms.Fetch(ctx, slug, p.opts.Client, &whttp.WHTTPReq{
		Method: "GET",
		URL:    p.opts.BaseURL + "/contests/",
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, platforms.Malformed(slug, "parse HTML: %v", err)
	}

	now := p.opts.Now()
	seen := make(map[string]bool)
	var contests []contest.Contest
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		link := cells.Eq(0).Find("a").First()
		href, _ := link.Attr("href")
		m := contestPathRegex.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			return
		}
		code := m[1]

		start, err := contest.ParseTime(cells.Eq(1).Text(), nil)
		if err != nil {
			p.opts.Log.Debugf("spoj: skipping %s: %v", code, err)
			return
		}
		c := contest.Contest{
			ID:        contest.BuildID(slug, code),
			Platform:  contest.SPOJ,
			Title:     contest.CleanTitle(link.Text()),
			URL:       PLATFORM_URL + "/" + code + "/",
			StartTime: start,
		}
		if cells.Length() > 2 {
			if end, err := contest.ParseTime(cells.Eq(2).Text(), nil); err == nil {
				c.Duration, c.DurationKnown = contest.SpanBetween(start, end)
			}
		}
		if c.HasEnded(now) {
			return
		}
		seen[code] = true
		contests = append(contests, c)
	})
	return contests, nil
}
