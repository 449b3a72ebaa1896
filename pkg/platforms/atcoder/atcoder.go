package atcoder

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/whttp"
)

const (
	PLATFORM_URL = "https://atcoder.jp"
	slug         = "atcoder"
)

var (
	contestPathRegex = regexp.MustCompile(`^/contests/([^/?#]+)`)
	durationRegex    = regexp.MustCompile(`^(\d+):(\d{2})$`)
)

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
		URL:    p.opts.BaseURL + "/contests/?lang=en",
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, platforms.Malformed(slug, "parse HTML: %v", err)
	}
	return p.parseUpcoming(doc), nil
}

// parseUpcoming reads the upcoming contests table. Rows are
// start time | contest link | duration (HH:MM) | rated range.
func (p *Poller) parseUpcoming(doc *goquery.Document) []contest.Contest {
	rows := doc.Find("#contest-table-upcoming tbody tr")
	if rows.Length() == 0 {
		// Older layout: the second table body on the page lists upcoming contests.
		rows = doc.Find("tbody").Eq(1).Find("tr")
	}

	now := p.opts.Now()
	var contests []contest.Contest
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		link := cells.Eq(1).Find("a[href^='/contests/']").First()
		href, _ := link.Attr("href")
		m := contestPathRegex.FindStringSubmatch(href)
		if m == nil {
			return
		}
		contestID := m[1]

		start, err := contest.ParseTime(cells.Eq(0).Find("time").Text(), nil)
		if err != nil {
			start, err = contest.ParseTime(cells.Eq(0).Text(), nil)
		}
		if err != nil {
			p.opts.Log.Debugf("atcoder: skipping %s: %v", contestID, err)
			return
		}

		c := contest.Contest{
			ID:        contest.BuildID(slug, contestID),
			Platform:  contest.AtCoder,
			Title:     contest.CleanTitle(link.Text()),
			URL:       PLATFORM_URL + "/contests/" + contestID,
			StartTime: start,
		}
		if d, err := ParseDuration(cells.Eq(2).Text()); err == nil {
			c.Duration, c.DurationKnown = d, true
		}
		if c.HasEnded(now) {
			return
		}
		contests = append(contests, c)
	})
	return contests
}

// ParseDuration reads AtCoder's "HH:MM" durations; hours may exceed 24.
func ParseDuration(s string) (time.Duration, error) {
	m := durationRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("bad duration %q", s)
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}
