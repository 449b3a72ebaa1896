package hackerearth

import (
	"context"
	"regexp"
	"sync"

	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	PLATFORM_URL = "https://www.hackerearth.com"
	slug         = "hackerearth"

	DefaultMaxDetails  = 10
	DefaultConcurrency = 3
)

var slugRegex = regexp.MustCompile(`/challenges/competitive/([^/'"\s?#]+)/`)

// Poller scrapes the competitive challenges listing for slugs, then asks the
// events API for each slug's details. Only the first maxDetails slugs are
// looked up, at most concurrency at a time.
type Poller struct {
	opts        platforms.Options
	maxDetails  int
	concurrency int
}

func NewPoller(opts platforms.Options, maxDetails, concurrency int) *Poller {
	if maxDetails <= 0 {
		maxDetails = DefaultMaxDetails
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Poller{
		opts:        opts.WithDefaults(PLATFORM_URL),
		maxDetails:  maxDetails,
		concurrency: concurrency,
	}
}

func (p *Poller) Name() string { return slug }

func (p *Poller) FetchContests(ctx context.Context) ([]contest.Contest, error) {
	page, err := platforms.Fetch(ctx, slug, p.opts.Client, &whttp.WHTTPReq{
		Method: "GET",
		URL:    p.opts.BaseURL + "/challenges/competitive/",
	})
	if err != nil {
		return nil, err
	}

	slugs := ExtractSlugs(page)
	if len(slugs) > p.maxDetails {
		slugs = slugs[:p.maxDetails]
	}
	p.opts.Log.Debugf("hackerearth: %d candidate slugs", len(slugs))

	return p.fetchDetails(ctx, slugs), nil
}

// ExtractSlugs returns the distinct challenge slugs linked from page, in
// order of first appearance.
func ExtractSlugs(page string) []string {
	seen := make(map[string]bool)
	var slugs []string
	for _, m := range slugRegex.FindAllStringSubmatch(page, -1) {
		s := m[1]
		if seen[s] {
			continue
		}
		seen[s] = true
		slugs = append(slugs, s)
	}
	return slugs
}

// fetchDetails resolves slugs with a small worker pool. A failing slug is
// logged and skipped; the output keeps the slug order.
func (p *Poller) fetchDetails(ctx context.Context, slugs []string) []contest.Contest {
	results := make([]*contest.Contest, len(slugs))
	indexes := make(chan int, len(slugs))

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				c, err := p.fetchOne(ctx, slugs[idx])
				if err != nil {
					p.opts.Log.Warnf("hackerearth: contest %s: %v", slugs[idx], err)
					continue
				}
				results[idx] = c
			}
		}()
	}

	for i := range slugs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	var contests []contest.Contest
	for _, c := range results {
		if c != nil {
			contests = append(contests, *c)
		}
	}
	return contests
}

// fetchOne returns nil, nil for a contest that has already ended.
func (p *Poller) fetchOne(ctx context.Context, s string) (*contest.Contest, error) {
	body, err := platforms.Fetch(ctx, slug, p.opts.Client, &whttp.WHTTPReq{
		Method:  "GET",
		URL:     p.opts.BaseURL + "/challengesapp/api/events/" + s + "/?only_meta=false",
		Headers: []whttp.WHTTPHeader{{Name: "Accept", Value: "application/json"}},
	})
	if err != nil {
		return nil, err
	}

	start, err := contest.ParseTime(gjson.Get(body, "start_date").Str, nil)
	if err != nil {
		return nil, platforms.Malformed(slug, "start_date: %v", err)
	}

	title := gjson.Get(body, "title").Str
	if title == "" {
		title = gjson.Get(body, "name").Str
	}
	c := &contest.Contest{
		ID:        contest.BuildID(slug, s),
		Platform:  contest.HackerEarth,
		Title:     contest.CleanTitle(title),
		URL:       PLATFORM_URL + "/challenges/competitive/" + s + "/",
		StartTime: start,
	}
	if end, err := contest.ParseTime(gjson.Get(body, "end_date").Str, nil); err == nil {
		c.Duration, c.DurationKnown = contest.SpanBetween(start, end)
	}

	if c.HasEnded(p.opts.Now()) {
		return nil, nil
	}
	return c, nil
}
