package clist

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/whttp"
	"github.com/tidwall/gjson"
	"github.com/weppos/publicsuffix-go/publicsuffix"
)

const (
	API_URL = "https://clist.by"
	slug    = "clist"
)

// DefaultResources are the platforms surfaced through CLIST because no
// dedicated adapter covers them.
var DefaultResources = []string{contest.SPOJ, contest.CodeSignal, contest.TechGig}

// knownLabels maps the registrable-domain label of a CLIST resource host to
// the display name used everywhere else.
var knownLabels = map[string]contest.Platform{
	"codechef":      contest.CodeChef,
	"codeforces":    contest.Codeforces,
	"geeksforgeeks": contest.GeeksforGeeks,
	"leetcode":      contest.LeetCode,
	"hackerearth":   contest.HackerEarth,
	"atcoder":       contest.AtCoder,
	"hackerrank":    contest.HackerRank,
	"spoj":          contest.SPOJ,
	"topcoder":      contest.TopCoder,
	"codesignal":    contest.CodeSignal,
	"techgig":       contest.TechGig,
}

// Poller reads the CLIST meta-aggregator, which needs an API key.
type Poller struct {
	opts      platforms.Options
	username  string
	apiKey    string
	resources map[string]bool
}

func NewPoller(opts platforms.Options, username, apiKey string, resources []string) *Poller {
	if len(resources) == 0 {
		resources = DefaultResources
	}
	allow := make(map[string]bool, len(resources))
	for _, r := range resources {
		allow[strings.ToLower(strings.TrimSpace(r))] = true
	}
	return &Poller{
		opts:      opts.WithDefaults(API_URL),
		username:  username,
		apiKey:    apiKey,
		resources: allow,
	}
}

func (p *Poller) Name() string { return slug }

func (p *Poller) FetchContests(ctx context.Context) ([]contest.Contest, error) {
	if p.username == "" || p.apiKey == "" {
		return nil, platforms.Malformed(slug, "no API credentials configured")
	}

	body, err := platforms.Fetch(ctx, slug, p.opts.Client, &whttp.WHTTPReq{
		Method: "GET",
		URL:    p.opts.BaseURL + "/api/v4/contest/?upcoming=true&limit=100&order_by=start",
		Headers: []whttp.WHTTPHeader{
			{Name: "Authorization", Value: "ApiKey " + p.username + ":" + p.apiKey},
			{Name: "Accept", Value: "application/json"},
		},
	})
	if err != nil {
		var se *platforms.StatusError
		if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden) {
			p.opts.Log.Infof("clist: API key rejected (HTTP %d), skipping", se.Code)
		}
		return nil, err
	}

	objects := gjson.Get(body, "objects")
	if !objects.IsArray() {
		return nil, platforms.Malformed(slug, "objects missing")
	}

	now := p.opts.Now()
	var contests []contest.Contest
	for _, c := range objects.Array() {
		platform := ResourcePlatform(c.Get("resource").Str)
		if !p.resources[strings.ToLower(platform)] {
			continue
		}

		start, err := contest.ParseTime(c.Get("start").Str, nil)
		if err != nil {
			p.opts.Log.Debugf("clist: skipping %d: %v", c.Get("id").Int(), err)
			continue
		}
		dur := c.Get("duration").Int()
		cc := contest.Contest{
			ID:            contest.BuildID(slug, strconv.FormatInt(c.Get("id").Int(), 10)),
			Platform:      platform,
			Title:         contest.CleanTitle(c.Get("event").Str),
			URL:           c.Get("href").Str,
			StartTime:     start,
			Duration:      secondsToDuration(dur),
			DurationKnown: dur > 0,
		}
		if cc.HasEnded(now) {
			continue
		}
		contests = append(contests, cc)
	}
	return contests, nil
}

// ResourcePlatform turns a CLIST resource ("spoj.com", "codeforces.com/gym",
// "https://www.techgig.com") into a display platform name. Unknown hosts
// fall back to the registrable-domain label.
func ResourcePlatform(resource string) contest.Platform {
	host := strings.TrimSpace(resource)
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	if u, err := url.Parse(host); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	host = strings.ToLower(host)

	domain, err := publicsuffix.Domain(host)
	if err != nil {
		domain = host
	}
	label := domain
	if i := strings.Index(domain, "."); i > 0 {
		label = domain[:i]
	}

	if name, ok := knownLabels[label]; ok {
		return name
	}
	return label
}

func secondsToDuration(sec int64) time.Duration {
	if sec <= 0 {
		return 0
	}
	return time.Duration(sec) * time.Second
}
