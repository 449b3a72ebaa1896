package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/whttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// EndpointSource reads contests from a running server's aggregation
// endpoint, the way an external scheduler would.
type EndpointSource struct {
	URL    string
	Client *retryablehttp.Client
}

func NewEndpointSource(baseURL string, client *retryablehttp.Client) *EndpointSource {
	return &EndpointSource{URL: strings.TrimRight(baseURL, "/") + "/api/contests", Client: client}
}

func (s *EndpointSource) Contests(ctx context.Context) ([]contest.Contest, error) {
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method:  "GET",
		URL:     s.URL,
		Headers: []whttp.WHTTPHeader{{Name: "Accept", Value: "application/json"}},
	}, s.Client)
	if err != nil {
		return nil, err
	}

	body := res.BodyString
	if !gjson.Get(body, "success").Bool() {
		msg := gjson.Get(body, "error").Str
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", res.StatusCode)
		}
		return nil, fmt.Errorf("aggregation endpoint failed: %s", msg)
	}

	var contests []contest.Contest
	if err := json.Unmarshal([]byte(gjson.Get(body, "contests").Raw), &contests); err != nil {
		return nil, fmt.Errorf("decode contests: %w", err)
	}
	return contests, nil
}
