package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/dsaquest/contestscope/internal/utils"
	"github.com/dsaquest/contestscope/pkg/aggregator"
	"github.com/dsaquest/contestscope/pkg/cache"
	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/metrics"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/platforms/atcoder"
	"github.com/dsaquest/contestscope/pkg/platforms/clist"
	"github.com/dsaquest/contestscope/pkg/platforms/codechef"
	"github.com/dsaquest/contestscope/pkg/platforms/codeforces"
	"github.com/dsaquest/contestscope/pkg/platforms/dev"
	"github.com/dsaquest/contestscope/pkg/platforms/gfg"
	"github.com/dsaquest/contestscope/pkg/platforms/hackerearth"
	"github.com/dsaquest/contestscope/pkg/platforms/hackerrank"
	"github.com/dsaquest/contestscope/pkg/platforms/leetcode"
	"github.com/dsaquest/contestscope/pkg/platforms/spoj"
	"github.com/dsaquest/contestscope/pkg/ranking"
	"github.com/dsaquest/contestscope/pkg/whttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// sourceNames is the registration order, which is also the dedupe
// precedence: the first source to report an ID wins.
var sourceNames = []string{
	"codechef", "codeforces", "gfg", "leetcode", "hackerearth",
	"atcoder", "hackerrank", "clist", "spoj",
}

// buildSources registers every enabled source. Sources that need
// credentials are skipped, with a log line, when none are configured.
func buildSources(cmd *cobra.Command) ([]platforms.Source, error) {
	proxy, _ := cmd.Flags().GetString("proxy")
	client, err := whttp.NewClient(whttp.ClientOptions{
		Timeout:  viper.GetDuration("http.timeout"),
		RetryMax: viper.GetInt("http.retries"),
		Proxy:    proxy,
	})
	if err != nil {
		return nil, err
	}

	opts := func(name string) platforms.Options {
		return platforms.Options{
			BaseURL: viper.GetString("sources." + name + ".base_url"),
			Client:  client,
			Log:     utils.Log.WithField("source", name),
		}
	}

	if devMode, _ := cmd.Flags().GetBool("dev"); devMode {
		utils.Log.Info("Dev mode: using the sample source only.")
		return []platforms.Source{dev.NewPoller(opts("dev"))}, nil
	}

	var sources []platforms.Source
	for _, name := range sourceNames {
		if !viper.GetBool("sources." + name + ".enabled") {
			utils.Log.Debugf("Skipping %s: disabled in config.", name)
			continue
		}

		switch name {
		case "codechef":
			sources = append(sources, codechef.NewPoller(opts(name)))
		case "codeforces":
			sources = append(sources, codeforces.NewPoller(opts(name)))
		case "gfg":
			sources = append(sources, gfg.NewPoller(opts(name), gfgLocation()))
		case "leetcode":
			sources = append(sources, leetcode.NewPoller(opts(name)))
		case "hackerearth":
			sources = append(sources, hackerearth.NewPoller(opts(name),
				viper.GetInt("sources.hackerearth.max_details"),
				viper.GetInt("sources.hackerearth.concurrency")))
		case "atcoder":
			sources = append(sources, atcoder.NewPoller(opts(name)))
		case "hackerrank":
			sources = append(sources, hackerrank.NewPoller(opts(name)))
		case "clist":
			user := viper.GetString("sources.clist.username")
			key := viper.GetString("sources.clist.api_key")
			if user == "" || key == "" {
				utils.Log.Info("Skipping CLIST: username or api_key not found in config.")
				continue
			}
			sources = append(sources, clist.NewPoller(opts(name), user, key, configList("sources.clist.resources")))
		case "spoj":
			sources = append(sources, spoj.NewPoller(opts(name)))
		}
	}
	return sources, nil
}

func gfgLocation() *time.Location {
	name := viper.GetString("sources.gfg.timezone")
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		utils.Log.Warnf("Unknown GeeksforGeeks timezone %q, falling back to IST: %v", name, err)
		return nil
	}
	return loc
}

// rankingTable starts from the built-in tiers and overlays the "ranking"
// config section. Keys are read one by one so environment overrides apply.
func rankingTable() (ranking.Table, error) {
	table := ranking.DefaultTable()
	windows := []struct {
		key string
		dst *time.Duration
	}{
		{"ranking.hot_window", &table.HotWindow},
		{"ranking.priority.window", &table.Priority.Window},
		{"ranking.major.window", &table.Major.Window},
	}
	for _, w := range windows {
		d, err := configDuration(w.key, *w.dst)
		if err != nil {
			return table, err
		}
		if d <= 0 {
			return table, fmt.Errorf("%s must be positive, got %s", w.key, d)
		}
		*w.dst = d
	}
	table.Priority.Platforms = configList("ranking.priority.platforms")
	table.Major.Platforms = configList("ranking.major.platforms")
	table.Special = configList("ranking.special")
	return table, nil
}

// pipeline is the aggregator behind its cache, as every command uses it.
type pipeline struct {
	agg     *aggregator.Aggregator
	cache   *cache.Cache
	metrics *metrics.Metrics
	redis   *redis.Client
}

func newPipeline(ctx context.Context, cmd *cobra.Command, m *metrics.Metrics) (*pipeline, error) {
	sources, err := buildSources(cmd)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		utils.Log.Warn("No sources enabled. Check the sources section of ~/.contestscope.yaml")
	}

	p := &pipeline{
		agg: aggregator.New(sources, aggregator.Options{
			Log:     utils.ComponentLog("aggregator"),
			Metrics: m,
		}),
		metrics: m,
	}

	cacheOpts := cache.Options{
		Log:     utils.ComponentLog("cache"),
		Metrics: m,
	}
	if url := viper.GetString("cache.redis_url"); url != "" {
		client, err := cache.DialRedis(ctx, url)
		if err != nil {
			// The mirror is optional; run with the local cache only.
			utils.Log.Warnf("Redis mirror disabled: %v", err)
		} else {
			p.redis = client
			cacheOpts.Mirror = cache.NewRedisMirror(client, "")
		}
	}
	p.cache = cache.New(viper.GetDuration("cache.window"), cacheOpts)
	return p, nil
}

func (p *pipeline) load(ctx context.Context) (*aggregator.Result, error) {
	return p.agg.Aggregate(ctx), nil
}

// Contests serves the digest runner from the same cache as the API.
func (p *pipeline) Contests(ctx context.Context) ([]contest.Contest, error) {
	res, _, err := p.cache.GetOrLoad(ctx, p.load)
	if err != nil {
		return nil, err
	}
	return res.Contests, nil
}

func (p *pipeline) Close() {
	if p.redis != nil {
		p.redis.Close()
	}
}
