package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dsaquest/contestscope/pkg/aggregator"
	"github.com/dsaquest/contestscope/pkg/metrics"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultWindow = 10 * time.Minute
	flightKey     = "contests"
)

// Entry is the cached aggregation and when it was produced.
type Entry struct {
	Payload   *aggregator.Result `json:"payload"`
	FetchedAt time.Time          `json:"fetchedAt"`
}

// Mirror is an optional second-level store shared between processes.
// Load returns nil, nil when nothing is stored.
type Mirror interface {
	Load(ctx context.Context) (*Entry, error)
	Store(ctx context.Context, e Entry, ttl time.Duration) error
}

// Loader produces a fresh aggregation on a miss.
type Loader func(ctx context.Context) (*aggregator.Result, error)

type Options struct {
	Now     func() time.Time
	Mirror  Mirror
	Log     platforms.Logger
	Metrics *metrics.Metrics
}

// Cache is a single-slot, time-boxed memo in front of the aggregator.
// Concurrent misses share one loader call.
type Cache struct {
	window  time.Duration
	now     func() time.Time
	mirror  Mirror
	log     platforms.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	entry *Entry

	group singleflight.Group
}

func New(window time.Duration, opts Options) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Cache{
		window:  window,
		now:     opts.Now,
		mirror:  opts.Mirror,
		log:     opts.Log,
		metrics: opts.Metrics,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = platforms.NopLogger()
	}
	return c
}

func (c *Cache) Window() time.Duration { return c.window }

// Get returns the cached result while it is younger than the window.
func (c *Cache) Get() (*aggregator.Result, bool) {
	e, ok := c.fresh()
	if !ok {
		return nil, false
	}
	return e.Payload, true
}

// Entry returns the cached entry, fresh or not.
func (c *Cache) Entry() (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return Entry{}, false
	}
	return *c.entry, true
}

func (c *Cache) fresh() (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil || c.now().Sub(c.entry.FetchedAt) > c.window {
		return Entry{}, false
	}
	return *c.entry, true
}

// Set replaces the slot wholesale, stamped with the current time, and
// writes through to the mirror.
func (c *Cache) Set(res *aggregator.Result) {
	e := Entry{Payload: res, FetchedAt: c.now()}
	c.store(e)

	if c.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := c.mirror.Store(ctx, e, c.window); err != nil {
			c.log.Warnf("cache mirror store failed: %v", err)
		}
	}
}

func (c *Cache) store(e Entry) {
	c.mu.Lock()
	c.entry = &e
	c.mu.Unlock()
}

// Invalidate empties the local slot. The mirror expires on its own.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
}

type flightResult struct {
	res    *aggregator.Result
	cached bool
}

// GetOrLoad serves from the cache, then the mirror, and only then runs
// load. At most one load is in flight at a time; concurrent callers wait
// for it and share its result. cached is false whenever load ran.
func (c *Cache) GetOrLoad(ctx context.Context, load Loader) (*aggregator.Result, bool, error) {
	if res, ok := c.Get(); ok {
		c.metrics.ObserveCache("hit")
		return res, true, nil
	}

	v, err, _ := c.group.Do(flightKey, func() (interface{}, error) {
		// The previous flight may have filled the slot while we queued.
		if res, ok := c.Get(); ok {
			c.metrics.ObserveCache("hit")
			return flightResult{res: res, cached: true}, nil
		}
		if e := c.fromMirror(ctx); e != nil {
			c.metrics.ObserveCache("mirror")
			c.store(*e)
			return flightResult{res: e.Payload, cached: true}, nil
		}

		c.metrics.ObserveCache("miss")
		res, err := safeLoad(context.WithoutCancel(ctx), load)
		if err != nil {
			return nil, err
		}
		c.Set(res)
		return flightResult{res: res}, nil
	})
	if err != nil {
		return nil, false, err
	}
	fr := v.(flightResult)
	return fr.res, fr.cached, nil
}

func (c *Cache) fromMirror(ctx context.Context) *Entry {
	if c.mirror == nil {
		return nil
	}
	e, err := c.mirror.Load(ctx)
	if err != nil {
		c.log.Warnf("cache mirror load failed: %v", err)
		return nil
	}
	if e == nil || e.Payload == nil || c.now().Sub(e.FetchedAt) > c.window {
		return nil
	}
	return e
}

func safeLoad(ctx context.Context, load Loader) (res *aggregator.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("aggregation panicked: %v", r)
		}
	}()
	res, err = load(ctx)
	if err == nil && res == nil {
		err = fmt.Errorf("aggregation returned no result")
	}
	return res, err
}
