package platforms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/whttp"
	"github.com/hashicorp/go-retryablehttp"
)

// ErrSourceUnavailable marks a source that could not be read this round:
// network failure, non-2xx status, rejected credentials or a payload that
// does not have the expected shape.
var ErrSourceUnavailable = errors.New("source unavailable")

// Source fetches the running and upcoming contests of one platform.
// Implementations must be safe to call concurrently with other sources and
// must bound their own latency.
type Source interface {
	Name() string
	FetchContests(ctx context.Context) ([]contest.Contest, error)
}

// Logger abstracts logging so adapters can use logrus or nothing at all.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// NopLogger discards everything.
func NopLogger() Logger { return nopLogger{} }

// Options carries what every adapter needs. Zero values are usable.
type Options struct {
	BaseURL string
	Client  *retryablehttp.Client
	Log     Logger
	Now     func() time.Time
}

// WithDefaults fills BaseURL (trailing slash trimmed), Log and Now.
func (o Options) WithDefaults(baseURL string) Options {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.Log == nil {
		o.Log = nopLogger{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	Source string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected HTTP status %d", e.Source, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrSourceUnavailable }

// Fetch sends req and returns the body of a 2xx response. Every other
// outcome is an error wrapping ErrSourceUnavailable.
func Fetch(ctx context.Context, source string, client *retryablehttp.Client, req *whttp.WHTTPReq) (string, error) {
	res, err := whttp.SendHTTPRequest(ctx, req, client)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", source, ErrSourceUnavailable, err)
	}
	if !res.OK() {
		return "", &StatusError{Source: source, Code: res.StatusCode}
	}
	return res.BodyString, nil
}

// Malformed wraps a payload shape problem.
func Malformed(source, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w: %s", source, ErrSourceUnavailable, fmt.Sprintf(format, args...))
}
