package source

import (
	"strings"

	"github.com/ava-labs/chain-monitor/pkg/ratelimiter"
)

type options struct {
	baseURL     string
	limiterOpts []ratelimiter.Option
}

// Option configures a source adapter.
type Option func(*options)

// WithBaseURL points the adapter at a different scheme and host, e.g. a
// caching proxy or a test server. Request paths are unchanged.
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimRight(u, "/")
	}
}

// WithLimiterOptions configures the per-chain limiter of the adapter.
func WithLimiterOptions(opts ...ratelimiter.Option) Option {
	return func(o *options) {
		o.limiterOpts = append(o.limiterOpts, opts...)
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// urlFor returns def unless a base URL override is set, in which case the
// scheme and host of def are replaced by it.
func (o options) urlFor(def string) string {
	if o.baseURL == "" {
		return def
	}
	rest := def
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		return o.baseURL + rest[i:]
	}
	return o.baseURL
}

func cutPair(s string) (string, string, bool) {
	k, v, ok := strings.Cut(s, "=")
	k, v = strings.TrimSpace(k), strings.TrimSpace(v)
	return k, v, ok && k != "" && v != ""
}
