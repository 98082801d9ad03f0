package ip2asn2cc

import (
	"context"
	"net/http"
	"time"

	"github.com/jfs415/ip2asn2cc/internal/domain"
	"github.com/jfs415/ip2asn2cc/internal/rir"
	"github.com/jfs415/ip2asn2cc/internal/support"
)

// Reporter receives the summary of every ingestion run, successful or not.
type Reporter func(ctx context.Context, summary IngestionSummary)

type config struct {
	query        domain.QueryConfig
	sources      []string
	client       *http.Client
	workers      int
	fetchTimeout time.Duration
	parseTimeout time.Duration
	tempDir      string
	userAgent    string
	validator    AddressValidator
	reporters    []Reporter
	removeFiles  func([]rir.FetchedFile) error
}

// Option customizes a Checker built by New.
type Option func(*config)

func defaultConfig(countries []string) config {
	return config{
		query:        domain.DefaultQueryConfig(countries),
		sources:      rir.DefaultSources(),
		workers:      rir.DefaultWorkers,
		fetchTimeout: rir.DefaultFetchTimeout,
		parseTimeout: rir.DefaultParseTimeout,
		userAgent:    rir.DefaultUserAgent,
		validator:    support.DefaultAddressValidator,
		removeFiles:  rir.RemoveFiles,
	}
}

// WithFilterPolicy selects include or exclude semantics. Default include.
func WithFilterPolicy(policy FilterPolicy) Option {
	return func(cfg *config) {
		cfg.query.Policy = policy
	}
}

// WithLoopback toggles the synthetic 127.0.0.0 and ::1 entries.
func WithLoopback(ipv4, ipv6 bool) Option {
	return func(cfg *config) {
		cfg.query.IncludeIPv4Loopback = ipv4
		cfg.query.IncludeIPv6Loopback = ipv6
	}
}

// WithSources replaces the registry files to download. Every one of them must
// be fetched for New to succeed.
func WithSources(sources ...string) Option {
	return func(cfg *config) {
		cfg.sources = append([]string(nil), sources...)
	}
}

// WithHTTPClient sets the client used for registry downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *config) {
		cfg.client = client
	}
}

// WithWorkers bounds both the fetch and the parse pool.
func WithWorkers(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.workers = n
		}
	}
}

// WithFetchTimeout bounds the whole download phase.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.fetchTimeout = d
		}
	}
}

// WithParseTimeout bounds the parse phase. Hitting it is not an error.
func WithParseTimeout(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.parseTimeout = d
		}
	}
}

// WithTempDir sets where downloads are stored while parsing. Defaults to
// os.TempDir.
func WithTempDir(dir string) Option {
	return func(cfg *config) {
		cfg.tempDir = dir
	}
}

// WithUserAgent sets the User-Agent header of registry downloads.
func WithUserAgent(ua string) Option {
	return func(cfg *config) {
		if ua != "" {
			cfg.userAgent = ua
		}
	}
}

// WithValidator replaces the address syntax check applied to every query.
func WithValidator(v AddressValidator) Option {
	return func(cfg *config) {
		if v != nil {
			cfg.validator = v
		}
	}
}

// WithReporter adds a callback that receives the summary of the ingestion.
func WithReporter(r Reporter) Option {
	return func(cfg *config) {
		if r != nil {
			cfg.reporters = append(cfg.reporters, r)
		}
	}
}
