// Package ip2asn2cc decides whether an IP address or an autonomous system
// number belongs to a set of countries, using the delegation statistics
// published by the five Regional Internet Registries.
//
// New downloads and parses the registry files once and returns a read-only
// Checker:
//
//	checker, err := ip2asn2cc.New(ctx, []string{"US"}, ip2asn2cc.WithFilterPolicy(ip2asn2cc.ExcludeCountryCodes))
//	if err != nil {
//		return err
//	}
//	allowed := checker.IsCountryMatch(remoteAddr)
package ip2asn2cc

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jfs415/ip2asn2cc/internal/domain"
	"github.com/jfs415/ip2asn2cc/internal/index"
	"github.com/jfs415/ip2asn2cc/internal/rir"
	"github.com/jfs415/ip2asn2cc/internal/support"
)

type (
	FilterPolicy     = domain.FilterPolicy
	IPv4Block        = domain.IPv4Block
	IPv6Block        = domain.IPv6Block
	IngestionSummary = domain.IngestionSummary
	SourceResult     = domain.SourceResult
	AddressValidator = support.AddressValidator
)

const (
	IncludeCountryCodes = domain.IncludeCountryCodes
	ExcludeCountryCodes = domain.ExcludeCountryCodes

	// Unknown is the country reported for addresses no registry block covers.
	Unknown = domain.UnknownCountry
)

// IngestionIncompleteError is returned by New when not every registry file
// could be downloaded.
type IngestionIncompleteError = rir.IncompleteError

var (
	// LoopbackIPv4 is 127.0.0.0/8 (RFC 3330), attributed to US.
	LoopbackIPv4 = IPv4Block{Base: "127.0.0.0", AddressCount: 16777214, CountryCode: "US"}
	// LoopbackIPv6 is ::1/128 (RFC 4291), attributed to US.
	LoopbackIPv6 = IPv6Block{Base: "0:0:0:0:0:0:0:1", PrefixLength: 128, CountryCode: "US"}
)

const recordBuffer = 4096

// Checker answers country and ASN membership queries. All methods are safe for
// concurrent use.
type Checker struct {
	query     domain.QueryConfig
	validator support.AddressValidator

	ipv4 *index.IPv4
	ipv6 *index.IPv6
	asns *index.ASN

	summary domain.IngestionSummary
}

// Stats are the entry counts of a built Checker.
type Stats struct {
	Sources    int
	IPv4Blocks int
	IPv6Blocks int
	ASNs       int
}

// New fetches every registry file, indexes the records of the given countries
// and returns the ready Checker. It fails only with *IngestionIncompleteError;
// unreadable files, malformed lines and a parse phase that runs out of time
// just leave the indices smaller.
func New(ctx context.Context, countries []string, opts ...Option) (*Checker, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := defaultConfig(countries)
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Checker{
		query:     cfg.query,
		validator: cfg.validator,
		ipv4:      index.NewIPv4(),
		ipv6:      index.NewIPv6(),
		asns:      index.NewASN(),
	}
	c.summary = domain.IngestionSummary{
		Countries: append([]string(nil), cfg.query.Countries...),
		Policy:    cfg.query.Policy.String(),
		Expected:  len(cfg.sources),
		StartedAt: time.Now().UTC(),
	}

	patterns, err := rir.NewPatterns(cfg.query.Countries)
	if err != nil {
		return nil, err
	}

	client := cfg.client
	if client == nil {
		if client, err = rir.NewHTTPClient(""); err != nil {
			return nil, err
		}
	}

	fetcher := &rir.Fetcher{
		Client:    client,
		TempDir:   cfg.tempDir,
		Workers:   cfg.workers,
		Timeout:   cfg.fetchTimeout,
		UserAgent: cfg.userAgent,
	}
	files, results, err := fetcher.FetchAll(ctx, cfg.sources)
	c.summary.Sources = results
	c.summary.Fetched = len(files)
	if err != nil {
		log.Error("RIR ingestion incomplete", "expected", len(cfg.sources), "fetched", len(files), "error", err)
		_ = cfg.removeFiles(files)
		c.finish(ctx, cfg.reporters, err)
		return nil, err
	}

	parser := &rir.Parser{Workers: cfg.workers, Timeout: cfg.parseTimeout}
	stats := c.ingest(ctx, parser, files, patterns)
	c.summary.Records = stats.Records
	c.summary.Skipped = stats.Skipped

	if cfg.query.IncludeIPv4Loopback {
		if _, err := c.ipv4.Add(LoopbackIPv4); err != nil {
			log.Warn("Failed to add IPv4 loopback block", "error", err)
		}
	}
	if cfg.query.IncludeIPv6Loopback {
		if _, err := c.ipv6.Add(LoopbackIPv6); err != nil {
			log.Warn("Failed to add IPv6 loopback block", "error", err)
		}
	}

	if err := cfg.removeFiles(files); err != nil {
		log.Warn("Some RIR files were left behind", "error", err)
	}

	c.finish(ctx, cfg.reporters, nil)
	log.Info("Parsed all RIR files",
		"countries", cfg.query.Countries,
		"records", stats.Records,
		"skipped", stats.Skipped,
		"ipv4_blocks", c.summary.IPv4Blocks,
		"ipv6_blocks", c.summary.IPv6Blocks,
		"asns", c.summary.ASNs,
	)
	return c, nil
}

// ingest runs the parse phase and folds every record into the indices from a
// single consumer goroutine. Records the indices reject count as skipped.
func (c *Checker) ingest(ctx context.Context, parser *rir.Parser, files []rir.FetchedFile, patterns rir.Patterns) rir.ParseStats {
	records := make(chan domain.DelegationRecord, recordBuffer)
	done := make(chan struct{})

	var rejected int64
	go func() {
		defer close(done)
		for rec := range records {
			if !c.absorb(rec) {
				rejected++
			}
		}
	}()

	stats, err := parser.ParseAll(ctx, files, patterns, records)
	close(records)
	<-done

	stats.Records -= rejected
	stats.Skipped += rejected

	if err != nil {
		log.Warn("Continuing with partially parsed RIR data", "error", err)
	}
	return stats
}

// absorb adds rec to its index and reports whether the index accepted it.
func (c *Checker) absorb(rec domain.DelegationRecord) bool {
	block, ok := rec.Block()
	if !ok {
		c.asns.Add(rec.Key)
		return true
	}

	var err error
	switch b := block.(type) {
	case domain.IPv4Block:
		_, err = c.ipv4.Add(b)
	case domain.IPv6Block:
		_, err = c.ipv6.Add(b)
	}
	if err != nil {
		log.Warn("Skipping RIR record", "registry", rec.Registry, "family", rec.Family, "start", rec.Key, "size", rec.Size, "error", err)
		return false
	}
	return true
}

func (c *Checker) finish(ctx context.Context, reporters []Reporter, err error) {
	c.summary.IPv4Blocks = c.ipv4.Len()
	c.summary.IPv6Blocks = c.ipv6.Len()
	c.summary.ASNs = c.asns.Len()
	c.summary.Err = err
	c.summary.FinishedAt = time.Now().UTC()

	for _, report := range reporters {
		report(ctx, c.summary)
	}
}

// CountryCode returns the country of the registry block covering ip. IPv4 is
// probed first; invalid literals and uncovered addresses yield Unknown.
func (c *Checker) CountryCode(ip string) string {
	log.Debug("Check for", "address", ip)

	if c.validator.IsValidIPv4(ip) {
		if country, found := c.ipv4.Lookup(ip); found {
			return country
		}
	}
	if c.validator.IsValidIPv6(ip) {
		if country, found := c.ipv6.Lookup(ip); found {
			return country
		}
	}
	return Unknown
}

// IsCountryMatch reports whether ip passes the filter: under
// IncludeCountryCodes when it belongs to a selected country, under
// ExcludeCountryCodes when it does not. Invalid literals never match.
func (c *Checker) IsCountryMatch(ip string) bool {
	log.Debug("Check for", "address", ip)

	if !support.IsValidAddress(c.validator, ip) {
		return false
	}
	member := (c.validator.IsValidIPv4(ip) && c.ipv4.Contains(ip)) ||
		(c.validator.IsValidIPv6(ip) && c.ipv6.Contains(ip))
	return c.query.Policy.Apply(member)
}

// IsAsnMatch applies the filter to an ASN. The comparison is textual: query
// with the form used in the registry files, e.g. "3356". An empty asn never
// matches, under ExcludeCountryCodes too.
func (c *Checker) IsAsnMatch(asn string) bool {
	log.Debug("Check for", "asn", asn)

	if asn == "" {
		return false
	}
	return c.query.Policy.Apply(c.asns.Contains(asn))
}

// Policy returns the filter policy the Checker was built with.
func (c *Checker) Policy() FilterPolicy {
	return c.query.Policy
}

// Stats returns the current index sizes and the number of fetched files.
func (c *Checker) Stats() Stats {
	return Stats{
		Sources:    c.summary.Fetched,
		IPv4Blocks: c.ipv4.Len(),
		IPv6Blocks: c.ipv6.Len(),
		ASNs:       c.asns.Len(),
	}
}

// Summary describes the ingestion run that built the Checker.
func (c *Checker) Summary() IngestionSummary {
	return c.summary
}
