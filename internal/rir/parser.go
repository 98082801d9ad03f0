package rir

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/jfs415/ip2asn2cc/internal/domain"
)

const (
	DefaultParseTimeout = 5 * time.Minute

	ctxCheckEvery = 1024
	maxLineBytes  = 1 << 20
)

// ErrMalformedLine marks a matched line whose fields cannot be typed. Only that
// line is dropped.
var ErrMalformedLine = errors.New("rir: malformed delegation line")

// Patterns holds one compiled line pattern per desired country, keyed by the
// upper-cased country code.
type Patterns map[string]*regexp.Regexp

// CountryPattern builds the line pattern for one country. The country code is
// quoted, so any caller supplied string compiles.
func CountryPattern(countryCode string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)^(\w+)\|(` + regexp.QuoteMeta(countryCode) +
		`)\|(ipv4|ipv6|asn)\|([^|]+)\|([^|]+)\|([^|]*)\|(allocated|assigned)(\|.*)?$`)
}

// NewPatterns compiles patterns for every non-empty, distinct country code.
func NewPatterns(countries []string) (Patterns, error) {
	patterns := make(Patterns, len(countries))
	for _, cc := range countries {
		cc = strings.TrimSpace(cc)
		if cc == "" {
			continue
		}
		key := strings.ToUpper(cc)
		if _, found := patterns[key]; found {
			continue
		}
		re, err := CountryPattern(cc)
		if err != nil {
			return nil, fmt.Errorf("rir: compile pattern for %q: %w", cc, err)
		}
		patterns[key] = re
	}
	return patterns, nil
}

// ParseLine matches line against the country patterns. The country column is
// single valued, so at most one pattern applies. matched is false for lines of
// other countries, statuses or families; err wraps ErrMalformedLine when a
// matching line carries unusable fields.
func ParseLine(line string, patterns Patterns) (rec domain.DelegationRecord, matched bool, err error) {
	line = strings.TrimRight(line, "\r")
	fields := strings.SplitN(line, "|", 3)
	if len(fields) < 3 {
		return rec, false, nil
	}
	re, found := patterns[strings.ToUpper(fields[1])]
	if !found {
		return rec, false, nil
	}

	m := re.FindStringSubmatch(line)
	if m == nil {
		return rec, false, nil
	}

	family, _ := domain.ParseFamily(m[3])
	size, err := strconv.ParseUint(m[5], 10, 64)
	if err != nil {
		return rec, true, fmt.Errorf("%w: value %q is not numeric", ErrMalformedLine, m[5])
	}
	if family == domain.FamilyIPv6 && size > 128 {
		return rec, true, fmt.Errorf("%w: ipv6 prefix length %d", ErrMalformedLine, size)
	}

	return domain.DelegationRecord{
		Registry:    m[1],
		CountryCode: m[2],
		Family:      family,
		Key:         m[4],
		Size:        size,
		Date:        m[6],
		Status:      strings.ToLower(m[7]),
	}, true, nil
}

// ParseStats counts what a parse phase produced.
type ParseStats struct {
	Files   int
	Failed  int
	Records int64
	Skipped int64
}

// Parser parses fetched files concurrently.
type Parser struct {
	Workers int
	Timeout time.Duration
}

// ParseAll parses every file against the country patterns and sends each
// record on out. It waits for all files or for Timeout, whichever comes first;
// the returned error is the deadline or cancellation cause and is not fatal,
// whatever was sent before it stands. A file that cannot be read contributes no
// records and is only logged. out is never closed by ParseAll.
func (p *Parser) ParseAll(ctx context.Context, files []FetchedFile, patterns Patterns, out chan<- domain.DelegationRecord) (ParseStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultParseTimeout
	}
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	parseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		records atomic.Int64
		skipped atomic.Int64
		failed  atomic.Int64
	)

	var g errgroup.Group
	g.SetLimit(workers)

	for _, file := range files {
		file := file
		g.Go(func() error {
			log.Debug("Started parsing RIR file", "path", file.Path, "source", file.Source)
			n, s, err := parseFile(parseCtx, file.Path, patterns, out)
			records.Add(n)
			skipped.Add(s)
			switch {
			case err == nil:
				log.Debug("Finished parsing RIR file", "path", file.Path, "records", n, "skipped", s)
			case parseCtx.Err() != nil:
				log.Debug("Parsing RIR file stopped early", "path", file.Path, "records", n, "error", err)
			default:
				failed.Add(1)
				log.Warn("Error reading RIR file", "path", file.Path, "source", file.Source, "error", err)
			}
			return nil
		})
	}

	_ = g.Wait()

	stats := ParseStats{
		Files:   len(files),
		Failed:  int(failed.Load()),
		Records: records.Load(),
		Skipped: skipped.Load(),
	}

	err := parseCtx.Err()
	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		log.Warn("RIR parse phase hit its deadline, continuing with partial data", "timeout", timeout, "records", stats.Records)
	case err != nil:
		log.Error("The pool to parse the RIR files was interrupted before termination.", "error", err)
	}
	return stats, err
}

func parseFile(ctx context.Context, path string, patterns Patterns, out chan<- domain.DelegationRecord) (records, skipped int64, err error) {
	reader, err := openDelegationFile(path)
	if err != nil {
		return 0, 0, err
	}
	defer reader.Close()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)

	var lineNo int
	for scanner.Scan() {
		lineNo++
		if lineNo%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return records, skipped, err
			}
		}

		rec, matched, err := ParseLine(scanner.Text(), patterns)
		if !matched {
			continue
		}
		if err != nil {
			skipped++
			log.Debug("Skipping RIR line", "path", path, "line", lineNo, "error", err)
			continue
		}

		select {
		case out <- rec:
			records++
		case <-ctx.Done():
			return records, skipped, ctx.Err()
		}
	}

	return records, skipped, scanner.Err()
}
