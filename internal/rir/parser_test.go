package rir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/jfs415/ip2asn2cc/internal/domain"
)

const samplePath = "testdata/delegated-sample.txt"

func TestParseLine(t *testing.T) {
	patterns, err := NewPatterns([]string{"US", "ch"})
	if err != nil {
		t.Fatalf("NewPatterns: %v", err)
	}

	cases := []struct {
		name      string
		line      string
		matched   bool
		malformed bool
		want      domain.DelegationRecord
	}{
		{
			name:    "ipv4 allocated with extension",
			line:    "arin|US|ipv4|8.0.0.0|16777216|19921201|allocated|e5e3b9865caf58bc",
			matched: true,
			want:    domain.DelegationRecord{Registry: "arin", CountryCode: "US", Family: domain.FamilyIPv4, Key: "8.0.0.0", Size: 16777216, Date: "19921201", Status: "allocated"},
		},
		{
			name:    "lower case country",
			line:    "ripencc|ch|ipv6|2001:1620::|32|20010925|assigned",
			matched: true,
			want:    domain.DelegationRecord{Registry: "ripencc", CountryCode: "ch", Family: domain.FamilyIPv6, Key: "2001:1620::", Size: 32, Date: "20010925", Status: "assigned"},
		},
		{
			name:    "asn",
			line:    "arin|US|asn|3356|1|20000315|assigned\r",
			matched: true,
			want:    domain.DelegationRecord{Registry: "arin", CountryCode: "US", Family: domain.FamilyASN, Key: "3356", Size: 1, Date: "20000315", Status: "assigned"},
		},
		{name: "other country", line: "arin|CA|ipv4|24.48.0.0|131072|20010323|allocated"},
		{name: "reserved status", line: "arin|US|ipv4|198.51.100.0|256|20200101|reserved"},
		{name: "summary", line: "arin|*|asn|*|3|summary"},
		{name: "header", line: "2|arin|1712345678|12|19700101|20240101|-0500"},
		{name: "comment", line: "# delegated-arin-extended"},
		{name: "prefix of another status", line: "arin|US|ipv4|8.0.0.0|256|20200101|allocatedx"},
		{name: "non numeric value", line: "arin|US|ipv4|192.0.2.0|lots|20200101|allocated", matched: true, malformed: true},
		{name: "ipv6 prefix too long", line: "arin|US|ipv6|2001:db8::|200|20200101|allocated", matched: true, malformed: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, matched, err := ParseLine(tc.line, patterns)
			if matched != tc.matched {
				t.Fatalf("matched = %v, want %v", matched, tc.matched)
			}
			if tc.malformed {
				if !errors.Is(err, ErrMalformedLine) {
					t.Fatalf("err = %v, want ErrMalformedLine", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if matched && rec != tc.want {
				t.Fatalf("record = %+v, want %+v", rec, tc.want)
			}
		})
	}
}

func TestNewPatternsEscapesCountryCodes(t *testing.T) {
	patterns, err := NewPatterns([]string{"U.", "(", " us ", "US", ""})
	if err != nil {
		t.Fatalf("NewPatterns: %v", err)
	}
	if len(patterns) != 3 {
		t.Fatalf("expected 3 distinct patterns, got %d", len(patterns))
	}

	// "U." must not act as a wildcard for "US"
	only, _ := NewPatterns([]string{"U."})
	if _, matched, _ := ParseLine("arin|US|ipv4|8.0.0.0|256|20200101|allocated", only); matched {
		t.Fatal("escaped pattern U. matched country US")
	}
	if _, matched, _ := ParseLine("arin|U.|ipv4|8.0.0.0|256|20200101|allocated", only); !matched {
		t.Fatal("escaped pattern U. did not match its literal country")
	}
}

func TestParseAllFunnelsRecords(t *testing.T) {
	dir := t.TempDir()
	plain := copyFixture(t, dir)
	gz := writeCompressed(t, dir, "gzip")
	zst := writeCompressed(t, dir, "zstd")
	missing := filepath.Join(dir, "missing")

	patterns, err := NewPatterns([]string{"US"})
	if err != nil {
		t.Fatalf("NewPatterns: %v", err)
	}

	files := []FetchedFile{
		{Source: "plain", Path: plain},
		{Source: "gzip", Path: gz},
		{Source: "zstd", Path: zst},
		{Source: "missing", Path: missing},
	}

	out := make(chan domain.DelegationRecord)
	collected := make(chan []domain.DelegationRecord)
	go func() {
		var recs []domain.DelegationRecord
		for rec := range out {
			recs = append(recs, rec)
		}
		collected <- recs
	}()

	p := &Parser{Workers: 2, Timeout: time.Minute}
	stats, err := p.ParseAll(context.Background(), files, patterns, out)
	close(out)
	recs := <-collected

	if err != nil {
		t.Fatalf("ParseAll returned %v", err)
	}
	// 6 US records per file: 3 ipv4 (one lower-case "us"), 1 ipv6, 2 asn
	if stats.Records != 18 || len(recs) != 18 {
		t.Fatalf("records = %d (%d collected), want 18", stats.Records, len(recs))
	}
	if stats.Skipped != 6 {
		t.Fatalf("skipped = %d, want 6", stats.Skipped)
	}
	if stats.Failed != 1 {
		t.Fatalf("failed = %d, want 1", stats.Failed)
	}

	var keys []string
	for _, rec := range recs {
		if rec.CountryCode != "US" && rec.CountryCode != "us" {
			t.Fatalf("unexpected country %q in %+v", rec.CountryCode, rec)
		}
		keys = append(keys, rec.Key)
	}
	sort.Strings(keys)
	if keys[0] != "23.0.0.0" {
		t.Fatalf("unexpected first key %q", keys[0])
	}
}

func TestParseAllDeadlineIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	plain := copyFixture(t, dir)
	patterns, _ := NewPatterns([]string{"US"})

	// nobody reads out, so the worker blocks until the deadline
	out := make(chan domain.DelegationRecord)
	p := &Parser{Workers: 1, Timeout: 50 * time.Millisecond}

	stats, err := p.ParseAll(context.Background(), []FetchedFile{{Path: plain}}, patterns, out)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if stats.Records != 0 || stats.Failed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func copyFixture(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(samplePath)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	path := filepath.Join(dir, "plain")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func writeCompressed(t *testing.T, dir, algo string) string {
	t.Helper()
	data, err := os.ReadFile(samplePath)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	path := filepath.Join(dir, algo)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	switch algo {
	case "gzip":
		w := gzip.NewWriter(f)
		if _, err := w.Write(data); err != nil {
			t.Fatalf("gzip write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("gzip close: %v", err)
		}
	case "zstd":
		w, err := zstd.NewWriter(f)
		if err != nil {
			t.Fatalf("zstd writer: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zstd write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("zstd close: %v", err)
		}
	}
	return path
}
