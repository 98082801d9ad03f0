package rir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/jfs415/ip2asn2cc/internal/domain"
)

const (
	DefaultWorkers      = 6
	DefaultFetchTimeout = 5 * time.Minute
	DefaultUserAgent    = "ip2asn2cc/1.0"

	maxSourceBytes = 512 << 20 // 512 MiB safety cap
)

// IncompleteError reports that fewer source files were fetched than required.
// No index can be built from a partial fetch.
type IncompleteError struct {
	Expected int
	Obtained int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("rir: just %d RIR databases were downloaded out of %d", e.Obtained, e.Expected)
}

// FetchedFile is a source downloaded into transient storage.
type FetchedFile struct {
	Source string
	Path   string
	Bytes  int64
}

// Fetcher downloads delegation files concurrently into temporary files.
type Fetcher struct {
	Client    *http.Client
	TempDir   string
	Workers   int
	Timeout   time.Duration
	UserAgent string
}

// FetchAll downloads every source with at most Workers requests in flight and
// waits at most Timeout for the batch. A failed source is logged and left out.
// When the number of fetched files differs from len(sources) the files that did
// arrive are still returned, together with an *IncompleteError, so the caller
// can clean them up.
func (f *Fetcher) FetchAll(ctx context.Context, sources []string) ([]FetchedFile, []domain.SourceResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	workers := f.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	files := make([]*FetchedFile, len(sources))
	results := make([]domain.SourceResult, len(sources))

	var g errgroup.Group
	g.SetLimit(workers)

	for i, source := range sources {
		i, source := i, source
		g.Go(func() error {
			results[i].URL = source
			if err := fetchCtx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			file, err := f.fetch(fetchCtx, source)
			if err != nil {
				log.Warn("RIR fetch failed", "source", source, "error", err)
				results[i].Err = err
				return nil
			}
			log.Debug("RIR fetched", "source", source, "bytes", file.Bytes, "path", file.Path)
			results[i].Bytes = file.Bytes
			files[i] = file
			return nil
		})
	}

	_ = g.Wait()

	switch err := fetchCtx.Err(); {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		log.Warn("RIR fetch phase hit its deadline, outstanding downloads abandoned", "timeout", timeout)
	case err != nil:
		log.Error("The pool to download the RIR files was interrupted before termination.", "error", err)
	}

	fetched := make([]FetchedFile, 0, len(sources))
	for _, file := range files {
		if file != nil {
			fetched = append(fetched, *file)
		}
	}

	if len(fetched) != len(sources) {
		return fetched, results, &IncompleteError{Expected: len(sources), Obtained: len(fetched)}
	}
	return fetched, results, nil
}

func (f *Fetcher) fetch(ctx context.Context, source string) (*FetchedFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	userAgent := f.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return writeTempFile(f.TempDir, source, resp.Body)
}

func writeTempFile(dir, source string, data io.Reader) (*FetchedFile, error) {
	tmpFile, err := os.CreateTemp(dir, "delegated-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	fail := func(err error) (*FetchedFile, error) {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return nil, err
	}

	n, err := io.Copy(tmpFile, io.LimitReader(data, maxSourceBytes+1))
	if err != nil {
		return fail(fmt.Errorf("copy data: %w", err))
	}
	if n > maxSourceBytes {
		return fail(fmt.Errorf("response exceeds %d bytes", maxSourceBytes))
	}

	if err := tmpFile.Sync(); err != nil {
		return fail(fmt.Errorf("sync temp file: %w", err))
	}

	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpFile.Name())
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	return &FetchedFile{Source: source, Path: tmpFile.Name(), Bytes: n}, nil
}

// RemoveFiles deletes fetched files. Failures are logged and joined; they never
// invalidate an ingestion.
func RemoveFiles(files []FetchedFile) error {
	var errs []error
	for _, file := range files {
		if err := os.Remove(file.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("Unable to delete file", "path", file.Path, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		log.Debug("Deleted temp files.", "count", len(files))
	}
	return errors.Join(errs...)
}
