package domain

import "time"

// SourceResult is the per-source outcome of the fetch phase.
type SourceResult struct {
	URL   string `json:"url"`
	Bytes int64  `json:"bytes"`
	Err   error  `json:"-"`
}

// IngestionSummary describes a finished ingestion run.
type IngestionSummary struct {
	Countries  []string       `json:"countries"`
	Policy     string         `json:"policy"`
	Expected   int            `json:"expected_sources"`
	Fetched    int            `json:"fetched_sources"`
	IPv4Blocks int            `json:"ipv4_blocks"`
	IPv6Blocks int            `json:"ipv6_blocks"`
	ASNs       int            `json:"asns"`
	Records    int64          `json:"records"`
	Skipped    int64          `json:"skipped"`
	Sources    []SourceResult `json:"sources"`
	Err        error          `json:"-"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Run converts the summary into its persisted audit form.
func (s IngestionSummary) Run() IngestionRun {
	run := IngestionRun{
		Countries:  CountryList(append([]string(nil), s.Countries...)),
		Policy:     s.Policy,
		Expected:   s.Expected,
		Fetched:    s.Fetched,
		IPv4Blocks: s.IPv4Blocks,
		IPv6Blocks: s.IPv6Blocks,
		ASNs:       s.ASNs,
		Records:    s.Records,
		Skipped:    s.Skipped,
		Succeeded:  s.Err == nil,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
	if s.Err != nil {
		run.Error = s.Err.Error()
	}
	for _, src := range s.Sources {
		fetch := SourceFetch{URL: src.URL, Succeeded: src.Err == nil, Bytes: src.Bytes}
		if src.Err != nil {
			fetch.Error = src.Err.Error()
		}
		run.Sources = append(run.Sources, fetch)
	}
	return run
}
