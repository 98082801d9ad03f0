package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/jfs415/ip2asn2cc/internal/domain"
)

var ErrNotConnected = errors.New("database: not connected")

// RecordIngestion stores run together with its SourceFetch rows.
func RecordIngestion(ctx context.Context, run *domain.IngestionRun) error {
	if DB == nil {
		return ErrNotConnected
	}
	if run == nil {
		return fmt.Errorf("database: nil ingestion run")
	}

	if err := DB.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("database: record ingestion: %w", err)
	}

	log.Debug("Ingestion run recorded", "id", run.ID, "succeeded", run.Succeeded, "sources", len(run.Sources))
	return nil
}

// RecentIngestions returns up to limit runs, newest first, with their sources.
func RecentIngestions(ctx context.Context, limit int) ([]domain.IngestionRun, error) {
	if DB == nil {
		return nil, ErrNotConnected
	}
	if limit <= 0 {
		limit = 10
	}

	var runs []domain.IngestionRun
	err := DB.WithContext(ctx).
		Preload("Sources").
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("database: list ingestions: %w", err)
	}
	return runs, nil
}

// IngestionReporter persists every summary it receives. Failures are logged.
func IngestionReporter(ctx context.Context, summary domain.IngestionSummary) {
	run := summary.Run()
	if err := RecordIngestion(ctx, &run); err != nil {
		log.Warn("Failed to record ingestion run", "error", err)
	}
}
