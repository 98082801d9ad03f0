// Package status publishes the outcome of the latest ingestion to redis so
// other processes can tell whether a country index is ready.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/jfs415/ip2asn2cc/internal/domain"
)

const (
	DefaultKey = "ip2asn2cc:status"
	DefaultTTL = 24 * time.Hour
)

var ErrNoStatus = errors.New("status: nothing published yet")

var instanceID = generateInstanceID()

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

// Client is the subset of *redis.Client used here.
type Client interface {
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Snapshot is the JSON document stored under the status key.
type Snapshot struct {
	domain.IngestionSummary
	Ready      bool      `json:"ready"`
	Error      string    `json:"error,omitempty"`
	Instance   string    `json:"instance"`
	ReportedAt time.Time `json:"reported_at"`
}

// Publish stores summary under DefaultKey for ttl.
func Publish(ctx context.Context, client Client, summary domain.IngestionSummary, ttl time.Duration) error {
	return PublishTo(ctx, client, DefaultKey, summary, ttl)
}

func PublishTo(ctx context.Context, client Client, key string, summary domain.IngestionSummary, ttl time.Duration) error {
	if client == nil {
		return fmt.Errorf("status: redis client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	snapshot := Snapshot{
		IngestionSummary: summary,
		Ready:            summary.Err == nil,
		Instance:         instanceID,
		ReportedAt:       time.Now().UTC(),
	}
	if summary.Err != nil {
		snapshot.Error = summary.Err.Error()
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("status: encode snapshot: %w", err)
	}
	if err := client.SetEx(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("status: publish %s: %w", key, err)
	}

	log.Debug("Ingestion status published", "key", key, "ready", snapshot.Ready, "ttl", ttl)
	return nil
}

// Latest reads the snapshot stored under key.
func Latest(ctx context.Context, client Client, key string) (Snapshot, error) {
	if client == nil {
		return Snapshot{}, fmt.Errorf("status: redis client is nil")
	}
	if key == "" {
		key = DefaultKey
	}

	raw, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNoStatus
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("status: read %s: %w", key, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("status: decode snapshot: %w", err)
	}
	return snapshot, nil
}

// Reporter returns an ingestion reporter that publishes every summary under
// key. Failures are logged.
func Reporter(client Client, key string, ttl time.Duration) func(context.Context, domain.IngestionSummary) {
	if key == "" {
		key = DefaultKey
	}
	return func(ctx context.Context, summary domain.IngestionSummary) {
		if err := PublishTo(ctx, client, key, summary, ttl); err != nil {
			log.Warn("Failed to publish ingestion status", "key", key, "error", err)
		}
	}
}
