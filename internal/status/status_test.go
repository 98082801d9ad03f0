package status

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jfs415/ip2asn2cc/internal/domain"
)

type fakeRedis struct {
	values map[string][]byte
	ttls   map[string]time.Duration
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetEx(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = value.([]byte)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	value, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(value), nil)
}

func TestPublishStoresSnapshot(t *testing.T) {
	client := newFakeRedis()
	summary := domain.IngestionSummary{
		Countries:  []string{"US"},
		Policy:     "include",
		Expected:   5,
		Fetched:    5,
		IPv4Blocks: 12,
		IPv6Blocks: 3,
		ASNs:       7,
	}

	if err := Publish(context.Background(), client, summary, time.Hour); err != nil {
		t.Fatalf("Publish returned %v", err)
	}
	if client.ttls[DefaultKey] != time.Hour {
		t.Fatalf("ttl = %s, want 1h", client.ttls[DefaultKey])
	}

	var stored map[string]any
	if err := json.Unmarshal(client.values[DefaultKey], &stored); err != nil {
		t.Fatalf("stored value is not JSON: %v", err)
	}
	if stored["ready"] != true || stored["ipv4_blocks"] != float64(12) {
		t.Fatalf("unexpected snapshot %v", stored)
	}
	if _, ok := stored["error"]; ok {
		t.Fatal("successful snapshot carries an error field")
	}

	snapshot, err := Latest(context.Background(), client, "")
	if err != nil {
		t.Fatalf("Latest returned %v", err)
	}
	if !snapshot.Ready || snapshot.ASNs != 7 || snapshot.Countries[0] != "US" || snapshot.Instance == "" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestPublishFailedIngestion(t *testing.T) {
	client := newFakeRedis()
	summary := domain.IngestionSummary{Expected: 5, Fetched: 3, Err: errors.New("rir: just 3 RIR databases were downloaded out of 5")}

	Reporter(client, "custom:key", 0)(context.Background(), summary)

	snapshot, err := Latest(context.Background(), client, "custom:key")
	if err != nil {
		t.Fatalf("Latest returned %v", err)
	}
	if snapshot.Ready || snapshot.Error == "" || snapshot.Fetched != 3 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if client.ttls["custom:key"] != DefaultTTL {
		t.Fatalf("ttl = %s, want default", client.ttls["custom:key"])
	}
}

func TestLatestWithoutStatus(t *testing.T) {
	if _, err := Latest(context.Background(), newFakeRedis(), ""); !errors.Is(err, ErrNoStatus) {
		t.Fatalf("err = %v, want ErrNoStatus", err)
	}
}

func TestPublishPropagatesRedisErrors(t *testing.T) {
	client := newFakeRedis()
	client.err = errors.New("connection refused")

	if err := Publish(context.Background(), client, domain.IngestionSummary{}, time.Minute); err == nil {
		t.Fatal("expected an error")
	}
	if err := Publish(context.Background(), nil, domain.IngestionSummary{}, time.Minute); err == nil {
		t.Fatal("expected an error for a nil client")
	}
}
