// Package cache provides the short-TTL Redis read-through cache in front of
// latest-snapshot reads, and the token bucket bounding outbound scrape
// request rate per source host.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/internal/domain"
)

// SnapshotTTL keeps latest-snapshot reads fresh enough for the analyst UI
// while absorbing its refresh storms between scrape ticks.
const SnapshotTTL = 10 * time.Second

// Snapshots is the latest-snapshot read-through cache.
type Snapshots struct {
	client *redis.Client
}

// NewSnapshots builds the snapshot cache over a shared Redis client.
func NewSnapshots(client *redis.Client) *Snapshots {
	return &Snapshots{client: client}
}

func snapshotKey(eventID, bookmakerID int64) string {
	return fmt.Sprintf("snapshot:latest:%d:%d", eventID, bookmakerID)
}

// Get returns the cached latest snapshot for (event, bookmaker), or nil on
// miss. Redis and decode failures are returned as errors; the history service
// treats them as a miss and reads the DB, which remains the source of truth.
func (c *Snapshots) Get(ctx context.Context, eventID, bookmakerID int64) (*domain.Snapshot, error) {
	data, err := c.client.Get(ctx, snapshotKey(eventID, bookmakerID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling cached snapshot: %w", err)
	}
	return &snap, nil
}

// Set stores the latest snapshot for its (event, bookmaker) pair.
func (c *Snapshots) Set(ctx context.Context, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	return c.client.Set(ctx, snapshotKey(snap.EventID, snap.BookmakerID), data, SnapshotTTL).Err()
}

// Invalidate drops the cached entry after a fresh snapshot lands, so the
// next read sees the new observation immediately.
func (c *Snapshots) Invalidate(ctx context.Context, eventID, bookmakerID int64) error {
	return c.client.Del(ctx, snapshotKey(eventID, bookmakerID)).Err()
}
