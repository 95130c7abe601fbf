package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/tradeledger/internal/domain"
)

// Deduplicator records handled event ids as expiring markers so a
// redelivered event can be recognised after a consumer restart.
type Deduplicator struct {
	client *Client
}

// NewDeduplicator creates a Deduplicator backed by the given Client.
func NewDeduplicator(c *Client) *Deduplicator {
	return &Deduplicator{client: c}
}

func processedKey(id string) string {
	return "processed:" + id
}

// Processed reports whether eventID has a live marker.
func (d *Deduplicator) Processed(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.rdb.Exists(ctx, d.client.key(processedKey(eventID))).Result()
	if err != nil {
		return false, fmt.Errorf("redis: check processed %s: %w", eventID, err)
	}
	return n > 0, nil
}

// MarkProcessed writes the marker for eventID with the given ttl.
func (d *Deduplicator) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	err := d.client.rdb.Set(ctx, d.client.key(processedKey(eventID)), time.Now().UTC().Format(time.RFC3339Nano), ttl).Err()
	if err != nil {
		return fmt.Errorf("redis: mark processed %s: %w", eventID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.Deduplicator = (*Deduplicator)(nil)
