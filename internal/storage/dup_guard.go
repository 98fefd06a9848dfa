package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vitalio/medsearch/internal/models"
)

const (
	uploadGuardPrefix   = "medsearch:upload:"
	progressKeyPrefix   = "medsearch:progress:"
	uploadGuardTTL      = 10 * time.Minute
	progressSnapshotTTL = 24 * time.Hour
)

// DupGuard narrows the duplicate-upload race window with a Redis SETNX
// lease keyed by (user, filename, size): two simultaneous uploads of the
// same file contend on the key and only one proceeds. The authoritative
// duplicate check remains the content-hash lookup after extraction; the
// lease only shrinks the window, it does not close it.
//
// The same client also caches the latest progress snapshot per document so
// status polls do not hit MongoDB.
type DupGuard struct {
	client *redis.Client
}

// NewDupGuard creates a DupGuard.
func NewDupGuard(client *redis.Client) *DupGuard {
	return &DupGuard{client: client}
}

// Acquire takes the upload lease. It returns false when another upload of
// the same (user, filename, size) triple is already in flight.
func (g *DupGuard) Acquire(ctx context.Context, userID, filename string, size int64) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.leaseKey(userID, filename, size), time.Now().Unix(), uploadGuardTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire upload lease: %w", err)
	}
	return ok, nil
}

// Release frees the upload lease. Safe to call for a lease that already
// expired.
func (g *DupGuard) Release(ctx context.Context, userID, filename string, size int64) error {
	if err := g.client.Del(ctx, g.leaseKey(userID, filename, size)).Err(); err != nil {
		return fmt.Errorf("failed to release upload lease: %w", err)
	}
	return nil
}

func (g *DupGuard) leaseKey(userID, filename string, size int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%s/%d", userID, filename, size)))
	return uploadGuardPrefix + hex.EncodeToString(sum[:])
}

// SaveProgress caches the latest progress snapshot for a document.
func (g *DupGuard) SaveProgress(ctx context.Context, update models.ProcessingUpdate) error {
	raw, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to serialize progress snapshot: %w", err)
	}
	if err := g.client.Set(ctx, progressKeyPrefix+update.DocumentID, raw, progressSnapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache progress snapshot: %w", err)
	}
	return nil
}

// GetProgress returns the cached progress snapshot, or (nil, nil) when no
// snapshot exists.
func (g *DupGuard) GetProgress(ctx context.Context, documentID string) (*models.ProcessingUpdate, error) {
	raw, err := g.client.Get(ctx, progressKeyPrefix+documentID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress snapshot: %w", err)
	}
	var update models.ProcessingUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil, fmt.Errorf("failed to decode progress snapshot: %w", err)
	}
	return &update, nil
}

// DropProgress removes the cached snapshot, used when a document is deleted.
func (g *DupGuard) DropProgress(ctx context.Context, documentID string) error {
	return g.client.Del(ctx, progressKeyPrefix+documentID).Err()
}
