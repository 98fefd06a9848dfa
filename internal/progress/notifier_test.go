package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalio/medsearch/internal/models"
	"github.com/vitalio/medsearch/pkg/logger"
)

type fakeCache struct {
	snapshots map[string]models.ProcessingUpdate
	err       error
}

func newFakeCache() *fakeCache {
	return &fakeCache{snapshots: make(map[string]models.ProcessingUpdate)}
}

func (c *fakeCache) SaveProgress(_ context.Context, update models.ProcessingUpdate) error {
	if c.err != nil {
		return c.err
	}
	c.snapshots[update.DocumentID] = update
	return nil
}

func TestCacheNotifierSnapshots(t *testing.T) {
	cache := newFakeCache()
	tracker := NewTracker(NewMultiNotifier(
		NewMemoryNotifier(),
		NewCacheNotifier(cache, logger.New("test", "", "")),
	), logger.New("test", "", ""))
	ctx := context.Background()

	require.NoError(t, tracker.Start(ctx, "doc-1", "user-1"))
	require.NoError(t, tracker.Advance(ctx, "doc-1", models.ProcessingStatusChunking, ""))

	// The cache holds the latest snapshot, not the history.
	snap, ok := cache.snapshots["doc-1"]
	require.True(t, ok)
	assert.Equal(t, models.ProcessingStatusChunking, snap.Status)
	assert.Equal(t, StageProgress(models.ProcessingStatusChunking), snap.Progress)

	require.NoError(t, tracker.Advance(ctx, "doc-1", models.ProcessingStatusCompleted, "done"))
	snap = cache.snapshots["doc-1"]
	assert.Equal(t, models.ProcessingStatusCompleted, snap.Status)
	assert.Equal(t, 100, snap.Progress)
}

func TestCacheNotifierDropsErrors(t *testing.T) {
	cache := newFakeCache()
	cache.err = errors.New("redis down")
	notifier := NewCacheNotifier(cache, logger.New("test", "", ""))

	// Cache failures never surface to the caller.
	notifier.Notify(context.Background(), models.ProcessingUpdate{DocumentID: "doc-1"})
	assert.Empty(t, cache.snapshots)
}

func TestMultiNotifierFansOut(t *testing.T) {
	first := NewMemoryNotifier()
	second := NewMemoryNotifier()
	multi := NewMultiNotifier(first, second)

	update := models.ProcessingUpdate{DocumentID: "doc-1", Status: models.ProcessingStatusQueued}
	multi.Notify(context.Background(), update)

	require.Len(t, first.Updates(), 1)
	require.Len(t, second.Updates(), 1)
	assert.Equal(t, update.DocumentID, first.Updates()[0].DocumentID)
}
