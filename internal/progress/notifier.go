package progress

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/vitalio/medsearch/internal/models"
	"github.com/vitalio/medsearch/pkg/logger"
)

// KafkaNotifier publishes progress events to a Kafka topic. Delivery is
// fire-and-forget: write failures are logged and dropped, never surfaced to
// the ingestion pipeline.
type KafkaNotifier struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewKafkaNotifier creates a KafkaNotifier around an existing writer.
func NewKafkaNotifier(writer *kafka.Writer, log *logger.Logger) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, log: log}
}

// Notify publishes one progress event keyed by document id.
func (n *KafkaNotifier) Notify(ctx context.Context, update models.ProcessingUpdate) {
	msgBytes, err := json.Marshal(update)
	if err != nil {
		n.log.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to marshal progress update")
		return
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(update.DocumentID),
		Value: msgBytes,
	})
	if err != nil {
		n.log.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
			"document_id": update.DocumentID,
			"status":      update.Status,
		}).Warn("Failed to publish progress update")
	}
}

// Close closes the underlying Kafka writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// ProgressCache stores the latest progress snapshot per document for cheap
// status reads. Satisfied by storage.DupGuard.
type ProgressCache interface {
	SaveProgress(ctx context.Context, update models.ProcessingUpdate) error
}

// CacheNotifier mirrors every progress update into a snapshot cache so
// status polls can be answered without touching MongoDB. Like the Kafka
// sink, cache failures are logged and dropped.
type CacheNotifier struct {
	cache ProgressCache
	log   *logger.Logger
}

// NewCacheNotifier creates a CacheNotifier around a snapshot cache.
func NewCacheNotifier(cache ProgressCache, log *logger.Logger) *CacheNotifier {
	return &CacheNotifier{cache: cache, log: log}
}

// Notify writes the update as the document's current snapshot.
func (n *CacheNotifier) Notify(ctx context.Context, update models.ProcessingUpdate) {
	if err := n.cache.SaveProgress(ctx, update); err != nil {
		n.log.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
			"document_id": update.DocumentID,
			"status":      update.Status,
		}).Warn("Failed to cache progress snapshot")
	}
}

// MultiNotifier fans one update out to several sinks in order.
type MultiNotifier struct {
	sinks []Notifier
}

// NewMultiNotifier creates a MultiNotifier over the given sinks.
func NewMultiNotifier(sinks ...Notifier) *MultiNotifier {
	return &MultiNotifier{sinks: sinks}
}

// Notify forwards the update to every sink.
func (n *MultiNotifier) Notify(ctx context.Context, update models.ProcessingUpdate) {
	for _, sink := range n.sinks {
		sink.Notify(ctx, update)
	}
}

// MemoryNotifier records updates in memory. Used in tests and as a fallback
// when no Kafka sink is configured.
type MemoryNotifier struct {
	mu      sync.Mutex
	updates []models.ProcessingUpdate
}

// NewMemoryNotifier creates an empty MemoryNotifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

// Notify records the update.
func (n *MemoryNotifier) Notify(_ context.Context, update models.ProcessingUpdate) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, update)
}

// Updates returns a copy of all recorded updates.
func (n *MemoryNotifier) Updates() []models.ProcessingUpdate {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.ProcessingUpdate, len(n.updates))
	copy(out, n.updates)
	return out
}

var (
	_ Notifier = (*KafkaNotifier)(nil)
	_ Notifier = (*CacheNotifier)(nil)
	_ Notifier = (*MultiNotifier)(nil)
	_ Notifier = (*MemoryNotifier)(nil)
)
