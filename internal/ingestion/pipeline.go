package ingestion

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vitalio/medsearch/internal/chunker"
	"github.com/vitalio/medsearch/internal/classifier"
	"github.com/vitalio/medsearch/internal/embedding"
	"github.com/vitalio/medsearch/internal/extract"
	"github.com/vitalio/medsearch/internal/models"
	"github.com/vitalio/medsearch/internal/progress"
	"github.com/vitalio/medsearch/pkg/logger"
)

// ErrDuplicateDocument is the failure reason recorded when the extracted
// content already exists for the user.
var ErrDuplicateDocument = errors.New("duplicate document content")

// Job describes one document handed to the pipeline.
type Job struct {
	DocumentID  string
	UserID      string
	Filename    string
	ObjectKey   string
	ContentType string
	FileSize    int64
}

// ObjectFetcher loads the raw uploaded file.
type ObjectFetcher interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// DocumentWriter is the slice of the document store the pipeline mutates.
type DocumentWriter interface {
	FindByContentHash(ctx context.Context, userID, contentHash string) (*models.Document, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	MarkCompleted(ctx context.Context, id string, pageCount, chunkCount, tableCount int) error
	MarkFailed(ctx context.Context, id, reason string) error
}

// ChunkWriter persists chunk rows.
type ChunkWriter interface {
	CreateBatch(ctx context.Context, chunks []models.DocumentChunk) error
}

// TableWriter persists classified table rows.
type TableWriter interface {
	CreateBatch(ctx context.Context, tables []models.MedicalTable) error
}

// VectorWriter persists embeddings.
type VectorWriter interface {
	InsertChunks(ctx context.Context, ids, documentIDs, userIDs []string, vectors [][]float32) error
	InsertTables(ctx context.Context, ids, documentIDs, userIDs []string, categories []models.TableCategory, vectors [][]float32) error
}

// LeaseReleaser frees the upload lease after the job reaches a terminal state.
type LeaseReleaser interface {
	Release(ctx context.Context, userID, filename string, size int64) error
}

// JobRecorder persists the job history record.
type JobRecorder interface {
	Update(ctx context.Context, record *models.ProcessingRecord) error
}

// Pipeline runs the ingestion stages for a single document:
// fetch, extract, dedupe, chunk, embed, store, classify. Per-document work
// is strictly sequential apart from the final dual write of rows and
// vectors; a failure at any stage marks the document failed and stops.
type Pipeline struct {
	objects    ObjectFetcher
	documents  DocumentWriter
	chunks     ChunkWriter
	tables     TableWriter
	vectors    VectorWriter
	guard      LeaseReleaser
	jobs       JobRecorder
	embedder   *embedding.BatchClient
	splitter   *chunker.Splitter
	classifier *classifier.Classifier
	tracker    *progress.Tracker
	log        *logger.Logger
}

// PipelineDeps bundles the pipeline's collaborators.
type PipelineDeps struct {
	Objects    ObjectFetcher
	Documents  DocumentWriter
	Chunks     ChunkWriter
	Tables     TableWriter
	Vectors    VectorWriter
	Guard      LeaseReleaser
	Jobs       JobRecorder
	Embedder   *embedding.BatchClient
	Splitter   *chunker.Splitter
	Classifier *classifier.Classifier
	Tracker    *progress.Tracker
	Log        *logger.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		objects:    deps.Objects,
		documents:  deps.Documents,
		chunks:     deps.Chunks,
		tables:     deps.Tables,
		vectors:    deps.Vectors,
		guard:      deps.Guard,
		jobs:       deps.Jobs,
		embedder:   deps.Embedder,
		splitter:   deps.Splitter,
		classifier: deps.Classifier,
		tracker:    deps.Tracker,
		log:        deps.Log,
	}
}

// Ingest processes one document end to end. The job must already be
// started on the tracker. The returned error mirrors what was recorded on
// the document row; callers use it for logging only.
func (p *Pipeline) Ingest(ctx context.Context, job Job) error {
	err := p.run(ctx, job)
	if err != nil {
		p.fail(job, err.Error())
	}

	// The lease is released on both outcomes; a completed document is
	// guarded by the content hash from here on.
	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rerr := p.guard.Release(releaseCtx, job.UserID, job.Filename, job.FileSize); rerr != nil {
		p.log.WithError(models.ErrorInfo{Message: rerr.Error()}).Warn("Failed to release upload lease")
	}
	return err
}

func (p *Pipeline) run(ctx context.Context, job Job) error {
	// Fetch and extract.
	if err := p.advance(ctx, job, models.ProcessingStatusExtracting, "extracting text"); err != nil {
		return err
	}
	raw, err := p.objects.Get(ctx, job.ObjectKey)
	if err != nil {
		return fmt.Errorf("failed to fetch raw file: %w", err)
	}
	extractor, err := extract.ForMime(job.ContentType)
	if err != nil {
		return err
	}
	result, err := extractor.Extract(ctx, bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	if strings.TrimSpace(result.Text) == "" {
		return errors.New("document contains no extractable text")
	}

	// Authoritative duplicate check on the extracted content.
	sum := sha256.Sum256([]byte(result.Text))
	contentHash := hex.EncodeToString(sum[:])
	existing, err := p.documents.FindByContentHash(ctx, job.UserID, contentHash)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != job.DocumentID {
		return fmt.Errorf("%w: matches document %s", ErrDuplicateDocument, existing.ID)
	}
	if err := p.documents.Update(ctx, job.DocumentID, map[string]interface{}{
		"content_hash": contentHash,
	}); err != nil {
		return err
	}

	// Chunk.
	if err := p.advance(ctx, job, models.ProcessingStatusChunking, "splitting into chunks"); err != nil {
		return err
	}
	tableSpans := chunker.DetectTableSpans(result.Text)
	chunks, err := p.splitter.Split(result.Text, result.PageMap, tableSpans)
	if err != nil {
		return fmt.Errorf("chunking failed: %w", err)
	}

	// Embed.
	if err := p.advance(ctx, job, models.ProcessingStatusEmbedding, "generating embeddings"); err != nil {
		return err
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, tokens, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	p.log.WithPayload(map[string]interface{}{
		"document_id": job.DocumentID,
		"chunks":      len(chunks),
		"tokens":      tokens,
	}).Info("Embeddings generated")

	// Store rows and vectors.
	if err := p.advance(ctx, job, models.ProcessingStatusStoringChunks, "storing chunks"); err != nil {
		return err
	}
	if err := p.storeChunks(ctx, job, chunks, vectors); err != nil {
		return err
	}
	tableCount, err := p.storeTables(ctx, job, result, chunks)
	if err != nil {
		return err
	}

	// Finalize.
	if err := p.documents.MarkCompleted(ctx, job.DocumentID, result.PageCount(), len(chunks), tableCount); err != nil {
		return err
	}
	if err := p.advance(ctx, job, models.ProcessingStatusCompleted, "completed"); err != nil {
		return err
	}
	p.recordJob(job, models.ProcessingStatusCompleted, 100, "")
	return nil
}

// storeChunks writes the relational rows and the vectors. The two writes
// go to independent stores and run concurrently; either failure aborts.
func (p *Pipeline) storeChunks(ctx context.Context, job Job, chunks []chunker.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("have %d chunks but %d vectors", len(chunks), len(vectors))
	}

	rows := make([]models.DocumentChunk, len(chunks))
	ids := make([]string, len(chunks))
	docIDs := make([]string, len(chunks))
	userIDs := make([]string, len(chunks))
	for i, c := range chunks {
		id := uuid.New().String()
		row := models.DocumentChunk{
			ID:         id,
			DocumentID: job.DocumentID,
			ChunkIndex: c.Index,
			Text:       c.Text,
			WordCount:  c.WordCount,
			CharCount:  c.CharCount,
			Embedded:   true,
			CreatedAt:  time.Now(),
		}
		if len(c.Pages) > 0 {
			row.PageNumber = c.Pages[0]
		}
		if err := row.SetMetadata(models.ChunkMetadata{Pages: c.Pages, IsTable: c.IsTable}); err != nil {
			return fmt.Errorf("failed to serialize chunk metadata: %w", err)
		}
		rows[i] = row
		ids[i] = id
		docIDs[i] = job.DocumentID
		userIDs[i] = job.UserID
	}

	return p.dualWrite(ctx,
		func(ctx context.Context) error { return p.chunks.CreateBatch(ctx, rows) },
		func(ctx context.Context) error {
			return p.vectors.InsertChunks(ctx, ids, docIDs, userIDs, vectors)
		},
	)
}

// storeTables classifies explicit table payloads plus table chunks found
// by boundary detection, then persists rows and vectors. Non-medical
// tables are dropped; the drop count is logged, not an error.
func (p *Pipeline) storeTables(ctx context.Context, job Job, result *extract.Result, chunks []chunker.Chunk) (int, error) {
	payloads := make([]extract.TablePayload, 0, len(result.Tables))
	payloads = append(payloads, result.Tables...)

	// Table chunks from free-text boundary detection; explicit payload
	// formats render their tables into the text too, so skip re-parsing
	// when explicit payloads exist.
	if len(payloads) == 0 {
		for _, c := range chunks {
			if !c.IsTable {
				continue
			}
			headers, rows, ok := extract.ParseDelimited(c.Text)
			if !ok {
				continue
			}
			page := 0
			if len(c.Pages) > 0 {
				page = c.Pages[0]
			}
			payloads = append(payloads, extract.TablePayload{Headers: headers, Rows: rows, Page: page})
		}
	}
	if len(payloads) == 0 {
		return 0, nil
	}

	var (
		rows     []models.MedicalTable
		texts    []string
		ids      []string
		docIDs   []string
		userIDs  []string
		cats     []models.TableCategory
		dropped  int
		tableIdx int
	)
	for _, payload := range payloads {
		searchable := p.classifier.SearchableText(payload.Headers, payload.Rows)
		if !p.classifier.IsMedicalTable(payload.Headers, searchable) {
			dropped++
			continue
		}

		category, confidence := p.classifier.Classify(payload.Headers, searchable)
		entities := p.classifier.ExtractEntities(searchable)

		row := models.MedicalTable{
			ID:             uuid.New().String(),
			DocumentID:     job.DocumentID,
			TableIndex:     tableIdx,
			PageNumber:     payload.Page,
			Confidence:     confidence,
			Category:       category,
			SearchableText: searchable,
			CreatedAt:      time.Now(),
		}
		if err := row.SetHeaders(payload.Headers); err != nil {
			return 0, fmt.Errorf("failed to serialize table headers: %w", err)
		}
		if err := row.SetRows(payload.Rows); err != nil {
			return 0, fmt.Errorf("failed to serialize table rows: %w", err)
		}
		if err := row.SetEntities(entities); err != nil {
			return 0, fmt.Errorf("failed to serialize table entities: %w", err)
		}

		rows = append(rows, row)
		texts = append(texts, searchable)
		ids = append(ids, row.ID)
		docIDs = append(docIDs, job.DocumentID)
		userIDs = append(userIDs, job.UserID)
		cats = append(cats, category)
		tableIdx++
	}
	if dropped > 0 {
		p.log.WithPayload(map[string]interface{}{
			"document_id": job.DocumentID,
			"dropped":     dropped,
		}).Info("Dropped non-medical tables")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	vectors, _, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("table embedding failed: %w", err)
	}

	err = p.dualWrite(ctx,
		func(ctx context.Context) error { return p.tables.CreateBatch(ctx, rows) },
		func(ctx context.Context) error {
			return p.vectors.InsertTables(ctx, ids, docIDs, userIDs, cats, vectors)
		},
	)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (p *Pipeline) advance(ctx context.Context, job Job, status models.ProcessingStatus, message string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ingestion canceled: %w", err)
	}
	if err := p.tracker.Advance(ctx, job.DocumentID, status, message); err != nil {
		return err
	}
	if !status.Terminal() {
		p.recordJob(job, status, progress.StageProgress(status), message)
	}
	return nil
}

// fail marks every stateful surface with the terminal failure. Best
// effort: the document row is the source of truth, the rest is telemetry.
func (p *Pipeline) fail(job Job, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.documents.MarkFailed(ctx, job.DocumentID, reason); err != nil {
		p.log.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to mark document failed")
	}

	progressBefore := 0
	if j, ok := p.tracker.Get(job.DocumentID); ok {
		progressBefore = j.Progress
	}
	if err := p.tracker.Fail(ctx, job.DocumentID, reason); err != nil && !errors.Is(err, progress.ErrUnknownJob) {
		p.log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to record tracker failure")
	}
	p.recordJob(job, models.ProcessingStatusFailed, progressBefore, reason)
}

func (p *Pipeline) recordJob(job Job, status models.ProcessingStatus, progressPct int, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record := &models.ProcessingRecord{
		DocumentID: job.DocumentID,
		UserID:     job.UserID,
		Status:     status,
		Progress:   progressPct,
		Message:    message,
	}
	if err := p.jobs.Update(ctx, record); err != nil {
		p.log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to persist job record")
	}
}

// dualWrite runs the relational and vector writes concurrently and joins
// on the first error.
func (p *Pipeline) dualWrite(ctx context.Context, writes ...func(context.Context) error) error {
	eg, gCtx := errgroup.WithContext(ctx)
	for _, w := range writes {
		w := w
		eg.Go(func() error { return w(gCtx) })
	}
	return eg.Wait()
}
