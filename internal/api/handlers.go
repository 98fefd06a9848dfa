package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vitalio/medsearch/internal/extract"
	"github.com/vitalio/medsearch/internal/ingestion"
	"github.com/vitalio/medsearch/internal/models"
	"github.com/vitalio/medsearch/internal/progress"
	"github.com/vitalio/medsearch/internal/retrieval"
	"github.com/vitalio/medsearch/internal/storage"
	"github.com/vitalio/medsearch/pkg/logger"
)

// maxUploadBytes caps a single document upload.
const maxUploadBytes = 64 << 20

// The handlers depend on narrow slices of their collaborators, mirroring
// the consumer interfaces of the ingestion pipeline. The concrete storage
// and ingestion types satisfy them.

// DocumentCatalog is the slice of storage.DocumentStore the handlers use.
type DocumentCatalog interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id, userID string) (*models.Document, error)
	FindByNameAndSize(ctx context.Context, userID, filename string, size int64) (*models.Document, error)
	List(ctx context.Context, userID string, page, limit int) ([]models.Document, int64, error)
	Delete(ctx context.Context, id, userID string) (*models.Document, error)
}

// RawFileStore stores and removes uploaded files.
type RawFileStore interface {
	Key(userID, documentID, filename string) string
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, key string) error
}

// VectorCleaner removes a document's vectors on deletion.
type VectorCleaner interface {
	DeleteByDocument(ctx context.Context, documentID string) error
}

// UploadGuard holds upload leases and progress snapshots.
type UploadGuard interface {
	Acquire(ctx context.Context, userID, filename string, size int64) (bool, error)
	Release(ctx context.Context, userID, filename string, size int64) error
	GetProgress(ctx context.Context, documentID string) (*models.ProcessingUpdate, error)
	DropProgress(ctx context.Context, documentID string) error
}

// IngestionService queues jobs and reports active-job status.
type IngestionService interface {
	Submit(ctx context.Context, job ingestion.Job) error
	Status(documentID string) (progress.Job, bool)
}

// SearchEngine runs retrieval queries.
type SearchEngine interface {
	Search(ctx context.Context, query, userID string, mode retrieval.Mode, opts retrieval.Options) ([]retrieval.Result, error)
}

var (
	_ DocumentCatalog  = (*storage.DocumentStore)(nil)
	_ RawFileStore     = (*storage.ObjectStore)(nil)
	_ VectorCleaner    = (*storage.VectorStore)(nil)
	_ UploadGuard      = (*storage.DupGuard)(nil)
	_ IngestionService = (*ingestion.Service)(nil)
	_ SearchEngine     = (*retrieval.Engine)(nil)
)

// API provides the HTTP handlers for document ingestion and search.
type API struct {
	documents DocumentCatalog
	objects   RawFileStore
	vectors   VectorCleaner
	jobs      storage.JobStore
	guard     UploadGuard
	service   IngestionService
	engine    SearchEngine
	logger    *logger.Logger
}

// Deps bundles the API's collaborators.
type Deps struct {
	Documents DocumentCatalog
	Objects   RawFileStore
	Vectors   VectorCleaner
	Jobs      storage.JobStore
	Guard     UploadGuard
	Service   IngestionService
	Engine    SearchEngine
	Logger    *logger.Logger
}

// NewAPI creates the API handler set.
func NewAPI(deps Deps) *API {
	return &API{
		documents: deps.Documents,
		objects:   deps.Objects,
		vectors:   deps.Vectors,
		jobs:      deps.Jobs,
		guard:     deps.Guard,
		service:   deps.Service,
		engine:    deps.Engine,
		logger:    deps.Logger,
	}
}

// UploadDocumentHandler accepts a multipart document upload, stores the raw
// file and queues ingestion. It replies 202 with the new document id; the
// client follows progress through the status endpoint or the Kafka topic.
func (a *API) UploadDocumentHandler(c *gin.Context) {
	userID := c.GetString("userID")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty file"})
		return
	}

	mt := mimetype.Detect(data)
	if _, err := extract.ForMime(mt.String()); err != nil {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported document format: " + mt.String()})
		return
	}

	ctx := c.Request.Context()
	acquired, err := a.guard.Acquire(ctx, userID, header.Filename, header.Size)
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Upload lease acquisition failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process upload"})
		return
	}
	if !acquired {
		c.JSON(http.StatusConflict, gin.H{"error": "an identical upload is already in progress"})
		return
	}

	// Cheap pre-extraction duplicate signal; the content hash is checked
	// again inside the pipeline after extraction.
	existing, err := a.documents.FindByNameAndSize(ctx, userID, header.Filename, header.Size)
	if err != nil {
		a.releaseGuard(userID, header.Filename, header.Size)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process upload"})
		return
	}
	if existing != nil {
		a.releaseGuard(userID, header.Filename, header.Size)
		c.JSON(http.StatusConflict, gin.H{
			"error":       "document already uploaded",
			"document_id": existing.ID,
		})
		return
	}

	docID := uuid.New().String()
	objectKey := a.objects.Key(userID, docID, header.Filename)
	if err := a.objects.Put(ctx, objectKey, data, mt.String()); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to store raw file")
		a.releaseGuard(userID, header.Filename, header.Size)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	doc := &models.Document{
		ID:        docID,
		UserID:    userID,
		Filename:  header.Filename,
		FileSize:  header.Size,
		ObjectKey: objectKey,
		Status:    models.DocumentStatusProcessing,
	}
	if err := a.documents.Create(ctx, doc); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to create document row")
		a.releaseGuard(userID, header.Filename, header.Size)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register document"})
		return
	}

	record := &models.ProcessingRecord{
		DocumentID: docID,
		UserID:     userID,
		Status:     models.ProcessingStatusQueued,
	}
	if err := a.jobs.Create(ctx, record); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to create job record")
	}

	job := ingestion.Job{
		DocumentID:  docID,
		UserID:      userID,
		Filename:    header.Filename,
		ObjectKey:   objectKey,
		ContentType: mt.String(),
		FileSize:    header.Size,
	}
	if err := a.service.Submit(ctx, job); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to queue ingestion job")
		a.releaseGuard(userID, header.Filename, header.Size)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue document"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"document_id": docID})
}

// GetStatusHandler reports ingestion progress for one document. Active
// jobs answer from the in-memory tracker; finished jobs fall back to the
// job history record.
func (a *API) GetStatusHandler(c *gin.Context) {
	userID := c.GetString("userID")
	docID := c.Param("id")

	doc, err := a.documents.GetByID(c.Request.Context(), docID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve document"})
		return
	}

	if job, ok := a.service.Status(docID); ok {
		c.JSON(http.StatusOK, gin.H{
			"document_id": docID,
			"status":      job.Status,
			"progress":    job.Progress,
			"message":     job.Message,
		})
		return
	}

	if snapshot, err := a.guard.GetProgress(c.Request.Context(), docID); err == nil && snapshot != nil {
		c.JSON(http.StatusOK, gin.H{
			"document_id": docID,
			"status":      snapshot.Status,
			"progress":    snapshot.Progress,
			"message":     snapshot.Message,
		})
		return
	}

	if record, err := a.jobs.GetByID(c.Request.Context(), docID); err == nil && record != nil {
		c.JSON(http.StatusOK, gin.H{
			"document_id": docID,
			"status":      record.Status,
			"progress":    record.Progress,
			"message":     record.Message,
		})
		return
	}

	// No job history; derive a terminal answer from the document row.
	status := models.ProcessingStatusCompleted
	progressPct := progress.StageProgress(models.ProcessingStatusCompleted)
	if doc.Status == models.DocumentStatusFailed {
		status = models.ProcessingStatusFailed
		progressPct = 0
	}
	c.JSON(http.StatusOK, gin.H{
		"document_id": docID,
		"status":      status,
		"progress":    progressPct,
		"message":     doc.Error,
	})
}

// ListDocumentsHandler returns the user's documents, newest first.
func (a *API) ListDocumentsHandler(c *gin.Context) {
	userID := c.GetString("userID")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	docs, total, err := a.documents.List(c.Request.Context(), userID, page, limit)
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to list documents")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list documents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}

// ListJobsHandler returns the user's ingestion job history, newest first.
func (a *API) ListJobsHandler(c *gin.Context) {
	userID := c.GetString("userID")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	records, err := a.jobs.GetByUserID(c.Request.Context(), userID, page, limit)
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to list jobs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  records,
		"page":  page,
		"limit": limit,
	})
}

// DeleteDocumentHandler removes a document with its chunks, tables,
// vectors and raw file.
func (a *API) DeleteDocumentHandler(c *gin.Context) {
	userID := c.GetString("userID")
	docID := c.Param("id")
	ctx := c.Request.Context()

	doc, err := a.documents.Delete(ctx, docID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to delete document")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete document"})
		return
	}

	// The relational rows are gone; vector and object cleanup is best
	// effort and logged on failure.
	if err := a.vectors.DeleteByDocument(ctx, docID); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to delete vectors")
	}
	if doc.ObjectKey != "" {
		if err := a.objects.Remove(ctx, doc.ObjectKey); err != nil {
			a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to delete raw file")
		}
	}
	if err := a.guard.DropProgress(ctx, docID); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to drop progress snapshot")
	}

	c.JSON(http.StatusOK, gin.H{"document_id": docID, "deleted": true})
}

type searchRequest struct {
	Query      string  `json:"query"`
	Mode       string  `json:"mode"`
	Threshold  float64 `json:"threshold"`
	MaxResults int     `json:"max_results"`
	Category   string  `json:"category"`
}

// SearchHandler runs a retrieval query. Malformed requests (empty query,
// unknown mode or category) are client errors; datastore and embedding
// provider failures map to 500.
func (a *API) SearchHandler(c *gin.Context) {
	userID := c.GetString("userID")

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	mode := retrieval.ModeHybrid
	if req.Mode != "" {
		var err error
		mode, err = retrieval.ParseMode(req.Mode)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown search mode: " + req.Mode})
			return
		}
	}

	category, ok := parseCategory(req.Category)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown table category: " + req.Category})
		return
	}

	results, err := a.engine.Search(c.Request.Context(), req.Query, userID, mode, retrieval.Options{
		Threshold:  req.Threshold,
		MaxResults: req.MaxResults,
		Category:   category,
	})
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
			"mode": mode.String(),
		}).Error("Search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
		"mode":    mode.String(),
	})
}

func parseCategory(s string) (models.TableCategory, bool) {
	switch models.TableCategory(s) {
	case "", models.TableCategoryLabResults, models.TableCategoryMedications,
		models.TableCategoryVitals, models.TableCategoryGeneral:
		return models.TableCategory(s), true
	default:
		return "", false
	}
}

func (a *API) releaseGuard(userID, filename string, size int64) {
	ctx := context.Background()
	if err := a.guard.Release(ctx, userID, filename, size); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to release upload lease")
	}
}
