package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalio/medsearch/internal/ingestion"
	"github.com/vitalio/medsearch/internal/models"
	"github.com/vitalio/medsearch/internal/progress"
	"github.com/vitalio/medsearch/pkg/logger"
)

type fakeCatalog struct {
	doc     *models.Document
	created []*models.Document
}

func (f *fakeCatalog) Create(_ context.Context, doc *models.Document) error {
	f.created = append(f.created, doc)
	return nil
}

func (f *fakeCatalog) GetByID(_ context.Context, _, _ string) (*models.Document, error) {
	return f.doc, nil
}

func (f *fakeCatalog) FindByNameAndSize(_ context.Context, _, _ string, _ int64) (*models.Document, error) {
	return nil, nil
}

func (f *fakeCatalog) List(_ context.Context, _ string, _, _ int) ([]models.Document, int64, error) {
	return nil, 0, nil
}

func (f *fakeCatalog) Delete(_ context.Context, _, _ string) (*models.Document, error) {
	return f.doc, nil
}

type fakeFiles struct{}

func (fakeFiles) Key(userID, documentID, filename string) string {
	return userID + "/" + documentID + "/" + filename
}

func (fakeFiles) Put(_ context.Context, _ string, _ []byte, _ string) error { return nil }
func (fakeFiles) Remove(_ context.Context, _ string) error                  { return nil }

type guardCall struct {
	userID   string
	filename string
	size     int64
}

type fakeGuard struct {
	acquires []guardCall
	releases []guardCall
	snapshot *models.ProcessingUpdate
}

func (f *fakeGuard) Acquire(_ context.Context, userID, filename string, size int64) (bool, error) {
	f.acquires = append(f.acquires, guardCall{userID, filename, size})
	return true, nil
}

func (f *fakeGuard) Release(_ context.Context, userID, filename string, size int64) error {
	f.releases = append(f.releases, guardCall{userID, filename, size})
	return nil
}

func (f *fakeGuard) GetProgress(_ context.Context, _ string) (*models.ProcessingUpdate, error) {
	return f.snapshot, nil
}

func (f *fakeGuard) DropProgress(_ context.Context, _ string) error { return nil }

type fakeService struct {
	submitErr error
	submitted []ingestion.Job
}

func (f *fakeService) Submit(_ context.Context, job ingestion.Job) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, job)
	return nil
}

func (f *fakeService) Status(string) (progress.Job, bool) {
	return progress.Job{}, false
}

type fakeJobStore struct {
	records []*models.ProcessingRecord
	listErr error

	lastUserID string
	lastPage   int
	lastLimit  int
}

func (f *fakeJobStore) Create(_ context.Context, record *models.ProcessingRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeJobStore) GetByID(_ context.Context, documentID string) (*models.ProcessingRecord, error) {
	for _, r := range f.records {
		if r.DocumentID == documentID {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeJobStore) GetByUserID(_ context.Context, userID string, page, limit int) ([]*models.ProcessingRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.lastUserID = userID
	f.lastPage = page
	f.lastLimit = limit
	return f.records, nil
}

func (f *fakeJobStore) Update(_ context.Context, _ *models.ProcessingRecord) error { return nil }

func testContext(t *testing.T, req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set("userID", "user-1")
	return c, w
}

func multipartUpload(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadReleasesLeaseWhenQueueingFails(t *testing.T) {
	guard := &fakeGuard{}
	service := &fakeService{submitErr: errors.New("worker pool exhausted")}
	a := NewAPI(Deps{
		Documents: &fakeCatalog{},
		Objects:   fakeFiles{},
		Jobs:      &fakeJobStore{},
		Guard:     guard,
		Service:   service,
		Logger:    logger.New("test", "", ""),
	})

	content := []byte("Patient presented with fever and elevated glucose levels.")
	c, w := testContext(t, multipartUpload(t, "report.txt", content))
	a.UploadDocumentHandler(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// A failed submission must free the lease so the client can retry
	// immediately instead of waiting out the lease TTL.
	require.Len(t, guard.acquires, 1)
	require.Len(t, guard.releases, 1)
	assert.Equal(t, guard.acquires[0], guard.releases[0])
}

func TestUploadHoldsLeaseWhileQueued(t *testing.T) {
	guard := &fakeGuard{}
	service := &fakeService{}
	a := NewAPI(Deps{
		Documents: &fakeCatalog{},
		Objects:   fakeFiles{},
		Jobs:      &fakeJobStore{},
		Guard:     guard,
		Service:   service,
		Logger:    logger.New("test", "", ""),
	})

	content := []byte("Sodium 140 mmol/L, reference range 135-145.")
	c, w := testContext(t, multipartUpload(t, "labs.txt", content))
	a.UploadDocumentHandler(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, service.submitted, 1)
	// The pipeline releases the lease when the job finishes.
	assert.Empty(t, guard.releases)
}

func TestGetStatusSnapshotFallback(t *testing.T) {
	// A job that the in-memory tracker no longer holds (say, after a
	// restart) answers from the cached snapshot ahead of the job store.
	guard := &fakeGuard{snapshot: &models.ProcessingUpdate{
		DocumentID: "doc-1",
		Status:     models.ProcessingStatusEmbedding,
		Progress:   50,
	}}
	a := NewAPI(Deps{
		Documents: &fakeCatalog{doc: &models.Document{ID: "doc-1", UserID: "user-1"}},
		Jobs: &fakeJobStore{records: []*models.ProcessingRecord{
			{DocumentID: "doc-1", Status: models.ProcessingStatusQueued, Progress: 0},
		}},
		Guard:   guard,
		Service: &fakeService{},
		Logger:  logger.New("test", "", ""),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-1/status", nil)
	c, w := testContext(t, req)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	a.GetStatusHandler(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(models.ProcessingStatusEmbedding), body["status"])
	assert.Equal(t, float64(50), body["progress"])
}

func TestListJobsHandler(t *testing.T) {
	t.Run("returns the user's history", func(t *testing.T) {
		jobs := &fakeJobStore{records: []*models.ProcessingRecord{
			{DocumentID: "doc-2", Status: models.ProcessingStatusCompleted, Progress: 100},
			{DocumentID: "doc-1", Status: models.ProcessingStatusFailed, Progress: 10},
		}}
		a := NewAPI(Deps{Jobs: jobs, Logger: logger.New("test", "", "")})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs?page=2&limit=5", nil)
		c, w := testContext(t, req)
		a.ListJobsHandler(c)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1", jobs.lastUserID)
		assert.Equal(t, 2, jobs.lastPage)
		assert.Equal(t, 5, jobs.lastLimit)

		var body struct {
			Jobs []models.ProcessingRecord `json:"jobs"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Jobs, 2)
		assert.Equal(t, "doc-2", body.Jobs[0].DocumentID)
	})

	t.Run("store failure maps to 500", func(t *testing.T) {
		jobs := &fakeJobStore{listErr: errors.New("mongo unavailable")}
		a := NewAPI(Deps{Jobs: jobs, Logger: logger.New("test", "", "")})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		c, w := testContext(t, req)
		a.ListJobsHandler(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
