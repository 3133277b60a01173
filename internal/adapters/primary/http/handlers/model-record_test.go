package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"model-artefact-registry/internal/core/domain"
	"model-artefact-registry/internal/core/services"
	"model-artefact-registry/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testUser     = "user"
	testPassword = "password"
)

// setupRouter wires the real services and router around mock stores.
func setupRouter() (*testutil.MockModelRecordRepo, *testutil.MockArtefactStore, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	repo := new(testutil.MockModelRecordRepo)
	store := new(testutil.MockArtefactStore)

	recordSvc := services.NewModelRecordService(repo)
	artefactSvc := services.NewModelArtefactService(store)
	gate := services.NewAccessGate(services.Credentials{Username: testUser, Password: testPassword})

	h := New(recordSvc, artefactSvc, map[string]Pinger{"records": repo, "artefacts": store})
	return repo, store, NewRouter(h, gate)
}

func doRequest(r http.Handler, method, path string, payload interface{}) *httptest.ResponseRecorder {
	var body *bytes.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, _ := http.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(testUser, testPassword)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func assertFieldString(t *testing.T, resp map[string]interface{}, key string) {
	t.Helper()
	val, ok := resp[key]
	assert.True(t, ok, "response missing field %q", key)
	if ok {
		_, isStr := val.(string)
		assert.True(t, isStr, "field %q should be string, got %T", key, val)
	}
}

// assertRecordResponseFields checks the record shape clients rely on.
func assertRecordResponseFields(t *testing.T, resp map[string]interface{}) {
	t.Helper()
	assertFieldString(t, resp, "model_id")
	assertFieldString(t, resp, "name")
	assertFieldString(t, resp, "created_at")
	assertFieldString(t, resp, "last_updated_at")
	for _, key := range []string{"description", "tags", "version"} {
		_, ok := resp[key]
		assert.True(t, ok, "response missing field %q", key)
	}
}

func fixtureRecord(id string) *domain.ModelRecord {
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	return &domain.ModelRecord{
		ModelID: id, Name: "demo",
		CreatedAt: ts, LastUpdatedAt: ts, Version: 1,
	}
}

// ===========================================================================
// Access gate
// ===========================================================================

func TestAuth_RejectsMissingAndWrongCredentials(t *testing.T) {
	repo, _, r := setupRouter()

	req, _ := http.NewRequest("GET", "/models/m1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Basic", w.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "Incorrect username or password", decodeBody(t, w)["detail"])

	req, _ = http.NewRequest("GET", "/models/m1", nil)
	req.SetBasicAuth("wrong_user", testPassword)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req, _ = http.NewRequest("POST", "/models/m1/artefact", nil)
	req.SetBasicAuth(testUser, "nope")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestAuth_UnconfiguredGateFailsClosed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := new(testutil.MockModelRecordRepo)
	h := New(services.NewModelRecordService(repo), services.NewModelArtefactService(new(testutil.MockArtefactStore)), nil)
	r := NewRouter(h, services.NewAccessGate(services.Credentials{}))

	req, _ := http.NewRequest("GET", "/models", nil)
	req.SetBasicAuth("", "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ===========================================================================
// Model records
// ===========================================================================

func TestCreateModel_ServerGeneratedID(t *testing.T) {
	repo, _, r := setupRouter()
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.ModelRecord")).Return(nil)

	w := doRequest(r, "POST", "/models", map[string]interface{}{
		"name":        "demo",
		"description": "first",
		"tags":        map[string]interface{}{"epoch": 3, "env": "dev"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeBody(t, w)
	assertRecordResponseFields(t, resp)
	assert.Regexp(t, `^\d+\.\d{6}$`, resp["model_id"])
	assert.Equal(t, "demo", resp["name"])
	assert.Equal(t, "first", resp["description"])
	assert.Equal(t, map[string]interface{}{"epoch": float64(3), "env": "dev"}, resp["tags"])
	assert.Equal(t, float64(1), resp["version"])
	assert.Equal(t, resp["created_at"], resp["last_updated_at"])
}

func TestCreateModel_CallerID(t *testing.T) {
	repo, _, r := setupRouter()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.ModelRecord) bool {
		return m.ModelID == "m1" && m.Description == nil && m.Tags == nil
	})).Return(nil)

	w := doRequest(r, "POST", "/models", map[string]interface{}{"model_id": "m1", "name": "demo"})
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeBody(t, w)
	assert.Equal(t, "m1", resp["model_id"])
	assert.Nil(t, resp["description"])
	assert.Nil(t, resp["tags"])
}

func TestCreateModel_GeneratedIDCollisionRetries(t *testing.T) {
	repo, _, r := setupRouter()
	var tried []string
	repo.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.ModelRecord) bool {
		tried = append(tried, m.ModelID)
		return true
	})).Return(domain.ErrModelAlreadyExists).Once()
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.ModelRecord")).Return(nil).Once()

	w := doRequest(r, "POST", "/models", map[string]interface{}{"name": "demo"})
	require.Equal(t, http.StatusCreated, w.Code)
	repo.AssertNumberOfCalls(t, "Create", 2)

	resp := decodeBody(t, w)
	require.NotEmpty(t, tried)
	assert.NotEqual(t, tried[0], resp["model_id"])
}

func TestCreateModel_CallerIDConflictIsNotRetried(t *testing.T) {
	repo, _, r := setupRouter()
	repo.On("Create", mock.Anything, mock.Anything).Return(domain.ErrModelAlreadyExists)

	w := doRequest(r, "POST", "/models", map[string]interface{}{"model_id": "m1", "name": "demo"})
	assert.Equal(t, http.StatusConflict, w.Code)
	repo.AssertNumberOfCalls(t, "Create", 1)
}

func TestCreateModel_LargeIntegerTagIsExact(t *testing.T) {
	repo, _, r := setupRouter()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.ModelRecord) bool {
		return m.Tags["big"] == int64(1<<60)
	})).Return(nil)

	req, _ := http.NewRequest("POST", "/models", bytes.NewReader([]byte(`{"model_id":"m1","name":"demo","tags":{"big":1152921504606846976}}`)))
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(testUser, testPassword)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"big":1152921504606846976`)
	assert.False(t, binding.EnableDecoderUseNumber, "router must not flip gin's global decoder setting")
}

func TestCreateModel_Validation(t *testing.T) {
	repo, _, r := setupRouter()

	w := doRequest(r, "POST", "/models", map[string]interface{}{"description": "no name"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, "POST", "/models", map[string]interface{}{"name": "demo", "tags": map[string]interface{}{"lr": 0.1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, "POST", "/models", map[string]interface{}{"model_id": "a/b", "name": "demo"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateModel_Conflict(t *testing.T) {
	repo, _, r := setupRouter()
	repo.On("Create", mock.Anything, mock.Anything).Return(domain.ErrModelAlreadyExists)

	w := doRequest(r, "POST", "/models", map[string]interface{}{"model_id": "m1", "name": "demo"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetModel(t *testing.T) {
	repo, _, r := setupRouter()
	repo.On("GetByID", mock.Anything, "m1").Return(fixtureRecord("m1"), true, nil)

	w := doRequest(r, "GET", "/models/m1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody(t, w)
	assertRecordResponseFields(t, resp)
	assert.Equal(t, "m1", resp["model_id"])
	assert.Equal(t, "2024-06-01T10:00:00.000000Z", resp["created_at"])
}

func TestGetModel_NotFound(t *testing.T) {
	repo, _, r := setupRouter()
	repo.On("GetByID", mock.Anything, "nope").Return(nil, false, nil)

	w := doRequest(r, "GET", "/models/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, map[string]interface{}{"detail": "Model not found"}, decodeBody(t, w))
}

func TestGetModel_StorageUnavailable(t *testing.T) {
	repo, _, r := setupRouter()
	repo.On("GetByID", mock.Anything, "m1").Return(nil, false, fmt.Errorf("get: %w", domain.ErrStorageUnavailable))

	w := doRequest(r, "GET", "/models/m1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListModels(t *testing.T) {
	repo, _, r := setupRouter()
	repo.On("List", mock.Anything).Return([]*domain.ModelRecord{fixtureRecord("a"), fixtureRecord("b")}, nil)

	w := doRequest(r, "GET", "/models", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody(t, w)
	assert.Equal(t, float64(2), resp["total"])
	items := resp["items"].([]interface{})
	require.Len(t, items, 2)
	assertRecordResponseFields(t, items[0].(map[string]interface{}))
}

func TestListModels_Empty(t *testing.T) {
	repo, _, r := setupRouter()
	repo.On("List", mock.Anything).Return([]*domain.ModelRecord{}, nil)

	w := doRequest(r, "GET", "/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[],"total":0}`, w.Body.String())
}

func TestUpdateModel_Partial(t *testing.T) {
	repo, _, r := setupRouter()
	existing := fixtureRecord("m1")
	desc := "keep"
	existing.Description = &desc
	repo.On("GetByID", mock.Anything, "m1").Return(existing, true, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(m *domain.ModelRecord) bool {
		return m.Name == "demo" && m.Description != nil && *m.Description == "v2"
	})).Return(true, nil)

	w := doRequest(r, "PUT", "/models/m1", map[string]interface{}{"description": "v2", "name": nil})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody(t, w)
	assert.Equal(t, "demo", resp["name"])
	assert.Equal(t, "v2", resp["description"])
	repo.AssertExpectations(t)
}

func TestUpdateModel_NotFound(t *testing.T) {
	repo, _, r := setupRouter()
	repo.On("GetByID", mock.Anything, "nope").Return(nil, false, nil)

	w := doRequest(r, "PUT", "/models/nope", map[string]interface{}{"name": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Model not found", decodeBody(t, w)["detail"])
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateModel_RejectsImmutableFields(t *testing.T) {
	repo, _, r := setupRouter()

	w := doRequest(r, "PUT", "/models/m1", map[string]interface{}{"model_id": "other"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, "PUT", "/models/m1", map[string]interface{}{"created_at": "2020-01-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestUpdateModel_MalformedBody(t *testing.T) {
	_, _, r := setupRouter()

	req, _ := http.NewRequest("PUT", "/models/m1", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(testUser, testPassword)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteModel(t *testing.T) {
	repo, _, r := setupRouter()
	repo.On("Delete", mock.Anything, "m1").Return(fixtureRecord("m1"), true, nil).Once()
	repo.On("Delete", mock.Anything, "m1").Return(nil, false, nil).Once()

	w := doRequest(r, "DELETE", "/models/m1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m1", decodeBody(t, w)["model_id"])

	w = doRequest(r, "DELETE", "/models/m1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Model not found", decodeBody(t, w)["detail"])
}

func TestDeleteModel_AccessDenied(t *testing.T) {
	repo, _, r := setupRouter()
	repo.On("Delete", mock.Anything, "m1").Return(nil, false, fmt.Errorf("delete: %w", domain.ErrAccessDenied))

	w := doRequest(r, "DELETE", "/models/m1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// ===========================================================================
// Health and metrics
// ===========================================================================

func TestHealth(t *testing.T) {
	repo, store, r := setupRouter()
	repo.On("Ping", mock.Anything).Return(nil)
	store.On("Ping", mock.Anything).Return(fmt.Errorf("head bucket: %w", domain.ErrStorageUnavailable))

	req, _ := http.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "unhealthy", resp["status"])
	assert.Equal(t, "ok", resp["checks"].(map[string]interface{})["records"])
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	_, _, r := setupRouter()

	req, _ := http.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "model_registry_")
}
