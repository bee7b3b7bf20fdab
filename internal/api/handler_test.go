package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-data-explorer/internal/aggregator"
	"github.com/kurihiro0119/github-data-explorer/internal/columns"
	"github.com/kurihiro0119/github-data-explorer/internal/dashboard"
	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	apperrors "github.com/kurihiro0119/github-data-explorer/internal/errors"
	"github.com/kurihiro0119/github-data-explorer/internal/render"
	"github.com/kurihiro0119/github-data-explorer/internal/storage/sqlite"
	"github.com/kurihiro0119/github-data-explorer/internal/store"
)

// backend serves 150 issues, two per page
type backend struct {
	exports []domain.ExportRequest
}

func (b *backend) ListCollections(ctx context.Context) ([]domain.CollectionMetadata, error) {
	return []domain.CollectionMetadata{{Name: "issues", TotalDocuments: 150}}, nil
}

func (b *backend) FetchCollectionData(ctx context.Context, q domain.CollectionQuery) (*domain.DataGridResult, error) {
	if q.CollectionName == "broken" {
		return nil, apperrors.NewNetworkError("backend unavailable", nil)
	}
	result := &domain.DataGridResult{Total: 150, Page: q.Page, PageSize: q.PageSize}
	for i := 0; i < 2; i++ {
		n := (q.Page-1)*q.PageSize + i + 1
		var r domain.Record
		raw := fmt.Sprintf(`{"id":"%d","user":{"login":"user%d"},"repo_id":"acme/widgets","number":%d}`, n, n, n)
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, err
		}
		result.Records = append(result.Records, &r)
	}
	return result, nil
}

func (b *backend) Search(ctx context.Context, keyword string) (domain.SearchResult, error) {
	var r domain.Record
	_ = json.Unmarshal([]byte(`{"title":"`+keyword+`"}`), &r)
	return domain.SearchResult{"issues": {&r}}, nil
}

func (b *backend) Relationships(ctx context.Context, collection, id string) (domain.Value, error) {
	var v domain.Value
	err := json.Unmarshal([]byte(`[{"login":"`+id+`","commits":3}]`), &v)
	return v, err
}

func (b *backend) Export(ctx context.Context, req domain.ExportRequest) ([]byte, error) {
	b.exports = append(b.exports, req)
	return []byte("id\n1\n"), nil
}

func (b *backend) IssueDetails(ctx context.Context, ref domain.IssueRef) (*domain.IssueDetails, error) {
	return &domain.IssueDetails{}, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func setupRouter(t *testing.T) (*gin.Engine, *backend, aggregator.Aggregator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	src := &backend{}
	gs := store.NewGridStore(src, nil, 100)
	controller := dashboard.NewController(gs, render.NewTableGrid(nil), render.NewTableGrid(nil), columns.DefaultOptions(), 100, nil)
	t.Cleanup(controller.Close)

	cache, err := sqlite.NewSQLiteStorage(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	agg := aggregator.NewAggregator(cache)

	return SetupRoutes(NewHandler(controller, agg), nil), src, agg
}

func perform(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func viewOf(t *testing.T, env envelope) dashboard.View {
	t.Helper()
	var v dashboard.View
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestHealthCheck(t *testing.T) {
	router, _, _ := setupRouter(t)

	w, _ := perform(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}

func TestBrowsing(t *testing.T) {
	router, _, _ := setupRouter(t)

	w, env := perform(t, router, http.MethodPost, "/api/v1/collections/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	v := viewOf(t, env)
	assert.Equal(t, "issues", v.Collection)
	assert.Equal(t, 2, v.TotalPages)
	assert.Len(t, v.Rows, 2)
	assert.True(t, v.HasNext)

	w, env = perform(t, router, http.MethodPost, "/api/v1/page/next", "")
	require.Equal(t, http.StatusOK, w.Code)
	v = viewOf(t, env)
	assert.Equal(t, 2, v.Page)
	assert.False(t, v.HasNext)

	_, env = perform(t, router, http.MethodPost, "/api/v1/filters/facet", `{"name":"state","value":"open"}`)
	v = viewOf(t, env)
	assert.Equal(t, 1, v.Page, "filter changes return to page 1")
	assert.Equal(t, map[string]string{"state": "open"}, v.SelectedFacets)

	_, env = perform(t, router, http.MethodDelete, "/api/v1/filters/facet/state", "")
	assert.Empty(t, viewOf(t, env).SelectedFacets)

	_, env = perform(t, router, http.MethodPost, "/api/v1/page", `{"pageSize":50}`)
	v = viewOf(t, env)
	assert.Equal(t, 50, v.PageSize)
	assert.Equal(t, 3, v.TotalPages)

	_, env = perform(t, router, http.MethodGet, "/api/v1/state", "")
	assert.Equal(t, 50, viewOf(t, env).PageSize)
}

func TestValidation(t *testing.T) {
	router, _, _ := setupRouter(t)

	w, env := perform(t, router, http.MethodPost, "/api/v1/collection", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperrors.ErrCodeBadRequest), env.Error.Code)

	w, _ = perform(t, router, http.MethodPost, "/api/v1/filters/date-range",
		`{"start":"2024-02-01T00:00:00Z","end":"2024-01-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = perform(t, router, http.MethodPost, "/api/v1/export", `{"format":"pdf"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = perform(t, router, http.MethodGet, "/api/v1/rows/x/detail", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = perform(t, router, http.MethodGet, "/api/v1/rows/7/detail", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "row not found", env.Error.Message)
}

func TestPageFailure(t *testing.T) {
	router, _, _ := setupRouter(t)

	w, env := perform(t, router, http.MethodPost, "/api/v1/collection", `{"name":"broken"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotEmpty(t, env.Error.Message)
}

func TestSearch(t *testing.T) {
	router, _, _ := setupRouter(t)
	perform(t, router, http.MethodPost, "/api/v1/collections/refresh", "")

	_, env := perform(t, router, http.MethodPost, "/api/v1/search", `{"keyword":"crash"}`)
	v := viewOf(t, env)
	assert.Equal(t, "crash", v.SearchTerm)
	require.NotNil(t, v.Search)
	assert.Len(t, (*v.Search)["issues"], 1)
	assert.Empty(t, v.Rows, "the page is cleared while search results are shown")

	_, env = perform(t, router, http.MethodPost, "/api/v1/search", `{"keyword":""}`)
	v = viewOf(t, env)
	assert.Nil(t, v.Search)
	assert.Len(t, v.Rows, 2)
}

func TestEmptyChunkedBody(t *testing.T) {
	router, _, _ := setupRouter(t)
	perform(t, router, http.MethodPost, "/api/v1/collections/refresh", "")
	perform(t, router, http.MethodPost, "/api/v1/search", `{"keyword":"crash"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(""))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	v := viewOf(t, env)
	assert.Nil(t, v.Search, "an empty body clears the search")
	assert.Len(t, v.Rows, 2)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader("{"))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGridEvents(t *testing.T) {
	router, _, _ := setupRouter(t)
	perform(t, router, http.MethodPost, "/api/v1/collections/refresh", "")

	w, env := perform(t, router, http.MethodPost, "/api/v1/grid/cell-clicked", `{"row":0,"field":"user.login"}`)
	require.Equal(t, http.StatusOK, w.Code)
	v := viewOf(t, env)
	require.NotNil(t, v.Related)
	assert.Equal(t, "user1", v.Related.Actor)
	assert.Len(t, v.Related.Rows, 1)

	_, env = perform(t, router, http.MethodPost, "/api/v1/grid/cell-clicked", `{"row":1,"field":"number"}`)
	v = viewOf(t, env)
	require.NotNil(t, v.Issue)
	assert.Equal(t, domain.IssueRef{Number: 2, Org: "acme", Repo: "widgets"}, v.Issue.Ref)

	_, env = perform(t, router, http.MethodPost, "/api/v1/grid/row-drag-end", `{"from":0,"over":1}`)
	v = viewOf(t, env)
	assert.Equal(t, `{"id":"2","user":{"login":"user2"},"repo_id":"acme/widgets","number":2}`, v.Rows[0].String())

	w, env = perform(t, router, http.MethodGet, "/api/v1/rows/0/detail", "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Contains(t, detail.Detail, "\n  \"id\": \"2\"")
}

func TestExport(t *testing.T) {
	router, src, _ := setupRouter(t)
	perform(t, router, http.MethodPost, "/api/v1/collections/refresh", "")
	perform(t, router, http.MethodPost, "/api/v1/filters/facet", `{"name":"state","value":"open"}`)

	w, _ := perform(t, router, http.MethodPost, "/api/v1/export", `{"format":"csv"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "id\n1\n", w.Body.String())
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="issues.csv"`, w.Header().Get("Content-Disposition"))
	require.Len(t, src.exports, 1)
	assert.Equal(t, map[string]string{"state": "open"}, src.exports[0].SelectedFacets)
}

func TestUserStats(t *testing.T) {
	router, _, _ := setupRouter(t)

	w, env := perform(t, router, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary aggregator.Summary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Empty(t, summary.Users)
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
	}{
		{apperrors.NewNotFoundError("row"), http.StatusNotFound},
		{apperrors.NewAuthRequiredError("session expired"), http.StatusUnauthorized},
		{apperrors.NewBadRequestError("bad"), http.StatusBadRequest},
		{apperrors.NewNetworkError("down", nil), http.StatusBadGateway},
		{apperrors.NewInternalError("boom", nil), http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
	}
}
