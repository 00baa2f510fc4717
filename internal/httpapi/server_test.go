package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/stockroom/internal/memory"
	"github.com/mesh-intelligence/stockroom/internal/schema"
	"github.com/mesh-intelligence/stockroom/internal/store"
)

type apiItem struct {
	ID     string         `json:"id"`
	Group  string         `json:"group"`
	Values map[string]any `json:"values"`
}

type apiError struct {
	Code   string `json:"code"`
	Fields []struct {
		Field  string `json:"field"`
		Reason string `json:"reason"`
	} `json:"fields"`
}

func newTestServer(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()
	backend := memory.NewBackend()
	s := store.New(schema.NewRegistry(backend), backend)
	require.NoError(t, s.Load(context.Background()))
	return NewServer(s, nil).Handler(), s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seed defines Color (enum), Price (price >= 0, nullable) and the Paint
// group.
func seed(t *testing.T, h http.Handler) {
	t.Helper()
	for _, body := range []string{
		`{"name":"Color","data_type":"dropdown","options":["red","green"]}`,
		`{"name":"Price","data_type":"price","nullable":true,"min":0}`,
	} {
		rec := do(t, h, http.MethodPost, "/api/v1/categories", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := do(t, h, http.MethodPost, "/api/v1/groups", `{"name":"Paint","characteristics":["Color","Price"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func createItem(t *testing.T, h http.Handler, body string) apiItem {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/items", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[apiItem](t, rec)
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t)
	do(t, h, http.MethodGet, "/api/v1/categories", "")
	rec := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stockroom_http_requests_total")
}

func TestCategoryLifecycle(t *testing.T) {
	h, _ := newTestServer(t)
	seed(t, h)

	rec := do(t, h, http.MethodGet, "/api/v1/categories/Color", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "enum", got["data_type"])

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"duplicate", `{"name":"Color","data_type":"text"}`, http.StatusConflict, codeConflict},
		{"bad type", `{"name":"Weight","data_type":"kilograms"}`, http.StatusBadRequest, codeInvalidDefinition},
		{"empty enum", `{"name":"Size","data_type":"enum"}`, http.StatusBadRequest, codeInvalidDefinition},
		{"bad json", `{"name":`, http.StatusBadRequest, codeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/categories", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decodeBody[apiError](t, rec).Code)
		})
	}

	rec = do(t, h, http.MethodDelete, "/api/v1/categories/Price", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "Paint still uses Price")
	rec = do(t, h, http.MethodDelete, "/api/v1/categories/Price?cascade=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	deleted := decodeBody[map[string][]string](t, rec)
	assert.Equal(t, map[string][]string{"changed_groups": {"Paint"}}, deleted)
	rec = do(t, h, http.MethodGet, "/api/v1/categories/Price", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGroupErrors(t *testing.T) {
	h, _ := newTestServer(t)
	seed(t, h)

	rec := do(t, h, http.MethodPost, "/api/v1/groups", `{"name":"Tools","characteristics":["Color","Weight","Size"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Weight")
	assert.Contains(t, rec.Body.String(), "Size")

	rec = do(t, h, http.MethodGet, "/api/v1/groups/Tools", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/groups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody[map[string]any](t, rec)["total"])
}

func TestItemLifecycle(t *testing.T) {
	h, _ := newTestServer(t)
	seed(t, h)

	item := createItem(t, h, `{"group":"Paint","values":{"Color":"red","Price":"$4.50"}}`)
	assert.Equal(t, "Paint", item.Group)
	assert.Equal(t, "red", item.Values["Color"])
	assert.Equal(t, 4.5, item.Values["Price"])

	rec := do(t, h, http.MethodPatch, "/api/v1/items/"+item.ID, `{"values":{"Price":""}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[apiItem](t, rec)
	assert.Nil(t, updated.Values["Price"])
	assert.Equal(t, "red", updated.Values["Color"])

	rec = do(t, h, http.MethodGet, "/api/v1/items/"+item.ID+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody[map[string]any](t, rec)["total"])

	rec = do(t, h, http.MethodDelete, "/api/v1/items/"+item.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/v1/items/"+item.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/undo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/v1/items/"+item.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code, "undo restores the deleted item")
}

func TestItemValidationReportsEveryField(t *testing.T) {
	h, s := newTestServer(t)
	seed(t, h)

	rec := do(t, h, http.MethodPost, "/api/v1/items", `{"group":"Paint","values":{"Color":"blue","Price":"-1"}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody[apiError](t, rec)
	assert.Equal(t, codeValidationFailed, body.Code)
	require.Len(t, body.Fields, 2)
	assert.Equal(t, "Color", body.Fields[0].Field)
	assert.Equal(t, "not in options", body.Fields[0].Reason)
	assert.Equal(t, "Price", body.Fields[1].Field)
	assert.Equal(t, "out of range", body.Fields[1].Reason)
	assert.Zero(t, s.Len())

	rec = do(t, h, http.MethodPost, "/api/v1/items", `{"group":"Nope","values":{}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListItemsFilters(t *testing.T) {
	h, _ := newTestServer(t)
	seed(t, h)
	rec := do(t, h, http.MethodPost, "/api/v1/groups", `{"name":"Stain","characteristics":["Color"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	createItem(t, h, `{"group":"Paint","values":{"Color":"red","Price":"5"}}`)
	createItem(t, h, `{"group":"Paint","values":{"Color":"green","Price":"20"}}`)
	createItem(t, h, `{"group":"Stain","values":{"Color":"red"}}`)

	tests := []struct {
		name  string
		query string
		want  int
		code  int
	}{
		{"all", "", 3, http.StatusOK},
		{"group", "?group=Paint", 2, http.StatusOK},
		{"where", "?where=Color%3Dred", 2, http.StatusOK},
		{"group and where", "?group=Paint&where=Price%3E10", 1, http.StatusOK},
		{"unknown group", "?group=Nope", 0, http.StatusNotFound},
		{"bad where", "?where=nooperator", 0, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/v1/items"+tt.query, "")
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.code == http.StatusOK {
				assert.Equal(t, float64(tt.want), decodeBody[map[string]any](t, rec)["total"])
			}
		})
	}
}

func TestUndoWithEmptyLog(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/api/v1/undo", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeNothingToUndo, decodeBody[apiError](t, rec).Code)
}

func TestChangeLogSince(t *testing.T) {
	h, _ := newTestServer(t)
	seed(t, h)
	createItem(t, h, `{"group":"Paint","values":{"Color":"red"}}`)
	createItem(t, h, `{"group":"Paint","values":{"Color":"green"}}`)

	rec := do(t, h, http.MethodGet, "/api/v1/log?since=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody[map[string]any](t, rec)["total"])

	rec = do(t, h, http.MethodGet, "/api/v1/log?since=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReloadAndSummary(t *testing.T) {
	h, _ := newTestServer(t)
	seed(t, h)
	createItem(t, h, `{"group":"Paint","values":{"Color":"red"}}`)

	rec := do(t, h, http.MethodPost, "/api/v1/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody[map[string]any](t, rec)["records"])

	rec = do(t, h, http.MethodGet, "/api/v1/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"group":"Paint","records":1`)
}
