package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"techacademy_backend/internal/config"
	"techacademy_backend/pkg/tracing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.CMSConfig{
		BaseURL:       srv.URL,
		APIKey:        "key",
		DeliveryToken: "token",
		Environment:   "production",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_GetEntry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/content_types/course/entries/blt1", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("api_key"))
		assert.Equal(t, "token", r.Header.Get("access_token"))
		assert.Equal(t, "production", r.URL.Query().Get("environment"))
		assert.Equal(t, []string{"reference", "course_modules"}, r.URL.Query()["include[]"])
		writeJSON(w, http.StatusOK, map[string]any{"entry": map[string]any{"uid": "blt1", "title": "Entries"}})
	})

	entry, err := c.GetEntry(context.Background(), ContentTypeCourse, "blt1", "reference", "course_modules")
	require.NoError(t, err)
	assert.Equal(t, "blt1", entry.UID())
	assert.Equal(t, "Entries", entry.String("title"))
}

func TestClient_GetEntryNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error_message": "The requested entry doesn't exist.", "error_code": 141})
	})

	_, err := c.GetEntry(context.Background(), ContentTypeCourse, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error_message": "Access token is invalid", "error_code": 104})
	})

	_, err := c.FindEntries(context.Background(), ContentTypeCourse, Query{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, 104, apiErr.Code)
}

func TestClient_FindEntries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/content_types/course/entries", r.URL.Path)
		assert.Equal(t, "graph", r.URL.Query().Get("typeahead"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "0", r.URL.Query().Get("skip"))
		assert.Equal(t, "true", r.URL.Query().Get("include_count"))
		writeJSON(w, http.StatusOK, map[string]any{"entries": []any{
			map[string]any{"uid": "a"},
			map[string]any{"uid": "b"},
		}})
	})

	entries, err := c.FindEntries(context.Background(), ContentTypeCourse, Query{Search: "graph"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[1].UID())
}

func TestClient_FindEntriesPaginates(t *testing.T) {
	const total = 150
	var skips []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		skip, err := strconv.Atoi(r.URL.Query().Get("skip"))
		assert.NoError(t, err)
		skips = append(skips, r.URL.Query().Get("skip"))

		page := []any{}
		for i := skip; i < total && i < skip+pageSize; i++ {
			page = append(page, map[string]any{"uid": fmt.Sprintf("m%d", i)})
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": page, "count": total})
	})

	entries, err := c.FindEntries(context.Background(), ContentTypeModule, Query{})
	require.NoError(t, err)
	require.Len(t, entries, total)
	assert.Equal(t, "m0", entries[0].UID())
	assert.Equal(t, "m149", entries[total-1].UID())
	assert.Equal(t, []string{"0", "100"}, skips)
}

func TestClient_FindEntriesStopsAtCount(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		page := make([]any, 0, pageSize)
		for i := 0; i < pageSize; i++ {
			page = append(page, map[string]any{"uid": fmt.Sprintf("m%d", i)})
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": page, "count": pageSize})
	})

	entries, err := c.FindEntries(context.Background(), ContentTypeModule, Query{})
	require.NoError(t, err)
	assert.Len(t, entries, pageSize)
	assert.Equal(t, 1, calls)
}

func TestClient_RequestCarriesSpanContext(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	prev := tracing.Tracer
	tracing.Tracer = tp.Tracer("cms-test")
	t.Cleanup(func() { tracing.Tracer = prev })

	var seen trace.SpanContext
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
	})
	c.http.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		seen = trace.SpanContextFromContext(req.Context())
		return nil
	})

	_, err := c.TaxonomyTerms(context.Background(), "course_module")
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "cms.taxonomy_terms", spans[0].Name)
	require.True(t, seen.IsValid())
	assert.Equal(t, spans[0].SpanContext.SpanID(), seen.SpanID())
}

func TestClient_TaxonomyTerms(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/taxonomies/course_module/terms", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{map[string]any{"uid": "ui", "name": "UI"}}})
	})

	terms, err := c.TaxonomyTerms(context.Background(), "course_module")
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "UI", terms[0]["name"])
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient(config.CMSConfig{BaseURL: "http://127.0.0.1:1"})
	assert.False(t, c.Configured())

	_, err := c.TaxonomyTerms(context.Background(), "course_module")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
