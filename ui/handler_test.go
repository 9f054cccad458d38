package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentctx/agentctx/history"
	"github.com/agentctx/agentctx/types"
)

func seedStore(t *testing.T) *history.MemoryStore {
	t.Helper()
	store := history.NewMemoryStore()
	err := store.AppendEntries(context.Background(), "s1",
		&types.Entry{ID: "e1", Kind: types.EntryUser, Content: []types.ContentBlock{{Type: types.ContentText, Text: "fix the build"}}},
		&types.Entry{ID: "e2", Kind: types.EntryAssistant, Content: []types.ContentBlock{{Type: types.ContentText, Text: "on it"}}},
		&types.Entry{
			ID: "m1", Kind: types.EntryCompaction,
			Summary:          "## Goal\n\nFix the **build**.",
			FirstKeptEntryID: "e2",
			TokensBefore:     4242,
			Details: &types.CompactionDetails{
				Version:       types.DetailsVersion,
				ModifiedFiles: []string{"main.go"},
			},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestHandlerSessionPage(t *testing.T) {
	h := Handler(seedStore(t), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/s1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "fix the build") {
		t.Error("page missing user entry text")
	}
	if !strings.Contains(body, "<strong>build</strong>") {
		t.Error("summary markdown not rendered to HTML")
	}
	if !strings.Contains(body, "main.go") {
		t.Error("page missing modified files")
	}
}

func TestHandlerSessionNotFound(t *testing.T) {
	h := Handler(history.NewMemoryStore(), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandlerAPICompactions(t *testing.T) {
	h := Handler(seedStore(t), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/sessions/s1/compactions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"first_kept_entry_id":"e2"`) {
		t.Errorf("response missing marker fields: %s", body)
	}
	if !strings.Contains(body, `"tokens_before":4242`) {
		t.Errorf("response missing tokens_before: %s", body)
	}
}

func TestHandlerAPISessionsUnsupported(t *testing.T) {
	h := Handler(history.NewMemoryStore(), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/sessions", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501 for stores without listing", rec.Code)
	}
}

func TestRenderMarkdownSanitizes(t *testing.T) {
	html, err := RenderMarkdown("hello <script>alert(1)</script> *world*")
	if err != nil {
		t.Fatal(err)
	}
	s := string(html)
	if strings.Contains(s, "<script>") {
		t.Error("script tag survived sanitization")
	}
	if !strings.Contains(s, "<em>world</em>") {
		t.Error("markdown emphasis not rendered")
	}
}
