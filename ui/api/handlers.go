package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/agentctx/agentctx/types"
)

// Response wraps all API responses.
type Response struct {
	Data  any       `json:"data,omitempty"`
	Error *APIError `json:"error,omitempty"`
	Meta  *Meta     `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta contains pagination metadata.
type Meta struct {
	TotalCount int  `json:"total_count,omitempty"`
	HasMore    bool `json:"has_more,omitempty"`
	Limit      int  `json:"limit,omitempty"`
	Offset     int  `json:"offset,omitempty"`
}

// CompactionView is the API shape of a compaction marker.
type CompactionView struct {
	ID               string   `json:"id"`
	Summary          string   `json:"summary"`
	FirstKeptEntryID string   `json:"first_kept_entry_id"`
	TokensBefore     int      `json:"tokens_before"`
	ReadFiles        []string `json:"read_files,omitempty"`
	ModifiedFiles    []string `json:"modified_files,omitempty"`
	External         bool     `json:"external,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Data: data})
}

// writeJSONWithMeta writes a JSON response with metadata.
func writeJSONWithMeta(w http.ResponseWriter, status int, data any, meta *Meta) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Data: data, Meta: meta})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{
		Error: &APIError{Code: code, Message: message},
	})
}

// parseInt parses an integer query parameter with a default, clamped
// to non-negative values.
func parseInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

func (rt *router) handleListSessions(w http.ResponseWriter, r *http.Request) {
	lister, ok := rt.store.(SessionLister)
	if !ok {
		writeError(w, http.StatusNotImplemented, "unsupported", "store does not support session listing")
		return
	}

	ids, err := lister.ListSessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (rt *router) handleListEntries(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	entries, err := rt.store.ListEntries(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	limit := parseInt(r, "limit", rt.config.PageSize)
	offset := parseInt(r, "offset", 0)

	total := len(entries)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	writeJSONWithMeta(w, http.StatusOK, entries[offset:end], &Meta{
		TotalCount: total,
		HasMore:    end < total,
		Limit:      limit,
		Offset:     offset,
	})
}

func (rt *router) handleLatestEntry(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	entry, err := rt.store.LatestEntry(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "not_found", "session has no entries")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (rt *router) handleListCompactions(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	entries, err := rt.store.ListEntries(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	views := []CompactionView{}
	for _, e := range entries {
		if e.Kind != types.EntryCompaction {
			continue
		}
		view := CompactionView{
			ID:               e.ID,
			Summary:          e.Summary,
			FirstKeptEntryID: e.FirstKeptEntryID,
			TokensBefore:     e.TokensBefore,
		}
		if e.Details != nil {
			view.ReadFiles = e.Details.ReadFiles
			view.ModifiedFiles = e.Details.ModifiedFiles
			view.External = e.Details.External
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}
