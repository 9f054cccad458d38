package ui

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/agentctx/agentctx/history"
	"github.com/agentctx/agentctx/types"
	"github.com/agentctx/agentctx/ui/api"
)

// Handler returns an http.Handler serving the session viewer: an HTML
// timeline at /sessions/{id} and the JSON API under /api.
//
// Usage:
//
//	http.Handle("/ui/", http.StripPrefix("/ui", ui.Handler(store, cfg)))
func Handler(store history.Store, cfg *Config) http.Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg.applyDefaults()
	}
	if err := cfg.validate(); err != nil {
		panic("ui: invalid configuration: " + err.Error())
	}

	v := &viewer{store: store, config: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions/{id}", v.handleSession)
	mux.Handle("/api/", http.StripPrefix("/api", api.NewRouter(store, &api.Config{
		PageSize: cfg.PageSize,
		Logger:   cfg.Logger,
	})))

	return mux
}

type viewer struct {
	store  history.Store
	config *Config
}

// entryView is one rendered row of the timeline.
type entryView struct {
	ID          string
	Kind        string
	CreatedAt   time.Time
	Text        string
	StopReason  string
	SummaryHTML template.HTML
	Marker      bool
	Details     *types.CompactionDetails
}

type sessionView struct {
	SessionID string
	BasePath  string
	Entries   []entryView
}

func (v *viewer) handleSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	entries, err := v.store.ListEntries(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		if v.config.Logger != nil {
			v.config.Logger.Error("failed to load session", "session_id", sessionID, "error", err)
		}
		return
	}
	if len(entries) == 0 {
		http.NotFound(w, r)
		return
	}

	view := sessionView{
		SessionID: sessionID,
		BasePath:  v.config.BasePath,
	}
	for _, e := range entries {
		row := entryView{
			ID:         e.ID,
			Kind:       string(e.Kind),
			CreatedAt:  e.CreatedAt,
			StopReason: string(e.StopReason),
			Details:    e.Details,
		}
		switch e.Kind {
		case types.EntryCompaction:
			row.Marker = true
			html, err := RenderMarkdown(e.Summary)
			if err != nil {
				html = template.HTML(template.HTMLEscapeString(e.Summary))
			}
			row.SummaryHTML = html
		case types.EntryBranchSummary:
			row.Text = e.Summary
		case types.EntryBash:
			row.Text = "$ " + e.Command + "\n" + truncate(e.Output, 2000)
		default:
			row.Text = truncate(e.Text(), 2000)
		}
		view.Entries = append(view.Entries, row)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := sessionTemplate.Execute(w, view); err != nil && v.config.Logger != nil {
		v.config.Logger.Error("failed to render session", "session_id", sessionID, "error", err)
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return strings.TrimSpace(s[:limit]) + "..."
}

var sessionTemplate = template.Must(template.New("session").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Session {{.SessionID}}</title>
<style>
body { font-family: -apple-system, sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; color: #1a1a1a; }
.entry { border-left: 3px solid #ddd; padding: .5rem 1rem; margin: .75rem 0; }
.entry.assistant { border-color: #7c5cff; }
.entry.user { border-color: #2a9d8f; }
.entry.marker { border-color: #e76f51; background: #fdf6f2; }
.kind { font-size: .75rem; text-transform: uppercase; color: #888; letter-spacing: .05em; }
pre { white-space: pre-wrap; word-break: break-word; font-size: .85rem; }
.files { font-size: .8rem; color: #555; }
</style>
</head>
<body>
<h1>Session {{.SessionID}}</h1>
{{range .Entries}}
<div class="entry {{.Kind}}{{if .Marker}} marker{{end}}">
  <div class="kind">{{.Kind}}{{if .StopReason}} &middot; {{.StopReason}}{{end}}</div>
  {{if .Marker}}
    <div class="summary">{{.SummaryHTML}}</div>
    {{with .Details}}
      {{if .ReadFiles}}<div class="files">Read: {{range .ReadFiles}}<code>{{.}}</code> {{end}}</div>{{end}}
      {{if .ModifiedFiles}}<div class="files">Modified: {{range .ModifiedFiles}}<code>{{.}}</code> {{end}}</div>{{end}}
    {{end}}
  {{else}}
    <pre>{{.Text}}</pre>
  {{end}}
</div>
{{end}}
</body>
</html>
`))
