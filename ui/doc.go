// Package ui provides an embedded web viewer for session histories:
// the entry timeline, compaction markers and their rendered summaries.
//
// The handler is read-only and serves two surfaces: an HTML view for
// humans and a JSON API (under /api) for tooling. Compaction summaries
// are markdown; they are rendered with goldmark and sanitized with
// bluemonday before reaching the browser.
//
// # Quick Start
//
//	store, _ := pgstore.Open(ctx, os.Getenv("DATABASE_URL"))
//
//	mux := http.NewServeMux()
//	mux.Handle("/ui/", http.StripPrefix("/ui", ui.Handler(store, nil)))
//
//	http.ListenAndServe(":8080", mux)
//
// The handler returns a standard http.Handler, so middleware is added
// by wrapping it externally.
package ui
