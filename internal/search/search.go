// Package search runs scoped visual and audio queries and tracks the
// in-flight flag and error slot of the search surface.
package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vidquery/vidquery/internal/async"
	"github.com/vidquery/vidquery/internal/backend"
)

type Backend interface {
	Search(ctx context.Context, q backend.Query) ([]backend.SearchResult, error)
}

// Searcher allows one search in flight at a time; a second call while one
// is pending fails with async.ErrInFlight.
type Searcher struct {
	backend Backend
	topK    int
	call    async.Call[[]backend.SearchResult]
}

func New(b Backend, defaultTopK int) *Searcher {
	if defaultTopK <= 0 {
		defaultTopK = backend.DefaultTopK
	}
	return &Searcher{backend: b, topK: defaultTopK}
}

// Blank reports whether a query has nothing to search for.
func Blank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// Search returns the ranked results. A blank query is a no-op: nil results,
// no error, no backend call and no state change.
func (s *Searcher) Search(ctx context.Context, q backend.Query) ([]backend.SearchResult, error) {
	if Blank(q.Text) {
		return nil, nil
	}
	if q.TopK <= 0 {
		q.TopK = s.topK
	}
	q.Text = strings.TrimSpace(q.Text)

	if err := s.call.Begin(); err != nil {
		return nil, err
	}

	results, err := s.backend.Search(ctx, q)
	if err != nil {
		slog.Warn("search: request failed", "kind", q.Kind, "scoped", q.VideoID != nil, "error", err)
		s.call.Fail(err)
		return nil, err
	}

	slog.Info("search: completed", "kind", q.Kind, "scoped", q.VideoID != nil, "results", len(results))
	s.call.Succeed(results)
	return results, nil
}

func (s *Searcher) State() async.Snapshot[[]backend.SearchResult] {
	return s.call.Snapshot()
}

// Dismiss clears the surfaced search error.
func (s *Searcher) Dismiss() {
	s.call.Dismiss()
}
