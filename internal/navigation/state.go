package navigation

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vidquery/vidquery/internal/async"
	"github.com/vidquery/vidquery/internal/backend"
	"github.com/vidquery/vidquery/internal/overlay"
)

type Page string

const (
	Home      Page = "home"
	VideoList Page = "videos"
	Player    Page = "player"
)

var (
	ErrNotAllowed   = errors.New("action not available on this page")
	ErrNoSuchResult = errors.New("no such search result")
	ErrUnknownError = errors.New("unknown error source")
)

func notAllowed(event string, page Page) error {
	return fmt.Errorf("%s from %s: %w", event, page, ErrNotAllowed)
}

// State is the page state owned by a Controller. Player is only ever
// reported together with a SelectedVideoID.
type State struct {
	Page            Page                   `json:"page"`
	SelectedVideoID *string                `json:"selectedVideoId"`
	SearchResults   []backend.SearchResult `json:"searchResults"`
	UploadSucceeded bool                   `json:"uploadSucceeded"`
}

func (s State) clone() State {
	out := s
	out.SearchResults = slices.Clone(s.SearchResults)
	if s.SelectedVideoID != nil {
		id := *s.SelectedVideoID
		out.SelectedVideoID = &id
	}
	return out
}

// ComponentStatus is the in-flight flag and error slot of one component.
type ComponentStatus struct {
	Status async.Status `json:"status"`
	Error  string       `json:"error,omitempty"`
}

func statusOf[T any](s async.Snapshot[T]) ComponentStatus {
	return ComponentStatus{Status: s.Status, Error: s.Error}
}

// View is everything a page needs to render.
type View struct {
	State
	SelectedTitle  string                    `json:"selectedTitle,omitempty"`
	StreamURL      string                    `json:"streamUrl,omitempty"`
	Results        []overlay.Entry           `json:"results"`
	Search         ComponentStatus           `json:"search"`
	Upload         ComponentStatus           `json:"upload"`
	UploadProgress int                       `json:"uploadProgress"`
	Catalog        ComponentStatus           `json:"catalog"`
	Videos         []backend.VideoDescriptor `json:"videos"`
}
