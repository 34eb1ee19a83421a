// Package navigation is the page-level state machine of a vidquery session.
//
// A Controller owns the current page, the latest search results, the
// selected video and the upload-success banner. It drives the search,
// upload and catalog components and switches pages from their outcomes:
//
//	Home      --scoped search, >=1 hit-->  Player
//	Home      --"My Videos"------------->  VideoList
//	Player    --"My Videos"------------->  VideoList
//	VideoList --select video------------>  Player
//	any       --click result/marker----->  Player (seek requested)
//	VideoList/Player --"Back to Search"->  Home
//
// Failed calls never change the page; their errors stay in the owning
// component until dismissed or replaced by the next call.
package navigation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vidquery/vidquery/internal/async"
	"github.com/vidquery/vidquery/internal/backend"
	"github.com/vidquery/vidquery/internal/overlay"
	"github.com/vidquery/vidquery/internal/search"
	"github.com/vidquery/vidquery/internal/upload"
)

const DefaultBannerDuration = 3 * time.Second

type Searcher interface {
	Search(ctx context.Context, q backend.Query) ([]backend.SearchResult, error)
	State() async.Snapshot[[]backend.SearchResult]
	Dismiss()
}

type Uploader interface {
	Upload(ctx context.Context, blob upload.Blob) (backend.VideoDescriptor, error)
	State() async.Snapshot[*backend.VideoDescriptor]
	Progress() int
	Dismiss()
}

type Catalog interface {
	List(ctx context.Context) ([]backend.VideoDescriptor, error)
	Refresh(ctx context.Context) ([]backend.VideoDescriptor, error)
	Invalidate()
	Remove(ctx context.Context, videoID string) error
	Lookup(videoID string) (backend.VideoDescriptor, bool)
	State() async.Snapshot[[]backend.VideoDescriptor]
	Dismiss()
}

// Seeker is the playback primitive. It is only asked to seek once the
// controller shows the Player page for the seek's video.
type Seeker interface {
	Seek(s overlay.Seek)
}

type Config struct {
	Searcher Searcher
	Uploader Uploader
	Catalog  Catalog
	Player   Seeker
	// StreamURL builds the media address for the selected video. Optional.
	StreamURL func(videoID string) string
	Clock     clockwork.Clock
	// BannerDuration is how long UploadSucceeded stays set.
	BannerDuration time.Duration
}

type Controller struct {
	searcher  Searcher
	uploader  Uploader
	catalog   Catalog
	player    Seeker
	streamURL func(string) string
	clock     clockwork.Clock
	banner    time.Duration

	mu          sync.Mutex
	state       State
	bannerTimer clockwork.Timer
	bannerGen   uint64

	subMu       sync.Mutex
	subscribers map[uint64]func(View)
	nextSub     uint64
}

func New(cfg Config) *Controller {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	banner := cfg.BannerDuration
	if banner <= 0 {
		banner = DefaultBannerDuration
	}
	return &Controller{
		searcher:    cfg.Searcher,
		uploader:    cfg.Uploader,
		catalog:     cfg.Catalog,
		player:      cfg.Player,
		streamURL:   cfg.StreamURL,
		clock:       clock,
		banner:      banner,
		state:       State{Page: Home, SearchResults: []backend.SearchResult{}},
		subscribers: make(map[uint64]func(View)),
	}
}

// Snapshot returns a copy of the page state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn to receive the view after every change. The
// returned function removes the subscription.
func (c *Controller) Subscribe(fn func(View)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subscribers, id)
	}
}

func (c *Controller) notify() {
	c.subMu.Lock()
	fns := make([]func(View), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	if len(fns) == 0 {
		return
	}
	view := c.View()
	for _, fn := range fns {
		fn(view)
	}
}

// Search runs a query and applies the outcome. A blank query does nothing.
// A successful scoped search with at least one hit started from Home opens
// the Player on the scoped video; any other success only replaces the
// results. A failure leaves the page and the previous results untouched.
func (c *Controller) Search(ctx context.Context, q backend.Query) error {
	if search.Blank(q.Text) {
		return nil
	}
	results, err := c.searcher.Search(ctx, q)
	if err != nil {
		c.notify()
		return err
	}

	c.mu.Lock()
	c.state.SearchResults = results
	if c.state.Page == Home && q.VideoID != nil && *q.VideoID != "" && len(results) > 0 {
		id := *q.VideoID
		c.state.SelectedVideoID = &id
		c.state.Page = Player
	}
	page := c.state.Page
	c.mu.Unlock()

	slog.Debug("navigation: search applied", "results", len(results), "page", page)
	c.notify()
	return nil
}

// Upload sends a video. On success the banner is shown for the banner
// duration (restarting it if already shown) and the catalog is refreshed.
func (c *Controller) Upload(ctx context.Context, blob upload.Blob) (backend.VideoDescriptor, error) {
	if !upload.IsVideo(blob.ContentType) {
		return backend.VideoDescriptor{}, upload.ErrNotVideo
	}
	desc, err := c.uploader.Upload(ctx, blob)
	if err != nil {
		c.notify()
		return backend.VideoDescriptor{}, err
	}

	c.showBanner()
	c.notify()

	c.catalog.Invalidate()
	if _, err := c.catalog.Refresh(ctx); err != nil {
		slog.Warn("navigation: catalog refresh after upload failed", "error", err)
	}
	c.notify()
	return desc, nil
}

func (c *Controller) showBanner() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.UploadSucceeded = true
	c.bannerGen++
	gen := c.bannerGen
	if c.bannerTimer != nil {
		c.bannerTimer.Stop()
	}
	c.bannerTimer = c.clock.AfterFunc(c.banner, func() { c.clearBanner(gen) })
}

func (c *Controller) clearBanner(gen uint64) {
	c.mu.Lock()
	if gen != c.bannerGen || !c.state.UploadSucceeded {
		c.mu.Unlock()
		return
	}
	c.state.UploadSucceeded = false
	c.bannerTimer = nil
	c.mu.Unlock()
	c.notify()
}

// OpenVideos handles "My Videos".
func (c *Controller) OpenVideos(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Page != Home && c.state.Page != Player {
		page := c.state.Page
		c.mu.Unlock()
		return notAllowed("open videos", page)
	}
	c.state.Page = VideoList
	c.mu.Unlock()
	c.notify()

	if _, err := c.catalog.List(ctx); err != nil {
		slog.Warn("navigation: catalog load failed", "error", err)
	}
	c.notify()
	return nil
}

// SelectVideo opens the Player on a video picked from the catalog.
func (c *Controller) SelectVideo(videoID string) error {
	c.mu.Lock()
	if c.state.Page != VideoList {
		page := c.state.Page
		c.mu.Unlock()
		return notAllowed("select video", page)
	}
	if videoID == "" {
		c.mu.Unlock()
		return notAllowed("select empty video", VideoList)
	}
	c.state.SelectedVideoID = &videoID
	c.state.Page = Player
	c.mu.Unlock()
	c.notify()
	return nil
}

// JumpTo handles a click on the index-th result or its marker: the Player
// opens on the result's video and a seek to its timestamp is requested.
func (c *Controller) JumpTo(index int) (overlay.Seek, error) {
	c.mu.Lock()
	if index < 0 || index >= len(c.state.SearchResults) {
		c.mu.Unlock()
		return overlay.Seek{}, ErrNoSuchResult
	}
	result := c.state.SearchResults[index]
	seek, err := overlay.Resolve(result)
	if err != nil {
		c.mu.Unlock()
		return overlay.Seek{}, err
	}
	id := result.VideoID
	c.state.SelectedVideoID = &id
	c.state.Page = Player
	c.mu.Unlock()

	c.notify()
	if c.player != nil {
		c.player.Seek(seek)
	}
	return seek, nil
}

// BackToSearch returns to Home.
func (c *Controller) BackToSearch() error {
	c.mu.Lock()
	if c.state.Page != VideoList && c.state.Page != Player {
		page := c.state.Page
		c.mu.Unlock()
		return notAllowed("back to search", page)
	}
	c.state.Page = Home
	c.mu.Unlock()
	c.notify()
	return nil
}

// RemoveVideo deletes a video through the catalog. Deleting the selected
// video clears the selection and leaves the Player.
func (c *Controller) RemoveVideo(ctx context.Context, videoID string) error {
	err := c.catalog.Remove(ctx, videoID)
	if err == nil {
		c.mu.Lock()
		if c.state.SelectedVideoID != nil && *c.state.SelectedVideoID == videoID {
			c.state.SelectedVideoID = nil
			if c.state.Page == Player {
				c.state.Page = Home
			}
		}
		c.mu.Unlock()
	}
	c.notify()
	return err
}

// RefreshVideos re-fetches the catalog.
func (c *Controller) RefreshVideos(ctx context.Context) ([]backend.VideoDescriptor, error) {
	videos, err := c.catalog.Refresh(ctx)
	c.notify()
	return videos, err
}

// Videos returns the catalog, loading it on first use.
func (c *Controller) Videos(ctx context.Context) ([]backend.VideoDescriptor, error) {
	videos, err := c.catalog.List(ctx)
	if err != nil {
		c.notify()
	}
	return videos, err
}

// Error sources accepted by DismissError.
const (
	SourceSearch  = "search"
	SourceUpload  = "upload"
	SourceCatalog = "catalog"
)

// DismissError clears the inline error of one component.
func (c *Controller) DismissError(source string) error {
	switch source {
	case SourceSearch:
		c.searcher.Dismiss()
	case SourceUpload:
		c.uploader.Dismiss()
	case SourceCatalog:
		c.catalog.Dismiss()
	default:
		return ErrUnknownError
	}
	c.notify()
	return nil
}

// Markers positions the hits for the selected video on a track of the
// given duration. Nothing is returned unless the Player page is shown.
func (c *Controller) Markers(durationSeconds float64) []overlay.Marker {
	state := c.Snapshot()
	markers := []overlay.Marker{}
	if state.Page != Player || state.SelectedVideoID == nil {
		return markers
	}
	for m := range overlay.MarkersFor(state.SearchResults, *state.SelectedVideoID, durationSeconds) {
		markers = append(markers, m)
	}
	return markers
}

// View assembles the page state with every component's status.
func (c *Controller) View() View {
	state := c.Snapshot()
	catalogState := c.catalog.State()
	v := View{
		State:          state,
		Results:        overlay.Entries(state.SearchResults),
		Search:         statusOf(c.searcher.State()),
		Upload:         statusOf(c.uploader.State()),
		UploadProgress: c.uploader.Progress(),
		Catalog:        statusOf(catalogState),
		Videos:         catalogState.Data,
	}
	if v.Videos == nil {
		v.Videos = []backend.VideoDescriptor{}
	}
	if state.SelectedVideoID != nil {
		id := *state.SelectedVideoID
		v.SelectedTitle = id
		if desc, ok := c.catalog.Lookup(id); ok {
			v.SelectedTitle = desc.Title()
		}
		if c.streamURL != nil {
			v.StreamURL = c.streamURL(id)
		}
	}
	return v
}

// Close stops the banner timer.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bannerTimer != nil {
		c.bannerTimer.Stop()
		c.bannerTimer = nil
	}
	c.bannerGen++
}
