// Package catalog mirrors the backend's list of uploaded videos.
//
// The backend is the source of truth: every write (upload, delete) is
// followed by a full re-fetch rather than a local edit of the cached list.
package catalog

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/vidquery/vidquery/internal/async"
	"github.com/vidquery/vidquery/internal/backend"
)

type Backend interface {
	ListVideos(ctx context.Context) ([]backend.VideoDescriptor, error)
	DeleteVideo(ctx context.Context, videoID string) error
}

type Catalog struct {
	backend Backend
	group   singleflight.Group
	call    async.Call[[]backend.VideoDescriptor]

	mu        sync.Mutex
	loaded    bool
	stale     bool
	removeErr error
	// gen counts writes; a fetch that started before the latest write
	// never replaces the cache.
	gen      uint64
	fetching int
}

func New(b Backend) *Catalog {
	return &Catalog{backend: b}
}

// List returns the cached catalog, fetching it on first use or after
// Invalidate. Concurrent fetches share one backend call.
func (c *Catalog) List(ctx context.Context) ([]backend.VideoDescriptor, error) {
	c.mu.Lock()
	fresh := c.loaded && !c.stale
	c.mu.Unlock()
	if fresh {
		return slices.Clone(c.call.Snapshot().Data), nil
	}
	return c.Refresh(ctx)
}

// Refresh re-fetches the catalog. On failure the cached list is kept and
// the error is recorded.
func (c *Catalog) Refresh(ctx context.Context) ([]backend.VideoDescriptor, error) {
	v, err, shared := c.group.Do("list", func() (any, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("catalog: joined in-flight fetch")
	}
	return slices.Clone(v.([]backend.VideoDescriptor)), nil
}

func (c *Catalog) fetch(ctx context.Context) ([]backend.VideoDescriptor, error) {
	c.mu.Lock()
	start := c.gen
	c.fetching++
	c.removeErr = nil
	c.mu.Unlock()

	// ErrInFlight only means an outdated fetch is still settling; this one
	// takes over the record.
	_ = c.call.Begin()
	videos, err := c.backend.ListVideos(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching--
	current := c.gen == start
	// An outdated fetch settles the record only if nothing newer did.
	settle := current || (c.fetching == 0 && c.call.Snapshot().Pending())
	if err != nil {
		slog.Warn("catalog: fetch failed", "error", err)
		if settle {
			c.call.Fail(err)
		}
		return nil, err
	}
	if !current {
		slog.Debug("catalog: discarded fetch started before a write", "count", len(videos))
		if settle {
			c.call.Succeed(c.call.Snapshot().Data)
		}
		return videos, nil
	}

	c.call.Succeed(videos)
	c.loaded = true
	c.stale = false
	slog.Info("catalog: refreshed", "count", len(videos))
	return videos, nil
}

// Invalidate marks the cache stale so the next List re-fetches. A fetch
// already in flight is not joined by later calls.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.stale = true
	c.mu.Unlock()
	c.group.Forget("list")
}

// Remove deletes a video and re-fetches the catalog. A failed delete leaves
// the cached list untouched. If the delete succeeds but the re-fetch fails,
// the id is dropped from the cached copy and the cache is marked stale so
// the deleted video is never listed again.
func (c *Catalog) Remove(ctx context.Context, videoID string) error {
	if err := c.backend.DeleteVideo(ctx, videoID); err != nil {
		slog.Warn("catalog: delete failed", "video_id", videoID, "error", err)
		c.setRemoveErr(err)
		return err
	}
	c.mu.Lock()
	c.gen++
	c.removeErr = nil
	c.mu.Unlock()
	c.group.Forget("list")
	slog.Info("catalog: deleted video", "video_id", videoID)

	if _, err := c.Refresh(ctx); err != nil {
		c.call.Update(func(videos []backend.VideoDescriptor) []backend.VideoDescriptor {
			return slices.DeleteFunc(slices.Clone(videos), func(v backend.VideoDescriptor) bool {
				return v.VideoID == videoID
			})
		})
		c.Invalidate()
	}
	return nil
}

// Lookup returns the cached descriptor for videoID.
func (c *Catalog) Lookup(videoID string) (backend.VideoDescriptor, bool) {
	for _, v := range c.call.Snapshot().Data {
		if v.VideoID == videoID {
			return v, true
		}
	}
	return backend.VideoDescriptor{}, false
}

func (c *Catalog) setRemoveErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeErr = err
}

// State reports the fetch lifecycle; a failed delete shows as the error
// unless a fetch is in flight.
func (c *Catalog) State() async.Snapshot[[]backend.VideoDescriptor] {
	s := c.call.Snapshot()
	s.Data = slices.Clone(s.Data)

	c.mu.Lock()
	removeErr := c.removeErr
	c.mu.Unlock()
	if removeErr != nil && !s.Pending() {
		s = s.WithError(removeErr)
	}
	return s
}

// Dismiss clears the surfaced catalog error.
func (c *Catalog) Dismiss() {
	c.setRemoveErr(nil)
	c.call.Dismiss()
}
