// Package upload sends one video at a time to the backend.
//
// Progress is binary: 0 while idle, in flight or after a failure, and 100
// once the backend has accepted the file. The backend answers with a single
// completion response, so no intermediate values exist.
package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/vidquery/vidquery/internal/async"
	"github.com/vidquery/vidquery/internal/backend"
)

// ErrNotVideo is returned for blobs whose content type is not video/*.
var ErrNotVideo = errors.New("only video files can be uploaded")

type Backend interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (backend.VideoDescriptor, error)
}

// Blob is a file picked for upload.
type Blob struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// IsVideo reports whether a content type denotes video content.
func IsVideo(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "video/")
}

type Uploader struct {
	backend Backend
	call    async.Call[*backend.VideoDescriptor]
}

func New(b Backend) *Uploader {
	return &Uploader{backend: b}
}

// Upload rejects non-video blobs before touching the network and allows
// one upload in flight at a time.
func (u *Uploader) Upload(ctx context.Context, blob Blob) (backend.VideoDescriptor, error) {
	if !IsVideo(blob.ContentType) {
		return backend.VideoDescriptor{}, ErrNotVideo
	}
	if err := u.call.Begin(); err != nil {
		return backend.VideoDescriptor{}, err
	}

	desc, err := u.backend.Upload(ctx, blob.Name, blob.ContentType, blob.Body)
	if err != nil {
		slog.Warn("upload: failed", "file", blob.Name, "size", blob.Size, "error", err)
		u.call.Fail(err)
		return backend.VideoDescriptor{}, err
	}

	slog.Info("upload: completed", "file", blob.Name, "video_id", desc.VideoID, "size", blob.Size)
	u.call.Succeed(&desc)
	return desc, nil
}

// Progress is 100 after a successful upload and 0 otherwise.
func (u *Uploader) Progress() int {
	if u.call.Snapshot().Status == async.Succeeded {
		return 100
	}
	return 0
}

func (u *Uploader) State() async.Snapshot[*backend.VideoDescriptor] {
	return u.call.Snapshot()
}

// Dismiss clears the surfaced upload error.
func (u *Uploader) Dismiss() {
	u.call.Dismiss()
}
