package server

import (
	"fmt"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vidquery/vidquery/internal/backend"
	"github.com/vidquery/vidquery/internal/httputil"
	"github.com/vidquery/vidquery/internal/navigation"
	"github.com/vidquery/vidquery/internal/overlay"
	"github.com/vidquery/vidquery/internal/timecode"
	"github.com/vidquery/vidquery/internal/upload"
	"github.com/vidquery/vidquery/internal/validate"
)

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, sessionFrom(r.Context()).Controller.View())
}

type searchRequest struct {
	Query   string  `json:"query"`
	Kind    string  `json:"kind"`
	VideoID *string `json:"videoId"`
	TopK    int     `json:"topK"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	if msg := validate.Query(req.Query); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if req.VideoID != nil {
		if msg := validate.VideoID(*req.VideoID); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
	}
	kind, err := backend.ParseKind(req.Kind)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if req.VideoID != nil && *req.VideoID == "" {
		req.VideoID = nil
	}

	ctrl := sessionFrom(r.Context()).Controller
	q := backend.Query{Text: req.Query, Kind: kind, VideoID: req.VideoID, TopK: req.TopK}
	if err := ctrl.Search(r.Context(), q); err != nil {
		writeFailure(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ctrl.View())
}

type uploadResponse struct {
	Video backend.VideoDescriptor `json:"video"`
	State navigation.View         `json:"state"`
}

// handleUpload streams the multipart "file" part to the backend without
// buffering it on disk.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}

	for {
		part, err := mr.NextPart()
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "missing file field")
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		if msg := validate.Filename(part.FileName()); msg != "" {
			_ = part.Close()
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}

		blob := upload.Blob{
			Name:        part.FileName(),
			ContentType: partContentType(part.Header.Get("Content-Type"), part.FileName()),
			Body:        part,
		}
		s.finishUpload(w, r, blob)
		_ = part.Close()
		return
	}
}

// partContentType trusts the declared type and falls back to the file
// extension when the browser sent none.
func partContentType(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if ext := path.Ext(filename); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return declared
}

type importRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		httputil.WriteError(w, http.StatusNotFound, "storage import is not configured")
		return
	}
	var req importRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}

	if msg := validate.ObjectKey(req.Key); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	blob, body, err := s.storage.Open(r.Context(), req.Key)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	defer func() { _ = body.Close() }()
	s.finishUpload(w, r, blob)
}

func (s *Server) finishUpload(w http.ResponseWriter, r *http.Request, blob upload.Blob) {
	ctrl := sessionFrom(r.Context()).Controller
	desc, err := ctrl.Upload(r.Context(), blob)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, uploadResponse{Video: desc, State: ctrl.View()})
}

type videosResponse struct {
	Videos  []backend.VideoDescriptor  `json:"videos"`
	Catalog navigation.ComponentStatus `json:"catalog"`
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	ctrl := sessionFrom(r.Context()).Controller
	if _, err := ctrl.Videos(r.Context()); err != nil {
		writeFailure(w, r, err)
		return
	}
	view := ctrl.View()
	httputil.WriteJSON(w, http.StatusOK, videosResponse{Videos: view.Videos, Catalog: view.Catalog})
}

func (s *Server) handleRefreshVideos(w http.ResponseWriter, r *http.Request) {
	ctrl := sessionFrom(r.Context()).Controller
	if _, err := ctrl.RefreshVideos(r.Context()); err != nil {
		writeFailure(w, r, err)
		return
	}
	view := ctrl.View()
	httputil.WriteJSON(w, http.StatusOK, videosResponse{Videos: view.Videos, Catalog: view.Catalog})
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if msg := validate.VideoID(id); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	ctrl := sessionFrom(r.Context()).Controller
	if err := ctrl.RemoveVideo(r.Context(), id); err != nil {
		writeFailure(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ctrl.View())
}

func (s *Server) handleOpenVideos(w http.ResponseWriter, r *http.Request) {
	ctrl := sessionFrom(r.Context()).Controller
	if err := ctrl.OpenVideos(r.Context()); err != nil {
		writeFailure(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ctrl.View())
}

func (s *Server) handleBackToSearch(w http.ResponseWriter, r *http.Request) {
	ctrl := sessionFrom(r.Context()).Controller
	if err := ctrl.BackToSearch(); err != nil {
		writeFailure(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ctrl.View())
}

func (s *Server) handleSelectVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if msg := validate.VideoID(id); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	ctrl := sessionFrom(r.Context()).Controller
	if err := ctrl.SelectVideo(id); err != nil {
		writeFailure(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ctrl.View())
}

type jumpResponse struct {
	Seek  overlay.Seek    `json:"seek"`
	State navigation.View `json:"state"`
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "result index must be an integer")
		return
	}
	ctrl := sessionFrom(r.Context()).Controller
	seek, err := ctrl.JumpTo(index)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, jumpResponse{Seek: seek, State: ctrl.View()})
}

type markersResponse struct {
	Markers         []overlay.Marker `json:"markers"`
	ProgressPercent float64          `json:"progressPercent"`
	Clock           string           `json:"clock"`
}

// handleMarkers positions the hits for the loaded video. duration is the
// media length reported by the browser and current its playback position;
// both default to 0 while metadata is loading.
func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	duration, err := floatParam(r, "duration")
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	current, err := floatParam(r, "current")
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	ctrl := sessionFrom(r.Context()).Controller
	httputil.WriteJSON(w, http.StatusOK, markersResponse{
		Markers:         ctrl.Markers(duration),
		ProgressPercent: overlay.Progress(current, duration),
		Clock:           timecode.FormatPosition(current, duration),
	})
}

func floatParam(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, httputil.ErrBadBody)
	}
	return v, nil
}

func (s *Server) handleDismissError(w http.ResponseWriter, r *http.Request) {
	ctrl := sessionFrom(r.Context()).Controller
	if err := ctrl.DismissError(chi.URLParam(r, "source")); err != nil {
		writeFailure(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ctrl.View())
}
