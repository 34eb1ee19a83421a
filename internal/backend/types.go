package backend

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vidquery/vidquery/internal/timecode"
)

// Kind selects the search index.
type Kind string

const (
	Visual Kind = "visual"
	Audio  Kind = "audio"
)

var ErrUnknownKind = errors.New("unknown search kind")

// ParseKind accepts "visual" and "audio"; empty defaults to visual.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", Visual:
		return Visual, nil
	case Audio:
		return Audio, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownKind)
}

func (k Kind) endpoint() string {
	if k == Audio {
		return "/search/audio"
	}
	return "/search/video"
}

// VideoDescriptor identifies an uploaded video.
type VideoDescriptor struct {
	VideoID      string  `json:"video_id"`
	OriginalName *string `json:"original_name"`
}

// Title prefers the uploaded file name and falls back to the id.
func (v VideoDescriptor) Title() string {
	if v.OriginalName != nil && *v.OriginalName != "" {
		return *v.OriginalName
	}
	return v.VideoID
}

// SearchResult is one ranked hit. Caption is set for visual hits,
// Transcription for audio hits; either may be absent.
type SearchResult struct {
	VideoID       string             `json:"video_id"`
	Timestamp     timecode.Timestamp `json:"timestamp"`
	Score         float64            `json:"score"`
	Caption       *string            `json:"caption,omitempty"`
	Transcription *string            `json:"transcription,omitempty"`
}

// Description is the text shown for a hit.
func (r SearchResult) Description() string {
	if r.Caption != nil && *r.Caption != "" {
		return *r.Caption
	}
	if r.Transcription != nil && *r.Transcription != "" {
		return *r.Transcription
	}
	return "No description"
}

// ScorePercent is the score rounded to a whole percentage.
func (r SearchResult) ScorePercent() int {
	return int(r.Score*100 + 0.5)
}

type searchRequest struct {
	Query   string  `json:"query"`
	VideoID *string `json:"video_id"`
	TopK    int     `json:"top_k"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// videoList accepts both {"videos": [...]} and a bare array.
type videoList []VideoDescriptor

func (l *videoList) UnmarshalJSON(data []byte) error {
	var bare []VideoDescriptor
	if err := json.Unmarshal(data, &bare); err == nil {
		*l = bare
		return nil
	}
	var wrapped struct {
		Videos []VideoDescriptor `json:"videos"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*l = wrapped.Videos
	return nil
}
