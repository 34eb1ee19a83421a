// Package overlay places search hits on a player's progress track and
// resolves clicks on markers or result rows into seek requests.
package overlay

import (
	"iter"

	"github.com/vidquery/vidquery/internal/backend"
	"github.com/vidquery/vidquery/internal/timecode"
)

// Marker is one search hit positioned on a track.
type Marker struct {
	Index           int                  `json:"index"`
	Result          backend.SearchResult `json:"result"`
	Seconds         float64              `json:"seconds"`
	PositionPercent float64              `json:"positionPercent"`
	Label           string               `json:"label"`
}

// Markers yields a marker for every result whose timestamp parses, in
// result order. It is recomputed from scratch on every call; an unknown
// duration places every marker at 0.
func Markers(results []backend.SearchResult, durationSeconds float64) iter.Seq[Marker] {
	return func(yield func(Marker) bool) {
		for i, r := range results {
			seconds, err := timecode.ToSeconds(r.Timestamp)
			if err != nil {
				continue
			}
			label, _ := timecode.ToDisplay(seconds)
			m := Marker{
				Index:           i,
				Result:          r,
				Seconds:         seconds,
				PositionPercent: timecode.PercentOf(seconds, durationSeconds),
				Label:           label,
			}
			if !yield(m) {
				return
			}
		}
	}
}

// MarkersFor restricts Markers to hits on the loaded video.
func MarkersFor(results []backend.SearchResult, videoID string, durationSeconds float64) iter.Seq[Marker] {
	return func(yield func(Marker) bool) {
		for m := range Markers(results, durationSeconds) {
			if m.Result.VideoID != videoID {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// Seek asks the playback primitive to jump within a video.
type Seek struct {
	VideoID string  `json:"videoId"`
	Seconds float64 `json:"seconds"`
}

// Resolve turns a clicked hit into a seek request.
func Resolve(r backend.SearchResult) (Seek, error) {
	seconds, err := timecode.ToSeconds(r.Timestamp)
	if err != nil {
		return Seek{}, err
	}
	return Seek{VideoID: r.VideoID, Seconds: seconds}, nil
}

// Entry is a row of the results list.
type Entry struct {
	Index        int    `json:"index"`
	VideoID      string `json:"videoId"`
	Timestamp    string `json:"timestamp"`
	ScorePercent int    `json:"scorePercent"`
	Description  string `json:"description"`
}

func Entries(results []backend.SearchResult) []Entry {
	entries := make([]Entry, 0, len(results))
	for i, r := range results {
		entries = append(entries, Entry{
			Index:        i,
			VideoID:      r.VideoID,
			Timestamp:    r.Timestamp.Display(),
			ScorePercent: r.ScorePercent(),
			Description:  r.Description(),
		})
	}
	return entries
}

// Progress is the filled share of the progress bar, in percent.
func Progress(currentSeconds, durationSeconds float64) float64 {
	return timecode.PercentOf(currentSeconds, durationSeconds)
}
