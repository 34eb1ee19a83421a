package overlay

import (
	"slices"
	"testing"

	"github.com/vidquery/vidquery/internal/backend"
	"github.com/vidquery/vidquery/internal/timecode"
)

func strPtr(s string) *string { return &s }

func sampleResults() []backend.SearchResult {
	return []backend.SearchResult{
		{VideoID: "v1", Timestamp: timecode.Text("01:05"), Score: 0.92, Caption: strPtr("a dog runs")},
		{VideoID: "v1", Timestamp: timecode.Seconds(325), Score: 0.71, Transcription: strPtr("good boy")},
		{VideoID: "v2", Timestamp: timecode.Seconds(30), Score: 0.5},
		{VideoID: "v1", Timestamp: timecode.Text("garbage"), Score: 0.4},
	}
}

func TestMarkersPositionHits(t *testing.T) {
	markers := slices.Collect(Markers(sampleResults(), 650))

	if len(markers) != 3 {
		t.Fatalf("expected 3 markers (bad timestamp skipped), got %d", len(markers))
	}
	first := markers[0]
	if first.Seconds != 65 || first.PositionPercent != 10 || first.Label != "1:05" {
		t.Errorf("unexpected first marker: %+v", first)
	}
	if markers[1].PositionPercent != 50 {
		t.Errorf("expected 50%%, got %v", markers[1].PositionPercent)
	}
	if markers[2].Index != 2 {
		t.Errorf("expected marker index to follow result order, got %d", markers[2].Index)
	}
}

func TestMarkersUnknownDurationAtZero(t *testing.T) {
	for m := range Markers(sampleResults(), 0) {
		if m.PositionPercent != 0 {
			t.Errorf("expected 0%% before metadata loads, got %v", m.PositionPercent)
		}
	}
}

func TestMarkersClampPastEnd(t *testing.T) {
	results := []backend.SearchResult{{VideoID: "v1", Timestamp: timecode.Seconds(900)}}
	markers := slices.Collect(Markers(results, 600))
	if len(markers) != 1 || markers[0].PositionPercent != 100 {
		t.Errorf("expected clamp to 100%%, got %+v", markers)
	}
}

func TestMarkersStopsEarly(t *testing.T) {
	count := 0
	for range Markers(sampleResults(), 650) {
		count++
		break
	}
	if count != 1 {
		t.Errorf("expected iteration to stop after one marker, got %d", count)
	}
}

func TestMarkersForFiltersByVideo(t *testing.T) {
	markers := slices.Collect(MarkersFor(sampleResults(), "v2", 60))
	if len(markers) != 1 || markers[0].Result.VideoID != "v2" || markers[0].PositionPercent != 50 {
		t.Errorf("unexpected markers: %+v", markers)
	}
}

func TestResolveDoesNotMutateResults(t *testing.T) {
	results := sampleResults()
	snapshot := slices.Clone(results)

	seek, err := Resolve(results[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seek.VideoID != "v1" || seek.Seconds != 65 {
		t.Errorf("unexpected seek: %+v", seek)
	}
	for i := range results {
		if results[i].Timestamp != snapshot[i].Timestamp || results[i].VideoID != snapshot[i].VideoID {
			t.Fatalf("result %d changed", i)
		}
	}

	if _, err := Resolve(results[3]); err == nil {
		t.Error("expected error for malformed timestamp")
	}
}

func TestEntries(t *testing.T) {
	entries := Entries(sampleResults())
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	want := []Entry{
		{Index: 0, VideoID: "v1", Timestamp: "01:05", ScorePercent: 92, Description: "a dog runs"},
		{Index: 1, VideoID: "v1", Timestamp: "5:25", ScorePercent: 71, Description: "good boy"},
		{Index: 2, VideoID: "v2", Timestamp: "0:30", ScorePercent: 50, Description: "No description"},
	}
	for i, w := range want {
		if entries[i] != w {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], w)
		}
	}
}

func TestProgress(t *testing.T) {
	if got := Progress(30, 120); got != 25 {
		t.Errorf("expected 25, got %v", got)
	}
	if got := Progress(30, 0); got != 0 {
		t.Errorf("expected 0 with unknown duration, got %v", got)
	}
}
