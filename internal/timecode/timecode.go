// Package timecode converts search-result timestamps between the two
// encodings the search backend returns (seconds as a JSON number and "mm:ss"
// strings) and places them on a track of known duration.
package timecode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseError reports a timestamp or duration that cannot be interpreted.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("timecode: cannot parse %q: %s", e.Input, e.Reason)
}

// Timestamp is an offset into one video's track. It keeps the encoding it
// was received in so it can be displayed and re-encoded unchanged.
type Timestamp struct {
	seconds float64
	text    string
	isText  bool
}

// Seconds builds a numeric timestamp.
func Seconds(s float64) Timestamp {
	return Timestamp{seconds: s}
}

// Text builds a "mm:ss" timestamp. The string is validated lazily by ToSeconds.
func Text(s string) Timestamp {
	return Timestamp{text: s, isText: true}
}

// IsText reports whether the timestamp arrived as a "mm:ss" string.
func (t Timestamp) IsText() bool { return t.isText }

// String returns the timestamp as the backend sent it.
func (t Timestamp) String() string {
	if t.isText {
		return t.text
	}
	return strconv.FormatFloat(t.seconds, 'f', -1, 64)
}

// Display returns the label shown next to a result: strings verbatim,
// numbers formatted as m:ss.
func (t Timestamp) Display() string {
	if t.isText {
		return t.text
	}
	s, err := ToDisplay(t.seconds)
	if err != nil {
		return t.String()
	}
	return s
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.isText {
		return json.Marshal(t.text)
	}
	return json.Marshal(t.seconds)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return &ParseError{Input: string(data), Reason: "timestamp must be a number or a mm:ss string"}
	}
	*t = Seconds(f)
	return nil
}

// ToSeconds resolves a timestamp to seconds from the start of its track.
func ToSeconds(t Timestamp) (float64, error) {
	if !t.isText {
		if t.seconds < 0 || math.IsNaN(t.seconds) || math.IsInf(t.seconds, 0) {
			return 0, &ParseError{Input: t.String(), Reason: "seconds must be finite and non-negative"}
		}
		return t.seconds, nil
	}
	return parseClock(t.text)
}

// maxClockSeconds is the largest whole second count a float64 holds exactly.
const maxClockSeconds = 1 << 53

// parseClock accepts minutes of any width and exactly two seconds digits.
func parseClock(s string) (float64, error) {
	minutes, seconds, ok := strings.Cut(s, ":")
	if !ok {
		return 0, &ParseError{Input: s, Reason: "expected mm:ss"}
	}
	if minutes == "" || !allDigits(minutes) {
		return 0, &ParseError{Input: s, Reason: "minutes must be digits"}
	}
	if len(seconds) != 2 || !allDigits(seconds) {
		return 0, &ParseError{Input: s, Reason: "seconds must be two digits"}
	}
	m, err := strconv.ParseUint(minutes, 10, 64)
	if err != nil || m > maxClockSeconds/60 {
		return 0, &ParseError{Input: s, Reason: "minutes out of range"}
	}
	sec, _ := strconv.ParseUint(seconds, 10, 8)
	if sec >= 60 {
		return 0, &ParseError{Input: s, Reason: "seconds must be below 60"}
	}
	total := m*60 + sec
	if total > maxClockSeconds {
		return 0, &ParseError{Input: s, Reason: "minutes out of range"}
	}
	return float64(total), nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ToDisplay formats seconds as m:ss. Seconds are floored and zero-padded;
// minutes are never padded.
func ToDisplay(seconds float64) (string, error) {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "", &ParseError{Input: strconv.FormatFloat(seconds, 'g', -1, 64), Reason: "seconds must be finite and non-negative"}
	}
	whole := int64(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", whole/60, whole%60), nil
}

// FractionOfDuration places t on a track of durationSeconds, clamped to
// [0,1]. An unknown duration (<= 0 or not finite) yields 0.
func FractionOfDuration(t Timestamp, durationSeconds float64) (float64, error) {
	s, err := ToSeconds(t)
	if err != nil {
		return 0, err
	}
	if !knownDuration(durationSeconds) {
		return 0, nil
	}
	return clamp(s/durationSeconds, 0, 1), nil
}

// Percent is FractionOfDuration scaled to 0–100.
func Percent(t Timestamp, durationSeconds float64) (float64, error) {
	s, err := ToSeconds(t)
	if err != nil {
		return 0, err
	}
	return PercentOf(s, durationSeconds), nil
}

// PercentOf places an already-resolved offset on the track.
func PercentOf(seconds, durationSeconds float64) float64 {
	if !knownDuration(durationSeconds) || seconds < 0 || math.IsNaN(seconds) {
		return 0
	}
	return clamp(100*seconds/durationSeconds, 0, 100)
}

// FormatPosition renders the player clock, e.g. "1:05 / 10:50".
func FormatPosition(current, duration float64) string {
	cur, err := ToDisplay(current)
	if err != nil {
		cur = "0:00"
	}
	total, err := ToDisplay(duration)
	if err != nil || !knownDuration(duration) {
		total = "0:00"
	}
	return cur + " / " + total
}

func knownDuration(d float64) bool {
	return d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
