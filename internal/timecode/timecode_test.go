package timecode

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestToSecondsParsesClockStrings(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"00:00", 0},
		{"01:05", 65},
		{"1:05", 65},
		{"10:59", 659},
		{"120:00", 7200},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ToSeconds(Text(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ToSeconds(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestToSecondsRejectsMalformedStrings(t *testing.T) {
	inputs := []string{"", "65", "1:5", "1:005", "a:05", "01:x5", "-1:05", "01:-5", "01:60", ":05", "01:05:00", "1.5:00"}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ToSeconds(Text(input))
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError for %q, got %v", input, err)
			}
		})
	}
}

func TestToSecondsNumeric(t *testing.T) {
	got, err := ToSeconds(Seconds(42.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42.5 {
		t.Errorf("expected 42.5, got %v", got)
	}

	for _, bad := range []float64{-1, math.NaN(), math.Inf(1)} {
		if _, err := ToSeconds(Seconds(bad)); err == nil {
			t.Errorf("expected error for %v", bad)
		}
	}
}

func TestToDisplay(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{65, "1:05"},
		{65.9, "1:05"},
		{600, "10:00"},
		{3725, "62:05"},
	}
	for _, tt := range tests {
		got, err := ToDisplay(tt.seconds)
		if err != nil {
			t.Fatalf("ToDisplay(%v): unexpected error: %v", tt.seconds, err)
		}
		if got != tt.want {
			t.Errorf("ToDisplay(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestToDisplayRejectsInvalidInput(t *testing.T) {
	for _, bad := range []float64{-0.5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := ToDisplay(bad)
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("ToDisplay(%v): expected ParseError, got %v", bad, err)
		}
	}
}

func TestRoundTripLargeWholeSeconds(t *testing.T) {
	for _, s := range []float64{258e9, 3e11, 1e15, 1<<53 - 1, 1 << 53} {
		display, err := ToDisplay(s)
		if err != nil {
			t.Fatalf("ToDisplay(%v): %v", s, err)
		}
		back, err := ToSeconds(Text(display))
		if err != nil {
			t.Fatalf("ToSeconds(%q): %v", display, err)
		}
		if back != s {
			t.Errorf("round trip of %v produced %v via %q", s, back, display)
		}
	}

	if _, err := ToSeconds(Text("150119987579017:00")); err == nil {
		t.Error("expected minutes beyond exact float range to be rejected")
	}
}

func TestRoundTripWholeSeconds(t *testing.T) {
	for s := 0; s <= 20000; s += 7 {
		display, err := ToDisplay(float64(s))
		if err != nil {
			t.Fatalf("ToDisplay(%d): %v", s, err)
		}
		back, err := ToSeconds(Text(display))
		if err != nil {
			t.Fatalf("ToSeconds(%q): %v", display, err)
		}
		if back != float64(s) {
			t.Fatalf("round trip of %d produced %v via %q", s, back, display)
		}
	}
}

func TestFractionOfDurationIsMonotonicAndBounded(t *testing.T) {
	const duration = 300.0
	previous := -1.0
	for s := 0.0; s <= duration; s += 2.5 {
		f, err := FractionOfDuration(Seconds(s), duration)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f < 0 || f > 1 {
			t.Fatalf("fraction %v out of range for %v", f, s)
		}
		if f < previous {
			t.Fatalf("fraction decreased at %v: %v < %v", s, f, previous)
		}
		previous = f
	}
}

func TestFractionOfDurationClampsPastEnd(t *testing.T) {
	f, err := FractionOfDuration(Text("20:00"), 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != 1 {
		t.Errorf("expected 1, got %v", f)
	}
}

func TestFractionOfDurationUnknownDurationIsZero(t *testing.T) {
	for _, d := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		for _, ts := range []Timestamp{Seconds(0), Seconds(30), Text("01:05")} {
			f, err := FractionOfDuration(ts, d)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f != 0 {
				t.Errorf("duration %v: expected 0, got %v", d, f)
			}
		}
	}
}

func TestFractionOfDurationPropagatesParseError(t *testing.T) {
	if _, err := FractionOfDuration(Text("bogus"), 100); err == nil {
		t.Error("expected parse error")
	}
}

func TestPercentOfSearchHit(t *testing.T) {
	seconds, err := ToSeconds(Text("01:05"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seconds != 65 {
		t.Fatalf("expected 65, got %v", seconds)
	}
	pct, err := Percent(Text("01:05"), 650)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pct != 10 {
		t.Errorf("expected 10%%, got %v", pct)
	}
}

func TestFormatPosition(t *testing.T) {
	if got := FormatPosition(65, 650); got != "1:05 / 10:50" {
		t.Errorf("got %q", got)
	}
	if got := FormatPosition(3, 0); got != "0:03 / 0:00" {
		t.Errorf("got %q", got)
	}
}

func TestTimestampJSONKeepsEncoding(t *testing.T) {
	var decoded struct {
		A Timestamp `json:"a"`
		B Timestamp `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.5, "b": "01:05"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.A.IsText() || decoded.A.String() != "12.5" {
		t.Errorf("unexpected numeric timestamp: %+v", decoded.A)
	}
	if !decoded.B.IsText() || decoded.B.String() != "01:05" {
		t.Errorf("unexpected text timestamp: %+v", decoded.B)
	}

	out, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"a":12.5,"b":"01:05"}` {
		t.Errorf("unexpected encoding: %s", out)
	}
}

func TestTimestampJSONRejectsOtherTypes(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`true`), &ts); err == nil {
		t.Error("expected error for boolean timestamp")
	}
}

func TestDisplay(t *testing.T) {
	if got := Seconds(65).Display(); got != "1:05" {
		t.Errorf("expected 1:05, got %q", got)
	}
	if got := Text("01:05").Display(); got != "01:05" {
		t.Errorf("expected verbatim 01:05, got %q", got)
	}
}
