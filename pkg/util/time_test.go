package util

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00.000"},
		{1500 * time.Millisecond, "00:00:01.500"},
		{159 * time.Second, "00:02:39.000"},
		{time.Hour + 2*time.Minute + 3*time.Second + 250*time.Millisecond, "01:02:03.250"},
		{-time.Second, "00:00:00.000"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"45.5", 45.5, false},
		{"02:29", 149, false},
		{"1:00:00", 3600, false},
		{"", 0, true},
		{"a:b", 0, true},
		{"1:2:3:4", 0, true},
		{"-3", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimestamp(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseRange(t *testing.T) {
	start, end, err := ParseRange("02:29-298")
	if err != nil {
		t.Fatalf("ParseRange failed: %v", err)
	}
	if start != 149 || end != 298 {
		t.Errorf("got %v-%v, want 149-298", start, end)
	}

	if _, _, err := ParseRange("10"); err == nil {
		t.Error("expected error for range without separator")
	}
}

func TestParseFrameRate(t *testing.T) {
	if got := ParseFrameRate("30/1"); got != 30 {
		t.Errorf("expected 30, got %v", got)
	}
	if got := ParseFrameRate("30/0"); got != 0 {
		t.Errorf("expected 0 for zero denominator, got %v", got)
	}
	if got := ParseFrameRate("garbage"); got != 0 {
		t.Errorf("expected 0 for garbage, got %v", got)
	}
}
