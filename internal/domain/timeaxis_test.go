package domain

import (
	"testing"
	"time"
)

// TestParseTimeUnits tests common CF reference strings.
func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units   string
		seconds float64
		ref     time.Time
	}{
		{"hours since 1950-01-01", 3600, time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"seconds since 1970-01-01 00:00:00", 1, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"days since 2024-09-20T12:00:00Z", 86400, time.Date(2024, 9, 20, 12, 0, 0, 0, time.UTC)},
		{"minutes since 2000-1-1", 60, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		u, err := ParseTimeUnits(tt.units)
		if err != nil {
			t.Fatalf("%q: %v", tt.units, err)
		}
		if u.Seconds != tt.seconds || !u.Reference.Equal(tt.ref) {
			t.Errorf("%q: got %v since %v", tt.units, u.Seconds, u.Reference)
		}
	}

	for _, bad := range []string{"", "hours", "fortnights since 2000-01-01", "days since yesterday"} {
		if _, err := ParseTimeUnits(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

// TestFloorToDay tests rounding down to midnight in the source units.
func TestFloorToDay(t *testing.T) {
	// 2024-09-20 06:00 and 18:00 in hours since 1950-01-01.
	base := time.Date(2024, 9, 20, 0, 0, 0, 0, time.UTC).Sub(time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)).Hours()
	got, err := FloorToDay([]float64{base + 6, base + 18, base + 24}, "hours since 1950-01-01")
	if err != nil {
		t.Fatalf("FloorToDay: %v", err)
	}
	want := []float64{base, base, base + 24}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}
