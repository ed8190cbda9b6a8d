package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

var unitSeconds = map[string]float64{
	"second":  1,
	"seconds": 1,
	"sec":     1,
	"secs":    1,
	"s":       1,
	"minute":  60,
	"minutes": 60,
	"min":     60,
	"mins":    60,
	"hour":    3600,
	"hours":   3600,
	"hr":      3600,
	"hrs":     3600,
	"h":       3600,
	"day":     86400,
	"days":    86400,
	"d":       86400,
}

var referenceLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-1-2 15:4:5",
	"2006-1-2",
}

// TimeUnits is a parsed CF "<unit> since <reference>" string.
type TimeUnits struct {
	Seconds   float64 // Length of one unit in seconds.
	Reference time.Time
}

// ParseTimeUnits parses a CF time units attribute.
func ParseTimeUnits(units string) (TimeUnits, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return TimeUnits{}, fmt.Errorf("time units %q are not of the form '<unit> since <date>'", units)
	}
	sec, ok := unitSeconds[strings.ToLower(strings.TrimSpace(parts[0]))]
	if !ok {
		return TimeUnits{}, fmt.Errorf("unknown time unit %q", parts[0])
	}
	ref := strings.TrimSpace(parts[1])
	ref = strings.TrimSuffix(ref, " UTC")
	ref = strings.TrimSuffix(ref, "Z")
	if i := strings.Index(ref, "."); i > 0 {
		ref = ref[:i] // Drop fractional seconds.
	}
	for _, layout := range referenceLayouts {
		if t, err := time.Parse(layout, ref); err == nil {
			return TimeUnits{Seconds: sec, Reference: t.UTC()}, nil
		}
	}
	return TimeUnits{}, fmt.Errorf("cannot parse reference date %q", parts[1])
}

// Decode converts an offset into a time.
func (u TimeUnits) Decode(v float64) time.Time {
	return u.Reference.Add(time.Duration(math.Round(v * u.Seconds * float64(time.Second))))
}

// Encode converts a time into an offset.
func (u TimeUnits) Encode(t time.Time) float64 {
	return t.Sub(u.Reference).Seconds() / u.Seconds
}

// FloorToDay rounds every time value down to midnight UTC, keeping the units.
func FloorToDay(values []float64, units string) ([]float64, error) {
	u, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, v := range values {
		t := u.Decode(v)
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		out[i] = u.Encode(midnight)
	}
	return out, nil
}
