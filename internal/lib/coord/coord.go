// Package coord renders canonical coordinate strings. Every component that
// matches waypoints by coordinate goes through these functions, so the
// output must be byte-identical across callers: 6 decimal digits, '.' as
// the decimal point, no grouping, regardless of locale.
package coord

import (
	"math"
	"strconv"
)

// Format returns the latitude and longitude as fixed 6-decimal strings,
// rounded half away from zero. NaN and infinities format as given,
// validation is the caller's job.
func Format(lat, lng float64) (string, string) {
	return fixed6(lat), fixed6(lng)
}

// Key returns the composite "<lat6>,<lng6>" key used for duplicate
// matching in the waypoint collections.
func Key(lat, lng float64) string {
	latStr, lngStr := Format(lat, lng)

	return latStr + "," + lngStr
}

// Placeholder is the synthesized text used in place of an empty
// transcription result.
func Placeholder(lat, lng float64) string {
	return Key(lat, lng) + " (no text)"
}

func fixed6(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 6, 64)
	}

	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', 6, 64)
}
