package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyDeterminism(t *testing.T) {
	first := Key(37.774929, -122.419416)
	second := Key(37.774929, -122.419416)

	assert.Equal(t, first, second)
	assert.Equal(t, "37.774929,-122.419416", first)
}

func TestKeyIgnoresDigitsBeyondSixth(t *testing.T) {
	assert.Equal(t, Key(37.7749291, -122.4194161), Key(37.77492912, -122.41941618))
}

func TestFormatRoundsNotTruncates(t *testing.T) {
	lat, lng := Format(37.7749296, -122.4194168)

	assert.Equal(t, "37.774930", lat)
	assert.Equal(t, "-122.419417", lng)
}

func TestFormatRoundsHalfAwayFromZero(t *testing.T) {
	lat, _ := Format(0.0000025, 0)
	assert.Equal(t, "0.000003", lat)

	lat, _ = Format(-0.0000025, 0)
	assert.Equal(t, "-0.000003", lat)
}

func TestFormatFixedWidth(t *testing.T) {
	lat, lng := Format(60.0, -5.5)

	assert.Equal(t, "60.000000", lat)
	assert.Equal(t, "-5.500000", lng)
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "37.774929,-122.419416 (no text)", Placeholder(37.774929, -122.419416))
}
