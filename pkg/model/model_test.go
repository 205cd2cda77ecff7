package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketForHour(t *testing.T) {
	tests := []struct {
		hour int
		want TimeBucket
	}{
		{0, Night},
		{4, Night},
		{5, Morning},
		{11, Morning},
		{12, Afternoon},
		{16, Afternoon},
		{17, Evening},
		{20, Evening},
		{21, Night},
		{23, Night},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketForHour(tt.hour), "hour %d", tt.hour)
	}
}

func TestBucketFor_UsesLocalHour(t *testing.T) {
	loc := time.FixedZone("PDT", -7*3600)
	ts := time.Date(2026, 10, 16, 8, 30, 0, 0, loc)
	assert.Equal(t, Morning, BucketFor(ts))
	assert.Equal(t, "Morning", BucketFor(ts).Label())
}

func TestVibes(t *testing.T) {
	all := Vibes()
	assert.Len(t, all, 7)

	seen := map[Vibe]bool{}
	for _, v := range all {
		assert.False(t, seen[v.ID], "duplicate vibe %s", v.ID)
		seen[v.ID] = true
		assert.NotEmpty(t, v.Description)
	}

	// Callers get a copy.
	all[0].Label = "changed"
	assert.Equal(t, "Mysterious", Vibes()[0].Label)
}

func TestParseVibe(t *testing.T) {
	v, err := ParseVibe("  Mysterious ")
	assert.NoError(t, err)
	assert.Equal(t, VibeMysterious, v)

	_, err = ParseVibe("grumpy")
	assert.Error(t, err)
}

func TestCoordinates_Valid(t *testing.T) {
	tests := []struct {
		name string
		c    Coordinates
		want bool
	}{
		{"San Francisco", Coordinates{37.7749, -122.4194}, true},
		{"Poles", Coordinates{90, 180}, true},
		{"LatTooHigh", Coordinates{90.1, 0}, false},
		{"LonTooLow", Coordinates{0, -180.5}, false},
		{"NaN", Coordinates{math.NaN(), 0}, false},
		{"Inf", Coordinates{0, math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Valid())
		})
	}
}

func TestNarrativeResult_WordCount(t *testing.T) {
	n := &NarrativeResult{Text: "  The fog rolls\nin over\tthe bay.  "}
	assert.Equal(t, 7, n.WordCount())
	assert.Equal(t, 0, (&NarrativeResult{}).WordCount())
}
