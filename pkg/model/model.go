package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Coordinates is a location fix in degrees (WGS84).
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both components are finite and in range.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// TimeBucket is a coarse classification of the local time of day.
type TimeBucket string

const (
	Morning   TimeBucket = "morning"
	Afternoon TimeBucket = "afternoon"
	Evening   TimeBucket = "evening"
	Night     TimeBucket = "night"
)

// BucketForHour maps a local hour (0-23) to its bucket.
// 05-11 morning, 12-16 afternoon, 17-20 evening, everything else night.
func BucketForHour(hour int) TimeBucket {
	switch {
	case hour >= 5 && hour < 12:
		return Morning
	case hour >= 12 && hour < 17:
		return Afternoon
	case hour >= 17 && hour < 21:
		return Evening
	default:
		return Night
	}
}

// BucketFor returns the bucket of t in t's own location.
func BucketFor(t time.Time) TimeBucket {
	return BucketForHour(t.Hour())
}

// Label returns the capitalised name used in prompts and the UI.
func (b TimeBucket) Label() string {
	return capitalize(string(b))
}

// Vibe is the user-selected narrative tone.
type Vibe string

const (
	VibeMysterious  Vibe = "mysterious"
	VibeWhimsical   Vibe = "whimsical"
	VibeHistorical  Vibe = "historical"
	VibeRomantic    Vibe = "romantic"
	VibeEerie       Vibe = "eerie"
	VibeAdventurous Vibe = "adventurous"
	VibeSerene      Vibe = "serene"
)

// VibeInfo describes a vibe for prompts and the UI.
type VibeInfo struct {
	ID          Vibe   `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var vibes = []VibeInfo{
	{VibeMysterious, "Mysterious", "hushed, suggestive, full of half-told secrets"},
	{VibeWhimsical, "Whimsical", "playful and light, noticing the odd and the charming"},
	{VibeHistorical, "Historical", "rich with the people and events that shaped the place"},
	{VibeRomantic, "Romantic", "warm and lyrical, lingering on light, colour and feeling"},
	{VibeEerie, "Eerie", "unsettling and quiet, with shadows at the edge of things"},
	{VibeAdventurous, "Adventurous", "energetic, urging the listener onward to explore"},
	{VibeSerene, "Serene", "calm and slow, attentive to sound, air and stillness"},
}

// Vibes returns all vibes in display order.
func Vibes() []VibeInfo {
	out := make([]VibeInfo, len(vibes))
	copy(out, vibes)
	return out
}

// ParseVibe accepts an id or label, case-insensitively.
func ParseVibe(s string) (Vibe, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, v := range vibes {
		if string(v.ID) == s {
			return v.ID, nil
		}
	}
	return "", fmt.Errorf("unknown vibe %q", s)
}

// Info returns the description of v. Unknown vibes get a bare label.
func (v Vibe) Info() VibeInfo {
	for _, info := range vibes {
		if info.ID == v {
			return info
		}
	}
	return VibeInfo{ID: v, Label: capitalize(string(v))}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
