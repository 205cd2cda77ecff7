package model

import (
	"time"
)

// ReferenceKind tells which grounding source produced a reference.
type ReferenceKind string

const (
	ReferenceWeb ReferenceKind = "web"
	ReferenceMap ReferenceKind = "map"
)

// Reference is a grounding citation: a title plus a locator URI.
type Reference struct {
	Kind  ReferenceKind `json:"kind"`
	Title string        `json:"title"`
	URI   string        `json:"uri"`
}

// NarrativeResult is the output of one text generation.
type NarrativeResult struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	References []Reference `json:"references"`

	// Suggestions are the search chips the provider asks to be displayed
	// alongside grounded answers.
	Suggestions []Reference `json:"suggestions,omitempty"`

	Vibe      Vibe          `json:"vibe"`
	Bucket    TimeBucket    `json:"time_bucket"`
	Model     string        `json:"model,omitempty"`
	Latency   time.Duration `json:"latency"`
	CreatedAt time.Time     `json:"created_at"`
}

// WordCount returns the number of whitespace-separated words in the text.
func (n *NarrativeResult) WordCount() int {
	count := 0
	inWord := false
	for _, r := range n.Text {
		switch r {
		case ' ', '\n', '\t', '\r':
			inWord = false
		default:
			if !inWord {
				count++
			}
			inWord = true
		}
	}
	return count
}
