package tts

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	speakerLabelRegex = regexp.MustCompile(`(?m)^[A-Za-z]+(\s*\([^)]+\))?:\s*`)
	headingRegex      = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	emphasisRegex     = regexp.MustCompile(`\*{1,3}([^*]+)\*{1,3}|_{1,2}([^_]+)_{1,2}`)
	bracketRegex      = regexp.MustCompile(`\[[0-9, ]+\]`)
	blankLinesRegex   = regexp.MustCompile(`\n{3,}`)
)

// StripSpeakerLabels removes speaker labels like "Narrator:" or
// "Guide (soft):" from the start of lines.
func StripSpeakerLabels(script string) string {
	return speakerLabelRegex.ReplaceAllString(script, "")
}

// CleanForSpeech removes markup that would be read aloud: speaker labels,
// markdown headings and emphasis, and numeric citation markers like [1, 2].
func CleanForSpeech(text string) string {
	text = StripSpeakerLabels(text)
	text = headingRegex.ReplaceAllString(text, "")
	text = emphasisRegex.ReplaceAllString(text, "$1$2")
	text = bracketRegex.ReplaceAllString(text, "")
	text = blankLinesRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// PCMRate extracts the sample rate from a raw PCM MIME type such as
// "audio/L16;codec=pcm;rate=24000".
func PCMRate(mime string) (int, bool) {
	parts := strings.Split(mime, ";")
	if !strings.EqualFold(strings.TrimSpace(parts[0]), "audio/L16") &&
		!strings.EqualFold(strings.TrimSpace(parts[0]), "audio/pcm") {
		return 0, false
	}
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(k, "rate") {
			continue
		}
		rate, err := strconv.Atoi(v)
		if err != nil || rate <= 0 {
			return 0, false
		}
		return rate, true
	}
	return 0, false
}
