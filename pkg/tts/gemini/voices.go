package gemini

import (
	"strings"

	"vibewalk/pkg/tts"
)

// DefaultVoice is the prebuilt voice used for narration.
const DefaultVoice = "Kore"

// voices are the prebuilt Gemini speech voices.
var voices = []tts.Voice{
	{ID: "aoede", Name: "Aoede", Gender: "Female", Style: "Breezy, clear, composed"},
	{ID: "zephyr", Name: "Zephyr", Gender: "Female", Style: "Bright, energetic"},
	{ID: "kore", Name: "Kore", Gender: "Female", Style: "Firm, calm, soothing"},
	{ID: "leda", Name: "Leda", Gender: "Female", Style: "Youthful, direct"},
	{ID: "callirrhoe", Name: "Callirrhoe", Gender: "Female", Style: "Easy-going, expressive"},
	{ID: "despina", Name: "Despina", Gender: "Female", Style: "Smooth, warm"},
	{ID: "charon", Name: "Charon", Gender: "Male", Style: "Informative, deep, steady"},
	{ID: "fenrir", Name: "Fenrir", Gender: "Male", Style: "Excitable, resonant"},
	{ID: "puck", Name: "Puck", Gender: "Male", Style: "Upbeat, playful"},
	{ID: "orus", Name: "Orus", Gender: "Male", Style: "Firm, balanced"},
	{ID: "umbriel", Name: "Umbriel", Gender: "Male", Style: "Easy-going, narrator-like"},
	{ID: "enceladus", Name: "Enceladus", Gender: "Male", Style: "Breathy, hushed"},
}

// Voices returns the known prebuilt voices.
func Voices() []tts.Voice {
	out := make([]tts.Voice, len(voices))
	copy(out, voices)
	return out
}

// LookupVoice finds a voice by id or name, case-insensitively.
func LookupVoice(name string) (tts.Voice, bool) {
	for _, v := range voices {
		if strings.EqualFold(v.ID, name) || strings.EqualFold(v.Name, name) {
			return v, true
		}
	}
	return tts.Voice{}, false
}
