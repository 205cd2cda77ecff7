package tts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStripSpeakerLabels(t *testing.T) {
	in := "Narrator: The fog came in.\nGuide (soft): Listen."
	want := "The fog came in.\nListen."
	if got := StripSpeakerLabels(in); got != want {
		t.Errorf("StripSpeakerLabels() = %q, want %q", got, want)
	}
}

func TestCleanForSpeech(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Plain", "The pier creaks.", "The pier creaks."},
		{"Heading", "## The Pier\nThe pier creaks.", "The Pier\nThe pier creaks."},
		{"Emphasis", "It was *very* **old** and _quiet_.", "It was very old and quiet."},
		{"Citations", "Built in 1898 [1, 2]. Rebuilt later[3].", "Built in 1898 . Rebuilt later."},
		{"BlankLines", "One.\n\n\n\nTwo.", "One.\n\nTwo."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanForSpeech(tt.in); got != tt.want {
				t.Errorf("CleanForSpeech() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPCMRate(t *testing.T) {
	tests := []struct {
		mime string
		rate int
		ok   bool
	}{
		{"audio/L16;codec=pcm;rate=24000", 24000, true},
		{"audio/L16; rate=16000", 16000, true},
		{"audio/pcm;rate=44100", 44100, true},
		{"audio/L16", 0, false},
		{"audio/wav", 0, false},
		{"audio/L16;rate=abc", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		rate, ok := PCMRate(tt.mime)
		if rate != tt.rate || ok != tt.ok {
			t.Errorf("PCMRate(%q) = %d, %v; want %d, %v", tt.mime, rate, ok, tt.rate, tt.ok)
		}
	}
}

func TestLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tts.log")
	SetLogPath(path)
	t.Cleanup(func() { SetLogPath("") })

	Log("gemini", "Kore", "Hello there", 4800, nil)
	Log("gemini", "Kore", "Again", 0, errors.New("quota"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{"[gemini/Kore] STATUS: OK 4800 bytes", "Hello there", "ERROR(quota)"} {
		if !strings.Contains(s, want) {
			t.Errorf("log missing %q", want)
		}
	}
}
