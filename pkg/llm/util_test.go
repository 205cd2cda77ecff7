package llm

import (
	"testing"
)

func TestWordWrap(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  string
	}{
		{
			name:  "No wrap needed",
			input: "Hello World",
			width: 20,
			want:  "Hello World",
		},
		{
			name:  "Simple wrap",
			input: "Hello World",
			width: 5,
			want:  "Hello\nWorld",
		},
		{
			name:  "Long word preserved",
			input: "Hello Superextralongword World",
			width: 10,
			want:  "Hello\nSuperextralongword\nWorld",
		},
		{
			name:  "Paragraphs kept",
			input: "One two\n\nThree",
			width: 80,
			want:  "One two\n\nThree",
		},
		{
			name:  "Zero width",
			input: "a b c",
			width: 0,
			want:  "a b c",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WordWrap(tt.input, tt.width); got != tt.want {
				t.Errorf("WordWrap() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIndent(t *testing.T) {
	got := Indent("a\n\nb", "  ")
	if got != "  a\n\n  b" {
		t.Errorf("Indent() = %q", got)
	}
}
