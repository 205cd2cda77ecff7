// Package prompts renders the narrative instruction from text templates.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"math/rand"
	"path"
	"strings"
	"text/template"

	"vibewalk/pkg/model"
)

//go:embed templates
var embedded embed.FS

// NarrativeTemplate is the template used for story requests.
const NarrativeTemplate = "narrator/narrative.tmpl"

// NarrativeData is the input to NarrativeTemplate.
type NarrativeData struct {
	Coords   model.Coordinates
	Bucket   model.TimeBucket
	Vibe     model.VibeInfo
	WordsMin int
	WordsMax int
	RadiusKM float64
	Language string
}

// Manager handles loading and rendering of prompt templates.
type Manager struct {
	root *template.Template
}

// Default returns a manager over the built-in templates.
func Default() (*Manager, error) {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, err
	}
	return NewManager(sub)
}

// NewManager loads every .tmpl file in fsys. Files under common/ are parsed
// first so their definitions are available to the others.
func NewManager(fsys fs.FS) (*Manager, error) {
	m := &Manager{}
	m.root = template.New("root").Funcs(template.FuncMap{
		"vibe":  m.vibeFunc,
		"maybe": maybeFunc,
		"pick":  pickFunc,
		"lower": strings.ToLower,
	})

	if err := m.load(fsys, true); err != nil {
		return nil, fmt.Errorf("loading common templates: %w", err)
	}
	if err := m.load(fsys, false); err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	return m, nil
}

func (m *Manager) load(fsys fs.FS, common bool) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".tmpl" {
			return nil
		}
		if strings.HasPrefix(p, "common/") != common {
			return nil
		}

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}

		t := m.root
		if !common {
			t = m.root.New(p)
		}
		if _, err := t.Parse(string(content)); err != nil {
			return fmt.Errorf("parsing %s: %w", p, err)
		}
		return nil
	})
}

// Render executes the named template with the provided data.
func (m *Manager) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := m.root.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// RenderNarrative renders the story request prompt.
func (m *Manager) RenderNarrative(data NarrativeData) (string, error) {
	return m.Render(NarrativeTemplate, data)
}

// vibeFunc renders "vibe/<id>.tmpl" if it exists.
func (m *Manager) vibeFunc(id model.Vibe, data any) (string, error) {
	if id == "" {
		return "", nil
	}
	t := m.root.Lookup("vibe/" + strings.ToLower(string(id)) + ".tmpl")
	if t == nil {
		return "", nil
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// maybeFunc includes content with a given probability (0-100).
// Usage: {{maybe 50 "This text appears 50% of the time"}}
func maybeFunc(percent int, content string) string {
	if percent <= 0 {
		return ""
	}
	if percent >= 100 || rand.Intn(100) < percent {
		return content
	}
	return ""
}

// pickFunc selects one random option from a list separated by "|||".
// Usage: {{pick "Option A|||Option B|||Option C"}}
func pickFunc(options string) string {
	parts := strings.Split(options, "|||")
	return strings.TrimSpace(parts[rand.Intn(len(parts))])
}
