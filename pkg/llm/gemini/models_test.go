package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"
	"google.golang.org/genai"
)

type fakeModels struct {
	getErr  error
	listErr error
	items   []*genai.Model
	got     string
}

func (f *fakeModels) Get(ctx context.Context, name string, cfg *genai.GetModelConfig) (*genai.Model, error) {
	f.got = name
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &genai.Model{Name: name}, nil
}

func (f *fakeModels) List(ctx context.Context, cfg *genai.ListModelsConfig) (genai.Page[genai.Model], error) {
	if f.listErr != nil {
		return genai.Page[genai.Model]{}, f.listErr
	}
	return genai.Page[genai.Model]{Items: f.items}, nil
}

func TestValidateModel(t *testing.T) {
	ok := &fakeModels{}
	require.NoError(t, validateModel(context.Background(), ok, "gemini-2.5-flash"))
	assert.Equal(t, "models/gemini-2.5-flash", ok.got)

	missing := &fakeModels{
		getErr: errors.New("404"),
		items:  []*genai.Model{{Name: "models/gemini-2.0-flash"}, {Name: "models/embedding-001"}},
	}
	err := validateModel(context.Background(), missing, "models/gemini-9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "models/gemini-9")

	listFails := &fakeModels{getErr: errors.New("404"), listErr: errors.New("403")}
	assert.Error(t, validateModel(context.Background(), listFails, "x"))
}

func TestModelIterator(t *testing.T) {
	svc := &fakeModels{items: []*genai.Model{{Name: "a"}, {Name: "b"}}}
	it := newModelIterator(context.Background(), svc)

	var names []string
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		require.NoError(t, err)
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)

	_, err := it.Next()
	assert.ErrorIs(t, err, iterator.Done)
}
