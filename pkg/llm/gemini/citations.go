package gemini

import (
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"vibewalk/pkg/model"
)

// references normalises grounding chunks into references. Web and Maps
// chunks are kept; any other shape is skipped. Duplicate URIs collapse to
// their first occurrence.
func references(meta *genai.GroundingMetadata) []model.Reference {
	if meta == nil {
		return nil
	}

	seen := make(map[string]bool)
	var refs []model.Reference
	add := func(kind model.ReferenceKind, title, uri string) {
		if uri == "" || seen[uri] {
			return
		}
		seen[uri] = true
		if title == "" {
			title = uri
		}
		refs = append(refs, model.Reference{Kind: kind, Title: title, URI: uri})
	}

	for _, chunk := range meta.GroundingChunks {
		switch {
		case chunk == nil:
		case chunk.Web != nil:
			title := chunk.Web.Title
			if title == "" {
				title = chunk.Web.Domain
			}
			add(model.ReferenceWeb, title, chunk.Web.URI)
		case chunk.Maps != nil:
			add(model.ReferenceMap, chunk.Maps.Title, chunk.Maps.URI)
		}
	}
	return refs
}

// logGroundingUsage logs which grounding tools the model actually used.
func logGroundingUsage(meta *genai.GroundingMetadata) {
	if meta == nil {
		slog.Warn("Gemini: grounding tools configured but not used")
		return
	}

	var web, maps int
	for _, chunk := range meta.GroundingChunks {
		switch {
		case chunk == nil:
		case chunk.Web != nil:
			web++
		case chunk.Maps != nil:
			maps++
		}
	}
	slog.Info("Gemini: grounding used",
		"web_chunks", web,
		"map_chunks", maps,
		"queries", strings.Join(meta.WebSearchQueries, " | "))
}
