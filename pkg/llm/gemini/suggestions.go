package gemini

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"google.golang.org/genai"

	"vibewalk/pkg/model"
)

// searchSuggestions extracts the search chips from the entry point widget.
// Grounded answers must be displayed with these chips; the UI renders them
// as plain links.
func searchSuggestions(meta *genai.GroundingMetadata) []model.Reference {
	if meta == nil || meta.SearchEntryPoint == nil || meta.SearchEntryPoint.RenderedContent == "" {
		return nil
	}
	return parseChips(meta.SearchEntryPoint.RenderedContent)
}

func parseChips(rendered string) []model.Reference {
	doc, err := html.Parse(strings.NewReader(rendered))
	if err != nil {
		return nil
	}

	var chips []model.Reference
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Style, atom.Script:
				return
			case atom.A:
				href := attr(n, "href")
				text := strings.Join(strings.Fields(textOf(n)), " ")
				if href != "" && text != "" {
					chips = append(chips, model.Reference{Kind: model.ReferenceWeb, Title: text, URI: href})
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return chips
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}
