// Package markdown renders note content to HTML.
package markdown

import (
	"bytes"
	"fmt"
	"html"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/jun/notesync/internal/model"
)

// Renderer turns note content into HTML. Raw HTML in the source is omitted.
type Renderer struct {
	md goldmark.Markdown
}

func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithXHTML(),
		),
	)

	return &Renderer{md: md}
}

// Render converts Markdown to HTML.
func (r *Renderer) Render(source []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(source, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderNote renders a note: the escaped title, a line with its folder and
// tags when it has any, then the content.
func (r *Renderer) RenderNote(n model.Note) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<h1 class=\"note-title\">%s</h1>\n", html.EscapeString(n.Title))
	if n.Folder != "" || len(n.Tags) > 0 {
		buf.WriteString(`<p class="note-meta">`)
		if n.Folder != "" {
			fmt.Fprintf(&buf, `<span class="note-folder">%s</span>`, html.EscapeString(n.Folder))
		}
		for _, tag := range n.Tags {
			fmt.Fprintf(&buf, `<span class="note-tag">#%s</span>`, html.EscapeString(tag))
		}
		buf.WriteString("</p>\n")
	}
	if err := r.md.Convert([]byte(n.Content), &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
