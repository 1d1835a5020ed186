package markdown

import (
	"strings"
	"testing"

	"github.com/jun/notesync/internal/model"
)

func TestRenderer_Render(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Basic Markdown",
			input:    "# Hello",
			expected: "<h1 id=\"hello\">Hello</h1>\n",
		},
		{
			name:     "GFM Table",
			input:    "| A | B |\n|---|---|\n| 1 | 2 |",
			expected: "<table>",
		},
		{
			name:     "GFM Task List",
			input:    "- [ ] Task 1\n- [x] Task 2",
			expected: "<input disabled=\"\" type=\"checkbox\"",
		},
		{
			name:     "Mermaid Block",
			input:    "```mermaid\ngraph TD;\n    A-->B;\n```",
			expected: "<pre><code class=\"language-mermaid\">graph TD;\n    A--&gt;B;\n</code></pre>\n",
		},
		{
			name:     "Empty Input",
			input:    "",
			expected: "",
		},
		{
			name:     "GFM Strikethrough",
			input:    "~~deleted~~",
			expected: "<del>deleted</del>",
		},
		{
			name:     "GFM Autolink",
			input:    "Visit https://example.com for more",
			expected: "<a href=\"https://example.com\"",
		},
		{
			name:     "Heading ID auto-generation",
			input:    "## My Section",
			expected: "id=\"my-section\"",
		},
		{
			name:     "Raw HTML omitted",
			input:    "<div class=\"custom\">raw html</div>",
			expected: "<!-- raw HTML omitted -->",
		},
	}

	renderer := NewRenderer()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := renderer.Render([]byte(tt.input))
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			got := string(output)
			if !strings.Contains(got, tt.expected) {
				t.Errorf("Render() = %v, want substring %v", got, tt.expected)
			}
		})
	}
}

func TestRenderer_RenderNote(t *testing.T) {
	renderer := NewRenderer()

	out, err := renderer.RenderNote(model.Note{
		Title:   "Plans <script>",
		Content: "- [ ] ship it\n\n<script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("RenderNote() error = %v", err)
	}
	got := string(out)

	if !strings.HasPrefix(got, `<h1 class="note-title">Plans &lt;script&gt;</h1>`) {
		t.Errorf("Expected escaped title heading, got %q", got)
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("Raw script leaked into output: %q", got)
	}
	if !strings.Contains(got, `type="checkbox"`) {
		t.Errorf("Expected rendered task list, got %q", got)
	}
}

func TestRenderer_RenderNoteMeta(t *testing.T) {
	renderer := NewRenderer()

	tests := []struct {
		name    string
		note    model.Note
		want    string
		wantNot string
	}{
		{
			name:    "no folder or tags",
			note:    model.Note{Title: "t", Content: "c"},
			wantNot: "note-meta",
		},
		{
			name: "folder and tags",
			note: model.Note{Title: "t", Content: "c", Folder: "Work", Tags: []string{"Todo", "a&b"}},
			want: `<p class="note-meta"><span class="note-folder">Work</span><span class="note-tag">#Todo</span><span class="note-tag">#a&amp;b</span></p>`,
		},
		{
			name: "tags only",
			note: model.Note{Title: "t", Content: "c", Tags: []string{"Idea"}},
			want: `<p class="note-meta"><span class="note-tag">#Idea</span></p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := renderer.RenderNote(tt.note)
			if err != nil {
				t.Fatalf("RenderNote() error = %v", err)
			}
			got := string(out)
			if tt.want != "" && !strings.Contains(got, tt.want) {
				t.Errorf("RenderNote() = %q, want substring %q", got, tt.want)
			}
			if tt.wantNot != "" && strings.Contains(got, tt.wantNot) {
				t.Errorf("RenderNote() = %q, must not contain %q", got, tt.wantNot)
			}
		})
	}
}
