package ui

import (
	"fmt"
	"html/template"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// renderMarkdown converts embedded page copy to HTML. Raw HTML in the source is dropped.
func renderMarkdown(src []byte) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(src)

	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank | html.SkipHTML,
	})
	return template.HTML(markdown.Render(doc, renderer))
}

// loadContent renders content/<name>.md
func loadContent(name string) (template.HTML, error) {
	src, err := embeddedFiles.ReadFile("content/" + name + ".md")
	if err != nil {
		return "", fmt.Errorf("failed to read content %s: %w", name, err)
	}
	return renderMarkdown(src), nil
}
