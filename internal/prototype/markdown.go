package prototype

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Raw HTML in documents is dropped by the renderer's default (unsafe off).
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// RenderMarkdown converts a vision or use-case document to HTML.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
