package prototype

import (
	"bytes"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const highlightStyle = "github"

var sourceFormatter = html.New(html.WithLineNumbers(true), html.TabWidth(2))

// Highlight renders source as an HTML fragment with inline styles.
// lang is a chroma lexer name or alias such as "jsx", "html" or "markdown".
func Highlight(source, lang string) (string, error) {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(highlightStyle)
	if style == nil {
		style = styles.Fallback
	}

	it, err := lexer.Tokenise(nil, source)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := sourceFormatter.Format(&buf, style, it); err != nil {
		return "", err
	}
	return buf.String(), nil
}
