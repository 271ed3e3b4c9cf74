package ui

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Fixed rendering options of the config view.
const (
	Language = "nginx"
	ReadOnly = true
	Minimap  = false
)

// Highlighter renders nginx configuration text with terminal colors.
type Highlighter struct {
	lexer     chroma.Lexer
	formatter chroma.Formatter
	noColor   bool
}

// NewHighlighter creates a highlighter for the nginx language. With noColor
// the text is returned untouched.
func NewHighlighter(noColor bool) *Highlighter {
	lexer := lexers.Get(Language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return &Highlighter{
		lexer:     chroma.Coalesce(lexer),
		formatter: formatters.TTY256,
		noColor:   noColor,
	}
}

// Render highlights text using the chroma style of theme.
func (h *Highlighter) Render(text string, theme Theme) (string, error) {
	if h.noColor || text == "" {
		return text, nil
	}

	iterator, err := h.lexer.Tokenise(nil, text)
	if err != nil {
		return "", fmt.Errorf("failed to tokenise config: %w", err)
	}

	var b strings.Builder
	if err := h.formatter.Format(&b, styles.Get(theme.ChromaStyle), iterator); err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}
	return b.String(), nil
}
