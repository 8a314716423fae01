// Package textproc turns markup into plain text suitable for speech.
package textproc

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Options controls what FromMarkdown keeps.
type Options struct {
	// IncludeCode keeps inline code spans. Code blocks are always dropped.
	IncludeCode bool

	// ImageAlt reads image alt text as "image: <alt>"
	ImageAlt bool
}

var md = goldmark.New()

// FromMarkdown strips markdown syntax from source. Links are read by their
// text, code blocks and raw HTML are dropped, and every block ends up on its
// own line. Headings get a full stop so they are read as a sentence.
func FromMarkdown(source string, opts Options) (string, error) {
	src := []byte(source)
	doc := md.Parser().Parse(text.NewReader(src))

	var (
		lines []string
		line  strings.Builder
	)
	flush := func() {
		if s := strings.Join(strings.Fields(line.String()), " "); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML, *ast.AutoLink:
			return ast.WalkSkipChildren, nil

		case *ast.CodeSpan:
			if !opts.IncludeCode {
				return ast.WalkSkipChildren, nil
			}

		case *ast.Image:
			if !opts.ImageAlt {
				return ast.WalkSkipChildren, nil
			}
			if entering {
				line.WriteString(" image: ")
			}

		case *ast.Text:
			if entering {
				line.Write(n.Segment.Value(src))
				if n.SoftLineBreak() || n.HardLineBreak() {
					line.WriteByte(' ')
				}
			}

		case *ast.String:
			if entering {
				line.Write(n.Value)
			}

		case *ast.Heading:
			if !entering {
				terminate(&line)
				flush()
			}

		case *ast.Paragraph, *ast.TextBlock:
			if !entering {
				flush()
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk markdown AST: %w", err)
	}
	flush()

	return strings.Join(lines, "\n"), nil
}

// terminate appends a full stop unless the line already ends a sentence.
func terminate(b *strings.Builder) {
	s := strings.TrimSpace(b.String())
	if s == "" || strings.ContainsAny(s[len(s)-1:], ".!?:;") {
		return
	}
	b.Reset()
	b.WriteString(s)
	b.WriteByte('.')
}
