// ABOUTME: Renders assistant markdown to plain terminal text via the goldmark AST.
// ABOUTME: Keeps structure (headings, lists, code blocks) without emitting HTML.

package main

import (
	"bytes"
	"strings"

	"github.com/fatih/color"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

var (
	md   = goldmark.New()
	bold = color.New(color.Bold)
)

// renderMarkdown converts assistant markdown into plain text suitable for
// a terminal: headings bolded, list items bulleted, code blocks indented,
// inline formatting stripped.
func renderMarkdown(src string) string {
	source := []byte(src)
	doc := md.Parser().Parse(gmtext.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			b.WriteString(bold.Sprint(string(nodeText(node, source))))
			b.WriteString("\n\n")
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			b.WriteString(string(nodeText(node, source)))
			b.WriteString("\n\n")
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			b.WriteString("  - ")
			b.WriteString(string(nodeText(node, source)))
			b.WriteString("\n")
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			writeCodeLines(&b, node.Lines(), source)
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock:
			writeCodeLines(&b, node.Lines(), source)
			return ast.WalkSkipChildren, nil
		case *ast.ThematicBreak:
			b.WriteString(strings.Repeat("-", 40))
			b.WriteString("\n\n")
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimRight(b.String(), "\n")
}

// writeCodeLines emits a code block indented four spaces.
func writeCodeLines(b *strings.Builder, lines *gmtext.Segments, source []byte) {
	for i := 0; i < lines.Len(); i++ {
		b.WriteString("    ")
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	b.WriteString("\n")
}

// nodeText collects the raw text under a node, dropping inline markup.
func nodeText(n ast.Node, source []byte) []byte {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		buf.Write(nodeText(c, source))
	}
	return buf.Bytes()
}
