// Package preview renders markdown message bodies into the short plain-text
// previews shown in notifications.
package preview

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MaxBodyRunes caps notification body previews. iOS truncates long bodies
// anyway; keeping them short keeps the batch payload small.
const MaxBodyRunes = 160

// PlainText converts markdown to plain text. Block structure collapses to
// single spaces, inline formatting is dropped, code blocks keep their
// content without fences.
func PlainText(markdown string) string {
	md := goldmark.New()
	node := md.Parser().Parse(text.NewReader([]byte(markdown)))

	var builder strings.Builder
	source := []byte(markdown)

	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n.Kind() {
		case ast.KindText:
			textNode := n.(*ast.Text)
			builder.Write(textNode.Segment.Value(source))
			if textNode.SoftLineBreak() || textNode.HardLineBreak() {
				builder.WriteByte(' ')
			}
		case ast.KindParagraph, ast.KindHeading, ast.KindListItem, ast.KindBlockquote:
			if builder.Len() > 0 {
				builder.WriteByte(' ')
			}
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			if builder.Len() > 0 {
				builder.WriteByte(' ')
			}
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				builder.WriteString(strings.TrimRight(string(line.Value(source)), "\n"))
				builder.WriteByte(' ')
			}
			return ast.WalkSkipChildren, nil
		case ast.KindCodeSpan:
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					builder.Write(t.Segment.Value(source))
				}
			}
			return ast.WalkSkipChildren, nil
		case ast.KindImage:
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(builder.String()), " ")
}

// Body returns the notification body for a markdown message: plain text,
// truncated to MaxBodyRunes.
func Body(markdown string) string {
	return Truncate(PlainText(markdown), MaxBodyRunes)
}

// Truncate shortens s to at most max runes, appending an ellipsis when
// anything was cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}
