// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timelineui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// wrapBreakpoints are the characters ansi.Wrap may break after in
// addition to spaces.
const wrapBreakpoints = " ,.;-+|"

// Message bodies use the chat subset of GFM: strikethrough and bare
// URL linking. Tables and task lists are left as text.
var (
	bodyMarkdown     goldmark.Markdown
	bodyMarkdownOnce sync.Once
)

func markdown() goldmark.Markdown {
	bodyMarkdownOnce.Do(func() {
		bodyMarkdown = goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
		)
	})
	return bodyMarkdown
}

// renderBody renders a message body as styled terminal text wrapped to
// width. Soft line breaks become spaces so bodies reflow.
func renderBody(body string, theme Theme, width int, styles *lipgloss.Renderer) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	source := []byte(body)
	document := markdown().Parser().Parse(text.NewReader(source))

	r := &bodyRenderer{source: source, theme: theme, width: width, styles: styles}
	ast.Walk(document, r.walk)
	return strings.TrimRight(r.output.String(), "\n")
}

// bodyRenderer walks a goldmark AST. Inline content accumulates in
// inline and is wrapped as a unit when its block closes.
type bodyRenderer struct {
	source []byte
	theme  Theme
	width  int
	styles *lipgloss.Renderer

	output strings.Builder
	inline strings.Builder

	prefixes      []string
	prefix        string
	prefixWidth   int
	pendingBullet string

	bold, italic, strike int
	lists                []listLevel

	trailingNewlines int
}

type listLevel struct {
	ordered bool
	next    int
	tight   bool
}

func (r *bodyRenderer) style() lipgloss.Style { return r.styles.NewStyle() }

func (r *bodyRenderer) contentWidth() int {
	return max(r.width-r.prefixWidth, 10)
}

func (r *bodyRenderer) pushPrefix(prefix string) {
	r.prefixes = append(r.prefixes, prefix)
	r.prefix += prefix
	r.prefixWidth += ansi.StringWidth(prefix)
}

func (r *bodyRenderer) popPrefix() {
	if len(r.prefixes) == 0 {
		return
	}
	top := r.prefixes[len(r.prefixes)-1]
	r.prefixes = r.prefixes[:len(r.prefixes)-1]
	r.prefix = r.prefix[:len(r.prefix)-len(top)]
	r.prefixWidth -= ansi.StringWidth(top)
}

func (r *bodyRenderer) tightList() bool {
	return len(r.lists) > 0 && r.lists[len(r.lists)-1].tight
}

func (r *bodyRenderer) write(s string) {
	if s == "" {
		return
	}
	r.output.WriteString(s)
	trimmed := strings.TrimRight(s, "\n")
	newlines := len(s) - len(trimmed)
	if trimmed == "" {
		r.trailingNewlines += newlines
	} else {
		r.trailingNewlines = newlines
	}
}

func (r *bodyRenderer) newline() {
	if r.trailingNewlines < 1 {
		r.write("\n")
	}
}

// blankLine separates blocks. Nothing is written at the very start.
func (r *bodyRenderer) blankLine() {
	if r.output.Len() == 0 {
		return
	}
	for r.trailingNewlines < 2 {
		r.write("\n")
	}
}

func (r *bodyRenderer) linePrefix() string {
	if r.pendingBullet != "" {
		bullet := r.pendingBullet
		r.pendingBullet = ""
		return bullet
	}
	return r.prefix
}

func (r *bodyRenderer) prefixLines(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if i == 0 {
			lines[i] = r.linePrefix() + line
		} else {
			lines[i] = r.prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func (r *bodyRenderer) flushInline() string {
	content := r.inline.String()
	r.inline.Reset()
	if content == "" {
		return ""
	}
	return r.prefixLines(ansi.Wrap(content, r.contentWidth(), wrapBreakpoints))
}

func (r *bodyRenderer) styled(content string) string {
	style := r.style().Foreground(r.theme.NormalText)
	if r.bold > 0 {
		style = style.Bold(true)
	}
	if r.italic > 0 {
		style = style.Italic(true)
	}
	if r.strike > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(content)
}

func (r *bodyRenderer) faint(content string) string {
	return r.style().Foreground(r.theme.FaintText).Render(content)
}

// highlight runs chroma over code. Unknown languages, and output
// without colour, fall back to faint text.
func (r *bodyRenderer) highlight(code, language string) string {
	if language == "" || r.styles.ColorProfile() == termenv.Ascii {
		return r.faint(code)
	}
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err != nil {
		return r.faint(code)
	}
	return buffer.String()
}

func (r *bodyRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			r.inline.Reset()
			return ast.WalkContinue, nil
		}
		if flushed := r.flushInline(); flushed != "" {
			r.write(flushed)
			r.newline()
			if !r.tightList() {
				r.blankLine()
			}
		}

	case ast.KindHeading:
		if entering {
			r.inline.Reset()
			return ast.WalkContinue, nil
		}
		content := ansi.Strip(r.inline.String())
		r.inline.Reset()
		if content != "" {
			heading := r.style().Bold(true).Foreground(r.theme.HeaderForeground).Render(content)
			r.blankLine()
			r.write(r.prefixLines(ansi.Wrap(heading, r.contentWidth(), wrapBreakpoints)))
			r.newline()
			r.blankLine()
		}

	case ast.KindFencedCodeBlock:
		if entering {
			block := node.(*ast.FencedCodeBlock)
			r.writeCode(r.highlight(r.lines(block.Lines()), string(block.Language(r.source))))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindCodeBlock:
		if entering {
			r.writeCode(r.faint(r.lines(node.Lines())))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindHTMLBlock:
		if entering {
			if stripped := strings.TrimSpace(stripTags(r.lines(node.Lines()))); stripped != "" {
				r.write(r.prefixLines(r.faint(stripped)))
				r.newline()
				r.blankLine()
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		if entering {
			r.pushPrefix(r.style().Foreground(r.theme.BorderColor).Render("│") + " ")
		} else {
			r.popPrefix()
			r.blankLine()
		}

	case ast.KindList:
		if entering {
			list := node.(*ast.List)
			r.lists = append(r.lists, listLevel{ordered: list.IsOrdered(), next: list.Start, tight: list.IsTight})
		} else {
			r.lists = r.lists[:len(r.lists)-1]
			if !r.tightList() {
				r.blankLine()
			}
		}

	case ast.KindListItem:
		if entering {
			r.enterListItem()
		} else {
			r.popPrefix()
			if r.tightList() {
				r.newline()
			} else {
				r.blankLine()
			}
		}

	case ast.KindThematicBreak:
		if entering {
			rule := r.style().Foreground(r.theme.BorderColor).Render(strings.Repeat("─", r.contentWidth()))
			r.blankLine()
			r.write(r.prefixLines(rule))
			r.newline()
			r.blankLine()
		}

	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			r.inline.WriteString(r.styled(string(textNode.Segment.Value(r.source))))
			switch {
			case textNode.HardLineBreak():
				r.inline.WriteString("\n")
			case textNode.SoftLineBreak():
				r.inline.WriteString(" ")
			}
		}

	case ast.KindString:
		if entering {
			r.inline.WriteString(r.styled(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		counter := &r.italic
		if node.(*ast.Emphasis).Level >= 2 {
			counter = &r.bold
		}
		if entering {
			*counter++
		} else {
			*counter--
		}

	case extast.KindStrikethrough:
		if entering {
			r.strike++
		} else {
			r.strike--
		}

	case ast.KindCodeSpan:
		if entering {
			var code strings.Builder
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				switch child := child.(type) {
				case *ast.Text:
					code.Write(child.Segment.Value(r.source))
				case *ast.String:
					code.Write(child.Value)
				}
			}
			r.inline.WriteString(r.faint(code.String()))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if entering {
			link := node.(*ast.Link)
			label := r.inlineOf(link)
			r.inline.WriteString(label)
			if destination := string(link.Destination); destination != "" && ansi.Strip(label) != destination {
				r.inline.WriteString(" " + r.faint("("+destination+")"))
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindAutoLink:
		if entering {
			url := string(node.(*ast.AutoLink).URL(r.source))
			r.inline.WriteString(r.style().Foreground(r.theme.LinkForeground).Underline(true).Render(url))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindImage:
		if entering {
			image := node.(*ast.Image)
			r.inline.WriteString(r.faint("[" + ansi.Strip(r.inlineOf(image)) + "]"))
			if destination := string(image.Destination); destination != "" {
				r.inline.WriteString(" " + r.faint("("+destination+")"))
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindRawHTML:
		if entering {
			raw := node.(*ast.RawHTML)
			var html strings.Builder
			for i := 0; i < raw.Segments.Len(); i++ {
				segment := raw.Segments.At(i)
				html.Write(segment.Value(r.source))
			}
			if stripped := stripTags(html.String()); stripped != "" {
				r.inline.WriteString(r.faint(stripped))
			}
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *bodyRenderer) enterListItem() {
	if len(r.lists) == 0 {
		return
	}
	top := &r.lists[len(r.lists)-1]
	bullet := "• "
	if top.ordered {
		bullet = fmt.Sprintf("%d. ", top.next)
		top.next++
	}
	r.pendingBullet = r.prefix + bullet
	r.pushPrefix(strings.Repeat(" ", ansi.StringWidth(bullet)))
}

// inlineOf renders node's children into a string without disturbing
// the current inline buffer or emphasis state.
func (r *bodyRenderer) inlineOf(node ast.Node) string {
	saved := r.inline.String()
	bold, italic, strike := r.bold, r.italic, r.strike

	r.inline.Reset()
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		ast.Walk(child, r.walk)
	}
	result := r.inline.String()

	r.inline.Reset()
	r.inline.WriteString(saved)
	r.bold, r.italic, r.strike = bold, italic, strike
	return result
}

func (r *bodyRenderer) lines(segments *text.Segments) string {
	var content strings.Builder
	for i := 0; i < segments.Len(); i++ {
		segment := segments.At(i)
		content.Write(segment.Value(r.source))
	}
	return strings.TrimRight(content.String(), "\n")
}

// writeCode writes a code block line by line. Trailing lines that hold
// only escape codes or spaces are dropped.
func (r *bodyRenderer) writeCode(code string) {
	lines := strings.Split(code, "\n")
	for len(lines) > 0 && strings.TrimSpace(ansi.Strip(lines[len(lines)-1])) == "" {
		lines = lines[:len(lines)-1]
	}
	r.blankLine()
	for _, line := range lines {
		r.write(r.linePrefix() + line)
		r.newline()
	}
	r.blankLine()
}

// stripTags drops HTML tags, keeping text content.
func stripTags(html string) string {
	var result strings.Builder
	inTag := false
	for _, character := range html {
		switch {
		case character == '<':
			inTag = true
		case character == '>':
			inTag = false
		case !inTag:
			result.WriteRune(character)
		}
	}
	return result.String()
}
