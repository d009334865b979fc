// Package display holds the DOM and text helpers shared by the alert and
// upload components.
package display

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"contact-form/internal/debug"
	"contact-form/internal/dom"
)

// Placeholder is returned by Sanitize for non-string input.
const Placeholder = "error getting message"

// ErrInvalidNode is returned when a helper receives a nil node.
var ErrInvalidNode = errors.New("display: node cannot hold children")

// keepPattern selects a parenthesised run or a single displayable character.
// \s in Go is ASCII only, so the Unicode separators are listed explicitly.
var keepPattern = regexp.MustCompile(`\([^)]*\)|[\s\v\p{Z}\x{FEFF}\p{L}\p{N}\p{M}\p{P}]`)

// RemoveAllChildren detaches every child element of node.
func RemoveAllChildren(node dom.Element) (string, error) {
	if node == nil {
		return "", ErrInvalidNode
	}
	children := node.Children()
	for _, child := range children {
		if err := node.RemoveChild(child); err != nil {
			return "", fmt.Errorf("remove child: %w", err)
		}
	}
	return fmt.Sprintf("removed %d children", len(children)), nil
}

// Sanitize makes server or user supplied text safe to show in an alert. Tags
// are stripped unless they sit inside a parenthetical aside, characters that
// are not letters, numbers, marks, punctuation or whitespace are dropped, and
// whitespace runs are collapsed.
func Sanitize(text any) string {
	s, ok := text.(string)
	if !ok {
		debug.Default.Logf(debug.PhaseError, "sanitize", "expected string, got %T", text)
		return Placeholder
	}
	s = stripTags(s)
	s = strings.Join(keepPattern.FindAllString(s, -1), "")
	return collapseSpace(s)
}

// stripTags removes <...> runs whose nearest preceding parenthesis is not an
// open one. Parenthesis state follows the input, including characters inside
// removed tags.
func stripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inParen := false
	for i := 0; i < len(s); {
		c := s[i]
		if c == '<' && !inParen {
			if end := strings.IndexByte(s[i+1:], '>'); end >= 0 {
				tag := s[i : i+end+2]
				inParen = parenState(tag, inParen)
				i += len(tag)
				continue
			}
		}
		switch c {
		case '(':
			inParen = true
		case ')':
			inParen = false
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func parenState(s string, inParen bool) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			inParen = true
		case ')':
			inParen = false
		}
	}
	return inParen
}

// collapseSpace trims both ends and keeps only the last character of every
// inner whitespace run.
func collapseSpace(s string) string {
	s = strings.TrimLeftFunc(s, isSpace)
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		if isSpace(r) && i+1 < len(runes) && isSpace(runes[i+1]) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimRightFunc(b.String(), isSpace)
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF' || unicode.Is(unicode.Zs, r)
}
