// Package markdown builds Telegram MarkdownV2 text.
package markdown

import (
	"fmt"
	"strings"
)

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const (
	mdV2SpecialChars  = `\_*[]()~>#+-=|{}.!` + "`"
	mdV2LinkURLChars  = `\)`
	mdV2CodeSpanChars = `\` + "`"
)

//nolint:gochecknoglobals // Lookup tables meant to be immutable.
var (
	textLookup = lookup(mdV2SpecialChars)
	urlLookup  = lookup(mdV2LinkURLChars)
	codeLookup = lookup(mdV2CodeSpanChars)
)

func lookup(chars string) [256]bool {
	var m [256]bool
	for i := range len(chars) {
		m[chars[i]] = true
	}
	return m
}

func EscapeV2(input string) string {
	return escape(input, &textLookup)
}

// Link renders an inline link; text is escaped, as is every ')' and '\' of
// the URL.
func Link(text, url string) string {
	return fmt.Sprintf("[%s](%s)", EscapeV2(text), escape(url, &urlLookup))
}

func Bold(text string) string {
	return "*" + EscapeV2(text) + "*"
}

func Italic(text string) string {
	return "_" + EscapeV2(text) + "_"
}

func Code(text string) string {
	return "`" + escape(text, &codeLookup) + "`"
}

func escape(input string, lookup *[256]bool) string {
	charsToEscape := 0

	for i := range len(input) {
		if lookup[input[i]] {
			charsToEscape++
		}
	}

	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if lookup[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}
