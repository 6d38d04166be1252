package markdown_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"readlater/internal/markdown"
)

func TestEscapeV2(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Plain", "Read later", "Read later"},
		{"Punctuation", "Hello. (world)!", `Hello\. \(world\)\!`},
		{"Markup", "*bold* _it_ `code` ~s~ ||x||", "\\*bold\\* \\_it\\_ \\`code\\` \\~s\\~ \\|\\|x\\|\\|"},
		{"Backslash", `a\b`, `a\\b`},
		{"Unicode is untouched", "日本語 – ok", "日本語 – ok"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, markdown.EscapeV2(test.input))
		})
	}
}

func TestLink(t *testing.T) {
	require.Equal(t,
		`[example\.com](https://example.com/a_(b\))`,
		markdown.Link("example.com", "https://example.com/a_(b)"))
}

func TestDecorations(t *testing.T) {
	require.Equal(t, `*Today \(2\)*`, markdown.Bold("Today (2)"))
	require.Equal(t, `_2024\-01\-03_`, markdown.Italic("2024-01-03"))
	require.Equal(t, "`/archive_a-b`", markdown.Code("/archive_a-b"))
}
