package canvasrenderer

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/offerpress/layout"
)

var bodyFont = layout.FontResource{Name: "Body", Src: "embed:go/regular"}

func cellLines(t *testing.T, r *Renderer, content string, width float64) []layout.TextLine {
	t.Helper()
	size := 8.5 * layout.PtToMm
	lines, err := r.LayoutLines(content, width, bodyFont, size, size*1.35, "")
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	return lines
}

func TestItemNamesWrapWithinColumn(t *testing.T) {
	r := NewRenderer("")
	cases := map[string]string{
		"words":       "Double hung window with triple glazing and trickle vent",
		"long word":   "Fensterflügelbeschlagsystemkomponente",
		"money":       "EUR 1234567.89",
		"blank lines": "Casement\n\nTilt & turn",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			const limit = 22.0
			lines := cellLines(t, r, content, limit)
			for i, ln := range lines {
				assert.LessOrEqual(t, ln.Width, limit+1e-6, "line %d %q", i, ln.Content)
			}
			var joined strings.Builder
			for _, ln := range lines {
				joined.WriteString(ln.Content)
			}
			// 断行只插入行边界，不丢字符
			assert.Equal(t,
				strings.Join(strings.Fields(strings.ReplaceAll(content, "\n", " ")), ""),
				strings.Join(strings.Fields(joined.String()), ""))
		})
	}
}

func TestBlankLineKeptBetweenParagraphs(t *testing.T) {
	lines := cellLines(t, NewRenderer(""), "Casement\n\nHopper", 100)
	require.Len(t, lines, 3)
	assert.Equal(t, "", lines[1].Content)
}

func TestExactWidthFollowedByNewline(t *testing.T) {
	r := NewRenderer("")
	measured := cellLines(t, r, "AN-2024-001", 1e6)
	require.Len(t, measured, 1)

	lines := cellLines(t, r, "AN-2024-001\nREF-77", measured[0].Width)
	require.Len(t, lines, 2)
	assert.Equal(t, "AN-2024-001", lines[0].Content)
	assert.Equal(t, "REF-77", lines[1].Content)
}

func TestLineMetrics(t *testing.T) {
	r := NewRenderer("")
	size := 9 * layout.PtToMm
	lineHeight := size * 1.35
	lines, err := r.LayoutLines(strings.Repeat("Window frame ", 12), 40, bodyFont, size, lineHeight, "")
	require.NoError(t, err)
	require.Greater(t, len(lines), 1)

	textHeight := lines[0].Height
	require.Positive(t, textHeight)
	assert.Zero(t, lines[0].GapBefore)
	for _, ln := range lines[1:] {
		assert.InDelta(t, math.Max(lineHeight-textHeight, 0), ln.GapBefore, 1e-6)
		assert.InDelta(t, textHeight, ln.Height, 1e-6)
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"a", "  ", "b", "\n", "c"}, tokenize("a  b\r\nc"))
	assert.Empty(t, tokenize(""))
}
