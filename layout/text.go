package layout

import (
	"fmt"
	"math"
	"strings"
)

// composeText 按样式在 (x, y) 处排版一段文本，返回的 TextBox.Height 为
// Σ(line.GapBefore + line.Height)。
func composeText(ts Typesetter, res ResourceSet, content string, st TextStyle, x, y, width float64) (TextBox, error) {
	fontSize := st.Size
	if fontSize <= 0 {
		fontSize = 12 * PtToMm
	}
	lineHeight := st.LineHeight
	if lineHeight <= 0 {
		lineHeight = fontSize * 1.4
	}
	wrap := normalizeWrap(st.Wrap)

	fontRes, err := resolveFontResource(st.Font, res)
	if err != nil {
		return TextBox{}, err
	}
	lines, err := layoutLines(content, width, fontRes, fontSize, lineHeight, ts, wrap)
	if err != nil {
		return TextBox{}, err
	}

	totalHeight := 0.0
	defaultLeading := math.Max(lineHeight-fontSize, 0)
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = fontSize
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else if lines[i].GapBefore <= 0 {
			lines[i].GapBefore = defaultLeading
		}
		totalHeight += lines[i].GapBefore + lines[i].Height
	}

	return TextBox{
		Content:    content,
		X:          x,
		Y:          y,
		Width:      width,
		LineHeight: lineHeight,
		Font:       fontRes.Name,
		FontSize:   fontSize,
		Color:      st.Color,
		Lines:      lines,
		Height:     totalHeight,
		Align:      normalizeAlign(st.Align),
		Wrap:       wrap,
	}, nil
}

// splitText 把文本块在第 n 行之前切开，后半部分从 y 处重新开始。
func splitText(tb TextBox, n int, y float64) (head, tail TextBox) {
	head, tail = tb, tb
	head.Lines = tb.Lines[:n]
	tail.Lines = append([]TextLine(nil), tb.Lines[n:]...)
	tail.Y = y
	if len(tail.Lines) > 0 {
		tail.Lines[0].GapBefore = 0
	}
	head.Height = linesHeight(head.Lines)
	tail.Height = linesHeight(tail.Lines)
	head.Content = joinLines(head.Lines)
	tail.Content = joinLines(tail.Lines)
	return head, tail
}

// linesFitting 返回从顶部起、总高度不超过 avail 的行数。
func linesFitting(lines []TextLine, avail float64) int {
	used := 0.0
	for i, ln := range lines {
		gap := ln.GapBefore
		if i == 0 {
			gap = 0
		}
		if used+gap+ln.Height > avail {
			return i
		}
		used += gap + ln.Height
	}
	return len(lines)
}

func linesHeight(lines []TextLine) float64 {
	h := 0.0
	for i, ln := range lines {
		if i > 0 {
			h += ln.GapBefore
		}
		h += ln.Height
	}
	return h
}

func joinLines(lines []TextLine) string {
	parts := make([]string, len(lines))
	for i, ln := range lines {
		parts[i] = ln.Content
	}
	return strings.Join(parts, "\n")
}

func resolveFontResource(name string, res ResourceSet) (FontResource, error) {
	if font, ok := res.Fonts[name]; ok {
		return font, nil
	}
	if font, ok := res.Fonts["Body"]; ok {
		return font, nil
	}
	for _, font := range res.Fonts {
		return font, nil
	}
	if name == "" {
		name = "Body"
	}
	// 没有任何字体声明时交给渲染器回退到内置字体。
	return FontResource{Name: name, Family: name}, nil
}

func layoutLines(content string, width float64, font FontResource, fontSize, lineHeight float64, ts Typesetter, wrap string) ([]TextLine, error) {
	if ts == nil {
		return nil, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}
	lines, err := ts.LayoutLines(content, width, font, fontSize, lineHeight, wrap)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		height := fontSize
		if height <= 0 {
			height = lineHeight
		}
		lines = []TextLine{{Content: "", Width: width, Height: height}}
	}
	lines[0].GapBefore = 0
	return lines, nil
}

func normalizeWrap(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "break-word", "word-break:break-word":
		return "break-word"
	case "nowrap", "no-wrap":
		return "nowrap"
	default:
		return "anywhere"
	}
}

func normalizeAlign(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "center", "middle":
		return "center"
	case "right", "end":
		return "right"
	default:
		return ""
	}
}
