package canvasrenderer

import (
	"math"
	"strings"
	"unicode"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/offerpress/layout"
)

// lineBuilder 累积当前行的内容与宽度（mm）。
type lineBuilder struct {
	face  *canvas.FontFace
	sb    strings.Builder
	width float64
	lines []layout.TextLine
}

func (b *lineBuilder) add(s string) {
	b.sb.WriteString(s)
	b.width += b.face.TextWidth(s)
}

// emit 结束当前行；force 为真时空行也会输出（显式换行与结尾）。
func (b *lineBuilder) emit(force bool) {
	if b.sb.Len() == 0 {
		if force {
			b.lines = append(b.lines, layout.TextLine{})
		}
		return
	}
	b.lines = append(b.lines, layout.TextLine{Content: b.sb.String(), Width: b.width})
	b.sb.Reset()
	b.width = 0
}

// greedyWrap 支持三种模式：nowrap 只按显式换行；break-word 纯按宽度逐字符切分；
// 其余（anywhere）优先在空白处断行，单词超宽时在词内拆分。
func greedyWrap(content string, width float64, face *canvas.FontFace, wrap string) []layout.TextLine {
	limit := width
	if limit <= 0 {
		limit = math.MaxFloat64
	}

	if wrap == "nowrap" {
		parts := strings.Split(content, "\n")
		lines := make([]layout.TextLine, 0, len(parts))
		for _, p := range parts {
			lines = append(lines, layout.TextLine{Content: p, Width: face.TextWidth(p)})
		}
		return lines
	}

	b := &lineBuilder{face: face}
	if wrap == "break-word" {
		for _, r := range content {
			switch r {
			case '\r':
				continue
			case '\n':
				b.emit(true)
				continue
			}
			s := string(r)
			if b.width > 0 && b.width+face.TextWidth(s) > limit {
				b.emit(false)
			}
			b.add(s)
		}
		b.emit(true)
		return b.lines
	}

	for _, token := range tokenize(content) {
		if token == "\n" {
			b.emit(true)
			continue
		}
		chunks := []string{token}
		if face.TextWidth(token) > limit {
			chunks = splitByWidth(token, limit, face)
		}
		for _, chunk := range chunks {
			if b.width > 0 && b.width+face.TextWidth(chunk) > limit {
				b.emit(false)
			}
			b.add(chunk)
			if b.width > limit {
				b.emit(false)
			}
		}
	}
	b.emit(true)
	return b.lines
}

// tokenize 把文本切成交替的空白/非空白片段，换行单独成为 "\n"。
func tokenize(s string) []string {
	var tokens []string
	var sb strings.Builder
	lastWasSpace := false
	flush := func() {
		if sb.Len() > 0 {
			tokens = append(tokens, sb.String())
			sb.Reset()
		}
	}
	for _, r := range s {
		if r == '\r' {
			continue
		}
		if r == '\n' {
			flush()
			tokens = append(tokens, "\n")
			lastWasSpace = false
			continue
		}
		isSpace := unicode.IsSpace(r)
		if sb.Len() > 0 && lastWasSpace != isSpace {
			flush()
		}
		lastWasSpace = isSpace
		sb.WriteRune(r)
	}
	flush()
	return tokens
}

func splitByWidth(token string, limit float64, face *canvas.FontFace) []string {
	if limit <= 0 || limit == math.MaxFloat64 {
		return []string{token}
	}
	var parts []string
	var current []rune
	for _, r := range token {
		current = append(current, r)
		if len(current) > 1 && face.TextWidth(string(current)) > limit {
			parts = append(parts, string(current[:len(current)-1]))
			current = []rune{r}
		}
	}
	if len(current) > 0 {
		parts = append(parts, string(current))
	}
	return parts
}
