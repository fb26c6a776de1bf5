package layout

import "fmt"

// PageLabel 返回页脚页码文字。
func PageLabel(i, n int) string {
	return fmt.Sprintf("Page %d / %d", i, n)
}

// StampPageNumbers 是排版的第二遍：总页数在内容排版完成后才确定，
// 这里逐页在页脚固定位置写入 "Page i / N"。只修改页脚，不移动任何内容。
func StampPageNumbers(pages []Page, st TextStyle) {
	n := len(pages)
	size := st.Size
	if size <= 0 {
		size = 8 * PtToMm
	}
	lineHeight := st.LineHeight
	if lineHeight <= 0 {
		lineHeight = size * 1.4
	}
	for i := range pages {
		p := &pages[i]
		p.Number = i + 1
		label := PageLabel(i+1, n)
		stamp := TextBox{
			Content:    label,
			X:          p.Margin.Left,
			Y:          footerTextY(p.Height, p.Margin, p.Footer.Height, size),
			Width:      p.Width - p.Margin.Left - p.Margin.Right,
			LineHeight: lineHeight,
			Font:       st.Font,
			FontSize:   size,
			Color:      st.Color,
			Lines:      []TextLine{{Content: label, Height: size}},
			Height:     size,
			Align:      "right",
			Wrap:       "nowrap",
		}
		// 页脚切片在各页之间共享，必须复制后再追加。
		texts := make([]TextBox, 0, len(p.Footer.Texts)+1)
		texts = append(texts, p.Footer.Texts...)
		p.Footer.Texts = append(texts, stamp)
	}
}

// footerTextY 返回页脚文字的顶部坐标：页脚带 = max(下边距, 页脚高度)，文字在带内垂直居中。
func footerTextY(pageHeight float64, margin Margin, footerHeight, size float64) float64 {
	band := max(margin.Bottom, footerHeight)
	top := pageHeight - band
	return top + max((band-size)/2, 1)
}
