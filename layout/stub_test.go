package layout

import (
	"strings"
)

// stubTypesetter 是测试用的最小排版实现：每个字符宽 0.5·fontSize，按空格贪心折行，
// 行高等于 fontSize。避免引入 renderer 造成循环依赖。
type stubTypesetter struct{}

func (s *stubTypesetter) LayoutLines(content string, width float64, font FontResource, fontSize float64, lineHeight float64, wrap string) ([]TextLine, error) {
	charW := fontSize * 0.5
	var lines []TextLine
	for _, para := range strings.Split(content, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, TextLine{Height: fontSize})
			continue
		}
		current := ""
		for _, w := range words {
			candidate := w
			if current != "" {
				candidate = current + " " + w
			}
			if current != "" && float64(len(candidate))*charW > width {
				lines = append(lines, TextLine{Content: current, Width: float64(len(current)) * charW, Height: fontSize})
				current = w
				continue
			}
			current = candidate
		}
		lines = append(lines, TextLine{Content: current, Width: float64(len(current)) * charW, Height: fontSize})
	}
	return lines, nil
}

// testTheme：A4，四边 20mm，无页脚带；单行文字高 4mm，padding 1mm，
// 表头行高 6mm，带图片的数据行高 15mm，整页可放 16 行数据。
func testTheme() *Theme {
	body := TextStyle{Font: "Body", Size: 4, LineHeight: 5, Color: Color{R: 30, G: 30, B: 30}}
	return &Theme{
		Name:   "test",
		Width:  210,
		Height: 297,
		Margin: Margin{Top: 20, Right: 20, Bottom: 20, Left: 20},
		Resources: ResourceSet{
			Fonts: map[string]FontResource{"Body": {Name: "Body", Src: "embed:go/regular", Family: "Body"}},
		},
		Text: map[string]TextStyle{StyleBody: body},
		Columns: []Column{
			{Key: "preview", Label: "Preview", Width: 20, Align: "center", Kind: CellImage},
			{Key: "name", Label: "Item", Kind: CellText},
			{Key: "total", Label: "Total", Width: 30, Align: "right", Kind: CellCurrency},
		},
		CellPadding:  1,
		PreviewSize:  13,
		Placeholder:  "no preview",
		BlockSpacing: 3,
	}
}
