package layout

// Typesetter 负责根据字体与宽度约束将文本拆成可绘制的行。
// fontSize 与 lineHeight 均为毫米。
type Typesetter interface {
	LayoutLines(content string, width float64, font FontResource, fontSize float64, lineHeight float64, wrap string) ([]TextLine, error)
}

// 文本样式角色，主题按这些名字提供样式。
const (
	StyleBody        = "body"
	StyleTitle       = "title"
	StyleHeading     = "heading"
	StyleLabel       = "label"
	StyleTableHeader = "table-header"
	StyleTableCell   = "table-cell"
	StylePlaceholder = "placeholder"
	StyleTotal       = "total"
	StyleGrandTotal  = "grand-total"
	StyleFooter      = "footer"
)

// TextStyle 是解析完成的文本样式，尺寸单位为 mm。
type TextStyle struct {
	Font       string  `json:"font"`
	Size       float64 `json:"size"`
	LineHeight float64 `json:"lineHeight"`
	Color      Color   `json:"color"`
	Align      string  `json:"align,omitempty"`
	Wrap       string  `json:"wrap,omitempty"`
}

// CellKind 决定表格列的内容类型。
type CellKind string

const (
	CellText     CellKind = "text"
	CellNumber   CellKind = "number"
	CellCurrency CellKind = "currency"
	CellImage    CellKind = "image"
)

// Column 是表格的固定列定义。Width<=0 的列平分剩余宽度。
type Column struct {
	Key   string   `json:"key"`
	Label string   `json:"label"`
	Width float64  `json:"width"`
	Align string   `json:"align,omitempty"`
	Kind  CellKind `json:"kind"`
}

// Theme 汇总页面几何、样式与表格列定义。
type Theme struct {
	Name      string       `json:"name"`
	Width     float64      `json:"width"`
	Height    float64      `json:"height"`
	Margin    Margin       `json:"margin"`
	Resources ResourceSet  `json:"resources"`
	Meta      DocumentMeta `json:"meta"`
	Text      map[string]TextStyle `json:"text"`

	Columns      []Column `json:"columns"`
	CellPadding  float64  `json:"cellPadding"`
	PreviewSize  float64  `json:"previewSize"` // 预览图边长（mm）
	Placeholder  string   `json:"placeholder"`
	BorderColor  Color    `json:"borderColor"`
	HeaderFill   Color    `json:"headerFill"`
	AccentColor  Color    `json:"accentColor"`
	BlockSpacing float64  `json:"blockSpacing"`
	FooterHeight float64  `json:"footerHeight"`
	LogoHeight   float64  `json:"logoHeight"`
	LabelWidth   float64  `json:"labelWidth"`
	TotalsWidth  float64  `json:"totalsWidth"`
}

var fallbackText = TextStyle{Font: "Body", Size: 9 * PtToMm, LineHeight: 9 * PtToMm * 1.4, Color: Color{R: 30, G: 30, B: 30}}

// Style 返回角色对应的样式；未定义的角色退回 body。
func (t *Theme) Style(role string) TextStyle {
	if t != nil {
		if st, ok := t.Text[role]; ok {
			return st
		}
		if st, ok := t.Text[StyleBody]; ok {
			return st
		}
	}
	return fallbackText
}

// ContentWidth 返回左右边距之间的宽度。
func (t *Theme) ContentWidth() float64 {
	return t.Width - t.Margin.Left - t.Margin.Right
}
