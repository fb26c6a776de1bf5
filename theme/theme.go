// Package theme 把主题 DSL 解析为排版引擎使用的 layout.Theme。
package theme

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ByLCY/offerpress/dsl"
	"github.com/ByLCY/offerpress/layout"
)

//go:embed default.theme
var defaultSource string

// Default 返回内置的报价单主题。每次调用都重新解析，调用方可以放心修改返回值。
func Default() (*layout.Theme, error) {
	return Parse("default.theme", strings.NewReader(defaultSource))
}

// LoadFile 从磁盘读取主题文件。
func LoadFile(path string) (*layout.Theme, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开主题文件失败: %w", err)
	}
	defer f.Close()
	return Parse(path, f)
}

// Parse 解析主题源码。name 仅用于错误定位。
func Parse(name string, r io.Reader) (*layout.Theme, error) {
	doc, err := dsl.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("解析主题失败: %w", err)
	}
	return build(doc)
}

func build(doc *dsl.Document) (*layout.Theme, error) {
	res, err := collectResources(doc)
	if err != nil {
		return nil, err
	}

	th := &layout.Theme{
		Name:      doc.Name,
		Width:     210,
		Height:    297,
		Margin:    layout.Margin{Top: 20, Right: 20, Bottom: 20, Left: 20},
		Resources: res,
		Meta:      collectMeta(doc),
		Text:      map[string]layout.TextStyle{},
	}

	for name, st := range res.Styles {
		ts, err := textStyle(st, res)
		if err != nil {
			return nil, fmt.Errorf("style %s: %w", name, err)
		}
		th.Text[name] = ts
	}
	if _, ok := th.Text[layout.StyleBody]; !ok {
		th.Text[layout.StyleBody] = th.Style(layout.StyleBody)
	}

	page := firstPage(doc)
	if page == nil {
		return nil, fmt.Errorf("主题 %s 缺少 page 定义", doc.Name)
	}
	if th.Width, th.Height, err = resolvePageSize(page.Spec); err != nil {
		return nil, err
	}
	th.Margin = resolveMargin(page.Spec.Params)
	if err := applyPageBlock(th, page.Block); err != nil {
		return nil, err
	}
	if len(th.Columns) == 0 {
		return nil, fmt.Errorf("主题 %s 未定义表格列", doc.Name)
	}
	return th, nil
}

func applyPageBlock(th *layout.Theme, block *dsl.Block) error {
	if block == nil {
		return nil
	}
	for _, stmt := range block.Statements {
		cmd := stmt.Command
		if cmd == nil {
			continue
		}
		_, attrs := dsl.Args(cmd.Args, false)
		switch cmd.Name {
		case "blocks":
			th.BlockSpacing = layout.ParseLength(attrs["spacing"])
			th.LabelWidth = layout.ParseLength(attrs["label-width"])
			th.TotalsWidth = layout.ParseLength(attrs["totals-width"])
			th.LogoHeight = layout.ParseLength(attrs["logo-height"])
		case "footer":
			th.FooterHeight = layout.ParseLength(attrs["height"])
		case "table":
			if err := applyTable(th, cmd, attrs); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%s: 未知的 page 指令 %q", cmd.Pos, cmd.Name)
		}
	}
	return nil
}

func applyTable(th *layout.Theme, cmd *dsl.Command, attrs map[string]string) error {
	res := th.Resources
	th.CellPadding = layout.ParseLength(attrs["padding"])
	th.PreviewSize = layout.ParseLength(attrs["preview"])
	th.Placeholder = attrs["placeholder"]
	th.BorderColor = resolveColor(attrs["border"], res, layout.Color{R: 200, G: 200, B: 200})
	th.HeaderFill = resolveColor(attrs["fill"], res, layout.Color{R: 255, G: 255, B: 255})
	th.AccentColor = resolveColor(attrs["accent"], res, layout.Color{R: 30, G: 30, B: 30})

	if cmd.Block == nil {
		return nil
	}
	seen := map[string]bool{}
	for _, stmt := range cmd.Block.Statements {
		col := stmt.Command
		if col == nil || col.Name != "column" {
			continue
		}
		key, cattrs := dsl.Args(col.Args, true)
		if key == "" {
			return fmt.Errorf("%s: column 缺少 key", col.Pos)
		}
		if seen[key] {
			return fmt.Errorf("%s: column %s 重复定义", col.Pos, key)
		}
		seen[key] = true

		kind := layout.CellKind(strings.ToLower(cattrs["kind"]))
		switch kind {
		case "":
			kind = layout.CellText
		case layout.CellText, layout.CellNumber, layout.CellCurrency, layout.CellImage:
		default:
			return fmt.Errorf("%s: column %s 的 kind %q 不受支持", col.Pos, key, kind)
		}
		label, ok := cattrs["label"]
		if !ok {
			label = key
		}
		th.Columns = append(th.Columns, layout.Column{
			Key:   key,
			Label: label,
			Width: layout.ParseDimension(cattrs["width"], th.ContentWidth()),
			Align: cattrs["align"],
			Kind:  kind,
		})
	}
	return nil
}

func textStyle(st layout.Style, res layout.ResourceSet) (layout.TextStyle, error) {
	ts := layout.TextStyle{
		Font:  st.Props["font"],
		Size:  9 * layout.PtToMm,
		Color: resolveColor(st.Props["color"], res, layout.Color{R: 30, G: 30, B: 30}),
		Align: st.Props["align"],
		Wrap:  st.Props["wrap"],
	}
	if ts.Font == "" {
		ts.Font = "Body"
	}
	if _, ok := res.Fonts[ts.Font]; !ok {
		return ts, fmt.Errorf("字体 %s 未定义", ts.Font)
	}
	if v := st.Props["size"]; v != "" {
		size := layout.ParseLength(v)
		if size <= 0 {
			return ts, fmt.Errorf("字号 %q 无效", v)
		}
		ts.Size = size
	}
	ts.LineHeight = ts.Size * 1.2
	if v := st.Props["line-height"]; v != "" {
		lh, ok := layout.ParseLineHeight(v)
		if !ok {
			return ts, fmt.Errorf("行高 %q 无效", v)
		}
		ts.LineHeight = lh.ResolveMM(ts.Size)
	}
	return ts, nil
}

func collectResources(doc *dsl.Document) (layout.ResourceSet, error) {
	res := layout.ResourceSet{
		Fonts:  map[string]layout.FontResource{},
		Colors: map[string]layout.Color{},
		Styles: map[string]layout.Style{},
	}
	rawStyles := map[string]layout.Style{}

	for _, section := range doc.Sections {
		if section.Resources == nil || section.Resources.Block == nil {
			continue
		}
		for _, stmt := range section.Resources.Block.Statements {
			if stmt.Command == nil {
				continue
			}
			switch stmt.Command.Name {
			case "font":
				font := parseFontResource(stmt.Command)
				if font.Name != "" {
					res.Fonts[font.Name] = font
				}
			case "color":
				name, value := parseColorResource(stmt.Command)
				if name == "" || value == "" {
					continue
				}
				c, err := parseColor(value)
				if err != nil {
					return res, fmt.Errorf("color %s: %w", name, err)
				}
				res.Colors[name] = c
			case "style":
				style := parseStyleResource(stmt.Command)
				if style.Name != "" {
					rawStyles[style.Name] = style
				}
			}
		}
	}

	if len(res.Fonts) == 0 {
		res.Fonts["Body"] = layout.FontResource{
			Name:   "Body",
			Src:    "embed:go/regular",
			Family: "Body",
		}
	}

	resolved, err := resolveStyles(rawStyles)
	if err != nil {
		return res, err
	}
	res.Styles = resolved
	return res, nil
}

func collectMeta(doc *dsl.Document) layout.DocumentMeta {
	meta := layout.DocumentMeta{Creator: "offerpress"}
	for _, section := range doc.Sections {
		if section.Meta == nil || section.Meta.Block == nil {
			continue
		}
		for _, stmt := range section.Meta.Block.Statements {
			if stmt.Assignment == nil {
				continue
			}
			val := stmt.Assignment.Value
			switch strings.ToLower(stmt.Assignment.Key) {
			case "title":
				meta.Title = val.Text()
			case "author":
				meta.Author = val.Text()
			case "subject":
				meta.Subject = val.Text()
			case "creator":
				meta.Creator = val.Text()
			case "keywords":
				meta.Keywords = val.Strings()
			}
		}
	}
	return meta
}

func parseFontResource(cmd *dsl.Command) layout.FontResource {
	if len(cmd.Args) == 0 {
		return layout.FontResource{}
	}
	font := layout.FontResource{
		Name:   cmd.Args[0].Value,
		Family: cmd.Args[0].Value,
	}
	if cmd.Block == nil {
		return font
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		switch stmt.Assignment.Key {
		case "src":
			font.Src = stmt.Assignment.Value.Text()
		case "style":
			font.Style = stmt.Assignment.Value.Text()
		case "fallback":
			font.Fallback = stmt.Assignment.Value.Text()
		}
	}
	return font
}

func parseStyleResource(cmd *dsl.Command) layout.Style {
	if len(cmd.Args) == 0 {
		return layout.Style{}
	}
	style := layout.Style{
		Name:  cmd.Args[0].Value,
		Props: map[string]string{},
	}
	if len(cmd.Args) >= 3 && strings.EqualFold(cmd.Args[1].Value, "extends") {
		style.Extends = cmd.Args[2].Value
	}
	if cmd.Block == nil {
		return style
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		if val := stmt.Assignment.Value.Text(); val != "" {
			style.Props[stmt.Assignment.Key] = val
		}
	}
	return style
}

// resolveStyles 展开 extends 链，子样式覆盖父样式的同名属性。
func resolveStyles(styles map[string]layout.Style) (map[string]layout.Style, error) {
	resolved := map[string]layout.Style{}
	visiting := map[string]bool{}

	var dfs func(name string) (layout.Style, error)
	dfs = func(name string) (layout.Style, error) {
		if style, ok := resolved[name]; ok {
			return style, nil
		}
		style, ok := styles[name]
		if !ok {
			return layout.Style{}, fmt.Errorf("style %s 未定义", name)
		}
		if visiting[name] {
			return layout.Style{}, fmt.Errorf("style 继承存在循环：%s", name)
		}
		visiting[name] = true

		props := map[string]string{}
		if style.Extends != "" {
			parent, err := dfs(style.Extends)
			if err != nil {
				return layout.Style{}, err
			}
			for k, v := range parent.Props {
				props[k] = v
			}
		}
		for k, v := range style.Props {
			props[k] = v
		}
		style.Props = props
		resolved[name] = style
		delete(visiting, name)
		return style, nil
	}

	for name := range styles {
		if _, err := dfs(name); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

func parseColorResource(cmd *dsl.Command) (string, string) {
	if len(cmd.Args) == 0 {
		return "", ""
	}
	name := cmd.Args[0].Value
	value := ""
	if len(cmd.Args) > 1 {
		value = cmd.Args[len(cmd.Args)-1].Value
	}
	return name, value
}

func resolveColor(value string, res layout.ResourceSet, fallback layout.Color) layout.Color {
	if value == "" {
		return fallback
	}
	if c, ok := res.Colors[value]; ok {
		return c
	}
	if strings.HasPrefix(value, "#") {
		if c, err := parseColor(value); err == nil {
			return c
		}
	}
	return fallback
}

func parseColor(value string) (layout.Color, error) {
	hex := strings.TrimPrefix(value, "#")
	if len(hex) == 3 {
		hex = strings.Repeat(hex[0:1], 2) + strings.Repeat(hex[1:2], 2) + strings.Repeat(hex[2:3], 2)
	}
	if len(hex) != 6 && len(hex) != 8 {
		return layout.Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	var rgb [3]int
	for i := range rgb {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return layout.Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
		}
		rgb[i] = int(v)
	}
	return layout.Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}

var pagePresets = map[string][2]float64{
	"A4":     {210, 297},
	"A5":     {148, 210},
	"LETTER": {215.9, 279.4},
}

func resolvePageSize(spec dsl.PageSpec) (float64, float64, error) {
	base, ok := pagePresets[strings.ToUpper(spec.Size)]
	if !ok {
		return 0, 0, fmt.Errorf("暂不支持的纸张尺寸：%s", spec.Size)
	}
	width, height := base[0], base[1]
	for _, token := range spec.Params {
		if token.Value == "landscape" {
			width, height = height, width
		}
	}
	return width, height, nil
}

// resolveMargin 按 CSS 习惯解释 margin 后的 1~4 个长度，默认四边 20mm。
func resolveMargin(params []*dsl.Lexeme) layout.Margin {
	margin := layout.Margin{Top: 20, Right: 20, Bottom: 20, Left: 20}
	for i := 0; i < len(params); i++ {
		if params[i].Value != "margin" {
			continue
		}
		var vals []float64
		for j := i + 1; j < len(params) && len(vals) < 4; j++ {
			l, ok := layout.ParseRawLength(params[j].Value)
			if !ok {
				break
			}
			vals = append(vals, l.ToMM())
		}
		switch len(vals) {
		case 1:
			v := vals[0]
			margin = layout.Margin{Top: v, Right: v, Bottom: v, Left: v}
		case 2:
			margin = layout.Margin{Top: vals[0], Right: vals[1], Bottom: vals[0], Left: vals[1]}
		case 3:
			margin = layout.Margin{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[1]}
		case 4:
			margin = layout.Margin{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[3]}
		}
	}
	return margin
}

func firstPage(doc *dsl.Document) *dsl.PageSection {
	for _, section := range doc.Sections {
		if section.Page != nil {
			return section.Page
		}
	}
	return nil
}
