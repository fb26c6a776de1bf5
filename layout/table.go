package layout

import "fmt"

const defaultCellPadding = 1.2

// Row 是一行已格式化的单元格，顺序与列定义一致。
type Row struct {
	Cells []Cell
}

// Cell 保存文本内容；图片列使用 Image 引用 Result.Bitmaps 中的位图，为空表示无预览。
type Cell struct {
	Text  string
	Image string
}

// TableOptions 提供表格排版所需的样式与排版后端。
type TableOptions struct {
	Typesetter  Typesetter
	Resources   ResourceSet
	Header      TextStyle
	Body        TextStyle
	Placeholder TextStyle
	// PlaceholderText 写入缺少位图的图片单元格。
	PlaceholderText string
	Padding         float64
	// ImageEdge 是图片在行高计算中的边长（mm）。
	ImageEdge   float64
	BorderColor Color
	HeaderFill  Color
}

// RenderTable 从 (x, y) 开始排版一个表格分片：先放表头，再放尽可能多的完整数据行，
// 直到下一行超出 availableHeight。返回分片与消耗的行数；连一行数据都放不下时
// 返回 0 且不产生分片。
func RenderTable(columns []Column, rows []Row, x, y, width, availableHeight float64, opts TableOptions) (TableBox, int, error) {
	if len(columns) == 0 {
		return TableBox{}, 0, fmt.Errorf("layout: 表格缺少列定义")
	}
	if opts.Padding <= 0 {
		opts.Padding = defaultCellPadding
	}
	widths := columnWidths(columns, width)
	box := TableBox{
		X:            x,
		Y:            y,
		Width:        width,
		ColumnWidths: widths,
		BorderColor:  opts.BorderColor,
		HeaderFill:   opts.HeaderFill,
	}

	header, err := buildHeaderRow(columns, widths, x, y, opts)
	if err != nil {
		return TableBox{}, 0, err
	}
	limit := y + availableHeight
	if y+header.Height > limit {
		return TableBox{}, 0, nil
	}
	box.Rows = append(box.Rows, header)
	cursor := y + header.Height

	consumed := 0
	for i, row := range rows {
		tr, err := buildRow(columns, widths, row, x, cursor, opts)
		if err != nil {
			return TableBox{}, 0, fmt.Errorf("layout: 第 %d 行: %w", i+1, err)
		}
		// 行不可拆分：放不下就结束当前分片。
		if cursor+tr.Height > limit {
			break
		}
		tr.Index = i
		box.Rows = append(box.Rows, tr)
		cursor += tr.Height
		consumed++
	}
	if consumed == 0 {
		return TableBox{}, 0, nil
	}
	box.Height = cursor - y
	return box, consumed, nil
}

// columnWidths 把列宽归一到表格宽度：未指定宽度的列平分剩余空间，总和超出时等比缩放。
func columnWidths(columns []Column, total float64) []float64 {
	widths := make([]float64, len(columns))
	fixed, auto := 0.0, 0
	for i, c := range columns {
		if c.Width > 0 {
			widths[i] = c.Width
			fixed += c.Width
		} else {
			auto++
		}
	}
	if auto > 0 && fixed < total {
		share := (total - fixed) / float64(auto)
		for i, c := range columns {
			if c.Width <= 0 {
				widths[i] = share
			}
		}
		return widths
	}
	sum := 0.0
	for _, w := range widths {
		sum += w
	}
	if sum <= 0 {
		for i := range widths {
			widths[i] = total / float64(len(widths))
		}
		return widths
	}
	if sum != total {
		scale := total / sum
		for i := range widths {
			widths[i] *= scale
		}
	}
	return widths
}

func buildHeaderRow(columns []Column, widths []float64, x, y float64, opts TableOptions) (TableRow, error) {
	row := TableRow{Index: -1, Y: y, IsHeader: true}
	p := opts.Padding
	maxText := 0.0
	cx := x
	for i, c := range columns {
		st := opts.Header
		st.Align = c.Align
		tb, err := composeText(opts.Typesetter, opts.Resources, c.Label, st, cx+p, y+p, cellInner(widths[i], p))
		if err != nil {
			return TableRow{}, err
		}
		row.Cells = append(row.Cells, TableCell{Text: tb})
		maxText = max(maxText, tb.Height)
		cx += widths[i]
	}
	row.Height = maxText + 2*p
	return row, nil
}

// buildRow 计算行高 = max(文本高度, 图片边长) + 2·padding，并把图片居中放入单元格。
func buildRow(columns []Column, widths []float64, row Row, x, y float64, opts TableOptions) (TableRow, error) {
	out := TableRow{Y: y}
	p := opts.Padding
	content := 0.0
	cx := x
	for i, c := range columns {
		var cell Cell
		if i < len(row.Cells) {
			cell = row.Cells[i]
		}
		inner := cellInner(widths[i], p)
		switch {
		case c.Kind == CellImage && cell.Image != "":
			edge := opts.ImageEdge
			if edge <= 0 || edge > inner {
				edge = inner
			}
			content = max(content, edge)
			out.Cells = append(out.Cells, TableCell{Image: &ImageBox{Ref: cell.Image}})
		case c.Kind == CellImage:
			st := opts.Placeholder
			st.Align = "center"
			tb, err := composeText(opts.Typesetter, opts.Resources, opts.PlaceholderText, st, cx+p, y+p, inner)
			if err != nil {
				return TableRow{}, err
			}
			content = max(content, tb.Height)
			out.Cells = append(out.Cells, TableCell{Text: tb})
		default:
			st := opts.Body
			st.Align = c.Align
			tb, err := composeText(opts.Typesetter, opts.Resources, cell.Text, st, cx+p, y+p, inner)
			if err != nil {
				return TableRow{}, err
			}
			content = max(content, tb.Height)
			out.Cells = append(out.Cells, TableCell{Text: tb})
		}
		cx += widths[i]
	}
	out.Height = content + 2*p

	// 行高确定后再放置图片：边长 = min(列宽, 行高) - 2·padding，单元格内居中。
	cx = x
	for i := range out.Cells {
		if img := out.Cells[i].Image; img != nil {
			side := max(min(widths[i], out.Height)-2*p, 0)
			img.X = cx + (widths[i]-side)/2
			img.Y = y + (out.Height-side)/2
			img.Width, img.Height = side, side
		}
		cx += widths[i]
	}
	return out, nil
}

func cellInner(width, padding float64) float64 {
	if inner := width - 2*padding; inner > 0 {
		return inner
	}
	return width
}
