package layout

// pageAccumulator 收集一页的主体元素。
type pageAccumulator struct {
	texts  []TextBox
	images []ImageBox
	tables []TableBox
	lines  []Line
	rects  []Rect
}

func (p *pageAccumulator) appendText(tb TextBox) {
	p.texts = append(p.texts, tb)
}

func (p *pageAccumulator) appendImage(img ImageBox) {
	p.images = append(p.images, img)
}

func (p *pageAccumulator) appendTable(t TableBox) {
	p.tables = append(p.tables, t)
}

func (p *pageAccumulator) appendLine(ln Line) {
	p.lines = append(p.lines, ln)
}

func (p *pageAccumulator) appendRect(rc Rect) {
	p.rects = append(p.rects, rc)
}

// pageCollector 按顺序产出页面；页眉/页脚对所有页面相同。
type pageCollector struct {
	width  float64
	height float64
	margin Margin
	accs   []*pageAccumulator
	header HeaderFooter
	footer HeaderFooter
}

func newPageCollector(width, height float64, margin Margin) *pageCollector {
	return &pageCollector{width: width, height: height, margin: margin}
}

func (pc *pageCollector) newPage() *pageAccumulator {
	acc := &pageAccumulator{}
	pc.accs = append(pc.accs, acc)
	return acc
}

func (pc *pageCollector) curr() *pageAccumulator {
	if len(pc.accs) == 0 {
		return pc.newPage()
	}
	return pc.accs[len(pc.accs)-1]
}

func (pc *pageCollector) count() int { return len(pc.accs) }

func (pc *pageCollector) contentTop() float64 {
	// 内容区域顶部 = max(上边距, 页眉高度)
	return max(pc.margin.Top, pc.header.Height)
}

func (pc *pageCollector) contentBottom() float64 {
	// 内容区域底部 = 页面高度 - max(下边距, 页脚高度)
	return pc.height - max(pc.margin.Bottom, pc.footer.Height)
}

func (pc *pageCollector) pages() []Page {
	out := make([]Page, len(pc.accs))
	for i, acc := range pc.accs {
		out[i] = Page{
			Number: i + 1,
			Width:  pc.width,
			Height: pc.height,
			Margin: pc.margin,
			Texts:  acc.texts,
			Images: acc.images,
			Tables: acc.tables,
			Lines:  acc.lines,
			Rects:  acc.rects,
			Header: pc.header,
			Footer: pc.footer,
		}
	}
	return out
}
