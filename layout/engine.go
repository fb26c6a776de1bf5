package layout

import (
	"fmt"
	"image"
	"math"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultBlockSpacing = 3.0
	defaultLabelWidth   = 32.0
	defaultTotalsWidth  = 80.0
	defaultLogoHeight   = 18.0
	gridColumnGap       = 6.0
	gridRowGap          = 1.0
	headingGap          = 1.5
)

// CompanyBlock 是第一页顶部的公司信息；Logo 引用 Input.Bitmaps 中的位图。
type CompanyBlock struct {
	Name  string
	Lines []string
	Logo  string
}

// Field 是一组“标签: 值”。Emphasis 用于总计行。
type Field struct {
	Label    string
	Value    string
	Emphasis bool
}

// Input 是一份文档的全部内容块，按状态机顺序排版。
type Input struct {
	Company      *CompanyBlock
	Title        string
	Metadata     []Field
	HeaderText   string
	Rows         []Row
	Totals       []Field
	FooterText   string
	OptionsTitle string
	Options      []Field
	// RunningFooter 出现在每一页的页脚左侧。
	RunningFooter string
	Bitmaps       map[string]image.Image
	Meta          DocumentMeta
}

// Engine 执行内容排版（第一遍）。页码由 StampPageNumbers 在第二遍写入。
type Engine struct {
	Theme      *Theme
	Typesetter Typesetter
	// SoftPageLimit > 0 时，超过该页数记录 LayoutOverflow 告警，排版照常继续。
	SoftPageLimit int
	Logger        *zap.Logger
}

type state int

const (
	stateNewPage state = iota
	stateHeader
	stateMetadata
	stateHeaderText
	stateTable
	stateTotals
	stateFooterText
	stateOptions
	stateDone
)

var stateNames = [...]string{"NewPage", "Header", "Metadata", "FreeText(header)", "Table", "Totals", "FreeText(footer)", "Options", "Done"}

func (s state) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Layout 依次执行 NewPage → Header → Metadata → FreeText(header) → Table → Totals →
// FreeText(footer) → Options → Done。放不下最小内容的块先转入 NewPage 再重试；
// Table 与跨页文本会多次经过 NewPage，直到内容全部放完。
func (e *Engine) Layout(in Input) (*Result, error) {
	if e.Theme == nil {
		return nil, fmt.Errorf("layout: 缺少主题")
	}
	if e.Typesetter == nil {
		return nil, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}
	log := e.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := newRun(e, in)
	if err := r.prepareFooter(); err != nil {
		return nil, err
	}

	st, resume := stateNewPage, stateHeader
	for st != stateDone {
		if st == stateNewPage {
			r.newPage()
			st = resume
			continue
		}
		done, err := r.step(st)
		if err != nil {
			return nil, fmt.Errorf("layout: %s: %w", st, err)
		}
		if !done {
			resume, st = st, stateNewPage
			continue
		}
		r.progress, r.titlePlaced = 0, false
		st++
	}

	pages := r.pc.pages()
	if e.SoftPageLimit > 0 && len(pages) > e.SoftPageLimit {
		w := Warning{
			Kind:    LayoutOverflow,
			Page:    len(pages),
			Message: fmt.Sprintf("文档共 %d 页，超过软上限 %d 页", len(pages), e.SoftPageLimit),
		}
		r.warnings = append(r.warnings, w)
	}
	for _, w := range r.warnings {
		log.Warn("layout warning", zap.String("kind", string(w.Kind)), zap.Int("page", w.Page), zap.String("message", w.Message))
	}

	return &Result{
		Pages:     pages,
		Resources: e.Theme.Resources,
		Meta:      mergeMeta(e.Theme.Meta, in.Meta),
		Warnings:  r.warnings,
		Bitmaps:   in.Bitmaps,
	}, nil
}

// run 保存一次排版的游标与跨页进度。
type run struct {
	th *Theme
	ts Typesetter
	in Input
	pc *pageCollector

	x, width float64
	cursorY  float64
	// fresh 表示当前页还没有放任何内容；此时放不下的块会被强制放置，避免死循环。
	fresh bool

	progress    int
	titlePlaced bool
	rowNext     int
	pending     *TextBox
	warnings    []Warning
}

func newRun(e *Engine, in Input) *run {
	th := e.Theme
	pc := newPageCollector(th.Width, th.Height, th.Margin)
	pc.footer.Height = th.FooterHeight
	return &run{
		th:    th,
		ts:    e.Typesetter,
		in:    in,
		pc:    pc,
		x:     th.Margin.Left,
		width: th.ContentWidth(),
	}
}

func (r *run) step(st state) (bool, error) {
	switch st {
	case stateHeader:
		return r.header()
	case stateMetadata:
		return r.grid(r.in.Title, r.in.Metadata)
	case stateHeaderText:
		return r.freeText(r.in.HeaderText)
	case stateTable:
		return r.table()
	case stateTotals:
		return r.totals()
	case stateFooterText:
		return r.freeText(r.in.FooterText)
	case stateOptions:
		return r.grid(r.in.OptionsTitle, r.in.Options)
	default:
		return true, nil
	}
}

func (r *run) newPage() {
	r.pc.newPage()
	r.cursorY = r.pc.contentTop()
	r.fresh = true
}

func (r *run) remaining() float64 { return r.pc.contentBottom() - r.cursorY }

func (r *run) fits(h float64) bool { return r.fresh || h <= r.remaining() }

func (r *run) spacing() float64 {
	if r.th.BlockSpacing > 0 {
		return r.th.BlockSpacing
	}
	return defaultBlockSpacing
}

func (r *run) compose(content, role string, x, y, width float64) (TextBox, error) {
	return composeText(r.ts, r.th.Resources, content, r.th.Style(role), x, y, width)
}

// prepareFooter 生成每页重复的页脚（分隔线 + 公司信息）。
func (r *run) prepareFooter() error {
	text := strings.TrimSpace(r.in.RunningFooter)
	if text == "" {
		return nil
	}
	st := r.th.Style(StyleFooter)
	top := r.pc.contentBottom()
	y := footerTextY(r.th.Height, r.th.Margin, r.th.FooterHeight, st.Size)
	tb, err := composeText(r.ts, r.th.Resources, text, st, r.x, y, r.width*0.7)
	if err != nil {
		return err
	}
	r.pc.footer.Texts = []TextBox{tb}
	r.pc.footer.Lines = []Line{{X1: r.x, Y1: top + 1, X2: r.x + r.width, Y2: top + 1, Color: r.th.BorderColor}}
	return nil
}

func (r *run) header() (bool, error) {
	c := r.in.Company
	if c == nil {
		return true, nil
	}
	y := r.cursorY
	textW := r.width

	var logo *ImageBox
	if img, ok := r.in.Bitmaps[c.Logo]; ok && img != nil && c.Logo != "" {
		b := img.Bounds()
		if b.Dx() > 0 && b.Dy() > 0 {
			h := r.th.LogoHeight
			if h <= 0 {
				h = defaultLogoHeight
			}
			w := h * float64(b.Dx()) / float64(b.Dy())
			if limit := r.width / 3; w > limit {
				w = limit
				h = w * float64(b.Dy()) / float64(b.Dx())
			}
			logo = &ImageBox{Ref: c.Logo, X: r.x + r.width - w, Y: y, Width: w, Height: h}
			textW = r.width - w - gridColumnGap
		}
	}

	name, err := r.compose(c.Name, StyleTitle, r.x, y, textW)
	if err != nil {
		return false, err
	}
	height := name.Height
	boxes := []TextBox{name}
	if details := strings.Join(nonEmpty(c.Lines), "\n"); details != "" {
		tb, err := r.compose(details, StyleBody, r.x, y+height+headingGap, textW)
		if err != nil {
			return false, err
		}
		boxes = append(boxes, tb)
		height += headingGap + tb.Height
	}
	if logo != nil {
		height = max(height, logo.Height)
	}
	if !r.fits(height + 2) {
		return false, nil
	}

	acc := r.pc.curr()
	for _, tb := range boxes {
		acc.appendText(tb)
	}
	if logo != nil {
		acc.appendImage(*logo)
	}
	sep := y + height + 2
	acc.appendLine(Line{X1: r.x, Y1: sep, X2: r.x + r.width, Y2: sep, Color: r.th.AccentColor, Width: 0.4})
	r.cursorY = sep + r.spacing()
	r.fresh = false
	return true, nil
}

// grid 排版“标题 + 两列标签/值”块。最小内容为标题加第一行字段，行之间可以分页。
func (r *run) grid(title string, fields []Field) (bool, error) {
	if title == "" && len(fields) == 0 {
		return true, nil
	}
	if title != "" && !r.titlePlaced {
		tb, err := r.compose(title, StyleHeading, r.x, r.cursorY, r.width)
		if err != nil {
			return false, err
		}
		need := tb.Height
		if len(fields) > 0 {
			_, h, err := r.fieldRow(fields[:min(2, len(fields))], 0)
			if err != nil {
				return false, err
			}
			need += headingGap + h
		}
		if !r.fits(need) {
			return false, nil
		}
		r.pc.curr().appendText(tb)
		r.cursorY += tb.Height + headingGap
		r.fresh = false
		r.titlePlaced = true
	}
	for r.progress < len(fields) {
		batch := fields[r.progress:min(r.progress+2, len(fields))]
		boxes, h, err := r.fieldRow(batch, r.cursorY)
		if err != nil {
			return false, err
		}
		if !r.fits(h) {
			return false, nil
		}
		for _, tb := range boxes {
			r.pc.curr().appendText(tb)
		}
		r.cursorY += h + gridRowGap
		r.fresh = false
		r.progress += len(batch)
	}
	r.cursorY += r.spacing()
	return true, nil
}

func (r *run) fieldRow(fields []Field, y float64) ([]TextBox, float64, error) {
	colW := (r.width - gridColumnGap) / 2
	labelW := r.th.LabelWidth
	if labelW <= 0 || labelW >= colW {
		labelW = min(defaultLabelWidth, colW/2)
	}
	var boxes []TextBox
	height := 0.0
	for i, f := range fields {
		x := r.x + float64(i)*(colW+gridColumnGap)
		label, err := r.compose(f.Label, StyleLabel, x, y, labelW)
		if err != nil {
			return nil, 0, err
		}
		value, err := r.compose(f.Value, StyleBody, x+labelW, y, colW-labelW)
		if err != nil {
			return nil, 0, err
		}
		boxes = append(boxes, label, value)
		height = max(height, label.Height, value.Height)
	}
	return boxes, height, nil
}

// freeText 排版一段自由文本；放不下时按行拆到下一页，至少需要放下一行。
func (r *run) freeText(content string) (bool, error) {
	if r.pending == nil {
		if strings.TrimSpace(content) == "" {
			return true, nil
		}
		tb, err := r.compose(content, StyleBody, r.x, r.cursorY, r.width)
		if err != nil {
			return false, err
		}
		r.pending = &tb
	}
	tb := *r.pending
	tb.Y = r.cursorY

	n := linesFitting(tb.Lines, r.remaining())
	if n == 0 {
		if !r.fresh {
			return false, nil
		}
		n = 1
	}
	if n < len(tb.Lines) {
		head, tail := splitText(tb, n, 0)
		r.pc.curr().appendText(head)
		r.pending = &tail
		r.fresh = false
		return false, nil
	}
	r.pc.curr().appendText(tb)
	r.pending = nil
	r.cursorY += tb.Height + r.spacing()
	r.fresh = false
	return true, nil
}

func (r *run) tableOptions() TableOptions {
	return TableOptions{
		Typesetter:      r.ts,
		Resources:       r.th.Resources,
		Header:          r.th.Style(StyleTableHeader),
		Body:            r.th.Style(StyleTableCell),
		Placeholder:     r.th.Style(StylePlaceholder),
		PlaceholderText: r.th.Placeholder,
		Padding:         r.th.CellPadding,
		ImageEdge:       r.th.PreviewSize,
		BorderColor:     r.th.BorderColor,
		HeaderFill:      r.th.HeaderFill,
	}
}

// table 循环调用 RenderTable，每个分片都以表头开头；剩余行进入下一页。
func (r *run) table() (bool, error) {
	rows := r.in.Rows
	if len(rows) == 0 || len(r.th.Columns) == 0 {
		return true, nil
	}
	opts := r.tableOptions()
	for r.rowNext < len(rows) {
		frag, n, err := RenderTable(r.th.Columns, rows[r.rowNext:], r.x, r.cursorY, r.width, r.remaining(), opts)
		if err != nil {
			return false, err
		}
		if n == 0 {
			if !r.fresh {
				return false, nil
			}
			// 单行高于整页内容区：只能溢出放置。
			frag, n, err = RenderTable(r.th.Columns, rows[r.rowNext:r.rowNext+1], r.x, r.cursorY, r.width, math.MaxFloat64, opts)
			if err != nil {
				return false, err
			}
			r.warnings = append(r.warnings, Warning{
				Kind:    OversizedRow,
				Page:    r.pc.count(),
				Message: fmt.Sprintf("第 %d 行高于页面内容区", r.rowNext+1),
			})
		}
		for i := range frag.Rows {
			if !frag.Rows[i].IsHeader {
				frag.Rows[i].Index += r.rowNext
			}
		}
		r.pc.curr().appendTable(frag)
		r.cursorY += frag.Height
		r.fresh = false
		r.rowNext += n
		if r.rowNext < len(rows) {
			return false, nil
		}
	}
	r.cursorY += r.spacing()
	return true, nil
}

// totals 右对齐的汇总块，整体不拆页。
func (r *run) totals() (bool, error) {
	fields := r.in.Totals
	if len(fields) == 0 {
		return true, nil
	}
	w := r.th.TotalsWidth
	if w <= 0 {
		w = defaultTotalsWidth
	}
	w = min(w, r.width)
	x := r.x + r.width - w
	labelW := w * 0.55

	var boxes []TextBox
	var lines []Line
	var rects []Rect
	y := r.cursorY
	for _, f := range fields {
		labelRole, valueRole := StyleLabel, StyleTotal
		if f.Emphasis {
			labelRole, valueRole = StyleGrandTotal, StyleGrandTotal
			y += 1
			lines = append(lines, Line{X1: x, Y1: y, X2: x + w, Y2: y, Color: r.th.AccentColor, Width: 0.3})
			y += 1
		}
		label, err := r.compose(f.Label, labelRole, x, y, labelW)
		if err != nil {
			return false, err
		}
		st := r.th.Style(valueRole)
		st.Align = "right"
		value, err := composeText(r.ts, r.th.Resources, f.Value, st, x+labelW, y, w-labelW)
		if err != nil {
			return false, err
		}
		h := max(label.Height, value.Height)
		if f.Emphasis {
			fill := r.th.HeaderFill
			rects = append(rects, Rect{X: x, Y: y - 0.5, Width: w, Height: h + 1, StrokeColor: fill, FillColor: &fill})
		}
		boxes = append(boxes, label, value)
		y += h + gridRowGap
	}
	height := y - r.cursorY
	if !r.fits(height) {
		return false, nil
	}
	acc := r.pc.curr()
	for _, rc := range rects {
		acc.appendRect(rc)
	}
	for _, ln := range lines {
		acc.appendLine(ln)
	}
	for _, tb := range boxes {
		acc.appendText(tb)
	}
	r.cursorY = y + r.spacing()
	r.fresh = false
	return true, nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mergeMeta(base, override DocumentMeta) DocumentMeta {
	out := base
	if override.Title != "" {
		out.Title = override.Title
	}
	if override.Author != "" {
		out.Author = override.Author
	}
	if override.Subject != "" {
		out.Subject = override.Subject
	}
	if override.Creator != "" {
		out.Creator = override.Creator
	}
	if len(override.Keywords) > 0 {
		out.Keywords = override.Keywords
	}
	return out
}
