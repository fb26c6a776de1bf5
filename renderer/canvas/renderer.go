package canvasrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/offerpress/fonts"
	"github.com/ByLCY/offerpress/layout"
	"github.com/ByLCY/offerpress/renderer"
)

const hairline = 0.2

// Renderer draws layout results via github.com/tdewolff/canvas.
type Renderer struct {
	baseDir   string
	fontBlobs map[string][]byte

	fontMu         sync.Mutex
	fontFamilies   map[string]*fontFamilyEntry
	fallbackFamily *canvas.FontFamily
}

var _ renderer.Engine = (*Renderer)(nil)

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

// Options configures the canvas renderer.
type Options struct {
	// BaseDir 用于解析主题中的相对字体路径；为空时只允许 embed: 与 builtin: 字体。
	BaseDir string
	// Fonts 通过 builtin:<name> 引用的字体数据。
	Fonts map[string][]byte
}

// NewRenderer creates a renderer that only resolves embedded fonts and files under baseDir.
func NewRenderer(baseDir string) *Renderer { return NewRendererWithOptions(Options{BaseDir: baseDir}) }

// NewRendererWithOptions creates a renderer with injected font data.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		baseDir:      opts.BaseDir,
		fontBlobs:    map[string][]byte{},
		fontFamilies: map[string]*fontFamilyEntry{},
	}
	for name, data := range opts.Fonts {
		if name != "" && len(data) > 0 {
			r.fontBlobs[name] = data
		}
	}
	return r
}

// Render renders the result into a PDF byte slice.
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if len(result.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}

	var buf bytes.Buffer
	writer := pdf.New(&buf, result.Pages[0].Width, result.Pages[0].Height, nil)
	applyMeta(writer, result.Meta)
	for i, page := range result.Pages {
		if i > 0 {
			writer.NewPage(page.Width, page.Height)
		}
		c := canvas.New(page.Width, page.Height)
		ctx := canvas.NewContext(c)
		ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点

		if err := r.drawPage(ctx, page, result); err != nil {
			return nil, fmt.Errorf("第 %d 页渲染失败: %w", i+1, err)
		}
		c.RenderTo(writer)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func applyMeta(writer *pdf.PDF, meta layout.DocumentMeta) {
	keywords := strings.Join(meta.Keywords, ", ")
	writer.SetInfo(meta.Title, meta.Subject, keywords, meta.Author, meta.Creator)
}

// LayoutLines 实现 layout.Typesetter 接口，使用贪心换行算法。
// 约定：fontSize/lineHeight 入参均为毫米（mm）。创建字体面使用 pt，在边界做 mm↔pt 换算。
func (r *Renderer) LayoutLines(content string, width float64, font layout.FontResource, fontSize, lineHeight float64, wrap string) ([]layout.TextLine, error) {
	face, err := r.fontFace(font, toPt(fontSize), layout.Color{R: 30, G: 30, B: 30})
	if err != nil {
		return nil, err
	}
	if wrap == "" {
		wrap = "anywhere"
	}
	lines := greedyWrap(content, width, face, wrap)

	textHeight := face.Metrics().LineHeight
	if textHeight <= 0 {
		textHeight = lineHeight
	}
	leading := math.Max(lineHeight-textHeight, 0)
	if len(lines) == 0 {
		lines = []layout.TextLine{{Height: textHeight}}
	}
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = textHeight
		}
		if i > 0 {
			lines[i].GapBefore = leading
		}
	}
	return lines, nil
}

func (r *Renderer) drawPage(ctx *canvas.Context, page layout.Page, result *layout.Result) error {
	available := result.Resources.Fonts

	drawLines(ctx, page.Header.Lines)
	if err := r.drawTexts(ctx, page.Header.Texts, available); err != nil {
		return err
	}
	drawImages(ctx, page.Header.Images, result.Bitmaps)

	// 背景形状先于正文绘制
	drawRects(ctx, page.Rects)
	drawLines(ctx, page.Lines)
	if err := r.drawTexts(ctx, page.Texts, available); err != nil {
		return err
	}
	drawImages(ctx, page.Images, result.Bitmaps)
	if err := r.drawTables(ctx, page.Tables, result); err != nil {
		return err
	}

	drawLines(ctx, page.Footer.Lines)
	if err := r.drawTexts(ctx, page.Footer.Texts, available); err != nil {
		return err
	}
	drawImages(ctx, page.Footer.Images, result.Bitmaps)
	return nil
}

func (r *Renderer) drawTexts(ctx *canvas.Context, boxes []layout.TextBox, available map[string]layout.FontResource) error {
	for _, tb := range boxes {
		if err := r.drawTextBox(ctx, tb, resolveFontResource(tb.Font, available)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawTextBox(ctx *canvas.Context, tb layout.TextBox, fontRes layout.FontResource) error {
	lines := tb.Lines
	if len(lines) == 0 {
		if tb.Content == "" {
			return nil
		}
		lines = []layout.TextLine{{Content: tb.Content, Width: tb.Width, Height: tb.LineHeight}}
	}
	face, err := r.fontFace(fontRes, toPt(tb.FontSize), tb.Color)
	if err != nil {
		return err
	}

	var textAlign canvas.TextAlign
	var anchorX float64
	switch strings.ToLower(tb.Align) {
	case "center":
		textAlign = canvas.Center
		anchorX = tb.X + tb.Width/2
	case "right", "end":
		textAlign = canvas.Right
		anchorX = tb.X + tb.Width
	default:
		textAlign = canvas.Left
		anchorX = tb.X
	}

	ascent := face.Metrics().Ascent
	cursorY := tb.Y
	for _, line := range lines {
		cursorY += line.GapBefore
		lineHeight := line.Height
		if lineHeight <= 0 {
			lineHeight = tb.LineHeight
		}
		if line.Content != "" {
			// 基线 = 行顶 + 字体上升部
			ctx.DrawText(anchorX, cursorY+ascent, canvas.NewTextLine(face, line.Content, textAlign))
		}
		cursorY += lineHeight
	}
	return nil
}

// drawImages 按 Ref 从位图表取图；缺失的引用直接跳过，占位文字由排版阶段负责。
func drawImages(ctx *canvas.Context, images []layout.ImageBox, bitmaps map[string]image.Image) {
	for _, img := range images {
		drawBitmap(ctx, img, bitmaps)
	}
}

func drawBitmap(ctx *canvas.Context, box layout.ImageBox, bitmaps map[string]image.Image) {
	bmp, ok := bitmaps[box.Ref]
	if !ok || bmp == nil || box.Width <= 0 {
		return
	}
	px := bmp.Bounds().Dx()
	if px <= 0 {
		return
	}
	ctx.DrawImage(box.X, box.Y, bmp, canvas.DPMM(float64(px)/box.Width))
}

func (r *Renderer) drawTables(ctx *canvas.Context, tables []layout.TableBox, result *layout.Result) error {
	for _, table := range tables {
		if len(table.ColumnWidths) == 0 {
			continue
		}
		border := colorFromLayout(table.BorderColor)
		for _, row := range table.Rows {
			var fill color.Color = canvas.White
			if row.IsHeader {
				fill = colorFromLayout(table.HeaderFill)
			}
			x := table.X
			for idx, cell := range row.Cells {
				colWidth := table.ColumnWidths[min(idx, len(table.ColumnWidths)-1)]
				ctx.SetFillColor(fill)
				ctx.SetStrokeColor(border)
				ctx.SetStrokeWidth(hairline)
				ctx.DrawPath(x, row.Y, canvas.Rectangle(colWidth, row.Height))

				if cell.Image != nil {
					drawBitmap(ctx, *cell.Image, result.Bitmaps)
				} else if err := r.drawTextBox(ctx, cell.Text, resolveFontResource(cell.Text.Font, result.Resources.Fonts)); err != nil {
					return err
				}
				x += colWidth
			}
		}
	}
	return nil
}

func drawLines(ctx *canvas.Context, lines []layout.Line) {
	for _, ln := range lines {
		w := ln.Width
		if w <= 0 {
			w = hairline
		}
		ctx.SetStrokeColor(colorFromLayout(ln.Color))
		ctx.SetStrokeWidth(w)
		p := &canvas.Path{}
		p.MoveTo(0, 0)
		p.LineTo(ln.X2-ln.X1, ln.Y2-ln.Y1)
		ctx.DrawPath(ln.X1, ln.Y1, p)
	}
}

func drawRects(ctx *canvas.Context, rects []layout.Rect) {
	for _, rc := range rects {
		w := rc.StrokeWidth
		if w <= 0 {
			w = hairline
		}
		if rc.FillColor != nil {
			ctx.SetFillColor(colorFromLayout(*rc.FillColor))
		} else {
			ctx.SetFillColor(canvas.Transparent)
		}
		ctx.SetStrokeColor(colorFromLayout(rc.StrokeColor))
		ctx.SetStrokeWidth(w)
		ctx.DrawPath(rc.X, rc.Y, canvas.Rectangle(rc.Width, rc.Height))
	}
}

func (r *Renderer) fontFace(font layout.FontResource, size float64, col layout.Color) (*canvas.FontFace, error) {
	family, style, err := r.ensureFontFamily(font)
	if err != nil {
		return nil, err
	}
	return family.Face(size, colorFromLayout(col), style, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily(font layout.FontResource) (*canvas.FontFamily, canvas.FontStyle, error) {
	key := fontCacheKey(font)
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if entry, ok := r.fontFamilies[key]; ok {
		return entry.family, entry.style, nil
	}

	style := parseFontStyle(font.Style)
	familyName := font.Family
	if familyName == "" {
		familyName = font.Name
	}
	if familyName == "" {
		familyName = "Body"
	}
	family := canvas.NewFontFamily(familyName)

	if err := r.loadFontIntoFamily(family, font, style); err != nil {
		fallback, fbErr := r.fallback(font.Fallback)
		if fbErr != nil {
			return nil, canvas.FontRegular, err
		}
		r.fontFamilies[key] = &fontFamilyEntry{family: fallback, style: canvas.FontRegular}
		return fallback, canvas.FontRegular, nil
	}

	r.fontFamilies[key] = &fontFamilyEntry{family: family, style: style}
	return family, style, nil
}

func (r *Renderer) loadFontIntoFamily(family *canvas.FontFamily, font layout.FontResource, style canvas.FontStyle) error {
	data, err := r.loadFontBytes(font.Name, font.Src)
	if err != nil {
		return err
	}
	return family.LoadFont(data, 0, style)
}

func (r *Renderer) loadFontBytes(name, src string) ([]byte, error) {
	switch {
	case src == "":
		return nil, fmt.Errorf("字体 %s 缺少 src", name)
	case strings.HasPrefix(src, "builtin:"):
		key := strings.TrimPrefix(src, "builtin:")
		if blob, ok := r.fontBlobs[key]; ok {
			return blob, nil
		}
		return nil, fmt.Errorf("找不到内置字体资源 builtin:%s", key)
	case strings.HasPrefix(src, "embed:"):
		return fonts.Load(src)
	}
	path := src
	if r.baseDir == "" && !filepath.IsAbs(path) {
		return nil, fmt.Errorf("未指定资源目录时不允许直接使用字体路径：%s（请改用 builtin: 或 embed:）", src)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	return os.ReadFile(path)
}

// fallback 先尝试字体声明的 fallback，再退回内置 Go 字体。调用方需持有 fontMu。
func (r *Renderer) fallback(src string) (*canvas.FontFamily, error) {
	if src != "" {
		if data, err := r.loadFontBytes("fallback", src); err == nil {
			family := canvas.NewFontFamily("fallback:" + src)
			if err := family.LoadFont(data, 0, canvas.FontRegular); err == nil {
				return family, nil
			}
		}
	}
	if r.fallbackFamily != nil {
		return r.fallbackFamily, nil
	}
	data, err := fonts.Load(fonts.Default)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("offerpress-fallback")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, err
	}
	r.fallbackFamily = family
	return family, nil
}

func resolveFontResource(name string, available map[string]layout.FontResource) layout.FontResource {
	if font, ok := available[name]; ok {
		return font
	}
	if font, ok := available["Body"]; ok {
		return font
	}
	for _, font := range available {
		return font
	}
	return layout.FontResource{Name: "Body", Src: "embed:" + fonts.Default}
}

func parseFontStyle(style string) canvas.FontStyle {
	s := strings.ToLower(style)
	var result canvas.FontStyle
	switch {
	case strings.Contains(s, "black"):
		result = canvas.FontBlack
	case strings.Contains(s, "extrabold"):
		result = canvas.FontExtraBold
	case strings.Contains(s, "semibold"), strings.Contains(s, "demibold"):
		result = canvas.FontSemiBold
	case strings.Contains(s, "bold"):
		result = canvas.FontBold
	case strings.Contains(s, "medium"):
		result = canvas.FontMedium
	case strings.Contains(s, "light"):
		result = canvas.FontLight
	default:
		result = canvas.FontRegular
	}
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		result |= canvas.FontItalic
	}
	return result
}

func fontCacheKey(font layout.FontResource) string {
	return font.Name + "|" + font.Src + "|" + font.Style
}

func colorFromLayout(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}

// toPt 将毫米(mm)转换为点(pt)。
func toPt(mm float64) float64 { return mm * layout.MmToPt }
