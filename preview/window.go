package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/offerpress/offer"
)

// DefaultSizePx 是未配置时预览位图的边长。
const DefaultSizePx = 256

var (
	// ErrNoGraphic 表示条目既没有窗型也没有路径。
	ErrNoGraphic = errors.New("preview: line item has no graphic")
	// ErrInvalidDimensions 表示宽或高不是正数。
	ErrInvalidDimensions = errors.New("preview: width and height must be positive")
)

// Graphic 是待栅格化的矢量图形，附带需要适配的实际宽高比。
type Graphic struct {
	Path     string
	WidthMm  float64
	HeightMm float64
}

// VectorRenderer 将 Graphic 绘制为 widthPx×heightPx 的位图。
type VectorRenderer interface {
	Render(ctx context.Context, g Graphic, widthPx, heightPx int) (image.Image, error)
}

// WindowRasterizer 解析条目的窗型图形，栅格化为 SizePx 像素的正方形位图，与实际尺寸无关。
type WindowRasterizer struct {
	Renderer VectorRenderer
	SizePx   int
}

// NewWindowRasterizer 返回基于 CanvasRenderer 的 WindowRasterizer。
func NewWindowRasterizer(sizePx int) *WindowRasterizer {
	if sizePx <= 0 {
		sizePx = DefaultSizePx
	}
	return &WindowRasterizer{Renderer: CanvasRenderer{}, SizePx: sizePx}
}

// GraphicFor 构建条目的图形，显式 SVG 路径优先于窗型。
func GraphicFor(item offer.LineItem) (Graphic, error) {
	if item.WidthMm <= 0 || item.HeightMm <= 0 {
		return Graphic{}, fmt.Errorf("%w: %gx%g mm", ErrInvalidDimensions, item.WidthMm, item.HeightMm)
	}
	g := Graphic{WidthMm: item.WidthMm, HeightMm: item.HeightMm}
	switch {
	case strings.TrimSpace(item.SVGPath) != "":
		g.Path = item.SVGPath
	case item.WindowType != "":
		wt, ok := LookupWindowType(item.WindowType)
		if !ok {
			return Graphic{}, fmt.Errorf("preview: 未知窗型 %q", item.WindowType)
		}
		g.Path = wt.Path
	default:
		return Graphic{}, ErrNoGraphic
	}
	return g, nil
}

func (w *WindowRasterizer) Rasterize(ctx context.Context, item offer.LineItem) (image.Image, error) {
	g, err := GraphicFor(item)
	if err != nil {
		return nil, err
	}
	size := w.SizePx
	if size <= 0 {
		size = DefaultSizePx
	}
	r := w.Renderer
	if r == nil {
		r = CanvasRenderer{}
	}
	return r.Render(ctx, g, size, size)
}

// CanvasRenderer 使用 tdewolff/canvas 栅格化，图形按宽高比缩放并居中于白底。
type CanvasRenderer struct {
	Stroke color.Color
	Glass  color.Color
}

func (cr CanvasRenderer) Render(ctx context.Context, g Graphic, widthPx, heightPx int) (image.Image, error) {
	if widthPx <= 0 || heightPx <= 0 {
		return nil, fmt.Errorf("preview: invalid bitmap size %dx%d", widthPx, heightPx)
	}
	if g.WidthMm <= 0 || g.HeightMm <= 0 {
		return nil, ErrInvalidDimensions
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame, err := canvas.ParseSVGPath(g.Path)
	if err != nil {
		return nil, fmt.Errorf("preview: 解析路径失败: %w", err)
	}

	// 画布单位取 1 像素 = 1 mm，栅格化分辨率 1 dot/mm。
	w, h := float64(widthPx), float64(heightPx)
	boxW, boxH := fitBox(w*0.9, h*0.9, g.WidthMm/g.HeightMm)
	offX, offY := (w-boxW)/2, (h-boxH)/2
	frame = frame.Transform(canvas.Identity.Scale(boxW/ViewBox, boxH/ViewBox))

	c := canvas.New(w, h)
	cctx := canvas.NewContext(c)
	cctx.SetCoordSystem(canvas.CartesianIV)

	cctx.SetFillColor(canvas.White)
	cctx.SetStrokeColor(canvas.Transparent)
	cctx.DrawPath(0, 0, canvas.Rectangle(w, h))

	cctx.SetFillColor(orDefault(cr.Glass, canvas.RGBA(214, 234, 248, 1)))
	cctx.DrawPath(offX, offY, canvas.Rectangle(boxW, boxH))

	cctx.SetFillColor(canvas.Transparent)
	cctx.SetStrokeColor(orDefault(cr.Stroke, canvas.Hex("#37474F")))
	cctx.SetStrokeWidth(max(1, w/96))
	cctx.DrawPath(offX, offY, frame)

	return rasterizer.Draw(c, canvas.DPMM(1), canvas.DefaultColorSpace), nil
}

// fitBox 返回 maxW×maxH 内能放下的、宽高比为 aspect 的最大矩形。
func fitBox(maxW, maxH, aspect float64) (float64, float64) {
	if aspect <= 0 {
		return maxW, maxH
	}
	if maxW/aspect <= maxH {
		return maxW, maxW / aspect
	}
	return maxH * aspect, maxH
}

func orDefault(c, def color.Color) color.Color {
	if c == nil {
		return def
	}
	return c
}
