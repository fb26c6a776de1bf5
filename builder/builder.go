// Package builder 串联一次报价单渲染：校验、计算合计、栅格化预览、排版、
// 补页码并输出 PDF。
package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"go.uber.org/zap"

	"github.com/ByLCY/offerpress/layout"
	"github.com/ByLCY/offerpress/offer"
	"github.com/ByLCY/offerpress/preview"
	"github.com/ByLCY/offerpress/renderer"
)

const logoRef = "company:logo"

// Snapshot 是发布步骤交给存储的快照。
type Snapshot = offer.Snapshot

// Options 是 Builder 的显式配置；公司资料与币种/语言默认值只经由这里传入，不走 context。
type Options struct {
	Theme  *layout.Theme
	Engine renderer.Engine
	// Rasterizer 可为 nil，此时每行都使用占位图。
	Rasterizer    preview.Rasterizer
	RasterTimeout time.Duration
	Concurrency   int
	SoftPageLimit int

	Company         *offer.CompanyProfile
	DefaultCurrency string
	DefaultLocale   string

	Logger *zap.Logger
	Now    func() time.Time
}

// Builder 可并发使用，每次 Build 都在输入的副本上工作。
type Builder struct {
	opts Options
	log  *zap.Logger
	logo image.Image
}

// Artifact 是一次成功构建的产物。
type Artifact struct {
	PDF      []byte
	Pages    []layout.Page
	Layout   *layout.Result
	Totals   offer.Totals
	Snapshot Snapshot
	Degraded []preview.Degraded
	Warnings []layout.Warning
}

func New(opts Options) (*Builder, error) {
	if opts.Theme == nil {
		return nil, errors.New("builder: theme is required")
	}
	if opts.Engine == nil {
		return nil, errors.New("builder: render engine is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RasterTimeout <= 0 {
		opts.RasterTimeout = preview.DefaultTimeout
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "EUR"
	}
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = offer.DefaultLocale
	}
	b := &Builder{opts: opts, log: opts.Logger}
	if opts.Company != nil && len(opts.Company.Logo) > 0 {
		img, _, err := image.Decode(bytes.NewReader(opts.Company.Logo))
		if err != nil {
			b.log.Warn("company logo ignored", zap.Error(err))
		} else {
			b.logo = img
		}
	}
	return b, nil
}

// Totals 只校验并计算合计，不渲染。
func (b *Builder) Totals(doc *offer.Document) (offer.Totals, error) {
	d, err := b.prepare(doc)
	if err != nil {
		return offer.Totals{}, err
	}
	return offer.ComputeTotals(d.LineItems, d.DiscountPercent)
}

// Build 渲染 doc。校验错误在栅格化开始前返回；预览失败和版面溢出只会降级产物。
func (b *Builder) Build(ctx context.Context, doc *offer.Document) (*Artifact, error) {
	d, err := b.prepare(doc)
	if err != nil {
		return nil, err
	}
	totals, err := offer.ComputeTotals(d.LineItems, d.DiscountPercent)
	if err != nil {
		return nil, err
	}

	log := b.log.With(zap.String("offer_number", d.OfferNumber))
	arena := preview.Collect(ctx, d.LineItems, b.opts.Rasterizer, preview.Options{
		Timeout:     b.opts.RasterTimeout,
		Concurrency: b.opts.Concurrency,
		Logger:      log,
	})

	in := b.content(&d, totals, arena)
	eng := &layout.Engine{
		Theme:         b.opts.Theme,
		Typesetter:    b.opts.Engine,
		SoftPageLimit: b.opts.SoftPageLimit,
		Logger:        log,
	}
	res, err := eng.Layout(in)
	if err != nil {
		return nil, fmt.Errorf("builder: layout: %w", err)
	}
	layout.StampPageNumbers(res.Pages, b.opts.Theme.Style(layout.StyleFooter))

	pdf, err := b.opts.Engine.Render(res)
	if err != nil {
		return nil, fmt.Errorf("builder: render: %w", err)
	}

	art := &Artifact{
		PDF:    pdf,
		Pages:  res.Pages,
		Layout: res,
		Totals: totals,
		Snapshot: Snapshot{
			OfferID:    d.OfferID,
			Document:   d,
			Totals:     totals,
			Status:     offer.StatusDraft,
			RenderedAt: b.opts.Now().UTC(),
			PageCount:  len(res.Pages),
		},
		Degraded: arena.Degraded(),
		Warnings: res.Warnings,
	}
	log.Info("offer rendered",
		zap.Int("pages", len(res.Pages)),
		zap.Int("lines", len(d.LineItems)),
		zap.Int("degraded", len(art.Degraded)),
		zap.Int("bytes", len(pdf)))
	return art, nil
}

// prepare 复制 doc，补齐币种/语言默认值后校验。
func (b *Builder) prepare(doc *offer.Document) (offer.Document, error) {
	if doc == nil {
		return offer.Document{}, errors.New("builder: document is nil")
	}
	d := *doc
	d.LineItems = append([]offer.LineItem(nil), doc.LineItems...)
	if d.Currency == "" {
		d.Currency = b.opts.DefaultCurrency
	}
	d.Currency = offer.NormalizeCurrency(d.Currency)
	if d.Locale == "" {
		d.Locale = b.opts.DefaultLocale
	}
	if err := offer.Validate(&d); err != nil {
		return offer.Document{}, err
	}
	return d, nil
}
