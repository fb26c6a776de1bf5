package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/offerpress/layout"
	"github.com/ByLCY/offerpress/offer"
	"github.com/ByLCY/offerpress/preview"
	canvasrenderer "github.com/ByLCY/offerpress/renderer/canvas"
	"github.com/ByLCY/offerpress/theme"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func solid(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func newTestBuilder(t *testing.T, r preview.Rasterizer, mutate ...func(*Options)) *Builder {
	t.Helper()
	th, err := theme.Default()
	require.NoError(t, err)
	opts := Options{
		Theme:         th,
		Engine:        canvasrenderer.NewRenderer(""),
		Rasterizer:    r,
		RasterTimeout: time.Second,
		Now:           func() time.Time { return fixedNow },
	}
	for _, m := range mutate {
		m(&opts)
	}
	b, err := New(opts)
	require.NoError(t, err)
	return b
}

func item(id, name string, price string, qty int, vat string) offer.LineItem {
	return offer.LineItem{
		ID: id, Name: name, Quantity: qty,
		BasePrice: decimal.RequireFromString(price),
		VATRate:   decimal.RequireFromString(vat),
		WidthMm:   1200, HeightMm: 1400,
	}
}

func baseDoc(items ...offer.LineItem) *offer.Document {
	return &offer.Document{
		ClientName:  "Muster GmbH",
		OfferNumber: "AN-2024-001",
		OfferDate:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Regarding:   "New windows",
		LineItems:   items,
	}
}

// dataRows 返回所有页面表格中的数据行，按出现顺序。
func dataRows(pages []layout.Page) []layout.TableRow {
	var rows []layout.TableRow
	for _, p := range pages {
		for _, tbl := range p.Tables {
			for _, r := range tbl.Rows {
				if !r.IsHeader {
					rows = append(rows, r)
				}
			}
		}
	}
	return rows
}

func pageTexts(p layout.Page) string {
	var sb strings.Builder
	for _, tb := range p.Texts {
		sb.WriteString(tb.Content)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestBuildSingleItem(t *testing.T) {
	r := preview.RasterizerFunc(func(context.Context, offer.LineItem) (image.Image, error) {
		return solid(color.Black), nil
	})
	b := newTestBuilder(t, r)
	doc := baseDoc(item("p1", "Casement", "100.00", 2, "0.20"))
	doc.HeaderText = "Dear ${clientName}, thank you for ${unknown}."

	art, err := b.Build(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(art.PDF, []byte("%PDF")))
	require.Len(t, art.Pages, 1)
	assert.Empty(t, art.Degraded)

	assert.Equal(t, "240.00", art.Totals.GrandTotal.StringFixed(2))
	assert.Equal(t, offer.StatusDraft, art.Snapshot.Status)
	assert.Equal(t, fixedNow, art.Snapshot.RenderedAt)
	assert.Equal(t, 1, art.Snapshot.PageCount)
	assert.Equal(t, "EUR", art.Snapshot.Document.Currency, "默认币种")
	assert.Empty(t, doc.Currency, "调用方的文档不被修改")

	text := pageTexts(art.Pages[0])
	assert.Contains(t, text, "Dear Muster GmbH, thank you for ${unknown}.")
	assert.Contains(t, text, "EUR 240.00")
	assert.Contains(t, text, "01.03.2024")

	rows := dataRows(art.Pages)
	require.Len(t, rows, 1)
	cells := rows[0].Cells
	require.NotNil(t, cells[0].Image)
	assert.Equal(t, "line:p1", cells[0].Image.Ref)
	assert.NotNil(t, art.Layout.Bitmaps["line:p1"])
	assert.Equal(t, "Casement", cells[1].Text.Content)
	assert.Equal(t, "1200 × 1400", cells[2].Text.Content)
	assert.Equal(t, "2", cells[3].Text.Content)
	assert.Equal(t, "EUR 100.00", cells[4].Text.Content)
	assert.Equal(t, "20%", cells[5].Text.Content)
	assert.Equal(t, "EUR 240.00", cells[6].Text.Content)

	require.NotEmpty(t, art.Pages[0].Footer.Texts)
	assert.Equal(t, "Page 1 / 1", art.Pages[0].Footer.Texts[len(art.Pages[0].Footer.Texts)-1].Content)
}

func TestBuildFailedPreviewStillRendersRow(t *testing.T) {
	r := preview.RasterizerFunc(func(_ context.Context, it offer.LineItem) (image.Image, error) {
		if it.ID == "bad" {
			return nil, errors.New("backend exploded")
		}
		return solid(color.White), nil
	})
	b := newTestBuilder(t, r)
	art, err := b.Build(context.Background(), baseDoc(
		item("ok", "Fixed", "50.00", 1, "0.10"),
		item("bad", "Bay window", "80.00", 1, "0.10"),
	))
	require.NoError(t, err)
	require.Len(t, art.Degraded, 1)
	assert.Equal(t, 1, art.Degraded[0].Index)

	rows := dataRows(art.Pages)
	require.Len(t, rows, 2)
	assert.NotNil(t, rows[0].Cells[0].Image)
	assert.Nil(t, rows[1].Cells[0].Image)
	assert.Equal(t, "no preview", rows[1].Cells[0].Text.Content)
	assert.Equal(t, "Bay window", rows[1].Cells[1].Text.Content)
	assert.Equal(t, "EUR 88.00", rows[1].Cells[6].Text.Content)
}

func TestBuildInvalidDiscountRequestsNoRasterization(t *testing.T) {
	var calls atomic.Int32
	r := preview.RasterizerFunc(func(context.Context, offer.LineItem) (image.Image, error) {
		calls.Add(1)
		return solid(color.Black), nil
	})
	b := newTestBuilder(t, r)
	doc := baseDoc(item("p1", "Casement", "100.00", 1, "0.20"))
	doc.DiscountPercent = decimal.NewFromInt(150)

	art, err := b.Build(context.Background(), doc)
	require.Error(t, err)
	assert.Nil(t, art)
	var ve *offer.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, offer.CodeInvalidDiscount, ve.Code)
	assert.ErrorIs(t, err, offer.ErrValidation)
	assert.Zero(t, calls.Load())
}

func TestBuildManyItemsStampsSameTotal(t *testing.T) {
	items := make([]offer.LineItem, 40)
	for i := range items {
		items[i] = item(fmt.Sprintf("p%02d", i), fmt.Sprintf("Window %02d", i+1), "100.00", 1, "0.19")
	}
	r := preview.RasterizerFunc(func(_ context.Context, it offer.LineItem) (image.Image, error) {
		// 倒序完成也不影响行顺序
		n, _ := strconv.Atoi(it.ID[1:])
		time.Sleep(time.Duration(40-n) * 20 * time.Microsecond)
		return solid(color.Black), nil
	})
	b := newTestBuilder(t, r, func(o *Options) { o.Concurrency = 8 })
	art, err := b.Build(context.Background(), baseDoc(items...))
	require.NoError(t, err)
	require.Greater(t, len(art.Pages), 1)

	n := len(art.Pages)
	for i, p := range art.Pages {
		last := p.Footer.Texts[len(p.Footer.Texts)-1]
		assert.Equal(t, fmt.Sprintf("Page %d / %d", i+1, n), last.Content)
	}
	rows := dataRows(art.Pages)
	require.Len(t, rows, 40)
	for i, r := range rows {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, fmt.Sprintf("Window %02d", i+1), r.Cells[1].Text.Content)
	}
}

func TestBuildCompanyHeaderAndOptions(t *testing.T) {
	var logo bytes.Buffer
	require.NoError(t, png.Encode(&logo, solid(color.RGBA{R: 200, A: 255})))
	company := &offer.CompanyProfile{
		Name: "Fenster AG", Address: "Hauptstr. 1, Berlin", Email: "info@fenster.example",
		VATNumber: "DE123", Logo: logo.Bytes(),
	}
	b := newTestBuilder(t, nil, func(o *Options) { o.Company = company })

	doc := baseDoc(item("p1", "Casement", "100.00", 1, "0.20"), item("p2", "Hopper", "10.00", 1, "0.07"))
	doc.DiscountPercent = decimal.NewFromInt(10)
	doc.VATRegulation = offer.VATReverse
	doc.PaymentTerms = "30 days net"
	doc.FooterText = "Kind regards, ${company.name}"

	art, err := b.Build(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, art.Degraded, 2, "未配置光栅化后端时所有行降级")

	first := art.Pages[0]
	require.Len(t, first.Images, 1)
	assert.Equal(t, logoRef, first.Images[0].Ref)

	all := ""
	for _, p := range art.Pages {
		all += pageTexts(p)
	}
	assert.Contains(t, all, "Fenster AG")
	assert.Contains(t, all, "Kind regards, Fenster AG")
	assert.Contains(t, all, "Reverse charge")
	assert.Contains(t, all, "30 days net")
	assert.Contains(t, all, "Discount 10%")
	assert.Contains(t, all, "VAT 7% on EUR 9.00")
	assert.Equal(t, "Fenster AG · Hauptstr. 1, Berlin · DE123", first.Footer.Texts[0].Content)
}

func TestTotalsOnly(t *testing.T) {
	b := newTestBuilder(t, nil)
	doc := baseDoc(item("a", "A", "100.00", 1, "0.20"), item("b", "B", "50.00", 3, "0.10"))
	doc.DiscountPercent = decimal.NewFromInt(10)
	totals, err := b.Totals(doc)
	require.NoError(t, err)
	assert.Equal(t, "256.50", totals.GrandTotal.StringFixed(2))

	doc.ClientName = ""
	_, err = b.Totals(doc)
	var ve *offer.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, offer.CodeMissingClient, ve.Code)
}

func TestNewRequiresThemeAndEngine(t *testing.T) {
	_, err := New(Options{Engine: canvasrenderer.NewRenderer("")})
	assert.Error(t, err)
	th, err := theme.Default()
	require.NoError(t, err)
	_, err = New(Options{Theme: th})
	assert.Error(t, err)
}

func TestNewAppliesDefaultRasterTimeout(t *testing.T) {
	th, err := theme.Default()
	require.NoError(t, err)
	b, err := New(Options{Theme: th, Engine: canvasrenderer.NewRenderer("")})
	require.NoError(t, err)
	assert.Equal(t, preview.DefaultTimeout, b.opts.RasterTimeout)
}
