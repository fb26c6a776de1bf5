package builder

import (
	"image"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ByLCY/offerpress/binding"
	"github.com/ByLCY/offerpress/layout"
	"github.com/ByLCY/offerpress/offer"
	"github.com/ByLCY/offerpress/preview"
)

// content 把报价单转换成排版引擎的内容块，所有数值在这里格式化。
func (b *Builder) content(d *offer.Document, totals offer.Totals, arena *preview.Arena) layout.Input {
	bitmaps := map[string]image.Image{}
	in := layout.Input{
		Title:         strings.TrimSpace("Offer " + d.OfferNumber),
		Metadata:      metadata(d),
		OptionsTitle:  "More options",
		Options:       options(d),
		Totals:        totalsFields(d.Currency, totals),
		Bitmaps:       bitmaps,
		RunningFooter: b.runningFooter(),
		Meta: layout.DocumentMeta{
			Title:   strings.TrimSpace("Offer " + d.OfferNumber),
			Subject: d.Regarding,
		},
	}
	if c := b.opts.Company; !c.IsZero() {
		block := &layout.CompanyBlock{Name: c.Name, Lines: companyLines(c)}
		if b.logo != nil {
			bitmaps[logoRef] = b.logo
			block.Logo = logoRef
		}
		in.Company = block
		in.Meta.Author = c.Name
	}

	data := bindingData(d, totals, b.opts.Company)
	in.HeaderText = b.interpolate(d.HeaderText, data)
	in.FooterText = b.interpolate(d.FooterText, data)

	in.Rows = make([]layout.Row, len(d.LineItems))
	for i, item := range d.LineItems {
		ref := ""
		if img := arena.At(i); img != nil {
			ref = "line:" + arena.Key(i)
			bitmaps[ref] = img
		}
		in.Rows[i] = row(b.opts.Theme.Columns, i, item, ref, d.Currency, totals.DiscountFactor)
	}
	return in
}

func (b *Builder) interpolate(text string, data map[string]any) string {
	if text == "" {
		return ""
	}
	if missing := binding.Unresolved(text, data); len(missing) > 0 {
		b.log.Warn("unresolved placeholders kept verbatim", zap.Strings("paths", missing))
	}
	return binding.Interpolate(text, data)
}

func (b *Builder) runningFooter() string {
	c := b.opts.Company
	if c.IsZero() {
		return ""
	}
	return joinNonEmpty(" · ", c.Name, c.Address, c.VATNumber)
}

// row 按主题列的 key 取值；未知 key 输出空单元格。
func row(columns []layout.Column, index int, item offer.LineItem, ref, currency string, factor decimal.Decimal) layout.Row {
	cells := make([]layout.Cell, len(columns))
	for i, col := range columns {
		if col.Kind == layout.CellImage {
			cells[i] = layout.Cell{Image: ref}
			continue
		}
		cells[i] = layout.Cell{Text: cellText(col.Key, index, item, currency, factor)}
	}
	return layout.Row{Cells: cells}
}

func cellText(key string, index int, item offer.LineItem, currency string, factor decimal.Decimal) string {
	switch key {
	case "position", "pos":
		return strconv.Itoa(index + 1)
	case "id":
		return item.ID
	case "name", "item":
		return item.Name
	case "size", "dimensions":
		if item.WidthMm <= 0 || item.HeightMm <= 0 {
			return ""
		}
		return formatMm(item.WidthMm) + " × " + formatMm(item.HeightMm)
	case "quantity", "qty":
		q := offer.FormatQuantity(item.Quantity)
		if item.Unit != "" {
			q += " " + item.Unit
		}
		return q
	case "unit":
		return item.Unit
	case "price", "unitPrice":
		return offer.FormatMoney(currency, item.BasePrice)
	case "vat", "vatRate":
		return offer.FormatPercent(item.VATRate)
	case "net":
		return offer.FormatMoney(currency, offer.LineNet(item).Mul(factor))
	case "total", "lineTotal":
		return offer.FormatMoney(currency, offer.LineTotal(item, factor))
	default:
		return ""
	}
}

func formatMm(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func metadata(d *offer.Document) []layout.Field {
	candidates := []layout.Field{
		{Label: "Client", Value: d.ClientName},
		{Label: "Delivery address", Value: d.DeliveryAddress},
		{Label: "Regarding", Value: d.Regarding},
		{Label: "Offer number", Value: d.OfferNumber},
		{Label: "Offer date", Value: offer.FormatDate(d.OfferDate, d.Locale)},
		{Label: "Valid until", Value: offer.FormatDate(d.ExpiryDate, d.Locale)},
		{Label: "Reference", Value: d.ReferenceNumber},
	}
	return nonEmptyFields(candidates)
}

func options(d *offer.Document) []layout.Field {
	var regulation string
	if d.VATRegulation != "" {
		regulation = d.VATRegulation.Label()
	}
	return nonEmptyFields([]layout.Field{
		{Label: "Currency", Value: d.Currency},
		{Label: "Contact", Value: d.InternalContact},
		{Label: "Delivery conditions", Value: d.DeliveryConditions},
		{Label: "Payment terms", Value: d.PaymentTerms},
		{Label: "VAT regulation", Value: regulation},
	})
}

// totalsFields 输出汇总块：小计、折扣、折后净额、按税率的增值税、总计。
func totalsFields(currency string, t offer.Totals) []layout.Field {
	fields := []layout.Field{{Label: "Subtotal (net)", Value: offer.FormatMoney(currency, t.SubtotalNet)}}
	if t.DiscountPercent.IsPositive() {
		fields = append(fields,
			layout.Field{Label: "Discount " + t.DiscountPercent.String() + "%", Value: "- " + offer.FormatMoney(currency, t.DiscountAmount)},
			layout.Field{Label: "Net after discount", Value: offer.FormatMoney(currency, t.NetAfterDiscount)},
		)
	}
	if len(t.VATByRate) > 1 {
		for _, bucket := range t.VATByRate {
			fields = append(fields, layout.Field{
				Label: "VAT " + offer.FormatPercent(bucket.Rate) + " on " + offer.FormatMoney(currency, bucket.Net),
				Value: offer.FormatMoney(currency, bucket.VAT),
			})
		}
	}
	fields = append(fields,
		layout.Field{Label: "VAT total", Value: offer.FormatMoney(currency, t.VATTotal)},
		layout.Field{Label: "Total", Value: offer.FormatMoney(currency, t.GrandTotal), Emphasis: true},
	)
	return fields
}

func companyLines(c *offer.CompanyProfile) []string {
	var vat string
	if c.VATNumber != "" {
		vat = "VAT ID " + c.VATNumber
	}
	return []string{
		c.Address,
		joinNonEmpty(" · ", c.Email, c.Phone),
		joinNonEmpty(" · ", c.Website, vat),
	}
}

// bindingData 是 headerText/footerText 中 ${path} 可引用的字段。
func bindingData(d *offer.Document, t offer.Totals, c *offer.CompanyProfile) map[string]any {
	cur := d.Currency
	data := map[string]any{
		"clientName":         d.ClientName,
		"deliveryAddress":    d.DeliveryAddress,
		"regarding":          d.Regarding,
		"offerNumber":        d.OfferNumber,
		"offerDate":          offer.FormatDate(d.OfferDate, d.Locale),
		"expiryDate":         offer.FormatDate(d.ExpiryDate, d.Locale),
		"referenceNumber":    d.ReferenceNumber,
		"currency":           cur,
		"internalContact":    d.InternalContact,
		"deliveryConditions": d.DeliveryConditions,
		"paymentTerms":       d.PaymentTerms,
		"itemCount":          len(d.LineItems),
		"totals": map[string]any{
			"subtotalNet":      offer.FormatMoney(cur, t.SubtotalNet),
			"discountAmount":   offer.FormatMoney(cur, t.DiscountAmount),
			"netAfterDiscount": offer.FormatMoney(cur, t.NetAfterDiscount),
			"vatTotal":         offer.FormatMoney(cur, t.VATTotal),
			"grandTotal":       offer.FormatMoney(cur, t.GrandTotal),
		},
	}
	if !c.IsZero() {
		data["company"] = map[string]any{
			"name":      c.Name,
			"address":   c.Address,
			"email":     c.Email,
			"phone":     c.Phone,
			"website":   c.Website,
			"vatNumber": c.VATNumber,
		}
	}
	return data
}

func nonEmptyFields(in []layout.Field) []layout.Field {
	out := in[:0]
	for _, f := range in {
		if strings.TrimSpace(f.Value) != "" {
			out = append(out, f)
		}
	}
	return out
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
