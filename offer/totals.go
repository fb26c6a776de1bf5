package offer

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Totals 是由行项目推导出的汇总值，全部保持完整精度，仅在展示时保留两位小数。
type Totals struct {
	SubtotalNet      decimal.Decimal `json:"subtotalNet"`
	DiscountPercent  decimal.Decimal `json:"discountPercent"`
	DiscountFactor   decimal.Decimal `json:"discountFactor"`
	DiscountAmount   decimal.Decimal `json:"discountAmount"`
	NetAfterDiscount decimal.Decimal `json:"netAfterDiscount"`
	VATTotal         decimal.Decimal `json:"vatTotal"`
	GrandTotal       decimal.Decimal `json:"grandTotal"`
	VATByRate        []VATBucket     `json:"vatByRate,omitempty"`
}

// VATBucket 汇总同一税率下的折后净额与税额。
type VATBucket struct {
	Rate decimal.Decimal `json:"rate"`
	Net  decimal.Decimal `json:"net"`
	VAT  decimal.Decimal `json:"vat"`
}

// DiscountFactor 返回 1 − percent/100；percent 超出 [0,100] 时返回 INVALID_DISCOUNT。
func DiscountFactor(percent decimal.Decimal) (decimal.Decimal, error) {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return decimal.Zero, &ValidationError{
			Code:    CodeInvalidDiscount,
			Field:   "globalDiscountPercent",
			Message: "折扣必须位于 [0,100] 区间，实际为 " + percent.String(),
		}
	}
	return one.Sub(percent.Div(hundred)), nil
}

// ComputeTotals 计算净额、折扣、增值税与总额。纯函数，相同输入得到相同结果。
func ComputeTotals(items []LineItem, discountPercent decimal.Decimal) (Totals, error) {
	factor, err := DiscountFactor(discountPercent)
	if err != nil {
		return Totals{}, err
	}
	for i, item := range items {
		if err := checkItem(i, item); err != nil {
			return Totals{}, err
		}
	}

	subtotal := decimal.Zero
	vat := decimal.Zero
	buckets := map[string]*VATBucket{}
	for _, item := range items {
		net := LineNet(item)
		subtotal = subtotal.Add(net)

		discounted := net.Mul(factor)
		lineVAT := discounted.Mul(item.VATRate)
		vat = vat.Add(lineVAT)

		key := item.VATRate.String()
		b, ok := buckets[key]
		if !ok {
			b = &VATBucket{Rate: item.VATRate, Net: decimal.Zero, VAT: decimal.Zero}
			buckets[key] = b
		}
		b.Net = b.Net.Add(discounted)
		b.VAT = b.VAT.Add(lineVAT)
	}

	netAfter := subtotal.Mul(factor)
	totals := Totals{
		SubtotalNet:      subtotal,
		DiscountPercent:  discountPercent,
		DiscountFactor:   factor,
		DiscountAmount:   subtotal.Sub(netAfter),
		NetAfterDiscount: netAfter,
		VATTotal:         vat,
		GrandTotal:       netAfter.Add(vat),
	}
	for _, b := range buckets {
		totals.VATByRate = append(totals.VATByRate, *b)
	}
	sort.Slice(totals.VATByRate, func(i, j int) bool {
		return totals.VATByRate[i].Rate.LessThan(totals.VATByRate[j].Rate)
	})
	return totals, nil
}

// LineNet 返回 basePrice·quantity。
func LineNet(item LineItem) decimal.Decimal {
	return item.BasePrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// LineTotal 返回 basePrice·quantity·discountFactor·(1+vatRate)，即表格中的"行合计"列。
func LineTotal(item LineItem, factor decimal.Decimal) decimal.Decimal {
	return LineNet(item).Mul(factor).Mul(one.Add(item.VATRate))
}

func checkItem(i int, item LineItem) error {
	field := func(name string) string { return "lineItems[" + strconv.Itoa(i) + "]." + name }
	switch {
	case item.Quantity < 1:
		return &ValidationError{Code: CodeInvalidQuantity, Field: field("quantity"), Message: "数量必须 ≥ 1"}
	case item.VATRate.IsNegative() || item.VATRate.GreaterThan(one):
		return &ValidationError{Code: CodeInvalidVATRate, Field: field("vatRate"), Message: "税率必须位于 [0,1]"}
	case item.BasePrice.IsNegative():
		return &ValidationError{Code: CodeInvalidPrice, Field: field("basePrice"), Message: "单价不能为负"}
	case item.WidthMm < 0:
		return &ValidationError{Code: CodeInvalidDimension, Field: field("widthMm"), Message: "宽度不能为负"}
	case item.HeightMm < 0:
		return &ValidationError{Code: CodeInvalidDimension, Field: field("heightMm"), Message: "高度不能为负"}
	}
	return nil
}
