package offer

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// DefaultLocale is used when a document does not carry a locale tag.
const DefaultLocale = "de-DE"

var dateLocales = []struct {
	tag    language.Tag
	layout string
}{
	{language.German, "02.01.2006"},
	{language.AmericanEnglish, "01/02/2006"},
	{language.BritishEnglish, "02/01/2006"},
	{language.French, "02/01/2006"},
	{language.Dutch, "02-01-2006"},
	{language.Polish, "02.01.2006"},
}

var dateMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(dateLocales))
	for i, l := range dateLocales {
		tags[i] = l.tag
	}
	return language.NewMatcher(tags)
}()

// FormatMoney 输出 "<币种> <金额两位小数>"，例如 "EUR 1234.50"。
func FormatMoney(code string, amount decimal.Decimal) string {
	return NormalizeCurrency(code) + " " + amount.StringFixed(2)
}

// NormalizeCurrency 将已知的 ISO 4217 代码规范为大写形式，未知代码原样返回。
func NormalizeCurrency(code string) string {
	code = strings.TrimSpace(code)
	if unit, err := currency.ParseISO(code); err == nil {
		return unit.String()
	}
	return code
}

// FormatQuantity 数量按整数输出。
func FormatQuantity(q int) string {
	return strconv.Itoa(q)
}

// FormatPercent 将 [0,1] 的税率显示为不带小数的百分比，例如 0.19 → "19%"。
func FormatPercent(rate decimal.Decimal) string {
	return rate.Mul(hundred).StringFixed(0) + "%"
}

// FormatDate 依据 BCP-47 locale 选择日期格式；零值时间返回空串。
func FormatDate(t time.Time, locale string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout(locale))
}

// DateLayout 返回与 locale 最接近的日期布局，无法匹配时退回 ISO 8601。
func DateLayout(locale string) string {
	if strings.TrimSpace(locale) == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return "2006-01-02"
	}
	_, idx, conf := dateMatcher.Match(tag)
	if conf == language.No {
		return "2006-01-02"
	}
	return dateLocales[idx].layout
}
