package offer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 该文件定义报价单的输入模型，JSON 字段名与前端/存储保持一致。

// VATRegulation 表示报价适用的增值税规则。
type VATRegulation string

const (
	VATDomestic VATRegulation = "domestic"
	VATIntraEU  VATRegulation = "intra-EU"
	VATExport   VATRegulation = "export"
	VATReverse  VATRegulation = "reverse"
)

var vatRegulations = []VATRegulation{VATDomestic, VATIntraEU, VATExport, VATReverse}

// ParseVATRegulation 忽略大小写匹配已知规则，返回规范写法。
func ParseVATRegulation(s string) (VATRegulation, bool) {
	s = strings.TrimSpace(s)
	for _, v := range vatRegulations {
		if strings.EqualFold(s, string(v)) {
			return v, true
		}
	}
	return VATRegulation(s), false
}

// UnmarshalJSON 将 "intra-eu" 等写法归一为规范值；未知值原样保留，交给校验报错。
func (v *VATRegulation) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v, _ = ParseVATRegulation(raw)
	return nil
}

// Label 返回用于文档"更多选项"区块的展示文字。
func (v VATRegulation) Label() string {
	if known, ok := ParseVATRegulation(string(v)); ok {
		v = known
	}
	switch v {
	case VATDomestic:
		return "Domestic"
	case VATIntraEU:
		return "Intra-EU supply"
	case VATExport:
		return "Export"
	case VATReverse:
		return "Reverse charge"
	default:
		return string(v)
	}
}

// Status 是报价快照的流转状态，核心只负责输出，不做流程决策。
type Status string

const (
	StatusDraft  Status = "draft"
	StatusSent   Status = "sent"
	StatusViewed Status = "viewed"
)

// Document 是一次渲染的完整输入，渲染期间视为只读。
type Document struct {
	OfferID            string          `json:"offerId,omitempty"`
	OwnerID            string          `json:"ownerId,omitempty"`
	ClientName         string          `json:"clientName" validate:"required"`
	DeliveryAddress    string          `json:"deliveryAddress"`
	Regarding          string          `json:"regarding"`
	OfferNumber        string          `json:"offerNumber"`
	OfferDate          time.Time       `json:"offerDate"`
	ExpiryDate         time.Time       `json:"expiryDate"`
	ReferenceNumber    string          `json:"referenceNumber"`
	HeaderText         string          `json:"headerText"`
	FooterText         string          `json:"footerText"`
	Currency           string          `json:"currency" validate:"omitempty,iso4217"`
	DiscountPercent    decimal.Decimal `json:"globalDiscountPercent" validate:"gte=0,lte=100"`
	LineItems          []LineItem      `json:"lineItems" validate:"dive"`
	VATRegulation      VATRegulation   `json:"vatRegulation" validate:"omitempty,vatregulation"`
	InternalContact    string          `json:"internalContact"`
	DeliveryConditions string          `json:"deliveryConditions"`
	PaymentTerms       string          `json:"paymentTerms"`
	Locale             string          `json:"locale,omitempty"`
}

// LineItem 是报价单中的一行，id 可以为空（自由行）。
type LineItem struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Unit       string          `json:"unit,omitempty"`
	Quantity   int             `json:"quantity" validate:"gte=1"`
	BasePrice  decimal.Decimal `json:"basePrice" validate:"gte=0"`
	VATRate    decimal.Decimal `json:"vatRate" validate:"gte=0,lte=1"`
	WidthMm    float64         `json:"widthMm" validate:"gte=0"`
	HeightMm   float64         `json:"heightMm" validate:"gte=0"`
	WindowType string          `json:"windowType,omitempty"`
	SVGPath    string          `json:"svgPath,omitempty"`
}

// CompanyProfile 来自外部的公司资料，用于页眉；为 nil 时省略页眉区块。
type CompanyProfile struct {
	Name      string `json:"name" envconfig:"NAME"`
	Address   string `json:"address" envconfig:"ADDRESS"`
	Email     string `json:"email" envconfig:"EMAIL"`
	Phone     string `json:"phone" envconfig:"PHONE"`
	VATNumber string `json:"vatNumber" envconfig:"VAT_NUMBER"`
	Website   string `json:"website" envconfig:"WEBSITE"`
	Logo      []byte `json:"-" ignored:"true"`
}

// IsZero reports whether the profile carries nothing worth printing.
func (p *CompanyProfile) IsZero() bool {
	if p == nil {
		return true
	}
	return p.Name == "" && p.Address == "" && p.Email == "" && p.Phone == "" &&
		p.VATNumber == "" && p.Website == "" && len(p.Logo) == 0
}

// DecodeDocument 解析报价单 JSON，未知字段视为错误。
func DecodeDocument(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("offer: decode document: %w", err)
	}
	return &doc, nil
}
