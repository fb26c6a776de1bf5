package offer

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDocument() *Document {
	return &Document{
		ClientName:      "Muster GmbH",
		OfferNumber:     "AN-2024-001",
		OfferDate:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Currency:        "EUR",
		DiscountPercent: decimal.Zero,
		VATRegulation:   VATDomestic,
		LineItems:       []LineItem{item("100", 2, "0.19")},
	}
}

func validationCode(t *testing.T, err error) (Code, string) {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.Code, verr.Field
}

func TestValidateAcceptsValidDocument(t *testing.T) {
	require.NoError(t, Validate(validDocument()))
}

func TestValidateMissingClient(t *testing.T) {
	doc := validDocument()
	doc.ClientName = "   "
	code, field := validationCode(t, Validate(doc))
	assert.Equal(t, CodeMissingClient, code)
	assert.Equal(t, "clientName", field)
}

func TestValidateDiscountBounds(t *testing.T) {
	doc := validDocument()
	doc.DiscountPercent = d("150")
	code, field := validationCode(t, Validate(doc))
	assert.Equal(t, CodeInvalidDiscount, code)
	assert.Equal(t, "globalDiscountPercent", field)

	doc.DiscountPercent = d("-5")
	code, _ = validationCode(t, Validate(doc))
	assert.Equal(t, CodeInvalidDiscount, code)

	doc.DiscountPercent = d("100")
	assert.NoError(t, Validate(doc))
}

func TestValidateLineItemFields(t *testing.T) {
	doc := validDocument()
	doc.LineItems = append(doc.LineItems, item("10", 0, "0.19"))
	code, field := validationCode(t, Validate(doc))
	assert.Equal(t, CodeInvalidQuantity, code)
	assert.Equal(t, "lineItems[1].quantity", field)

	doc = validDocument()
	doc.LineItems[0].VATRate = d("1.2")
	code, field = validationCode(t, Validate(doc))
	assert.Equal(t, CodeInvalidVATRate, code)
	assert.Equal(t, "lineItems[0].vatRate", field)

	doc = validDocument()
	doc.LineItems[0].WidthMm = -1
	code, _ = validationCode(t, Validate(doc))
	assert.Equal(t, CodeInvalidDimension, code)
}

func TestValidateCurrencyAndRegulation(t *testing.T) {
	doc := validDocument()
	doc.Currency = "EURO"
	code, _ := validationCode(t, Validate(doc))
	assert.Equal(t, CodeInvalidCurrency, code)

	doc = validDocument()
	doc.VATRegulation = "offshore"
	code, _ = validationCode(t, Validate(doc))
	assert.Equal(t, CodeInvalidVATRegulation, code)
}

func TestValidateDoesNotEnforceExpiryOrder(t *testing.T) {
	doc := validDocument()
	doc.ExpiryDate = doc.OfferDate.AddDate(0, 0, -10)
	assert.NoError(t, Validate(doc))
}

func TestValidateNilDocument(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), ErrValidation)
}

func TestValidateAcceptsIntraEUSpellings(t *testing.T) {
	for _, spelling := range []string{"intra-EU", "intra-eu", "Intra-Eu"} {
		doc, err := DecodeDocument([]byte(`{"clientName":"A","vatRegulation":"` + spelling + `",` +
			`"lineItems":[{"id":"a","name":"x","quantity":1,"basePrice":"10","vatRate":"0"}]}`))
		require.NoError(t, err, spelling)
		assert.Equal(t, VATIntraEU, doc.VATRegulation, spelling)
		assert.NoError(t, Validate(doc), spelling)
		assert.Equal(t, "Intra-EU supply", doc.VATRegulation.Label())
	}

	doc := validDocument()
	doc.VATRegulation = "INTRA-eu"
	assert.NoError(t, Validate(doc), "直接构造的文档同样忽略大小写")
}
