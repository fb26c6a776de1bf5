package offer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocument(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{
		"clientName": "Muster GmbH",
		"globalDiscountPercent": 12.5,
		"vatRegulation": "intra-eu",
		"lineItems": [{"id": "w1", "name": "Casement", "quantity": 2, "basePrice": "99.90", "vatRate": 0.19}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Muster GmbH", doc.ClientName)
	assert.Equal(t, "12.5", doc.DiscountPercent.String())
	assert.Equal(t, VATIntraEU, doc.VATRegulation)
	require.Len(t, doc.LineItems, 1)
	assert.Equal(t, "99.9", doc.LineItems[0].BasePrice.String())

	_, err = DecodeDocument([]byte(`{"clientName": "x", "discount": 5}`))
	assert.Error(t, err)
}

func TestVATRegulationLabel(t *testing.T) {
	assert.Equal(t, "Reverse charge", VATReverse.Label())
	assert.Equal(t, "custom", VATRegulation("custom").Label())
}

func TestCompanyProfileIsZero(t *testing.T) {
	var p *CompanyProfile
	assert.True(t, p.IsZero())
	assert.True(t, (&CompanyProfile{}).IsZero())
	assert.False(t, (&CompanyProfile{Logo: []byte{1}}).IsZero())
}
