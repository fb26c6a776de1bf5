package offer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "EUR 240.00", FormatMoney("EUR", d("240")))
	assert.Equal(t, "EUR 0.01", FormatMoney("eur", d("0.005")))
	assert.Equal(t, "CHF 1234.57", FormatMoney(" CHF ", d("1234.5678")))
	assert.Equal(t, "XYZ1 3.00", FormatMoney("XYZ1", d("3")))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "20%", FormatPercent(d("0.20")))
	assert.Equal(t, "0%", FormatPercent(d("0")))
	assert.Equal(t, "8%", FormatPercent(d("0.077")))
}

func TestFormatDateByLocale(t *testing.T) {
	ts := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "09.03.2024", FormatDate(ts, "de-DE"))
	assert.Equal(t, "03/09/2024", FormatDate(ts, "en-US"))
	assert.Equal(t, "09/03/2024", FormatDate(ts, "en-GB"))
	assert.Equal(t, "09.03.2024", FormatDate(ts, ""))
	assert.Equal(t, "2024-03-09", FormatDate(ts, "not a locale!"))
	assert.Equal(t, "", FormatDate(time.Time{}, "de-DE"))
}
