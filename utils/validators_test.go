package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCNPJ(t *testing.T) {
	// Check digits of 18.715.565/0001-10: dv1=1, dv2=0.
	assert.True(t, ValidateCNPJ("18.715.565/0001-10"))
	assert.True(t, ValidateCNPJ("18715565000110"))

	// Wrong verification digits
	assert.False(t, ValidateCNPJ("18.715.565/0001-11"))
	assert.False(t, ValidateCNPJ("18.715.565/0001-01"))

	// Repeated-digit sequences are always rejected
	assert.False(t, ValidateCNPJ("11111111111111"))
	assert.False(t, ValidateCNPJ("00.000.000/0000-00"))

	// Wrong length
	assert.False(t, ValidateCNPJ("1871556500011"))
	assert.False(t, ValidateCNPJ(""))
}

func TestFormatCNPJ(t *testing.T) {
	assert.Equal(t, "18.715.565/0001-10", FormatCNPJ("18715565000110"))
	assert.Equal(t, "18.715.565/0001-10", FormatCNPJ("18.715.565/0001-10"))
	assert.Equal(t, "", FormatCNPJ("123"))
}

func TestValidateDateBR(t *testing.T) {
	assert.True(t, ValidateDateBR("30/09/2025"))
	assert.True(t, ValidateDateBR("29/02/2024")) // leap year

	assert.False(t, ValidateDateBR("29/02/2023"))
	assert.False(t, ValidateDateBR("31/04/2025"))
	assert.False(t, ValidateDateBR("31/02/2025"))
	assert.False(t, ValidateDateBR("00/01/2025"))
	assert.False(t, ValidateDateBR("2025-09-30"))
	assert.False(t, ValidateDateBR(""))
}

func TestParseCurrencyBR(t *testing.T) {
	v, ok := ParseCurrencyBR("1.386,00")
	assert.True(t, ok)
	assert.Equal(t, 1386.00, v)

	v, ok = ParseCurrencyBR("12.345.678,91")
	assert.True(t, ok)
	assert.Equal(t, 12345678.91, v)

	v, ok = ParseCurrencyBR("0,50")
	assert.True(t, ok)
	assert.Equal(t, 0.50, v)

	// US-style formatting fails the full-match grammar
	_, ok = ParseCurrencyBR("1386.00")
	assert.False(t, ok)

	_, ok = ParseCurrencyBR("1.23,45")
	assert.False(t, ok)

	_, ok = ParseCurrencyBR("abc")
	assert.False(t, ok)
}
