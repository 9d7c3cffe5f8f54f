package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	nonDigitRegex = regexp.MustCompile(`\D`)

	// Brazilian currency: thousands groups separated by '.', decimals by ','.
	currencyRegex     = regexp.MustCompile(`\d{1,3}(?:\.\d{3})*,\d{2}`)
	currencyFullRegex = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})*,\d{2}$`)
)

// DigitsOnly strips every non-digit character.
func DigitsOnly(s string) string {
	return nonDigitRegex.ReplaceAllString(s, "")
}

// FormatCNPJ renders a 14-digit CNPJ as XX.XXX.XXX/XXXX-XX.
// Returns "" when the input does not hold exactly 14 digits.
func FormatCNPJ(cnpj string) string {
	digits := DigitsOnly(cnpj)
	if len(digits) != 14 {
		return ""
	}
	return digits[:2] + "." + digits[2:5] + "." + digits[5:8] + "/" + digits[8:12] + "-" + digits[12:14]
}

// ValidateCNPJ checks the two verification digits of a CNPJ using the
// Receita Federal weighted mod-11 algorithm. Repeated-digit sequences
// (00000000000000, 11111111111111, ...) are rejected outright.
func ValidateCNPJ(cnpj string) bool {
	digits := DigitsOnly(cnpj)
	if len(digits) != 14 {
		return false
	}
	if strings.Count(digits, string(digits[0])) == 14 {
		return false
	}

	dv1 := checkDigit(digits[:12], []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	dv2 := checkDigit(digits[:12]+dv1, []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})

	return digits[12:] == dv1+dv2
}

func checkDigit(digits string, weights []int) string {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	r := sum % 11
	if r < 2 {
		return "0"
	}
	return strconv.Itoa(11 - r)
}

// ValidateDateBR checks a strict DD/MM/YYYY calendar date.
// time.Parse normalizes overflows (31/04 becomes 01/05), so the parsed
// value must round-trip back to the input.
func ValidateDateBR(date string) bool {
	t, err := time.Parse("02/01/2006", date)
	if err != nil {
		return false
	}
	return t.Format("02/01/2006") == date
}

// ParseDateBR parses a DD/MM/YYYY date, enforcing the same strictness
// as ValidateDateBR.
func ParseDateBR(date string) (time.Time, bool) {
	t, err := time.Parse("02/01/2006", date)
	if err != nil || t.Format("02/01/2006") != date {
		return time.Time{}, false
	}
	return t, true
}

// ValidateCurrencyBR checks that the whole string is a Brazilian-formatted
// monetary amount and that it parses as a decimal number.
func ValidateCurrencyBR(value string) bool {
	_, ok := ParseCurrencyBR(value)
	return ok
}

// ParseCurrencyBR converts "1.386,00" to 1386.00. The full string must
// match the currency grammar.
func ParseCurrencyBR(value string) (float64, bool) {
	trimmed := strings.TrimSpace(value)
	if !currencyFullRegex.MatchString(trimmed) {
		return 0, false
	}
	normalized := strings.ReplaceAll(trimmed, ".", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")
	f, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
