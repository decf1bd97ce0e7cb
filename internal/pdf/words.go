package pdf

import (
	"math"
	"strings"
)

var onesWords = []string{
	"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
	"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen",
	"Seventeen", "Eighteen", "Nineteen",
}

var tensWords = []string{
	"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety",
}

func twoDigits(n int) string {
	if n < 20 {
		return onesWords[n]
	}
	if n%10 == 0 {
		return tensWords[n/10]
	}
	return tensWords[n/10] + " " + onesWords[n%10]
}

func threeDigits(n int) string {
	if n < 100 {
		return twoDigits(n)
	}
	s := onesWords[n/100] + " Hundred"
	if n%100 != 0 {
		s += " " + twoDigits(n%100)
	}
	return s
}

// integerInWords spells an integer under one arab using the Indian grouping
// of crore, lakh, thousand.
func integerInWords(n int64) string {
	if n == 0 {
		return "Zero"
	}

	var parts []string
	appendGroup := func(v int64, unit string) {
		if v > 0 {
			word := threeDigits(int(v))
			if unit != "" {
				word += " " + unit
			}
			parts = append(parts, word)
		}
	}

	appendGroup(n/10000000, "Crore")
	appendGroup((n/100000)%100, "Lakh")
	appendGroup((n/1000)%100, "Thousand")
	appendGroup(n%1000, "")

	return strings.Join(parts, " ")
}

// AmountInWords spells a rupee amount the way it appears on printed invoices,
// e.g. 295 -> "Two Hundred Ninety Five Rupees Only". Paise are included only
// when non-zero after rounding to two decimals.
func AmountInWords(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}

	prefix := ""
	if amount < 0 {
		prefix = "Minus "
		amount = -amount
	}

	paise := int64(math.Round(amount*100)) % 100
	rupees := int64(math.Round(amount*100)) / 100

	s := prefix + integerInWords(rupees) + " Rupees"
	if paise > 0 {
		s += " and " + twoDigits(int(paise)) + " Paise"
	}
	return s + " Only"
}
