package scoring

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	amountNumber = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?\s*(k|m|mm|million|thousand|billion)?\b`)
	upToHint     = regexp.MustCompile(`\b(up to|maximum|max|not to exceed|no more than)\b`)
	atLeastHint  = regexp.MustCompile(`\b(minimum|min|at least|starting at|from)\b`)
)

// ParseAmount reads award amounts such as "$5,000 - $25,000", "up to $1.5 million" or "50K".
// A single amount is a maximum unless the text says it is a minimum.
func ParseAmount(text string) (min, max float64, currency string) {
	lower := strings.ToLower(text)

	currency = "USD"
	switch {
	case strings.Contains(lower, "£") || strings.Contains(lower, "gbp"):
		currency = "GBP"
	case strings.Contains(lower, "€") || strings.Contains(lower, "eur"):
		currency = "EUR"
	case strings.Contains(lower, "cad") || strings.Contains(lower, "c$"):
		currency = "CAD"
	}

	var amounts []float64
	for _, m := range amountNumber.FindAllStringSubmatch(lower, -1) {
		raw := strings.TrimSpace(strings.TrimSuffix(m[0], m[1]))
		val, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil || val <= 0 {
			continue
		}
		switch m[1] {
		case "k", "thousand":
			val *= 1_000
		case "m", "mm", "million":
			val *= 1_000_000
		case "billion":
			val *= 1_000_000_000
		}
		amounts = append(amounts, val)
	}

	switch len(amounts) {
	case 0:
		return 0, 0, ""
	case 1:
		if atLeastHint.MatchString(lower) && !upToHint.MatchString(lower) {
			return amounts[0], 0, currency
		}
		return 0, amounts[0], currency
	}

	min, max = amounts[0], amounts[0]
	for _, a := range amounts[1:] {
		if a < min {
			min = a
		}
		if a > max {
			max = a
		}
	}
	if min == max {
		return 0, max, currency
	}
	return min, max, currency
}
