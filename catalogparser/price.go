package catalogparser

import (
	"regexp"
	"strconv"
	"strings"
)

// First number in the display string, e.g. "Rs. 6.75/tablet", "Rs.1,250/strip".
var priceRegex = regexp.MustCompile(`(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d+))?`)

// ParsePrice extracts the unit price and the dispensing unit from a display
// string. ok is false for "N/A", empty strings and text without a number.
func ParsePrice(text string) (price float64, unit string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, "", false
	}

	m := priceRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, "", false
	}

	number := strings.ReplaceAll(m[1], ",", "")
	if m[2] != "" {
		number += "." + m[2]
	}
	price, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, "", false
	}

	if idx := strings.LastIndex(text, "/"); idx != -1 {
		unit = strings.ToLower(strings.TrimSpace(text[idx+1:]))
	}
	return price, unit, true
}
