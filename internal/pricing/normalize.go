// Package pricing turns loosely formatted catalog prices into whole currency amounts.
package pricing

import (
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Normalize extracts the amount from a raw price such as "₹1,999", "1299" or 1299.
//
// Every rune that is not an ASCII digit is dropped and the remaining run is read as a
// base-10 integer. A value with no digits at all normalizes to zero so a malformed price
// never blocks a purchase. Amounts too large for int64 saturate at math.MaxInt64.
func Normalize(raw any) int64 {
	text, err := cast.ToStringE(raw)
	if err != nil {
		return 0
	}

	var amount int64
	for _, r := range text {
		if r < '0' || r > '9' {
			continue
		}
		digit := int64(r - '0')
		if amount > (math.MaxInt64-digit)/10 {
			return math.MaxInt64
		}
		amount = amount*10 + digit
	}

	return amount
}

// Digits returns only the ASCII digits of a raw price, in order
func Digits(raw any) string {
	text, err := cast.ToStringE(raw)
	if err != nil {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if r < '0' || r > '9' {
			return -1
		}
		return r
	}, text)
}
