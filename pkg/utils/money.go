package utils

import "fmt"

// Monetary amounts are carried as integer cents (piasters) everywhere to
// keep wallet arithmetic exact. Formatting to EGP happens only at the edge,
// in notification text and API messages.

// FormatEGP renders an amount of cents as a plain "123.45" EGP string.
func FormatEGP(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
