// Package strutil holds small string helpers.
package strutil

import "github.com/samber/lo"

// DefaultRandomLength is used by RandomString for non-positive lengths.
const DefaultRandomLength = 8

// RandomString returns a random string of ASCII letters and digits.
// It is not suitable for secrets.
func RandomString(length int) string {
	if length <= 0 {
		length = DefaultRandomLength
	}
	return lo.RandomString(length, lo.AlphanumericCharset)
}
