package extract

import (
	"regexp"
	"strings"
)

// MaxMerchantLen is the maximum length, in characters, of a display merchant.
const MaxMerchantLen = 50

var (
	merchantJunk   = regexp.MustCompile(`[^\p{L}\p{N}\s&.'-]`)
	merchantSpaces = regexp.MustCompile(`\s+`)
)

// NormalizeMerchant returns the display form of a merchant name: characters
// outside letters, digits, whitespace and & . ' - are dropped, whitespace runs
// collapse to one space and the result is trimmed and capped at MaxMerchantLen.
// It is idempotent.
func NormalizeMerchant(raw string) string {
	s := merchantJunk.ReplaceAllString(raw, "")
	s = strings.TrimSpace(merchantSpaces.ReplaceAllString(s, " "))

	if r := []rune(s); len(r) > MaxMerchantLen {
		// truncation can expose a trailing space
		s = strings.TrimSpace(string(r[:MaxMerchantLen]))
	}
	return s
}

// MerchantKey returns the category memory key for a display merchant.
func MerchantKey(merchant string) string {
	return strings.ToLower(strings.TrimSpace(merchant))
}
