// Package extract turns bank and payment notification text into transactions.
//
// Every ingestion source shares this package: the classifier decides whether
// a message describes money movement, and the extractor pulls the amount,
// account, merchant, balance and institution out of it with ordered regex
// families. The heuristics are deliberately loose and are not tuned per bank.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// accountMarkers are lowercased; "a/c" covers both A/c and A/C.
var accountMarkers = []string{"a/c", "acct", "account", "card"}

var movementVerbs = []string{"debited", "credited"}

// otpLength is the body length below which a bare 4-6 digit number marks an OTP.
const otpLength = 100

// bareCode matches a whole single-line body holding a standalone 4-6 digit number.
var bareCode = regexp.MustCompile(`^.*\b\d{4,6}\b.*$`)

// IsTransaction reports whether body looks like a transaction alert.
//
// The body must mention an account or card and a debit or credit, and must not
// look like an OTP. The OTP check is coarse: any short body with a standalone
// 4-6 digit number is rejected, which also drops some genuine short alerts.
func IsTransaction(_, body string) bool {
	lower := strings.ToLower(body)
	if !containsAny(lower, accountMarkers) || !containsAny(lower, movementVerbs) {
		return false
	}
	return !looksLikeOTP(body, lower)
}

func looksLikeOTP(body, lower string) bool {
	if strings.Contains(lower, "otp") || strings.Contains(lower, "verification") {
		return true
	}
	return utf8.RuneCountInString(body) < otpLength && bareCode.MatchString(body)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
