package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/txnwatch/pkg/api"
)

// ErrExtractionFailed is returned when a message has no usable amount.
var ErrExtractionFailed = errors.New("extraction failed")

// proximityWindow is how far past the account reference, in characters,
// a debited/credited keyword may appear and still decide the kind.
const proximityWindow = 50

var maxAmount = decimal.NewFromInt(10_000_000)

var accountPattern = regexp.MustCompile(`(?i)(?:A/c|A/C|Acct|account|card|a/c no)\s*(?:no\.?|number)?\s*[Xx*]*([0-9]{4})`)

var (
	debitedPattern  = regexp.MustCompile(`(?i)debited`)
	creditedPattern = regexp.MustCompile(`(?i)credited`)
)

var (
	debitKeywords  = []string{"spent", "paid", "withdrawn"}
	creditKeywords = []string{"received", "deposited"}
)

// amountPatterns are tried in order; only the first match of each is examined.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:INR|Rs\.?|₹)\s*([0-9,]+(?:\.[0-9]{1,2})?)`),
	regexp.MustCompile(`(?i)(?:debited|credited|paid|received|withdrawn|deposited)\s+(?:with\s+)?(?:INR|Rs\.?|₹)?\s*([0-9,]+(?:\.[0-9]{1,2})?)`),
	regexp.MustCompile(`(?i)(?:amount|amt)\s*(?:of)?\s*(?:INR|Rs\.?|₹)?\s*([0-9,]+(?:\.[0-9]{1,2})?)`),
}

var merchantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)towards\s+(.+?)\.`),
	regexp.MustCompile(`(?i)(?:to|at)\s+([A-Z][A-Za-z\s&.'-]{3,40})(?:\s+on|\s+via|\.|,)`),
	regexp.MustCompile(`(?i);\s*([A-Z][A-Za-z\s]{2,30})\s+credited`),
	regexp.MustCompile(`(?i)(?:debited|paid)\s+(?:to|for)\s+([A-Z][A-Za-z\s]{2,30})(?:\s|;|\.)`),
	regexp.MustCompile(`(?i)(?:VPA|UPI|UPI ID)\s*[:;]?\s*([A-Za-z0-9@.-]+)`),
}

var balancePattern = regexp.MustCompile(`(?i)(?:balance|bal|avbl bal|available balance|avl bal|avail bal)(?:\s+is)?\s*(?:INR|Rs\.?|₹)?\s*([0-9,]+(?:\.[0-9]{1,2})?)`)

// Extract builds a Transaction from a message body. Only the amount is
// mandatory; every other field falls back to a sentinel.
func Extract(sender, body string, observedAt time.Time) (*api.Transaction, error) {
	amount, ok := extractAmount(body)
	if !ok {
		return nil, fmt.Errorf("%w: no amount in message from %q", ErrExtractionFailed, sender)
	}

	account, accountIdx := extractAccount(body)
	merchantRaw := extractMerchantRaw(body)
	merchant := NormalizeMerchant(merchantRaw)

	return &api.Transaction{
		Kind:          detectKind(body, accountIdx),
		Amount:        amount,
		Institution:   ResolveInstitution(sender),
		AccountSuffix: account,
		MerchantRaw:   merchantRaw,
		Merchant:      merchant,
		MerchantKey:   MerchantKey(merchant),
		BalanceAfter:  extractBalance(body),
		ObservedAt:    observedAt,
	}, nil
}

// extractAccount returns the 4-digit suffix and the character offset of the
// account reference, or the sentinel and -1.
func extractAccount(body string) (string, int) {
	m := accountPattern.FindStringSubmatchIndex(body)
	if m == nil {
		return api.UnknownAccount, -1
	}
	return body[m[2]:m[3]], runeOffset(body, m[0])
}

// detectKind prefers a debited/credited keyword close to the account reference
// and falls back to looser keyword families.
func detectKind(body string, accountIdx int) api.Kind {
	within := func(idx int) bool {
		return idx >= 0 && (accountIdx < 0 || idx <= accountIdx+proximityWindow)
	}

	if within(firstIndex(debitedPattern, body)) {
		return api.KindDebit
	}
	if within(firstIndex(creditedPattern, body)) {
		return api.KindCredit
	}

	lower := strings.ToLower(body)
	switch {
	case containsAny(lower, debitKeywords):
		return api.KindDebit
	case containsAny(lower, creditKeywords):
		return api.KindCredit
	default:
		return api.KindUnknown
	}
}

func extractAmount(body string) (string, bool) {
	for _, p := range amountPatterns {
		m := p.FindStringSubmatch(body)
		if m == nil {
			continue
		}

		amount := strings.ReplaceAll(m[1], ",", "")
		v, err := decimal.NewFromString(amount)
		if err != nil {
			continue
		}
		if v.IsPositive() && v.LessThan(maxAmount) {
			return amount, true
		}
	}
	return "", false
}

func extractMerchantRaw(body string) string {
	for _, p := range merchantPatterns {
		if m := p.FindStringSubmatch(body); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return api.UnknownMerchant
}

func extractBalance(body string) string {
	if m := balancePattern.FindStringSubmatch(body); m != nil {
		return strings.ReplaceAll(m[1], ",", "")
	}
	return api.UnknownBalance
}

func firstIndex(p *regexp.Regexp, s string) int {
	loc := p.FindStringIndex(s)
	if loc == nil {
		return -1
	}
	return runeOffset(s, loc[0])
}

func runeOffset(s string, byteIdx int) int {
	return utf8.RuneCountInString(s[:byteIdx])
}
