package extract

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

type institution struct {
	token string
	name  string
}

// institutions is ordered; the earliest entry present in a sender wins.
var institutions = []institution{
	{"HDFC", "HDFC Bank"},
	{"ICICI", "ICICI Bank"},
	{"SBI", "State Bank of India"},
	{"AXIS", "Axis Bank"},
	{"KOTAK", "Kotak Bank"},
	{"YES", "Yes Bank"},
	{"INDUS", "IndusInd Bank"},
	{"PAYTM", "Paytm"},
	{"PHONEPE", "PhonePe"},
	{"GPAY", "Google Pay"},
	{"AMAZON", "Amazon Pay"},
	{"PNB", "Punjab National Bank"},
	{"CANARA", "Canara Bank"},
	{"BOB", "Bank of Baroda"},
	{"UNION", "Union Bank"},
}

var senderMatcher = newSenderMatcher()

func newSenderMatcher() *ahocorasick.Matcher {
	tokens := make([]string, len(institutions))
	for i, inst := range institutions {
		tokens[i] = inst.token
	}
	return ahocorasick.NewStringMatcher(tokens)
}

// ResolveInstitution maps an SMS sender ID such as "VM-HDFCBK" to a display
// name. Unknown senders are returned unchanged.
func ResolveInstitution(sender string) string {
	hits := senderMatcher.MatchThreadSafe([]byte(strings.ToUpper(sender)))
	if len(hits) == 0 {
		return sender
	}

	first := hits[0]
	for _, idx := range hits[1:] {
		if idx < first {
			first = idx
		}
	}
	return institutions[first].name
}
