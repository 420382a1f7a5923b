package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tellerflow/tellerflow/pkg/domain"
)

// implicitAmountPatterns is priority-ordered: the first matching entry wins.
var implicitAmountPatterns = []struct {
	re    *regexp.Regexp
	token domain.ImplicitAmount
}{
	{regexp.MustCompile(`\b(?:send |transfer |pay )?all\b|\beverything\b|\bentire\b`), domain.AmountAll},
	{regexp.MustCompile(`\bmax(?:imum)?\b`), domain.AmountMax},
	{regexp.MustCompile(`\bhalf\b`), domain.AmountHalf},
	{regexp.MustCompile(`\bremaining\b|\bwhat(?:'s| is) left\b|\brest of\b`), domain.AmountRemaining},
}

// DetectImplicitAmount scans the utterance for a symbolic amount request.
// Returns domain.AmountNone when no pattern matches.
func DetectImplicitAmount(text string) domain.ImplicitAmount {
	lower := strings.ToLower(text)
	for _, p := range implicitAmountPatterns {
		if p.re.MatchString(lower) {
			return p.token
		}
	}
	return domain.AmountNone
}

// negationPatterns is priority-ordered; capture group 1 (if any) is the target.
var negationPatterns = []struct {
	re    *regexp.Regexp
	scope domain.NegationScope
}{
	{regexp.MustCompile(`don'?t use (?:my |the )?([a-z]+)`), domain.ScopeAccountType},
	{regexp.MustCompile(`not from (?:my |the )?([a-z]+)`), domain.ScopeAccountType},
	{regexp.MustCompile(`\bexclud(?:e|ing) (?:my |the )?([a-z]+)`), domain.ScopeAccountType},
	{regexp.MustCompile(`\bexcept (?:my |the |for )?([a-z]+)`), domain.ScopeAccountType},
	{regexp.MustCompile(`\bnot \$?([0-9][0-9,.]*)`), domain.ScopeAmount},
	{regexp.MustCompile(`\bless than \$?([0-9][0-9,.]*)`), domain.ScopeAmount},
	{regexp.MustCompile(`\bno more than \$?([0-9][0-9,.]*)`), domain.ScopeAmount},
	{regexp.MustCompile(`don'?t (transfer|send|pay|create|open|close)\b`), domain.ScopeAction},
	{regexp.MustCompile(`\b(?:not|no|never)\b`), domain.ScopeBroad},
}

// DetectNegation scans the utterance for a negation constraint.
// First match wins; no scoring.
func DetectNegation(text string) domain.Negation {
	lower := strings.ToLower(text)
	for _, p := range negationPatterns {
		m := p.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		neg := domain.Negation{Present: true, Scope: p.scope}
		if len(m) > 1 {
			neg.Target = strings.TrimSpace(m[1])
		}
		return neg
	}
	return domain.Negation{}
}

// negationCompatibility is the static intent -> permitted-scopes table.
// Intents absent from the table permit no negation at all.
var negationCompatibility = map[string][]domain.NegationScope{
	domain.IntentTransferMoney:      {domain.ScopeAccountType},
	domain.IntentPayBill:            {domain.ScopeAccountType},
	domain.IntentCheckBalance:       {domain.ScopeAccountType},
	domain.IntentTransactionHistory: {domain.ScopeAccountType},
	// create_account deliberately permits none.
}

// ValidateNegationForIntent checks whether a detected negation makes sense for
// the active intent. A non-present negation is always valid.
func ValidateNegationForIntent(intent string, neg domain.Negation) (bool, string) {
	if !neg.Present {
		return true, ""
	}
	allowed, ok := negationCompatibility[intent]
	if !ok {
		return false, fmt.Sprintf("negation is not supported for %s", intent)
	}
	for _, scope := range allowed {
		if scope == neg.Scope {
			return true, ""
		}
	}
	return false, fmt.Sprintf("%s negation is not supported for %s", neg.Scope, intent)
}

// ResolveImplicitAmount converts a symbolic token into a number given a
// reference value (e.g. the account balance). The boolean reports whether the
// token was resolved; AmountNone yields (0, false).
func ResolveImplicitAmount(token domain.ImplicitAmount, reference float64) (float64, bool) {
	switch token {
	case domain.AmountAll, domain.AmountRemaining, domain.AmountMax:
		return reference, true
	case domain.AmountHalf:
		return reference / 2, true
	default:
		return 0, false
	}
}
