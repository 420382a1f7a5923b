package resolver

import "strings"

type keywordHint struct {
	keyword string
	value   string
}

// accountTypeKeywords is priority-ordered; the first keyword found in the
// utterance wins, keeping hint inference deterministic.
var accountTypeKeywords = []keywordHint{
	{"savings", "savings"},
	{"saving", "savings"},
	{"checking", "checking"},
	{"current", "checking"},
	{"credit", "credit"},
	{"salary", "checking"},
}

// billerCategoryKeywords maps utterance keywords to biller categories used to
// pre-fill bill-payment slots. Priority-ordered, first match wins.
var billerCategoryKeywords = []keywordHint{
	{"electricity", "utilities"},
	{"electric", "utilities"},
	{"power", "utilities"},
	{"water", "utilities"},
	{"gas", "utilities"},
	{"internet", "telecom"},
	{"broadband", "telecom"},
	{"phone", "telecom"},
	{"mobile", "telecom"},
	{"rent", "housing"},
	{"mortgage", "housing"},
	{"insurance", "insurance"},
}

// InferAccountTypeHint returns the account type suggested by the utterance,
// or "" when no keyword matches.
func InferAccountTypeHint(text string) string {
	lower := strings.ToLower(text)
	for _, h := range accountTypeKeywords {
		if strings.Contains(lower, h.keyword) {
			return h.value
		}
	}
	return ""
}

// InferBillerCategoryHint returns the biller category suggested by the
// utterance, or "" when no keyword matches.
func InferBillerCategoryHint(text string) string {
	lower := strings.ToLower(text)
	for _, h := range billerCategoryKeywords {
		if strings.Contains(lower, h.keyword) {
			return h.value
		}
	}
	return ""
}
