package sentiment

import (
	"fmt"
	"regexp"
	"strings"

	"TradeDesk/internal/domain/models"
)

var (
	positiveKeywords = NewKeywordSet("surge", "soar", "record high", "all-time high", "bullish", "rally", "partnership", "adoption", "gain")
	negativeKeywords = NewKeywordSet("plunge", "collapse", "lawsuit", "ban", "hack", "bearish", "drop", "loss", "decline")
)

// KeywordSet matches whole words, allowing common inflections, so "ban"
// hits "banned" but not "bank" or "urban".
type KeywordSet struct {
	re *regexp.Regexp
}

func NewKeywordSet(words ...string) KeywordSet {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(w))
	}
	return KeywordSet{re: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)(?:s|es|d|ed|ing|ned|ped|ged)?\b`)}
}

// Match reports whether text contains one of the words. text is lowercased.
func (k KeywordSet) Match(text string) bool {
	return k.re != nil && k.re.MatchString(strings.ToLower(text))
}

// MatchKeywords classifies obvious headlines. ok is false when nothing matched.
func MatchKeywords(headline string) (sig models.Signal, reason string, ok bool) {
	if positiveKeywords.Match(headline) {
		return models.SignalBuy, fmt.Sprintf("Keyword match (positive): %s", headline), true
	}
	if negativeKeywords.Match(headline) {
		return models.SignalSell, fmt.Sprintf("Keyword match (negative): %s", headline), true
	}
	return models.SignalHold, "", false
}

// matchBatch returns the first SELL hit, else the first BUY hit.
func matchBatch(headlines []string) (models.Signal, string, bool) {
	var buyReason string
	for _, h := range headlines {
		sig, reason, ok := MatchKeywords(h)
		if !ok {
			continue
		}
		if sig == models.SignalSell {
			return sig, reason, true
		}
		if buyReason == "" {
			buyReason = reason
		}
	}
	if buyReason != "" {
		return models.SignalBuy, buyReason, true
	}
	return models.SignalHold, "", false
}
