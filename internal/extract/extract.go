// Package extract pulls structured parameters out of a raw utterance.
// Extraction is a pure function of the utterance and its classification:
// rules are intent-specific, vocabularies are fixed, and unmatched tokens
// are ignored rather than guessed.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/intent"
)

// Parameters is the structured view of one utterance. All fields are
// optional; an empty field for the winning intent is the planner's cue to
// ask a follow-up instead of dispatching.
type Parameters struct {
	ProductTerms     []string
	City             string
	Service          string
	AmountExpression string
	PromoCode        string
	// CurrencyMarker records the currency the user wrote (e.g. "RM") so the
	// composer can echo it back. Empty when the input carried none.
	CurrencyMarker string
}

// HasProductTerms reports whether a product query can be dispatched.
func (p Parameters) HasProductTerms() bool { return len(p.ProductTerms) > 0 }

// HasOutletFilter reports whether at least one outlet filter was found.
func (p Parameters) HasOutletFilter() bool { return p.City != "" || p.Service != "" }

// HasExpression reports whether an arithmetic expression was found.
func (p Parameters) HasExpression() bool { return p.AmountExpression != "" }

// cityVocabulary maps normalized aliases onto canonical city names.
var cityVocabulary = map[string]string{
	"kuala lumpur":  "Kuala Lumpur",
	"kl":            "Kuala Lumpur",
	"petaling jaya": "Petaling Jaya",
	"pj":            "Petaling Jaya",
	"shah alam":     "Shah Alam",
	"subang jaya":   "Subang Jaya",
	"subang":        "Subang Jaya",
	"klang":         "Klang",
	"puchong":       "Puchong",
	"cyberjaya":     "Cyberjaya",
	"putrajaya":     "Putrajaya",
	"ampang":        "Ampang",
	"cheras":        "Cheras",
	"bangsar":       "Bangsar",
	"damansara":     "Damansara",
	"selangor":      "Selangor",
}

// serviceVocabulary maps normalized aliases onto canonical service names.
var serviceVocabulary = map[string]string{
	"drive-thru":    "drive-thru",
	"drive thru":    "drive-thru",
	"drive-through": "drive-thru",
	"drive through": "drive-thru",
	"dine-in":       "dine-in",
	"dine in":       "dine-in",
	"delivery":      "delivery",
	"pickup":        "pickup",
	"pick up":       "pickup",
	"takeaway":      "pickup",
	"wifi":          "wifi",
	"24-hour":       "24-hour",
	"24 hours":      "24-hour",
	"24-hours":      "24-hour",
}

var promoCodePattern = regexp.MustCompile(`\b[A-Z]{2,}[0-9]{1,4}\b`)

var currencyPattern = regexp.MustCompile(`(?i)\b(rm|myr)\s*\d`)

// productStopwords are dropped before the remaining tokens become product
// search terms.
var productStopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "any": {}, "some": {}, "do": {}, "does": {},
	"you": {}, "your": {}, "have": {}, "sell": {}, "carry": {}, "stock": {},
	"got": {}, "is": {}, "are": {}, "there": {}, "i": {}, "want": {},
	"need": {}, "looking": {}, "for": {}, "show": {}, "me": {}, "find": {},
	"what": {}, "which": {}, "where": {}, "can": {}, "get": {}, "buy": {},
	"please": {}, "in": {}, "of": {}, "and": {}, "or": {}, "with": {},
	"product": {}, "products": {}, "merchandise": {}, "merch": {},
	"collection": {}, "available": {}, "price": {}, "much": {}, "how": {},
	"about": {}, "tell": {},
}

// Extract returns the parameters relevant to the classified intent. Rules
// only fire for the intents that need them: amount expressions are only
// attempted for calculation, product terms only for product search, and so
// on, counting secondary intents as live candidates.
func Extract(utterance string, res intent.Result) Parameters {
	var p Parameters
	normalized := strings.ToLower(strings.TrimSpace(utterance))
	if normalized == "" {
		return p
	}

	if currencyPattern.MatchString(utterance) {
		p.CurrencyMarker = "RM"
	}
	for _, code := range promoCodePattern.FindAllString(utterance, -1) {
		// Currency-qualified amounts like RM105 are not promo codes.
		if strings.HasPrefix(code, "RM") || strings.HasPrefix(code, "MYR") {
			continue
		}
		p.PromoCode = code
		break
	}

	if wants(res, intent.OutletSearch) {
		p.City = matchVocabulary(normalized, cityVocabulary)
		p.Service = matchVocabulary(normalized, serviceVocabulary)
	}
	if wants(res, intent.Calculation) {
		p.AmountExpression = extractExpression(normalized)
	}
	if wants(res, intent.ProductSearch) {
		p.ProductTerms = extractProductTerms(normalized)
	}
	return p
}

func wants(res intent.Result, target intent.Intent) bool {
	if res.Intent == target {
		return true
	}
	for _, in := range res.Secondary {
		if in == target {
			return true
		}
	}
	return false
}

// matchVocabulary returns the canonical name for the longest alias found in
// the utterance. Longer aliases win so "kuala lumpur" is preferred over a
// stray "kl" token elsewhere.
func matchVocabulary(normalized string, vocab map[string]string) string {
	tokens := fields(normalized)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}

	best := ""
	bestLen := 0
	for alias, canonical := range vocab {
		matched := false
		if strings.ContainsRune(alias, ' ') || strings.ContainsRune(alias, '-') {
			matched = strings.Contains(normalized, alias)
		} else {
			_, matched = tokenSet[alias]
		}
		if matched && len(alias) > bestLen {
			best = canonical
			bestLen = len(alias)
		}
	}
	return best
}

var wordOperators = strings.NewReplacer(
	" plus ", " + ",
	" minus ", " - ",
	" times ", " * ",
	" divided by ", " / ",
	" x ", " * ",
)

// extractExpression pulls the arithmetic substring out of an utterance,
// stripping currency markers and spoken operators along the way. Returns ""
// when no digit-bearing expression is present.
func extractExpression(normalized string) string {
	s := wordOperators.Replace(" " + normalized + " ")
	// Currency markers glue to the numbers they qualify; drop them from the
	// expression itself ("rm105 + rm55" -> "105 + 55").
	s = regexp.MustCompile(`(?i)\b(rm|myr)\s*`).ReplaceAllString(s, "")

	// Longest run of expression characters containing at least one digit.
	isExprChar := func(r rune) bool {
		return unicode.IsDigit(r) || strings.ContainsRune("+-*/(). ", r)
	}
	best := ""
	runes := []rune(s)
	for i := 0; i < len(runes); {
		if !isExprChar(runes[i]) {
			i++
			continue
		}
		j := i
		hasDigit := false
		for j < len(runes) && isExprChar(runes[j]) {
			if unicode.IsDigit(runes[j]) {
				hasDigit = true
			}
			j++
		}
		if hasDigit {
			candidate := strings.TrimSpace(string(runes[i:j]))
			candidate = strings.Trim(candidate, "=.")
			candidate = strings.TrimSpace(candidate)
			if len(candidate) > len(best) {
				best = candidate
			}
		}
		i = j
	}
	if !strings.ContainsAny(best, "0123456789") {
		return ""
	}
	return best
}

func extractProductTerms(normalized string) []string {
	var terms []string
	for _, t := range fields(normalized) {
		if _, skip := productStopwords[t]; skip {
			continue
		}
		if !containsLetter(t) {
			continue
		}
		terms = append(terms, t)
	}
	return terms
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// fields splits a normalized utterance into tokens, keeping intra-word
// hyphens so service names like "drive-thru" survive as one token.
func fields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}
