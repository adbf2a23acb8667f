package intent

import (
	"sort"
	"strings"
	"unicode"
)

// Context carries the slice of prior session state the classifier is allowed
// to see. The zero value means "no prior conversation".
type Context struct {
	LastIntent      Intent
	PendingFollowup Intent
	TurnCount       int
}

// Result is the outcome of classifying one utterance. Secondary holds the
// runner-up intents when the utterance is genuinely ambiguous; Scores keeps
// the raw per-intent signal so the planner can re-rank without re-scoring.
type Result struct {
	Intent     Intent
	Confidence float64
	Secondary  []Intent
	Scores     map[Intent]float64
}

const (
	keywordWeight    = 2.0
	phraseWeight     = 2.0
	arithmeticWeight = 3.0
	quantityWeight   = 2.0
	contextBias      = 2.0

	// significantScore is the floor above which an intent is considered a
	// real candidate; dominanceMargin is how far ahead the winner must be
	// before runner-ups are dropped instead of reported as secondary.
	significantScore = 2.0
	dominanceMargin  = 2.0
)

type keywordRule struct {
	intent Intent
	words  []string
	// phrases match against the whole normalized utterance, so multi-word
	// cues like "how are you" score even when tokenization splits them.
	phrases []string
}

// Classifier scores utterances against fixed keyword tables plus structural
// and context layers. It is deterministic: same utterance and context, same
// result.
type Classifier struct {
	rules []keywordRule
}

func NewClassifier() *Classifier {
	return &Classifier{rules: defaultRules()}
}

func defaultRules() []keywordRule {
	return []keywordRule{
		{
			intent: Greeting,
			words:  []string{"hi", "hello", "hey", "morning", "afternoon", "evening", "greetings"},
			phrases: []string{
				"good morning", "good afternoon", "good evening",
			},
		},
		{
			intent:  Goodbye,
			words:   []string{"bye", "goodbye", "farewell"},
			phrases: []string{"see you", "good night", "talk later"},
		},
		{
			intent:  Help,
			words:   []string{"help", "assist", "guide"},
			phrases: []string{"what can you do", "how do you work", "what do you offer"},
		},
		{
			intent: ProductSearch,
			words: []string{
				"tumbler", "tumblers", "cup", "cups", "mug", "mugs", "bottle",
				"bottles", "flask", "drinkware", "straw", "lid", "sleeve",
				"merchandise", "merch", "product", "products", "collection",
			},
			phrases: []string{"do you sell", "do you have any"},
		},
		{
			intent: OutletSearch,
			words: []string{
				"outlet", "outlets", "store", "stores", "branch", "branches",
				"location", "locations", "shop", "shops", "cafe", "address",
				"near", "nearby", "nearest", "drive-thru", "drive-through",
				"dine-in", "delivery", "pickup", "takeaway", "wifi",
				"service", "services",
			},
			phrases: []string{"opening hours", "open now", "where is", "where are"},
		},
		{
			intent: Calculation,
			words: []string{
				"calculate", "compute", "total", "sum", "plus", "minus",
				"times", "divided", "math",
			},
			phrases: []string{"how much is", "what is the total"},
		},
		{
			intent:  GeneralChat,
			words:   []string{"coffee", "latte", "espresso", "matcha", "thanks", "thank"},
			phrases: []string{"how are you", "tell me about", "what's up", "whats up"},
		},
	}
}

// topicChangeCues are strong signals that a pending follow-up should be
// abandoned in favour of fresh classification.
var topicChangeCues = []string{"instead", "actually", "never mind", "nevermind", "forget that", "new question"}

// Classify maps one utterance plus recent context onto the closed intent set.
// It never fails: empty or unrecognizable input yields Unknown with low
// confidence.
func (c *Classifier) Classify(utterance string, ctx Context) Result {
	normalized := normalize(utterance)
	tokens := tokenize(normalized)

	scores := make(map[Intent]float64, len(All))
	if len(tokens) == 0 {
		return Result{Intent: Unknown, Confidence: 0, Scores: scores}
	}

	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}

	// Lexical layer: every matched keyword or phrase adds weight to its
	// intent. Matching is set-based, so repeating a word does not inflate
	// the score.
	for _, rule := range c.rules {
		for _, w := range rule.words {
			if _, ok := tokenSet[w]; ok {
				scores[rule.intent] += keywordWeight
			}
		}
		for _, p := range rule.phrases {
			if strings.Contains(normalized, p) {
				scores[rule.intent] += phraseWeight
			}
		}
	}

	// Structural layer.
	if HasArithmeticExpression(normalized) {
		scores[Calculation] += arithmeticWeight
	}
	if hasQuantityPhrase(normalized) && scores[OutletSearch] > 0 {
		scores[OutletSearch] += quantityWeight
	}

	// Context layer: a pending follow-up biases toward its own intent
	// unless the new utterance carries a strong signal for something else.
	if ctx.PendingFollowup != "" && ctx.PendingFollowup.Valid() && !hasStrongSignal(normalized, scores, ctx.PendingFollowup) {
		scores[ctx.PendingFollowup] += contextBias
	}

	winner, total := pickWinner(scores)
	if winner == "" || scores[winner] <= 0 {
		// Words were present but nothing matched: small-talk, not an error.
		return Result{Intent: GeneralChat, Confidence: 0.25, Scores: scores}
	}

	res := Result{
		Intent:     winner,
		Confidence: scores[winner] / total,
		Scores:     scores,
	}

	// Multi-intent flag: report every significant runner-up the winner does
	// not dominate, so the planner can disambiguate instead of us silently
	// discarding it.
	for in, sc := range scores {
		if in == winner {
			continue
		}
		if sc >= significantScore && scores[winner]-sc < dominanceMargin {
			res.Secondary = append(res.Secondary, in)
		}
	}
	sort.Slice(res.Secondary, func(i, j int) bool {
		a, b := res.Secondary[i], res.Secondary[j]
		if scores[a] != scores[b] {
			return scores[a] > scores[b]
		}
		return a.Priority() > b.Priority()
	})

	return res
}

// pickWinner returns the highest-scoring intent and the total signal weight.
// Ties break on the fixed priority order, never on map iteration order.
func pickWinner(scores map[Intent]float64) (Intent, float64) {
	var winner Intent
	var best, total float64
	for _, in := range All {
		sc := scores[in]
		total += sc
		if sc <= 0 {
			continue
		}
		if winner == "" || sc > best || (sc == best && in.Priority() > winner.Priority()) {
			winner = in
			best = sc
		}
	}
	if total == 0 {
		total = 1
	}
	return winner, total
}

// hasStrongSignal reports whether the utterance clearly asks for something
// other than the pending intent: a greeting/goodbye, an explicit topic-change
// cue, or a significant score for a different intent.
func hasStrongSignal(normalized string, scores map[Intent]float64, pending Intent) bool {
	for _, cue := range topicChangeCues {
		if strings.Contains(normalized, cue) {
			return true
		}
	}
	for in, sc := range scores {
		if in == pending {
			continue
		}
		if sc >= significantScore {
			return true
		}
	}
	return false
}

// HasArithmeticExpression reports whether s contains a recognizable
// arithmetic shape: at least one digit and at least one operator. A hyphen
// counts as a subtraction operator only when surrounded by whitespace on
// both sides, so compound words like "drive-thru" never register.
func HasArithmeticExpression(s string) bool {
	hasDigit := false
	hasOperator := false
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case r == '+' || r == '*' || r == '/' || r == '=':
			hasOperator = true
		case r == '-':
			if i > 0 && i < len(runes)-1 && unicode.IsSpace(runes[i-1]) && unicode.IsSpace(runes[i+1]) {
				hasOperator = true
			}
		}
	}
	if hasDigit && hasOperator {
		return true
	}
	if !hasDigit {
		return false
	}
	for _, word := range []string{" plus ", " minus ", " times ", " divided by "} {
		if strings.Contains(s, word) {
			return true
		}
	}
	return false
}

func hasQuantityPhrase(s string) bool {
	for _, p := range []string{"how many", "number of", "count of"} {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// tokenize splits on anything that is not a letter, digit or intra-word
// hyphen, so "drive-thru" stays one token.
func tokenize(s string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, strings.Trim(b.String(), "-"))
			b.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	out := tokens[:0]
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
