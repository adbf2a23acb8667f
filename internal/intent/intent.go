package intent

// Intent is the closed set of conversation intents. Every reply that leaves
// the orchestrator carries exactly one of these labels; downstream code must
// never invent new ones.
type Intent string

const (
	ProductSearch Intent = "product_search"
	OutletSearch  Intent = "outlet_search"
	Calculation   Intent = "calculation"
	GeneralChat   Intent = "general_chat"
	Greeting      Intent = "greeting"
	Goodbye       Intent = "goodbye"
	Help          Intent = "help"
	Unknown       Intent = "unknown"
)

// All lists every member of the closed set, in priority order (highest first).
var All = []Intent{
	Greeting,
	Goodbye,
	Help,
	Calculation,
	ProductSearch,
	OutletSearch,
	GeneralChat,
	Unknown,
}

var priorityRank = map[Intent]int{
	Greeting:      7,
	Goodbye:       6,
	Help:          5,
	Calculation:   4,
	ProductSearch: 3,
	OutletSearch:  2,
	GeneralChat:   1,
	Unknown:       0,
}

// Valid reports whether i is a member of the closed intent set.
func (i Intent) Valid() bool {
	_, ok := priorityRank[i]
	return ok
}

// Priority returns the fixed tie-break rank of i. Higher wins.
// Unknown (and any value outside the set) ranks lowest.
func (i Intent) Priority() int {
	return priorityRank[i]
}

// Normalize maps an arbitrary label into the closed set. Anything outside
// the set collapses to Unknown, never passes through as-is.
func Normalize(label string) Intent {
	i := Intent(label)
	if i.Valid() {
		return i
	}
	return Unknown
}
