// Package planner turns a classification plus extracted parameters into a
// single concrete action: dispatch to a tool, ask a follow-up question, or
// answer directly. It is a small explicit state machine per intent.
package planner

import (
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/extract"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/intent"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/tools"
)

// ActionType enumerates what the orchestrator should do next.
type ActionType string

const (
	ActionAskFollowup    ActionType = "ask_followup"
	ActionCallTool       ActionType = "call_tool"
	ActionAnswerDirectly ActionType = "answer_directly"
)

// ToolName identifies the dispatch target for ActionCallTool plans.
type ToolName string

const (
	ToolProductSearch ToolName = "product_search"
	ToolOutletSearch  ToolName = "outlet_search"
	ToolCalculator    ToolName = "calculator"
)

// ToolArgs carries the resolved arguments for a tool call. Only the fields
// relevant to the planned tool are set.
type ToolArgs struct {
	Query      string
	Filters    tools.OutletFilters
	Expression string
}

// Plan is the planner's decision for one turn.
type Plan struct {
	Action       ActionType
	Tool         ToolName
	Args         ToolArgs
	TargetIntent intent.Intent
	// Followup is the intent to park in session state when the plan asks a
	// clarifying question.
	Followup intent.Intent
	// FirstTurn lets the composer vary first-turn vs continuing phrasing.
	FirstTurn bool
}

// SessionView is the read-only slice of session state the planner consults.
type SessionView struct {
	HistoryLen int
}

// Build resolves multi-intent ambiguity and plans for exactly one intent.
// Ambiguity never degrades into an unfiltered "show everything" action: one
// winner is chosen and planned for like any unambiguous turn.
func Build(res intent.Result, params extract.Parameters, sess SessionView) Plan {
	target := resolveIntent(res)
	plan := build(target, params)
	plan.FirstTurn = sess.HistoryLen == 0
	return plan
}

func build(target intent.Intent, params extract.Parameters) Plan {
	switch target {
	case intent.ProductSearch:
		if params.HasProductTerms() {
			return Plan{
				Action:       ActionCallTool,
				Tool:         ToolProductSearch,
				Args:         ToolArgs{Query: joinTerms(params.ProductTerms)},
				TargetIntent: target,
			}
		}
		return askFollowup(target)

	case intent.OutletSearch:
		if params.HasOutletFilter() {
			return Plan{
				Action: ActionCallTool,
				Tool:   ToolOutletSearch,
				Args: ToolArgs{Filters: tools.OutletFilters{
					City:    params.City,
					Service: params.Service,
				}},
				TargetIntent: target,
			}
		}
		return askFollowup(target)

	case intent.Calculation:
		if params.HasExpression() {
			return Plan{
				Action:       ActionCallTool,
				Tool:         ToolCalculator,
				Args:         ToolArgs{Expression: params.AmountExpression},
				TargetIntent: target,
			}
		}
		return askFollowup(target)

	case intent.Greeting, intent.Goodbye, intent.Help, intent.GeneralChat:
		return Plan{Action: ActionAnswerDirectly, TargetIntent: target}

	default:
		// Unknown: clarify without consuming or parking any follow-up.
		return Plan{Action: ActionAnswerDirectly, TargetIntent: intent.Unknown}
	}
}

func askFollowup(target intent.Intent) Plan {
	return Plan{Action: ActionAskFollowup, TargetIntent: target, Followup: target}
}

// resolveIntent picks one winner from {primary, secondary...} by raw score,
// breaking ties with the fixed intent priority order.
func resolveIntent(res intent.Result) intent.Intent {
	winner := res.Intent
	if !winner.Valid() {
		winner = intent.Unknown
	}
	for _, candidate := range res.Secondary {
		if !candidate.Valid() {
			continue
		}
		cs, ws := res.Scores[candidate], res.Scores[winner]
		if cs > ws || (cs == ws && candidate.Priority() > winner.Priority()) {
			winner = candidate
		}
	}
	return winner
}

func joinTerms(terms []string) string {
	out := ""
	for i, t := range terms {
		if i > 0 {
			out += " "
		}
		out += t
	}
	return out
}
