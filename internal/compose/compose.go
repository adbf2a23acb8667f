// Package compose renders the final reply for a turn and carries the
// currency rule: a currency marker present in the input is echoed on the
// numeric result, and never invented when the input had none.
package compose

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/dispatch"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/extract"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/intent"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/planner"
)

// Reply is the orchestrator's single output type. Intent is always a member
// of the closed set.
type Reply struct {
	Text       string        `json:"reply_text"`
	Intent     intent.Intent `json:"intent_label"`
	Confidence float64       `json:"confidence"`
}

// followupPrompts asks for the one missing parameter per tool intent.
var followupPrompts = map[intent.Intent]string{
	intent.ProductSearch: "Sure, which drinkware are you looking for? A tumbler, mug, flask, or something else?",
	intent.OutletSearch:  "Happy to help you find an outlet. Which city are you in, or is there a service you need, like drive-thru?",
	intent.Calculation:   "I can work that out. What would you like me to calculate? For example: 25 + 15.",
}

var directAnswers = map[intent.Intent]string{
	intent.Greeting: "Hello! I can help you find ZUS drinkware, locate outlets, or work out prices. What can I do for you?",
	intent.Goodbye:  "Thanks for dropping by, see you next time!",
	intent.Help:     "Here's what I can do: search drinkware products, find outlets by city or service (like drive-thru), and calculate totals such as RM10 + RM5.",
	intent.Unknown:  "Sorry, I didn't quite catch that. You can ask me about drinkware, outlets, or a quick price calculation.",
}

const (
	generalChatFirstTurn = "I'm the ZUS assistant, best at drinkware, outlets and price sums, but happy to chat. What's on your mind?"
	generalChatContinued = "Good question! I'm best with drinkware, outlets and price sums. Anything there I can help with?"
)

// Compose builds the reply for a turn. toolResult is nil unless the plan
// dispatched a tool.
func Compose(plan planner.Plan, toolResult *dispatch.Result, params extract.Parameters, confidence float64) Reply {
	reply := Reply{Intent: plan.TargetIntent, Confidence: confidence}
	if !reply.Intent.Valid() {
		reply.Intent = intent.Unknown
	}

	switch plan.Action {
	case planner.ActionAskFollowup:
		reply.Text = followupPrompts[plan.TargetIntent]
		if reply.Text == "" {
			reply.Text = directAnswers[intent.Unknown]
		}
	case planner.ActionAnswerDirectly:
		reply.Text = directAnswer(plan)
	case planner.ActionCallTool:
		if toolResult == nil {
			res := dispatch.Result{Kind: dispatch.ErrInternal}
			toolResult = &res
		}
		if toolResult.OK {
			reply.Text = successText(plan, *toolResult, params)
		} else {
			reply.Text = recoveryText(plan, *toolResult)
		}
	default:
		reply.Text = directAnswers[intent.Unknown]
	}
	return reply
}

func directAnswer(plan planner.Plan) string {
	if plan.TargetIntent == intent.GeneralChat {
		if plan.FirstTurn {
			return generalChatFirstTurn
		}
		return generalChatContinued
	}
	if text, ok := directAnswers[plan.TargetIntent]; ok {
		return text
	}
	return directAnswers[intent.Unknown]
}

func successText(plan planner.Plan, res dispatch.Result, params extract.Parameters) string {
	switch plan.Tool {
	case planner.ToolProductSearch:
		return productText(res, params)
	case planner.ToolOutletSearch:
		return outletText(res)
	case planner.ToolCalculator:
		return calculationText(res.Number, params.CurrencyMarker)
	default:
		return directAnswers[intent.Unknown]
	}
}

func productText(res dispatch.Result, params extract.Parameters) string {
	var b strings.Builder
	if len(res.Products) == 1 {
		b.WriteString("I found 1 product for you:\n")
	} else {
		fmt.Fprintf(&b, "I found %d products for you:\n", len(res.Products))
	}
	for _, p := range res.Products {
		fmt.Fprintf(&b, "- %s: RM %s", p.Name, FormatAmount(p.Price))
		if p.Description != "" {
			b.WriteString(" (" + p.Description + ")")
		}
		b.WriteString("\n")
	}
	if params.PromoCode != "" {
		fmt.Fprintf(&b, "I've noted your promo code %s; mention it at checkout.\n", params.PromoCode)
	}
	return strings.TrimRight(b.String(), "\n")
}

func outletText(res dispatch.Result) string {
	var b strings.Builder
	if len(res.Outlets) == 1 {
		b.WriteString("Here's 1 outlet that matches:\n")
	} else {
		fmt.Fprintf(&b, "Here are %d outlets that match:\n", len(res.Outlets))
	}
	for _, o := range res.Outlets {
		fmt.Fprintf(&b, "- %s, %s (%s)", o.Name, o.City, o.Address)
		if len(o.Services) > 0 {
			fmt.Fprintf(&b, "; %s", strings.Join(o.Services, ", "))
		}
		if o.Hours != "" {
			fmt.Fprintf(&b, ", %s", o.Hours)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func calculationText(value float64, currency string) string {
	amount := FormatAmount(value)
	if currency != "" {
		return fmt.Sprintf("That comes to %s %s.", currency, amount)
	}
	return fmt.Sprintf("That comes to %s.", amount)
}

// recoveryText maps each tool's failure onto its designated fallback reply.
func recoveryText(plan planner.Plan, res dispatch.Result) string {
	switch plan.Tool {
	case planner.ToolProductSearch:
		return "I couldn't find a matching product just now. Could you give me a more specific name, like \"All Day Cup\" or \"glass bottle\"?"
	case planner.ToolOutletSearch:
		if res.PartialCount > 0 {
			return fmt.Sprintf("I found %d outlets in that city, but none offering that service. Want me to list them, or try a different service?", res.PartialCount)
		}
		return "I couldn't find outlets matching that just now. Could you tell me the city, or the service you need (drive-thru, dine-in, delivery)?"
	case planner.ToolCalculator:
		switch res.Kind {
		case dispatch.ErrDivisionByZero:
			return "I can't divide by zero. Try a non-zero divisor, for example 10 / 2."
		case dispatch.ErrBadExpression:
			return "I couldn't read that expression. Try something like 25 + 15 or (10 - 3) * 2."
		default:
			return "The calculator hiccupped on that one. Try a simple expression like 25 + 15."
		}
	default:
		return directAnswers[intent.Unknown]
	}
}

// FormatAmount renders a numeric result: integers without decimals,
// fractional values with two, matching how prices are written.
func FormatAmount(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
