// Package orchestrator wires the conversation pipeline: session state in,
// classified intent, planned action, optional tool dispatch, composed reply,
// session state out. One call per turn, per-session turns serialized.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/compose"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/dispatch"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/extract"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/history"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/intent"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/observability"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/planner"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/policy"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/session"
)

const transcriptSaveTimeout = 2 * time.Second

// Turn is what one handled utterance produces for the transport layer.
type Turn struct {
	SessionID string        `json:"session_id"`
	Reply     compose.Reply `json:"reply"`
}

// Engine runs the conversation pipeline.
type Engine struct {
	sessions    *session.Store
	classifier  *intent.Classifier
	dispatcher  *dispatch.Dispatcher
	transcripts history.Store
	metrics     *observability.Metrics
	// strict makes a closed-set violation panic instead of degrading to an
	// unknown-intent apology. On in dev/test, off in production.
	strict bool
}

func NewEngine(
	sessions *session.Store,
	classifier *intent.Classifier,
	dispatcher *dispatch.Dispatcher,
	transcripts history.Store,
	metrics *observability.Metrics,
	strict bool,
) *Engine {
	return &Engine{
		sessions:    sessions,
		classifier:  classifier,
		dispatcher:  dispatcher,
		transcripts: transcripts,
		metrics:     metrics,
		strict:      strict,
	}
}

// HandleTurn processes one utterance for one session. Turns for the same
// session id run one at a time; turns for different sessions run in
// parallel. When ctx is cancelled mid-turn the session is left exactly as it
// was and an error is returned for the transport to swallow.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, utterance string) (Turn, error) {
	started := time.Now()

	lease := e.sessions.Begin(sessionID)
	defer lease.Release()
	st := lease.State()

	recent := intent.Context{
		LastIntent:      st.LastIntent,
		PendingFollowup: st.PendingFollowup,
		TurnCount:       len(st.History),
	}
	// One follow-up round-trip at most: the pending marker is consumed now,
	// whether or not this turn resolves it.
	st.PendingFollowup = ""

	result := e.classifier.Classify(utterance, recent)
	params := extract.Extract(utterance, result)
	plan := planner.Build(result, params, planner.SessionView{HistoryLen: len(st.History)})

	var toolResult *dispatch.Result
	if plan.Action == planner.ActionCallTool {
		res := e.dispatcher.Dispatch(ctx, plan)
		toolResult = &res
		e.countToolCall(plan, res)
	}

	// A disconnect mid-turn abandons the turn before any state is written.
	if err := ctx.Err(); err != nil {
		return Turn{}, fmt.Errorf("turn abandoned: %w", err)
	}

	reply := compose.Compose(plan, toolResult, params, result.Confidence)
	reply = e.enforceClosedSet(reply)

	// Session memory commits only after the reply is fully composed.
	st.History = append(st.History, session.Turn{
		Utterance: utterance,
		Intent:    reply.Intent,
		At:        time.Now().UTC(),
	})
	st.LastIntent = reply.Intent
	st.LastAction = string(plan.Action)
	st.PendingFollowup = plan.Followup
	lease.Commit()

	e.recordTranscript(st.ID, utterance, reply)
	e.observe(plan, reply, started)

	return Turn{SessionID: st.ID, Reply: reply}, nil
}

// ClearSession resets a session on behalf of the transport layer.
func (e *Engine) ClearSession(sessionID string) {
	e.sessions.Clear(sessionID)
}

// enforceClosedSet is the last line of defense for the hard contract that
// intent labels outside the closed set never reach the transport layer.
func (e *Engine) enforceClosedSet(reply compose.Reply) compose.Reply {
	if reply.Intent.Valid() {
		return reply
	}
	if e.strict {
		panic(fmt.Sprintf("intent label %q outside closed set", reply.Intent))
	}
	log.Printf("orchestrator: invalid intent label %q, degrading to unknown", reply.Intent)
	return compose.Reply{
		Text:       "Sorry, something went wrong on my side. Could you try asking again?",
		Intent:     intent.Unknown,
		Confidence: 0,
	}
}

// recordTranscript persists both sides of the turn, best effort. The save
// uses a detached context so a cancelled transport never half-writes, and a
// store failure costs a log line, not the turn.
func (e *Engine) recordTranscript(sessionID, utterance string, reply compose.Reply) {
	if e.transcripts == nil {
		return
	}
	userText, userRedacted := policy.RedactPII(utterance)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), transcriptSaveTimeout)
		defer cancel()
		records := []history.Record{
			{SessionID: sessionID, Role: history.RoleUser, Text: userText, Intent: reply.Intent, Redacted: userRedacted},
			{SessionID: sessionID, Role: history.RoleAssistant, Text: reply.Text, Intent: reply.Intent},
		}
		for _, r := range records {
			if err := e.transcripts.Append(ctx, r); err != nil {
				log.Printf("orchestrator: transcript save failed: %v", err)
				return
			}
		}
	}()
}

func (e *Engine) countToolCall(plan planner.Plan, res dispatch.Result) {
	if e.metrics == nil {
		return
	}
	outcome := "ok"
	if !res.OK {
		outcome = string(res.Kind)
	}
	e.metrics.ToolCalls.WithLabelValues(string(plan.Tool), outcome).Inc()
}

func (e *Engine) observe(plan planner.Plan, reply compose.Reply, started time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveTurn(string(reply.Intent), time.Since(started))
	if plan.Action == planner.ActionAskFollowup {
		e.metrics.Followups.Inc()
	}
	e.metrics.ActiveSessions.Set(float64(e.sessions.ActiveCount()))
}
