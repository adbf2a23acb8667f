package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/catalog"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/dispatch"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/history"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/intent"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/observability"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/session"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/tools"
)

type slowProducts struct{ delay time.Duration }

func (s slowProducts) Search(ctx context.Context, query string) ([]catalog.Product, error) {
	select {
	case <-time.After(s.delay):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newTestEngine() *Engine {
	return newTestEngineWith(nil, 0)
}

func newTestEngineWith(transcripts history.Store, productDelay time.Duration) *Engine {
	var products dispatch.ProductSearcher = tools.NewProductIndex(catalog.DefaultProducts())
	if productDelay > 0 {
		products = slowProducts{delay: productDelay}
	}
	d := dispatch.New(
		products,
		tools.NewOutletDirectory(catalog.DefaultOutlets()),
		tools.NewCalculator(),
		200*time.Millisecond,
	)
	return NewEngine(
		session.NewStore(time.Minute, 12),
		intent.NewClassifier(),
		d,
		transcripts,
		nil,
		true,
	)
}

// testMetrics registers against the default Prometheus registry, which only
// tolerates one registration per test binary.
var testMetrics = observability.NewMetrics("orchestrator_test")

func newMetricsEngine() *Engine {
	d := dispatch.New(
		tools.NewProductIndex(catalog.DefaultProducts()),
		tools.NewOutletDirectory(catalog.DefaultOutlets()),
		tools.NewCalculator(),
		200*time.Millisecond,
	)
	return NewEngine(
		session.NewStore(time.Minute, 12),
		intent.NewClassifier(),
		d,
		nil,
		testMetrics,
		true,
	)
}

func TestTurnCompletesWithMetricsEnabled(t *testing.T) {
	e := newMetricsEngine()

	done := make(chan error, 1)
	go func() {
		_, err := e.HandleTurn(context.Background(), "m1", "Hi")
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("HandleTurn() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("HandleTurn hung with metrics enabled")
	}
}

func TestParallelSessionsCompleteWithMetricsEnabled(t *testing.T) {
	e := newMetricsEngine()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 4; i++ {
		for _, id := range []string{"ma", "mb"} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := e.HandleTurn(context.Background(), id, "25 + 15")
				errs <- err
			}(id)
		}
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("concurrent turns hung with metrics enabled")
	}
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("HandleTurn() error = %v", err)
		}
	}
}

func TestEndToEndScenarios(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	cases := []struct {
		utterance    string
		wantIntent   intent.Intent
		wantContains string
	}{
		{"Hi", intent.Greeting, ""},
		{"25 + 15", intent.Calculation, "40"},
		{"What outlets have drive-thru service?", intent.OutletSearch, "drive-thru"},
		{"Calculate RM105 + RM55", intent.Calculation, "RM 160"},
		{"5 / 0", intent.Calculation, "zero"},
	}
	for _, tc := range cases {
		turn, err := e.HandleTurn(ctx, "", tc.utterance)
		if err != nil {
			t.Fatalf("HandleTurn(%q) error = %v", tc.utterance, err)
		}
		if turn.Reply.Intent != tc.wantIntent {
			t.Fatalf("HandleTurn(%q) intent = %q, want %q", tc.utterance, turn.Reply.Intent, tc.wantIntent)
		}
		if tc.wantContains != "" && !strings.Contains(turn.Reply.Text, tc.wantContains) {
			t.Fatalf("HandleTurn(%q) reply %q missing %q", tc.utterance, turn.Reply.Text, tc.wantContains)
		}
	}
}

func TestDriveThruResultSmallerThanUniverse(t *testing.T) {
	e := newTestEngine()
	turn, err := e.HandleTurn(context.Background(), "", "What outlets have drive-thru service?")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	listed := strings.Count(turn.Reply.Text, "\n- ")
	total := len(catalog.DefaultOutlets())
	if listed == 0 || listed >= total {
		t.Fatalf("drive-thru reply lists %d outlets of %d total:\n%s", listed, total, turn.Reply.Text)
	}
}

func TestFollowupRoundTrip(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	// Turn 1: product intent without terms parks a follow-up.
	turn, err := e.HandleTurn(ctx, "s1", "show me your products")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if turn.Reply.Intent != intent.ProductSearch {
		t.Fatalf("turn 1 intent = %q, want product_search", turn.Reply.Intent)
	}

	// Turn 2: a bare answer resolves the parked intent.
	turn, err = e.HandleTurn(ctx, "s1", "a flask")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if turn.Reply.Intent != intent.ProductSearch {
		t.Fatalf("turn 2 intent = %q, want product_search", turn.Reply.Intent)
	}
	if !strings.Contains(turn.Reply.Text, "Flask") {
		t.Fatalf("turn 2 reply %q did not resolve the follow-up", turn.Reply.Text)
	}
}

func TestPendingFollowupClearedAfterOneTurn(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	if _, err := e.HandleTurn(ctx, "s1", "show me your products"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	// An unrelated answer does not resolve it; the marker must still be gone.
	if _, err := e.HandleTurn(ctx, "s1", "hello there"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	lease := e.sessions.Begin("s1")
	defer lease.Release()
	if got := lease.State().PendingFollowup; got != "" {
		t.Fatalf("PendingFollowup = %q after a full round-trip, want cleared", got)
	}
}

func TestToolTimeoutDegradesToDirectAnswer(t *testing.T) {
	e := newTestEngineWith(nil, 5*time.Second)

	start := time.Now()
	turn, err := e.HandleTurn(context.Background(), "s1", "do you sell tumblers?")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v, want graceful degradation", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout did not bound the turn")
	}
	if turn.Reply.Intent != intent.ProductSearch {
		t.Fatalf("intent = %q, want product_search preserved on failure", turn.Reply.Intent)
	}
	if strings.TrimSpace(turn.Reply.Text) == "" {
		t.Fatalf("empty recovery reply")
	}
}

func TestCancelledTurnLeavesSessionUntouched(t *testing.T) {
	e := newTestEngineWith(nil, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := e.HandleTurn(ctx, "s1", "do you sell tumblers?")
	if err == nil {
		t.Fatalf("expected abandoned-turn error")
	}

	lease := e.sessions.Begin("s1")
	defer lease.Release()
	if got := len(lease.State().History); got != 0 {
		t.Fatalf("history length = %d after abandoned turn, want 0", got)
	}
}

func TestExpiredSessionStartsFresh(t *testing.T) {
	e := newTestEngine()
	e.sessions = session.NewStore(time.Minute, 12)
	ctx := context.Background()

	if _, err := e.HandleTurn(ctx, "s1", "hi"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	// Recreate the store with a tiny idle window to simulate expiry.
	e = newTestEngine()
	e.sessions = session.NewStore(time.Nanosecond, 12)
	if _, err := e.HandleTurn(ctx, "s2", "hi"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	turn, err := e.HandleTurn(ctx, "s2", "how are you doing?")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	// First-turn phrasing proves the history was discarded.
	if !strings.Contains(turn.Reply.Text, "What's on your mind") {
		t.Fatalf("expired session did not restart as turn one: %q", turn.Reply.Text)
	}
}

func TestTranscriptRecorded(t *testing.T) {
	store := history.NewInMemoryStore()
	e := newTestEngineWith(store, 0)

	if _, err := e.HandleTurn(context.Background(), "s1", "hi, email me at a@b.com"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	// The save is asynchronous; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		records, err := store.RecentTranscript(context.Background(), "s1", 10)
		if err != nil {
			t.Fatalf("RecentTranscript() error = %v", err)
		}
		if len(records) == 2 {
			if records[0].Role != history.RoleUser || !strings.Contains(records[0].Text, "[REDACTED_EMAIL]") {
				t.Fatalf("user record not redacted: %+v", records[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("transcript never recorded, got %d records", len(records))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionsProcessIndependently(t *testing.T) {
	e := newTestEngine()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if _, err := e.HandleTurn(context.Background(), id, "25 + 15"); err != nil {
					t.Errorf("HandleTurn(%s) error = %v", id, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
