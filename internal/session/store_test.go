package session

import (
	"sync"
	"testing"
	"time"

	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/intent"
)

func TestBeginCreatesAndCommitPersists(t *testing.T) {
	s := NewStore(time.Minute, 12)

	lease := s.Begin("s1")
	st := lease.State()
	if st.ID != "s1" || len(st.History) != 0 {
		t.Fatalf("fresh state = %+v", st)
	}
	st.History = append(st.History, Turn{Utterance: "hi", Intent: intent.Greeting})
	st.LastIntent = intent.Greeting
	lease.Commit()
	lease.Release()

	lease = s.Begin("s1")
	defer lease.Release()
	if got := lease.State(); len(got.History) != 1 || got.LastIntent != intent.Greeting {
		t.Fatalf("committed state not visible: %+v", got)
	}
}

func TestReleaseWithoutCommitLeavesStateUntouched(t *testing.T) {
	s := NewStore(time.Minute, 12)

	lease := s.Begin("s1")
	lease.State().History = append(lease.State().History, Turn{Utterance: "hi"})
	lease.Commit()
	lease.Release()

	// Abandoned turn: mutate the working copy, never commit.
	lease = s.Begin("s1")
	lease.State().History = append(lease.State().History, Turn{Utterance: "partial"})
	lease.State().PendingFollowup = intent.ProductSearch
	lease.Release()

	lease = s.Begin("s1")
	defer lease.Release()
	got := lease.State()
	if len(got.History) != 1 || got.PendingFollowup != "" {
		t.Fatalf("abandoned turn mutated session: %+v", got)
	}
}

func TestLazyIdleExpiry(t *testing.T) {
	s := NewStore(time.Minute, 12)
	current := time.Now().UTC()
	s.now = func() time.Time { return current }

	lease := s.Begin("s1")
	lease.State().History = append(lease.State().History, Turn{Utterance: "hi"})
	lease.State().PendingFollowup = intent.OutletSearch
	lease.Commit()
	lease.Release()

	// Within the idle window the history survives.
	current = current.Add(30 * time.Second)
	lease = s.Begin("s1")
	if len(lease.State().History) != 1 {
		t.Fatalf("history lost before expiry: %+v", lease.State())
	}
	lease.Release()

	// Past the idle window the next access sees a fresh session.
	current = current.Add(2 * time.Minute)
	lease = s.Begin("s1")
	defer lease.Release()
	got := lease.State()
	if len(got.History) != 0 || got.PendingFollowup != "" {
		t.Fatalf("expired session not reset: %+v", got)
	}
	if got.ID != "s1" {
		t.Fatalf("expired session changed id: %q", got.ID)
	}
}

func TestHistoryTrimmedToLimit(t *testing.T) {
	s := NewStore(time.Minute, 3)

	for i := 0; i < 5; i++ {
		lease := s.Begin("s1")
		lease.State().History = append(lease.State().History, Turn{Utterance: "turn", Intent: intent.GeneralChat})
		lease.Commit()
		lease.Release()
	}

	lease := s.Begin("s1")
	defer lease.Release()
	if got := len(lease.State().History); got != 3 {
		t.Fatalf("history length = %d, want 3", got)
	}
}

func TestBeginGeneratesID(t *testing.T) {
	s := NewStore(time.Minute, 12)
	lease := s.Begin("")
	defer lease.Release()
	if lease.State().ID == "" {
		t.Fatalf("expected generated session id")
	}
}

func TestClearResetsSession(t *testing.T) {
	s := NewStore(time.Minute, 12)
	lease := s.Begin("s1")
	lease.State().History = append(lease.State().History, Turn{Utterance: "hi"})
	lease.Commit()
	lease.Release()

	s.Clear("s1")
	s.Clear("never-seen")

	lease = s.Begin("s1")
	defer lease.Release()
	if len(lease.State().History) != 0 {
		t.Fatalf("clear did not reset history")
	}
}

func TestDifferentSessionsDoNotBlock(t *testing.T) {
	s := NewStore(time.Minute, 12)

	held := s.Begin("busy")
	defer held.Release()

	done := make(chan struct{})
	go func() {
		lease := s.Begin("other")
		lease.Commit()
		lease.Release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("turn for a different session blocked on an unrelated lease")
	}
}

func TestActiveCountSafeWhileLeaseHeld(t *testing.T) {
	s := NewStore(time.Minute, 12)

	warm := s.Begin("warm")
	warm.Commit()
	warm.Release()

	// Counting must not touch the entry lock this caller still holds.
	held := s.Begin("held")
	defer held.Release()

	done := make(chan int, 1)
	go func() { done <- s.ActiveCount() }()
	select {
	case got := <-done:
		if got != 2 {
			t.Fatalf("ActiveCount() = %d, want 2", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("ActiveCount blocked on a held lease")
	}
}

func TestActiveCountExcludesIdleSessions(t *testing.T) {
	s := NewStore(time.Minute, 12)
	current := time.Now().UTC()
	s.now = func() time.Time { return current }

	lease := s.Begin("old")
	lease.Commit()
	lease.Release()

	current = current.Add(2 * time.Minute)
	lease = s.Begin("fresh")
	lease.Commit()
	lease.Release()

	if got := s.ActiveCount(); got != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", got)
	}
}

func TestConcurrentTurnsOneSessionSerialize(t *testing.T) {
	s := NewStore(time.Minute, 100)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease := s.Begin("shared")
			st := lease.State()
			st.History = append(st.History, Turn{Utterance: "x"})
			lease.Commit()
			lease.Release()
		}()
	}
	wg.Wait()

	lease := s.Begin("shared")
	defer lease.Release()
	if got := len(lease.State().History); got != 20 {
		t.Fatalf("history length = %d, want 20 (lost update)", got)
	}
}
