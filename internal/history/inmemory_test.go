package history

import (
	"context"
	"testing"

	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/intent"
)

func TestInMemoryAppendAndRecent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := s.Append(ctx, Record{SessionID: "s1", Role: RoleUser, Text: "hello", Intent: intent.Greeting})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := s.RecentTranscript(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("RecentTranscript() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for _, r := range got {
		if r.ID == "" || r.CreatedAt.IsZero() {
			t.Fatalf("record missing defaults: %+v", r)
		}
	}

	got, err = s.RecentTranscript(ctx, "unseen", 3)
	if err != nil || len(got) != 0 {
		t.Fatalf("unseen session = (%v, %v), want empty", got, err)
	}
}

func TestIntentFromDBNormalizes(t *testing.T) {
	if got := intentFromDB("stale_label"); got != intent.Unknown {
		t.Fatalf("intentFromDB passthrough = %q", got)
	}
}
