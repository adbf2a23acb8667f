package history

import (
	"context"
	"time"

	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/intent"
)

// Record is one persisted transcript line: a user utterance or an assistant
// reply, with the intent the turn resolved to.
type Record struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Role      string        `json:"role"`
	Text      string        `json:"text"`
	Intent    intent.Intent `json:"intent"`
	Redacted  bool          `json:"redacted"`
	CreatedAt time.Time     `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Store persists and retrieves chat transcripts. The conversation core never
// depends on it; a store failure degrades to a log line, not a failed turn.
type Store interface {
	Append(ctx context.Context, record Record) error
	RecentTranscript(ctx context.Context, sessionID string, limit int) ([]Record, error)
	Close() error
}
