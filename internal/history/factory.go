package history

import (
	"context"
	"strings"

	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/intent"
)

// NewStore picks a backend: PostgreSQL when databaseURL is set, SQLite when
// sqlitePath is set, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL, sqlitePath string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(sqlitePath) != "" {
		return NewSQLiteStore(sqlitePath)
	}
	return NewInMemoryStore(), nil
}

// intentFromDB normalizes a stored label back into the closed set, so a row
// written by an older build can never smuggle an invalid intent out.
func intentFromDB(label string) intent.Intent {
	return intent.Normalize(label)
}
