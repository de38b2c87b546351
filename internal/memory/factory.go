package memory

import (
	"context"
	"strings"
)

// NewStore opens the Postgres transcript store when databaseURL is set and
// falls back to the in-process store otherwise.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
