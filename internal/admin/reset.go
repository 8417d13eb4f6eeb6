// Package admin provides administrative operations for database management.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/vaultetl/internal/store"
)

// ResetTimeout is the maximum duration for database reset operations.
const ResetTimeout = 30 * time.Second

// Resetter clears imported data so an export can be loaded from scratch.
type Resetter struct {
	Store store.Store
}

// ResetAll removes every document, file, missing item and log event.
// Settings are kept. This is a destructive operation - use with caution.
func (r *Resetter) ResetAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	if err := r.runResets(ctx, store.DataTables); err != nil {
		return err
	}

	slog.Info("database reset", "tables", len(store.DataTables))
	return r.Store.LogEvent(ctx, store.Event{
		Operation: "reset",
		Detail:    fmt.Sprintf("cleared %d tables", len(store.DataTables)),
		Severity:  store.SeverityWarn,
	})
}

func (r *Resetter) runResets(ctx context.Context, tables []string) error {
	for _, table := range tables {
		if err := r.Store.Reset(ctx, table); err != nil {
			return err
		}
	}
	return nil
}
