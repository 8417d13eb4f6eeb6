package admin

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/vaultetl/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetAll(t *testing.T) {
	ctx := context.Background()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "etl.db"))
	require.NoError(t, err)
	t.Cleanup(st.Close)
	require.NoError(t, st.Migrate(ctx))

	require.NoError(t, st.LogEvent(ctx, store.Event{Operation: "import", Severity: store.SeverityInfo}))
	require.NoError(t, st.InsertMissingItems(ctx, []store.MissingItem{{CheckedPath: "/vault/A1", Status: store.MissingPending}}))

	r := &Resetter{Store: st}
	require.NoError(t, r.ResetAll(ctx))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingMissing)

	events, err := st.Events(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, events, 1, "only the reset itself is logged")
	assert.Equal(t, "reset", events[0].Operation)
	assert.Equal(t, store.SeverityWarn, events[0].Severity)
}
