package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yclw/dus-checkin-bot/internal/domain"
)

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.Record(ctx, "42",
		domain.CheckinResult{Success: true, Message: "Check-in succeeded"}, SourceAuto))
	require.NoError(t, repo.Record(ctx, "42",
		domain.CheckinResult{Success: false, Message: "No active check-in task"}, SourceManual))
	require.NoError(t, repo.Record(ctx, "7",
		domain.CheckinResult{Success: true, Message: "Check-in succeeded"}, SourceManual))

	entries, err := repo.Recent(ctx, "42", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	require.Equal(t, SourceManual, entries[0].Source)
	require.False(t, entries[0].Success)
	require.Equal(t, SourceAuto, entries[1].Source)
	require.True(t, entries[1].Success)

	limited, err := repo.Recent(ctx, "42", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	none, err := repo.Recent(ctx, "nobody", 10)
	require.NoError(t, err)
	require.Empty(t, none)
}
