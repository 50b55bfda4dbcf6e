package indexing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspace_BuildAndWatch(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "app/models/user.rb", "class User < Base\n  def save; end\nend\n")
	writeSource(t, root, "app/models/base.rb", "class Base; end\n")

	cfg := scanConfig(root)
	cfg.Index.WatchDebounceMs = 20
	ws := OpenWorkspace(cfg)
	defer func() { assert.NoError(t, ws.Close()) }()
	assert.Equal(t, StatusIdle, ws.Status().Status)

	require.NoError(t, ws.Build(context.Background()))
	status := ws.Status()
	assert.Equal(t, StatusCompleted, status.Status)
	assert.Equal(t, 2, status.Files)
	assert.Equal(t, root, status.Root)

	ancestors, err := ws.Index().AncestorsOf("User")
	require.NoError(t, err)
	assert.Equal(t, []string{"User", "Base", "Object", "Kernel", "BasicObject"}, ancestors)

	require.NoError(t, ws.Watch())
	require.NoError(t, ws.Watch())
	assert.True(t, ws.Status().Watching)

	writeSource(t, root, "app/models/admin.rb", "class Admin < User; end\n")
	require.Eventually(t, func() bool {
		entries, err := ws.Index().Entries("Admin")
		return err == nil && len(entries) == 1
	}, 5*time.Second, 10*time.Millisecond)

	stats, ok := ws.WatchStats()
	assert.True(t, ok)
	assert.Positive(t, stats.EventsProcessed)
}

func TestWorkspace_BuildCancelled(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.rb", "class A; end\n")
	ws := OpenWorkspace(scanConfig(root))
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ws.Build(ctx), context.Canceled)
	assert.Equal(t, StatusCancelled, ws.Status().Status)
}

func TestWorkspace_ClosedRejectsWatch(t *testing.T) {
	ws := OpenWorkspace(scanConfig(t.TempDir()))
	require.NoError(t, ws.Close())
	require.NoError(t, ws.Close())
	assert.ErrorIs(t, ws.Watch(), ErrWriterClosed)
}
