package scheduler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCleaner struct {
	calls   atomic.Int32
	removed int64
	err     error
}

func (c *countingCleaner) CleanupExpired(ctx context.Context) (int64, error) {
	c.calls.Add(1)
	return c.removed, c.err
}

func TestRunOnce(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "old.xlsx")
	fresh := filepath.Join(dir, "new.csv")
	hidden := filepath.Join(dir, ".keep")
	for _, p := range []string{stale, fresh, hidden} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(hidden, old, old))

	var out bytes.Buffer
	cleaner := &countingCleaner{removed: 3}
	s := NewMaintenanceScheduler(cleaner, dir, 24*time.Hour, time.Hour, &out)
	s.RunOnce(context.Background())

	assert.Equal(t, int32(1), cleaner.calls.Load())
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.FileExists(t, hidden)
	assert.Contains(t, out.String(), "removed 3 expired reset tokens")
	assert.Contains(t, out.String(), "removed 1 stale uploads")
}

func TestRunOnceTolerates(t *testing.T) {
	var out bytes.Buffer
	cleaner := &countingCleaner{err: errors.New("database is locked")}
	s := NewMaintenanceScheduler(cleaner, filepath.Join(t.TempDir(), "missing"), 0, 0, &out)

	s.RunOnce(context.Background())
	assert.Contains(t, out.String(), "reset token cleanup failed")
	assert.NotContains(t, out.String(), "upload sweep failed")
}

func TestStartStop(t *testing.T) {
	cleaner := &countingCleaner{}
	s := NewMaintenanceScheduler(cleaner, "", 0, 10*time.Millisecond, &bytes.Buffer{})

	stop := s.Start(context.Background())
	assert.Eventually(t, func() bool { return cleaner.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	stop()

	after := cleaner.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, cleaner.calls.Load())
}
