package traffic

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/capstore/internal/config"
	"github.com/roach88/capstore/internal/testutil"
)

func TestNew_MemoryOnly(t *testing.T) {
	cfg := config.Default()
	cfg.Persistence.Enabled = false
	cfg.MemoryOnlyCacheSize = 2

	s, err := New(cfg, WithLogger(discardLogger()))
	require.NoError(t, err)
	defer s.Close()

	require.IsType(t, &MemoryStore{}, s)
	for _, r := range testutil.Records(3) {
		s.Add(r)
	}
	assert.Equal(t, 2, s.Count())
}

func TestNew_Persistent(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Persistence.DatabasePath = filepath.Join(t.TempDir(), "nested", "captures.db")
	cfg.Persistence.MemoryCacheSize = 2
	cfg.Persistence.RetentionDays = 0

	s, err := New(cfg, WithLogger(discardLogger()))
	require.NoError(t, err)
	defer s.Close()

	require.IsType(t, &HybridStore{}, s)
	for _, r := range testutil.Records(3) {
		s.Add(r)
	}
	require.NoError(t, s.Flush(ctx))

	assert.Equal(t, 2, s.Count())
	total, err := s.GetTotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.FileExists(t, cfg.Persistence.DatabasePath)
}
