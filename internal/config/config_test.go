package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/heapcheck/internal/config"
	"github.com/vkngwrapper/heapcheck/memutils"
	"github.com/vkngwrapper/heapcheck/memutils/metadata"
)

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "heapcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "tmp/", cfg.TmpDir)
	require.Equal(t, ".out", cfg.LogExt)

	options, err := cfg.ValidatorOptions()
	require.NoError(t, err)
	require.Equal(t, uint64(8), options.Alignment)
	require.Equal(t, metadata.IndexOrdered, options.Index)
	require.Equal(t, uint64(1024), options.SlotCount)
	require.Equal(t, uint64(480), options.SlotSize)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
tmp_dir: /var/tmp/logs
alignment: 16
index: linear
reorder_window: 4
timeout: 30s
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/tmp/logs", cfg.TmpDir)
	require.Equal(t, ".out", cfg.LogExt)
	require.Equal(t, 30*time.Second, cfg.Timeout)

	options, err := cfg.ValidatorOptions()
	require.NoError(t, err)
	require.Equal(t, uint64(16), options.Alignment)
	require.Equal(t, metadata.IndexLinear, options.Index)
	require.Equal(t, 4, options.ReorderWindow)
}

func TestLoadRejectsBadAlignment(t *testing.T) {
	_, err := config.Load(writeConfig(t, "alignment: 12\n"))
	require.Error(t, err)
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))
}

func TestLoadRejectsUnknownIndex(t *testing.T) {
	_, err := config.Load(writeConfig(t, "index: tree\n"))
	require.Error(t, err)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	_, err := config.Load(writeConfig(t, "heap_size: 12\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
}
