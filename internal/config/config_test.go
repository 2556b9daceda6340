package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	vault := t.TempDir()
	cfg, err := Load(vault)
	require.NoError(t, err)

	assert.Equal(t, vault, cfg.Vault.Path)
	assert.Equal(t, filepath.Join(vault, StorageDirName), cfg.Storage.Dir)
	assert.Equal(t, "auto", cfg.Encoder.Kind)
	assert.True(t, cfg.Index.ChunkingEnabled)
	assert.Equal(t, 8391, cfg.Server.Port)
}

func TestLoadFromFile(t *testing.T) {
	vault := t.TempDir()
	content := `
encoder:
  kind: static
index:
  chunk_size: 1500
  chunk_overlap: 100
  block_on_busy: true
server:
  port: 9000
profiles:
  work:
    semantic_weight: 0.9
    lexical_weight: 0.1
`
	require.NoError(t, os.WriteFile(filepath.Join(vault, DefaultFileName), []byte(content), 0o644))

	cfg, err := Load(vault)
	require.NoError(t, err)
	assert.Equal(t, "static", cfg.Encoder.Kind)
	assert.Equal(t, 1500, cfg.Index.ChunkSize)
	assert.True(t, cfg.Index.BlockOnBusy)
	assert.Equal(t, 9000, cfg.Server.Port)

	reg, err := cfg.ProfileRegistry()
	require.NoError(t, err)
	p, err := reg.Get("work")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, p.SemanticWeight, 1e-9)
}

func TestLoadEnvOverrides(t *testing.T) {
	vault := t.TempDir()
	t.Setenv("VAULTMCP_ENCODER", "ollama")
	t.Setenv("VAULTMCP_PORT", "9999")
	t.Setenv("VAULTMCP_LOG_LEVEL", "debug")

	cfg, err := Load(vault)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Encoder.Kind)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMalformedFile(t *testing.T) {
	vault := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(vault, DefaultFileName),
		[]byte(":\nnot yaml ["), 0o644))

	_, err := Load(vault)
	require.Error(t, err)
	assert.True(t, vmcperrors.IsKind(err, vmcperrors.KindConfig))
}

func TestLoadRejectsOverlapGEQSize(t *testing.T) {
	vault := t.TempDir()
	content := "index:\n  chunk_size: 100\n  chunk_overlap: 100\n"
	require.NoError(t, os.WriteFile(filepath.Join(vault, DefaultFileName), []byte(content), 0o644))

	_, err := Load(vault)
	require.Error(t, err)
	assert.True(t, vmcperrors.IsKind(err, vmcperrors.KindConfig))
}

func TestLoadRejectsBadPort(t *testing.T) {
	vault := t.TempDir()
	content := "server:\n  port: 70000\n"
	require.NoError(t, os.WriteFile(filepath.Join(vault, DefaultFileName), []byte(content), 0o644))

	_, err := Load(vault)
	require.Error(t, err)
}

func TestProfileRegistryRejectsBuiltinCollision(t *testing.T) {
	vault := t.TempDir()
	content := "profiles:\n  default:\n    semantic_weight: 1.0\n"
	require.NoError(t, os.WriteFile(filepath.Join(vault, DefaultFileName), []byte(content), 0o644))

	cfg, err := Load(vault)
	require.NoError(t, err)
	_, err = cfg.ProfileRegistry()
	require.Error(t, err)
	assert.True(t, vmcperrors.IsKind(err, vmcperrors.KindConfig))
}
