package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultmcp/vaultmcp/pkg/version"
)

// runCmd executes the CLI with args and returns stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func newTestVault(t *testing.T) string {
	t.Helper()
	vaultDir := t.TempDir()

	notes := map[string]string{
		"retrieval.md": "---\ntitle: Retrieval\ntags: [search]\n---\n\nHybrid retrieval fuses lexical and semantic rankings.",
		"garden.md":    "Watering schedule for the tomato beds.",
	}
	for name, body := range notes {
		require.NoError(t, os.WriteFile(filepath.Join(vaultDir, name), []byte(body), 0o644))
	}
	return vaultDir
}

func TestVersionCommand(t *testing.T) {
	out, err := runCmd(t, "version", "--short")
	require.NoError(t, err)
	assert.Contains(t, out, version.Version)
}

func TestVersionCommandJSON(t *testing.T) {
	out, err := runCmd(t, "version", "--json")
	require.NoError(t, err)

	var info struct {
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)
}

func TestStatsWithoutIndex(t *testing.T) {
	vaultDir := newTestVault(t)
	out, err := runCmd(t, "stats", "--vault", vaultDir, "--encoder", "static")
	require.NoError(t, err)
	assert.Contains(t, out, "No index found")
}

func TestIndexSearchStatsFlow(t *testing.T) {
	vaultDir := newTestVault(t)
	common := []string{"--vault", vaultDir, "--encoder", "static"}

	_, err := runCmd(t, append([]string{"index", "--plain"}, common...)...)
	require.NoError(t, err)

	out, err := runCmd(t, append([]string{"search", "hybrid", "retrieval", "--json"}, common...)...)
	require.NoError(t, err)

	var resp struct {
		Results []struct {
			RelativePath string `json:"relative_path"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "retrieval.md", resp.Results[0].RelativePath)

	out, err = runCmd(t, append([]string{"stats"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Documents: 2")
}

func TestIndexUpToDateSecondRun(t *testing.T) {
	vaultDir := newTestVault(t)
	common := []string{"--vault", vaultDir, "--encoder", "static"}

	_, err := runCmd(t, append([]string{"index", "--plain"}, common...)...)
	require.NoError(t, err)

	_, err = runCmd(t, append([]string{"index", "--plain"}, common...)...)
	require.NoError(t, err)
}

func TestArchaeologyCommandJSON(t *testing.T) {
	vaultDir := newTestVault(t)
	common := []string{"--vault", vaultDir, "--encoder", "static"}

	_, err := runCmd(t, append([]string{"index", "--plain"}, common...)...)
	require.NoError(t, err)

	out, err := runCmd(t, append([]string{"archaeology", "hybrid", "retrieval", "--threshold", "0.01", "--json"}, common...)...)
	require.NoError(t, err)

	var tl struct {
		Topic string `json:"topic"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &tl))
	assert.Equal(t, "hybrid retrieval", tl.Topic)
}

func TestSearchWithoutIndexFails(t *testing.T) {
	vaultDir := newTestVault(t)
	_, err := runCmd(t, "search", "anything", "--vault", vaultDir, "--encoder", "static")
	assert.Error(t, err)
}

func TestServeRejectsUnknownTransport(t *testing.T) {
	t.Setenv("HOME", t.TempDir()) // keep the serve log file out of the real home
	vaultDir := newTestVault(t)
	_, err := runCmd(t, "serve", "--transport", "bogus", "--vault", vaultDir, "--encoder", "static")
	assert.Error(t, err)
}
