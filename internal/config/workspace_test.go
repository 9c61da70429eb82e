package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWorkspace creates root/.browsernerd/config.yaml with the given body.
func writeWorkspace(t *testing.T, root, body string) {
	t.Helper()
	wsDir := filepath.Join(root, WorkspaceDirName)
	require.NoError(t, os.MkdirAll(wsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte(body), 0644))
}

func TestDiscoverWorkspace(t *testing.T) {
	t.Run("found in start dir", func(t *testing.T) {
		root := t.TempDir()
		writeWorkspace(t, root, "server:\n  name: test\n")

		got, err := DiscoverWorkspace(root)
		require.NoError(t, err)
		assert.Equal(t, root, got)
	})

	t.Run("walks up", func(t *testing.T) {
		root := t.TempDir()
		writeWorkspace(t, root, "server:\n  name: test\n")
		nested := filepath.Join(root, "a", "b")
		require.NoError(t, os.MkdirAll(nested, 0755))

		got, err := DiscoverWorkspace(nested)
		require.NoError(t, err)
		assert.Equal(t, root, got)
	})

	t.Run("not found", func(t *testing.T) {
		got, err := DiscoverWorkspace(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("beyond max depth", func(t *testing.T) {
		root := t.TempDir()
		writeWorkspace(t, root, "server:\n  name: test\n")
		deep := filepath.Join(root, strings.Repeat("d"+string(filepath.Separator), MaxSearchDepth+1))
		require.NoError(t, os.MkdirAll(deep, 0755))

		got, err := DiscoverWorkspace(deep)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestLoadWithWorkspace(t *testing.T) {
	t.Run("defaults only", func(t *testing.T) {
		cfg, wsDir, err := LoadWithWorkspace("", WorkspaceOptions{Disable: true})
		require.NoError(t, err)
		assert.Empty(t, wsDir)
		assert.Equal(t, DefaultConfig().Agent, cfg.Agent)
	})

	t.Run("workspace overrides defaults and resolves paths", func(t *testing.T) {
		root := t.TempDir()
		writeWorkspace(t, root, `
agent:
  max_steps: 30
history:
  path: runs.db
`)
		cfg, wsDir, err := LoadWithWorkspace("", WorkspaceOptions{ExplicitDir: root})
		require.NoError(t, err)
		assert.Equal(t, root, wsDir)
		assert.Equal(t, 30, cfg.Agent.MaxSteps)
		assert.Equal(t, filepath.Join(root, WorkspaceDirName, "runs.db"), cfg.History.Path)
		assert.Equal(t, filepath.Join(root, WorkspaceDirName, "dataset"), cfg.Dataset.Dir, "default paths resolve too")
	})

	t.Run("explicit overrides workspace", func(t *testing.T) {
		root := t.TempDir()
		writeWorkspace(t, root, "agent:\n  max_steps: 30\nvision:\n  max_history: 9\n")
		explicit := filepath.Join(root, "explicit.yaml")
		require.NoError(t, os.WriteFile(explicit, []byte("agent:\n  max_steps: 12\n"), 0644))

		cfg, _, err := LoadWithWorkspace(explicit, WorkspaceOptions{ExplicitDir: root})
		require.NoError(t, err)
		assert.Equal(t, 12, cfg.Agent.MaxSteps)
		assert.Equal(t, 9, cfg.Vision.MaxHistory)
	})

	t.Run("disabled ignores workspace", func(t *testing.T) {
		root := t.TempDir()
		writeWorkspace(t, root, "agent:\n  max_steps: 30\n")

		cfg, wsDir, err := LoadWithWorkspace("", WorkspaceOptions{Disable: true, ExplicitDir: root})
		require.NoError(t, err)
		assert.Empty(t, wsDir)
		assert.Equal(t, 20, cfg.Agent.MaxSteps)
	})

	t.Run("explicit dir without config", func(t *testing.T) {
		cfg, wsDir, err := LoadWithWorkspace("", WorkspaceOptions{ExplicitDir: t.TempDir()})
		require.NoError(t, err)
		assert.Empty(t, wsDir)
		assert.Equal(t, "browsernerd-agent", cfg.Server.Name)
	})

	t.Run("broken workspace yaml", func(t *testing.T) {
		root := t.TempDir()
		writeWorkspace(t, root, "agent: [")
		_, _, err := LoadWithWorkspace("", WorkspaceOptions{ExplicitDir: root})
		assert.ErrorContains(t, err, "parsing workspace config")
	})
}

func TestResolveWorkspacePaths(t *testing.T) {
	base := t.TempDir()
	abs := "/var/lib/browsernerd/history.db"
	if runtime.GOOS == "windows" {
		abs = `C:\var\browsernerd\history.db`
	}

	cfg := resolveWorkspacePaths(Config{
		Logging: LoggingConfig{LogFile: "agent.log"},
		Browser: BrowserConfig{UserDataDir: "profile"},
		History: HistoryConfig{Path: abs},
		Dataset: DatasetConfig{Dir: "", TraceDir: filepath.Join("data", "traces")},
	}, base)

	assert.Equal(t, filepath.Join(base, "agent.log"), cfg.Logging.LogFile)
	assert.Equal(t, filepath.Join(base, "profile"), cfg.Browser.UserDataDir)
	assert.Equal(t, abs, cfg.History.Path)
	assert.Empty(t, cfg.Dataset.Dir)
	assert.Equal(t, filepath.Join(base, "data", "traces"), cfg.Dataset.TraceDir)
}

func TestInitWorkspace(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, InitWorkspace(root))

	wsDir := filepath.Join(root, WorkspaceDirName)
	for _, dir := range []string{wsDir, filepath.Join(wsDir, "data"), filepath.Join(wsDir, "dataset")} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir(), dir)
	}

	gitignore, err := os.ReadFile(filepath.Join(wsDir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(gitignore), "data/")

	// The template is all comments, so it must load cleanly.
	cfg, wsFound, err := LoadWithWorkspace("", WorkspaceOptions{ExplicitDir: root})
	require.NoError(t, err)
	assert.Equal(t, root, wsFound)
	assert.Equal(t, 20, cfg.Agent.MaxSteps)

	assert.Error(t, InitWorkspace(root), "second init fails")
}
