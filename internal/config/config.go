package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"browsernerd-agent/internal/supervisor"

	"gopkg.in/yaml.v3"
)

const (
	// WorkspaceDirName is the directory name for project-level agent config.
	WorkspaceDirName = ".browsernerd"
	// WorkspaceConfigFile is the config file name inside the workspace directory.
	WorkspaceConfigFile = "config.yaml"
	// MaxSearchDepth limits how many parent directories to walk when discovering a workspace.
	MaxSearchDepth = 10
)

// WorkspaceOptions controls workspace discovery behavior.
type WorkspaceOptions struct {
	// Disable skips workspace discovery entirely (--no-workspace flag).
	Disable bool
	// ExplicitDir uses this directory as workspace root instead of walking up (--workspace-dir flag).
	ExplicitDir string
}

// Config captures all tunable settings for the agent.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Browser    BrowserConfig    `yaml:"browser"`
	Vision     VisionConfig     `yaml:"vision"`
	Agent      AgentConfig      `yaml:"agent"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Mangle     MangleConfig     `yaml:"mangle"`
	MCP        MCPConfig        `yaml:"mcp"`
	History    HistoryConfig    `yaml:"history"`
	Dataset    DatasetConfig    `yaml:"dataset"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// LoggingConfig configures the zap console core and the rotated JSON file core.
type LoggingConfig struct {
	// debug | info | warn | error
	Level string `yaml:"level"`
	// console | json, applies to the console core only.
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
	// Empty disables the file core.
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// BrowserConfig configures how we attach to or launch Chrome for Rod.
type BrowserConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). When empty Chrome is launched.
	DebuggerURL string `yaml:"debugger_url"`
	// Optional Chrome binary path for the launcher.
	Bin string `yaml:"bin"`
	// Extra launcher flags as name=value pairs (e.g., "disable-gpu").
	Flags []string `yaml:"flags"`
	// Headless controls whether Chrome runs in headless mode (default: true).
	Headless *bool `yaml:"headless"`
	// Persistent profile directory so logged-in app sessions survive restarts.
	UserDataDir string `yaml:"user_data_dir"`
	// Default navigation timeout (e.g., "15s").
	DefaultNavigationTimeout string `yaml:"default_navigation_timeout"`
	// Pause after click/type so the page can react (e.g., "1s").
	ActionDelay    string `yaml:"action_delay"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
}

// VisionConfig configures the Gemini decision client.
type VisionConfig struct {
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float32 `yaml:"temperature"`
	// Prompt limits.
	MaxElements int `yaml:"max_elements"`
	MaxHistory  int `yaml:"max_history"`
	// Client-side pacing and retry budget.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries"`
	RequestTimeout    string  `yaml:"request_timeout"`
	// Use the model to parse free-text queries before falling back to heuristics.
	LLMParsing bool `yaml:"llm_parsing"`
}

// AgentConfig bounds the orchestration loop.
type AgentConfig struct {
	MaxSteps    int    `yaml:"max_steps"`
	MaxFailures int    `yaml:"max_failures"`
	StepDelay   string `yaml:"step_delay"`
}

// SupervisorConfig exposes the keyword tables. Tables left empty keep their defaults.
type SupervisorConfig struct {
	Enable     *bool                 `yaml:"enable"`
	Vocabulary supervisor.Vocabulary `yaml:"vocabulary"`
}

// MangleConfig controls the embedded deductive engine.
type MangleConfig struct {
	Enable          bool   `yaml:"enable"`
	SchemaPath      string `yaml:"schema_path"`
	FactBufferLimit int    `yaml:"fact_buffer_limit"`
}

type MCPConfig struct {
	// When set, starts an SSE server on this port instead of stdio-only.
	SSEPort int `yaml:"sse_port"`
}

// HistoryConfig locates the SQLite run history.
type HistoryConfig struct {
	Path       string `yaml:"path"`
	KeepRecent int    `yaml:"keep_recent"`
}

// DatasetConfig controls screenshot and step capture.
type DatasetConfig struct {
	Dir string `yaml:"dir"`
	// JSONL step traces; rotated keeping the last few files.
	TraceDir string `yaml:"trace_dir"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "browsernerd-agent",
			Version: "0.1.0",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			LogFile:    "data/agent.log",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Browser: BrowserConfig{
			DefaultNavigationTimeout: "15s",
			ActionDelay:              "1s",
			ViewportWidth:            1920,
			ViewportHeight:           1080,
		},
		Vision: VisionConfig{
			Model:             "gemini-2.0-flash-exp",
			APIKeyEnv:         "GEMINI_API_KEY",
			Temperature:       0.2,
			MaxElements:       40,
			MaxHistory:        5,
			RequestsPerSecond: 1,
			MaxRetries:        3,
			RequestTimeout:    "60s",
		},
		Agent: AgentConfig{
			MaxSteps:    20,
			MaxFailures: 3,
			StepDelay:   "1s",
		},
		Supervisor: SupervisorConfig{
			Vocabulary: supervisor.DefaultVocabulary(),
		},
		Mangle: MangleConfig{
			Enable:          true,
			FactBufferLimit: 4096,
		},
		History: HistoryConfig{
			Path:       "data/history.db",
			KeepRecent: 200,
		},
		Dataset: DatasetConfig{
			Dir:      "dataset",
			TraceDir: "data/traces",
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// DiscoverWorkspace walks up from startDir looking for a .browsernerd/config.yaml file.
// Returns the workspace root directory (parent of .browsernerd/) or empty string if not found.
func DiscoverWorkspace(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}

	for i := 0; i < MaxSearchDepth; i++ {
		candidate := filepath.Join(dir, WorkspaceDirName, WorkspaceConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// LoadWithWorkspace merges, in increasing precedence:
//
//	DefaultConfig() <- .browsernerd/config.yaml <- explicit --config <- CLI flags
//
// Returns the merged config and the workspace directory (empty if none found).
func LoadWithWorkspace(explicitConfig string, opts WorkspaceOptions) (Config, string, error) {
	cfg := DefaultConfig()
	wsDir := ""

	if !opts.Disable {
		var err error
		if opts.ExplicitDir != "" {
			candidate := filepath.Join(opts.ExplicitDir, WorkspaceDirName, WorkspaceConfigFile)
			if _, statErr := os.Stat(candidate); statErr == nil {
				wsDir = opts.ExplicitDir
			}
		} else {
			cwd, cwdErr := os.Getwd()
			if cwdErr != nil {
				return cfg, "", fmt.Errorf("getting working directory: %w", cwdErr)
			}
			wsDir, err = DiscoverWorkspace(cwd)
			if err != nil {
				return cfg, "", fmt.Errorf("discovering workspace: %w", err)
			}
		}

		if wsDir != "" {
			wsConfigPath := filepath.Join(wsDir, WorkspaceDirName, WorkspaceConfigFile)
			raw, err := os.ReadFile(wsConfigPath)
			if err != nil {
				return cfg, "", fmt.Errorf("reading workspace config %s: %w", wsConfigPath, err)
			}
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, "", fmt.Errorf("parsing workspace config %s: %w", wsConfigPath, err)
			}
			cfg = resolveWorkspacePaths(cfg, filepath.Join(wsDir, WorkspaceDirName))
		}
	}

	if explicitConfig != "" {
		raw, err := os.ReadFile(explicitConfig)
		if err != nil {
			return cfg, wsDir, fmt.Errorf("reading explicit config %s: %w", explicitConfig, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, wsDir, fmt.Errorf("parsing explicit config %s: %w", explicitConfig, err)
		}
	}

	return cfg, wsDir, cfg.Validate()
}

const templateConfig = `# BrowserNERD agent project-level configuration
# Values here override defaults but are overridden by --config and CLI flags.
# Relative paths resolve against this .browsernerd/ directory.

# browser:
#   headless: false
#   user_data_dir: "profile"
#   viewport_width: 1280
#   viewport_height: 720

# vision:
#   model: "gemini-2.0-flash-exp"
#   api_key_env: "GEMINI_API_KEY"
#   requests_per_second: 0.5

# agent:
#   max_steps: 25

# supervisor:
#   vocabulary:
#     cancel_keywords: ["cancel", "close", "discard", "dismiss"]

# history:
#   keep_recent: 500
`

// InitWorkspace creates a .browsernerd/ directory with template files at root.
func InitWorkspace(root string) error {
	wsDir := filepath.Join(root, WorkspaceDirName)

	if _, err := os.Stat(wsDir); err == nil {
		return fmt.Errorf("workspace directory already exists: %s", wsDir)
	}

	dirs := []string{
		wsDir,
		filepath.Join(wsDir, "data"),
		filepath.Join(wsDir, "dataset"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	configPath := filepath.Join(wsDir, WorkspaceConfigFile)
	if err := os.WriteFile(configPath, []byte(templateConfig), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	gitignoreContent := "# Runtime data (logs, history, screenshots) - do not version control\ndata/\ndataset/\nprofile/\n"
	gitignorePath := filepath.Join(wsDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte(gitignoreContent), 0644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	return nil
}

// resolveWorkspacePaths resolves relative paths in the config against base.
func resolveWorkspacePaths(cfg Config, base string) Config {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	cfg.Logging.LogFile = resolve(cfg.Logging.LogFile)
	cfg.Browser.UserDataDir = resolve(cfg.Browser.UserDataDir)
	cfg.Mangle.SchemaPath = resolve(cfg.Mangle.SchemaPath)
	cfg.History.Path = resolve(cfg.History.Path)
	cfg.Dataset.Dir = resolve(cfg.Dataset.Dir)
	cfg.Dataset.TraceDir = resolve(cfg.Dataset.TraceDir)
	return cfg
}

// Validate ensures required fields exist so the agent can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if c.Agent.MaxSteps <= 0 {
		return errors.New("agent.max_steps must be positive")
	}
	if c.Agent.MaxFailures <= 0 {
		return errors.New("agent.max_failures must be positive")
	}
	if c.Vision.Temperature < 0 || c.Vision.Temperature > 2 {
		return fmt.Errorf("vision.temperature %.2f out of range [0,2]", c.Vision.Temperature)
	}
	if c.Vision.RequestsPerSecond < 0 {
		return errors.New("vision.requests_per_second must not be negative")
	}
	if c.MCP.SSEPort < 0 || c.MCP.SSEPort > 65535 {
		return fmt.Errorf("mcp.sse_port %d out of range", c.MCP.SSEPort)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// NavigationTimeout returns the parsed navigation timeout with a sane default.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	return parseDuration(b.DefaultNavigationTimeout, 15*time.Second)
}

// ActionPause returns the post-action settle delay with a sane default.
func (b BrowserConfig) ActionPause() time.Duration {
	return parseDuration(b.ActionDelay, time.Second)
}

// IsHeadless returns whether Chrome should run in headless mode (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true
	}
	return *b.Headless
}

// GetViewportWidth returns the viewport width with a sane default.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1920
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 1080
	}
	return b.ViewportHeight
}

// APIKey reads the Gemini key from the configured environment variable.
func (v VisionConfig) APIKey() string {
	name := v.APIKeyEnv
	if name == "" {
		name = "GEMINI_API_KEY"
	}
	return os.Getenv(name)
}

// Timeout returns the per-request deadline with a sane default.
func (v VisionConfig) Timeout() time.Duration {
	return parseDuration(v.RequestTimeout, 60*time.Second)
}

// StepPause returns the delay between loop steps.
func (a AgentConfig) StepPause() time.Duration {
	return parseDuration(a.StepDelay, time.Second)
}

// IsEnabled returns whether arbitration runs (default: true).
func (s SupervisorConfig) IsEnabled() bool {
	if s.Enable == nil {
		return true
	}
	return *s.Enable
}
