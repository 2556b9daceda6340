// Package config loads and validates the engine configuration: YAML file,
// then VAULTMCP_* environment overrides on top.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
	"github.com/vaultmcp/vaultmcp/internal/logging"
	"github.com/vaultmcp/vaultmcp/internal/profile"
)

// DefaultFileName is the config file looked up inside the vault root.
const DefaultFileName = ".vaultmcp.yaml"

// StorageDirName is the dot-directory holding the persisted index.
const StorageDirName = ".vaultmcp"

// Config is the complete engine configuration.
type Config struct {
	// Vault is the note collection root. Required.
	Vault VaultConfig `yaml:"vault" json:"vault"`

	// Storage holds the index artifacts. Defaults to <vault>/.vaultmcp.
	Storage StorageConfig `yaml:"storage" json:"storage"`

	Encoder  EncoderConfig  `yaml:"encoder" json:"encoder"`
	Index    IndexConfig    `yaml:"index" json:"index"`
	Reranker RerankerConfig `yaml:"reranker" json:"reranker"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Logging  logging.Config `yaml:"logging" json:"logging"`

	// Profiles adds custom query profiles; built-in names are reserved.
	Profiles map[string]profile.Profile `yaml:"profiles" json:"profiles"`
}

// VaultConfig locates and filters the vault.
type VaultConfig struct {
	Path     string   `yaml:"path" json:"path"`
	Excludes []string `yaml:"excludes" json:"excludes"`
}

// StorageConfig locates the persisted index.
type StorageConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// EncoderConfig selects and tunes the embedding backend.
type EncoderConfig struct {
	// Kind is "ollama", "static", or "auto" (probe ollama, fall back).
	Kind       string `yaml:"kind" json:"kind"`
	Host       string `yaml:"host" json:"host"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// IndexConfig tunes index builds.
type IndexConfig struct {
	ChunkingEnabled bool `yaml:"chunking_enabled" json:"chunking_enabled"`
	ChunkSize       int  `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap    int  `yaml:"chunk_overlap" json:"chunk_overlap"`
	ChunkThreshold  int  `yaml:"chunk_threshold" json:"chunk_threshold"`

	// BlockOnBusy makes concurrent reindexes wait instead of failing fast.
	BlockOnBusy bool `yaml:"block_on_busy" json:"block_on_busy"`

	// Watch enables filesystem watching with incremental reindex.
	Watch bool `yaml:"watch" json:"watch"`
}

// RerankerConfig configures the optional cross-encoder service.
type RerankerConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Model    string `yaml:"model" json:"model"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`

	// ReindexPerMinute caps reindex requests per client in a sliding
	// window. Zero disables the limiter.
	ReindexPerMinute int `yaml:"reindex_per_minute" json:"reindex_per_minute"`
}

// Default returns the configuration defaults for a vault path.
func Default(vaultPath string) *Config {
	return &Config{
		Vault: VaultConfig{Path: vaultPath},
		Encoder: EncoderConfig{
			Kind:      "auto",
			CacheSize: 4096,
		},
		Index: IndexConfig{
			ChunkingEnabled: true,
		},
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8391,
			ReindexPerMinute: 6,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads the config file if present, applies environment overrides, and
// validates. A missing file is not an error; defaults apply.
func Load(vaultPath string) (*Config, error) {
	cfg := Default(vaultPath)

	path := filepath.Join(vaultPath, DefaultFileName)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return nil, vmcperrors.ConfigError("reading config file", err).
			WithDetail("path", path)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, vmcperrors.ConfigError("parsing config file", err).
				WithDetail("path", path)
		}
	}
	if cfg.Vault.Path == "" {
		cfg.Vault.Path = vaultPath
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers VAULTMCP_* variables over the file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("VAULTMCP_VAULT"); v != "" {
		c.Vault.Path = v
	}
	if v := os.Getenv("VAULTMCP_STORAGE"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("VAULTMCP_ENCODER"); v != "" {
		c.Encoder.Kind = v
	}
	if v := os.Getenv("VAULTMCP_OLLAMA_HOST"); v != "" {
		c.Encoder.Host = v
	}
	if v := os.Getenv("VAULTMCP_OLLAMA_MODEL"); v != "" {
		c.Encoder.Model = v
	}
	if v := os.Getenv("VAULTMCP_RERANKER_ENDPOINT"); v != "" {
		c.Reranker.Endpoint = v
	}
	if v := os.Getenv("VAULTMCP_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("VAULTMCP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("VAULTMCP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// normalize fills derived defaults and validates.
func (c *Config) normalize() error {
	if strings.TrimSpace(c.Vault.Path) == "" {
		return vmcperrors.ConfigError("vault path is required", nil).
			WithSuggestion("set vault.path or VAULTMCP_VAULT")
	}
	abs, err := filepath.Abs(c.Vault.Path)
	if err != nil {
		return vmcperrors.ConfigError("resolving vault path", err)
	}
	c.Vault.Path = abs

	if c.Storage.Dir == "" {
		c.Storage.Dir = filepath.Join(c.Vault.Path, StorageDirName)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return vmcperrors.ConfigError("server port out of range", nil).
			WithDetail("port", strconv.Itoa(c.Server.Port))
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkSize < 0 {
		return vmcperrors.ConfigError("chunk parameters must be non-negative", nil)
	}
	if c.Index.ChunkSize > 0 && c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return vmcperrors.ConfigError("chunk overlap must be smaller than chunk size", nil)
	}
	return nil
}

// ProfileRegistry builds the profile registry with custom profiles loaded.
func (c *Config) ProfileRegistry() (*profile.Registry, error) {
	reg := profile.NewRegistry()
	if err := reg.LoadCustom(c.Profiles); err != nil {
		return nil, err
	}
	return reg, nil
}
