package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the research service.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Search    SearchConfig    `yaml:"search" toml:"search"`
	Fetch     FetchConfig     `yaml:"fetch" toml:"fetch"`
	Chunk     ChunkConfig     `yaml:"chunk" toml:"chunk"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	Store     StoreConfig     `yaml:"store" toml:"store"`
	Cache     CacheConfig     `yaml:"cache" toml:"cache"`
	Rerank    RerankConfig    `yaml:"rerank" toml:"rerank"`
	Retrieve  RetrieveConfig  `yaml:"retrieve" toml:"retrieve"`
	Synthesis SynthesisConfig `yaml:"synthesis" toml:"synthesis"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Addr               string `yaml:"addr" toml:"addr"`
	ReadHeaderTimeoutS int    `yaml:"read_header_timeout_secs" toml:"read_header_timeout_secs"`
}

// SearchConfig holds web search configuration.
type SearchConfig struct {
	Provider          string  `yaml:"provider" toml:"provider"` // "tavily"
	BaseURL           string  `yaml:"base_url" toml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env" toml:"api_key_env"`
	Depth             string  `yaml:"depth" toml:"depth"` // "basic" or "advanced"
	MaxResults        int     `yaml:"max_results" toml:"max_results"`
	TimeoutSecs       int     `yaml:"timeout_secs" toml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
}

// FetchConfig holds page download configuration.
type FetchConfig struct {
	UserAgent         string   `yaml:"user_agent" toml:"user_agent"`
	TimeoutSecs       int      `yaml:"timeout_secs" toml:"timeout_secs"`
	MaxBodyBytes      int64    `yaml:"max_body_bytes" toml:"max_body_bytes"`
	Concurrency       int      `yaml:"concurrency" toml:"concurrency"`
	RequestsPerSecond float64  `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int      `yaml:"burst" toml:"burst"`
	Excludes          []string `yaml:"excludes" toml:"excludes"` // doublestar globs over host+path
}

// ChunkConfig holds text splitting configuration, measured in characters.
type ChunkConfig struct {
	Size    int `yaml:"size" toml:"size"`
	Overlap int `yaml:"overlap" toml:"overlap"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" toml:"provider"` // "ollama", "openai", "hash"
	Model     string `yaml:"model" toml:"model"`
	BaseURL   string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env" toml:"api_key_env"`
	Dimension int    `yaml:"dimension" toml:"dimension"`
	BatchSize int    `yaml:"batch_size" toml:"batch_size"`
}

// StoreConfig selects the corpus store backend.
type StoreConfig struct {
	Backend string `yaml:"backend" toml:"backend"` // "bolt", "sqlite", "memory"
	Path    string `yaml:"path" toml:"path"`
}

// CacheConfig selects the answer cache backend.
type CacheConfig struct {
	Backend    string `yaml:"backend" toml:"backend"` // "memory", "bolt"
	Path       string `yaml:"path" toml:"path"`
	TTLSecs    int    `yaml:"ttl_secs" toml:"ttl_secs"`
	MaxEntries int    `yaml:"max_entries" toml:"max_entries"`
}

// RerankConfig holds cross-encoder configuration.
type RerankConfig struct {
	Provider  string `yaml:"provider" toml:"provider"` // "cohere", "lexical"
	Model     string `yaml:"model" toml:"model"`
	BaseURL   string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env" toml:"api_key_env"`
}

// RetrieveConfig holds the candidate and context sizes.
type RetrieveConfig struct {
	TopK        int `yaml:"top_k" toml:"top_k"`
	ContextSize int `yaml:"context_size" toml:"context_size"`
}

// SynthesisConfig holds generative model configuration.
type SynthesisConfig struct {
	Provider    string `yaml:"provider" toml:"provider"` // "gemini", "ollama"
	Model       string `yaml:"model" toml:"model"`
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" toml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "console" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               ":8000",
			ReadHeaderTimeoutS: 10,
		},
		Search: SearchConfig{
			Provider:          "tavily",
			BaseURL:           "https://api.tavily.com",
			APIKeyEnv:         "TAVILY_API_KEY",
			Depth:             "basic",
			MaxResults:        10,
			TimeoutSecs:       30,
			RequestsPerSecond: 1,
		},
		Fetch: FetchConfig{
			UserAgent:         "research-bot/1.0",
			TimeoutSecs:       15,
			MaxBodyBytes:      5 << 20,
			Concurrency:       4,
			RequestsPerSecond: 8,
			Burst:             4,
			Excludes:          []string{"**/*.pdf", "*youtube.com/**"},
		},
		Chunk: ChunkConfig{
			Size:    1000,
			Overlap: 200,
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "all-minilm",
			BaseURL:   "http://localhost:11434/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 384,
			BatchSize: 100,
		},
		Store: StoreConfig{
			Backend: "bolt",
			Path:    filepath.Join(".research", "corpus.db"),
		},
		Cache: CacheConfig{
			Backend:    "memory",
			Path:       filepath.Join(".research", "cache.db"),
			TTLSecs:    3600,
			MaxEntries: 1000,
		},
		Rerank: RerankConfig{
			Provider:  "lexical",
			Model:     "rerank-english-v3.0",
			BaseURL:   "https://api.cohere.ai",
			APIKeyEnv: "COHERE_API_KEY",
		},
		Retrieve: RetrieveConfig{
			TopK:        25,
			ContextSize: 5,
		},
		Synthesis: SynthesisConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			APIKeyEnv:   "GOOGLE_API_KEY",
			TimeoutSecs: 120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML or TOML file, chosen by extension.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory. It looks for
// research.yaml, research.toml and .research/config.yaml in that order.
func LoadFromDir(dir string) (*Config, error) {
	candidates := []string{
		filepath.Join(dir, "research.yaml"),
		filepath.Join(dir, "research.toml"),
		filepath.Join(dir, ".research", "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML or TOML file, chosen by extension.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(c)
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadEnv loads a .env file from dir into the process environment.
// Variables already set are not overridden. A missing file is not an error.
func LoadEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

// ResolvePath makes a relative data path absolute against dir.
func ResolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
