package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultOverlap       = 100
	defaultMaxToolRounds = 2
)

// LLMConfig selects and configures the completion backend.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // gemini | openai
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // gemini | openai | ollama | hashing
	Model      string `yaml:"model"`
	URL        string `yaml:"url"`
	Dimensions int    `yaml:"dimensions"`
}

// VectorStoreConfig selects the storage backend for both collections.
type VectorStoreConfig struct {
	Backend           string `yaml:"backend"` // memory | chroma
	ChromaURL         string `yaml:"chroma_url"`
	CatalogCollection string `yaml:"catalog_collection"`
	ContentCollection string `yaml:"content_collection"`
	EmbedConcurrency  int    `yaml:"embed_concurrency"`
}

// ChunkingConfig controls how lesson text is split.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// ConversationConfig bounds the tool-calling loop.
type ConversationConfig struct {
	MaxResults    int           `yaml:"max_results"`
	MaxToolRounds int           `yaml:"max_tool_rounds"`
	MaxHistory    int           `yaml:"max_history"`
	ModelTimeout  time.Duration `yaml:"model_timeout"`
	IndexTimeout  time.Duration `yaml:"index_timeout"`
}

// SessionConfig selects where session history lives.
type SessionConfig struct {
	Backend   string        `yaml:"backend"` // memory | redis
	RedisAddr string        `yaml:"redis_addr"`
	RedisTTL  time.Duration `yaml:"redis_ttl"`
}

// DocsConfig points at the directory ingested at startup.
type DocsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// AppConfig is the root configuration.
type AppConfig struct {
	Port             string             `yaml:"port"`
	LogMode          string             `yaml:"log_mode"`
	UnidocLicenseKey string             `yaml:"unidoc_license_key"`
	LLM              LLMConfig          `yaml:"llm"`
	Embedding        EmbeddingConfig    `yaml:"embedding"`
	VectorStore      VectorStoreConfig  `yaml:"vector_store"`
	Chunking         ChunkingConfig     `yaml:"chunking"`
	Conversation     ConversationConfig `yaml:"conversation"`
	Session          SessionConfig      `yaml:"session"`
	Docs             DocsConfig         `yaml:"docs"`
}

// Load reads the YAML file at path (a missing file yields defaults), then
// applies .env and process environment overrides.
func Load(path string) (*AppConfig, error) {
	cfg := seeded()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is specified.
func Default() *AppConfig {
	cfg := seeded()
	applyDefaults(cfg)
	return cfg
}

// seeded presets the fields for which zero is a meaningful setting, so an
// explicit 0 in the file or environment is not mistaken for "unset".
func seeded() *AppConfig {
	return &AppConfig{
		Chunking:     ChunkingConfig{Overlap: defaultOverlap},
		Conversation: ConversationConfig{MaxToolRounds: defaultMaxToolRounds},
	}
}

// Validate rejects combinations that cannot work.
func (c *AppConfig) Validate() error {
	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking overlap (%d) must be smaller than size (%d)", c.Chunking.Overlap, c.Chunking.Size)
	}
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	switch c.Embedding.Provider {
	case "gemini", "openai", "ollama", "hashing":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.VectorStore.Backend {
	case "memory", "chroma":
	default:
		return fmt.Errorf("unknown vector store backend %q", c.VectorStore.Backend)
	}
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.RedisAddr == "" {
			return errors.New("session backend redis requires redis_addr or REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogMode, "LOG_MODE")
	setString(&cfg.UnidocLicenseKey, "UNIDOC_LICENSE_KEY")
	setString(&cfg.Docs.Path, "DOCS_PATH")
	setString(&cfg.VectorStore.ChromaURL, "CHROMA_URL")
	setString(&cfg.Session.RedisAddr, "REDIS_ADDR")
	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.Embedding.Provider, "EMBEDDING_PROVIDER")
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "openai":
			setString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
		default:
			setString(&cfg.LLM.APIKey, "GEMINI_API_KEY")
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_TOOL_ROUNDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Conversation.MaxToolRounds = n
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.LogMode == "" {
		cfg.LogMode = "dev"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "gemini"
	}
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.Model = "gpt-4o-mini"
		default:
			cfg.LLM.Model = "gemini-2.5-flash"
		}
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 800
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "gemini"
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case "openai":
			cfg.Embedding.Model = "text-embedding-3-small"
		case "ollama":
			cfg.Embedding.Model = "nomic-embed-text:v1.5"
		default:
			cfg.Embedding.Model = "text-embedding-004"
		}
	}
	if cfg.Embedding.URL == "" && cfg.Embedding.Provider == "ollama" {
		cfg.Embedding.URL = "http://localhost:11434"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 256
	}
	if cfg.VectorStore.Backend == "" {
		cfg.VectorStore.Backend = "memory"
	}
	if cfg.VectorStore.ChromaURL == "" {
		cfg.VectorStore.ChromaURL = "http://localhost:8000"
	}
	if cfg.VectorStore.CatalogCollection == "" {
		cfg.VectorStore.CatalogCollection = "course_catalog"
	}
	if cfg.VectorStore.ContentCollection == "" {
		cfg.VectorStore.ContentCollection = "course_content"
	}
	if cfg.VectorStore.EmbedConcurrency == 0 {
		cfg.VectorStore.EmbedConcurrency = 4
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 800
	}
	if cfg.Chunking.Overlap < 0 {
		cfg.Chunking.Overlap = defaultOverlap
	}
	if cfg.Conversation.MaxResults == 0 {
		cfg.Conversation.MaxResults = 5
	}
	if cfg.Conversation.MaxToolRounds < 0 {
		cfg.Conversation.MaxToolRounds = defaultMaxToolRounds
	}
	if cfg.Conversation.MaxHistory == 0 {
		cfg.Conversation.MaxHistory = 2
	}
	if cfg.Conversation.ModelTimeout == 0 {
		cfg.Conversation.ModelTimeout = 30 * time.Second
	}
	if cfg.Conversation.IndexTimeout == 0 {
		cfg.Conversation.IndexTimeout = 10 * time.Second
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "memory"
	}
	if cfg.Session.RedisTTL == 0 {
		cfg.Session.RedisTTL = 24 * time.Hour
	}
	if cfg.Docs.Path == "" {
		cfg.Docs.Path = "../docs"
	}
}
