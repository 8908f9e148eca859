package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Chunking.Size != 800 || cfg.Chunking.Overlap != 100 {
		t.Errorf("chunking = %+v, want 800/100", cfg.Chunking)
	}
	if cfg.Conversation.MaxHistory != 2 {
		t.Errorf("MaxHistory = %d, want 2", cfg.Conversation.MaxHistory)
	}
	if cfg.Conversation.MaxToolRounds != 2 {
		t.Errorf("MaxToolRounds = %d, want 2", cfg.Conversation.MaxToolRounds)
	}
	if cfg.Conversation.MaxResults != 5 {
		t.Errorf("MaxResults = %d, want 5", cfg.Conversation.MaxResults)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadYAMLAppliesProviderDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
llm:
  provider: openai
embedding:
  provider: hashing
chunking:
  size: 400
conversation:
  model_timeout: 5s
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("LLM_MODEL", "")
	t.Setenv("EMBEDDING_PROVIDER", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model = %q, want gpt-4o-mini", cfg.LLM.Model)
	}
	if cfg.Chunking.Size != 400 || cfg.Chunking.Overlap != 100 {
		t.Errorf("chunking = %+v", cfg.Chunking)
	}
	if cfg.Conversation.ModelTimeout != 5*time.Second {
		t.Errorf("ModelTimeout = %v, want 5s", cfg.Conversation.ModelTimeout)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "9999")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("Port = %q, want env override 9999", cfg.Port)
	}
}

func TestValidateRejectsBadCombinations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"overlap too large", func(c *AppConfig) { c.Chunking.Overlap = c.Chunking.Size }},
		{"unknown llm", func(c *AppConfig) { c.LLM.Provider = "parrot" }},
		{"unknown embedder", func(c *AppConfig) { c.Embedding.Provider = "parrot" }},
		{"unknown store", func(c *AppConfig) { c.VectorStore.Backend = "parrot" }},
		{"redis without addr", func(c *AppConfig) { c.Session.Backend = "redis"; c.Session.RedisAddr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadKeepsExplicitZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "chunking:\n  overlap: 0\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MAX_TOOL_ROUNDS", "0")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chunking.Overlap != 0 {
		t.Errorf("Overlap = %d, want explicit 0", cfg.Chunking.Overlap)
	}
	if cfg.Conversation.MaxToolRounds != 0 {
		t.Errorf("MaxToolRounds = %d, want explicit 0", cfg.Conversation.MaxToolRounds)
	}
}

func TestLoadNegativeFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "chunking:\n  overlap: -1\nconversation:\n  max_tool_rounds: -3\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MAX_TOOL_ROUNDS", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chunking.Overlap != 100 || cfg.Conversation.MaxToolRounds != 2 {
		t.Errorf("negative values should fall back to defaults, got %d / %d", cfg.Chunking.Overlap, cfg.Conversation.MaxToolRounds)
	}
}
