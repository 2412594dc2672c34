package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

type OracleModelConfig struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContextSize int    `json:"context_size"`
}

type OracleConfig struct {
	Delegate   OracleModelConfig `json:"delegate"`
	Judge      OracleModelConfig `json:"judge"`
	Dialogue   OracleModelConfig `json:"dialogue"`
	Summarizer OracleModelConfig `json:"summarizer"`

	TimeoutSeconds int `json:"timeout_seconds"`
	MaxRetries     int `json:"max_retries"`
}

type DialogueConfig struct {
	SummaryTrigger     int `json:"summary_trigger"`      // live message count that triggers summarization
	KeepAfterSummary   int `json:"keep_after_summary"`   // messages retained after pruning
	ContextCompressLen int `json:"context_compress_len"` // retrieved context larger than this gets summarized
}

type RetrievalConfig struct {
	Enabled bool `json:"enabled"`
	Qdrant  struct {
		URL        string `json:"url"`
		Collection string `json:"collection"`
		APIKey     string `json:"api_key"`
	} `json:"qdrant"`
	EmbeddingURL string `json:"embedding_url"`
	TopK         int    `json:"top_k"`
}

type Config struct {
	Server struct {
		Host      string `json:"host"`
		Port      int    `json:"port"`
		Subpath   string `json:"subpath"`
		JWTSecret string `json:"jwtSecret"`
	} `json:"server"`
	Postgres struct {
		DSN string `json:"dsn"`
	} `json:"postgres"`
	Redis struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`
	Oracle    OracleConfig    `json:"oracle"`
	Dialogue  DialogueConfig  `json:"dialogue"`
	Retrieval RetrievalConfig `json:"retrieval"`
	Scenario  struct {
		Path string `json:"path"`
	} `json:"scenario"`
}

var (
	once   sync.Once
	cfg    *Config
	cfgErr error
)

// LoadConfig reads config.json from disk (singleton)
func LoadConfig(path string) (*Config, error) {
	once.Do(func() {
		raw, err := os.ReadFile(path)
		if err != nil {
			cfgErr = fmt.Errorf("failed to read config file: %w", err)
			return
		}
		var c Config
		if err := json.Unmarshal(raw, &c); err != nil {
			cfgErr = fmt.Errorf("invalid config format: %w", err)
			return
		}
		// Minimal validation
		if c.Server.JWTSecret == "" {
			cfgErr = errors.New("jwtSecret must be set in config")
			return
		}
		applyDefaults(&c)
		if c.Dialogue.KeepAfterSummary >= c.Dialogue.SummaryTrigger {
			cfgErr = errors.New("dialogue.keep_after_summary must be smaller than dialogue.summary_trigger")
			return
		}
		cfg = &c
	})
	return cfg, cfgErr
}

func applyDefaults(c *Config) {
	if c.Dialogue.SummaryTrigger == 0 {
		c.Dialogue.SummaryTrigger = 30
	}
	if c.Dialogue.KeepAfterSummary == 0 {
		c.Dialogue.KeepAfterSummary = 5
	}
	if c.Dialogue.ContextCompressLen == 0 {
		c.Dialogue.ContextCompressLen = 4000
	}
	if c.Oracle.TimeoutSeconds == 0 {
		c.Oracle.TimeoutSeconds = 120
	}
	if c.Oracle.MaxRetries == 0 {
		c.Oracle.MaxRetries = 3
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = 3
	}
}

// GetConfig returns the loaded config (must call LoadConfig first)
func GetConfig() *Config {
	return cfg
}

// ResetConfigForTest resets the singleton state (for testing only)
func ResetConfigForTest() {
	once = sync.Once{}
	cfg = nil
	cfgErr = nil
}
