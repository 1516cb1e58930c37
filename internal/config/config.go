// Package config loads detector settings from defaults, an optional TOML or
// YAML file and the environment, in that order.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Model     ModelConfig     `toml:"model" yaml:"model" json:"model"`
	Detect    DetectConfig    `toml:"detect" yaml:"detect" json:"detect"`
	Corpus    CorpusConfig    `toml:"corpus" yaml:"corpus" json:"corpus"`
	Database  DatabaseConfig  `toml:"database" yaml:"database" json:"database"`
	Relay     RelayConfig     `toml:"relay" yaml:"relay" json:"relay"`
	Telemetry TelemetryConfig `toml:"telemetry" yaml:"telemetry" json:"telemetry"`
	Log       LogConfig       `toml:"log" yaml:"log" json:"log"`
}

// ModelConfig addresses the model endpoints, either the relay or the
// upstream provider directly.
type ModelConfig struct {
	BaseURL          string  `toml:"base_url" yaml:"base_url" json:"base_url"`
	APIKey           string  `toml:"api_key" yaml:"api_key" json:"api_key"`
	ID               string  `toml:"id" yaml:"id" json:"id"`
	PerplexityAction string  `toml:"perplexity_action" yaml:"perplexity_action" json:"perplexity_action"`
	JudgeAction      string  `toml:"judge_action" yaml:"judge_action" json:"judge_action"`
	EmbeddingAction  string  `toml:"embedding_action" yaml:"embedding_action" json:"embedding_action"`
	TimeoutMs        int     `toml:"timeout_ms" yaml:"timeout_ms" json:"timeout_ms"`
	RatePerSecond    float64 `toml:"rate_per_second" yaml:"rate_per_second" json:"rate_per_second"`
	Burst            int     `toml:"burst" yaml:"burst" json:"burst"`
}

func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutMs) * time.Millisecond
}

type DetectConfig struct {
	TopN int `toml:"top_n" yaml:"top_n" json:"top_n"`
	// LocalEmbedding replaces the embedding endpoint with the low-fidelity
	// frequency vector.
	LocalEmbedding    bool   `toml:"local_embedding" yaml:"local_embedding" json:"local_embedding"`
	EmbeddingDim      int    `toml:"embedding_dim" yaml:"embedding_dim" json:"embedding_dim"`
	EmbeddingCache    int    `toml:"embedding_cache" yaml:"embedding_cache" json:"embedding_cache"`
	PerplexityWorkers int    `toml:"perplexity_workers" yaml:"perplexity_workers" json:"perplexity_workers"`
	SegmentMode       string `toml:"segment_mode" yaml:"segment_mode" json:"segment_mode"`
	WindowWords       int    `toml:"window_words" yaml:"window_words" json:"window_words"`
	OverlapWords      int    `toml:"overlap_words" yaml:"overlap_words" json:"overlap_words"`
}

type CorpusConfig struct {
	File  string `toml:"file" yaml:"file" json:"file"`
	Watch bool   `toml:"watch" yaml:"watch" json:"watch"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver" yaml:"driver" json:"driver"`
	DSN    string `toml:"dsn" yaml:"dsn" json:"dsn"`
}

type RelayConfig struct {
	Addr     string `toml:"addr" yaml:"addr" json:"addr"`
	Prefix   string `toml:"prefix" yaml:"prefix" json:"prefix"`
	Upstream string `toml:"upstream" yaml:"upstream" json:"upstream"`
	APIKey   string `toml:"api_key" yaml:"api_key" json:"api_key"`
}

type TelemetryConfig struct {
	SentryDSN   string `toml:"sentry_dsn" yaml:"sentry_dsn" json:"sentry_dsn"`
	Environment string `toml:"environment" yaml:"environment" json:"environment"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
}

func Defaults() Config {
	return Config{
		Model: ModelConfig{
			BaseURL:          "http://localhost:5173/api/deepseek",
			ID:               "default",
			PerplexityAction: "perplexity",
			JudgeAction:      "judge",
			EmbeddingAction:  "embedding",
			TimeoutMs:        30000,
			Burst:            1,
		},
		Detect: DetectConfig{
			TopN:              20,
			EmbeddingDim:      50,
			EmbeddingCache:    1024,
			PerplexityWorkers: 1,
			SegmentMode:       "sentence",
			WindowWords:       120,
			OverlapWords:      20,
		},
		Database: DatabaseConfig{Driver: "sqlite"},
		Relay: RelayConfig{
			Addr:   ":5173",
			Prefix: "/api/deepseek",
		},
		Telemetry: TelemetryConfig{Environment: "development"},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultConfig is Defaults with environment overrides applied.
func DefaultConfig() Config {
	cfg := Defaults()
	cfg.ApplyEnv()
	return cfg
}

// Load reads path (TOML, YAML or JSON by extension) over the defaults, then
// applies environment overrides and validates. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

// ApplyEnv overrides fields whose environment variable is set.
func (c *Config) ApplyEnv() {
	c.Model.BaseURL = getenvString("AI_MODEL_BASE_URL", c.Model.BaseURL)
	c.Model.APIKey = getenvString("AI_MODEL_API_KEY", c.Model.APIKey)
	c.Model.ID = getenvString("AI_MODEL_ID", c.Model.ID)
	c.Model.PerplexityAction = getenvString("AI_PERPLEXITY_ACTION", c.Model.PerplexityAction)
	c.Model.JudgeAction = getenvString("AI_JUDGE_ACTION", c.Model.JudgeAction)
	c.Model.EmbeddingAction = getenvString("AI_EMBEDDING_ACTION", c.Model.EmbeddingAction)
	c.Model.TimeoutMs = getenvInt("AI_MODEL_TIMEOUT_MS", c.Model.TimeoutMs)
	c.Model.RatePerSecond = getenvFloat("AI_MODEL_RATE_PER_SECOND", c.Model.RatePerSecond)
	c.Model.Burst = getenvInt("AI_MODEL_BURST", c.Model.Burst)

	c.Detect.TopN = getenvInt("AI_TOP_N", c.Detect.TopN)
	c.Detect.LocalEmbedding = getenvBool("AI_LOCAL_EMBEDDING", c.Detect.LocalEmbedding)
	c.Detect.EmbeddingDim = getenvInt("AI_EMBEDDING_DIM", c.Detect.EmbeddingDim)
	c.Detect.EmbeddingCache = getenvInt("AI_EMBEDDING_CACHE", c.Detect.EmbeddingCache)
	c.Detect.PerplexityWorkers = getenvInt("AI_PERPLEXITY_WORKERS", c.Detect.PerplexityWorkers)
	c.Detect.SegmentMode = getenvString("AI_SEGMENT_MODE", c.Detect.SegmentMode)
	c.Detect.WindowWords = getenvInt("AI_WINDOW_WORDS", c.Detect.WindowWords)
	c.Detect.OverlapWords = getenvInt("AI_OVERLAP_WORDS", c.Detect.OverlapWords)

	c.Corpus.File = getenvString("AI_CORPUS_FILE", c.Corpus.File)
	c.Corpus.Watch = getenvBool("AI_CORPUS_WATCH", c.Corpus.Watch)

	c.Database.Driver = getenvString("AI_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getenvString("AI_DB_DSN", c.Database.DSN)

	if port := getenvString("PORT", ""); port != "" {
		c.Relay.Addr = ":" + port
	}
	c.Relay.Addr = getenvString("AI_LISTEN_ADDR", c.Relay.Addr)
	c.Relay.Upstream = getenvString("DEEPSEEK_BASE_URL", c.Relay.Upstream)
	c.Relay.APIKey = getenvString("DEEPSEEK_API_KEY", c.Relay.APIKey)

	c.Telemetry.SentryDSN = getenvString("SENTRY_DSN", c.Telemetry.SentryDSN)
	c.Telemetry.Environment = getenvString("AI_ENV", c.Telemetry.Environment)

	c.Log.Level = getenvString("AI_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getenvString("AI_LOG_FORMAT", c.Log.Format)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model.BaseURL) == "" && !c.Detect.LocalEmbedding {
		errs = append(errs, errors.New("model.base_url is required"))
	}
	if c.Model.TimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("model.timeout_ms must be positive, got %d", c.Model.TimeoutMs))
	}
	if c.Model.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("model.rate_per_second must not be negative, got %v", c.Model.RatePerSecond))
	}
	if c.Detect.TopN <= 0 {
		errs = append(errs, fmt.Errorf("detect.top_n must be positive, got %d", c.Detect.TopN))
	}
	if c.Detect.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("detect.embedding_dim must be positive, got %d", c.Detect.EmbeddingDim))
	}
	if c.Detect.PerplexityWorkers <= 0 {
		errs = append(errs, fmt.Errorf("detect.perplexity_workers must be positive, got %d", c.Detect.PerplexityWorkers))
	}
	switch c.Detect.SegmentMode {
	case "sentence":
	case "window":
		if c.Detect.WindowWords <= 0 {
			errs = append(errs, fmt.Errorf("detect.window_words must be positive, got %d", c.Detect.WindowWords))
		}
		if c.Detect.OverlapWords < 0 || c.Detect.OverlapWords >= c.Detect.WindowWords {
			errs = append(errs, fmt.Errorf("detect.overlap_words must be in [0, window_words), got %d", c.Detect.OverlapWords))
		}
	default:
		errs = append(errs, fmt.Errorf("detect.segment_mode must be sentence or window, got %q", c.Detect.SegmentMode))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver))
	}
	if c.Database.Driver == "postgres" && strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required for postgres"))
	}
	if !strings.HasPrefix(c.Relay.Prefix, "/") {
		errs = append(errs, fmt.Errorf("relay.prefix must start with /, got %q", c.Relay.Prefix))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func getenvString(name, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return raw
}

func getenvInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getenvFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func getenvBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	return raw == "1" || raw == "true" || raw == "yes" || raw == "on"
}
