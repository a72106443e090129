// Package config loads the application configuration from YAML, with
// secrets and a few overrides taken from the environment or a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvDataDir   = "RAGLINE_DATA_DIR"
	EnvRedisAddr = "RAGLINE_REDIS_ADDR"
	EnvAIHost    = "RAGLINE_AI_HOST"
	EnvPoolSize  = "RAGLINE_POOL_SIZE"
)

// StorageConfig locates the badger database and names its stores.
type StorageConfig struct {
	// Path is the badger directory. Empty keeps everything in memory.
	Path          string `yaml:"path"`
	Bucket        string `yaml:"bucket"`
	Documents     string `yaml:"documents_table"`
	Small         string `yaml:"small_table"`
	Large         string `yaml:"large_table"`
	Conversations string `yaml:"conversations_table"`
}

// RedisConfig configures the notification bus.
type RedisConfig struct {
	// Addr of the Redis server. Empty starts an embedded server.
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	Prefix      string `yaml:"prefix"`
	// CompletionChannel is where extraction jobs report completion.
	CompletionChannel string `yaml:"completion_channel"`
}

// Password reads the Redis password from the configured variable.
func (c RedisConfig) Password() string {
	if c.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.PasswordEnv)
}

// AIConfig configures the inference services.
type AIConfig struct {
	EmbeddingHost     string  `yaml:"embedding_host"`
	GenerativeHost    string  `yaml:"generative_host"`
	EmbeddingModel    string  `yaml:"embedding_model"`
	ExtractionModel   string  `yaml:"extraction_model"`
	ChatModel         string  `yaml:"chat_model"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxTokens         int     `yaml:"max_tokens"`
}

// APIKey reads the API key from the configured variable.
func (c AIConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// ChunkSize is one chunk size and the granularity store it feeds.
type ChunkSize struct {
	Size        int    `yaml:"size"`
	Overlap     int    `yaml:"overlap"`
	Granularity string `yaml:"granularity"`
}

// ChunkingConfig configures the chunker.
type ChunkingConfig struct {
	// Strategy is "window" or "recursive".
	Strategy string      `yaml:"strategy"`
	Sizes    []ChunkSize `yaml:"sizes"`
}

// RetrievalConfig configures the retriever.
type RetrievalConfig struct {
	Tolerance float64 `yaml:"tolerance"`
	PageSize  int     `yaml:"page_size"`
	// MaxHits caps the chunks given to the chat model. Zero passes all.
	MaxHits int `yaml:"max_hits"`
}

// ExtractionConfig configures the text extraction service.
type ExtractionConfig struct {
	// PollFallback waits for jobs by polling instead of completion notifications.
	PollFallback  bool          `yaml:"poll_fallback"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	BlocksPerPage int           `yaml:"blocks_per_page"`
}

// WorkflowConfig configures the workflow engine.
type WorkflowConfig struct {
	PoolSize    int           `yaml:"pool_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	StepTimeout time.Duration `yaml:"step_timeout"`
}

// ConversationConfig configures chat history.
type ConversationConfig struct {
	Retention time.Duration `yaml:"retention"`
}

// WatchConfig configures the inbox watcher.
type WatchConfig struct {
	Inbox       string        `yaml:"inbox"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// ReembedConfig configures the reembed command.
type ReembedConfig struct {
	BatchSize      int           `yaml:"batch_size"`
	ReportInterval int           `yaml:"report_interval"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
}

// AppConfig is the root application configuration.
type AppConfig struct {
	Storage      StorageConfig      `yaml:"storage"`
	Redis        RedisConfig        `yaml:"redis"`
	AI           AIConfig           `yaml:"ai"`
	Chunking     ChunkingConfig     `yaml:"chunking"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Extraction   ExtractionConfig   `yaml:"extraction"`
	Workflow     WorkflowConfig     `yaml:"workflow"`
	Conversation ConversationConfig `yaml:"conversation"`
	Watch        WatchConfig        `yaml:"watch"`
	Reembed      ReembedConfig      `yaml:"reembed"`
}

// Default returns the configuration used when no file exists.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML file at path and fills in defaults. A missing file
// yields the defaults. Environment overrides are applied last.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	applyDefaults(cfg)
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads variables from .env files. Missing files are ignored and
// variables already set in the environment win.
func LoadEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// Save writes cfg as YAML, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func applyDefaults(cfg *AppConfig) {
	s := &cfg.Storage
	s.Bucket = or(s.Bucket, "ragline")
	s.Documents = or(s.Documents, "documents")
	s.Small = or(s.Small, "textract")
	s.Large = or(s.Large, "llm")
	s.Conversations = or(s.Conversations, "conversations")

	cfg.Redis.Prefix = or(cfg.Redis.Prefix, "ragline:")
	cfg.Redis.CompletionChannel = or(cfg.Redis.CompletionChannel, "extraction.completed")

	a := &cfg.AI
	a.EmbeddingHost = or(a.EmbeddingHost, "http://localhost:11434/v1")
	a.GenerativeHost = or(a.GenerativeHost, a.EmbeddingHost)
	a.EmbeddingModel = or(a.EmbeddingModel, "embeddinggemma")
	a.ExtractionModel = or(a.ExtractionModel, "qwen2.5vl:7b")
	a.ChatModel = or(a.ChatModel, "qwen2.5:7b")
	a.APIKeyEnv = or(a.APIKeyEnv, "OPENAI_API_KEY")
	if a.MaxTokens == 0 {
		a.MaxTokens = 4096
	}

	cfg.Chunking.Strategy = or(cfg.Chunking.Strategy, "recursive")
	if len(cfg.Chunking.Sizes) == 0 {
		cfg.Chunking.Sizes = []ChunkSize{
			{Size: 1000, Overlap: 200, Granularity: "small"},
			{Size: 2000, Overlap: 200, Granularity: "large"},
		}
	}

	if cfg.Retrieval.Tolerance == 0 {
		cfg.Retrieval.Tolerance = 0.3
	}
	if cfg.Retrieval.PageSize == 0 {
		cfg.Retrieval.PageSize = 20
	}

	if cfg.Extraction.PollInterval == 0 {
		cfg.Extraction.PollInterval = 5 * time.Second
	}

	w := &cfg.Workflow
	if w.MaxAttempts == 0 {
		w.MaxAttempts = 3
	}
	if w.BaseDelay == 0 {
		w.BaseDelay = time.Second
	}
	if w.MaxDelay == 0 {
		w.MaxDelay = 30 * time.Second
	}
	if w.StepTimeout == 0 {
		w.StepTimeout = 15 * time.Minute
	}

	if cfg.Conversation.Retention == 0 {
		cfg.Conversation.Retention = 14 * 24 * time.Hour
	}

	cfg.Watch.Inbox = or(cfg.Watch.Inbox, "inbox")
	if cfg.Watch.SettleDelay == 0 {
		cfg.Watch.SettleDelay = 500 * time.Millisecond
	}

	r := &cfg.Reembed
	if r.BatchSize == 0 {
		r.BatchSize = 100
	}
	if r.ReportInterval == 0 {
		r.ReportInterval = 100
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 3
	}
	if r.RetryDelay == 0 {
		r.RetryDelay = time.Second
	}
}

func applyEnv(cfg *AppConfig) error {
	if v, ok := os.LookupEnv(EnvDataDir); ok {
		cfg.Storage.Path = v
	}
	if v, ok := os.LookupEnv(EnvRedisAddr); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := os.LookupEnv(EnvAIHost); ok && v != "" {
		cfg.AI.EmbeddingHost = v
		cfg.AI.GenerativeHost = v
	}
	if v, ok := os.LookupEnv(EnvPoolSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPoolSize, err)
		}
		cfg.Workflow.PoolSize = n
	}
	return nil
}

// Validate reports the first setting that can't be used.
func (c *AppConfig) Validate() error {
	switch c.Chunking.Strategy {
	case "window", "recursive":
	default:
		return fmt.Errorf("config: chunking strategy %q must be window or recursive", c.Chunking.Strategy)
	}
	for _, s := range c.Chunking.Sizes {
		if s.Size <= 0 || s.Overlap < 0 || s.Overlap >= s.Size {
			return fmt.Errorf("config: chunk size %d with overlap %d", s.Size, s.Overlap)
		}
		if s.Granularity != "small" && s.Granularity != "large" {
			return fmt.Errorf("config: chunk granularity %q must be small or large", s.Granularity)
		}
	}
	if c.Retrieval.Tolerance < -1 || c.Retrieval.Tolerance > 1 {
		return fmt.Errorf("config: retrieval tolerance %v outside [-1, 1]", c.Retrieval.Tolerance)
	}
	if c.Retrieval.PageSize < 1 || c.Retrieval.MaxHits < 0 {
		return errors.New("config: retrieval page size must be positive and max hits not negative")
	}
	if c.Workflow.PoolSize < 0 || c.Workflow.MaxAttempts < 1 {
		return errors.New("config: workflow pool size must not be negative and max attempts must be positive")
	}
	if c.AI.RequestsPerSecond < 0 {
		return errors.New("config: ai requests per second cannot be negative")
	}
	return nil
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
