package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "ragline", cfg.Storage.Bucket)
	assert.Equal(t, "textract", cfg.Storage.Small)
	assert.Equal(t, "llm", cfg.Storage.Large)
	assert.Empty(t, cfg.Storage.Path)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "extraction.completed", cfg.Redis.CompletionChannel)
	assert.Equal(t, "recursive", cfg.Chunking.Strategy)
	assert.Equal(t, []ChunkSize{
		{Size: 1000, Overlap: 200, Granularity: "small"},
		{Size: 2000, Overlap: 200, Granularity: "large"},
	}, cfg.Chunking.Sizes)
	assert.Equal(t, 0.3, cfg.Retrieval.Tolerance)
	assert.Equal(t, 20, cfg.Retrieval.PageSize)
	assert.Equal(t, 14*24*time.Hour, cfg.Conversation.Retention)
	assert.Equal(t, 3, cfg.Workflow.MaxAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  path: /var/lib/ragline
  bucket: docs
redis:
  addr: localhost:6379
ai:
  embedding_host: http://gpu:11434
  requests_per_second: 5
chunking:
  strategy: window
  sizes:
    - {size: 500, overlap: 50, granularity: small}
retrieval:
  tolerance: 0.5
extraction:
  poll_fallback: true
  poll_interval: 2s
conversation:
  retention: 48h
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ragline", cfg.Storage.Path)
	assert.Equal(t, "docs", cfg.Storage.Bucket)
	assert.Equal(t, "documents", cfg.Storage.Documents, "unset values get defaults")
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "http://gpu:11434", cfg.AI.GenerativeHost, "generative host follows embedding host")
	assert.Equal(t, 5.0, cfg.AI.RequestsPerSecond)
	assert.Equal(t, "window", cfg.Chunking.Strategy)
	assert.Equal(t, []ChunkSize{{Size: 500, Overlap: 50, Granularity: "small"}}, cfg.Chunking.Sizes)
	assert.Equal(t, 0.5, cfg.Retrieval.Tolerance)
	assert.True(t, cfg.Extraction.PollFallback)
	assert.Equal(t, 2*time.Second, cfg.Extraction.PollInterval)
	assert.Equal(t, 48*time.Hour, cfg.Conversation.Retention)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"syntax":      "storage: [",
		"strategy":    "chunking: {strategy: sentences}",
		"overlap":     "chunking: {sizes: [{size: 100, overlap: 100, granularity: small}]}",
		"granularity": "chunking: {sizes: [{size: 100, overlap: 10, granularity: huge}]}",
		"tolerance":   "retrieval: {tolerance: 2}",
		"max hits":    "retrieval: {max_hits: -1}",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ragline.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvDataDir, "/data")
	t.Setenv(EnvRedisAddr, "redis:6379")
	t.Setenv(EnvAIHost, "http://ai:8080/v1")
	t.Setenv(EnvPoolSize, "8")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.Storage.Path)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "http://ai:8080/v1", cfg.AI.EmbeddingHost)
	assert.Equal(t, "http://ai:8080/v1", cfg.AI.GenerativeHost)
	assert.Equal(t, 8, cfg.Workflow.PoolSize)

	t.Setenv(EnvPoolSize, "many")
	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("RAGLINE_TEST_KEY=from-file\nRAGLINE_TEST_SET=from-file\n"), 0o644))
	t.Setenv("RAGLINE_TEST_SET", "from-env")
	t.Cleanup(func() { os.Unsetenv("RAGLINE_TEST_KEY") })

	require.NoError(t, LoadEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("RAGLINE_TEST_KEY"))
	assert.Equal(t, "from-env", os.Getenv("RAGLINE_TEST_SET"))

	cfg := Default()
	cfg.AI.APIKeyEnv = "RAGLINE_TEST_KEY"
	assert.Equal(t, "from-file", cfg.AI.APIKey())
	cfg.Redis.PasswordEnv = ""
	assert.Empty(t, cfg.Redis.Password())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ragline.yaml")
	cfg := Default()
	cfg.Storage.Path = "/srv/ragline"
	cfg.Watch.Inbox = "/srv/inbox"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
