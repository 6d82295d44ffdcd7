package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithEnvVars(t *testing.T) {
	t.Setenv("ASKME_PORT", "9090")
	t.Setenv("ASKME_DEBUG", "true")
	t.Setenv("ASKME_CORPUS_DIR", "/srv/corpus")
	t.Setenv("ASKME_STATE_BACKEND", "s3")
	t.Setenv("ASKME_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("ASKME_S3_ACCESS_KEY_ID", "key")
	t.Setenv("ASKME_S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("ASKME_S3_PREFIX", "me/")
	t.Setenv("ASKME_OPENAI_API_KEY", "sk-test")
	t.Setenv("ASKME_STALENESS_KEY", "content")
	t.Setenv("ASKME_APPEND_STRATEGY", "delta")
	t.Setenv("ASKME_TRANSCRIBE_PROVIDER", "assemblyai")
	t.Setenv("ASKME_TRANSCRIBE_POLL_INTERVAL", "500ms")
	t.Setenv("ASKME_RESCAN_INTERVAL", "5m")
	t.Setenv("ASKME_WATCH", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "/srv/corpus", cfg.CorpusDir)
	assert.Equal(t, BackendS3, cfg.StateBackend)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, "me/", cfg.S3Prefix)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, StalenessByContent, cfg.StalenessKey)
	assert.Equal(t, AppendDelta, cfg.AppendStrategy)
	assert.Equal(t, TranscribeAssemblyAI, cfg.TranscribeProvider)
	assert.Equal(t, 500*time.Millisecond, cfg.TranscribePollInterval)
	assert.Equal(t, 5*time.Minute, cfg.RescanInterval)
	assert.True(t, cfg.Watch)
	assert.Equal(t, 2*time.Second, cfg.WatchDebounce)
	assert.True(t, cfg.HasS3())
	assert.True(t, cfg.HasStaticS3Credentials())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "data", cfg.CorpusDir)
	assert.Equal(t, BackendDir, cfg.StateBackend)
	assert.Equal(t, "askme-state", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.Equal(t, 10, cfg.RetrieveK)
	assert.Equal(t, StalenessByName, cfg.StalenessKey)
	assert.Equal(t, AppendFull, cfg.AppendStrategy)
	assert.Equal(t, 3*time.Second, cfg.TranscribePollInterval)
	assert.Equal(t, 200, cfg.TranscribeMaxPolls)
	assert.Equal(t, time.Duration(0), cfg.RescanInterval)
	assert.False(t, cfg.HasS3())
}

func TestLoad_InvalidEnumerations(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
		want string
	}{
		{"staleness", "ASKME_STALENESS_KEY", "mtime", "STALENESS_KEY"},
		{"append", "ASKME_APPEND_STRATEGY", "sometimes", "APPEND_STRATEGY"},
		{"backend", "ASKME_STATE_BACKEND", "postgres", "STATE_BACKEND"},
		{"provider", "ASKME_TRANSCRIBE_PROVIDER", "carrier-pigeon", "TRANSCRIBE_PROVIDER"},
		{"overlap", "ASKME_CHUNK_OVERLAP", "500", "CHUNK_OVERLAP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MalformedDuration(t *testing.T) {
	t.Setenv("ASKME_RESCAN_INTERVAL", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to process config")
}

func TestHasOpenAI(t *testing.T) {
	cfg := &Config{OpenAIAPIKey: "sk-test"}
	assert.True(t, cfg.HasOpenAI())

	cfg.OpenAIAPIKey = ""
	assert.False(t, cfg.HasOpenAI())
}

func TestChatFallbacks(t *testing.T) {
	cfg := &Config{OpenAIAPIKey: "sk-openai", OpenAIBaseURL: "http://embed.local/v1"}
	assert.Equal(t, "sk-openai", cfg.ChatKey())
	assert.Equal(t, "http://embed.local/v1", cfg.ChatURL())

	cfg.ChatAPIKey = "gsk-chat"
	cfg.ChatBaseURL = "https://api.groq.com/openai/v1"
	assert.Equal(t, "gsk-chat", cfg.ChatKey())
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.ChatURL())
}

func TestMain(m *testing.M) {
	// Ambient ASKME_ variables would mask the defaults under test.
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, "ASKME_") {
			os.Unsetenv(name)
		}
	}
	os.Exit(m.Run())
}
