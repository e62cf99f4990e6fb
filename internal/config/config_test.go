package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hal9000y/gmail-agent/internal/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func clearEnv(t *testing.T) {
	t.Helper()

	for _, k := range []string{config.EnvClientID, config.EnvClientSecret, config.EnvOllamaHost, config.EnvChatModel, config.EnvEmbedModel} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaultsWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvClientID, "id")
	t.Setenv(config.EnvClientSecret, "secret")

	cfg, err := config.Load("", "")
	require.NoError(t, err)

	want := config.Default()
	want.OAuth.ClientID = "id"
	want.OAuth.ClientSecret = "secret"
	assert.Equal(t, want, cfg)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", `
[oauth]
client_id = "file-id"
client_secret = "file-secret"

[llm]
chat_model = "qwen3"
timeout = "45s"

[retrieval]
max_results = 50
query_timeout = "10s"

[decoder]
prefer_plain_text = false
`)

	cfg, err := config.Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "file-id", cfg.OAuth.ClientID)
	assert.Equal(t, "qwen3", cfg.LLM.ChatModel)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 50, cfg.Retrieval.MaxResults)
	assert.Equal(t, 10*time.Second, cfg.Retrieval.QueryTimeout)
	assert.False(t, cfg.Decoder.PreferPlainText)
	// untouched keys keep defaults
	assert.Equal(t, 20, cfg.Retrieval.PageSize)
	assert.Equal(t, "nomic-embed-text", cfg.LLM.EmbedModel)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", `
[oauth]
client_id = "file-id"
client_secret = "file-secret"

[llm]
host = "http://file:11434"
`)
	envFile := writeFile(t, ".env", "GMAIL_AGENT_CHAT_MODEL=from-env-file\n")
	// godotenv never overrides a variable that exists, even when empty
	require.NoError(t, os.Unsetenv(config.EnvChatModel))
	t.Setenv(config.EnvOllamaHost, "http://env:11434")

	cfg, err := config.Load(path, envFile)
	require.NoError(t, err)

	assert.Equal(t, "http://env:11434", cfg.LLM.Host)
	assert.Equal(t, "from-env-file", cfg.LLM.ChatModel)
	assert.Equal(t, "file-id", cfg.OAuth.ClientID)
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		file string
	}{
		{
			name: "missing credentials",
		},
		{
			name: "unknown key",
			file: "[oauth]\nclient_id = \"a\"\nclient_secret = \"b\"\nmystery = 1\n",
		},
		{
			name: "bad number",
			file: "[oauth]\nclient_id = \"a\"\nclient_secret = \"b\"\n[retrieval]\nmax_results = 0\n",
		},
		{
			name: "malformed toml",
			file: "[oauth\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)

			path := ""
			if tc.file != "" {
				path = writeFile(t, "config.toml", tc.file)
			}

			_, err := config.Load(path, "")
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"), "")
		assert.Error(t, err)
	})
}
