package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"cs.AI", "cs.CV", "cs.LG"}, cfg.ArXiv.Categories)
	assert.Equal(t, 3, cfg.ArXiv.TopN)
	assert.Equal(t, 5*time.Second, cfg.Publish.Delay)
	assert.Equal(t, "draft", cfg.Publish.Status)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper-relay.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
env = "prod"

[arxiv]
categories = ["cs.CL"]
top_n = 5

[publish]
delay = "2s"
status = "publish"

[wordpress]
endpoint = "https://from-file.example.com"
username = "file-user"
`), 0o644))

	t.Setenv("PAPER_RELAY_ENV", "")
	t.Setenv("WORDPRESS_ENDPOINT", "https://from-env.example.com")
	t.Setenv("WORDPRESS_USERNAME", "")
	t.Setenv("WORDPRESS_APP_PASSWORD", "secret")
	t.Setenv("SKIP_HTML_PARSING", "yes")
	t.Setenv("LEDGER_PATH", "/tmp/posts.db")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, []string{"cs.CL"}, cfg.ArXiv.Categories)
	assert.Equal(t, 5, cfg.ArXiv.TopN)
	assert.Equal(t, 100, cfg.ArXiv.PageSize)
	assert.Equal(t, 2*time.Second, cfg.Publish.Delay)
	assert.Equal(t, "publish", cfg.Publish.Status)
	assert.Equal(t, WordPressConfig{
		Endpoint:    "https://from-env.example.com",
		Username:    "file-user",
		AppPassword: "secret",
	}, cfg.WordPress)
	assert.True(t, cfg.Extract.Skip)
	assert.Equal(t, "/tmp/posts.db", cfg.Ledger.Path)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"page size":  func(c *Config) { c.ArXiv.PageSize = 0 },
		"top n":      func(c *Config) { c.ArXiv.TopN = -1 },
		"categories": func(c *Config) { c.ArXiv.Categories = nil },
		"delay":      func(c *Config) { c.Publish.Delay = -time.Second },
		"status":     func(c *Config) { c.Publish.Status = "private" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestEnvTruthy(t *testing.T) {
	assert.True(t, envTruthy("true"))
	assert.True(t, envTruthy("1"))
	assert.True(t, envTruthy(" YES "))
	assert.False(t, envTruthy("false"))
	assert.False(t, envTruthy("nope"))
}
