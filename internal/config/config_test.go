package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"novel-runtime/internal/config"
	"novel-runtime/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults with key from env", func(t *testing.T) {
		t.Setenv("AI_API_KEY", "sk-test")
		t.Setenv("SECRETS_DIR", t.TempDir())

		cfg, err := config.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, []string{"games"}, cfg.GamesDirs)
		assert.Equal(t, config.AIClientOpenAI, cfg.AIClientType)
		assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
		assert.Equal(t, 2, cfg.PrefetchDepth)
		assert.Equal(t, 4, cfg.SliceMinLines)
		assert.Equal(t, 9, cfg.SliceMaxLines)
		assert.Equal(t, "sk-test", cfg.AIAPIKey)
	})

	t.Run("Key from secret file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ai_api_key"), []byte("sk-secret\n"), 0o600))
		t.Setenv("AI_API_KEY", "")
		t.Setenv("SECRETS_DIR", dir)

		cfg, err := config.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "sk-secret", cfg.AIAPIKey)
	})

	t.Run("Missing credentials for openai", func(t *testing.T) {
		t.Setenv("AI_API_KEY", "")
		t.Setenv("SECRETS_DIR", t.TempDir())

		_, err := config.LoadConfig()
		require.ErrorIs(t, err, models.ErrMissingCredentials)
	})

	t.Run("Ollama needs no key", func(t *testing.T) {
		t.Setenv("AI_API_KEY", "")
		t.Setenv("SECRETS_DIR", t.TempDir())
		t.Setenv("AI_CLIENT_TYPE", " Ollama ")
		t.Setenv("GAMES_DIRS", "games,/srv/games")

		cfg, err := config.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, config.AIClientOllama, cfg.AIClientType)
		assert.Equal(t, []string{"games", "/srv/games"}, cfg.GamesDirs)
	})
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			AIClientType:        config.AIClientOllama,
			SliceMinLines:       4,
			SliceMaxLines:       9,
			PrefetchConcurrency: 1,
			BootstrapRateLimit:  1,
			GamesDirs:           []string{"games"},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"Unknown client type", func(c *config.Config) { c.AIClientType = "bard" }},
		{"Inverted line window", func(c *config.Config) { c.SliceMinLines, c.SliceMaxLines = 9, 4 }},
		{"Zero concurrency", func(c *config.Config) { c.PrefetchConcurrency = 0 }},
		{"Negative depth", func(c *config.Config) { c.PrefetchDepth = -1 }},
		{"No games dirs", func(c *config.Config) { c.GamesDirs = nil }},
		{"Zero bootstrap rate", func(c *config.Config) { c.BootstrapRateLimit = 0 }},
	}

	base := valid()
	require.NoError(t, base.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
