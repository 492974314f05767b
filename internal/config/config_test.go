package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "admin", cfg.Auth.Username)
	assert.Equal(t, "movies", cfg.Auth.Password)
	assert.Equal(t, "basic-auth-user", cfg.Auth.UserID)
	assert.Equal(t, "Family Movies", cfg.Auth.Realm)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, 15*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 40, cfg.Chat.HistoryLimit)
	assert.Empty(t, cfg.Webhook.ChatURL)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
webhook:
  chat_url: http://agent.local/chat
  timeout: 5s
storage:
  type: sqlite
  dsn: file:movies.db
`), 0o644))

	t.Setenv("FAMILY_MOVIES_AUTH_USERNAME", "family")
	t.Setenv("N8N_CHAT_WEBHOOK_URL", "http://ignored.local")
	t.Setenv("N8N_BLOCK_RECOMMENDATION_WEBHOOK_URL", "http://agent.local/block")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "family", cfg.Auth.Username)
	assert.Equal(t, "http://agent.local/chat", cfg.Webhook.ChatURL)
	assert.Equal(t, "http://agent.local/block", cfg.Webhook.BlockURL)
	assert.Equal(t, 5*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
}

func TestLegacyAuthEnv(t *testing.T) {
	t.Setenv("BASIC_AUTH_USER", "parent")
	t.Setenv("BASIC_AUTH_PASS", "popcorn")
	t.Setenv("BASIC_AUTH_DEFAULT_EMAIL", "parent@example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "parent", cfg.Auth.Username)
	assert.Equal(t, "popcorn", cfg.Auth.Password)
	assert.Equal(t, "parent@example.com", cfg.Auth.Email)
}

func TestValidateStorage(t *testing.T) {
	t.Setenv("FAMILY_MOVIES_STORAGE_TYPE", "postgres")
	_, err := Load("")
	assert.ErrorContains(t, err, "storage.dsn")

	t.Setenv("FAMILY_MOVIES_STORAGE_TYPE", "etcd")
	_, err = Load("")
	assert.ErrorContains(t, err, "unknown storage.type")
}
