package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("COVE_HOST", "backup.example.com")
	t.Setenv("COVE_TOKEN", "abc123")
	t.Setenv("COVE_VERIFY_SSL", "false")
	t.Setenv("COVE_TIMEOUT", "45")
	t.Setenv("COVE_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "backup.example.com", cfg.Host)
	assert.Equal(t, "abc123", cfg.Token)
	assert.False(t, cfg.VerifySSL)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRequiresHost(t *testing.T) {
	t.Setenv("COVE_HOST", "")
	t.Setenv("COVE_TOKEN", "abc123")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COVE_HOST")
}

func TestLoadRequiresCredentials(t *testing.T) {
	t.Setenv("COVE_HOST", "backup.example.com")
	t.Setenv("COVE_TOKEN", "")
	t.Setenv("COVE_USERNAME", "admin")
	t.Setenv("COVE_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COVE_TOKEN")
}

func TestTimeoutAcceptsGoDurations(t *testing.T) {
	t.Setenv("COVE_HOST", "backup.example.com")
	t.Setenv("COVE_TOKEN", "abc123")
	t.Setenv("COVE_TIMEOUT", "2m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("COVE_HOST", "backup.example.com")
	t.Setenv("COVE_TOKEN", "abc123")
	t.Setenv("COVE_VERIFY_SSL", "definitely")
	t.Setenv("COVE_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.VerifySSL)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
}
