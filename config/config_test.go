package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "wp_", cfg.Database.TablePrefix)
	assert.Equal(t, 5, cfg.Database.MaxRetries)
	assert.Equal(t, 14*24*time.Hour, cfg.JWT.SessionTTL)
	assert.True(t, cfg.Settings.Enabled)
	assert.Equal(t, "error", cfg.Settings.LogLevel)
	assert.Equal(t, 30, cfg.Settings.LogRetentionDays)
	assert.False(t, cfg.Settings.AutoCreateWPUser)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SWPM_BRIDGE_SETTINGS_ENABLED", "false")
	t.Setenv("SWPM_BRIDGE_SETTINGS_DEFAULT_MEMBERSHIP_LEVEL", "4")
	t.Setenv("SWPM_BRIDGE_DATABASE_TABLE_PREFIX", "site2_")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.False(t, cfg.Settings.Enabled)
	assert.Equal(t, "4", cfg.Settings.DefaultMembershipLevel)
	assert.Equal(t, "site2_", cfg.Database.TablePrefix)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("database:\n  dsn: user:pass@tcp(localhost:3306)/wp\njwt:\n  secret: s3cret\nsettings:\n  log_retention_days: 7\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "user:pass@tcp(localhost:3306)/wp", cfg.Database.DSN)
	assert.Equal(t, 7, cfg.Settings.LogRetentionDays)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{JWT: JWTConfig{SessionTTL: time.Hour}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dsn")
	assert.Contains(t, err.Error(), "jwt.secret")
}

func TestLoginURL(t *testing.T) {
	cfg := &Config{Site: SiteConfig{LoginURL: "/wp-login.php"}}
	assert.Equal(t, "/wp-login.php", cfg.LoginURL())

	cfg.Settings.SwpmLoginPageURL = "https://example.com/membership-login/"
	assert.Equal(t, "https://example.com/membership-login/", cfg.LoginURL())
}
