package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func inDir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfigDefaultsAndSecrets(t *testing.T) {
	inDir(t, t.TempDir())
	t.Setenv("EVURA_JWT_SECRET", secret)
	t.Setenv("EVURA_DB_PASSWORD", "pw")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "pw", cfg.Database.Password)
	assert.Equal(t, secret, cfg.JWT.Secret)
	assert.Equal(t, int64(16<<20), cfg.Storage.MaxFileBytes)
	assert.Equal(t, "notifications", cfg.Notification.Channel)
	assert.Equal(t, 24*60*60, int(cfg.JWT.Expiry().Seconds()))
}

func TestLoadConfigFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9000
database:
  driver: memory
mail:
  driver: smtp
  host: smtp.example.com
notification:
  broker: memory
  inline_dispatch: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	inDir(t, dir)
	t.Setenv("EVURA_JWT_SECRET", secret)
	t.Setenv("EVURA_SERVER_PORT", "9100")
	t.Setenv("EVURA_SMTP_PASSWORD", "mailpw")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "smtp.example.com", cfg.Mail.Host)
	assert.Equal(t, "mailpw", cfg.Mail.Password)
	assert.True(t, cfg.Notification.InlineDispatch)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	inDir(t, t.TempDir())
	t.Setenv("EVURA_JWT_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVURA_JWT_SECRET")
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := &Config{
		JWT:          JWTConfig{Secret: "short"},
		Database:     DatabaseConfig{Driver: "mysql"},
		Mail:         MailConfig{Driver: "smtp"},
		Notification: NotificationConfig{Broker: "memory"},
		Storage:      StorageConfig{Dir: "x", MaxFileBytes: 32 << 20},
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"jwt secret", "database.driver", "mail.host", "inline_dispatch", "max_file_bytes", "server.port"} {
		assert.True(t, strings.Contains(msg, want), want)
	}
}
