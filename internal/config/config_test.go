package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/escrow/internal/errors"
)

// loadWith runs Load in an empty temp dir with only env set, so neither the developer's
// environment nor a stray .env file leaks in.
func loadWith(t *testing.T, env map[string]string) *Config {
	t.Helper()
	os.Clearenv()
	t.Chdir(t.TempDir())
	for k, v := range env {
		t.Setenv(k, v)
	}
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadWith(t, nil)

	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.ServerShutdownTimeout)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
	assert.Equal(t, 4*time.Hour, cfg.AuthTokenExpiration)
	assert.Equal(t, "keyczar", cfg.CryptoDefaultBackend)
	assert.Equal(t, 100*time.Millisecond, cfg.KMSRetryInitialInterval)
	assert.Equal(t, "example.com", cfg.DefaultEmailDomain)
	assert.Empty(t, cfg.RetrieveAuditAddresses)
	assert.Equal(t, "log", cfg.Notifier)
	assert.Equal(t, 5*time.Second, cfg.OutboxInterval)
	assert.Equal(t, 5, cfg.OutboxMaxRetries)
	assert.Equal(t, 30*time.Second, cfg.OutboxRetryBaseDelay)
	assert.Equal(t, 15*time.Minute, cfg.OutboxRetryMaxDelay)
	assert.Equal(t, "release", cfg.GetGinMode())

	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	cfg := loadWith(t, map[string]string{
		"DB_DRIVER":                               "mysql",
		"DB_CONNECTION_STRING":                    "user:password@tcp(localhost:3306)/escrow",
		"DB_CONN_MAX_LIFETIME":                    "10",
		"LOG_LEVEL":                               "debug",
		"CRYPTO_DEFAULT_BACKEND":                  "envelope_cloud_kms",
		"KMS_KEY_URI_TEMPLATE":                    "awskms://alias/escrow-{key_name}?region=us-east-1",
		"KMS_RETRY_INITIAL_INTERVAL_MILLISECONDS": "250",
		"RETRIEVE_AUDIT_ADDRESSES":                "audit@corp.example.org, security@corp.example.org",
		"SILENT_AUDIT_ADDRESSES":                  "silent@corp.example.org,,",
		"NOTIFIER":                                "log,webhook",
		"NOTIFICATION_WEBHOOK_URL":                "https://hooks.example.com/escrow",
		"OUTBOX_RETRY_BASE_DELAY_SECONDS":         "10",
		"OUTBOX_RETRY_MAX_DELAY_SECONDS":          "60",
	})

	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 10*time.Minute, cfg.DBConnMaxLifetime)
	assert.Equal(t, "debug", cfg.GetGinMode())
	assert.Equal(t, 250*time.Millisecond, cfg.KMSRetryInitialInterval)
	assert.Equal(t, []string{"audit@corp.example.org", "security@corp.example.org"}, cfg.RetrieveAuditAddresses)
	assert.Equal(t, []string{"silent@corp.example.org"}, cfg.SilentAuditAddresses)
	assert.Equal(t, 10*time.Second, cfg.OutboxRetryBaseDelay)
	assert.Equal(t, time.Minute, cfg.OutboxRetryMaxDelay)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_DotEnvFromParentDir(t *testing.T) {
	os.Clearenv()
	root := t.TempDir()
	nested := filepath.Join(root, "cmd", "app")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("SERVER_PORT=9191\nLOG_LEVEL=warn\n"), 0o600))
	t.Chdir(nested)
	t.Setenv("LOG_LEVEL", "error")

	cfg := Load()

	assert.Equal(t, 9191, cfg.ServerPort)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "UnknownDriver", mutate: func(c *Config) { c.DBDriver = "sqlite" }, wantErr: "DBDriver"},
		{name: "PortOutOfRange", mutate: func(c *Config) { c.ServerPort = 70000 }, wantErr: "ServerPort"},
		{name: "UnknownLogLevel", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "LogLevel"},
		{
			name:    "UnknownBackend",
			mutate:  func(c *Config) { c.CryptoDefaultBackend = "rot13" },
			wantErr: "CryptoDefaultBackend",
		},
		{
			name:    "CloudKMSWithoutTemplate",
			mutate:  func(c *Config) { c.CryptoDefaultBackend = "envelope_cloud_kms" },
			wantErr: "KMSKeyURITemplate",
		},
		{
			name:    "TemplateWithoutPlaceholder",
			mutate:  func(c *Config) { c.KMSKeyURITemplate = "gcpkms://projects/p/locations/global/keyRings/r/cryptoKeys/k" },
			wantErr: "must contain {key_name}",
		},
		{name: "UnknownNotifier", mutate: func(c *Config) { c.Notifier = "log,pager" }, wantErr: `unknown notifier "pager"`},
		{
			name:    "WebhookWithoutURL",
			mutate:  func(c *Config) { c.Notifier = "webhook" },
			wantErr: "NotificationWebhookURL",
		},
		{
			name: "RelativeWebhookURL",
			mutate: func(c *Config) {
				c.Notifier = "webhook"
				c.NotificationWebhookURL = "/hooks/escrow"
			},
			wantErr: "must be an absolute http(s) URL",
		},
		{
			name:    "MetricsWithoutPort",
			mutate:  func(c *Config) { c.MetricsPort = 0 },
			wantErr: "MetricsPort",
		},
		{
			name:    "MaxDelayBelowBase",
			mutate:  func(c *Config) { c.OutboxRetryMaxDelay = time.Second },
			wantErr: "OutboxRetryMaxDelay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadWith(t, nil)
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("MetricsDisabledSkipsPort", func(t *testing.T) {
		cfg := loadWith(t, nil)
		cfg.MetricsEnabled = false
		cfg.MetricsPort = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestKeysetData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyset.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"versionNumber":1}]`), 0o600))

	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr string
	}{
		{name: "InlineWins", cfg: Config{KeysetJSON: `[]`, KeysetFile: "/does/not/exist"}, want: `[]`},
		{name: "File", cfg: Config{KeysetFile: path}, want: `[{"versionNumber":1}]`},
		{name: "Unset", cfg: Config{}, wantErr: "neither KEYSET_JSON nor KEYSET_FILE is set"},
		{name: "MissingFile", cfg: Config{KeysetFile: filepath.Join(dir, "nope.json")}, wantErr: "failed to read keyset file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.cfg.KeysetData()
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}
