package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	req.NoError(err)
	req.Equal("8081", cfg.HTTPPort)
	req.Equal(StorePostgres, cfg.StoreBackend)
	req.Equal(QueueRedis, cfg.QueueBackend)
	req.Equal(12*time.Hour, cfg.SessionTTL)
	req.Equal(400, cfg.QRSize)
	req.NotEqual(cfg.CredentialSigningKey, cfg.SessionSigningKey)
	req.False(cfg.Production())
	req.False(cfg.CloudinaryEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("QUEUE_BACKEND", "memory")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("QR_SIZE", "256")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("CLOUDINARY_API_KEY", "key")
	t.Setenv("CLOUDINARY_API_SECRET", "secret")

	cfg, err := Load()
	req.NoError(err)
	req.True(cfg.Production())
	req.Equal(StoreSQLite, cfg.StoreBackend)
	req.Equal(30*time.Minute, cfg.SessionTTL)
	req.Equal([]string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	req.Equal(256, cfg.QRSize)
	req.True(cfg.CloudinaryEnabled())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SESSION_TTL", "soon")
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() App {
		return App{
			StoreBackend:         StoreMemory,
			QueueBackend:         QueueMemory,
			CredentialSigningKey: "credential-key",
			SessionSigningKey:    "session-key",
			QRSize:               400,
			RateLimitPerMin:      30,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*App)
	}{
		{"empty credential key", func(a *App) { a.CredentialSigningKey = "" }},
		{"empty session key", func(a *App) { a.SessionSigningKey = "" }},
		{"shared keys", func(a *App) { a.SessionSigningKey = a.CredentialSigningKey }},
		{"unknown store", func(a *App) { a.StoreBackend = "mongo" }},
		{"unknown queue", func(a *App) { a.QueueBackend = "kafka" }},
		{"zero qr size", func(a *App) { a.QRSize = 0 }},
		{"negative rate", func(a *App) { a.RateLimitPerMin = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
