package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "access-secret")
	t.Setenv("REFRESH_JWT_SECRET", "refresh-secret")
	t.Setenv("VERIFICATION_TTL", "3600")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3001", cfg.AppPort)
	assert.Equal(t, BackendPostgres, cfg.AccountBackend)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 5, cfg.LoginMaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.LoginWindow)
	assert.True(t, cfg.RateLimitFailOpen)
	assert.Equal(t, "email_verification", cfg.Dispatch.Queue)
	assert.Equal(t, time.Hour, cfg.VerificationTTL())
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 5.0, cfg.HTTPRateLimit)
	assert.Equal(t, 10, cfg.HTTPRateBurst)
}

func TestLoad_VerificationSecretFallsBackToAccessSecret(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "access-secret", cfg.VerificationJWTSecret)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("REFRESH_JWT_SECRET", "refresh-secret")
	t.Setenv("VERIFICATION_TTL", "3600")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_IdenticalSecretsRejected(t *testing.T) {
	setRequired(t)
	t.Setenv("REFRESH_JWT_SECRET", "access-secret")

	_, err := Load()
	assert.ErrorContains(t, err, "must differ")
}

func TestLoad_NonPositiveVerificationTTL(t *testing.T) {
	setRequired(t)
	t.Setenv("VERIFICATION_TTL", "-5")

	_, err := Load()
	assert.ErrorContains(t, err, "VERIFICATION_TTL")
}

func TestLoad_UnknownBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCOUNT_BACKEND", "mongo")

	_, err := Load()
	assert.ErrorContains(t, err, "ACCOUNT_BACKEND")
}

func TestEnvironmentHelpers(t *testing.T) {
	cfg := &Config{AppEnv: "Production", LogLevel: "warn"}
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
}

func TestLoadMailer_WithoutAPISecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("REFRESH_JWT_SECRET", "")
	t.Setenv("VERIFICATION_TTL", "")
	t.Setenv("ACCOUNT_BACKEND", "mongo")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadMailer()
	require.NoError(t, err)
	assert.Equal(t, "email_verification", cfg.Dispatch.Queue)
	assert.Equal(t, 10, cfg.Dispatch.MaxDeliveries)
	assert.Equal(t, "3002", cfg.Dispatch.HealthPort)
	assert.Equal(t, "http://localhost:3001/verify-email", cfg.SMTP.VerifyLinkBaseURL)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadMailer_NegativeDeliveries(t *testing.T) {
	t.Setenv("DISPATCH_MAX_DELIVERIES", "-1")

	_, err := LoadMailer()
	assert.ErrorContains(t, err, "DISPATCH_MAX_DELIVERIES")
}
