package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quoteajob/quoteajob/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := config.Load("api")
	require.NoError(t, err)

	assert.Equal(t, "api", cfg.RunMode)
	assert.Equal(t, config.StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, "8080", cfg.ApiPort)
	assert.Equal(t, 24*time.Hour, cfg.JwtTTL)
	assert.Equal(t, 5*time.Minute, cfg.WebhookTolerance)
	assert.Equal(t, 48*time.Hour, cfg.EmailVerifyTTL)
}

func TestLoad_MongoRequiresURI(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("MONGO_URI", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := config.Load("api")
	assert.ErrorContains(t, err, "MONGO_URI")
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REDIS_DB", "one")

	_, err := config.Load("api")
	assert.ErrorContains(t, err, "invalid REDIS_DB")
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("JWT_SECRET", "secret")

	_, err := config.Load("api")
	assert.ErrorContains(t, err, "invalid STORE_DRIVER")
}

func TestLoad_EmailTransport(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := config.Load("api")
	require.NoError(t, err)
	assert.Equal(t, config.EmailTransportSMTP, cfg.EmailTransport)
	assert.Equal(t, "*", cfg.CorsAllowedOrigin)

	t.Setenv("EMAIL_TRANSPORT", "ses")
	cfg, err = config.Load("api")
	require.NoError(t, err)
	assert.Equal(t, config.EmailTransportSES, cfg.EmailTransport)

	t.Setenv("EMAIL_TRANSPORT", "pigeon")
	_, err = config.Load("api")
	assert.ErrorContains(t, err, "invalid EMAIL_TRANSPORT")
}
