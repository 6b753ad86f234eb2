package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/wishlist")
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StoragePostgres, cfg.StorageDriver)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, time.Hour, cfg.TokenTTL)
	require.Equal(t, []string{"*"}, cfg.CORSOrigins)
	require.Equal(t, 16, cfg.WSSendBuffer)
	require.Equal(t, 10*time.Second, cfg.WSWriteTimeout)
}

func TestLoadRequiresDatabaseURLForPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("STORAGE_DRIVER", "postgres")

	_, err := Load()
	require.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadMemoryDriverWithoutDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "15")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StorageMemory, cfg.StorageDriver)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	require.Equal(t, 15*time.Minute, cfg.TokenTTL)
}

func TestLoadRejectsUnknownDriverAndMissingSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/wishlist")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("SECRET_KEY", "s3cret")
	_, err := Load()
	require.ErrorContains(t, err, "STORAGE_DRIVER")

	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("SECRET_KEY", "")
	_, err = Load()
	require.ErrorContains(t, err, "SECRET_KEY")
}
