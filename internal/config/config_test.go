package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "STORE_DRIVER", "CAPTURE_LOCK_TTL", "RUN_MIGRATIONS", "PAYPAL_MODE"} {
		unsetForTest(t, key)
	}

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreMySQL, cfg.StoreDriver)
	assert.Equal(t, "sandbox", cfg.PayPalMode)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, 30*time.Second, cfg.CaptureLockTTL)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	unsetForTest(t, "STORE_DRIVER")
	unsetForTest(t, "CAPTURE_LOCK_TTL")
	t.Setenv("HTTP_ADDR", ":9090")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_DRIVER=memory\nCAPTURE_LOCK_TTL=5s\nHTTP_ADDR=:7070\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("STORE_DRIVER")
		os.Unsetenv("CAPTURE_LOCK_TTL")
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 5*time.Second, cfg.CaptureLockTTL)
	assert.Equal(t, ":9090", cfg.HTTPAddr, "environment wins over file")
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"STORE_DRIVER", "postgres"},
		{"CAPTURE_LOCK_TTL", "soon"},
		{"RUN_MIGRATIONS", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

// unsetForTest clears key for the duration of the test. t.Setenv records
// the previous value so it is restored afterwards.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}
