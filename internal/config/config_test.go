package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultAPIBaseURL, cfg.APIBaseURL)
	assert.Equal(t, 15*time.Second, cfg.Notifications.InitialDelay)
	assert.True(t, cfg.Notifications.Enabled)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("api_base_url: https://civic.example.org/api/\nlog_level: LOUD\nsession:\n  notice_delay: 5s\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://civic.example.org/api/", cfg.APIBaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Session.NoticeDelay)
	assert.Equal(t, defaultMaxDaily, cfg.Notifications.MaxDaily)
	assert.Equal(t, defaultPoll, cfg.Notifications.Poll)
	assert.True(t, cfg.Notifications.Enabled, "a file without a notifications section keeps them on")
}

func TestLoadNotificationsSwitch(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"section without enabled", "notifications:\n  poll: 1m\n", true},
		{"explicitly disabled", "notifications:\n  enabled: false\n", false},
		{"explicitly enabled", "notifications:\n  enabled: true\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Notifications.Enabled)
		})
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad scheme", "api_base_url: ftp://example.org/\n"},
		{"bad timezone", "timezone: Mars/Olympus\n"},
		{"bad yaml", "api_base_url: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))

			_, err := Load(path)
			var cfgErr *Error
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, path, cfgErr.Path)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Timezone = "America/Toronto"
	cfg.Notifications.Poll = time.Minute
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "America/Toronto", loaded.Location().String())
	assert.Equal(t, time.Minute, loaded.Notifications.Poll)
	assert.Equal(t, filepath.Join(loaded.DataDir, "reminders.json"), loaded.RemindersPath())
}
