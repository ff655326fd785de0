package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("VIDEO_POLL_INTERVAL", "")
	t.Setenv("VIDEO_POLL_ATTEMPTS", "")
	t.Setenv("CLAIM_TIMEOUT", "")
	t.Setenv("INSTAGRAM_GRAPH_URL", "")
	t.Setenv("INSTAGRAM_HTTP_TIMEOUT", "")

	cfg := LoadConfig()

	assert.Equal(t, 10*time.Second, cfg.Instagram.PollInterval)
	assert.Equal(t, 30, cfg.Instagram.PollAttempts)
	assert.Equal(t, 30*time.Second, cfg.Instagram.HTTPTimeout)
	assert.Equal(t, 26*time.Minute, cfg.RunTimeout)
	assert.Equal(t, 45*time.Minute, cfg.ClaimTimeout)
	assert.Equal(t, "https://graph.facebook.com/v21.0", cfg.Instagram.GraphURL)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("VIDEO_POLL_INTERVAL", "2s")
	t.Setenv("VIDEO_POLL_ATTEMPTS", "5")
	t.Setenv("SCHEDULER_SECRET", "s3cret")

	cfg := LoadConfig()

	assert.Equal(t, 2*time.Second, cfg.Instagram.PollInterval)
	assert.Equal(t, 5, cfg.Instagram.PollAttempts)
	assert.Equal(t, "s3cret", cfg.SchedulerSecret)
}

func TestLoadConfig_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("VIDEO_POLL_ATTEMPTS", "many")
	t.Setenv("CLAIM_TIMEOUT", "-1m")

	cfg := LoadConfig()

	assert.Equal(t, 30, cfg.Instagram.PollAttempts)
	assert.Equal(t, 45*time.Minute, cfg.ClaimTimeout)
}

func TestLoadConfig_ClaimTimeoutOutlivesRun(t *testing.T) {
	tests := []struct {
		name         string
		claimTimeout string
		want         time.Duration
	}{
		{name: "shorter than a run is raised", claimTimeout: "1m", want: 31 * time.Minute},
		{name: "equal to a run is raised", claimTimeout: "26m", want: 31 * time.Minute},
		{name: "longer than a run is kept", claimTimeout: "2h", want: 2 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("VIDEO_POLL_INTERVAL", "10s")
			t.Setenv("VIDEO_POLL_ATTEMPTS", "30")
			t.Setenv("INSTAGRAM_HTTP_TIMEOUT", "30s")
			t.Setenv("CLAIM_TIMEOUT", tt.claimTimeout)

			cfg := LoadConfig()

			assert.Equal(t, tt.want, cfg.ClaimTimeout)
			assert.Greater(t, cfg.ClaimTimeout, cfg.RunTimeout)
		})
	}
}
