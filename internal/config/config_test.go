package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booru-bot/internal/booru"
	"booru-bot/pkg/ratelimiter"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://yande.re", cfg.API.BaseURL)
	assert.True(t, cfg.Filter.FilterNSFW)
	assert.Equal(t, "s", cfg.Filter.NSFWRating)
	assert.Equal(t, int64(10485760), cfg.Limits.MaxFileSize)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, "window", cfg.Limits.RateMode)
	assert.Equal(t, 5, cfg.Limits.RateLimit)
	assert.Equal(t, "随机图片", cfg.Commands.RandomImageKeyword)
	assert.Equal(t, GroupModeAll, cfg.Commands.GroupResponseMode)
	assert.Contains(t, cfg.Messages.Success, "{tag}")
	assert.Nil(t, cfg.API.ProxyURL())
}

func TestLoadWithFileOverrides(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://konachan.test
  proxy: http://127.0.0.1:10809
filter:
  filter_nsfw: false
  nsfw_rating: e+
limits:
  max_file_size: 1048576
  request_timeout_seconds: 10
  rate_mode: cooldown
  cooldown_seconds: 15
commands:
  group_response_mode: white
  white_list_groups: [100, 200]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://konachan.test", cfg.API.BaseURL)
	require.NotNil(t, cfg.API.ProxyURL())
	assert.Equal(t, "http://127.0.0.1:10809", cfg.API.ProxyURL().String())
	assert.Equal(t, []int64{100, 200}, cfg.Commands.WhiteListGroups)

	opts := cfg.LimiterOpts()
	assert.Equal(t, ratelimiter.PolicyCooldown, opts.Policy)
	assert.Equal(t, 15*time.Second, opts.Cooldown)
}

func TestEffectiveRating(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, booru.RatingSafe, cfg.EffectiveRating())

	cfg.Filter.FilterNSFW = false
	assert.Equal(t, booru.RatingAll, cfg.EffectiveRating())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad rating",
			yaml: "filter:\n  nsfw_rating: x\n",
			want: "nsfw_rating",
		},
		{
			name: "bad rate mode",
			yaml: "limits:\n  rate_mode: turbo\n",
			want: "rate_mode",
		},
		{
			name: "bad group mode",
			yaml: "commands:\n  group_response_mode: grey\n",
			want: "group_response_mode",
		},
		{
			name: "zero file size",
			yaml: "limits:\n  max_file_size: 0\n",
			want: "max_file_size",
		},
		{
			name: "zero timeout",
			yaml: "limits:\n  request_timeout_seconds: 0\n",
			want: "request_timeout_seconds",
		},
		{
			name: "zero rate limit in window mode",
			yaml: "limits:\n  rate_limit: 0\n",
			want: "rate_limit",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
