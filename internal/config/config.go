// Package config loads and validates bot configuration via Viper.
//
// Illegal values fail startup instead of silently falling back to defaults,
// so a typo in nsfw_rating cannot quietly disable the content filter.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"booru-bot/internal/booru"
	"booru-bot/pkg/ratelimiter"
)

// Group response modes.
const (
	GroupModeAll   = "all"
	GroupModeWhite = "white"
	GroupModeBlack = "black"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	API      APIConfig      `mapstructure:"api"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Commands CommandsConfig `mapstructure:"commands"`
	Messages MessagesConfig `mapstructure:"messages"`
}

// BotConfig controls process-level behavior.
type BotConfig struct {
	Development bool `mapstructure:"development"`
	Debug       bool `mapstructure:"debug"`
}

// APIConfig points at the remote catalog.
type APIConfig struct {
	BaseURL          string  `mapstructure:"base_url"`
	UserAgent        string  `mapstructure:"user_agent"`
	Proxy            string  `mapstructure:"proxy"`
	QueriesPerSecond float64 `mapstructure:"queries_per_second"`

	proxyURL *url.URL
}

// ProxyURL returns the parsed proxy, or nil when none is configured.
// Only meaningful after Validate.
func (a APIConfig) ProxyURL() *url.URL { return a.proxyURL }

// FilterConfig governs the content-rating filter.
type FilterConfig struct {
	FilterNSFW bool   `mapstructure:"filter_nsfw"`
	NSFWRating string `mapstructure:"nsfw_rating"`
}

// LimitsConfig bounds request cost and frequency.
type LimitsConfig struct {
	MaxFileSize           int64  `mapstructure:"max_file_size"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	RateMode              string `mapstructure:"rate_mode"`
	RateLimit             int    `mapstructure:"rate_limit"`
	CooldownSeconds       int    `mapstructure:"cooldown_seconds"`
}

// CommandsConfig controls inbound event matching.
type CommandsConfig struct {
	RandomImageKeyword string  `mapstructure:"random_image_keyword"`
	GroupResponseMode  string  `mapstructure:"group_response_mode"`
	WhiteListGroups    []int64 `mapstructure:"white_list_groups"`
	BlackListGroups    []int64 `mapstructure:"black_list_groups"`
}

// MessagesConfig holds user-facing templates; {tag} and {seconds} are
// substituted at send time.
type MessagesConfig struct {
	ShowImageInfo    bool   `mapstructure:"show_image_info"`
	ShowSafeModeMark bool   `mapstructure:"show_safe_mode_mark"`
	Success          string `mapstructure:"success"`
	Error            string `mapstructure:"error"`
	NotFound         string `mapstructure:"not_found"`
	RateLimited      string `mapstructure:"rate_limited"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOORU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.development", true)
	v.SetDefault("bot.debug", false)
	v.SetDefault("api.base_url", "https://yande.re")
	v.SetDefault("api.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	v.SetDefault("api.queries_per_second", 2)
	v.SetDefault("filter.filter_nsfw", true)
	v.SetDefault("filter.nsfw_rating", "s")
	v.SetDefault("limits.max_file_size", 10485760)
	v.SetDefault("limits.request_timeout_seconds", 30)
	v.SetDefault("limits.rate_mode", "window")
	v.SetDefault("limits.rate_limit", 5)
	v.SetDefault("limits.cooldown_seconds", 60)
	v.SetDefault("commands.random_image_keyword", "随机图片")
	v.SetDefault("commands.group_response_mode", "all")
	v.SetDefault("messages.show_image_info", true)
	v.SetDefault("messages.show_safe_mode_mark", true)
	v.SetDefault("messages.success", "为您找到关于{tag}的图片")
	v.SetDefault("messages.error", "抱歉，未找到相关图片")
	v.SetDefault("messages.not_found", "未能找到任何图片")
	v.SetDefault("messages.rate_limited", "请求太频繁，请{seconds}秒后再试")
}

// Validate enforces required values and enumerated legal values.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must be set")
	}
	if _, err := url.Parse(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if c.API.Proxy != "" {
		proxyURL, err := url.Parse(c.API.Proxy)
		if err != nil {
			return fmt.Errorf("api.proxy: %w", err)
		}
		c.API.proxyURL = proxyURL
	}

	if !booru.Rating(c.Filter.NSFWRating).Valid() {
		return fmt.Errorf("filter.nsfw_rating must be one of s, q, e, e+; got %q", c.Filter.NSFWRating)
	}

	if c.Limits.MaxFileSize <= 0 {
		return fmt.Errorf("limits.max_file_size must be > 0")
	}
	if c.Limits.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("limits.request_timeout_seconds must be > 0")
	}
	switch c.Limits.RateMode {
	case string(ratelimiter.PolicyWindow):
		if c.Limits.RateLimit <= 0 {
			return fmt.Errorf("limits.rate_limit must be > 0 in window mode")
		}
	case string(ratelimiter.PolicyCooldown):
		if c.Limits.CooldownSeconds <= 0 {
			return fmt.Errorf("limits.cooldown_seconds must be > 0 in cooldown mode")
		}
	default:
		return fmt.Errorf("limits.rate_mode must be window or cooldown; got %q", c.Limits.RateMode)
	}

	switch c.Commands.GroupResponseMode {
	case GroupModeAll, GroupModeWhite, GroupModeBlack:
	default:
		return fmt.Errorf("commands.group_response_mode must be all, white or black; got %q", c.Commands.GroupResponseMode)
	}
	if c.Commands.RandomImageKeyword == "" {
		return fmt.Errorf("commands.random_image_keyword must be set")
	}

	return nil
}

// RequestTimeout converts the per-call timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Limits.RequestTimeoutSeconds) * time.Second
}

// EffectiveRating derives the query filter tier for this deployment.
func (c Config) EffectiveRating() booru.Rating {
	if !c.Filter.FilterNSFW {
		return booru.RatingAll
	}
	return booru.Rating(c.Filter.NSFWRating)
}

// LimiterOpts maps the rate section onto the limiter's options.
func (c Config) LimiterOpts() ratelimiter.Opts {
	return ratelimiter.Opts{
		Policy:   ratelimiter.Policy(c.Limits.RateMode),
		Limit:    c.Limits.RateLimit,
		Cooldown: time.Duration(c.Limits.CooldownSeconds) * time.Second,
	}
}
