package infra

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string `env:"APP_ENV" envDefault:"development"`
	Port           string `env:"PORT" envDefault:"8080"`
	DatabaseURL    string `env:"DATABASE_URL"`
	JWTSecret      string `env:"JWT_SECRET"`
	StorageBaseURL string `env:"STORAGE_BASE_URL"`
	RedisURL       string `env:"REDIS_URL"`
	DefaultLocale  string `env:"DEFAULT_LOCALE" envDefault:"en"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIOrg     string `env:"OPENAI_ORG"`

	LLMTimeoutSeconds   int     `env:"LLM_TIMEOUT_SECONDS" envDefault:"30"`
	LLMMaxTokens        int     `env:"LLM_MAX_TOKENS" envDefault:"500"`
	LLMRetryBackoffMS   int     `env:"LLM_RETRY_BACKOFF_MS" envDefault:"250"`
	FreeTextTemperature float64 `env:"LLM_FREE_TEXT_TEMPERATURE" envDefault:"0.7"`
	LookTemperature     float64 `env:"LLM_LOOK_TEMPERATURE" envDefault:"0.9"`
	LookPenalty         float64 `env:"LLM_LOOK_PENALTY" envDefault:"0.6"`

	ExplicitImageHosts    []string `env:"IMAGE_SOURCE_HOST_ALLOWLIST" envSeparator:","`
	ImageProbeEnabled     bool     `env:"IMAGE_PROBE_ENABLED" envDefault:"true"`
	ImageProbeConcurrency int      `env:"IMAGE_PROBE_CONCURRENCY" envDefault:"4"`
	ImageProbeTimeoutSecs int      `env:"IMAGE_PROBE_TIMEOUT_SECONDS" envDefault:"5"`
	ProbeCacheTTLSeconds  int      `env:"IMAGE_PROBE_CACHE_TTL_SECONDS" envDefault:"600"`

	PromptMaxRunes  int      `env:"PROMPT_MAX_LENGTH" envDefault:"500"`
	PromptDenylist  []string `env:"PROMPT_DENYLIST" envSeparator:","`
	WardrobeMaxItem int      `env:"WARDROBE_MAX_ITEMS" envDefault:"15"`

	HTTPReadTimeoutSeconds  int `env:"HTTP_READ_TIMEOUT_SECONDS" envDefault:"15"`
	HTTPWriteTimeoutSeconds int `env:"HTTP_WRITE_TIMEOUT_SECONDS" envDefault:"60"`
	HTTPIdleTimeoutSeconds  int `env:"HTTP_IDLE_TIMEOUT_SECONDS" envDefault:"60"`
	RateLimitPerMin         int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// ImageSourceAllowlist is derived: the storage host merged with
	// IMAGE_SOURCE_HOST_ALLOWLIST, lower-cased, de-duplicated and sorted.
	ImageSourceAllowlist []string `env:"-"`
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = "8080"
	}
	if strings.TrimSpace(cfg.StorageBaseURL) == "" {
		cfg.StorageBaseURL = fmt.Sprintf("http://localhost:%s/static", cfg.Port)
	}
	cfg.ImageSourceAllowlist = mergeHosts(hostOf(cfg.StorageBaseURL), cfg.ExplicitImageHosts)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// LLMTimeout is the budget for one completion call, independent of the caller's deadline.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

func (c *Config) LLMRetryBackoff() time.Duration {
	return time.Duration(c.LLMRetryBackoffMS) * time.Millisecond
}

func (c *Config) ImageProbeTimeout() time.Duration {
	return time.Duration(c.ImageProbeTimeoutSecs) * time.Second
}

func (c *Config) ProbeCacheTTL() time.Duration {
	return time.Duration(c.ProbeCacheTTLSeconds) * time.Second
}

func (c *Config) HTTPReadTimeout() time.Duration {
	return time.Duration(c.HTTPReadTimeoutSeconds) * time.Second
}

func (c *Config) HTTPWriteTimeout() time.Duration {
	return time.Duration(c.HTTPWriteTimeoutSeconds) * time.Second
}

func (c *Config) HTTPIdleTimeout() time.Duration {
	return time.Duration(c.HTTPIdleTimeoutSeconds) * time.Second
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func mergeHosts(primary string, extra []string) []string {
	seen := make(map[string]struct{})
	var hosts []string
	for _, h := range append([]string{primary}, extra...) {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}
