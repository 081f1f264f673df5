package profile

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration used to start the service.
type Profile struct {
	// Primary model (cheap or free tier).
	PrimaryProvider string
	PrimaryModel    string
	PrimaryAPIKey   string
	PrimaryBaseURL  string

	// Fallback model (paid, higher reliability).
	FallbackProvider string
	FallbackModel    string
	FallbackAPIKey   string
	FallbackBaseURL  string

	// Attempt policy
	PrimaryAttempts  int
	FallbackAttempts int
	RetryBackoffMs   int
	LLMTimeout       int // per-attempt timeout in seconds

	// Chunking
	ChunkThreshold   int
	ChunkSize        int
	ChunkConcurrency int

	// Gateway middleware
	RateLimitRPS    float64
	RateLimitBurst  int
	CacheBackend    string // none, memory, redis
	CacheCapacity   int
	CacheTTLSeconds int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	PersonalizationDir string
	RedactSensitive    bool

	LogLevel  string
	LogFormat string
	Mode      string
	Addr      string
	Version   string
	Port      int
}

// Provider default configurations.
// Used when the base URL or model is not explicitly set.
var providerDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "meta-llama/llama-3.1-8b-instruct:free",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"dashscope": {
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "qwen-max-latest",
	},
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
	"anthropic": {
		Model: "claude-3-5-haiku-latest",
	},
	"gemini": {
		Model: "gemini-1.5-flash",
	},
}

// IsKnownProvider reports whether provider has registered defaults.
func IsKnownProvider(provider string) bool {
	_, ok := providerDefaults[provider]
	return ok
}

// IsDev reports whether the profile runs outside production.
func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if at least one model backend can be reached.
func (p *Profile) IsAIEnabled() bool {
	return p.PrimaryAPIKey != "" || p.FallbackAPIKey != "" ||
		p.PrimaryProvider == "ollama" || p.FallbackProvider == "ollama"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		slog.Warn("ignoring non-integer environment value", "key", key)
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		slog.Warn("ignoring non-numeric environment value", "key", key)
	}
	return defaultValue
}

// FromEnv loads AI configuration from RECAP_* environment variables.
func (p *Profile) FromEnv() {
	p.PrimaryProvider = normalizeProvider(getEnvOrDefault("RECAP_PRIMARY_PROVIDER", "openrouter"), "openrouter")
	p.PrimaryAPIKey = getEnvOrDefault("RECAP_PRIMARY_API_KEY", "")
	p.PrimaryBaseURL = getEnvOrDefault("RECAP_PRIMARY_BASE_URL", "")
	p.PrimaryModel = getEnvOrDefault("RECAP_PRIMARY_MODEL", "")
	p.PrimaryBaseURL, p.PrimaryModel = applyDefaults(p.PrimaryProvider, p.PrimaryBaseURL, p.PrimaryModel)

	p.FallbackProvider = normalizeProvider(getEnvOrDefault("RECAP_FALLBACK_PROVIDER", "openai"), "openai")
	p.FallbackAPIKey = getEnvOrDefault("RECAP_FALLBACK_API_KEY", "")
	p.FallbackBaseURL = getEnvOrDefault("RECAP_FALLBACK_BASE_URL", "")
	p.FallbackModel = getEnvOrDefault("RECAP_FALLBACK_MODEL", "")
	p.FallbackBaseURL, p.FallbackModel = applyDefaults(p.FallbackProvider, p.FallbackBaseURL, p.FallbackModel)

	p.PrimaryAttempts = getEnvOrDefaultInt("RECAP_PRIMARY_ATTEMPTS", 2)
	p.FallbackAttempts = getEnvOrDefaultInt("RECAP_FALLBACK_ATTEMPTS", 1)
	p.RetryBackoffMs = getEnvOrDefaultInt("RECAP_RETRY_BACKOFF_MS", 1000)
	p.LLMTimeout = getEnvOrDefaultInt("RECAP_LLM_TIMEOUT_SECONDS", 60)

	p.ChunkThreshold = getEnvOrDefaultInt("RECAP_CHUNK_THRESHOLD", 50000)
	p.ChunkSize = getEnvOrDefaultInt("RECAP_CHUNK_SIZE", 40000)
	p.ChunkConcurrency = getEnvOrDefaultInt("RECAP_CHUNK_CONCURRENCY", 1)

	p.RateLimitRPS = getEnvOrDefaultFloat("RECAP_RATE_LIMIT_RPS", 0)
	p.RateLimitBurst = getEnvOrDefaultInt("RECAP_RATE_LIMIT_BURST", 1)
	p.CacheBackend = strings.ToLower(getEnvOrDefault("RECAP_CACHE_BACKEND", "memory"))
	p.CacheCapacity = getEnvOrDefaultInt("RECAP_CACHE_CAPACITY", 256)
	p.CacheTTLSeconds = getEnvOrDefaultInt("RECAP_CACHE_TTL_SECONDS", 600)
	p.RedisAddr = getEnvOrDefault("RECAP_REDIS_ADDR", "localhost:6379")
	p.RedisPassword = getEnvOrDefault("RECAP_REDIS_PASSWORD", "")
	p.RedisDB = getEnvOrDefaultInt("RECAP_REDIS_DB", 0)

	p.PersonalizationDir = getEnvOrDefault("RECAP_PERSONALIZATION_DIR", "")
	p.RedactSensitive = getEnvOrDefault("RECAP_REDACT_SENSITIVE", "false") == "true"
}

func normalizeProvider(provider, fallback string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !IsKnownProvider(provider) {
		slog.Warn("Unknown LLM provider, using default", "provider", provider, "default", fallback)
		return fallback
	}
	return provider
}

func applyDefaults(provider, baseURL, model string) (string, string) {
	defaults, ok := providerDefaults[provider]
	if !ok {
		return baseURL, model
	}
	if baseURL == "" {
		baseURL = defaults.BaseURL
	}
	if model == "" {
		model = defaults.Model
	}
	return baseURL, model
}

// Validate normalizes the mode and checks numeric settings.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Port < 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}
	if p.PrimaryAttempts < 0 || p.FallbackAttempts < 0 {
		return errors.Errorf("attempt counts must be non-negative (primary=%d, fallback=%d)", p.PrimaryAttempts, p.FallbackAttempts)
	}
	if p.PrimaryAttempts+p.FallbackAttempts == 0 {
		slog.Warn("no model attempts configured, every summary will use fallback analysis")
	}
	if p.ChunkSize <= 0 {
		return errors.Errorf("chunk size must be positive, got %d", p.ChunkSize)
	}
	if p.ChunkThreshold < p.ChunkSize {
		return errors.Errorf("chunk threshold %d is below chunk size %d", p.ChunkThreshold, p.ChunkSize)
	}

	switch p.CacheBackend {
	case "", "none", "memory", "redis":
	default:
		return errors.Wrapf(errUnknownCache, "cache backend %q", p.CacheBackend)
	}

	if p.PersonalizationDir != "" {
		if _, err := os.Stat(p.PersonalizationDir); err != nil {
			return errors.Wrapf(err, "unable to access personalization dir %s", p.PersonalizationDir)
		}
	}
	return nil
}

var errUnknownCache = errors.New("unknown cache backend")
