package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names the optional YAML file that can supply any of the keys below.
// Environment variables take precedence over the file.
const ConfigFileEnv = "FACTCHECK_CONFIG"

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`
	Timezone string `yaml:"timezone"`

	// Agents service (gRPC health + MCP)
	GRPCAddr string `yaml:"grpc_addr"`
	MCPAddr  string `yaml:"mcp_addr"`

	// Gemini API
	GeminiAPIKey      string `yaml:"gemini_api_key"`
	GeminiAPIEndpoint string `yaml:"gemini_api_endpoint"` // if set, overrides default Gemini API base URL
	GeminiModelFlash  string `yaml:"gemini_model_flash"`
	MaxOutputTokens   int    `yaml:"max_output_tokens"`

	// Sampling temperatures of the extractor, the agent and the verdict parser
	ExtractTemperature float64 `yaml:"extract_temperature"`
	AgentTemperature   float64 `yaml:"agent_temperature"`
	ParseTemperature   float64 `yaml:"parse_temperature"`

	// Web search
	SearchProvider   string  `yaml:"search_provider"` // tavily, duckduckgo or google
	TavilyAPIKey     string  `yaml:"tavily_api_key"`
	SearchMaxResults int     `yaml:"search_max_results"`
	SearchRatePerSec float64 `yaml:"search_rate_per_sec"`
	SearchBurst      int     `yaml:"search_burst"`

	// Agent loop
	AgentMaxSteps    int           `yaml:"agent_max_steps"`
	AgentStepTimeout time.Duration `yaml:"agent_step_timeout"`

	// Upstream calls
	ProviderCallTimeout time.Duration `yaml:"provider_call_timeout"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	RetryAttempts       int           `yaml:"retry_attempts"`
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay       time.Duration `yaml:"retry_max_delay"`

	// Input limits
	MaxInputLength int   `yaml:"max_input_length"`
	MaxBodyBytes   int64 `yaml:"max_body_bytes"`

	// Access
	APIKeyHash         string   `yaml:"api_key_hash"` // bcrypt hash; empty disables API key checks
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// Load loads configuration from environment variables and, when FACTCHECK_CONFIG
// is set, from that YAML file.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if file := os.Getenv(ConfigFileEnv); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	e := env{v: v}
	return &Config{
		HTTPAddr: e.str("HTTP_ADDR", ":8080"),
		LogLevel: e.str("LOG_LEVEL", "info"),
		Timezone: e.str("TZ", "UTC"),

		GRPCAddr: e.str("GRPC_ADDR", ":9090"),
		MCPAddr:  e.str("MCP_ADDR", ":9091"),

		GeminiAPIKey:      e.str("GEMINI_API_KEY", ""),
		GeminiAPIEndpoint: e.str("GEMINI_API_ENDPOINT", ""),
		GeminiModelFlash:  e.str("GEMINI_MODEL_FLASH", "gemini-2.0-flash"),
		MaxOutputTokens:   clampMin(e.int("MAX_OUTPUT_TOKENS", 2000), 1),

		ExtractTemperature: e.float("EXTRACT_TEMPERATURE", 0.7),
		AgentTemperature:   e.float("AGENT_TEMPERATURE", 0.3),
		ParseTemperature:   e.float("PARSE_TEMPERATURE", 0.8),

		SearchProvider:   strings.ToLower(e.str("SEARCH_PROVIDER", "tavily")),
		TavilyAPIKey:     e.str("TAVILY_API_KEY", ""),
		SearchMaxResults: clampMin(e.int("SEARCH_MAX_RESULTS", 5), 1),
		SearchRatePerSec: e.float("SEARCH_RATE_PER_SEC", 2),
		SearchBurst:      clampMin(e.int("SEARCH_BURST", 2), 1),

		AgentMaxSteps:    clampMin(e.int("AGENT_MAX_STEPS", 8), 1),
		AgentStepTimeout: e.duration("AGENT_STEP_TIMEOUT", 60*time.Second),

		ProviderCallTimeout: e.duration("PROVIDER_CALL_TIMEOUT", 30*time.Second),
		RequestTimeout:      e.duration("REQUEST_TIMEOUT", 3*time.Minute),
		RetryAttempts:       clampMin(e.int("RETRY_ATTEMPTS", 3), 1),
		RetryBaseDelay:      e.duration("RETRY_BASE_DELAY", 500*time.Millisecond),
		RetryMaxDelay:       e.duration("RETRY_MAX_DELAY", 5*time.Second),

		MaxInputLength: e.int("MAX_INPUT_LENGTH", 50000),
		MaxBodyBytes:   e.int64("MAX_BODY_BYTES", 1<<20),

		APIKeyHash:         e.str("API_KEY_HASH", ""),
		CORSAllowedOrigins: e.list("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

const redacted = "[redacted]"

// Redacted returns a copy of c with credentials masked, for display.
func (c Config) Redacted() Config {
	for _, secret := range []*string{&c.GeminiAPIKey, &c.TavilyAPIKey, &c.APIKeyHash} {
		if *secret != "" {
			*secret = redacted
		}
	}
	c.CORSAllowedOrigins = append([]string(nil), c.CORSAllowedOrigins...)
	return c
}

// env reads a key from viper (environment first, then config file) with a default.
type env struct {
	v *viper.Viper
}

func (e env) str(key, defaultValue string) string {
	if value := strings.TrimSpace(e.v.GetString(key)); value != "" {
		return value
	}
	return defaultValue
}

func (e env) int(key string, defaultValue int) int {
	if n, err := strconv.Atoi(e.v.GetString(key)); err == nil {
		return n
	}
	return defaultValue
}

func (e env) int64(key string, defaultValue int64) int64 {
	if n, err := strconv.ParseInt(e.v.GetString(key), 10, 64); err == nil {
		return n
	}
	return defaultValue
}

func (e env) float(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(e.v.GetString(key), 64); err == nil {
		return f
	}
	return defaultValue
}

func (e env) duration(key string, defaultValue time.Duration) time.Duration {
	value := e.v.GetString(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

// list accepts a YAML sequence or a comma-separated string.
func (e env) list(key string, defaultValue []string) []string {
	if !e.v.IsSet(key) {
		return defaultValue
	}
	var raw []string
	if s, ok := e.v.Get(key).(string); ok {
		raw = strings.Split(s, ",")
	} else {
		raw = e.v.GetStringSlice(key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// clampMin returns v if v >= min, otherwise min. Used to ensure config values are in valid range.
func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}
