package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	DatabaseURL string

	LLMProvider          string
	LLMModel             string
	LLMTimeout           time.Duration
	LLMProxyURL          string
	LLMProxyTokenURL     string
	LLMProxyClientID     string
	LLMProxyClientSecret string
	LLMProxyScopes       []string
	GeminiAPIKey         string
	GeminiBaseURL        string

	StreamEnabled  bool
	StreamDeadline time.Duration

	SubmissionsQueueURL   string
	RecommendLimit        int
	WorkerConcurrency     int
	WorkerVisibility      time.Duration
	WorkerShutdownTimeout time.Duration

	ModelRatePerSecond float64
	ModelBurst         int

	LogJSON  bool
	LogDebug bool
}

var defaults = map[string]any{
	"PORT":                      "8080",
	"ENV":                       "dev",
	"CORS_ALLOW_ORIGINS":        "http://localhost:5173",
	"OBJECT_STORE":              "local",
	"LOCAL_STORE_DIR":           "./data",
	"LLM_PROVIDER":              "proxy",
	"LLM_TIMEOUT":               "120s",
	"STREAM_ENABLED":            true,
	"STREAM_DEADLINE":           "45s",
	"RECOMMEND_LIMIT":           5,
	"WORKER_CONCURRENCY":        4,
	"SQS_VISIBILITY_TIMEOUT":    "120s",
	"WORKER_SHUTDOWN_TIMEOUT":   "30s",
	"MODEL_RATE_PER_SEC":        0.5,
	"MODEL_BURST":               5,
	"LOG_JSON":                  true,
	"LOG_DEBUG":                 false,
	"LLM_PROXY_SCOPES":          "",
	"AWS_REGION":                "",
	"S3_BUCKET":                 "",
	"S3_PREFIX":                 "",
	"SSE_KMS_KEY_ID":            "",
	"DATABASE_URL":              "",
	"LLM_MODEL":                 "",
	"LLM_PROXY_URL":             "",
	"LLM_PROXY_TOKEN_URL":       "",
	"LLM_PROXY_CLIENT_ID":       "",
	"LLM_PROXY_CLIENT_SECRET":   "",
	"GEMINI_API_KEY":            "",
	"GEMINI_BASE_URL":           "",
	"SUBMISSIONS_SQS_QUEUE_URL": "",
}

// NewViper builds the layered source: defaults, then an optional config file,
// then environment variables. Local .env files are loaded into the
// environment first for dev convenience.
func NewViper(configFile string) (*viper.Viper, error) {
	loadEnvFiles(".env", "cmd/.env")

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load reads configuration from v. A nil v reads the environment only.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		var err error
		if v, err = NewViper(""); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		Port:            v.GetString("PORT"),
		Env:             normalizeEnv(v.GetString("ENV")),
		CORSAllowOrigin: splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),

		ObjectStoreType: normalizeStoreType(v.GetString("OBJECT_STORE")),
		LocalStoreDir:   v.GetString("LOCAL_STORE_DIR"),
		AWSRegion:       v.GetString("AWS_REGION"),
		S3Bucket:        v.GetString("S3_BUCKET"),
		S3Prefix:        v.GetString("S3_PREFIX"),
		SSEKMSKeyID:     v.GetString("SSE_KMS_KEY_ID"),

		DatabaseURL: strings.TrimSpace(v.GetString("DATABASE_URL")),

		LLMProvider:          normalizeProvider(v.GetString("LLM_PROVIDER")),
		LLMModel:             v.GetString("LLM_MODEL"),
		LLMTimeout:           v.GetDuration("LLM_TIMEOUT"),
		LLMProxyURL:          strings.TrimSpace(v.GetString("LLM_PROXY_URL")),
		LLMProxyTokenURL:     strings.TrimSpace(v.GetString("LLM_PROXY_TOKEN_URL")),
		LLMProxyClientID:     v.GetString("LLM_PROXY_CLIENT_ID"),
		LLMProxyClientSecret: v.GetString("LLM_PROXY_CLIENT_SECRET"),
		LLMProxyScopes:       splitAndTrim(v.GetString("LLM_PROXY_SCOPES")),
		GeminiAPIKey:         v.GetString("GEMINI_API_KEY"),
		GeminiBaseURL:        v.GetString("GEMINI_BASE_URL"),

		StreamEnabled:  v.GetBool("STREAM_ENABLED"),
		StreamDeadline: v.GetDuration("STREAM_DEADLINE"),

		SubmissionsQueueURL: strings.TrimSpace(v.GetString("SUBMISSIONS_SQS_QUEUE_URL")),
		RecommendLimit:      v.GetInt("RECOMMEND_LIMIT"),

		WorkerConcurrency:     v.GetInt("WORKER_CONCURRENCY"),
		WorkerVisibility:      v.GetDuration("SQS_VISIBILITY_TIMEOUT"),
		WorkerShutdownTimeout: v.GetDuration("WORKER_SHUTDOWN_TIMEOUT"),

		ModelRatePerSecond: v.GetFloat64("MODEL_RATE_PER_SEC"),
		ModelBurst:         v.GetInt("MODEL_BURST"),

		LogJSON:  v.GetBool("LOG_JSON"),
		LogDebug: v.GetBool("LOG_DEBUG"),
	}
	return cfg, cfg.Validate()
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch {
	case c.ObjectStoreType == "s3" && strings.TrimSpace(c.S3Bucket) == "":
		return fmt.Errorf("S3_BUCKET is required when OBJECT_STORE=s3")
	case c.LLMProvider == "gemini" && strings.TrimSpace(c.GeminiAPIKey) == "":
		return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
	case c.LLMProxyTokenURL != "" && c.LLMProxyClientID == "":
		return fmt.Errorf("LLM_PROXY_CLIENT_ID is required with LLM_PROXY_TOKEN_URL")
	case c.Env == "production" && c.DatabaseURL == "":
		return fmt.Errorf("DATABASE_URL is required in production")
	case c.StreamDeadline < 0:
		return fmt.Errorf("STREAM_DEADLINE must not be negative")
	}
	return nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "none", "memory":
		return "none"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini":
		return "gemini"
	case "none", "off":
		return "none"
	default:
		return "proxy"
	}
}
