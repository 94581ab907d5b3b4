package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port string

	DatabaseURL    string
	KnowledgeTable string

	OpenWeatherBaseURL string
	OpenWeatherGeoURL  string
	OpenWeatherAPIKey  string
	OpenWeatherTimeout time.Duration
	OpenWeatherRate    float64
	OpenWeatherBurst   int
	ForecastDays       int

	OllamaURL          string
	GenerationModel    string
	EmbeddingModel     string
	EmbeddingDim       int
	GenerationTimeout  time.Duration
	GenerationMaxToken int

	RetrievalTopK   int
	ConfidenceFloor float64

	BatchWorkers       int
	FetchTimeout       time.Duration
	ValidateTimeout    time.Duration
	AnalyzeTimeout     time.Duration
	SynthesizeTimeout  time.Duration
	RetryBackoff       time.Duration
	InsightCacheTTL    time.Duration
	InsightCacheSize   int
	ReportTimezone     string
	WatchLocations     []string
	RefreshSchedule    string
	OTLPEndpoint       string
	LogLevel           string
}

const maxBatchWorkers = 10

func Load() *Config {
	workers := getEnvInt("BATCH_WORKERS", 5)
	if workers < 1 {
		workers = 1
	}
	if workers > maxBatchWorkers {
		workers = maxBatchWorkers
	}

	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8000"),

		DatabaseURL:    getSecret("DATABASE_URL", "DATABASE_URL_FILE", ""),
		KnowledgeTable: getEnv("KNOWLEDGE_TABLE", "weather_knowledge"),

		OpenWeatherBaseURL: getEnv("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
		OpenWeatherGeoURL:  getEnvWithAlt("OPENWEATHER_GEO_URL", "OPENWEATHER_BASE_URL", "http://api.openweathermap.org"),
		OpenWeatherAPIKey:  getSecret("OPENWEATHER_API_KEY", "OPENWEATHER_API_KEY_FILE", ""),
		OpenWeatherTimeout: getEnvDuration("OPENWEATHER_TIMEOUT", 10*time.Second),
		OpenWeatherRate:    getEnvFloat("OPENWEATHER_RATE_LIMIT", 1),
		OpenWeatherBurst:   getEnvInt("OPENWEATHER_BURST", 5),
		ForecastDays:       getEnvInt("FORECAST_DAYS", 5),

		OllamaURL:          getEnv("OLLAMA_URL", "http://localhost:11434"),
		GenerationModel:    getEnv("GENERATION_MODEL", "llama3.1:8b"),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim:       getEnvInt("EMBEDDING_DIM", 768),
		GenerationTimeout:  getEnvDuration("GENERATION_TIMEOUT", 45*time.Second),
		GenerationMaxToken: getEnvInt("GENERATION_MAX_TOKENS", 1024),

		RetrievalTopK:   getEnvInt("RETRIEVAL_TOP_K", 4),
		ConfidenceFloor: getEnvFloat("CONFIDENCE_FLOOR", 0.5),

		BatchWorkers:      workers,
		FetchTimeout:      getEnvDuration("STAGE_TIMEOUT_FETCH", 10*time.Second),
		ValidateTimeout:   getEnvDuration("STAGE_TIMEOUT_VALIDATE", time.Second),
		AnalyzeTimeout:    getEnvDuration("STAGE_TIMEOUT_ANALYZE", time.Second),
		SynthesizeTimeout: getEnvDuration("STAGE_TIMEOUT_SYNTHESIZE", 45*time.Second),
		RetryBackoff:      getEnvDuration("RETRY_BACKOFF", 500*time.Millisecond),
		InsightCacheTTL:   getEnvDuration("INSIGHT_CACHE_TTL", 10*time.Minute),
		InsightCacheSize:  getEnvInt("INSIGHT_CACHE_SIZE", 256),
		ReportTimezone:    getEnv("REPORT_TIMEZONE", "Asia/Manila"),
		WatchLocations:    getEnvList("WATCH_LOCATIONS"),
		RefreshSchedule:   getEnv("REFRESH_SCHEDULE", "@every 30m"),
		OTLPEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvWithAlt(key, altKey, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if value, ok := os.LookupEnv(altKey); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
