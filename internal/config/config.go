package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Text        TextConfig       `yaml:"text"`
	Speech      SpeechConfig     `yaml:"speech"`
	Transcribe  TranscribeConfig `yaml:"transcribe"`
	Cache       CacheConfig      `yaml:"cache"`
	Retry       RetryConfig      `yaml:"retry"`
	JobStore    JobStoreConfig   `yaml:"job_store"`
	Artifacts   ArtifactsConfig  `yaml:"artifacts"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// TextConfig controls the long-form text generation stage.
type TextConfig struct {
	Provider        string  `yaml:"provider"` // mock, anthropic
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	MaxInputTokens  int     `yaml:"max_input_tokens"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	OverlapTokens   int     `yaml:"overlap_tokens"`
	TargetWords     int     `yaml:"target_words"`
	Temperature     float64 `yaml:"temperature"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
}

// SpeechConfig controls the speech synthesis stage.
type SpeechConfig struct {
	Provider        string  `yaml:"provider"` // mock, http, exec
	Endpoint        string  `yaml:"endpoint"`
	APIKey          string  `yaml:"api_key"`
	FolderID        string  `yaml:"folder_id"`
	Command         string  `yaml:"command"`
	Voice           string  `yaml:"voice"`
	Emotion         string  `yaml:"emotion"`
	Speed           float64 `yaml:"speed"`
	Language        string  `yaml:"language"`
	MaxSegmentChars int     `yaml:"max_segment_chars"`
	Parallelism     int     `yaml:"parallelism"`
	BatchPauseMS    int     `yaml:"batch_pause_ms"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
}

type TranscribeConfig struct {
	Mode     string `yaml:"mode"` // mock, exec
	Command  string `yaml:"command"`
	Language string `yaml:"language"`
}

type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Backend  string `yaml:"backend"` // memory, redis
	Capacity int    `yaml:"capacity"`
	RedisURL string `yaml:"redis_url"`
}

type RetryConfig struct {
	MaxAttempts       int `yaml:"max_attempts"`
	MaxElapsedSeconds int `yaml:"max_elapsed_seconds"`
	RateLimitPauseSec int `yaml:"rate_limit_pause_seconds"`
}

type JobStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxJobs       int    `yaml:"max_jobs"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

func Default() Config {
	return Config{
		RuntimeName: "narra-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Text: TextConfig{
			Provider:        "mock",
			Model:           "claude-3-5-sonnet-latest",
			MaxInputTokens:  20000,
			MaxOutputTokens: 4000,
			OverlapTokens:   2000,
			TargetWords:     20000,
			Temperature:     0.7,
			TimeoutSeconds:  120,
		},
		Speech: SpeechConfig{
			Provider:        "mock",
			Voice:           "alena",
			Emotion:         "neutral",
			Speed:           1.0,
			Language:        "ru-RU",
			MaxSegmentChars: 5000,
			Parallelism:     5,
			BatchPauseMS:    3000,
			TimeoutSeconds:  60,
		},
		Transcribe: TranscribeConfig{
			Mode:     "mock",
			Language: "ru",
		},
		Cache: CacheConfig{
			Enabled:  true,
			Backend:  "memory",
			Capacity: 1024,
			RedisURL: "redis://localhost:6379/0",
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			MaxElapsedSeconds: 300,
			RateLimitPauseSec: 60,
		},
		JobStore: JobStoreConfig{
			Path:          "./data/narra-jobs.db",
			RetentionDays: 30,
			MaxJobs:       10000,
		},
		Artifacts: ArtifactsConfig{
			Dir: "./outputs",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "NARRA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "NARRA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "NARRA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "NARRA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "NARRA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "NARRA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "NARRA_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "NARRA_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "NARRA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "NARRA_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "NARRA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "NARRA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "NARRA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "NARRA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "NARRA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "NARRA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Text.Provider, "NARRA_TEXT_PROVIDER")
	overrideString(&cfg.Text.APIKey, "NARRA_TEXT_API_KEY")
	overrideString(&cfg.Text.Model, "NARRA_TEXT_MODEL")
	overrideInt(&cfg.Text.MaxInputTokens, "NARRA_TEXT_MAX_INPUT_TOKENS")
	overrideInt(&cfg.Text.MaxOutputTokens, "NARRA_TEXT_MAX_OUTPUT_TOKENS")
	overrideInt(&cfg.Text.OverlapTokens, "NARRA_TEXT_OVERLAP_TOKENS")
	overrideInt(&cfg.Text.TargetWords, "NARRA_TEXT_TARGET_WORDS")
	overrideFloat(&cfg.Text.Temperature, "NARRA_TEXT_TEMPERATURE")
	overrideInt(&cfg.Text.TimeoutSeconds, "NARRA_TEXT_TIMEOUT_SECONDS")
	overrideString(&cfg.Speech.Provider, "NARRA_SPEECH_PROVIDER")
	overrideString(&cfg.Speech.Endpoint, "NARRA_SPEECH_ENDPOINT")
	overrideString(&cfg.Speech.APIKey, "NARRA_SPEECH_API_KEY")
	overrideString(&cfg.Speech.FolderID, "NARRA_SPEECH_FOLDER_ID")
	overrideString(&cfg.Speech.Command, "NARRA_SPEECH_COMMAND")
	overrideString(&cfg.Speech.Voice, "NARRA_SPEECH_VOICE")
	overrideString(&cfg.Speech.Emotion, "NARRA_SPEECH_EMOTION")
	overrideFloat(&cfg.Speech.Speed, "NARRA_SPEECH_SPEED")
	overrideString(&cfg.Speech.Language, "NARRA_SPEECH_LANGUAGE")
	overrideInt(&cfg.Speech.MaxSegmentChars, "NARRA_SPEECH_MAX_SEGMENT_CHARS")
	overrideInt(&cfg.Speech.Parallelism, "NARRA_SPEECH_PARALLELISM")
	overrideInt(&cfg.Speech.BatchPauseMS, "NARRA_SPEECH_BATCH_PAUSE_MS")
	overrideInt(&cfg.Speech.TimeoutSeconds, "NARRA_SPEECH_TIMEOUT_SECONDS")
	overrideString(&cfg.Transcribe.Mode, "NARRA_TRANSCRIBE_MODE")
	overrideString(&cfg.Transcribe.Command, "NARRA_TRANSCRIBE_COMMAND")
	overrideString(&cfg.Transcribe.Language, "NARRA_TRANSCRIBE_LANGUAGE")
	overrideBool(&cfg.Cache.Enabled, "NARRA_CACHE_ENABLED")
	overrideString(&cfg.Cache.Backend, "NARRA_CACHE_BACKEND")
	overrideInt(&cfg.Cache.Capacity, "NARRA_CACHE_CAPACITY")
	overrideString(&cfg.Cache.RedisURL, "NARRA_CACHE_REDIS_URL")
	overrideInt(&cfg.Retry.MaxAttempts, "NARRA_RETRY_MAX_ATTEMPTS")
	overrideInt(&cfg.Retry.MaxElapsedSeconds, "NARRA_RETRY_MAX_ELAPSED_SECONDS")
	overrideInt(&cfg.Retry.RateLimitPauseSec, "NARRA_RETRY_RATE_LIMIT_PAUSE_SECONDS")
	overrideString(&cfg.JobStore.Path, "NARRA_JOB_STORE_PATH")
	overrideInt(&cfg.JobStore.RetentionDays, "NARRA_JOB_STORE_RETENTION_DAYS")
	overrideInt(&cfg.JobStore.MaxJobs, "NARRA_JOB_STORE_MAX_JOBS")
	overrideBool(&cfg.JobStore.VacuumOnStart, "NARRA_JOB_STORE_VACUUM_ON_START")
	overrideString(&cfg.Artifacts.Dir, "NARRA_ARTIFACTS_DIR")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Text.Provider {
	case "mock", "anthropic":
	default:
		return errors.New("text.provider must be one of mock|anthropic")
	}
	if cfg.Text.Provider == "anthropic" && cfg.Text.APIKey == "" {
		return errors.New("text.api_key must be set when provider=anthropic")
	}
	if cfg.Text.MaxInputTokens <= 0 {
		return errors.New("text.max_input_tokens must be positive")
	}
	if cfg.Text.MaxOutputTokens <= 0 {
		return errors.New("text.max_output_tokens must be positive")
	}
	if cfg.Text.OverlapTokens <= 0 || cfg.Text.OverlapTokens >= cfg.Text.MaxInputTokens {
		return errors.New("text.overlap_tokens must be positive and smaller than max_input_tokens")
	}
	if cfg.Text.TargetWords <= 0 {
		return errors.New("text.target_words must be positive")
	}
	switch cfg.Speech.Provider {
	case "mock", "http", "exec":
	default:
		return errors.New("speech.provider must be one of mock|http|exec")
	}
	if cfg.Speech.Provider == "http" && cfg.Speech.Endpoint == "" {
		return errors.New("speech.endpoint must be set when provider=http")
	}
	if cfg.Speech.Provider == "exec" && cfg.Speech.Command == "" {
		return errors.New("speech.command must be set when provider=exec")
	}
	if cfg.Speech.MaxSegmentChars <= 0 {
		return errors.New("speech.max_segment_chars must be positive")
	}
	if cfg.Speech.Parallelism <= 0 {
		return errors.New("speech.parallelism must be >= 1")
	}
	switch cfg.Transcribe.Mode {
	case "mock", "exec":
	default:
		return errors.New("transcribe.mode must be one of mock|exec")
	}
	if cfg.Transcribe.Mode == "exec" && cfg.Transcribe.Command == "" {
		return errors.New("transcribe.command must be set when mode=exec")
	}
	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		return errors.New("cache.backend must be one of memory|redis")
	}
	if cfg.Cache.Backend == "memory" && cfg.Cache.Capacity <= 0 {
		return errors.New("cache.capacity must be positive for the memory backend")
	}
	if cfg.Cache.Backend == "redis" && cfg.Cache.RedisURL == "" {
		return errors.New("cache.redis_url must be set for the redis backend")
	}
	if cfg.Retry.MaxAttempts <= 0 {
		return errors.New("retry.max_attempts must be >= 1")
	}
	if cfg.Retry.MaxElapsedSeconds <= 0 {
		return errors.New("retry.max_elapsed_seconds must be positive")
	}
	if cfg.JobStore.Path == "" {
		return errors.New("job_store.path must not be empty")
	}
	if cfg.JobStore.RetentionDays < 0 {
		return errors.New("job_store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Artifacts.Dir == "" {
		return errors.New("artifacts.dir must not be empty")
	}
	return nil
}
