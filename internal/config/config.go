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

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type CaptureConfig struct {
	Mode           string `yaml:"mode"` // mock, exec
	Command        string `yaml:"command"`
	SampleRate     int    `yaml:"sample_rate"`
	Channels       int    `yaml:"channels"`
	BufferSamples  int    `yaml:"buffer_samples"`
	SegmentSeconds int    `yaml:"segment_seconds"`
	QueueDepth     int    `yaml:"queue_depth"`
}

type VADConfig struct {
	Threshold float64 `yaml:"threshold"`
}

type TranscriberConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Mode      string `yaml:"mode"` // mock, exec
	Command   string `yaml:"command"`
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
	Workers   int    `yaml:"workers"`
}

type TranslatorConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Mode            string  `yaml:"mode"` // mock, openai
	Endpoint        string  `yaml:"endpoint"`
	Model           string  `yaml:"model"`
	TargetLanguage  string  `yaml:"target_language"`
	SourceLanguage  string  `yaml:"source_language"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	MinCallInterval int     `yaml:"min_call_interval_ms"`
	InputRate       float64 `yaml:"input_cost_per_mtok"`
	OutputRate      float64 `yaml:"output_cost_per_mtok"`
}

type DisplayConfig struct {
	Console       bool   `yaml:"console"`
	PublishToBus  bool   `yaml:"publish_to_bus"`
	Subject       string `yaml:"subject"`
	AutoClear     bool   `yaml:"auto_clear"`
	AutoClearMS   int    `yaml:"auto_clear_ms"`
	QueueDepth    int    `yaml:"queue_depth"`
}

type ReportsConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
}

type SecretsConfig struct {
	Dir string `yaml:"dir"`
}

type Config struct {
	RuntimeName string            `yaml:"runtime_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	Capture     CaptureConfig     `yaml:"capture"`
	VAD         VADConfig         `yaml:"vad"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Translator  TranslatorConfig  `yaml:"translator"`
	Display     DisplayConfig     `yaml:"display"`
	Reports     ReportsConfig     `yaml:"reports"`
	Secrets     SecretsConfig     `yaml:"secrets"`
}

func Default() Config {
	return Config{
		RuntimeName: "caption-core",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Capture: CaptureConfig{
			Mode:           "mock",
			SampleRate:     16000,
			Channels:       1,
			BufferSamples:  1024,
			SegmentSeconds: 3,
			QueueDepth:     32,
		},
		VAD: VADConfig{
			Threshold: 150,
		},
		Transcriber: TranscriberConfig{
			Enabled:  false,
			Mode:     "mock",
			Language: "en",
			Workers:  1,
		},
		Translator: TranslatorConfig{
			Enabled:         false,
			Mode:            "mock",
			Endpoint:        "https://api.openai.com",
			Model:           "gpt-4.1-nano",
			TargetLanguage:  "English",
			SourceLanguage:  "en",
			Temperature:     0.3,
			MaxTokens:       200,
			MinCallInterval: 3000,
			InputRate:       0.10,
			OutputRate:      0.40,
		},
		Display: DisplayConfig{
			Console:      true,
			PublishToBus: false,
			Subject:      "caption.display",
			AutoClear:    true,
			AutoClearMS:  5000,
			QueueDepth:   32,
		},
		Reports: ReportsConfig{
			Path:          "./data/caption-sessions.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Secrets: SecretsConfig{
			Dir: "",
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
	overrideString(&cfg.RuntimeName, "CAPTION_RUNTIME_NAME")
	overrideString(&cfg.Environment, "CAPTION_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "CAPTION_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "CAPTION_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "CAPTION_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "CAPTION_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "CAPTION_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "CAPTION_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "CAPTION_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "CAPTION_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "CAPTION_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "CAPTION_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "CAPTION_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "CAPTION_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "CAPTION_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "CAPTION_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "CAPTION_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Capture.Mode, "CAPTION_CAPTURE_MODE")
	overrideString(&cfg.Capture.Command, "CAPTION_CAPTURE_COMMAND")
	overrideInt(&cfg.Capture.SampleRate, "CAPTION_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.Channels, "CAPTION_CAPTURE_CHANNELS")
	overrideInt(&cfg.Capture.BufferSamples, "CAPTION_CAPTURE_BUFFER_SAMPLES")
	overrideInt(&cfg.Capture.SegmentSeconds, "CAPTION_CAPTURE_SEGMENT_SECONDS")
	overrideInt(&cfg.Capture.QueueDepth, "CAPTION_CAPTURE_QUEUE_DEPTH")
	overrideFloat(&cfg.VAD.Threshold, "CAPTION_VAD_THRESHOLD")
	overrideBool(&cfg.Transcriber.Enabled, "CAPTION_TRANSCRIBER_ENABLED")
	overrideString(&cfg.Transcriber.Mode, "CAPTION_TRANSCRIBER_MODE")
	overrideString(&cfg.Transcriber.Command, "CAPTION_TRANSCRIBER_COMMAND")
	overrideString(&cfg.Transcriber.ModelPath, "CAPTION_TRANSCRIBER_MODEL_PATH")
	overrideString(&cfg.Transcriber.Language, "CAPTION_TRANSCRIBER_LANGUAGE")
	overrideInt(&cfg.Transcriber.Workers, "CAPTION_TRANSCRIBER_WORKERS")
	overrideBool(&cfg.Translator.Enabled, "CAPTION_TRANSLATOR_ENABLED")
	overrideString(&cfg.Translator.Mode, "CAPTION_TRANSLATOR_MODE")
	overrideString(&cfg.Translator.Endpoint, "CAPTION_TRANSLATOR_ENDPOINT")
	overrideString(&cfg.Translator.Model, "CAPTION_TRANSLATOR_MODEL")
	overrideString(&cfg.Translator.TargetLanguage, "CAPTION_TRANSLATOR_TARGET_LANGUAGE")
	overrideString(&cfg.Translator.SourceLanguage, "CAPTION_TRANSLATOR_SOURCE_LANGUAGE")
	overrideFloat(&cfg.Translator.Temperature, "CAPTION_TRANSLATOR_TEMPERATURE")
	overrideInt(&cfg.Translator.MaxTokens, "CAPTION_TRANSLATOR_MAX_TOKENS")
	overrideInt(&cfg.Translator.MinCallInterval, "CAPTION_TRANSLATOR_MIN_CALL_INTERVAL_MS")
	overrideFloat(&cfg.Translator.InputRate, "CAPTION_TRANSLATOR_INPUT_COST_PER_MTOK")
	overrideFloat(&cfg.Translator.OutputRate, "CAPTION_TRANSLATOR_OUTPUT_COST_PER_MTOK")
	overrideBool(&cfg.Display.Console, "CAPTION_DISPLAY_CONSOLE")
	overrideBool(&cfg.Display.PublishToBus, "CAPTION_DISPLAY_PUBLISH_TO_BUS")
	overrideString(&cfg.Display.Subject, "CAPTION_DISPLAY_SUBJECT")
	overrideBool(&cfg.Display.AutoClear, "CAPTION_DISPLAY_AUTO_CLEAR")
	overrideInt(&cfg.Display.AutoClearMS, "CAPTION_DISPLAY_AUTO_CLEAR_MS")
	overrideInt(&cfg.Display.QueueDepth, "CAPTION_DISPLAY_QUEUE_DEPTH")
	overrideString(&cfg.Reports.Path, "CAPTION_REPORTS_PATH")
	overrideString(&cfg.Reports.RetentionMode, "CAPTION_REPORTS_RETENTION_MODE")
	overrideInt(&cfg.Reports.RetentionDays, "CAPTION_REPORTS_RETENTION_DAYS")
	overrideInt(&cfg.Reports.MaxSessions, "CAPTION_REPORTS_MAX_SESSIONS")
	overrideString(&cfg.Secrets.Dir, "CAPTION_SECRETS_DIR")
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

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
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

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Capture.Mode {
	case "mock", "exec":
	default:
		return errors.New("capture.mode must be one of mock|exec")
	}
	if cfg.Capture.Mode == "exec" && cfg.Capture.Command == "" {
		return errors.New("capture.command must be set when mode=exec")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if cfg.Capture.Channels != 1 {
		return errors.New("capture.channels must be 1")
	}
	if cfg.Capture.BufferSamples <= 0 {
		return errors.New("capture.buffer_samples must be positive")
	}
	if cfg.Capture.SegmentSeconds <= 0 {
		return errors.New("capture.segment_seconds must be positive")
	}
	if cfg.Capture.QueueDepth <= 0 {
		return errors.New("capture.queue_depth must be positive")
	}
	if cfg.VAD.Threshold < 0 {
		return errors.New("vad.threshold must be >= 0")
	}
	if cfg.Transcriber.Enabled {
		switch cfg.Transcriber.Mode {
		case "mock", "exec":
		default:
			return errors.New("transcriber.mode must be one of mock|exec")
		}
		if cfg.Transcriber.Mode == "exec" && cfg.Transcriber.Command == "" {
			return errors.New("transcriber.command must be set when mode=exec")
		}
		if cfg.Transcriber.Workers <= 0 {
			return errors.New("transcriber.workers must be >= 1")
		}
	}
	if cfg.Translator.Enabled {
		switch cfg.Translator.Mode {
		case "mock", "openai":
		default:
			return errors.New("translator.mode must be one of mock|openai")
		}
		if cfg.Translator.Mode == "openai" && cfg.Translator.Endpoint == "" {
			return errors.New("translator.endpoint must be set when mode=openai")
		}
		if cfg.Translator.MaxTokens < 0 {
			return errors.New("translator.max_tokens must be >= 0")
		}
		if cfg.Translator.MinCallInterval < 0 {
			return errors.New("translator.min_call_interval_ms must be >= 0")
		}
	}
	if cfg.Display.AutoClear && cfg.Display.AutoClearMS <= 0 {
		return errors.New("display.auto_clear_ms must be positive when auto_clear is enabled")
	}
	if cfg.Display.QueueDepth <= 0 {
		return errors.New("display.queue_depth must be positive")
	}
	if cfg.Reports.Path == "" {
		return errors.New("reports.path must not be empty")
	}
	switch cfg.Reports.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("reports.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Reports.RetentionDays < 0 {
		return errors.New("reports.retention_days must be >= 0")
	}
	return nil
}
