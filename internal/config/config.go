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
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"` // text, json
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	TraceFile    string `yaml:"trace_file"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind"`
	Port    int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	Backend     BackendConfig    `yaml:"backend"`
	Interview   InterviewConfig  `yaml:"interview"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	Results     ResultsConfig    `yaml:"results"`
	STT         STTConfig        `yaml:"stt"`
	TTS         TTSConfig        `yaml:"tts"`
	Devices     DevicesConfig    `yaml:"devices"`
}

type BackendConfig struct {
	URL            string `yaml:"url"`
	TimeoutMS      int    `yaml:"timeout_ms"`
	StartupDelayMS int    `yaml:"startup_delay_ms"`
}

type InterviewConfig struct {
	IntroQuestions int  `yaml:"intro_questions"`
	AdvanceDelayMS int  `yaml:"advance_delay_ms"`
	AutoListen     bool `yaml:"auto_listen"`
	MaxAttempts    int  `yaml:"max_attempts"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type ResultsConfig struct {
	Directory string `yaml:"directory"`
}

type STTConfig struct {
	Mode              string       `yaml:"mode"` // mock, exec, bus
	Command           string       `yaml:"command"`
	ModelPath         string       `yaml:"model_path"`
	Language          string       `yaml:"language"`
	SampleRate        int          `yaml:"sample_rate"`
	Channels          int          `yaml:"channels"`
	FrameDurationMS   int          `yaml:"frame_duration_ms"`
	PartialEveryMS    int          `yaml:"partial_every_ms"`
	PublishInterim    bool         `yaml:"publish_interim"`
	SilenceMS         int          `yaml:"silence_ms"`
	NoSpeechTimeoutMS int          `yaml:"no_speech_timeout_ms"`
	MaxAnswerMS       int          `yaml:"max_answer_ms"`
	EnergyThreshold   float64      `yaml:"energy_threshold"`
	TimeoutMS         int          `yaml:"timeout_ms"`
	Source            SourceConfig `yaml:"source"`
}

type SourceConfig struct {
	Mode     string `yaml:"mode"` // mock, exec, wav
	Command  string `yaml:"command"`
	Path     string `yaml:"path"`
	Realtime bool   `yaml:"realtime"`
}

type TTSConfig struct {
	Mode       string       `yaml:"mode"` // mock, exec, bus
	Command    string       `yaml:"command"`
	Voice      string       `yaml:"voice"`
	SampleRate int          `yaml:"sample_rate"`
	Channels   int          `yaml:"channels"`
	TimeoutMS  int          `yaml:"timeout_ms"`
	Player     PlayerConfig `yaml:"player"`
}

type PlayerConfig struct {
	Mode      string `yaml:"mode"` // discard, exec, wav
	Command   string `yaml:"command"`
	Directory string `yaml:"directory"`
}

type DevicesConfig struct {
	Mode     string         `yaml:"mode"` // proc, exec, static
	ProcPath string         `yaml:"proc_path"`
	Command  string         `yaml:"command"`
	Selected string         `yaml:"selected"`
	Static   []StaticDevice `yaml:"static"`
}

type StaticDevice struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-interview",
		Environment: "development",
		Backend: BackendConfig{
			URL:            "http://127.0.0.1:5000",
			TimeoutMS:      30000,
			StartupDelayMS: 1000,
		},
		Interview: InterviewConfig{
			IntroQuestions: 3,
			AdvanceDelayMS: 3000,
			AutoListen:     false,
			MaxAttempts:    0,
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Bind:    "127.0.0.1",
			Port:    8090,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			LogFormat:    "text",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       false,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/interview-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   1000,
		},
		Results: ResultsConfig{
			Directory: "results",
		},
		STT: STTConfig{
			Mode:              "mock",
			Language:          "en-US",
			SampleRate:        16000,
			Channels:          1,
			FrameDurationMS:   20,
			PartialEveryMS:    800,
			PublishInterim:    true,
			SilenceMS:         2000,
			NoSpeechTimeoutMS: 8000,
			MaxAnswerMS:       180000,
			EnergyThreshold:   500,
			TimeoutMS:         30000,
			Source: SourceConfig{
				Mode: "mock",
			},
		},
		TTS: TTSConfig{
			Mode:       "mock",
			Voice:      "en-US",
			SampleRate: 22050,
			Channels:   1,
			TimeoutMS:  45000,
			Player: PlayerConfig{
				Mode: "discard",
			},
		},
		Devices: DevicesConfig{
			Mode:     "proc",
			ProcPath: "/proc/asound/pcm",
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
	overrideString(&cfg.RuntimeName, "LOQA_INTERVIEW_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LOQA_INTERVIEW_ENVIRONMENT")
	overrideString(&cfg.Backend.URL, "LOQA_INTERVIEW_BACKEND_URL")
	overrideInt(&cfg.Backend.TimeoutMS, "LOQA_INTERVIEW_BACKEND_TIMEOUT_MS")
	overrideInt(&cfg.Backend.StartupDelayMS, "LOQA_INTERVIEW_BACKEND_STARTUP_DELAY_MS")
	overrideInt(&cfg.Interview.IntroQuestions, "LOQA_INTERVIEW_INTRO_QUESTIONS")
	overrideInt(&cfg.Interview.AdvanceDelayMS, "LOQA_INTERVIEW_ADVANCE_DELAY_MS")
	overrideBool(&cfg.Interview.AutoListen, "LOQA_INTERVIEW_AUTO_LISTEN")
	overrideInt(&cfg.Interview.MaxAttempts, "LOQA_INTERVIEW_MAX_ATTEMPTS")
	overrideBool(&cfg.HTTP.Enabled, "LOQA_INTERVIEW_HTTP_ENABLED")
	overrideString(&cfg.HTTP.Bind, "LOQA_INTERVIEW_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LOQA_INTERVIEW_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LOQA_INTERVIEW_LOG_LEVEL")
	overrideString(&cfg.Telemetry.LogFormat, "LOQA_INTERVIEW_LOG_FORMAT")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LOQA_INTERVIEW_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LOQA_INTERVIEW_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.TraceFile, "LOQA_INTERVIEW_TRACE_FILE")
	overrideBool(&cfg.Bus.Embedded, "LOQA_INTERVIEW_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LOQA_INTERVIEW_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "LOQA_INTERVIEW_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LOQA_INTERVIEW_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LOQA_INTERVIEW_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LOQA_INTERVIEW_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LOQA_INTERVIEW_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LOQA_INTERVIEW_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "LOQA_INTERVIEW_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "LOQA_INTERVIEW_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "LOQA_INTERVIEW_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "LOQA_INTERVIEW_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "LOQA_INTERVIEW_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.Results.Directory, "LOQA_INTERVIEW_RESULTS_DIRECTORY")
	overrideString(&cfg.STT.Mode, "LOQA_INTERVIEW_STT_MODE")
	overrideString(&cfg.STT.Command, "LOQA_INTERVIEW_STT_COMMAND")
	overrideString(&cfg.STT.ModelPath, "LOQA_INTERVIEW_STT_MODEL_PATH")
	overrideString(&cfg.STT.Language, "LOQA_INTERVIEW_STT_LANGUAGE")
	overrideInt(&cfg.STT.SampleRate, "LOQA_INTERVIEW_STT_SAMPLE_RATE")
	overrideInt(&cfg.STT.Channels, "LOQA_INTERVIEW_STT_CHANNELS")
	overrideInt(&cfg.STT.FrameDurationMS, "LOQA_INTERVIEW_STT_FRAME_DURATION_MS")
	overrideInt(&cfg.STT.PartialEveryMS, "LOQA_INTERVIEW_STT_PARTIAL_EVERY_MS")
	overrideBool(&cfg.STT.PublishInterim, "LOQA_INTERVIEW_STT_PUBLISH_INTERIM")
	overrideInt(&cfg.STT.SilenceMS, "LOQA_INTERVIEW_STT_SILENCE_MS")
	overrideInt(&cfg.STT.NoSpeechTimeoutMS, "LOQA_INTERVIEW_STT_NO_SPEECH_TIMEOUT_MS")
	overrideInt(&cfg.STT.MaxAnswerMS, "LOQA_INTERVIEW_STT_MAX_ANSWER_MS")
	overrideFloat(&cfg.STT.EnergyThreshold, "LOQA_INTERVIEW_STT_ENERGY_THRESHOLD")
	overrideInt(&cfg.STT.TimeoutMS, "LOQA_INTERVIEW_STT_TIMEOUT_MS")
	overrideString(&cfg.STT.Source.Mode, "LOQA_INTERVIEW_STT_SOURCE_MODE")
	overrideString(&cfg.STT.Source.Command, "LOQA_INTERVIEW_STT_SOURCE_COMMAND")
	overrideString(&cfg.STT.Source.Path, "LOQA_INTERVIEW_STT_SOURCE_PATH")
	overrideBool(&cfg.STT.Source.Realtime, "LOQA_INTERVIEW_STT_SOURCE_REALTIME")
	overrideString(&cfg.TTS.Mode, "LOQA_INTERVIEW_TTS_MODE")
	overrideString(&cfg.TTS.Command, "LOQA_INTERVIEW_TTS_COMMAND")
	overrideString(&cfg.TTS.Voice, "LOQA_INTERVIEW_TTS_VOICE")
	overrideInt(&cfg.TTS.SampleRate, "LOQA_INTERVIEW_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.Channels, "LOQA_INTERVIEW_TTS_CHANNELS")
	overrideInt(&cfg.TTS.TimeoutMS, "LOQA_INTERVIEW_TTS_TIMEOUT_MS")
	overrideString(&cfg.TTS.Player.Mode, "LOQA_INTERVIEW_TTS_PLAYER_MODE")
	overrideString(&cfg.TTS.Player.Command, "LOQA_INTERVIEW_TTS_PLAYER_COMMAND")
	overrideString(&cfg.TTS.Player.Directory, "LOQA_INTERVIEW_TTS_PLAYER_DIRECTORY")
	overrideString(&cfg.Devices.Mode, "LOQA_INTERVIEW_DEVICES_MODE")
	overrideString(&cfg.Devices.ProcPath, "LOQA_INTERVIEW_DEVICES_PROC_PATH")
	overrideString(&cfg.Devices.Command, "LOQA_INTERVIEW_DEVICES_COMMAND")
	overrideString(&cfg.Devices.Selected, "LOQA_INTERVIEW_DEVICES_SELECTED")
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

// UsesBus reports whether any speech adapter talks to NATS.
func (c Config) UsesBus() bool {
	return c.STT.Mode == "bus" || c.TTS.Mode == "bus"
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if !strings.HasPrefix(cfg.Backend.URL, "http://") && !strings.HasPrefix(cfg.Backend.URL, "https://") {
		return errors.New("backend.url must be an http(s) URL")
	}
	if cfg.Backend.TimeoutMS <= 0 {
		return errors.New("backend.timeout_ms must be positive")
	}
	if cfg.Backend.StartupDelayMS < 0 {
		return errors.New("backend.startup_delay_ms must be >= 0")
	}
	if cfg.Interview.IntroQuestions < 0 {
		return errors.New("interview.intro_questions must be >= 0")
	}
	if cfg.Interview.AdvanceDelayMS < 0 {
		return errors.New("interview.advance_delay_ms must be >= 0")
	}
	if cfg.Interview.MaxAttempts < 0 {
		return errors.New("interview.max_attempts must be >= 0")
	}
	if cfg.HTTP.Enabled && (cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535) {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch cfg.Telemetry.LogFormat {
	case "text", "json":
	default:
		return errors.New("telemetry.log_format must be one of text|json")
	}
	switch strings.ToLower(cfg.Telemetry.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("telemetry.log_level must be one of debug|info|warn|error")
	}
	if cfg.UsesBus() {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionMode != "ephemeral" && cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	if err := validateSTT(cfg.STT); err != nil {
		return err
	}
	if err := validateTTS(cfg.TTS); err != nil {
		return err
	}
	switch cfg.Devices.Mode {
	case "proc":
		if cfg.Devices.ProcPath == "" {
			return errors.New("devices.proc_path must be set when mode=proc")
		}
	case "exec":
		if cfg.Devices.Command == "" {
			return errors.New("devices.command must be set when mode=exec")
		}
	case "static":
	default:
		return errors.New("devices.mode must be one of proc|exec|static")
	}
	return nil
}

func validateSTT(cfg STTConfig) error {
	switch cfg.Mode {
	case "mock", "exec", "bus":
	default:
		return errors.New("stt.mode must be one of mock|exec|bus")
	}
	if cfg.Mode == "exec" && cfg.Command == "" {
		return errors.New("stt.command must be set when mode=exec")
	}
	if cfg.SampleRate <= 0 {
		return errors.New("stt.sample_rate must be positive")
	}
	if cfg.Channels <= 0 {
		return errors.New("stt.channels must be positive")
	}
	if cfg.FrameDurationMS <= 0 {
		return errors.New("stt.frame_duration_ms must be positive")
	}
	if cfg.SilenceMS <= 0 {
		return errors.New("stt.silence_ms must be positive")
	}
	if cfg.MaxAnswerMS < 0 || cfg.NoSpeechTimeoutMS < 0 || cfg.TimeoutMS < 0 {
		return errors.New("stt timeouts must be >= 0")
	}
	if cfg.EnergyThreshold < 0 {
		return errors.New("stt.energy_threshold must be >= 0")
	}
	switch cfg.Source.Mode {
	case "mock":
	case "exec":
		if cfg.Source.Command == "" {
			return errors.New("stt.source.command must be set when mode=exec")
		}
	case "wav":
		if cfg.Source.Path == "" {
			return errors.New("stt.source.path must be set when mode=wav")
		}
	default:
		return errors.New("stt.source.mode must be one of mock|exec|wav")
	}
	return nil
}

func validateTTS(cfg TTSConfig) error {
	switch cfg.Mode {
	case "mock", "exec", "bus":
	default:
		return errors.New("tts.mode must be one of mock|exec|bus")
	}
	if cfg.Mode == "exec" && cfg.Command == "" {
		return errors.New("tts.command must be set when mode=exec")
	}
	if cfg.SampleRate <= 0 {
		return errors.New("tts.sample_rate must be positive")
	}
	if cfg.Channels <= 0 {
		return errors.New("tts.channels must be positive")
	}
	switch cfg.Player.Mode {
	case "discard":
	case "exec":
		if cfg.Player.Command == "" {
			return errors.New("tts.player.command must be set when mode=exec")
		}
	case "wav":
		if cfg.Player.Directory == "" {
			return errors.New("tts.player.directory must be set when mode=wav")
		}
	default:
		return errors.New("tts.player.mode must be one of discard|exec|wav")
	}
	return nil
}
