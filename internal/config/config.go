// Package config loads service configuration from an optional YAML file and
// environment variables. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration is the complete service configuration.
type Configuration struct {
	Service       ServiceConfig       `yaml:"service"`
	STT           STTConfig           `yaml:"stt"`
	TurnLimits    TurnLimitsConfig    `yaml:"turnLimits"`
	Transcript    TranscriptConfig    `yaml:"transcript"`
	Events        EventsConfig        `yaml:"events"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	NATS          NATSConfig          `yaml:"nats"`
	Store         StoreConfig         `yaml:"store"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServiceConfig struct {
	Principal string `yaml:"principal"`
	GRPCPort  string `yaml:"grpcPort"`
	HTTPPort  string `yaml:"httpPort"`
}

type STTConfig struct {
	Provider        string `yaml:"provider"` // mock, google
	LanguageCode    string `yaml:"languageCode"`
	SampleRateHz    int    `yaml:"sampleRateHz"`
	InterimResults  bool   `yaml:"interimResults"`
	AudioEncoding   string `yaml:"audioEncoding"`
	SingleUtterance bool   `yaml:"singleUtterance"`
}

// TurnLimitsConfig bounds a single recognition turn. Zero disables a limit.
type TurnLimitsConfig struct {
	MaxAudioBytes int64         `yaml:"maxAudioBytes"`
	MaxDuration   time.Duration `yaml:"maxDuration"`
	MaxPartials   int           `yaml:"maxPartials"`
}

type TranscriptConfig struct {
	MergeMode string `yaml:"mergeMode"` // prefix, final
}

type EventsConfig struct {
	Backend string `yaml:"backend"` // kafka, nats, log
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	TopicPartial string   `yaml:"topicPartial"`
	TopicFinal   string   `yaml:"topicFinal"`
	Principal    string   `yaml:"principal"`
}

type NATSConfig struct {
	URL            string        `yaml:"url"`
	SubjectPartial string        `yaml:"subjectPartial"`
	SubjectFinal   string        `yaml:"subjectFinal"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

type StoreConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"` // zero keeps turns forever
}

type ObservabilityConfig struct {
	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"` // json, console
	MetricsAddr string `yaml:"metricsAddr"`
}

// Default returns the configuration used when nothing is set.
func Default() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal: "svc-speech-transcript",
			GRPCPort:  "50051",
			HTTPPort:  "8080",
		},
		STT: STTConfig{
			Provider:       "mock",
			LanguageCode:   "en-US",
			SampleRateHz:   8000,
			InterimResults: true,
			AudioEncoding:  "LINEAR16",
		},
		TurnLimits: TurnLimitsConfig{
			MaxAudioBytes: 5 * 1024 * 1024,
			MaxDuration:   5 * time.Minute,
			MaxPartials:   500,
		},
		Transcript: TranscriptConfig{
			MergeMode: "prefix",
		},
		Events: EventsConfig{
			Backend: "log",
		},
		Kafka: KafkaConfig{
			Brokers:      []string{"localhost:9092"},
			TopicPartial: "speech.transcript.partial",
			TopicFinal:   "speech.transcript.final",
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			SubjectPartial: "speech.transcript.partial",
			SubjectFinal:   "speech.transcript.final",
			ConnectTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    "data/transcripts.db",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsAddr: ":9090",
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE (if any) and environment variables, in that order.
func Load() *Configuration {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
	}
	cfg.applyEnv()
	return cfg
}

func (c *Configuration) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Configuration) applyEnv() {
	c.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", c.Service.Principal)
	c.Service.GRPCPort = envOrDefault("GRPC_PORT", c.Service.GRPCPort)
	c.Service.HTTPPort = envOrDefault("HTTP_PORT", c.Service.HTTPPort)

	c.STT.Provider = envOrDefault("STT_PROVIDER", c.STT.Provider)
	c.STT.LanguageCode = envOrDefault("STT_LANGUAGE_CODE", c.STT.LanguageCode)
	c.STT.SampleRateHz = envOrDefaultInt("STT_SAMPLE_RATE_HZ", c.STT.SampleRateHz)
	c.STT.InterimResults = envOrDefaultBool("STT_INTERIM_RESULTS", c.STT.InterimResults)
	c.STT.AudioEncoding = envOrDefault("STT_AUDIO_ENCODING", c.STT.AudioEncoding)
	c.STT.SingleUtterance = envOrDefaultBool("STT_SINGLE_UTTERANCE", c.STT.SingleUtterance)

	c.TurnLimits.MaxAudioBytes = envOrDefaultInt64("TURN_MAX_AUDIO_BYTES", c.TurnLimits.MaxAudioBytes)
	c.TurnLimits.MaxDuration = envOrDefaultDuration("TURN_MAX_DURATION", c.TurnLimits.MaxDuration)
	c.TurnLimits.MaxPartials = envOrDefaultInt("TURN_MAX_PARTIALS", c.TurnLimits.MaxPartials)

	c.Transcript.MergeMode = envOrDefault("TRANSCRIPT_MERGE_MODE", c.Transcript.MergeMode)
	c.Events.Backend = envOrDefault("EVENTS_BACKEND", c.Events.Backend)

	c.Kafka.Brokers = envOrDefaultList("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.TopicPartial = envOrDefault("KAFKA_TOPIC_PARTIAL", c.Kafka.TopicPartial)
	c.Kafka.TopicFinal = envOrDefault("KAFKA_TOPIC_FINAL", c.Kafka.TopicFinal)
	c.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", c.Kafka.Principal)
	if c.Kafka.Principal == "" {
		c.Kafka.Principal = c.Service.Principal
	}

	c.NATS.URL = envOrDefault("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPartial = envOrDefault("NATS_SUBJECT_PARTIAL", c.NATS.SubjectPartial)
	c.NATS.SubjectFinal = envOrDefault("NATS_SUBJECT_FINAL", c.NATS.SubjectFinal)
	c.NATS.ConnectTimeout = envOrDefaultDuration("NATS_CONNECT_TIMEOUT", c.NATS.ConnectTimeout)

	c.Store.Enabled = envOrDefaultBool("STORE_ENABLED", c.Store.Enabled)
	c.Store.Path = envOrDefault("STORE_PATH", c.Store.Path)
	c.Store.Retention = envOrDefaultDuration("STORE_RETENTION", c.Store.Retention)

	c.Observability.LogLevel = envOrDefault("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = envOrDefault("LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsAddr = envOrDefault("METRICS_ADDR", c.Observability.MetricsAddr)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
