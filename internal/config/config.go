package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// envPrefix is the prefix for environment overrides, e.g. STORYTELLER_BACKEND_URL.
const envPrefix = "STORYTELLER"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Media   MediaConfig   `yaml:"media"`
	Input   InputConfig   `yaml:"input"`
	Cache   CacheConfig   `yaml:"cache"`
	Redis   RedisConfig   `yaml:"redis"`
	Queue   QueueConfig   `yaml:"queue"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	AllowOrigin  string        `yaml:"allow_origin" envconfig:"SERVER_ALLOW_ORIGIN"`
}

// BackendConfig points at the storyteller backend that does the actual generation work.
type BackendConfig struct {
	URL        string        `yaml:"url" envconfig:"BACKEND_URL"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"BACKEND_TIMEOUT"`
	MaxRetries int           `yaml:"max_retries" envconfig:"BACKEND_MAX_RETRIES"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	// Culture and age group sent with every story creation request.
	Culture        string `yaml:"culture"`
	TargetAgeGroup string `yaml:"target_age_group"`
}

type MediaConfig struct {
	VoiceStyle   string `yaml:"voice_style"`
	Accent       string `yaml:"accent"`
	ImageStyle   string `yaml:"image_style"`
	StoryContext string `yaml:"story_context"`
	Language     string `yaml:"language"`
	AutoNarrate  bool   `yaml:"auto_narrate" envconfig:"MEDIA_AUTO_NARRATE"`

	// ReadyTimeout bounds how long generators wait for the backend to finish
	// writing a media file. Zero returns the reference immediately.
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// FallbackAudio is played when narration for a segment cannot be generated.
	FallbackAudio string `yaml:"fallback_audio" envconfig:"MEDIA_FALLBACK_AUDIO"`

	// TempDir holds local audio resources (recorded blobs) while they are live.
	TempDir string `yaml:"temp_dir"`
}

type InputConfig struct {
	FileCharLimit     int                 `yaml:"file_char_limit"`
	RecordingPrompt   string              `yaml:"recording_prompt"`
	MaxRecordingBytes int64               `yaml:"max_recording_bytes"`
	Transcription     TranscriptionConfig `yaml:"transcription"`
}

// TranscriptionConfig enables turning recorded audio into prompt text.
type TranscriptionConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"TRANSCRIPTION_ENABLED"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key" envconfig:"OPENAI_API_KEY"`
	Model   string `yaml:"model"`
}

type CacheConfig struct {
	Driver     string        `yaml:"driver" envconfig:"CACHE_DRIVER"` // "memory" or "redis"
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Host     string `yaml:"host" envconfig:"REDIS_HOST"`
	Port     int    `yaml:"port" envconfig:"REDIS_PORT"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type QueueConfig struct {
	MaxWorkers   int `yaml:"max_workers"`
	MaxQueueSize int `yaml:"max_queue_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         3000,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			AllowOrigin:  "*",
		},
		Backend: BackendConfig{
			URL:            "http://localhost:8000",
			Timeout:        60 * time.Second,
			MaxRetries:     2,
			RetryDelay:     500 * time.Millisecond,
			Culture:        "Global",
			TargetAgeGroup: "all",
		},
		Media: MediaConfig{
			VoiceStyle:   "narrative",
			ImageStyle:   "illustration",
			StoryContext: "cultural story scene",
			Language:     "en",
			ReadyTimeout: 30 * time.Second,
			PollInterval: time.Second,
			AutoNarrate:  true,
			TempDir:      os.TempDir(),
		},
		Input: InputConfig{
			FileCharLimit:     200,
			RecordingPrompt:   "A story told aloud by the listener",
			MaxRecordingBytes: 10 << 20,
			Transcription: TranscriptionConfig{
				Model: "whisper-1",
			},
		},
		Cache: CacheConfig{
			Driver:     "memory",
			MaxEntries: 500,
			TTL:        time.Hour,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			PoolSize: 10,
		},
		Queue: QueueConfig{
			MaxWorkers:   2,
			MaxQueueSize: 32,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Apply environment variable overrides
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	sections := []interface{}{
		&cfg.Server, &cfg.Backend, &cfg.Media, &cfg.Input.Transcription,
		&cfg.Cache, &cfg.Redis, &cfg.Logging,
	}
	for _, section := range sections {
		if err := envconfig.Process(envPrefix, section); err != nil {
			return fmt.Errorf("failed to apply env overrides: %w", err)
		}
	}
	return nil
}

// Validate checks values the rest of the program relies on.
func (c *Config) Validate() error {
	u, err := url.ParseRequestURI(c.Backend.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid backend url %q", c.Backend.URL)
	}
	if c.Input.FileCharLimit <= 0 {
		return fmt.Errorf("input.file_char_limit must be positive, got %d", c.Input.FileCharLimit)
	}
	if c.Media.ReadyTimeout > 0 && c.Media.PollInterval <= 0 {
		return fmt.Errorf("media.poll_interval must be positive when media.ready_timeout is set")
	}
	if c.Backend.MaxRetries < 0 {
		return fmt.Errorf("backend.max_retries must not be negative")
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}
	if c.Input.Transcription.Enabled && c.Input.Transcription.APIKey == "" {
		return fmt.Errorf("transcription enabled but no api key configured")
	}
	return nil
}

// Addr is the listen address of the companion service.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Addr is the host:port pair for the redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
