package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from defaults, an optional config file,
// environment variables and bound command-line flags.
type Config struct {
	Ollama OllamaConfig `mapstructure:"ollama"`
	Server ServerConfig `mapstructure:"server"`
	Chat   ChatConfig   `mapstructure:"chat"`
	Log    LogConfig    `mapstructure:"log"`
}

// OllamaConfig describes the inference backend.
type OllamaConfig struct {
	URL               string         `mapstructure:"url"`                 // Base URL of the backend
	Model             string         `mapstructure:"model"`               // Default model
	RequestTimeout    time.Duration  `mapstructure:"request_timeout"`     // Bound on buffered calls
	StreamIdleTimeout time.Duration  `mapstructure:"stream_idle_timeout"` // Max silence on a stream
	Options           map[string]any `mapstructure:"options"`             // Default model options
}

// ServerConfig describes the HTTP surface.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// ChatConfig describes the interactive session.
type ChatConfig struct {
	TranscriptPath string `mapstructure:"transcript_path"` // File path or s3://bucket/prefix
	Stream         bool   `mapstructure:"stream"`          // Print replies as they are generated
	SystemPrompt   string `mapstructure:"system_prompt"`   // Optional system turn sent with every request
}

// LogConfig describes logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	AppName         = "ollama-relay"
	DefaultModel    = "mistral"
	DefaultURL      = "http://localhost:11434"
	DefaultPort     = 3000
	DefaultChatLog  = "chatlog.txt"
	EnvConfigPrefix = "RELAY"
)

// envBindings are the short environment variable names accepted
// in addition to RELAY_<SECTION>_<KEY>.
var envBindings = map[string]string{
	"ollama.url":           "OLLAMA_URL",
	"ollama.model":         "OLLAMA_MODEL",
	"server.port":          "PORT",
	"chat.transcript_path": "CHATLOG_PATH",
}

// New returns a viper instance with defaults and environment bindings set.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("ollama.url", DefaultURL)
	v.SetDefault("ollama.model", DefaultModel)
	v.SetDefault("ollama.request_timeout", 5*time.Minute)
	v.SetDefault("ollama.stream_idle_timeout", 2*time.Minute)
	v.SetDefault("ollama.options", map[string]any{})

	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("chat.transcript_path", DefaultChatLog)
	v.SetDefault("chat.stream", false)
	v.SetDefault("chat.system_prompt", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetEnvPrefix(EnvConfigPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(key, env, EnvConfigPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}
	return v
}

// Load reads the optional config file into v and decodes the result.
// With an empty configPath the usual locations are searched and a missing
// file is not an error.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("relay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, AppName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig is Load on a fresh viper instance.
func LoadConfig(configPath string) (*Config, error) {
	return Load(New(), configPath)
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Ollama.URL) == "" {
		return errors.New("ollama.url must not be empty")
	}
	if strings.TrimSpace(c.Ollama.Model) == "" {
		return errors.New("ollama.model must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Ollama.RequestTimeout < 0 || c.Ollama.StreamIdleTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}
