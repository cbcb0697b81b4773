// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when read from the environment,
// e.g. STRANDED_PORT.
const EnvPrefix = "STRANDED"

// Config is every setting the stranded binaries read.
type Config struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	GeminiModel  string `mapstructure:"gemini_model"`
	MapFile      string `mapstructure:"map_file"`

	RedisAddr      string `mapstructure:"redis_addr"`
	RedisDB        int    `mapstructure:"redis_db"`
	ChronicleQueue string `mapstructure:"chronicle_queue"`
	DatabaseURL    string `mapstructure:"database_url"`

	ResolutionAttempts int           `mapstructure:"resolution_attempts"`
	ResolutionBackoff  time.Duration `mapstructure:"resolution_backoff"`
	ResolutionTimeout  time.Duration `mapstructure:"resolution_timeout"`

	HistorianBatchSize int           `mapstructure:"historian_batch_size"`
	HistorianFlush     time.Duration `mapstructure:"historian_flush"`
}

// SetDefaults registers every key and its default on v. Registering keys is
// what lets Unmarshal see values that only exist in the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", "gemini-2.5-flash")
	v.SetDefault("map_file", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("chronicle_queue", "stranded_days")
	v.SetDefault("database_url", "")
	v.SetDefault("resolution_attempts", 3)
	v.SetDefault("resolution_backoff", time.Second)
	v.SetDefault("resolution_timeout", 20*time.Second)
	v.SetDefault("historian_batch_size", 20)
	v.SetDefault("historian_flush", 500*time.Millisecond)
}

// New returns a viper instance with defaults and environment binding. Flags
// are bound onto it by the caller.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.GeminiAPIKey == "" {
		// The key is commonly exported without our prefix.
		cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if c.ResolutionAttempts <= 0 {
		return fmt.Errorf("resolution_attempts must be positive")
	}
	if c.ResolutionTimeout <= 0 {
		return fmt.Errorf("resolution_timeout must be positive")
	}
	if c.ResolutionBackoff < 0 {
		return fmt.Errorf("resolution_backoff must not be negative")
	}
	if c.HistorianBatchSize <= 0 {
		return fmt.Errorf("historian_batch_size must be positive")
	}
	if c.HistorianFlush <= 0 {
		return fmt.Errorf("historian_flush must be positive")
	}
	return nil
}

// Logger builds the process logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	return logger
}
