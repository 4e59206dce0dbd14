package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Date handling modes accepted on a compression request. None of them change
// what the compressor writes yet; they are carried for forward compatibility.
const (
	DateHandlingPreserve = "preserve"
	DateHandlingCurrent  = "current"
	DateHandlingCustom   = "custom"
)

// Config represents the main configuration structure
type Config struct {
	SourceDirectory string            `mapstructure:"source_directory"`
	OutputDirectory string            `mapstructure:"output_directory"`
	Compression     CompressionConfig `mapstructure:"compression"`
	Web             WebConfig         `mapstructure:"web"`
	Logging         LoggingConfig     `mapstructure:"logging"`
}

// CompressionConfig contains the defaults applied to a batch
type CompressionConfig struct {
	Quality      int    `mapstructure:"quality"`
	DateHandling string `mapstructure:"date_handling"`
	CustomDate   string `mapstructure:"custom_date"`
}

// WebConfig contains HTTP boundary settings
type WebConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Compression: CompressionConfig{
			Quality:      80,
			DateHandling: DateHandlingPreserve,
		},
		Web: WebConfig{
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "photo-compressor.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches the usual locations; a missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	v := viper.New()

	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.photo-compressor")
		v.AddConfigPath("/etc/photo-compressor")
	}

	v.SetEnvPrefix("PHOTO_COMPRESSOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindEnvKeys registers every key so that AutomaticEnv also applies to
// Unmarshal, which only sees keys viper already knows about.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"source_directory",
		"output_directory",
		"compression.quality",
		"compression.date_handling",
		"compression.custom_date",
		"web.port",
		"logging.level",
		"logging.file_path",
		"logging.max_size",
		"logging.max_backups",
		"logging.max_age",
		"logging.compress",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.SourceDirectory != "" && !isValidPath(c.SourceDirectory) {
		return fmt.Errorf("source_directory does not exist or is not accessible: %s", c.SourceDirectory)
	}

	// Quality is clamped by the compressor, zero here only means "unset".
	if c.Compression.Quality == 0 {
		c.Compression.Quality = 80
	}

	if c.Compression.DateHandling == "" {
		c.Compression.DateHandling = DateHandlingPreserve
	}
	if err := ValidateDateHandling(c.Compression.DateHandling, c.Compression.CustomDate); err != nil {
		return err
	}

	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		c.Web.Port = 8080
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// ValidateDateHandling checks the shape of a date handling option pair.
// A custom mode needs a date in YYYY-MM-DD or RFC3339 form.
func ValidateDateHandling(mode, customDate string) error {
	switch mode {
	case DateHandlingPreserve, DateHandlingCurrent:
		return nil
	case DateHandlingCustom:
		if customDate == "" {
			return fmt.Errorf("date_handling %q requires custom_date", mode)
		}
		if _, err := time.Parse("2006-01-02", customDate); err == nil {
			return nil
		}
		if _, err := time.Parse(time.RFC3339, customDate); err == nil {
			return nil
		}
		return fmt.Errorf("invalid custom_date: %s", customDate)
	default:
		return fmt.Errorf("invalid date_handling: %s (valid: preserve, current, custom)", mode)
	}
}

// Helper functions

func isValidPath(path string) bool {
	if path == "" {
		return false
	}

	stat, err := os.Stat(ExpandPath(path))
	return err == nil && stat.IsDir()
}

// ExpandPath expands environment variables and a leading ~ in path.
func ExpandPath(path string) string {
	expanded := os.ExpandEnv(path)
	if strings.HasPrefix(expanded, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			expanded = filepath.Join(home, expanded[1:])
		}
	}
	return expanded
}
