package shardroute

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// LogConfig holds logging configuration options for the shardroute package.
// It controls log verbosity, formatting, and output destination.
type LogConfig struct {
	// Level determines the verbosity of logging (0=Error, 1=Info, 2=Debug, 3=Trace)
	Level LogLevel `yaml:"level"`

	// ShowTime controls whether log entries include timestamps
	ShowTime bool `yaml:"show_time"`

	// Format specifies the log format (currently only "text" is supported)
	Format string `yaml:"format,omitempty"`

	// Output determines where logs are written: "stdout", "stderr", or a file path
	Output string `yaml:"output,omitempty"`

	// UseLogrum enables the logrus backed logger instead of the standard logger
	UseLogrum bool `yaml:"use_logrum"`

	// LogrumOptions contains configuration options specific to logrum
	LogrumOptions LogrumOptions `yaml:"logrum_options"`
}

// LogrumOptions holds configuration options specific to logrum.
type LogrumOptions struct {
	AppName         string `yaml:"app_name"`
	IncludeCaller   bool   `yaml:"include_caller"`
	TimestampFormat string `yaml:"timestamp_format"`
}

// ParseCacheConfig sizes the cache of parsed statements keyed by SQL text.
type ParseCacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

// TableRule lists the columns whose predicates are resolved for a table.
type TableRule struct {
	ShardingColumns []string `yaml:"sharding_columns"`
}

// Config holds all configuration settings for the shardroute package.
type Config struct {
	// Logging contains all logging-related configuration
	Logging LogConfig `yaml:"logging"`

	// Engine selects the SQL dialect: "postgres" or "mysql".
	Engine string `yaml:"engine"`

	ParseCache ParseCacheConfig `yaml:"parse_cache"`

	// Clock selects where now() is read from: "system" or "database".
	Clock string `yaml:"clock"`

	// Tables maps logical table names to their sharding columns.
	Tables map[string]TableRule `yaml:"tables"`
}

const (
	ClockSystem   = "system"
	ClockDatabase = "database"
)

// DefaultConfig provides sensible defaults for all settings.
func DefaultConfig() *Config {
	return &Config{
		Logging: LogConfig{
			Level:     LogLevelInfo,
			ShowTime:  true,
			Format:    "text",
			Output:    "stdout",
			UseLogrum: false,
			LogrumOptions: LogrumOptions{
				AppName:         "shardroute",
				IncludeCaller:   false,
				TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			},
		},
		Engine: "postgres",
		ParseCache: ParseCacheConfig{
			Enabled: true,
			Size:    1024,
			TTL:     10 * time.Minute,
		},
		Clock:  ClockSystem,
		Tables: map[string]TableRule{},
	}
}

var (
	globalConfig = DefaultConfig()
	configMutex  sync.RWMutex
)

// LoadConfigFromFile loads configuration from a YAML file.
// If path is empty, it searches in common locations for a configuration file.
// If no configuration file is found, default values are used.
func LoadConfigFromFile(path string) error {
	if path == "" {
		possiblePaths := []string{
			"shardroute.yml",
			"shardroute.yaml",
			filepath.Join(os.Getenv("HOME"), ".config", "shardroute.yml"),
			"/etc/shardroute.yml",
		}

		for _, p := range possiblePaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}

		if path == "" {
			infoLog("No configuration file found in standard locations, using defaults")
			return nil
		}
	}

	config, err := ReadConfig(path)
	if err != nil {
		return err
	}
	SetConfig(config)

	infoLog("Successfully loaded configuration from %s", path)
	return nil
}

// ReadConfig parses and validates a YAML file without installing it.
func ReadConfig(path string) (*Config, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf("config file not found: %s", path)
		}
		return nil, errors.Wrap(err, "error accessing config file")
	}
	if fileInfo.IsDir() {
		return nil, errors.Newf("config path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	if len(data) == 0 {
		return nil, errors.Newf("config file is empty: %s", path)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return config, nil
}

// validateConfig ensures the loaded configuration has valid values
func validateConfig(config *Config) error {
	if config.Logging.Level < LogLevelError || config.Logging.Level > LogLevelTrace {
		return errors.Newf("invalid log level: %d (must be between %d and %d)",
			config.Logging.Level, LogLevelError, LogLevelTrace)
	}

	if config.Logging.Format != "" && config.Logging.Format != "text" {
		return errors.Newf("unsupported log format: %s (only 'text' is supported)",
			config.Logging.Format)
	}

	if ParseEngine(config.Engine) == EngineUnknown {
		return errors.Wrapf(ErrUnsupportedEngine, "engine %q", config.Engine)
	}

	if config.ParseCache.Enabled && config.ParseCache.Size <= 0 {
		return errors.Newf("parse cache size must be positive, got %d", config.ParseCache.Size)
	}

	if config.ParseCache.TTL < 0 {
		return errors.Newf("parse cache ttl must not be negative, got %s", config.ParseCache.TTL)
	}

	switch config.Clock {
	case "", ClockSystem, ClockDatabase:
	default:
		return errors.Newf("unsupported clock: %s", config.Clock)
	}

	for table, rule := range config.Tables {
		if len(rule.ShardingColumns) == 0 {
			return errors.Newf("table %s has no sharding columns", table)
		}
	}

	return nil
}

// GetConfig returns the current configuration.
func GetConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()

	return globalConfig
}

// SetConfig replaces the configuration and reconfigures the global logger.
func SetConfig(config *Config) {
	configMutex.Lock()
	globalConfig = config
	configMutex.Unlock()

	configureLogger(config.Logging)
}

// SetLogLevel sets the log level programmatically.
func SetLogLevel(level LogLevel) {
	configMutex.Lock()
	globalConfig.Logging.Level = level
	configMutex.Unlock()

	GetLogger().SetLevel(level)
}
