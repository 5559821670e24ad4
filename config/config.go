package config

import (
	"bytes"
	_ "embed"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Embed the default.yaml file into the binary
//
//go:embed resources/default.yaml
var defaultYAML []byte

// SyslogConfig points the syslog handler at a daemon. Left at its
// defaults, the handler falls back to the SYSLOG_HOST/SYSLOG_PORT
// environment variables and then the platform's local socket.
type SyslogConfig struct {
	Host       string `mapstructure:"host"`        // Remote daemon host
	Port       int    `mapstructure:"port"`        // Remote daemon port; 514 when a host arrives without one
	SocketPath string `mapstructure:"socket_path"` // Local daemon socket; wins over host/port
	Protocol   string `mapstructure:"protocol"`    // tcp, udp, or the classic codes 1/2
	Facility   int    `mapstructure:"facility"`    // Classic facility code; local0 (16) by default
}

type FileConfig struct {
	Path       string `mapstructure:"path"`          // Path to the log file
	MaxSizeMB  int    `mapstructure:"max_file_size"` // Max file size in MB before rotation
	MaxBackups int    `mapstructure:"max_backups"`   // Number of rotated files to retain
	MaxAgeDays int    `mapstructure:"max_age_days"`  // Maximum age of rotated files in days
	Compress   bool   `mapstructure:"compress"`      // Gzip rotated files
}

type StackdriverConfig struct {
	ProjectID string `mapstructure:"project_id"` // Cloud project; discovered from instance metadata when empty
}

type HealthCheckConfig struct {
	Enabled                  bool          `mapstructure:"enabled"`                   // Run the log pipeline monitor
	ElasticsearchURL         string        `mapstructure:"elasticsearch_url"`         // Search cluster the pipeline ships to
	ElasticsearchIndex       string        `mapstructure:"elasticsearch_index"`       // Index holding shipped lines
	LogPeriodicity           time.Duration `mapstructure:"log_periodicity"`           // Heartbeat record interval
	ElasticsearchPeriodicity time.Duration `mapstructure:"elasticsearch_periodicity"` // Index probe interval
}

type Config struct {
	Progname   string   `mapstructure:"progname"`    // Program name stamped into every line
	LogLevel   string   `mapstructure:"log_level"`   // Severity threshold (e.g. DEBUG, INFO, WARN, ERROR)
	Handlers   []string `mapstructure:"handlers"`    // Handler kinds to attach, in order
	LogFormat  string   `mapstructure:"log_format"`  // Line format override; empty means platform defaults
	DateFormat string   `mapstructure:"date_format"` // Date layout override behind {{.Time}}

	Syslog      SyslogConfig      `mapstructure:"syslog"`
	File        FileConfig        `mapstructure:"file"`
	Stackdriver StackdriverConfig `mapstructure:"stackdriver"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
}

// LoadConfig loads and merges the configuration in this order:
// 1. Defaults from default.yaml (embedded).
// 2. Configurations from a file (if provided).
// 3. Environment variables (ULOG_ prefix, nested keys joined with _).
// 4. Overrides provided programmatically.
func LoadConfig(configFile string, overrides *Config) (*Config, error) {
	v := viper.New()

	// Load embedded default.yaml
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultYAML)); err != nil {
		return nil, err
	}

	// Load from config file if provided
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.MergeInConfig(); err != nil {
			return nil, err
		}
	}

	// Load environment variables
	v.SetEnvPrefix("ULOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Parse into Config struct
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}

	// Apply overrides if provided
	if overrides != nil {
		ApplyOverrides(config, overrides)
	}

	return config, nil
}

// Apply programmatic overrides to the config. Zero values leave the
// loaded setting in place.
func ApplyOverrides(config, overrides *Config) {
	if overrides.Progname != "" {
		config.Progname = overrides.Progname
	}
	if overrides.LogLevel != "" {
		config.LogLevel = overrides.LogLevel
	}
	if len(overrides.Handlers) > 0 {
		config.Handlers = overrides.Handlers
	}
	if overrides.LogFormat != "" {
		config.LogFormat = overrides.LogFormat
	}
	if overrides.DateFormat != "" {
		config.DateFormat = overrides.DateFormat
	}

	if overrides.Syslog.Host != "" {
		config.Syslog.Host = overrides.Syslog.Host
	}
	if overrides.Syslog.Port != 0 {
		config.Syslog.Port = overrides.Syslog.Port
	}
	if overrides.Syslog.SocketPath != "" {
		config.Syslog.SocketPath = overrides.Syslog.SocketPath
	}
	if overrides.Syslog.Protocol != "" {
		config.Syslog.Protocol = overrides.Syslog.Protocol
	}
	if overrides.Syslog.Facility != 0 {
		config.Syslog.Facility = overrides.Syslog.Facility
	}

	if overrides.File.Path != "" {
		config.File.Path = overrides.File.Path
	}
	if overrides.File.MaxSizeMB != 0 {
		config.File.MaxSizeMB = overrides.File.MaxSizeMB
	}
	if overrides.File.MaxBackups != 0 {
		config.File.MaxBackups = overrides.File.MaxBackups
	}
	if overrides.File.MaxAgeDays != 0 {
		config.File.MaxAgeDays = overrides.File.MaxAgeDays
	}
	if overrides.File.Compress {
		config.File.Compress = true
	}

	if overrides.Stackdriver.ProjectID != "" {
		config.Stackdriver.ProjectID = overrides.Stackdriver.ProjectID
	}

	if overrides.HealthCheck.Enabled {
		config.HealthCheck.Enabled = true
		if overrides.HealthCheck.ElasticsearchURL != "" {
			config.HealthCheck.ElasticsearchURL = overrides.HealthCheck.ElasticsearchURL
		}
		if overrides.HealthCheck.ElasticsearchIndex != "" {
			config.HealthCheck.ElasticsearchIndex = overrides.HealthCheck.ElasticsearchIndex
		}
		if overrides.HealthCheck.LogPeriodicity != 0 {
			config.HealthCheck.LogPeriodicity = overrides.HealthCheck.LogPeriodicity
		}
		if overrides.HealthCheck.ElasticsearchPeriodicity != 0 {
			config.HealthCheck.ElasticsearchPeriodicity = overrides.HealthCheck.ElasticsearchPeriodicity
		}
	}
}
