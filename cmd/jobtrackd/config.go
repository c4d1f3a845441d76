package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xraph/jobtrack"
)

// Config is the daemon configuration.
type Config struct {
	Server  ServerConfig    `mapstructure:"server"`
	Log     LogConfig       `mapstructure:"log"`
	Backend BackendConfig   `mapstructure:"backend"`
	Engine  jobtrack.Config `mapstructure:"engine"`
	Report  ReportConfig    `mapstructure:"report"`
	Audit   AuditConfig     `mapstructure:"audit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
}

// BackendConfig selects the job store.
type BackendConfig struct {
	// URL is memory:// or redis://[user:pass@]host:port/db.
	URL       string `mapstructure:"url"`
	Codec     string `mapstructure:"codec"` // json, msgpack
	KeyPrefix string `mapstructure:"key_prefix"`
}

// AuditConfig controls the audit trail extension.
type AuditConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Actions []string `mapstructure:"actions"` // empty means all
}

// ReportConfig configures the built-in report task.
type ReportConfig struct {
	StepDelay time.Duration `mapstructure:"step_delay"`
}

func setDefaults(v *viper.Viper) {
	def := jobtrack.DefaultConfig()

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_header_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("backend.url", "memory://")
	v.SetDefault("backend.codec", "json")
	v.SetDefault("backend.key_prefix", "jobtrack:")

	v.SetDefault("engine.concurrency", def.Concurrency)
	v.SetDefault("engine.queue_size", def.QueueSize)
	v.SetDefault("engine.submit_rate", def.SubmitRate)
	v.SetDefault("engine.submit_burst", def.SubmitBurst)
	v.SetDefault("engine.retention", def.Retention)
	v.SetDefault("engine.sweep_interval", def.SweepInterval)
	v.SetDefault("engine.job_timeout", def.JobTimeout)
	v.SetDefault("engine.shutdown_timeout", def.ShutdownTimeout)

	v.SetDefault("report.step_delay", "1s")

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.actions", []string{})
}

// loadConfig reads defaults, then the config file, then JOBTRACK_*
// environment variables (JOBTRACK_ENGINE_CONCURRENCY, JOBTRACK_BACKEND_URL).
func loadConfig(v *viper.Viper, path string) (Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("JOBTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("jobtrack")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format %q: must be console or json", c.Log.Format)
	}
	switch c.Backend.Codec {
	case "json", "msgpack":
	default:
		return fmt.Errorf("backend.codec %q: must be json or msgpack", c.Backend.Codec)
	}
	if c.Report.StepDelay < 0 {
		return errors.New("report.step_delay must not be negative")
	}
	return c.Engine.Validate()
}
