package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config holds all application configuration.
type Config struct {
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	BindHost            string        `env:"RELAY_BIND_HOST" envDefault:""`
	LogPort             int           `env:"RELAY_LOG_PORT" envDefault:"9999"`
	ScreenshotPort      int           `env:"RELAY_SCREENSHOT_PORT" envDefault:"9998"`
	OutputFile          string        `env:"RELAY_OUTPUT_FILE"`
	ScreenshotDir       string        `env:"RELAY_SCREENSHOT_DIR" envDefault:"/tmp/app_screenshots"`
	RotateMinutes       int           `env:"RELAY_ROTATE_MINUTES" envDefault:"15"`
	Quiet               bool          `env:"RELAY_QUIET" envDefault:"false"`
	ServiceName         string        `env:"RELAY_SERVICE_NAME" envDefault:"V4MinimalApp"`
	PollInterval        time.Duration `env:"RELAY_POLL_INTERVAL" envDefault:"1s"`
	MaxLineBytes        int           `env:"RELAY_MAX_LINE_BYTES" envDefault:"1048576"` // 1MB
	MaxTimestampBytes   uint64        `env:"RELAY_MAX_TIMESTAMP_BYTES" envDefault:"256"`
	MaxScreenshotBytes  uint64        `env:"RELAY_MAX_SCREENSHOT_BYTES" envDefault:"67108864"` // 64MB
	CompressRotated     bool          `env:"RELAY_COMPRESS_ROTATED" envDefault:"false"`
	AdminAddr           string        `env:"RELAY_ADMIN_ADDR" envDefault:":9091"`
	RedisURL            string        `env:"REDIS_URL"`
	RedisChannel        string        `env:"RELAY_REDIS_CHANNEL" envDefault:"relay:logs"`
	RedisHealthInterval time.Duration `env:"RELAY_REDIS_HEALTH_INTERVAL" envDefault:"5s"`
}

// RotationInterval returns the configured rotation period, zero when disabled.
func (c *Config) RotationInterval() time.Duration {
	return time.Duration(c.RotateMinutes) * time.Minute
}

// Load reads configuration from environment variables, then applies any
// command-line flags that were explicitly set in args.
func Load(args []string) (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyFlags(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFlags(args []string) error {
	flagSet := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	flagSet.IntVarP(&c.LogPort, "port", "p", c.LogPort, "TCP port for logs")
	flagSet.IntVarP(&c.ScreenshotPort, "screenshot-port", "s", c.ScreenshotPort, "TCP port for screenshots")
	flagSet.StringVarP(&c.OutputFile, "output", "o", c.OutputFile, "file to write logs to")
	flagSet.StringVar(&c.ScreenshotDir, "screenshot-dir", c.ScreenshotDir, "directory to save screenshots")
	flagSet.BoolVarP(&c.Quiet, "quiet", "q", c.Quiet, "only write to file, no terminal output")
	flagSet.IntVarP(&c.RotateMinutes, "rotate", "r", c.RotateMinutes, "rotate the log file every N minutes (0 disables)")
	flagSet.StringVar(&c.AdminAddr, "admin-addr", c.AdminAddr, "admin and metrics HTTP address (empty disables)")
	flagSet.StringVar(&c.RedisURL, "redis-url", c.RedisURL, "redis URL for the live log mirror (empty disables)")
	flagSet.StringVar(&c.ServiceName, "service-name", c.ServiceName, "service name written on every line")
	flagSet.StringVar(&c.LogLevel, "log-level", c.LogLevel, "relay log level (debug, info, warn, error)")
	flagSet.BoolVar(&c.CompressRotated, "compress-rotated", c.CompressRotated, "zstd-compress rotated-out log files")

	if err := flagSet.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return nil
}

// Validate checks the values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	var errs []error
	if !validPort(c.LogPort) {
		errs = append(errs, fmt.Errorf("invalid log port %d", c.LogPort))
	}
	if !validPort(c.ScreenshotPort) {
		errs = append(errs, fmt.Errorf("invalid screenshot port %d", c.ScreenshotPort))
	}
	if c.LogPort != 0 && c.LogPort == c.ScreenshotPort {
		errs = append(errs, fmt.Errorf("log and screenshot ports must differ (both %d)", c.LogPort))
	}
	if c.RotateMinutes < 0 {
		errs = append(errs, fmt.Errorf("rotate interval must be >= 0, got %d", c.RotateMinutes))
	}
	if c.Quiet && c.OutputFile == "" {
		errs = append(errs, errors.New("--quiet requires --output"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.ScreenshotDir == "" {
		errs = append(errs, errors.New("screenshot directory must not be empty"))
	}
	if c.MaxTimestampBytes == 0 {
		errs = append(errs, errors.New("max timestamp bytes must be positive"))
	}
	if c.MaxScreenshotBytes == 0 {
		errs = append(errs, errors.New("max screenshot bytes must be positive"))
	}
	return errors.Join(errs...)
}

// Port 0 asks the kernel for an ephemeral port.
func validPort(p int) bool {
	return p >= 0 && p <= 65535
}
