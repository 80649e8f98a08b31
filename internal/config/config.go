// Package config provides configuration for the screen bridge.
// Values come from flags, SCREENBRIDGE_* environment variables and an optional
// .env file, in that order of precedence. Nothing is written back to disk.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys shared by flags, environment variables and viper
const (
	KeyBridgePort     = "bridge-port"
	KeyServiceHost    = "service-host"
	KeyServicePort    = "service-port"
	KeyPollInterval   = "poll-interval"
	KeyPollTimeout    = "poll-timeout"
	KeyCommandTimeout = "command-timeout"
	KeyMaxBody        = "max-body"
	KeyLogFile        = "log-file"
	KeyLogLevel       = "log-level"
	KeyTray           = "tray"
	KeyX11            = "x11"
)

// EnvPrefix prefixes every environment variable, e.g. SCREENBRIDGE_BRIDGE_PORT
const EnvPrefix = "SCREENBRIDGE"

// Config represents the bridge configuration
type Config struct {
	// BridgePort is the loopback port of the bridge API (default: 3460)
	BridgePort int

	// ServiceHost and ServicePort locate the control service health endpoint
	ServiceHost string
	ServicePort int

	// PollInterval is the liveness check period; PollTimeout bounds one check
	PollInterval time.Duration
	PollTimeout  time.Duration

	// CommandTimeout bounds every external tool invocation
	CommandTimeout time.Duration

	// MaxBody caps POST request bodies
	MaxBody datasize.ByteSize

	// LogFile is appended to in addition to the console; empty disables it
	LogFile  string
	LogLevel string

	// Tray shows the status indicator in the desktop tray
	Tray bool

	// X11 enables the direct X11 connection for pointer queries
	X11 bool
}

// Default returns a new Config with the stock ports and timings
func Default() *Config {
	return &Config{
		BridgePort:     3460,
		ServiceHost:    "127.0.0.1",
		ServicePort:    3459,
		PollInterval:   5 * time.Second,
		PollTimeout:    2 * time.Second,
		CommandTimeout: 10 * time.Second,
		MaxBody:        datasize.MB,
		LogFile:        "/tmp/screencontrol-tray.log",
		LogLevel:       "info",
		Tray:           true,
		X11:            true,
	}
}

// RegisterFlags adds one flag per key, defaulting to Default()
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Int(KeyBridgePort, d.BridgePort, "loopback port for the bridge API")
	fs.String(KeyServiceHost, d.ServiceHost, "control service host for liveness checks")
	fs.Int(KeyServicePort, d.ServicePort, "control service port for liveness checks")
	fs.Duration(KeyPollInterval, d.PollInterval, "liveness check interval")
	fs.Duration(KeyPollTimeout, d.PollTimeout, "liveness check timeout")
	fs.Duration(KeyCommandTimeout, d.CommandTimeout, "time limit for each capture/input tool invocation")
	fs.String(KeyMaxBody, d.MaxBody.String(), "maximum POST body size (e.g. 512KB, 1MB)")
	fs.String(KeyLogFile, d.LogFile, "log file path (empty to disable)")
	fs.String(KeyLogLevel, d.LogLevel, "log level: debug, info, warn, error")
	fs.Bool(KeyTray, d.Tray, "show the tray status indicator")
	fs.Bool(KeyX11, d.X11, "open a direct X11 connection when available")
}

// Load resolves the configuration. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault(KeyBridgePort, d.BridgePort)
	v.SetDefault(KeyServiceHost, d.ServiceHost)
	v.SetDefault(KeyServicePort, d.ServicePort)
	v.SetDefault(KeyPollInterval, d.PollInterval)
	v.SetDefault(KeyPollTimeout, d.PollTimeout)
	v.SetDefault(KeyCommandTimeout, d.CommandTimeout)
	v.SetDefault(KeyMaxBody, d.MaxBody.String())
	v.SetDefault(KeyLogFile, d.LogFile)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyTray, d.Tray)
	v.SetDefault(KeyX11, d.X11)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := &Config{
		BridgePort:     v.GetInt(KeyBridgePort),
		ServiceHost:    v.GetString(KeyServiceHost),
		ServicePort:    v.GetInt(KeyServicePort),
		PollInterval:   v.GetDuration(KeyPollInterval),
		PollTimeout:    v.GetDuration(KeyPollTimeout),
		CommandTimeout: v.GetDuration(KeyCommandTimeout),
		LogFile:        v.GetString(KeyLogFile),
		LogLevel:       v.GetString(KeyLogLevel),
		Tray:           v.GetBool(KeyTray),
		X11:            v.GetBool(KeyX11),
	}
	if err := cfg.MaxBody.UnmarshalText([]byte(v.GetString(KeyMaxBody))); err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", KeyMaxBody, v.GetString(KeyMaxBody), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges
func (c *Config) Validate() error {
	var errs []error
	if c.BridgePort < 0 || c.BridgePort > 65535 {
		errs = append(errs, fmt.Errorf("%s out of range: %d", KeyBridgePort, c.BridgePort))
	}
	if c.ServicePort <= 0 || c.ServicePort > 65535 {
		errs = append(errs, fmt.Errorf("%s out of range: %d", KeyServicePort, c.ServicePort))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyPollInterval))
	}
	if c.PollTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyPollTimeout))
	}
	if c.CommandTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyCommandTimeout))
	}
	if c.MaxBody == 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyMaxBody))
	}
	return errors.Join(errs...)
}

// ServiceHealthURL is the control service endpoint polled for liveness
func (c *Config) ServiceHealthURL() string {
	return fmt.Sprintf("http://%s:%d/health", c.ServiceHost, c.ServicePort)
}
