package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds process settings parsed from environment variables.
// The SSID to hosts mapping lives in the user-editable config file, not here.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// LogFile is the rotating log file. Relative paths are resolved against the base directory.
	LogFile string `koanf:"log_file" validate:"required"`

	// LogMaxSizeMB is the size in megabytes at which LogFile is rotated.
	LogMaxSizeMB int `koanf:"log_max_size_mb" validate:"gte=1"`

	// LogMaxBackups is the number of rotated log files kept.
	LogMaxBackups int `koanf:"log_max_backups" validate:"gte=0"`

	// ConfigFile is the user mapping of SSIDs to hosts blocks (TOML).
	ConfigFile string `koanf:"config_file" validate:"required"`

	// HistoryFile is the bbolt database holding recent cycle reports.
	HistoryFile string `koanf:"history_file" validate:"required"`

	// HistoryLimit caps the number of cycle reports kept in HistoryFile.
	HistoryLimit int `koanf:"history_limit" validate:"gte=1"`

	// Interval is the fixed period between update cycles.
	Interval time.Duration `koanf:"interval" validate:"gte=1s"`

	// Watch triggers an early cycle when the config or hosts file changes on disk.
	Watch bool `koanf:"watch"`

	// MetricsAddr enables a Prometheus endpoint on host:port when set.
	MetricsAddr string `koanf:"metrics_addr" validate:"omitempty,listen_addr"`

	// ServiceName is the name registered with the OS service manager for run-at-login.
	ServiceName string `koanf:"service_name" validate:"required"`
}

// DEFAULT_APP_CONFIG defines the default process settings. File paths are relative and
// resolved next to the executable, matching where config.toml is created on first run.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:           "prod",
	LogLevel:      "info",
	LogFile:       "logs.txt",
	LogMaxSizeMB:  1,
	LogMaxBackups: 1,
	ConfigFile:    "config.toml",
	HistoryFile:   "history.db",
	HistoryLimit:  100,
	Interval:      10 * time.Second,
	Watch:         true,
	MetricsAddr:   "",
	ServiceName:   "auto-hosts",
}

// validListenAddr accepts "host:port" or ":port" where host is empty, "localhost" or an IP.
func validListenAddr(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	host, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return false
	}
	if host != "" && host != "localhost" && net.ParseIP(host) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// dotenvLoader loads a .env file from the working directory into the process environment
// when one exists. Variables already set in the environment win.
var dotenvLoader = func() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// envLoader is a function that loads environment variables with the prefix "AHU_".
// It transforms the keys to lowercase and removes the prefix,
// and can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "AHU_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "AHU_"))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG into the provided Koanf instance
// using the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "listen_addr" validation with the provided validator.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("listen_addr", validListenAddr)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	if err := dotenvLoader(); err != nil {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// ResolvePaths makes every relative file path in cfg absolute against base.
func (cfg *AppConfig) ResolvePaths(base string) {
	cfg.LogFile = resolve(base, cfg.LogFile)
	cfg.ConfigFile = resolve(base, cfg.ConfigFile)
	cfg.HistoryFile = resolve(base, cfg.HistoryFile)
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}
