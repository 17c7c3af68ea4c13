package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vynguyen175/vizion/internal/analysis"
)

// EnvPrefix prefixes every environment override, e.g. VIZION_LISTEN_ADDR.
const EnvPrefix = "VIZION"

// Global configuration structure.
type Global struct {
	ListenAddr  string `mapstructure:"listen_addr" yaml:"listen_addr"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
	// DataDir holds uploaded datasets as <data_dir>/<dataset id>/original.csv.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	// HTTP
	MaxUploadMB  int           `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	SessionTTL   time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	CookieSecure bool          `mapstructure:"cookie_secure" yaml:"cookie_secure"`
	BcryptCost   int           `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// Parsing and charts
	MaxRows            int    `mapstructure:"max_rows" yaml:"max_rows"`
	PreviewRows        int    `mapstructure:"preview_rows" yaml:"preview_rows"`
	ChartWidth         int    `mapstructure:"chart_width" yaml:"chart_width"`
	ChartHeight        int    `mapstructure:"chart_height" yaml:"chart_height"`
	Delimiter          string `mapstructure:"delimiter" yaml:"delimiter"`
	DecimalSeparator   string `mapstructure:"decimal_separator" yaml:"decimal_separator"`
	ThousandsSeparator string `mapstructure:"thousands_separator" yaml:"thousands_separator"`
}

// Dir returns ~/.vizion.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".vizion"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.vizion/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults. A .env file in
// the working directory is read first and never overrides variables already set.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// DATABASE_URL is honoured without the prefix as well
	_ = v.BindEnv("database_url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")

	v.SetDefault("listen_addr", "127.0.0.1:8501")
	v.SetDefault("database_url", "sqlite:///vizion.db")
	v.SetDefault("data_dir", "data")
	v.SetDefault("max_upload_mb", 200)
	v.SetDefault("session_ttl", "168h")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("bcrypt_cost", 12)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("max_rows", 0)
	v.SetDefault("preview_rows", 20)
	v.SetDefault("chart_width", 900)
	v.SetDefault("chart_height", 540)
	v.SetDefault("delimiter", "")
	v.SetDefault("decimal_separator", ".")
	v.SetDefault("thousands_separator", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read; a missing file is not an error
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func decodeHook(dc *mapstructure.DecoderConfig) {
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}

// Validate checks value ranges.
func (c *Global) Validate() error {
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive, got %s", c.SessionTTL)
	}
	for key, s := range map[string]string{
		"delimiter":           c.Delimiter,
		"decimal_separator":   c.DecimalSeparator,
		"thousands_separator": c.ThousandsSeparator,
	} {
		if s != "" && s != `\t` && utf8.RuneCountInString(s) != 1 {
			return fmt.Errorf("%s must be a single character, got %q", key, s)
		}
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// AnalysisOptions maps parsing settings onto analysis.Options.
func (c *Global) AnalysisOptions() analysis.Options {
	opt := analysis.DefaultOptions()
	opt.MaxRows = c.MaxRows
	opt.Delimiter = firstRune(c.Delimiter)
	opt.DecimalSeparator = firstRune(c.DecimalSeparator)
	opt.ThousandsSeparator = firstRune(c.ThousandsSeparator)
	return opt
}

// MaxUploadBytes is the request body limit for uploads.
func (c *Global) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func firstRune(s string) rune {
	if s == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return 0
	}
	return r
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"listen_addr", "database_url", "data_dir", "max_upload_mb", "session_ttl", "cookie_secure",
	"bcrypt_cost", "log_level", "log_format", "max_rows", "preview_rows", "chart_width",
	"chart_height", "delimiter", "decimal_separator", "thousands_separator",
}

// Get renders a key's value for display.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "listen_addr":
		return c.ListenAddr, nil
	case "database_url":
		return c.DatabaseURL, nil
	case "data_dir":
		return c.DataDir, nil
	case "max_upload_mb":
		return strconv.Itoa(c.MaxUploadMB), nil
	case "session_ttl":
		return c.SessionTTL.String(), nil
	case "cookie_secure":
		return strconv.FormatBool(c.CookieSecure), nil
	case "bcrypt_cost":
		return strconv.Itoa(c.BcryptCost), nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	case "max_rows":
		return strconv.Itoa(c.MaxRows), nil
	case "preview_rows":
		return strconv.Itoa(c.PreviewRows), nil
	case "chart_width":
		return strconv.Itoa(c.ChartWidth), nil
	case "chart_height":
		return strconv.Itoa(c.ChartHeight), nil
	case "delimiter":
		return c.Delimiter, nil
	case "decimal_separator":
		return c.DecimalSeparator, nil
	case "thousands_separator":
		return c.ThousandsSeparator, nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// Set parses and assigns a key's value.
func (c *Global) Set(key, val string) error {
	atoi := func(min int) (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < min {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "listen_addr":
		c.ListenAddr = val
	case "database_url":
		c.DatabaseURL = val
	case "data_dir":
		c.DataDir = val
	case "max_upload_mb":
		c.MaxUploadMB, err = atoi(1)
	case "session_ttl":
		d, perr := time.ParseDuration(val)
		if perr != nil || d <= 0 {
			return fmt.Errorf("invalid duration for session_ttl: %v", val)
		}
		c.SessionTTL = d
	case "cookie_secure":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for cookie_secure: %v", val)
		}
		c.CookieSecure = b
	case "bcrypt_cost":
		c.BcryptCost, err = atoi(4)
	case "log_level":
		c.LogLevel = val
	case "log_format":
		c.LogFormat = val
	case "max_rows":
		c.MaxRows, err = atoi(0)
	case "preview_rows":
		c.PreviewRows, err = atoi(1)
	case "chart_width":
		c.ChartWidth, err = atoi(100)
	case "chart_height":
		c.ChartHeight, err = atoi(100)
	case "delimiter":
		c.Delimiter = val
	case "decimal_separator":
		c.DecimalSeparator = val
	case "thousands_separator":
		c.ThousandsSeparator = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	if err != nil {
		return err
	}
	return c.Validate()
}
