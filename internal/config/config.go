// Package config loads gateway settings from an optional YAML file, a
// .env file and MAILGW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MAILGW_SERVER_ADDR.
const EnvPrefix = "MAILGW"

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" validate:"required"`
	GinMode           string        `mapstructure:"gin_mode" validate:"oneof=debug release test"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// GmailConfig holds Gmail API settings.
type GmailConfig struct {
	Endpoint string `mapstructure:"endpoint" validate:"required,url"`
}

// OutlookConfig holds Microsoft Graph settings.
type OutlookConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// IMAPConfig holds the IMAP server used by the imap provider.
type IMAPConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port      int    `mapstructure:"port" validate:"min=1,max=65535"`
	TLS       bool   `mapstructure:"tls"`
	Mechanism string `mapstructure:"mechanism" validate:"oneof=xoauth2 oauthbearer"`
}

// ProvidersConfig holds per-provider settings.
type ProvidersConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Gmail   GmailConfig   `mapstructure:"gmail"`
	Outlook OutlookConfig `mapstructure:"outlook"`
	IMAP    IMAPConfig    `mapstructure:"imap"`
}

// AccessLogConfig controls the SQLite access log.
type AccessLogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

// CredentialsConfig controls where the CLI keeps tokens.
type CredentialsConfig struct {
	Service string `mapstructure:"service" validate:"required"`
	FileDir string `mapstructure:"file_dir"`
}

// Config is the top-level gateway configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	AccessLog   AccessLogConfig   `mapstructure:"access_log"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
}

// DefaultConfigPath returns ~/.config/mailgateway/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailgateway", "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "mailgateway")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("providers.timeout", 30*time.Second)
	v.SetDefault("providers.gmail.endpoint", "https://gmail.googleapis.com/")
	v.SetDefault("providers.outlook.base_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("providers.imap.enabled", false)
	v.SetDefault("providers.imap.host", "")
	v.SetDefault("providers.imap.port", 993)
	v.SetDefault("providers.imap.tls", true)
	v.SetDefault("providers.imap.mechanism", "xoauth2")

	v.SetDefault("access_log.enabled", false)
	v.SetDefault("access_log.path", filepath.Join(defaultDataDir(), "access.db"))

	v.SetDefault("credentials.service", "mail-integration")
	v.SetDefault("credentials.file_dir", filepath.Join(defaultDataDir(), "keyring"))
}

// Load reads the configuration. A missing file at path yields defaults
// with environment overrides applied. An empty path skips the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			var pathErr *os.PathError
			if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Providers.IMAP.Mechanism = strings.ToLower(cfg.Providers.IMAP.Mechanism)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
