// Package config loads statevault settings with viper.
//
// Settings come from, in increasing priority: built-in defaults, the config
// file (.statevault.yaml in the home or working directory, or an explicit
// path), and STATEVAULT_* environment variables where dots become
// underscores (STATEVAULT_TRANSPORT_DIR, STATEVAULT_LOG_LEVEL, ...).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/illarion/statevault/internal/crypto"
	"github.com/illarion/statevault/internal/logging"
	"github.com/illarion/statevault/internal/transport"
)

const (
	EnvPrefix = "STATEVAULT"
	FileName  = ".statevault"
)

// Transport kinds
const (
	TransportNone = "none"
	TransportDir  = "dir"
	TransportS3   = "s3"
)

// TransportConfig selects where exports are shipped.
type TransportConfig struct {
	Kind string             `mapstructure:"kind"`
	Dir  string             `mapstructure:"dir"`
	S3   transport.S3Config `mapstructure:"s3"`
}

// Config is the complete statevault configuration.
type Config struct {
	StorePath  string          `mapstructure:"store"`
	AppVersion string          `mapstructure:"app_version"`
	Iterations uint32          `mapstructure:"iterations"`
	Transport  TransportConfig `mapstructure:"transport"`
	Log        logging.Config  `mapstructure:"log"`
	Metrics    struct {
		Textfile string `mapstructure:"textfile"`
	} `mapstructure:"metrics"`
	Keyring struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"keyring"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store", ".statevault.db")
	v.SetDefault("app_version", "dev")
	v.SetDefault("iterations", crypto.DefaultIterations)

	v.SetDefault("transport.kind", TransportNone)
	v.SetDefault("transport.dir", "")
	v.SetDefault("transport.s3.endpoint", "")
	v.SetDefault("transport.s3.access_key_id", "")
	v.SetDefault("transport.s3.secret_access_key", "")
	v.SetDefault("transport.s3.bucket", "")
	v.SetDefault("transport.s3.prefix", "statevault/")
	v.SetDefault("transport.s3.region", "us-east-1")
	v.SetDefault("transport.s3.use_ssl", true)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("keyring.enabled", true)
}

// Load reads configuration. An empty path searches the home and working
// directories; a missing file there is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(FileName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that viper cannot type-check.
func (c *Config) Validate() error {
	if c.Iterations == 0 || c.Iterations > crypto.MaxIterations {
		return fmt.Errorf("iterations must be between 1 and %d", crypto.MaxIterations)
	}
	switch c.Transport.Kind {
	case TransportNone:
	case TransportDir:
		if c.Transport.Dir == "" {
			return fmt.Errorf("transport.dir is required for the dir transport")
		}
	case TransportS3:
		if c.Transport.S3.Endpoint == "" || c.Transport.S3.Bucket == "" {
			return fmt.Errorf("transport.s3.endpoint and transport.s3.bucket are required for the s3 transport")
		}
	default:
		return fmt.Errorf("unknown transport kind %q (use none, dir or s3)", c.Transport.Kind)
	}
	return nil
}
