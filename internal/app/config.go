package app

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CIPHERCHAT_RELAY.
const EnvPrefix = "CIPHERCHAT"

// Config holds runtime wiring options for building the app.
type Config struct {
	Home        string `mapstructure:"home"`         // state directory, e.g. $HOME/.cipherchat
	RelayURL    string `mapstructure:"relay"`        // relay base URL, e.g. http://127.0.0.1:8080
	Username    string `mapstructure:"username"`     // local account; optional with a single profile
	DatabaseURL string `mapstructure:"database_url"` // optional; sessions go to Postgres when set
	LogLevel    string `mapstructure:"log_level"`

	HTTP *http.Client `mapstructure:"-"` // optional; the relay client default otherwise
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"home":         "home",
	"relay":        "relay",
	"username":     "username",
	"database-url": "database_url",
	"log-level":    "log_level",
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault("home", filepath.Join(home, ".cipherchat"))
	v.SetDefault("relay", "http://127.0.0.1:8080")
	v.SetDefault("log_level", "warn")
}

// LoadConfig layers defaults, an optional config file, CIPHERCHAT_* variables
// and the flags in fs, later sources winning.
func LoadConfig(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", f.Value.String(), err)
			}
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

// Validate checks the fields every command needs.
func (c Config) Validate() error {
	if c.Home == "" {
		return errors.New("home directory is empty")
	}
	u, err := url.Parse(c.RelayURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid relay url %q", c.RelayURL)
	}
	return nil
}
