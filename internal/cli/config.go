package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the client configuration.
type Config struct {
	APIURL  string
	WSURL   string
	Profile string
	Timeout time.Duration
	Debug   bool
}

func newViper(configFile string) *viper.Viper {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.soulchat")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SOULCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://localhost:8080/api/v1")
	v.SetDefault("ws_url", "")
	v.SetDefault("profile", "default")
	v.SetDefault("timeout", "15s")
	v.SetDefault("debug", false)
}

// loadConfig reads the config file if there is one, then env and flags.
func loadConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		APIURL:  strings.TrimRight(v.GetString("api_url"), "/"),
		WSURL:   v.GetString("ws_url"),
		Profile: v.GetString("profile"),
		Timeout: v.GetDuration("timeout"),
		Debug:   v.GetBool("debug"),
	}
	if cfg.APIURL == "" {
		return nil, errors.New("api_url must not be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return cfg, nil
}
