package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ineffectivecoder/smolder/pkg/smb/smb1"
)

// settings is everything the CLI needs to connect. Values come from the
// config file, then SMOLDER_* environment variables, then flags.
type settings struct {
	Target           string        `mapstructure:"target"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Domain           string        `mapstructure:"domain"`
	Password         string        `mapstructure:"password"`
	Share            string        `mapstructure:"share"`
	Socks5           string        `mapstructure:"socks5"`
	PID              uint32        `mapstructure:"pid"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxPending       int           `mapstructure:"max_pending"`
	ExtendedSecurity bool          `mapstructure:"extended_security"`
	Verbose          bool          `mapstructure:"verbose"`
}

func defaultSettings() settings {
	def := smb1.DefaultConfig()
	return settings{
		Port:       445,
		PID:        def.PID,
		Timeout:    def.Timeout,
		MaxPending: def.MaxPending,
	}
}

// loadSettings reads the optional config file and the environment. A
// missing default config file is not an error; a missing explicit one is.
func loadSettings(configPath string) (settings, error) {
	v := viper.New()
	setupViper(v, configPath)

	def := defaultSettings()
	v.SetDefault("port", def.Port)
	v.SetDefault("pid", def.PID)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("max_pending", def.MaxPending)
	for _, key := range []string{"target", "user", "domain", "password", "share", "socks5", "extended_security", "verbose"} {
		// AutomaticEnv only covers keys viper already knows about.
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case configPath == "" && os.IsNotExist(err):
		default:
			return settings{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	s := def
	if err := v.Unmarshal(&s); err != nil {
		return settings{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return s, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("SMOLDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(configDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "smolder")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "smolder")
}

// flagOverrides holds the raw flag values. Zero values leave the loaded
// settings alone.
type flagOverrides struct {
	target, user, domain, password, share, socks5 string
	timeout                                       string
	port, pid, maxPending                         int
	extendedSecurity, verbose                     bool
}

func (f flagOverrides) apply(s *settings) error {
	for _, o := range []struct {
		dst *string
		val string
	}{
		{&s.Target, f.target},
		{&s.User, f.user},
		{&s.Domain, f.domain},
		{&s.Password, f.password},
		{&s.Share, f.share},
		{&s.Socks5, f.socks5},
	} {
		if o.val != "" {
			*o.dst = o.val
		}
	}

	if f.timeout != "" {
		d, err := time.ParseDuration(f.timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", f.timeout, err)
		}
		s.Timeout = d
	}
	if f.port != 0 {
		s.Port = f.port
	}
	if f.pid != 0 {
		s.PID = uint32(f.pid)
	}
	if f.maxPending != 0 {
		s.MaxPending = f.maxPending
	}
	s.ExtendedSecurity = s.ExtendedSecurity || f.extendedSecurity
	s.Verbose = s.Verbose || f.verbose
	return nil
}

// validate checks the settings before anything touches the network.
func (s settings) validate() error {
	if s.Target == "" {
		return errors.New("missing target (-t)")
	}
	if s.Port <= 0 || s.Port > 0xFFFF {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	if s.MaxPending < 1 {
		return fmt.Errorf("max pending must be at least 1, got %d", s.MaxPending)
	}
	if s.Socks5 != "" && !strings.HasPrefix(s.Socks5, "socks5://") {
		return fmt.Errorf("SOCKS5 proxy must be a socks5:// URL, got %q", s.Socks5)
	}
	return nil
}

// clientConfig turns the settings into a client configuration.
func (s settings) clientConfig() smb1.Config {
	cfg := smb1.DefaultConfig()
	cfg.PID = s.PID
	cfg.Timeout = s.Timeout
	cfg.MaxPending = s.MaxPending
	cfg.ExtendedSecurity = s.ExtendedSecurity
	cfg.Socks5URL = s.Socks5
	return cfg
}
