// Package config resolves keytalk settings from defaults, a TOML file, the
// environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	APIURL         string        `toml:"api_url" env:"KEYTALK_API_URL"`
	Keyboard       string        `toml:"keyboard" env:"KEYTALK_KEYBOARD"`
	Key            string        `toml:"key" env:"KEYTALK_KEY"`
	Language       string        `toml:"language" env:"KEYTALK_LANGUAGE"`
	PadSeconds     float64       `toml:"pad_seconds" env:"KEYTALK_PAD_SECONDS"`
	Layout         string        `toml:"layout" env:"KEYTALK_LAYOUT"`
	InjectDelay    int           `toml:"inject_delay" env:"KEYTALK_INJECT_DELAY"` // milliseconds
	Injector       string        `toml:"injector" env:"KEYTALK_INJECTOR"`
	InjectCommand  []string      `toml:"inject_command" env:"KEYTALK_INJECT_COMMAND" envSeparator:" "`
	YdotoolSocket  string        `toml:"ydotool_socket" env:"KEYTALK_YDOTOOL_SOCKET"`
	AudioBackend   string        `toml:"audio_backend" env:"KEYTALK_AUDIO_BACKEND"`
	Microphone     string        `toml:"microphone" env:"KEYTALK_MICROPHONE"`
	TextPath       string        `toml:"text_path" env:"KEYTALK_TEXT_PATH"`
	RequestTimeout time.Duration `toml:"request_timeout" env:"KEYTALK_REQUEST_TIMEOUT"`
	Beep           bool          `toml:"beep" env:"KEYTALK_BEEP"`
	CopyClipboard  bool          `toml:"copy_to_clipboard" env:"KEYTALK_COPY_TO_CLIPBOARD"`
	Hotplug        bool          `toml:"hotplug" env:"KEYTALK_HOTPLUG"`
	Debug          bool          `toml:"debug" env:"KEYTALK_DEBUG"`
	LogPath        string        `toml:"log_path" env:"KEYTALK_LOG_PATH"`

	// Source is the config file that was read, if any.
	Source string `toml:"-"`
	// Warnings are non-fatal problems found while loading, reported once
	// logging is up.
	Warnings []string `toml:"-"`
}

var (
	layouts   = []string{"us", "de"}
	injectors = []string{"ydotool", "uinput"}
	backends  = []string{"pulse", "miniaudio"}
)

func Default() *Config {
	return &Config{
		APIURL:         "http://localhost:5000",
		Key:            "KEY_RIGHTMETA",
		Language:       "auto",
		Layout:         "us",
		Injector:       "ydotool",
		InjectCommand:  []string{"ydotool", "key"},
		YdotoolSocket:  "/tmp/.ydotool_socket",
		AudioBackend:   defaultBackend(),
		TextPath:       "text",
		RequestTimeout: 60 * time.Second,
	}
}

// DefaultPath is $XDG_CONFIG_HOME/keytalk/config.toml.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "keytalk", "config.toml")
}

// Load builds the configuration. An empty path reads DefaultPath if it
// exists; an explicit path must exist. envFile is loaded into the process
// environment first when present; variables already set win.
func Load(path, envFile string, flags *Flags) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.loadFile(path, explicit); err != nil {
			return nil, err
		}
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("loading %s: %w", envFile, err)
			}
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if flags != nil {
		flags.apply(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, explicit bool) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}
	c.Source = path
	for _, key := range md.Undecoded() {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s: unknown key %q", path, key.String()))
	}
	return nil
}

func oneOf(name, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (allowed: %s)", name, value, strings.Join(allowed, ", "))
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIURL) == "" {
		errs = append(errs, errors.New("api_url must not be empty"))
	}
	if strings.TrimSpace(c.Key) == "" {
		errs = append(errs, errors.New("key must not be empty"))
	}
	if err := oneOf("layout", c.Layout, layouts); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("injector", c.Injector, injectors); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("audio_backend", c.AudioBackend, backends); err != nil {
		errs = append(errs, err)
	}
	if c.PadSeconds < 0 {
		errs = append(errs, fmt.Errorf("pad_seconds must not be negative, got %v", c.PadSeconds))
	}
	if c.InjectDelay < 0 {
		errs = append(errs, fmt.Errorf("inject_delay must not be negative, got %d", c.InjectDelay))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.Injector == "ydotool" && len(c.InjectCommand) == 0 {
		errs = append(errs, errors.New("inject_command must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
