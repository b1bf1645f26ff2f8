// Package settings holds the process-wide user settings and their TOML file.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"selfhostgpt/internal/models"
)

type Theme string

const (
	ThemeLight Theme = "LIGHT"
	ThemeDark  Theme = "DARK"
)

const DefaultSystemMessage = "You are ChatGPT, a large language model trained by OpenAI. Answer as concisely as possible. Knowledge cutoff: 2021-09-01"

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Environment variables read at load time.
const (
	EnvAPIKey  = "OPENAI_API_KEY"
	EnvBaseURL = "OPENAI_BASE_URL"
)

type StoreConfig struct {
	Driver    string `toml:"driver"`
	Path      string `toml:"path,omitempty"` // sqlite file, defaults to the config dir
	RedisAddr string `toml:"redis_addr,omitempty"`
}

type Settings struct {
	Theme         Theme       `toml:"theme"`
	Model         string      `toml:"model"`
	SystemMessage string      `toml:"system_message"`
	APIKey        string      `toml:"api_key"`
	BaseURL       string      `toml:"base_url,omitempty"`
	Mock          bool        `toml:"mock"` // offline echo client
	Store         StoreConfig `toml:"store"`
}

func Default() Settings {
	return Settings{
		Theme:         ThemeLight,
		Model:         models.GPT35,
		SystemMessage: DefaultSystemMessage,
		Store: StoreConfig{
			Driver:    DriverSQLite,
			RedisAddr: "localhost:6379",
		},
	}
}

// ApplyEnvOverrides lets externally supplied credentials take precedence.
func (s *Settings) ApplyEnvOverrides() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		s.APIKey = key
	}
	if url := os.Getenv(EnvBaseURL); url != "" {
		s.BaseURL = url
	}
}

func (s Settings) Validate() error {
	switch s.Theme {
	case ThemeLight, ThemeDark:
	default:
		return errors.Errorf("theme must be %s or %s, got %q", ThemeLight, ThemeDark, s.Theme)
	}
	if s.Model == "" {
		return errors.New("model must not be empty")
	}
	switch s.Store.Driver {
	case DriverSQLite:
	case DriverRedis:
		if s.Store.RedisAddr == "" {
			return errors.New("store.redis_addr is required for the redis driver")
		}
	default:
		return errors.Errorf("unknown store driver %q", s.Store.Driver)
	}
	return nil
}

// Dir returns the selfhostgpt configuration directory.
func Dir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", errors.Wrap(err, "could not determine config directory")
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "selfhostgpt"), nil
}

// Path returns the settings file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.toml"), nil
}

// Load reads path over the defaults. A missing file yields the defaults. An undecodable
// or invalid file also yields the defaults, together with the error.
func Load(path string) (Settings, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Default(), errors.Wrap(err, "decode settings")
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverSQLite
	}
	if err := cfg.Validate(); err != nil {
		return Default(), errors.Wrap(err, "invalid settings")
	}
	return cfg, nil
}

// SaveTOML writes s to path with owner-only permissions.
func SaveTOML(s Settings, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "create settings directory")
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.Wrap(err, "create settings file")
	}
	defer file.Close()

	if err := os.Chmod(path, 0o600); err != nil {
		return errors.Wrap(err, "set settings file permissions")
	}

	fmt.Fprintln(file, "# selfhostgpt settings")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(s); err != nil {
		return errors.Wrap(err, "encode settings")
	}
	return nil
}
