package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Analysis AnalysisConfig
	Storage  StorageConfig
	Report   ReportConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int
	// Token enables bearer auth on the HTTP API when non-empty.
	Token string
}

type AnalysisConfig struct {
	BaseURL        string
	Timeout        time.Duration
	HealthInterval time.Duration
	// APIKey is forwarded to the backend with every analysis request.
	APIKey   string
	MockMode bool
}

type StorageConfig struct {
	DataDir string
}

type ReportConfig struct {
	// FontPath is a UTF-8 TrueType font used for Korean text in PDF reports.
	FontPath string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Analysis: AnalysisConfig{
			BaseURL:        "http://localhost:8000",
			Timeout:        10 * time.Minute,
			HealthInterval: 30 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration in layers, later ones winning:
//
//  1. built-in defaults
//  2. the YAML file at $XDG_CONFIG_HOME/narastore/config.yaml
//  3. a .env file in the working directory (or $NARASTORE_ENV_FILE)
//  4. NARASTORE_* environment variables
//
// A missing analysis API key is not an error here; uploads check for it.
func Load() (Config, error) {
	envFile := os.Getenv("NARASTORE_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	dotenv, err := readDotEnv(envFile)
	if err != nil {
		return Config{}, err
	}
	return loadWith(newFileBackend(configFilePath()), lookupChain(os.LookupEnv, dotenv))
}

// lookupFunc reports the raw value for an environment variable.
type lookupFunc func(name string) (string, bool)

// lookupChain prefers the process environment over values read from .env.
func lookupChain(env lookupFunc, dotenv map[string]string) lookupFunc {
	return func(name string) (string, bool) {
		if v, ok := env(name); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[name]
		return v, ok
	}
}

func readDotEnv(path string) (map[string]string, error) {
	vals, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return vals, nil
}

func loadWith(b ConfigBackend, lookup lookupFunc) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg, lookup)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	if c.Analysis.BaseURL == "" {
		return fmt.Errorf("invalid config: analysis.base_url is empty")
	}
	if c.Analysis.Timeout <= 0 || c.Analysis.HealthInterval <= 0 {
		return fmt.Errorf("invalid config: analysis durations must be positive")
	}
	return nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "narastore-data"
		}
	}
	return filepath.Join(dir, "narastore")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "narastore", "config.yaml")
}
