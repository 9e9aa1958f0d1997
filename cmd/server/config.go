package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type uploadsConfig struct {
	Dir           string        `yaml:"dir"`
	MaxBytes      int64         `yaml:"maxBytes"`
	Retention     time.Duration `yaml:"retention"`
	PurgeInterval time.Duration `yaml:"purgeInterval"`
}

type visionConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

type config struct {
	Port     string        `yaml:"port"`
	Upstream string        `yaml:"upstream"`
	LogLevel string        `yaml:"logLevel"`
	Uploads  uploadsConfig `yaml:"uploads"`
	Vision   visionConfig  `yaml:"vision"`
}

func defaultConfig() config {
	return config{
		Port:     "8080",
		Upstream: "http://localhost:11434",
		LogLevel: "info",
		Uploads: uploadsConfig{
			Dir:           "uploads",
			MaxBytes:      20 << 20,
			Retention:     24 * time.Hour,
			PurgeInterval: time.Hour,
		},
	}
}

// loadConfig reads the YAML config file at path, falling back to defaults
// for anything unset. Environment variables OLLAMA_HOST and VISION_API_KEY
// fill the upstream host and vision key when the file leaves them empty. A
// missing file is not an error; the defaults describe a working local setup.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	f, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return config{}, fmt.Errorf("error opening config file: %w", err)
	default:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && err != io.EOF {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	if host := os.Getenv("OLLAMA_HOST"); host != "" && cfg.Upstream == defaultConfig().Upstream {
		cfg.Upstream = host
	}
	if cfg.Vision.APIKey == "" {
		cfg.Vision.APIKey = os.Getenv("VISION_API_KEY")
	}

	return cfg, nil
}

// visionEnabled reports whether enough is configured to build the vision
// service.
func (c config) visionEnabled() bool {
	return c.Vision.Model != "" && (c.Vision.APIKey != "" || c.Vision.BaseURL != "")
}

func (c config) slogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
