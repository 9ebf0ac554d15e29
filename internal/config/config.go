// Package config provides unified configuration loading for the figure service.
// Supports YAML files, .env files, and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the figure service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Paths         PathsConfig         `yaml:"paths"`
	Extractor     ExtractorConfig     `yaml:"extractor"`
	Visualizer    VisualizerConfig    `yaml:"visualizer"`
	Extraction    ExtractionConfig    `yaml:"extraction"`
	Download      DownloadConfig      `yaml:"download"`
	History       HistoryConfig       `yaml:"history"`
	Events        EventsConfig        `yaml:"events"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes"`
	RateLimit        float64       `yaml:"rate_limit"` // extraction requests per second, 0 disables
	RateBurst        int           `yaml:"rate_burst"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// PathsConfig holds the filesystem layout.
type PathsConfig struct {
	InputDir    string `yaml:"input_dir"`
	OutputDir   string `yaml:"output_dir"`
	DownloadDir string `yaml:"download_dir"`
}

// ExtractorConfig describes how to launch the external figure-extraction tool.
type ExtractorConfig struct {
	JavaBin    string        `yaml:"java_bin"`
	JavaOpts   string        `yaml:"java_opts"` // shell-style, split with shlex
	JarPath    string        `yaml:"jar_path"`
	DefaultDPI int           `yaml:"default_dpi"`
	Timeout    time.Duration `yaml:"timeout"` // 0 means no limit
}

// VisualizerConfig describes the visualization command.
type VisualizerConfig struct {
	Command string `yaml:"command"` // shell-style, the PDF path is appended
}

// ExtractionConfig holds batch settings.
type ExtractionConfig struct {
	Workers   int  `yaml:"workers"` // 1 keeps processing sequential
	Preflight bool `yaml:"preflight"`
}

// DownloadConfig holds remote source settings.
type DownloadConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	MaxBytes int64         `yaml:"max_bytes"`
}

// HistoryConfig holds the batch history store settings.
type HistoryConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres or none
	DSN    string `yaml:"dsn"`
	Limit  int    `yaml:"limit"` // default page size for listings
}

// EventsConfig holds batch notification settings.
type EventsConfig struct {
	Driver  string      `yaml:"driver"` // none, memory or redis
	Channel string      `yaml:"channel"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads .env files, then the YAML file at path (if any), then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		cfg.Extractor.JarPath = ResolveRelativePath(path, cfg.Extractor.JarPath)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration matching the container layout.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             5001,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     0,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
			MaxBodyBytes:     1 << 20,
			RateBurst:        1,
			AllowedOrigins:   []string{"*"},
		},
		Paths: PathsConfig{
			InputDir:    "data/input",
			OutputDir:   "data/output",
			DownloadDir: "data/input/downloads",
		},
		Extractor: ExtractorConfig{
			JavaBin:    "java",
			JarPath:    "/pdffigures2/pdffigures2.jar",
			DefaultDPI: 300,
		},
		Visualizer: VisualizerConfig{
			Command: "java -cp /pdffigures2/pdffigures2.jar org.allenai.pdffigures2.FigureExtractorVisualizationCli",
		},
		Extraction: ExtractionConfig{
			Workers:   1,
			Preflight: true,
		},
		Download: DownloadConfig{
			Timeout:  2 * time.Minute,
			MaxBytes: 200 << 20,
		},
		History: HistoryConfig{
			Driver: "sqlite",
			DSN:    "file:figure-history?mode=memory&cache=shared",
			Limit:  20,
		},
		Events: EventsConfig{
			Driver:  "none",
			Channel: "batches.completed",
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "figures:",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "figure-service",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}

	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return fmt.Errorf("output_dir is required")
	}

	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		return fmt.Errorf("download_dir is required")
	}

	if strings.TrimSpace(c.Extractor.JavaBin) == "" {
		return fmt.Errorf("java_bin is required")
	}

	if strings.TrimSpace(c.Extractor.JarPath) == "" {
		return fmt.Errorf("jar_path is required")
	}

	if c.Extractor.DefaultDPI < 1 {
		return fmt.Errorf("default_dpi must be positive, got %d", c.Extractor.DefaultDPI)
	}

	if c.Extractor.Timeout < 0 {
		return fmt.Errorf("extractor timeout must not be negative")
	}

	if c.Extraction.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Extraction.Workers)
	}

	switch c.History.Driver {
	case "sqlite", "postgres":
		if c.History.DSN == "" {
			return fmt.Errorf("history dsn is required for driver %s", c.History.Driver)
		}
	case "none":
	default:
		return fmt.Errorf("invalid history driver: %s", c.History.Driver)
	}

	switch c.Events.Driver {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("invalid events driver: %s", c.Events.Driver)
	}

	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("RATE_LIMIT"); v != "" {
		if rl, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.RateLimit = rl
		}
	}

	if v := os.Getenv("INPUT_DIR"); v != "" {
		cfg.Paths.InputDir = v
	}

	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Paths.OutputDir = v
	}

	if v := os.Getenv("DOWNLOAD_DIR"); v != "" {
		cfg.Paths.DownloadDir = v
	}

	if v := os.Getenv("JAVA_BIN"); v != "" {
		cfg.Extractor.JavaBin = v
	}

	if v := os.Getenv("JAVA_OPTS"); v != "" {
		cfg.Extractor.JavaOpts = v
	}

	if v := os.Getenv("PDFFIGURES_JAR"); v != "" {
		cfg.Extractor.JarPath = v
	}

	if v := os.Getenv("EXTRACTOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Extractor.Timeout = d
		}
	}

	if v := os.Getenv("VISUALIZER_COMMAND"); v != "" {
		cfg.Visualizer.Command = v
	}

	if v := os.Getenv("EXTRACTION_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Extraction.Workers = n
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		switch {
		case v == "none":
			cfg.History.Driver = "none"
		case strings.HasPrefix(v, "sqlite:"):
			cfg.History.Driver = "sqlite"
			cfg.History.DSN = strings.TrimPrefix(v, "sqlite:")
		case strings.HasPrefix(v, "postgres"):
			cfg.History.Driver = "postgres"
			cfg.History.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Events.Driver = "redis"
		cfg.Events.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if targetPath == "" || filepath.IsAbs(targetPath) {
		return targetPath
	}
	return filepath.Join(filepath.Dir(configPath), targetPath)
}
