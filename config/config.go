// Package config loads config.yaml, applies .env and ANNOTATOR_*
// environment overrides and validates the result.
package config

import (
	"FrameAnnotator/annotator"
	"FrameAnnotator/engine"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "ANNOTATOR_"

const (
	BackendPigo   = "pigo"
	BackendOpenCV = "opencv"
)

// Classifier paths used when node.classifier is left empty, relative to
// the working directory. Both cascades ship in classifiers/.
const (
	DefaultPigoCascade   = "classifiers/facefinder"
	DefaultOpenCVCascade = "classifiers/haarcascade_frontalface_default.xml"
)

type Config struct {
	Node     NodeConfig        `yaml:"node"`
	Pigo     engine.PigoConfig `yaml:"pigo"`
	Server   ServerConfig      `yaml:"server"`
	Output   OutputConfig      `yaml:"output"`
	Registry RegistryConfig    `yaml:"registry"`
	Log      LogConfig         `yaml:"log"`
	Metrics  MetricsConfig     `yaml:"metrics"`
}

type NodeConfig struct {
	Name        string `yaml:"name"`
	Topic       string `yaml:"topic"`
	Display     bool   `yaml:"display"`
	Backend     string `yaml:"backend"`
	Classifier  string `yaml:"classifier"`
	Quality     int    `yaml:"quality"`
	DetectWidth int    `yaml:"detectWidth"`
	Thickness   int    `yaml:"thickness"`
}

type ServerConfig struct {
	HTTPPort int `yaml:"httpPort"`
	RPCPort  int `yaml:"rpcPort"`
}

type OutputConfig struct {
	Dir        string        `yaml:"dir"`
	WebhookURL string        `yaml:"webhookURL"`
	Timeout    time.Duration `yaml:"timeout"`
}

type RegistryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Interval time.Duration `yaml:"interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

func Default() *Config {
	return &Config{
		Node: NodeConfig{
			Name:        "object-detector",
			Backend:     BackendPigo,
			Quality:     annotator.DefaultQuality,
			DetectWidth: annotator.DefaultDetectWidth,
			Thickness:   1,
		},
		Pigo: engine.DefaultPigoConfig(),
		Server: ServerConfig{
			HTTPPort: 8080,
			RPCPort:  50051,
		},
		Output: OutputConfig{
			Dir:     "output",
			Timeout: 5 * time.Second,
		},
		Registry: RegistryConfig{
			Port:     8000,
			Interval: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Interval: 500 * time.Millisecond,
		},
	}
}

// Load reads path on top of the defaults. A missing file is not an error
// so the node can be configured from the environment alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// .env only fills variables that are not already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if cfg.Node.Classifier == "" {
		cfg.Node.Classifier = DefaultPigoCascade
		if cfg.Node.Backend == BackendOpenCV {
			cfg.Node.Classifier = DefaultOpenCVCascade
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if val, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = val
		}
	}
	num := func(key string, dst *int) {
		if val, ok := os.LookupEnv(envPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if val, ok := os.LookupEnv(envPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(val))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *time.Duration) {
		if val, ok := os.LookupEnv(envPrefix + key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(val))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("NODE_NAME", &cfg.Node.Name)
	str("NODE_TOPIC", &cfg.Node.Topic)
	flag("DISPLAY", &cfg.Node.Display)
	str("BACKEND", &cfg.Node.Backend)
	str("CLASSIFIER", &cfg.Node.Classifier)
	num("QUALITY", &cfg.Node.Quality)
	num("DETECT_WIDTH", &cfg.Node.DetectWidth)
	num("THICKNESS", &cfg.Node.Thickness)
	num("HTTP_PORT", &cfg.Server.HTTPPort)
	num("RPC_PORT", &cfg.Server.RPCPort)
	str("OUTPUT_DIR", &cfg.Output.Dir)
	str("WEBHOOK_URL", &cfg.Output.WebhookURL)
	dur("WEBHOOK_TIMEOUT", &cfg.Output.Timeout)
	flag("REGISTRY_ENABLED", &cfg.Registry.Enabled)
	str("REGISTRY_HOST", &cfg.Registry.Host)
	num("REGISTRY_PORT", &cfg.Registry.Port)
	dur("REGISTRY_INTERVAL", &cfg.Registry.Interval)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	dur("METRICS_INTERVAL", &cfg.Metrics.Interval)

	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Node.Backend {
	case BackendPigo, BackendOpenCV:
	default:
		errs = append(errs, fmt.Errorf("node.backend must be %q or %q, got %q", BackendPigo, BackendOpenCV, c.Node.Backend))
	}
	if c.Node.Classifier == "" {
		errs = append(errs, errors.New("node.classifier is required"))
	}
	if c.Node.Quality < 1 || c.Node.Quality > 100 {
		errs = append(errs, fmt.Errorf("node.quality must be in 1..100, got %d", c.Node.Quality))
	}
	if c.Node.DetectWidth <= 0 {
		errs = append(errs, fmt.Errorf("node.detectWidth must be positive, got %d", c.Node.DetectWidth))
	}
	if c.Node.Thickness <= 0 {
		errs = append(errs, fmt.Errorf("node.thickness must be positive, got %d", c.Node.Thickness))
	}
	for name, port := range map[string]int{
		"server.httpPort": c.Server.HTTPPort,
		"server.rpcPort":  c.Server.RPCPort,
	} {
		if port < 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s out of range: %d", name, port))
		}
	}
	if c.Registry.Enabled {
		if c.Registry.Host == "" {
			errs = append(errs, errors.New("registry.host is required when registry is enabled"))
		}
		if c.Registry.Port <= 0 || c.Registry.Port > 65535 {
			errs = append(errs, fmt.Errorf("registry.port out of range: %d", c.Registry.Port))
		}
		if c.Registry.Interval <= 0 {
			errs = append(errs, errors.New("registry.interval must be positive"))
		}
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
