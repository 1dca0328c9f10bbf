// storefront/config/config.go

package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// EnvPrefix marks the environment variables that override configuration keys.
// Nested keys are separated by a double underscore: STOREFRONT_STORAGE__BACKEND.
const EnvPrefix = "STOREFRONT_"

type Config struct {
	HTTP struct {
		Addr            string        `koanf:"addr"`
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	GRPC struct {
		Addr string `koanf:"addr"`
	} `koanf:"grpc"`

	Storage struct {
		// Backend is memory, redis or file. Empty picks redis when an address
		// is configured and memory otherwise.
		Backend          string        `koanf:"backend"`
		RedisAddr        string        `koanf:"redis_addr"`
		RedisPassword    string        `koanf:"redis_password"`
		RedisMaxAttempts int           `koanf:"redis_max_attempts"`
		FileDir          string        `koanf:"file_dir"`
		Key              string        `koanf:"key"`
		Codec            string        `koanf:"codec"`
		PersistTimeout   time.Duration `koanf:"persist_timeout"`
	} `koanf:"storage"`

	Catalog struct {
		// Source is http or memory.
		Source  string        `koanf:"source"`
		BaseURL string        `koanf:"base_url"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"catalog"`

	Search struct {
		Debounce time.Duration `koanf:"debounce"`
	} `koanf:"search"`

	Session struct {
		IdleTimeout time.Duration `koanf:"idle_timeout"`
	} `koanf:"session"`

	Log struct {
		Level string `koanf:"level"`
		File  string `koanf:"file"`
	} `koanf:"log"`

	Otel struct {
		Enabled bool `koanf:"enabled"`
		// Exporter is otlp or stdout. Metrics are only pushed over otlp.
		Exporter       string        `koanf:"exporter"`
		Endpoint       string        `koanf:"endpoint"`
		ServiceName    string        `koanf:"service_name"`
		MetricInterval time.Duration `koanf:"metric_interval"`
	} `koanf:"otel"`
}

func defaults() map[string]any {
	return map[string]any{
		"http.addr":                  ":8080",
		"http.read_timeout":          "10s",
		"http.write_timeout":         "10s",
		"http.shutdown_timeout":      "15s",
		"grpc.addr":                  ":7070",
		"storage.backend":            "",
		"storage.redis_max_attempts": 30,
		"storage.file_dir":           "./data/carts",
		"storage.key":                "cart-storage",
		"storage.codec":              "json",
		"storage.persist_timeout":    "2s",
		"catalog.source":             "http",
		"catalog.base_url":           "https://dummyjson.com",
		"catalog.timeout":            "5s",
		"search.debounce":            "500ms",
		"session.idle_timeout":       "30m",
		"log.level":                  "info",
		"log.file":                   "",
		"otel.enabled":               false,
		"otel.exporter":              "otlp",
		"otel.metric_interval":       "10s",
		"otel.endpoint":              "localhost:4317",
		"otel.service_name":          "storefront",
	}
}

// legacyEnv maps the variable names the demo services were deployed with onto
// configuration keys.
var legacyEnv = map[string]string{
	"PORT":                        "http.addr",
	"REDIS_ADDR":                  "storage.redis_addr",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"ENABLE_TRACING":              "otel.enabled",
	"OTEL_TRACES_EXPORTER":        "otel.exporter",
	"LOG_LEVEL":                   "log.level",
}

// Load layers the configuration: built-in defaults, then the YAML file at
// configFile (skipped when empty), then the deployment variables PORT,
// REDIS_ADDR and OTEL_EXPORTER_OTLP_ENDPOINT, then STOREFRONT_ variables.
// envFile (".env" when empty) is read into the environment first when it
// exists; variables already set win.
func Load(configFile, envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, errors.Wrapf(err, "config: load %s", envFile)
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, errors.Wrap(err, "config: defaults")
	}
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return Config{}, errors.Wrapf(err, "config: load %s", configFile)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		target, ok := legacyEnv[key]
		if !ok || value == "" {
			return "", nil
		}
		if key == "PORT" && !strings.Contains(value, ":") {
			value = ":" + value
		}
		return target, value
	}), nil); err != nil {
		return Config{}, errors.Wrap(err, "config: deployment env")
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, errors.Wrap(err, "config: env overlay")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: unmarshal")
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
		if cfg.Storage.RedisAddr != "" {
			cfg.Storage.Backend = "redis"
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("config: http.addr required")
	}
	switch c.Storage.Backend {
	case "memory":
	case "redis":
		if c.Storage.RedisAddr == "" {
			return errors.New("config: storage.redis_addr required for the redis backend")
		}
	case "file":
		if c.Storage.FileDir == "" {
			return errors.New("config: storage.file_dir required for the file backend")
		}
	default:
		return errors.Errorf("config: unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.Storage.Codec {
	case "json", "proto":
	default:
		return errors.Errorf("config: unknown storage.codec %q", c.Storage.Codec)
	}
	switch c.Catalog.Source {
	case "http", "memory":
	default:
		return errors.Errorf("config: unknown catalog.source %q", c.Catalog.Source)
	}
	switch c.Otel.Exporter {
	case "otlp", "stdout":
	default:
		return errors.Errorf("config: unknown otel.exporter %q", c.Otel.Exporter)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "config: log.level")
	}
	return nil
}
