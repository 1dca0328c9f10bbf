package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norun9/microservices-demo-ambient/src/storefront/config"
)

// isolate runs the test in an empty directory with none of the variables Load
// reads.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		switch {
		case name == "PORT", name == "REDIS_ADDR", name == "OTEL_EXPORTER_OTLP_ENDPOINT",
			name == "ENABLE_TRACING", name == "OTEL_TRACES_EXPORTER", name == "LOG_LEVEL",
			strings.HasPrefix(name, config.EnvPrefix):
			// t.Setenv restores the original value after the test
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	return dir
}

func TestDefaults(t *testing.T) {
	isolate(t)

	cfg, err := config.Load("", "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, ":7070", cfg.GRPC.Addr)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "cart-storage", cfg.Storage.Key)
	assert.Equal(t, "json", cfg.Storage.Codec)
	assert.Equal(t, 2*time.Second, cfg.Storage.PersistTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, "https://dummyjson.com", cfg.Catalog.BaseURL)
	assert.False(t, cfg.Otel.Enabled)
	assert.Equal(t, "otlp", cfg.Otel.Exporter)
	assert.Equal(t, 10*time.Second, cfg.Otel.MetricInterval)
}

func TestYAMLThenEnvironment(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: file
  file_dir: /var/lib/storefront
  codec: proto
search:
  debounce: 250ms
log:
  level: debug
`), 0o644))
	t.Setenv("STOREFRONT_STORAGE__CODEC", "json")
	t.Setenv("STOREFRONT_HTTP__ADDR", ":9999")

	cfg, err := config.Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/storefront", cfg.Storage.FileDir)
	assert.Equal(t, "json", cfg.Storage.Codec, "environment beats the file")
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestDeploymentVariables(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "3000")
	t.Setenv("REDIS_ADDR", "redis-cart:6379")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317")
	t.Setenv("ENABLE_TRACING", "1")
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")

	cfg, err := config.Load("", "")
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.HTTP.Addr)
	assert.Equal(t, "redis", cfg.Storage.Backend, "a redis address selects the redis backend")
	assert.Equal(t, "redis-cart:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, "otel-collector:4317", cfg.Otel.Endpoint)
	assert.True(t, cfg.Otel.Enabled)
	assert.Equal(t, "stdout", cfg.Otel.Exporter)
}

func TestDotEnvFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("STOREFRONT_CATALOG__SOURCE=memory\nSTOREFRONT_LOG__LEVEL=warn\n"), 0o644))
	t.Setenv("STOREFRONT_LOG__LEVEL", "error")
	t.Cleanup(func() { os.Unsetenv("STOREFRONT_CATALOG__SOURCE") })

	cfg, err := config.Load("", "")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Catalog.Source)
	assert.Equal(t, "error", cfg.Log.Level, "variables already set win over .env")
}

func TestValidate(t *testing.T) {
	for name, env := range map[string][2]string{
		"unknown backend":    {"STOREFRONT_STORAGE__BACKEND", "mongo"},
		"redis without addr": {"STOREFRONT_STORAGE__BACKEND", "redis"},
		"unknown codec":      {"STOREFRONT_STORAGE__CODEC", "xml"},
		"unknown source":     {"STOREFRONT_CATALOG__SOURCE", "grpc"},
		"bad level":          {"STOREFRONT_LOG__LEVEL", "loud"},
		"unknown exporter":   {"STOREFRONT_OTEL__EXPORTER", "jaeger"},
	} {
		t.Run(name, func(t *testing.T) {
			isolate(t)
			t.Setenv(env[0], env[1])
			_, err := config.Load("", "")
			assert.Error(t, err)
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	isolate(t)
	_, err := config.Load("does-not-exist.yaml", "")
	assert.Error(t, err)
}
