package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartReportsFailureToLogFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	logFile := filepath.Join(dir, "storefront.log")

	t.Setenv("STOREFRONT_STORAGE__BACKEND", "file")
	t.Setenv("STOREFRONT_STORAGE__FILE_DIR", filepath.Join(blocker, "carts"))
	t.Setenv("STOREFRONT_CATALOG__SOURCE", "memory")
	t.Setenv("STOREFRONT_LOG__FILE", logFile)
	t.Setenv("STOREFRONT_HTTP__ADDR", "127.0.0.1:0")
	t.Setenv("STOREFRONT_GRPC__ADDR", "127.0.0.1:0")

	var stdout bytes.Buffer
	code := start([]string{"-env-file", filepath.Join(dir, "missing.env")}, &stdout)
	assert.Equal(t, 1, code)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"storefront stopped"`)
	assert.Contains(t, stdout.String(), "initialize cart storage")
}

func TestStartRejectsUnknownFlag(t *testing.T) {
	assert.Equal(t, 2, start([]string{"-no-such-flag"}, &bytes.Buffer{}))
}
