package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"miniappctl/internal/config"
	"miniappctl/internal/models"

	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadDefaults()
	require.NoError(t, err)
	return cfg
}

// writeAppFile writes content to appsDir/app/rel, creating directories as needed
func writeAppFile(t *testing.T, appsDir, app, rel, content string) string {
	t.Helper()
	path := filepath.Join(appsDir, app, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readManifest(t *testing.T, path string) models.Manifest {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m models.Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

// collect returns a Reporter that appends into items
func collect(items *[]models.ItemResult) models.Reporter {
	return func(res models.ItemResult) {
		*items = append(*items, res)
	}
}
