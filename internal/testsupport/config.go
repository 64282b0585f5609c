package testsupport

import (
	"path/filepath"
	"testing"

	"furrow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SocketPath = filepath.Join(base, "furrowd.sock")
	cfg.API.BaseURL = "https://farm.test"
	cfg.API.Token = "test-token"
	cfg.Connectivity.ProbeURL = "https://farm.test/v1/ping"
	cfg.Queue.MinFreeDiskMiB = 0

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}
