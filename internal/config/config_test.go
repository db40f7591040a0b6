package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shiftsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		//** Act
		config, err := Load("")

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, Default(), config)
	})

	t.Run("File over defaults", func(t *testing.T) {
		//** Arrange
		path := writeFile(t, `
solver:
  backend: http
  url: http://solver:8000/generate
  timeout: 45s
  executables:
    kissat: /opt/kissat/bin/kissat
database:
  driver: postgres
  dsn: postgres://localhost/shiftsync
`)

		//** Act
		config, err := Load(path)

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, "http", config.Solver.Backend)
		assert.Equal(t, 45*time.Second, config.Solver.Timeout)
		assert.Equal(t, "/opt/kissat/bin/kissat", config.Solver.Executables["kissat"])
		assert.Equal(t, "postgres", config.Database.Driver)
		assert.Equal(t, ":8080", config.Server.Addr)
		assert.Equal(t, "kissat", config.Solver.SAT)
	})

	t.Run("Environment over file", func(t *testing.T) {
		//** Arrange
		path := writeFile(t, "solver:\n  timeout: 45s\n")
		t.Setenv("SOLVER_TIMEOUT", "10s")
		t.Setenv("SAT_SOLVER", "cadical")
		t.Setenv("REDIS_ADDR", "localhost:6379")

		//** Act
		config, err := Load(path)

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, config.Solver.Timeout)
		assert.Equal(t, "cadical", config.Solver.SAT)
		assert.Equal(t, "localhost:6379", config.Redis.Addr)
	})

	invalid := map[string]string{
		"Missing file":             "",
		"Malformed YAML":           "solver: [",
		"Unknown backend":          "solver:\n  backend: grpc\n",
		"HTTP backend, no URL":     "solver:\n  backend: http\n",
		"Lease shorter than solve": "solver:\n  timeout: 10m\n",
		"Lease without margin":     "solver:\n  timeout: 5m\n",
	}
	for name, content := range invalid {
		t.Run(name, func(t *testing.T) {
			//** Arrange
			path := filepath.Join(t.TempDir(), "missing.yaml")
			if content != "" {
				path = writeFile(t, content)
			}

			//** Act
			_, err := Load(path)

			//** Assert
			assert.Error(t, err)
		})
	}

	t.Run("Lease covering the solve and the margin", func(t *testing.T) {
		//** Arrange
		path := writeFile(t, "solver:\n  timeout: 4m30s\nredis:\n  lease_ttl: 5m\n")

		//** Act
		config, err := Load(path)

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, config.Redis.LeaseTTL)
	})

	t.Run("Malformed duration in environment", func(t *testing.T) {
		t.Setenv("LEASE_TTL", "forever")
		_, err := Load("")
		assert.Error(t, err)
	})
}
