package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "forge", cfg.Name)
	assert.Equal(t, "default", cfg.Namespace)

	assert.Equal(t, DefaultMaxRetries, cfg.Ladder.MaxRetries)
	assert.Equal(t, "generation/ladder.yaml", cfg.Ladder.RungsPath)

	assert.Equal(t, DefaultMaxJobs, cfg.JobTable.MaxJobs)
	assert.Equal(t, DefaultJobRetention, cfg.JobTable.JobRetention)

	assert.Equal(t, "validation/rules", cfg.Validation.RulesDir)

	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "stdlib", cfg.Logging.Backend)
}

func TestDetectEnvironment(t *testing.T) {
	t.Run("local environment defaults to development mode", func(t *testing.T) {
		_ = os.Unsetenv("KUBERNETES_SERVICE_HOST")
		_ = os.Unsetenv(EnvDevMode)

		cfg := DefaultConfig()

		assert.True(t, cfg.Development.Enabled)
		assert.True(t, cfg.Development.PrettyLogs)
		assert.Equal(t, "text", cfg.Logging.Format)
	})

	t.Run("explicit dev mode setting is left alone", func(t *testing.T) {
		_ = os.Setenv(EnvDevMode, "false")
		defer func() { _ = os.Unsetenv(EnvDevMode) }()

		cfg := DefaultConfig()

		assert.False(t, cfg.Development.Enabled)
		assert.Equal(t, "json", cfg.Logging.Format)
	})
}

func TestLoadFromEnv(t *testing.T) {
	testEnv := map[string]string{
		"FORGE_NAME":               "test-forge",
		"FORGE_ID":                 "test-123",
		"FORGE_NAMESPACE":          "testing",
		"FORGE_LOG_LEVEL":          "debug",
		"FORGE_LOG_FORMAT":         "json",
		"FORGE_LOG_BACKEND":        "zap",
		"FORGE_MAX_JOBS":           "250",
		"FORGE_LADDER_MAX_RETRIES": "6",
		EnvRedisURL:                "redis://test-redis:6379",
		"FORGE_DEV_MODE":           "true",
		"FORGE_MOCK_BACKEND":       "true",
	}

	for k, v := range testEnv {
		_ = os.Setenv(k, v)
		defer func(k string) { _ = os.Unsetenv(k) }(k)
	}

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "test-forge", cfg.Name)
	assert.Equal(t, "test-123", cfg.ID)
	assert.Equal(t, "testing", cfg.Namespace)
	assert.Equal(t, "text", cfg.Logging.Format) // dev mode forces text
	assert.Equal(t, "zap", cfg.Logging.Backend)
	assert.Equal(t, 250, cfg.JobTable.MaxJobs)
	assert.Equal(t, 6, cfg.Ladder.MaxRetries)
	assert.Equal(t, "redis://test-redis:6379", cfg.Cache.RedisURL)
	assert.True(t, cfg.Development.Enabled)
	assert.True(t, cfg.Development.MockBackend)
}

func TestLoadFromFile_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.json")

	configData := map[string]interface{}{
		"name":      "file-forge",
		"namespace": "file-namespace",
		"job_table": map[string]interface{}{
			"max_jobs": 42,
		},
		"logging": map[string]interface{}{
			"level":  "warn",
			"format": "text",
		},
	}

	jsonData, err := json.MarshalIndent(configData, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configFile, jsonData, 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(configFile))

	assert.Equal(t, "file-forge", cfg.Name)
	assert.Equal(t, "file-namespace", cfg.Namespace)
	assert.Equal(t, 42, cfg.JobTable.MaxJobs)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFromFile_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configData := map[string]interface{}{
		"name": "yaml-forge",
		"ladder": map[string]interface{}{
			"max_retries": 8,
		},
	}

	yamlData, err := yaml.Marshal(configData)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configFile, yamlData, 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(configFile))

	assert.Equal(t, "yaml-forge", cfg.Name)
	assert.Equal(t, 8, cfg.Ladder.MaxRetries)
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.toml")
	require.NoError(t, os.WriteFile(configFile, []byte("name = 'x'"), 0644))

	cfg := DefaultConfig()
	err := cfg.LoadFromFile(configFile)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*Config)
		wantErr string
	}{
		{
			name:    "valid configuration",
			setup:   func(cfg *Config) {},
			wantErr: "",
		},
		{
			name: "missing name",
			setup: func(cfg *Config) {
				cfg.Name = ""
			},
			wantErr: "name is required",
		},
		{
			name: "invalid max jobs",
			setup: func(cfg *Config) {
				cfg.JobTable.MaxJobs = 0
			},
			wantErr: "invalid max_jobs",
		},
		{
			name: "telemetry enabled without endpoint",
			setup: func(cfg *Config) {
				cfg.Telemetry.Enabled = true
				cfg.Telemetry.Endpoint = ""
			},
			wantErr: "telemetry endpoint is required",
		},
		{
			name: "unknown log backend",
			setup: func(cfg *Config) {
				cfg.Logging.Backend = "logrus"
			},
			wantErr: "unknown log backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setup(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestFunctionalOptions(t *testing.T) {
	t.Run("WithName", func(t *testing.T) {
		cfg, err := NewConfig(WithName("custom-forge"))
		require.NoError(t, err)
		assert.Equal(t, "custom-forge", cfg.Name)
	})

	t.Run("WithNamespace", func(t *testing.T) {
		cfg, err := NewConfig(WithNamespace("production"))
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.Namespace)
	})

	t.Run("WithLadderRungs", func(t *testing.T) {
		cfg, err := NewConfig(WithLadderRungs("custom/ladder.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "custom/ladder.yaml", cfg.Ladder.RungsPath)
	})

	t.Run("WithMaxRetries", func(t *testing.T) {
		cfg, err := NewConfig(WithMaxRetries(7))
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Ladder.MaxRetries)
	})

	t.Run("WithMaxJobs", func(t *testing.T) {
		cfg, err := NewConfig(WithMaxJobs(500))
		require.NoError(t, err)
		assert.Equal(t, 500, cfg.JobTable.MaxJobs)

		_, err = NewConfig(WithMaxJobs(0))
		assert.Error(t, err)
	})

	t.Run("WithJobRetention", func(t *testing.T) {
		cfg, err := NewConfig(WithJobRetention(2 * time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2*time.Hour, cfg.JobTable.JobRetention)
	})

	t.Run("WithValidationRulesDir", func(t *testing.T) {
		cfg, err := NewConfig(WithValidationRulesDir("custom/rules"))
		require.NoError(t, err)
		assert.Equal(t, "custom/rules", cfg.Validation.RulesDir)
	})

	t.Run("WithRedisURL", func(t *testing.T) {
		url := "redis://custom-redis:6379"
		cfg, err := NewConfig(WithRedisURL(url))
		require.NoError(t, err)
		assert.Equal(t, url, cfg.Cache.RedisURL)
	})

	t.Run("WithTelemetry", func(t *testing.T) {
		cfg, err := NewConfig(WithTelemetry(true, "http://otel:4317"))
		require.NoError(t, err)
		assert.True(t, cfg.Telemetry.Enabled)
		assert.Equal(t, "http://otel:4317", cfg.Telemetry.Endpoint)
	})

	t.Run("WithOTELEndpoint", func(t *testing.T) {
		cfg, err := NewConfig(WithOTELEndpoint("http://jaeger:4317"))
		require.NoError(t, err)
		assert.True(t, cfg.Telemetry.Enabled)
		assert.Equal(t, "http://jaeger:4317", cfg.Telemetry.Endpoint)
	})

	t.Run("WithLogLevel", func(t *testing.T) {
		cfg, err := NewConfig(WithLogLevel("debug"))
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("WithLogFormat", func(t *testing.T) {
		cfg, err := NewConfig(WithLogFormat("text"))
		require.NoError(t, err)
		assert.Equal(t, "text", cfg.Logging.Format)
	})

	t.Run("WithLogBackend", func(t *testing.T) {
		cfg, err := NewConfig(WithLogBackend("zap"))
		require.NoError(t, err)
		assert.Equal(t, "zap", cfg.Logging.Backend)
	})

	t.Run("WithCircuitBreaker", func(t *testing.T) {
		cfg, err := NewConfig(WithCircuitBreaker(10, 60*time.Second))
		require.NoError(t, err)
		assert.True(t, cfg.Resilience.CircuitBreaker.Enabled)
		assert.Equal(t, 10, cfg.Resilience.CircuitBreaker.Threshold)
		assert.Equal(t, 60*time.Second, cfg.Resilience.CircuitBreaker.Timeout)
	})

	t.Run("WithRetry", func(t *testing.T) {
		cfg, err := NewConfig(WithRetry(5, 2*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Resilience.Retry.MaxAttempts)
		assert.Equal(t, 2*time.Second, cfg.Resilience.Retry.InitialInterval)
	})

	t.Run("WithDevelopmentMode", func(t *testing.T) {
		cfg, err := NewConfig(WithDevelopmentMode(true))
		require.NoError(t, err)
		assert.True(t, cfg.Development.Enabled)
		assert.True(t, cfg.Development.PrettyLogs)
		assert.Equal(t, "text", cfg.Logging.Format)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("WithMockBackend", func(t *testing.T) {
		cfg, err := NewConfig(WithMockBackend(true))
		require.NoError(t, err)
		assert.True(t, cfg.Development.MockBackend)
	})
}

func TestConfigPriority(t *testing.T) {
	_ = os.Setenv("FORGE_MAX_JOBS", "777")
	defer func() { _ = os.Unsetenv("FORGE_MAX_JOBS") }()

	cfg, err := NewConfig(WithMaxJobs(888))
	require.NoError(t, err)

	assert.Equal(t, 888, cfg.JobTable.MaxJobs)
}

func TestParseHelpers(t *testing.T) {
	t.Run("parseBool", func(t *testing.T) {
		tests := []struct {
			input    string
			expected bool
		}{
			{"true", true},
			{"True", true},
			{"1", true},
			{"yes", true},
			{"on", true},
			{"false", false},
			{"0", false},
			{"no", false},
			{"", false},
			{"invalid", false},
		}

		for _, tt := range tests {
			assert.Equal(t, tt.expected, parseBool(tt.input), "input: %s", tt.input)
		}
	})

	t.Run("parseDuration accepts compact forms", func(t *testing.T) {
		d, err := parseDuration("1d")
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour, d)

		d, err = parseDuration("90m")
		require.NoError(t, err)
		assert.Equal(t, 90*time.Minute, d)
	})
}

func TestConfigWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test-config.json")

	configData := map[string]interface{}{
		"name": "file-loaded-forge",
		"job_table": map[string]interface{}{
			"max_jobs": 12,
		},
	}

	jsonData, err := json.MarshalIndent(configData, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configFile, jsonData, 0644))

	cfg, err := NewConfig(
		WithConfigFile(configFile),
		WithMaxJobs(99), // overrides the file
	)
	require.NoError(t, err)

	assert.Equal(t, "file-loaded-forge", cfg.Name)
	assert.Equal(t, 99, cfg.JobTable.MaxJobs)
}

func BenchmarkNewConfig(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = NewConfig(
			WithName("bench-forge"),
			WithMaxJobs(100),
			WithRedisURL("redis://localhost:6379"),
		)
	}
}

func BenchmarkLoadFromEnv(b *testing.B) {
	_ = os.Setenv("FORGE_NAME", "bench-forge")
	_ = os.Setenv("FORGE_MAX_JOBS", "100")
	defer func() {
		_ = os.Unsetenv("FORGE_NAME")
		_ = os.Unsetenv("FORGE_MAX_JOBS")
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cfg := DefaultConfig()
		_ = cfg.LoadFromEnv()
	}
}

func BenchmarkValidate(b *testing.B) {
	cfg := DefaultConfig()
	cfg.Name = "bench-forge"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.Validate()
	}
}
