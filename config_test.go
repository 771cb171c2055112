package shardroute_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jiekun/shardroute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// Setup and teardown helper
func resetConfig(t *testing.T) {
	t.Helper()
	shardroute.SetConfig(shardroute.DefaultConfig())
	t.Cleanup(func() {
		shardroute.SetConfig(shardroute.DefaultConfig())
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "shardroute.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestDefaultConfig(t *testing.T) {
	resetConfig(t)

	config := shardroute.DefaultConfig()

	assert.Equal(t, shardroute.LogLevelInfo, config.Logging.Level)
	assert.True(t, config.Logging.ShowTime)
	assert.Equal(t, "text", config.Logging.Format)
	assert.Equal(t, "stdout", config.Logging.Output)
	assert.Equal(t, "postgres", config.Engine)
	assert.True(t, config.ParseCache.Enabled)
	assert.Equal(t, 1024, config.ParseCache.Size)
	assert.Equal(t, 10*time.Minute, config.ParseCache.TTL)
	assert.Equal(t, shardroute.ClockSystem, config.Clock)
	assert.Empty(t, config.Tables)
}

func TestLoadConfigFromFile(t *testing.T) {
	resetConfig(t)

	configPath := writeConfig(t, `
logging:
  level: 2
  show_time: true
  format: text
  output: stdout
engine: mysql
parse_cache:
  enabled: true
  size: 64
  ttl: 30s
clock: database
tables:
  orders:
    sharding_columns: [user_id, order_id]
`)

	err := shardroute.LoadConfigFromFile(configPath)
	require.NoError(t, err)

	config := shardroute.GetConfig()
	assert.Equal(t, shardroute.LogLevelDebug, config.Logging.Level)
	assert.Equal(t, "mysql", config.Engine)
	assert.Equal(t, 64, config.ParseCache.Size)
	assert.Equal(t, 30*time.Second, config.ParseCache.TTL)
	assert.Equal(t, shardroute.ClockDatabase, config.Clock)
	assert.Equal(t, []string{"user_id", "order_id"}, config.Tables["orders"].ShardingColumns)
	assert.Equal(t, shardroute.LogLevelDebug, shardroute.GetLogger().GetLevel())
}

func TestLoadConfigRoundTrip(t *testing.T) {
	resetConfig(t)

	config := shardroute.DefaultConfig()
	config.Engine = "mysql"
	config.Tables = map[string]shardroute.TableRule{
		"events": {ShardingColumns: []string{"created_at"}},
	}
	data, err := yaml.Marshal(config)
	require.NoError(t, err)

	loaded, err := shardroute.ReadConfig(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}

func TestLoadInvalidConfigFile(t *testing.T) {
	resetConfig(t)

	configPath := writeConfig(t, `
logging:
  level: not-a-number
  show_time: "invalid"
  format: 123  # Should be a string
}  # Unbalanced bracket
`)

	err := shardroute.LoadConfigFromFile(configPath)
	assert.Error(t, err)
	assert.Equal(t, "postgres", shardroute.GetConfig().Engine)
}

func TestValidateConfig(t *testing.T) {
	tests := map[string]string{
		"log level":          "logging:\n  level: 9\n",
		"log format":         "logging:\n  format: json\n",
		"engine":             "engine: oracle\n",
		"cache size":         "parse_cache:\n  enabled: true\n  size: 0\n",
		"cache ttl":          "parse_cache:\n  ttl: -1s\n",
		"clock":              "clock: sundial\n",
		"no sharding column": "tables:\n  orders:\n    sharding_columns: []\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := shardroute.ReadConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	resetConfig(t)

	err := shardroute.LoadConfigFromFile("does-not-exist.yml")
	assert.Error(t, err)

	_, err = shardroute.ReadConfig(t.TempDir())
	assert.Error(t, err)

	_, err = shardroute.ReadConfig(writeConfig(t, ""))
	assert.Error(t, err)
}
