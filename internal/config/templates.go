package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# GPTScreener Configuration

[source]
# Primary price source: "twelvedata" or "sqlite"
primary = "twelvedata"
# Source tried once if the primary fails; empty retries the primary
fallback = "sqlite"
# Bar interval: 1min, 5min, 15min, 1h, 1day, 1week
interval = "1day"
# Bars requested per lookup
output_size = 365
request_timeout = "15s"
# Twelve Data free tier allows 8 requests per minute
requests_per_minute = 8

[store]
# SQLite candle database, relative to this directory
path = "screener.db"
# Most recent candles read when the store serves a lookup
limit = 500
# Age after which stored candles are reported stale
stale_after = "24h"

[cache]
# Cache fetched series in Redis
enabled = false
address = "localhost:6379"
password = ""
db = 0
ttl = "5m"

[detector]
# Trend estimate used by Cup and Handle: "sma" or "hilbert"
trend_method = "sma"

[logging]
# Log level: debug, info, warn, error
level = "info"
# Also write logs to a rotating file
file = false
file_path = "logs/screener.log"
max_size_mb = 10
max_backups = 5
max_age_days = 30

[metrics]
# Write Prometheus metrics to a textfile after each command
enabled = false
textfile = "screener.prom"

[resilience]
# Pause before the second lookup attempt
retry_delay = "250ms"
# Stop calling the primary source after repeated failures
breaker_enabled = true
failure_threshold = 5
cooldown = "30s"
# Parallel lookups when screening several symbols
concurrency = 4
`

const credentialsTemplate = `# GPTScreener Credentials
# WARNING: Keep this file secure! Do not commit to version control.
# TWELVE_API_KEY in the environment or a .env file takes precedence.

[twelvedata]
api_key = ""
`

func createTemplateConfig(configDir string) error {
	return writeTemplate(configDir, "config.toml", configTemplate, 0644)
}

func createTemplateCredentials(configDir string) error {
	// Use restricted permissions for credentials file
	return writeTemplate(configDir, "credentials.toml", credentialsTemplate, 0600)
}

func writeTemplate(configDir, name, content string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}

	return nil
}

// TemplatePath returns where the main config file lives in configDir.
func TemplatePath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}
