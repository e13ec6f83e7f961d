// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Archive ArchiveConfig
	Remote  RemoteConfig
	Log     LogConfig
}

type ArchiveConfig struct {
	LogDirectory    string
	FilenamePattern string
	RetentionDays   int
	DryRun          bool
}

type RemoteConfig struct {
	Bucket          string
	PathPrefix      string
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load resolves the configuration from environment variables. Every call
// returns a fresh value; the caller owns it and hands it down explicitly.
func Load() (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("LOG_DIRECTORY", "")
	v.SetDefault("FILENAME_PATTERN", "oempro-*.csv")
	v.SetDefault("RETENTION_DAYS", 7)
	v.SetDefault("R2_BUCKET", "")
	v.SetDefault("R2_PATH_PREFIX", "pmta-logs")
	v.SetDefault("R2_ACCOUNT_ID", "")
	v.SetDefault("R2_ACCESS_KEY_ID", "")
	v.SetDefault("R2_SECRET_ACCESS_KEY", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	// Read from environment variables
	v.AutomaticEnv()

	// RETENTION_DAYS is parsed by hand: a typo silently coerced to 0 would
	// make every dated file eligible for deletion.
	days, err := retentionDays(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Archive: ArchiveConfig{
			LogDirectory:    v.GetString("LOG_DIRECTORY"),
			FilenamePattern: v.GetString("FILENAME_PATTERN"),
			RetentionDays:   days,
		},
		Remote: RemoteConfig{
			Bucket:          v.GetString("R2_BUCKET"),
			PathPrefix:      v.GetString("R2_PATH_PREFIX"),
			AccountID:       v.GetString("R2_ACCOUNT_ID"),
			AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("R2_SECRET_ACCESS_KEY"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}, nil
}

func retentionDays(v *viper.Viper) (int, error) {
	raw := strings.TrimSpace(v.GetString("RETENTION_DAYS"))
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("RETENTION_DAYS must be an integer, got %q", raw)
	}
	return days, nil
}

// Validate reports the first problem that would make an archival run unsafe
// to start. It never creates directories or mutates anything.
func (c *Config) Validate() error {
	if c.Archive.LogDirectory == "" {
		return fmt.Errorf("LOG_DIRECTORY must be provided")
	}
	info, err := os.Stat(c.Archive.LogDirectory)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("log directory %s does not exist", c.Archive.LogDirectory)
		}
		return fmt.Errorf("cannot stat log directory %s: %w", c.Archive.LogDirectory, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("log directory %s is not a directory", c.Archive.LogDirectory)
	}
	if c.Archive.FilenamePattern == "" {
		return fmt.Errorf("FILENAME_PATTERN must be provided")
	}
	if _, err := filepath.Match(c.Archive.FilenamePattern, "probe"); err != nil {
		return fmt.Errorf("FILENAME_PATTERN %q is not a valid glob: %w", c.Archive.FilenamePattern, err)
	}
	if c.Archive.RetentionDays < 0 {
		return fmt.Errorf("RETENTION_DAYS must be zero or positive, got %d", c.Archive.RetentionDays)
	}
	if c.Remote.Bucket == "" {
		return fmt.Errorf("R2_BUCKET must be provided")
	}
	if c.Remote.PathPrefix == "" {
		return fmt.Errorf("R2_PATH_PREFIX must be provided")
	}
	if c.Remote.AccountID == "" {
		return fmt.Errorf("R2_ACCOUNT_ID must be provided")
	}
	if c.Remote.AccessKeyID == "" || c.Remote.SecretAccessKey == "" {
		return fmt.Errorf("R2_ACCESS_KEY_ID and R2_SECRET_ACCESS_KEY must be provided")
	}
	return nil
}
