package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorker()
	c.normalizeGrading()
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.UploadDir) == "" {
		c.Paths.UploadDir = filepath.Join(c.Paths.DataDir, defaultUploadSubdir)
	}
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, defaultLogSubdir)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv(envAPIToken); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeWorker() {
	c.Worker.Command = strings.TrimSpace(c.Worker.Command)
	if value, ok := os.LookupEnv(envWorkerCommand); ok && strings.TrimSpace(value) != "" {
		c.Worker.Command = strings.TrimSpace(value)
	}
	if c.Worker.Command == "" {
		c.Worker.Command = defaultWorkerCommand
	}
	args := make([]string, 0, len(c.Worker.Args))
	for _, arg := range c.Worker.Args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Worker.Args = args
}

func (c *Config) normalizeGrading() {
	c.Grading.DefaultTitle = strings.TrimSpace(c.Grading.DefaultTitle)
	if c.Grading.DefaultTitle == "" {
		c.Grading.DefaultTitle = defaultTestTitle
	}
	if c.Grading.RecentCount <= 0 {
		c.Grading.RecentCount = defaultRecentCount
	}
	if c.Grading.DefaultPageSize <= 0 {
		c.Grading.DefaultPageSize = defaultPageSize
	}
	if c.Grading.MaxPageSize <= 0 {
		c.Grading.MaxPageSize = defaultMaxPageSize
	}
}

func (c *Config) normalizeStore() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverSQLite
	}
	if strings.TrimSpace(c.Store.SQLitePath) == "" {
		c.Store.SQLitePath = filepath.Join(c.Paths.DataDir, defaultSQLiteFileName)
	}
	var err error
	if c.Store.SQLitePath, err = expandPath(c.Store.SQLitePath); err != nil {
		return fmt.Errorf("store.sqlite_path: %w", err)
	}
	c.Store.PostgresDSN = strings.TrimSpace(c.Store.PostgresDSN)
	if c.Store.PostgresDSN == "" {
		if value, ok := os.LookupEnv(envPostgresDSN); ok {
			c.Store.PostgresDSN = strings.TrimSpace(value)
		}
	}
	if c.Store.BusyRetryAttempts <= 0 {
		c.Store.BusyRetryAttempts = defaultBusyRetries
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
