package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateGrading(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Notifications.NtfyTopic != "" && c.Notifications.RequestTimeoutSeconds <= 0 {
		return errors.New("notifications.request_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.Command == "" {
		return errors.New("worker.command must be set")
	}
	if c.Worker.TimeoutSeconds <= 0 {
		return errors.New("worker.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateGrading() error {
	if c.Grading.MaxConcurrency <= 0 {
		return errors.New("grading.max_concurrency must be positive")
	}
	if c.Grading.MaxBatchFiles <= 0 {
		return errors.New("grading.max_batch_files must be positive")
	}
	if c.Grading.MaxUploadBytes <= 0 {
		return errors.New("grading.max_upload_bytes must be positive")
	}
	if c.Grading.DefaultPageSize > c.Grading.MaxPageSize {
		return fmt.Errorf("grading.default_page_size (%d) exceeds grading.max_page_size (%d)",
			c.Grading.DefaultPageSize, c.Grading.MaxPageSize)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case StoreDriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path must be set for the sqlite driver")
		}
	case StoreDriverPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required for the postgres driver. Set %s or edit the config file", envPostgresDSN)
		}
	default:
		return fmt.Errorf("store.driver: unsupported value %q (use %q or %q)", c.Store.Driver, StoreDriverSQLite, StoreDriverPostgres)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
