package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"grila/internal/api"
	"grila/internal/config"
	"grila/internal/logging"
	"grila/internal/results"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger writes local command logs to stderr so stdout stays parseable.
func (c *commandContext) logger(cmd *cobra.Command) *slog.Logger {
	level := "warn"
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		level = strings.TrimSpace(*c.logLevelFlag)
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warn: %v\n", err)
		return logging.NewNop()
	}
	return logger
}

// withStore opens the configured result store for the duration of fn.
func (c *commandContext) withStore(cmd *cobra.Command, fn func(*config.Config, results.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := results.Open(cmd.Context(), cfg, c.logger(cmd))
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

func (c *commandContext) withResults(cmd *cobra.Command, fn func(*api.ResultsService) error) error {
	return c.withStore(cmd, func(cfg *config.Config, store results.Store) error {
		return fn(api.NewResultsService(store, cfg.Grading))
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
