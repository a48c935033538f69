package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"liftmail/internal/config"
	"liftmail/internal/daemonrun"
	"liftmail/internal/logging"
)

const defaultEnvFile = ".env"

type commandContext struct {
	configFlag *string
	envFlag    *string
	buildOpts  []daemonrun.BuildOption

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, envFlag *string, buildOpts []daemonrun.BuildOption) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		envFlag:    envFlag,
		buildOpts:  buildOpts,
	}
}

// loadEnv applies a dotenv file without overriding variables already set.
// A missing default .env is not an error; a missing explicit file is.
func (c *commandContext) loadEnv() error {
	path := ""
	if c.envFlag != nil {
		path = strings.TrimSpace(*c.envFlag)
	}
	if path == "" {
		if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", defaultEnvFile, err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// cliLogger writes human-readable logs to stderr so stdout stays parseable.
func (c *commandContext) cliLogger(cfg *config.Config, verbose bool) *slog.Logger {
	level := "warn"
	if verbose {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:  level,
		Format: "console",
		Writer: os.Stderr,
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// withRuntime builds the pipeline, runs fn and closes the runtime.
func (c *commandContext) withRuntime(ctx context.Context, verbose bool, fn func(*daemonrun.Runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	rt, err := daemonrun.Build(ctx, cfg, c.cliLogger(cfg, verbose), c.buildOpts...)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
