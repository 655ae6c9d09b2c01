package main

import (
	"strings"
	"sync"

	"flowsniffer/internal/config"
	"flowsniffer/internal/logger"
	"flowsniffer/internal/storage"
)

type globalFlags struct {
	config   string
	devtools string
	logLevel string
	format   string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig 读取配置文件并应用命令行覆盖
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if v := strings.TrimSpace(c.flags.devtools); v != "" {
			cfg.DevTools.URL = v
		}
		if v := strings.TrimSpace(c.flags.logLevel); v != "" {
			cfg.Log.Level = v
		}
		if v := strings.TrimSpace(c.flags.format); v != "" {
			cfg.Output.Format = v
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() logger.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logger.NewNop()
	}
	return logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Writers: cfg.Log.Writer,
		File:    cfg.Log.File,
	})
}

func (c *commandContext) openJournal(l logger.Logger) (*storage.Journal, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return storage.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, l)
}
