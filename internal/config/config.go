package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"flowsniffer/pkg/model"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version" toml:"version"`

	Sqlite struct {
		Dsn     string `yaml:"dsn" toml:"dsn"`
		Prefix  string `yaml:"prefix" toml:"prefix"`
		Enabled bool   `yaml:"enabled" toml:"enabled"`
	} `yaml:"sqlite" toml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level" toml:"level"`
		Writer []string `yaml:"writer" toml:"writer"`
		File   string   `yaml:"file" toml:"file"`
	} `yaml:"log" toml:"log"`

	DevTools struct {
		URL           string `yaml:"url" toml:"url"`
		Target        string `yaml:"target" toml:"target"`
		BodyTimeoutMS int    `yaml:"body_timeout_ms" toml:"body_timeout_ms"`
		QueueSize     int    `yaml:"queue_size" toml:"queue_size"`
	} `yaml:"devtools" toml:"devtools"`

	Command struct {
		Program string `yaml:"program" toml:"program"`
	} `yaml:"command" toml:"command"`

	Filter struct {
		Ignore []IgnoreRule `yaml:"ignore" toml:"ignore"`
	} `yaml:"filter" toml:"filter"`

	Output struct {
		Format string `yaml:"format" toml:"format"` // auto / text / json
	} `yaml:"output" toml:"output"`
}

// IgnoreRule 清单 URL 忽略条件
type IgnoreRule struct {
	Mode    string `yaml:"mode" toml:"mode"` // exact / prefix / glob / regex
	Pattern string `yaml:"pattern" toml:"pattern"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.Sqlite.Dsn = "flowsniffer.sqlite3"
	c.Sqlite.Prefix = "flowsniffer_"
	c.Sqlite.Enabled = true
	c.Log.Level = "info"
	c.Log.Writer = []string{"console"}
	c.Log.File = filepath.Join("logs", "flowsniffer.log")
	c.DevTools.URL = "http://127.0.0.1:9222"
	c.DevTools.BodyTimeoutMS = 5000
	c.DevTools.QueueSize = 256
	c.Command.Program = "flowdownloader"
	c.Output.Format = "auto"
	return c
}

// Load 在默认配置基础上读取配置文件，按扩展名选择 yaml 或 toml
func Load(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(data, c)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []error
	if c.DevTools.URL == "" {
		errs = append(errs, errors.New("devtools.url is required"))
	}
	if c.DevTools.BodyTimeoutMS < 0 {
		errs = append(errs, errors.New("devtools.body_timeout_ms must be >= 0"))
	}
	if c.DevTools.QueueSize < 0 {
		errs = append(errs, errors.New("devtools.queue_size must be >= 0"))
	}
	if strings.TrimSpace(c.Command.Program) == "" {
		errs = append(errs, errors.New("command.program is required"))
	}
	switch c.Output.Format {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("output.format %q is not one of auto, text, json", c.Output.Format))
	}
	for i, r := range c.Filter.Ignore {
		switch r.Mode {
		case "exact", "prefix", "glob", "regex":
		default:
			errs = append(errs, fmt.Errorf("filter.ignore[%d].mode %q is invalid", i, r.Mode))
		}
	}
	return errors.Join(errs...)
}

// Marshal 以 yaml 输出当前配置
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// SessionConfig 会话参数
func (c *Config) SessionConfig() model.SessionConfig {
	return model.SessionConfig{
		DevToolsURL:   c.DevTools.URL,
		Program:       c.Command.Program,
		BodyTimeoutMS: c.DevTools.BodyTimeoutMS,
		QueueSize:     c.DevTools.QueueSize,
	}
}

// IgnoreRules 清单忽略条件
func (c *Config) IgnoreRules() []model.IgnoreRule {
	out := make([]model.IgnoreRule, 0, len(c.Filter.Ignore))
	for _, r := range c.Filter.Ignore {
		out = append(out, model.IgnoreRule{Mode: r.Mode, Pattern: r.Pattern})
	}
	return out
}
