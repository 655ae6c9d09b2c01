package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewConfigDefaults(t *testing.T) {
	c := NewConfig()
	assert.Equal(t, "flowdownloader", c.Command.Program)
	assert.Equal(t, "http://127.0.0.1:9222", c.DevTools.URL)
	assert.Equal(t, "auto", c.Output.Format)
	assert.NoError(t, c.Validate())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), c)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "cfg.yaml", `
devtools:
  url: http://10.0.0.2:9222
  target: ABC
log:
  level: debug
filter:
  ignore:
    - mode: prefix
      pattern: https://ads.example.com/
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:9222", c.DevTools.URL)
	assert.Equal(t, "ABC", c.DevTools.Target)
	assert.Equal(t, "debug", c.Log.Level)
	require.Len(t, c.Filter.Ignore, 1)
	assert.Equal(t, "prefix", c.Filter.Ignore[0].Mode)
	// untouched keys keep their defaults
	assert.Equal(t, "flowdownloader", c.Command.Program)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "cfg.toml", `
[command]
program = "fd"

[output]
format = "json"
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fd", c.Command.Program)
	assert.Equal(t, "json", c.Output.Format)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, "cfg.yaml", `
output:
  format: xml
filter:
  ignore:
    - mode: fuzzy
      pattern: x
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.format")
	assert.Contains(t, err.Error(), "filter.ignore[0].mode")
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "cfg.ini", "a=b")
	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestSessionConfigAndIgnoreRules(t *testing.T) {
	c := NewConfig()
	c.Filter.Ignore = []IgnoreRule{{Mode: "glob", Pattern: "*/ads/*"}}

	sc := c.SessionConfig()
	assert.Equal(t, c.DevTools.URL, sc.DevToolsURL)
	assert.Equal(t, "flowdownloader", sc.Program)
	assert.Equal(t, 5000, sc.BodyTimeoutMS)

	rules := c.IgnoreRules()
	require.Len(t, rules, 1)
	assert.Equal(t, "*/ads/*", rules[0].Pattern)
}
