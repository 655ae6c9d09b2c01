package rules

import (
	"regexp"
	"strings"
	"sync"

	"flowsniffer/internal/hls"
)

// Route 单次交换的处理路径
type Route int

const (
	RouteIgnore Route = iota
	RouteManifest
	RouteKey
	RouteFiltered // 清单命中忽略条件
)

func (r Route) String() string {
	switch r {
	case RouteManifest:
		return "manifest"
	case RouteKey:
		return "key"
	case RouteFiltered:
		return "filtered"
	default:
		return "ignore"
	}
}

// Condition 忽略条件
type Condition struct {
	Mode    string // exact / prefix / glob / regex
	Pattern string
}

// Engine 决定交换走清单分类、密钥关联还是忽略
type Engine struct {
	mu     sync.RWMutex
	ignore []Condition
}

func New(ignore []Condition) *Engine { return &Engine{ignore: ignore} }

func (e *Engine) Update(ignore []Condition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ignore = ignore
}

// Route 清单判定优先；否则与待匹配密钥 URI 完全相等时为密钥
func (e *Engine) Route(url, pendingKeyURI string) Route {
	if hls.IsManifestURL(url) {
		if e.ignored(url) {
			return RouteFiltered
		}
		return RouteManifest
	}
	if pendingKeyURI != "" && url == pendingKeyURI {
		return RouteKey
	}
	return RouteIgnore
}

func (e *Engine) ignored(url string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := range e.ignore {
		if cond(url, e.ignore[i]) {
			return true
		}
	}
	return false
}

func cond(url string, c Condition) bool {
	switch c.Mode {
	case "prefix":
		return strings.HasPrefix(url, c.Pattern)
	case "regex":
		return matchRegex(url, c.Pattern)
	case "exact":
		return url == c.Pattern
	default:
		return glob(url, c.Pattern)
	}
}

var regexCache = &reCache{m: make(map[string]*regexp.Regexp)}

type reCache struct {
	mu sync.Mutex
	m  map[string]*regexp.Regexp
}

func (c *reCache) Get(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.m[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	c.m[pattern] = re
	return re, nil
}

func matchRegex(s, pattern string) bool {
	re, err := regexCache.Get(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func glob(s, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(s, strings.TrimPrefix(pattern, "*")) {
		return true
	}
	if strings.HasSuffix(pattern, "*") && strings.HasPrefix(s, strings.TrimSuffix(pattern, "*")) {
		return true
	}
	return s == pattern
}
