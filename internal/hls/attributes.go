package hls

import (
	"strings"
	"unicode"
)

// Value 单个属性值
type Value struct {
	Raw    string
	Quoted bool
}

// Attributes 标签属性表，同名属性只保留第一次出现
type Attributes map[string]Value

// ParseAttributes 解析 KEY=VALUE,KEY="VALUE" 形式的属性列表。
// 遇到无法继续的片段（缺少 '='、引号未闭合）时返回已解析部分。
func ParseAttributes(s string) Attributes {
	attrs := make(Attributes)
	for len(s) > 0 {
		s = strings.TrimLeft(s, " \t")
		i := strings.IndexByte(s, '=')
		if i < 0 {
			break
		}
		key := strings.TrimSpace(s[:i])
		// 前面残留的无值片段，如 "FOO,URI="
		if j := strings.LastIndexByte(key, ','); j >= 0 {
			key = strings.TrimSpace(key[j+1:])
		}
		s = s[i+1:]

		var val Value
		if strings.HasPrefix(s, `"`) {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				break
			}
			val = Value{Raw: s[1 : end+1], Quoted: true}
			s = s[end+2:]
			if j := strings.IndexByte(s, ','); j >= 0 {
				s = s[j+1:]
			} else {
				s = ""
			}
		} else if j := strings.IndexByte(s, ','); j >= 0 {
			val, s = Value{Raw: s[:j]}, s[j+1:]
		} else {
			val, s = Value{Raw: s}, ""
		}

		if key == "" {
			continue
		}
		if _, ok := attrs[key]; !ok {
			attrs[key] = val
		}
	}
	return attrs
}

// Quoted 返回带引号的非空属性值
func (a Attributes) Quoted(name string) (string, bool) {
	v, ok := a[name]
	if !ok || !v.Quoted || v.Raw == "" {
		return "", false
	}
	return v.Raw, true
}

// Token 返回不带引号的属性值，截止到第一个空白字符
func (a Attributes) Token(name string) (string, bool) {
	v, ok := a[name]
	if !ok || v.Quoted {
		return "", false
	}
	tok := v.Raw
	if i := strings.IndexFunc(tok, unicode.IsSpace); i >= 0 {
		tok = tok[:i]
	}
	if tok == "" {
		return "", false
	}
	return tok, true
}
