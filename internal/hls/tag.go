// Package hls 识别 HLS 清单、对清单逐行分词并判定主/次流角色。
//
// 只识别固定的三个标签：
//
//	#EXT-X-KEY:METHOD=   加密标签，决定性，归为次流
//	#EXT-X-STREAM-INF:   变体标签，决定性，归为主流
//	#EXT-X-VERSION:      版本标签，非决定性，暂定为次流
package hls

import "strings"

// TagKind 识别出的标签种类
type TagKind int

const (
	TagOther TagKind = iota
	TagKey
	TagStreamInf
	TagVersion
)

const (
	prefixKey       = "#EXT-X-KEY:METHOD="
	prefixKeyAttrs  = "#EXT-X-KEY:"
	prefixStreamInf = "#EXT-X-STREAM-INF:"
	prefixVersion   = "#EXT-X-VERSION:"
)

func (k TagKind) String() string {
	switch k {
	case TagKey:
		return "EXT-X-KEY"
	case TagStreamInf:
		return "EXT-X-STREAM-INF"
	case TagVersion:
		return "EXT-X-VERSION"
	default:
		return "other"
	}
}

// Decisive 决定性标签会终止扫描
func (k TagKind) Decisive() bool {
	return k == TagKey || k == TagStreamInf
}

// Line 分词后的一行
type Line struct {
	Kind  TagKind
	Text  string
	Attrs Attributes // 仅 TagKey 填充
}

// ParseLine 对单行分词
func ParseLine(s string) Line {
	s = strings.TrimSuffix(s, "\r")
	switch {
	case strings.HasPrefix(s, prefixKey):
		return Line{Kind: TagKey, Text: s, Attrs: ParseAttributes(s[len(prefixKeyAttrs):])}
	case strings.HasPrefix(s, prefixStreamInf):
		return Line{Kind: TagStreamInf, Text: s}
	case strings.HasPrefix(s, prefixVersion):
		return Line{Kind: TagVersion, Text: s}
	default:
		return Line{Kind: TagOther, Text: s}
	}
}

// Tokenize 按 '\n' 拆分清单并逐行分词
func Tokenize(body string) []Line {
	raw := strings.Split(body, "\n")
	lines := make([]Line, 0, len(raw))
	for _, s := range raw {
		lines = append(lines, ParseLine(s))
	}
	return lines
}
