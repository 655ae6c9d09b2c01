package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/tidwall/sjson"

	"flowsniffer/pkg/model"
)

// Sink 更新的接收端
type Sink interface {
	Publish(u model.Update)
}

const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// New 按格式创建输出端，auto 在非终端时输出 JSON 行
func New(format string, w io.Writer) (Sink, error) {
	switch format {
	case FormatText:
		return NewText(w), nil
	case FormatJSON:
		return NewJSON(w), nil
	case FormatAuto, "":
		if isTerminal(w) {
			return NewText(w), nil
		}
		return NewJSON(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Text 面向终端的可读输出
type Text struct {
	mu sync.Mutex
	w  io.Writer
}

func NewText(w io.Writer) *Text { return &Text{w: w} }

func (t *Text) Publish(u model.Update) {
	var b strings.Builder
	if u.Field == "reset" {
		fmt.Fprintf(&b, "-- 会话已重置 (%s)\n", u.Session)
	} else {
		fmt.Fprintf(&b, "-- %s 已更新\n", u.Field)
		line(&b, "主清单", u.PrimaryURL)
		line(&b, "子清单", u.SecondaryURL)
		line(&b, "密钥", u.Key)
		line(&b, "IV", u.IV)
		line(&b, "来源", u.Referer)
		for _, v := range u.Variants {
			res := v.Resolution
			if res == "" {
				res = "-"
			}
			fmt.Fprintf(&b, "   变体      %d %s %s\n", v.Bandwidth, res, v.URI)
		}
	}
	fmt.Fprintf(&b, "   命令      %s\n", u.Command)

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.w, b.String())
}

func line(b *strings.Builder, label, v string) {
	if v == "" {
		return
	}
	fmt.Fprintf(b, "   %-8s  %s\n", label, v)
}

// JSON 每次更新输出一行 JSON
type JSON struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSON(w io.Writer) *JSON { return &JSON{w: w} }

func (j *JSON) Publish(u model.Update) {
	doc := Encode(u)
	j.mu.Lock()
	defer j.mu.Unlock()
	_, _ = io.WriteString(j.w, doc+"\n")
}

// Encode 把更新编码为单行 JSON，空字段省略
func Encode(u model.Update) string {
	doc := "{}"
	doc, _ = sjson.Set(doc, "session", string(u.Session))
	if u.Target != "" {
		doc, _ = sjson.Set(doc, "target", string(u.Target))
	}
	doc, _ = sjson.Set(doc, "field", u.Field)
	for _, kv := range [][2]string{
		{"primaryUrl", u.PrimaryURL},
		{"secondaryUrl", u.SecondaryURL},
		{"key", u.Key},
		{"iv", u.IV},
		{"referer", u.Referer},
	} {
		if kv[1] != "" {
			doc, _ = sjson.Set(doc, kv[0], kv[1])
		}
	}
	for i, v := range u.Variants {
		p := fmt.Sprintf("variants.%d", i)
		doc, _ = sjson.Set(doc, p+".bandwidth", v.Bandwidth)
		if v.Resolution != "" {
			doc, _ = sjson.Set(doc, p+".resolution", v.Resolution)
		}
		doc, _ = sjson.Set(doc, p+".uri", v.URI)
	}
	doc, _ = sjson.Set(doc, "command", u.Command)
	doc, _ = sjson.Set(doc, "timestamp", u.Timestamp)
	return doc
}

// Multi 依次转发给多个输出端
type Multi []Sink

func (m Multi) Publish(u model.Update) {
	for _, s := range m {
		if s != nil {
			s.Publish(u)
		}
	}
}
