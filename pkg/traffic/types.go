package traffic

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrNoBody 交换没有可获取的响应体
var ErrNoBody = errors.New("response body not available")

// Header 封装通用的头部操作
type Header map[string]string

// Get 获取指定 Header 的值（大小写不敏感）
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

// Set 设置指定 Header 的值（自动转换为小写）
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Del 删除指定 Header
func (h Header) Del(key string) {
	delete(h, strings.ToLower(key))
}

// BodyFunc 惰性获取响应体，base64Encoded 表示传输层已做 base64 编码
type BodyFunc func(ctx context.Context) (content string, base64Encoded bool, err error)

// Exchange 一次已完成的网络交换（中立模型）
type Exchange struct {
	ID           string // 请求唯一ID
	URL          string // 完整URL，含查询串
	Method       string
	ResourceType string // 资源类型 (如 Document, XHR, Media)
	FrameID      string
	MimeType     string
	StatusCode   int
	Headers      Header // 请求头
	Body         BodyFunc
	// Navigation 主框架导航标记，会话状态需要重置
	Navigation bool
}

// NewExchange 创建初始化交换对象
func NewExchange(id, url string) *Exchange {
	return &Exchange{
		ID:      id,
		URL:     url,
		Headers: make(Header),
	}
}

// StrippedURL 去掉查询串后的 URL
func (e *Exchange) StrippedURL() string {
	return StripQuery(e.URL)
}

// FetchBody 获取原始响应体
func (e *Exchange) FetchBody(ctx context.Context) (string, bool, error) {
	if e.Body == nil {
		return "", false, ErrNoBody
	}
	return e.Body(ctx)
}

// Text 获取文本形式的响应体，base64 传输时先解码
func (e *Exchange) Text(ctx context.Context) (string, error) {
	content, encoded, err := e.FetchBody(ctx)
	if err != nil {
		return "", err
	}
	if !encoded {
		return content, nil
	}
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return "", fmt.Errorf("decode base64 body: %w", err)
	}
	return string(raw), nil
}

// StripQuery 截断第一个 '?' 及其后内容
func StripQuery(u string) string {
	before, _, _ := strings.Cut(u, "?")
	return before
}

// StaticBody 返回固定内容的 BodyFunc
func StaticBody(content string, base64Encoded bool) BodyFunc {
	return func(context.Context) (string, bool, error) {
		return content, base64Encoded, nil
	}
}

// FailingBody 返回总是失败的 BodyFunc
func FailingBody(err error) BodyFunc {
	return func(context.Context) (string, bool, error) {
		return "", false, err
	}
}
