package stream

import (
	"encoding/base64"
	"fmt"
)

// Expect 记录下一次期望的密钥 URI，覆盖之前的值
func (s *State) Expect(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = uri
}

// PendingKeyURI 当前待匹配的密钥 URI，为空表示没有
func (s *State) PendingKeyURI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Claim URL 与待匹配 URI 完全一致时消费该 URI（一次性）
func (s *State) Claim(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == "" || url != s.pending {
		return false
	}
	s.pending = ""
	return true
}

// NormalizeKey 将密钥响应体统一为原始字节的标准 base64
func NormalizeKey(content string, base64Encoded bool) (string, error) {
	raw := []byte(content)
	if base64Encoded {
		b, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return "", fmt.Errorf("decode key body: %w", err)
		}
		raw = b
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("empty key body")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
