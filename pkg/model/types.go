package model

type SessionID string
type TargetID string

type SessionConfig struct {
	DevToolsURL   string `json:"devToolsURL"`
	Program       string `json:"program"`
	BodyTimeoutMS int    `json:"bodyTimeoutMS"`
	QueueSize     int    `json:"queueSize"`
}

type TargetInfo struct {
	ID        TargetID `json:"id"`
	Type      string   `json:"type"`
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	IsCurrent bool     `json:"isCurrent"`
}

// Variant 主清单的变体摘要
type Variant struct {
	Bandwidth  uint32 `json:"bandwidth"`
	Resolution string `json:"resolution,omitempty"`
	URI        string `json:"uri"`
}

// Update 展示层事件：每次描述符变更发送一次
type Update struct {
	Session      SessionID `json:"session"`
	Target       TargetID  `json:"target"`
	Field        string    `json:"field"`
	PrimaryURL   string    `json:"primaryUrl"`
	SecondaryURL string    `json:"secondaryUrl"`
	Key          string    `json:"key"`
	IV           string    `json:"iv"`
	Command      string    `json:"command"`
	Referer      string    `json:"referer,omitempty"`
	Variants     []Variant `json:"variants,omitempty"`
	Timestamp    int64     `json:"timestamp"`
}

// IgnoreRule 清单忽略条件
type IgnoreRule struct {
	Mode    string `json:"mode"`
	Pattern string `json:"pattern"`
}
