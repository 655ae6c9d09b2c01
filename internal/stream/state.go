package stream

import "sync"

// Field 描述符字段名
type Field string

const (
	FieldKey          Field = "key"
	FieldPrimaryURL   Field = "primaryUrl"
	FieldSecondaryURL Field = "secondaryUrl"
	FieldIV           Field = "iv"
	FieldReset        Field = "reset"
)

// Descriptor 会话内累积的流描述
type Descriptor struct {
	Key          string `json:"key"`
	PrimaryURL   string `json:"primaryUrl"`
	SecondaryURL string `json:"secondaryUrl"`
	IV           string `json:"iv"`
}

// Snapshot 一次变更后的完整状态
type Snapshot struct {
	Descriptor
	Field   Field  `json:"field"`
	Command string `json:"command"`
}

// State 会话级状态：描述符加上待匹配的密钥 URI。
// 变更回调在锁外执行，字段值不变时不视为变更。
type State struct {
	mu       sync.Mutex
	desc     Descriptor
	pending  string
	builder  Builder
	onChange func(Snapshot)
}

// NewState 创建会话状态
func NewState(b Builder, onChange func(Snapshot)) *State {
	return &State{builder: b, onChange: onChange}
}

// Reset 清空描述符与待匹配 URI
func (s *State) Reset() {
	s.mu.Lock()
	s.desc = Descriptor{}
	s.pending = ""
	snap := s.snapshotLocked(FieldReset)
	s.mu.Unlock()
	s.notify(snap)
}

// Descriptor 当前描述符副本
func (s *State) Descriptor() Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc
}

// Command 当前描述符对应的命令
func (s *State) Command() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builder.Build(s.desc)
}

// Snapshot 当前完整状态
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked("")
}

// SetPrimaryURL 设置主流 URL
func (s *State) SetPrimaryURL(u string) bool {
	return s.set(FieldPrimaryURL, u, func(d *Descriptor) *string { return &d.PrimaryURL })
}

// SetSecondaryURL 设置次流 URL
func (s *State) SetSecondaryURL(u string) bool {
	return s.set(FieldSecondaryURL, u, func(d *Descriptor) *string { return &d.SecondaryURL })
}

// SetIV 设置初始化向量（原样保存）
func (s *State) SetIV(iv string) bool {
	return s.set(FieldIV, iv, func(d *Descriptor) *string { return &d.IV })
}

// SetKey 设置 base64 形式的密钥
func (s *State) SetKey(key string) bool {
	return s.set(FieldKey, key, func(d *Descriptor) *string { return &d.Key })
}

func (s *State) set(f Field, v string, field func(*Descriptor) *string) bool {
	if v == "" {
		return false
	}
	s.mu.Lock()
	p := field(&s.desc)
	if *p == v {
		s.mu.Unlock()
		return false
	}
	*p = v
	snap := s.snapshotLocked(f)
	s.mu.Unlock()
	s.notify(snap)
	return true
}

func (s *State) snapshotLocked(f Field) Snapshot {
	return Snapshot{Descriptor: s.desc, Field: f, Command: s.builder.Build(s.desc)}
}

func (s *State) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
