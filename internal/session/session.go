package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"flowsniffer/internal/handler"
	"flowsniffer/internal/stream"
	"flowsniffer/pkg/model"
)

// Session 一次监听会话：会话级流状态加上展示所需的附加信息
type Session struct {
	ID      model.SessionID
	Created time.Time
	State   *stream.State

	mu       sync.RWMutex
	target   model.TargetID
	referer  string
	variants []model.Variant
	publish  func(model.Update)
}

// NewID 生成会话ID
func NewID() model.SessionID {
	return model.SessionID(uuid.NewString())
}

// New 创建会话，publish 在每次描述符变更后调用
func New(id model.SessionID, b stream.Builder, publish func(model.Update)) *Session {
	s := &Session{ID: id, Created: time.Now(), publish: publish}
	s.State = stream.NewState(b, s.onChange)
	return s
}

// SetTarget 记录附加的目标
func (s *Session) SetTarget(t model.TargetID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = t
}

// Target 当前目标
func (s *Session) Target() model.TargetID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

// Annotate 保存清单上下文，随后续更新一起发送
func (s *Session) Annotate(info handler.ManifestInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info.Referer != "" {
		s.referer = info.Referer
	}
	if len(info.Variants) > 0 {
		s.variants = make([]model.Variant, 0, len(info.Variants))
		for _, v := range info.Variants {
			s.variants = append(s.variants, model.Variant{Bandwidth: v.Bandwidth, Resolution: v.Resolution, URI: v.URI})
		}
	}
}

// Update 当前状态对应的展示事件
func (s *Session) Update() model.Update {
	return s.toUpdate(s.State.Snapshot())
}

func (s *Session) onChange(snap stream.Snapshot) {
	if snap.Field == stream.FieldReset {
		s.mu.Lock()
		s.referer = ""
		s.variants = nil
		s.mu.Unlock()
	}
	if s.publish != nil {
		s.publish(s.toUpdate(snap))
	}
}

func (s *Session) toUpdate(snap stream.Snapshot) model.Update {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.Update{
		Session:      s.ID,
		Target:       s.target,
		Field:        string(snap.Field),
		PrimaryURL:   snap.PrimaryURL,
		SecondaryURL: snap.SecondaryURL,
		Key:          snap.Key,
		IV:           snap.IV,
		Command:      snap.Command,
		Referer:      s.referer,
		Variants:     append([]model.Variant(nil), s.variants...),
		Timestamp:    time.Now().UnixMilli(),
	}
}
