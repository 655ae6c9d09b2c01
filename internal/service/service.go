package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flowsniffer/internal/cdp"
	"flowsniffer/internal/handler"
	"flowsniffer/internal/logger"
	"flowsniffer/internal/rules"
	"flowsniffer/internal/session"
	"flowsniffer/internal/stream"
	"flowsniffer/pkg/model"
	"flowsniffer/pkg/traffic"
)

var ErrSessionNotFound = errors.New("session not found")

// Observer 浏览器网络事件来源
type Observer interface {
	ListTargets(ctx context.Context) ([]model.TargetInfo, error)
	AttachTarget(target model.TargetID) error
	Enable() error
	Detach() error
	Target() model.TargetID
	Exchanges() <-chan *traffic.Exchange
}

// Publisher 更新接收端（终端输出、捕获日志）
type Publisher interface {
	Publish(u model.Update)
}

// Options 服务选项
type Options struct {
	Logger     logger.Logger
	Publishers []Publisher
	// NewObserver 为空时使用 CDP 管理器
	NewObserver func(cfg model.SessionConfig, l logger.Logger) Observer
}

type runtime struct {
	sess   *session.Session
	obs    Observer
	rules  *rules.Engine
	cancel context.CancelFunc
	done   chan struct{}

	subMu  sync.Mutex
	subs   []chan model.Update
	closed bool
}

// Service 会话服务实现
type Service struct {
	mu          sync.Mutex
	sessions    *session.Manager
	runtimes    map[model.SessionID]*runtime
	publishers  []Publisher
	newObserver func(cfg model.SessionConfig, l logger.Logger) Observer
	log         logger.Logger
}

// New 创建服务
func New(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.NewObserver == nil {
		opts.NewObserver = func(cfg model.SessionConfig, l logger.Logger) Observer {
			return cdp.New(cdp.Config{DevToolsURL: cfg.DevToolsURL, QueueSize: cfg.QueueSize, Logger: l})
		}
	}
	return &Service{
		sessions:    session.NewManager(opts.Logger),
		runtimes:    make(map[model.SessionID]*runtime),
		publishers:  opts.Publishers,
		newObserver: opts.NewObserver,
		log:         opts.Logger,
	}
}

// StartSession 创建会话并启动处理循环，附加目标后才有事件
func (s *Service) StartSession(cfg model.SessionConfig) (model.SessionID, error) {
	id := session.NewID()
	l := s.log.With("session", string(id))

	rt := &runtime{rules: rules.New(nil), done: make(chan struct{})}
	rt.sess = session.New(id, stream.NewBuilder(cfg.Program), func(u model.Update) { s.publish(rt, u) })
	rt.obs = s.newObserver(cfg, l)

	h := handler.New(handler.Config{
		State:         rt.sess.State,
		Rules:         rt.rules,
		BodyTimeoutMS: cfg.BodyTimeoutMS,
		OnManifest:    rt.sess.Annotate,
		Logger:        l,
	})

	ctx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	go func() {
		defer close(rt.done)
		h.Run(ctx, rt.obs.Exchanges())
	}()

	s.mu.Lock()
	s.runtimes[id] = rt
	s.mu.Unlock()
	s.sessions.Add(rt.sess)
	return id, nil
}

// StopSession 停止会话：断开目标、结束处理循环、关闭订阅
func (s *Service) StopSession(id model.SessionID) error {
	s.mu.Lock()
	rt, ok := s.runtimes[id]
	delete(s.runtimes, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	err := rt.obs.Detach()
	rt.cancel()
	select {
	case <-rt.done:
	case <-time.After(5 * time.Second):
		s.log.Warn("等待处理循环退出超时", "session", string(id))
	}

	rt.subMu.Lock()
	rt.closed = true
	for _, ch := range rt.subs {
		close(ch)
	}
	rt.subs = nil
	rt.subMu.Unlock()

	s.sessions.Delete(id)
	if err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	return nil
}

// ListTargets 列出目标
func (s *Service) ListTargets(ctx context.Context, id model.SessionID) ([]model.TargetInfo, error) {
	rt, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return rt.obs.ListTargets(ctx)
}

// AttachTarget 附加目标并开始监听网络事件
func (s *Service) AttachTarget(id model.SessionID, target model.TargetID) error {
	rt, err := s.get(id)
	if err != nil {
		return err
	}
	if err := rt.obs.AttachTarget(target); err != nil {
		return err
	}
	if err := rt.obs.Enable(); err != nil {
		_ = rt.obs.Detach()
		return err
	}
	rt.sess.SetTarget(rt.obs.Target())
	return nil
}

// ResetSession 清空描述符与待匹配密钥
func (s *Service) ResetSession(id model.SessionID) error {
	rt, err := s.get(id)
	if err != nil {
		return err
	}
	rt.sess.State.Reset()
	return nil
}

// Snapshot 当前描述符与命令
func (s *Service) Snapshot(id model.SessionID) (model.Update, error) {
	rt, err := s.get(id)
	if err != nil {
		return model.Update{}, err
	}
	return rt.sess.Update(), nil
}

// SetFilter 替换清单忽略条件
func (s *Service) SetFilter(id model.SessionID, ignore []model.IgnoreRule) error {
	rt, err := s.get(id)
	if err != nil {
		return err
	}
	conds := make([]rules.Condition, 0, len(ignore))
	for _, r := range ignore {
		conds = append(conds, rules.Condition{Mode: r.Mode, Pattern: r.Pattern})
	}
	rt.rules.Update(conds)
	return nil
}

// SubscribeUpdates 订阅更新，会话停止时通道关闭
func (s *Service) SubscribeUpdates(id model.SessionID) (<-chan model.Update, error) {
	rt, err := s.get(id)
	if err != nil {
		return nil, err
	}
	ch := make(chan model.Update, 64)
	rt.subMu.Lock()
	defer rt.subMu.Unlock()
	if rt.closed {
		close(ch)
		return ch, nil
	}
	rt.subs = append(rt.subs, ch)
	return ch, nil
}

func (s *Service) get(id model.SessionID) (*runtime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.runtimes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return rt, nil
}

func (s *Service) publish(rt *runtime, u model.Update) {
	for _, p := range s.publishers {
		p.Publish(u)
	}

	rt.subMu.Lock()
	defer rt.subMu.Unlock()
	if rt.closed {
		return
	}
	for _, ch := range rt.subs {
		select {
		case ch <- u:
		default:
			s.log.Warn("订阅通道已满，丢弃更新", "session", string(u.Session), "field", u.Field)
		}
	}
}
