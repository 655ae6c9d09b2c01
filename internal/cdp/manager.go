package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/rpcc"

	"flowsniffer/internal/logger"
	"flowsniffer/pkg/model"
	"flowsniffer/pkg/traffic"
)

var (
	ErrNotAttached = errors.New("not attached")
	ErrNoTarget    = errors.New("no page target")
	ErrStarted     = errors.New("event stream already consumed")
)

// Manager 连接单个浏览器目标并把已完成的网络交换推送到队列
type Manager struct {
	devtoolsURL string
	log         logger.Logger

	mu        sync.Mutex
	conn      *rpcc.Conn
	client    *cdp.Client
	target    model.TargetID
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	started   bool // 输出队列只能被一个消费循环关闭一次
	exchanges chan *traffic.Exchange
}

// Config 配置选项
type Config struct {
	DevToolsURL string
	QueueSize   int
	Logger      logger.Logger
}

// New 创建 CDP 管理器
func New(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Manager{
		devtoolsURL: cfg.DevToolsURL,
		log:         cfg.Logger,
		exchanges:   make(chan *traffic.Exchange, cfg.QueueSize),
	}
}

// Exchanges 已完成交换的输出队列，事件流结束后关闭
func (m *Manager) Exchanges() <-chan *traffic.Exchange {
	return m.exchanges
}

// Target 当前附加的目标
func (m *Manager) Target() model.TargetID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

// ListTargets 列出可附加的页面目标
func (m *Manager) ListTargets(ctx context.Context) ([]model.TargetInfo, error) {
	targets, err := devtool.New(m.devtoolsURL).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	cur := m.Target()
	out := make([]model.TargetInfo, 0, len(targets))
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		out = append(out, model.TargetInfo{
			ID:        model.TargetID(t.ID),
			Type:      string(t.Type),
			URL:       t.URL,
			Title:     t.Title,
			IsCurrent: model.TargetID(t.ID) == cur,
		})
	}
	return out, nil
}

// AttachTarget 附加目标，target 为空时选择第一个页面
func (m *Manager) AttachTarget(target model.TargetID) error {
	ctx, cancel := context.WithCancel(context.Background())
	targets, err := devtool.New(m.devtoolsURL).List(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("list targets: %w", err)
	}
	var sel *devtool.Target
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		if target == "" || model.TargetID(t.ID) == target {
			sel = t
			break
		}
	}
	if sel == nil {
		cancel()
		return fmt.Errorf("%w: %q", ErrNoTarget, target)
	}

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		cancel()
		return fmt.Errorf("dial %s: %w", sel.WebSocketDebuggerURL, err)
	}

	m.mu.Lock()
	m.ctx = ctx
	m.cancel = cancel
	m.conn = conn
	m.client = cdp.NewClient(conn)
	m.target = model.TargetID(sel.ID)
	m.mu.Unlock()

	m.log.Info("已附加目标", "target", sel.ID, "url", sel.URL, "title", sel.Title)
	return nil
}

// Detach 断开连接
func (m *Manager) Detach() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	m.enabled = false
	if m.conn != nil {
		err := m.conn.Close()
		m.conn = nil
		m.client = nil
		return err
	}
	return nil
}

// Enable 启用 Network 域并开始消费事件
func (m *Manager) Enable() error {
	m.mu.Lock()
	client, ctx := m.client, m.ctx
	if client == nil {
		m.mu.Unlock()
		return ErrNotAttached
	}
	if m.enabled {
		m.mu.Unlock()
		return nil
	}
	if m.started {
		m.mu.Unlock()
		return ErrStarted
	}
	m.enabled = true
	m.mu.Unlock()

	if err := client.Network.Enable(ctx, nil); err != nil {
		m.setEnabled(false)
		return fmt.Errorf("enable network domain: %w", err)
	}
	streams, err := subscribe(ctx, client)
	if err != nil {
		m.setEnabled(false)
		return err
	}
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	go m.consume(ctx, client, streams)
	return nil
}

func (m *Manager) setEnabled(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = v
}

func (m *Manager) isEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}
