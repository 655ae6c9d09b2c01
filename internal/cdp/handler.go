package cdp

import (
	"context"
	"fmt"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/network"

	adapter "flowsniffer/internal/adapter/cdp"
	"flowsniffer/pkg/traffic"
)

type eventStreams struct {
	sent     network.RequestWillBeSentClient
	received network.ResponseReceivedClient
	finished network.LoadingFinishedClient
	failed   network.LoadingFailedClient
}

func (s *eventStreams) close() {
	for _, c := range []interface{ Close() error }{s.sent, s.received, s.finished, s.failed} {
		if c != nil {
			_ = c.Close()
		}
	}
}

// subscribe 订阅网络事件并同步各事件流的顺序
func subscribe(ctx context.Context, client *cdp.Client) (*eventStreams, error) {
	var (
		s   eventStreams
		err error
	)
	if s.sent, err = client.Network.RequestWillBeSent(ctx); err != nil {
		return nil, fmt.Errorf("subscribe requestWillBeSent: %w", err)
	}
	if s.received, err = client.Network.ResponseReceived(ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("subscribe responseReceived: %w", err)
	}
	if s.finished, err = client.Network.LoadingFinished(ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("subscribe loadingFinished: %w", err)
	}
	if s.failed, err = client.Network.LoadingFailed(ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("subscribe loadingFailed: %w", err)
	}
	if err = cdp.Sync(s.sent, s.received, s.finished, s.failed); err != nil {
		s.close()
		return nil, fmt.Errorf("sync event streams: %w", err)
	}
	return &s, nil
}

// consume 按协议顺序消费事件，加载完成时推送交换
func (m *Manager) consume(ctx context.Context, client *cdp.Client, s *eventStreams) {
	defer s.close()
	defer close(m.exchanges)

	inflight := make(map[network.RequestID]*traffic.Exchange)
	target := string(m.Target())
	m.log.Info("开始消费网络事件流", "target", target)

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.sent.Ready():
			ev, err := s.sent.Recv()
			if err != nil {
				m.handleStreamClosed(target, err)
				return
			}
			ex := adapter.ToNeutralExchange(ev)
			if adapter.IsNavigation(ex, target) {
				nav := traffic.NewExchange(ex.ID, ex.URL)
				nav.Navigation = true
				if !m.send(ctx, nav) {
					return
				}
			}
			// 重定向沿用同一个 RequestID，覆盖为新的 URL
			inflight[ev.RequestID] = ex

		case <-s.received.Ready():
			ev, err := s.received.Recv()
			if err != nil {
				m.handleStreamClosed(target, err)
				return
			}
			if ex, ok := inflight[ev.RequestID]; ok {
				adapter.ApplyResponse(ex, ev)
			}

		case <-s.finished.Ready():
			ev, err := s.finished.Recv()
			if err != nil {
				m.handleStreamClosed(target, err)
				return
			}
			ex, ok := inflight[ev.RequestID]
			if !ok {
				continue
			}
			delete(inflight, ev.RequestID)
			ex.Body = adapter.ResponseBody(client, ev.RequestID)
			if !m.send(ctx, ex) {
				return
			}

		case <-s.failed.Ready():
			ev, err := s.failed.Recv()
			if err != nil {
				m.handleStreamClosed(target, err)
				return
			}
			if ex, ok := inflight[ev.RequestID]; ok {
				m.log.Debug("请求加载失败", "url", ex.URL, "error", ev.ErrorText)
				delete(inflight, ev.RequestID)
			}
		}
	}
}

// send 推送到处理队列；队列满时阻塞等待，不丢弃
func (m *Manager) send(ctx context.Context, ex *traffic.Exchange) bool {
	select {
	case m.exchanges <- ex:
		return true
	default:
	}
	m.log.Warn("处理队列已满，等待消费", "url", ex.URL, "capacity", cap(m.exchanges))
	select {
	case m.exchanges <- ex:
		return true
	case <-ctx.Done():
		return false
	}
}

// handleStreamClosed 处理事件流终止
func (m *Manager) handleStreamClosed(target string, err error) {
	if !m.isEnabled() {
		m.log.Info("监听已停止，结束事件消费", "target", target)
		return
	}
	m.log.Err(err, "网络事件流被中断", "target", target)
	m.setEnabled(false)
}
