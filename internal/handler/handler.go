package handler

import (
	"context"
	"time"

	"flowsniffer/internal/hls"
	"flowsniffer/internal/logger"
	"flowsniffer/internal/rules"
	"flowsniffer/internal/stream"
	"flowsniffer/pkg/traffic"
)

// ManifestInfo 清单分类时附带的上下文
type ManifestInfo struct {
	URL      string
	Referer  string
	Result   hls.Result
	Variants []hls.Variant
}

// Handler 串行处理交换事件：清单分类或密钥关联
type Handler struct {
	state         *stream.State
	rules         *rules.Engine
	bodyTimeoutMS int
	onManifest    func(ManifestInfo)
	log           logger.Logger
}

// Config 配置选项
type Config struct {
	State         *stream.State
	Rules         *rules.Engine
	BodyTimeoutMS int
	// OnManifest 在应用变更之前调用
	OnManifest func(ManifestInfo)
	Logger     logger.Logger
}

// New 创建事件处理器
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Rules == nil {
		cfg.Rules = rules.New(nil)
	}
	return &Handler{
		state:         cfg.State,
		rules:         cfg.Rules,
		bodyTimeoutMS: cfg.BodyTimeoutMS,
		onManifest:    cfg.OnManifest,
		log:           cfg.Logger,
	}
}

// Run 单消费者循环，按到达顺序处理，直到 ctx 取消或通道关闭
func (h *Handler) Run(ctx context.Context, in <-chan *traffic.Exchange) {
	for {
		select {
		case <-ctx.Done():
			return
		case ex, ok := <-in:
			if !ok {
				return
			}
			h.Handle(ctx, ex)
		}
	}
}

// Handle 处理一次已完成的交换
func (h *Handler) Handle(ctx context.Context, ex *traffic.Exchange) {
	if ex == nil {
		return
	}
	if ex.Navigation {
		h.state.Reset()
		h.log.Info("页面导航，重置会话状态", "url", ex.URL)
		return
	}
	route := h.rules.Route(ex.URL, h.state.PendingKeyURI())
	switch route {
	case rules.RouteManifest:
		h.handleManifest(ctx, ex)
	case rules.RouteKey:
		h.handleKey(ctx, ex)
	case rules.RouteFiltered:
		h.log.Debug("清单命中忽略条件", "url", ex.URL)
	}
}

func (h *Handler) handleManifest(ctx context.Context, ex *traffic.Exchange) {
	start := time.Now()
	bctx, cancel := h.bodyContext(ctx)
	defer cancel()

	body, err := ex.Text(bctx)
	if err != nil {
		h.log.Warn("获取清单内容失败", "url", ex.URL, "error", err)
		return
	}

	res := hls.Classify(body)
	if res.Role == hls.RoleUndetermined {
		h.log.Debug("清单无可识别标签", "url", ex.URL)
		return
	}

	info := ManifestInfo{URL: ex.URL, Referer: ex.Headers.Get("referer"), Result: res}
	if res.Role == hls.RolePrimary {
		info.Variants = hls.Variants(body)
	}
	if h.onManifest != nil {
		h.onManifest(info)
	}

	if res.Tentative || res.Role == hls.RoleSecondary {
		h.state.SetSecondaryURL(ex.URL)
	}
	switch res.Decisive {
	case hls.TagKey:
		if res.HasKeyURI {
			h.state.Expect(res.KeyURI)
			h.log.Info("发现密钥地址", "manifest", ex.URL, "keyURI", res.KeyURI)
		}
		if res.HasIV {
			h.state.SetIV(res.IV)
		}
	case hls.TagStreamInf:
		h.state.SetPrimaryURL(ex.URL)
	}

	h.log.Info("清单分类完成",
		"url", ex.URL,
		"role", res.Role.String(),
		"decisive", res.Decisive.String(),
		"variants", len(info.Variants),
		"duration", time.Since(start))
}

func (h *Handler) handleKey(ctx context.Context, ex *traffic.Exchange) {
	// 先消费，失败也不重试
	if !h.state.Claim(ex.URL) {
		return
	}
	bctx, cancel := h.bodyContext(ctx)
	defer cancel()

	content, encoded, err := ex.FetchBody(bctx)
	if err != nil {
		h.log.Warn("获取密钥内容失败", "url", ex.URL, "error", err)
		return
	}
	key, err := stream.NormalizeKey(content, encoded)
	if err != nil {
		h.log.Warn("密钥内容无效", "url", ex.URL, "error", err)
		return
	}
	h.state.SetKey(key)
	h.log.Info("获取到密钥", "url", ex.URL, "key", key)
}

func (h *Handler) bodyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.bodyTimeoutMS <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(h.bodyTimeoutMS)*time.Millisecond)
}
