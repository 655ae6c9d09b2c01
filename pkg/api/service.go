package api

import (
	"context"

	"flowsniffer/internal/logger"
	"flowsniffer/internal/service"
	"flowsniffer/pkg/model"
)

// Publisher 更新接收端
type Publisher = service.Publisher

// Service 服务接口
type Service interface {
	// StartSession 启动会话
	StartSession(cfg model.SessionConfig) (model.SessionID, error)

	// StopSession 停止会话
	StopSession(id model.SessionID) error

	// ListTargets 列出目标
	ListTargets(ctx context.Context, id model.SessionID) ([]model.TargetInfo, error)

	// AttachTarget 附加目标并开始监听
	AttachTarget(id model.SessionID, target model.TargetID) error

	// ResetSession 清空会话状态
	ResetSession(id model.SessionID) error

	// Snapshot 当前描述符与下载命令
	Snapshot(id model.SessionID) (model.Update, error)

	// SetFilter 设置清单忽略条件
	SetFilter(id model.SessionID, ignore []model.IgnoreRule) error

	// SubscribeUpdates 订阅更新
	SubscribeUpdates(id model.SessionID) (<-chan model.Update, error)
}

// NewService 创建并返回服务接口实现
func NewService(l logger.Logger, pubs ...Publisher) Service {
	return service.New(service.Options{Logger: l, Publishers: pubs})
}
