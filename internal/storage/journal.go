package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"flowsniffer/internal/logger"
	"flowsniffer/pkg/model"
)

// Capture 一条变更记录，只追加，不回读到会话状态
type Capture struct {
	ID           uint   `gorm:"primaryKey"`
	SessionID    string `gorm:"index;size:64"`
	TargetID     string `gorm:"size:64"`
	Field        string `gorm:"size:32"`
	PrimaryURL   string
	SecondaryURL string
	Key          string
	IV           string
	Referer      string
	Command      string
	CreatedAt    time.Time `gorm:"index"`
}

// Journal 基于 SQLite 的捕获日志
type Journal struct {
	db  *gorm.DB
	log logger.Logger
}

// Open 打开（必要时创建）捕获日志库
func Open(dsn, prefix string, l logger.Logger) (*Journal, error) {
	if l == nil {
		l = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(l).LogMode(gormlogger.Warn),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", dsn, err)
	}
	if err := db.AutoMigrate(&Capture{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db, log: l}, nil
}

// Record 追加一条更新
func (j *Journal) Record(ctx context.Context, u model.Update) error {
	c := Capture{
		SessionID:    string(u.Session),
		TargetID:     string(u.Target),
		Field:        u.Field,
		PrimaryURL:   u.PrimaryURL,
		SecondaryURL: u.SecondaryURL,
		Key:          u.Key,
		IV:           u.IV,
		Referer:      u.Referer,
		Command:      u.Command,
		CreatedAt:    time.UnixMilli(u.Timestamp),
	}
	if u.Timestamp == 0 {
		c.CreatedAt = time.Now()
	}
	ctx = WithSession(ctx, string(u.Session))
	if err := j.db.WithContext(ctx).Create(&c).Error; err != nil {
		return fmt.Errorf("record capture: %w", err)
	}
	return nil
}

// Publish 实现展示端接口，写入失败只记录日志
func (j *Journal) Publish(u model.Update) {
	if err := j.Record(context.Background(), u); err != nil {
		j.log.Err(err, "写入捕获日志失败", "session", string(u.Session))
	}
}

// Latest 最近的记录，新的在前；sessionID 为空时不过滤
func (j *Journal) Latest(ctx context.Context, sessionID string, limit int) ([]Capture, error) {
	if limit <= 0 {
		limit = 20
	}
	q := j.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	var out []Capture
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query captures: %w", err)
	}
	return out, nil
}

// Close 关闭数据库连接
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
