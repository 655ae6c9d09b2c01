package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 项目统一的键值对日志接口
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
	With(kv ...any) Logger
}

// Options 日志初始化选项
type Options struct {
	Level   string
	Writers []string // console / file
	File    string
}

type zeroLogger struct {
	zl zerolog.Logger
}

// New 基于 zerolog 创建日志实例
func New(opts Options) Logger {
	var writers []io.Writer
	for _, w := range opts.Writers {
		switch strings.ToLower(w) {
		case "console":
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.DateTime,
				NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
			})
		case "file":
			path := opts.File
			if path == "" {
				path = filepath.Join("logs", "flowsniffer.log")
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   path,
				MaxSize:    20,
				MaxBackups: 5,
				MaxAge:     14,
				Compress:   true,
			})
		}
	}
	if len(writers) == 0 {
		return NewNop()
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return &zeroLogger{zl: zl}
}

// NewNop 返回丢弃所有输出的日志实例
func NewNop() Logger {
	return &zeroLogger{zl: zerolog.Nop()}
}

// NewWriter 输出到指定 writer，测试中使用
func NewWriter(w io.Writer, level string) Logger {
	lv, err := zerolog.ParseLevel(level)
	if err != nil {
		lv = zerolog.DebugLevel
	}
	return &zeroLogger{zl: zerolog.New(w).Level(lv)}
}

func (l *zeroLogger) Debug(msg string, kv ...any) { l.zl.Debug().Fields(kv).Msg(msg) }

func (l *zeroLogger) Info(msg string, kv ...any) { l.zl.Info().Fields(kv).Msg(msg) }

func (l *zeroLogger) Warn(msg string, kv ...any) { l.zl.Warn().Fields(kv).Msg(msg) }

func (l *zeroLogger) Error(msg string, kv ...any) { l.zl.Error().Fields(kv).Msg(msg) }

func (l *zeroLogger) Err(err error, msg string, kv ...any) {
	l.zl.Error().Err(err).Fields(kv).Msg(msg)
}

func (l *zeroLogger) With(kv ...any) Logger {
	return &zeroLogger{zl: l.zl.With().Fields(kv).Logger()}
}
