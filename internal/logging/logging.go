package logging

import (
	"context"
	"io"
	"log/slog"
)

// LevelSilent 高于所有标准级别，用于完全静默。
const LevelSilent = slog.Level(100)

func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// CLI 输出不需要时间戳
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// LevelFromFlags 把 CLI 开关映射为日志级别：
// silent 全部静默，quiet 只输出错误，默认输出警告，verbose 输出调试信息。
func LevelFromFlags(verbose, quiet, silent bool) slog.Level {
	switch {
	case silent:
		return LevelSilent
	case quiet:
		return slog.LevelError
	case verbose:
		return slog.LevelDebug
	default:
		return slog.LevelWarn
	}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
