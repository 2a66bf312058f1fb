package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// fanout 将同一条日志同时写入文件与控制台，单个目标失败不影响其余目标。
type fanout []slog.Handler

func newMultiHandler(handlers ...slog.Handler) slog.Handler {
	return fanout(handlers)
}

func (f fanout) Enabled(ctx context.Context, lvl slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool { return h.Enabled(ctx, lvl) })
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		errs = errors.Join(errs, h.Handle(ctx, r.Clone()))
	}
	return errs
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}
