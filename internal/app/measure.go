package app

import (
	"context"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"fence/internal/policy"
	"fence/internal/scan"
	"fence/internal/textutil"
)

const (
	SkipBinary     = "binary"
	SkipTooLarge   = "too_large"
	SkipUnreadable = "unreadable"
)

// measureFiles 并发计数，结果写回各自下标，顺序与 files 一致。
// ctx 取消时只返回已完成的条目，顺序仍保持不变。
func measureFiles(ctx context.Context, files []scan.File, jobs int, maxSize int64, log *slog.Logger) ([]policy.Entry, error) {
	entries := make([]policy.Entry, len(files))
	done := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries[i] = measureFile(f, maxSize, log)
			done[i] = true
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		return entries, nil
	}
	out := make([]policy.Entry, 0, len(files))
	for i, ok := range done {
		if ok {
			out = append(out, entries[i])
		}
	}
	return out, err
}

func measureFile(f scan.File, maxSize int64, log *slog.Logger) policy.Entry {
	e := policy.Entry{Path: f.Path}
	info, err := os.Stat(f.AbsPath)
	if err != nil {
		log.Warn("stat failed", "path", f.Path, "err", err)
		e.SkipReason = SkipUnreadable
		return e
	}
	if maxSize > 0 && info.Size() > maxSize {
		log.Debug("file too large, skipped", "path", f.Path, "size", info.Size(), "limit", maxSize)
		e.SkipReason = SkipTooLarge
		return e
	}
	data, err := os.ReadFile(f.AbsPath)
	if err != nil {
		log.Warn("read failed", "path", f.Path, "err", err)
		e.SkipReason = SkipUnreadable
		return e
	}
	if textutil.DetectBinary(data) {
		log.Debug("binary file, skipped", "path", f.Path)
		e.SkipReason = SkipBinary
		return e
	}
	e.Lines = textutil.CountLines(data)
	return e
}
