package app

import (
	"log/slog"

	"fence/internal/policy"
)

type Options struct {
	Paths            []string
	CWD              string
	ConfigPath       string
	Jobs             int
	MaxFileSizeBytes int64
	FollowSymlinks   bool
	// Changed 只检查相对目标分支有改动的文件
	Changed      bool
	TargetBranch string
	Logger       *slog.Logger
}

// Result 是一次检查的完整结果；Problems 为输入类错误，不影响 Report。
type Result struct {
	Report       policy.Report
	Root         string
	ConfigSource string
	Problems     []Problem
	Canceled     bool
}

func (r Result) HasViolation() bool { return r.Report.Summary.Violations > 0 }

func (r Result) HasInputErr() bool { return len(r.Problems) > 0 }

type BaselineResult struct {
	Path string
	// Created 为 true 表示此前没有配置文件
	Created bool
	Added   int
	Updated int
	Total   int
	// Report 是用新配置复查的结果，违规数应为 0
	Report   policy.Report
	Problems []Problem
}

type ConfigErr struct{ Msg string }

func (e *ConfigErr) Error() string { return e.Msg }

type ArgErr struct{ Msg string }

func (e *ArgErr) Error() string { return e.Msg }
