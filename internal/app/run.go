package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"fence/internal/config"
	"fence/internal/logging"
	"fence/internal/policy"
	"fence/internal/scan"
)

const DefaultMaxFileSize = 10 * 1024 * 1024

func DefaultJobs() int {
	n := runtime.NumCPU()
	if n > 8 {
		return 8
	}
	if n < 1 {
		return 1
	}
	return n
}

func withDefaults(opts Options) Options {
	if opts.Jobs <= 0 {
		opts.Jobs = DefaultJobs()
	}
	if opts.MaxFileSizeBytes <= 0 {
		opts.MaxFileSizeBytes = DefaultMaxFileSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if len(opts.Paths) == 0 {
		opts.Paths = []string{opts.CWD}
	}
	opts.Paths = NormalizePaths(opts.Paths, opts.CWD)
	return opts
}

// Check 加载配置、采集并计数文件，然后按策略分类。
func Check(ctx context.Context, opts Options) (Result, error) {
	opts = withDefaults(opts)
	loaded, err := config.LoadForRun(opts.ConfigPath, opts.CWD)
	if err != nil {
		return Result{}, &ConfigErr{Msg: err.Error()}
	}
	return check(ctx, opts, loaded)
}

func check(ctx context.Context, opts Options, loaded config.Loaded) (Result, error) {
	res := Result{Root: loaded.Root, ConfigSource: loaded.Source}
	cfg, err := policyOf(loaded)
	if err != nil {
		return res, err
	}
	entries, problems, err := gather(ctx, opts, loaded)
	res.Problems = problems
	if err != nil && !isCanceled(err) {
		return res, err
	}
	res.Canceled = err != nil
	res.Report = policy.RunCheck(cfg, entries)
	opts.Logger.Debug("check finished",
		"root", loaded.Root,
		"config", loaded.Source,
		"files", res.Report.Summary.Total,
		"violations", res.Report.Summary.Violations,
		"skipped", res.Report.Summary.Skipped,
	)
	if res.Canceled {
		return res, ctx.Err()
	}
	return res, nil
}

// Baseline 为当前所有超限文件写入恰好等于其行数的豁免。
// 没有配置文件时，在 CWD 生成带豁免的初始配置。
func Baseline(ctx context.Context, opts Options) (BaselineResult, error) {
	opts = withDefaults(opts)
	loaded, err := config.LoadForRun(opts.ConfigPath, opts.CWD)
	if err != nil {
		return BaselineResult{}, &ConfigErr{Msg: err.Error()}
	}
	out := BaselineResult{Path: loaded.Path}
	if loaded.Path == "" {
		// 环境变量只影响本次计算，不写入新文件
		f := config.Starter()
		if _, err := config.ApplyEnv(config.EnvPrefix, &f); err != nil {
			return out, &ConfigErr{Msg: err.Error()}
		}
		loaded.File = f
		loaded.Path = filepath.Join(opts.CWD, config.FileNames[0])
		out.Path = loaded.Path
		out.Created = true
	}

	cfg, err := policyOf(loaded)
	if err != nil {
		return out, err
	}
	entries, problems, err := gather(ctx, opts, loaded)
	out.Problems = problems
	if err != nil {
		// 半途取消时不写入，避免生成不完整的基线
		return out, err
	}

	updated := policy.RunBaseline(cfg, entries)
	before := cfg.Exemptions()
	for p, n := range updated.Exemptions() {
		old, ok := before[p]
		switch {
		case !ok:
			out.Added++
		case old != n:
			out.Updated++
		}
	}
	out.Total = len(updated.Exemptions())

	if err := saveBaseline(out, updated.Exemptions()); err != nil {
		return out, fmt.Errorf("保存基线失败：%w", err)
	}
	out.Report = policy.RunCheck(updated, entries)
	opts.Logger.Debug("baseline written", "path", out.Path, "added", out.Added, "updated", out.Updated)
	return out, nil
}

// saveBaseline 对已有文件只改写豁免部分，其余内容保持原文。
func saveBaseline(out BaselineResult, ex map[string]int) error {
	if !out.Created {
		return config.SaveExemptions(out.Path, ex)
	}
	f := config.Starter()
	f.Exemptions = ex
	return config.Save(out.Path, f, true)
}

// Init 在 cwd 写入初始配置；已存在任一配置文件时需要 force。
func Init(cwd string, force bool) (string, error) {
	if !force {
		for _, name := range config.FileNames {
			p := filepath.Join(cwd, name)
			if _, err := os.Stat(p); err == nil {
				return "", &ArgErr{Msg: fmt.Sprintf("配置文件已存在：%s（使用 --force 覆盖）", p)}
			}
		}
	}
	p := filepath.Join(cwd, config.FileNames[0])
	if err := config.Save(p, config.Starter(), true); err != nil {
		return "", err
	}
	return p, nil
}

func policyOf(loaded config.Loaded) (policy.Config, error) {
	cfg, err := loaded.File.Policy()
	if err != nil {
		return policy.Config{}, &ConfigErr{Msg: fmt.Sprintf("%s：%v", sourceName(loaded), err)}
	}
	if err := scan.ValidateExclude(loaded.File.Exclude); err != nil {
		return policy.Config{}, &ConfigErr{Msg: err.Error()}
	}
	return cfg, nil
}

func sourceName(loaded config.Loaded) string {
	if loaded.Path != "" {
		return loaded.Path
	}
	return loaded.Source
}

func gather(ctx context.Context, opts Options, loaded config.Loaded) ([]policy.Entry, []Problem, error) {
	scanRes := scan.Collect(scan.Options{
		Paths:            opts.Paths,
		Root:             loaded.Root,
		FollowSymlinks:   opts.FollowSymlinks,
		Exclude:          loaded.File.Exclude,
		RespectGitignore: loaded.File.GitignoreEnabled(),
	})
	problems := make([]Problem, 0, len(scanRes.Errors))
	for _, se := range scanRes.Errors {
		problems = append(problems, newProblem("input", se.Code, se.Path, se.Detail))
	}

	files := withoutConfigFile(scanRes.Files, loaded.Path)
	if opts.Changed {
		d := &scan.Delta{Dir: opts.CWD, TargetBranch: opts.TargetBranch, Logger: opts.Logger}
		changed, err := d.ChangedFiles(ctx)
		if err != nil {
			opts.Logger.Warn("changed-file detection failed, checking all files", "err", err)
		} else {
			files = scan.FilterChanged(files, changed)
		}
	}
	opts.Logger.Debug("files collected", "count", len(files), "problems", len(problems))

	entries, err := measureFiles(ctx, files, opts.Jobs, opts.MaxFileSizeBytes, opts.Logger)
	return entries, problems, err
}

// 配置文件本身不参与计数，否则写入基线会改变它自己的行数
func withoutConfigFile(files []scan.File, cfgPath string) []scan.File {
	if cfgPath == "" {
		return files
	}
	cfgPath = filepath.Clean(cfgPath)
	out := files[:0:0]
	for _, f := range files {
		if filepath.Clean(f.AbsPath) != cfgPath {
			out = append(out, f)
		}
	}
	return out
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ExitCode 按 内部 > 配置 > 输入 > 违规 的优先级决定退出码。
func ExitCode(res Result, err error) int {
	var ce *ConfigErr
	var ae *ArgErr
	switch {
	case err == nil:
	case errors.As(err, &ae):
		return 2
	case errors.As(err, &ce):
		return 4
	default:
		return 5
	}
	if res.HasInputErr() {
		return 3
	}
	if res.HasViolation() {
		return 1
	}
	return 0
}

func NormalizePaths(paths []string, cwd string) []string {
	out := make([]string, 0, len(paths))
	seen := map[string]struct{}{}
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(cwd, p)
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	sort.Strings(out)
	return out
}
