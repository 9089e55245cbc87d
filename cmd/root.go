package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"fence/internal/app"
	"fence/internal/config"
	"fence/internal/logging"
	"fence/internal/output"
)

type commonFlags struct {
	Config         string
	Format         string
	Jobs           int
	FollowSymlinks bool
	MaxFileSize    string
	Quiet          bool
	Silent         bool
	Verbose        bool
	ShowVersion    bool
}

type checkFlags struct {
	Changed      bool
	All          bool
	TargetBranch string
}

type initFlags struct {
	Baseline bool
	Force    bool
}

func Execute() int {
	args := normalizeArgs(os.Args[1:])
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := NewRootCmd(os.Stdout, os.Stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	var ee *ExitError
	if !errors.As(err, &ee) {
		// RunE 只返回 ExitError，其余都是 cobra 的参数解析错误
		ee = &ExitError{Code: ExitArg, Kind: "unknown_command", Msg: err.Error()}
	}
	if ee.Msg != "" && !hasFlag(args, "--silent") {
		writeCLIError(os.Stdout, os.Stderr, detectFormatFromArgs(args), ee)
	}
	return ee.Code
}

func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &commonFlags{}
	cf := &checkFlags{}
	root := &cobra.Command{
		Use:           "fence [paths...]",
		Short:         "检查源文件行数是否超过配置的上限",
		Long:          rootLongHelp(),
		Example:       rootExampleHelp(),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.ShowVersion {
				printVersion(stdout)
				return nil
			}
			return runCheck(cmd.Context(), stdout, stderr, flags, cf, args)
		},
	}
	root.CompletionOptions.HiddenDefaultCmd = true
	bindCommon(root, flags)
	bindCheck(root, cf)

	checkCmd := &cobra.Command{
		Use:           "check [paths...]",
		Short:         "检查文件行数（默认命令）",
		Long:          checkLongHelp(),
		Example:       checkExampleHelp(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), stdout, stderr, flags, cf, args)
		},
	}
	bindCheck(checkCmd, cf)
	root.AddCommand(checkCmd)

	inf := &initFlags{}
	initCmd := &cobra.Command{
		Use:           "init [paths...]",
		Short:         "生成配置文件；--baseline 为现有超限文件写入豁免",
		Long:          initLongHelp(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.Context(), stdout, stderr, flags, inf, args)
		},
	}
	initCmd.Flags().BoolVar(&inf.Baseline, "baseline", false, "扫描当前超限文件，把它们的行数写入 [exemptions]")
	initCmd.Flags().BoolVar(&inf.Force, "force", false, "覆盖已存在的配置文件")
	root.AddCommand(initCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(stdout)
		},
	}
	root.AddCommand(versionCmd)
	return root
}

func bindCommon(cmd *cobra.Command, flags *commonFlags) {
	cmd.PersistentFlags().StringVar(&flags.Config, "config", "", "配置文件路径（默认向上查找 .fence.toml / .fence.yaml）")
	cmd.PersistentFlags().StringVar(&flags.Format, "format", output.FormatText, "输出格式：text/json/ndjson")
	cmd.PersistentFlags().IntVar(&flags.Jobs, "jobs", app.DefaultJobs(), "并发任务数（默认 min(8, CPU核数)）")
	cmd.PersistentFlags().BoolVar(&flags.FollowSymlinks, "follow-symlinks", false, "是否跟随软链接")
	cmd.PersistentFlags().StringVar(&flags.MaxFileSize, "max-file-size", "10MB", "单文件最大处理大小，超出则跳过（如 10MB）")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "只输出违规")
	cmd.PersistentFlags().BoolVar(&flags.Silent, "silent", false, "不输出任何内容，只看退出码")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "输出调试日志与跳过的文件")
	cmd.Flags().BoolVarP(&flags.ShowVersion, "version", "V", false, "显示版本信息")
}

func bindCheck(cmd *cobra.Command, cf *checkFlags) {
	cmd.Flags().BoolVar(&cf.Changed, "changed", false, "只检查相对目标分支有改动的文件（git）")
	cmd.Flags().StringVar(&cf.TargetBranch, "target-branch", "", "--changed 的比较分支（默认读取 CI 变量或 origin/HEAD）")
	cmd.Flags().BoolVar(&cf.All, "all", false, "输出全量结果（包含合规文件）")
}

func newLogger(stderr io.Writer, flags *commonFlags) *slog.Logger {
	if flags.Silent {
		return logging.Discard()
	}
	return logging.New(stderr, logging.LevelFromFlags(flags.Verbose, flags.Quiet, flags.Silent))
}

func buildOptions(stderr io.Writer, flags *commonFlags, args []string) (app.Options, error) {
	if err := output.ValidateFormat(flags.Format); err != nil {
		return app.Options{}, &ExitError{Code: ExitArg, Kind: "invalid_output_format", Msg: err.Error()}
	}
	maxBytes, err := config.ParseSizeToBytes(flags.MaxFileSize)
	if err != nil {
		return app.Options{}, &ExitError{Code: ExitArg, Kind: "invalid_max_file_size", Msg: "--max-file-size 参数无效：" + flags.MaxFileSize}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return app.Options{}, &ExitError{Code: ExitInternal, Kind: "cwd_failed", Msg: "读取当前目录失败"}
	}
	if len(args) == 0 {
		args = []string{"."}
	}
	paths := app.NormalizePaths(args, cwd)
	if len(paths) == 0 {
		return app.Options{}, &ExitError{Code: ExitArg, Kind: "invalid_input_paths", Msg: "输入路径为空或无效"}
	}
	return app.Options{
		Paths:            paths,
		CWD:              cwd,
		ConfigPath:       flags.Config,
		Jobs:             flags.Jobs,
		MaxFileSizeBytes: maxBytes,
		FollowSymlinks:   flags.FollowSymlinks,
		Logger:           newLogger(stderr, flags),
	}, nil
}

func runCheck(ctx context.Context, stdout, stderr io.Writer, flags *commonFlags, cf *checkFlags, args []string) error {
	opts, err := buildOptions(stderr, flags, args)
	if err != nil {
		return err
	}
	opts.Changed = cf.Changed
	opts.TargetBranch = cf.TargetBranch

	res, err := app.Check(ctx, opts)
	code := app.ExitCode(res, err)
	if err != nil && !res.Canceled {
		return exitErrorFor(err, code)
	}
	if !flags.Silent {
		werr := output.WriteCheck(stdout, flags.Format, res, output.Options{
			Version:  Version,
			ShowPass: cf.All,
			Verbose:  flags.Verbose,
			Quiet:    flags.Quiet,
			ExitCode: code,
		})
		if werr != nil {
			return &ExitError{Code: ExitInternal, Kind: "output_write_failed", Msg: fmt.Sprintf("输出结果失败：%v", werr)}
		}
	}
	if res.Canceled {
		return &ExitError{Code: code, Kind: "canceled", Msg: "检查被中断"}
	}
	if code != ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}

func runInit(ctx context.Context, stdout, stderr io.Writer, flags *commonFlags, inf *initFlags, args []string) error {
	opts, err := buildOptions(stderr, flags, args)
	if err != nil {
		return err
	}
	oopts := output.Options{Version: Version, Quiet: flags.Quiet}
	if !inf.Baseline {
		p, err := app.Init(opts.CWD, inf.Force)
		var ae *app.ArgErr
		if errors.As(err, &ae) {
			return &ExitError{Code: ExitArg, Kind: "config_exists", Msg: ae.Msg}
		}
		if err != nil {
			return exitErrorFor(err, app.ExitCode(app.Result{}, err))
		}
		if flags.Silent {
			return nil
		}
		if err := output.WriteInit(stdout, flags.Format, p, oopts); err != nil {
			return &ExitError{Code: ExitInternal, Kind: "output_write_failed", Msg: fmt.Sprintf("输出结果失败：%v", err)}
		}
		return nil
	}

	res, err := app.Baseline(ctx, opts)
	if err != nil {
		return exitErrorFor(err, app.ExitCode(app.Result{}, err))
	}
	if !flags.Silent {
		if err := output.WriteBaseline(stdout, flags.Format, res, oopts); err != nil {
			return &ExitError{Code: ExitInternal, Kind: "output_write_failed", Msg: fmt.Sprintf("输出结果失败：%v", err)}
		}
	}
	if len(res.Problems) > 0 {
		return &ExitError{Code: ExitInput}
	}
	return nil
}

func exitErrorFor(err error, code int) error {
	kind := "internal_error"
	switch {
	case code == ExitArg:
		kind = "invalid_args"
	case code == ExitConfig:
		kind = "config_invalid"
	}
	return &ExitError{Code: code, Kind: kind, Msg: err.Error()}
}

// 这些值参数后面跟着的 token 不是子命令
var valueFlags = map[string]bool{
	"--config":        true,
	"--format":        true,
	"--jobs":          true,
	"--max-file-size": true,
	"--target-branch": true,
}

// normalizeArgs 把 `fence src/` 改写成 `fence check src/`。
func normalizeArgs(args []string) []string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		if strings.HasPrefix(a, "-") {
			if valueFlags[a] {
				i++
			}
			continue
		}
		switch a {
		case "check", "init", "version", "help", "completion":
			return args
		}
		return append([]string{"check"}, args...)
	}
	return args
}
