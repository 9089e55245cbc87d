package cmd

import (
	"fmt"
	"io"
	"strings"

	"fence/internal/output"
)

type cliErrorHint struct {
	NextAction  string
	FixExample  string
	DocKey      string
	Recoverable bool
}

// writeCLIError 在命令执行前就失败时输出错误：text 写到 stderr，json/ndjson 写结构化事件到 stdout。
func writeCLIError(stdout, stderr io.Writer, format string, ee *ExitError) {
	if format == output.FormatText {
		fmt.Fprintln(stderr, "错误："+ee.Msg)
		if h := cliHintByCode(ee.Kind); h.NextAction != "" {
			fmt.Fprintf(stderr, "  下一步：%s\n  示例：%s\n", h.NextAction, h.FixExample)
		}
		return
	}
	h := cliHintByCode(ee.Kind)
	ev := map[string]any{
		"type":        "error",
		"code":        ee.Kind,
		"category":    categoryOf(ee.Code),
		"detail":      ee.Msg,
		"next_action": h.NextAction,
		"fix_example": h.FixExample,
		"doc_key":     h.DocKey,
		"recoverable": h.Recoverable,
		"exit_code":   ee.Code,
	}
	_ = output.WriteEvents(stdout, []map[string]any{ev})
}

func categoryOf(code int) string {
	switch code {
	case ExitArg:
		return "arg"
	case ExitInput:
		return "input"
	case ExitConfig:
		return "config"
	default:
		return "internal"
	}
}

func normalizeFormat(format string) string {
	switch format {
	case output.FormatJSON, output.FormatNDJSON:
		return format
	default:
		return output.FormatText
	}
}

func detectFormatFromArgs(args []string) string {
	for i := 0; i < len(args); i++ {
		a := strings.TrimSpace(args[i])
		if a == "--format" {
			if i+1 < len(args) {
				return normalizeFormat(args[i+1])
			}
			continue
		}
		if strings.HasPrefix(a, "--format=") {
			return normalizeFormat(strings.TrimPrefix(a, "--format="))
		}
	}
	return output.FormatText
}

func hasFlag(args []string, name string) bool {
	for _, a := range args {
		if a == name {
			return true
		}
	}
	return false
}

func cliHintByCode(code string) cliErrorHint {
	switch code {
	case "invalid_output_format":
		return cliErrorHint{
			NextAction:  "把 --format 改为 text、json 或 ndjson",
			FixExample:  "fence check --format json",
			DocKey:      "arg.invalid_output_format",
			Recoverable: true,
		}
	case "invalid_max_file_size":
		return cliErrorHint{
			NextAction:  "把 --max-file-size 改成合法大小（如 10MB）",
			FixExample:  "fence check --max-file-size 20MB",
			DocKey:      "arg.invalid_max_file_size",
			Recoverable: true,
		}
	case "invalid_input_paths":
		return cliErrorHint{
			NextAction:  "检查输入路径是否为空、是否可解析为绝对路径",
			FixExample:  "fence check src/ README.md",
			DocKey:      "arg.invalid_input_paths",
			Recoverable: true,
		}
	case "config_invalid":
		return cliErrorHint{
			NextAction:  "修正配置文件内容后重试",
			FixExample:  "fence check --config .fence.toml",
			DocKey:      "config.invalid",
			Recoverable: true,
		}
	case "config_exists":
		return cliErrorHint{
			NextAction:  "已有配置文件；要覆盖请加 --force，要写入豁免请用 --baseline",
			FixExample:  "fence init --force",
			DocKey:      "init.config_exists",
			Recoverable: true,
		}
	case "cwd_failed":
		return cliErrorHint{
			NextAction:  "确认当前工作目录可访问，或切换到可访问目录",
			FixExample:  "cd /path/to/repo && fence",
			DocKey:      "runtime.cwd_failed",
			Recoverable: true,
		}
	case "output_write_failed":
		return cliErrorHint{
			NextAction:  "检查输出管道或重定向目标是否可写",
			FixExample:  "fence --format json > report.json",
			DocKey:      "runtime.output_write_failed",
			Recoverable: true,
		}
	case "canceled":
		return cliErrorHint{
			NextAction:  "检查被中断，重新执行即可",
			FixExample:  "fence",
			DocKey:      "runtime.canceled",
			Recoverable: true,
		}
	case "unknown_command":
		return cliErrorHint{
			NextAction:  "确认命令或参数拼写，或查看帮助",
			FixExample:  "fence --help",
			DocKey:      "arg.unknown_command",
			Recoverable: true,
		}
	case "":
		return cliErrorHint{}
	default:
		return cliErrorHint{
			NextAction:  "根据 detail 修正参数或配置后重试",
			FixExample:  "fence --help",
			DocKey:      "general.error",
			Recoverable: true,
		}
	}
}
