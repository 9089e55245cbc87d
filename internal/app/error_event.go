package app

// Problem 是面向用户的输入错误，附带下一步操作提示。
type Problem struct {
	Code        string `json:"code"`
	Category    string `json:"category"`
	Path        string `json:"path"`
	Detail      string `json:"detail"`
	NextAction  string `json:"next_action"`
	FixExample  string `json:"fix_example"`
	DocKey      string `json:"doc_key"`
	Recoverable bool   `json:"recoverable"`
}

type errorHint struct {
	NextAction  string
	FixExample  string
	DocKey      string
	Recoverable bool
}

func newProblem(category, code, path, detail string) Problem {
	h := hintByCode(code)
	return Problem{
		Code:        code,
		Category:    category,
		Path:        path,
		Detail:      detail,
		NextAction:  h.NextAction,
		FixExample:  h.FixExample,
		DocKey:      h.DocKey,
		Recoverable: h.Recoverable,
	}
}

func hintByCode(code string) errorHint {
	switch code {
	case "input_path_not_found":
		return errorHint{
			NextAction:  "确认路径存在且拼写正确，再重试",
			FixExample:  "fence check src/",
			DocKey:      "input.path_not_found",
			Recoverable: true,
		}
	case "input_abs_failed", "input_stat_failed", "walk_error":
		return errorHint{
			NextAction:  "检查路径权限和可读性，必要时更换输入目录",
			FixExample:  "chmod -R +r src/ && fence check src/",
			DocKey:      "input.path_access",
			Recoverable: true,
		}
	case "symlink_skipped":
		return errorHint{
			NextAction:  "默认不跟随软链接，传真实路径或加 --follow-symlinks",
			FixExample:  "fence check --follow-symlinks link/",
			DocKey:      "input.symlink_skipped",
			Recoverable: true,
		}
	default:
		return errorHint{
			NextAction:  "根据 detail 修正输入或配置后重试",
			FixExample:  "fence --help",
			DocKey:      "general.error",
			Recoverable: true,
		}
	}
}
