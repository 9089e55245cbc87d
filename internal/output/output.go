package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"fence/internal/app"
	"fence/internal/policy"
	"fence/internal/textutil"
)

const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
)

func ValidateFormat(format string) error {
	switch format {
	case FormatText, FormatJSON, FormatNDJSON:
		return nil
	default:
		return fmt.Errorf("--format 只支持 text、json 或 ndjson，收到：%s", format)
	}
}

// Options 只影响展示，不改变结果本身。
type Options struct {
	Version string
	// ShowPass 在 ndjson 中输出 pass 事件，在 text 中列出合规文件
	ShowPass bool
	Verbose  bool
	// Quiet 时 text 只输出违规行
	Quiet    bool
	ExitCode int
}

var printer = message.NewPrinter(language.English)

func WriteCheck(w io.Writer, format string, res app.Result, opts Options) error {
	switch format {
	case FormatText:
		return writeCheckText(w, res, opts)
	case FormatJSON:
		return writeJSON(w, checkDocument(res, opts))
	case FormatNDJSON:
		return WriteEvents(w, checkEvents(res, opts))
	default:
		return ValidateFormat(format)
	}
}

func WriteBaseline(w io.Writer, format string, res app.BaselineResult, opts Options) error {
	switch format {
	case FormatText:
		if opts.Quiet {
			return nil
		}
		verb := "已更新"
		if res.Created {
			verb = "已创建"
		}
		_, err := printer.Fprintf(w, "%s %s：新增 %d 条豁免，更新 %d 条，共 %d 条\n", verb, res.Path, res.Added, res.Updated, res.Total)
		return err
	case FormatJSON:
		return writeJSON(w, baselineDocument(res, opts))
	case FormatNDJSON:
		ev := baselineDocument(res, opts)
		ev["type"] = "baseline"
		return WriteEvents(w, []map[string]any{ev})
	default:
		return ValidateFormat(format)
	}
}

func WriteInit(w io.Writer, format string, path string, opts Options) error {
	switch format {
	case FormatText:
		if opts.Quiet {
			return nil
		}
		_, err := fmt.Fprintf(w, "已创建 %s\n", path)
		return err
	case FormatJSON:
		return writeJSON(w, map[string]any{"version": opts.Version, "path": path, "created": true})
	case FormatNDJSON:
		return WriteEvents(w, []map[string]any{{"type": "init", "path": path, "created": true}})
	default:
		return ValidateFormat(format)
	}
}

func writeCheckText(w io.Writer, res app.Result, opts Options) error {
	var b strings.Builder
	violations := res.Report.Violations()
	width := 0
	for _, f := range violations {
		if n := textutil.DisplayWidth(f.Path); n > width {
			width = n
		}
	}
	for _, f := range violations {
		printer.Fprintf(&b, "%s  %d > %d  (%s)\n", textutil.PadRight(f.Path, width), f.Lines, f.Limit, f.MatchedBy.Label())
	}
	if opts.Quiet {
		_, err := io.WriteString(w, b.String())
		return err
	}
	if opts.ShowPass {
		for _, f := range res.Report.Findings {
			if f.Kind == policy.FindingOK {
				printer.Fprintf(&b, "ok  %s  %d/%d\n", f.Path, f.Lines, f.Limit)
			}
		}
	}
	if opts.Verbose {
		for _, f := range res.Report.Findings {
			if f.Kind == policy.FindingSkipped {
				fmt.Fprintf(&b, "跳过  %s  (%s)\n", f.Path, f.SkipReason)
			}
		}
	}
	for _, p := range res.Problems {
		fmt.Fprintf(&b, "错误  %s  %s：%s\n", p.Path, p.Code, p.Detail)
	}
	s := res.Report.Summary
	mark := "✔"
	if s.Violations > 0 {
		mark = "✖"
	}
	printer.Fprintf(&b, "%s 检查 %d 个文件：%d 个超限，%d 个跳过\n", mark, s.Total-s.Skipped, s.Violations, s.Skipped)
	if res.Canceled {
		b.WriteString("（检查被中断，结果不完整）\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type violationDoc struct {
	Path     string `json:"path"`
	Lines    int    `json:"lines"`
	MaxLines int    `json:"max_lines"`
	Rule     string `json:"rule"`
}

type skippedDoc struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type summaryDoc struct {
	FilesChecked int `json:"files_checked"`
	Violations   int `json:"violations"`
	Skipped      int `json:"skipped"`
}

type checkDoc struct {
	Version    string         `json:"version"`
	Violations []violationDoc `json:"violations"`
	Skipped    []skippedDoc   `json:"skipped"`
	Errors     []app.Problem  `json:"errors,omitempty"`
	Summary    summaryDoc     `json:"summary"`
}

func checkDocument(res app.Result, opts Options) checkDoc {
	doc := checkDoc{
		Version:    opts.Version,
		Violations: []violationDoc{},
		Skipped:    []skippedDoc{},
		Errors:     res.Problems,
		Summary:    summaryOf(res.Report.Summary),
	}
	for _, f := range res.Report.Findings {
		switch f.Kind {
		case policy.FindingViolation:
			doc.Violations = append(doc.Violations, violationDoc{Path: f.Path, Lines: f.Lines, MaxLines: f.Limit, Rule: f.MatchedBy.Label()})
		case policy.FindingSkipped:
			doc.Skipped = append(doc.Skipped, skippedDoc{Path: f.Path, Reason: f.SkipReason})
		}
	}
	return doc
}

func summaryOf(s policy.Summary) summaryDoc {
	return summaryDoc{FilesChecked: s.Total - s.Skipped, Violations: s.Violations, Skipped: s.Skipped}
}

func checkEvents(res app.Result, opts Options) []map[string]any {
	events := make([]map[string]any, 0, len(res.Report.Findings)+len(res.Problems)+2)
	events = append(events, map[string]any{
		"type":             "meta",
		"tool":             "fence",
		"version":          opts.Version,
		"root":             res.Root,
		"config_source":    res.ConfigSource,
		"exit_code_policy": map[string]int{"ok": 0, "violation": 1, "arg_error": 2, "input_error": 3, "config_error": 4, "internal_error": 5},
	})
	for _, p := range res.Problems {
		events = append(events, map[string]any{
			"type":        "error",
			"code":        p.Code,
			"category":    p.Category,
			"path":        p.Path,
			"detail":      p.Detail,
			"next_action": p.NextAction,
			"fix_example": p.FixExample,
			"doc_key":     p.DocKey,
			"recoverable": p.Recoverable,
		})
	}
	for _, f := range res.Report.Findings {
		switch f.Kind {
		case policy.FindingViolation:
			events = append(events, map[string]any{
				"type":      "violation",
				"path":      f.Path,
				"lines":     f.Lines,
				"max_lines": f.Limit,
				"rule":      f.MatchedBy.Label(),
			})
		case policy.FindingSkipped:
			events = append(events, map[string]any{
				"type":   "skipped",
				"path":   f.Path,
				"reason": f.SkipReason,
			})
		default:
			if opts.ShowPass {
				events = append(events, map[string]any{
					"type":      "pass",
					"path":      f.Path,
					"lines":     f.Lines,
					"max_lines": f.Limit,
					"rule":      f.MatchedBy.Label(),
				})
			}
		}
	}
	s := res.Report.Summary
	events = append(events, map[string]any{
		"type":          "summary",
		"files_checked": s.Total - s.Skipped,
		"ok":            s.OK,
		"violations":    s.Violations,
		"skipped":       s.Skipped,
		"errors":        len(res.Problems),
		"canceled":      res.Canceled,
		"exit_code":     opts.ExitCode,
	})
	return events
}

func baselineDocument(res app.BaselineResult, opts Options) map[string]any {
	return map[string]any{
		"version": opts.Version,
		"path":    res.Path,
		"created": res.Created,
		"added":   res.Added,
		"updated": res.Updated,
		"total":   res.Total,
		"summary": summaryOf(res.Report.Summary),
	}
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// WriteEvents 每个事件一行 JSON。
func WriteEvents(w io.Writer, events []map[string]any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
