package policy

type FindingKind string

const (
	FindingOK        FindingKind = "ok"
	FindingViolation FindingKind = "violation"
	FindingSkipped   FindingKind = "skipped"
)

type Finding struct {
	Path       string
	Lines      int
	Kind       FindingKind
	Limit      int
	MatchedBy  MatchedBy
	SkipReason string
}

// Entry 是采集端交给核心的一条输入；SkipReason 非空表示未能计数。
type Entry struct {
	Path       string
	Lines      int
	SkipReason string
}

func (e Entry) Skipped() bool { return e.SkipReason != "" }

// Classify 严格大于才算违规，等于上限视为合规。
func Classify(p string, lines, limit int, by MatchedBy) Finding {
	kind := FindingOK
	if lines > limit {
		kind = FindingViolation
	}
	return Finding{Path: p, Lines: lines, Kind: kind, Limit: limit, MatchedBy: by}
}

func Skip(p, reason string) Finding {
	return Finding{Path: p, Kind: FindingSkipped, SkipReason: reason}
}

// SkipInvalidPath 标记规范化后为空的路径，这类条目既不计数也不进入基线。
const SkipInvalidPath = "invalid_path"

func Evaluate(cfg Config, e Entry) Finding {
	p := NormalizePath(e.Path)
	if e.Skipped() {
		return Skip(p, e.SkipReason)
	}
	if p == "" {
		return Skip(p, SkipInvalidPath)
	}
	limit, by := Resolve(cfg, p)
	return Classify(p, e.Lines, limit, by)
}
