package policy

type Summary struct {
	Total      int `json:"total"`
	OK         int `json:"ok"`
	Violations int `json:"violations"`
	Skipped    int `json:"skipped"`
}

type Report struct {
	Findings []Finding
	Summary  Summary
}

// Aggregate 保持输入顺序，不排序也不过滤。
func Aggregate(findings []Finding) Report {
	r := Report{Findings: make([]Finding, len(findings))}
	copy(r.Findings, findings)
	for _, f := range findings {
		r.Summary.Total++
		switch f.Kind {
		case FindingViolation:
			r.Summary.Violations++
		case FindingSkipped:
			r.Summary.Skipped++
		default:
			r.Summary.OK++
		}
	}
	return r
}

func (r Report) Violations() []Finding {
	out := make([]Finding, 0, r.Summary.Violations)
	for _, f := range r.Findings {
		if f.Kind == FindingViolation {
			out = append(out, f)
		}
	}
	return out
}

func RunCheck(cfg Config, entries []Entry) Report {
	findings := make([]Finding, 0, len(entries))
	for _, e := range entries {
		findings = append(findings, Evaluate(cfg, e))
	}
	return Aggregate(findings)
}
