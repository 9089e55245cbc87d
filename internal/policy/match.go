package policy

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

type MatchKind int

const (
	MatchDefault MatchKind = iota
	MatchRule
	MatchExemption
)

func (k MatchKind) String() string {
	switch k {
	case MatchDefault:
		return "default"
	case MatchRule:
		return "rule"
	case MatchExemption:
		return "exemption"
	default:
		return fmt.Sprintf("match(%d)", int(k))
	}
}

// MatchedBy 记录决定上限的配置项；Pattern 仅在 MatchRule 时有值。
type MatchedBy struct {
	Kind    MatchKind
	Pattern string
}

// Label 用于输出：规则返回其模式，其余返回 kind 名称。
func (m MatchedBy) Label() string {
	if m.Kind == MatchRule {
		return m.Pattern
	}
	return m.Kind.String()
}

// Resolve 按 豁免 > 首条命中规则 > 默认值 的顺序确定上限，不会失败。
func Resolve(cfg Config, p string) (int, MatchedBy) {
	norm := NormalizePath(p)
	if limit, ok := cfg.exemptions[norm]; ok {
		return limit, MatchedBy{Kind: MatchExemption}
	}
	for _, r := range cfg.rules {
		// 模式已在 New 中校验过，这里的错误只可能是 ErrBadPattern
		if ok, err := doublestar.Match(r.Pattern, norm); err == nil && ok {
			return r.Limit, MatchedBy{Kind: MatchRule, Pattern: r.Pattern}
		}
	}
	return cfg.defaultLimit, MatchedBy{Kind: MatchDefault}
}
