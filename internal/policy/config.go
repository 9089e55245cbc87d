package policy

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule 是一条按 glob 匹配的行数上限，声明顺序即优先级。
type Rule struct {
	Pattern string
	Limit   int
}

// Config 在一次运行内只读；只能通过 New / Default 构造。
type Config struct {
	defaultLimit int
	rules        []Rule
	exemptions   map[string]int
}

type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + "：" + e.Msg
}

func Default(limit int) (Config, error) {
	return New(limit, nil, nil)
}

// New 校验并规范化配置，所有配置错误都在这里一次性暴露。
func New(defaultLimit int, rules []Rule, exemptions map[string]int) (Config, error) {
	if defaultLimit <= 0 {
		return Config{}, &ConfigError{Field: "default_max_lines", Msg: fmt.Sprintf("必须为正整数，当前为 %d", defaultLimit)}
	}
	cfg := Config{
		defaultLimit: defaultLimit,
		rules:        make([]Rule, 0, len(rules)),
		exemptions:   make(map[string]int, len(exemptions)),
	}
	for i, r := range rules {
		field := fmt.Sprintf("rules[%d]", i)
		if strings.TrimSpace(r.Pattern) == "" {
			return Config{}, &ConfigError{Field: field + ".path", Msg: "模式为空"}
		}
		if !doublestar.ValidatePattern(r.Pattern) {
			return Config{}, &ConfigError{Field: field + ".path", Msg: fmt.Sprintf("无效的 glob 模式：%s", r.Pattern)}
		}
		if r.Limit <= 0 {
			return Config{}, &ConfigError{Field: field + ".max_lines", Msg: fmt.Sprintf("必须为正整数，当前为 %d", r.Limit)}
		}
		cfg.rules = append(cfg.rules, r)
	}

	// 原始键排序后再规范化，保证冲突报错信息稳定
	keys := make([]string, 0, len(exemptions))
	for k := range exemptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	origin := make(map[string]string, len(keys))
	for _, k := range keys {
		v := exemptions[k]
		norm := NormalizePath(k)
		field := fmt.Sprintf("exemptions[%q]", k)
		if norm == "" {
			return Config{}, &ConfigError{Field: field, Msg: "路径为空"}
		}
		if v <= 0 {
			return Config{}, &ConfigError{Field: field, Msg: fmt.Sprintf("必须为正整数，当前为 %d", v)}
		}
		if prev, ok := cfg.exemptions[norm]; ok && prev != v {
			return Config{}, &ConfigError{Field: field, Msg: fmt.Sprintf("与 %q 指向同一文件但上限不同（%d / %d）", origin[norm], prev, v)}
		}
		cfg.exemptions[norm] = v
		origin[norm] = k
	}
	return cfg, nil
}

func (c Config) DefaultLimit() int { return c.defaultLimit }

func (c Config) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

func (c Config) Exemptions() map[string]int {
	out := make(map[string]int, len(c.exemptions))
	for k, v := range c.exemptions {
		out[k] = v
	}
	return out
}

// Equal 比较默认值、规则顺序与豁免集合。
func (c Config) Equal(o Config) bool {
	if c.defaultLimit != o.defaultLimit || len(c.rules) != len(o.rules) || len(c.exemptions) != len(o.exemptions) {
		return false
	}
	for i := range c.rules {
		if c.rules[i] != o.rules[i] {
			return false
		}
	}
	for k, v := range c.exemptions {
		if ov, ok := o.exemptions[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func (c Config) withExemptions(ex map[string]int) Config {
	return Config{defaultLimit: c.defaultLimit, rules: c.rules, exemptions: ex}
}

// NormalizePath 统一为正斜杠、去掉前导 ./ 的相对路径。
func NormalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	if p == "." {
		return ""
	}
	return p
}
