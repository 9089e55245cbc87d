package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"fence/internal/policy"
)

const DefaultMaxLines = 500

// 按顺序查找，先命中者生效
var FileNames = []string{".fence.toml", ".fence.yaml", ".fence.yml"}

type RuleEntry struct {
	Path     string `yaml:"path" toml:"path"`
	MaxLines int    `yaml:"max_lines" toml:"max_lines"`
}

type File struct {
	DefaultMaxLines  *int           `yaml:"default_max_lines,omitempty" toml:"default_max_lines,omitempty"`
	RespectGitignore *bool          `yaml:"respect_gitignore,omitempty" toml:"respect_gitignore,omitempty"`
	Exclude          []string       `yaml:"exclude,omitempty" toml:"exclude,omitempty"`
	Rules            []RuleEntry    `yaml:"rules,omitempty" toml:"rules,omitempty"`
	Exemptions       map[string]int `yaml:"exemptions,omitempty" toml:"exemptions,omitempty"`
}

func Load(path string) (File, error) {
	var f File
	if strings.TrimSpace(path) == "" {
		return f, fmt.Errorf("配置文件路径为空")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("读取配置文件失败：%w", err)
	}
	expanded, err := expandEnv(string(b))
	if err != nil {
		return f, err
	}
	return Parse(FormatOf(path), []byte(expanded))
}

func Parse(format string, data []byte) (File, error) {
	var f File
	switch format {
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return f, fmt.Errorf("解析配置文件失败：%w", err)
		}
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// 空文件视为空配置
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return f, fmt.Errorf("解析配置文件失败：%w", err)
		}
	default:
		return f, fmt.Errorf("不支持的配置格式：%s（仅支持 toml/yaml）", format)
	}
	return f, nil
}

func Marshal(format string, f File) ([]byte, error) {
	switch format {
	case "toml":
		return toml.Marshal(f)
	case "yaml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("不支持的配置格式：%s（仅支持 toml/yaml）", format)
	}
}

// Save 写入配置；overwrite 为 false 且文件已存在时报错。
func Save(path string, f File, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("配置文件已存在：%s", path)
		}
	}
	b, err := Marshal(FormatOf(path), f)
	if err != nil {
		return fmt.Errorf("序列化配置失败：%w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("写入配置文件失败：%w", err)
	}
	return nil
}

func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "toml"
	}
}

// Discover 从 dir 逐级向上查找配置文件，找不到时返回空串。
func Discover(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		for _, name := range FileNames {
			p := filepath.Join(abs, name)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p
			}
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return ""
		}
		abs = parent
	}
}

// Policy 把文件模型转为核心配置，校验全部交给 policy.New。
func (f File) Policy() (policy.Config, error) {
	def := DefaultMaxLines
	if f.DefaultMaxLines != nil {
		def = *f.DefaultMaxLines
	}
	rules := make([]policy.Rule, 0, len(f.Rules))
	for _, r := range f.Rules {
		rules = append(rules, policy.Rule{Pattern: r.Path, Limit: r.MaxLines})
	}
	return policy.New(def, rules, f.Exemptions)
}

func (f File) GitignoreEnabled() bool {
	return f.RespectGitignore == nil || *f.RespectGitignore
}

// Starter 是 init 生成的初始配置。
func Starter() File {
	def := DefaultMaxLines
	gi := true
	return File{
		DefaultMaxLines:  &def,
		RespectGitignore: &gi,
		Exclude:          []string{".git/**", "**/*.lock"},
	}
}

// SortedExemptions 返回按路径排序的豁免，便于稳定输出。
func SortedExemptions(ex map[string]int) []RuleEntry {
	out := make([]RuleEntry, 0, len(ex))
	for k, v := range ex {
		out = append(out, RuleEntry{Path: k, MaxLines: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

var envExpr = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

func expandEnv(src string) (string, error) {
	var out strings.Builder
	last := 0
	for _, idx := range envExpr.FindAllStringSubmatchIndex(src, -1) {
		out.WriteString(src[last:idx[0]])
		name := src[idx[2]:idx[3]]
		hasDefault := idx[4] >= 0 && idx[5] >= 0
		defVal := ""
		if hasDefault && idx[6] >= 0 && idx[7] >= 0 {
			defVal = src[idx[6]:idx[7]]
		}
		if v, ok := os.LookupEnv(name); ok {
			out.WriteString(v)
		} else if hasDefault {
			out.WriteString(defVal)
		} else {
			return "", fmt.Errorf("配置中引用了未设置的环境变量：%s", name)
		}
		last = idx[1]
	}
	out.WriteString(src[last:])
	return out.String(), nil
}

func ParseSizeToBytes(s string) (int64, error) {
	v := strings.TrimSpace(strings.ToUpper(s))
	if v == "" {
		return 0, nil
	}
	units := []struct {
		U string
		M int64
	}{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}
	for _, unit := range units {
		if strings.HasSuffix(v, unit.U) {
			n := strings.TrimSpace(strings.TrimSuffix(v, unit.U))
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return 0, fmt.Errorf("无效大小值：%s", s)
			}
			return int64(f * float64(unit.M)), nil
		}
	}
	// 纯数字按字节
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("无效大小值：%s", s)
	}
	return n, nil
}
