package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const EnvPrefix = "FENCE_"

type Loaded struct {
	File File
	// Path 为空表示未找到配置文件，使用默认值
	Path   string
	Root   string
	Source string
}

// LoadForRun 加载运行配置：优先 --config，其次向上查找，最后用默认值；FENCE_* 环境变量覆盖文件内容。
func LoadForRun(configPath, cwd string) (Loaded, error) {
	l := Loaded{Root: cwd, Source: "defaults"}
	p := strings.TrimSpace(configPath)
	if p != "" {
		if !filepath.IsAbs(p) {
			p = filepath.Join(cwd, p)
		}
	} else {
		p = Discover(cwd)
	}
	if p != "" {
		f, err := Load(p)
		if err != nil {
			return Loaded{}, err
		}
		l.File = f
		l.Path = p
		l.Root = filepath.Dir(p)
		l.Source = p
	}
	ok, err := ApplyEnv(EnvPrefix, &l.File)
	if err != nil {
		return Loaded{}, err
	}
	if ok {
		l.Source += "+env://" + EnvPrefix + "*"
	}
	return l, nil
}

// ApplyEnv 从环境变量覆盖配置。
// 例如：FENCE_DEFAULT_MAX_LINES=400, FENCE_EXCLUDE=dist/**,**/*.min.js
func ApplyEnv(prefix string, f *File) (bool, error) {
	has := false

	if v, ok := os.LookupEnv(prefix + "DEFAULT_MAX_LINES"); ok {
		has = true
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("环境变量 %sDEFAULT_MAX_LINES 不是有效整数", prefix)
		}
		f.DefaultMaxLines = &n
	}
	if v, ok := os.LookupEnv(prefix + "RESPECT_GITIGNORE"); ok {
		has = true
		b, err := parseBool(v)
		if err != nil {
			return false, fmt.Errorf("环境变量 %sRESPECT_GITIGNORE 不是有效布尔值", prefix)
		}
		f.RespectGitignore = &b
	}
	if v, ok := os.LookupEnv(prefix + "EXCLUDE"); ok {
		has = true
		f.Exclude = appendUnique(f.Exclude, splitCSV(v)...)
	}
	return has, nil
}

// appendUnique 追加尚未出现的模式，保持原有顺序。
func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range items {
		if seen[s] {
			continue
		}
		seen[s] = true
		dst = append(dst, s)
	}
	return dst
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func parseBool(v string) (bool, error) {
	s := strings.ToLower(strings.TrimSpace(v))
	switch s {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool")
	}
}
