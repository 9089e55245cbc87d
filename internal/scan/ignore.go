package scan

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// ignoreSet 按需加载 Root 及其子目录中的 .gitignore。
type ignoreSet struct {
	root     string
	loaded   map[string]bool
	patterns []gitignore.Pattern
}

func newIgnoreSet(root string) *ignoreSet {
	return &ignoreSet{root: root, loaded: map[string]bool{}}
}

func (s *ignoreSet) Match(abs string, isDir bool) bool {
	if s.root == "" {
		return false
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for i := 0; i < len(parts); i++ {
		s.load(parts[:i])
	}
	if len(s.patterns) == 0 {
		return false
	}
	return gitignore.NewMatcher(s.patterns).Match(parts, isDir)
}

func (s *ignoreSet) load(domain []string) {
	key := strings.Join(domain, "/")
	if s.loaded[key] {
		return
	}
	s.loaded[key] = true
	dir := filepath.Join(append([]string{s.root}, domain...)...)
	b, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return
	}
	d := append([]string(nil), domain...)
	for _, raw := range strings.Split(string(b), "\n") {
		line := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s.patterns = append(s.patterns, gitignore.ParsePattern(line, d))
	}
}
