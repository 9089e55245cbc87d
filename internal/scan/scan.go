package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var defaultIgnoreDirs = map[string]struct{}{
	".git":         {},
	".svn":         {},
	".hg":          {},
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
}

type Options struct {
	Paths            []string
	Root             string
	FollowSymlinks   bool
	Exclude          []string
	RespectGitignore bool
}

type File struct {
	// Path 是相对 Root 的正斜杠路径；Root 之外的文件保留绝对路径
	Path    string
	AbsPath string
}

type ScanResult struct {
	Files  []File
	Errors []ScanError
}

type ScanError struct {
	Code   string
	Path   string
	Detail string
}

type collector struct {
	opts   Options
	ignore *ignoreSet
	out    map[string]File
	errs   []ScanError
}

func Collect(opts Options) ScanResult {
	c := &collector{opts: opts, out: map[string]File{}}
	if opts.RespectGitignore {
		// 从子目录运行时仍需加载仓库根的 .gitignore
		root := opts.Root
		if r := RepoRoot(root); root != "" && r != "" {
			root = r
		}
		c.ignore = newIgnoreSet(root)
	}

	for _, in := range opts.Paths {
		abs, err := filepath.Abs(in)
		if err != nil {
			c.errs = append(c.errs, ScanError{Code: "input_abs_failed", Path: in, Detail: err.Error()})
			continue
		}
		info, err := os.Lstat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				c.errs = append(c.errs, ScanError{Code: "input_path_not_found", Path: abs, Detail: "路径不存在"})
				continue
			}
			c.errs = append(c.errs, ScanError{Code: "input_stat_failed", Path: abs, Detail: err.Error()})
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if !opts.FollowSymlinks {
				c.errs = append(c.errs, ScanError{Code: "symlink_skipped", Path: abs, Detail: "默认不跟随软链接"})
				continue
			}
			if info, err = os.Stat(abs); err != nil {
				c.errs = append(c.errs, ScanError{Code: "input_stat_failed", Path: abs, Detail: err.Error()})
				continue
			}
		}
		if info.IsDir() {
			c.walkDir(abs)
			continue
		}
		// 显式传入的文件不受默认忽略目录影响，但仍遵守 exclude 与 .gitignore
		if c.isIgnored(abs, false) {
			continue
		}
		c.add(abs)
	}

	files := make([]File, 0, len(c.out))
	for _, f := range c.out {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return ScanResult{Files: files, Errors: c.errs}
}

func (c *collector) walkDir(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			c.errs = append(c.errs, ScanError{Code: "walk_error", Path: path, Detail: err.Error()})
			return nil
		}
		if d.IsDir() {
			if path != root {
				if _, ok := defaultIgnoreDirs[d.Name()]; ok {
					return fs.SkipDir
				}
			}
			if path != root && c.isIgnored(path, true) {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			if !c.opts.FollowSymlinks {
				return nil
			}
			info, serr := os.Stat(path)
			if serr != nil || info.IsDir() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}
		if c.isIgnored(path, false) {
			return nil
		}
		c.add(path)
		return nil
	})
}

func (c *collector) add(abs string) {
	rel := c.relPath(abs)
	c.out[rel] = File{Path: rel, AbsPath: abs}
}

func (c *collector) relPath(abs string) string {
	return RelPath(c.opts.Root, abs)
}

// RelPath 返回 abs 相对 root 的正斜杠路径；不在 root 之下时返回正斜杠绝对路径。
func RelPath(root, abs string) string {
	if root != "" {
		rel, err := filepath.Rel(root, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(abs)
}

func (c *collector) isIgnored(abs string, isDir bool) bool {
	rel := c.relPath(abs)
	if MatchExclude(c.opts.Exclude, rel, isDir) {
		return true
	}
	if c.ignore != nil && c.ignore.Match(abs, isDir) {
		return true
	}
	return false
}

// MatchExclude 含 "/" 或 "**" 的模式匹配完整相对路径，其余只匹配文件名。
func MatchExclude(patterns []string, rel string, isDir bool) bool {
	base := rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		base = rel[i+1:]
	}
	for _, p := range patterns {
		p = strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(p)), "./")
		if p == "" {
			continue
		}
		target := base
		if strings.Contains(p, "/") || strings.Contains(p, "**") {
			target = rel
		}
		if ok, err := doublestar.Match(p, target); err == nil && ok {
			return true
		}
		if isDir {
			if ok, err := doublestar.Match(p, target+"/"); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func ValidateExclude(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(strings.TrimSpace(p))) {
			return fmt.Errorf("exclude 中存在无效的 glob 模式：%s", p)
		}
	}
	return nil
}
