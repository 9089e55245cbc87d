package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"fence/internal/logging"
)

// Delta 找出相对目标分支有改动的文件（含未提交与未跟踪文件）。
type Delta struct {
	Dir          string
	TargetBranch string
	Logger       *slog.Logger
}

// RepoRoot 返回包含 dir 的 git 工作区根目录；不在仓库中时返回空串。
func RepoRoot(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	wt, err := repo.Worktree()
	if err != nil {
		return ""
	}
	return wt.Filesystem.Root()
}

// ChangedFiles 返回改动文件的绝对路径集合；不是 git 仓库时返回 nil，表示全量扫描。
func (d *Delta) ChangedFiles(ctx context.Context) (map[string]bool, error) {
	log := d.Logger
	if log == nil {
		log = logging.Discard()
	}
	repo, err := git.PlainOpenWithOptions(d.Dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		log.Debug("delta: not a git repo, scanning all files", "dir", d.Dir)
		return nil, nil
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("打开 git 工作区失败：%w", err)
	}
	repoRoot := wt.Filesystem.Root()

	changed := map[string]bool{}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("读取 git 状态失败：%w", err)
	}
	for p, s := range status {
		if s.Worktree == git.Unmodified && s.Staging == git.Unmodified {
			continue
		}
		changed[filepath.Join(repoRoot, filepath.FromSlash(p))] = true
	}

	branch, err := d.branchChanges(ctx, repo)
	if err != nil {
		return nil, err
	}
	for p := range branch {
		changed[filepath.Join(repoRoot, filepath.FromSlash(p))] = true
	}
	log.Debug("delta: changed files", "count", len(changed), "repo", repoRoot)
	return changed, nil
}

func (d *Delta) branchChanges(ctx context.Context, repo *git.Repository) (map[string]bool, error) {
	target := d.targetBranch(repo)
	headRef, err := repo.Head()
	if err != nil {
		// 空仓库没有 HEAD，只看工作区
		return nil, nil
	}
	headCommit, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("读取 HEAD 提交失败：%w", err)
	}
	targetRef, err := repo.Reference(plumbing.NewBranchReferenceName(target), true)
	if err != nil {
		targetRef, err = repo.Reference(plumbing.NewRemoteReferenceName("origin", target), true)
		if err != nil {
			return nil, nil
		}
	}
	targetCommit, err := repo.CommitObject(targetRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("读取目标分支提交失败：%w", err)
	}
	if headCommit.Hash == targetCommit.Hash {
		return nil, nil
	}
	bases, err := headCommit.MergeBase(targetCommit)
	if err == nil && len(bases) > 0 {
		targetCommit = bases[0]
	}

	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, err
	}
	targetTree, err := targetCommit.Tree()
	if err != nil {
		return nil, err
	}
	changes, err := object.DiffTreeWithOptions(ctx, targetTree, headTree, &object.DiffTreeOptions{})
	if err != nil {
		return nil, fmt.Errorf("比较提交树失败：%w", err)
	}
	out := map[string]bool{}
	for _, ch := range changes {
		action, err := ch.Action()
		if err != nil {
			continue
		}
		// 删除的文件无需检查
		if action == merkletrie.Insert || action == merkletrie.Modify {
			out[ch.To.Name] = true
		}
	}
	return out, nil
}

func (d *Delta) targetBranch(repo *git.Repository) string {
	if b := os.Getenv("FENCE_TARGET_BRANCH"); b != "" {
		return b
	}
	if d.TargetBranch != "" {
		return d.TargetBranch
	}
	for _, v := range []string{
		"CI_MERGE_REQUEST_TARGET_BRANCH_NAME",
		"GITHUB_BASE_REF",
		"BITBUCKET_PR_DESTINATION_BRANCH",
		"CHANGE_TARGET",
	} {
		if b := os.Getenv(v); b != "" {
			return b
		}
	}
	ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", "HEAD"), false)
	if err == nil {
		const prefix = "refs/remotes/origin/"
		if t := ref.Target().String(); strings.HasPrefix(t, prefix) {
			return strings.TrimPrefix(t, prefix)
		}
	}
	return "main"
}

// FilterChanged 只保留改动集合中的文件；changed 为 nil 时原样返回。
func FilterChanged(files []File, changed map[string]bool) []File {
	if changed == nil {
		return files
	}
	out := make([]File, 0, len(files))
	for _, f := range files {
		if changed[filepath.Clean(f.AbsPath)] {
			out = append(out, f)
		}
	}
	return out
}
