package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fence/internal/config"
	"fence/internal/logging"
	"fence/internal/policy"
	"fence/internal/scan"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func lines(n int) string {
	return strings.Repeat("x\n", n)
}

func findFinding(r policy.Report, p string) (policy.Finding, bool) {
	for _, f := range r.Findings {
		if f.Path == p {
			return f, true
		}
	}
	return policy.Finding{}, false
}

func TestDefaultJobs(t *testing.T) {
	n := DefaultJobs()
	if n < 1 || n > 8 {
		t.Fatalf("unexpected jobs: %d", n)
	}
}

func TestCheckPassAndViolation(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, ".fence.toml"), `default_max_lines = 3

[[rules]]
path = "src/**"
max_lines = 5

[exemptions]
"legacy/old.go" = 10
`)
	writeFile(t, filepath.Join(tmp, "a.txt"), lines(3))
	writeFile(t, filepath.Join(tmp, "b.txt"), lines(4))
	writeFile(t, filepath.Join(tmp, "src", "c.go"), lines(5))
	writeFile(t, filepath.Join(tmp, "src", "d.go"), lines(6))
	writeFile(t, filepath.Join(tmp, "legacy", "old.go"), lines(10))

	res, err := Check(context.Background(), Options{CWD: tmp})
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if res.Root != tmp || !strings.HasSuffix(res.ConfigSource, ".fence.toml") {
		t.Fatalf("unexpected root/source: %s %s", res.Root, res.ConfigSource)
	}
	cases := []struct {
		path string
		kind policy.FindingKind
		by   string
	}{
		{"a.txt", policy.FindingOK, "default"},
		{"b.txt", policy.FindingViolation, "default"},
		{"src/c.go", policy.FindingOK, "src/**"},
		{"src/d.go", policy.FindingViolation, "src/**"},
		{"legacy/old.go", policy.FindingOK, "exemption"},
	}
	for _, c := range cases {
		f, ok := findFinding(res.Report, c.path)
		if !ok {
			t.Fatalf("missing finding for %s", c.path)
		}
		if f.Kind != c.kind || f.MatchedBy.Label() != c.by {
			t.Fatalf("%s: got %s/%s want %s/%s", c.path, f.Kind, f.MatchedBy.Label(), c.kind, c.by)
		}
	}
	if res.Report.Summary.Violations != 2 {
		t.Fatalf("unexpected summary: %+v", res.Report.Summary)
	}
	if ExitCode(res, nil) != 1 {
		t.Fatalf("violations should exit 1")
	}
	if _, ok := findFinding(res.Report, ".fence.toml"); ok {
		t.Fatalf("config file itself should not be measured")
	}
}

func TestCheckFindingsFollowPathOrder(t *testing.T) {
	tmp := t.TempDir()
	for _, n := range []string{"z.txt", "a.txt", "m/b.txt", "c.txt"} {
		writeFile(t, filepath.Join(tmp, n), "x\n")
	}
	res, err := Check(context.Background(), Options{CWD: tmp, Jobs: 3})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.txt", "c.txt", "m/b.txt", "z.txt"}
	if len(res.Report.Findings) != len(want) {
		t.Fatalf("unexpected findings: %+v", res.Report.Findings)
	}
	for i, p := range want {
		if res.Report.Findings[i].Path != p {
			t.Fatalf("finding %d got %s want %s", i, res.Report.Findings[i].Path, p)
		}
	}
}

func TestCheckSkipsAreNotInputErrors(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "big.txt"), strings.Repeat("a", 200))
	writeFile(t, filepath.Join(tmp, "bin.dat"), string([]byte{0, 1, 2, 3}))
	writeFile(t, filepath.Join(tmp, "ok.txt"), "ok\n")

	res, err := Check(context.Background(), Options{CWD: tmp, MaxFileSizeBytes: 10})
	if err != nil {
		t.Fatal(err)
	}
	big, _ := findFinding(res.Report, "big.txt")
	bin, _ := findFinding(res.Report, "bin.dat")
	if big.Kind != policy.FindingSkipped || big.SkipReason != SkipTooLarge {
		t.Fatalf("big.txt should be too_large: %+v", big)
	}
	if bin.Kind != policy.FindingSkipped || bin.SkipReason != SkipBinary {
		t.Fatalf("bin.dat should be binary: %+v", bin)
	}
	if res.HasInputErr() || ExitCode(res, nil) != 0 {
		t.Fatalf("skips must not be input errors: %+v", res.Problems)
	}
}

func TestCheckMissingPath(t *testing.T) {
	tmp := t.TempDir()
	res, err := Check(context.Background(), Options{CWD: tmp, Paths: []string{"missing.txt"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Problems) != 1 || res.Problems[0].Code != "input_path_not_found" {
		t.Fatalf("expected missing path problem: %+v", res.Problems)
	}
	if res.Problems[0].NextAction == "" {
		t.Fatalf("problem should carry a hint")
	}
	if ExitCode(res, nil) != 3 {
		t.Fatalf("input error should exit 3")
	}
}

func TestCheckConfigErrors(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, ".fence.toml"), "default_max_lines = 0\n")
	_, err := Check(context.Background(), Options{CWD: tmp})
	var ce *ConfigErr
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigErr, got %T %v", err, err)
	}
	if ExitCode(Result{}, err) != 4 {
		t.Fatalf("config error should exit 4")
	}

	writeFile(t, filepath.Join(tmp, ".fence.toml"), "unknown_key = 1\n")
	if _, err := Check(context.Background(), Options{CWD: tmp}); !errors.As(err, &ce) {
		t.Fatalf("unknown key should be a config error: %v", err)
	}

	writeFile(t, filepath.Join(tmp, ".fence.toml"), "exclude = [\"src/[a\"]\n")
	if _, err := Check(context.Background(), Options{CWD: tmp}); !errors.As(err, &ce) {
		t.Fatalf("bad exclude should be a config error: %v", err)
	}
}

func TestCheckCanceled(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "a.txt"), "x\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Check(ctx, Options{CWD: tmp})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !res.Canceled {
		t.Fatalf("result should be marked canceled")
	}
	if res.Report.Summary.Total != len(res.Report.Findings) {
		t.Fatalf("partial report should stay consistent: %+v", res.Report.Summary)
	}
}

func TestBaselineExistingConfig(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, ".fence.toml")
	writeFile(t, cfgPath, "default_max_lines = 2\n\n[exemptions]\n\"b.txt\" = 3\n")
	writeFile(t, filepath.Join(tmp, "a.txt"), lines(1))
	writeFile(t, filepath.Join(tmp, "b.txt"), lines(5))
	writeFile(t, filepath.Join(tmp, "c.txt"), lines(4))

	out, err := Baseline(context.Background(), Options{CWD: tmp})
	if err != nil {
		t.Fatalf("baseline failed: %v", err)
	}
	if out.Created || out.Path != cfgPath {
		t.Fatalf("should update existing config: %+v", out)
	}
	if out.Added != 1 || out.Updated != 1 || out.Total != 2 {
		t.Fatalf("unexpected counts: %+v", out)
	}
	if out.Report.Summary.Violations != 0 {
		t.Fatalf("baseline must clear violations: %+v", out.Report.Summary)
	}

	f, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if f.Exemptions["b.txt"] != 5 || f.Exemptions["c.txt"] != 4 {
		t.Fatalf("unexpected exemptions: %v", f.Exemptions)
	}

	res, err := Check(context.Background(), Options{CWD: tmp})
	if err != nil {
		t.Fatal(err)
	}
	if res.HasViolation() {
		t.Fatalf("check after baseline should pass: %+v", res.Report.Violations())
	}

	again, err := Baseline(context.Background(), Options{CWD: tmp})
	if err != nil {
		t.Fatal(err)
	}
	if again.Added != 0 || again.Updated != 0 {
		t.Fatalf("second baseline should change nothing: %+v", again)
	}
}

func TestBaselineCreatesConfig(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("FENCE_DEFAULT_MAX_LINES", "2")
	writeFile(t, filepath.Join(tmp, "big.go"), lines(3))
	writeFile(t, filepath.Join(tmp, "Cargo.lock"), lines(30))

	out, err := Baseline(context.Background(), Options{CWD: tmp})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Created || out.Path != filepath.Join(tmp, ".fence.toml") {
		t.Fatalf("should create config in cwd: %+v", out)
	}
	f, err := config.Load(out.Path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Exemptions["big.go"] != 3 {
		t.Fatalf("missing exemption: %v", f.Exemptions)
	}
	if _, ok := f.Exemptions["Cargo.lock"]; ok {
		t.Fatalf("starter excludes should apply before baseline")
	}
	if f.DefaultMaxLines == nil || *f.DefaultMaxLines != config.DefaultMaxLines {
		t.Fatalf("env override must not be saved: %v", f.DefaultMaxLines)
	}
}

func TestBaselineKeepsConfigText(t *testing.T) {
	t.Setenv("FENCE_EXCLUDE", "dist/**")
	cases := []struct{ name, content string }{
		{".fence.toml", "# 上限可由 CI 覆盖\ndefault_max_lines = ${FENCE_TEST_LIMIT:-5}\nexclude = [\"vendor/**\"]\n"},
		{".fence.yaml", "# 上限可由 CI 覆盖\ndefault_max_lines: ${FENCE_TEST_LIMIT:-5}\nexclude:\n  - vendor/**\n"},
	}
	for _, c := range cases {
		tmp := t.TempDir()
		cfgPath := filepath.Join(tmp, c.name)
		writeFile(t, cfgPath, c.content)
		writeFile(t, filepath.Join(tmp, "big.go"), lines(8))
		writeFile(t, filepath.Join(tmp, "dist", "out.js"), lines(20))

		var first []byte
		for i := 0; i < 3; i++ {
			out, err := Baseline(context.Background(), Options{CWD: tmp})
			if err != nil {
				t.Fatalf("%s run %d: %v", c.name, i, err)
			}
			if out.Report.Summary.Violations != 0 {
				t.Fatalf("%s run %d: violations left: %+v", c.name, i, out.Report.Summary)
			}
			b, err := os.ReadFile(cfgPath)
			if err != nil {
				t.Fatal(err)
			}
			if i == 0 {
				first = b
				continue
			}
			if string(b) != string(first) {
				t.Fatalf("%s: repeated baseline changed file:\n%s\n---\n%s", c.name, first, b)
			}
		}

		s := string(first)
		for _, want := range []string{"# 上限可由 CI 覆盖", "${FENCE_TEST_LIMIT:-5}", "vendor/**"} {
			if !strings.Contains(s, want) {
				t.Fatalf("%s: lost %q:\n%s", c.name, want, s)
			}
		}
		if strings.Contains(s, "dist/**") {
			t.Fatalf("%s: env exclude must not be saved:\n%s", c.name, s)
		}
		f, err := config.Load(cfgPath)
		if err != nil {
			t.Fatal(err)
		}
		if f.Exemptions["big.go"] != 8 || len(f.Exemptions) != 1 {
			t.Fatalf("%s: unexpected exemptions: %v", c.name, f.Exemptions)
		}
	}
}

func TestInit(t *testing.T) {
	tmp := t.TempDir()
	p, err := Init(tmp, false)
	if err != nil {
		t.Fatal(err)
	}
	f, err := config.Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if f.DefaultMaxLines == nil || *f.DefaultMaxLines != config.DefaultMaxLines {
		t.Fatalf("unexpected starter config: %+v", f)
	}
	_, err = Init(tmp, false)
	var ae *ArgErr
	if !errors.As(err, &ae) {
		t.Fatalf("second init should fail with ArgErr, got %v", err)
	}
	if _, err := Init(tmp, true); err != nil {
		t.Fatalf("force init failed: %v", err)
	}
}

func TestMeasureUnreadable(t *testing.T) {
	tmp := t.TempDir()
	e := measureFile(scan.File{Path: "gone.txt", AbsPath: filepath.Join(tmp, "gone.txt")}, 0, logging.Discard())
	if e.SkipReason != SkipUnreadable {
		t.Fatalf("missing file should be unreadable: %+v", e)
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(Result{}, errors.New("boom")) != 5 {
		t.Fatalf("internal code mismatch")
	}
	if ExitCode(Result{}, &ArgErr{Msg: "a"}) != 2 {
		t.Fatalf("arg code mismatch")
	}
	if ExitCode(Result{}, nil) != 0 {
		t.Fatalf("ok code mismatch")
	}
	if (&ConfigErr{Msg: "a"}).Error() != "a" || (&ArgErr{Msg: "b"}).Error() != "b" {
		t.Fatalf("err string mismatch")
	}
}

func TestNormalizePaths(t *testing.T) {
	tmp := t.TempDir()
	a := filepath.Join(tmp, "a.txt")
	writeFile(t, a, "x")
	got := NormalizePaths([]string{"", "a.txt", a, "./a.txt"}, tmp)
	if len(got) != 1 || got[0] != a {
		t.Fatalf("normalize mismatch: %#v", got)
	}
}
