package e2e

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/snipe-tools/snipe/internal/checker"
	"github.com/snipe-tools/snipe/internal/facts"
	"github.com/snipe-tools/snipe/internal/indexer"
)

func TestSnipeE2E(t *testing.T) {
	repoRoot := findRepoRoot(t)
	binPath := buildSnipeBinary(t, repoRoot)

	home := t.TempDir()
	env := append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+filepath.Join(home, ".config"),
	)

	t.Run("cross-file-bounds", func(t *testing.T) {
		result := runSnipeJSON(t, binPath, filepath.Join(repoRoot, "testdata", "c"), env)
		if len(result.ParseErrors) > 0 {
			t.Fatalf("parse errors: %v", result.ParseErrors)
		}
		if result.FilesAnalyzed != 2 {
			t.Errorf("expected 2 files analyzed, got %d", result.FilesAnalyzed)
		}
		var bounds []checker.Diagnostic
		for _, d := range result.Diagnostics {
			if d.Rule == checker.RuleArrayBounds {
				bounds = append(bounds, d)
			}
		}
		if len(bounds) != 1 {
			t.Fatalf("expected exactly one bounds error, got %+v", result.Diagnostics)
		}
		if bounds[0].Index != 144 || bounds[0].Size != 10 {
			t.Errorf("unexpected bounds diagnostic: %+v", bounds[0])
		}
		if filepath.Base(bounds[0].DefFile) != "core.c" {
			t.Errorf("definition attribution missing: %+v", bounds[0])
		}
	})

	t.Run("unsafe-libc", func(t *testing.T) {
		result := runSnipeJSON(t, binPath, filepath.Join(repoRoot, "testdata", "unsafe"), env)
		found := false
		for _, d := range result.Diagnostics {
			if d.Rule == "unsafe-libc-call" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected unsafe-libc-call diagnostic, got %+v", result.Diagnostics)
		}
	})
}

func TestSnipeFactsGroupFilter(t *testing.T) {
	repoRoot := findRepoRoot(t)
	binDir := t.TempDir()
	binPath := filepath.Join(binDir, "snipe-facts")
	build := exec.Command("go", "build", "-o", binPath, "./cmd/snipe-facts")
	build.Dir = repoRoot
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("build snipe-facts failed: %v\n%s", err, string(out))
	}

	home := t.TempDir()
	env := append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+filepath.Join(home, ".config"),
	)

	run := func(args ...string) facts.Tables {
		t.Helper()
		cmd := exec.Command(binPath, args...)
		cmd.Env = env
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			t.Fatalf("snipe-facts %v failed: %v\nstderr:\n%s", args, err, stderr.String())
		}
		var tables facts.Tables
		if err := json.Unmarshal(stdout.Bytes(), &tables); err != nil {
			t.Fatalf("parse facts output: %v\nstdout:\n%s", err, stdout.String())
		}
		return tables
	}

	target := filepath.Join(repoRoot, "testdata", "c")
	all := run(target)
	if len(all.Files) != 2 {
		t.Fatalf("expected 2 file rows, got %+v", all.Files)
	}

	scoped := run("--group", "src", target)
	if len(scoped.Files) != 2 {
		t.Errorf("src group should keep both files, got %+v", scoped.Files)
	}
	for _, row := range scoped.Files {
		if row.Group != "src" {
			t.Errorf("unexpected group in filtered output: %+v", row)
		}
	}

	missing := exec.Command(binPath, "--group", "vendored", target)
	missing.Env = env
	if err := missing.Run(); err == nil {
		t.Error("expected a failure for a group with no files")
	}
}

func runSnipeJSON(t *testing.T, binPath, path string, env []string) indexer.LintResult {
	t.Helper()

	cmd := exec.Command(binPath, "--json", path)
	cmd.Env = env
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("snipe failed for %s: %v\nstderr:\n%s", path, err, stderr.String())
	}

	var result indexer.LintResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("parse JSON output for %s: %v\nstdout:\n%s", path, err, stdout.String())
	}
	return result
}

func buildSnipeBinary(t *testing.T, repoRoot string) string {
	t.Helper()
	binDir := t.TempDir()
	binPath := filepath.Join(binDir, "snipe")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/snipe")
	cmd.Dir = repoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build snipe failed: %v\n%s", err, string(out))
	}
	return binPath
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found above test directory")
		}
		dir = parent
	}
}
