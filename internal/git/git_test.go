package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cmd := exec.Command("git", "init")
	cmd.Dir = dir
	if err := cmd.Run(); err != nil {
		t.Fatalf("git init: %v", err)
	}

	cmd = exec.Command("git", "config", "user.email", "test@test.com")
	cmd.Dir = dir
	_ = cmd.Run()
	cmd = exec.Command("git", "config", "user.name", "Test User")
	cmd.Dir = dir
	_ = cmd.Run()

	testFile := filepath.Join(dir, "README.md")
	if err := os.WriteFile(testFile, []byte("# Test\n"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	cmd = exec.Command("git", "add", ".")
	cmd.Dir = dir
	_ = cmd.Run()
	cmd = exec.Command("git", "commit", "-m", "initial")
	cmd.Dir = dir
	_ = cmd.Run()

	return dir
}

func createBranch(t *testing.T, dir, name string) {
	t.Helper()
	if err := exec.Command("git", "-C", dir, "branch", name).Run(); err != nil {
		t.Fatalf("git branch %s: %v", name, err)
	}
}

func TestCurrentBranch(t *testing.T) {
	dir := initTestRepo(t)
	g := NewGit(dir)

	branch, err := g.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}

	// Modern git uses "main", older uses "master"
	if branch != "main" && branch != "master" {
		t.Errorf("branch = %q, want main or master", branch)
	}
}

func TestAddAndCommit(t *testing.T) {
	dir := initTestRepo(t)
	g := NewGit(dir)

	testFile := filepath.Join(dir, "new.txt")
	if err := os.WriteFile(testFile, []byte("new content"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := g.Add("new.txt"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := g.Commit("add new file"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	has, err := g.HasUncommittedChanges()
	if err != nil {
		t.Fatalf("HasUncommittedChanges: %v", err)
	}
	if has {
		t.Error("expected clean after commit")
	}
}

func TestHasUncommittedChanges(t *testing.T) {
	dir := initTestRepo(t)
	g := NewGit(dir)

	has, err := g.HasUncommittedChanges()
	if err != nil {
		t.Fatalf("HasUncommittedChanges: %v", err)
	}
	if has {
		t.Error("expected no changes initially")
	}

	testFile := filepath.Join(dir, "README.md")
	if err := os.WriteFile(testFile, []byte("modified"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	has, err = g.HasUncommittedChanges()
	if err != nil {
		t.Fatalf("HasUncommittedChanges: %v", err)
	}
	if !has {
		t.Error("expected changes after modify")
	}
}

func TestCheckout(t *testing.T) {
	dir := initTestRepo(t)
	g := NewGit(dir)
	createBranch(t, dir, "feature")

	if err := g.Checkout("feature"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	branch, err := g.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "feature" {
		t.Errorf("branch = %q, want feature", branch)
	}
}

func TestBranchExists(t *testing.T) {
	dir := initTestRepo(t)
	g := NewGit(dir)

	exists, err := g.BranchExists("feature")
	if err != nil {
		t.Fatalf("BranchExists: %v", err)
	}
	if exists {
		t.Error("expected feature to not exist yet")
	}

	createBranch(t, dir, "feature")

	exists, err = g.BranchExists("feature")
	if err != nil {
		t.Fatalf("BranchExists: %v", err)
	}
	if !exists {
		t.Error("expected feature to exist after creation")
	}
}

func TestDeleteBranch(t *testing.T) {
	dir := initTestRepo(t)
	g := NewGit(dir)
	createBranch(t, dir, "feature")

	if err := g.DeleteBranch("feature", false); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	exists, err := g.BranchExists("feature")
	if err != nil {
		t.Fatalf("BranchExists: %v", err)
	}
	if exists {
		t.Error("expected feature to be gone after DeleteBranch")
	}
}

func TestMergeAndRebase(t *testing.T) {
	dir := initTestRepo(t)
	g := NewGit(dir)
	base, err := g.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	createBranch(t, dir, "feature")

	// Advance base independently of feature, so rebase has work to do.
	if err := os.WriteFile(filepath.Join(dir, "base.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := g.Add("base.txt"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := g.Commit("base commit"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := g.Checkout("feature"); err != nil {
		t.Fatalf("Checkout feature: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "feature.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := g.Add("feature.txt"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := g.Commit("feature commit"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	ahead, err := g.CommitsAhead(base, "feature")
	if err != nil {
		t.Fatalf("CommitsAhead: %v", err)
	}
	if ahead != 1 {
		t.Errorf("CommitsAhead = %d, want 1", ahead)
	}

	if err := g.Rebase(base); err != nil {
		t.Fatalf("Rebase onto %s: %v", base, err)
	}

	if err := g.Checkout(base); err != nil {
		t.Fatalf("Checkout %s: %v", base, err)
	}
	if err := g.Merge("feature"); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "feature.txt")); err != nil {
		t.Errorf("expected feature.txt to exist after merge: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "base.txt")); err != nil {
		t.Errorf("expected base.txt to still exist after merge: %v", err)
	}
}

func TestAbortRebase(t *testing.T) {
	dir := initTestRepo(t)
	g := NewGit(dir)

	// AbortRebase on a clean tree with nothing in progress is a no-op
	// failure, surfaced as an error rather than a panic.
	if err := g.AbortRebase(); err == nil {
		t.Error("expected AbortRebase to fail when no rebase is in progress")
	}
}

func TestLogFirstCommitAfter(t *testing.T) {
	dir := initTestRepo(t)
	g := NewGit(dir)
	base, err := g.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	createBranch(t, dir, "feature")
	if err := g.Checkout("feature"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "feature.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := g.Add("feature.txt"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := g.Commit("feature commit"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	ts, err := g.LogFirstCommitAfter(base, "feature")
	if err != nil {
		t.Fatalf("LogFirstCommitAfter: %v", err)
	}
	if ts == "" {
		t.Error("expected a non-empty timestamp")
	}
}

func TestWorktreeAddExistingAndFromRef(t *testing.T) {
	dir := initTestRepo(t)
	g := NewGit(dir)
	createBranch(t, dir, "existing")

	existingPath := filepath.Join(t.TempDir(), "existing-wt")
	if err := g.WorktreeAddExisting(existingPath, "existing"); err != nil {
		t.Fatalf("WorktreeAddExisting: %v", err)
	}
	if _, err := os.Stat(filepath.Join(existingPath, "README.md")); err != nil {
		t.Errorf("expected checked-out files in worktree: %v", err)
	}

	base, err := g.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	fromRefPath := filepath.Join(t.TempDir(), "fromref-wt")
	if err := g.WorktreeAddFromRef(fromRefPath, "from-ref-branch", base); err != nil {
		t.Fatalf("WorktreeAddFromRef: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fromRefPath, "README.md")); err != nil {
		t.Errorf("expected checked-out files in worktree: %v", err)
	}
}

func TestGitErrorCarriesRawOutput(t *testing.T) {
	dir := t.TempDir() // not a git repo
	g := NewGit(dir)

	_, err := g.CurrentBranch()
	if err == nil {
		t.Fatal("expected an error outside a git repository")
	}
	var gitErr *GitError
	if ge, ok := err.(*GitError); ok {
		gitErr = ge
	} else {
		t.Fatalf("expected *GitError, got %T", err)
	}
	if gitErr.Command == "" {
		t.Error("expected a non-empty command name")
	}
}
