package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-cmp/cmp"

	"mercator-hq/drivetwin/pkg/config"
)

// sourceRepo is a local repository standing in for the remote.
type sourceRepo struct {
	t    *testing.T
	dir  string
	repo *gogit.Repository
}

// newSourceRepo creates a repository with policies/overtake.lua committed.
// go-git names the initial branch master.
func newSourceRepo(t *testing.T) *sourceRepo {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	s := &sourceRepo{t: t, dir: dir, repo: repo}
	s.commit("initial commit", map[string]string{
		"policies/overtake.lua": "policy = function() coroutine.yield(autopilot()) end\n",
		"README.md":             "driving policies\n",
	})
	return s
}

// commit writes files and commits them, returning the new SHA.
func (s *sourceRepo) commit(msg string, files map[string]string) string {
	s.t.Helper()

	worktree, err := s.repo.Worktree()
	if err != nil {
		s.t.Fatalf("failed to get worktree: %v", err)
	}
	for name, content := range files {
		full := filepath.Join(s.dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			s.t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			s.t.Fatal(err)
		}
		if _, err := worktree.Add(name); err != nil {
			s.t.Fatalf("failed to add %s: %v", name, err)
		}
	}
	hash, err := worktree.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "Test Driver",
			Email: "driver@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		s.t.Fatalf("failed to commit: %v", err)
	}
	return hash.String()
}

func (s *sourceRepo) head() string {
	s.t.Helper()
	ref, err := s.repo.Head()
	if err != nil {
		s.t.Fatal(err)
	}
	return ref.Hash().String()
}

func testGitConfig(t *testing.T, src *sourceRepo) *config.GitConfig {
	return &config.GitConfig{
		Enabled:    true,
		Repository: src.dir,
		Branch:     "master",
		LocalPath:  filepath.Join(t.TempDir(), "clone"),
		Timeout:    10 * time.Second,
		Auth:       config.GitAuthConfig{Type: "none"},
	}
}

func clonedRepo(t *testing.T, src *sourceRepo) *Repository {
	t.Helper()
	r, err := NewRepository(testGitConfig(t, src))
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	if err := r.Clone(context.Background()); err != nil {
		t.Fatalf("Clone() error = %v", err)
	}
	return r
}

func TestNewRepository(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.GitConfig
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "empty repository", cfg: &config.GitConfig{Branch: "main"}, wantErr: true},
		{name: "empty branch", cfg: &config.GitConfig{Repository: "https://example.com/p.git"}, wantErr: true},
		{
			name:    "bad auth",
			cfg:     &config.GitConfig{Repository: "https://example.com/p.git", Branch: "main", Auth: config.GitAuthConfig{Type: "token"}},
			wantErr: true,
		},
		{
			name: "valid",
			cfg:  &config.GitConfig{Repository: "https://example.com/p.git", Branch: "main", LocalPath: "/tmp/policies"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRepository(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewRepository() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && r.LocalPath() != tt.cfg.LocalPath {
				t.Errorf("LocalPath() = %q, want %q", r.LocalPath(), tt.cfg.LocalPath)
			}
		})
	}
}

func TestRepository_Clone(t *testing.T) {
	src := newSourceRepo(t)
	r := clonedRepo(t, src)

	if _, err := os.Stat(r.File("policies/overtake.lua")); err != nil {
		t.Errorf("policy file not cloned: %v", err)
	}
	if r.Stats().CloneDuration == 0 {
		t.Error("Clone() did not record duration")
	}

	commit, err := r.CurrentCommit()
	if err != nil {
		t.Fatalf("CurrentCommit() error = %v", err)
	}
	if commit.SHA != src.head() {
		t.Errorf("SHA = %s, want %s", commit.SHA, src.head())
	}
	if commit.Author != "Test Driver" || commit.Branch != "master" {
		t.Errorf("commit = %+v", commit)
	}

	// A second Clone opens the existing checkout.
	again, err := NewRepository(&r.config)
	if err != nil {
		t.Fatal(err)
	}
	if err := again.Clone(context.Background()); err != nil {
		t.Errorf("Clone() of existing checkout error = %v", err)
	}

	// CleanOnStart clones afresh.
	cfg := r.config
	cfg.CleanOnStart = true
	fresh, err := NewRepository(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := fresh.Clone(context.Background()); err != nil {
		t.Errorf("Clone() with CleanOnStart error = %v", err)
	}
}

func TestRepository_CloneNonexistent(t *testing.T) {
	r, err := NewRepository(&config.GitConfig{
		Repository: filepath.Join(t.TempDir(), "missing"),
		Branch:     "master",
		LocalPath:  filepath.Join(t.TempDir(), "clone"),
		Timeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Clone(context.Background()); err == nil {
		t.Error("Clone() of a missing repository should fail")
	}
}

func TestRepository_NotCloned(t *testing.T) {
	r, err := NewRepository(&config.GitConfig{Repository: "https://example.com/p.git", Branch: "main"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Pull(context.Background()); !errors.Is(err, ErrNotCloned) {
		t.Errorf("Pull() error = %v, want ErrNotCloned", err)
	}
	if _, err := r.CurrentCommit(); !errors.Is(err, ErrNotCloned) {
		t.Errorf("CurrentCommit() error = %v, want ErrNotCloned", err)
	}
	if err := r.Rollback(context.Background(), "abc"); !errors.Is(err, ErrNotCloned) {
		t.Errorf("Rollback() error = %v, want ErrNotCloned", err)
	}
}

func TestRepository_Pull(t *testing.T) {
	src := newSourceRepo(t)
	r := clonedRepo(t, src)
	first := src.head()

	res, err := r.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if res.HadChanges {
		t.Errorf("Pull() without new commits reported changes: %+v", res)
	}

	second := src.commit("faster overtakes", map[string]string{
		"policies/overtake.lua": "policy = function() set_target_speed(30) end\n",
		"policies/merge.lua":    "function merge() end\n",
	})

	res, err = r.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	want := &PullResult{
		FromSHA:      first,
		ToSHA:        second,
		HadChanges:   true,
		ChangedFiles: []string{"policies/merge.lua", "policies/overtake.lua"},
	}
	sort.Strings(res.ChangedFiles)
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Pull() mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(r.File("policies/overtake.lua"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "policy = function() set_target_speed(30) end\n" {
		t.Errorf("worktree not updated: %q", data)
	}
	if s := r.Stats(); s.SuccessfulPulls != 2 || s.FailedPulls != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestRepository_RollbackAndHistory(t *testing.T) {
	src := newSourceRepo(t)
	first := src.head()
	second := src.commit("second", map[string]string{"policies/overtake.lua": "-- v2\n"})
	r := clonedRepo(t, src)

	history, err := r.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	var got []string
	for _, c := range history {
		got = append(got, c.SHA)
	}
	if diff := cmp.Diff([]string{second, first}, got); diff != "" {
		t.Errorf("History() mismatch (-want +got):\n%s", diff)
	}
	if limited, _ := r.History(1); len(limited) != 1 {
		t.Errorf("History(1) returned %d commits", len(limited))
	}

	if err := r.Rollback(context.Background(), first); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	commit, err := r.CurrentCommit()
	if err != nil {
		t.Fatal(err)
	}
	if commit.SHA != first {
		t.Errorf("HEAD after rollback = %s, want %s", commit.Short(), shortSHA(first))
	}

	// The next pull moves forward again.
	res, err := r.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() after rollback error = %v", err)
	}
	if res.ToSHA != second {
		t.Errorf("Pull() after rollback ToSHA = %s, want %s", res.ToSHA, second)
	}

	if err := r.Rollback(context.Background(), "0000000000000000000000000000000000000000"); err == nil {
		t.Error("Rollback() to a missing commit should fail")
	}
}

func TestRepository_ChangedFilesDeleted(t *testing.T) {
	src := newSourceRepo(t)
	first := src.head()

	worktree, err := src.repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := worktree.Remove("README.md"); err != nil {
		t.Fatal(err)
	}
	second := src.commit("drop readme", nil)

	r := clonedRepo(t, src)
	files, err := r.ChangedFiles(first, second)
	if err != nil {
		t.Fatalf("ChangedFiles() error = %v", err)
	}
	if diff := cmp.Diff([]string{"README.md"}, files); diff != "" {
		t.Errorf("ChangedFiles() mismatch (-want +got):\n%s", diff)
	}
}
