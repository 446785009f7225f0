// Copyright 2024 The mbss Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "archive"), Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return repo
}

func scaffoldReadme(dir string) error {
	return os.WriteFile(filepath.Join(dir, "README.md"), []byte("archive\n"), 0644)
}

// commitVersion builds one version branch the way the reconciler does:
// point HEAD at the branch with the intended parent, replace the working
// tree content, and commit everything.
func commitVersion(t *testing.T, r *Repository, version string, parent plumbing.Hash) plumbing.Hash {
	t.Helper()

	branch := versionBranchPrefix + version
	if err := r.StartBranchAt(branch, parent); err != nil {
		t.Fatalf("StartBranchAt(%s) failed: %v", branch, err)
	}
	if err := r.ClearWorktree(); err != nil {
		t.Fatalf("ClearWorktree failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(r.Path(), "game.dll"), []byte("content "+version), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := r.WriteVersionMarker(version); err != nil {
		t.Fatalf("WriteVersionMarker failed: %v", err)
	}
	hash, err := r.CommitAll("feat: update version to " + version)
	if err != nil {
		t.Fatalf("CommitAll failed: %v", err)
	}
	return hash
}

func TestOpenInitializesEmptyRepository(t *testing.T) {
	repo := openTestRepo(t)

	if _, err := os.Stat(filepath.Join(repo.Path(), gogit.GitDirName)); err != nil {
		t.Errorf("expected a .git directory: %v", err)
	}
	if repo.BranchExists(MainBranch) {
		t.Errorf("main should be unborn in a fresh repository")
	}

	// Reopening must not reinitialize.
	if _, err := Open(repo.Path(), Options{}); err != nil {
		t.Errorf("reopen failed: %v", err)
	}
}

func TestEnsureInitialCommit(t *testing.T) {
	repo := openTestRepo(t)

	created, err := repo.EnsureInitialCommit(scaffoldReadme)
	if err != nil {
		t.Fatalf("EnsureInitialCommit failed: %v", err)
	}
	if !created {
		t.Fatalf("expected the scaffold commit to be created")
	}

	head, err := repo.ResolveBranch(MainBranch)
	if err != nil {
		t.Fatalf("ResolveBranch(main) failed: %v", err)
	}
	commit, err := repo.Commit(head)
	if err != nil {
		t.Fatalf("Commit lookup failed: %v", err)
	}
	if commit.NumParents() != 0 {
		t.Errorf("scaffold commit has %d parents, want 0", commit.NumParents())
	}

	created, err = repo.EnsureInitialCommit(scaffoldReadme)
	if err != nil {
		t.Fatalf("second EnsureInitialCommit failed: %v", err)
	}
	if created {
		t.Errorf("EnsureInitialCommit must be a no-op when main exists")
	}
}

func TestVersionBranchChain(t *testing.T) {
	repo := openTestRepo(t)
	if _, err := repo.EnsureInitialCommit(scaffoldReadme); err != nil {
		t.Fatalf("EnsureInitialCommit failed: %v", err)
	}

	first := commitVersion(t, repo, "1.0.0", plumbing.ZeroHash)
	second := commitVersion(t, repo, "1.1.0", first)

	firstCommit, err := repo.Commit(first)
	if err != nil {
		t.Fatalf("Commit lookup failed: %v", err)
	}
	if firstCommit.NumParents() != 0 {
		t.Errorf("first version commit has %d parents, want 0", firstCommit.NumParents())
	}

	secondCommit, err := repo.Commit(second)
	if err != nil {
		t.Fatalf("Commit lookup failed: %v", err)
	}
	if secondCommit.NumParents() != 1 {
		t.Fatalf("second version commit has %d parents, want 1", secondCommit.NumParents())
	}
	if secondCommit.ParentHashes[0] != first {
		t.Errorf("second version parent = %s, want %s", secondCommit.ParentHashes[0], first)
	}

	marker, err := repo.ReadFileFromBranch("version/1.1.0", VersionMarkerFile)
	if err != nil {
		t.Fatalf("ReadFileFromBranch failed: %v", err)
	}
	if string(marker) != "1.1.0\n" {
		t.Errorf("version marker = %q, want %q", marker, "1.1.0\n")
	}

	// The first version's content must not leak into the second snapshot.
	if _, err := repo.ReadFileFromBranch("version/1.1.0", "README.md"); err == nil {
		t.Errorf("scaffold file should not be part of a version snapshot")
	}
}

func TestClearWorktreeKeepsGitDir(t *testing.T) {
	repo := openTestRepo(t)
	if _, err := repo.EnsureInitialCommit(scaffoldReadme); err != nil {
		t.Fatalf("EnsureInitialCommit failed: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(repo.Path(), "plugins"), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	if err := repo.ClearWorktree(); err != nil {
		t.Fatalf("ClearWorktree failed: %v", err)
	}

	entries, err := os.ReadDir(repo.Path())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != gogit.GitDirName {
		t.Errorf("worktree not cleared, entries: %v", entries)
	}
}

func TestDeleteBranch(t *testing.T) {
	repo := openTestRepo(t)
	if _, err := repo.EnsureInitialCommit(scaffoldReadme); err != nil {
		t.Fatalf("EnsureInitialCommit failed: %v", err)
	}
	commitVersion(t, repo, "1.0.0", plumbing.ZeroHash)

	// The branch is checked out; deletion must move HEAD off it first.
	if err := repo.DeleteBranch("version/1.0.0"); err != nil {
		t.Fatalf("DeleteBranch failed: %v", err)
	}
	if repo.BranchExists("version/1.0.0") {
		t.Errorf("branch still exists after deletion")
	}
	if current, ok := repo.currentBranch(); !ok || current != MainBranch {
		t.Errorf("HEAD on %q after deletion, want %q", current, MainBranch)
	}

	if err := repo.DeleteBranch("version/1.0.0"); err != nil {
		t.Errorf("deleting an absent branch should be a no-op, got %v", err)
	}
}

func TestParseVersionBranch(t *testing.T) {
	tests := []struct {
		name    string
		version string
		ok      bool
	}{
		{"version/1.29.1", "1.29.1", true},
		{"version/1.0.0-beta.1", "1.0.0-beta.1", true},
		{"version/1.29", "", false},
		{"versions/latest", "", false},
		{"main", "", false},
		{"version/", "", false},
	}
	for _, tc := range tests {
		v, ok := ParseVersionBranch(tc.name)
		if ok != tc.ok {
			t.Errorf("ParseVersionBranch(%q) ok = %v, want %v", tc.name, ok, tc.ok)
			continue
		}
		if ok && v.String() != tc.version {
			t.Errorf("ParseVersionBranch(%q) = %s, want %s", tc.name, v, tc.version)
		}
	}
}

func TestVersionRefsAndSortedVersions(t *testing.T) {
	repo := openTestRepo(t)
	if _, err := repo.EnsureInitialCommit(scaffoldReadme); err != nil {
		t.Fatalf("EnsureInitialCommit failed: %v", err)
	}

	prev := plumbing.ZeroHash
	for _, v := range []string{"1.0.0", "1.10.0", "1.2.0"} {
		prev = commitVersion(t, repo, v, prev)
	}
	if err := repo.CreateBranch(LatestBranch, prev); err != nil {
		t.Fatalf("CreateBranch(%s) failed: %v", LatestBranch, err)
	}

	refs, err := repo.VersionRefs()
	if err != nil {
		t.Fatalf("VersionRefs failed: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("got %d version refs, want 3: %v", len(refs), refs)
	}
	for _, v := range []string{"1.0.0", "1.10.0", "1.2.0"} {
		ref := refs[v]
		if ref == nil || ref.Local.IsZero() {
			t.Errorf("missing local ref for %s", v)
		}
		if ref != nil && !ref.Remote.IsZero() {
			t.Errorf("unexpected remote ref for %s", v)
		}
	}

	var sorted []string
	for _, v := range SortedVersions(refs) {
		sorted = append(sorted, v.String())
	}
	want := []string{"1.0.0", "1.2.0", "1.10.0"}
	for i := range want {
		if sorted[i] != want[i] {
			t.Fatalf("sorted versions = %v, want %v", sorted, want)
		}
	}
}

func TestFastForwardAndIsAncestor(t *testing.T) {
	repo := openTestRepo(t)
	if _, err := repo.EnsureInitialCommit(scaffoldReadme); err != nil {
		t.Fatalf("EnsureInitialCommit failed: %v", err)
	}

	first := commitVersion(t, repo, "1.0.0", plumbing.ZeroHash)
	second := commitVersion(t, repo, "1.1.0", first)

	behind, err := repo.IsAncestor(first, second)
	if err != nil {
		t.Fatalf("IsAncestor failed: %v", err)
	}
	if !behind {
		t.Errorf("first commit should be an ancestor of the second")
	}
	ahead, err := repo.IsAncestor(second, first)
	if err != nil {
		t.Fatalf("IsAncestor failed: %v", err)
	}
	if ahead {
		t.Errorf("second commit must not be an ancestor of the first")
	}

	if err := repo.CreateBranch("version/0.9.0", first); err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}
	if err := repo.FastForward("version/0.9.0", second); err != nil {
		t.Fatalf("FastForward failed: %v", err)
	}
	head, err := repo.ResolveBranch("version/0.9.0")
	if err != nil {
		t.Fatalf("ResolveBranch failed: %v", err)
	}
	if head != second {
		t.Errorf("fast-forwarded head = %s, want %s", head, second)
	}
}

func TestPushAndFetch(t *testing.T) {
	ctx := context.Background()
	remote, url := InitBareRemote(t, filepath.Join(t.TempDir(), "mirror"))

	repo, err := Open(filepath.Join(t.TempDir(), "archive"), Options{Remote: url})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := repo.EnsureInitialCommit(scaffoldReadme); err != nil {
		t.Fatalf("EnsureInitialCommit failed: %v", err)
	}

	if err := repo.Push(ctx, MainBranch); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	localMain, err := repo.ResolveBranch(MainBranch)
	if err != nil {
		t.Fatalf("ResolveBranch failed: %v", err)
	}
	remoteMain, err := remote.Reference(DefaultMainReferenceName, false)
	if err != nil {
		t.Fatalf("mirror has no main branch: %v", err)
	}
	if remoteMain.Hash() != localMain {
		t.Errorf("mirror main = %s, want %s", remoteMain.Hash(), localMain)
	}

	// A version branch that exists only on the mirror must show up in the
	// index after a fetch.
	seeded := CreateTestCommit(t, remote, plumbing.ZeroHash, "seed", "game.dll", "mirror content")
	SetTestBranch(t, remote, "version/9.9.9", seeded)

	if err := repo.Fetch(ctx); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	refs, err := repo.VersionRefs()
	if err != nil {
		t.Fatalf("VersionRefs failed: %v", err)
	}
	ref := refs["9.9.9"]
	if ref == nil || ref.Remote != seeded {
		t.Errorf("remote-only branch not discovered: %+v", ref)
	}
	if ref != nil && !ref.Local.IsZero() {
		t.Errorf("fetch must not create local branches")
	}
}
