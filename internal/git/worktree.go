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
	"os"
	"path/filepath"
	"time"

	"github.com/beat-forge/mbss/internal/errors"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	cp "github.com/otiai10/copy"
)

// VersionMarkerFile is the single-line marker written into every snapshot
// so consumers can identify the checked-out version without git tooling.
const VersionMarkerFile = "version.txt"

// initialCommitMessage is the message of the scaffold commit on main.
const initialCommitMessage = "feat: initial main branch"

func (r *Repository) worktree() (*gogit.Worktree, error) {
	return r.repo.Worktree()
}

// CheckoutBranch force-checks-out a local branch and removes untracked
// files, leaving the worktree exactly at the branch's snapshot.
func (r *Repository) CheckoutBranch(name string) error {
	const op errors.Op = "git.CheckoutBranch"

	w, err := r.worktree()
	if err != nil {
		return errors.E(op, errors.Git, err)
	}
	if err := w.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Force:  true,
	}); err != nil {
		return errors.E(op, errors.Git, err)
	}
	if err := w.Clean(&gogit.CleanOptions{Dir: true}); err != nil {
		return errors.E(op, errors.Git, err)
	}
	return nil
}

// CheckoutMain returns the worktree to the main branch.
func (r *Repository) CheckoutMain() error {
	return r.CheckoutBranch(MainBranch)
}

// ClearWorktree removes every entry of the working tree except the git
// control directory. Must run before a version's content is written; the
// worktree holds at most one version's tree at a time.
func (r *Repository) ClearWorktree() error {
	const op errors.Op = "git.ClearWorktree"

	entries, err := os.ReadDir(r.path)
	if err != nil {
		return errors.E(op, errors.IO, err)
	}
	for _, entry := range entries {
		if entry.Name() == gogit.GitDirName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(r.path, entry.Name())); err != nil {
			return errors.E(op, errors.IO, err)
		}
	}
	return nil
}

// ImportTree copies the content directory src into the working tree.
func (r *Repository) ImportTree(src string) error {
	const op errors.Op = "git.ImportTree"
	if err := cp.Copy(src, r.path); err != nil {
		return errors.E(op, errors.IO, err)
	}
	return nil
}

// WriteVersionMarker writes the newline-terminated version marker file
// into the working tree.
func (r *Repository) WriteVersionMarker(version string) error {
	const op errors.Op = "git.WriteVersionMarker"
	path := filepath.Join(r.path, VersionMarkerFile)
	if err := os.WriteFile(path, []byte(version+"\n"), 0644); err != nil {
		return errors.E(op, errors.IO, err)
	}
	return nil
}

// StartBranchAt points HEAD at the named branch so the next commit of the
// working tree lands there with exactly the intended parent: the branch
// ref is set to parent, or left unborn for a root commit.
func (r *Repository) StartBranchAt(name string, parent plumbing.Hash) error {
	const op errors.Op = "git.StartBranchAt"

	refName := plumbing.NewBranchReferenceName(name)
	if parent.IsZero() {
		switch err := r.repo.Storer.RemoveReference(refName); err {
		case nil, plumbing.ErrReferenceNotFound:
		default:
			return errors.E(op, errors.Git, err)
		}
	} else {
		if err := r.repo.Storer.SetReference(plumbing.NewHashReference(refName, parent)); err != nil {
			return errors.E(op, errors.Git, err)
		}
	}

	head := plumbing.NewSymbolicReference(plumbing.HEAD, refName)
	if err := r.repo.Storer.SetReference(head); err != nil {
		return errors.E(op, errors.Git, err)
	}
	return nil
}

// CommitAll stages every change in the working tree and commits it onto
// the branch HEAD points at, returning the new commit. The parent set is
// whatever StartBranchAt prepared: the branch head, or none when the
// branch is unborn.
func (r *Repository) CommitAll(message string) (plumbing.Hash, error) {
	const op errors.Op = "git.CommitAll"

	w, err := r.worktree()
	if err != nil {
		return plumbing.ZeroHash, errors.E(op, errors.Git, err)
	}
	if err := w.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return plumbing.ZeroHash, errors.E(op, errors.Git, err)
	}

	now := time.Now()
	signature := &object.Signature{
		Name:  r.authorName,
		Email: r.authorEmail,
		When:  now,
	}
	hash, err := w.Commit(message, &gogit.CommitOptions{
		Author:    signature,
		Committer: signature,
	})
	if err != nil {
		return plumbing.ZeroHash, errors.E(op, errors.Git, err)
	}
	return hash, nil
}

// EnsureInitialCommit creates the root commit of main from the content
// written by populate, unless main already exists. Returns whether the
// scaffold commit was created.
func (r *Repository) EnsureInitialCommit(populate func(dir string) error) (bool, error) {
	const op errors.Op = "git.EnsureInitialCommit"

	switch _, err := r.repo.Reference(DefaultMainReferenceName, false); err {
	case nil:
		return false, nil
	case plumbing.ErrReferenceNotFound:
		// fall through and create it
	default:
		return false, errors.E(op, errors.Git, err)
	}

	if err := r.StartBranchAt(MainBranch, plumbing.ZeroHash); err != nil {
		return false, errors.E(op, err)
	}
	if err := populate(r.path); err != nil {
		return false, errors.E(op, errors.IO, err)
	}
	if _, err := r.CommitAll(initialCommitMessage); err != nil {
		return false, errors.E(op, err)
	}
	return true, nil
}

// ReadFileFromBranch reads a file from the tree of a branch's head commit
// without touching the working tree.
func (r *Repository) ReadFileFromBranch(branch, path string) ([]byte, error) {
	const op errors.Op = "git.ReadFileFromBranch"

	hash, err := r.ResolveBranch(branch)
	if err != nil {
		return nil, errors.E(op, err)
	}
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, errors.E(op, errors.Git, err)
	}
	file, err := commit.File(path)
	if err != nil {
		return nil, errors.E(op, errors.Git, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, errors.E(op, errors.Git, err)
	}
	return []byte(contents), nil
}
