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

// Package git implements the commit-graph store of the version archive on
// top of go-git: a worktree-backed repository whose `version/<semver>`
// branches each point at one immutable release snapshot, plus the movable
// `versions/latest` pointer and an optional remote mirror.
package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/beat-forge/mbss/internal/errors"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"k8s.io/klog/v2"
)

const (
	// OriginName is the name of the mirror remote.
	OriginName = "origin"

	// DefaultMainReferenceName is where HEAD points in a fresh archive.
	DefaultMainReferenceName plumbing.ReferenceName = "refs/heads/main"
)

// CredentialProvider supplies the auth method for remote operations.
// A nil provider (or a nil result) means anonymous access.
type CredentialProvider func() transport.AuthMethod

// Options configures an archive repository.
type Options struct {
	// Remote is the URL of the mirror. Empty disables all remote
	// operations.
	Remote string

	// Credentials authenticates fetches and pushes against the mirror.
	Credentials CredentialProvider

	// AuthorName and AuthorEmail form the commit identity.
	AuthorName  string
	AuthorEmail string
}

// Repository is the archive store. It owns the single working tree; callers
// must serialize access externally, branch and worktree mutations are not
// safe for concurrent writers.
type Repository struct {
	repo        *gogit.Repository
	path        string
	remote      string
	credentials CredentialProvider
	authorName  string
	authorEmail string
}

// Open opens the archive repository at path, initializing an empty one
// (HEAD on an unborn main branch) when none exists. When a remote URL is
// configured the origin remote is created or updated to match.
func Open(path string, opts Options) (*Repository, error) {
	const op errors.Op = "git.Open"

	var repo *gogit.Repository
	if fi, err := os.Stat(filepath.Join(path, gogit.GitDirName)); err == nil && fi.IsDir() {
		repo, err = gogit.PlainOpen(path)
		if err != nil {
			return nil, errors.E(op, errors.Git, err)
		}
	} else {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, errors.E(op, errors.IO, err)
		}
		repo, err = initEmptyRepository(path)
		if err != nil {
			return nil, errors.E(op, errors.Git, err)
		}
	}

	if opts.Remote != "" {
		if err := initializeOrigin(repo, opts.Remote); err != nil {
			return nil, errors.E(op, errors.Git, err)
		}
	}

	authorName := opts.AuthorName
	if authorName == "" {
		authorName = "MBSS"
	}
	authorEmail := opts.AuthorEmail
	if authorEmail == "" {
		authorEmail = "mbss@beatforge.net"
	}

	return &Repository{
		repo:        repo,
		path:        path,
		remote:      opts.Remote,
		credentials: opts.Credentials,
		authorName:  authorName,
		authorEmail: authorEmail,
	}, nil
}

// initEmptyRepository initializes a non-bare repository with HEAD pointing
// at an unborn main branch.
func initEmptyRepository(path string) (*gogit.Repository, error) {
	repo, err := gogit.PlainInit(path, false)
	if err != nil {
		return nil, err
	}
	if err := initializeDefaultBranches(repo); err != nil {
		return nil, err
	}
	return repo, nil
}

func initializeDefaultBranches(repo *gogit.Repository) error {
	// gogit points HEAD at master; point it at main
	main := plumbing.NewSymbolicReference(plumbing.HEAD, DefaultMainReferenceName)
	return repo.Storer.SetReference(main)
}

func initializeOrigin(repo *gogit.Repository, address string) error {
	cfg, err := repo.Config()
	if err != nil {
		return err
	}

	cfg.Remotes[OriginName] = &config.RemoteConfig{
		Name:  OriginName,
		URLs:  []string{address},
		Fetch: []config.RefSpec{"+refs/heads/*:refs/remotes/" + OriginName + "/*"},
	}

	return repo.SetConfig(cfg)
}

// Path returns the worktree root of the archive.
func (r *Repository) Path() string {
	return r.path
}

// HasRemote reports whether a mirror is configured.
func (r *Repository) HasRemote() bool {
	return r.remote != ""
}

func (r *Repository) auth() transport.AuthMethod {
	if r.credentials == nil {
		return nil
	}
	return r.credentials()
}

// Fetch refreshes the remote-tracking refs from the mirror. Without a
// configured mirror this is a no-op. An empty or already-up-to-date mirror
// is not an error.
func (r *Repository) Fetch(ctx context.Context) error {
	const op errors.Op = "git.Fetch"

	if r.remote == "" {
		return nil
	}

	switch err := r.repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: OriginName,
		Auth:       r.auth(),
		Tags:       gogit.NoTags,
		Force:      true,
	}); err {
	case nil, gogit.NoErrAlreadyUpToDate, transport.ErrEmptyRemoteRepository:
		return nil
	default:
		return errors.E(op, errors.Git, err)
	}
}

// Push force-updates the given branch on the mirror. Without a configured
// mirror this is a no-op; an already-up-to-date mirror is not an error.
// Callers treat a failure as a warning, the local commit stands and the
// mirror is eventually consistent.
func (r *Repository) Push(ctx context.Context, branch string) error {
	const op errors.Op = "git.Push"

	if r.remote == "" {
		return nil
	}

	refSpec := config.RefSpec(fmt.Sprintf("+refs/heads/%[1]s:refs/heads/%[1]s", branch))
	klog.Infof("pushing %s to %s", branch, OriginName)

	switch err := r.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: OriginName,
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       r.auth(),
	}); err {
	case nil, gogit.NoErrAlreadyUpToDate:
		return nil
	default:
		return errors.E(op, errors.Git, err)
	}
}

// Commit resolves a commit hash to its object.
func (r *Repository) Commit(hash plumbing.Hash) (*object.Commit, error) {
	const op errors.Op = "git.Commit"
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, errors.E(op, errors.Git, err)
	}
	return commit, nil
}

// IsAncestor reports whether commit a is an ancestor of commit b.
func (r *Repository) IsAncestor(a, b plumbing.Hash) (bool, error) {
	const op errors.Op = "git.IsAncestor"
	commitA, err := r.repo.CommitObject(a)
	if err != nil {
		return false, errors.E(op, errors.Git, err)
	}
	commitB, err := r.repo.CommitObject(b)
	if err != nil {
		return false, errors.E(op, errors.Git, err)
	}
	ok, err := commitA.IsAncestor(commitB)
	if err != nil {
		return false, errors.E(op, errors.Git, err)
	}
	return ok, nil
}
