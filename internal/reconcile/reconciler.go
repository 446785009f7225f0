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

// Package reconcile drives the version archive toward the state the
// manifest declares. Each manifest entry corresponds to one version
// branch; the branches form a chain in which every head has its
// predecessor's head as its only parent.
package reconcile

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/beat-forge/mbss/internal/errors"
	"github.com/beat-forge/mbss/internal/git"
	"github.com/beat-forge/mbss/internal/manifest"
	"github.com/go-git/go-git/v5/plumbing"
	"k8s.io/klog/v2"
)

// Action classifies what the reconciler did for one version.
type Action string

const (
	// Built means the branch was created or rebuilt from release content.
	Built Action = "Built"
	// Kept means an existing local branch was left untouched.
	Kept Action = "Kept"
	// FastForwarded means the local branch was advanced to the remote head.
	FastForwarded Action = "FastForwarded"
	// CreatedFromRemote means a local branch was created at an existing
	// remote head, skipping the build.
	CreatedFromRemote Action = "CreatedFromRemote"
)

// Outcome records the action taken for one version.
type Outcome struct {
	Version *semver.Version
	Action  Action
	Head    plumbing.Hash
}

// Result is the per-version outcome of one reconciliation pass.
type Result struct {
	Outcomes []Outcome
}

// Reconciler walks the manifest in declared order and brings each
// version branch into existence, fast-forwarding from the remote where
// possible and building locally otherwise. The first failure aborts the
// pass; branches already reconciled stay in place.
type Reconciler struct {
	Repo    *git.Repository
	Builder *Builder
}

// Reconcile processes every manifest entry in declared order and then
// repoints the latest pointer at the final entry's branch head.
func (r *Reconciler) Reconcile(ctx context.Context, m *manifest.Manifest) (*Result, error) {
	const op errors.Op = "reconcile.Reconcile"

	inspector := &Inspector{Repo: r.Repo}
	refs, err := inspector.Discover(ctx)
	if err != nil {
		return nil, errors.E(op, err)
	}

	result := &Result{}
	prev := plumbing.ZeroHash
	for _, desc := range m.Versions {
		outcome, err := r.reconcileVersion(ctx, desc, refs[desc.Version.String()], prev)
		if err != nil {
			return result, errors.E(op, err)
		}
		result.Outcomes = append(result.Outcomes, outcome)
		prev = outcome.Head
	}

	if len(m.Versions) > 0 {
		if err := r.updateLatest(ctx, prev); err != nil {
			return result, errors.E(op, err)
		}
	}
	return result, nil
}

// reconcileVersion decides what to do for one manifest entry given the
// branch state on both sides. prev is the reconciled head of the
// predecessor entry, or the zero hash for the first entry.
func (r *Reconciler) reconcileVersion(ctx context.Context, desc manifest.Descriptor, ref *git.VersionRef, prev plumbing.Hash) (Outcome, error) {
	version := errors.Version(desc.Version.String())
	branch := git.VersionBranch(desc.Version)

	local := plumbing.ZeroHash
	remote := plumbing.ZeroHash
	if ref != nil {
		local = ref.Local
		remote = ref.Remote
	}

	switch {
	case local.IsZero() && remote.IsZero():
		hash, err := r.Builder.Build(ctx, desc, prev)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Version: desc.Version, Action: Built, Head: hash}, nil

	case local.IsZero():
		if err := r.Repo.CreateBranch(branch, remote); err != nil {
			return Outcome{}, errors.E(version, err)
		}
		klog.Infof("created %s from remote head %s", branch, remote)
		return Outcome{Version: desc.Version, Action: CreatedFromRemote, Head: remote}, nil

	case remote.IsZero() || local == remote:
		r.checkLinkage(desc, local, prev)
		return Outcome{Version: desc.Version, Action: Kept, Head: local}, nil

	default:
		localBehind, err := r.Repo.IsAncestor(local, remote)
		if err != nil {
			return Outcome{}, errors.E(version, err)
		}
		if localBehind {
			if err := r.Repo.FastForward(branch, remote); err != nil {
				return Outcome{}, errors.E(version, err)
			}
			klog.Infof("fast-forwarded %s to %s", branch, remote)
			return Outcome{Version: desc.Version, Action: FastForwarded, Head: remote}, nil
		}
		remoteBehind, err := r.Repo.IsAncestor(remote, local)
		if err != nil {
			return Outcome{}, errors.E(version, err)
		}
		if remoteBehind {
			return Outcome{Version: desc.Version, Action: Kept, Head: local}, nil
		}
		return Outcome{}, errors.E(version, errors.Git,
			fmt.Errorf("branch %s has diverged from its remote (local %s, remote %s); resolve manually or rebuild with cascade", branch, local, remote))
	}
}

// checkLinkage warns when a kept branch head is not chained to the
// reconciled predecessor. This happens after an entry is inserted into
// the middle of the manifest; the successors need an explicit cascade
// rebuild to relink.
func (r *Reconciler) checkLinkage(desc manifest.Descriptor, head, prev plumbing.Hash) {
	commit, err := r.Repo.Commit(head)
	if err != nil {
		klog.Warningf("cannot inspect head of %s: %v", git.VersionBranch(desc.Version), err)
		return
	}
	switch {
	case prev.IsZero():
		if commit.NumParents() != 0 {
			klog.Warningf("%s should be the chain root but has a parent; run cascade --from %s to relink", git.VersionBranch(desc.Version), desc.Version)
		}
	case commit.NumParents() != 1 || commit.ParentHashes[0] != prev:
		klog.Warningf("%s is not chained to its predecessor; run cascade --from %s to relink", git.VersionBranch(desc.Version), desc.Version)
	}
}

// updateLatest deletes and recreates the latest pointer at head, then
// pushes it on a best-effort basis.
func (r *Reconciler) updateLatest(ctx context.Context, head plumbing.Hash) error {
	if err := r.Repo.DeleteBranch(git.LatestBranch); err != nil {
		return err
	}
	if err := r.Repo.CreateBranch(git.LatestBranch, head); err != nil {
		return err
	}
	klog.Infof("updated %s to %s", git.LatestBranch, head)
	if err := r.Repo.Push(ctx, git.LatestBranch); err != nil {
		klog.Warningf("push of %s failed, continuing: %v", git.LatestBranch, err)
	}
	return nil
}
