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
	"io"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/beat-forge/mbss/internal/errors"
	"github.com/go-git/go-git/v5/plumbing"
	"k8s.io/klog/v2"
)

const (
	// MainBranch carries the manifest and the bootstrap assets.
	MainBranch = "main"

	// LatestBranch always targets the snapshot of the highest
	// manifest-order version of the most recent successful run.
	LatestBranch = "versions/latest"

	versionBranchPrefix = "version/"

	localBranchPrefix    = "refs/heads/"
	remoteTrackingPrefix = "refs/remotes/" + OriginName + "/"
)

// VersionBranch returns the branch name for a version snapshot.
func VersionBranch(v *semver.Version) string {
	return versionBranchPrefix + v.String()
}

// ParseVersionBranch parses a branch name of the form version/<semver>.
// Branch names that don't carry a strict semantic version are not version
// branches and are reported as such, never as an error.
func ParseVersionBranch(name string) (*semver.Version, bool) {
	suffix, ok := trimOptionalPrefix(name, versionBranchPrefix)
	if !ok {
		return nil, false
	}
	v, err := semver.StrictNewVersion(suffix)
	if err != nil {
		return nil, false
	}
	return v, true
}

func trimOptionalPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return strings.TrimPrefix(s, prefix), true
	}
	return "", false
}

// VersionRef records where one version's branch points, on the local and
// the remote-tracking side. A zero hash means the branch is absent on that
// side.
type VersionRef struct {
	Version *semver.Version
	Local   plumbing.Hash
	Remote  plumbing.Hash
}

// VersionRefs builds the index of all version branches, local and
// remote-tracking, keyed by canonical version string. The index is built
// once per reconciliation run; refs whose suffix is not a semantic version
// are skipped.
func (r *Repository) VersionRefs() (map[string]*VersionRef, error) {
	const op errors.Op = "git.VersionRefs"

	refs, err := r.repo.References()
	if err != nil {
		return nil, errors.E(op, errors.Git, err)
	}

	index := map[string]*VersionRef{}
	entry := func(v *semver.Version) *VersionRef {
		key := v.String()
		if vr, ok := index[key]; ok {
			return vr
		}
		vr := &VersionRef{Version: v}
		index[key] = vr
		return vr
	}

	for {
		ref, err := refs.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.E(op, errors.Git, err)
		}

		name := ref.Name().String()
		switch {
		case strings.HasPrefix(name, localBranchPrefix):
			branch := strings.TrimPrefix(name, localBranchPrefix)
			v, ok := ParseVersionBranch(branch)
			if !ok {
				continue
			}
			entry(v).Local = ref.Hash()

		case strings.HasPrefix(name, remoteTrackingPrefix):
			branch := strings.TrimPrefix(name, remoteTrackingPrefix)
			v, ok := ParseVersionBranch(branch)
			if !ok {
				continue
			}
			entry(v).Remote = ref.Hash()
		}
	}

	return index, nil
}

// SortedVersions returns the versions of the index in semver order.
func SortedVersions(index map[string]*VersionRef) []*semver.Version {
	versions := make([]*semver.Version, 0, len(index))
	for _, vr := range index {
		versions = append(versions, vr.Version)
	}
	sort.Sort(semver.Collection(versions))
	return versions
}

// ResolveBranch resolves a local branch name to the commit it targets.
func (r *Repository) ResolveBranch(name string) (plumbing.Hash, error) {
	const op errors.Op = "git.ResolveBranch"
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if err != nil {
		return plumbing.ZeroHash, errors.E(op, errors.Git, err)
	}
	return ref.Hash(), nil
}

// BranchExists reports whether a local branch exists.
func (r *Repository) BranchExists(name string) bool {
	_, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), false)
	return err == nil
}

// CreateBranch creates or overwrites a local branch at the given commit.
func (r *Repository) CreateBranch(name string, hash plumbing.Hash) error {
	const op errors.Op = "git.CreateBranch"
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), hash)
	if err := r.repo.Storer.SetReference(ref); err != nil {
		return errors.E(op, errors.Git, err)
	}
	return nil
}

// DeleteBranch removes a local branch. When the branch is currently
// checked out, the worktree is switched to main first so the deletion
// never leaves HEAD dangling. Deleting an absent branch is a no-op.
func (r *Repository) DeleteBranch(name string) error {
	const op errors.Op = "git.DeleteBranch"

	refName := plumbing.NewBranchReferenceName(name)
	if _, err := r.repo.Reference(refName, false); err == plumbing.ErrReferenceNotFound {
		return nil
	} else if err != nil {
		return errors.E(op, errors.Git, err)
	}

	if current, ok := r.currentBranch(); ok && current == name {
		klog.Infof("branch %s is checked out, switching to %s before deleting", name, MainBranch)
		if err := r.CheckoutBranch(MainBranch); err != nil {
			return errors.E(op, err)
		}
	}

	if err := r.repo.Storer.RemoveReference(refName); err != nil {
		return errors.E(op, errors.Git, err)
	}
	return nil
}

// FastForward retargets a local branch to a commit that is known to be a
// descendant of its current head. The worktree follows when the branch is
// checked out.
func (r *Repository) FastForward(name string, hash plumbing.Hash) error {
	const op errors.Op = "git.FastForward"

	checkedOut := false
	if current, ok := r.currentBranch(); ok && current == name {
		checkedOut = true
	}

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), hash)
	if err := r.repo.Storer.SetReference(ref); err != nil {
		return errors.E(op, errors.Git, err)
	}

	if checkedOut {
		if err := r.CheckoutBranch(name); err != nil {
			return errors.E(op, err)
		}
	}
	return nil
}

// currentBranch returns the short name of the branch HEAD points at.
// The second return value is false when HEAD is detached or unborn.
func (r *Repository) currentBranch() (string, bool) {
	head, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", false
	}
	if head.Type() != plumbing.SymbolicReference {
		return "", false
	}
	target := head.Target()
	if !target.IsBranch() {
		return "", false
	}
	// Unborn branches have a symbolic HEAD but no target ref yet.
	if _, err := r.repo.Reference(target, false); err != nil {
		return "", false
	}
	return strings.TrimPrefix(target.String(), localBranchPrefix), true
}
