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

package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/beat-forge/mbss/internal/errors"
	"github.com/beat-forge/mbss/internal/git"
	"github.com/beat-forge/mbss/internal/manifest"
	"github.com/beat-forge/mbss/internal/tools"
	"github.com/go-git/go-git/v5/plumbing"
	"k8s.io/klog/v2"
)

// Builder materializes one version branch: fetch the release content,
// transform it, and commit the result on top of the predecessor's head.
type Builder struct {
	Repo        *git.Repository
	Fetcher     tools.Fetcher
	Transformer tools.Transformer

	// DownloadDir and StripDir hold per-version staging directories for
	// the raw and transformed content.
	DownloadDir string
	StripDir    string
}

// Build creates the branch for desc with parent as the sole parent
// commit, or no parent when parent is the zero hash. Any existing
// branch of the same name is deleted first. The branch is pushed on a
// best-effort basis; the returned hash is the new branch head.
func (b *Builder) Build(ctx context.Context, desc manifest.Descriptor, parent plumbing.Hash) (plumbing.Hash, error) {
	const op errors.Op = "reconcile.Build"
	version := errors.Version(desc.Version.String())

	downloadDir, err := b.stagingDir(b.DownloadDir, desc)
	if err != nil {
		return plumbing.ZeroHash, errors.E(op, version, errors.IO, err)
	}

	klog.Infof("fetching %s (manifest %s)", desc.Version, desc.ManifestRef)
	if err := b.Fetcher.Fetch(ctx, desc.ManifestRef, downloadDir); err != nil {
		return plumbing.ZeroHash, errors.E(op, version, err)
	}

	content := downloadDir
	if b.Transformer != nil {
		stripDir, err := b.stagingDir(b.StripDir, desc)
		if err != nil {
			return plumbing.ZeroHash, errors.E(op, version, errors.IO, err)
		}
		klog.Infof("transforming %s", desc.Version)
		if err := b.Transformer.Transform(ctx, downloadDir, stripDir); err != nil {
			return plumbing.ZeroHash, errors.E(op, version, err)
		}
		content = stripDir
	}

	branch := git.VersionBranch(desc.Version)
	if err := b.Repo.DeleteBranch(branch); err != nil {
		return plumbing.ZeroHash, errors.E(op, version, err)
	}
	if err := b.Repo.StartBranchAt(branch, parent); err != nil {
		return plumbing.ZeroHash, errors.E(op, version, err)
	}
	if err := b.Repo.ClearWorktree(); err != nil {
		return plumbing.ZeroHash, errors.E(op, version, err)
	}
	if err := b.Repo.ImportTree(content); err != nil {
		return plumbing.ZeroHash, errors.E(op, version, err)
	}
	if err := b.Repo.WriteVersionMarker(desc.Version.String()); err != nil {
		return plumbing.ZeroHash, errors.E(op, version, err)
	}

	hash, err := b.Repo.CommitAll(fmt.Sprintf("feat: update version to %s", desc.Version))
	if err != nil {
		return plumbing.ZeroHash, errors.E(op, version, err)
	}
	klog.Infof("built %s at %s", branch, hash)

	if err := b.Repo.Push(ctx, branch); err != nil {
		klog.Warningf("push of %s failed, continuing: %v", branch, err)
	}
	return hash, nil
}

// stagingDir returns a clean per-version directory under root.
func (b *Builder) stagingDir(root string, desc manifest.Descriptor) (string, error) {
	dir := filepath.Join(root, desc.Version.String())
	if err := os.RemoveAll(dir); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
