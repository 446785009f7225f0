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

	"github.com/Masterminds/semver/v3"
	"github.com/beat-forge/mbss/internal/errors"
	"github.com/beat-forge/mbss/internal/git"
	"github.com/beat-forge/mbss/internal/manifest"
	"github.com/go-git/go-git/v5/plumbing"
)

// RebuildTail rebuilds the branch for from and every manifest entry
// after it, relinking each to the head of its rebuilt predecessor. The
// entry before from anchors the chain; it is resolved from its existing
// branch and must already exist unless from is the first entry. The
// latest pointer is updated afterwards.
func (r *Reconciler) RebuildTail(ctx context.Context, m *manifest.Manifest, from *semver.Version) (*Result, error) {
	const op errors.Op = "reconcile.RebuildTail"

	idx := m.IndexOf(from)
	if idx < 0 {
		return nil, errors.E(op, errors.Manifest, errors.Version(from.String()),
			fmt.Errorf("version %s is not in the manifest", from))
	}

	prev := plumbing.ZeroHash
	if idx > 0 {
		anchor := m.Versions[idx-1]
		hash, err := r.Repo.ResolveBranch(git.VersionBranch(anchor.Version))
		if err != nil {
			return nil, errors.E(op, errors.Version(anchor.Version.String()),
				fmt.Errorf("predecessor branch missing, run a full reconcile first: %w", err))
		}
		prev = hash
	}

	result := &Result{}
	for _, desc := range m.Versions[idx:] {
		hash, err := r.Builder.Build(ctx, desc, prev)
		if err != nil {
			return result, errors.E(op, err)
		}
		result.Outcomes = append(result.Outcomes, Outcome{Version: desc.Version, Action: Built, Head: hash})
		prev = hash
	}

	if err := r.updateLatest(ctx, prev); err != nil {
		return result, errors.E(op, err)
	}
	return result, nil
}
