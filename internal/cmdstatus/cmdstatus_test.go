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

package cmdstatus

import (
	"bytes"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/beat-forge/mbss/internal/git"
	"github.com/beat-forge/mbss/internal/manifest"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchState(t *testing.T) {
	a := plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b := plumbing.NewHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	zero := plumbing.ZeroHash

	assert.Equal(t, "missing", branchState(zero, zero))
	assert.Equal(t, "remote only", branchState(zero, a))
	assert.Equal(t, "local only", branchState(a, zero))
	assert.Equal(t, "in sync", branchState(a, a))
	assert.Equal(t, "out of sync", branchState(a, b))
}

func TestRenderStatusTable(t *testing.T) {
	m, err := manifest.Parse([]byte(`{"versions": [
		{"version": "1.0.0", "manifest": "a"},
		{"version": "1.1.0", "manifest": "b"}
	]}`))
	require.NoError(t, err)

	local := plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	refs := map[string]*git.VersionRef{
		"1.0.0": {Version: semver.MustParse("1.0.0"), Local: local, Remote: local},
		"0.9.0": {Version: semver.MustParse("0.9.0"), Local: local},
	}

	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	renderStatusTable(cmd, m, refs)

	rendered := out.String()
	assert.Contains(t, rendered, "version/1.0.0")
	assert.Contains(t, rendered, "in sync")
	assert.Contains(t, rendered, "missing")
	// A branch outside the manifest is reported as orphaned.
	assert.Contains(t, rendered, "orphaned")
	assert.Contains(t, rendered, "version/0.9.0")
	assert.Contains(t, rendered, "aaaaaaaa")
}
