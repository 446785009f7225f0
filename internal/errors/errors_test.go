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

package errors

import (
	"fmt"
	"testing"

	"github.com/beat-forge/mbss/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorRendering(t *testing.T) {
	err := E(Op("reconcile.Build"), Version("1.29.1"), Fetch, fmt.Errorf("connection refused"))
	assert.Equal(t, "reconcile.Build: version 1.29.1: fetch error: connection refused", err.Error())
}

func TestErrorRenderingWithPath(t *testing.T) {
	err := E(Op("scaffold.Write"), types.UniquePath("/tmp/archive"), IO, fmt.Errorf("disk full"))
	assert.Equal(t, "scaffold.Write: path /tmp/archive: io error: disk full", err.Error())
}

func TestNestedErrorDeduplicatesFields(t *testing.T) {
	inner := E(Op("git.Push"), Version("1.29.1"), Git, fmt.Errorf("remote hung up"))
	outer := E(Op("reconcile.Reconcile"), Version("1.29.1"), inner)

	// The version appears once, on the outermost error.
	msg := outer.Error()
	assert.Equal(t, "reconcile.Reconcile: version 1.29.1:\n\tgit.Push: git error: remote hung up", msg)
}

func TestIsWalksWrappedChain(t *testing.T) {
	inner := E(Op("tools.Fetch"), Fetch, fmt.Errorf("exit status 1"))
	outer := E(Op("reconcile.Build"), Version("1.0.0"), inner)

	assert.True(t, Is(outer, Fetch))
	assert.False(t, Is(outer, Transform))
	assert.False(t, Is(fmt.Errorf("plain"), Fetch))
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := E(Op("config.Load"), Config, cause)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.ErrorIs(t, err, cause)
}

func TestStringArgBecomesError(t *testing.T) {
	err := E(Op("config.Validate"), Config, "repo_path must not be empty")
	assert.Contains(t, err.Error(), "repo_path must not be empty")
}
