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

package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/beat-forge/mbss/internal/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePreservesDeclaredOrder(t *testing.T) {
	data := []byte(`{
		"versions": [
			{"version": "1.29.1", "manifest": "8538172816899473742"},
			{"version": "1.13.2", "manifest": "2181377828725279073"},
			{"version": "1.29.4", "manifest": "1472863364235193342"}
		]
	}`)

	m, err := Parse(data)
	require.NoError(t, err)

	var got []string
	for _, d := range m.Versions {
		got = append(got, d.Version.String())
	}
	want := []string{"1.29.1", "1.13.2", "1.29.4"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected version order (-want, +got): %s", diff)
	}
	assert.Equal(t, "2181377828725279073", m.Versions[1].ManifestRef)
}

func TestParseRejectsDuplicateVersions(t *testing.T) {
	data := []byte(`{
		"versions": [
			{"version": "1.0.0", "manifest": "a"},
			{"version": "1.0.0", "manifest": "b"}
		]
	}`)

	_, err := Parse(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.Manifest))
}

func TestParseRejectsEmptyManifestRef(t *testing.T) {
	_, err := Parse([]byte(`{"versions": [{"version": "1.0.0", "manifest": ""}]}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.Manifest))
}

func TestParseRejectsLooseVersions(t *testing.T) {
	// Partial versions like "1.29" are ambiguous in branch names.
	_, err := Parse([]byte(`{"versions": [{"version": "1.29", "manifest": "a"}]}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.Manifest))
}

func TestParseEmptyDocument(t *testing.T) {
	m, err := Parse([]byte(`{"versions": []}`))
	require.NoError(t, err)
	assert.Empty(t, m.Versions)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	content := `{"versions": [{"version": "1.2.3", "manifest": "42"}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	m, err := Load(path)
	require.NoError(t, err)
	require.Len(t, m.Versions, 1)
	assert.Equal(t, "1.2.3", m.Versions[0].Version.String())
}

func TestIndexOfAndTailAfter(t *testing.T) {
	m, err := Parse([]byte(`{
		"versions": [
			{"version": "1.0.0", "manifest": "a"},
			{"version": "2.0.0", "manifest": "b"},
			{"version": "1.5.0", "manifest": "c"}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, 1, m.IndexOf(semver.MustParse("2.0.0")))
	assert.Equal(t, -1, m.IndexOf(semver.MustParse("9.9.9")))

	// Tail follows declared order, not semver order.
	tail := m.TailAfter(semver.MustParse("2.0.0"))
	require.Len(t, tail, 1)
	assert.Equal(t, "1.5.0", tail[0].Version.String())

	assert.Empty(t, m.TailAfter(semver.MustParse("1.5.0")))
	assert.Nil(t, m.TailAfter(semver.MustParse("9.9.9")))
}
