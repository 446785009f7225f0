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

// Package manifest loads the declarative list of artifact versions that
// drives reconciliation.
//
// The manifest is an ordered document; insertion order is the declared
// release order and is deliberately NOT re-sorted. An entry appended later
// may carry an older version number, and the reconciler depends on seeing
// the list exactly as the author wrote it.
package manifest

import (
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/beat-forge/mbss/internal/errors"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the manifest file name looked up in the main branch
// of the archive repository.
const DefaultFileName = "versions.json"

// Descriptor identifies one release of the archived artifact.
type Descriptor struct {
	// Version is the release's semantic version. Ordering between
	// descriptors is standard semver precedence.
	Version *semver.Version

	// ManifestRef is the opaque identifier the fetch tool uses to retrieve
	// the release's content.
	ManifestRef string
}

// Manifest is the ordered list of known releases.
type Manifest struct {
	Versions []Descriptor
}

type rawManifest struct {
	Versions []rawDescriptor `yaml:"versions"`
}

type rawDescriptor struct {
	Version  string `yaml:"version"`
	Manifest string `yaml:"manifest"`
}

// Parse decodes a manifest document. YAML is a superset of JSON, so both
// the historical versions.json format and YAML manifests load here.
func Parse(data []byte) (*Manifest, error) {
	const op errors.Op = "manifest.Parse"

	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.E(op, errors.Manifest, err)
	}

	m := &Manifest{}
	seen := map[string]bool{}
	for i, rd := range raw.Versions {
		v, err := semver.StrictNewVersion(rd.Version)
		if err != nil {
			return nil, errors.E(op, errors.Manifest,
				errors.Version(rd.Version), err)
		}
		if rd.Manifest == "" {
			return nil, errors.E(op, errors.Manifest, errors.Version(rd.Version),
				"entry has no manifest reference")
		}
		key := v.String()
		if seen[key] {
			return nil, errors.E(op, errors.Manifest, errors.Version(key),
				"duplicate version entry")
		}
		seen[key] = true
		m.Versions = append(m.Versions, Descriptor{
			Version:     v,
			ManifestRef: raw.Versions[i].Manifest,
		})
	}
	return m, nil
}

// Load reads and parses a manifest file from the local filesystem.
func Load(path string) (*Manifest, error) {
	const op errors.Op = "manifest.Load"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.E(op, errors.Manifest, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return m, nil
}

// IndexOf returns the manifest position of the given version, or -1 when
// the version is not declared.
func (m *Manifest) IndexOf(v *semver.Version) int {
	for i := range m.Versions {
		if m.Versions[i].Version.Equal(v) {
			return i
		}
	}
	return -1
}

// TailAfter returns the descriptors declared strictly after the given
// version, in manifest order. This is the set a cascade rebuild walks when
// a version was spliced into the middle of the chain.
func (m *Manifest) TailAfter(v *semver.Version) []Descriptor {
	idx := m.IndexOf(v)
	if idx < 0 {
		return nil
	}
	return m.Versions[idx+1:]
}
