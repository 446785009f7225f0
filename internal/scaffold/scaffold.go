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

// Package scaffold seeds the main branch of a fresh archive with an
// empty manifest and a README.
package scaffold

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/beat-forge/mbss/internal/errors"
	"github.com/beat-forge/mbss/internal/types"
)

//go:embed assets
var assets embed.FS

// Write copies the scaffold files into dir. Existing files are
// overwritten.
func Write(dir string) error {
	const op errors.Op = "scaffold.Write"

	root, err := fs.Sub(assets, "assets")
	if err != nil {
		return errors.E(op, errors.Internal, err)
	}
	err = fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dir, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		data, err := fs.ReadFile(root, path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0644)
	})
	if err != nil {
		return errors.E(op, errors.IO, types.UniquePath(dir), err)
	}
	return nil
}
