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

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cp "github.com/otiai10/copy"
)

// FakeFetcher satisfies Fetcher for tests. Each manifest ref maps to a
// set of relative file paths and contents that Fetch writes into dest.
type FakeFetcher struct {
	// Trees maps manifest ref to the files Fetch should materialize.
	Trees map[string]map[string]string
	// FailOn makes Fetch fail for the given manifest ref.
	FailOn string
	// Calls records every manifest ref fetched, in order.
	Calls []string
}

func (f *FakeFetcher) Fetch(_ context.Context, manifestRef, dest string) error {
	f.Calls = append(f.Calls, manifestRef)
	if f.FailOn != "" && manifestRef == f.FailOn {
		return fmt.Errorf("fetch of %s failed", manifestRef)
	}
	tree, ok := f.Trees[manifestRef]
	if !ok {
		return fmt.Errorf("no content for manifest %s", manifestRef)
	}
	for name, content := range tree {
		path := filepath.Join(dest, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

// FakeTransformer satisfies Transformer for tests. It copies src into
// dest and appends Suffix to every file to make the transformation
// observable.
type FakeTransformer struct {
	// Suffix is appended to each file's content. Defaults to
	// "\ntransformed\n" when empty.
	Suffix string
	// FailOn makes Transform fail when src contains a file whose content
	// includes the substring.
	FailOn string
	// Calls records every src directory transformed, in order.
	Calls []string
}

func (t *FakeTransformer) Transform(_ context.Context, src, dest string) error {
	t.Calls = append(t.Calls, src)
	if err := cp.Copy(src, dest); err != nil {
		return err
	}
	suffix := t.Suffix
	if suffix == "" {
		suffix = "\ntransformed\n"
	}
	return filepath.Walk(dest, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if t.FailOn != "" && strings.Contains(string(data), t.FailOn) {
			return fmt.Errorf("transform of %s failed", path)
		}
		return os.WriteFile(path, append(data, suffix...), 0644)
	})
}
