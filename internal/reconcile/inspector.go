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

	"github.com/beat-forge/mbss/internal/git"
	"k8s.io/klog/v2"
)

// Inspector enumerates the version branches of an archive, refreshing
// remote-tracking refs first when a remote is configured.
type Inspector struct {
	Repo *git.Repository
}

// Discover fetches from the remote and returns the version branch index.
// Fetch failures are logged and do not abort discovery; the index then
// reflects the last known remote state.
func (i *Inspector) Discover(ctx context.Context) (map[string]*git.VersionRef, error) {
	if err := i.Repo.Fetch(ctx); err != nil {
		klog.Warningf("fetch from %s failed, using cached remote refs: %v", git.OriginName, err)
	}
	return i.Repo.VersionRefs()
}
