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
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/beat-forge/mbss/internal/config"
	"github.com/beat-forge/mbss/internal/errors"
	"github.com/google/go-github/v48/github"
	"golang.org/x/oauth2"
	"k8s.io/klog/v2"
)

// Installer downloads collaborator executables from GitHub releases
// into a local bin directory. Installed tools are reused across runs.
type Installer struct {
	BinDir string

	client *github.Client
	http   *http.Client
}

// NewInstaller creates an Installer rooted at binDir. token may be
// empty for anonymous API access.
func NewInstaller(binDir, token string) *Installer {
	httpClient := http.DefaultClient
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	return &Installer{
		BinDir: binDir,
		client: github.NewClient(httpClient),
		http:   httpClient,
	}
}

// Ensure returns the path to the tool's executable, downloading the
// latest release when it is not yet installed.
func (i *Installer) Ensure(ctx context.Context, spec config.ToolSpec) (string, error) {
	const op errors.Op = "tools.Ensure"

	dir := filepath.Join(i.BinDir, spec.Repo)
	exe := filepath.Join(dir, exeName(spec.Exe))
	if _, err := os.Stat(exe); err == nil {
		return exe, nil
	}

	release, _, err := i.client.Repositories.GetLatestRelease(ctx, spec.Owner, spec.Repo)
	if err != nil {
		return "", errors.E(op, errors.Fetch, fmt.Errorf("latest release of %s/%s: %w", spec.Owner, spec.Repo, err))
	}
	asset := matchAsset(release.Assets)
	if asset == nil {
		return "", errors.E(op, errors.Fetch, fmt.Errorf("no %s/%s release asset for %s-%s", spec.Owner, spec.Repo, runtime.GOOS, runtime.GOARCH))
	}

	klog.Infof("installing %s/%s %s (%s)", spec.Owner, spec.Repo, release.GetTagName(), asset.GetName())
	body, err := i.download(ctx, asset)
	if err != nil {
		return "", errors.E(op, errors.Fetch, err)
	}
	if err := extractZip(body, dir); err != nil {
		return "", errors.E(op, errors.IO, err)
	}
	if _, err := os.Stat(exe); err != nil {
		return "", errors.E(op, errors.IO, fmt.Errorf("asset %s did not contain %s", asset.GetName(), exeName(spec.Exe)))
	}
	if err := os.Chmod(exe, 0755); err != nil {
		return "", errors.E(op, errors.IO, err)
	}
	return exe, nil
}

func (i *Installer) download(ctx context.Context, asset *github.ReleaseAsset) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.GetBrowserDownloadURL(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := i.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: %s", asset.GetBrowserDownloadURL(), resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// matchAsset selects the zip asset whose name mentions the current
// platform. Asset naming varies between projects, so matching is by
// substring.
func matchAsset(assets []*github.ReleaseAsset) *github.ReleaseAsset {
	goos := runtime.GOOS
	arch := runtime.GOARCH
	if arch == "amd64" {
		arch = "x64"
	}
	for _, asset := range assets {
		name := strings.ToLower(asset.GetName())
		if !strings.HasSuffix(name, ".zip") {
			continue
		}
		if strings.Contains(name, goos) && strings.Contains(name, arch) {
			return asset
		}
	}
	return nil
}

func extractZip(data []byte, dir string) error {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	for _, file := range reader.File {
		name := filepath.Join(dir, filepath.FromSlash(file.Name))
		if !strings.HasPrefix(name, filepath.Clean(dir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes destination", file.Name)
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(name, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
			return err
		}
		src, err := file.Open()
		if err != nil {
			return err
		}
		dst, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, file.Mode())
		if err != nil {
			src.Close()
			return err
		}
		_, err = io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func exeName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
