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

// Package cmdutil assembles the pieces the commands share: it opens the
// archive repository, bootstraps the external tools, and wires the
// fetcher, transformer and reconciler from the configuration.
package cmdutil

import (
	"context"
	"os"
	"path/filepath"

	"github.com/beat-forge/mbss/internal/config"
	"github.com/beat-forge/mbss/internal/errors"
	"github.com/beat-forge/mbss/internal/git"
	"github.com/beat-forge/mbss/internal/manifest"
	"github.com/beat-forge/mbss/internal/reconcile"
	"github.com/beat-forge/mbss/internal/tools"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"k8s.io/klog/v2"
)

// Session holds the wired collaborators for one command invocation.
type Session struct {
	Config     *config.Config
	Repo       *git.Repository
	Reconciler *reconcile.Reconciler
}

// NewSession opens the archive repository and builds the reconciler
// from cfg. External tools are installed on demand when auto-install is
// enabled.
func NewSession(ctx context.Context, cfg *config.Config) (*Session, error) {
	const op errors.Op = "cmdutil.NewSession"

	var credentials git.CredentialProvider
	if cfg.Remote != "" {
		token := cfg.Token()
		credentials = func() transport.AuthMethod {
			return &githttp.BasicAuth{Username: "mbss", Password: token}
		}
	}

	repo, err := git.Open(cfg.RepoPath, git.Options{
		Remote:      cfg.Remote,
		Credentials: credentials,
		AuthorName:  cfg.Author.Name,
		AuthorEmail: cfg.Author.Email,
	})
	if err != nil {
		return nil, errors.E(op, err)
	}

	installer := tools.NewInstaller(cfg.Tools.BinDir, cfg.Token())

	downloader, err := resolveTool(ctx, installer, cfg, cfg.Tools.Downloader)
	if err != nil {
		return nil, errors.E(op, err)
	}
	username, password := cfg.FetchCredentials()
	fetcher, err := tools.NewCommandFetcher(cfg.Fetch.Command, downloader, username, password)
	if err != nil {
		return nil, errors.E(op, err)
	}

	var transformer tools.Transformer
	if cfg.Transform.Disabled {
		klog.Infof("transform step disabled, archiving raw content")
	} else {
		stripper, err := resolveTool(ctx, installer, cfg, cfg.Tools.Stripper)
		if err != nil {
			return nil, errors.E(op, err)
		}
		transformer, err = tools.NewCommandTransformer(cfg.Transform.Command, stripper, cfg.Transform.Profile)
		if err != nil {
			return nil, errors.E(op, err)
		}
	}

	builder := &reconcile.Builder{
		Repo:        repo,
		Fetcher:     fetcher,
		Transformer: transformer,
		DownloadDir: filepath.Join(cfg.WorkDir, "download"),
		StripDir:    filepath.Join(cfg.WorkDir, "strip"),
	}

	return &Session{
		Config:     cfg,
		Repo:       repo,
		Reconciler: &reconcile.Reconciler{Repo: repo, Builder: builder},
	}, nil
}

// resolveTool returns the path of an external tool executable. With
// auto-install enabled the latest release is downloaded when the tool
// is missing; otherwise an installed copy under the bin directory is
// preferred and the bare name falls back to PATH lookup.
func resolveTool(ctx context.Context, installer *tools.Installer, cfg *config.Config, spec config.ToolSpec) (string, error) {
	if cfg.Tools.AutoInstall {
		return installer.Ensure(ctx, spec)
	}
	path := filepath.Join(cfg.Tools.BinDir, spec.Repo, spec.Exe)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return spec.Exe, nil
}

// LoadManifest reads the manifest, from the override file when path is
// set and from the archive's main branch otherwise.
func (s *Session) LoadManifest(path string) (*manifest.Manifest, error) {
	const op errors.Op = "cmdutil.LoadManifest"

	if path != "" {
		m, err := manifest.Load(path)
		if err != nil {
			return nil, errors.E(op, err)
		}
		return m, nil
	}
	data, err := s.Repo.ReadFileFromBranch(git.MainBranch, s.Config.ManifestFile)
	if err != nil {
		return nil, errors.E(op, err)
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return m, nil
}
