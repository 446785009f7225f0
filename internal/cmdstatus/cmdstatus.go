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

// Package cmdstatus contains the status command, a read-only view of
// the archive's branches against the manifest.
package cmdstatus

import (
	"context"

	"github.com/beat-forge/mbss/internal/cmdutil"
	"github.com/beat-forge/mbss/internal/config"
	"github.com/beat-forge/mbss/internal/errors"
	"github.com/beat-forge/mbss/internal/git"
	"github.com/beat-forge/mbss/internal/manifest"
	"github.com/beat-forge/mbss/internal/reconcile"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewRunner returns a command runner.
func NewRunner(ctx context.Context) *Runner {
	r := &Runner{ctx: ctx}
	c := &cobra.Command{
		Use:   "status",
		Short: "Show each manifest version against its branches",
		Long: `Status compares the manifest with the version branches on both the
local archive and the mirror without changing anything. Branches not
listed in the manifest are reported as orphaned.`,
		Example: "  mbss status --config mbss.toml",
		RunE:    r.runE,
		PreRunE: r.preRunE,
	}
	r.Command = c
	c.Flags().StringVar(&r.manifestPath, "manifest", "",
		"read the manifest from this file instead of the main branch")
	return r
}

// NewCommand returns a status command.
func NewCommand(ctx context.Context) *cobra.Command {
	return NewRunner(ctx).Command
}

// Runner contains the run function.
type Runner struct {
	ctx     context.Context
	Command *cobra.Command

	cfg          *config.Config
	manifestPath string
}

func (r *Runner) preRunE(c *cobra.Command, _ []string) error {
	const op errors.Op = "cmdstatus.preRunE"
	path, _ := c.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return errors.E(op, err)
	}
	r.cfg = cfg
	return nil
}

func (r *Runner) runE(c *cobra.Command, _ []string) error {
	const op errors.Op = "cmdstatus.runE"

	session, err := cmdutil.NewSession(r.ctx, r.cfg)
	if err != nil {
		return errors.E(op, err)
	}

	inspector := &reconcile.Inspector{Repo: session.Repo}
	refs, err := inspector.Discover(r.ctx)
	if err != nil {
		return errors.E(op, err)
	}

	m, err := session.LoadManifest(r.manifestPath)
	if err != nil {
		return errors.E(op, err)
	}

	renderStatusTable(c, m, refs)
	return nil
}

func renderStatusTable(cmd *cobra.Command, m *manifest.Manifest, refs map[string]*git.VersionRef) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"VERSION", "BRANCH", "LOCAL", "REMOTE", "STATE"})

	listed := map[string]bool{}
	for _, desc := range m.Versions {
		key := desc.Version.String()
		listed[key] = true
		ref := refs[key]
		local, remote := plumbing.ZeroHash, plumbing.ZeroHash
		if ref != nil {
			local, remote = ref.Local, ref.Remote
		}
		t.AppendRow(table.Row{
			key,
			git.VersionBranch(desc.Version),
			shortHash(local),
			shortHash(remote),
			branchState(local, remote),
		})
	}

	orphans := false
	for _, v := range git.SortedVersions(refs) {
		if listed[v.String()] {
			continue
		}
		if !orphans {
			t.AppendSeparator()
			orphans = true
		}
		ref := refs[v.String()]
		t.AppendRow(table.Row{
			v.String(),
			git.VersionBranch(v),
			shortHash(ref.Local),
			shortHash(ref.Remote),
			"orphaned",
		})
	}
	t.Render()
}

func branchState(local, remote plumbing.Hash) string {
	switch {
	case local.IsZero() && remote.IsZero():
		return "missing"
	case local.IsZero():
		return "remote only"
	case remote.IsZero():
		return "local only"
	case local == remote:
		return "in sync"
	default:
		return "out of sync"
	}
}

func shortHash(h plumbing.Hash) string {
	if h.IsZero() {
		return "-"
	}
	return h.String()[:8]
}
