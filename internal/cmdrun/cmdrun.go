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

// Package cmdrun contains the run command, the full reconciliation
// pass over the manifest.
package cmdrun

import (
	"context"
	"fmt"

	"github.com/beat-forge/mbss/internal/cmdutil"
	"github.com/beat-forge/mbss/internal/config"
	"github.com/beat-forge/mbss/internal/errors"
	"github.com/beat-forge/mbss/internal/git"
	"github.com/beat-forge/mbss/internal/scaffold"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// NewRunner returns a command runner.
func NewRunner(ctx context.Context) *Runner {
	r := &Runner{ctx: ctx}
	c := &cobra.Command{
		Use:   "run",
		Short: "Reconcile every manifest version into its branch",
		Long: `Reconcile walks the manifest in declared order and makes sure every
version has a branch with the release content, chained to its
predecessor. Versions whose branches already exist are kept; branches
present only on the mirror are adopted without rebuilding.`,
		Example: "  mbss run --config mbss.toml",
		RunE:    r.runE,
		PreRunE: r.preRunE,
	}
	r.Command = c
	c.Flags().StringVar(&r.manifestPath, "manifest", "",
		"read the manifest from this file instead of the main branch")
	return r
}

// NewCommand returns a run command.
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
	const op errors.Op = "cmdrun.preRunE"
	path, _ := c.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return errors.E(op, err)
	}
	r.cfg = cfg
	return nil
}

func (r *Runner) runE(c *cobra.Command, _ []string) error {
	const op errors.Op = "cmdrun.runE"

	session, err := cmdutil.NewSession(r.ctx, r.cfg)
	if err != nil {
		return errors.E(op, err)
	}

	created, err := session.Repo.EnsureInitialCommit(scaffold.Write)
	if err != nil {
		return errors.E(op, err)
	}
	if created {
		klog.Infof("initialized empty archive at %s", session.Repo.Path())
		if err := session.Repo.Push(r.ctx, git.MainBranch); err != nil {
			klog.Warningf("push of %s failed, continuing: %v", git.MainBranch, err)
		}
	}

	m, err := session.LoadManifest(r.manifestPath)
	if err != nil {
		return errors.E(op, err)
	}

	result, reconcileErr := session.Reconciler.Reconcile(r.ctx, m)
	if result != nil {
		for _, outcome := range result.Outcomes {
			fmt.Fprintf(c.OutOrStdout(), "%s: %s\n", outcome.Version, outcome.Action)
		}
	}

	// Leave the worktree on main regardless of where the pass stopped.
	if err := session.Repo.CheckoutMain(); err != nil {
		klog.Warningf("checkout of %s failed: %v", git.MainBranch, err)
	}
	if reconcileErr != nil {
		return errors.E(op, reconcileErr)
	}
	return nil
}
