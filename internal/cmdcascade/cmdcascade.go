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

// Package cmdcascade contains the cascade command, the explicit rebuild
// of a version and every version after it.
package cmdcascade

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/beat-forge/mbss/internal/cmdutil"
	"github.com/beat-forge/mbss/internal/config"
	"github.com/beat-forge/mbss/internal/errors"
	"github.com/beat-forge/mbss/internal/git"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// NewRunner returns a command runner.
func NewRunner(ctx context.Context) *Runner {
	r := &Runner{ctx: ctx}
	c := &cobra.Command{
		Use:   "cascade",
		Short: "Rebuild a version and all later versions",
		Long: `Cascade rebuilds the branch of the given version and of every version
after it in the manifest, relinking each commit to the head of its
rebuilt predecessor. Use it after changing an entry in the middle of
the manifest, when a plain run would leave the successors chained to
the old commits.`,
		Example: "  mbss cascade --from 1.29.1",
		RunE:    r.runE,
		PreRunE: r.preRunE,
	}
	r.Command = c
	c.Flags().StringVar(&r.from, "from", "",
		"first version to rebuild (required)")
	c.Flags().StringVar(&r.manifestPath, "manifest", "",
		"read the manifest from this file instead of the main branch")
	_ = c.MarkFlagRequired("from")
	return r
}

// NewCommand returns a cascade command.
func NewCommand(ctx context.Context) *cobra.Command {
	return NewRunner(ctx).Command
}

// Runner contains the run function.
type Runner struct {
	ctx     context.Context
	Command *cobra.Command

	cfg          *config.Config
	from         string
	manifestPath string
}

func (r *Runner) preRunE(c *cobra.Command, _ []string) error {
	const op errors.Op = "cmdcascade.preRunE"
	path, _ := c.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return errors.E(op, err)
	}
	r.cfg = cfg
	return nil
}

func (r *Runner) runE(c *cobra.Command, _ []string) error {
	const op errors.Op = "cmdcascade.runE"

	from, err := semver.StrictNewVersion(r.from)
	if err != nil {
		return errors.E(op, errors.Config, fmt.Errorf("invalid --from version %q: %w", r.from, err))
	}

	session, err := cmdutil.NewSession(r.ctx, r.cfg)
	if err != nil {
		return errors.E(op, err)
	}

	m, err := session.LoadManifest(r.manifestPath)
	if err != nil {
		return errors.E(op, err)
	}

	result, rebuildErr := session.Reconciler.RebuildTail(r.ctx, m, from)
	if result != nil {
		for _, outcome := range result.Outcomes {
			fmt.Fprintf(c.OutOrStdout(), "%s: %s\n", outcome.Version, outcome.Action)
		}
	}

	if err := session.Repo.CheckoutMain(); err != nil {
		klog.Warningf("checkout of %s failed: %v", git.MainBranch, err)
	}
	if rebuildErr != nil {
		return errors.E(op, rebuildErr)
	}
	return nil
}
