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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/beat-forge/mbss/internal/cmdcascade"
	"github.com/beat-forge/mbss/internal/cmdrun"
	"github.com/beat-forge/mbss/internal/cmdstatus"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := &cobra.Command{
		Use:   "mbss",
		Short: "Maintain a branch-per-version archive of game releases",
		Long: `mbss keeps a git repository in which every release version lives on
its own branch, chained to the previous version so the history reads as
a linear upgrade path. The set and order of versions is declared in a
manifest on the main branch.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().String("config", "", "path of the configuration file")

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.AddCommand(cmdrun.NewCommand(ctx))
	cmd.AddCommand(cmdcascade.NewCommand(ctx))
	cmd.AddCommand(cmdstatus.NewCommand(ctx))

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
