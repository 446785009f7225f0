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
	"strings"

	"github.com/beat-forge/mbss/internal/errors"
	"github.com/beat-forge/mbss/internal/types"
	"github.com/google/shlex"
)

// Fetcher retrieves the raw content of one release into dest.
type Fetcher interface {
	// Fetch populates dest with the release identified by manifestRef.
	Fetch(ctx context.Context, manifestRef, dest string) error
}

// Transformer produces the cleaned content of a release in dest from the
// raw content in src.
type Transformer interface {
	Transform(ctx context.Context, src, dest string) error
}

// expandArgs substitutes {placeholder} tokens in each argument of a
// shlex-split command template.
func expandArgs(args []string, vars map[string]string) []string {
	expanded := make([]string, len(args))
	for i, arg := range args {
		for key, value := range vars {
			arg = strings.ReplaceAll(arg, "{"+key+"}", value)
		}
		expanded[i] = arg
	}
	return expanded
}

// CommandFetcher runs the external downloader from a command template.
// Recognized placeholders: {tool}, {manifest}, {dest}, {username},
// {password}.
type CommandFetcher struct {
	args     []string
	tool     string
	username string
	password string
	runner   *Runner
}

// NewCommandFetcher parses the fetch command template. toolPath replaces
// the {tool} placeholder; username and password fill the credential
// placeholders.
func NewCommandFetcher(command, toolPath, username, password string) (*CommandFetcher, error) {
	const op errors.Op = "tools.NewCommandFetcher"
	args, err := shlex.Split(command)
	if err != nil {
		return nil, errors.E(op, errors.Config, err)
	}
	if len(args) == 0 {
		return nil, errors.E(op, errors.Config, "fetch command is empty")
	}
	return &CommandFetcher{
		args:     args,
		tool:     toolPath,
		username: username,
		password: password,
		runner:   &Runner{Verbose: true},
	}, nil
}

func (f *CommandFetcher) Fetch(ctx context.Context, manifestRef, dest string) error {
	const op errors.Op = "tools.Fetch"

	args := expandArgs(f.args, map[string]string{
		"tool":     f.tool,
		"manifest": manifestRef,
		"dest":     dest,
		"username": f.username,
		"password": f.password,
	})
	if _, err := f.runner.Run(ctx, args[0], args[1:]...); err != nil {
		return errors.E(op, errors.Fetch, types.UniquePath(dest), err)
	}
	return nil
}

// CommandTransformer runs the external stripper from a command template.
// Recognized placeholders: {tool}, {src}, {dest}, {profile}.
type CommandTransformer struct {
	args    []string
	tool    string
	profile string
	runner  *Runner
}

// NewCommandTransformer parses the transform command template.
func NewCommandTransformer(command, toolPath, profile string) (*CommandTransformer, error) {
	const op errors.Op = "tools.NewCommandTransformer"
	args, err := shlex.Split(command)
	if err != nil {
		return nil, errors.E(op, errors.Config, err)
	}
	if len(args) == 0 {
		return nil, errors.E(op, errors.Config, "transform command is empty")
	}
	return &CommandTransformer{
		args:    args,
		tool:    toolPath,
		profile: profile,
		runner:  &Runner{Verbose: true},
	}, nil
}

func (t *CommandTransformer) Transform(ctx context.Context, src, dest string) error {
	const op errors.Op = "tools.Transform"

	args := expandArgs(t.args, map[string]string{
		"tool":    t.tool,
		"src":     src,
		"dest":    dest,
		"profile": t.profile,
	})
	if _, err := t.runner.Run(ctx, args[0], args[1:]...); err != nil {
		return errors.E(op, errors.Transform, types.UniquePath(src), err)
	}
	return nil
}
