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

// Package config loads the mbss runtime configuration.
//
// Configuration is a TOML file; every field has a default so running with
// no file at all is valid. Credentials are never stored in the file, only
// the names of the environment variables that hold them.
package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/beat-forge/mbss/internal/errors"
)

// Config is the full runtime configuration of one mbss invocation.
type Config struct {
	// RepoPath is the path of the archive repository. Overridden by the
	// REPO_PATH environment variable when set.
	RepoPath string `toml:"repo_path"`

	// Remote is the URL of the mirror repository. Empty means no mirror.
	Remote string `toml:"remote"`

	// TokenEnv names the environment variable holding the token used to
	// authenticate pushes and fetches against the mirror.
	TokenEnv string `toml:"token_env"`

	// ManifestFile is the name of the manifest document in the main branch
	// of the archive repository.
	ManifestFile string `toml:"manifest_file"`

	// WorkDir is the scratch space for downloaded and transformed trees.
	WorkDir string `toml:"work_dir"`

	Author    AuthorConfig    `toml:"author"`
	Fetch     FetchConfig     `toml:"fetch"`
	Transform TransformConfig `toml:"transform"`
	Tools     ToolsConfig     `toml:"tools"`
}

// AuthorConfig is the commit identity written into snapshot commits.
type AuthorConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// FetchConfig describes how the external downloader is invoked. Command is
// a template; {tool}, {manifest}, {dest}, {username} and {password} are
// expanded before execution.
type FetchConfig struct {
	Command     string `toml:"command"`
	UsernameEnv string `toml:"username_env"`
	PasswordEnv string `toml:"password_env"`
}

// TransformConfig describes how the external stripper is invoked. Command
// is a template; {tool}, {src}, {dest} and {profile} are expanded before
// execution. Disabled skips the transform step entirely and archives the
// downloaded tree as-is.
type TransformConfig struct {
	Command  string `toml:"command"`
	Profile  string `toml:"profile"`
	Disabled bool   `toml:"disabled"`
}

// ToolsConfig controls bootstrap of the external tool binaries.
type ToolsConfig struct {
	BinDir      string   `toml:"bin_dir"`
	AutoInstall bool     `toml:"auto_install"`
	Downloader  ToolSpec `toml:"downloader"`
	Stripper    ToolSpec `toml:"stripper"`
}

// ToolSpec locates one external tool: the GitHub repository its releases
// are published under and the executable name inside the release archive.
type ToolSpec struct {
	Owner string `toml:"owner"`
	Repo  string `toml:"repo"`
	Exe   string `toml:"exe"`
}

// Load reads the configuration file at path, applies defaults and
// validates the result. An empty path yields the default configuration.
func Load(path string) (*Config, error) {
	const op errors.Op = "config.Load"

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.E(op, errors.Config, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, errors.E(op, errors.Config, err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.E(op, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RepoPath == "" {
		c.RepoPath = "./versions"
	}
	if env := os.Getenv("REPO_PATH"); env != "" {
		c.RepoPath = env
	}
	if c.TokenEnv == "" {
		c.TokenEnv = "GITHUB_TOKEN"
	}
	if c.ManifestFile == "" {
		c.ManifestFile = "versions.json"
	}
	if c.WorkDir == "" {
		c.WorkDir = "./work"
	}
	if c.Author.Name == "" {
		c.Author.Name = "MBSS"
	}
	if c.Author.Email == "" {
		c.Author.Email = "mbss@beatforge.net"
	}
	if c.Fetch.Command == "" {
		c.Fetch.Command = "{tool} -username {username} -password {password}" +
			" -remember-password -app 620980 -depot 620981" +
			" -manifest {manifest} -dir {dest}"
	}
	if c.Fetch.UsernameEnv == "" {
		c.Fetch.UsernameEnv = "STEAM_USERNAME"
	}
	if c.Fetch.PasswordEnv == "" {
		c.Fetch.PasswordEnv = "STEAM_PASSWORD"
	}
	if c.Transform.Command == "" {
		c.Transform.Command = "{tool} strip -m {profile} -p {src} -o {dest}"
	}
	if c.Transform.Profile == "" {
		c.Transform.Profile = "beatsaber"
	}
	if c.Tools.BinDir == "" {
		c.Tools.BinDir = "./bin"
	}
	if c.Tools.Downloader == (ToolSpec{}) {
		c.Tools.Downloader = ToolSpec{Owner: "SteamRE", Repo: "DepotDownloader", Exe: "DepotDownloader"}
	}
	if c.Tools.Stripper == (ToolSpec{}) {
		c.Tools.Stripper = ToolSpec{Owner: "beat-forge", Repo: "GenericStripper", Exe: "GenericStripper"}
	}
}

// Validate reports configuration problems before any repository mutation
// happens. Credentials referenced by command templates must resolve now;
// failing mid-build would leave a half-reconciled chain.
func (c *Config) Validate() error {
	const op errors.Op = "config.Validate"

	if strings.TrimSpace(c.RepoPath) == "" {
		return errors.E(op, errors.Config, "repo_path must not be empty")
	}
	if strings.TrimSpace(c.Fetch.Command) == "" {
		return errors.E(op, errors.Config, "fetch.command must not be empty")
	}
	if strings.Contains(c.Fetch.Command, "{username}") && os.Getenv(c.Fetch.UsernameEnv) == "" {
		return errors.E(op, errors.Config,
			"fetch credentials missing: "+c.Fetch.UsernameEnv+" is not set")
	}
	if strings.Contains(c.Fetch.Command, "{password}") && os.Getenv(c.Fetch.PasswordEnv) == "" {
		return errors.E(op, errors.Config,
			"fetch credentials missing: "+c.Fetch.PasswordEnv+" is not set")
	}
	if !c.Transform.Disabled {
		if strings.TrimSpace(c.Transform.Command) == "" {
			return errors.E(op, errors.Config, "transform.command must not be empty")
		}
		if strings.Contains(c.Transform.Command, "{profile}") && c.Transform.Profile == "" {
			return errors.E(op, errors.Config, "transform.profile must not be empty")
		}
	}
	if c.Remote != "" && os.Getenv(c.TokenEnv) == "" {
		return errors.E(op, errors.Config,
			"remote is configured but "+c.TokenEnv+" is not set")
	}
	return nil
}

// Token returns the mirror token, or empty when none is configured.
func (c *Config) Token() string {
	return os.Getenv(c.TokenEnv)
}

// FetchCredentials resolves the downloader credentials from the
// environment.
func (c *Config) FetchCredentials() (username, password string) {
	return os.Getenv(c.Fetch.UsernameEnv), os.Getenv(c.Fetch.PasswordEnv)
}
