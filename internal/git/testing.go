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

package git

import (
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
)

// This file contains support for tests that need a mirror: an in-process
// transport for file:// remotes and helpers to seed a bare repository with
// commits, no git binary and no network involved.

var installLocalFileTransport sync.Once

// InstallLocalFileTransport routes file:// remote URLs to an in-process
// git server backed by the local filesystem, so push and fetch in tests
// never shell out or open sockets. Safe to call repeatedly.
func InstallLocalFileTransport() {
	installLocalFileTransport.Do(func() {
		loader := server.NewFilesystemLoader(osfs.New("/"))
		client.InstallProtocol("file", server.NewClient(loader))
	})
}

// InitBareRemote initializes a bare repository at dir to serve as a mirror
// in tests, and returns it along with its file:// URL.
func InitBareRemote(t *testing.T, dir string) (*gogit.Repository, string) {
	t.Helper()

	InstallLocalFileTransport()

	repo, err := gogit.PlainInit(dir, true)
	if err != nil {
		t.Fatalf("Failed to initialize bare repository at %q: %v", dir, err)
	}
	if err := initializeDefaultBranches(repo); err != nil {
		t.Fatalf("Failed to set default branches: %v", err)
	}
	return repo, "file://" + dir
}

// CreateTestCommit writes a commit containing a single file directly into
// the repository's object store and returns its hash. A zero parent
// creates a root commit.
func CreateTestCommit(t *testing.T, repo *gogit.Repository, parent plumbing.Hash, message, filename, content string) plumbing.Hash {
	t.Helper()

	blobHash := storeTestBlob(t, repo.Storer, content)

	tree := &object.Tree{
		Entries: []object.TreeEntry{
			{Name: filename, Mode: filemode.Regular, Hash: blobHash},
		},
	}
	treeObj := repo.Storer.NewEncodedObject()
	if err := tree.Encode(treeObj); err != nil {
		t.Fatalf("Failed to encode tree: %v", err)
	}
	treeHash, err := repo.Storer.SetEncodedObject(treeObj)
	if err != nil {
		t.Fatalf("Failed to store tree: %v", err)
	}

	now := time.Now()
	signature := object.Signature{
		Name:  "MBSS Test",
		Email: "mbss-test@beatforge.net",
		When:  now,
	}
	commit := &object.Commit{
		Author:    signature,
		Committer: signature,
		Message:   message,
		TreeHash:  treeHash,
	}
	if !parent.IsZero() {
		commit.ParentHashes = []plumbing.Hash{parent}
	}
	commitObj := repo.Storer.NewEncodedObject()
	if err := commit.Encode(commitObj); err != nil {
		t.Fatalf("Failed to encode commit: %v", err)
	}
	commitHash, err := repo.Storer.SetEncodedObject(commitObj)
	if err != nil {
		t.Fatalf("Failed to store commit: %v", err)
	}
	return commitHash
}

// SetTestBranch points a branch of the repository at the given commit.
func SetTestBranch(t *testing.T, repo *gogit.Repository, branch string, hash plumbing.Hash) {
	t.Helper()

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), hash)
	if err := repo.Storer.SetReference(ref); err != nil {
		t.Fatalf("Failed to set branch %q to %s: %v", branch, hash, err)
	}
}

func storeTestBlob(t *testing.T, s storer.EncodedObjectStorer, content string) plumbing.Hash {
	t.Helper()

	obj := s.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		t.Fatalf("Failed to get blob writer: %v", err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write blob content: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close blob writer: %v", err)
	}
	hash, err := s.SetEncodedObject(obj)
	if err != nil {
		t.Fatalf("Failed to store blob: %v", err)
	}
	return hash
}
