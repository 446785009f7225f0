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

// Package errors defines the error handling used by the mbss codebase.
package errors

import (
	"fmt"
	"strings"

	"github.com/beat-forge/mbss/internal/types"
)

// Error is an implementation of the error interface used in the mbss
// codebase.
// It is based on the design in https://commandcenter.blogspot.com/2017/12/error-handling-in-upspin.html
type Error struct {
	// Version is the artifact version involved in the operation.
	Version Version

	// Path is the path of the directory involved in the operation.
	Path types.UniquePath

	// Op is the operation being performed, for ex. reconcile.run, build.fetch
	Op Op

	// Kind refers to the class of error
	Kind Kind

	// Err refers to the wrapped error (if any)
	Err error
}

func (e *Error) Error() string {
	b := new(strings.Builder)

	if e.Op != "" {
		pad(b, ": ")
		b.WriteString(string(e.Op))
	}

	if e.Version != "" {
		pad(b, ": ")
		b.WriteString("version ")
		b.WriteString(string(e.Version))
	}

	if e.Path != "" {
		pad(b, ": ")
		b.WriteString("path ")
		b.WriteString(string(e.Path))
	}

	if e.Kind != 0 {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}

	if e.Err != nil {
		if wrappedErr, ok := e.Err.(*Error); ok {
			if !wrappedErr.Zero() {
				pad(b, ":\n\t")
				b.WriteString(wrappedErr.Error())
			}
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

// Unwrap returns the wrapped error, making the Error compatible with the
// stdlib errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// pad appends str to the string buffer unless the buffer is still empty.
func pad(b *strings.Builder, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

func (e *Error) Zero() bool {
	return e.Op == "" && e.Version == "" && e.Path == "" && e.Kind == 0 && e.Err == nil
}

// Op describes the operation being performed.
type Op string

// Version identifies the artifact version an error relates to.
type Version string

// Kind describes the class of errors encountered.
type Kind int

const (
	Other     Kind = iota // Unclassified. Will not be printed.
	Config                // Invalid or incomplete runtime configuration.
	Manifest              // Invalid version manifest.
	Git                   // Errors from the git store.
	Fetch                 // The fetch tool failed.
	Transform             // The transform tool failed.
	IO                    // Filesystem errors.
	Internal              // Internal error.
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case Config:
		return "configuration error"
	case Manifest:
		return "manifest error"
	case Git:
		return "git error"
	case Fetch:
		return "fetch error"
	case Transform:
		return "transform error"
	case IO:
		return "io error"
	case Internal:
		return "internal error"
	}
	return "unknown kind"
}

func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E must have at least one argument")
	}

	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Version:
			e.Version = a
		case types.UniquePath:
			e.Path = a
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case *Error:
			cp := *a
			e.Err = &cp
		case error:
			e.Err = a
		case string:
			e.Err = fmt.Errorf("%s", a)
		default:
			panic(fmt.Errorf("unknown type %T for value %v in call to error.E", a, a))
		}
	}

	wrappedErr, ok := e.Err.(*Error)
	if !ok {
		return e
	}

	if e.Version == wrappedErr.Version {
		wrappedErr.Version = ""
	}

	if e.Path == wrappedErr.Path {
		wrappedErr.Path = ""
	}

	if e.Op == wrappedErr.Op {
		wrappedErr.Op = ""
	}

	if e.Kind == wrappedErr.Kind {
		wrappedErr.Kind = 0
	}

	return e
}

// Is reports whether err or any error it wraps is classified as kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		e, ok := err.(*Error)
		if !ok {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
