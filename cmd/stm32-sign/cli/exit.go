// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"errors"
	"syscall"

	"github.com/sigstore/stm32-signing/pkg/image"
)

// Process exit codes. IOError exits with the errno of the failing system
// call when there is one.
const (
	ExitOK               = 0
	ExitUsage            = 1
	ExitSignatureInvalid = 2
	ExitKeyMismatch      = 3
	ExitFormat           = 4
	ExitUnsupportedCurve = 5
	ExitKeyAccess        = 6
)

// exitError carries the process exit code of a failed command.
type exitError struct {
	err  error
	code int
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

// withExitCode attaches the exit code for err; nil stays nil.
func withExitCode(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{err: err, code: ExitCode(err)}
}

// ExitCode maps an error returned by the pipelines to a process exit code.
func ExitCode(err error) int {
	switch image.KindOf(err) {
	case image.KindUnknown:
		if err == nil {
			return ExitOK
		}
		return ExitUsage
	case image.KindSignatureInvalid:
		return ExitSignatureInvalid
	case image.KindKeyMismatch:
		return ExitKeyMismatch
	case image.KindFormat:
		return ExitFormat
	case image.KindUnsupportedCurve:
		return ExitUnsupportedCurve
	case image.KindKeyAccess:
		return ExitKeyAccess
	case image.KindIO:
		var errno syscall.Errno
		if errors.As(err, &errno) && errno != 0 {
			return int(errno)
		}
	}
	return ExitUsage
}
