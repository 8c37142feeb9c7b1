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

package image

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of a signing or verification failure.
type ErrorKind int

const (
	// KindUnknown indicates an unclassified error.
	KindUnknown ErrorKind = iota

	// KindFormat indicates a buffer too short to hold a header, or an
	// unrecognized magic where the operation checks it.
	KindFormat

	// KindUnsupportedCurve indicates a key on a curve the boot ROM does not accept.
	KindUnsupportedCurve

	// KindKeyAccess indicates the key or token session could not be reached.
	KindKeyAccess

	// KindKeyMismatch indicates the embedded public key differs from the reference key.
	KindKeyMismatch

	// KindSignatureInvalid indicates the cryptographic check failed.
	KindSignatureInvalid

	// KindIO indicates a file level error raised by the caller.
	KindIO
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindFormat:
		return "FormatError"
	case KindUnsupportedCurve:
		return "UnsupportedCurveError"
	case KindKeyAccess:
		return "KeyAccessError"
	case KindKeyMismatch:
		return "KeyMismatch"
	case KindSignatureInvalid:
		return "SignatureInvalid"
	case KindIO:
		return "IOError"
	default:
		return "UnknownError"
	}
}

// Sentinel values usable with errors.Is. Any *Error of the same kind
// matches its sentinel.
var (
	ErrFormat           = &Error{Kind: KindFormat}
	ErrUnsupportedCurve = &Error{Kind: KindUnsupportedCurve}
	ErrKeyAccess        = &Error{Kind: KindKeyAccess}
	ErrKeyMismatch      = &Error{Kind: KindKeyMismatch}
	ErrSignatureInvalid = &Error{Kind: KindSignatureInvalid}
	ErrIO               = &Error{Kind: KindIO}
)

// Error is the typed error returned by the codec and the pipelines.
//
// Example usage:
//
//	if errors.Is(err, image.ErrKeyMismatch) {
//	    // the image was signed with another key
//	}
type Error struct {
	// Kind categorizes the error for programmatic handling.
	Kind ErrorKind

	// Message is a human-readable description of what went wrong.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Cause == nil:
		return e.Kind.String()
	case e.Cause == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
}

// Unwrap returns the underlying cause for error chain unwrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates a new error of the given kind.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// Errorf creates a new error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// AsKind returns err unchanged when it already carries a kind, and wraps
// it as kind otherwise.
func AsKind(err error, kind ErrorKind, message string) error {
	if err == nil || KindOf(err) != KindUnknown {
		return err
	}
	return NewError(kind, message, err)
}
