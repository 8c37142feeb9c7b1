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

package verify

// Status is the outcome of a verification.
type Status int

const (
	// StatusUnknown means no verdict was reached, e.g. the key could not
	// be accessed.
	StatusUnknown Status = iota

	// StatusValid means the signature checks out against the reference key.
	StatusValid

	// StatusInvalid means the cryptographic check failed.
	StatusInvalid

	// StatusKeyMismatch means the image embeds a different public key.
	StatusKeyMismatch

	// StatusFormatError means the image is too short to hold a header.
	StatusFormatError
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "Valid"
	case StatusInvalid:
		return "Invalid"
	case StatusKeyMismatch:
		return "KeyMismatch"
	case StatusFormatError:
		return "FormatError"
	default:
		return "Unknown"
	}
}
