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

package hashing

import (
	"crypto/sha256"
	"hash"
)

// SHA256Engine feeds data into a SHA-256 state and yields a Digest.
type SHA256Engine struct {
	h hash.Hash
}

// NewSHA256Engine constructs a new SHA256 engine.
// If initialData is non-empty, it is written into the hash immediately.
func NewSHA256Engine(initialData []byte) *SHA256Engine {
	e := &SHA256Engine{h: sha256.New()}
	e.Update(initialData)
	return e
}

// Update appends more bytes into the hash state.
func (e *SHA256Engine) Update(data []byte) {
	if len(data) > 0 {
		_, _ = e.h.Write(data)
	}
}

// Compute finalizes the hash and returns a Digest value.
func (e *SHA256Engine) Compute() (Digest, error) {
	return NewDigest(e.DigestName(), e.h.Sum(nil)), nil
}

// DigestName returns the algorithm identifier.
func (e *SHA256Engine) DigestName() string {
	return "sha256"
}
