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
	"github.com/sigstore/stm32-signing/pkg/hashing"
)

// DigestRange returns the half-open byte range of img covered by the
// signature: everything from header_version to the end of the payload.
// magic, signature and checksum are outside of it.
func DigestRange(img []byte) (start, end int) {
	return HeaderVersionOffset, len(img)
}

// ComputeDigest hashes the signed range of img with SHA-256.
func ComputeDigest(img []byte) (hashing.Digest, error) {
	if len(img) < HeaderSize {
		return hashing.Digest{}, Errorf(KindFormat, "image is %d bytes, shorter than the %d byte header", len(img), HeaderSize)
	}
	start, end := DigestRange(img)
	return hashing.NewSHA256Engine(img[start:end]).Compute()
}
