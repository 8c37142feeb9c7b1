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

package crypto

import (
	"crypto"
	"crypto/rand"
	"fmt"
)

// SignDigestRaw signs a precomputed SHA-256 digest with signer and returns
// the raw r||s form, each half size bytes wide. signer may be an in-memory
// *ecdsa.PrivateKey or a token backed key; both return DER.
func SignDigestRaw(signer crypto.Signer, digest []byte, size int) ([]byte, error) {
	if len(digest) != crypto.SHA256.Size() {
		return nil, fmt.Errorf("digest is %d bytes, want %d", len(digest), crypto.SHA256.Size())
	}

	der, err := signer.Sign(rand.Reader, digest, crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("ECDSA signing failed: %w", err)
	}

	raw, err := ASN1ToRaw(der, size)
	if err != nil {
		return nil, fmt.Errorf("failed to convert signature: %w", err)
	}
	return raw, nil
}
