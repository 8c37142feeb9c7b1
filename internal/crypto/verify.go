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
	"bytes"
	"crypto"
	"crypto/ecdsa"

	"github.com/sigstore/sigstore/pkg/signature"
	"github.com/sigstore/sigstore/pkg/signature/options"
)

// VerifyDigestRaw checks a raw r||s signature over a SHA-256 digest.
// Malformed signatures and keys verify as false.
func VerifyDigestRaw(pub *ecdsa.PublicKey, digest, raw []byte) bool {
	der, err := RawToASN1(raw)
	if err != nil {
		return false
	}
	verifier, err := signature.LoadECDSAVerifier(pub, crypto.SHA256)
	if err != nil {
		return false
	}
	return verifier.VerifySignature(bytes.NewReader(der), nil, options.WithDigest(digest)) == nil
}
