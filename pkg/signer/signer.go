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

// Package signer defines the key capability shared by the sign and verify
// pipelines. A Signer is acquired once per call through Open; the Session it
// returns exposes the raw public key, the header curve id and a digest
// signing primitive, and must be closed by the caller.
package signer

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
	"math/big"
	"strings"

	internalcrypto "github.com/sigstore/stm32-signing/internal/crypto"
	"github.com/sigstore/stm32-signing/pkg/image"
)

// CoordinateSize is the width of one P-256 coordinate or signature half.
const CoordinateSize = 32

// Kind identifies where the key material lives.
type Kind int

const (
	// KindLocal is a key held in process memory.
	KindLocal Kind = iota
	// KindToken is a key held by a PKCS#11 token.
	KindToken
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindToken:
		return "token"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Signer is an acquirable key handle.
type Signer interface {
	// Kind reports the backend variant.
	Kind() Kind
	// Open acquires a session. Failures are KeyAccessError.
	Open(ctx context.Context) (Session, error)
}

// Session is an acquired key. Close releases it.
type Session interface {
	// PublicKey returns the 64 byte X||Y encoding of the public key.
	PublicKey() ([]byte, error)
	// CurveID returns the header ecdsa_algo value for the key's curve.
	CurveID() (uint32, error)
	// Sign signs a SHA-256 digest and returns 64 raw bytes r||s.
	Sign(digest []byte) ([]byte, error)
	Close() error
}

var p256Names = map[string]bool{
	"p-256":      true,
	"p256":       true,
	"prime256v1": true,
	"secp256r1":  true,
	"nist p-256": true,
}

// CurveIDForName maps a curve name to its header algorithm id.
func CurveIDForName(name string) (uint32, error) {
	if p256Names[strings.ToLower(strings.TrimSpace(name))] {
		return image.AlgorithmP256, nil
	}
	return 0, image.Errorf(image.KindUnsupportedCurve, "unsupported curve %q", name)
}

// CurveID returns the header algorithm id for pub. Only P-256 ECDSA keys
// are accepted.
func CurveID(pub crypto.PublicKey) (uint32, error) {
	ec, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return 0, image.Errorf(image.KindUnsupportedCurve, "unsupported key type %T", pub)
	}
	if ec.Curve == nil {
		return 0, image.Errorf(image.KindUnsupportedCurve, "ECDSA key has no curve")
	}
	return CurveIDForName(ec.Curve.Params().Name)
}

// RawPublicKey encodes pub as X||Y with 32 byte big-endian coordinates.
func RawPublicKey(pub crypto.PublicKey) ([]byte, error) {
	if _, err := CurveID(pub); err != nil {
		return nil, err
	}
	ec := pub.(*ecdsa.PublicKey)

	raw := make([]byte, 2*CoordinateSize)
	ec.X.FillBytes(raw[:CoordinateSize])
	ec.Y.FillBytes(raw[CoordinateSize:])
	return raw, nil
}

// ParseRawPublicKey decodes an X||Y public key for the given header
// algorithm id. The point must be on the curve.
func ParseRawPublicKey(algo uint32, raw []byte) (*ecdsa.PublicKey, error) {
	if algo != image.AlgorithmP256 {
		return nil, image.Errorf(image.KindUnsupportedCurve, "unsupported ecdsa_algo %d", algo)
	}
	if len(raw) != 2*CoordinateSize {
		return nil, image.Errorf(image.KindFormat, "public key is %d bytes, want %d", len(raw), 2*CoordinateSize)
	}

	curve := elliptic.P256()
	x := new(big.Int).SetBytes(raw[:CoordinateSize])
	y := new(big.Int).SetBytes(raw[CoordinateSize:])
	//nolint:staticcheck // IsOnCurve is the only public point check for big.Int coordinates.
	if !curve.IsOnCurve(x, y) {
		return nil, image.Errorf(image.KindFormat, "public key is not a point on P-256")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// SignDigest signs digest with s and returns raw r||s. Backends that hold
// a crypto.Signer use it to implement Session.Sign.
func SignDigest(s crypto.Signer, digest []byte) ([]byte, error) {
	raw, err := internalcrypto.SignDigestRaw(s, digest, CoordinateSize)
	if err != nil {
		return nil, image.NewError(image.KindKeyAccess, "signing failed", err)
	}
	return raw, nil
}

// VerifyDigest checks a raw r||s signature over digest against a raw X||Y
// public key.
func VerifyDigest(algo uint32, rawPub, digest, sig []byte) (bool, error) {
	pub, err := ParseRawPublicKey(algo, rawPub)
	if err != nil {
		return false, err
	}
	return internalcrypto.VerifyDigestRaw(pub, digest, sig), nil
}
