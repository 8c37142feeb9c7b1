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

// Package key implements the in-memory signer, loaded from a PEM file or
// wrapping a key the caller already holds.
package key

import (
	"context"
	"crypto"

	"github.com/sigstore/stm32-signing/pkg/config"
	"github.com/sigstore/stm32-signing/pkg/image"
	"github.com/sigstore/stm32-signing/pkg/signer"
)

// Signer holds a key pair, or only a public key for verification.
type Signer struct {
	priv crypto.Signer
	pub  crypto.PublicKey
}

var _ signer.Signer = (*Signer)(nil)

// New wraps a private key.
func New(priv crypto.Signer) *Signer {
	return &Signer{priv: priv, pub: priv.Public()}
}

// NewVerifier wraps a public key. Sessions from it cannot sign.
func NewVerifier(pub crypto.PublicKey) *Signer {
	return &Signer{pub: pub}
}

// Load reads cfg. A public key file yields a verify-only signer.
func Load(cfg config.KeyConfig) (*Signer, error) {
	priv, pub, err := cfg.Load()
	if err != nil {
		return nil, err
	}
	if priv != nil {
		return New(priv), nil
	}
	return NewVerifier(pub), nil
}

// Kind returns signer.KindLocal.
func (s *Signer) Kind() signer.Kind {
	return signer.KindLocal
}

// CanSign reports whether the private half is present.
func (s *Signer) CanSign() bool {
	return s.priv != nil
}

// Open never blocks; the key is already in memory.
func (s *Signer) Open(_ context.Context) (signer.Session, error) {
	return session{s}, nil
}

type session struct {
	*Signer
}

func (s session) PublicKey() ([]byte, error) {
	return signer.RawPublicKey(s.pub)
}

func (s session) CurveID() (uint32, error) {
	return signer.CurveID(s.pub)
}

func (s session) Sign(digest []byte) ([]byte, error) {
	if s.priv == nil {
		return nil, image.Errorf(image.KindKeyAccess, "private key is required for signing")
	}
	return signer.SignDigest(s.priv, digest)
}

func (session) Close() error {
	return nil
}
