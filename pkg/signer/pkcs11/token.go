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

// Package pkcs11 implements the token backed signer. Key pairs stay on the
// token; the host only sees the public half and the signatures.
package pkcs11

import (
	"context"
	"crypto"
	"fmt"
	"sync"

	"github.com/ThalesGroup/crypto11"

	"github.com/sigstore/stm32-signing/pkg/image"
	"github.com/sigstore/stm32-signing/pkg/logging"
	"github.com/sigstore/stm32-signing/pkg/signer"
)

// tokenContext is the part of *crypto11.Context the signer needs.
type tokenContext interface {
	FindKeyPair(id, label []byte) (crypto.Signer, error)
	Close() error
}

// crypto11Context narrows crypto11.Signer to crypto.Signer.
type crypto11Context struct {
	ctx *crypto11.Context
}

func (c *crypto11Context) FindKeyPair(id, label []byte) (crypto.Signer, error) {
	key, err := c.ctx.FindKeyPair(id, label)
	if err != nil || key == nil {
		return nil, err
	}
	return key, nil
}

func (c *crypto11Context) Close() error {
	return c.ctx.Close()
}

// openToken loads the module and logs in. Tests replace it.
var openToken = func(cfg *crypto11.Config) (tokenContext, error) {
	ctx, err := crypto11.Configure(cfg)
	if err != nil {
		return nil, err
	}
	return &crypto11Context{ctx: ctx}, nil
}

// Signer is a signer.Signer backed by a PKCS#11 key pair.
type Signer struct {
	cfg    Config
	logger logging.Logger
}

var _ signer.Signer = (*Signer)(nil)

// Option configures a Signer.
type Option func(*Signer)

// WithLogger sets the logger used while acquiring the token.
func WithLogger(l logging.Logger) Option {
	return func(s *Signer) { s.logger = l }
}

// New validates cfg and returns a Signer. The token is not touched until
// Open.
func New(cfg Config, opts ...Option) (*Signer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid PKCS#11 configuration: %w", err)
	}
	s := &Signer{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.EnsureLogger(s.logger)
	return s, nil
}

// Kind returns signer.KindToken.
func (s *Signer) Kind() signer.Kind {
	return signer.KindToken
}

// Open loads the module, logs in to the token and finds the key pair. If
// ctx ends first, Open returns a KeyAccessError and the session that
// eventually comes up is closed in the background.
func (s *Signer) Open(ctx context.Context) (signer.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, image.NewError(image.KindKeyAccess, "PKCS#11 token not opened", err)
	}

	type result struct {
		sess *session
		err  error
	}
	done := make(chan result, 1)
	go func() {
		sess, err := s.open()
		done <- result{sess, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return r.sess, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.sess != nil {
				_ = r.sess.Close()
			}
		}()
		return nil, image.NewError(image.KindKeyAccess, "timed out opening PKCS#11 token", ctx.Err())
	}
}

func (s *Signer) open() (*session, error) {
	s.logger.Debug("Loading PKCS#11 module %s", s.cfg.ModulePath)
	tc, err := openToken(s.cfg.crypto11Config())
	if err != nil {
		return nil, image.NewError(image.KindKeyAccess, "failed to open PKCS#11 token", err)
	}

	key, err := s.findKey(tc)
	if err != nil {
		_ = tc.Close()
		return nil, err
	}
	s.logger.Debug("Found key pair %q on token %q", s.cfg.KeyLabel, s.cfg.TokenLabel)
	return &session{ctx: tc, key: key}, nil
}

func (s *Signer) findKey(tc tokenContext) (crypto.Signer, error) {
	var label []byte
	if s.cfg.KeyLabel != "" {
		label = []byte(s.cfg.KeyLabel)
	}
	key, err := tc.FindKeyPair(s.cfg.KeyID, label)
	if err != nil {
		return nil, image.NewError(image.KindKeyAccess, "failed to find key pair", err)
	}
	if key == nil {
		return nil, image.Errorf(image.KindKeyAccess, "no key pair with label %q id %x on token", s.cfg.KeyLabel, s.cfg.KeyID)
	}
	return key, nil
}

// session is an open token context. It is not safe for concurrent use
// except for Close.
type session struct {
	ctx tokenContext
	key crypto.Signer

	closeOnce sync.Once
	closeErr  error
}

func (s *session) PublicKey() ([]byte, error) {
	return signer.RawPublicKey(s.key.Public())
}

func (s *session) CurveID() (uint32, error) {
	return signer.CurveID(s.key.Public())
}

func (s *session) Sign(digest []byte) ([]byte, error) {
	return signer.SignDigest(s.key, digest)
}

// Close logs out and unloads the module. Later calls return the first
// result.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.ctx.Close()
	})
	return s.closeErr
}
