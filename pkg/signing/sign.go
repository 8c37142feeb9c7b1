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

// Package signing embeds a public key and an ECDSA P-256 signature into an
// STM32 image header, in place.
package signing

import (
	"context"
	"encoding/hex"

	"github.com/sigstore/stm32-signing/pkg/hashing"
	"github.com/sigstore/stm32-signing/pkg/image"
	"github.com/sigstore/stm32-signing/pkg/logging"
	"github.com/sigstore/stm32-signing/pkg/signer"
	"github.com/sigstore/stm32-signing/pkg/tracing"
	"github.com/sigstore/stm32-signing/pkg/verify"
)

// Result represents the outcome of a signing operation.
type Result struct {
	// Header is the header as written to the image.
	Header    *image.Header
	Digest    hashing.Digest
	Signature []byte
	// Verified is set when Options.SelfVerify checked the new signature.
	Verified bool
	Message  string
}

// Options configures Sign.
type Options struct {
	Logger logging.Logger
	// SelfVerify runs the verification pipeline over the signed image with
	// the same session before returning.
	SelfVerify bool
}

// Sign rewrites the header of img for the key behind s and stores the
// signature, mutating img in place.
//
// A bad magic, an inaccessible key or an unsupported curve is reported
// before any byte of img changes. A failure after that point leaves a
// header carrying the new key and a stale signature; callers must not
// persist img unless Sign returned nil.
func Sign(ctx context.Context, img []byte, s signer.Signer, opts Options) (Result, error) {
	logger := logging.EnsureLogger(opts.Logger)

	var (
		res Result
		err error
	)
	attrs := map[string]interface{}{
		"signer.kind": s.Kind().String(),
		"image.size":  len(img),
	}
	_ = tracing.Run(ctx, "stm32.sign", attrs, func(ctx context.Context) error {
		res, err = sign(ctx, img, s, opts, logger)
		return err
	})
	return res, err
}

func sign(ctx context.Context, img []byte, s signer.Signer, opts Options, logger logging.Logger) (Result, error) {
	hdr, err := image.Decode(img)
	if err != nil {
		return Result{Message: err.Error()}, err
	}
	if !hdr.HasValidMagic() {
		err := image.Errorf(image.KindFormat, "not an STM32 header (magic %q)", string(hdr.Magic[:]))
		return Result{Message: err.Error()}, err
	}
	if lerr := hdr.CheckLength(len(img)); lerr != nil {
		logger.Warn("Header length mismatch: %v", lerr)
	}

	sess, err := s.Open(ctx)
	if err != nil {
		err = image.AsKind(err, image.KindKeyAccess, "failed to open key")
		return Result{Message: err.Error()}, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Warn("Failed to close key session: %v", cerr)
		}
	}()

	algo, err := sess.CurveID()
	if err != nil {
		err = image.AsKind(err, image.KindKeyAccess, "failed to read key curve")
		return Result{Message: err.Error()}, err
	}
	pub, err := sess.PublicKey()
	if err != nil {
		err = image.AsKind(err, image.KindKeyAccess, "failed to read public key")
		return Result{Message: err.Error()}, err
	}
	if len(pub) != image.ECDSAPublicKeySize {
		err := image.Errorf(image.KindKeyAccess, "public key is %d bytes, want %d", len(pub), image.ECDSAPublicKeySize)
		return Result{Message: err.Error()}, err
	}

	// img is modified from here on.
	hdr.OptionFlags = 0
	copy(hdr.ECDSAPublicKey[:], pub)
	hdr.ECDSAAlgorithm = algo
	if err := hdr.Encode(img); err != nil {
		return Result{Message: err.Error()}, err
	}
	for _, f := range hdr.Summary() {
		logger.Debug("  %-16s %s", f.Name, f.Value)
	}

	digest, err := image.ComputeDigest(img)
	if err != nil {
		return Result{Message: err.Error()}, err
	}
	logger.Debug("Digest: %s", digest)

	sig, err := sess.Sign(digest.Value())
	if err != nil {
		err = image.AsKind(err, image.KindKeyAccess, "signing failed")
		return Result{Message: err.Error()}, err
	}
	if err := image.WriteSignature(img, sig); err != nil {
		return Result{Message: err.Error()}, image.NewError(image.KindKeyAccess, "signer returned a malformed signature", err)
	}
	copy(hdr.Signature[:], sig)
	logger.Debug("Signature: %s", hex.EncodeToString(sig))

	res := Result{
		Header:    hdr,
		Digest:    digest,
		Signature: sig,
		Message:   "Signing succeeded",
	}
	if !opts.SelfVerify {
		return res, nil
	}

	vres, err := verify.Verify(ctx, img, borrowed{sess: sess, kind: s.Kind()}, verify.Options{
		Logger:         logger,
		StrictKeyMatch: true,
	})
	if err != nil {
		err = image.AsKind(err, image.KindSignatureInvalid, "self verification failed")
		return Result{Header: hdr, Digest: digest, Signature: sig, Message: err.Error()}, err
	}
	res.Verified = vres.Verified()
	return res, nil
}

// borrowed lends an open session to the verification pipeline without
// handing over its lifetime.
type borrowed struct {
	sess signer.Session
	kind signer.Kind
}

func (b borrowed) Kind() signer.Kind { return b.kind }

func (b borrowed) Open(context.Context) (signer.Session, error) {
	return noClose{b.sess}, nil
}

type noClose struct {
	signer.Session
}

func (noClose) Close() error { return nil }
