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

// Package verify checks the signature embedded in an STM32 image header
// against a reference key.
package verify

import (
	"bytes"
	"context"
	"encoding/hex"

	"github.com/sigstore/stm32-signing/pkg/hashing"
	"github.com/sigstore/stm32-signing/pkg/image"
	"github.com/sigstore/stm32-signing/pkg/logging"
	"github.com/sigstore/stm32-signing/pkg/signer"
	"github.com/sigstore/stm32-signing/pkg/tracing"
)

// Result represents the outcome of a verification operation.
type Result struct {
	Status  Status
	Message string
	// Header is the decoded header, nil on StatusFormatError.
	Header *image.Header
	// Digest is set once the signed range has been hashed.
	Digest hashing.Digest
}

// Verified reports whether the status is StatusValid.
func (r Result) Verified() bool {
	return r.Status == StatusValid
}

// Options configures Verify.
type Options struct {
	Logger logging.Logger
	// StrictKeyMatch compares the embedded public key with the reference
	// key for token signers too. Local signers always compare.
	StrictKeyMatch bool
}

// Verify checks img against the key behind s. img is not modified. Every
// non-valid status is returned together with the matching typed error.
//
// The magic is not checked, so a header with a foreign tag but a valid
// signature verifies.
func Verify(ctx context.Context, img []byte, s signer.Signer, opts Options) (Result, error) {
	logger := logging.EnsureLogger(opts.Logger)

	var (
		res Result
		err error
	)
	attrs := map[string]interface{}{
		"signer.kind": s.Kind().String(),
		"image.size":  len(img),
	}
	_ = tracing.Run(ctx, "stm32.verify", attrs, func(ctx context.Context) error {
		res, err = verify(ctx, img, s, opts, logger)
		return err
	})
	return res, err
}

func verify(ctx context.Context, img []byte, s signer.Signer, opts Options, logger logging.Logger) (Result, error) {
	hdr, err := image.Decode(img)
	if err != nil {
		return Result{Status: StatusFormatError, Message: err.Error()}, err
	}
	res := Result{Header: hdr}

	sess, err := s.Open(ctx)
	if err != nil {
		err = image.AsKind(err, image.KindKeyAccess, "failed to open key")
		res.Message = err.Error()
		return res, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Warn("Failed to close key session: %v", cerr)
		}
	}()

	refKey, err := sess.PublicKey()
	if err != nil {
		err = image.AsKind(err, image.KindKeyAccess, "failed to read public key")
		res.Message = err.Error()
		return res, err
	}
	algo, err := sess.CurveID()
	if err != nil {
		err = image.AsKind(err, image.KindKeyAccess, "failed to read key curve")
		res.Message = err.Error()
		return res, err
	}

	if s.Kind() == signer.KindLocal || opts.StrictKeyMatch {
		if !bytes.Equal(refKey, hdr.ECDSAPublicKey[:]) {
			logger.Debug("Embedded key: %s", hex.EncodeToString(hdr.ECDSAPublicKey[:]))
			logger.Debug("Reference key: %s", hex.EncodeToString(refKey))
			err := image.Errorf(image.KindKeyMismatch, "image is not signed with the provided key")
			res.Status = StatusKeyMismatch
			res.Message = err.Error()
			return res, err
		}
	}

	digest, err := image.ComputeDigest(img)
	if err != nil {
		res.Status = StatusFormatError
		res.Message = err.Error()
		return res, err
	}
	res.Digest = digest
	logger.Debug("Digest: %s", digest)

	ok, err := signer.VerifyDigest(algo, refKey, digest.Value(), hdr.Signature[:])
	if err != nil {
		err = image.AsKind(err, image.KindKeyAccess, "invalid reference key")
		res.Message = err.Error()
		return res, err
	}
	if !ok {
		logger.Errorln("The signature does not check out")
		logger.Error("Found:    %s", hex.EncodeToString(hdr.Signature[:]))
		err := image.Errorf(image.KindSignatureInvalid, "signature verification failed")
		res.Status = StatusInvalid
		res.Message = err.Error()
		return res, err
	}

	logger.Infoln("Signature checks out")
	res.Status = StatusValid
	res.Message = "Verification succeeded"
	return res, nil
}
