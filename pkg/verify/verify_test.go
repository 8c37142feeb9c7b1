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

package verify_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/sigstore/stm32-signing/pkg/hashing"
	"github.com/sigstore/stm32-signing/pkg/image"
	"github.com/sigstore/stm32-signing/pkg/signer"
	"github.com/sigstore/stm32-signing/pkg/signer/key"
	"github.com/sigstore/stm32-signing/pkg/signing"
	"github.com/sigstore/stm32-signing/pkg/verify"
)

func signedImage(t *testing.T, priv *ecdsa.PrivateKey) []byte {
	t.Helper()
	img := make([]byte, image.HeaderSize+64)
	copy(img, image.Magic[:])
	copy(img[image.HeaderSize:], "second stage bootloader")
	if _, err := signing.Sign(context.Background(), img, key.New(priv), signing.Options{}); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return img
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	return priv
}

func TestVerify_Valid(t *testing.T) {
	priv := newKey(t)
	img := signedImage(t, priv)
	before := append([]byte(nil), img...)

	for name, s := range map[string]signer.Signer{
		"private key": key.New(priv),
		"public key":  key.NewVerifier(&priv.PublicKey),
		"token":       tokenSigner{key.New(priv)},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := verify.Verify(context.Background(), img, s, verify.Options{})
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if !res.Verified() || res.Status != verify.StatusValid {
				t.Errorf("Status = %v, want Valid", res.Status)
			}
			if res.Header == nil || res.Digest.Size() != 32 {
				t.Errorf("Result missing header or digest: %+v", res)
			}
		})
	}
	if !bytes.Equal(img, before) {
		t.Error("Verify() modified the image")
	}
}

func TestVerify_TamperSensitivity(t *testing.T) {
	priv := newKey(t)

	tests := []struct {
		name   string
		offset int
	}{
		{"header_version", image.HeaderVersionOffset},
		{"image_length", image.ImageLengthOffset},
		{"entry_address", image.EntryAddressOffset + 3},
		{"rollback_version", image.RollbackVersionOffset},
		{"option_flags", image.OptionFlagsOffset},
		{"padding", image.PaddingOffset + 10},
		{"binding_id", image.BindingIDOffset},
		{"first payload byte", image.HeaderSize},
		{"last payload byte", image.HeaderSize + 63},
		{"signature", image.SignatureOffset + 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := signedImage(t, priv)
			img[tt.offset] ^= 0x80

			res, err := verify.Verify(context.Background(), img, key.New(priv), verify.Options{})
			if res.Status != verify.StatusInvalid {
				t.Errorf("Status = %v, want Invalid", res.Status)
			}
			if !errors.Is(err, image.ErrSignatureInvalid) {
				t.Errorf("Expected SignatureInvalid, got %v", err)
			}
		})
	}
}

// Bytes before header_version are outside the signed range, and the magic
// is not checked.
func TestVerify_IgnoresUnsignedPrefix(t *testing.T) {
	priv := newKey(t)
	img := signedImage(t, priv)
	copy(img, "XXXX")
	img[image.ChecksumOffset] ^= 0xff

	res, err := verify.Verify(context.Background(), img, key.New(priv), verify.Options{})
	if err != nil || res.Status != verify.StatusValid {
		t.Errorf("Verify() = %v, %v; want Valid", res.Status, err)
	}
}

func TestVerify_KeyMismatch(t *testing.T) {
	img := signedImage(t, newKey(t))
	other := newKey(t)

	res, err := verify.Verify(context.Background(), img, key.New(other), verify.Options{})
	if res.Status != verify.StatusKeyMismatch || !errors.Is(err, image.ErrKeyMismatch) {
		t.Fatalf("Verify() = %v, %v; want KeyMismatch", res.Status, err)
	}
	// The comparison happens before the image is hashed.
	if !res.Digest.Equal(hashing.Digest{}) {
		t.Errorf("digest computed on a key mismatch: %v", res.Digest)
	}
}

func TestVerify_EmbeddedKeyReplaced(t *testing.T) {
	priv := newKey(t)
	img := signedImage(t, priv)
	sig := append([]byte(nil), img[image.SignatureOffset:image.SignatureOffset+image.SignatureSize]...)

	other := newKey(t)
	pk := img[image.ECDSAPublicKeyOffset : image.ECDSAPublicKeyOffset+64]
	other.PublicKey.X.FillBytes(pk[:32])
	other.PublicKey.Y.FillBytes(pk[32:])

	res, err := verify.Verify(context.Background(), img, key.New(priv), verify.Options{})
	if res.Status != verify.StatusKeyMismatch || !errors.Is(err, image.ErrKeyMismatch) {
		t.Fatalf("Verify() = %v, %v; want KeyMismatch", res.Status, err)
	}
	if res.Digest.Size() != 0 {
		t.Errorf("digest computed on a key mismatch: %v", res.Digest)
	}
	if !bytes.Equal(img[image.SignatureOffset:image.SignatureOffset+image.SignatureSize], sig) {
		t.Error("signature bytes changed")
	}
}

func TestVerify_TokenKeyComparison(t *testing.T) {
	img := signedImage(t, newKey(t))
	tok := tokenSigner{key.New(newKey(t))}

	res, err := verify.Verify(context.Background(), img, tok, verify.Options{})
	if res.Status != verify.StatusInvalid || !errors.Is(err, image.ErrSignatureInvalid) {
		t.Errorf("default: Verify() = %v, %v; want Invalid", res.Status, err)
	}

	res, err = verify.Verify(context.Background(), img, tok, verify.Options{StrictKeyMatch: true})
	if res.Status != verify.StatusKeyMismatch || !errors.Is(err, image.ErrKeyMismatch) {
		t.Errorf("strict: Verify() = %v, %v; want KeyMismatch", res.Status, err)
	}
}

func TestVerify_FormatError(t *testing.T) {
	res, err := verify.Verify(context.Background(), make([]byte, 255), key.New(newKey(t)), verify.Options{})
	if res.Status != verify.StatusFormatError || !errors.Is(err, image.ErrFormat) {
		t.Errorf("Verify() = %v, %v; want FormatError", res.Status, err)
	}
}

func TestVerify_KeyAccess(t *testing.T) {
	img := signedImage(t, newKey(t))
	res, err := verify.Verify(context.Background(), img, failingSigner{}, verify.Options{})
	if res.Status != verify.StatusUnknown || !errors.Is(err, image.ErrKeyAccess) {
		t.Errorf("Verify() = %v, %v; want Unknown with KeyAccessError", res.Status, err)
	}
}

func TestVerify_UnsupportedReferenceCurve(t *testing.T) {
	img := signedImage(t, newKey(t))
	p384, _ := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)

	_, err := verify.Verify(context.Background(), img, key.New(p384), verify.Options{})
	if !errors.Is(err, image.ErrUnsupportedCurve) {
		t.Errorf("Expected UnsupportedCurveError, got %v", err)
	}
}

func TestStatus_String(t *testing.T) {
	tests := map[verify.Status]string{
		verify.StatusValid:       "Valid",
		verify.StatusInvalid:     "Invalid",
		verify.StatusKeyMismatch: "KeyMismatch",
		verify.StatusFormatError: "FormatError",
		verify.StatusUnknown:     "Unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("String() = %q, want %q", s.String(), want)
		}
	}
}

// tokenSigner presents an in-memory key as a token signer.
type tokenSigner struct {
	*key.Signer
}

func (tokenSigner) Kind() signer.Kind { return signer.KindToken }

type failingSigner struct{}

func (failingSigner) Kind() signer.Kind { return signer.KindToken }

func (failingSigner) Open(context.Context) (signer.Session, error) {
	return nil, errors.New("CKR_PIN_INCORRECT")
}
