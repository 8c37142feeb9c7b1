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

// Package crypto converts ECDSA signatures between the ASN.1 DER form
// produced by crypto.Signer implementations and the fixed-width raw r||s
// form stored in image headers.
package crypto

import (
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// ASN1ToRaw decodes a DER ECDSA-Sig-Value and returns r||s with each
// integer left padded to size bytes.
func ASN1ToRaw(der []byte, size int) ([]byte, error) {
	var (
		r, s  = new(big.Int), new(big.Int)
		inner cryptobyte.String
	)
	input := cryptobyte.String(der)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return nil, errors.New("invalid ASN.1 ECDSA signature")
	}
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return nil, errors.New("ECDSA signature has a non-positive component")
	}

	raw := make([]byte, 2*size)
	if err := putInt(raw[:size], r); err != nil {
		return nil, fmt.Errorf("r: %w", err)
	}
	if err := putInt(raw[size:], s); err != nil {
		return nil, fmt.Errorf("s: %w", err)
	}
	return raw, nil
}

// RawToASN1 encodes a raw r||s signature as a DER ECDSA-Sig-Value.
func RawToASN1(raw []byte) ([]byte, error) {
	if len(raw) == 0 || len(raw)%2 != 0 {
		return nil, fmt.Errorf("raw signature has odd length %d", len(raw))
	}
	half := len(raw) / 2
	r := new(big.Int).SetBytes(raw[:half])
	s := new(big.Int).SetBytes(raw[half:])

	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})
	return b.Bytes()
}

func putInt(dst []byte, n *big.Int) error {
	if (n.BitLen()+7)/8 > len(dst) {
		return fmt.Errorf("integer is %d bits, field holds %d bytes", n.BitLen(), len(dst))
	}
	n.FillBytes(dst)
	return nil
}
