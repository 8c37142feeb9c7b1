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

// Package image implements the STM32MP bootloader image header: a fixed
// 256-byte little-endian prefix validated by the boot ROM, and the byte range
// of the image covered by its ECDSA signature.
package image

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Header layout. Offsets and sizes are fixed by the boot ROM.
const (
	HeaderSize = 256

	MagicOffset           = 0x00
	SignatureOffset       = 0x04
	ChecksumOffset        = 0x44
	HeaderVersionOffset   = 0x48
	ImageLengthOffset     = 0x4C
	EntryAddressOffset    = 0x50
	Reserved1Offset       = 0x54
	LoadAddressOffset     = 0x58
	Reserved2Offset       = 0x5C
	RollbackVersionOffset = 0x60
	OptionFlagsOffset     = 0x64
	ECDSAAlgorithmOffset  = 0x68
	ECDSAPublicKeyOffset  = 0x6C
	PaddingOffset         = 0xAC
	BindingIDOffset       = 0xFF

	MagicSize          = 4
	SignatureSize      = 64
	ECDSAPublicKeySize = 64
	PaddingSize        = 83
)

// Magic is the tag identifying an STM32 header.
var Magic = [MagicSize]byte{'S', 'T', 'M', '2'}

// AlgorithmP256 is the ecdsa_algo value for NIST P-256.
const AlgorithmP256 uint32 = 1

// wireHeader mirrors the on-disk layout field for field.
type wireHeader struct {
	Magic           [MagicSize]byte
	Signature       [SignatureSize]byte
	Checksum        uint32
	HeaderVersion   uint32
	ImageLength     uint32
	EntryAddress    uint32
	Reserved1       uint32
	LoadAddress     uint32
	Reserved2       uint32
	RollbackVersion uint32
	OptionFlags     uint32
	ECDSAAlgorithm  uint32
	ECDSAPublicKey  [ECDSAPublicKeySize]byte
	Padding         [PaddingSize]byte
	BindingID       uint8
}

func init() {
	if n := binary.Size(wireHeader{}); n != HeaderSize {
		panic(fmt.Sprintf("image: wire header is %d bytes, want %d", n, HeaderSize))
	}
	if PaddingOffset+PaddingSize != BindingIDOffset || BindingIDOffset+1 != HeaderSize {
		panic("image: padding and binding_id do not end the header")
	}
}

// Header is the decoded STM32 header. The reserved regions (reserved1,
// reserved2, padding, binding_id) are not kept; they are always written
// as zero.
type Header struct {
	Magic           [MagicSize]byte
	Signature       [SignatureSize]byte
	Checksum        uint32
	HeaderVersion   uint32
	ImageLength     uint32
	EntryAddress    uint32
	LoadAddress     uint32
	RollbackVersion uint32
	OptionFlags     uint32
	ECDSAAlgorithm  uint32
	ECDSAPublicKey  [ECDSAPublicKeySize]byte
}

// Decode parses the first HeaderSize bytes of img. It does not check the
// magic; see HasValidMagic.
func Decode(img []byte) (*Header, error) {
	if len(img) < HeaderSize {
		return nil, Errorf(KindFormat, "image is %d bytes, shorter than the %d byte header", len(img), HeaderSize)
	}

	var w wireHeader
	if err := binary.Read(bytes.NewReader(img[:HeaderSize]), binary.LittleEndian, &w); err != nil {
		return nil, NewError(KindFormat, "failed to decode header", err)
	}

	return &Header{
		Magic:           w.Magic,
		Signature:       w.Signature,
		Checksum:        w.Checksum,
		HeaderVersion:   w.HeaderVersion,
		ImageLength:     w.ImageLength,
		EntryAddress:    w.EntryAddress,
		LoadAddress:     w.LoadAddress,
		RollbackVersion: w.RollbackVersion,
		OptionFlags:     w.OptionFlags,
		ECDSAAlgorithm:  w.ECDSAAlgorithm,
		ECDSAPublicKey:  w.ECDSAPublicKey,
	}, nil
}

// Encode overwrites img[0:HeaderSize] with h. Reserved fields are zeroed
// and the payload is left as is.
func (h *Header) Encode(img []byte) error {
	if len(img) < HeaderSize {
		return Errorf(KindFormat, "image is %d bytes, shorter than the %d byte header", len(img), HeaderSize)
	}

	w := wireHeader{
		Magic:           h.Magic,
		Signature:       h.Signature,
		Checksum:        h.Checksum,
		HeaderVersion:   h.HeaderVersion,
		ImageLength:     h.ImageLength,
		EntryAddress:    h.EntryAddress,
		LoadAddress:     h.LoadAddress,
		RollbackVersion: h.RollbackVersion,
		OptionFlags:     h.OptionFlags,
		ECDSAAlgorithm:  h.ECDSAAlgorithm,
		ECDSAPublicKey:  h.ECDSAPublicKey,
	}

	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize))
	if err := binary.Write(buf, binary.LittleEndian, &w); err != nil {
		return NewError(KindFormat, "failed to encode header", err)
	}
	copy(img[:HeaderSize], buf.Bytes())
	return nil
}

// WriteSignature splices a raw r||s signature into [SignatureOffset,
// ChecksumOffset) without touching any other header byte.
func WriteSignature(img, sig []byte) error {
	if len(sig) != SignatureSize {
		return Errorf(KindFormat, "signature is %d bytes, want %d", len(sig), SignatureSize)
	}
	if len(img) < HeaderSize {
		return Errorf(KindFormat, "image is %d bytes, shorter than the %d byte header", len(img), HeaderSize)
	}
	copy(img[SignatureOffset:SignatureOffset+SignatureSize], sig)
	return nil
}

// HasValidMagic reports whether the header carries the STM2 tag.
func (h *Header) HasValidMagic() bool {
	return h.Magic == Magic
}

// CheckLength reports whether the image length matches HeaderSize plus the
// declared payload length. The boot ROM contract does not require it, so
// callers treat a mismatch as a warning.
func (h *Header) CheckLength(imageLen int) error {
	want := uint64(HeaderSize) + uint64(h.ImageLength)
	if uint64(imageLen) != want {
		return fmt.Errorf("image is %d bytes, header declares %d (%d + %d)",
			imageLen, want, HeaderSize, h.ImageLength)
	}
	return nil
}

// Field is one named header value, as shown by Summary.
type Field struct {
	Name  string
	Value string
}

// Summary returns the header fields in layout order with display values.
func (h *Header) Summary() []Field {
	return []Field{
		{"magic", fmt.Sprintf("%q", string(h.Magic[:]))},
		{"signature", hex.EncodeToString(h.Signature[:])},
		{"checksum", fmt.Sprintf("0x%08x", h.Checksum)},
		{"header_version", fmt.Sprintf("0x%08x", h.HeaderVersion)},
		{"image_length", fmt.Sprintf("%d", h.ImageLength)},
		{"entry_address", fmt.Sprintf("0x%08x", h.EntryAddress)},
		{"load_address", fmt.Sprintf("0x%08x", h.LoadAddress)},
		{"rollback_version", fmt.Sprintf("%d", h.RollbackVersion)},
		{"option_flags", fmt.Sprintf("0x%08x", h.OptionFlags)},
		{"ecdsa_algo", fmt.Sprintf("%d", h.ECDSAAlgorithm)},
		{"ecdsa_pubkey", hex.EncodeToString(h.ECDSAPublicKey[:])},
	}
}
