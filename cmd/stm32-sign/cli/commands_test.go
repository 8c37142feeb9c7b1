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

package cli

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/sigstore/sigstore/pkg/cryptoutils"

	"github.com/sigstore/stm32-signing/pkg/image"
)

const payloadSize = 16

// writeImage creates an unsigned 272 byte image in dir.
func writeImage(t *testing.T, dir string) string {
	t.Helper()
	img := make([]byte, image.HeaderSize+payloadSize)
	copy(img, image.Magic[:])
	binary.LittleEndian.PutUint32(img[image.ImageLengthOffset:], payloadSize)
	binary.LittleEndian.PutUint32(img[image.EntryAddressOffset:], 0x2ffc2500)
	for i := image.HeaderSize; i < len(img); i++ {
		img[i] = byte(i)
	}
	path := filepath.Join(dir, "fsbl.stm32")
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatalf("Failed to write image: %v", err)
	}
	return path
}

// writeKeys writes a PEM private key and its public key into dir.
func writeKeys(t *testing.T, dir string, curve elliptic.Curve) (privPath, pubPath string) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	privPEM, err := cryptoutils.MarshalPrivateKeyToPEM(priv)
	if err != nil {
		t.Fatal(err)
	}
	pubPEM, err := cryptoutils.MarshalPublicKeyToPEM(priv.Public())
	if err != nil {
		t.Fatal(err)
	}
	privPath = filepath.Join(dir, "key.pem")
	pubPath = filepath.Join(dir, "key.pub")
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		t.Fatal(err)
	}
	return privPath, pubPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := New()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSignVerifyKey_InPlace(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeImage(t, dir)
	privPath, pubPath := writeKeys(t, dir, elliptic.P256())

	if _, err := run(t, "sign", "key", "--private-key", privPath, imgPath); err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	signed, err := os.ReadFile(imgPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := binary.LittleEndian.Uint32(signed[image.ECDSAAlgorithmOffset:]); got != image.AlgorithmP256 {
		t.Errorf("Expected ecdsa_algo 1, got %d", got)
	}

	out, err := run(t, "verify", "key", "--key", pubPath, imgPath)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !strings.Contains(out, "Verification Status: Valid") {
		t.Errorf("Expected Valid status, got %q", out)
	}
}

func TestVerifyKey_PrivateKeyFile(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeImage(t, dir)
	privPath, _ := writeKeys(t, dir, elliptic.P256())

	if _, err := run(t, "sign", "key", "--private-key", privPath, imgPath); err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	out, err := run(t, "verify", "key", "--key", privPath, imgPath)
	if err != nil {
		t.Fatalf("verify with private key file failed: %v", err)
	}
	if !strings.Contains(out, "Verification Status: Valid") {
		t.Errorf("Expected Valid status, got %q", out)
	}
}

func TestSignKey_OutputLeavesInputAlone(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeImage(t, dir)
	privPath, _ := writeKeys(t, dir, elliptic.P256())
	before, _ := os.ReadFile(imgPath)
	outPath := filepath.Join(dir, "signed.stm32")

	if _, err := run(t, "sign", "key", "--private-key", privPath, "-o", outPath, imgPath); err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	after, _ := os.ReadFile(imgPath)
	if !bytes.Equal(before, after) {
		t.Error("Expected input image to be unchanged when -o is given")
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("Expected signed output at %s: %v", outPath, err)
	}
}

func TestVerifyKey_Tampered(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeImage(t, dir)
	privPath, pubPath := writeKeys(t, dir, elliptic.P256())
	if _, err := run(t, "sign", "key", "--private-key", privPath, imgPath); err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	data, _ := os.ReadFile(imgPath)
	data[len(data)-1] ^= 0x01
	if err := os.WriteFile(imgPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "verify", "key", "--key", pubPath, imgPath)
	if ExitCode(err) != ExitSignatureInvalid {
		t.Errorf("Expected exit code %d, got %d (%v)", ExitSignatureInvalid, ExitCode(err), err)
	}
	if !strings.Contains(out, "Verification Status: Invalid") {
		t.Errorf("Expected Invalid status, got %q", out)
	}
}

func TestVerifyKey_OtherKey(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeImage(t, dir)
	privPath, _ := writeKeys(t, dir, elliptic.P256())
	if _, err := run(t, "sign", "key", "--private-key", privPath, imgPath); err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	other := t.TempDir()
	_, otherPub := writeKeys(t, other, elliptic.P256())
	_, err := run(t, "verify", "key", "--key", otherPub, imgPath)
	if ExitCode(err) != ExitKeyMismatch {
		t.Errorf("Expected exit code %d, got %d (%v)", ExitKeyMismatch, ExitCode(err), err)
	}
}

func TestSignKey_Errors(t *testing.T) {
	dir := t.TempDir()
	privPath, pubPath := writeKeys(t, dir, elliptic.P256())
	p384Dir := t.TempDir()
	p384Priv, _ := writeKeys(t, p384Dir, elliptic.P384())

	badMagic := filepath.Join(dir, "bad.stm32")
	img := make([]byte, image.HeaderSize)
	copy(img, "XXXX")
	if err := os.WriteFile(badMagic, img, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		key      string
		image    string
		wantCode int
	}{
		{"bad magic", privPath, badMagic, ExitFormat},
		{"P-384 key", p384Priv, writeImage(t, t.TempDir()), ExitUnsupportedCurve},
		{"public key only", pubPath, writeImage(t, t.TempDir()), ExitKeyAccess},
		{"missing image", privPath, filepath.Join(dir, "missing.stm32"), int(syscall.ENOENT)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := os.ReadFile(tt.image)
			_, err := run(t, "sign", "key", "--private-key", tt.key, tt.image)
			if got := ExitCode(err); got != tt.wantCode {
				t.Errorf("Expected exit code %d, got %d (%v)", tt.wantCode, got, err)
			}
			after, _ := os.ReadFile(tt.image)
			if !bytes.Equal(before, after) {
				t.Error("Expected image file to be unchanged")
			}
		})
	}
}

func TestInspect_JSON(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeImage(t, dir)
	privPath, _ := writeKeys(t, dir, elliptic.P256())
	if _, err := run(t, "sign", "key", "--private-key", privPath, imgPath); err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	out, err := run(t, "inspect", "--format", "json", imgPath)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	var rep inspectReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("inspect output is not JSON: %v\n%s", err, out)
	}
	if !rep.MagicValid {
		t.Error("Expected magic to be valid")
	}
	if rep.LengthWarning != "" {
		t.Errorf("Expected no length warning, got %q", rep.LengthWarning)
	}
	if rep.Fields["ecdsa_algo"] != "1" {
		t.Errorf("Expected ecdsa_algo 1, got %q", rep.Fields["ecdsa_algo"])
	}
	if !strings.HasPrefix(rep.PublicKeyPEM, "-----BEGIN PUBLIC KEY-----") {
		t.Errorf("Expected a PEM public key, got %q", rep.PublicKeyPEM)
	}
	if len(rep.Order) != 11 || rep.Order[0] != "magic" {
		t.Errorf("Unexpected field order %v", rep.Order)
	}
}

func TestInspect_Text(t *testing.T) {
	imgPath := writeImage(t, t.TempDir())
	data, _ := os.ReadFile(imgPath)
	if err := os.WriteFile(imgPath, append(data, 0xff), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "inspect", imgPath)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !strings.Contains(out, "image_length     16") {
		t.Errorf("Expected image_length line, got:\n%s", out)
	}
	if !strings.Contains(out, "warning: image is 273 bytes") {
		t.Errorf("Expected a length warning, got:\n%s", out)
	}
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	cmd := New()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--log-level", "loud", "inspect", "x"})
	if err := cmd.Execute(); err == nil {
		t.Error("Expected error for unknown log level")
	}
}

func TestExitCode(t *testing.T) {
	pathErr := &fs.PathError{Op: "open", Path: "/x", Err: syscall.EACCES}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"untyped", errors.New("bad flag"), ExitUsage},
		{"signature", image.ErrSignatureInvalid, ExitSignatureInvalid},
		{"mismatch", image.Errorf(image.KindKeyMismatch, "x"), ExitKeyMismatch},
		{"format", image.Errorf(image.KindFormat, "x"), ExitFormat},
		{"curve", image.Errorf(image.KindUnsupportedCurve, "x"), ExitUnsupportedCurve},
		{"key access", image.Errorf(image.KindKeyAccess, "x"), ExitKeyAccess},
		{"io errno", image.NewError(image.KindIO, "reading", pathErr), int(syscall.EACCES)},
		{"io without errno", image.Errorf(image.KindIO, "x"), ExitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
			if tt.err != nil {
				var ec interface{ ExitCode() int }
				if !errors.As(withExitCode(tt.err), &ec) || ec.ExitCode() != tt.want {
					t.Errorf("withExitCode lost the exit code")
				}
			}
		})
	}
}
