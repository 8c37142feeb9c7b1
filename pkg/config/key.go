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

// Package config loads the key material named on the command line: PEM key
// files for the local signer and token coordinates for the PKCS#11 signer.
package config

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/sigstore/sigstore/pkg/cryptoutils"

	"github.com/sigstore/stm32-signing/pkg/image"
)

// pemECParameters is the curve block openssl ecparam -genkey writes ahead
// of the key.
const pemECParameters = "EC PARAMETERS"

// KeyConfig names a PEM key file and its optional passphrase.
//
// Supported encodings:
//   - PKCS#8 "PRIVATE KEY" and SEC1 "EC PRIVATE KEY", optionally preceded
//     by an "EC PARAMETERS" block
//   - legacy OpenSSL encrypted PEM (Proc-Type: 4,ENCRYPTED)
//   - sigstore "ENCRYPTED SIGSTORE PRIVATE KEY"
//   - PKIX "PUBLIC KEY", for verification only
type KeyConfig struct {
	// Path is the file path to the key (PEM format).
	Path string
	// Password decrypts encrypted private keys. Ignored for plain keys.
	Password string
}

// Load reads the key file. priv is nil when the file only holds a public
// key. File errors are IOError; parse errors are KeyAccessError.
func (c *KeyConfig) Load() (priv crypto.Signer, pub crypto.PublicKey, err error) {
	block, err := c.readKeyBlock()
	if err != nil {
		return nil, nil, err
	}

	if block.Type == string(cryptoutils.PublicKeyPEMType) {
		pub, err := cryptoutils.UnmarshalPEMToPublicKey(pem.EncodeToMemory(block))
		if err != nil {
			return nil, nil, image.NewError(image.KindKeyAccess, "failed to parse public key", err)
		}
		return nil, pub, nil
	}

	priv, err = c.parsePrivate(block)
	if err != nil {
		return nil, nil, err
	}
	return priv, priv.Public(), nil
}

// LoadPrivateKey loads a private key, failing on public-only files.
func (c *KeyConfig) LoadPrivateKey() (crypto.Signer, error) {
	priv, _, err := c.Load()
	if err != nil {
		return nil, err
	}
	if priv == nil {
		return nil, image.Errorf(image.KindKeyAccess, "%s holds no private key", c.Path)
	}
	return priv, nil
}

// LoadPublicKey loads the public key, deriving it from a private key file
// when needed.
func (c *KeyConfig) LoadPublicKey() (crypto.PublicKey, error) {
	_, pub, err := c.Load()
	return pub, err
}

func (c *KeyConfig) readKeyBlock() (*pem.Block, error) {
	if c.Path == "" {
		return nil, image.Errorf(image.KindKeyAccess, "key path is required")
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, image.NewError(image.KindIO, "failed to read key file", err)
	}

	for rest := data; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, image.Errorf(image.KindKeyAccess, "no PEM key block in %s", c.Path)
		}
		if block.Type != pemECParameters {
			return block, nil
		}
	}
}

func (c *KeyConfig) parsePrivate(block *pem.Block) (crypto.Signer, error) {
	//nolint:staticcheck // legacy OpenSSL encryption is what openssl ec -aes256 still writes.
	if x509.IsEncryptedPEMBlock(block) {
		if c.Password == "" {
			return nil, image.Errorf(image.KindKeyAccess, "key is encrypted and no passphrase was given")
		}
		//nolint:staticcheck
		der, err := x509.DecryptPEMBlock(block, []byte(c.Password))
		if err != nil {
			if errors.Is(err, x509.IncorrectPasswordError) {
				return nil, image.Errorf(image.KindKeyAccess, "incorrect passphrase")
			}
			return nil, image.NewError(image.KindKeyAccess, "failed to decrypt key", err)
		}
		block = &pem.Block{Type: block.Type, Bytes: der}
	}

	var passFunc cryptoutils.PassFunc
	if c.Password != "" {
		passFunc = cryptoutils.StaticPasswordFunc([]byte(c.Password))
	} else if block.Type == string(cryptoutils.EncryptedSigstorePrivateKeyPEMType) {
		return nil, image.Errorf(image.KindKeyAccess, "key is encrypted and no passphrase was given")
	}

	key, err := cryptoutils.UnmarshalPEMToPrivateKey(pem.EncodeToMemory(block), passFunc)
	if err != nil {
		return nil, image.NewError(image.KindKeyAccess, "failed to parse private key", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, image.Errorf(image.KindKeyAccess, "private key of type %T cannot sign", key)
	}
	return signer, nil
}

// String describes the config without the password.
func (c *KeyConfig) String() string {
	return fmt.Sprintf("key %s (password set: %t)", c.Path, c.Password != "")
}
