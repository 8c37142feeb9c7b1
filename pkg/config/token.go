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

package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/sigstore/stm32-signing/pkg/signer/pkcs11"
)

// PINEnvVar is read when neither the flags nor the URI carry a PIN.
const PINEnvVar = "PKCS11_PIN"

// TokenConfig names a key pair on a PKCS#11 token, either through an RFC
// 7512 URI, explicit fields, or both. Explicit fields win over the URI.
type TokenConfig struct {
	URI               string
	ModulePath        string
	ModuleDirectories []string
	// AllowedModulePaths, when set, restricts which modules may be loaded.
	// Entries ending in a path separator allow any module directly inside.
	AllowedModulePaths []string
	TokenLabel         string
	KeyLabel           string
	// KeyID is the hex encoded CKA_ID.
	KeyID string
	PIN   string
}

// Resolve merges the URI with the explicit fields and validates the result.
func (c *TokenConfig) Resolve() (pkcs11.Config, error) {
	var cfg pkcs11.Config

	if c.URI != "" {
		u, err := pkcs11.ParseURI(c.URI)
		if err != nil {
			return cfg, fmt.Errorf("invalid PKCS#11 URI: %w", err)
		}
		dirs := c.ModuleDirectories
		if len(dirs) == 0 {
			dirs = pkcs11.DefaultModuleDirectories
		}
		u.SetModuleDirectories(dirs)
		if len(c.AllowedModulePaths) > 0 {
			u.SetAllowedModulePaths(c.AllowedModulePaths)
		}
		if cfg, err = pkcs11.ConfigFromURI(u); err != nil {
			return cfg, err
		}
	}

	if c.ModulePath != "" {
		cfg.ModulePath = c.ModulePath
	}
	if len(c.AllowedModulePaths) > 0 && cfg.ModulePath != "" &&
		!pkcs11.ModuleAllowed(cfg.ModulePath, c.AllowedModulePaths) {
		return cfg, fmt.Errorf("module-path '%s' is not allowed by policy", cfg.ModulePath)
	}
	if c.TokenLabel != "" {
		cfg.TokenLabel = c.TokenLabel
	}
	if c.KeyLabel != "" {
		cfg.KeyLabel = c.KeyLabel
	}
	if c.KeyID != "" {
		id, err := hex.DecodeString(c.KeyID)
		if err != nil {
			return cfg, fmt.Errorf("key id must be hex: %w", err)
		}
		cfg.KeyID = id
	}
	if c.PIN != "" {
		cfg.PIN = c.PIN
	}
	if cfg.PIN == "" {
		cfg.PIN = os.Getenv(PINEnvVar)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
