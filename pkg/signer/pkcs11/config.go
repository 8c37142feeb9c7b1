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

package pkcs11

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ThalesGroup/crypto11"
)

// Config locates a key pair on a PKCS#11 token.
type Config struct {
	// ModulePath is the PKCS#11 library to load.
	ModulePath string
	// TokenLabel selects the token. SlotNumber is used when it is empty.
	TokenLabel string
	SlotNumber *int
	// KeyLabel and KeyID select the key pair; at least one is required.
	KeyLabel string
	KeyID    []byte
	// PIN is the user PIN. It is never logged.
	PIN string
}

// ConfigFromURI builds a Config from a parsed URI. Module lookup follows
// ModulePath.
func ConfigFromURI(u *URI) (Config, error) {
	var cfg Config

	if u.HasModule() {
		modulePath, err := u.ModulePath()
		if err != nil {
			return cfg, fmt.Errorf("failed to find PKCS#11 module: %w", err)
		}
		cfg.ModulePath = modulePath
	}
	cfg.TokenLabel = u.TokenLabel()
	if slot := u.SlotID(); slot >= 0 {
		cfg.SlotNumber = &slot
	}
	cfg.KeyLabel = u.KeyLabel()
	cfg.KeyID = u.KeyID()

	if u.HasPIN() {
		pin, err := u.PIN()
		if err != nil {
			return cfg, err
		}
		cfg.PIN = pin
	}
	return cfg, nil
}

// Validate checks that the module, token and key are all named.
func (c Config) Validate() error {
	var errs []string
	if c.ModulePath == "" {
		errs = append(errs, "module path is required")
	}
	if c.TokenLabel == "" && c.SlotNumber == nil {
		errs = append(errs, "token label or slot is required")
	}
	if c.KeyLabel == "" && len(c.KeyID) == 0 {
		errs = append(errs, "key label or id is required")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func (c Config) crypto11Config() *crypto11.Config {
	cfg := &crypto11.Config{
		Path: c.ModulePath,
		Pin:  c.PIN,
	}
	if c.TokenLabel != "" {
		cfg.TokenLabel = c.TokenLabel
	} else {
		cfg.SlotNumber = c.SlotNumber
	}
	return cfg
}
