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

package options

import (
	"github.com/spf13/cobra"

	"github.com/sigstore/stm32-signing/pkg/config"
	"github.com/sigstore/stm32-signing/pkg/utils"
)

type KeyVerifyOptions struct {
	KeyPath  string // --key (required)
	Password string // --password
}

func (o *KeyVerifyOptions) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.KeyPath, "key", "",
		"Path to the public key, or the private key it pairs with, as a PEM-encoded file. [required]")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagFilename("key", "pem", "pub", "key")
	cmd.Flags().StringVar(&o.Password, "password", "",
		"Password when --key is an encrypted private key. Defaults to $"+EnvPrefix+"_PASSWORD.")
}

func (o *KeyVerifyOptions) Validate(imagePath string) error {
	if err := utils.ValidateFileExists("image", imagePath); err != nil {
		return err
	}
	return utils.ValidateFileExists("key", o.KeyPath)
}

func (o *KeyVerifyOptions) KeyConfig() config.KeyConfig {
	return config.KeyConfig{Path: o.KeyPath, Password: valueOrEnv(o.Password, "PASSWORD")}
}

type PKCS11VerifyOptions struct {
	TokenFlags
	StrictKeyMatch bool // --strict-key-match
}

func (o *PKCS11VerifyOptions) AddFlags(cmd *cobra.Command) {
	o.TokenFlags.AddFlags(cmd)
	cmd.Flags().BoolVar(&o.StrictKeyMatch, "strict-key-match", false,
		"Fail with KeyMismatch when the public key in the header is not the token's key.")
}

func (o *PKCS11VerifyOptions) Validate(imagePath string) error {
	return utils.ValidateFileExists("image", imagePath)
}

type InspectOptions struct {
	Format string // --format
}

func (o *InspectOptions) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Format, "format", "text", "Output format (text, json).")
}

func (o *InspectOptions) Validate(imagePath string) error {
	if o.Format != "text" && o.Format != "json" {
		return &UsageError{Flag: "format", Value: o.Format, Want: "text or json"}
	}
	return utils.ValidateFileExists("image", imagePath)
}
