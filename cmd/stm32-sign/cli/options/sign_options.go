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

type KeySignOptions struct {
	OutputImageFlags
	PrivateKeyPath string // --private-key PRIVATE_KEY (required)
	Password       string // --password
}

func (o *KeySignOptions) AddFlags(cmd *cobra.Command) {
	o.OutputImageFlags.AddFlags(cmd)

	cmd.Flags().StringVar(&o.PrivateKeyPath, "private-key", "", "Path to the private key, as a PEM-encoded file. [required]")
	_ = cmd.MarkFlagRequired("private-key")
	_ = cmd.MarkFlagFilename("private-key", "pem", "key")
	cmd.Flags().StringVar(&o.Password, "password", "",
		"Password for the key encryption, if any. Defaults to $"+EnvPrefix+"_PASSWORD.")
}

func (o *KeySignOptions) Validate(imagePath string) error {
	if err := utils.ValidateFileExists("image", imagePath); err != nil {
		return err
	}
	if err := utils.ValidateFileExists("private key", o.PrivateKeyPath); err != nil {
		return err
	}
	if o.Output != "" {
		return utils.ValidateOutputPath("output", o.Output)
	}
	return nil
}

func (o *KeySignOptions) KeyConfig() config.KeyConfig {
	return config.KeyConfig{Path: o.PrivateKeyPath, Password: valueOrEnv(o.Password, "PASSWORD")}
}

type PKCS11SignOptions struct {
	OutputImageFlags
	TokenFlags
}

func (o *PKCS11SignOptions) AddFlags(cmd *cobra.Command) {
	AddAllFlags(cmd, &o.OutputImageFlags, &o.TokenFlags)
}

func (o *PKCS11SignOptions) Validate(imagePath string) error {
	if err := utils.ValidateFileExists("image", imagePath); err != nil {
		return err
	}
	if o.Output != "" {
		return utils.ValidateOutputPath("output", o.Output)
	}
	return nil
}
