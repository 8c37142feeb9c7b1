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
)

// FlagAdder is implemented by any flag group that can register itself to a cobra command.
type FlagAdder interface {
	AddFlags(cmd *cobra.Command)
}

// AddAllFlags registers several flag groups at once.
func AddAllFlags(cmd *cobra.Command, flagGroups ...FlagAdder) {
	for _, fg := range flagGroups {
		fg.AddFlags(cmd)
	}
}

// OutputImageFlags selects where sign writes the signed image.
type OutputImageFlags struct {
	// Output is the signed image path. Empty means rewrite the input.
	Output string
}

func (o *OutputImageFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Output, "output", "o", "",
		"Path of the signed image. Defaults to rewriting IMAGE in place.")
	_ = cmd.MarkFlagFilename("output", "stm32", "bin")
}

// Target returns the path the signed image goes to.
func (o *OutputImageFlags) Target(input string) string {
	if o.Output == "" {
		return input
	}
	return o.Output
}

// TokenFlags name a key pair on a PKCS#11 token.
type TokenFlags struct {
	URI                string
	ModulePath         string
	ModuleDirectories  []string
	AllowedModulePaths []string
	TokenLabel         string
	KeyLabel           string
	KeyID              string
	PIN                string
}

func (o *TokenFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.URI, "uri", "",
		"RFC 7512 PKCS#11 URI of the key, e.g. pkcs11:token=fw;object=root?module-path=/usr/lib/softhsm/libsofthsm2.so")
	cmd.Flags().StringVar(&o.ModulePath, "module-path", "", "Path to the PKCS#11 module (.so).")
	_ = cmd.MarkFlagFilename("module-path", "so")
	cmd.Flags().StringSliceVar(&o.ModuleDirectories, "module-dir", nil,
		"Directories searched for the URI module-name attribute.")
	cmd.Flags().StringSliceVar(&o.AllowedModulePaths, "allowed-module", nil,
		"Only load PKCS#11 modules at these paths. A path ending in / allows any module in that directory.")
	cmd.Flags().StringVar(&o.TokenLabel, "token", "", "Label of the token holding the key.")
	cmd.Flags().StringVar(&o.KeyLabel, "key-label", "", "Label (CKA_LABEL) of the key pair.")
	cmd.Flags().StringVar(&o.KeyID, "key-id", "", "Hex encoded CKA_ID of the key pair.")
	cmd.Flags().StringVar(&o.PIN, "pin", "",
		"User PIN of the token. Defaults to $"+EnvPrefix+"_PIN, then $"+config.PINEnvVar+".")
}

// TokenConfig converts the flags into a config.TokenConfig.
func (o *TokenFlags) TokenConfig() config.TokenConfig {
	return config.TokenConfig{
		URI:                o.URI,
		ModulePath:         o.ModulePath,
		ModuleDirectories:  o.ModuleDirectories,
		AllowedModulePaths: o.AllowedModulePaths,
		TokenLabel:         o.TokenLabel,
		KeyLabel:           o.KeyLabel,
		KeyID:              o.KeyID,
		PIN:                valueOrEnv(o.PIN, "PIN"),
	}
}
