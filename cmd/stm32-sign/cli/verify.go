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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigstore/stm32-signing/cmd/stm32-sign/cli/options"
	"github.com/sigstore/stm32-signing/pkg/signer"
	"github.com/sigstore/stm32-signing/pkg/signer/key"
	"github.com/sigstore/stm32-signing/pkg/signer/pkcs11"
	"github.com/sigstore/stm32-signing/pkg/utils"
	"github.com/sigstore/stm32-signing/pkg/verify"
)

// NewKeyVerify creates the key subcommand for image verification.
func NewKeyVerify() *cobra.Command {
	o := &options.KeyVerifyOptions{}

	long := `Verify using an ECDSA P-256 public key.

Checks that the public key embedded in the header of IMAGE is --key and that
the header signature is valid for it. --key may also be the private key;
only its public half is used.`

	cmd := &cobra.Command{
		Use:   "key [OPTIONS] IMAGE",
		Short: "Verify using a public key.",
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath := args[0]
			if err := o.Validate(imagePath); err != nil {
				return withExitCode(err)
			}

			kc := o.KeyConfig()
			pub, err := kc.LoadPublicKey()
			if err != nil {
				return withExitCode(err)
			}
			return withExitCode(verifyFile(cmd, imagePath, key.NewVerifier(pub), false))
		},
	}

	o.AddFlags(cmd)
	return cmd
}

// NewPKCS11Verify creates the pkcs11 subcommand for image verification.
func NewPKCS11Verify() *cobra.Command {
	o := &options.PKCS11VerifyOptions{}

	long := `Verify using the public half of a key pair on a PKCS#11 token.

By default only the signature is checked against the token key. With
--strict-key-match the public key embedded in the header must also be the
token's key, as for the key backend.`

	cmd := &cobra.Command{
		Use:   "pkcs11 [OPTIONS] IMAGE",
		Short: "Verify using a PKCS#11 token.",
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath := args[0]
			if err := o.Validate(imagePath); err != nil {
				return withExitCode(err)
			}

			tc := o.TokenConfig()
			cfg, err := tc.Resolve()
			if err != nil {
				return withExitCode(err)
			}
			s, err := pkcs11.New(cfg, pkcs11.WithLogger(ro.NewLogger()))
			if err != nil {
				return withExitCode(err)
			}
			return withExitCode(verifyFile(cmd, imagePath, s, o.StrictKeyMatch))
		},
	}

	o.AddFlags(cmd)
	return cmd
}

// verifyFile prints the verification status of the image at path and
// returns the typed error for any status but Valid.
func verifyFile(cmd *cobra.Command, path string, s signer.Signer, strict bool) error {
	obs := ro.NewObservability()

	data, err := utils.ReadImage(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), ro.Timeout)
	defer cancel()

	res, err := verify.Verify(ctx, data, s, verify.Options{
		Logger:         obs.Logger,
		StrictKeyMatch: strict,
	})
	fmt.Fprintln(cmd.OutOrStdout(), "Verification Status:", res.Status)
	return err
}

// Verify creates the verify command with its key backends.
func Verify() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [OPTIONS] BACKEND",
		Short: "Verify an STM32 image.",
		Long: `Verify an STM32 image.

Prints the verification status (Valid, Invalid, KeyMismatch, FormatError)
and exits non-zero for anything but Valid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(NewKeyVerify())
	cmd.AddCommand(NewPKCS11Verify())
	return cmd
}
