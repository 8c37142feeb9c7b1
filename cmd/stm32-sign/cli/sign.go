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

	"github.com/spf13/cobra"

	"github.com/sigstore/stm32-signing/cmd/stm32-sign/cli/options"
	"github.com/sigstore/stm32-signing/pkg/signer"
	"github.com/sigstore/stm32-signing/pkg/signer/key"
	"github.com/sigstore/stm32-signing/pkg/signer/pkcs11"
	"github.com/sigstore/stm32-signing/pkg/signing"
	"github.com/sigstore/stm32-signing/pkg/utils"
)

// NewKeySign creates the key subcommand for image signing.
func NewKeySign() *cobra.Command {
	o := &options.KeySignOptions{}

	long := `Sign using an ECDSA P-256 private key.

Rewrites the header of IMAGE with the public key of --private-key and the
signature over the image, and writes the result to --output (IMAGE itself
when --output is not given). Nothing is written unless the new signature
verifies.`

	cmd := &cobra.Command{
		Use:   "key [OPTIONS] IMAGE",
		Short: "Sign using a private key.",
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath := args[0]
			if err := o.Validate(imagePath); err != nil {
				return withExitCode(err)
			}

			kc := o.KeyConfig()
			priv, err := kc.LoadPrivateKey()
			if err != nil {
				return withExitCode(err)
			}
			return withExitCode(signFile(cmd, imagePath, o.Target(imagePath), key.New(priv)))
		},
	}

	o.AddFlags(cmd)
	return cmd
}

// NewPKCS11Sign creates the pkcs11 subcommand for image signing.
func NewPKCS11Sign() *cobra.Command {
	o := &options.PKCS11SignOptions{}

	long := `Sign using a key pair on a PKCS#11 token.

The key is named either by an RFC 7512 URI (--uri) or by --module-path,
--token and --key-label (or --key-id). Explicit flags override the URI.
The PIN comes from --pin, the URI, $STM32_SIGN_PIN or $PKCS11_PIN, in that
order.`

	cmd := &cobra.Command{
		Use:   "pkcs11 [OPTIONS] IMAGE",
		Short: "Sign using a PKCS#11 token.",
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
			return withExitCode(signFile(cmd, imagePath, o.Target(imagePath), s))
		},
	}

	o.AddFlags(cmd)
	return cmd
}

// signFile signs the image at in and writes it to out. out is only written
// when signing and self verification both succeed.
func signFile(cmd *cobra.Command, in, out string, s signer.Signer) error {
	obs := ro.NewObservability()

	data, err := utils.ReadImage(in)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), ro.Timeout)
	defer cancel()

	res, err := signing.Sign(ctx, data, s, signing.Options{
		Logger:     obs.Logger,
		SelfVerify: true,
	})
	if err != nil {
		return err
	}

	if err := utils.WriteImage(out, data); err != nil {
		return err
	}
	obs.Logger.Info("%s: wrote %s", res.Message, out)
	return nil
}

// Sign creates the sign command with its key backends.
func Sign() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign [OPTIONS] BACKEND",
		Short: "Sign an STM32 image.",
		Long: `Sign an STM32 image.

The header fields option_flags, ecdsa_algo and ecdsa_pubkey are set for the
signing key, then the signature is computed and stored in the header. The
magic must be "STM2". Reserved header bytes are cleared.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(NewKeySign())
	cmd.AddCommand(NewPKCS11Sign())
	return cmd
}
