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
	"encoding/json"
	"fmt"
	"io"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/spf13/cobra"

	"github.com/sigstore/stm32-signing/cmd/stm32-sign/cli/options"
	"github.com/sigstore/stm32-signing/pkg/image"
	"github.com/sigstore/stm32-signing/pkg/signer"
	"github.com/sigstore/stm32-signing/pkg/utils"
)

// inspectReport is the JSON form of inspect output.
type inspectReport struct {
	Fields        map[string]string `json:"fields"`
	Order         []string          `json:"order"`
	MagicValid    bool              `json:"magic_valid"`
	LengthWarning string            `json:"length_warning,omitempty"`
	PublicKeyPEM  string            `json:"public_key_pem,omitempty"`
}

// Inspect creates the inspect command.
func Inspect() *cobra.Command {
	o := &options.InspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect [OPTIONS] IMAGE",
		Short: "Print the decoded STM32 header.",
		Long: `Print the decoded STM32 header.

Shows every header field in layout order, warns when the file length does
not match 256 + image_length, and prints the embedded public key as PEM
when ecdsa_algo is 1 (P-256). The image is not verified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(args[0]); err != nil {
				return withExitCode(err)
			}
			data, err := utils.ReadImage(args[0])
			if err != nil {
				return withExitCode(err)
			}
			rep, err := buildReport(data)
			if err != nil {
				return withExitCode(err)
			}
			if o.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			writeText(cmd.OutOrStdout(), rep)
			return nil
		},
	}

	o.AddFlags(cmd)
	return cmd
}

func buildReport(data []byte) (*inspectReport, error) {
	hdr, err := image.Decode(data)
	if err != nil {
		return nil, err
	}

	rep := &inspectReport{
		Fields:     map[string]string{},
		MagicValid: hdr.HasValidMagic(),
	}
	for _, f := range hdr.Summary() {
		rep.Order = append(rep.Order, f.Name)
		rep.Fields[f.Name] = f.Value
	}
	if lerr := hdr.CheckLength(len(data)); lerr != nil {
		rep.LengthWarning = lerr.Error()
	}

	if hdr.ECDSAAlgorithm == image.AlgorithmP256 {
		pub, err := signer.ParseRawPublicKey(hdr.ECDSAAlgorithm, hdr.ECDSAPublicKey[:])
		if err == nil {
			if pemBytes, err := cryptoutils.MarshalPublicKeyToPEM(pub); err == nil {
				rep.PublicKeyPEM = string(pemBytes)
			}
		}
	}
	return rep, nil
}

func writeText(w io.Writer, rep *inspectReport) {
	for _, name := range rep.Order {
		fmt.Fprintf(w, "%-16s %s\n", name, rep.Fields[name])
	}
	if !rep.MagicValid {
		fmt.Fprintln(w, "warning: magic is not \"STM2\"")
	}
	if rep.LengthWarning != "" {
		fmt.Fprintf(w, "warning: %s\n", rep.LengthWarning)
	}
	if rep.PublicKeyPEM != "" {
		fmt.Fprint(w, rep.PublicKeyPEM)
	}
}

func writeJSON(w io.Writer, rep *inspectReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
