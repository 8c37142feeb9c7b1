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

// Package options defines the command-line flag groups of stm32-sign.
package options

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sigstore/stm32-signing/pkg/logging"
)

// EnvPrefix is the prefix used for environment variables that configure the CLI.
const EnvPrefix = "STM32_SIGN"

// DefaultTimeout bounds a whole command, including waiting for a token.
const DefaultTimeout = 2 * time.Minute

var logExts = []string{"log", "txt"}

// Interface is implemented by every flag group.
type Interface interface {
	AddFlags(cmd *cobra.Command)
}

// RootOptions holds the global flags shared by all subcommands.
type RootOptions struct {
	// OutputFile redirects command output from stdout to a file.
	OutputFile string
	LogLevel   string
	LogFormat  string
	Timeout    time.Duration
}

var _ Interface = (*RootOptions)(nil)

func (o *RootOptions) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.OutputFile, "output-file", "",
		"write command output to a file instead of stdout")
	_ = cmd.MarkPersistentFlagFilename("output-file", logExts...)

	cmd.PersistentFlags().StringVar(&o.LogLevel, "log-level", "info",
		"set the minimum log level (debug, info, warn, error, silent)")

	cmd.PersistentFlags().StringVar(&o.LogFormat, "log-format", "text",
		"set the log output format (text, json)")

	cmd.PersistentFlags().DurationVarP(&o.Timeout, "timeout", "t", DefaultTimeout,
		"timeout for commands")
}

// Validate rejects unknown log levels and formats.
func (o *RootOptions) Validate() error {
	if _, err := logging.ParseLogLevel(o.LogLevel); err != nil {
		return err
	}
	_, err := logging.ParseLogFormat(o.LogFormat)
	return err
}

// GetLogLevel returns the configured level, info when it does not parse.
func (o *RootOptions) GetLogLevel() logging.LogLevel {
	level, _ := logging.ParseLogLevel(o.LogLevel)
	return level
}

func (o *RootOptions) GetLogFormat() logging.LogFormat {
	format, _ := logging.ParseLogFormat(o.LogFormat)
	return format
}

// NewLogger creates a stderr logger from the root options.
func (o *RootOptions) NewLogger() logging.Logger {
	level := o.GetLogLevel()
	return logging.New(logging.LoggerOptions{
		Level:     level,
		Format:    o.GetLogFormat(),
		Output:    os.Stderr,
		ShowLevel: level == logging.LevelDebug,
	})
}

// valueOrEnv returns v, or the EnvPrefix_name variable when v is empty.
// Secrets are never flag defaults, so --help does not print them.
func valueOrEnv(v, name string) string {
	if v != "" {
		return v
	}
	return os.Getenv(EnvPrefix + "_" + name)
}
