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

// Package utils holds the file handling shared by the stm32-sign commands:
// input validation and image reads and writes. Failures are image.Error
// values of kind KindIO that keep the *fs.PathError as their cause.
package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigstore/stm32-signing/pkg/image"
)

// PathType represents the type of path to validate.
type PathType int

const (
	// PathTypeFile expects a regular file.
	PathTypeFile PathType = iota
	// PathTypeFolder expects a directory.
	PathTypeFolder
)

// PathValidator checks that a named command line path exists with the
// expected type.
type PathValidator struct {
	fieldName string
	path      string
	pathType  PathType
}

func NewPathValidator(fieldName, path string, pathType PathType) *PathValidator {
	return &PathValidator{
		fieldName: fieldName,
		path:      path,
		pathType:  pathType,
	}
}

// Validate returns nil when the path is set, exists and has the expected
// type.
func (v *PathValidator) Validate() error {
	if v.path == "" {
		return fmt.Errorf("%s is required", v.fieldName)
	}

	info, err := os.Stat(v.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return image.NewError(image.KindIO, fmt.Sprintf("%s %q does not exist", v.fieldName, v.path), err)
		}
		return image.NewError(image.KindIO, fmt.Sprintf("checking %s %q", v.fieldName, v.path), err)
	}

	switch v.pathType {
	case PathTypeFile:
		if info.IsDir() {
			return fmt.Errorf("%s %q is a directory, expected file", v.fieldName, v.path)
		}
	case PathTypeFolder:
		if !info.IsDir() {
			return fmt.Errorf("%s %q is a file, expected directory", v.fieldName, v.path)
		}
	}
	return nil
}

// ValidateFileExists validates that path exists and is not a directory.
func ValidateFileExists(fieldName, path string) error {
	return NewPathValidator(fieldName, path, PathTypeFile).Validate()
}

// ValidateOutputPath checks that path can be created: it is not a
// directory and its parent directory exists.
func ValidateOutputPath(fieldName, path string) error {
	if path == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%s %q is a directory, expected file", fieldName, path)
	}
	return NewPathValidator(fieldName+" directory", filepath.Dir(path), PathTypeFolder).Validate()
}
