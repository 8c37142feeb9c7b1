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

package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigstore/stm32-signing/pkg/image"
)

const defaultImageMode os.FileMode = 0o644

// ReadImage loads a whole image file.
func ReadImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, image.NewError(image.KindIO, fmt.Sprintf("reading image %q", path), err)
	}
	return data, nil
}

// WriteImage replaces path with data. The bytes go to a temporary file in
// the same directory which is then renamed over path, so a failed write
// never leaves a truncated image behind. An existing file keeps its mode.
func WriteImage(path string, data []byte) (err error) {
	mode := defaultImageMode
	if info, serr := os.Stat(path); serr == nil {
		mode = info.Mode().Perm()
	}

	wrap := func(op string, cause error) error {
		return image.NewError(image.KindIO, fmt.Sprintf("%s %q", op, path), cause)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return wrap("writing image", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return wrap("writing image", err)
	}
	if err = tmp.Chmod(mode); err != nil {
		return wrap("setting mode of", err)
	}
	if err = tmp.Sync(); err != nil {
		return wrap("syncing image", err)
	}
	if err = tmp.Close(); err != nil {
		return wrap("closing image", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return wrap("replacing image", err)
	}
	return nil
}
