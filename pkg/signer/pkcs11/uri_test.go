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
	"os"
	"path/filepath"
	"testing"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name      string
		uri       string
		wantErr   bool
		wantToken string
		wantKey   string
	}{
		{name: "empty", uri: "pkcs11:"},
		{name: "token and object", uri: "pkcs11:token=stm32;object=key6892", wantToken: "stm32", wantKey: "key6892"},
		{name: "percent encoded", uri: "pkcs11:token=Software%20PKCS%2311%20softtoken", wantToken: "Software PKCS#11 softtoken"},
		{name: "plus is literal", uri: "pkcs11:object=a+b", wantKey: "a+b"},
		{name: "with type", uri: "pkcs11:object=key;type=private", wantKey: "key"},
		{name: "with pin", uri: "pkcs11:token=t;object=k?pin-value=1234", wantToken: "t", wantKey: "k"},
		{name: "missing prefix", uri: "token=stm32", wantErr: true},
		{name: "malformed path attribute", uri: "pkcs11:token", wantErr: true},
		{name: "malformed query attribute", uri: "pkcs11:token=t?pin-value", wantErr: true},
		{name: "bad type", uri: "pkcs11:type=secret", wantErr: true},
		{name: "bad slot", uri: "pkcs11:slot-id=abc", wantErr: true},
		{name: "slot too large", uri: "pkcs11:slot-id=4294967296", wantErr: true},
		{name: "both pins", uri: "pkcs11:?pin-value=1&pin-source=/tmp/pin", wantErr: true},
		{name: "relative module path", uri: "pkcs11:?module-path=lib.so", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if u.TokenLabel() != tt.wantToken {
				t.Errorf("Expected token %q, got %q", tt.wantToken, u.TokenLabel())
			}
			if u.KeyLabel() != tt.wantKey {
				t.Errorf("Expected object %q, got %q", tt.wantKey, u.KeyLabel())
			}
		})
	}
}

func TestURI_KeyIDAndSlot(t *testing.T) {
	u, err := ParseURI("pkcs11:id=%01%02%ff;slot-id=7")
	if err != nil {
		t.Fatalf("ParseURI() error = %v", err)
	}
	if got := u.KeyID(); string(got) != "\x01\x02\xff" {
		t.Errorf("KeyID() = %x", got)
	}
	if u.SlotID() != 7 {
		t.Errorf("SlotID() = %d, want 7", u.SlotID())
	}

	u, _ = ParseURI("pkcs11:token=t")
	if u.KeyID() != nil || u.SlotID() != -1 {
		t.Errorf("expected no id and slot -1, got %x %d", u.KeyID(), u.SlotID())
	}
}

func TestURI_PIN(t *testing.T) {
	pinFile := filepath.Join(t.TempDir(), "pin")
	if err := os.WriteFile(pinFile, []byte("5678\n"), 0600); err != nil {
		t.Fatalf("Failed to write pin file: %v", err)
	}

	tests := []struct {
		name    string
		uri     string
		want    string
		wantErr bool
	}{
		{name: "pin-value", uri: "pkcs11:?pin-value=1234", want: "1234"},
		{name: "pin-source path", uri: "pkcs11:?pin-source=" + pinFile, want: "5678"},
		{name: "pin-source file URI", uri: "pkcs11:?pin-source=file://" + pinFile, want: "5678"},
		{name: "unsupported scheme", uri: "pkcs11:?pin-source=https://example.com/pin", wantErr: true},
		{name: "no pin", uri: "pkcs11:token=t", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseURI(tt.uri)
			if err != nil {
				t.Fatalf("ParseURI() error = %v", err)
			}
			got, err := u.PIN()
			if (err != nil) != tt.wantErr {
				t.Fatalf("PIN() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("PIN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestURI_ModulePath(t *testing.T) {
	dir := t.TempDir()
	module := filepath.Join(dir, "libsofthsm2.so")
	if err := os.WriteFile(module, []byte("mock"), 0755); err != nil {
		t.Fatalf("Failed to create mock module: %v", err)
	}

	t.Run("explicit file", func(t *testing.T) {
		u, _ := ParseURI("pkcs11:?module-path=" + module)
		got, err := u.ModulePath()
		if err != nil || got != module {
			t.Errorf("ModulePath() = %q, %v; want %q", got, err, module)
		}
	})

	t.Run("directory with module-name", func(t *testing.T) {
		u, _ := ParseURI("pkcs11:?module-path=" + dir + "&module-name=SoftHSM")
		got, err := u.ModulePath()
		if err != nil || got != module {
			t.Errorf("ModulePath() = %q, %v; want %q", got, err, module)
		}
	})

	t.Run("module-name in search dirs", func(t *testing.T) {
		u, _ := ParseURI("pkcs11:?module-name=softhsm2")
		u.SetModuleDirectories([]string{filepath.Join(dir, "missing"), dir})
		got, err := u.ModulePath()
		if err != nil || got != module {
			t.Errorf("ModulePath() = %q, %v; want %q", got, err, module)
		}
	})

	t.Run("not found", func(t *testing.T) {
		u, _ := ParseURI("pkcs11:?module-name=opensc")
		u.SetModuleDirectories([]string{dir})
		if _, err := u.ModulePath(); err == nil {
			t.Error("Expected error, got nil")
		}
	})

	t.Run("policy", func(t *testing.T) {
		u, _ := ParseURI("pkcs11:?module-path=" + module)
		u.SetAllowedModulePaths([]string{"/usr/lib/pkcs11/"})
		if _, err := u.ModulePath(); err == nil {
			t.Error("Expected policy error, got nil")
		}
		u.SetAllowedModulePaths([]string{dir + string(filepath.Separator)})
		if _, err := u.ModulePath(); err != nil {
			t.Errorf("Expected module in allowed dir, got %v", err)
		}
	})
}

func TestModuleAllowed(t *testing.T) {
	allowed := []string{"/usr/lib/libsofthsm2.so", "/usr/lib/pkcs11/"}
	tests := []struct {
		path string
		want bool
	}{
		{"/usr/lib/libsofthsm2.so", true},
		{"/usr/lib/pkcs11/opensc-pkcs11.so", true},
		{"/usr/lib/pkcs11/sub/opensc-pkcs11.so", false},
		{"/usr/lib/libother.so", false},
		{"/usr/lib/pkcs11", false},
	}
	for _, tt := range tests {
		if got := ModuleAllowed(tt.path, allowed); got != tt.want {
			t.Errorf("ModuleAllowed(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
	if ModuleAllowed("/usr/lib/libsofthsm2.so", nil) {
		t.Error("Expected empty allow list to reject every module")
	}
}

func TestConfigFromURI(t *testing.T) {
	dir := t.TempDir()
	module := filepath.Join(dir, "libsofthsm2.so")
	if err := os.WriteFile(module, []byte("mock"), 0755); err != nil {
		t.Fatalf("Failed to create mock module: %v", err)
	}

	u, err := ParseURI("pkcs11:token=stm32;object=key6892?module-path=" + module + "&pin-value=1234")
	if err != nil {
		t.Fatalf("ParseURI() error = %v", err)
	}
	cfg, err := ConfigFromURI(u)
	if err != nil {
		t.Fatalf("ConfigFromURI() error = %v", err)
	}
	if cfg.ModulePath != module || cfg.TokenLabel != "stm32" || cfg.KeyLabel != "key6892" || cfg.PIN != "1234" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
