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
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultModuleDirectories are searched for module-name lookups when no
// directory list is configured.
var DefaultModuleDirectories = []string{
	"/usr/lib64/pkcs11/",                 // Fedora, RHEL, openSUSE
	"/usr/lib/pkcs11/",                   // Fedora 32 bit, ArchLinux
	"/usr/lib/x86_64-linux-gnu/softhsm/", // Ubuntu/Debian x86_64
	"/usr/lib/softhsm/",                  // Ubuntu/Debian (older or 32-bit)
	"/usr/local/lib/softhsm/",            // Homebrew on macOS
}

// URI is a parsed RFC 7512 PKCS#11 URI naming a token and a key pair,
// e.g. pkcs11:token=stm32;object=key6892?module-path=/usr/lib/softhsm/libsofthsm2.so
type URI struct {
	path  map[string]string
	query map[string]string

	moduleDirectories  []string
	allowedModulePaths []string
	allowAnyModule     bool
}

// ParseURI parses and validates s.
func ParseURI(s string) (*URI, error) {
	const scheme = "pkcs11:"
	if !strings.HasPrefix(s, scheme) {
		return nil, fmt.Errorf("malformed pkcs11 URI: missing %q prefix", scheme)
	}

	u := &URI{
		path:           map[string]string{},
		query:          map[string]string{},
		allowAnyModule: true,
	}

	pathPart, queryPart, hasQuery := strings.Cut(s[len(scheme):], "?")
	if err := parseAttributes(pathPart, ";", u.path); err != nil {
		return nil, fmt.Errorf("malformed pkcs11 URI: path: %w", err)
	}
	if hasQuery {
		if err := parseAttributes(queryPart, "&", u.query); err != nil {
			return nil, fmt.Errorf("malformed pkcs11 URI: query: %w", err)
		}
	}

	if err := u.validate(); err != nil {
		return nil, err
	}
	return u, nil
}

func parseAttributes(s, sep string, into map[string]string) error {
	if s == "" {
		return nil
	}
	for _, part := range strings.Split(s, sep) {
		k, v, ok := strings.Cut(part, "=")
		if !ok || k == "" {
			return fmt.Errorf("attribute %q is not key=value", part)
		}
		decoded, err := url.PathUnescape(v)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", k, err)
		}
		into[k] = decoded
	}
	return nil
}

func (u *URI) validate() error {
	if slotID, ok := u.path["slot-id"]; ok {
		if _, err := strconv.ParseUint(slotID, 10, 32); err != nil {
			return fmt.Errorf("slot-id must be a 32 bit unsigned number: %s", slotID)
		}
	}

	if typ, ok := u.path["type"]; ok {
		switch typ {
		case "public", "private", "cert", "secret-key", "data":
		default:
			return fmt.Errorf("invalid type '%s'", typ)
		}
	}

	_, hasPinSource := u.query["pin-source"]
	_, hasPinValue := u.query["pin-value"]
	if hasPinSource && hasPinValue {
		return fmt.Errorf("URI must not contain both pin-source and pin-value")
	}

	if modulePath, ok := u.query["module-path"]; ok && !filepath.IsAbs(modulePath) {
		return fmt.Errorf("path %s of module-path attribute must be absolute", modulePath)
	}
	return nil
}

// SetModuleDirectories sets the directories searched by ModulePath when
// the URI names a module by module-name.
func (u *URI) SetModuleDirectories(dirs []string) {
	u.moduleDirectories = dirs
}

// SetAllowedModulePaths restricts loadable modules to the given files, or
// to direct children of entries ending in a path separator.
func (u *URI) SetAllowedModulePaths(paths []string) {
	u.allowedModulePaths = paths
	u.allowAnyModule = false
}

// TokenLabel returns the token attribute.
func (u *URI) TokenLabel() string {
	return u.path["token"]
}

// KeyLabel returns the object attribute.
func (u *URI) KeyLabel() string {
	return u.path["object"]
}

// KeyID returns the raw id attribute, or nil.
func (u *URI) KeyID() []byte {
	id, ok := u.path["id"]
	if !ok {
		return nil
	}
	return []byte(id)
}

// SlotID returns the slot-id attribute, or -1 when absent.
func (u *URI) SlotID() int {
	s, ok := u.path["slot-id"]
	if !ok {
		return -1
	}
	// validate has already range-checked it.
	n, _ := strconv.ParseUint(s, 10, 32)
	return int(n)
}

// HasPIN reports whether the URI carries pin-value or pin-source.
func (u *URI) HasPIN() bool {
	_, hasPinValue := u.query["pin-value"]
	_, hasPinSource := u.query["pin-source"]
	return hasPinValue || hasPinSource
}

// PIN returns the pin-value, or the contents of the file named by
// pin-source.
func (u *URI) PIN() (string, error) {
	if pin, ok := u.query["pin-value"]; ok {
		return pin, nil
	}

	source, ok := u.query["pin-source"]
	if !ok {
		return "", fmt.Errorf("neither pin-source nor pin-value are available")
	}
	su, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("failed to parse pin-source URI: %w", err)
	}
	if su.Scheme != "" && su.Scheme != "file" {
		return "", fmt.Errorf("PIN URI scheme %s is not supported", su.Scheme)
	}
	if !filepath.IsAbs(su.Path) {
		return "", fmt.Errorf("PIN URI path '%s' is not absolute", su.Path)
	}
	data, err := os.ReadFile(su.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read PIN from file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// HasModule reports whether the URI names a module at all.
func (u *URI) HasModule() bool {
	_, hasPath := u.query["module-path"]
	_, hasName := u.query["module-name"]
	return hasPath || hasName
}

// ModulePath resolves the module library to load. module-path may point
// at a file or at a directory to search for module-name.
func (u *URI) ModulePath() (string, error) {
	searchDirs := u.moduleDirectories
	if modulePath, ok := u.query["module-path"]; ok {
		info, err := os.Stat(modulePath)
		if err != nil {
			return "", fmt.Errorf("module-path error: %w", err)
		}
		switch {
		case info.Mode().IsRegular():
			if !u.isAllowedPath(modulePath) {
				return "", fmt.Errorf("module-path '%s' is not allowed by policy", modulePath)
			}
			return modulePath, nil
		case info.IsDir():
			searchDirs = []string{modulePath}
		default:
			return "", fmt.Errorf("module-path '%s' points to an invalid file type", modulePath)
		}
	}

	moduleName, ok := u.query["module-name"]
	if !ok {
		return "", fmt.Errorf("module-name attribute is not set")
	}
	moduleName = strings.ToLower(moduleName)
	if len(searchDirs) == 0 {
		searchDirs = DefaultModuleDirectories
	}

	for _, dir := range searchDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.Contains(strings.ToLower(entry.Name()), moduleName) {
				continue
			}
			fullPath := filepath.Join(dir, entry.Name())
			if !u.isAllowedPath(fullPath) {
				return "", fmt.Errorf("module '%s' is not allowed by policy", fullPath)
			}
			return fullPath, nil
		}
	}
	return "", fmt.Errorf("no module '%s' could be found in %v", moduleName, searchDirs)
}

func (u *URI) isAllowedPath(path string) bool {
	return u.allowAnyModule || ModuleAllowed(path, u.allowedModulePaths)
}

// ModuleAllowed reports whether path is one of allowed, or a direct child
// of an allowed entry ending in a path separator.
func ModuleAllowed(path string, allowed []string) bool {
	sep := string(filepath.Separator)
	for _, allowed := range allowed {
		if allowed == path {
			return true
		}
		if strings.HasSuffix(allowed, sep) && strings.HasPrefix(path, allowed) &&
			!strings.Contains(path[len(allowed):], sep) {
			return true
		}
	}
	return false
}
