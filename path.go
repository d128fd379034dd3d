// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"fmt"
	"path"
	"strings"
)

// NormalizePath converts an archive/internal path to normalized slash-separated form.
// It trims spaces, accepts both "/" and "\", removes leading "./" and "/", and cleans "." segments.
func NormalizePath(raw string) string {
	raw = normalizePathForMatching(raw)
	raw = strings.TrimPrefix(raw, "/")
	raw = path.Clean("/" + raw)
	raw = strings.TrimPrefix(raw, "/")
	if raw == "." {
		return ""
	}

	return strings.TrimSuffix(raw, "/")
}

// SplitPath splits a logical path into the extension, directory and name tokens
// used by the directory tree. Root directory and missing extension map to "".
func SplitPath(raw string) (ext, dir, name string, err error) {
	normalized := NormalizePath(raw)
	if normalized == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidEntryPath, raw)
	}

	dir, base := path.Split(normalized)
	dir = strings.TrimSuffix(dir, "/")

	name = base
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		name = base[:idx]
		ext = base[idx+1:]
	}

	if name == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidEntryPath, raw)
	}

	return ext, dir, name, nil
}

// normalizePathForMatching normalizes user/input paths for matcher use.
func normalizePathForMatching(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, `\`, `/`)
	p = strings.TrimPrefix(p, "./")
	return p
}

// joinPath builds logical path from on-disk tree tokens.
func joinPath(ext, dir, name string) string {
	ext = decodeToken(ext)
	dir = NormalizePath(decodeToken(dir))

	base := name
	if ext != "" {
		base += "." + ext
	}

	if dir == "" {
		return base
	}

	return dir + "/" + base
}

// encodeToken maps empty extension or directory to the on-disk root token.
func encodeToken(token string) string {
	if token == "" {
		return rootToken
	}

	return token
}

// decodeToken maps the on-disk root token back to empty string.
func decodeToken(token string) string {
	if token == rootToken {
		return ""
	}

	return token
}
