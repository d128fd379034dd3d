// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import "strings"

// applyListFilters applies ListOptions filters in prefix, location, size, ASCII order.
func applyListFilters(entries []EntryInfo, opts ListOptions) []EntryInfo {
	entries = filterEntriesByPrefix(entries, opts.Prefix)
	if opts.EmbeddedOnly {
		entries = filterEmbeddedEntries(entries)
	}

	entries = filterEntriesBySize(entries, opts.MinSize, opts.MinPreload)
	if opts.ASCIIOnly {
		entries = filterEntriesByASCIIOnly(entries)
	}

	return entries
}

// filterEntriesBySize keeps entries that satisfy min content and preload size thresholds.
func filterEntriesBySize(entries []EntryInfo, minSize int64, minPreload uint16) []EntryInfo {
	if minSize == 0 && minPreload == 0 {
		return entries
	}

	out := make([]EntryInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.Size() < minSize {
			continue
		}

		if entry.PreloadLength < minPreload {
			continue
		}

		out = append(out, entry)
	}

	return out
}

// filterEmbeddedEntries keeps entries whose data lives in the _dir file.
func filterEmbeddedEntries(entries []EntryInfo) []EntryInfo {
	out := make([]EntryInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsEmbedded() || entry.Length == 0 {
			out = append(out, entry)
		}
	}

	return out
}

// filterEntriesByASCIIOnly keeps entries whose path contains only ASCII bytes.
func filterEntriesByASCIIOnly(entries []EntryInfo) []EntryInfo {
	out := make([]EntryInfo, 0, len(entries))
	for _, entry := range entries {
		if !filterPathIsASCIIOnly(entry.Path) {
			continue
		}

		out = append(out, entry)
	}

	return out
}

// filterPathIsASCIIOnly reports whether path contains only ASCII bytes.
func filterPathIsASCIIOnly(pathValue string) bool {
	for idx := 0; idx < len(pathValue); idx++ {
		if pathValue[idx] >= 0x80 {
			return false
		}
	}

	return true
}

// filterEntriesByPrefix keeps entries under directory prefix (or exact match if it points to a file).
func filterEntriesByPrefix(entries []EntryInfo, prefix string) []EntryInfo {
	prefix = NormalizePath(prefix)
	if prefix == "" {
		return entries
	}

	normalizedPrefix := prefix + "/"
	out := make([]EntryInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.Path == prefix || strings.HasPrefix(entry.Path, normalizedPrefix) {
			out = append(out, entry)
		}
	}

	return out
}
