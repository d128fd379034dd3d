// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadHeader opens a VPK and returns only the fixed header without parsing the tree.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("open VPK: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ReadHeaderFrom(f)
}

// ReadHeaderFrom reads and validates the fixed header from r.
func ReadHeaderFrom(r io.Reader) (Header, error) {
	buf := make([]byte, headerSizeV2)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Header{}, fmt.Errorf("read header: %w", err)
	}

	return parseHeader(buf[:n])
}

// ListEntries opens a VPK and returns entry metadata in tree order.
func ListEntries(path string) ([]EntryInfo, error) {
	a, err := Open(path)
	if err != nil {
		return nil, err
	}

	return a.Entries(), nil
}

// ListEntriesUnder returns metadata of entries under directory prefix.
func ListEntriesUnder(path string, prefix string) ([]EntryInfo, error) {
	return ListEntriesWithOptions(path, ListOptions{Prefix: prefix})
}

// ListEntriesWithOptions opens a VPK and returns filtered entry metadata in tree order.
func ListEntriesWithOptions(path string, opts ListOptions) ([]EntryInfo, error) {
	a, err := Open(path)
	if err != nil {
		return nil, err
	}

	return a.List(opts), nil
}

// List returns entry metadata in tree order filtered by opts.
func (a *Archive) List(opts ListOptions) []EntryInfo {
	return applyListFilters(a.Entries(), opts)
}
