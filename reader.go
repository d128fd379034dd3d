// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// Archive is a parsed VPK directory file.
//
// Archive owns the buffer passed to Parse: untouched entries keep sub-slices
// of it, so the caller must not modify the buffer afterwards. Archive is not
// safe for concurrent mutation.
type Archive struct {
	tree *tree
	// path is the _dir file path when opened from disk; used to locate companion parts.
	path string
	// data is the complete source buffer.
	data []byte
	// embedded is the data region following the tree in the source buffer.
	embedded []byte
	// chunkHashes, selfHashes and signature are raw v2 trailing sections.
	chunkHashes []byte
	selfHashes  []byte
	signature   []byte
	// trailing keeps bytes after the last declared section.
	trailing []byte
	header   Header
	// dirty reports whether any entry was replaced.
	dirty bool
}

// Open reads and parses a VPK directory file from disk.
func Open(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open VPK: %w", err)
	}

	a, err := Parse(data)
	if err != nil {
		return nil, err
	}

	a.path = path
	return a, nil
}

// Parse parses a complete VPK directory file held in data.
func Parse(data []byte) (*Archive, error) {
	header, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	a := &Archive{data: data, header: header}
	treeEnd, err := a.parseTree()
	if err != nil {
		return nil, err
	}

	if err := a.parseSections(treeEnd); err != nil {
		return nil, err
	}

	if err := a.validateEmbeddedBounds(treeEnd); err != nil {
		return nil, err
	}

	return a, nil
}

// Header returns the parsed header.
func (a *Archive) Header() Header {
	if a == nil {
		return Header{}
	}

	return a.header
}

// Path returns the source file path for archives opened with Open.
func (a *Archive) Path() string {
	if a == nil {
		return ""
	}

	return a.path
}

// Len returns number of entries in the tree.
func (a *Archive) Len() int {
	if a == nil || a.tree == nil {
		return 0
	}

	return a.tree.len()
}

// Modified reports whether any entry was replaced since parsing.
func (a *Archive) Modified() bool {
	return a != nil && a.dirty
}

// Entries returns entry metadata in tree order.
func (a *Archive) Entries() []EntryInfo {
	if a == nil || a.tree == nil {
		return nil
	}

	out := make([]EntryInfo, 0, a.tree.len())
	_ = a.tree.walk(func(e *Entry) error {
		out = append(out, e.Info())
		return nil
	})

	return out
}

// parseHeader validates signature and version and returns the fixed header.
func parseHeader(data []byte) (Header, error) {
	if len(data) < headerSizeV1 {
		return Header{}, formatErrorf(ErrTruncatedHeader, 0, "need %d bytes, have %d", headerSizeV1, len(data))
	}

	h := Header{
		Signature:  binary.LittleEndian.Uint32(data[0:4]),
		Version:    binary.LittleEndian.Uint32(data[4:8]),
		TreeLength: binary.LittleEndian.Uint32(data[8:12]),
	}

	if h.Signature != Signature {
		return Header{}, formatErrorf(ErrBadSignature, 0, "got 0x%08x", h.Signature)
	}

	switch h.Version {
	case VersionV1:
		return h, nil
	case VersionV2:
	default:
		return Header{}, formatErrorf(ErrUnsupportedVersion, 4, "got %d", h.Version)
	}

	if len(data) < headerSizeV2 {
		return Header{}, formatErrorf(ErrTruncatedHeader, 0, "need %d bytes, have %d", headerSizeV2, len(data))
	}

	h.EmbeddedLength = binary.LittleEndian.Uint32(data[12:16])
	h.ChunkHashesLength = binary.LittleEndian.Uint32(data[16:20])
	h.SelfHashesLength = binary.LittleEndian.Uint32(data[20:24])
	h.SignatureLength = binary.LittleEndian.Uint32(data[24:28])
	return h, nil
}

// treeCursor reads tokens and records inside the declared tree region.
type treeCursor struct {
	data  []byte
	off   int
	limit int
}

// readString reads one NUL-terminated token.
func (c *treeCursor) readString() (string, error) {
	if c.off >= c.limit {
		return "", formatErrorf(ErrTruncatedTree, int64(c.off), "string runs past tree end %d", c.limit)
	}

	idx := bytes.IndexByte(c.data[c.off:c.limit], 0)
	if idx < 0 {
		return "", formatErrorf(ErrTruncatedTree, int64(c.off), "unterminated string")
	}

	s := string(c.data[c.off : c.off+idx])
	c.off += idx + 1
	return s, nil
}

// readEntry reads one fixed record plus inline preload bytes.
func (c *treeCursor) readEntry(ext, dir, name string) (*Entry, error) {
	start := c.off
	if c.limit-c.off < entryRecordSize {
		return nil, formatErrorf(ErrTruncatedTree, int64(start), "entry record for %s", joinPath(ext, dir, name))
	}

	rec := c.data[c.off : c.off+entryRecordSize]
	e := &Entry{
		ext:          ext,
		dir:          dir,
		name:         name,
		crc:          binary.LittleEndian.Uint32(rec[0:4]),
		archiveIndex: binary.LittleEndian.Uint16(rec[6:8]),
		offset:       binary.LittleEndian.Uint32(rec[8:12]),
		length:       binary.LittleEndian.Uint32(rec[12:16]),
	}

	preloadLen := int(binary.LittleEndian.Uint16(rec[4:6]))
	if term := binary.LittleEndian.Uint16(rec[16:18]); term != EntryTerminator {
		return nil, formatErrorf(ErrBadTerminator, int64(start+16), "got 0x%04x for %s", term, e.Path())
	}

	c.off += entryRecordSize
	if c.limit-c.off < preloadLen {
		return nil, formatErrorf(ErrTruncatedTree, int64(c.off), "preload of %d bytes for %s", preloadLen, e.Path())
	}

	e.preload = c.data[c.off : c.off+preloadLen : c.off+preloadLen]
	e.basePreload = preloadLen
	c.off += preloadLen
	return e, nil
}

// parseTree walks extension, directory and name levels and returns tree end offset.
func (a *Archive) parseTree() (int, error) {
	start := a.header.Size()
	declaredEnd := int64(start) + int64(a.header.TreeLength)
	if declaredEnd > int64(len(a.data)) {
		return 0, formatErrorf(ErrTruncatedTree, int64(len(a.data)),
			"declared tree length %d exceeds buffer of %d bytes", a.header.TreeLength, len(a.data))
	}

	c := &treeCursor{data: a.data, off: start, limit: int(declaredEnd)}
	a.tree = newTree(estimateEntryCapacity(int64(a.header.TreeLength)))

	for {
		ext, err := c.readString()
		if err != nil {
			return 0, err
		}
		if ext == "" {
			break
		}

		extBlock := a.tree.addExt(ext)
		for {
			dir, err := c.readString()
			if err != nil {
				return 0, err
			}
			if dir == "" {
				break
			}

			dirBlock := extBlock.addDir(dir)
			for {
				nameOff := c.off
				name, err := c.readString()
				if err != nil {
					return 0, err
				}
				if name == "" {
					break
				}

				e, err := c.readEntry(ext, dir, name)
				if err != nil {
					return 0, err
				}

				if !a.tree.add(dirBlock, e) {
					return 0, formatErrorf(ErrDuplicateEntry, int64(nameOff), "%s", e.Path())
				}
			}
		}
	}

	if c.off != c.limit {
		return 0, formatErrorf(ErrLengthMismatch, int64(c.off),
			"tree consumed %d bytes, header declares %d", c.off-start, a.header.TreeLength)
	}

	return c.off, nil
}

// parseSections slices embedded data and v2 trailing sections after the tree.
func (a *Archive) parseSections(treeEnd int) error {
	if a.header.Version == VersionV1 {
		a.embedded = a.data[treeEnd:len(a.data):len(a.data)]
		return nil
	}

	off := int64(treeEnd)
	sections := []struct {
		dst  *[]byte
		name string
		size uint32
	}{
		{dst: &a.embedded, name: "embedded data", size: a.header.EmbeddedLength},
		{dst: &a.chunkHashes, name: "archive MD5 section", size: a.header.ChunkHashesLength},
		{dst: &a.selfHashes, name: "self hashes", size: a.header.SelfHashesLength},
		{dst: &a.signature, name: "signature section", size: a.header.SignatureLength},
	}

	for _, section := range sections {
		end := off + int64(section.size)
		if end > int64(len(a.data)) {
			return formatErrorf(ErrTruncatedData, off, "%s of %d bytes exceeds buffer of %d bytes",
				section.name, section.size, len(a.data))
		}

		*section.dst = a.data[off:end:end]
		off = end
	}

	a.trailing = a.data[off:len(a.data):len(a.data)]
	return nil
}

// validateEmbeddedBounds checks that embedded entries point inside the embedded region.
func (a *Archive) validateEmbeddedBounds(treeEnd int) error {
	regionLen := int64(len(a.embedded))
	return a.tree.walk(func(e *Entry) error {
		if !e.IsEmbedded() || e.length == 0 {
			return nil
		}

		end := int64(e.offset) + int64(e.length)
		if end > regionLen {
			return formatErrorf(ErrEntryOutOfBounds, int64(treeEnd)+int64(e.offset),
				"%s needs %d bytes at region offset %d, region has %d", e.Path(), e.length, e.offset, regionLen)
		}

		return nil
	})
}

// estimateEntryCapacity returns a conservative initial capacity for the entry index.
func estimateEntryCapacity(treeBytes int64) int {
	if treeBytes <= 0 {
		return 0
	}

	const (
		minCap = 16
		maxCap = 1 << 16
		// one name token plus record; extension and directory tokens are shared.
		avgEntryBytes = 32
	)

	estimated := int(treeBytes / avgEntryBytes)
	if estimated < minCap {
		return minCap
	}
	if estimated > maxCap {
		return maxCap
	}

	return estimated
}
