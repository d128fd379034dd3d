// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// regionPlan is the serialized layout of the embedded data region.
type regionPlan struct {
	// offsets holds new region offsets for entries whose data moved.
	offsets map[*Entry]uint32
	// parts are written back to back after the tree.
	parts [][]byte
	size  int64
}

// add appends one chunk to the region and returns its offset.
func (p *regionPlan) add(chunk []byte) (uint32, error) {
	off := p.size
	p.size += int64(len(chunk))
	if p.size > math.MaxUint32 {
		return 0, fmt.Errorf("%w: embedded region exceeds 4 GiB", ErrSizeOverflow)
	}

	if len(chunk) > 0 {
		p.parts = append(p.parts, chunk)
	}

	return uint32(off), nil //nolint:gosec // bounded by check above
}

// Serialize encodes the archive using LayoutAppend.
// An unmodified archive serializes to the exact bytes it was parsed from.
func (a *Archive) Serialize() ([]byte, error) {
	return a.SerializeLayout(LayoutAppend)
}

// SerializeLayout encodes the archive with explicit embedded region layout.
func (a *Archive) SerializeLayout(layout Layout) ([]byte, error) {
	if a == nil || a.tree == nil {
		return nil, ErrNilArchive
	}

	plan, err := a.planRegion(layout)
	if err != nil {
		return nil, err
	}

	tree, err := a.encodeTree(plan.offsets)
	if err != nil {
		return nil, err
	}

	if uint64(len(tree)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: directory tree exceeds 4 GiB", ErrSizeOverflow)
	}

	rebuilt := a.dirty || layout == LayoutCompact
	chunkHashes, selfHashes, signature := a.chunkHashes, a.selfHashes, a.signature
	if rebuilt && a.header.Version == VersionV2 {
		chunkHashes = dropEmbeddedChunkHashes(a.chunkHashes)
		signature = nil
	}

	header := a.header
	header.TreeLength = uint32(len(tree))
	if header.Version == VersionV2 {
		header.EmbeddedLength = uint32(plan.size) //nolint:gosec // bounded in regionPlan.add
		header.ChunkHashesLength = uint32(len(chunkHashes))
		header.SignatureLength = uint32(len(signature))
	}
	headerBytes := encodeHeader(header)

	if rebuilt && len(a.selfHashes) == selfHashesSize {
		sums := computeSelfHashes(headerBytes, tree, plan.parts, chunkHashes)
		selfHashes = sums[:]
	}

	total := int64(len(headerBytes)) + int64(len(tree)) + plan.size +
		int64(len(chunkHashes)) + int64(len(selfHashes)) + int64(len(signature)) + int64(len(a.trailing))

	out := make([]byte, 0, total)
	out = append(out, headerBytes...)
	out = append(out, tree...)
	for _, part := range plan.parts {
		out = append(out, part...)
	}
	out = append(out, chunkHashes...)
	out = append(out, selfHashes...)
	out = append(out, signature...)
	out = append(out, a.trailing...)

	return out, nil
}

// WriteTo serializes the archive with LayoutAppend into w.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	data, err := a.Serialize()
	if err != nil {
		return 0, err
	}

	n, err := w.Write(data)
	return int64(n), err
}

// planRegion lays out embedded data and assigns offsets of moved entries.
func (a *Archive) planRegion(layout Layout) (*regionPlan, error) {
	plan := &regionPlan{offsets: make(map[*Entry]uint32)}

	switch layout {
	case LayoutAppend, "":
		if _, err := plan.add(a.embedded); err != nil {
			return nil, err
		}

		err := a.tree.walk(func(e *Entry) error {
			if !e.rewritten || len(e.tail) == 0 {
				return nil
			}

			off, err := plan.add(e.tail)
			if err != nil {
				return err
			}

			plan.offsets[e] = off
			return nil
		})
		if err != nil {
			return nil, err
		}
	case LayoutCompact:
		err := a.tree.walk(func(e *Entry) error {
			chunk := a.remainingBytes(e)
			if chunk == nil {
				return nil
			}

			off, err := plan.add(chunk)
			if err != nil {
				return err
			}

			plan.offsets[e] = off
			return nil
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown layout %q", layout)
	}

	return plan, nil
}

// remainingBytes returns embedded region bytes of e, or nil when e has none there.
func (a *Archive) remainingBytes(e *Entry) []byte {
	if e.rewritten {
		if len(e.tail) == 0 {
			return nil
		}

		return e.tail
	}

	if !e.IsEmbedded() || e.length == 0 {
		return nil
	}

	return a.embedded[e.offset : e.offset+e.length]
}

// encodeTree writes the directory tree in declaration order.
func (a *Archive) encodeTree(offsets map[*Entry]uint32) ([]byte, error) {
	buf := make([]byte, 0, int(a.header.TreeLength)+64)

	for _, ext := range a.tree.exts {
		buf = appendString(buf, ext.token)
		for _, dir := range ext.dirs {
			buf = appendString(buf, dir.token)
			for _, e := range dir.entries {
				if len(e.preload) > maxPreload {
					return nil, fmt.Errorf("%w: preload of %s is %d bytes", ErrSizeOverflow, e.Path(), len(e.preload))
				}

				buf = appendString(buf, e.name)
				buf = appendRecord(buf, e, offsets)
				buf = append(buf, e.preload...)
			}
			buf = append(buf, 0)
		}
		buf = append(buf, 0)
	}
	buf = append(buf, 0)

	return buf, nil
}

// appendRecord appends one fixed entry record.
func appendRecord(buf []byte, e *Entry, offsets map[*Entry]uint32) []byte {
	archiveIndex := e.archiveIndex
	offset := e.offset
	length := e.length

	if e.rewritten {
		length = uint32(len(e.tail)) //nolint:gosec // checked in Replace
		offset = 0
		if length > 0 {
			archiveIndex = EmbeddedArchiveIndex
		}
	}

	if moved, ok := offsets[e]; ok {
		offset = moved
	}

	buf = binary.LittleEndian.AppendUint32(buf, e.crc)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(e.preload))) //nolint:gosec // checked by caller
	buf = binary.LittleEndian.AppendUint16(buf, archiveIndex)
	buf = binary.LittleEndian.AppendUint32(buf, offset)
	buf = binary.LittleEndian.AppendUint32(buf, length)
	buf = binary.LittleEndian.AppendUint16(buf, EntryTerminator)
	return buf
}

// appendString appends NUL-terminated token.
func appendString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}

// encodeHeader encodes fixed header for its version.
func encodeHeader(h Header) []byte {
	buf := make([]byte, 0, headerSizeV2)
	buf = binary.LittleEndian.AppendUint32(buf, h.Signature)
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = binary.LittleEndian.AppendUint32(buf, h.TreeLength)
	if h.Version != VersionV2 {
		return buf
	}

	buf = binary.LittleEndian.AppendUint32(buf, h.EmbeddedLength)
	buf = binary.LittleEndian.AppendUint32(buf, h.ChunkHashesLength)
	buf = binary.LittleEndian.AppendUint32(buf, h.SelfHashesLength)
	buf = binary.LittleEndian.AppendUint32(buf, h.SignatureLength)
	return buf
}

// dropEmbeddedChunkHashes removes archive MD5 entries that describe the embedded region.
// Sections that are not a whole number of entries are kept as-is.
func dropEmbeddedChunkHashes(section []byte) []byte {
	if len(section) == 0 || len(section)%chunkHashSize != 0 {
		return section
	}

	out := make([]byte, 0, len(section))
	for off := 0; off < len(section); off += chunkHashSize {
		rec := section[off : off+chunkHashSize]
		if binary.LittleEndian.Uint32(rec[0:4]) == uint32(EmbeddedArchiveIndex) {
			continue
		}

		out = append(out, rec...)
	}

	return out
}
