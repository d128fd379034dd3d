// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"bytes"
	"fmt"
)

// Verify checks entry CRCs and, for v2 archives, the stored self hashes.
//
// Entries stored in companion parts are checked only for archives opened
// from disk. A modified archive is verified in its serialized form.
func (a *Archive) Verify(opts VerifyOptions) error {
	if a == nil || a.tree == nil {
		return ErrNilArchive
	}

	if a.dirty {
		data, err := a.Serialize()
		if err != nil {
			return err
		}

		reparsed, err := Parse(data)
		if err != nil {
			return err
		}

		reparsed.path = a.path
		return reparsed.Verify(opts)
	}

	if !opts.SkipSelfHashes {
		if err := a.verifySelfHashes(); err != nil {
			return err
		}
	}

	return a.tree.walk(func(e *Entry) error {
		if !e.IsEmbedded() && e.length > 0 && (opts.SkipExternal || a.path == "") {
			return nil
		}

		content, err := a.ReadEntryContent(e)
		if err != nil {
			return err
		}

		if got := Checksum(content); got != e.crc {
			return fmt.Errorf("%w: %s stored %08x, computed %08x", ErrChecksumMismatch, e.Path(), e.crc, got)
		}

		return nil
	})
}

// verifySelfHashes compares stored v2 MD5 block with source bytes.
func (a *Archive) verifySelfHashes() error {
	stored, ok := decodeSelfHashes(a.selfHashes)
	if !ok || a.header.Version != VersionV2 {
		return nil
	}

	headerEnd := a.header.Size()
	treeEnd := headerEnd + int(a.header.TreeLength)
	computed := computeSelfHashes(a.data[:headerEnd], a.data[headerEnd:treeEnd], [][]byte{a.embedded}, a.chunkHashes)

	switch {
	case !bytes.Equal(stored.Tree[:], computed[0:16]):
		return fmt.Errorf("%w: tree", ErrSelfHashMismatch)
	case !bytes.Equal(stored.ChunkHashes[:], computed[16:32]):
		return fmt.Errorf("%w: archive MD5 section", ErrSelfHashMismatch)
	case !bytes.Equal(stored.File[:], computed[32:48]):
		return fmt.Errorf("%w: file", ErrSelfHashMismatch)
	}

	return nil
}
