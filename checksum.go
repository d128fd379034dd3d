// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"crypto/md5" //nolint:gosec // VPK v2 self hashes are MD5 by format.
	"hash/crc32"
)

// Checksum returns the CRC-32 (IEEE, zlib polynomial) used for entry content.
func Checksum(content []byte) uint32 {
	return crc32.ChecksumIEEE(content)
}

// SelfHashes is the v2 MD5 block stored after the archive MD5 section.
type SelfHashes struct {
	// Tree is MD5 of the directory tree bytes.
	Tree [md5Size]byte `json:"tree" yaml:"tree"`
	// ChunkHashes is MD5 of the archive MD5 section bytes.
	ChunkHashes [md5Size]byte `json:"chunk_hashes" yaml:"chunk_hashes"`
	// File is MD5 of header, tree, embedded data, archive MD5 section and the two hashes above.
	File [md5Size]byte `json:"file" yaml:"file"`
}

// computeSelfHashes builds the 48-byte v2 self hash block.
func computeSelfHashes(header, tree []byte, region [][]byte, chunkHashes []byte) [selfHashesSize]byte {
	var out [selfHashesSize]byte

	treeSum := md5.Sum(tree)
	chunkSum := md5.Sum(chunkHashes)

	h := md5.New() //nolint:gosec // format requirement
	_, _ = h.Write(header)
	_, _ = h.Write(tree)
	for _, part := range region {
		_, _ = h.Write(part)
	}
	_, _ = h.Write(chunkHashes)
	_, _ = h.Write(treeSum[:])
	_, _ = h.Write(chunkSum[:])

	copy(out[0:16], treeSum[:])
	copy(out[16:32], chunkSum[:])
	copy(out[32:48], h.Sum(nil))
	return out
}

// decodeSelfHashes splits a 48-byte block into its three digests.
func decodeSelfHashes(block []byte) (SelfHashes, bool) {
	var sh SelfHashes
	if len(block) != selfHashesSize {
		return sh, false
	}

	copy(sh.Tree[:], block[0:16])
	copy(sh.ChunkHashes[:], block[16:32])
	copy(sh.File[:], block[32:48])
	return sh, true
}

// SelfHashes returns stored v2 self hashes when the archive has them.
func (a *Archive) SelfHashes() (SelfHashes, bool) {
	if a == nil {
		return SelfHashes{}, false
	}

	return decodeSelfHashes(a.selfHashes)
}
