// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"encoding/binary"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/woozymasta/pathrules"
)

// testFile describes one entry of a synthetic archive.
type testFile struct {
	path    string
	content []byte
	// preload is the number of content bytes stored inline in the tree.
	preload int
	// part selects a companion archive part; nil means embedded.
	part *uint16
	// offset is the data offset inside a companion part.
	offset uint32
	// noExt stores the whole base name under the " " extension token.
	noExt bool
}

// tokens returns the on-disk ext, dir and name tokens of f.
func (f testFile) tokens(t testing.TB) (string, string, string) {
	t.Helper()

	ext, dir, name := splitTestPath(t, f.path)
	if f.noExt && ext != " " {
		name, ext = name+"."+ext, " "
	}

	return ext, dir, name
}

// testChunkHash is one archive MD5 section record.
type testChunkHash struct {
	archiveIndex uint32
	offset       uint32
	count        uint32
	sum          [16]byte
}

// testArchive configures synthetic archive layout.
type testArchive struct {
	files       []testFile
	chunkHashes []testChunkHash
	signature   []byte
	trailing    []byte
	version     uint32
	selfHashes  bool
}

// partIndex returns pointer to archive part index for testFile literals.
func partIndex(i uint16) *uint16 {
	return &i
}

// splitTestPath splits logical path into on-disk tokens.
func splitTestPath(t testing.TB, p string) (string, string, string) {
	t.Helper()

	dir, base := path.Split(p)
	dir = strings.TrimSuffix(dir, "/")
	ext := ""
	name := base
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		name, ext = base[:idx], base[idx+1:]
	}

	if dir == "" {
		dir = " "
	}
	if ext == "" {
		ext = " "
	}

	return ext, dir, name
}

// buildTestVPK encodes a synthetic VPK directory file. Entries are grouped by
// extension and directory in first-seen order; embedded data follows file order.
func buildTestVPK(t testing.TB, cfg testArchive) []byte {
	t.Helper()

	type dirGroup struct {
		dir   string
		files []int
	}
	type extGroup struct {
		ext  string
		dirs []*dirGroup
	}

	var groups []*extGroup
	for i, f := range cfg.files {
		ext, dir, _ := f.tokens(t)

		var eg *extGroup
		for _, g := range groups {
			if g.ext == ext {
				eg = g
			}
		}
		if eg == nil {
			eg = &extGroup{ext: ext}
			groups = append(groups, eg)
		}

		var dg *dirGroup
		for _, d := range eg.dirs {
			if d.dir == dir {
				dg = d
			}
		}
		if dg == nil {
			dg = &dirGroup{dir: dir}
			eg.dirs = append(eg.dirs, dg)
		}

		dg.files = append(dg.files, i)
	}

	var embedded []byte
	embeddedOffsets := make(map[int]uint32, len(cfg.files))
	for i, f := range cfg.files {
		if f.part != nil || len(f.content) == f.preload {
			continue
		}

		embeddedOffsets[i] = uint32(len(embedded))
		embedded = append(embedded, f.content[f.preload:]...)
	}

	var tree []byte
	for _, eg := range groups {
		tree = append(tree, eg.ext...)
		tree = append(tree, 0)
		for _, dg := range eg.dirs {
			tree = append(tree, dg.dir...)
			tree = append(tree, 0)
			for _, i := range dg.files {
				f := cfg.files[i]
				_, _, name := f.tokens(t)
				tree = append(tree, name...)
				tree = append(tree, 0)

				archiveIndex := EmbeddedArchiveIndex
				offset := embeddedOffsets[i]
				if f.part != nil {
					archiveIndex = *f.part
					offset = f.offset
				}

				tree = binary.LittleEndian.AppendUint32(tree, Checksum(f.content))
				tree = binary.LittleEndian.AppendUint16(tree, uint16(f.preload))
				tree = binary.LittleEndian.AppendUint16(tree, archiveIndex)
				tree = binary.LittleEndian.AppendUint32(tree, offset)
				tree = binary.LittleEndian.AppendUint32(tree, uint32(len(f.content)-f.preload))
				tree = binary.LittleEndian.AppendUint16(tree, EntryTerminator)
				tree = append(tree, f.content[:f.preload]...)
			}
			tree = append(tree, 0)
		}
		tree = append(tree, 0)
	}
	tree = append(tree, 0)

	var chunkSection []byte
	for _, ch := range cfg.chunkHashes {
		chunkSection = binary.LittleEndian.AppendUint32(chunkSection, ch.archiveIndex)
		chunkSection = binary.LittleEndian.AppendUint32(chunkSection, ch.offset)
		chunkSection = binary.LittleEndian.AppendUint32(chunkSection, ch.count)
		chunkSection = append(chunkSection, ch.sum[:]...)
	}

	version := cfg.version
	if version == 0 {
		version = VersionV2
	}

	var header []byte
	header = binary.LittleEndian.AppendUint32(header, Signature)
	header = binary.LittleEndian.AppendUint32(header, version)
	header = binary.LittleEndian.AppendUint32(header, uint32(len(tree)))

	if version == VersionV1 {
		out := append(header, tree...)
		return append(out, embedded...)
	}

	selfLen := 0
	if cfg.selfHashes {
		selfLen = selfHashesSize
	}

	header = binary.LittleEndian.AppendUint32(header, uint32(len(embedded)))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(chunkSection)))
	header = binary.LittleEndian.AppendUint32(header, uint32(selfLen))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(cfg.signature)))

	out := append([]byte{}, header...)
	out = append(out, tree...)
	out = append(out, embedded...)
	out = append(out, chunkSection...)
	if cfg.selfHashes {
		sums := computeSelfHashes(header, tree, [][]byte{embedded}, chunkSection)
		out = append(out, sums[:]...)
	}
	out = append(out, cfg.signature...)
	out = append(out, cfg.trailing...)

	return out
}

// singleEntryVPK builds the minimal one-entry archive used by end-to-end checks.
func singleEntryVPK(t *testing.T, version uint32) []byte {
	t.Helper()

	return buildTestVPK(t, testArchive{
		version:    version,
		selfHashes: version == VersionV2,
		files: []testFile{
			{path: "maps/dota/default.vmap", content: []byte("AAAA")},
		},
	})
}

// mixedFiles returns entries covering root directory, missing extension,
// preload-only, split preload and companion part storage.
func mixedFiles() []testFile {
	return []testFile{
		{path: "maps/dota/default.vmap", content: []byte("AAAA")},
		{path: "maps/dota/desert.vmap", content: []byte("desert terrain payload"), preload: 6},
		{path: "maps/dota/winter.vmap", content: []byte("winter terrain")},
		{path: "maps/dota.vpcf", content: []byte("particles")},
		{path: "readme.txt", content: []byte("root file")},
		{path: "scripts/LICENSE", content: []byte("MIT"), preload: 3},
		{path: "materials/sky.vtex", content: []byte("sky texture bytes"), part: partIndex(0), offset: 128},
		{path: "materials/grass.vtex", content: []byte("grs"), preload: 3, part: partIndex(1)},
		{path: "maps/dota/empty.vmap", content: []byte{}},
	}
}

// writeTestFile writes data to name under a fresh temp directory.
func writeTestFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

// includeRules builds include rules from raw patterns for concise test setup.
func includeRules(patterns ...string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		rules = append(rules, pathrules.Rule{
			Action:  pathrules.ActionInclude,
			Pattern: pattern,
		})
	}

	return rules
}
