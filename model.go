// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"io"
	"log/slog"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/woozymasta/pathrules"
)

// Binary layout constants.
const (
	// Signature is the little-endian magic at offset 0 of every VPK directory file.
	Signature uint32 = 0x55aa1234

	// VersionV1 is the original VPK layout with a 12-byte header.
	VersionV1 uint32 = 1
	// VersionV2 adds embedded data length and trailing MD5/signature sections.
	VersionV2 uint32 = 2

	// EmbeddedArchiveIndex marks entries whose data follows the tree in the _dir file.
	EmbeddedArchiveIndex uint16 = 0x7fff
	// EntryTerminator closes every entry record.
	EntryTerminator uint16 = 0xffff

	headerSizeV1    = 12 // signature, version, tree length
	headerSizeV2    = 28 // v1 + embedded, chunk hashes, self hashes, signature lengths
	entryRecordSize = 18 // crc, preload, archive index, offset, length, terminator
	chunkHashSize   = 28 // archive index, offset, count, md5
	selfHashesSize  = 48 // tree md5, chunk hashes md5, file md5
	md5Size         = 16
	maxPreload      = 0xffff
	rootToken       = " " // on-disk name for empty directory or extension
)

// Header is the fixed VPK header. V2-only fields are zero for v1 archives.
type Header struct {
	Signature uint32 `json:"signature" yaml:"signature"`
	Version   uint32 `json:"version" yaml:"version"`
	// TreeLength is the byte size of the directory tree following the header.
	TreeLength uint32 `json:"tree_length" yaml:"tree_length"`
	// EmbeddedLength is the size of data stored after the tree (v2).
	EmbeddedLength uint32 `json:"embedded_length,omitempty" yaml:"embedded_length,omitempty"`
	// ChunkHashesLength is the size of the archive MD5 section (v2).
	ChunkHashesLength uint32 `json:"chunk_hashes_length,omitempty" yaml:"chunk_hashes_length,omitempty"`
	// SelfHashesLength is the size of the tree/section/file MD5 block (v2).
	SelfHashesLength uint32 `json:"self_hashes_length,omitempty" yaml:"self_hashes_length,omitempty"`
	// SignatureLength is the size of the public key and signature block (v2).
	SignatureLength uint32 `json:"signature_length,omitempty" yaml:"signature_length,omitempty"`
}

// Size returns header size in bytes for the header version.
func (h Header) Size() int {
	if h.Version == VersionV2 {
		return headerSizeV2
	}

	return headerSizeV1
}

// Entry is one file record of the directory tree.
//
// Preload and region bytes of parsed entries are sub-slices of the archive
// buffer. Only an entry passed to Archive.Replace owns its bytes.
type Entry struct {
	ext  string
	dir  string
	name string

	// preload is the inline data block stored in the tree.
	preload []byte
	// tail holds replacement bytes stored outside the tree for rewritten entries.
	tail []byte
	// basePreload is the preload length the entry had in the source tree.
	basePreload int

	crc          uint32
	offset       uint32
	length       uint32
	archiveIndex uint16
	rewritten    bool
}

// Path returns the logical slash-separated path of the entry.
func (e *Entry) Path() string {
	return joinPath(e.ext, e.dir, e.name)
}

// CRC returns CRC-32 (IEEE) of the full entry content.
func (e *Entry) CRC() uint32 { return e.crc }

// PreloadLength returns size of the inline preload block.
func (e *Entry) PreloadLength() uint16 { return uint16(len(e.preload)) } //nolint:gosec // bounded by maxPreload

// ArchiveIndex returns the data region selector.
func (e *Entry) ArchiveIndex() uint16 { return e.archiveIndex }

// Offset returns region offset as stored in the tree.
// Rewritten entries get their offset assigned during serialization.
func (e *Entry) Offset() uint32 { return e.offset }

// Length returns the size of content stored outside the tree.
func (e *Entry) Length() uint32 {
	if e.rewritten {
		return uint32(len(e.tail)) //nolint:gosec // checked in Replace
	}

	return e.length
}

// Size returns total content size (preload plus remaining length).
func (e *Entry) Size() int64 {
	return int64(len(e.preload)) + int64(e.Length())
}

// IsEmbedded reports whether the entry data lives in the _dir file itself.
func (e *Entry) IsEmbedded() bool {
	return e.archiveIndex == EmbeddedArchiveIndex
}

// Rewritten reports whether the entry content was replaced.
func (e *Entry) Rewritten() bool { return e.rewritten }

// Info returns an immutable metadata snapshot of the entry.
func (e *Entry) Info() EntryInfo {
	return EntryInfo{
		Path:          e.Path(),
		CRC:           e.crc,
		PreloadLength: e.PreloadLength(),
		ArchiveIndex:  e.archiveIndex,
		Offset:        e.offset,
		Length:        e.Length(),
		Rewritten:     e.rewritten,
	}
}

// EntryInfo describes one parsed entry.
type EntryInfo struct {
	// Path is the logical slash-separated entry path.
	Path string `json:"path" yaml:"path"`
	// CRC is CRC-32 (IEEE) of the full content.
	CRC uint32 `json:"crc" yaml:"crc"`
	// PreloadLength is size of the inline block stored in the tree.
	PreloadLength uint16 `json:"preload_length,omitempty" yaml:"preload_length,omitempty"`
	// ArchiveIndex selects the data region (0x7fff is the _dir file).
	ArchiveIndex uint16 `json:"archive_index" yaml:"archive_index"`
	// Offset is data offset inside the selected region.
	Offset uint32 `json:"offset" yaml:"offset"`
	// Length is size of content stored in the data region.
	Length uint32 `json:"length" yaml:"length"`
	// Rewritten reports whether the entry has replaced content.
	Rewritten bool `json:"rewritten,omitempty" yaml:"rewritten,omitempty"`
}

// Size returns total content size.
func (e EntryInfo) Size() int64 {
	return int64(e.PreloadLength) + int64(e.Length)
}

// IsEmbedded reports whether the entry data lives in the _dir file itself.
func (e EntryInfo) IsEmbedded() bool {
	return e.ArchiveIndex == EmbeddedArchiveIndex
}

// Layout selects how serialization places rewritten entry data.
type Layout string

// Embedded data layouts.
const (
	// LayoutAppend keeps the original embedded region intact and appends rewritten data after it.
	LayoutAppend Layout = "append"
	// LayoutCompact rebuilds the embedded region in tree order and drops dead bytes.
	LayoutCompact Layout = "compact"
)

// Replacement is one entry substitution for PatchWithOptions.
type Replacement struct {
	// Path is the logical entry path.
	Path string `json:"path" yaml:"path"`
	// Content is the full new entry content.
	Content []byte `json:"-" yaml:"-"`
}

// Input describes one replacement stream for the Editor.
type Input struct {
	// Open returns the full new entry content stream.
	Open func() (io.ReadCloser, error) `json:"-" yaml:"-"`
	// Path is the logical entry path.
	Path string `json:"path" yaml:"path"`
}

// PatchResult contains Editor commit output details.
type PatchResult struct {
	// Path is the written archive path.
	Path string `json:"path" yaml:"path"`
	// BackupPath is the backup of the previous archive, empty when none was kept.
	BackupPath string `json:"backup_path,omitempty" yaml:"backup_path,omitempty"`
	// SourceDigest is the content digest of the archive before commit.
	SourceDigest digest.Digest `json:"source_digest" yaml:"source_digest"`
	// OutputDigest is the content digest of the written archive.
	OutputDigest digest.Digest `json:"output_digest" yaml:"output_digest"`
	// Replaced lists metadata of replaced entries as written.
	Replaced []EntryInfo `json:"replaced" yaml:"replaced"`
	// Added lists metadata of inserted entries as written.
	Added []EntryInfo `json:"added,omitempty" yaml:"added,omitempty"`
	// Renamed lists metadata of moved entries under their new paths.
	Renamed []EntryInfo `json:"renamed,omitempty" yaml:"renamed,omitempty"`
	// Removed lists logical paths of deleted entries.
	Removed []string `json:"removed,omitempty" yaml:"removed,omitempty"`
	// Size is the written archive size in bytes.
	Size int64 `json:"size" yaml:"size"`
	// Duration is end-to-end commit duration.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// PatchOptions configures in-memory patching.
type PatchOptions struct {
	// Logger receives debug records for each replacement; nil discards.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// Layout controls embedded region placement. Default is LayoutAppend.
	Layout Layout `json:"layout,omitempty" yaml:"layout,omitempty"`
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one entry is fully written to disk.
	OnEntryDone func(entry EntryInfo, outputPath string) `json:"-" yaml:"-"`
	// Rules selects entries to extract; empty means all entries.
	Rules []pathrules.Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
	// MatcherOptions control rule matching.
	MatcherOptions pathrules.MatcherOptions `json:"matcher_options,omitzero" yaml:"matcher_options,omitzero"`
	// MaxWorkers is number of extraction workers (zero means GOMAXPROCS).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
	// SanitizeNames rewrites output paths to portable file names
	// (reserved device names, forbidden characters, long segments, case collisions).
	SanitizeNames bool `json:"sanitize_names,omitempty" yaml:"sanitize_names,omitempty"`
}

// ListOptions filters entry listings. Zero value lists everything.
type ListOptions struct {
	// Prefix keeps entries under a directory prefix or one exact path.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// MinSize skips entries whose total content is smaller.
	MinSize int64 `json:"min_size,omitempty" yaml:"min_size,omitempty"`
	// MinPreload skips entries with a shorter inline preload block.
	MinPreload uint16 `json:"min_preload,omitempty" yaml:"min_preload,omitempty"`
	// EmbeddedOnly skips entries with data in companion archive parts.
	EmbeddedOnly bool `json:"embedded_only,omitempty" yaml:"embedded_only,omitempty"`
	// ASCIIOnly skips entries with non-ASCII bytes in their path.
	ASCIIOnly bool `json:"ascii_only,omitempty" yaml:"ascii_only,omitempty"`
}

// VerifyOptions configures Verify behavior.
type VerifyOptions struct {
	// SkipExternal skips CRC checks of entries stored in companion archive parts.
	SkipExternal bool `json:"skip_external,omitempty" yaml:"skip_external,omitempty"`
	// SkipSelfHashes skips v2 tree/section/file MD5 checks.
	SkipSelfHashes bool `json:"skip_self_hashes,omitempty" yaml:"skip_self_hashes,omitempty"`
}

// EditOptions configures file-based archive edit flow.
type EditOptions struct {
	// Logger receives commit progress records; nil discards.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// OutputPath writes the result to another file; empty means rewrite in place.
	OutputPath string `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	// Layout controls embedded region placement. Default is LayoutAppend.
	Layout Layout `json:"layout,omitempty" yaml:"layout,omitempty"`
	// BackupKeep controls how many backup generations are kept after in-place commit.
	// 0 means no backup, 1 keeps only `<archive>.bak`, N keeps `.bak` + `.bak.1..N-1`.
	BackupKeep int `json:"backup_keep,omitempty" yaml:"backup_keep,omitempty"`
}

// applyDefaults fills zero-valued patch options with defaults.
func (opts *PatchOptions) applyDefaults() {
	if opts.Layout == "" {
		opts.Layout = LayoutAppend
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.MatcherOptions == (pathrules.MatcherOptions{}) {
		opts.MatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	if opts.MatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.MatcherOptions.DefaultAction = pathrules.ActionExclude
	}
}

// applyDefaults fills zero-valued edit options with defaults.
func (opts *EditOptions) applyDefaults() {
	if opts.Layout == "" {
		opts.Layout = LayoutAppend
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	if opts.BackupKeep < 0 {
		opts.BackupKeep = 0
	}
}
