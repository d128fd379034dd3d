// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"errors"
	"fmt"
)

// Sentinel errors for VPK operations. Use errors.Is in callers.
var (
	// ErrFormat is the umbrella for every malformed or unsupported archive error.
	ErrFormat = errors.New("invalid VPK archive")
	// ErrTruncatedHeader means the buffer is shorter than the fixed header.
	ErrTruncatedHeader = errors.New("truncated header")
	// ErrBadSignature means the header magic is not 0x55aa1234.
	ErrBadSignature = errors.New("bad signature")
	// ErrUnsupportedVersion means the header version is neither 1 nor 2.
	ErrUnsupportedVersion = errors.New("unsupported version")
	// ErrTruncatedTree means a tree level or record runs past the declared tree length.
	ErrTruncatedTree = errors.New("truncated directory tree")
	// ErrLengthMismatch means consumed tree bytes differ from the declared tree length.
	ErrLengthMismatch = errors.New("directory length mismatch")
	// ErrBadTerminator means an entry record does not end with 0xffff.
	ErrBadTerminator = errors.New("bad entry terminator")
	// ErrDuplicateEntry means the same extension/directory/name triple appears twice.
	ErrDuplicateEntry = errors.New("duplicate entry")
	// ErrTruncatedData means the embedded region or trailing sections exceed the buffer.
	ErrTruncatedData = errors.New("truncated data sections")
	// ErrEntryOutOfBounds means embedded entry data points outside the embedded region.
	ErrEntryOutOfBounds = errors.New("entry data out of bounds")

	// ErrEntryNotFound means the logical path is absent from the tree.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrUnsupportedRegion means entry data lives in a companion archive part.
	ErrUnsupportedRegion = errors.New("entry data is not in the embedded region")
	// ErrInvalidEntryPath means a logical path is empty or invalid after normalization.
	ErrInvalidEntryPath = errors.New("invalid entry path")
	// ErrForeignEntry means an entry handle does not belong to the archive.
	ErrForeignEntry = errors.New("entry does not belong to archive")
	// ErrSizeOverflow means a length or offset exceeds uint32 or preload limits.
	ErrSizeOverflow = errors.New("size exceeds VPK limits")
	// ErrNilArchive means the archive is nil.
	ErrNilArchive = errors.New("archive is nil")
	// ErrChecksumMismatch means entry content does not match its stored CRC.
	ErrChecksumMismatch = errors.New("entry checksum mismatch")
	// ErrSelfHashMismatch means a v2 tree, section or file MD5 does not match.
	ErrSelfHashMismatch = errors.New("archive self hash mismatch")
	// ErrInvalidExtractPath means archive entry path is invalid for extraction destination.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrInvalidRules means one or more selection rules are invalid.
	ErrInvalidRules = errors.New("invalid selection rules")
	// ErrNothingStaged means Commit was called without staged edits.
	ErrNothingStaged = errors.New("no edits staged")
	// ErrEntryExists means the target logical path is already taken by another entry.
	ErrEntryExists = errors.New("entry already exists")
)

// FormatError reports a malformed archive with the offset where parsing stopped.
// It matches both ErrFormat and its Kind sentinel under errors.Is.
type FormatError struct {
	// Kind is one of the format sentinels, e.g. ErrTruncatedTree.
	Kind error
	// Detail describes the violated expectation.
	Detail string
	// Offset is the absolute byte offset in the archive buffer.
	Offset int64
}

// Error implements error.
func (e *FormatError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: %v at offset %d", ErrFormat, e.Kind, e.Offset)
	}

	return fmt.Sprintf("%v: %v at offset %d: %s", ErrFormat, e.Kind, e.Offset, e.Detail)
}

// Unwrap exposes ErrFormat and Kind to errors.Is.
func (e *FormatError) Unwrap() []error {
	return []error{ErrFormat, e.Kind}
}

// formatErrorf builds a FormatError for kind at offset.
func formatErrorf(kind error, offset int64, format string, args ...any) error {
	return &FormatError{
		Kind:   kind,
		Offset: offset,
		Detail: fmt.Sprintf(format, args...),
	}
}

// NotFoundError reports a logical path absent from the directory tree.
type NotFoundError struct {
	Path string
}

// Error implements error.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v: %s", ErrEntryNotFound, e.Path)
}

// Unwrap returns ErrEntryNotFound.
func (e *NotFoundError) Unwrap() error {
	return ErrEntryNotFound
}

// UnsupportedRegionError reports an entry whose data lives in a companion archive part.
type UnsupportedRegionError struct {
	Path         string
	ArchiveIndex uint16
}

// Error implements error.
func (e *UnsupportedRegionError) Error() string {
	return fmt.Sprintf("%v: %s (archive index %d)", ErrUnsupportedRegion, e.Path, e.ArchiveIndex)
}

// Unwrap returns ErrUnsupportedRegion.
func (e *UnsupportedRegionError) Unwrap() error {
	return ErrUnsupportedRegion
}

// Phase names one stage of the patch pipeline.
type Phase string

// Patch pipeline phases.
const (
	PhaseParse     Phase = "parse"
	PhaseResolve   Phase = "resolve"
	PhaseReplace   Phase = "replace"
	PhaseEdit      Phase = "edit"
	PhaseSerialize Phase = "serialize"
)

// PhaseError tags an error with the patch phase that produced it.
type PhaseError struct {
	Err   error
	Phase Phase
}

// Error implements error.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

// Unwrap returns the phase cause.
func (e *PhaseError) Unwrap() error {
	return e.Err
}
