// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"fmt"
	"math"
)

// Resolve looks up an entry by logical path ("maps/dota/default.vmap").
// A missing path returns *NotFoundError.
func (a *Archive) Resolve(logicalPath string) (*Entry, error) {
	if a == nil || a.tree == nil {
		return nil, ErrNilArchive
	}

	e, err := a.lookupPath(logicalPath)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &NotFoundError{Path: NormalizePath(logicalPath)}
	}

	return e, nil
}

// lookupPath finds the entry listed under logicalPath, or nil.
// Names with dots stored without extension ("cfg/autoexec.bak" under " ")
// are tried after the extension split.
func (a *Archive) lookupPath(logicalPath string) (*Entry, error) {
	ext, dir, name, err := SplitPath(logicalPath)
	if err != nil {
		return nil, err
	}

	if e := a.tree.lookup(ext, dir, name); e != nil {
		return e, nil
	}

	if ext == "" {
		return nil, nil
	}

	return a.tree.lookup("", dir, name+"."+ext), nil
}

// Replace substitutes the full content of e.
//
// The preload length from the source tree is kept when content is long enough; the rest
// of content is stored in the embedded region at serialization time.
// Entries with data in a companion archive part return *UnsupportedRegionError.
func (a *Archive) Replace(e *Entry, content []byte) error {
	if a == nil || a.tree == nil {
		return ErrNilArchive
	}

	if !a.tree.owns(e) {
		return ErrForeignEntry
	}

	if !e.IsEmbedded() && !e.rewritten && e.length > 0 {
		return &UnsupportedRegionError{Path: e.Path(), ArchiveIndex: e.archiveIndex}
	}

	preloadLen := min(e.basePreload, len(content))
	if uint64(len(content)-preloadLen) > math.MaxUint32 {
		return fmt.Errorf("%w: content of %s is %d bytes", ErrSizeOverflow, e.Path(), len(content))
	}

	owned := make([]byte, len(content))
	copy(owned, content)

	e.crc = Checksum(owned)
	e.preload = owned[:preloadLen:preloadLen]
	e.tail = owned[preloadLen:]
	e.rewritten = true
	a.dirty = true

	return nil
}

// ReplacePath resolves logicalPath and replaces its content.
func (a *Archive) ReplacePath(logicalPath string, content []byte) error {
	e, err := a.Resolve(logicalPath)
	if err != nil {
		return err
	}

	return a.Replace(e, content)
}

// Patch parses src, replaces one entry content and returns the re-encoded archive.
// Errors are *PhaseError values naming the failed stage.
func Patch(src []byte, logicalPath string, content []byte) ([]byte, error) {
	return PatchWithOptions(src, []Replacement{{Path: logicalPath, Content: content}}, PatchOptions{})
}

// PatchWithOptions parses src, applies replacements in order and re-encodes the archive.
func PatchWithOptions(src []byte, replacements []Replacement, opts PatchOptions) ([]byte, error) {
	opts.applyDefaults()
	logger := opts.Logger

	a, err := Parse(src)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseParse, Err: err}
	}

	if err := a.applyReplacements(replacements, opts); err != nil {
		return nil, err
	}

	out, err := a.SerializeLayout(opts.Layout)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseSerialize, Err: err}
	}

	logger.Debug("archive patched",
		"replacements", len(replacements),
		"source_size", len(src),
		"output_size", len(out),
		"layout", string(opts.Layout),
	)

	return out, nil
}

// applyReplacements resolves and replaces each entry, tagging failures with their phase.
func (a *Archive) applyReplacements(replacements []Replacement, opts PatchOptions) error {
	for _, r := range replacements {
		e, err := a.Resolve(r.Path)
		if err != nil {
			return &PhaseError{Phase: PhaseResolve, Err: err}
		}

		before := e.Info()
		if err := a.Replace(e, r.Content); err != nil {
			return &PhaseError{Phase: PhaseReplace, Err: err}
		}

		opts.Logger.Debug("entry replaced",
			"path", before.Path,
			"old_size", before.Size(),
			"new_size", e.Size(),
			"old_crc", fmt.Sprintf("%08x", before.CRC),
			"new_crc", fmt.Sprintf("%08x", e.crc),
			"preload", e.PreloadLength(),
		)
	}

	return nil
}
