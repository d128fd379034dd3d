// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"fmt"
	"math"
	"strings"
)

// Add inserts a new entry with content at logicalPath.
//
// The entry goes to the end of its extension/directory block; missing blocks
// are appended after the existing ones. Its data is stored in the embedded
// region at serialization time. A taken path returns ErrEntryExists.
func (a *Archive) Add(logicalPath string, content []byte) (*Entry, error) {
	if a == nil || a.tree == nil {
		return nil, ErrNilArchive
	}

	ext, dir, name, err := splitEditPath(logicalPath)
	if err != nil {
		return nil, err
	}

	return a.addEntry(encodeToken(ext), encodeToken(dir), name, content, 0)
}

// addEntry inserts an embedded entry under on-disk tokens.
func (a *Archive) addEntry(extToken, dirToken, name string, content []byte, preloadLen int) (*Entry, error) {
	key := keyOf(extToken, dirToken, name)
	logical := joinPath(extToken, dirToken, name)
	if existing, _ := a.lookupPath(logical); existing != nil || a.tree.lookup(key.ext, key.dir, key.name) != nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryExists, logical)
	}

	preloadLen = min(preloadLen, len(content), maxPreload)
	if uint64(len(content)-preloadLen) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: content of %s is %d bytes", ErrSizeOverflow, logical, len(content))
	}

	owned := make([]byte, len(content))
	copy(owned, content)

	e := &Entry{
		ext:          extToken,
		dir:          dirToken,
		name:         name,
		preload:      owned[:preloadLen:preloadLen],
		tail:         owned[preloadLen:],
		basePreload:  preloadLen,
		crc:          Checksum(owned),
		archiveIndex: EmbeddedArchiveIndex,
		rewritten:    true,
	}

	if !a.tree.insert(e) {
		return nil, fmt.Errorf("%w: %s", ErrEntryExists, logical)
	}

	a.dirty = true
	return e, nil
}

// Remove unlinks e from the directory tree.
// Under LayoutAppend its embedded bytes stay in the region; LayoutCompact drops them.
func (a *Archive) Remove(e *Entry) error {
	if a == nil || a.tree == nil {
		return ErrNilArchive
	}

	if !a.tree.remove(e) {
		return ErrForeignEntry
	}

	a.dirty = true
	return nil
}

// RemovePath resolves logicalPath and removes its entry.
func (a *Archive) RemovePath(logicalPath string) error {
	e, err := a.Resolve(logicalPath)
	if err != nil {
		return err
	}

	return a.Remove(e)
}

// RemoveDir removes every entry equal to prefix or inside the prefix directory
// and returns removed paths in tree order.
func (a *Archive) RemoveDir(prefix string) ([]string, error) {
	if a == nil || a.tree == nil {
		return nil, ErrNilArchive
	}

	prefix = NormalizePath(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty directory prefix", ErrInvalidEntryPath)
	}

	var victims []*Entry
	_ = a.tree.walk(func(e *Entry) error {
		if hasDirPrefix(e.Path(), prefix) {
			victims = append(victims, e)
		}

		return nil
	})

	removed := make([]string, 0, len(victims))
	for _, e := range victims {
		a.tree.remove(e)
		removed = append(removed, e.Path())
	}

	if len(removed) > 0 {
		a.dirty = true
	}

	return removed, nil
}

// Rename moves e to newPath. Content, CRC, preload and region location are kept,
// so entries stored in companion parts can be renamed too.
// The entry is re-inserted at the end of its new extension/directory block.
func (a *Archive) Rename(e *Entry, newPath string) error {
	if a == nil || a.tree == nil {
		return ErrNilArchive
	}

	if !a.tree.owns(e) {
		return ErrForeignEntry
	}

	ext, dir, name, err := splitEditPath(newPath)
	if err != nil {
		return err
	}

	extToken, dirToken := encodeToken(ext), encodeToken(dir)
	if keyOf(extToken, dirToken, name) == keyOf(e.ext, e.dir, e.name) {
		return nil
	}

	if existing, _ := a.lookupPath(newPath); existing != nil && existing != e {
		return fmt.Errorf("%w: %s", ErrEntryExists, NormalizePath(newPath))
	}

	a.tree.remove(e)
	e.ext, e.dir, e.name = extToken, dirToken, name
	if !a.tree.insert(e) {
		return fmt.Errorf("%w: %s", ErrEntryExists, e.Path())
	}

	a.dirty = true
	return nil
}

// RenamePath resolves from and renames its entry to to.
func (a *Archive) RenamePath(from, to string) error {
	e, err := a.Resolve(from)
	if err != nil {
		return err
	}

	return a.Rename(e, to)
}

// AddMissing copies every entry of base whose path is absent from a and
// returns metadata of the added entries in base tree order.
// Copies keep the base on-disk tokens and preload length.
func (a *Archive) AddMissing(base *Archive) ([]EntryInfo, error) {
	if a == nil || a.tree == nil || base == nil || base.tree == nil {
		return nil, ErrNilArchive
	}

	var missing []*Entry
	_ = base.tree.walk(func(e *Entry) error {
		if existing, _ := a.lookupPath(e.Path()); existing == nil {
			missing = append(missing, e)
		}

		return nil
	})

	added := make([]EntryInfo, 0, len(missing))
	for _, src := range missing {
		content, err := base.ReadEntryContent(src)
		if err != nil {
			return nil, err
		}

		e, err := a.addEntry(src.ext, src.dir, src.name, content, len(src.preload))
		if err != nil {
			return nil, err
		}

		added = append(added, e.Info())
	}

	return added, nil
}

// splitEditPath splits a path for a new tree entry and rejects tokens the tree cannot store.
func splitEditPath(logicalPath string) (ext, dir, name string, err error) {
	if strings.IndexByte(logicalPath, 0) >= 0 {
		return "", "", "", fmt.Errorf("%w: %q contains NUL", ErrInvalidEntryPath, logicalPath)
	}

	return SplitPath(logicalPath)
}

// hasDirPrefix reports whether path equals prefix or lies inside the prefix directory.
func hasDirPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
