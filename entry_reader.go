// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// nopCloser wraps a reader and provides a no-op close.
type nopCloser struct {
	io.Reader
}

// Close closes nopCloser (no-op).
func (nopCloser) Close() error {
	return nil
}

// partReader streams a section of a companion archive part and closes the file.
type partReader struct {
	io.Reader
	file *os.File
}

// Close closes the part file.
func (p *partReader) Close() error {
	return p.file.Close()
}

// PartPath returns the companion part file name for archive index of a _dir.vpk path.
// "pak01_dir.vpk" with index 3 becomes "pak01_003.vpk".
func PartPath(dirPath string, index uint16) string {
	base := dirPath
	lower := strings.ToLower(dirPath)
	switch {
	case strings.HasSuffix(lower, "_dir.vpk"):
		base = dirPath[:len(dirPath)-len("_dir.vpk")]
	case strings.HasSuffix(lower, ".vpk"):
		base = dirPath[:len(dirPath)-len(".vpk")]
	}

	return fmt.Sprintf("%s_%03d.vpk", base, index)
}

// ReadEntry reads full content (preload plus region bytes) of the named entry.
func (a *Archive) ReadEntry(logicalPath string) ([]byte, error) {
	e, err := a.Resolve(logicalPath)
	if err != nil {
		return nil, err
	}

	return a.ReadEntryContent(e)
}

// ReadEntryContent reads full content of an already resolved entry.
func (a *Archive) ReadEntryContent(e *Entry) ([]byte, error) {
	rc, err := a.OpenEntryContent(e)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	out := make([]byte, 0, e.Size())
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, rc); err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Path(), err)
	}

	return buf.Bytes(), nil
}

// OpenEntry opens the named entry for streaming reads.
func (a *Archive) OpenEntry(logicalPath string) (io.ReadCloser, error) {
	e, err := a.Resolve(logicalPath)
	if err != nil {
		return nil, err
	}

	return a.OpenEntryContent(e)
}

// OpenEntryContent opens a resolved entry for streaming reads.
// Entries stored in companion parts need an archive opened with Open.
func (a *Archive) OpenEntryContent(e *Entry) (io.ReadCloser, error) {
	if a == nil || a.tree == nil {
		return nil, ErrNilArchive
	}

	if !a.tree.owns(e) {
		return nil, ErrForeignEntry
	}

	preload := bytes.NewReader(e.preload)
	switch {
	case e.rewritten:
		return nopCloser{Reader: io.MultiReader(preload, bytes.NewReader(e.tail))}, nil
	case e.length == 0:
		return nopCloser{Reader: preload}, nil
	case e.IsEmbedded():
		region := a.embedded[e.offset : e.offset+e.length]
		return nopCloser{Reader: io.MultiReader(preload, bytes.NewReader(region))}, nil
	}

	if a.path == "" {
		return nil, &UnsupportedRegionError{Path: e.Path(), ArchiveIndex: e.archiveIndex}
	}

	partPath := PartPath(a.path, e.archiveIndex)
	f, err := os.Open(partPath)
	if err != nil {
		return nil, fmt.Errorf("open archive part for %s: %w", e.Path(), err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat archive part %s: %w", partPath, err)
	}

	end := int64(e.offset) + int64(e.length)
	if end > fi.Size() {
		_ = f.Close()
		return nil, formatErrorf(ErrEntryOutOfBounds, int64(e.offset),
			"%s needs %d bytes, part %s has %d", e.Path(), e.length, partPath, fi.Size())
	}

	section := io.NewSectionReader(f, int64(e.offset), int64(e.length))
	return &partReader{Reader: io.MultiReader(preload, section), file: f}, nil
}
