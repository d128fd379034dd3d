// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"bytes"
	"context"
	_ "crypto/sha256" // registers digest.Canonical
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

// Editor accumulates archive edits and applies them on Commit.
type Editor struct {
	path string
	ops  []editOperation
	opts EditOptions
}

// editOperation stores one staged editor operation.
type editOperation struct {
	inputs []Input
	paths  []string
	kind   editOperationKind
}

// editOperationKind identifies staged edit action type.
type editOperationKind uint8

const (
	// editOperationAdd inserts new entries and fails on existing path.
	editOperationAdd editOperationKind = iota + 1
	// editOperationReplace rewrites existing entries.
	editOperationReplace
	// editOperationDelete removes exact paths.
	editOperationDelete
	// editOperationDeleteDir removes entries by directory prefix.
	editOperationDeleteDir
	// editOperationRename moves paths[0] to paths[1].
	editOperationRename
)

// OpenEditor creates staged editor for file-based archive rewrite workflow.
func OpenEditor(path string, opts EditOptions) (*Editor, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, ErrInvalidEntryPath
	}

	opts.applyDefaults()

	return &Editor{
		path: trimmedPath,
		opts: opts,
		ops:  make([]editOperation, 0, 4),
	}, nil
}

// Add schedules inserting a new entry. Content is copied.
func (e *Editor) Add(logicalPath string, content []byte) error {
	return e.AddInput(bytesInput(logicalPath, content))
}

// AddInput schedules inserting new entries from streams.
func (e *Editor) AddInput(inputs ...Input) error {
	return e.stageInputs(editOperationAdd, inputs)
}

// Replace schedules replacing the content of an existing entry.
// Content is copied.
func (e *Editor) Replace(logicalPath string, content []byte) error {
	return e.ReplaceInput(bytesInput(logicalPath, content))
}

// ReplaceInput schedules replacing existing entries from streams.
func (e *Editor) ReplaceInput(inputs ...Input) error {
	return e.stageInputs(editOperationReplace, inputs)
}

// Delete schedules exact-path removal. Missing paths are ignored at commit.
func (e *Editor) Delete(paths ...string) error {
	return e.stagePaths(editOperationDelete, paths)
}

// DeleteDir schedules directory-prefix removal.
func (e *Editor) DeleteDir(prefixes ...string) error {
	return e.stagePaths(editOperationDeleteDir, prefixes)
}

// Rename schedules moving an existing entry to a free path.
func (e *Editor) Rename(from, to string) error {
	if e == nil {
		return ErrNilArchive
	}

	paths, err := normalizeEditorPaths([]string{from, to})
	if err != nil {
		return err
	}

	e.ops = append(e.ops, editOperation{kind: editOperationRename, paths: paths})
	return nil
}

// bytesInput wraps a copy of content as an Input.
func bytesInput(logicalPath string, content []byte) Input {
	owned := bytes.Clone(content)
	return Input{
		Path: logicalPath,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(owned)), nil
		},
	}
}

// stageInputs validates inputs and appends one operation of kind.
func (e *Editor) stageInputs(kind editOperationKind, inputs []Input) error {
	if e == nil {
		return ErrNilArchive
	}

	normalized := make([]Input, 0, len(inputs))
	for _, in := range inputs {
		p := NormalizePath(in.Path)
		if p == "" || in.Open == nil {
			return fmt.Errorf("%w: input path %q", ErrInvalidEntryPath, in.Path)
		}

		in.Path = p
		normalized = append(normalized, in)
	}

	if len(normalized) == 0 {
		return nil
	}

	e.ops = append(e.ops, editOperation{kind: kind, inputs: normalized})
	return nil
}

// stagePaths validates paths and appends one operation of kind.
func (e *Editor) stagePaths(kind editOperationKind, paths []string) error {
	if e == nil {
		return ErrNilArchive
	}

	normalized, err := normalizeEditorPaths(paths)
	if err != nil {
		return err
	}

	if len(normalized) == 0 {
		return nil
	}

	e.ops = append(e.ops, editOperation{kind: kind, paths: normalized})
	return nil
}

// normalizeEditorPaths normalizes paths and rejects empty ones.
func normalizeEditorPaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		normalized := NormalizePath(p)
		if normalized == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEntryPath, p)
		}

		out = append(out, normalized)
	}

	return out, nil
}

// editReport collects paths touched by applied operations.
type editReport struct {
	replaced []string
	added    []string
	renamed  []string
	removed  []string
}

// Commit applies all staged operations in one rewrite transaction.
// The output is fully encoded in memory before any file is touched.
func (e *Editor) Commit(ctx context.Context) (*PatchResult, error) {
	if e == nil {
		return nil, ErrNilArchive
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if len(e.ops) == 0 {
		return nil, ErrNothingStaged
	}

	start := time.Now()
	logger := e.opts.Logger.With("archive", e.path)

	src, err := os.ReadFile(e.path)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	sourceDigest := digest.FromBytes(src)

	a, err := Parse(src)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseParse, Err: err}
	}

	report, err := e.applyOperations(ctx, a, logger)
	if err != nil {
		return nil, err
	}

	out, err := a.SerializeLayout(e.opts.Layout)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseSerialize, Err: err}
	}

	written, err := Parse(out)
	if err != nil {
		return nil, fmt.Errorf("re-parse output: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dstPath := e.opts.OutputPath
	if dstPath == "" {
		dstPath = e.path
	}

	backupPath, err := e.install(dstPath, out)
	if err != nil {
		return nil, err
	}

	res := &PatchResult{
		Path:         dstPath,
		BackupPath:   backupPath,
		SourceDigest: sourceDigest,
		OutputDigest: digest.FromBytes(out),
		Replaced:     describeEntries(written, report.replaced, true),
		Added:        describeEntries(written, report.added, true),
		Renamed:      describeEntries(written, report.renamed, false),
		Removed:      report.removed,
		Size:         int64(len(out)),
		Duration:     time.Since(start),
	}

	logger.Info("archive committed",
		"output", res.Path,
		"backup", res.BackupPath,
		"replaced", len(res.Replaced),
		"added", len(res.Added),
		"renamed", len(res.Renamed),
		"removed", len(res.Removed),
		"size", res.Size,
		"source_digest", res.SourceDigest.String(),
		"output_digest", res.OutputDigest.String(),
	)

	return res, nil
}

// applyOperations runs staged operations against a in order.
func (e *Editor) applyOperations(ctx context.Context, a *Archive, logger *slog.Logger) (*editReport, error) {
	report := &editReport{}
	patchOpts := PatchOptions{Logger: logger, Layout: e.opts.Layout}

	for _, op := range e.ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch op.kind {
		case editOperationAdd:
			replacements, err := loadReplacements(ctx, op.inputs)
			if err != nil {
				return nil, err
			}

			for _, r := range replacements {
				if _, err := a.Add(r.Path, r.Content); err != nil {
					return nil, &PhaseError{Phase: PhaseEdit, Err: err}
				}

				logger.Debug("entry added", "path", r.Path, "size", len(r.Content))
				report.added = append(report.added, r.Path)
			}
		case editOperationReplace:
			replacements, err := loadReplacements(ctx, op.inputs)
			if err != nil {
				return nil, err
			}

			if err := a.applyReplacements(replacements, patchOpts); err != nil {
				return nil, err
			}

			for _, r := range replacements {
				report.replaced = append(report.replaced, r.Path)
			}
		case editOperationDelete:
			for _, p := range op.paths {
				err := a.RemovePath(p)
				if errors.Is(err, ErrEntryNotFound) {
					continue
				}
				if err != nil {
					return nil, &PhaseError{Phase: PhaseEdit, Err: err}
				}

				logger.Debug("entry removed", "path", p)
				report.removed = append(report.removed, p)
			}
		case editOperationDeleteDir:
			for _, prefix := range op.paths {
				removed, err := a.RemoveDir(prefix)
				if err != nil {
					return nil, &PhaseError{Phase: PhaseEdit, Err: err}
				}

				logger.Debug("directory removed", "prefix", prefix, "entries", len(removed))
				report.removed = append(report.removed, removed...)
			}
		case editOperationRename:
			if err := a.RenamePath(op.paths[0], op.paths[1]); err != nil {
				return nil, &PhaseError{Phase: PhaseEdit, Err: err}
			}

			logger.Debug("entry renamed", "from", op.paths[0], "to", op.paths[1])
			report.renamed = append(report.renamed, op.paths[1])
		default:
			return nil, fmt.Errorf("unknown edit operation kind %d", op.kind)
		}
	}

	return report, nil
}

// loadReplacements reads input streams.
func loadReplacements(ctx context.Context, inputs []Input) ([]Replacement, error) {
	out := make([]Replacement, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := readInput(in)
		if err != nil {
			return nil, err
		}

		out = append(out, Replacement{Path: in.Path, Content: content})
	}

	return out, nil
}

// readInput opens and drains one input stream.
func readInput(in Input) ([]byte, error) {
	rc, err := in.Open()
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", in.Path, err)
	}
	defer func() { _ = rc.Close() }()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read input %s: %w", in.Path, err)
	}

	return content, nil
}

// describeEntries returns metadata of paths still present in the written archive,
// deduplicated in first-seen order.
func describeEntries(a *Archive, paths []string, rewritten bool) []EntryInfo {
	seen := make(map[string]struct{}, len(paths))
	infos := make([]EntryInfo, 0, len(paths))
	for _, p := range paths {
		entry, err := a.Resolve(p)
		if err != nil {
			continue
		}

		info := entry.Info()
		if _, dup := seen[info.Path]; dup {
			continue
		}

		seen[info.Path] = struct{}{}
		if rewritten {
			info.Rewritten = true
		}
		infos = append(infos, info)
	}

	return infos
}

// install writes data to dstPath through a temp file and returns the backup path if one was kept.
func (e *Editor) install(dstPath string, data []byte) (string, error) {
	tmpPath, err := writeTempFile(dstPath, data)
	if err != nil {
		return "", err
	}

	inPlace := filepath.Clean(dstPath) == filepath.Clean(e.path)
	if !inPlace || e.opts.BackupKeep == 0 {
		if err := os.Rename(tmpPath, dstPath); err != nil {
			_ = os.Remove(tmpPath)
			return "", fmt.Errorf("install archive: %w", err)
		}

		return "", nil
	}

	backupPath := e.path + ".bak"
	if err := prepareBackupSlot(backupPath, e.opts.BackupKeep); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	if err := os.Rename(e.path, backupPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("move archive to backup: %w", err)
	}

	if err := os.Rename(tmpPath, e.path); err != nil {
		_ = os.Remove(tmpPath)
		installErr := fmt.Errorf("install archive: %w", err)
		if rollbackErr := rollbackFromBackup(e.path, backupPath); rollbackErr != nil {
			return "", fmt.Errorf("%w (rollback failed: %w)", installErr, rollbackErr)
		}

		return "", installErr
	}

	return backupPath, nil
}

// writeTempFile writes data to a synced temp file next to dstPath.
func writeTempFile(dstPath string, data []byte) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(dstPath), filepath.Base(dstPath)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp archive: %w", err)
	}

	tmpPath := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write temp archive: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("sync temp archive: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close temp archive: %w", err)
	}

	return tmpPath, nil
}

// prepareBackupSlot rotates/removes existing backup generations before new commit.
func prepareBackupSlot(backupPath string, keep int) error {
	if keep < 0 {
		keep = 0
	}

	switch keep {
	case 0, 1:
		return removeIfExists(backupPath)
	default:
		oldest := fmt.Sprintf("%s.%d", backupPath, keep-1)
		if err := removeIfExists(oldest); err != nil {
			return err
		}

		for i := keep - 2; i >= 1; i-- {
			from := fmt.Sprintf("%s.%d", backupPath, i)
			to := fmt.Sprintf("%s.%d", backupPath, i+1)
			if err := renameIfExists(from, to); err != nil {
				return err
			}
		}

		return renameIfExists(backupPath, backupPath+".1")
	}
}

// renameIfExists renames source to destination when source exists.
func renameIfExists(from string, to string) error {
	_, err := os.Stat(from)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", from, err)
	}

	if err := removeIfExists(to); err != nil {
		return err
	}

	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, err)
	}

	return nil
}

// removeIfExists removes file when present.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) || err == nil {
		return nil
	}

	return fmt.Errorf("remove %s: %w", path, err)
}

// rollbackFromBackup restores backup on failed commit.
func rollbackFromBackup(path string, backupPath string) error {
	_ = os.Remove(path)

	if err := os.Rename(backupPath, path); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}

	return nil
}
