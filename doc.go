// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

/*
Package vpk reads, verifies, extracts and patches Valve VPK directory files
(the *_dir.vpk index of Source and Source 2 packages). Versions 1 and 2 are
supported.

An Archive keeps the directory tree in on-disk order, so an unmodified
archive serializes back to the exact bytes it was parsed from. Replacing an
entry only touches that entry: its new data is appended after the original
embedded region and every other entry keeps its offset, preload and CRC.

Entries whose data lives in companion parts (pak01_000.vpk, ...) can be read
when the archive was opened from disk, but cannot be replaced.

# Reading

	a, err := vpk.Open("pak01_dir.vpk")
	if err != nil {
	    return err
	}
	for _, e := range a.Entries() {
	    data, _ := a.ReadEntry(e.Path)
	    // use data
	}

For metadata-only scans:

	h, err := vpk.ReadHeader("pak01_dir.vpk")
	if err != nil {
	    return err
	}
	entries, err := vpk.ListEntriesWithOptions("pak01_dir.vpk", vpk.ListOptions{
	    Prefix:       "maps",
	    EmbeddedOnly: true,
	})
	if err != nil {
	    return err
	}
	_, _ = h, entries

Rule-based selection uses github.com/woozymasta/pathrules:

	selected, err := a.Select([]pathrules.Rule{
	    {Action: pathrules.ActionInclude, Pattern: "*.vmap"},
	    {Action: pathrules.ActionExclude, Pattern: "maps/test/**"},
	}, pathrules.MatcherOptions{})

# Patching

In memory, one entry:

	out, err := vpk.Patch(src, "maps/dota/default.vmap", newContent)
	if err != nil {
	    var phaseErr *vpk.PhaseError
	    if errors.As(err, &phaseErr) {
	        // phaseErr.Phase is parse, resolve, replace or serialize
	    }
	    return err
	}

Several entries with an explicit layout:

	out, err := vpk.PatchWithOptions(src, []vpk.Replacement{
	    {Path: "scripts/npc/npc_heroes.txt", Content: heroes},
	    {Path: "resource/localization/addon_english.txt", Content: strings},
	}, vpk.PatchOptions{
	    Layout: vpk.LayoutCompact,
	    Logger: slog.Default(),
	})

LayoutAppend (default) keeps the original embedded bytes and appends new
data after them. LayoutCompact rebuilds the embedded region in tree order
and drops bytes of replaced entries.

Entries can be added, removed and renamed in memory:

	if _, err := a.Add("maps/dota/spring.vmap", data); err != nil {
	    return err
	}
	if err := a.RenamePath("maps/custom.vmap_c", "maps/dota.vmap_c"); err != nil {
	    return err
	}
	if _, err := a.AddMissing(base); err != nil {
	    return err
	}
	out, err := a.Serialize()

A new entry goes to the end of its extension/directory block and its data
is appended to the embedded region. Renamed entries keep their data where
it is, so entries in companion parts can be renamed too.

Rewriting a v2 archive drops its signature section and the archive MD5
records that describe the embedded region; the self-hash block is
recomputed.

# Editing files

	ed, err := vpk.OpenEditor("pak01_dir.vpk", vpk.EditOptions{BackupKeep: 2})
	if err != nil {
	    return err
	}
	_ = ed.Replace("maps/dota/default.vmap", newContent)
	_ = ed.Add("maps/dota/spring.vmap", springContent)
	_ = ed.Delete("maps/dota/old.vmap")
	_ = ed.DeleteDir("maps/test")
	_ = ed.Rename("maps/custom.vmap_c", "maps/dota.vmap_c")
	res, err := ed.Commit(ctx)
	if err != nil {
	    return err
	}
	_ = res.OutputDigest

Staged operations run in order. Commit encodes the whole archive in memory, writes a synced temp file next
to the destination and renames it into place. In-place commits rotate
backups (.bak, .bak.1, ...) according to BackupKeep.

# Verification and extraction

	if err := a.Verify(vpk.VerifyOptions{}); err != nil {
	    return err
	}
	err = a.Extract(ctx, "out", vpk.ExtractOptions{
	    MaxWorkers:    8,
	    SanitizeNames: true,
	})
*/
package vpk
