// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import "slices"

// entryKey identifies one entry by decoded extension, directory and name.
type entryKey struct {
	ext  string
	dir  string
	name string
}

// keyOf builds lookup key from on-disk tokens.
func keyOf(ext, dir, name string) entryKey {
	return entryKey{
		ext:  decodeToken(ext),
		dir:  NormalizePath(decodeToken(dir)),
		name: name,
	}
}

// extNode is one extension level block in declaration order.
type extNode struct {
	token string
	dirs  []*dirNode
}

// dirNode is one directory level block in declaration order.
type dirNode struct {
	token   string
	entries []*Entry
}

// tree is the ordered three-level directory with a flat lookup index.
// Nodes are kept per on-disk occurrence so re-serialization reproduces the source layout.
type tree struct {
	index map[entryKey]*Entry
	exts  []*extNode
}

// newTree creates an empty tree sized for about n entries.
func newTree(n int) *tree {
	return &tree{index: make(map[entryKey]*Entry, n)}
}

// addExt appends a new extension block.
func (t *tree) addExt(token string) *extNode {
	node := &extNode{token: token}
	t.exts = append(t.exts, node)
	return node
}

// addDir appends a new directory block under ext.
func (n *extNode) addDir(token string) *dirNode {
	node := &dirNode{token: token}
	n.dirs = append(n.dirs, node)
	return node
}

// add appends entry to dir block and indexes it; false means duplicate key.
func (t *tree) add(dir *dirNode, e *Entry) bool {
	key := keyOf(e.ext, e.dir, e.name)
	if _, exists := t.index[key]; exists {
		return false
	}

	t.index[key] = e
	dir.entries = append(dir.entries, e)
	return true
}

// insert appends e to the first block matching its extension and directory,
// creating missing blocks at the end; false means duplicate key.
func (t *tree) insert(e *Entry) bool {
	key := keyOf(e.ext, e.dir, e.name)
	if _, exists := t.index[key]; exists {
		return false
	}

	dir := t.blockFor(key.ext, key.dir, e.ext, e.dir)
	dir.entries = append(dir.entries, e)
	t.index[key] = e
	return true
}

// blockFor returns the first directory block for decoded ext and dir, adding blocks with
// the given on-disk tokens when none exists.
func (t *tree) blockFor(ext, dir, extToken, dirToken string) *dirNode {
	var extBlock *extNode
	for _, node := range t.exts {
		if decodeToken(node.token) == ext {
			extBlock = node
			break
		}
	}
	if extBlock == nil {
		extBlock = t.addExt(extToken)
	}

	for _, node := range extBlock.dirs {
		if NormalizePath(decodeToken(node.token)) == dir {
			return node
		}
	}

	return extBlock.addDir(dirToken)
}

// remove unlinks e from its block and index and drops blocks left empty.
func (t *tree) remove(e *Entry) bool {
	if !t.owns(e) {
		return false
	}

	delete(t.index, keyOf(e.ext, e.dir, e.name))
	for i, ext := range t.exts {
		for j, dir := range ext.dirs {
			idx := slices.Index(dir.entries, e)
			if idx < 0 {
				continue
			}

			dir.entries = slices.Delete(dir.entries, idx, idx+1)
			if len(dir.entries) == 0 {
				ext.dirs = slices.Delete(ext.dirs, j, j+1)
			}
			if len(ext.dirs) == 0 {
				t.exts = slices.Delete(t.exts, i, i+1)
			}

			return true
		}
	}

	return true
}

// lookup resolves entry by decoded tokens.
func (t *tree) lookup(ext, dir, name string) *Entry {
	return t.index[entryKey{ext: ext, dir: dir, name: name}]
}

// owns reports whether e is the indexed entry for its own key.
func (t *tree) owns(e *Entry) bool {
	if e == nil {
		return false
	}

	return t.index[keyOf(e.ext, e.dir, e.name)] == e
}

// walk visits entries in declaration order and stops on first error.
func (t *tree) walk(fn func(e *Entry) error) error {
	for _, ext := range t.exts {
		for _, dir := range ext.dirs {
			for _, e := range dir.entries {
				if err := fn(e); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// len returns number of indexed entries.
func (t *tree) len() int {
	return len(t.index)
}
