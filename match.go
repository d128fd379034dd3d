// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"fmt"

	"github.com/woozymasta/pathrules"
)

// entryMatcher holds compiled selection rules.
type entryMatcher struct {
	matcher *pathrules.Matcher
}

// newEntryMatcher compiles selection rules; empty rule set returns nil matcher (match all).
func newEntryMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*entryMatcher, error) {
	rules = normalizeRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidRules, err)
	}

	return &entryMatcher{matcher: matcher}, nil
}

// normalizeRules normalizes rule patterns and drops empty patterns.
func normalizeRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := normalizePathForMatching(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether logical path is selected. Nil matcher selects everything.
func (m *entryMatcher) Match(p string) bool {
	if m == nil || m.matcher == nil {
		return true
	}

	candidate := NormalizePath(p)
	if candidate == "" {
		return false
	}

	return m.matcher.Included(candidate, false)
}

// Select returns metadata of entries included by rules, in tree order.
// Empty rules select all entries.
func (a *Archive) Select(rules []pathrules.Rule, opts pathrules.MatcherOptions) ([]EntryInfo, error) {
	if a == nil || a.tree == nil {
		return nil, ErrNilArchive
	}

	if opts == (pathrules.MatcherOptions{}) {
		opts = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	m, err := newEntryMatcher(rules, opts)
	if err != nil {
		return nil, err
	}

	return a.selectEntries(m), nil
}

// selectEntries filters tree entries with matcher.
func (a *Archive) selectEntries(m *entryMatcher) []EntryInfo {
	out := make([]EntryInfo, 0, a.tree.len())
	_ = a.tree.walk(func(e *Entry) error {
		info := e.Info()
		if m.Match(info.Path) {
			out = append(out, info)
		}

		return nil
	})

	return out
}
