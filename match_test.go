package vpk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/pathrules"
)

func TestEntryMatcherIncludeExcludeRules(t *testing.T) {
	t.Parallel()

	matcher, err := newEntryMatcher([]pathrules.Rule{
		{Action: pathrules.ActionInclude, Pattern: "maps/**"},
		{Action: pathrules.ActionExclude, Pattern: "maps/dota/**"},
		{Action: pathrules.ActionInclude, Pattern: "maps/dota/keep/**"},
	}, pathrules.MatcherOptions{
		CaseInsensitive: true,
		DefaultAction:   pathrules.ActionExclude,
	})
	require.NoError(t, err)

	assert.True(t, matcher.Match("maps/dota.vpcf"))
	assert.False(t, matcher.Match("maps/dota/default.vmap"))
	assert.True(t, matcher.Match(`MAPS\DOTA\keep\a.vmap`))
	assert.False(t, matcher.Match("readme.txt"))
	assert.False(t, matcher.Match("/"))
}

func TestEntryMatcherEmptyRulesMatchAll(t *testing.T) {
	t.Parallel()

	matcher, err := newEntryMatcher([]pathrules.Rule{{Action: pathrules.ActionInclude, Pattern: "  "}}, pathrules.MatcherOptions{})
	require.NoError(t, err)
	assert.Nil(t, matcher)
	assert.True(t, matcher.Match("anything/at/all.txt"))
}

func TestEntryMatcherInvalidRule(t *testing.T) {
	t.Parallel()

	_, err := newEntryMatcher([]pathrules.Rule{
		{Action: pathrules.ActionUnknown, Pattern: "*.vtex"},
	}, pathrules.MatcherOptions{
		DefaultAction: pathrules.ActionExclude,
	})
	require.ErrorIs(t, err, ErrInvalidRules)
}

func TestArchiveSelect(t *testing.T) {
	t.Parallel()

	a, err := Parse(buildTestVPK(t, testArchive{files: mixedFiles()}))
	require.NoError(t, err)

	all, err := a.Select(nil, pathrules.MatcherOptions{})
	require.NoError(t, err)
	assert.Len(t, all, a.Len())

	textures, err := a.Select(includeRules("*.VTEX"), pathrules.MatcherOptions{})
	require.NoError(t, err)
	require.Len(t, textures, 2)
	assert.Equal(t, "materials/sky.vtex", textures[0].Path)
	assert.Equal(t, "materials/grass.vtex", textures[1].Path)

	rooted, err := a.Select(includeRules("/readme.txt", "/scripts/**"), pathrules.MatcherOptions{})
	require.NoError(t, err)
	require.Len(t, rooted, 2)
	assert.Equal(t, "readme.txt", rooted[0].Path)
	assert.Equal(t, "scripts/LICENSE", rooted[1].Path)
}
