package vpk

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartPath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in    string
		index uint16
		want  string
	}{
		{in: "pak01_dir.vpk", index: 3, want: "pak01_003.vpk"},
		{in: "/games/dota/pak01_dir.vpk", index: 0, want: "/games/dota/pak01_000.vpk"},
		{in: "PAK01_DIR.VPK", index: 12, want: "PAK01_012.vpk"},
		{in: "single.vpk", index: 1, want: "single_001.vpk"},
		{in: "noext", index: 999, want: "noext_999.vpk"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, PartPath(tc.in, tc.index), tc.in)
	}
}

// writeSplitArchive writes pak01_dir.vpk with mixedFiles plus companion part 0.
func writeSplitArchive(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	dirPath := filepath.Join(dir, "pak01_dir.vpk")
	require.NoError(t, os.WriteFile(dirPath, buildTestVPK(t, testArchive{files: mixedFiles(), selfHashes: true}), 0o600))

	part := make([]byte, 128, 256)
	part = append(part, "sky texture bytes"...)
	require.NoError(t, os.WriteFile(PartPath(dirPath, 0), part, 0o600))

	return dirPath
}

func TestReadEntry_CompanionPart(t *testing.T) {
	t.Parallel()

	a, err := Open(writeSplitArchive(t))
	require.NoError(t, err)

	got, err := a.ReadEntry("materials/sky.vtex")
	require.NoError(t, err)
	assert.Equal(t, "sky texture bytes", string(got))

	rc, err := a.OpenEntry("materials/sky.vtex")
	require.NoError(t, err)
	streamed, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, got, streamed)

	require.NoError(t, a.Verify(VerifyOptions{}))
}

func TestReadEntry_CompanionPartErrors(t *testing.T) {
	t.Parallel()

	t.Run("parsed from memory", func(t *testing.T) {
		t.Parallel()

		a, err := Parse(buildTestVPK(t, testArchive{files: mixedFiles()}))
		require.NoError(t, err)

		_, err = a.ReadEntry("materials/sky.vtex")
		var regionErr *UnsupportedRegionError
		require.ErrorAs(t, err, &regionErr)
		assert.Equal(t, uint16(0), regionErr.ArchiveIndex)
	})

	t.Run("missing part", func(t *testing.T) {
		t.Parallel()

		dirPath := writeSplitArchive(t)
		require.NoError(t, os.Remove(PartPath(dirPath, 0)))

		a, err := Open(dirPath)
		require.NoError(t, err)

		_, err = a.ReadEntry("materials/sky.vtex")
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("short part", func(t *testing.T) {
		t.Parallel()

		dirPath := writeSplitArchive(t)
		require.NoError(t, os.WriteFile(PartPath(dirPath, 0), make([]byte, 130), 0o600))

		a, err := Open(dirPath)
		require.NoError(t, err)

		_, err = a.ReadEntry("materials/sky.vtex")
		require.ErrorIs(t, err, ErrEntryOutOfBounds)
	})

	t.Run("corrupted part", func(t *testing.T) {
		t.Parallel()

		dirPath := writeSplitArchive(t)
		part := make([]byte, 128, 256)
		part = append(part, "SKY texture bytes"...)
		require.NoError(t, os.WriteFile(PartPath(dirPath, 0), part, 0o600))

		a, err := Open(dirPath)
		require.NoError(t, err)

		require.ErrorIs(t, a.Verify(VerifyOptions{}), ErrChecksumMismatch)
		require.NoError(t, a.Verify(VerifyOptions{SkipExternal: true}))
	})
}

func TestOpenEntryContent_ForeignEntry(t *testing.T) {
	t.Parallel()

	src := singleEntryVPK(t, VersionV2)
	a, err := Parse(src)
	require.NoError(t, err)
	b, err := Parse(src)
	require.NoError(t, err)

	e, err := b.Resolve("maps/dota/default.vmap")
	require.NoError(t, err)

	_, err = a.OpenEntryContent(e)
	require.ErrorIs(t, err, ErrForeignEntry)
}
