package hdf5io

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLocator(base string) Locator {
	return Locator{
		BaseDir: base,
		Sim:     "L0012N0188",
		Model:   "REFERENCE",
		Tag:     "028_z000p000",
	}
}

func TestLocatorShardPath(t *testing.T) {
	loc := testLocator("/hpcdata0/simulations/EAGLE")

	// The template must match the files on disk exactly.
	want := filepath.Join("/hpcdata0/simulations/EAGLE",
		"L0012N0188", "REFERENCE", "data", "groups_028_z000p000",
		"eagle_subfind_tab_028_z000p000.0.hdf5")
	assert.Equal(t, want, loc.ShardPath(0))

	assert.Equal(t, filepath.Join(loc.GroupDir(),
		"eagle_subfind_tab_028_z000p000.15.hdf5"), loc.ShardPath(15))
}

func TestLocatorValidate(t *testing.T) {
	loc := testLocator("/data")
	require.NoError(t, loc.Validate())

	tests := []struct {
		name   string
		mutate func(*Locator)
	}{
		{"base dir", func(l *Locator) { l.BaseDir = "" }},
		{"sim", func(l *Locator) { l.Sim = "" }},
		{"model", func(l *Locator) { l.Model = "" }},
		{"tag", func(l *Locator) { l.Tag = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bad := testLocator("/data")
			tc.mutate(&bad)
			require.Error(t, bad.Validate())
		})
	}
}

func TestNewShardSetRejectsInvalidLocator(t *testing.T) {
	_, err := NewShardSet(Locator{})
	require.ErrorContains(t, err, "invalid locator")
}

func TestShardSetExists(t *testing.T) {
	base := t.TempDir()
	loc := testLocator(base)
	set, err := NewShardSet(loc)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(loc.GroupDir(), 0o755))
	require.NoError(t, os.WriteFile(loc.ShardPath(0), []byte{}, 0o644))
	require.NoError(t, os.WriteFile(loc.ShardPath(1), []byte{}, 0o644))

	for i, want := range []bool{true, true, false, false} {
		got, err := set.Exists(i)
		require.NoError(t, err)
		assert.Equal(t, want, got, "shard %d", i)
	}
}

func TestShardSetExistsMissingTree(t *testing.T) {
	// A missing directory tree is indistinguishable from a missing
	// shard 0: the reader turns it into its no-shards error.
	set, err := NewShardSet(testLocator(filepath.Join(t.TempDir(), "nope")))
	require.NoError(t, err)

	ok, err := set.Exists(0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShardSetPath(t *testing.T) {
	loc := testLocator("/data")
	set, err := NewShardSet(loc)
	require.NoError(t, err)
	assert.Equal(t, loc.ShardPath(3), set.Path(3))
}
