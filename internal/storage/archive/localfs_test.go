package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Storage = (*LocalFS)(nil)

// exerciseStorage checks the behaviour every Storage backend shares.
func exerciseStorage(t *testing.T, st Storage) {
	t.Helper()
	ctx := context.Background()

	ok, err := st.Exists(ctx, "results/ma/run-b/summary.json")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = st.Read(ctx, "results/ma/run-b/summary.json")
	assert.ErrorIs(t, err, core.ErrNotFound)

	for path, body := range map[string]string{
		"results/ma/run-b/summary.json":  "b",
		"results/ma/run-a/summary.json":  "a",
		"results/rsi/run-c/summary.json": "c",
	} {
		require.NoError(t, st.Write(ctx, path, []byte(body)))
	}

	got, err := st.Read(ctx, "results/ma/run-a/summary.json")
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))

	paths, err := st.List(ctx, "results/ma")
	require.NoError(t, err)
	assert.Equal(t, []string{"results/ma/run-a/summary.json", "results/ma/run-b/summary.json"}, paths)

	none, err := st.List(ctx, "results/none")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, st.Delete(ctx, "results/ma/run-a/summary.json"))
	ok, err = st.Exists(ctx, "results/ma/run-a/summary.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalFS(t *testing.T) {
	st, err := NewLocalFS(filepath.Join(t.TempDir(), "archive"))
	require.NoError(t, err)
	exerciseStorage(t, st)
}

func TestLocalFS_Edges(t *testing.T) {
	root := t.TempDir()
	st, err := NewLocalFS(root)
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, st.Delete(ctx, "never-written.json"), core.ErrNotFound)

	assert.ErrorIs(t, st.Write(ctx, "../outside.txt", []byte("x")), core.ErrValidation)
	_, err = os.Stat(filepath.Join(filepath.Dir(root), "outside.txt"))
	assert.True(t, os.IsNotExist(err), "nothing written outside the root")
}
