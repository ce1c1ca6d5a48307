package admin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/dropzone/internal/core"
	"github.com/JonMunkholm/dropzone/internal/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, area string, names ...string) *Requeuer {
	t.Helper()
	router := core.NewRouter(t.TempDir())

	dir := filepath.Join(router.Root, "drop_zone", area)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.MkdirAll(router.IncomingDir(), 0o755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte(n), 0o644))
	}
	return &Requeuer{Router: router}
}

func TestRequeue_MovesAllFiles(t *testing.T) {
	r := setup(t, "unclassified", "a.csv", "b.xlsx")
	require.NoError(t, os.Mkdir(filepath.Join(r.Router.UnclassifiedDir(), "nested"), 0o755))

	moved, err := r.Requeue(context.Background(), AreaUnclassified)
	require.NoError(t, err)
	require.Len(t, moved, 2)

	assert.Equal(t, filepath.Join(r.Router.IncomingDir(), "a.csv"), moved[0].To)
	assert.FileExists(t, filepath.Join(r.Router.IncomingDir(), "a.csv"))
	assert.FileExists(t, filepath.Join(r.Router.IncomingDir(), "b.xlsx"))
	assert.NoFileExists(t, moved[0].From)
	assert.DirExists(t, filepath.Join(r.Router.UnclassifiedDir(), "nested"))
}

func TestRequeue_Conflict(t *testing.T) {
	r := setup(t, "rejected", "a.csv", "b.csv")
	require.NoError(t, os.WriteFile(filepath.Join(r.Router.IncomingDir(), "a.csv"), []byte("newer"), 0o644))

	moved, err := r.Requeue(context.Background(), AreaRejected)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequeueConflict)
	assert.Equal(t, "RUN004", core.MapError(err).Code)

	require.Len(t, moved, 1)
	assert.Equal(t, "b.csv", filepath.Base(moved[0].To))

	// the incoming copy is untouched and the rejected one stays put
	data, err := os.ReadFile(filepath.Join(r.Router.IncomingDir(), "a.csv"))
	require.NoError(t, err)
	assert.Equal(t, "newer", string(data))
	assert.FileExists(t, filepath.Join(r.Router.RejectedDir(), "a.csv"))
}

func TestRequeue_MissingAreaIsEmpty(t *testing.T) {
	r := &Requeuer{Router: core.NewRouter(t.TempDir())}

	moved, err := r.Requeue(context.Background(), AreaRejected)
	require.NoError(t, err)
	assert.Empty(t, moved)
}

func TestRequeue_DryRun(t *testing.T) {
	r := setup(t, "unclassified", "a.csv")
	r.DryRun = true

	moved, err := r.Requeue(context.Background(), AreaUnclassified)
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.FileExists(t, moved[0].From)
	assert.NoFileExists(t, moved[0].To)
}

func TestRequeueFile_InvalidNames(t *testing.T) {
	r := setup(t, "unclassified", "a.csv")

	for _, name := range []string{"", ".", "..", "../a.csv", "sub/a.csv"} {
		_, err := r.RequeueFile(context.Background(), AreaUnclassified, name)
		assert.Error(t, err, "name %q", name)
	}

	_, err := r.RequeueFile(context.Background(), AreaUnclassified, "missing.csv")
	assert.ErrorIs(t, err, core.ErrFileNotFound)
}

func TestParseArea(t *testing.T) {
	a, err := ParseArea("rejected")
	require.NoError(t, err)
	assert.Equal(t, AreaRejected, a)

	_, err = ParseArea("incoming")
	assert.Error(t, err)

	_, err = (&Requeuer{}).Requeue(context.Background(), Area("incoming"))
	assert.Error(t, err)
}

func TestRequeueCmd(t *testing.T) {
	r := setup(t, "rejected", "a.csv")

	msg := r.RequeueRejected()()
	assert.Equal(t, handler.DoneMsg("Requeued 1 rejected file(s)"), msg)

	require.NoError(t, os.WriteFile(filepath.Join(r.Router.RejectedDir(), "a.csv"), []byte("again"), 0o644))
	msg = r.RequeueRejected()()
	errMsg, ok := msg.(handler.ErrMsg)
	require.True(t, ok)
	assert.ErrorIs(t, errMsg.Err, ErrRequeueConflict)
}
