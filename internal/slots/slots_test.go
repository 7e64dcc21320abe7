package slots

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trace.review/internal/fsutil"
)

type slotBackend interface {
	Read(ctx context.Context, name string) ([]byte, bool, error)
	Write(ctx context.Context, name string, data []byte) error
}

// exerciseSlot runs the behaviour every backend must share.
func exerciseSlot(t *testing.T, s slotBackend) {
	t.Helper()
	ctx := context.Background()

	data, found, err := s.Read(ctx, "annotations")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, data)

	require.NoError(t, s.Write(ctx, "annotations", []byte(`{"a":1}`)))
	data, found, err = s.Read(ctx, "annotations")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"a":1}`, string(data))

	// overwrite replaces the whole value
	require.NoError(t, s.Write(ctx, "annotations", []byte(`{}`)))
	data, _, err = s.Read(ctx, "annotations")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	// slots are independent
	require.NoError(t, s.Write(ctx, "annotations.corrupt-1", []byte("garbage")))
	data, _, err = s.Read(ctx, "annotations")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	// an empty value is still "found"
	require.NoError(t, s.Write(ctx, "empty", nil))
	_, found, err = s.Read(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exerciseSlot(t, m)
	assert.Equal(t, 4, m.Writes())

	m.Put("seeded", []byte("x"))
	assert.Equal(t, 4, m.Writes(), "Put must not count as a write")

	boom := errors.New("disk full")
	m.WriteErr = boom
	assert.ErrorIs(t, m.Write(context.Background(), "annotations", nil), boom)
}

func TestFile_Memory(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	f, err := NewFile(mfs, "state")
	require.NoError(t, err)
	exerciseSlot(t, f)

	assert.True(t, mfs.Exists(filepath.Join("state", "annotations.json")))
	assert.False(t, mfs.Exists(filepath.Join("state", "annotations.tmp")), "temporary file left behind")
}

func TestFile_OS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "slots")
	f, err := NewFile(fsutil.OSFileSystem{}, dir)
	require.NoError(t, err)
	exerciseSlot(t, f)
}

func TestFile_SanitizesSlotNames(t *testing.T) {
	f, err := NewFile(fsutil.NewMemoryFileSystem(), "state")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("state", "etc_passwd.json"), f.Path("../../etc/passwd"))
}

func TestNewFile_RejectsEmptyDir(t *testing.T) {
	_, err := NewFile(fsutil.NewMemoryFileSystem(), "")
	assert.Error(t, err)
}

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	r := NewRedis(&redis.Options{Addr: mr.Addr()}, "")
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestRedis(t *testing.T) {
	r, mr := setupRedis(t)
	require.NoError(t, r.Ping(context.Background()))
	exerciseSlot(t, r)

	got, err := mr.Get(DefaultRedisPrefix + "annotations")
	require.NoError(t, err)
	assert.Equal(t, `{}`, got)
}

func TestRedis_CustomPrefix(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	defer mr.Close()

	r := NewRedis(&redis.Options{Addr: mr.Addr()}, "site-a:")
	defer r.Close()

	require.NoError(t, r.Write(context.Background(), "annotations", []byte("{}")))
	assert.True(t, mr.Exists("site-a:annotations"))
}

func TestRedis_Unavailable(t *testing.T) {
	r, mr := setupRedis(t)
	mr.Close()

	_, _, err := r.Read(context.Background(), "annotations")
	assert.Error(t, err)
	assert.Error(t, r.Write(context.Background(), "annotations", []byte("{}")))
}
