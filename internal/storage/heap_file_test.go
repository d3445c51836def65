package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocelot/internal/core"
)

func TestCreateWritesFirstBlock(t *testing.T) {
	dir := t.TempDir()
	file := NewHeapFile(dir, "t.db")
	require.NoError(t, file.Create())

	assert.Equal(t, core.BlockID(1), file.Last())
	assert.Equal(t, []core.BlockID{1}, file.BlockIDs())

	page, err := file.Get(1)
	require.NoError(t, err)
	assert.Empty(t, page.IDs())
}

func TestCreateExistingFails(t *testing.T) {
	dir := t.TempDir()
	file := NewHeapFile(dir, "t.db")
	require.NoError(t, file.Create())
	require.NoError(t, file.Close())

	err := NewHeapFile(dir, "t.db").Create()
	assert.Error(t, err)
}

func TestGetNewGrowsMonotonically(t *testing.T) {
	dir := t.TempDir()
	file := NewHeapFile(dir, "t.db")
	require.NoError(t, file.Create())

	page2, err := file.GetNew()
	require.NoError(t, err)
	assert.Equal(t, core.BlockID(2), page2.ID())
	page3, err := file.GetNew()
	require.NoError(t, err)
	assert.Equal(t, core.BlockID(3), page3.ID())

	assert.Equal(t, []core.BlockID{1, 2, 3}, file.BlockIDs())
}

func TestGetOutOfRange(t *testing.T) {
	dir := t.TempDir()
	file := NewHeapFile(dir, "t.db")
	require.NoError(t, file.Create())

	_, err := file.Get(0)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = file.Get(2)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestPutRoundTripsThroughReopen(t *testing.T) {
	dir := t.TempDir()
	file := NewHeapFile(dir, "t.db")
	require.NoError(t, file.Create())

	page, err := file.Get(1)
	require.NoError(t, err)
	id, err := page.Add([]byte("durable"))
	require.NoError(t, err)
	require.NoError(t, file.Put(page))
	require.NoError(t, file.Close())

	require.NoError(t, file.Open())
	assert.Equal(t, core.BlockID(1), file.Last())
	page, err = file.Get(1)
	require.NoError(t, err)
	got, err := page.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), got)
}

func TestReopenRecoversBlockCount(t *testing.T) {
	dir := t.TempDir()
	file := NewHeapFile(dir, "t.db")
	require.NoError(t, file.Create())
	_, err := file.GetNew()
	require.NoError(t, err)
	_, err = file.GetNew()
	require.NoError(t, err)
	require.NoError(t, file.Close())

	reopened := NewHeapFile(dir, "t.db")
	require.NoError(t, reopened.Open())
	assert.Equal(t, core.BlockID(3), reopened.Last())
}

func TestDropRemovesFile(t *testing.T) {
	dir := t.TempDir()
	file := NewHeapFile(dir, "t.db")
	require.NoError(t, file.Create())
	require.NoError(t, file.Drop())

	_, err := os.Stat(filepath.Join(dir, "t.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreAppendAndCount(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "blocks"))
	require.NoError(t, store.Create())

	block := make([]byte, BlockSize)
	block[0] = 0xAB
	id, err := store.Append(block)
	require.NoError(t, err)
	assert.Equal(t, core.BlockID(1), id)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), count)

	got, err := store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), got[0])

	_, err = store.Get(2)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
