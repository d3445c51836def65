package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocelot/internal/core"
)

func newEmptyPage() *SlottedPage {
	return NewSlottedPage(1, make([]byte, BlockSize), true)
}

func TestAddAndGet(t *testing.T) {
	page := newEmptyPage()

	id1, err := page.Add([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, core.RecordID(1), id1)

	id2, err := page.Add([]byte("world!"))
	require.NoError(t, err)
	assert.Equal(t, core.RecordID(2), id2)

	got, err := page.Get(id1)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	got, err = page.Get(id2)
	require.NoError(t, err)
	assert.Equal(t, []byte("world!"), got)

	assert.Equal(t, []core.RecordID{1, 2}, page.IDs())
}

func TestGetMissingRecord(t *testing.T) {
	page := newEmptyPage()
	_, err := page.Add([]byte("x"))
	require.NoError(t, err)

	_, err = page.Get(0)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = page.Get(2)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestHeaderIsLittleEndian(t *testing.T) {
	page := newEmptyPage()
	_, err := page.Add([]byte("abc"))
	require.NoError(t, err)

	data := page.Data()
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[0:]))
	endFree := binary.LittleEndian.Uint16(data[2:])
	assert.Equal(t, uint16(BlockSize-1-3), endFree)
	assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(data[4:]))
	assert.Equal(t, endFree+1, binary.LittleEndian.Uint16(data[6:]))
}

func TestDelTombstonesAndShifts(t *testing.T) {
	page := newEmptyPage()
	for _, s := range []string{"aaaa", "bbbb", "cccc"} {
		_, err := page.Add([]byte(s))
		require.NoError(t, err)
	}

	require.NoError(t, page.Del(2))
	assert.Equal(t, []core.RecordID{1, 3}, page.IDs())

	_, err := page.Get(2)
	assert.ErrorIs(t, err, core.ErrNotFound)

	got, err := page.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("aaaa"), got)
	got, err = page.Get(3)
	require.NoError(t, err)
	assert.Equal(t, []byte("cccc"), got)

	// Record ids are never reused.
	id, err := page.Add([]byte("dddd"))
	require.NoError(t, err)
	assert.Equal(t, core.RecordID(4), id)
}

func TestDelLastRecordReclaimsSpace(t *testing.T) {
	page := newEmptyPage()
	_, err := page.Add(bytes.Repeat([]byte("a"), 100))
	require.NoError(t, err)
	id2, err := page.Add(bytes.Repeat([]byte("b"), 100))
	require.NoError(t, err)

	require.NoError(t, page.Del(id2))
	endFree := binary.LittleEndian.Uint16(page.Data()[2:])
	assert.Equal(t, uint16(BlockSize-1-100), endFree)
}

func TestPutGrowAndShrink(t *testing.T) {
	page := newEmptyPage()
	for _, s := range []string{"one", "two", "three"} {
		_, err := page.Add([]byte(s))
		require.NoError(t, err)
	}

	require.NoError(t, page.Put(1, []byte("a much longer record")))
	got, err := page.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("a much longer record"), got)
	got, err = page.Get(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
	got, err = page.Get(3)
	require.NoError(t, err)
	assert.Equal(t, []byte("three"), got)

	require.NoError(t, page.Put(1, []byte("x")))
	got, err = page.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
	got, err = page.Get(3)
	require.NoError(t, err)
	assert.Equal(t, []byte("three"), got)
}

func TestPutSameSizeInPlace(t *testing.T) {
	page := newEmptyPage()
	_, err := page.Add([]byte("aaaa"))
	require.NoError(t, err)
	_, err = page.Add([]byte("bbbb"))
	require.NoError(t, err)

	require.NoError(t, page.Put(1, []byte("zzzz")))
	got, err := page.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("zzzz"), got)
	got, err = page.Get(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("bbbb"), got)
}

func TestAddNoRoom(t *testing.T) {
	page := newEmptyPage()
	_, err := page.Add(bytes.Repeat([]byte("x"), 2000))
	require.NoError(t, err)
	_, err = page.Add(bytes.Repeat([]byte("y"), 2000))
	require.NoError(t, err)

	_, err = page.Add(bytes.Repeat([]byte("z"), 100))
	assert.ErrorIs(t, err, core.ErrNoRoom)

	// The failed add must not have consumed a record id.
	id, err := page.Add([]byte("tiny"))
	require.NoError(t, err)
	assert.Equal(t, core.RecordID(3), id)
}

func TestPutNoRoomKeepsOldRecord(t *testing.T) {
	page := newEmptyPage()
	_, err := page.Add(bytes.Repeat([]byte("x"), 2000))
	require.NoError(t, err)
	_, err = page.Add(bytes.Repeat([]byte("y"), 2000))
	require.NoError(t, err)

	err = page.Put(1, bytes.Repeat([]byte("z"), 3000))
	require.True(t, errors.Is(err, core.ErrNoRoom))

	got, err := page.Get(1)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte("x"), 2000), got)
}

func TestReloadFromBytes(t *testing.T) {
	page := newEmptyPage()
	_, err := page.Add([]byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, page.Del(1))
	_, err = page.Add([]byte("second"))
	require.NoError(t, err)

	reloaded := NewSlottedPage(1, page.Data(), false)
	assert.Equal(t, []core.RecordID{2}, reloaded.IDs())
	got, err := reloaded.Get(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestLiveBytesStayContiguous(t *testing.T) {
	page := newEmptyPage()
	for _, s := range []string{"aaaa", "bbbbbb", "cc", "ddddd"} {
		_, err := page.Add([]byte(s))
		require.NoError(t, err)
	}
	require.NoError(t, page.Del(2))
	require.NoError(t, page.Put(3, []byte("cccccccc")))
	require.NoError(t, page.Del(4))

	// Live records must occupy one contiguous range ending at the last
	// byte of the page.
	endFree := binary.LittleEndian.Uint16(page.Data()[2:])
	total := 0
	low := uint16(BlockSize)
	for _, id := range page.IDs() {
		record, err := page.Get(id)
		require.NoError(t, err)
		size := binary.LittleEndian.Uint16(page.Data()[4*uint16(id):])
		loc := binary.LittleEndian.Uint16(page.Data()[4*uint16(id)+2:])
		assert.Equal(t, int(size), len(record))
		if loc < low {
			low = loc
		}
		total += len(record)
	}
	assert.Equal(t, endFree+1, low)
	assert.Equal(t, BlockSize-1-total, int(endFree))
}
