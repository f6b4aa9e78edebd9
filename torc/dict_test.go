// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package torc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferInsertAndMatch(t *testing.T) {
	tbl := &BufferTable{}
	tbl.Insert([]byte("hello"), []byte("world"), 5)

	// "hello" occurs at offset 3 of the input; candidate is "world".
	input := []byte("xyzhello...")
	got := MatchingContainerEntries(tbl, input)
	require.Len(t, got, 1)
	assert.True(t, got[0].HasHint)
	assert.Equal(t, 3, got[0].Hint)
	assert.Equal(t, []byte("world"), got[0].Value)

	// Symmetric: an input containing "world" proposes "hello".
	got = MatchingContainerEntries(tbl, []byte("..world.."))
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Hint)
	assert.Equal(t, []byte("hello"), got[0].Value)

	// No occurrence of either buffer.
	assert.Empty(t, MatchingContainerEntries(tbl, []byte("nothing here")))
}

func TestBufferInsertClampsLength(t *testing.T) {
	long1 := make([]byte, 300)
	long2 := make([]byte, 300)
	for i := range long1 {
		long1[i] = byte(i)
		long2[i] = byte(i + 1)
	}
	tbl := &BufferTable{}
	tbl.Insert(long1, long2, 300)

	e := tbl.Entry(89) // first LCG slot
	assert.Equal(t, BufferEntrySize-1, e.Size)
	assert.Equal(t, long1[:127], e.Buf1[:127])
	assert.Equal(t, long2[:127], e.Buf2[:127])
}

func TestMatchContainerEntryFilters(t *testing.T) {
	b1 := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	b2 := []byte{9, 10, 11, 12, 13, 14, 15, 16}

	// Zero-size slots never match.
	_, ok := MatchContainerEntry([]byte{1, 2, 3}, b1, b2, 0)
	assert.False(t, ok)

	// Size must be a multiple of the element size.
	_, ok = MatchContainerEntry([]uint32{0x04030201, 0x08070605}, b1, b2, 6)
	assert.False(t, ok)

	// The input must be at least as long as the stored buffer.
	_, ok = MatchContainerEntry([]byte{1, 2, 3}, b1, b2, 8)
	assert.False(t, ok)
}

func TestMatchContainerEntryWideElements(t *testing.T) {
	// Little-endian element view: bytes {1,2,3,4} are the u32 0x04030201.
	b1 := []byte{1, 2, 3, 4}
	b2 := []byte{5, 6, 7, 8}
	input := []uint32{0xAAAAAAAA, 0x04030201, 0xBBBBBBBB}

	de, ok := MatchContainerEntry(input, b1, b2, 4)
	require.True(t, ok)
	assert.Equal(t, 1, de.Hint)
	assert.Equal(t, []uint32{0x08070605}, de.Value)

	// The same bytes straddling element boundaries must not match.
	_, ok = MatchContainerEntry([]uint32{0x03020100, 0x07060504}, b1, b2, 4)
	assert.False(t, ok)
}

func TestMatchingContainerEntriesDedup(t *testing.T) {
	tbl := &BufferTable{}
	for i := 0; i < 10; i++ {
		tbl.Insert([]byte("abcd"), []byte("wxyz"), 4)
	}
	got := MatchingContainerEntries(tbl, []byte("..abcd.."))
	assert.Len(t, got, 1)
}

func TestIntegerDictionaryMatchFromTORC(t *testing.T) {
	ts := NewTables()
	ts.U32.Insert(0xDEAD, 0xBEEF)

	var d IntegerDictionary[uint32]
	assert.True(t, d.IsEmpty())

	d.MatchFromTORC(0xDEAD, ts, 0, ^uint32(0))
	require.Equal(t, 1, d.Size())
	rnd := rand.New(rand.NewSource(1))
	assert.EqualValues(t, 0xBEEF, d.RandomSavedEntry(rnd))

	// Re-matching replaces rather than appends.
	d.MatchFromTORC(0xDEAD, ts, 0, ^uint32(0))
	assert.Equal(t, 1, d.Size())

	// Range filtering.
	d.MatchFromTORC(0xBEEF, ts, 0, 0xFF)
	assert.True(t, d.IsEmpty())

	d.AddEntry(7)
	assert.Equal(t, 1, d.Size())
	assert.EqualValues(t, 7, d.RandomSavedEntry(rnd))
}

func TestRandomTORCEntry(t *testing.T) {
	ts := NewTables()
	ts.U16.Insert(0x1234, 0x5678)
	rnd := rand.New(rand.NewSource(3))

	// With only one populated slot a random draw usually misses it; over
	// many draws the other-side match must eventually surface.
	seen := map[uint16]bool{}
	for i := 0; i < 20000; i++ {
		if v, ok := RandomTORCEntry(uint16(0x1234), rnd, ts, 0, ^uint16(0)); ok {
			seen[v] = true
		}
	}
	assert.True(t, seen[0x5678])
}

func TestContainerDictionaryMatchFromTORC(t *testing.T) {
	ts := NewTables()
	ts.Mem.Insert([]byte("hello"), []byte("world"), 5)

	var d ContainerDictionary[uint8]
	d.MatchFromTORC([]byte("xyzhello"), ts)
	require.Equal(t, 1, d.Size())
	rnd := rand.New(rand.NewSource(1))
	de := d.RandomSavedEntry(rnd)
	assert.Equal(t, 3, de.Hint)
	assert.Equal(t, []byte("world"), de.Value)
}

func TestContainerDictionaryIntegerEnrichment(t *testing.T) {
	ts := NewTables()
	ts.U32.Insert(0x44434241, 0x48474645) // "ABCD" vs "EFGH" little-endian

	var d ContainerDictionary[uint8]
	d.MatchFromTORC([]byte("..ABCD.."), ts)
	require.Equal(t, 1, d.Size())
	de := d.RandomSavedEntry(rand.New(rand.NewSource(1)))
	assert.Equal(t, 2, de.Hint)
	assert.Equal(t, []byte("EFGH"), de.Value)
}

func TestContainerDictionaryU64Demotion(t *testing.T) {
	// A u64 comparison whose low 32 bits occur in the input: the demoted
	// match must find it even though the full 8 bytes are absent.
	ts := NewTables()
	ts.U64.Insert(0x1_0000_ABCD, 0x1_0000_1234)

	input := append([]byte{0xCD, 0xAB, 0x00, 0x00}, []byte("pad.")...)
	var d ContainerDictionary[uint8]
	d.MatchFromTORC(input, ts)
	require.NotEmpty(t, d.entries)
	de := d.entries[0]
	assert.Equal(t, 0, de.Hint)
	assert.Equal(t, []byte{0x34, 0x12, 0x00, 0x00}, de.Value)
}

func TestContainerDictionaryMinInputLengths(t *testing.T) {
	ts := NewTables()
	ts.U32.Insert(0x41414141, 0x42424242)

	// Inputs shorter than 4 elements skip the integer enrichment.
	var d ContainerDictionary[uint8]
	d.MatchFromTORC([]byte("AAA"), ts)
	assert.True(t, d.IsEmpty())
}

func TestRandomContainerTORCEntry(t *testing.T) {
	ts := NewTables()
	ts.Mem.Insert([]byte("needle"), []byte("thread"), 6)
	ts.U32.Insert(0x44434241, 0x48474645)
	ts.U64.Insert(0x4847464544434241, 0x5857565554535251)

	rnd := rand.New(rand.NewSource(7))
	input := []byte("...needleABCDEFGH...")

	hinted := map[string]bool{}
	for i := 0; i < 100000; i++ {
		de, ok := RandomContainerTORCEntry(input, rnd, ts)
		if !ok {
			continue
		}
		if de.HasHint {
			hinted[string(de.Value)] = true
		}
	}
	// All three routes must surface over enough draws: the buffer table,
	// the u32 table and the u64 table.
	assert.True(t, hinted["thread"], "buffer-table route never matched")
	assert.True(t, hinted["EFGH"], "u32 route never matched")
	assert.True(t, hinted["QRSTUVWX"], "u64 route never matched")
}

func TestRandomContainerTORCEntryFallbackSide(t *testing.T) {
	// A populated buffer slot that does not occur in the input may still be
	// proposed as a hint-less random side.
	ts := NewTables()
	ts.Mem.Insert([]byte("left"), []byte("rght"), 4)

	rnd := rand.New(rand.NewSource(11))
	sides := map[string]bool{}
	for i := 0; i < 20000; i++ {
		de, ok := RandomContainerTORCEntry([]byte("unrelated input"), rnd, ts)
		if !ok {
			continue
		}
		assert.False(t, de.HasHint)
		sides[string(de.Value)] = true
	}
	assert.True(t, sides["left"])
	assert.True(t, sides["rght"])
}

func TestEncodeDecodeElems(t *testing.T) {
	u32s := []uint32{0x04030201, 0xDDCCBBAA}
	b := encodeElems(u32s)
	assert.Equal(t, []byte{1, 2, 3, 4, 0xAA, 0xBB, 0xCC, 0xDD}, b)
	assert.Equal(t, u32s, decodeElems[uint32](b))

	u64s := []uint64{0x0807060504030201}
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, encodeElems(u64s))
	assert.Equal(t, u64s, decodeElems[uint64](encodeElems(u64s)))
}
