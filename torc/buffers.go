// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package torc

import "math/rand"

const (
	// BufferTableSize is the number of slots in a BufferTable.
	BufferTableSize = 128
	// BufferEntrySize is the capacity of each stored buffer; inserts are
	// clamped to BufferEntrySize-1 bytes.
	BufferEntrySize = 128
)

// BufferEntry is one remembered buffer comparison. Only the first Size bytes
// of Buf1/Buf2 are meaningful; a reused slot keeps stale bytes past Size.
type BufferEntry struct {
	Size int
	Buf1 [BufferEntrySize]byte
	Buf2 [BufferEntrySize]byte
}

// BufferTable remembers the operands of recent buffer comparisons (memcmp,
// strcmp, bytes.Equal and friends). Same lossiness contract as Table.
type BufferTable struct {
	insertIndex int
	entries     [BufferTableSize]BufferEntry
}

// Len returns the number of slots in the table.
func (t *BufferTable) Len() int { return BufferTableSize }

// Entry returns the slot at idx.
func (t *BufferTable) Entry(idx int) *BufferEntry { return &t.entries[idx] }

// Insert remembers the first n bytes of each operand, clamped to
// BufferEntrySize-1.
func (t *BufferTable) Insert(buf1, buf2 []byte, n int) {
	t.insertIndex = (t.insertIndex*lcgMul + lcgAdd) & (BufferTableSize - 1)
	if n >= BufferEntrySize {
		n = BufferEntrySize - 1
	}
	e := &t.entries[t.insertIndex]
	e.Size = n
	copy(e.Buf1[:n], buf1)
	copy(e.Buf2[:n], buf2)
}

// RandomEntry returns a uniformly random slot.
func (t *BufferTable) RandomEntry(rnd *rand.Rand) *BufferEntry {
	return &t.entries[rnd.Intn(BufferTableSize)]
}

// DictEntry is a candidate mutation: a value worth splicing into an input,
// optionally with the position where its counterpart was found.
type DictEntry[E Int] struct {
	Hint    int // element offset of the match in the queried input
	HasHint bool
	Value   []E
}

// MatchingContainerEntries scans the table for slots whose stored buffers
// occur in val as an E-element subsequence and returns the counterpart
// buffers as candidates. Entries are unique within the result by hint and
// value together; one hint may appear with different values.
func MatchingContainerEntries[E Int](t *BufferTable, val []E) []DictEntry[E] {
	var out []DictEntry[E]
	seen := make(map[string]struct{})
	for i := range t.entries {
		e := &t.entries[i]
		de, ok := MatchContainerEntry(val, e.Buf1[:], e.Buf2[:], e.Size)
		if !ok {
			continue
		}
		key := dictEntryKey(de)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, de)
	}
	return out
}

// MatchContainerEntry matches one buffer pair against val. The slot is
// rejected if its size is zero, not a multiple of sizeof(E), or longer than
// val. If buf1 occurs in val the candidate is buf2 with the offset of buf1
// as its hint, and symmetrically for buf2.
func MatchContainerEntry[E Int](val []E, buf1, buf2 []byte, bufSize int) (DictEntry[E], bool) {
	es := sizeOf[E]()
	if bufSize == 0 || bufSize%es != 0 || len(val)*es < bufSize {
		return DictEntry[E]{}, false
	}
	b1 := decodeElems[E](buf1[:bufSize])
	b2 := decodeElems[E](buf2[:bufSize])
	if off := indexOf(val, b1); off >= 0 {
		return DictEntry[E]{Hint: off, HasHint: true, Value: b2}, true
	}
	if off := indexOf(val, b2); off >= 0 {
		return DictEntry[E]{Hint: off, HasHint: true, Value: b1}, true
	}
	return DictEntry[E]{}, false
}

// RandomBufferSide returns one of the two buffers, chosen by a fair coin, as
// a hint-less candidate. Used as the fallback when a random slot does not
// match the input.
func RandomBufferSide[E Int](rnd *rand.Rand, buf1, buf2 []byte, bufSize int) (DictEntry[E], bool) {
	es := sizeOf[E]()
	if bufSize == 0 || bufSize%es != 0 {
		return DictEntry[E]{}, false
	}
	b := buf1
	if !randomBool(rnd) {
		b = buf2
	}
	return DictEntry[E]{Value: decodeElems[E](b[:bufSize])}, true
}

// decodeElems reinterprets little-endian bytes as a []E. len(b) must be a
// multiple of sizeof(E).
func decodeElems[E Int](b []byte) []E {
	es := sizeOf[E]()
	out := make([]E, len(b)/es)
	for i := range out {
		var v uint64
		for j := es - 1; j >= 0; j-- {
			v = v<<8 | uint64(b[i*es+j])
		}
		out[i] = E(v)
	}
	return out
}

// encodeElems is the inverse of decodeElems.
func encodeElems[E Int](vals []E) []byte {
	es := sizeOf[E]()
	out := make([]byte, len(vals)*es)
	for i, v := range vals {
		u := uint64(v)
		for j := 0; j < es; j++ {
			out[i*es+j] = byte(u >> (8 * j))
		}
	}
	return out
}

// indexOf returns the element offset of the first occurrence of needle in
// hay, or -1. The tables are a page each, linear search is fine.
func indexOf[E Int](hay, needle []E) int {
	n := len(needle)
outer:
	for i := 0; i+n <= len(hay); i++ {
		for j := 0; j < n; j++ {
			if hay[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

func dictEntryKey[E Int](de DictEntry[E]) string {
	key := make([]byte, 0, 9+len(de.Value)*sizeOf[E]())
	if de.HasHint {
		key = append(key, 1)
		for j := 0; j < 8; j++ {
			key = append(key, byte(uint64(de.Hint)>>(8*j)))
		}
	} else {
		key = append(key, 0)
	}
	return string(append(key, encodeElems(de.Value)...))
}
