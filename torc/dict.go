// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package torc

import "math/rand"

// IntegerDictionary accumulates integer mutation candidates of one width.
type IntegerDictionary[T Int] struct {
	entries []T
}

// MatchFromTORC replaces the dictionary contents with the values the target
// recently compared against val, filtered to [min, max].
func (d *IntegerDictionary[T]) MatchFromTORC(val T, torc *Tables, min, max T) {
	d.entries = MatchingEntries(TableFor[T](torc), val, min, max)
}

// AddEntry appends a user-provided candidate.
func (d *IntegerDictionary[T]) AddEntry(v T) { d.entries = append(d.entries, v) }

func (d *IntegerDictionary[T]) IsEmpty() bool { return len(d.entries) == 0 }
func (d *IntegerDictionary[T]) Size() int     { return len(d.entries) }

// RandomSavedEntry returns a uniformly random saved candidate. The
// dictionary must not be empty.
func (d *IntegerDictionary[T]) RandomSavedEntry(rnd *rand.Rand) T {
	return d.entries[rnd.Intn(len(d.entries))]
}

// RandomTORCEntry draws a candidate straight from the tables without
// populating a dictionary: it picks one random slot of the width-matching
// table, tries the other-side match against val first, and falls back to a
// random side of the slot. Either way the result is bounded by [min, max].
func RandomTORCEntry[T Int](val T, rnd *rand.Rand, torc *Tables, min, max T) (T, bool) {
	t := TableFor[T](torc)
	idx := rnd.Intn(t.Len())
	if v, ok := matchingEntryInRange(t, val, idx, min, max); ok {
		return v, true
	}
	return RandomSide(t, rnd, idx, min, max)
}

// ContainerDictionary accumulates container mutation candidates with
// optional position hints.
type ContainerDictionary[E Int] struct {
	entries []DictEntry[E]
}

// MatchFromTORC replaces the dictionary contents with candidates mined for
// val: buffer-table matches first, then integer-pair entries of the u32 and
// u64 tables treated as little-endian buffers. u64 entries are additionally
// demoted to their low 32 bits before matching, because implicit widening in
// the target's source is common and invisible to the instrumentation;
// promotions are explicit in source, so none are attempted.
func (d *ContainerDictionary[E]) MatchFromTORC(val []E, torc *Tables) {
	d.entries = MatchingContainerEntries(torc.Mem, val)
	d.addIntegerMatches(val, torc)
}

// AddEntry appends a user-provided candidate.
func (d *ContainerDictionary[E]) AddEntry(de DictEntry[E]) {
	d.entries = append(d.entries, de)
}

func (d *ContainerDictionary[E]) IsEmpty() bool { return len(d.entries) == 0 }
func (d *ContainerDictionary[E]) Size() int     { return len(d.entries) }

// RandomSavedEntry returns a uniformly random saved candidate. The
// dictionary must not be empty.
func (d *ContainerDictionary[E]) RandomSavedEntry(rnd *rand.Rand) DictEntry[E] {
	return d.entries[rnd.Intn(len(d.entries))]
}

func (d *ContainerDictionary[E]) addIntegerMatches(val []E, torc *Tables) {
	es := sizeOf[E]()
	if es <= 4 && len(val) >= 4 {
		for idx := 0; idx < torc.U32.Len(); idx++ {
			e := torc.U32.Entry(idx)
			if de, ok := matchFromInteger(val, e.LHS, e.RHS); ok {
				d.entries = append(d.entries, de)
			}
		}
		for idx := 0; idx < torc.U64.Len(); idx++ {
			e := torc.U64.Entry(idx)
			if de, ok := matchFromInteger(val, uint32(e.LHS), uint32(e.RHS)); ok {
				d.entries = append(d.entries, de)
			}
		}
	}
	if es <= 8 && len(val) >= 8 {
		for idx := 0; idx < torc.U64.Len(); idx++ {
			e := torc.U64.Entry(idx)
			if de, ok := matchFromInteger(val, e.LHS, e.RHS); ok {
				d.entries = append(d.entries, de)
			}
		}
	}
}

// RandomContainerTORCEntry draws one candidate straight from the tables:
// with equal probability either a random buffer-table slot (matched against
// val, falling back to a random side) or a random integer slot treated as a
// little-endian buffer. For element sizes up to 4 the integer route picks
// u32 direct, u64 demoted to u32, or u64 direct with equal probability;
// wider elements always use u64 direct.
func RandomContainerTORCEntry[E Int](val []E, rnd *rand.Rand, torc *Tables) (DictEntry[E], bool) {
	if randomBool(rnd) {
		e := torc.Mem.RandomEntry(rnd)
		if de, ok := MatchContainerEntry(val, e.Buf1[:], e.Buf2[:], e.Size); ok {
			return de, true
		}
		return RandomBufferSide[E](rnd, e.Buf1[:], e.Buf2[:], e.Size)
	}
	if sizeOf[E]() <= 4 {
		switch rnd.Intn(3) {
		case 0:
			e := torc.U32.RandomEntry(rnd)
			return matchFromInteger(val, e.LHS, e.RHS)
		case 1:
			e := torc.U64.RandomEntry(rnd)
			return matchFromInteger(val, uint32(e.LHS), uint32(e.RHS))
		default:
			e := torc.U64.RandomEntry(rnd)
			return matchFromInteger(val, e.LHS, e.RHS)
		}
	}
	e := torc.U64.RandomEntry(rnd)
	return matchFromInteger(val, e.LHS, e.RHS)
}

// matchFromInteger treats an integer comparison pair as little-endian byte
// buffers and matches them against val.
func matchFromInteger[E, T Int](val []E, lhs, rhs T) (DictEntry[E], bool) {
	b1 := encodeElems([]T{lhs})
	b2 := encodeElems([]T{rhs})
	return MatchContainerEntry(val, b1, b2, sizeOf[T]())
}
