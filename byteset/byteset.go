// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package byteset implements fixed-size concurrent byte sets: counter arrays
// that instrumented code writes to from any goroutine while a single
// observer goroutine drains them with ForEachNonZero.
//
// The sets are deliberately lossy under contention. A sweep reads and clears
// one word at a time; writes that land on a word between the read and the
// clear are lost, and concurrent Sets on the same index race
// last-writer-wins. The fuzzer tolerates both: the only effect is occasional
// undercounting.
package byteset

import "sync/atomic"

// SizeMultiple is the granularity of a ByteSet: its size and the bounds of
// ranged sweeps must all be multiples of this.
const SizeMultiple = 64

const bytesPerWord = 8

// ByteSet is a set of n byte-sized counters.
//
// The backing storage is an array of 64-bit words holding eight counters
// each, with counter i of a word in bits [8i, 8i+8). That is the layout a
// little-endian byte array would have, which fixes the sweep order required
// by the shared byte-set contract without depending on host endianness.
//
// Set and SaturatedIncrement may be called from any goroutine at any time.
// ForEachNonZero must run on a single goroutine but does not require
// writers to stop (see the package comment on lossiness). Clear must only
// be called once writers are quiesced.
type ByteSet struct {
	n     int
	words []uint64
}

// New returns a zeroed ByteSet of n bytes. n must be a positive multiple of
// SizeMultiple.
func New(n int) *ByteSet {
	if n <= 0 || n%SizeMultiple != 0 {
		panic("byteset: size must be a positive multiple of 64")
	}
	return &ByteSet{n: n, words: make([]uint64, n/bytesPerWord)}
}

// Size returns the number of byte counters in the set.
func (s *ByteSet) Size() int { return s.n }

// Clear zeroes the whole set. Callers must quiesce writers first.
func (s *ByteSet) Clear() {
	for i := range s.words {
		atomic.StoreUint64(&s.words[i], 0)
	}
}

// Set stores value at idx. Concurrent Sets on the same index race
// last-writer-wins.
func (s *ByteSet) Set(idx int, value byte) {
	if uint(idx) >= uint(s.n) {
		panic("byteset: Set index out of range")
	}
	w := &s.words[idx/bytesPerWord]
	shift := uint(idx%bytesPerWord) * 8
	for {
		old := atomic.LoadUint64(w)
		updated := old&^(uint64(0xff)<<shift) | uint64(value)<<shift
		if old == updated || atomic.CompareAndSwapUint64(w, old, updated) {
			return
		}
	}
}

// SaturatedIncrement increments the counter at idx, clamping at 255.
func (s *ByteSet) SaturatedIncrement(idx int) {
	if uint(idx) >= uint(s.n) {
		panic("byteset: SaturatedIncrement index out of range")
	}
	w := &s.words[idx/bytesPerWord]
	shift := uint(idx%bytesPerWord) * 8
	for {
		old := atomic.LoadUint64(w)
		counter := byte(old >> shift)
		if counter == 255 {
			return
		}
		updated := old&^(uint64(0xff)<<shift) | uint64(counter+1)<<shift
		if atomic.CompareAndSwapUint64(w, old, updated) {
			return
		}
	}
}

// ForEachNonZero calls action(index, value) for every non-zero byte of the
// set in ascending index order and zeroes those bytes. Must run on exactly
// one goroutine.
func (s *ByteSet) ForEachNonZero(action func(idx int, value byte)) {
	s.ForEachNonZeroInRange(action, 0, s.n)
}

// ForEachNonZeroInRange is ForEachNonZero restricted to indexes in
// [from, to). Both bounds must be multiples of SizeMultiple and to must not
// exceed the set size.
func (s *ByteSet) ForEachNonZeroInRange(action func(idx int, value byte), from, to int) {
	if from%SizeMultiple != 0 {
		panic("byteset: sweep from not a multiple of 64")
	}
	if to%SizeMultiple != 0 {
		panic("byteset: sweep to not a multiple of 64")
	}
	if to > s.n {
		panic("byteset: sweep past end of set")
	}
	for wi := from / bytesPerWord; wi < to/bytesPerWord; wi++ {
		word := atomic.LoadUint64(&s.words[wi])
		if word == 0 {
			continue
		}
		// Writes landing between the load and this store are lost.
		atomic.StoreUint64(&s.words[wi], 0)
		base := wi * bytesPerWord
		for pos := 0; pos < bytesPerWord; pos++ {
			if value := byte(word >> (uint(pos) * 8)); value != 0 {
				action(base+pos, value)
			}
		}
	}
}
