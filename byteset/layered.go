// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package byteset

// layerRatio is how many lower-layer bytes one upper-layer byte covers.
const layerRatio = 64

// TwoLayerSizeMultiple is the granularity of a TwoLayerByteSet: its size and
// ranged-sweep bounds must be multiples of this, so that a sweep range maps
// to whole upper-layer words.
const TwoLayerSizeMultiple = SizeMultiple * layerRatio

// TwoLayerByteSet composes an upper presence set of size n/64 with a lower
// data set of size n. Writes mark the upper byte first, then write the lower
// byte, so a sweep can skip 64-byte windows nothing wrote to. If lower[i] is
// non-zero then upper[i/64] was set at some point; stale upper bits in the
// other direction only cost extra sweeping.
type TwoLayerByteSet struct {
	upper *ByteSet
	lower *ByteSet
	n     int
}

// NewTwoLayer returns a zeroed TwoLayerByteSet of n bytes. n must be a
// positive multiple of TwoLayerSizeMultiple.
func NewTwoLayer(n int) *TwoLayerByteSet {
	if n <= 0 || n%TwoLayerSizeMultiple != 0 {
		panic("byteset: two-layer size must be a positive multiple of 4096")
	}
	return &TwoLayerByteSet{
		upper: New(n / layerRatio),
		lower: New(n),
		n:     n,
	}
}

// Size returns the number of byte counters in the lower layer.
func (s *TwoLayerByteSet) Size() int { return s.n }

// Clear zeroes both layers. Callers must quiesce writers first.
func (s *TwoLayerByteSet) Clear() {
	s.upper.Clear()
	s.lower.Clear()
}

// Set stores value at idx, marking the covering upper byte first.
func (s *TwoLayerByteSet) Set(idx int, value byte) {
	if uint(idx) >= uint(s.n) {
		panic("byteset: Set index out of range")
	}
	s.upper.Set(idx/layerRatio, 1)
	s.lower.Set(idx, value)
}

// SaturatedIncrement increments the counter at idx, clamping at 255, marking
// the covering upper byte first.
func (s *TwoLayerByteSet) SaturatedIncrement(idx int) {
	if uint(idx) >= uint(s.n) {
		panic("byteset: SaturatedIncrement index out of range")
	}
	s.upper.Set(idx/layerRatio, 1)
	s.lower.SaturatedIncrement(idx)
}

// ForEachNonZero calls action(index, value) for every non-zero lower byte in
// ascending index order and zeroes the touched bytes of both layers. Must
// run on exactly one goroutine.
func (s *TwoLayerByteSet) ForEachNonZero(action func(idx int, value byte)) {
	s.ForEachNonZeroInRange(action, 0, s.n)
}

// ForEachNonZeroInRange is ForEachNonZero restricted to lower indexes in
// [from, to). Both bounds must be multiples of TwoLayerSizeMultiple and to
// must not exceed the set size.
func (s *TwoLayerByteSet) ForEachNonZeroInRange(action func(idx int, value byte), from, to int) {
	if to > s.n {
		panic("byteset: sweep past end of set")
	}
	if from%TwoLayerSizeMultiple != 0 {
		panic("byteset: sweep from not a multiple of 4096")
	}
	if to%TwoLayerSizeMultiple != 0 {
		panic("byteset: sweep to not a multiple of 4096")
	}
	s.upper.ForEachNonZeroInRange(func(upperIdx int, _ byte) {
		lowerFrom := upperIdx * layerRatio
		s.lower.ForEachNonZeroInRange(action, lowerFrom, lowerFrom+layerRatio)
	}, from/layerRatio, to/layerRatio)
}
