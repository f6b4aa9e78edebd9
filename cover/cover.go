// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package cover is the engine side of the feedback loop: it drains the
// counter byte sets the target writes to, encodes each non-zero counter into
// the feature space, and tracks which features the corpus has already seen.
package cover

import (
	"go.uber.org/zap"

	"github.com/bradleyjkemp/millipede/feature"
	"github.com/bradleyjkemp/millipede/stats"
)

// ByteSource is a drainable counter set. Both byteset.ByteSet and
// byteset.TwoLayerByteSet satisfy it.
type ByteSource interface {
	ForEachNonZero(action func(idx int, value byte))
}

// DrainCounters performs one sweep of set, encoding every non-zero
// (pcIndex, counter) pair as an 8-bit-counter feature pushed into sink.
// Returns the number of non-zero counters swept, which can exceed what the
// sink absorbed if it filled up.
func DrainCounters(set ByteSource, sink *feature.Array) int {
	drained := 0
	set.ForEachNonZero(func(idx int, value byte) {
		drained++
		n := feature.Convert8bitCounterToNumber(uint64(idx), value)
		sink.PushBack(feature.Counters8bit.ConvertToMe(n))
	})
	return drained
}

// FeatureSet is the corpus-level record of every feature seen so far, with
// occurrence counts and a per-domain tally.
type FeatureSet struct {
	counts    map[feature.Feature]uint64
	perDomain [feature.NumDomains]int
}

func NewFeatureSet() *FeatureSet {
	return &FeatureSet{counts: make(map[feature.Feature]uint64)}
}

// Add records one observation of f. Reports whether f is new.
func (s *FeatureSet) Add(f feature.Feature) bool {
	s.counts[f]++
	if s.counts[f] != 1 {
		return false
	}
	id := feature.DomainIDOf(f)
	if id >= feature.NumDomains {
		id = feature.Unknown.ID()
	}
	s.perDomain[id]++
	return true
}

// AddFeatures records every feature of vec and returns how many were new.
func (s *FeatureSet) AddFeatures(vec []feature.Feature) int {
	newCount := 0
	for _, f := range vec {
		if s.Add(f) {
			newCount++
		}
	}
	return newCount
}

// HasUnseenFeatures reports whether vec contains any feature not in the set,
// without modifying it. The check-then-add split mirrors the preliminary
// cover comparison the triage path does before committing an input.
func (s *FeatureSet) HasUnseenFeatures(vec []feature.Feature) bool {
	for _, f := range vec {
		if s.counts[f] == 0 {
			return true
		}
	}
	return false
}

// Has reports whether f has been seen.
func (s *FeatureSet) Has(f feature.Feature) bool { return s.counts[f] != 0 }

// Count returns how many times f has been observed.
func (s *FeatureSet) Count(f feature.Feature) uint64 { return s.counts[f] }

// Len returns the number of distinct features seen.
func (s *FeatureSet) Len() int { return len(s.counts) }

// DomainCount returns the number of distinct features seen in d.
func (s *FeatureSet) DomainCount(d feature.Domain) int {
	if d.ID() >= feature.NumDomains {
		return 0
	}
	return s.perDomain[d.ID()]
}

// Observer owns one drain loop: a counter source, a bounded sink, and the
// feature set novelty is judged against. Exactly one goroutine may call
// Cycle, per the byte-set sweep contract.
type Observer struct {
	counters ByteSource
	features *FeatureSet
	sink     *feature.Array
	log      *zap.Logger
}

// sinkCap bounds features absorbed per cycle: one per counter byte is the
// worst case.
const sinkCap = 64 << 10

func NewObserver(counters ByteSource, logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{
		counters: counters,
		features: NewFeatureSet(),
		sink:     feature.NewArray(sinkCap),
		log:      logger,
	}
}

// Features returns the observer's accumulated feature set.
func (o *Observer) Features() *FeatureSet { return o.features }

// Cycle performs one drain: sweeps the counter set, absorbs the resulting
// counter features plus any extra feature vectors (e.g. the comparison
// sink), and returns how many features were new.
func (o *Observer) Cycle(extra ...[]feature.Feature) int {
	o.sink.Clear()
	drained := DrainCounters(o.counters, o.sink)
	stats.Sweeps.Inc()
	stats.DrainedBytes.Add(float64(drained))
	if drops := drained - o.sink.Size(); drops > 0 {
		stats.SinkDrops.Add(float64(drops))
	}

	newCount := o.absorb(o.sink.Data())
	for _, vec := range extra {
		newCount += o.absorb(vec)
	}
	if newCount > 0 {
		o.log.Debug("new coverage",
			zap.Int("new", newCount),
			zap.Int("total", o.features.Len()))
	}
	return newCount
}

func (o *Observer) absorb(vec []feature.Feature) int {
	newCount := 0
	for _, f := range vec {
		if !o.features.Add(f) {
			continue
		}
		newCount++
		d := feature.DomainByID(feature.DomainIDOf(f))
		stats.NewFeatures.WithLabelValues(d.Name()).Inc()
	}
	return newCount
}
