// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cover

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bradleyjkemp/millipede/byteset"
	"github.com/bradleyjkemp/millipede/feature"
)

func TestDrainCounters(t *testing.T) {
	set := byteset.New(4096)
	set.Set(5, 4)
	set.Set(9, 1)

	sink := feature.NewArray(16)
	drained := DrainCounters(set, sink)
	assert.Equal(t, 2, drained)

	want := []feature.Feature{
		feature.Counters8bit.ConvertToMe(5*8 + 2), // log2(4) = 2
		feature.Counters8bit.ConvertToMe(9 * 8),   // log2(1) = 0
	}
	assert.Equal(t, want, sink.Data())

	// The drain cleared the set.
	sink.Clear()
	assert.Equal(t, 0, DrainCounters(set, sink))
}

func TestDrainCountersSinkOverflow(t *testing.T) {
	set := byteset.New(256)
	for i := 0; i < 100; i++ {
		set.Set(i, 1)
	}
	sink := feature.NewArray(10)
	drained := DrainCounters(set, sink)
	assert.Equal(t, 100, drained)
	assert.Equal(t, 10, sink.Size())
}

func TestFeatureSet(t *testing.T) {
	s := NewFeatureSet()
	f1 := feature.PCs.ConvertToMe(1)
	f2 := feature.CMPEq.ConvertToMe(7)

	assert.True(t, s.HasUnseenFeatures([]feature.Feature{f1}))
	assert.Equal(t, 2, s.AddFeatures([]feature.Feature{f1, f2, f1}))
	assert.False(t, s.HasUnseenFeatures([]feature.Feature{f1, f2}))
	assert.True(t, s.HasUnseenFeatures([]feature.Feature{f1, feature.PCs.ConvertToMe(2)}))

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has(f1))
	assert.EqualValues(t, 2, s.Count(f1))
	assert.EqualValues(t, 1, s.Count(f2))
	assert.Equal(t, 1, s.DomainCount(feature.PCs))
	assert.Equal(t, 1, s.DomainCount(feature.CMPEq))
	assert.Equal(t, 0, s.DomainCount(feature.DataFlow))

	// Re-adding known features reports nothing new.
	assert.Equal(t, 0, s.AddFeatures([]feature.Feature{f1, f2}))
}

func TestObserverCycle(t *testing.T) {
	counters := byteset.NewTwoLayer(64 << 10)
	o := NewObserver(counters, zaptest.NewLogger(t))

	counters.SaturatedIncrement(100)
	newCount := o.Cycle()
	assert.Equal(t, 1, newCount)
	assert.Equal(t, 1, o.Features().Len())
	assert.Equal(t, 1, o.Features().DomainCount(feature.Counters8bit))

	// Same counter value again: same feature, nothing new.
	counters.SaturatedIncrement(100)
	assert.Equal(t, 0, o.Cycle())

	// A different count lands in a different log2 bucket only when the
	// bucket changes: two hits give log2(2)=1, a new feature.
	counters.SaturatedIncrement(100)
	counters.SaturatedIncrement(100)
	assert.Equal(t, 1, o.Cycle())
}

func TestObserverAbsorbsExtraVectors(t *testing.T) {
	counters := byteset.NewTwoLayer(4096)
	o := NewObserver(counters, nil)

	cmp := []feature.Feature{
		feature.CMPEq.ConvertToMe(1),
		feature.CMPEq.ConvertToMe(1),
		feature.CMPHamming.ConvertToMe(9),
	}
	assert.Equal(t, 2, o.Cycle(cmp))
	require.Equal(t, 2, o.Features().Len())
	assert.Equal(t, 1, o.Features().DomainCount(feature.CMPEq))
	assert.Equal(t, 1, o.Features().DomainCount(feature.CMPHamming))
}

func TestObserverGarbageFeaturesCountAsUnknown(t *testing.T) {
	o := NewObserver(byteset.NewTwoLayer(4096), nil)
	garbage := []feature.Feature{feature.LastDomain.ConvertToMe(3)}
	assert.Equal(t, 1, o.Cycle(garbage))
	assert.Equal(t, 1, o.Features().Len())
	assert.Equal(t, 1, o.Features().DomainCount(feature.Unknown))
}
