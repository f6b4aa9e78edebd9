// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package trace holds the process-global sinks written by instrumented
// code: the edge-counter byte set, the tables of recent compares, and the
// comparison feature array. The globals are constructed during package
// initialization, before any instrumentation callback can run, which is how
// the "zeroed at image load" contract of the shared byte-set ABI is
// expressed in Go.
//
// Everything here is on the hottest path of every execution: no allocation,
// no logging, no error returns. Contract violations panic.
package trace

import (
	"github.com/bradleyjkemp/millipede/byteset"
	"github.com/bradleyjkemp/millipede/feature"
	"github.com/bradleyjkemp/millipede/torc"
)

const (
	// CoverSize is the size of the edge-counter table, one byte per
	// instrumented site.
	CoverSize = 64 << 10

	// cmpFeatureCap bounds the comparison feature sink per execution.
	// Each comparison emits at most 3 features; this holds one full cycle
	// of the largest (4096-slot, 8-bit) TORC table.
	cmpFeatureCap = 3 * 4096
)

// Counters is the edge-counter byte set. Instrumented basic blocks call
// IncrementCounter; the engine drains it between executions.
var Counters = byteset.NewTwoLayer(CoverSize)

// TORC remembers recent comparison operands for dictionary mining.
var TORC = torc.NewTables()

// CmpFeatures collects comparison-derived features of the current execution.
// It is drained and cleared together with Counters.
var CmpFeatures = feature.NewArray(cmpFeatureCap)

// IncrementCounter records one execution of instrumented site pcIndex.
func IncrementCounter(pcIndex int) {
	Counters.SaturatedIncrement(pcIndex)
}

// TraceCmp8 records an 8-bit comparison at instrumentation site ctx.
func TraceCmp8(ctx uint64, a, b uint8) {
	TORC.U8.Insert(a, b)
	emitCmp(ctx, uint64(a), uint64(b))
}

// TraceCmp16 records a 16-bit comparison at instrumentation site ctx.
func TraceCmp16(ctx uint64, a, b uint16) {
	TORC.U16.Insert(a, b)
	emitCmp(ctx, uint64(a), uint64(b))
}

// TraceCmp32 records a 32-bit comparison at instrumentation site ctx.
func TraceCmp32(ctx uint64, a, b uint32) {
	TORC.U32.Insert(a, b)
	emitCmp(ctx, uint64(a), uint64(b))
}

// TraceCmp64 records a 64-bit comparison at instrumentation site ctx.
func TraceCmp64(ctx, a, b uint64) {
	TORC.U64.Insert(a, b)
	emitCmp(ctx, a, b)
}

// TraceMemCmp records a buffer comparison of length n.
func TraceMemCmp(buf1, buf2 []byte, n int) {
	TORC.Mem.Insert(buf1, buf2, n)
}

// emitCmp encodes one comparison into features. Equal operands produce a
// single CMPEq feature indexed by the site context; unequal operands produce
// one feature per operand transform, the context composed with the 64-bound
// transform output so distinct sites land 64 apart.
func emitCmp(ctx, a, b uint64) {
	if a == b {
		CmpFeatures.PushBack(feature.CMPEq.ConvertToMe(ctx))
		return
	}
	CmpFeatures.PushBack(feature.CMPModDiff.ConvertToMe(ctx*64 + feature.ABToCmpModDiff(a, b)))
	CmpFeatures.PushBack(feature.CMPHamming.ConvertToMe(ctx*64 + feature.ABToCmpHamming(a, b)))
	CmpFeatures.PushBack(feature.CMPDiffLog.ConvertToMe(ctx*64 + feature.ABToCmpDiffLog(a, b)))
}
