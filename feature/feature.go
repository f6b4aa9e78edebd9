// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package feature defines the fuzzing feature space: a partition of the
// 64-bit integers into fixed-size domains, one per kind of runtime signal,
// together with the encoders that turn raw instrumentation observations
// (counters, comparison operands, PC pairs) into feature values.
//
// The domain layout below is a binary contract between the runner and the
// engine. Persisted corpora store raw feature values, so the ids and the
// encoding rules must not change between releases.
package feature

import (
	"math/bits"
	"strconv"
)

// Feature identifies some unique behaviour of the fuzz target exercised by a
// given input: a control flow edge, a counter bucket, a comparison outcome.
// Features are the engine's currency of novelty.
type Feature uint64

// DomainSize is the number of features in one domain. It is large enough to
// hold all PCs of a big target and small enough that all domains combined
// fit in 32 bits, so feature storage may use 32-bit cells.
const DomainSize = 1 << 27

// Domain is a disjoint, equal-sized slice of the feature space carrying one
// kind of signal. All domains have size DomainSize, so the domain of a
// feature is recovered by division.
type Domain struct {
	id uint64
}

func (d Domain) ID() uint64     { return d.id }
func (d Domain) Begin() Feature { return Feature(d.id * DomainSize) }
func (d Domain) End() Feature   { return d.Begin() + DomainSize }
func (d Domain) Name() string   { return domainNames[d.id] }

func (d Domain) Contains(f Feature) bool {
	return f >= d.Begin() && f < d.End()
}

// ConvertToMe maps an arbitrary number into this domain.
// Numbers >= DomainSize alias via the modulo; callers that need injectivity
// must bound their inputs.
func (d Domain) ConvertToMe(n uint64) Feature {
	return d.Begin() + Feature(n%DomainSize)
}

// DomainIDOf returns the id of the domain the feature belongs to.
func DomainIDOf(f Feature) uint64 { return uint64(f) / DomainSize }

// IndexInDomain returns the feature's index within its domain.
func IndexInDomain(f Feature) uint64 { return uint64(f) % DomainSize }

// Domain ids, assigned by position. The order is part of the ABI: tests pin
// every id, and persisted feature values are only interpretable while this
// enumeration is stable. New domains go immediately before idLast.
const (
	idUnknown = iota
	idPCs
	id8bitCounters
	idDataFlow
	idCMP
	idCMPEq
	idCMPModDiff
	idCMPHamming
	idCMPDiffLog
	idCallStack
	idBoundedPath
	idPCPair
	idUser0 // NumUserDomains consecutive user domains
	idLast  = idUser0 + NumUserDomains
)

// NumUserDomains is the number of user-defined feature domains. There is no
// hard guarantee targets get this many; it just has to be agreed on by both
// sides of the domain layout contract.
const NumUserDomains = 16

// NumDomains counts all real domains; LastDomain itself is a fake.
const NumDomains = idLast

var (
	// Unknown is the catch-all domain for features of unknown origin.
	Unknown = Domain{idUnknown}
	// PCs holds control flow edges. It is the only exactly invertible
	// domain, see ConvertPCFeatureToPcIndex.
	PCs = Domain{idPCs}
	// Counters8bit holds features derived from 8-bit edge counters,
	// see Convert8bitCounterToNumber.
	Counters8bit = Domain{id8bitCounters}
	// DataFlow holds features derived from data flow edges, e.g. pairs of
	// {store-PC, load-PC} or {global-address, load-PC}.
	DataFlow = Domain{idDataFlow}
	// CMP is the legacy undifferentiated comparison domain.
	CMP = Domain{idCMP}
	// CMPEq holds comparisons 'a CMP b' where a == b, indexed by the
	// instrumentation-site context.
	CMPEq = Domain{idCMPEq}
	// CMPModDiff, CMPHamming and CMPDiffLog hold comparisons with a != b,
	// one feature per transform, each composed with the site context.
	CMPModDiff = Domain{idCMPModDiff}
	CMPHamming = Domain{idCMPHamming}
	CMPDiffLog = Domain{idCMPDiffLog}
	// CallStack holds features derived from observed call stacks.
	CallStack = Domain{idCallStack}
	// BoundedPath holds features derived from bounded control flow paths.
	BoundedPath = Domain{idBoundedPath}
	// PCPair holds features derived from (unordered) pairs of PCs.
	PCPair = Domain{idPCPair}
	// LastDomain is a fake domain marking the end of the space.
	LastDomain = Domain{idLast}
)

// UserDomains are available for features defined by the fuzz target itself.
var UserDomains [NumUserDomains]Domain

// Domains lists all real domains in id order.
var Domains [NumDomains]Domain

// DomainByID returns the domain with the given id; out-of-range ids map to
// the Unknown catch-all.
func DomainByID(id uint64) Domain {
	if id >= NumDomains {
		return Unknown
	}
	return Domains[id]
}

// CMPDomains lists all comparison domains, in id order.
var CMPDomains = [5]Domain{CMP, CMPEq, CMPModDiff, CMPHamming, CMPDiffLog}

// NoFeature indicates an absence of features, for contexts where a feature
// array must not be empty but has nothing else to hold.
const NoFeature = Feature(0) // Unknown.Begin()

var domainNames = make([]string, idLast+1)

func init() {
	names := []string{
		"Unknown", "PCs", "8bitCounters", "DataFlow", "CMP", "CMPEq",
		"CMPModDiff", "CMPHamming", "CMPDiffLog", "CallStack",
		"BoundedPath", "PCPair",
	}
	copy(domainNames, names)
	for i := range UserDomains {
		UserDomains[i] = Domain{uint64(idUser0 + i)}
		domainNames[idUser0+i] = "User" + strconv.Itoa(i)
	}
	domainNames[idLast] = "LastDomain"
	for i := range Domains {
		Domains[i] = Domain{uint64(i)}
	}
}

// Convert8bitCounterToNumber converts a pair of {pcIndex, counterValue} into
// a number suitable for Counters8bit.ConvertToMe. counterValue must not be
// zero.
//
// The counter is reduced to its binary log, a value in [0,7]: 1=>0, 2=>1,
// 4=>2, ..., 128=>7. This is the AFL/libFuzzer heuristic that rewards inputs
// repeating the same PC a different number of times.
func Convert8bitCounterToNumber(pcIndex uint64, counterValue uint8) uint64 {
	if counterValue == 0 {
		panic("feature: zero counter value")
	}
	counterLog2 := uint64(bits.Len8(counterValue) - 1)
	return pcIndex*8 + counterLog2
}

// ConvertPCFeatureToPcIndex is the reverse of PCs.ConvertToMe, assuming all
// PC indexes originally converted were less than DomainSize. Panics if the
// feature is not in the PCs domain.
func ConvertPCFeatureToPcIndex(f Feature) uint64 {
	if !PCs.Contains(f) {
		panic("feature: not a PC feature")
	}
	return uint64(f - PCs.Begin())
}

// ConvertPcPairToNumber encodes {pc1, pc2} into a number.
// pc1 and pc2 are in [0, maxPC). The multiplication is unchecked; callers
// that rely on injectivity must bound maxPC*maxPC < DomainSize.
func ConvertPcPairToNumber(pc1, pc2, maxPC uint64) uint64 {
	return pc1*maxPC + pc2
}

// ABToCmpModDiff transforms {a,b}, a!=b, into a number in [0,64) using the
// wrapping difference a-b: small positive differences map to [1,32],
// small negative ones to (32,64), everything else to 0.
func ABToCmpModDiff(a, b uint64) uint64 {
	diff := a - b
	if diff <= 32 {
		return diff
	}
	if -diff < 32 {
		return 32 + -diff
	}
	return 0
}

// ABToCmpHamming transforms {a,b}, a!=b, into a number in [0,64) using the
// hamming distance between a and b.
func ABToCmpHamming(a, b uint64) uint64 {
	return uint64(bits.OnesCount64(a^b) - 1)
}

// ABToCmpDiffLog transforms {a,b}, a!=b, into a number in [0,64): the count
// of leading zeros of |a-b|, i.e. 63 - floor(log2(|a-b|)).
func ABToCmpDiffLog(a, b uint64) uint64 {
	diff := a - b
	if a < b {
		diff = b - a
	}
	return uint64(bits.LeadingZeros64(diff))
}
