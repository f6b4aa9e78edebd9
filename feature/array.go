// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package feature

// Array is a fixed-capacity feature sink. Instrumentation callbacks push
// into it on the hot path; pushes beyond capacity are dropped silently. The
// design prefers bounded latency over completeness on pathological inputs.
//
// Array is thread-compatible: callers synchronize externally, typically by
// giving each fuzzing thread its own sink.
type Array struct {
	features []Feature
}

// NewArray returns an empty Array that holds at most capacity features.
func NewArray(capacity int) *Array {
	return &Array{features: make([]Feature, 0, capacity)}
}

// PushBack appends f if there is space left, and drops it otherwise.
func (a *Array) PushBack(f Feature) {
	if len(a.features) < cap(a.features) {
		a.features = append(a.features, f)
	}
}

// Clear makes the array empty.
func (a *Array) Clear() { a.features = a.features[:0] }

// Size returns the number of features currently held.
func (a *Array) Size() int { return len(a.features) }

// Data returns the held features. The slice is owned by the Array and is
// only valid until the next PushBack or Clear.
func (a *Array) Data() []Feature { return a.features }
