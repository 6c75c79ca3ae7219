// Copyright 2025 The sama5kit Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang

import (
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Delay paces line transitions so slow slave devices and bus capacitance
// are respected. Half blocks for half a bit period.
//
// Busy-waiting is used instead of a kernel sleep: for sub-millisecond
// delays the scheduler-induced jitter of a sleep syscall would stretch the
// low or high phase unpredictably.
type Delay interface {
	Half()
}

// SpinDelay busy-waits on the monotonic clock for a fixed duration. It is
// portable across CPU speeds.
type SpinDelay time.Duration

// Half implements Delay.
func (s SpinDelay) Half() {
	for start := time.Now(); time.Since(start) < time.Duration(s); {
	}
}

// LoopDelay busy-waits by running a counted loop. The delay depends on the
// CPU clock, so the iteration count has to be calibrated per board;
// DefaultLoopCount is tuned for a 500MHz SAMA5D2 core and roughly 100kHz
// SCL. Prefer SpinDelay unless the monotonic clock itself is too costly.
type LoopDelay int

// DefaultLoopCount yields about a 5µs half period on a 500MHz core.
const DefaultLoopCount = 600

var loopSink uint32

// Half implements Delay.
func (l LoopDelay) Half() {
	n := uint32(0)
	for i := 0; i < int(l); i++ {
		n += uint32(i)
	}
	// The store keeps the compiler from eliding the loop.
	atomic.StoreUint32(&loopSink, n)
}

// NoDelay is a no-op Delay for tests and simulated buses.
type NoDelay struct{}

// Half implements Delay.
func (NoDelay) Half() {
}

// DefaultFreq is the bus frequency the engine is tuned for by default.
const DefaultFreq = 100 * physic.KiloHertz

// DelayFor returns a SpinDelay producing half a bit period at the requested
// bus frequency.
func DelayFor(f physic.Frequency) SpinDelay {
	hz := int64(f / physic.Hertz)
	if hz <= 0 {
		hz = 1
	}
	return SpinDelay(time.Second / time.Duration(2*hz))
}

var _ Delay = SpinDelay(0)
var _ Delay = LoopDelay(0)
var _ Delay = NoDelay{}
