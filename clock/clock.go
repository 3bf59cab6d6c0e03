// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package clock provides the time source used by the polled state machines
// of this module.
//
// Polling code never sleeps to wait for its next event. Instead it compares
// a monotonic microsecond timestamp against the time of its last event. The
// only blocking operation is Delay, reserved for settle delays of a few
// microseconds after changing a control line.
package clock

import (
	"time"

	"periph.io/x/host/v3/cpu"
)

// Clock is a monotonic microsecond time source.
type Clock interface {
	// Micros returns a monotonic timestamp in microseconds. The epoch is
	// arbitrary.
	Micros() uint64
	// Delay busy-waits for d.
	Delay(d time.Duration)
}

// System is a Clock backed by the Go runtime's monotonic clock.
type System struct {
	start time.Time
}

// NewSystem returns a System clock whose epoch is the time of the call.
func NewSystem() *System {
	return &System{start: time.Now()}
}

// Micros implements Clock.
func (s *System) Micros() uint64 {
	return uint64(time.Since(s.start).Microseconds())
}

// Delay implements Clock.
//
// It spins with cpu.Nanospin. Settle delays are shorter than the scheduler
// granularity.
func (s *System) Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	cpu.Nanospin(d)
}

// Default is the process wide System clock.
var Default Clock = NewSystem()

var _ Clock = &System{}
