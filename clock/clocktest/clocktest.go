// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package clocktest is meant to be used to test code depending on a
// clock.Clock.
package clocktest

import (
	"sync"
	"time"

	"github.com/GermanBionicSystems/stepdrive/clock"
)

// Fake is a clock.Clock that only moves when told to.
//
// Delay advances the time by the requested duration, so code under test sees
// time pass exactly as it would on hardware.
type Fake struct {
	sync.Mutex
	// T is the current time in microseconds.
	T uint64
	// Delays records every call to Delay.
	Delays []time.Duration
	// OnDelay, when set, is called after every Delay.
	OnDelay func(d time.Duration)
}

// Micros implements clock.Clock.
func (f *Fake) Micros() uint64 {
	f.Lock()
	defer f.Unlock()
	return f.T
}

// Delay implements clock.Clock.
func (f *Fake) Delay(d time.Duration) {
	f.Lock()
	f.Delays = append(f.Delays, d)
	if d > 0 {
		f.T += uint64(d / time.Microsecond)
	}
	cb := f.OnDelay
	f.Unlock()
	if cb != nil {
		cb(d)
	}
}

// Advance moves the time forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.Lock()
	defer f.Unlock()
	f.T += uint64(d / time.Microsecond)
}

var _ clock.Clock = &Fake{}
