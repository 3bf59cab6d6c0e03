// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package stepdir

import (
	"math"
	"time"
)

// maxMicrosteps bounds every microstep count so that it is exactly
// representable as a float64 and cannot overflow the signed position.
const maxMicrosteps = 1 << 53

// Profile is the speed shape of a bounded motion.
//
// The motion is split in three consecutive segments: Accelerate microsteps
// ramping up from rest, Cruise microsteps at the configured speed and
// Decelerate microsteps ramping down to rest. A triangular profile has no
// cruise segment.
type Profile struct {
	Microsteps uint64
	Accelerate uint64
	Cruise     uint64
	Decelerate uint64

	microstepPeriod   float64
	speedChangePeriod float64
}

// NewProfile sizes a motion of total microsteps.
//
// microstepPeriod is the cruise period and speedChangePeriod the inverse of
// the acceleration, both in microseconds. A speedChangePeriod of 0 disables
// ramping: the whole motion is cruise.
func NewProfile(total uint64, microstepPeriod, speedChangePeriod float64) Profile {
	p := Profile{
		Microsteps:        total,
		microstepPeriod:   microstepPeriod,
		speedChangePeriod: speedChangePeriod,
	}
	p.Accelerate, p.Cruise, p.Decelerate = sizeProfile(total, MinAccelerationMicrosteps(microstepPeriod, speedChangePeriod))
	return p
}

// MinAccelerationMicrosteps returns the number of microsteps needed to reach
// the speed of one microstep per microstepPeriod from rest, at the constant
// acceleration of 1e6/speedChangePeriod microsteps per second².
//
// This is v²/2a, which in periods is 500000·speedChangePeriod/microstepPeriod².
func MinAccelerationMicrosteps(microstepPeriod, speedChangePeriod float64) uint64 {
	if microstepPeriod <= 0 || speedChangePeriod <= 0 {
		return 0
	}
	n := 500000 * speedChangePeriod / (microstepPeriod * microstepPeriod)
	if !(n < maxMicrosteps) {
		return maxMicrosteps
	}
	return uint64(n)
}

// sizeProfile splits total microsteps into acceleration, cruise and
// deceleration given the microsteps needed to accelerate to cruise speed.
func sizeProfile(total, minAccel uint64) (accel, cruise, decel uint64) {
	switch {
	case minAccel == 0:
		return 0, total, 0
	case total <= 2*minAccel:
		// The cruise speed can't be reached before decelerating.
		decel = total / 2
		return total - decel, 0, decel
	default:
		return minAccel, total - 2*minAccel, minAccel
	}
}

// Triangular reports whether the cruise speed is never reached.
func (p Profile) Triangular() bool {
	return p.Cruise == 0 && p.Microsteps != 0
}

// Period returns the period in microseconds preceding pulse i, counted from
// 0.
func (p Profile) Period(i uint64) float64 {
	switch {
	case i < p.Accelerate:
		return rampPeriod(p.microstepPeriod, p.speedChangePeriod, i+1)
	case i >= p.Accelerate+p.Cruise && i < p.Microsteps:
		return rampPeriod(p.microstepPeriod, p.speedChangePeriod, p.Microsteps-i)
	default:
		return p.microstepPeriod
	}
}

// Duration returns the time needed to emit every pulse of the profile.
func (p Profile) Duration() time.Duration {
	us := float64(p.Cruise) * p.microstepPeriod
	for i := uint64(0); i < p.Accelerate; i++ {
		us += p.Period(i)
	}
	for i := p.Microsteps - p.Decelerate; i < p.Microsteps; i++ {
		us += p.Period(i)
	}
	return time.Duration(us * float64(time.Microsecond))
}

// rampPeriod returns the period of the n-th microstep away from rest,
// n >= 1.
//
// At constant acceleration a, every microstep adds 2a to the squared rate, so
// the rate after n microsteps is sqrt(2an). The result never gets shorter
// than the cruise period.
func rampPeriod(cruise, speedChangePeriod float64, n uint64) float64 {
	if speedChangePeriod <= 0 || n == 0 {
		return cruise
	}
	return math.Max(math.Sqrt(500000*speedChangePeriod/float64(n)), cruise)
}
