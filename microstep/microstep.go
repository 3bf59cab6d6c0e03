// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package microstep converts between microsteps and real world units for a
// stepper motor driven by a step/direction driver.
//
// A microstep is the smallest commanded angular increment. Its value in
// degrees depends on the motor's full step angle, the gear ratio and the
// microstep resolution configured on the driver. See Angle.
//
// All conversions are pure functions over float64. Nothing is rounded,
// clamped or saturated; callers decide how to consume the result.
package microstep

import (
	"math"

	"periph.io/x/conn/v3/physic"
)

// AngleUnit is the unit of an angle or angular position.
type AngleUnit uint8

const (
	Microsteps AngleUnit = iota
	Degrees
	Radians
	Revolutions
)

func (u AngleUnit) String() string {
	switch u {
	case Microsteps:
		return "microsteps"
	case Degrees:
		return "°"
	case Radians:
		return "rad"
	case Revolutions:
		return "rev"
	default:
		return "AngleUnit(?)"
	}
}

// SpeedUnit is the unit of an angular speed.
type SpeedUnit uint8

const (
	MicrostepsPerSecond SpeedUnit = iota
	DegreesPerSecond
	RadiansPerSecond
	RevolutionsPerSecond
	// RevolutionsPerMinute is RPM. 1 RPM is 6°/s.
	RevolutionsPerMinute
)

func (u SpeedUnit) String() string {
	switch u {
	case MicrostepsPerSecond:
		return "microsteps/s"
	case DegreesPerSecond:
		return "°/s"
	case RadiansPerSecond:
		return "rad/s"
	case RevolutionsPerSecond:
		return "rev/s"
	case RevolutionsPerMinute:
		return "RPM"
	default:
		return "SpeedUnit(?)"
	}
}

// AccelerationUnit is the unit of an angular acceleration.
type AccelerationUnit uint8

const (
	MicrostepsPerSecondPerSecond AccelerationUnit = iota
	DegreesPerSecondPerSecond
	RadiansPerSecondPerSecond
	RevolutionsPerSecondPerSecond
	// RevolutionsPerMinutePerMinute is RPM gained per minute. 1 rev/min² is
	// 0.1°/s².
	RevolutionsPerMinutePerMinute
)

func (u AccelerationUnit) String() string {
	switch u {
	case MicrostepsPerSecondPerSecond:
		return "microsteps/s²"
	case DegreesPerSecondPerSecond:
		return "°/s²"
	case RadiansPerSecondPerSecond:
		return "rad/s²"
	case RevolutionsPerSecondPerSecond:
		return "rev/s²"
	case RevolutionsPerMinutePerMinute:
		return "RPM/min"
	default:
		return "AccelerationUnit(?)"
	}
}

// Angle returns the angle in degrees of one microstep.
//
// fullStep is the motor's full step angle in degrees, typically 1.8 or 0.9.
// resolution is the number of microsteps per full step configured on the
// driver. The caller must validate that the result is strictly positive.
func Angle(fullStep, gearRatio, resolution float64) float64 {
	return fullStep / (gearRatio * resolution)
}

// FromAngle converts an angle to microsteps. The result is not rounded.
func FromAngle(v float64, unit AngleUnit, msAngle float64) float64 {
	switch unit {
	case Degrees:
		return v / msAngle
	case Radians:
		return (180 * v) / (math.Pi * msAngle)
	case Revolutions:
		return (360 * v) / msAngle
	default:
		return v
	}
}

// ToAngle converts microsteps to an angle. It is the inverse of FromAngle.
func ToAngle(ms float64, unit AngleUnit, msAngle float64) float64 {
	switch unit {
	case Degrees:
		return ms * msAngle
	case Radians:
		return (ms * math.Pi * msAngle) / 180
	case Revolutions:
		return (ms * msAngle) / 360
	default:
		return ms
	}
}

// FromPhysicAngle converts a periph angle to microsteps.
func FromPhysicAngle(a physic.Angle, msAngle float64) float64 {
	return FromAngle(float64(a)/float64(physic.Radian), Radians, msAngle)
}

// FromSpeed converts a speed to microsteps per second.
func FromSpeed(v float64, unit SpeedUnit, msAngle float64) float64 {
	switch unit {
	case DegreesPerSecond:
		return v / msAngle
	case RadiansPerSecond:
		return (180 * v) / (math.Pi * msAngle)
	case RevolutionsPerSecond:
		return (360 * v) / msAngle
	case RevolutionsPerMinute:
		return (6 * v) / msAngle
	default:
		return v
	}
}

// FromAcceleration converts an acceleration to microsteps per second per
// second.
func FromAcceleration(v float64, unit AccelerationUnit, msAngle float64) float64 {
	switch unit {
	case DegreesPerSecondPerSecond:
		return v / msAngle
	case RadiansPerSecondPerSecond:
		return (180 * v) / (math.Pi * msAngle)
	case RevolutionsPerSecondPerSecond:
		return (360 * v) / msAngle
	case RevolutionsPerMinutePerMinute:
		return (0.1 * v) / msAngle
	default:
		return v
	}
}

// Period returns the time in microseconds between two events happening at
// rate per second.
//
// A rate of 0 returns 0, which callers treat as "stopped".
func Period(rate float64) float64 {
	if rate == 0 {
		return 0
	}
	return 1000000 / rate
}

// Frequency returns the rate as a periph frequency.
func Frequency(rate float64) physic.Frequency {
	return physic.Frequency(rate * float64(physic.Hertz))
}
