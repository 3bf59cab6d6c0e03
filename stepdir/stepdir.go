// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package stepdir

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/GermanBionicSystems/stepdrive/clock"
	"github.com/GermanBionicSystems/stepdrive/microstep"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

var (
	// ErrInvalidConfiguration is returned by New when the motor geometry,
	// the lines or the delays are unusable.
	ErrInvalidConfiguration = errors.New("stepdir: invalid configuration")

	// ErrInvalidSpeed is returned when a speed is negative or not finite.
	ErrInvalidSpeed = errors.New("stepdir: invalid speed")

	// ErrInvalidAcceleration is returned when an acceleration is negative or
	// not finite.
	ErrInvalidAcceleration = errors.New("stepdir: invalid acceleration")

	// ErrInvalidMotion is returned when a requested angle can't be expressed
	// as a microstep count.
	ErrInvalidMotion = errors.New("stepdir: invalid motion")

	// ErrBusy is returned when a request is rejected because a motion is in
	// progress.
	ErrBusy = errors.New("stepdir: motion in progress")
)

// Status is the motion status.
type Status uint8

const (
	Idle Status = iota
	Accelerate
	ConstantSpeed
	Decelerate
	Paused
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Accelerate:
		return "Accelerate"
	case ConstantSpeed:
		return "ConstantSpeed"
	case Decelerate:
		return "Decelerate"
	case Paused:
		return "Paused"
	default:
		return "Status(?)"
	}
}

// moving reports whether pulses are emitted in this status.
func (s Status) moving() bool {
	return s == Accelerate || s == ConstantSpeed || s == Decelerate
}

// MotionType is the kind of request passed to MoveByAngle.
type MotionType uint8

const (
	// Absolute moves to an angular position relative to the origin.
	Absolute MotionType = iota
	// Relative moves by an angle relative to the current position.
	Relative
	// Pause holds the current motion. The remaining microsteps are kept.
	Pause
	// Resume restarts a paused motion from rest.
	Resume
	// StopAndReset abandons the current motion.
	StopAndReset
)

func (m MotionType) String() string {
	switch m {
	case Absolute:
		return "Absolute"
	case Relative:
		return "Relative"
	case Pause:
		return "Pause"
	case Resume:
		return "Resume"
	case StopAndReset:
		return "StopAndReset"
	default:
		return "MotionType(?)"
	}
}

// Direction is the jogging direction.
type Direction int8

const (
	Negative Direction = -1
	Neutral  Direction = 0
	Positive Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Negative:
		return "Negative"
	case Neutral:
		return "Neutral"
	case Positive:
		return "Positive"
	default:
		return "Direction(?)"
	}
}

// PowerState is the state of the driver's enable line.
type PowerState uint8

const (
	Enabled PowerState = iota
	Disabled
)

func (p PowerState) String() string {
	if p == Disabled {
		return "Disabled"
	}
	return "Enabled"
}

// Opts holds the configuration options for the device.
type Opts struct {
	// FullStepAngle is the motor's full step angle in degrees.
	FullStepAngle float64
	// GearRatio is the number of motor revolutions per output revolution.
	GearRatio float64
	// MicrostepResolution is the number of microsteps per full step set on
	// the driver, e.g. with its DIP switches.
	MicrostepResolution int

	// PulseDelay is held after each edge of a step pulse.
	PulseDelay time.Duration
	// DirectionDelay is held after changing the direction line, before the
	// next step pulse.
	DirectionDelay time.Duration
	// EnableDelay is held after changing the enable line.
	EnableDelay time.Duration

	// EnableLevel is the level of the enable line that powers the driver.
	// Most drivers are enabled low.
	EnableLevel gpio.Level
	// InvertDirection swaps the level of the direction line.
	InvertDirection bool
}

// DefaultOpts is a 1.8° motor without gearbox in full step mode, with delays
// suited to TB6600 and DRV8825 class drivers.
var DefaultOpts = Opts{
	FullStepAngle:       1.8,
	GearRatio:           1,
	MicrostepResolution: 1,
	PulseDelay:          5 * time.Microsecond,
	DirectionDelay:      5 * time.Microsecond,
	EnableDelay:         5 * time.Microsecond,
	EnableLevel:         gpio.Low,
}

func (o *Opts) validate() error {
	switch {
	case !(o.FullStepAngle > 0) || math.IsInf(o.FullStepAngle, 0):
		return fmt.Errorf("%w: full step angle %v", ErrInvalidConfiguration, o.FullStepAngle)
	case !(o.GearRatio > 0) || math.IsInf(o.GearRatio, 0):
		return fmt.Errorf("%w: gear ratio %v", ErrInvalidConfiguration, o.GearRatio)
	case o.MicrostepResolution <= 0:
		return fmt.Errorf("%w: microstep resolution %d", ErrInvalidConfiguration, o.MicrostepResolution)
	case o.PulseDelay < 0, o.DirectionDelay < 0, o.EnableDelay < 0:
		return fmt.Errorf("%w: negative delay", ErrInvalidConfiguration)
	}
	return nil
}

// Dev is a stepper motor behind a step/direction/enable driver.
type Dev struct {
	pul gpio.PinOut
	dir gpio.PinOut
	ena gpio.PinOut
	clk clock.Clock

	opts    Opts
	msAngle float64

	// Periods in microseconds, 0 meaning stopped and no ramping respectively.
	microstepPeriod   float64
	speedChangePeriod float64

	position  int64
	direction int64
	remaining uint64
	target    int64
	status    Status
	profile   Profile
	power     PowerState
	jog       Direction
	lastPulse uint64
}

// New returns a Dev driving the step (pul), direction (dir) and enable (ena)
// lines of a driver.
//
// ena may be nil when the enable input is hardwired. c may be nil to use
// clock.Default. opts may be nil to use DefaultOpts.
//
// The step line is parked high and the driver is powered. The speed is 0
// until SetSpeed is called.
func New(pul, dir, ena gpio.PinOut, c clock.Clock, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if pul == nil || dir == nil {
		return nil, fmt.Errorf("%w: step and direction lines are required", ErrInvalidConfiguration)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if c == nil {
		c = clock.Default
	}
	d := &Dev{
		pul:     pul,
		dir:     dir,
		ena:     ena,
		clk:     c,
		opts:    *opts,
		msAngle: microstep.Angle(opts.FullStepAngle, opts.GearRatio, float64(opts.MicrostepResolution)),
	}
	if !(d.msAngle > 0) {
		return nil, fmt.Errorf("%w: microstep angle %v", ErrInvalidConfiguration, d.msAngle)
	}
	if err := d.pul.Out(gpio.High); err != nil {
		return nil, err
	}
	if err := d.SetPowerState(Enabled); err != nil {
		return nil, err
	}
	d.lastPulse = d.clk.Micros()
	return d, nil
}

// String implements conn.Resource.
func (d *Dev) String() string {
	ena := "nil"
	if d.ena != nil {
		ena = d.ena.String()
	}
	return fmt.Sprintf("stepdir{%s, %s, %s}", d.pul, d.dir, ena)
}

// Halt implements conn.Resource.
//
// It abandons the current motion immediately. The driver stays powered so the
// motor holds its position.
func (d *Dev) Halt() error {
	d.stop()
	return nil
}

// SetSpeed sets the cruise speed.
//
// A speed of 0 pauses the motion in progress on the next poll.
func (d *Dev) SetSpeed(v float64, unit microstep.SpeedUnit) error {
	rate := microstep.FromSpeed(v, unit, d.msAngle)
	if !(rate >= 0) || math.IsInf(rate, 0) {
		return fmt.Errorf("%w: %v %s", ErrInvalidSpeed, v, unit)
	}
	d.microstepPeriod = microstep.Period(rate)
	return nil
}

// SetAcceleration sets the acceleration used to ramp up and down.
//
// An acceleration of 0 disables ramping: the motor starts and stops at the
// cruise speed.
func (d *Dev) SetAcceleration(v float64, unit microstep.AccelerationUnit) error {
	rate := microstep.FromAcceleration(v, unit, d.msAngle)
	if !(rate >= 0) || math.IsInf(rate, 0) {
		return fmt.Errorf("%w: %v %s", ErrInvalidAcceleration, v, unit)
	}
	d.speedChangePeriod = microstep.Period(rate)
	return nil
}

// SetPulseDelay sets the delay held after each edge of a step pulse.
func (d *Dev) SetPulseDelay(delay time.Duration) {
	d.opts.PulseDelay = delay
}

// SetDirectionDelay sets the delay held after changing direction.
func (d *Dev) SetDirectionDelay(delay time.Duration) {
	d.opts.DirectionDelay = delay
}

// SetEnableDelay sets the delay held after changing the power state.
func (d *Dev) SetEnableDelay(delay time.Duration) {
	d.opts.EnableDelay = delay
}

// SetPowerState powers the driver on or off.
//
// While Disabled, every poll stops and resets the motion.
func (d *Dev) SetPowerState(p PowerState) error {
	if d.ena != nil {
		l := d.opts.EnableLevel
		if p == Disabled {
			l = !l
		}
		if err := d.ena.Out(l); err != nil {
			return err
		}
	}
	d.power = p
	d.clk.Delay(d.opts.EnableDelay)
	return nil
}

// PowerState returns the last power state set.
func (d *Dev) PowerState() PowerState {
	return d.power
}

// Status returns the motion status.
func (d *Dev) Status() Status {
	return d.status
}

// Remaining returns the microsteps left to reach the target of the motion in
// progress.
func (d *Dev) Remaining() uint64 {
	return d.remaining
}

// Position returns the angular position in microsteps from the origin.
func (d *Dev) Position() int64 {
	return d.position
}

// AngularPosition returns the angular position from the origin.
func (d *Dev) AngularPosition(unit microstep.AngleUnit) float64 {
	return microstep.ToAngle(float64(d.position), unit, d.msAngle)
}

// MicrostepAngle returns the angle of one microstep in degrees.
func (d *Dev) MicrostepAngle() float64 {
	return d.msAngle
}

// Profile returns the profile of the last motion set up.
func (d *Dev) Profile() Profile {
	return d.profile
}

// PlanProfile returns the profile a motion by angle would follow, without
// moving.
func (d *Dev) PlanProfile(angle float64, unit microstep.AngleUnit, m MotionType) (Profile, error) {
	target, err := d.targetOf(angle, unit, m)
	if err != nil {
		return Profile{}, err
	}
	return NewProfile(absDiff(target, d.position), d.microstepPeriod, d.speedChangePeriod), nil
}

// ResetPosition makes the current position the origin.
func (d *Dev) ResetPosition() error {
	if !d.idle() {
		return ErrBusy
	}
	d.position = 0
	d.target = 0
	return nil
}

// MoveByAngle polls the motion once, carrying a request.
//
// Absolute and Relative requests are accepted when Idle or Paused; a request
// received while moving is rejected with ErrBusy and the motion in progress
// continues. Issuing the Absolute request of the motion in progress again is
// not an error, so the same call can be made on every loop iteration. A
// Relative request starts a new motion every time it is accepted; use Poll to
// follow it.
//
// Precedence is: power disabled, StopAndReset, zero speed, then the request.
// With a zero speed any request other than StopAndReset pauses.
//
// The returned status is the one after this poll.
func (d *Dev) MoveByAngle(angle float64, unit microstep.AngleUnit, m MotionType) (Status, error) {
	var err error
	switch {
	case d.power == Disabled || m == StopAndReset:
		d.stop()
	case d.microstepPeriod == 0 || m == Pause:
		d.status = Paused
	case m == Resume:
		d.resume()
	case m == Absolute || m == Relative:
		err = d.start(angle, unit, m)
	default:
		err = fmt.Errorf("%w: %s", ErrInvalidMotion, m)
	}
	if perr := d.advance(); perr != nil {
		return d.status, perr
	}
	return d.status, err
}

// Poll polls the motion once without a request.
//
// A motion in progress pauses when the speed is 0 and stops when the driver is
// disabled.
func (d *Dev) Poll() (Status, error) {
	switch {
	case d.power == Disabled:
		d.stop()
	case d.microstepPeriod == 0 && d.status.moving():
		d.status = Paused
	}
	return d.status, d.advance()
}

// MoveByJogging moves continuously in a direction, one poll at a time.
//
// Jogging is only possible when Idle, or Paused with nothing remaining, and
// ignores the acceleration. Neutral emits nothing. Nothing happens when the
// driver is disabled or the speed is 0.
func (d *Dev) MoveByJogging(dir Direction) error {
	if d.power == Disabled || d.microstepPeriod == 0 {
		return nil
	}
	if !d.idle() {
		return ErrBusy
	}
	d.status = Idle
	if dir != d.jog {
		d.jog = dir
		if dir != Neutral {
			d.direction = int64(dir)
			if err := d.setDirection(); err != nil {
				return err
			}
		}
	}
	if dir == Neutral {
		return nil
	}
	now := d.clk.Micros()
	if float64(now-d.lastPulse) < d.microstepPeriod {
		return nil
	}
	return d.pulse(now, false)
}

// targetOf returns the absolute target in microsteps of a request.
func (d *Dev) targetOf(angle float64, unit microstep.AngleUnit, m MotionType) (int64, error) {
	ms := math.Round(microstep.FromAngle(angle, unit, d.msAngle))
	if !(math.Abs(ms) <= maxMicrosteps) {
		return 0, fmt.Errorf("%w: %v %s", ErrInvalidMotion, angle, unit)
	}
	if m == Relative {
		return d.position + int64(ms), nil
	}
	return int64(ms), nil
}

// start sets up a new bounded motion.
func (d *Dev) start(angle float64, unit microstep.AngleUnit, m MotionType) error {
	target, err := d.targetOf(angle, unit, m)
	if err != nil {
		return err
	}
	if d.status.moving() {
		if m == Absolute && target == d.target {
			return nil
		}
		return ErrBusy
	}
	d.jog = Neutral
	d.target = target
	if target == d.position {
		d.stop()
		return nil
	}
	d.direction = 1
	if target < d.position {
		d.direction = -1
	}
	if err := d.setDirection(); err != nil {
		d.stop()
		return err
	}
	d.remaining = absDiff(target, d.position)
	d.profile = NewProfile(d.remaining, d.microstepPeriod, d.speedChangePeriod)
	d.status = Accelerate
	return nil
}

// resume restarts a paused motion from rest.
func (d *Dev) resume() {
	if d.status != Paused {
		return
	}
	if d.remaining == 0 {
		d.status = Idle
		return
	}
	d.profile = NewProfile(d.remaining, d.microstepPeriod, d.speedChangePeriod)
	d.status = Accelerate
}

// idle reports whether no bounded motion is pending.
func (d *Dev) idle() bool {
	return d.status == Idle || d.status == Paused && d.remaining == 0
}

func (d *Dev) stop() {
	d.remaining = 0
	d.profile = Profile{}
	d.status = Idle
}

// advance updates the status from the remaining microsteps, then emits a
// pulse if one is due.
func (d *Dev) advance() error {
	if d.status == Accelerate && d.remaining <= d.profile.Microsteps-d.profile.Accelerate {
		if d.profile.Cruise == 0 {
			d.status = Decelerate
		} else {
			d.status = ConstantSpeed
		}
	}
	if d.status == ConstantSpeed && d.remaining <= d.profile.Decelerate {
		d.status = Decelerate
	}
	if d.status == Decelerate && d.remaining == 0 {
		d.status = Idle
	}
	if !d.status.moving() || d.remaining == 0 {
		return nil
	}
	now := d.clk.Micros()
	if float64(now-d.lastPulse) < d.period() {
		return nil
	}
	if err := d.pulse(now, true); err != nil {
		return err
	}
	if d.remaining == 0 {
		// The poll emitting the last microstep ends the motion.
		d.status = Idle
	}
	return nil
}

// period returns the microstep period applicable in the current status.
func (d *Dev) period() float64 {
	switch d.status {
	case Accelerate:
		return rampPeriod(d.microstepPeriod, d.speedChangePeriod, d.profile.Microsteps-d.remaining+1)
	case Decelerate:
		return rampPeriod(d.microstepPeriod, d.speedChangePeriod, d.remaining)
	default:
		return d.microstepPeriod
	}
}

// pulse emits one step pulse. now is the time the pulse became due.
func (d *Dev) pulse(now uint64, bounded bool) error {
	if err := d.pul.Out(gpio.Low); err != nil {
		return err
	}
	d.clk.Delay(d.opts.PulseDelay)
	if err := d.pul.Out(gpio.High); err != nil {
		return err
	}
	d.clk.Delay(d.opts.PulseDelay)
	if bounded {
		d.remaining--
	}
	d.position += d.direction
	d.lastPulse = now
	return nil
}

// setDirection drives the direction line for d.direction and waits for it to
// settle.
func (d *Dev) setDirection() error {
	l := gpio.Level(d.direction > 0 != d.opts.InvertDirection)
	if err := d.dir.Out(l); err != nil {
		return err
	}
	d.clk.Delay(d.opts.DirectionDelay)
	return nil
}

func absDiff(a, b int64) uint64 {
	if a < b {
		return uint64(b - a)
	}
	return uint64(a - b)
}

var _ conn.Resource = &Dev{}
