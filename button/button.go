// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package button debounces a push button wired to a GPIO and classifies its
// presses.
//
// Like the stepdir package, it is a polled state machine: call Update once per
// iteration of the control loop. The line is read on every call; there is no
// edge detection and nothing blocks.
//
// A press shorter than LongPressPeriod is counted. Presses following each
// other within MultiplePressPeriod accumulate, and the count is reported once
// the button stayed released for MultiplePressPeriod. A press held past
// LongPressPeriod is reported immediately, then its release.
//
// The debounced machine has four states. Any level change while debouncing
// restarts the debounce timer.
//
//	state              input                                next               event
//	released           pressed level                        debouncing press   -
//	released           released > MultiplePressPeriod       released           SinglePress or MultiplePress
//	debouncing press   stable for DebouncePeriod, pressed   held               -
//	debouncing press   stable for DebouncePeriod, released  released           - (glitch)
//	held               held for LongPressPeriod             held               LongPress, once; count dropped
//	held               released level                       debouncing release -
//	debouncing release stable for DebouncePeriod, released  released           Release if long, else count+1
//	debouncing release stable for DebouncePeriod, pressed   held               -
//
// A pending count is reported before a press seen on the same Update.
package button

import (
	"errors"
	"fmt"
	"time"

	"github.com/GermanBionicSystems/stepdrive/clock"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// ErrInvalidConfiguration is returned by New when a period is unusable.
var ErrInvalidConfiguration = errors.New("button: invalid configuration")

// Kind is the kind of an Event.
type Kind uint8

const (
	NoPress Kind = iota
	// SinglePress is one short press.
	SinglePress
	// MultiplePress is a sequence of Count short presses, Count >= 2.
	MultiplePress
	// LongPress is reported once while the button is held past the long press
	// period.
	LongPress
	// Release ends a LongPress.
	Release
)

func (k Kind) String() string {
	switch k {
	case NoPress:
		return "NoPress"
	case SinglePress:
		return "SinglePress"
	case MultiplePress:
		return "MultiplePress"
	case LongPress:
		return "LongPress"
	case Release:
		return "Release"
	default:
		return "Kind(?)"
	}
}

// Event is the result of an Update.
type Event struct {
	Kind Kind
	// Count is the number of short presses of a SinglePress or MultiplePress.
	Count int
}

func (e Event) String() string {
	if e.Kind == SinglePress || e.Kind == MultiplePress {
		return fmt.Sprintf("%s(%d)", e.Kind, e.Count)
	}
	return e.Kind.String()
}

// Opts holds the configuration options for the button.
type Opts struct {
	// UnpressedLevel is the level read when the button is released.
	UnpressedLevel gpio.Level
	// Pull is the pull resistor configured on the line.
	Pull gpio.Pull

	// DebouncePeriod is how long the level must stay unchanged to be trusted.
	DebouncePeriod time.Duration
	// MultiplePressPeriod is the longest release between two presses of the
	// same sequence.
	MultiplePressPeriod time.Duration
	// LongPressPeriod is how long a press must be held to be long.
	LongPressPeriod time.Duration
}

// DefaultOpts is a normally open button shorting the line to ground.
var DefaultOpts = Opts{
	UnpressedLevel:      gpio.High,
	Pull:                gpio.PullUp,
	DebouncePeriod:      20 * time.Millisecond,
	MultiplePressPeriod: 400 * time.Millisecond,
	LongPressPeriod:     time.Second,
}

func (o *Opts) validate() error {
	switch {
	case o.DebouncePeriod < 0:
		return fmt.Errorf("%w: debounce period %s", ErrInvalidConfiguration, o.DebouncePeriod)
	case o.MultiplePressPeriod <= 0:
		return fmt.Errorf("%w: multiple press period %s", ErrInvalidConfiguration, o.MultiplePressPeriod)
	case o.LongPressPeriod <= o.DebouncePeriod:
		return fmt.Errorf("%w: long press period %s must exceed the debounce period", ErrInvalidConfiguration, o.LongPressPeriod)
	}
	return nil
}

type state uint8

const (
	released state = iota
	debouncingPress
	held
	debouncingRelease
)

// Dev is a push button.
type Dev struct {
	p   gpio.PinIn
	clk clock.Clock

	debounce uint64
	multiple uint64
	long     uint64
	unpushed gpio.Level

	state state
	// raw is the last level read, true when pressed.
	raw bool
	// changed is the time raw last changed.
	changed    uint64
	pressedAt  uint64
	releasedAt uint64
	count      int
	isLong     bool
}

// New returns a Dev reading the button on p.
//
// c may be nil to use clock.Default. opts may be nil to use DefaultOpts.
func New(p gpio.PinIn, c clock.Clock, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if p == nil {
		return nil, fmt.Errorf("%w: missing line", ErrInvalidConfiguration)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if c == nil {
		c = clock.Default
	}
	if err := p.In(opts.Pull, gpio.NoEdge); err != nil {
		return nil, err
	}
	d := &Dev{
		p:        p,
		clk:      c,
		debounce: micros(opts.DebouncePeriod),
		multiple: micros(opts.MultiplePressPeriod),
		long:     micros(opts.LongPressPeriod),
		unpushed: opts.UnpressedLevel,
	}
	d.changed = c.Micros()
	return d, nil
}

// String implements conn.Resource.
func (d *Dev) String() string {
	return fmt.Sprintf("button{%s}", d.p)
}

// Halt implements conn.Resource.
//
// It forgets the presses in progress.
func (d *Dev) Halt() error {
	d.state = released
	d.count = 0
	d.isLong = false
	return nil
}

// Pressed reports the debounced state of the button.
func (d *Dev) Pressed() bool {
	return d.state == held || d.state == debouncingRelease
}

// Update reads the line once and returns the press completed by this read, if
// any.
func (d *Dev) Update() Event {
	now := d.clk.Micros()
	if raw := d.p.Read() != d.unpushed; raw != d.raw {
		d.raw = raw
		d.changed = now
	}
	stable := now-d.changed >= d.debounce
	switch d.state {
	case released:
		var e Event
		if d.count > 0 && now-d.releasedAt > d.multiple {
			e = Event{Kind: SinglePress, Count: d.count}
			if d.count > 1 {
				e.Kind = MultiplePress
			}
			d.count = 0
		}
		if d.raw {
			d.state = debouncingPress
		}
		return e
	case debouncingPress:
		if !stable {
			break
		}
		if d.raw {
			d.state = held
			d.pressedAt = d.changed
		} else {
			// Glitch.
			d.state = released
		}
	case held:
		if !d.raw {
			d.state = debouncingRelease
			break
		}
		if !d.isLong && now-d.pressedAt >= d.long {
			d.isLong = true
			d.count = 0
			return Event{Kind: LongPress}
		}
	case debouncingRelease:
		if !stable {
			break
		}
		if d.raw {
			d.state = held
			break
		}
		d.state = released
		d.releasedAt = d.changed
		if d.isLong {
			d.isLong = false
			return Event{Kind: Release}
		}
		d.count++
	}
	return Event{}
}

func micros(d time.Duration) uint64 {
	return uint64(d / time.Microsecond)
}

var _ conn.Resource = &Dev{}
