// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"testing"
	"time"

	"github.com/GermanBionicSystems/stepdrive/button"
	"github.com/GermanBionicSystems/stepdrive/clock/clocktest"
	"github.com/GermanBionicSystems/stepdrive/microstep"
	"github.com/GermanBionicSystems/stepdrive/stepdir"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// newTestJogger moves by 9°, i.e. 5 full steps of a 1.8° motor.
func newTestJogger(t *testing.T) (*jogger, *clocktest.Fake) {
	t.Helper()
	clk := &clocktest.Fake{}
	dev, err := stepdir.New(&gpiotest.Pin{N: "PUL"}, &gpiotest.Pin{N: "DIR"}, nil, clk, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.SetSpeed(1000, microstep.MicrostepsPerSecond); err != nil {
		t.Fatal(err)
	}
	return &jogger{dev: dev, step: 9}, clk
}

// finish polls until the bounded motion completes.
func finish(t *testing.T, j *jogger, clk *clocktest.Fake) {
	t.Helper()
	for i := 0; j.moving; i++ {
		if i == 1000 {
			t.Fatal("motion never completed")
		}
		clk.Advance(time.Millisecond)
		if err := j.poll(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestJoggerPresses(t *testing.T) {
	j, clk := newTestJogger(t)
	if err := j.handle(button.Event{Kind: button.SinglePress, Count: 1}); err != nil {
		t.Fatal(err)
	}
	finish(t, j, clk)
	if got := j.dev.Position(); got != 5 {
		t.Fatalf("Position() = %d after a press, want 5", got)
	}
	if err := j.handle(button.Event{Kind: button.SinglePress, Count: 1}); err != nil {
		t.Fatal(err)
	}
	finish(t, j, clk)
	if got := j.dev.Position(); got != 10 {
		t.Fatalf("Position() = %d after two presses, want 10", got)
	}
	if err := j.handle(button.Event{Kind: button.MultiplePress, Count: 2}); err != nil {
		t.Fatal(err)
	}
	finish(t, j, clk)
	if got := j.dev.Position(); got != 0 {
		t.Fatalf("Position() = %d after a double press, want 0", got)
	}
	if err := j.handle(button.Event{Kind: button.MultiplePress, Count: 3}); err != nil {
		t.Fatal(err)
	}
	if j.dev.PowerState() != stepdir.Disabled {
		t.Fatalf("PowerState() = %s after a triple press", j.dev.PowerState())
	}
}

func TestJoggerLongPressDuringMove(t *testing.T) {
	j, clk := newTestJogger(t)
	if err := j.handle(button.Event{Kind: button.SinglePress, Count: 1}); err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Millisecond)
	if err := j.poll(); err != nil {
		t.Fatal(err)
	}
	// Held while moving: the bounded motion carries on.
	if err := j.handle(button.Event{Kind: button.LongPress}); err != nil {
		t.Fatal(err)
	}
	if j.jogging {
		t.Fatal("jogging started during a bounded motion")
	}
	finish(t, j, clk)
	if got := j.dev.Position(); got != 5 {
		t.Fatalf("Position() = %d, want 5", got)
	}
	if err := j.handle(button.Event{Kind: button.Release}); err != nil {
		t.Fatal(err)
	}

	// Held while idle: jog until released.
	if err := j.handle(button.Event{Kind: button.LongPress}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		clk.Advance(time.Millisecond)
		if err := j.poll(); err != nil {
			t.Fatal(err)
		}
	}
	if got := j.dev.Position(); got != 8 {
		t.Fatalf("Position() = %d after jogging, want 8", got)
	}
	if err := j.handle(button.Event{Kind: button.Release}); err != nil {
		t.Fatal(err)
	}
	if j.jogging {
		t.Fatal("still jogging after release")
	}
}
