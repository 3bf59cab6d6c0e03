// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package stepdir drives a stepper motor through a step/direction/enable
// driver such as the TB6600, DRV8825 or A4988.
//
// The driver is a polled state machine. Call MoveByAngle, MoveByJogging or
// Poll repeatedly from the control loop; each call evaluates the motion
// status once and emits at most one step pulse when the time since the
// previous pulse reaches the current microstep period. Nothing blocks except
// the settle delays of a few microseconds after changing the step, direction
// or enable lines.
//
// Motions are shaped with a constant acceleration: a trapezoidal profile when
// the configured speed can be reached within the requested distance, a
// triangular one otherwise. See Profile.
//
// A Dev is not safe for concurrent use. Multiple Dev instances are
// independent.
//
// # Datasheets
//
// TB6600: https://www.dfrobot.com/product-1547.html
//
// DRV8825: https://www.ti.com/lit/ds/symlink/drv8825.pdf
//
// A4988: https://www.pololu.com/file/0J450/a4988_DMOS_microstepping_driver_with_translator.pdf
package stepdir
