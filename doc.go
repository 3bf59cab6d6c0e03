// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package stepdrive is a container for the packages driving stepper motors
// through step/direction drivers.
//
// stepdir is the motion engine, microstep converts between microsteps and
// real world units and button classifies the presses of a push button.
// gauge and profileplot help bringing up a motor; cmd/stepjog ties them
// together.
package stepdrive
