// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// stepjog moves a stepper motor behind a step/direction driver with a single
// push button.
//
// A press moves by -step degrees, a double press returns to the origin, a
// triple press toggles the driver power and a long press jogs while held. The
// angular position is shown in the terminal.
//
// With -plot, the profile of a -step move is drawn to a PNG file instead and
// no hardware is accessed.
//
// Usage:
//
//	stepjog -pul GPIO17 -dir GPIO27 -ena GPIO22 -btn GPIO23 -res 16
//	stepjog -res 16 -speed 120 -accel 360 -plot profile.png
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/GermanBionicSystems/stepdrive/button"
	"github.com/GermanBionicSystems/stepdrive/gauge"
	"github.com/GermanBionicSystems/stepdrive/microstep"
	"github.com/GermanBionicSystems/stepdrive/profileplot"
	"github.com/GermanBionicSystems/stepdrive/stepdir"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// refresh is the gauge refresh period.
const refresh = 50 * time.Millisecond

func mainImpl() error {
	pulName := flag.String("pul", "GPIO17", "step line")
	dirName := flag.String("dir", "GPIO27", "direction line")
	enaName := flag.String("ena", "GPIO22", "enable line, empty when hardwired")
	btnName := flag.String("btn", "GPIO23", "button line")
	fullStep := flag.Float64("angle", 1.8, "full step angle in degrees")
	gear := flag.Float64("gear", 1, "gear ratio")
	res := flag.Int("res", 1, "microstep resolution set on the driver")
	speed := flag.Float64("speed", 60, "speed in RPM")
	accel := flag.Float64("accel", 180, "acceleration in °/s², 0 to disable ramping")
	step := flag.Float64("step", 90, "angle of a single press in degrees")
	invert := flag.Bool("invert", false, "invert the direction line")
	plot := flag.String("plot", "", "draw the profile of a single press move to this PNG file and exit")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	opts := stepdir.DefaultOpts
	opts.FullStepAngle = *fullStep
	opts.GearRatio = *gear
	opts.MicrostepResolution = *res
	opts.InvertDirection = *invert

	if *plot != "" {
		return plotProfile(*plot, &opts, *speed, *accel, *step)
	}

	if _, err := host.Init(); err != nil {
		return err
	}
	pul, err := pinByName(*pulName)
	if err != nil {
		return err
	}
	dir, err := pinByName(*dirName)
	if err != nil {
		return err
	}
	var ena gpio.PinOut
	if *enaName != "" {
		if ena, err = pinByName(*enaName); err != nil {
			return err
		}
	}
	btnPin, err := pinByName(*btnName)
	if err != nil {
		return err
	}

	dev, err := stepdir.New(pul, dir, ena, nil, &opts)
	if err != nil {
		return err
	}
	defer dev.Halt()
	if err := dev.SetSpeed(*speed, microstep.RevolutionsPerMinute); err != nil {
		return err
	}
	if err := dev.SetAcceleration(*accel, microstep.DegreesPerSecondPerSecond); err != nil {
		return err
	}
	btn, err := button.New(btnPin, nil, nil)
	if err != nil {
		return err
	}
	g, err := gauge.New(nil)
	if err != nil {
		return err
	}
	defer g.Halt()
	log.Printf("%s, %s, %g° per microstep, %s cruise", dev, btn, dev.MicrostepAngle(),
		microstep.Frequency(microstep.FromSpeed(*speed, microstep.RevolutionsPerMinute, dev.MicrostepAngle())))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer signal.Stop(c)

	j := &jogger{dev: dev, step: *step}
	last := time.Now()
	for {
		select {
		case <-c:
			return dev.SetPowerState(stepdir.Disabled)
		default:
		}

		e := btn.Update()
		if e.Kind != button.NoPress {
			log.Printf("button: %s", e)
		}
		if err := j.handle(e); err != nil {
			return err
		}
		if err := j.poll(); err != nil {
			return err
		}

		if time.Since(last) >= refresh {
			last = time.Now()
			a := math.Mod(dev.AngularPosition(microstep.Degrees), 360)
			if a < 0 {
				a += 360
			}
			if err := g.Show(a); err != nil {
				return err
			}
		}
	}
}

// jogger maps button events to motions of dev.
type jogger struct {
	dev  *stepdir.Dev
	step float64

	target  float64
	moving  bool
	jogging bool
}

// handle starts the motion requested by e. Presses other than a power
// toggle are ignored while a bounded motion is in progress.
func (j *jogger) handle(e button.Event) error {
	switch {
	case e.Kind == button.Release:
		if !j.jogging {
			return nil
		}
		j.jogging = false
		return j.dev.MoveByJogging(stepdir.Neutral)
	case e.Kind == button.MultiplePress && e.Count >= 3:
		p := stepdir.Disabled
		if j.dev.PowerState() == stepdir.Disabled {
			p = stepdir.Enabled
		}
		if err := j.dev.SetPowerState(p); err != nil {
			return err
		}
		j.moving = false
		j.jogging = false
		log.Printf("power %s", p)
	case e.Kind == button.NoPress:
	case j.moving || j.dev.Status() != stepdir.Idle:
		log.Printf("busy, %s ignored", e)
	case e.Kind == button.LongPress:
		j.jogging = true
	case e.Kind == button.SinglePress:
		j.target = j.dev.AngularPosition(microstep.Degrees) + j.step
		j.moving = true
	case e.Kind == button.MultiplePress:
		j.target = 0
		j.moving = true
	}
	return nil
}

// poll runs one iteration of the motion in progress.
func (j *jogger) poll() error {
	var err error
	switch {
	case j.jogging:
		err = j.dev.MoveByJogging(stepdir.Positive)
	case j.moving:
		var s stepdir.Status
		s, err = j.dev.MoveByAngle(j.target, microstep.Degrees, stepdir.Absolute)
		if s == stepdir.Idle {
			j.moving = false
			log.Printf("at %.2f°", j.dev.AngularPosition(microstep.Degrees))
		}
	default:
		_, err = j.dev.Poll()
	}
	if errors.Is(err, stepdir.ErrBusy) {
		log.Print(err)
		return nil
	}
	return err
}

// plotProfile draws the profile of a move by step degrees from rest.
func plotProfile(path string, opts *stepdir.Opts, speed, accel, step float64) error {
	a := microstep.Angle(opts.FullStepAngle, opts.GearRatio, float64(opts.MicrostepResolution))
	if !(a > 0) {
		return fmt.Errorf("invalid motor geometry: %g° per microstep", a)
	}
	total := math.Abs(math.Round(microstep.FromAngle(step, microstep.Degrees, a)))
	p := stepdir.NewProfile(
		uint64(total),
		microstep.Period(microstep.FromSpeed(speed, microstep.RevolutionsPerMinute, a)),
		microstep.Period(microstep.FromAcceleration(accel, microstep.DegreesPerSecondPerSecond, a)))
	po := profileplot.DefaultOpts
	po.Title = fmt.Sprintf("%g° at %g RPM, %g°/s², %s", step, speed, accel, p.Duration())
	if err := profileplot.Save(path, p, &po); err != nil {
		return err
	}
	log.Printf("wrote %s", path)
	return nil
}

func pinByName(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("invalid GPIO %q", name)
	}
	return p, nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "stepjog: %s.\n", err)
		os.Exit(1)
	}
}
