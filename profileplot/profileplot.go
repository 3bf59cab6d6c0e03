// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package profileplot draws the speed of a motion profile against the
// microsteps it covers.
//
// It is meant to check the acceleration settings of a motor before powering
// it: the plot shows the acceleration, cruise and deceleration segments with
// their length and the peak speed.
package profileplot

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/GermanBionicSystems/stepdrive/stepdir"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

// Opts represents the options available for the plot.
type Opts struct {
	Width    int
	Height   int
	FontSize float64
	// Title is drawn above the plot when not empty.
	Title string
}

// DefaultOpts is a plot readable on a laptop screen.
var DefaultOpts = Opts{
	Width:    640,
	Height:   320,
	FontSize: 12,
}

// Margins around the plot area, in pixels.
const (
	left   = 70
	right  = 20
	top    = 30
	bottom = 40
)

// Render draws the profile.
//
// opts may be nil to use DefaultOpts.
func Render(p stepdir.Profile, opts *Opts) (image.Image, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.Width <= left+right || opts.Height <= top+bottom {
		return nil, fmt.Errorf("profileplot: image %dx%d is too small", opts.Width, opts.Height)
	}
	if p.Microsteps == 0 {
		return nil, errors.New("profileplot: empty profile")
	}
	speeds, steps, err := sample(p, opts.Width-left-right)
	if err != nil {
		return nil, err
	}
	peak := 0.
	for _, s := range speeds {
		if s > peak {
			peak = s
		}
	}

	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("profileplot: %w", err)
	}
	face := truetype.NewFace(f, &truetype.Options{Size: opts.FontSize})
	defer face.Close()

	w := float64(opts.Width - left - right)
	h := float64(opts.Height - top - bottom)
	x := func(i uint64) float64 {
		return left + w*float64(i)/float64(p.Microsteps)
	}
	y := func(s float64) float64 {
		return top + h*(1-s/peak)
	}

	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFontFace(face)

	// Segment boundaries.
	dc.SetRGB(0.6, 0.6, 0.6)
	dc.SetLineWidth(1)
	dc.SetDash(4, 4)
	for _, i := range []uint64{p.Accelerate, p.Accelerate + p.Cruise} {
		if i == 0 || i == p.Microsteps {
			continue
		}
		dc.DrawLine(x(i), top, x(i), top+h)
		dc.Stroke()
	}
	dc.SetDash()

	// Axes.
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawLine(left, top, left, top+h)
	dc.DrawLine(left, top+h, left+w, top+h)
	dc.Stroke()
	dc.DrawStringAnchored("0", left-6, top+h, 1, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%.0f", peak), left-6, top, 1, 0.5)
	dc.DrawStringAnchored("microsteps/s", left-6, top+h/2, 1, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%d", p.Microsteps), left+w, top+h+6, 1, 1)
	dc.DrawStringAnchored(fmt.Sprintf("accelerate %d, cruise %d, decelerate %d microsteps", p.Accelerate, p.Cruise, p.Decelerate), left+w/2, top+h+6, 0.5, 1)
	if opts.Title != "" {
		dc.DrawStringAnchored(opts.Title, left+w/2, top/2, 0.5, 0.5)
	}

	// Speed curve.
	dc.SetRGB(0, 0.3, 0.9)
	dc.SetLineWidth(2)
	for k, s := range speeds {
		dc.LineTo(x(steps[k]), y(s))
	}
	dc.Stroke()
	return dc.Image(), nil
}

// Encode draws the profile as a PNG to w.
func Encode(w io.Writer, p stepdir.Profile, opts *Opts) error {
	img, err := Render(p, opts)
	if err != nil {
		return err
	}
	dc := gg.NewContextForImage(img)
	return dc.EncodePNG(w)
}

// Save draws the profile as a PNG file.
func Save(path string, p stepdir.Profile, opts *Opts) error {
	img, err := Render(p, opts)
	if err != nil {
		return err
	}
	return gg.SavePNG(path, img)
}

// sample returns the speed in microsteps/s of at most n microsteps evenly
// spread over the profile, the last microstep included.
func sample(p stepdir.Profile, n int) ([]float64, []uint64, error) {
	if uint64(n) > p.Microsteps {
		n = int(p.Microsteps)
	}
	speeds := make([]float64, 0, n+1)
	steps := make([]uint64, 0, n+1)
	add := func(i uint64) error {
		period := p.Period(i)
		if !(period > 0) {
			return errors.New("profileplot: profile has no speed")
		}
		speeds = append(speeds, 1e6/period)
		steps = append(steps, i)
		return nil
	}
	for k := 0; k < n; k++ {
		if err := add(uint64(float64(k) * float64(p.Microsteps) / float64(n))); err != nil {
			return nil, nil, err
		}
	}
	if last := p.Microsteps - 1; steps[len(steps)-1] != last {
		if err := add(last); err != nil {
			return nil, nil, err
		}
	}
	return speeds, steps, nil
}
