// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gauge shows an angular position in the terminal as a 1D LED strip,
// using ANSI color codes.
//
// The strip spans a range of positions. Cells before the position are lit,
// the cell at the position is the marker. Dev also implements display.Drawer
// so any 1D animation can be previewed on it.
package gauge

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
)

// Opts represents the options available for the gauge.
type Opts struct {
	// X is the number of cells of the strip.
	X int
	// Min and Max are the positions shown at the first and last cells.
	Min, Max float64
	// Unit is printed after the position.
	Unit string

	Palette    *ansi256.Palette
	Fill       color.NRGBA
	Marker     color.NRGBA
	Background color.NRGBA

	// W defaults to stdout.
	W io.Writer

	_ struct{}
}

// DefaultOpts is a 36 cells strip covering one turn in degrees.
var DefaultOpts = Opts{
	X:          36,
	Min:        0,
	Max:        360,
	Unit:       "°",
	Fill:       color.NRGBA{0x00, 0x80, 0xFF, 0xFF},
	Marker:     color.NRGBA{0xFF, 0xA0, 0x00, 0xFF},
	Background: color.NRGBA{0x20, 0x20, 0x20, 0xFF},
}

// Dev is a position gauge that outputs to the console.
type Dev struct {
	w       io.Writer
	l       int
	palette ansi256.Palette
	opts    Opts

	pixels []byte
	label  string
	buf    bytes.Buffer
}

// New returns a Dev that displays at the console.
//
// opts may be nil to use DefaultOpts.
func New(opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.X <= 0 {
		return nil, fmt.Errorf("gauge: invalid width %d", opts.X)
	}
	if !(opts.Max > opts.Min) || math.IsInf(opts.Max-opts.Min, 0) {
		return nil, fmt.Errorf("gauge: invalid range [%v, %v]", opts.Min, opts.Max)
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.W
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	return &Dev{
		w:       w,
		l:       opts.X,
		palette: *p,
		opts:    *opts,
		pixels:  make([]byte, 3*opts.X),
	}, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("Gauge{%d, [%g, %g]}", d.l, d.opts.Min, d.opts.Max)
}

// Halt implements conn.Resource.
//
// It resets the terminal colors and moves to the next line so the prompt is
// not corrupted.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\n\033[0m"))
	return err
}

// Show draws the strip for position v.
//
// Positions out of the range pin the marker to the first or last cell.
func (d *Dev) Show(v float64) error {
	m := d.Cell(v)
	for i := 0; i < d.l; i++ {
		c := d.opts.Background
		switch {
		case i < m:
			c = d.opts.Fill
		case i == m:
			c = d.opts.Marker
		}
		d.pixels[3*i] = c.R
		d.pixels[3*i+1] = c.G
		d.pixels[3*i+2] = c.B
	}
	d.label = fmt.Sprintf("%8.2f%s", v, d.opts.Unit)
	_, err := d.refresh()
	return err
}

// Cell returns the index of the cell showing position v.
func (d *Dev) Cell(v float64) int {
	f := (v - d.opts.Min) / (d.opts.Max - d.opts.Min)
	if !(f > 0) {
		return 0
	}
	if f >= 1 {
		return d.l - 1
	}
	return int(math.Round(f * float64(d.l-1)))
}

// Write accepts a stream of raw RGB pixels and writes it to the console.
func (d *Dev) Write(pixels []byte) (int, error) {
	if len(pixels)%3 != 0 {
		return 0, errors.New("gauge: invalid RGB stream length")
	}
	copy(d.pixels, pixels)
	d.label = ""
	return d.refresh()
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rectangle{Max: image.Point{X: d.l, Y: 1}}
}

// Draw implements display.Drawer.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(d.Bounds())
	srcR := src.Bounds()
	srcR.Min = srcR.Min.Add(sp)
	if dX := r.Dx(); dX < srcR.Dx() {
		srcR.Max.X = srcR.Min.X + dX
	}
	if dY := r.Dy(); dY < srcR.Dy() {
		srcR.Max.Y = srcR.Min.Y + dY
	}
	deltaX3 := 3 * (r.Min.X - srcR.Min.X)
	for sX := srcR.Min.X; sX < srcR.Max.X; sX++ {
		c := color.NRGBAModel.Convert(src.At(sX, srcR.Min.Y)).(color.NRGBA)
		dX3 := 3*sX + deltaX3
		d.pixels[dX3] = c.R
		d.pixels[dX3+1] = c.G
		d.pixels[dX3+2] = c.B
	}
	d.label = ""
	_, err := d.refresh()
	return err
}

func (d *Dev) refresh() (int, error) {
	// Reuse the buffer to not allocate on every refresh.
	d.buf.Reset()
	_, _ = d.buf.WriteString("\r\033[0m")
	for i := 0; i < len(d.pixels)/3; i++ {
		c := color.NRGBA{d.pixels[3*i], d.pixels[3*i+1], d.pixels[3*i+2], 255}
		_, _ = io.WriteString(&d.buf, d.palette.Block(c))
	}
	_, _ = d.buf.WriteString("\033[0m ")
	_, _ = d.buf.WriteString(d.label)
	_, err := d.buf.WriteTo(d.w)
	return len(d.pixels), err
}

var _ display.Drawer = &Dev{}
var _ fmt.Stringer = &Dev{}
