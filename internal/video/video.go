// Package video implements the raster-scan counters and framebuffer output
// of a runner adapter's video space, generalizing the teacher's tia.TIA:
// horizontal/vertical dot counters free-run off the pixel clock, a VSYNC
// strobe resets the vertical counter and fires FrameDone with the
// completed frame, and VBLANK gates whether dots are actually painted.
// Where the TIA draws playfield/player/missile/ball objects from internal
// shift registers, this package instead paints from whatever byte value
// the simulated design has driven onto its VRAM/framebuffer space for the
// current dot (spec §6: the runner adapter exposes a named framebuffer
// space that a display loop reads after each FrameDone).
package video

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/colornames"
)

// Mode selects the counter geometry, mirroring tia.TIAMode's NTSC/PAL
// split.
type Mode int

const (
	ModeGeneric Mode = iota
	ModeNTSC
	ModePAL
)

const (
	ntscWidth, ntscHeight = 256, 240
	palWidth, palHeight   = 256, 288
)

// Def configures a Counters instance.
type Def struct {
	Mode      Mode
	Width     int // used only when Mode == ModeGeneric
	Height    int
	FrameDone func(*image.NRGBA)
	Debug     bool
}

// Counters is the free-running horizontal/vertical raster position plus
// the framebuffer it paints into.
type Counters struct {
	width, height int
	x, y          int
	vblank        bool
	vsyncHeld     bool

	frame      *image.NRGBA
	frameDone  func(*image.NRGBA)
	debug      bool
	clocks     int
	frameCount int
}

// DefaultPalette names eight indices against golang.org/x/image/colornames
// so a generic 8-bit runner's framebuffer writes (0-7) produce a
// recognizable picture without the simulated design having to carry its
// own RGB palette logic.
var DefaultPalette = [8]color.Color{
	colornames.Black,
	colornames.White,
	colornames.Red,
	colornames.Lime,
	colornames.Blue,
	colornames.Yellow,
	colornames.Cyan,
	colornames.Magenta,
}

// Init returns powered-on Counters.
func Init(d *Def) *Counters {
	w, h := d.Width, d.Height
	switch d.Mode {
	case ModeNTSC:
		w, h = ntscWidth, ntscHeight
	case ModePAL:
		w, h = palWidth, palHeight
	}
	if w <= 0 {
		w = ntscWidth
	}
	if h <= 0 {
		h = ntscHeight
	}
	c := &Counters{
		width:     w,
		height:    h,
		frameDone: d.FrameDone,
		debug:     d.Debug,
	}
	c.PowerOn()
	return c
}

// PowerOn resets counters and allocates a fresh framebuffer.
func (c *Counters) PowerOn() {
	c.x, c.y = 0, 0
	c.vblank = false
	c.vsyncHeld = false
	c.frame = image.NewNRGBA(image.Rect(0, 0, c.width, c.height))
}

// Paint sets the pixel at the current dot to palette index idx (masked to
// the 8-entry DefaultPalette), the equivalent of the TIA's per-dot object
// priority resolution but driven externally by whatever the simulated
// design put on the framebuffer space for this address.
func (c *Counters) Paint(idx uint8) {
	if c.vblank {
		return
	}
	if c.x >= c.width || c.y >= c.height {
		return
	}
	col := DefaultPalette[idx&0x07]
	c.frame.Set(c.x, c.y, col)
}

// SetVBlank toggles whether Paint is suppressed, mirroring the TIA's
// VBLANK register.
func (c *Counters) SetVBlank(on bool) {
	c.vblank = on
}

// Tick advances the dot counter by one pixel clock, wrapping the
// horizontal counter into the vertical one and firing FrameDone at the top
// of the frame the way the TIA's VSYNC transition does.
func (c *Counters) Tick() error {
	c.clocks++
	c.x++
	if c.x >= c.width {
		c.x = 0
		c.y++
		if c.y >= c.height {
			c.y = 0
			c.frameCount++
			if c.frameDone != nil {
				c.frameDone(c.frame)
			}
			c.frame = image.NewNRGBA(image.Rect(0, 0, c.width, c.height))
		}
	}
	return nil
}

// FrameCount returns the number of completed frames since PowerOn.
func (c *Counters) FrameCount() int { return c.frameCount }

// VBlank reports whether Paint is currently suppressed.
func (c *Counters) VBlank() bool { return c.vblank }

// Len returns the framebuffer's pixel count (width*height), the runner
// probe's "framebuffer length" diagnostic.
func (c *Counters) Len() int { return c.width * c.height }

// Vsync forces the vertical counter back to the top of frame immediately,
// as asserting VSYNC does on the real TIA.
func (c *Counters) Vsync() {
	if c.x != 0 || c.y != 0 {
		c.frameCount++
		if c.frameDone != nil {
			c.frameDone(c.frame)
		}
		c.frame = image.NewNRGBA(image.Rect(0, 0, c.width, c.height))
	}
	c.x, c.y = 0, 0
}

// Dot returns the current horizontal/vertical counter position.
func (c *Counters) Dot() (x, y int) {
	return c.x, c.y
}

// Debug returns a one-line trace when debug logging is enabled.
func (c *Counters) Debug() string {
	if !c.debug {
		return ""
	}
	return fmt.Sprintf("video dot %d,%d", c.x, c.y)
}
