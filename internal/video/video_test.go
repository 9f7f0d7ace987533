package video

import (
	"image"
	"testing"
)

func TestTickWrapsHorizontalIntoVertical(t *testing.T) {
	c := Init(&Def{Mode: ModeGeneric, Width: 4, Height: 3})
	for i := 0; i < 4; i++ {
		if err := c.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	x, y := c.Dot()
	if x != 0 || y != 1 {
		t.Fatalf("after 4 ticks on a 4-wide raster: dot=(%d,%d) want (0,1)", x, y)
	}
}

func TestFrameDoneFiresAtBottomRightAndVblankGatesPaint(t *testing.T) {
	var frames int
	var lastFrame *image.NRGBA
	c := Init(&Def{Mode: ModeGeneric, Width: 2, Height: 2, FrameDone: func(f *image.NRGBA) {
		frames++
		lastFrame = f
	}})

	for i := 0; i < 4; i++ {
		c.Tick()
	}
	if frames != 1 {
		t.Fatalf("frames=%d want 1 after one full 2x2 raster", frames)
	}
	if lastFrame == nil {
		t.Fatal("FrameDone callback received a nil frame")
	}
	if got := c.FrameCount(); got != 1 {
		t.Fatalf("FrameCount=%d want 1", got)
	}

	c.SetVBlank(true)
	c.Paint(1)
	x, y := c.Dot()
	if r, g, b, a := c.frame.At(x, y).RGBA(); r != 0 && g != 0 && b != 0 && a != 0 {
		t.Fatal("Paint during VBLANK should not touch the framebuffer")
	}
}

func TestVsyncForcesFrameBoundary(t *testing.T) {
	var frames int
	c := Init(&Def{Mode: ModeGeneric, Width: 4, Height: 4, FrameDone: func(*image.NRGBA) { frames++ }})
	c.Tick()
	c.Tick()
	c.Vsync()
	x, y := c.Dot()
	if x != 0 || y != 0 {
		t.Fatalf("after Vsync: dot=(%d,%d) want (0,0)", x, y)
	}
	if frames != 1 {
		t.Fatalf("frames=%d want 1 (Vsync mid-frame should still fire FrameDone)", frames)
	}
}

func TestLenReportsPixelCount(t *testing.T) {
	c := Init(&Def{Mode: ModeGeneric, Width: 10, Height: 7})
	if got := c.Len(); got != 70 {
		t.Fatalf("Len=%d want 70", got)
	}
}

func TestNTSCModeUsesFixedGeometry(t *testing.T) {
	c := Init(&Def{Mode: ModeNTSC, Width: 999, Height: 999})
	if got := c.Len(); got != ntscWidth*ntscHeight {
		t.Fatalf("NTSC mode should ignore Width/Height overrides, got Len=%d", got)
	}
}
