// Package ioslot implements a small I/O register block for a runner
// adapter, generalized from the teacher's pia6532.Chip port/timer
// registers. It has no address decode of its own; its owner calls its
// methods directly. The registers are generic: an 8-bit input port, an 8-bit output
// port, and a single edge-triggered strobe bit (keyboard strobe on an
// Apple-II-class runner, the speaker toggle on a 6502-standalone harness),
// rather than the 6532's fixed port-A/port-B/timer layout.
package ioslot

import (
	"fmt"

	"github.com/rhdl/engine/internal/io"
)

// edgeType mirrors the teacher's kEDGE_POSITIVE/kEDGE_NEGATIVE enumeration,
// generalized to whichever single bit of the output port is wired to the
// strobe.
type edgeType int

const (
	edgeUnset edgeType = iota
	edgePositive
	edgeNegative
)

// StrobeMask selects which output-port bit the slot watches for edges.
const StrobeMask = uint8(0x80)

// Slot is one I/O register block: an input port snapshot, an output port
// latch, and edge-triggered strobe state, reached through method calls
// rather than a decoded register window.
type Slot struct {
	clocks   int
	debug    bool
	tickDone bool

	input  io.Port8
	output uint8
	shadow uint8

	holdOutput   uint8
	edgeStyle    edgeType
	strobeLatch  bool // true once an edge has been observed since last clear
	strobeCount  int  // total edges observed, used by speaker-toggle style slots
}

// Def configures a Slot at construction.
type Def struct {
	Input io.Port8
	Edge  string // "positive" or "negative"; defaults to positive
	Debug bool
}

// UnknownEdgeError reports a Def.Edge value other than "positive"/"negative".
type UnknownEdgeError struct {
	Value string
}

func (e UnknownEdgeError) Error() string {
	return fmt.Sprintf("ioslot: unknown edge style %q", e.Value)
}

// Init returns a powered-on Slot.
func Init(d *Def) (*Slot, error) {
	style := edgePositive
	switch d.Edge {
	case "", "positive":
		style = edgePositive
	case "negative":
		style = edgeNegative
	default:
		return nil, UnknownEdgeError{Value: d.Edge}
	}
	s := &Slot{
		input:     d.Input,
		debug:     d.Debug,
		edgeStyle: style,
		tickDone:  true,
	}
	s.PowerOn()
	return s, nil
}

// PowerOn resets all latched state.
func (s *Slot) PowerOn() {
	s.output = 0
	s.shadow = 0
	s.holdOutput = 0
	s.strobeLatch = false
	s.strobeCount = 0
}

// ReadInput returns the current input port snapshot, masked to valid bits.
func (s *Slot) ReadInput() uint8 {
	if s.input == nil {
		return 0
	}
	return s.input.Input()
}

// ReadOutput returns the most recently committed output latch.
func (s *Slot) ReadOutput() uint8 {
	return s.output
}

// WriteOutput stages a new output value to take effect on TickDone, the way
// pia6532's port writes land in a shadow register until the next tick
// boundary so every chip sharing a clock sees a consistent view mid-cycle.
func (s *Slot) WriteOutput(val uint8) {
	s.shadow = val
}

// StrobeRaised reports whether an edge has been observed on the strobe bit
// since the last ClearStrobe, mirroring pia6532.Chip.Raised's "sticky until
// read" interrupt-flag convention.
func (s *Slot) StrobeRaised() bool {
	return s.strobeLatch
}

// ClearStrobe clears the sticky edge flag (called on a register read that
// acknowledges it, the way reading INT on the 6532 clears edgeInterrupt).
func (s *Slot) ClearStrobe() {
	s.strobeLatch = false
}

// StrobeCount returns the total number of edges seen since power-on, used
// by a speaker slot where every edge is a half-cycle of output, not just a
// one-shot flag.
func (s *Slot) StrobeCount() int {
	return s.strobeCount
}

// ResetStrobeCount zeroes the edge counter without disturbing the sticky
// flag or any latched output, the façade's runner control op "clear
// speaker toggle count".
func (s *Slot) ResetStrobeCount() {
	s.strobeCount = 0
}

func (s *Slot) edgeDetect(newOut, oldOut uint8) {
	switch s.edgeStyle {
	case edgePositive:
		if (newOut&StrobeMask) != 0 && (oldOut&StrobeMask) == 0 {
			s.strobeLatch = true
			s.strobeCount++
		}
	case edgeNegative:
		if (newOut&StrobeMask) == 0 && (oldOut&StrobeMask) != 0 {
			s.strobeLatch = true
			s.strobeCount++
		}
	}
}

// Tick advances the slot by one clock, mirroring the Tick/TickDone split of
// the teacher's chips: Tick samples, TickDone commits.
func (s *Slot) Tick() error {
	s.clocks++
	if !s.tickDone {
		return fmt.Errorf("ioslot: Tick called without a prior TickDone")
	}
	s.tickDone = false
	return nil
}

// TickDone commits the staged output write and runs edge detection against
// the previous output value.
func (s *Slot) TickDone() {
	old := s.holdOutput
	s.output = s.shadow
	s.holdOutput = s.output
	s.edgeDetect(s.output, old)
	s.tickDone = true
}

// Debug returns a one-line trace of slot state when Debug is enabled,
// matching the Debug()-gated log.Printf convention used throughout the
// chip packages; empty when debug is off so callers can log.Printf it
// unconditionally without an extra guard.
func (s *Slot) Debug() string {
	if !s.debug {
		return ""
	}
	return fmt.Sprintf("%.6d output: %.2X strobes: %d", s.clocks, s.output, s.strobeCount)
}
