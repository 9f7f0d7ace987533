// Package runnercore wires a simulated design's bus, named memory spaces,
// I/O slots, and video counters into one runnable system, generalizing the
// teacher's atari2600.VCS: where the VCS hardcodes "CPU ticks at 1/3 the
// TIA's rate, PIA shares the CPU's clock", runnercore takes its clock
// ratios and space layout from the loaded design's ir.RunnerMeta so the
// same code drives an Apple-II-class, a standalone 6502, a Game-Boy-class,
// or a generic 8-bit runner (spec §6).
package runnercore

import (
	"fmt"
	"image"
	"log"

	"github.com/rhdl/engine/internal/cpu"
	"github.com/rhdl/engine/internal/ioslot"
	"github.com/rhdl/engine/internal/ir"
	"github.com/rhdl/engine/internal/irq"
	"github.com/rhdl/engine/internal/memmap"
	"github.com/rhdl/engine/internal/video"
)

// vblankIRQ adapts a video.Counters' VBlank state to irq.Sender, so the
// runner's interrupt bookkeeping goes through the same Raised()-style
// contract the rest of this module uses for edge/level lines rather than
// a bespoke vblank-specific accessor.
type vblankIRQ struct{ v *video.Counters }

func (s vblankIRQ) Raised() bool { return s.v != nil && s.v.VBlank() }

// keyReadyIRQ adapts an ioslot.Slot's sticky strobe flag to irq.Sender,
// the same role the teacher's pia6532 PA7 edge flag plays in signaling
// NMI-class attention on the real 6532.
type keyReadyIRQ struct{ slot *ioslot.Slot }

func (s keyReadyIRQ) Raised() bool { return s.slot != nil && s.slot.StrobeRaised() }

// Kind mirrors ir.RunnerMeta.Kind as a typed enum once resolved.
type Kind int

const (
	KindGeneric8Bit Kind = iota
	KindApple2Class
	Kind6502Standalone
	KindGameBoyClass
)

func kindFromString(s string) (Kind, error) {
	switch s {
	case "", "generic8bit":
		return KindGeneric8Bit, nil
	case "apple2":
		return KindApple2Class, nil
	case "6502":
		return Kind6502Standalone, nil
	case "gameboy":
		return KindGameBoyClass, nil
	}
	return 0, fmt.Errorf("runnercore: unknown runner kind %q", s)
}

// Def configures a System.
type Def struct {
	Backend cpu.Backend

	// Keyboard feeds an Apple-II-class runner's strobed keyboard slot.
	Keyboard ioslot.Def
	// FrameDone is called once per completed video frame (Apple-II-class
	// and Game-Boy-class runners only).
	FrameDone func(*image.NRGBA)

	Debug bool
}

// System is a fully wired runner: the simulated design's bus, its named
// memory spaces, and whichever peripherals its Kind declares.
type System struct {
	kind    Kind
	backend cpu.Backend
	bus     *cpu.Bus
	video   *video.Counters
	kbd     *ioslot.Slot
	spkr    *ioslot.Slot

	vblankIRQ irq.Sender
	kbdIRQ    irq.Sender

	cpuClock   int
	clockDiv   int
	debug      bool
	lcdcEnable bool
}

// Init builds and powers on a System from an already-loaded backend
// (interp.Engine or a netlist.Lane) whose document declares runner
// metadata.
func Init(d *Def) (*System, error) {
	doc := d.Backend.Document()
	if !doc.Runner.Enabled {
		return nil, fmt.Errorf("runnercore: loaded document has no runner adapter declared")
	}
	kind, err := kindFromString(doc.Runner.Kind)
	if err != nil {
		return nil, err
	}

	banks, err := buildBanks(doc.Runner.Spaces)
	if err != nil {
		return nil, err
	}

	bus, err := cpu.New(&cpu.Def{Backend: d.Backend, Banks: banks, Debug: d.Debug})
	if err != nil {
		return nil, fmt.Errorf("runnercore: bus setup: %w", err)
	}

	s := &System{kind: kind, backend: d.Backend, bus: bus, debug: d.Debug, clockDiv: 1, lcdcEnable: true}

	switch kind {
	case KindApple2Class:
		s.clockDiv = 1
		kbd, err := ioslot.Init(&d.Keyboard)
		if err != nil {
			return nil, fmt.Errorf("runnercore: keyboard slot: %w", err)
		}
		s.kbd = kbd
		s.kbdIRQ = keyReadyIRQ{slot: kbd}
		s.video = video.Init(&video.Def{Mode: video.ModeNTSC, FrameDone: d.FrameDone, Debug: d.Debug})
		s.vblankIRQ = vblankIRQ{v: s.video}
	case Kind6502Standalone:
		s.clockDiv = 1
		spkr, err := ioslot.Init(&ioslot.Def{Edge: "positive", Debug: d.Debug})
		if err != nil {
			return nil, fmt.Errorf("runnercore: speaker slot: %w", err)
		}
		s.spkr = spkr
	case KindGameBoyClass:
		s.clockDiv = 4
		s.video = video.Init(&video.Def{Mode: video.ModeGeneric, Width: 160, Height: 144, FrameDone: d.FrameDone, Debug: d.Debug})
		s.vblankIRQ = vblankIRQ{v: s.video}
	case KindGeneric8Bit:
		s.clockDiv = 1
	}

	return s, nil
}

func buildBanks(spaces []ir.RunnerSpace) ([]memmap.Bank, error) {
	banks := make([]memmap.Bank, len(spaces))
	for i, sp := range spaces {
		if sp.Size <= 0 || sp.Size&(sp.Size-1) != 0 {
			return nil, fmt.Errorf("runnercore: space %d size %d is not a positive power of two", i, sp.Size)
		}
		if sp.ReadOnly {
			b, err := memmap.NewROM(sp.Size, nil, nil)
			if err != nil {
				return nil, err
			}
			banks[i] = b
			continue
		}
		b, err := memmap.NewRAM(sp.Size, nil, false)
		if err != nil {
			return nil, err
		}
		banks[i] = b
	}
	return banks, nil
}

// Bus returns the bus adapter, for callers that need direct bank access
// (image loading, probe operations).
func (s *System) Bus() *cpu.Bus { return s.bus }

// Kind returns the runner kind resolved at Init.
func (s *System) Kind() Kind { return s.kind }

// Video returns the video counters, or nil for runner kinds with no video
// space (Kind6502Standalone, KindGeneric8Bit).
func (s *System) Video() *video.Counters { return s.video }

// VBlankIRQ reports the vertical-blank interrupt line, or false for a
// runner kind with no video space.
func (s *System) VBlankIRQ() bool {
	if s.vblankIRQ == nil {
		return false
	}
	return s.vblankIRQ.Raised()
}

// IRQFlags packs every interrupt line this runner kind exposes into one
// bitmask (bit 0: vblank, bit 1: keyboard-ready), the runner probe's
// "IRQ flags" diagnostic.
func (s *System) IRQFlags() uint64 {
	var flags uint64
	if s.vblankIRQ != nil && s.vblankIRQ.Raised() {
		flags |= 1
	}
	if s.kbdIRQ != nil && s.kbdIRQ.Raised() {
		flags |= 2
	}
	return flags
}

// SignalRead peeks a named signal on the underlying design directly,
// bypassing the bus decode, the runner probe's "named signal read"
// diagnostic. ok is false if the document declares no such signal.
func (s *System) SignalRead(name string) (uint64, bool) {
	idx, ok := s.backend.Document().SignalByName(name)
	if !ok {
		return 0, false
	}
	return s.backend.Peek(idx), true
}

// HorizontalDividerCounter returns the system clock divider's current
// phase (0..clockDiv-1), the runner probe's "horizontal divider counter"
// diagnostic for the Game-Boy-class runner's 1/4-rate video clocking.
func (s *System) HorizontalDividerCounter() int { return s.cpuClock }

// LCDCEnabled reports the Game-Boy-class runner's LCD-enable latch.
func (s *System) LCDCEnabled() bool { return s.lcdcEnable }

// ResetLCDState clears the LCD-enable latch and rewinds the video
// counters to the top of frame, the façade's runner control op "reset LCD
// state".
func (s *System) ResetLCDState() {
	s.lcdcEnable = false
	if s.video != nil {
		s.video.Vsync()
	}
}

// SetLCDCEnabled sets the LCD-enable latch. No bus write reaches the
// latch; only a direct call to this method sets it.
func (s *System) SetLCDCEnabled(on bool) { s.lcdcEnable = on }

// ZeroSpeakerToggleCount clears the speaker slot's edge counter, the
// façade's runner control op "clear speaker toggle count".
func (s *System) ZeroSpeakerToggleCount() {
	if s.spkr != nil {
		s.spkr.ResetStrobeCount()
	}
}

// LoadImage copies data into the space of the given kind at addr, the way
// convertprg stitches a PRG file's address-prefixed payload into a flat
// image: the first two bytes of a raw PRG-style image are a little-endian
// load address, everything else is copied starting there; LoadImage here
// takes addr explicitly instead, leaving that convention to the façade's
// blob-loading layer. Data that runs past the end of the bank wraps
// around to its start (see the banks' LoadAt); no warning is logged for
// it. A missing or non-loadable bank drops the image with a log line.
func (s *System) LoadImage(kind ir.RunnerSpaceKind, addr uint16, data []uint8) {
	bank := s.bus.BankByKind(kind)
	if bank == nil {
		log.Printf("runnercore: no bank for space kind %d, image dropped", kind)
		return
	}
	type loader interface {
		LoadAt(addr uint16, src []uint8)
	}
	l, ok := bank.(loader)
	if !ok {
		log.Printf("runnercore: bank for space kind %d does not support image loading", kind)
		return
	}
	l.LoadAt(addr, data)
}

// SetKeyboardInput feeds a byte into the Apple-II-class keyboard slot and
// strobes it, the caller-visible half of the edge-triggered keyboard-ready
// convention carried over from pia6532's PA7 edge detection.
func (s *System) SetKeyboardInput(val uint8) {
	if s.kbd == nil {
		return
	}
	s.kbd.WriteOutput(val | ioslot.StrobeMask)
}

// Tick runs one system clock: the bus (and therefore the simulated
// design) always advances; video and I/O slots that run at the same rate
// as the bus tick alongside it, while ones the Kind divides down (Game
// Boy video at 1/4 rate) only tick when the divider reaches zero.
func (s *System) Tick() error {
	s.cpuClock = (s.cpuClock + 1) % s.clockDiv
	divided := s.cpuClock == 0

	if s.debug {
		if d := s.bus.Debug(); d != "" {
			log.Printf("BUS: %s", d)
		}
	}

	if s.video != nil && divided {
		if err := s.video.Tick(); err != nil {
			return fmt.Errorf("runnercore: video tick: %w", err)
		}
	}

	if s.kbd != nil {
		if err := s.kbd.Tick(); err != nil {
			return fmt.Errorf("runnercore: keyboard tick: %w", err)
		}
	}
	if s.spkr != nil {
		if err := s.spkr.Tick(); err != nil {
			return fmt.Errorf("runnercore: speaker tick: %w", err)
		}
	}
	if err := s.bus.Tick(); err != nil {
		return err
	}
	if s.kbd != nil {
		s.kbd.TickDone()
	}
	if s.spkr != nil {
		s.spkr.TickDone()
	}
	s.bus.TickDone()
	return nil
}

// SpeakerToggleCount returns the number of speaker-strobe edges observed
// since power-on, the 6502-standalone runner's stand-in for an audio
// output (a real speaker driver would integrate these into a waveform;
// that integration is outside this module's scope per spec non-goals on
// audio synthesis).
func (s *System) SpeakerToggleCount() int {
	if s.spkr == nil {
		return 0
	}
	return s.spkr.StrobeCount()
}

// RunMode selects between the two batched-execution modes of spec §4.6.
type RunMode int

const (
	// RunBasic executes exactly the requested cycle count.
	RunBasic RunMode = iota
	// RunFull additionally rounds up to an integer number of completed
	// video frames (runner kinds with no video space treat this the same
	// as RunBasic).
	RunFull
)

// RunResult reports what a batched Run call actually did.
type RunResult struct {
	CyclesRun       int
	TextPageChanged bool
	KeyConsumed     bool
	SpeakerDelta    int
}

// textPageSpace names the space Run watches for "text page changed",
// per runner kind: the Apple-II-class runner's text page lives in main
// RAM, the Game-Boy-class runner's in VRAM; the other kinds have no
// concept of a text page.
func (s *System) textPageSpace() (ir.RunnerSpaceKind, bool) {
	switch s.kind {
	case KindApple2Class:
		return ir.SpaceMain, true
	case KindGameBoyClass:
		return ir.SpaceVRAM, true
	}
	return 0, false
}

// Run executes the adapter's inner loop for up to n cycles without a
// façade call per cycle (spec §4.6 "Batched execution"): one cycle is
// drive address/control lines -> service the read or write -> advance the
// design's clock. A pending keyboard byte is latched into the keyboard
// slot before the first cycle when keyReady is set; KeyConsumed reports
// whether the keyboard slot's strobe latched during the run. That strobe
// comes from the host-side write of kbdByte committing on TickDone; the
// keyboard slot is not on the bus decode, so it does not show whether the
// design read the byte. In
// RunFull mode the adapter keeps ticking past n until the video counters
// complete the frame in progress, so callers always get a whole picture.
func (s *System) Run(n int, kbdByte uint8, keyReady bool, mode RunMode) (RunResult, error) {
	var res RunResult

	if keyReady {
		s.SetKeyboardInput(kbdByte)
	}

	spaceKind, haveTextPage := s.textPageSpace()
	var startWrites int
	if haveTextPage {
		startWrites = s.bus.WriteCount(spaceKind)
	}
	startSpeaker := s.SpeakerToggleCount()
	startFrame := 0
	if s.video != nil {
		startFrame = s.video.FrameCount()
	}

	run := func() error {
		if err := s.Tick(); err != nil {
			return err
		}
		res.CyclesRun++
		if s.kbd != nil && s.kbd.StrobeRaised() {
			res.KeyConsumed = true
			s.kbd.ClearStrobe()
		}
		return nil
	}

	for i := 0; i < n; i++ {
		if err := run(); err != nil {
			return res, err
		}
	}
	if mode == RunFull && s.video != nil {
		for s.video.FrameCount() == startFrame {
			if err := run(); err != nil {
				return res, err
			}
		}
	}

	if haveTextPage {
		res.TextPageChanged = s.bus.WriteCount(spaceKind) != startWrites
	}
	res.SpeakerDelta = s.SpeakerToggleCount() - startSpeaker
	return res, nil
}
