package aotcompiler

import (
	"fmt"
	"plugin"

	"github.com/rhdl/engine/internal/ir"
)

// Backend is the interface every generated Engine<prefix> type implements.
// The generated source imports this package specifically to declare its
// constructor's return type as Backend, so Load's plugin.Lookup type
// assertion below matches exactly regardless of the plugin's concrete
// type name (the Go plugin ABI requires an exact type match, not
// just a structural one, so this shared interface has to live somewhere
// both sides import — here, rather than duplicated in the generated
// source and the host).
type Backend interface {
	Peek(idx int) uint64
	Poke(idx int, val uint64)
	Evaluate()
	Tick() error
	SetPrevClock(idx int)
	ResetMemories()
}

// CompiledEngine is the reflection-free surface Load exposes over a
// plugin's generated Engine<prefix> type, resolved once via
// plugin.Lookup so every later call is a direct method call rather than
// another symbol lookup.
type CompiledEngine struct {
	doc           *ir.Document
	peek          func(int) uint64
	poke          func(int, uint64)
	evaluate      func()
	tick          func() error
	setPrevClock  func(int)
	resetMemories func()
}

// Load opens the plugin at soPath and resolves the constructor exported as
// NewEngine<prefix>, binding its methods through small closures so callers
// see the same Peek/Poke/Evaluate/Tick/Document shape as interp.Engine and
// netlist.Lane (cpu.Backend).
func Load(soPath string, doc *ir.Document, prefix string) (*CompiledEngine, error) {
	p, err := plugin.Open(soPath)
	if err != nil {
		return nil, fmt.Errorf("aotcompiler: open plugin %s: %w", soPath, err)
	}
	ctorSym, err := p.Lookup("NewEngine" + prefix)
	if err != nil {
		return nil, fmt.Errorf("aotcompiler: lookup constructor: %w", err)
	}

	ctor, ok := ctorSym.(func() Backend)
	if !ok {
		return nil, fmt.Errorf("aotcompiler: constructor %s has unexpected signature", "NewEngine"+prefix)
	}
	inst := ctor()

	return &CompiledEngine{
		doc:           doc,
		peek:          inst.Peek,
		poke:          inst.Poke,
		evaluate:      inst.Evaluate,
		tick:          inst.Tick,
		setPrevClock:  inst.SetPrevClock,
		resetMemories: inst.ResetMemories,
	}, nil
}

func (c *CompiledEngine) Peek(idx ir.SignalIndex) uint64      { return c.peek(int(idx)) }
func (c *CompiledEngine) Poke(idx ir.SignalIndex, val uint64) { c.poke(int(idx), val) }
func (c *CompiledEngine) Evaluate()                           { c.evaluate() }
func (c *CompiledEngine) Tick() error                         { return c.tick() }
func (c *CompiledEngine) SetPrevClock(idx ir.SignalIndex)     { c.setPrevClock(int(idx)) }
func (c *CompiledEngine) Document() *ir.Document              { return c.doc }

// TickForced forces a rising then falling edge on every declared clock, to
// match the interp/netlist backends' reset and forced-clock convention.
func (c *CompiledEngine) TickForced() error {
	for _, clk := range c.doc.ClockList {
		c.poke(int(clk), 1)
		if err := c.tick(); err != nil {
			return err
		}
		c.poke(int(clk), 0)
		c.evaluate()
	}
	return nil
}

// SignalCount returns the number of signals in the loaded document, the
// same value the interpreter and netlist backends report, computed
// directly from the document rather than a generated accessor.
func (c *CompiledEngine) SignalCount() int { return len(c.doc.Signals) }

// RegCount returns the number of sequential update ports in the loaded
// document.
func (c *CompiledEngine) RegCount() int { return len(c.doc.Sequential) }

// GetClockListIndex returns clk's position in the document's forced-clock
// list, or -1 if clk is not a forced clock.
func (c *CompiledEngine) GetClockListIndex(clk ir.SignalIndex) int {
	for i, cl := range c.doc.ClockList {
		if cl == clk {
			return i
		}
	}
	return -1
}

// RunTicks runs n ordinary ticks, stopping early on the first error.
func (c *CompiledEngine) RunTicks(n int) error {
	for i := 0; i < n; i++ {
		if err := c.tick(); err != nil {
			return fmt.Errorf("aotcompiler: tick %d of %d: %w", i, n, err)
		}
	}
	return nil
}

// Reset forces every declared reset literal onto its signal, restores
// every memory's declared reset word via the plugin's own ResetMemories,
// and settles the design, mirroring interp.Engine's AssertReset+Tick
// sequence. Signal state is reset host-side through Poke since the
// Backend ABI is signal-indexed there; memory contents live inside the
// plugin's own Engine struct, so resetting them has to cross the ABI
// through the dedicated ResetMemories method instead.
func (c *CompiledEngine) Reset() {
	for i, sig := range c.doc.Signals {
		if sig.HasReset {
			c.poke(i, sig.Reset&ir.Mask(sig.Width))
		} else {
			c.poke(i, 0)
		}
	}
	c.resetMemories()
	c.evaluate()
}
