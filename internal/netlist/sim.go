package netlist

import (
	"fmt"

	"github.com/rhdl/engine/internal/ir"
)

// Engine is a lane-parallel gate-level simulator: Lower() runs once per
// Document, and the resulting schedule is then replayed independently
// across Lanes bit-sliced instances, the way the teacher's pack-sibling
// scheduler evaluates the same instruction template across many lanes at
// once rather than one at a time (spec §4.3's "SIMD-style" framing).
// Each lane owns its own net and memory state but shares the one gate
// schedule, so Evaluate/Tick cost is one pass over the gate list times
// the lane count, not a recompiled schedule per lane.
type Engine struct {
	doc *ir.Document
	nl  *Netlist

	lanes int
	nets  [][]uint8 // nets[lane][net index], 0 or 1; net 0 and 1 are tie constants
	mem   [][][]uint64 // mem[lane][memory index][address]

	prevClk []map[ir.SignalIndex]uint64 // per lane, driven-clock edge baseline

	resetAsserted bool
}

// New lowers doc and allocates `lanes` independent simulation instances,
// each powered on into its declared reset state (mirrors interp.New).
func New(doc *ir.Document, lanes int) *Engine {
	if lanes < 1 {
		lanes = 1
	}
	nl := Lower(doc)
	e := &Engine{
		doc:     doc,
		nl:      nl,
		lanes:   lanes,
		nets:    make([][]uint8, lanes),
		mem:     make([][][]uint64, lanes),
		prevClk: make([]map[ir.SignalIndex]uint64, lanes),
	}
	for l := 0; l < lanes; l++ {
		n := make([]uint8, nl.NetCount)
		n[tieHigh] = 1
		e.nets[l] = n
		e.mem[l] = make([][]uint64, len(doc.Memories))
		for mi, m := range doc.Memories {
			e.mem[l][mi] = make([]uint64, m.Depth)
		}
		e.prevClk[l] = make(map[ir.SignalIndex]uint64)
	}
	e.Reset()
	return e
}

// Lanes returns how many independent simulation instances this Engine
// holds.
func (e *Engine) Lanes() int { return e.lanes }

func (e *Engine) netVal(lane int, net int) uint64 {
	return uint64(e.nets[lane][net])
}

func (e *Engine) bitsToWord(lane int, nets []int) uint64 {
	var v uint64
	for i, n := range nets {
		if e.nets[lane][n] != 0 {
			v |= 1 << uint(i)
		}
	}
	return v
}

func (e *Engine) wordToBits(lane int, nets []int, val uint64) {
	for i, n := range nets {
		if n == tieLow || n == tieHigh {
			continue // constants are never host-writable
		}
		if (val>>uint(i))&1 == 1 {
			e.nets[lane][n] = 1
		} else {
			e.nets[lane][n] = 0
		}
	}
}

// SignalValue returns lane l's committed value for signal idx, implementing
// the same read contract as interp.Engine.SignalValue for callers that
// operate on either backend interchangeably.
func (e *Engine) SignalValue(lane int, idx ir.SignalIndex) uint64 {
	return e.bitsToWord(lane, e.nl.SigNets[idx]) & ir.Mask(e.doc.Signals[idx].Width)
}

func (e *Engine) evalGatesLane(lane int) {
	n := e.nets[lane]
	for _, g := range e.nl.Gates {
		switch g.Op {
		case GateAnd:
			n[g.Out] = n[g.A] & n[g.B]
		case GateOr:
			n[g.Out] = n[g.A] | n[g.B]
		case GateXor:
			n[g.Out] = n[g.A] ^ n[g.B]
		case GateNot:
			n[g.Out] = 1 - n[g.A]
		case GateMux:
			if n[g.Sel] != 0 {
				n[g.Out] = n[g.A]
			} else {
				n[g.Out] = n[g.B]
			}
		}
	}
}

// Evaluate settles combinational logic and memory read ports across every
// lane (spec §4.2 combinational settle phase).
func (e *Engine) Evaluate() {
	for l := 0; l < e.lanes; l++ {
		e.evalGatesLane(l)
		e.evalMemReadsLane(l)
	}
}

func (e *Engine) evalMemReadsLane(lane int) {
	for mi, m := range e.doc.Memories {
		pn := e.nl.Mem[mi]
		for pi, rp := range m.ReadPorts {
			if rp.Sync {
				continue
			}
			addr := e.bitsToWord(lane, pn.ReadAddr[pi])
			val := e.memReadLane(lane, mi, addr)
			e.wordToBits(lane, e.nl.SigNets[rp.ResultWire], val)
		}
	}
}

func (e *Engine) memReadLane(lane, memIdx int, addr uint64) uint64 {
	m := e.doc.Memories[memIdx]
	if addr >= uint64(m.Depth) {
		return 0
	}
	return e.mem[lane][memIdx][addr]
}

func (e *Engine) memWriteLane(lane, memIdx int, addr, val uint64) {
	m := e.doc.Memories[memIdx]
	if addr >= uint64(m.Depth) {
		return
	}
	e.mem[lane][memIdx][addr] = val & ir.Mask(m.Width)
}

func (e *Engine) risingEdge(lane int, clk ir.SignalIndex) bool {
	was := e.prevClk[lane][clk]
	now := e.SignalValue(lane, clk)
	return was == 0 && now != 0
}

// SetPrevClock records clk's current value as the new edge-detection
// baseline for lane l (driven-clock mode, mirrors interp.Engine).
func (e *Engine) SetPrevClock(lane int, clk ir.SignalIndex) {
	e.prevClk[lane][clk] = e.SignalValue(lane, clk)
}

// Tick advances the flip-flops and synchronous memory ports of every lane
// by one clock edge, committing D into Q wherever the clock rose relative
// to the baseline last recorded by SetPrevClock or reset (Tick itself does
// not move that baseline), then re-settles combinational logic.
func (e *Engine) Tick() error {
	if e.resetAsserted {
		return e.tickReset()
	}
	for l := 0; l < e.lanes; l++ {
		e.tickLane(l)
	}
	e.Evaluate()
	return nil
}

func (e *Engine) tickLane(lane int) {
	type flopEdge struct {
		q, d int
	}
	var commits []flopEdge
	seenClock := map[ir.SignalIndex]bool{}
	edgeByClock := map[ir.SignalIndex]bool{}
	for _, ff := range e.nl.FlipFlops {
		clk := ir.SignalIndex(ff.ClockSignal)
		if !seenClock[clk] {
			edgeByClock[clk] = e.risingEdge(lane, clk)
			seenClock[clk] = true
		}
		if edgeByClock[clk] {
			commits = append(commits, flopEdge{q: ff.Q, d: ff.D})
		}
	}

	e.serviceSyncMemWrites(lane)
	e.serviceSyncMemReads(lane)

	sampled := make([]uint8, len(commits))
	for i, c := range commits {
		sampled[i] = e.nets[lane][c.d]
	}
	for i, c := range commits {
		e.nets[lane][c.q] = sampled[i]
	}
}

func (e *Engine) serviceSyncMemWrites(lane int) {
	for mi, m := range e.doc.Memories {
		pn := e.nl.Mem[mi]
		for pi, wp := range m.WritePorts {
			if !e.risingEdge(lane, wp.Clock) {
				continue
			}
			if e.bitsToWord(lane, pn.WriteEnable[pi]) == 0 {
				continue
			}
			addr := e.bitsToWord(lane, pn.WriteAddr[pi])
			data := e.bitsToWord(lane, pn.WriteData[pi])
			e.memWriteLane(lane, mi, addr, data)
		}
	}
}

func (e *Engine) serviceSyncMemReads(lane int) {
	for mi, m := range e.doc.Memories {
		pn := e.nl.Mem[mi]
		for pi, rp := range m.ReadPorts {
			if !rp.Sync || !e.risingEdge(lane, rp.Clock) {
				continue
			}
			addr := e.bitsToWord(lane, pn.ReadAddr[pi])
			e.wordToBits(lane, e.nl.SigNets[rp.ResultWire], e.memReadLane(lane, mi, addr))
		}
	}
}

// TickForced forces a rising then falling edge on every declared clock, in
// every lane, evaluating once per edge (mirrors interp.Engine.TickForced;
// spec §8 boundary on forced-clock mode).
func (e *Engine) TickForced() error {
	for _, clk := range e.doc.ClockList {
		for l := 0; l < e.lanes; l++ {
			e.wordToBits(l, e.nl.SigNets[clk], 1)
		}
		if err := e.Tick(); err != nil {
			return err
		}
		for l := 0; l < e.lanes; l++ {
			e.wordToBits(l, e.nl.SigNets[clk], 0)
		}
		e.Evaluate()
	}
	return nil
}

// AssertReset begins a reset; the caller must Tick exactly once while it
// is pending.
func (e *Engine) AssertReset() { e.resetAsserted = true }

func (e *Engine) tickReset() error {
	for l := 0; l < e.lanes; l++ {
		for i, sig := range e.doc.Signals {
			idx := ir.SignalIndex(i)
			nets, ok := e.nl.SigNets[idx]
			if !ok {
				continue
			}
			var v uint64
			if sig.HasReset {
				v = sig.Reset & ir.Mask(sig.Width)
			}
			e.wordToBits(l, nets, v)
			e.prevClk[l][idx] = v
		}
		for mi, m := range e.doc.Memories {
			for a := range e.mem[l][mi] {
				if m.HasReset {
					e.mem[l][mi][a] = m.ResetWord & ir.Mask(m.Width)
				} else {
					e.mem[l][mi][a] = 0
				}
			}
		}
	}
	e.resetAsserted = false
	e.Evaluate()
	return nil
}

// Reset immediately applies AssertReset+Tick.
func (e *Engine) Reset() {
	e.AssertReset()
	_ = e.tickReset()
}

// Peek returns lane l's committed value for signal idx.
func (e *Engine) Peek(lane int, idx ir.SignalIndex) uint64 {
	return e.SignalValue(lane, idx)
}

// Poke forces signal idx to val in lane l. Forcing a combinationally
// driven signal is legal but transient: the next Evaluate recomputes it
// from its driver, same as interp.Engine.Poke on a driven signal followed
// by a re-evaluate.
func (e *Engine) Poke(lane int, idx ir.SignalIndex, val uint64) {
	nets, ok := e.nl.SigNets[idx]
	if !ok {
		return
	}
	e.wordToBits(lane, nets, val&ir.Mask(e.doc.Signals[idx].Width))
}

// GateCount returns the total number of gates in the lowered schedule
// (diagnostic/capability reporting, shared across every lane).
func (e *Engine) GateCount() int { return len(e.nl.Gates) }

// FlipFlopCount returns the total number of flip-flops in the lowered
// schedule.
func (e *Engine) FlipFlopCount() int { return len(e.nl.FlipFlops) }

// RunTicks runs n ordinary ticks across every lane, stopping early only on
// error.
func (e *Engine) RunTicks(n int) error {
	for i := 0; i < n; i++ {
		if err := e.Tick(); err != nil {
			return fmt.Errorf("tick %d of %d: %w", i, n, err)
		}
	}
	return nil
}

// Document returns the loaded IR document.
func (e *Engine) Document() *ir.Document { return e.doc }

// Lane returns a view of a single lane that satisfies the same
// Peek/Poke/Tick/Evaluate/Document contract as interp.Engine, so bus-level
// code (internal/cpu) can drive either backend without a type switch. A
// Lane's Tick/Evaluate/Reset advance every lane in the owning Engine, not
// just this one, since lanes always share one schedule and one clock;
// only Peek/Poke are lane-scoped.
type Lane struct {
	e    *Engine
	lane int
}

// Lane returns the per-lane view for lane index l.
func (e *Engine) Lane(l int) Lane { return Lane{e: e, lane: l} }

func (v Lane) Peek(idx ir.SignalIndex) uint64      { return v.e.Peek(v.lane, idx) }
func (v Lane) Poke(idx ir.SignalIndex, val uint64) { v.e.Poke(v.lane, idx, val) }
func (v Lane) Tick() error                         { return v.e.Tick() }
func (v Lane) Evaluate()                           { v.e.Evaluate() }
func (v Lane) TickForced() error                   { return v.e.TickForced() }
func (v Lane) Document() *ir.Document               { return v.e.doc }
func (v Lane) Reset()                               { v.e.Reset() }
func (v Lane) RunTicks(n int) error                 { return v.e.RunTicks(n) }
func (v Lane) SignalCount() int                     { return len(v.e.doc.Signals) }
func (v Lane) RegCount() int                        { return v.e.FlipFlopCount() }
func (v Lane) SetPrevClock(idx ir.SignalIndex)      { v.e.SetPrevClock(v.lane, idx) }
func (v Lane) GetClockListIndex(clk ir.SignalIndex) int {
	for i, cl := range v.e.doc.ClockList {
		if cl == clk {
			return i
		}
	}
	return -1
}
