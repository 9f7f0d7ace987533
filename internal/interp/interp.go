// Package interp implements the IR interpreter backend: a depth-first
// evaluator of the expression graph with the two-phase evaluate/tick cycle
// described in spec §4.2. Sequential writes are staged into pending and
// committed by Tick; there is no TickDone method and no latch guarding
// against consecutive Tick calls.
package interp

import (
	"fmt"

	"github.com/rhdl/engine/internal/ir"
)

// Engine is one IR interpreter instance: the signal current/next arrays,
// memory storage, and clock-edge bookkeeping for one loaded Document.
type Engine struct {
	doc *ir.Document

	current []uint64
	pending []uint64
	prevClk []uint64 // last-seen committed value of every signal, used for driven-clock edge detection

	mem [][]uint64 // per-memory flat storage

	clockListIdx map[ir.SignalIndex]int // signal -> index within doc.ClockList

	cache    []uint64
	computed []bool

	resetAsserted bool
}

// New creates an interpreter instance from a validated Document and powers
// it on (§3 Lifecycle: "restores declared reset literals").
func New(doc *ir.Document) *Engine {
	e := &Engine{
		doc:          doc,
		current:      make([]uint64, len(doc.Signals)),
		pending:      make([]uint64, len(doc.Signals)),
		prevClk:      make([]uint64, len(doc.Signals)),
		cache:        make([]uint64, len(doc.Nodes)),
		computed:     make([]bool, len(doc.Nodes)),
		clockListIdx: make(map[ir.SignalIndex]int),
	}
	for i, c := range doc.ClockList {
		e.clockListIdx[c] = i
	}
	e.mem = make([][]uint64, len(doc.Memories))
	for i, m := range doc.Memories {
		e.mem[i] = make([]uint64, m.Depth)
	}
	e.Reset()
	return e
}

// SignalValue implements ir.SignalReader against committed values.
func (e *Engine) SignalValue(idx ir.SignalIndex) uint64 {
	return e.current[idx]
}

func (e *Engine) resetCaches() {
	for i := range e.computed {
		e.computed[i] = false
	}
}

// Evaluate performs one combinational settle: a depth-first walk of every
// combinational driver, writing each signal's committed value. Idempotent
// per §8 invariants: calling it twice with no interleaved write produces
// the same result, since it always recomputes from current signal state
// rather than from any stale cache across calls.
func (e *Engine) Evaluate() {
	e.resetCaches()
	for _, cd := range e.doc.CombDrivers {
		v := ir.Eval(e.doc, cd.Root, e, e.cache, e.computed)
		e.current[cd.Target] = v & ir.Mask(e.doc.Signals[cd.Target].Width)
	}
	e.evalMemReads()
}

func (e *Engine) evalMemReads() {
	for mi, m := range e.doc.Memories {
		for _, rp := range m.ReadPorts {
			if rp.Sync {
				continue // synchronous reads are serviced in Tick
			}
			addr := ir.Eval(e.doc, rp.Addr, e, e.cache, e.computed)
			val := e.memRead(mi, addr)
			e.current[rp.ResultWire] = val & ir.Mask(e.doc.Signals[rp.ResultWire].Width)
		}
	}
}

func (e *Engine) memRead(memIdx int, addr uint64) uint64 {
	m := e.doc.Memories[memIdx]
	if addr >= uint64(m.Depth) {
		return 0
	}
	return e.mem[memIdx][addr]
}

func (e *Engine) memWrite(memIdx int, addr uint64, val uint64) {
	m := e.doc.Memories[memIdx]
	if addr >= uint64(m.Depth) {
		return
	}
	e.mem[memIdx][addr] = val & ir.Mask(m.Width)
}

// risingEdge reports whether clk's committed value transitioned from 0 to
// non-zero since the last call that updated prevClk for it (driven-clock
// mode per §4.2).
func (e *Engine) risingEdge(clk ir.SignalIndex) bool {
	was := e.prevClk[clk]
	now := e.current[clk]
	return was == 0 && now != 0
}

// SetPrevClock records clk's current committed value as the new baseline
// for driven-clock edge detection, corresponding to façade op
// set-prev-clock. A driver in driven-clock mode calls this exactly once
// per cycle, after Tick, so the next Evaluate's toggle is seen as an edge.
func (e *Engine) SetPrevClock(clk ir.SignalIndex) {
	e.prevClk[clk] = e.current[clk]
}

// GetClockListIndex returns the index of clk within the IR's clock list,
// or -1 if clk is not a forced clock. Drivers use this to decide whether a
// given signal should be toggled by the host (driven mode) or advanced via
// TickForced (forced mode).
func (e *Engine) GetClockListIndex(clk ir.SignalIndex) int {
	if idx, ok := e.clockListIdx[clk]; ok {
		return idx
	}
	return -1
}

// Tick evaluates all sequential update ports against the current committed
// values, stages results into pending, then atomically promotes pending to
// committed for sequential targets, and finally re-runs combinational
// evaluation. Order: sample inputs -> evaluate next-state -> commit ->
// re-evaluate combinational (§4.2).
func (e *Engine) Tick() error {
	if e.resetAsserted {
		return e.tickReset()
	}

	e.resetCaches()
	type staged struct {
		target ir.SignalIndex
		value  uint64
	}
	var writes []staged
	for _, sp := range e.doc.Sequential {
		if !e.risingEdge(sp.Clock) {
			continue
		}
		guard := ir.Eval(e.doc, sp.Guard, e, e.cache, e.computed)
		if guard == 0 {
			continue
		}
		next := ir.Eval(e.doc, sp.Next, e, e.cache, e.computed)
		writes = append(writes, staged{target: sp.Target, value: next & ir.Mask(e.doc.Signals[sp.Target].Width)})
	}

	e.serviceSyncMemWrites()
	e.serviceSyncMemReads()

	for _, w := range writes {
		e.pending[w.target] = w.value
	}
	for _, w := range writes {
		e.current[w.target] = e.pending[w.target]
	}

	e.Evaluate()
	return nil
}

func (e *Engine) serviceSyncMemWrites() {
	for mi, m := range e.doc.Memories {
		for _, wp := range m.WritePorts {
			if !e.risingEdge(wp.Clock) {
				continue
			}
			en := ir.Eval(e.doc, wp.Enable, e, e.cache, e.computed)
			if en == 0 {
				continue
			}
			addr := ir.Eval(e.doc, wp.Addr, e, e.cache, e.computed)
			data := ir.Eval(e.doc, wp.Data, e, e.cache, e.computed)
			e.memWrite(mi, addr, data)
		}
	}
}

func (e *Engine) serviceSyncMemReads() {
	for mi, m := range e.doc.Memories {
		for _, rp := range m.ReadPorts {
			if !rp.Sync || !e.risingEdge(rp.Clock) {
				continue
			}
			addr := ir.Eval(e.doc, rp.Addr, e, e.cache, e.computed)
			e.pending[rp.ResultWire] = e.memRead(mi, addr)
			e.current[rp.ResultWire] = e.pending[rp.ResultWire]
		}
	}
}

// TickForced forces a rising edge on every listed clock, evaluating once
// per edge, then falls (§4.2 forced-clock mode; §8 boundary: "exactly N
// rising edges and N falling edges in one call" for a clock list of
// length N).
func (e *Engine) TickForced() error {
	for _, clk := range e.doc.ClockList {
		e.current[clk] = 1
		if err := e.Tick(); err != nil {
			return err
		}
		e.current[clk] = 0
		e.Evaluate()
	}
	return nil
}

// AssertReset begins a reset: every declared reset literal is forced into
// both pending and committed for one full Tick cycle, regardless of clock
// (§4.2). The caller must call Tick once while this is pending, after
// which normal operation resumes.
func (e *Engine) AssertReset() {
	e.resetAsserted = true
}

func (e *Engine) tickReset() error {
	for i, sig := range e.doc.Signals {
		if sig.HasReset {
			e.current[i] = sig.Reset & ir.Mask(sig.Width)
			e.pending[i] = e.current[i]
		} else {
			e.current[i] = 0
			e.pending[i] = 0
		}
		e.prevClk[i] = e.current[i]
	}
	for mi, m := range e.doc.Memories {
		for a := range e.mem[mi] {
			if m.HasReset {
				e.mem[mi][a] = m.ResetWord & ir.Mask(m.Width)
			} else {
				e.mem[mi][a] = 0
			}
		}
	}
	e.resetAsserted = false
	e.Evaluate()
	return nil
}

// Reset immediately applies AssertReset+Tick (used by façade exec op
// "reset" and by instance construction). It clears pending values,
// restores declared reset literals, and the trace recorder is cleared by
// the owning façade instance, not here (this engine has no trace of its
// own).
func (e *Engine) Reset() {
	e.AssertReset()
	_ = e.tickReset()
}

// Peek returns the committed value of a signal by index.
func (e *Engine) Peek(idx ir.SignalIndex) uint64 {
	return e.current[idx]
}

// Poke writes both the committed and pending value of a signal atomically,
// so a subsequent Evaluate sees the poked value (§4.1 signal access
// semantics).
func (e *Engine) Poke(idx ir.SignalIndex, val uint64) {
	v := val & ir.Mask(e.doc.Signals[idx].Width)
	e.current[idx] = v
	e.pending[idx] = v
}

// SignalCount returns the number of signals in the loaded document.
func (e *Engine) SignalCount() int { return len(e.doc.Signals) }

// RegCount returns the number of sequential update ports (the interpreter's
// notion of "registers").
func (e *Engine) RegCount() int { return len(e.doc.Sequential) }

// RunTicks runs n ordinary ticks in sequence, stopping early only on
// error.
func (e *Engine) RunTicks(n int) error {
	for i := 0; i < n; i++ {
		if err := e.Tick(); err != nil {
			return fmt.Errorf("tick %d of %d: %w", i, n, err)
		}
	}
	return nil
}

// Document returns the loaded IR document (used by the façade for
// name<->index lookups and by the netlist lowering path).
func (e *Engine) Document() *ir.Document { return e.doc }
