// Package facade implements the uniform external contract of spec §4.1: a
// backend-agnostic create/destroy/capabilities/signal/exec/trace/blob/
// runner_* surface in front of the IR interpreter, netlist simulator, AOT
// compiler, and runner adapter. It is the one place a driver needs to
// import; everything under internal/ stays an implementation detail the
// same way the teacher never exposes cpu.Chip internals outside its own
// package boundary.
package facade

import (
	"fmt"
	"os"

	"github.com/rhdl/engine/internal/aotcompiler"
	"github.com/rhdl/engine/internal/interp"
	"github.com/rhdl/engine/internal/ir"
	"github.com/rhdl/engine/internal/netlist"
	"github.com/rhdl/engine/internal/runnercore"
	"github.com/rhdl/engine/internal/trace"
)

// BackendKind selects which simulation strategy a created instance uses.
type BackendKind int

const (
	KindInterp BackendKind = iota
	KindNetlist
	KindAOT
	KindRunner
)

// engine is the uniform method set every non-runner backend kind
// satisfies: interp.Engine directly, netlist.Lane, and
// aotcompiler.CompiledEngine all structurally implement it without any
// adapter boilerplate, the same shape cpu.Backend uses for the bus.
type engine interface {
	Peek(idx ir.SignalIndex) uint64
	Poke(idx ir.SignalIndex, val uint64)
	Evaluate()
	Tick() error
	TickForced() error
	Reset()
	RunTicks(n int) error
	SignalCount() int
	RegCount() int
	SetPrevClock(idx ir.SignalIndex)
	GetClockListIndex(idx ir.SignalIndex) int
	Document() *ir.Document
}

// CapabilityMissingError reports a façade call unsupported by the created
// backend's kind (spec §7 "capability-missing").
type CapabilityMissingError struct {
	Kind      BackendKind
	Operation string
}

func (e CapabilityMissingError) Error() string {
	return fmt.Sprintf("facade: capability missing: %s is unsupported by backend kind %d", e.Operation, e.Kind)
}

// Backend is the tagged union matching the Design Note in spec.md §9: one
// non-nil variant field per created instance, selected by kind at Create
// time and never reassigned afterward.
type Backend struct {
	kind BackendKind

	interp *interp.Engine
	net    *netlist.Engine
	aot    *aotcompiler.CompiledEngine
	runner *runnercore.System

	doc   *ir.Document
	trace *trace.Recorder

	scratchDir      string // set only for KindAOT; removed on Destroy
	compiled        bool
	generatedSource string
	debug           bool
}

// Def configures Create.
type Def struct {
	Kind       BackendKind
	Lanes      int // netlist lane count; ignored by other kinds, defaults to 1
	ScratchDir string // AOT build scratch directory; defaults to os.MkdirTemp
	Debug      bool
}

// Create parses an IR document and constructs a backend instance of the
// requested kind (spec §4.1 `create`: "IR document bytes, sub-cycle count
// -> new context or error message"). KindAOT instances are not compiled
// yet; the first `exec compile` call builds and loads the native plugin. KindRunner requires the document to declare
// runner metadata and always drives its internal bus with an
// interp.Engine (batched cycles are what make the crossing cost
// disappear; which inner evaluator backs that loop does not matter to a
// runner driver, and the interpreter is the cheapest to construct).
func Create(docBytes []byte, d *Def) (*Backend, error) {
	doc, err := ir.Parse(docBytes)
	if err != nil {
		return nil, err
	}
	if err := ir.Validate(doc); err != nil {
		return nil, err
	}

	b := &Backend{kind: d.Kind, doc: doc, trace: trace.New(), debug: d.Debug}

	switch d.Kind {
	case KindInterp:
		b.interp = interp.New(doc)
	case KindNetlist:
		lanes := d.Lanes
		if lanes < 1 {
			lanes = 1
		}
		b.net = netlist.New(doc, lanes)
	case KindAOT:
		dir := d.ScratchDir
		if dir == "" {
			dir, err = os.MkdirTemp("", "rhdl-aot-")
			if err != nil {
				return nil, fmt.Errorf("facade: scratch dir: %w", err)
			}
		}
		b.scratchDir = dir
		// The plugin is built lazily by exec compile; until then
		// exec/signal ops on a KindAOT instance report capability-missing.
	case KindRunner:
		if !doc.Runner.Enabled {
			return nil, fmt.Errorf("facade: document has no runner metadata declared")
		}
		backend := interp.New(doc)
		sys, err := runnercore.Init(&runnercore.Def{Backend: backend, Debug: d.Debug})
		if err != nil {
			return nil, fmt.Errorf("facade: runner init: %w", err)
		}
		b.runner = sys
	default:
		return nil, fmt.Errorf("facade: unknown backend kind %d", d.Kind)
	}
	return b, nil
}

// Destroy releases any resources the instance holds. Idempotent: a second
// call on an already-destroyed Backend is a no-op.
func (b *Backend) Destroy() error {
	if b.scratchDir != "" {
		err := os.RemoveAll(b.scratchDir)
		b.scratchDir = ""
		b.interp, b.net, b.aot, b.runner = nil, nil, nil, nil
		return err
	}
	b.interp, b.net, b.aot, b.runner = nil, nil, nil, nil
	return nil
}

// Document returns the loaded IR document, valid for every backend kind.
func (b *Backend) Document() *ir.Document { return b.doc }

// engineOrNil returns the uniform engine view for non-runner kinds, or
// nil for KindRunner (which has no single exposed engine — it is driven
// exclusively through runner_* operations).
func (b *Backend) engineOrNil() engine {
	switch b.kind {
	case KindInterp:
		return b.interp
	case KindNetlist:
		return b.net.Lane(0)
	case KindAOT:
		if b.aot == nil {
			return nil
		}
		return b.aot
	}
	return nil
}

// Capabilities returns the 32-bit bitmask of spec §6: bits from lowest,
// signal-by-index, forced-clock, trace, trace-streaming,
// runner-API-interpreter/jit, compile-required, generated-code,
// runner-API-compiler.
func (b *Backend) Capabilities() uint32 {
	var caps uint32
	const (
		bitSignalByIndex = 1 << iota
		bitForcedClock
		bitTrace
		bitTraceStreaming
		bitRunnerInterpJIT
		bitCompileRequired
		bitGeneratedCode
		bitRunnerCompiler
	)

	caps |= bitSignalByIndex // every kind supports index-keyed signal access

	if len(b.doc.ClockList) > 0 {
		caps |= bitForcedClock
	}
	if b.kind != KindRunner {
		caps |= bitTrace // runner instances have no exposed engine to subscribe against
	}
	// Streaming trace mode (incremental sink writes) is not implemented;
	// drivers fall back to the documented whole-snapshot-diff substitute.
	if b.kind == KindAOT {
		caps |= bitCompileRequired
		caps |= bitGeneratedCode
	}
	if b.kind == KindRunner {
		caps |= bitRunnerInterpJIT
	}
	// No AOT-backed runner kind exists in this implementation (see
	// DESIGN.md), so bitRunnerCompiler is never set.
	return caps
}
