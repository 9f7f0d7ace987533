package facade

import (
	"fmt"

	"github.com/rhdl/engine/internal/aotcompiler"
	"github.com/rhdl/engine/internal/ir"
)

// ExecOp enumerates the `exec` façade operation's op-codes (spec §4.1).
type ExecOp int

const (
	ExecEvaluate ExecOp = iota
	ExecTick
	ExecTickForced
	ExecSetPrevClock
	ExecGetClockListIndex
	ExecReset
	ExecRunTicks
	ExecSignalCount
	ExecRegCount
	ExecCompile
	ExecIsCompiled
)

// Exec dispatches one `exec` call. arg0/arg1 carry the two integer
// arguments the façade contract allows (clock signal index for
// set-prev-clock/get-clock-list-index, tick count for run-ticks).
// Capability-missing (§7) is reported as CapabilityMissingError rather
// than silently doing nothing, except where spec §7's "what is recovered
// locally" names a fallback.
func (b *Backend) Exec(op ExecOp, arg0, arg1 int) (uint64, error) {
	if op == ExecCompile || op == ExecIsCompiled {
		return b.execCompile(op)
	}

	eng := b.engineOrNil()
	if eng == nil {
		return 0, CapabilityMissingError{Kind: b.kind, Operation: "exec"}
	}
	if b.kind == KindAOT && !b.compiled {
		return 0, CapabilityMissingError{Kind: b.kind, Operation: "exec before compile"}
	}

	switch op {
	case ExecEvaluate:
		eng.Evaluate()
		return 0, nil
	case ExecTick:
		return 0, eng.Tick()
	case ExecTickForced:
		return 0, eng.TickForced()
	case ExecSetPrevClock:
		eng.SetPrevClock(ir.SignalIndex(arg0))
		return 0, nil
	case ExecGetClockListIndex:
		idx := eng.GetClockListIndex(ir.SignalIndex(arg0))
		return uint64(int64(idx)), nil
	case ExecReset:
		eng.Reset()
		return 0, nil
	case ExecRunTicks:
		return uint64(arg0), eng.RunTicks(arg0)
	case ExecSignalCount:
		return uint64(eng.SignalCount()), nil
	case ExecRegCount:
		return uint64(eng.RegCount()), nil
	}
	return 0, fmt.Errorf("facade: unknown exec op-code %d", op)
}

func (b *Backend) execCompile(op ExecOp) (uint64, error) {
	if b.kind != KindAOT {
		return 0, CapabilityMissingError{Kind: b.kind, Operation: "compile"}
	}
	if op == ExecIsCompiled {
		return boolResult(b.compiled), nil
	}
	if b.compiled {
		return 1, nil // idempotent per spec §4.4
	}
	src, err := aotcompiler.Generate(b.doc, "main", "inst")
	if err != nil {
		return 0, err
	}
	soPath, err := aotcompiler.Build(b.scratchDir, src, "inst")
	if err != nil {
		return 0, err
	}
	eng, err := aotcompiler.Load(soPath, b.doc, "inst")
	if err != nil {
		return 0, err
	}
	b.aot = eng
	b.compiled = true
	b.generatedSource = src
	return 1, nil
}
