package facade

import (
	"strings"

	"github.com/rhdl/engine/internal/ir"
)

// TraceOp enumerates the `trace` façade operation's op-codes (spec §4.1:
// "enables/disables, adds signals, captures, clears, measures").
type TraceOp int

const (
	TraceEnable TraceOp = iota
	TraceDisable
	TraceSubscribeAll
	TraceSubscribe     // arg: exact signal name
	TraceSubscribeMatch // arg: substring pattern against every signal name
	TraceCapture
	TraceClear
	TraceMeasure // arg: signal name; returns recorded-change count
)

// Trace dispatches one `trace` call. Unsupported on KindRunner instances
// (no single exposed engine to subscribe signals against) and on a
// not-yet-compiled KindAOT instance.
func (b *Backend) Trace(op TraceOp, arg string) (uint64, error) {
	eng := b.engineOrNil()
	if eng == nil {
		return 0, CapabilityMissingError{Kind: b.kind, Operation: "trace"}
	}

	switch op {
	case TraceEnable:
		b.trace.Enable(true)
		return 1, nil
	case TraceDisable:
		b.trace.Enable(false)
		return 1, nil
	case TraceSubscribeAll:
		b.trace.SubscribeAll()
		for i, sig := range b.doc.Signals {
			b.trace.Subscribe(i, sig.Name, sig.Width)
		}
		return uint64(len(b.doc.Signals)), nil
	case TraceSubscribe:
		idx, ok := b.doc.SignalByName(arg)
		if !ok {
			return 0, nil
		}
		b.trace.Subscribe(int(idx), arg, b.doc.Signals[idx].Width)
		return 1, nil
	case TraceSubscribeMatch:
		var n uint64
		for i, sig := range b.doc.Signals {
			if strings.Contains(sig.Name, arg) {
				b.trace.Subscribe(i, sig.Name, sig.Width)
				n++
			}
		}
		return n, nil
	case TraceCapture:
		b.trace.Capture(func(idx int) uint64 { return eng.Peek(ir.SignalIndex(idx)) })
		return 1, nil
	case TraceClear:
		b.trace.Clear()
		return 1, nil
	case TraceMeasure:
		idx, ok := b.doc.SignalByName(arg)
		if !ok {
			return 0, nil
		}
		return uint64(b.trace.Measure(int(idx))), nil
	}
	return 0, nil
}
