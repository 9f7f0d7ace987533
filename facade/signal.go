package facade

import "github.com/rhdl/engine/internal/ir"

// SignalOp enumerates the `signal` façade operation's op-codes (spec
// §4.1).
type SignalOp int

const (
	SignalHas SignalOp = iota
	SignalGetIndex
	SignalPeek
	SignalPoke
	SignalPeekByIndex
	SignalPokeByIndex
)

// Signal dispatches one `signal` call. name is used by the by-name
// op-codes, index and value by the by-index/poke op-codes. The result is
// the 32-bit output plus an ok flag; unknown names return (0, false)
// rather than an error, matching §4.1's "reads of unknown names return
// zero with ok=false; writes to unknown names are no-ops with ok=false".
func (b *Backend) Signal(op SignalOp, name string, index int, value uint64) (uint64, bool) {
	eng := b.engineOrNil()
	if eng == nil {
		return 0, false
	}

	switch op {
	case SignalHas:
		_, ok := b.doc.SignalByName(name)
		return boolResult(ok), ok
	case SignalGetIndex:
		idx, ok := b.doc.SignalByName(name)
		if !ok {
			return 0, false
		}
		return uint64(idx), true
	case SignalPeek:
		idx, ok := b.doc.SignalByName(name)
		if !ok {
			return 0, false
		}
		return eng.Peek(idx), true
	case SignalPoke:
		idx, ok := b.doc.SignalByName(name)
		if !ok {
			return 0, false
		}
		eng.Poke(idx, value)
		return value, true
	case SignalPeekByIndex:
		if !b.validIndex(index) {
			return 0, false
		}
		return eng.Peek(ir.SignalIndex(index)), true
	case SignalPokeByIndex:
		if !b.validIndex(index) {
			return 0, false
		}
		eng.Poke(ir.SignalIndex(index), value)
		return value, true
	}
	return 0, false
}

func (b *Backend) validIndex(index int) bool {
	return index >= 0 && index < len(b.doc.Signals)
}

func boolResult(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}
