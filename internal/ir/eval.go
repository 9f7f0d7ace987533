package ir

import "math/bits"

// SignalReader supplies the current committed value of a signal during
// expression evaluation.
type SignalReader interface {
	SignalValue(idx SignalIndex) uint64
}

// Eval computes the value of node id, given a reader for signal references
// and a cache of already-computed node values in this pass (cache lets the
// interpreter's depth-first walk memoize shared subexpressions within one
// cycle, matching §4.2 "caching sub-results per cycle"). cache must be
// sized len(nodes); a negative-sentinel "computed" bitset should be
// maintained by the caller, since 0 is a legal value.
func Eval(d *Document, id NodeID, r SignalReader, cache []uint64, computed []bool) uint64 {
	if computed[id] {
		return cache[id]
	}
	n := d.Nodes[id]
	var v uint64
	op := func(i int) uint64 { return Eval(d, n.Operands[i], r, cache, computed) }

	switch n.Op {
	case OpLiteral:
		v = n.Literal & Mask(n.Width)
	case OpSignalRef:
		v = r.SignalValue(SignalIndex(n.Operands[0])) & Mask(n.Width)
	case OpSlice:
		src := op(0)
		v = (src >> uint(n.Lo)) & Mask(n.Hi-n.Lo+1)
	case OpConcat:
		for _, o := range n.Operands {
			w := d.Nodes[o].Width
			v = (v << uint(w)) | (Eval(d, o, r, cache, computed) & Mask(w))
		}
	case OpAdd:
		v = op(0) + op(1)
	case OpSub:
		v = op(0) - op(1)
	case OpMul:
		v = op(0) * op(1)
	case OpDiv:
		a, b := op(0), op(1)
		if b == 0 {
			v = 0
		} else {
			v = a / b
		}
	case OpRem:
		a, b := op(0), op(1)
		if b == 0 {
			v = 0
		} else {
			v = a % b
		}
	case OpEq:
		v = boolU64(op(0) == op(1))
	case OpNe:
		v = boolU64(op(0) != op(1))
	case OpLt:
		v = boolU64(op(0) < op(1))
	case OpLe:
		v = boolU64(op(0) <= op(1))
	case OpGt:
		v = boolU64(op(0) > op(1))
	case OpGe:
		v = boolU64(op(0) >= op(1))
	case OpLtSigned:
		w := d.Nodes[n.Operands[0]].Width
		v = boolU64(int64(signExtend(op(0), w)) < int64(signExtend(op(1), w)))
	case OpLeSigned:
		w := d.Nodes[n.Operands[0]].Width
		v = boolU64(int64(signExtend(op(0), w)) <= int64(signExtend(op(1), w)))
	case OpGtSigned:
		w := d.Nodes[n.Operands[0]].Width
		v = boolU64(int64(signExtend(op(0), w)) > int64(signExtend(op(1), w)))
	case OpGeSigned:
		w := d.Nodes[n.Operands[0]].Width
		v = boolU64(int64(signExtend(op(0), w)) >= int64(signExtend(op(1), w)))
	case OpAnd:
		v = op(0) & op(1)
	case OpOr:
		v = op(0) | op(1)
	case OpXor:
		v = op(0) ^ op(1)
	case OpNot:
		v = ^op(0)
	case OpNeg:
		v = -op(0)
	case OpShl:
		amt := op(1)
		if amt >= uint64(n.Width) {
			v = 0
		} else {
			v = op(0) << amt
		}
	case OpShr:
		amt := op(1)
		if amt >= uint64(n.Width) {
			v = 0
		} else {
			v = op(0) >> amt
		}
	case OpSar:
		amt := op(1)
		sv := int64(signExtend(op(0), n.Width))
		if amt >= uint64(n.Width) {
			if sv < 0 {
				v = Mask(n.Width)
			} else {
				v = 0
			}
		} else {
			v = uint64(sv>>amt) & Mask(n.Width)
		}
	case OpMux:
		if op(0) != 0 {
			v = op(1)
		} else {
			v = op(2)
		}
	case OpCase:
		sel := op(0)
		v = Eval(d, n.CaseArms[len(n.CaseArms)-1].Result, r, cache, computed) // default, evaluated first and replaced if an arm matches
		matched := false
		for _, arm := range n.CaseArms[:len(n.CaseArms)-1] {
			if arm.Value == sel {
				v = Eval(d, arm.Result, r, cache, computed)
				matched = true
				break
			}
		}
		if !matched {
			v = Eval(d, n.CaseArms[len(n.CaseArms)-1].Result, r, cache, computed)
		}
	case OpReduceAnd:
		v = boolU64(op(0)&Mask(d.Nodes[n.Operands[0]].Width) == Mask(d.Nodes[n.Operands[0]].Width))
	case OpReduceOr:
		v = boolU64(op(0) != 0)
	case OpReduceXor:
		v = boolU64(bits.OnesCount64(op(0))%2 == 1)
	case OpZeroExtend:
		v = op(0)
	case OpSignExtend:
		src := op(0)
		srcW := d.Nodes[n.Operands[0]].Width
		v = signExtend(src, srcW) & Mask(n.Width)
	default:
		v = 0
	}

	v &= Mask(n.Width)
	cache[id] = v
	computed[id] = true
	return v
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// signExtend treats the low w bits of v as two's complement and sign
// extends to 64 bits.
func signExtend(v uint64, w int) uint64 {
	if w >= 64 {
		return v
	}
	sign := uint64(1) << uint(w-1)
	v &= Mask(w)
	if v&sign != 0 {
		return v | ^Mask(w)
	}
	return v
}
