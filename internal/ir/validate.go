package ir

import "fmt"

// ValidateError reports a schema-legal but semantically invalid document:
// a width mismatch, an out-of-range slice, a missing default arm on an
// indexed case, or a cycle in the combinational graph.
type ValidateError struct {
	Reason string
}

func (e ValidateError) Error() string {
	return fmt.Sprintf("ir-validate-error: %s", e.Reason)
}

// Validate checks every invariant from the data model (§3): operand widths
// agree, slice indices lie in range, mux/case arms agree in width, a
// default arm is present on every case, and the combinational driver graph
// is acyclic. It does not mutate the document.
func Validate(d *Document) error {
	for i, sig := range d.Signals {
		if sig.Width < 1 || sig.Width > 64 {
			return ValidateError{Reason: fmt.Sprintf("signal %q has invalid width %d", sig.Name, sig.Width)}
		}
		_ = i
	}

	for id, n := range d.Nodes {
		if err := validateNode(d, NodeID(id), n); err != nil {
			return err
		}
	}

	for _, cd := range d.CombDrivers {
		if int(cd.Root) < 0 || int(cd.Root) >= len(d.Nodes) {
			return ValidateError{Reason: fmt.Sprintf("combinational driver for %q references missing node %d", d.Signals[cd.Target].Name, cd.Root)}
		}
	}
	if err := checkAcyclic(d); err != nil {
		return err
	}

	for _, sp := range d.Sequential {
		if int(sp.Guard) < 0 || int(sp.Guard) >= len(d.Nodes) || int(sp.Next) < 0 || int(sp.Next) >= len(d.Nodes) {
			return ValidateError{Reason: "sequential port references missing node"}
		}
	}

	return nil
}

func validateNode(d *Document, id NodeID, n Node) error {
	width := func(o NodeID) (int, error) {
		if int(o) < 0 || int(o) >= len(d.Nodes) {
			return 0, ValidateError{Reason: fmt.Sprintf("node %d references missing operand %d", id, o)}
		}
		return d.Nodes[o].Width, nil
	}

	switch n.Op {
	case OpInvalid:
		return ValidateError{Reason: fmt.Sprintf("node %d has no operator", id)}
	case OpLiteral:
		// A literal evaluates at its declared Width and is not broadened to
		// match its sibling operand; the binary-op width check below applies
		// to literal operands like any other.
	case OpSignalRef:
		if len(n.Operands) != 1 || int(n.Operands[0]) < 0 || int(n.Operands[0]) >= len(d.Signals) {
			return ValidateError{Reason: fmt.Sprintf("node %d signal ref out of range", id)}
		}
	case OpSlice:
		if len(n.Operands) != 1 {
			return ValidateError{Reason: fmt.Sprintf("node %d slice needs exactly one operand", id)}
		}
		w, err := width(n.Operands[0])
		if err != nil {
			return err
		}
		if n.Lo < 0 || n.Hi < n.Lo || n.Hi >= w {
			return ValidateError{Reason: fmt.Sprintf("node %d slice [%d:%d] out of range for width %d", id, n.Hi, n.Lo, w)}
		}
	case OpConcat:
		if len(n.Operands) < 1 {
			return ValidateError{Reason: fmt.Sprintf("node %d concat needs at least one operand", id)}
		}
		total := 0
		for _, o := range n.Operands {
			w, err := width(o)
			if err != nil {
				return err
			}
			total += w
		}
		if total != n.Width {
			return ValidateError{Reason: fmt.Sprintf("node %d concat width %d does not match operand sum %d", id, n.Width, total)}
		}
	case OpAdd, OpSub, OpMul, OpDiv, OpRem, OpAnd, OpOr, OpXor,
		OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLtSigned, OpLeSigned, OpGtSigned, OpGeSigned:
		if len(n.Operands) != 2 {
			return ValidateError{Reason: fmt.Sprintf("node %d binary op needs exactly two operands", id)}
		}
		wa, err := width(n.Operands[0])
		if err != nil {
			return err
		}
		wb, err := width(n.Operands[1])
		if err != nil {
			return err
		}
		if wa != wb {
			return ValidateError{Reason: fmt.Sprintf("node %d operand widths disagree: %d vs %d", id, wa, wb)}
		}
	case OpNot, OpNeg, OpReduceAnd, OpReduceOr, OpReduceXor:
		if len(n.Operands) != 1 {
			return ValidateError{Reason: fmt.Sprintf("node %d unary op needs exactly one operand", id)}
		}
		if _, err := width(n.Operands[0]); err != nil {
			return err
		}
	case OpShl, OpShr, OpSar:
		if len(n.Operands) != 2 {
			return ValidateError{Reason: fmt.Sprintf("node %d shift needs exactly two operands", id)}
		}
		if _, err := width(n.Operands[0]); err != nil {
			return err
		}
		if _, err := width(n.Operands[1]); err != nil {
			return err
		}
	case OpMux:
		if len(n.Operands) != 3 {
			return ValidateError{Reason: fmt.Sprintf("node %d mux needs exactly three operands", id)}
		}
		wa, err := width(n.Operands[1])
		if err != nil {
			return err
		}
		wb, err := width(n.Operands[2])
		if err != nil {
			return err
		}
		if wa != wb {
			return ValidateError{Reason: fmt.Sprintf("node %d mux operand widths disagree: %d vs %d", id, wa, wb)}
		}
	case OpCase:
		if len(n.Operands) != 1 {
			return ValidateError{Reason: fmt.Sprintf("node %d case needs exactly one selector operand", id)}
		}
		if len(n.CaseArms) == 0 {
			return ValidateError{Reason: fmt.Sprintf("node %d indexed case has no default arm", id)}
		}
		// The default arm is always appended last by Parse; every other arm
		// must agree in width with it.
		def := n.CaseArms[len(n.CaseArms)-1]
		dw, err := width(def.Result)
		if err != nil {
			return err
		}
		for _, arm := range n.CaseArms[:len(n.CaseArms)-1] {
			aw, err := width(arm.Result)
			if err != nil {
				return err
			}
			if aw != dw {
				return ValidateError{Reason: fmt.Sprintf("node %d case arm width %d disagrees with default width %d", id, aw, dw)}
			}
		}
	case OpZeroExtend, OpSignExtend:
		if len(n.Operands) != 1 {
			return ValidateError{Reason: fmt.Sprintf("node %d extend needs exactly one operand", id)}
		}
		w, err := width(n.Operands[0])
		if err != nil {
			return err
		}
		if w > n.Width {
			return ValidateError{Reason: fmt.Sprintf("node %d extend narrows %d to %d", id, w, n.Width)}
		}
	default:
		return ValidateError{Reason: fmt.Sprintf("node %d has unrecognized op %d", id, n.Op)}
	}
	return nil
}

// checkAcyclic verifies the combinational expression graph has no cycle.
// Sequential update ports (§3: "any cycle across sequential boundaries is
// legal") are intentionally excluded: this walks Node.Operands only, never
// following a SeqPort's Next back to a Target.
func checkAcyclic(d *Document) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]uint8, len(d.Nodes))
	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		if int(id) < 0 || int(id) >= len(d.Nodes) {
			return nil
		}
		switch color[id] {
		case black:
			return nil
		case gray:
			return ValidateError{Reason: fmt.Sprintf("combinational cycle through node %d", id)}
		}
		color[id] = gray
		n := d.Nodes[id]
		for _, o := range n.Operands {
			if err := visit(o); err != nil {
				return err
			}
		}
		for _, arm := range n.CaseArms {
			if err := visit(arm.Result); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}
	for _, cd := range d.CombDrivers {
		if err := visit(cd.Root); err != nil {
			return err
		}
	}
	return nil
}
