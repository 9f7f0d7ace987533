// Package aotcompiler ahead-of-time compiles a Document into a standalone
// Go source file, builds it as a plugin via the Go toolchain, and loads it
// back in as a Backend, the compiled counterpart to interp.Engine and
// netlist.Engine (spec §5: "the AOT backend trades the interpreter's
// per-cycle tree walk for a generated straight-line Evaluate/Tick pair,
// compiled once and reused across many Tick calls"). The actual process
// invocation follows the teacher's hand_asm tool's os/exec.Command
// pattern; there is no teacher package for Go code generation itself,
// so the template approach here is grounded directly in the IR's own
// expression-tree shape (ir.Node/ir.Eval) rather than any one pack repo.
package aotcompiler

import (
	"fmt"
	"strings"

	"github.com/rhdl/engine/internal/ir"
)

// codegenState accumulates the generated Go source for one Document. Every
// node is emitted at most once into a local variable, named by prefixed
// node id, mirroring the interpreter's per-cycle node memoization but at
// compile time instead of at eval time.
type codegenState struct {
	doc    *ir.Document
	prefix string
	lines  []string
	done   map[ir.NodeID]bool
}

func newCodegenState(doc *ir.Document, prefix string) *codegenState {
	return &codegenState{doc: doc, prefix: prefix, done: make(map[ir.NodeID]bool)}
}

func (c *codegenState) varName(id ir.NodeID) string {
	return fmt.Sprintf("n%s_%d", c.prefix, id)
}

func (c *codegenState) emitf(format string, args ...interface{}) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

// emitNode writes the Go statement(s) computing node id into its variable
// if it hasn't been emitted yet in this pass, recursing into operands
// first so a node is always defined before anything references it
// (the generated-code equivalent of the interpreter's depth-first Eval).
func (c *codegenState) emitNode(id ir.NodeID) string {
	v := c.varName(id)
	if c.done[id] {
		return v
	}
	c.done[id] = true
	n := c.doc.Nodes[id]
	mask := fmt.Sprintf("maskW(%d)", n.Width)

	operand := func(i int) string { return c.emitNode(n.Operands[i]) }

	var expr string
	switch n.Op {
	case ir.OpLiteral:
		expr = fmt.Sprintf("uint64(%d) & %s", n.Literal, mask)
	case ir.OpSignalRef:
		expr = fmt.Sprintf("e.sig[%d] & %s", n.Operands[0], mask)
	case ir.OpSlice:
		expr = fmt.Sprintf("(%s >> %d) & %s", operand(0), n.Lo, mask)
	case ir.OpConcat:
		var parts []string
		for _, o := range n.Operands {
			w := c.doc.Nodes[o].Width
			parts = append(parts, fmt.Sprintf("(%s & %s)", c.emitNode(o), fmt.Sprintf("maskW(%d)", w)))
		}
		// Concatenation is MSB-first in the operand list; fold left to right
		// shifting the accumulator up by each subsequent operand's width.
		acc := parts[0]
		for i := 1; i < len(parts); i++ {
			w := c.doc.Nodes[n.Operands[i]].Width
			acc = fmt.Sprintf("((%s << %d) | %s)", acc, w, parts[i])
		}
		expr = fmt.Sprintf("%s & %s", acc, mask)
	case ir.OpAdd:
		expr = fmt.Sprintf("(%s + %s) & %s", operand(0), operand(1), mask)
	case ir.OpSub:
		expr = fmt.Sprintf("(%s - %s) & %s", operand(0), operand(1), mask)
	case ir.OpMul:
		expr = fmt.Sprintf("(%s * %s) & %s", operand(0), operand(1), mask)
	case ir.OpDiv:
		expr = fmt.Sprintf("divU64(%s, %s) & %s", operand(0), operand(1), mask)
	case ir.OpRem:
		expr = fmt.Sprintf("remU64(%s, %s) & %s", operand(0), operand(1), mask)
	case ir.OpEq:
		expr = fmt.Sprintf("boolU64(%s == %s)", operand(0), operand(1))
	case ir.OpNe:
		expr = fmt.Sprintf("boolU64(%s != %s)", operand(0), operand(1))
	case ir.OpLt:
		expr = fmt.Sprintf("boolU64(%s < %s)", operand(0), operand(1))
	case ir.OpLe:
		expr = fmt.Sprintf("boolU64(%s <= %s)", operand(0), operand(1))
	case ir.OpGt:
		expr = fmt.Sprintf("boolU64(%s > %s)", operand(0), operand(1))
	case ir.OpGe:
		expr = fmt.Sprintf("boolU64(%s >= %s)", operand(0), operand(1))
	case ir.OpLtSigned:
		w := c.doc.Nodes[n.Operands[0]].Width
		expr = fmt.Sprintf("boolU64(int64(signExtend(%s,%d)) < int64(signExtend(%s,%d)))", operand(0), w, operand(1), w)
	case ir.OpLeSigned:
		w := c.doc.Nodes[n.Operands[0]].Width
		expr = fmt.Sprintf("boolU64(int64(signExtend(%s,%d)) <= int64(signExtend(%s,%d)))", operand(0), w, operand(1), w)
	case ir.OpGtSigned:
		w := c.doc.Nodes[n.Operands[0]].Width
		expr = fmt.Sprintf("boolU64(int64(signExtend(%s,%d)) > int64(signExtend(%s,%d)))", operand(0), w, operand(1), w)
	case ir.OpGeSigned:
		w := c.doc.Nodes[n.Operands[0]].Width
		expr = fmt.Sprintf("boolU64(int64(signExtend(%s,%d)) >= int64(signExtend(%s,%d)))", operand(0), w, operand(1), w)
	case ir.OpAnd:
		expr = fmt.Sprintf("%s & %s", operand(0), operand(1))
	case ir.OpOr:
		expr = fmt.Sprintf("%s | %s", operand(0), operand(1))
	case ir.OpXor:
		expr = fmt.Sprintf("%s ^ %s", operand(0), operand(1))
	case ir.OpNot:
		expr = fmt.Sprintf("(^%s) & %s", operand(0), mask)
	case ir.OpNeg:
		expr = fmt.Sprintf("(-%s) & %s", operand(0), mask)
	case ir.OpShl:
		expr = fmt.Sprintf("shlU64(%s, %s, %d) & %s", operand(0), operand(1), n.Width, mask)
	case ir.OpShr:
		expr = fmt.Sprintf("shrU64(%s, %s, %d)", operand(0), operand(1), n.Width)
	case ir.OpSar:
		w := c.doc.Nodes[n.Operands[0]].Width
		expr = fmt.Sprintf("sarU64(%s, %s, %d, %d) & %s", operand(0), operand(1), w, n.Width, mask)
	case ir.OpMux:
		expr = fmt.Sprintf("muxU64(%s != 0, %s, %s)", operand(0), operand(1), operand(2))
	case ir.OpCase:
		sel := operand(0)
		def := c.emitNode(n.CaseArms[len(n.CaseArms)-1].Result)
		var b strings.Builder
		fmt.Fprintf(&b, "func() uint64 {\n")
		for _, arm := range n.CaseArms[:len(n.CaseArms)-1] {
			fmt.Fprintf(&b, "\t\tif %s == uint64(%d) { return %s }\n", sel, arm.Value, c.emitNode(arm.Result))
		}
		fmt.Fprintf(&b, "\t\treturn %s\n\t}()", def)
		expr = b.String()
	case ir.OpReduceAnd:
		expr = fmt.Sprintf("boolU64(%s == maskW(%d))", operand(0), c.doc.Nodes[n.Operands[0]].Width)
	case ir.OpReduceOr:
		expr = fmt.Sprintf("boolU64(%s != 0)", operand(0))
	case ir.OpReduceXor:
		expr = fmt.Sprintf("boolU64(bits.OnesCount64(%s)%%2 == 1)", operand(0))
	case ir.OpZeroExtend:
		expr = operand(0)
	case ir.OpSignExtend:
		w := c.doc.Nodes[n.Operands[0]].Width
		expr = fmt.Sprintf("signExtend(%s, %d) & %s", operand(0), w, mask)
	default:
		expr = "0"
	}

	c.emitf("\t%s := %s", v, expr)
	return v
}

// usesReduceXor reports whether doc contains any reduction-xor node, the
// only codegen case that needs the bits package.
func usesReduceXor(doc *ir.Document) bool {
	for _, n := range doc.Nodes {
		if n.Op == ir.OpReduceXor {
			return true
		}
	}
	return false
}

// Generate renders a complete Go source file implementing a Backend for
// doc, with every package-level identifier tagged by prefix so multiple
// generated designs can be built into (and coexist within) one plugin
// binary without symbol collisions.
//
// Evaluate's body and Tick's body are rendered from two independent
// codegenState instances: each generated method is its own Go function
// scope, so a node shared between a combinational driver and a sequential
// guard/next expression must be computed (and declared) separately in
// each, exactly as the interpreter's evalMemReads and Tick each call
// ir.Eval against the same cache but at different points in the cycle.
func Generate(doc *ir.Document, packageName, prefix string) (string, error) {
	if err := validatePrefix(prefix); err != nil {
		return "", err
	}
	evalGen := newCodegenState(doc, prefix)
	tickGen := newCodegenState(doc, prefix)

	var evalBody strings.Builder
	for _, cd := range doc.CombDrivers {
		v := evalGen.emitNode(cd.Root)
		fmt.Fprintf(&evalBody, "\te.sig[%d] = %s & maskW(%d)\n", cd.Target, v, doc.Signals[cd.Target].Width)
	}
	// Asynchronous memory reads settle alongside combinational drivers
	// (§4.2/§4.3), mirroring interp.Engine.evalMemReads.
	for mi, m := range doc.Memories {
		for _, rp := range m.ReadPorts {
			if rp.Sync {
				continue
			}
			addr := evalGen.emitNode(rp.Addr)
			fmt.Fprintf(&evalBody, "\tif %s < uint64(%d) {\n", addr, m.Depth)
			fmt.Fprintf(&evalBody, "\t\te.sig[%d] = e.mem%s_%d[%s] & maskW(%d)\n", rp.ResultWire, prefix, mi, addr, doc.Signals[rp.ResultWire].Width)
			evalBody.WriteString("\t} else {\n")
			fmt.Fprintf(&evalBody, "\t\te.sig[%d] = 0\n", rp.ResultWire)
			evalBody.WriteString("\t}\n")
		}
	}

	var tickBody strings.Builder
	for i, sp := range doc.Sequential {
		guard := tickGen.emitNode(sp.Guard)
		next := tickGen.emitNode(sp.Next)
		fmt.Fprintf(&tickBody, "\tif e.risingEdge(%d) && %s != 0 {\n", sp.Clock, guard)
		fmt.Fprintf(&tickBody, "\t\te.pending%s_%d = %s & maskW(%d)\n", prefix, i, next, doc.Signals[sp.Target].Width)
		fmt.Fprintf(&tickBody, "\t\te.staged%s_%d = true\n", prefix, i)
		tickBody.WriteString("\t}\n")
	}
	// Synchronous memory writes and reads are serviced against pre-commit
	// signal state, before pending sequential writes are applied, matching
	// interp.Engine.Tick's serviceSyncMemWrites/serviceSyncMemReads order.
	for mi, m := range doc.Memories {
		for _, wp := range m.WritePorts {
			en := tickGen.emitNode(wp.Enable)
			addr := tickGen.emitNode(wp.Addr)
			data := tickGen.emitNode(wp.Data)
			fmt.Fprintf(&tickBody, "\tif e.risingEdge(%d) && %s != 0 {\n", wp.Clock, en)
			fmt.Fprintf(&tickBody, "\t\tif %s < uint64(%d) {\n", addr, m.Depth)
			fmt.Fprintf(&tickBody, "\t\t\te.mem%s_%d[%s] = %s & maskW(%d)\n", prefix, mi, addr, data, m.Width)
			tickBody.WriteString("\t\t}\n")
			tickBody.WriteString("\t}\n")
		}
		for _, rp := range m.ReadPorts {
			if !rp.Sync {
				continue
			}
			addr := tickGen.emitNode(rp.Addr)
			fmt.Fprintf(&tickBody, "\tif e.risingEdge(%d) {\n", rp.Clock)
			fmt.Fprintf(&tickBody, "\t\tif %s < uint64(%d) {\n", addr, m.Depth)
			fmt.Fprintf(&tickBody, "\t\t\te.sig[%d] = e.mem%s_%d[%s] & maskW(%d)\n", rp.ResultWire, prefix, mi, addr, doc.Signals[rp.ResultWire].Width)
			tickBody.WriteString("\t\t} else {\n")
			fmt.Fprintf(&tickBody, "\t\t\te.sig[%d] = 0\n", rp.ResultWire)
			tickBody.WriteString("\t\t}\n")
			tickBody.WriteString("\t}\n")
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by internal/aotcompiler. DO NOT EDIT.\n")
	fmt.Fprintf(&b, "package %s\n\n", packageName)
	if usesReduceXor(doc) {
		fmt.Fprintf(&b, "import (\n\t\"math/bits\"\n\n\t\"github.com/rhdl/engine/internal/aotcompiler\"\n)\n\n")
	} else {
		fmt.Fprintf(&b, "import (\n\t\"github.com/rhdl/engine/internal/aotcompiler\"\n)\n\n")
	}
	fmt.Fprintf(&b, "%s\n\n", runtimeHelpers)

	fmt.Fprintf(&b, "type Engine%s struct {\n", prefix)
	fmt.Fprintf(&b, "\tsig     []uint64\n")
	fmt.Fprintf(&b, "\tprevClk map[int]uint64\n")
	for i := range doc.Sequential {
		fmt.Fprintf(&b, "\tpending%s_%d uint64\n", prefix, i)
		fmt.Fprintf(&b, "\tstaged%s_%d  bool\n", prefix, i)
	}
	for mi := range doc.Memories {
		fmt.Fprintf(&b, "\tmem%s_%d []uint64\n", prefix, mi)
	}
	fmt.Fprintf(&b, "}\n\n")

	fmt.Fprintf(&b, "func NewEngine%s() aotcompiler.Backend {\n", prefix)
	fmt.Fprintf(&b, "\te := &Engine%s{sig: make([]uint64, %d), prevClk: make(map[int]uint64)}\n", prefix, len(doc.Signals))
	for mi, m := range doc.Memories {
		fmt.Fprintf(&b, "\te.mem%s_%d = make([]uint64, %d)\n", prefix, mi, m.Depth)
	}
	fmt.Fprintf(&b, "\te.ResetMemories()\n")
	fmt.Fprintf(&b, "\treturn e\n")
	fmt.Fprintf(&b, "}\n\n")

	fmt.Fprintf(&b, "func (e *Engine%s) risingEdge(clk int) bool {\n\treturn e.prevClk[clk] == 0 && e.sig[clk] != 0\n}\n\n", prefix)
	fmt.Fprintf(&b, "func (e *Engine%s) SetPrevClock(clk int) { e.prevClk[clk] = e.sig[clk] }\n\n", prefix)

	fmt.Fprintf(&b, "func (e *Engine%s) Peek(idx int) uint64 { return e.sig[idx] }\n\n", prefix)
	fmt.Fprintf(&b, "func (e *Engine%s) Poke(idx int, val uint64) { e.sig[idx] = val }\n\n", prefix)

	// ResetMemories restores every memory's declared reset word (or zero),
	// the plugin-side half of CompiledEngine.Reset; signal reset stays
	// host-side via Poke since the Backend ABI is signal-indexed there.
	fmt.Fprintf(&b, "func (e *Engine%s) ResetMemories() {\n", prefix)
	for mi, m := range doc.Memories {
		var word string
		if m.HasReset {
			word = fmt.Sprintf("uint64(%d) & maskW(%d)", m.ResetWord, m.Width)
		} else {
			word = "0"
		}
		fmt.Fprintf(&b, "\tfor a := range e.mem%s_%d {\n", prefix, mi)
		fmt.Fprintf(&b, "\t\te.mem%s_%d[a] = %s\n", prefix, mi, word)
		b.WriteString("\t}\n")
	}
	fmt.Fprintf(&b, "}\n\n")

	fmt.Fprintf(&b, "func (e *Engine%s) Evaluate() {\n", prefix)
	for _, line := range evalGen.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(evalBody.String())
	b.WriteString("}\n\n")

	fmt.Fprintf(&b, "func (e *Engine%s) Tick() error {\n", prefix)
	for _, line := range tickGen.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(tickBody.String())
	for i, sp := range doc.Sequential {
		fmt.Fprintf(&b, "\tif e.staged%s_%d { e.sig[%d] = e.pending%s_%d; e.staged%s_%d = false }\n",
			prefix, i, sp.Target, prefix, i, prefix, i)
	}
	fmt.Fprintf(&b, "\te.Evaluate()\n")
	fmt.Fprintf(&b, "\treturn nil\n")
	fmt.Fprintf(&b, "}\n")

	return b.String(), nil
}

func validatePrefix(prefix string) error {
	if prefix == "" {
		return InvalidPrefixError{Prefix: prefix}
	}
	for _, r := range prefix {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return InvalidPrefixError{Prefix: prefix}
		}
	}
	return nil
}

// InvalidPrefixError reports a symbol prefix that wouldn't produce legal
// Go identifiers.
type InvalidPrefixError struct {
	Prefix string
}

func (e InvalidPrefixError) Error() string {
	return fmt.Sprintf("aotcompiler: invalid symbol prefix %q", e.Prefix)
}

const runtimeHelpers = `
func maskW(w int) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(w)) - 1
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func muxU64(sel bool, a, b uint64) uint64 {
	if sel {
		return a
	}
	return b
}

func divU64(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func remU64(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return a % b
}

func shlU64(a, amt uint64, w int) uint64 {
	if amt >= uint64(w) {
		return 0
	}
	return a << amt
}

func shrU64(a, amt uint64, w int) uint64 {
	if amt >= uint64(w) {
		return 0
	}
	return a >> amt
}

func signExtend(v uint64, w int) uint64 {
	if w >= 64 {
		return v
	}
	sign := uint64(1) << uint(w-1)
	v &= maskW(w)
	if v&sign != 0 {
		return v | ^maskW(w)
	}
	return v
}

func sarU64(a, amt uint64, srcW, dstW int) uint64 {
	sv := int64(signExtend(a, srcW))
	if amt >= uint64(srcW) {
		if sv < 0 {
			return maskW(dstW)
		}
		return 0
	}
	return uint64(sv>>amt) & maskW(dstW)
}
`
