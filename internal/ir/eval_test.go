package ir

import "testing"

type constReader map[SignalIndex]uint64

func (r constReader) SignalValue(idx SignalIndex) uint64 { return r[idx] }

func evalOne(t *testing.T, doc *Document, id NodeID, r SignalReader) uint64 {
	t.Helper()
	cache := make([]uint64, len(doc.Nodes))
	computed := make([]bool, len(doc.Nodes))
	return Eval(doc, id, r, cache, computed)
}

func TestEvalDivByZeroYieldsZero(t *testing.T) {
	doc := &Document{
		Nodes: []Node{
			{Op: OpLiteral, Width: 8, Literal: 42},
			{Op: OpLiteral, Width: 8, Literal: 0},
			{Op: OpDiv, Width: 8, Operands: []NodeID{0, 1}},
			{Op: OpRem, Width: 8, Operands: []NodeID{0, 1}},
		},
	}
	if got := evalOne(t, doc, 2, constReader{}); got != 0 {
		t.Fatalf("div by zero = %d, want 0", got)
	}
	if got := evalOne(t, doc, 3, constReader{}); got != 0 {
		t.Fatalf("rem by zero = %d, want 0", got)
	}
}

func TestEvalAddWrapsModuloWidth(t *testing.T) {
	doc := &Document{
		Nodes: []Node{
			{Op: OpLiteral, Width: 8, Literal: 250},
			{Op: OpLiteral, Width: 8, Literal: 10},
			{Op: OpAdd, Width: 8, Operands: []NodeID{0, 1}},
		},
	}
	if got := evalOne(t, doc, 2, constReader{}); got != 4 {
		t.Fatalf("(250+10) mod 256 = %d, want 4", got)
	}
}

func TestEvalSignedComparison(t *testing.T) {
	// -1 and 1 as 8-bit two's complement: 0xFF and 0x01.
	doc := &Document{
		Nodes: []Node{
			{Op: OpLiteral, Width: 8, Literal: 0xFF},
			{Op: OpLiteral, Width: 8, Literal: 0x01},
			{Op: OpLtSigned, Width: 1, Operands: []NodeID{0, 1}},
			{Op: OpLt, Width: 1, Operands: []NodeID{0, 1}},
		},
	}
	if got := evalOne(t, doc, 2, constReader{}); got != 1 {
		t.Fatal("signed -1 < 1 should be true")
	}
	if got := evalOne(t, doc, 3, constReader{}); got != 0 {
		t.Fatal("unsigned 0xFF < 0x01 should be false")
	}
}

func TestEvalShiftByWidthOrMoreYieldsZero(t *testing.T) {
	doc := &Document{
		Nodes: []Node{
			{Op: OpLiteral, Width: 8, Literal: 0xFF},
			{Op: OpLiteral, Width: 8, Literal: 8},
			{Op: OpShl, Width: 8, Operands: []NodeID{0, 1}},
			{Op: OpShr, Width: 8, Operands: []NodeID{0, 1}},
		},
	}
	if got := evalOne(t, doc, 2, constReader{}); got != 0 {
		t.Fatalf("shl by width = %d, want 0", got)
	}
	if got := evalOne(t, doc, 3, constReader{}); got != 0 {
		t.Fatalf("shr by width = %d, want 0", got)
	}
}

func TestEvalSliceAndConcat(t *testing.T) {
	doc := &Document{
		Nodes: []Node{
			{Op: OpLiteral, Width: 8, Literal: 0xAB},
			{Op: OpSlice, Width: 4, Operands: []NodeID{0}, Hi: 7, Lo: 4},
			{Op: OpSlice, Width: 4, Operands: []NodeID{0}, Hi: 3, Lo: 0},
			{Op: OpConcat, Width: 8, Operands: []NodeID{1, 2}},
		},
	}
	if got := evalOne(t, doc, 1, constReader{}); got != 0xA {
		t.Fatalf("high nibble = %#x, want 0xA", got)
	}
	if got := evalOne(t, doc, 2, constReader{}); got != 0xB {
		t.Fatalf("low nibble = %#x, want 0xB", got)
	}
	if got := evalOne(t, doc, 3, constReader{}); got != 0xAB {
		t.Fatalf("concat(hi,lo) = %#x, want 0xAB", got)
	}
}

func TestEvalSignalRefReadsFromReader(t *testing.T) {
	doc := &Document{
		Signals: []Signal{{Name: "x", Width: 8}},
		Nodes: []Node{
			{Op: OpSignalRef, Width: 8, Operands: []NodeID{0}},
		},
	}
	r := constReader{0: 0x77}
	if got := evalOne(t, doc, 0, r); got != 0x77 {
		t.Fatalf("signal ref = %#x, want 0x77", got)
	}
}

func TestEvalMemoizesSharedSubexpression(t *testing.T) {
	// node 2 (a+b) is referenced twice; Eval should compute it once and
	// reuse the cached value for the second reference within one pass.
	doc := &Document{
		Nodes: []Node{
			{Op: OpLiteral, Width: 8, Literal: 3},
			{Op: OpLiteral, Width: 8, Literal: 4},
			{Op: OpAdd, Width: 8, Operands: []NodeID{0, 1}},
			{Op: OpMul, Width: 8, Operands: []NodeID{2, 2}},
		},
	}
	cache := make([]uint64, len(doc.Nodes))
	computed := make([]bool, len(doc.Nodes))
	got := Eval(doc, 3, constReader{}, cache, computed)
	if got != 49 {
		t.Fatalf("(3+4)*(3+4) = %d, want 49", got)
	}
	if !computed[2] {
		t.Fatal("shared subexpression node should be marked computed after one pass")
	}
}
