package aotcompiler

import (
	"strings"
	"testing"

	"github.com/rhdl/engine/internal/ir"
)

// counterDoc mirrors facade's fixture: a 4-bit free-running counter, one
// sequential port, no combinational drivers, enough to exercise both the
// Evaluate and Tick code paths of Generate.
func counterDoc(t *testing.T) *ir.Document {
	t.Helper()
	const src = `{
	  "version": 1,
	  "signals": [
	    {"name": "clk", "width": 1, "clock": true},
	    {"name": "count", "width": 4, "reset": 0}
	  ],
	  "nodes": [
	    {"id": 0, "op": "literal", "width": 1, "literal": 1},
	    {"id": 1, "op": "signal", "width": 4, "operands": [1]},
	    {"id": 2, "op": "literal", "width": 4, "literal": 1},
	    {"id": 3, "op": "add", "width": 4, "operands": [1, 2]}
	  ],
	  "sequential": [
	    {"target": "count", "clock": "clk", "guard": 0, "next": 3}
	  ],
	  "clock_list": ["clk"]
	}`
	doc, err := ir.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := ir.Validate(doc); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return doc
}

func TestGenerateProducesExpectedConstructorAndMethods(t *testing.T) {
	doc := counterDoc(t)
	src, err := Generate(doc, "main", "inst")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for _, want := range []string{
		"package main",
		"func NewEngineinst() aotcompiler.Backend",
		"func (e *Engineinst) Evaluate()",
		"func (e *Engineinst) Tick() error",
		"func (e *Engineinst) Peek(idx int) uint64",
		"func (e *Engineinst) Poke(idx int, val uint64)",
		"func (e *Engineinst) ResetMemories()",
		`"github.com/rhdl/engine/internal/aotcompiler"`,
	} {
		if !strings.Contains(src, want) {
			t.Fatalf("generated source missing %q:\n%s", want, src)
		}
	}

	if strings.Contains(src, `"math/bits"`) {
		t.Fatal("counterDoc has no reduce-xor node; generated source should not import math/bits")
	}
}

// TestGenerateDoesNotDeclareUnusedEvaluateVarsForSequentialOnlyDoc guards
// against regressing into declaring sequential guard/next node variables
// inside Evaluate for a document with no combinational drivers: Go would
// reject them as declared and not used.
func TestGenerateDoesNotDeclareUnusedEvaluateVarsForSequentialOnlyDoc(t *testing.T) {
	doc := counterDoc(t)
	src, err := Generate(doc, "main", "inst")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	start := strings.Index(src, "func (e *Engineinst) Evaluate() {")
	end := strings.Index(src, "func (e *Engineinst) Tick() error {")
	if start < 0 || end < 0 || end < start {
		t.Fatalf("could not locate Evaluate/Tick bodies in generated source:\n%s", src)
	}
	evalFn := src[start:end]
	if strings.Contains(evalFn, "ninst_") {
		t.Fatalf("Evaluate body declares sequential-only node vars it never uses:\n%s", evalFn)
	}
}

// TestGenerateEmitsReduceXorImportOnlyWhenNeeded exercises the conditional
// math/bits import the other way: a document containing a reduce-xor node
// must import it, or the generated source fails to compile.
func TestGenerateEmitsReduceXorImportOnlyWhenNeeded(t *testing.T) {
	doc := &ir.Document{
		Signals: []ir.Signal{{Name: "x", Width: 8}, {Name: "y", Width: 1}},
		Nodes: []ir.Node{
			{Op: ir.OpSignalRef, Width: 8, Operands: []ir.NodeID{0}},
			{Op: ir.OpReduceXor, Width: 1, Operands: []ir.NodeID{0}},
		},
		CombDrivers: []ir.CombDriver{{Target: 1, Root: 1}},
	}
	src, err := Generate(doc, "main", "inst")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(src, `"math/bits"`) {
		t.Fatalf("document with a reduce-xor node should import math/bits:\n%s", src)
	}
}

func TestGenerateRejectsInvalidPrefix(t *testing.T) {
	doc := counterDoc(t)
	if _, err := Generate(doc, "main", ""); err == nil {
		t.Fatal("expected an error for an empty symbol prefix")
	}
	if _, err := Generate(doc, "main", "has space"); err == nil {
		t.Fatal("expected an error for a prefix containing illegal identifier characters")
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	doc := counterDoc(t)
	a, err := Generate(doc, "main", "inst")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := Generate(doc, "main", "inst")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a != b {
		t.Fatal("Generate should produce byte-identical output for the same document and prefix")
	}
}
