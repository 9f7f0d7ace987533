package interp

import (
	"testing"

	"github.com/rhdl/engine/internal/ir"
)

// counterDoc is a 4-bit free-running counter: count increments on every
// rising edge of clk.
func counterDoc(t *testing.T) *ir.Document {
	t.Helper()
	const src = `{
	  "version": 1,
	  "signals": [
	    {"name": "clk", "width": 1, "clock": true},
	    {"name": "count", "width": 4, "reset": 5}
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

func TestNewPowersOnToDeclaredReset(t *testing.T) {
	doc := counterDoc(t)
	e := New(doc)
	idx, _ := doc.SignalByName("count")
	if got := e.Peek(idx); got != 5 {
		t.Fatalf("count after New=%d want 5", got)
	}
}

func TestTickForcedAdvancesOneCountPerCall(t *testing.T) {
	doc := counterDoc(t)
	e := New(doc)
	idx, _ := doc.SignalByName("count")
	for i := uint64(0); i < 20; i++ {
		want := (5 + i) & 0xF
		if got := e.Peek(idx); got != want {
			t.Fatalf("tick %d: count=%d want %d", i, got, want)
		}
		if err := e.TickForced(); err != nil {
			t.Fatalf("TickForced: %v", err)
		}
	}
}

func TestPokeSetsBothCommittedAndPending(t *testing.T) {
	doc := counterDoc(t)
	e := New(doc)
	idx, _ := doc.SignalByName("count")
	e.Poke(idx, 9)
	if got := e.Peek(idx); got != 9 {
		t.Fatalf("Peek after Poke=%d want 9", got)
	}
	e.Evaluate()
	if got := e.Peek(idx); got != 9 {
		t.Fatalf("Peek after Evaluate (no combinational driver)=%d want 9", got)
	}
}

func TestResetRestoresDeclaredLiteral(t *testing.T) {
	doc := counterDoc(t)
	e := New(doc)
	idx, _ := doc.SignalByName("count")
	if err := e.TickForced(); err != nil {
		t.Fatal(err)
	}
	if err := e.TickForced(); err != nil {
		t.Fatal(err)
	}
	if got := e.Peek(idx); got == 5 {
		t.Fatal("count should have advanced past its reset value by now")
	}
	e.Reset()
	if got := e.Peek(idx); got != 5 {
		t.Fatalf("count after Reset=%d want 5", got)
	}
}

func TestDrivenClockModeEdgeDetectsAgainstExplicitBaseline(t *testing.T) {
	doc := counterDoc(t)
	e := New(doc)
	clkIdx, _ := doc.SignalByName("clk")
	countIdx, _ := doc.SignalByName("count")

	e.Poke(clkIdx, 1)
	if err := e.Tick(); err != nil {
		t.Fatal(err)
	}
	if got := e.Peek(countIdx); got != 6 {
		t.Fatalf("count after first driven rising edge=%d want 6", got)
	}
	e.SetPrevClock(clkIdx)

	// clk is still held high; with the baseline now caught up to it, a
	// second Tick sees no new transition and must not advance count again.
	if err := e.Tick(); err != nil {
		t.Fatal(err)
	}
	if got := e.Peek(countIdx); got != 6 {
		t.Fatalf("count after Tick with clk held steady post-SetPrevClock=%d want 6 (unchanged)", got)
	}

	// Falling then rising edge, baselined each time, advances exactly once.
	e.Poke(clkIdx, 0)
	e.SetPrevClock(clkIdx)
	e.Poke(clkIdx, 1)
	if err := e.Tick(); err != nil {
		t.Fatal(err)
	}
	if got := e.Peek(countIdx); got != 7 {
		t.Fatalf("count after second rising edge=%d want 7", got)
	}
}

func TestRunTicksWithClockHeldLowLeavesCountUnchanged(t *testing.T) {
	doc := counterDoc(t)
	e := New(doc)
	idx, _ := doc.SignalByName("count")
	clkIdx, _ := doc.SignalByName("clk")
	e.Poke(clkIdx, 1)
	e.SetPrevClock(clkIdx)
	e.Poke(clkIdx, 0)
	e.SetPrevClock(clkIdx)

	// Drive 3 rising edges manually via RunTicks by toggling clk between
	// calls is out of scope here; RunTicks alone (clk held at 0) should not
	// advance count at all.
	if err := e.RunTicks(5); err != nil {
		t.Fatal(err)
	}
	if got := e.Peek(idx); got != 5 {
		t.Fatalf("count with clk held low across RunTicks=%d want 5 (unchanged)", got)
	}
}

func TestGetClockListIndex(t *testing.T) {
	doc := counterDoc(t)
	e := New(doc)
	clkIdx, _ := doc.SignalByName("clk")
	if got := e.GetClockListIndex(clkIdx); got != 0 {
		t.Fatalf("GetClockListIndex(clk)=%d want 0", got)
	}
	countIdx, _ := doc.SignalByName("count")
	if got := e.GetClockListIndex(countIdx); got != -1 {
		t.Fatalf("GetClockListIndex(count)=%d want -1 (not a forced clock)", got)
	}
}
