package facade

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
)

// counterDoc is a tiny 4-bit free-running counter: count increments every
// rising edge of clk, with no combinational drivers at all, enough to
// exercise create/exec/signal/trace without needing a full ALU fixture.
const counterDoc = `{
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

func mustCreate(t *testing.T, kind BackendKind) *Backend {
	t.Helper()
	b, err := Create([]byte(counterDoc), &Def{Kind: kind, Lanes: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return b
}

func TestInterpCounterTicksForward(t *testing.T) {
	b := mustCreate(t, KindInterp)
	defer b.Destroy()

	idx, ok := b.Document().SignalByName("count")
	if !ok {
		t.Fatal("count signal not found")
	}

	for i := uint64(0); i < 5; i++ {
		got, ok := b.Signal(SignalPeekByIndex, "", int(idx), 0)
		if !ok || got != i {
			t.Fatalf("tick %d: want count=%d, got %d (ok=%v): %s", i, i, got, ok, spew.Sdump(b.doc))
		}
		if _, err := b.Exec(ExecTickForced, 0, 0); err != nil {
			t.Fatalf("tick %d: exec tick-forced: %v", i, err)
		}
	}
}

func TestNetlistAndInterpAgree(t *testing.T) {
	bi := mustCreate(t, KindInterp)
	defer bi.Destroy()
	bn := mustCreate(t, KindNetlist)
	defer bn.Destroy()

	idx, _ := bi.Document().SignalByName("count")

	for i := 0; i < 6; i++ {
		vi, _ := bi.Signal(SignalPeekByIndex, "", int(idx), 0)
		vn, _ := bn.Signal(SignalPeekByIndex, "", int(idx), 0)
		if vi != vn {
			t.Fatalf("tick %d: interp=%d netlist=%d diverge", i, vi, vn)
		}
		if _, err := bi.Exec(ExecTickForced, 0, 0); err != nil {
			t.Fatal(err)
		}
		if _, err := bn.Exec(ExecTickForced, 0, 0); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCapabilitiesBitmask(t *testing.T) {
	b := mustCreate(t, KindInterp)
	defer b.Destroy()
	caps := b.Capabilities()
	if caps&1 == 0 {
		t.Error("signal-by-index bit should be set")
	}
	if caps&2 == 0 {
		t.Error("forced-clock bit should be set (document declares a clock)")
	}
	if caps&4 == 0 {
		t.Error("trace bit should be set for a non-runner backend")
	}
	if caps&32 != 0 {
		t.Error("compile-required bit should be clear for KindInterp")
	}
}

func TestUnknownSignalPeekReturnsNotOK(t *testing.T) {
	b := mustCreate(t, KindInterp)
	defer b.Destroy()
	_, ok := b.Signal(SignalPeek, "nonexistent", 0, 0)
	if ok {
		t.Fatal("expected ok=false for unknown signal name")
	}
}

func TestTraceCaptureAndVCDDump(t *testing.T) {
	b := mustCreate(t, KindInterp)
	defer b.Destroy()

	if _, err := b.Trace(TraceEnable, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Trace(TraceSubscribe, "count"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if _, err := b.Trace(TraceCapture, ""); err != nil {
			t.Fatal(err)
		}
		if _, err := b.Exec(ExecTickForced, 0, 0); err != nil {
			t.Fatal(err)
		}
	}

	buf := make([]byte, 0)
	required, written, err := b.Blob(BlobTraceToVCD, buf)
	if err != nil {
		t.Fatalf("Blob size probe: %v", err)
	}
	if written {
		t.Fatal("zero-length buffer should not be reported written")
	}
	buf = make([]byte, required)
	required2, written, err := b.Blob(BlobTraceToVCD, buf)
	if err != nil || !written || required2 != required {
		t.Fatalf("Blob dump: required=%d written=%v err=%v", required2, written, err)
	}
	if len(buf) == 0 {
		t.Fatal("expected non-empty VCD dump")
	}
}

func TestRunnerUnsupportedOnNonRunnerBackend(t *testing.T) {
	b := mustCreate(t, KindInterp)
	defer b.Destroy()
	if _, err := b.RunnerReadByte(0); err == nil {
		t.Fatal("expected runner-unsupported error on a KindInterp backend")
	} else if _, ok := err.(RunnerUnsupportedError); !ok {
		t.Fatalf("expected RunnerUnsupportedError, got %T: %v", err, err)
	}
}
