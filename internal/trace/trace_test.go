package trace

import (
	"bytes"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func TestCaptureOnlyRecordsChanges(t *testing.T) {
	r := New()
	r.Enable(true)
	r.Subscribe(0, "clk", 1)
	r.Subscribe(1, "acc", 8)

	values := map[int]uint64{0: 0, 1: 0}
	read := func(idx int) uint64 { return values[idx] }

	r.Capture(read) // both signals: first observation, both recorded
	values[0] = 1
	r.Capture(read) // clk changes, acc does not
	values[0] = 0
	values[1] = 0x2a
	r.Capture(read) // both change

	log := r.Log()
	if len(log) != 2+1+2 {
		t.Fatalf("unexpected log length: %s", spew.Sdump(log))
	}
	if got := r.Measure(1); got != 2 {
		t.Errorf("acc should have 2 recorded changes, got %d: %s", got, spew.Sdump(r.SeriesFor(1)))
	}
}

func TestCaptureNoOpWhileDisabled(t *testing.T) {
	r := New()
	r.Subscribe(0, "clk", 1)
	r.Capture(func(int) uint64 { return 1 })
	if len(r.Log()) != 0 {
		t.Fatalf("expected no captures while disabled, got %s", spew.Sdump(r.Log()))
	}
}

func TestClearResetsLastValueButKeepsSubscriptions(t *testing.T) {
	r := New()
	r.Enable(true)
	r.Subscribe(0, "sig", 4)
	r.Capture(func(int) uint64 { return 5 })
	r.Clear()
	r.Capture(func(int) uint64 { return 5 })
	if got := r.Measure(0); got != 1 {
		t.Fatalf("expected Clear to force a fresh change record, got %d changes", got)
	}
}

func TestVCDRoundTrip(t *testing.T) {
	r := New()
	r.Enable(true)
	r.Subscribe(0, "clk", 1)
	r.Subscribe(1, "bus", 8)

	seq := []struct{ clk, bus uint64 }{
		{0, 0x00}, {1, 0x00}, {0, 0x7f}, {1, 0x7f}, {0, 0xff}, {1, 0xab},
	}
	for _, s := range seq {
		vals := map[int]uint64{0: s.clk, 1: s.bus}
		r.Capture(func(idx int) uint64 { return vals[idx] })
	}

	want0 := r.SeriesFor(0)
	want1 := r.SeriesFor(1)

	var buf bytes.Buffer
	if err := r.WriteVCD(&buf); err != nil {
		t.Fatalf("WriteVCD: %v", err)
	}

	_, changes, err := ParseVCD(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ParseVCD: %v", err)
	}

	id0, _ := r.VarID(0)
	id1, _ := r.VarID(1)
	got0 := SeriesByID(changes, id0)
	got1 := SeriesByID(changes, id1)

	if !seriesEqual(want0, got0) {
		t.Errorf("clk series mismatch\nwant %s\ngot  %s", spew.Sdump(want0), spew.Sdump(got0))
	}
	if !seriesEqual(want1, got1) {
		t.Errorf("bus series mismatch\nwant %s\ngot  %s", spew.Sdump(want1), spew.Sdump(got1))
	}
}

func seriesEqual(a, b []Sample) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Cycle != b[i].Cycle || a[i].Value != b[i].Value {
			return false
		}
	}
	return true
}

func TestVCDIdentAllocationIsStableAndDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := vcdIdent(i)
		if seen[id] {
			t.Fatalf("duplicate vcd identifier %q at index %d", id, i)
		}
		seen[id] = true
	}
}
