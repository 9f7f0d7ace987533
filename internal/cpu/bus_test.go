package cpu

import (
	"testing"

	"github.com/rhdl/engine/internal/ir"
	"github.com/rhdl/engine/internal/memmap"
)

// fakeBackend is a minimal Backend stand-in: a flat signal-value table
// driven directly by the test instead of going through interp/netlist,
// isolating the bus's address-decode/read/write glue from evaluation.
type fakeBackend struct {
	doc    *ir.Document
	values map[ir.SignalIndex]uint64
	ticks  int
}

func newFakeBackend(doc *ir.Document) *fakeBackend {
	return &fakeBackend{doc: doc, values: make(map[ir.SignalIndex]uint64)}
}

func (f *fakeBackend) Peek(idx ir.SignalIndex) uint64      { return f.values[idx] }
func (f *fakeBackend) Poke(idx ir.SignalIndex, val uint64) { f.values[idx] = val }
func (f *fakeBackend) Tick() error                          { f.ticks++; return nil }
func (f *fakeBackend) Evaluate()                             {}
func (f *fakeBackend) TickForced() error                     { f.ticks++; return nil }
func (f *fakeBackend) Document() *ir.Document                { return f.doc }

func testDoc() *ir.Document {
	d := &ir.Document{
		Signals: []ir.Signal{
			{Name: "addr", Width: 16},
			{Name: "din", Width: 8},
			{Name: "dout", Width: 8},
			{Name: "rd", Width: 1},
			{Name: "wr", Width: 1},
			{Name: "rv_lo", Width: 8},
			{Name: "rv_hi", Width: 8},
		},
		Runner: ir.RunnerMeta{
			Enabled:          true,
			AddressSignal:    "addr",
			DataInSignal:     "din",
			DataOutSignal:    "dout",
			ReadSignal:       "rd",
			WriteSignal:      "wr",
			ResetVectorLoSig: "rv_lo",
			ResetVectorHiSig: "rv_hi",
			Spaces: []ir.RunnerSpace{
				{Kind: ir.SpaceMain, Size: 256},
				{Kind: ir.SpaceROM, Size: 256, ReadOnly: true},
			},
		},
	}
	return d
}

func newTestBus(t *testing.T) (*Bus, *fakeBackend, memmap.Bank, memmap.Bank) {
	t.Helper()
	doc := testDoc()
	be := newFakeBackend(doc)
	ram, err := memmap.NewRAM(256, nil, false)
	if err != nil {
		t.Fatalf("NewRAM: %v", err)
	}
	rom, err := memmap.NewROM(256, make([]uint8, 256), nil)
	if err != nil {
		t.Fatalf("NewROM: %v", err)
	}
	b, err := New(&Def{Backend: be, Banks: []memmap.Bank{ram, rom}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, be, ram, rom
}

func addrIdx(doc *ir.Document, name string) ir.SignalIndex {
	idx, _ := doc.SignalByName(name)
	return idx
}

func TestTickWriteLandsInDecodedRegionAndCountsIt(t *testing.T) {
	b, be, ram, _ := newTestBus(t)
	doc := be.doc

	be.Poke(addrIdx(doc, "addr"), 0x10)
	be.Poke(addrIdx(doc, "dout"), 0xAB)
	be.Poke(addrIdx(doc, "wr"), 1)
	b.TickDone()
	if err := b.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if got := ram.Read(0x10); got != 0xAB {
		t.Fatalf("ram[0x10]=%#x want 0xAB", got)
	}
	if got := b.WriteCount(ir.SpaceMain); got != 1 {
		t.Fatalf("WriteCount(SpaceMain)=%d want 1", got)
	}
	if got := b.WriteCount(ir.SpaceROM); got != 0 {
		t.Fatalf("WriteCount(SpaceROM)=%d want 0 (no write issued against ROM)", got)
	}
}

func TestWriteToROMRegionIsNoOp(t *testing.T) {
	b, be, _, rom := newTestBus(t)
	doc := be.doc

	be.Poke(addrIdx(doc, "addr"), 256+5) // ROM region starts at 256
	be.Poke(addrIdx(doc, "dout"), 0x55)
	be.Poke(addrIdx(doc, "wr"), 1)
	b.TickDone()
	if err := b.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if got := rom.Read(5); got != 0 {
		t.Fatalf("rom[5]=%#x want 0 (write to ROM must be a no-op)", got)
	}
}

func TestTickReadPopulatesDataIn(t *testing.T) {
	b, be, ram, _ := newTestBus(t)
	doc := be.doc
	ram.Write(0x20, 0x77)

	be.Poke(addrIdx(doc, "addr"), 0x20)
	be.Poke(addrIdx(doc, "rd"), 1)
	b.TickDone()
	if err := b.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if got := be.Peek(addrIdx(doc, "din")); got != 0x77 {
		t.Fatalf("din=%#x want 0x77", got)
	}
}

func TestTickWithoutTickDoneErrors(t *testing.T) {
	b, _, _, _ := newTestBus(t)
	if err := b.Tick(); err != nil {
		t.Fatalf("first Tick: %v", err)
	}
	if err := b.Tick(); err == nil {
		t.Fatal("expected error calling Tick twice without an intervening TickDone")
	}
}

func TestReadByteAndWriteByteBypassBusTick(t *testing.T) {
	b, _, ram, _ := newTestBus(t)
	b.WriteByte(0x30, 0x99)
	if got := ram.Read(0x30); got != 0x99 {
		t.Fatalf("ram[0x30]=%#x want 0x99", got)
	}
	if got := b.ReadByte(0x30); got != 0x99 {
		t.Fatalf("ReadByte(0x30)=%#x want 0x99", got)
	}
}

func TestReadRangeReturnsContiguousBytes(t *testing.T) {
	b, _, ram, _ := newTestBus(t)
	for i := 0; i < 4; i++ {
		ram.Write(uint16(0x40+i), uint8(i+1))
	}
	got := b.ReadRange(0x40, 4)
	want := []uint8{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ReadRange[%d]=%d want %d", i, got[i], want[i])
		}
	}
}

func TestInjectResetVectorPokesBothBytes(t *testing.T) {
	b, be, _, _ := newTestBus(t)
	doc := be.doc
	b.InjectResetVector(0x1234)
	if got := be.Peek(addrIdx(doc, "rv_lo")); got != 0x34 {
		t.Fatalf("rv_lo=%#x want 0x34", got)
	}
	if got := be.Peek(addrIdx(doc, "rv_hi")); got != 0x12 {
		t.Fatalf("rv_hi=%#x want 0x12", got)
	}
}
