// Package cpu implements the runner adapter's bus cycle: the one piece of
// glue between a simulated design's address/data/read/write pins (as
// named by ir.RunnerMeta) and the host-side named memory spaces it
// addresses. It plays the role the teacher's cpu.Chip plays for a real
// 6502 bus cycle, generalized from "the CPU fetches and executes
// instructions against a 16-bit address space" to "whatever design is
// loaded drives its declared bus signals once per Tick, and this glue
// resolves reads/writes against the runner's address decode" (spec §6).
package cpu

import (
	"fmt"

	"github.com/rhdl/engine/internal/ir"
	"github.com/rhdl/engine/internal/memmap"
)

// Backend is the subset of interp.Engine/netlist.Lane that the bus needs:
// signal-level peek/poke plus the clocking primitives. Both backends
// satisfy it without any adapter boilerplate, the same way the teacher's
// memory.Bank lets RAM, ROM, and chip register windows share one Read/
// Write contract.
type Backend interface {
	Peek(idx ir.SignalIndex) uint64
	Poke(idx ir.SignalIndex, val uint64)
	Tick() error
	Evaluate()
	TickForced() error
	Document() *ir.Document
}

// DecodeError reports a RunnerMeta naming a signal the loaded document does
// not actually declare.
type DecodeError struct {
	Signal string
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("cpu: runner metadata references unknown signal %q", e.Signal)
}

// region is one decoded address range backed by a memmap.Bank.
type region struct {
	kind       ir.RunnerSpaceKind
	base       uint64
	size       uint64
	bank       memmap.Bank
	writeCount int
}

// Bus wires a Backend's bus-facing signals to a set of named memmap banks,
// performing one bus transaction per Tick the way cpu.Chip.Tick drives one
// memory.Bank.Read/Write per clock.
type Bus struct {
	backend Backend

	address, dataIn, dataOut, read, write ir.SignalIndex

	regions []region

	resetVectorLoSig, resetVectorHiSig ir.SignalIndex
	haveResetVector                    bool

	clocks   int
	debug    bool
	tickDone bool
}

// Def configures a Bus from an already-loaded design's RunnerMeta plus the
// concrete banks backing each declared space, in space-declaration order.
type Def struct {
	Backend Backend
	Banks   []memmap.Bank
	Debug   bool
}

// New resolves a RunnerMeta's signal names against the Backend's document
// and returns a Bus ready to drive reads and writes every Tick.
func New(d *Def) (*Bus, error) {
	doc := d.Backend.Document()
	meta := doc.Runner

	resolve := func(name string) (ir.SignalIndex, error) {
		if name == "" {
			return -1, nil
		}
		idx, ok := doc.SignalByName(name)
		if !ok {
			return -1, DecodeError{Signal: name}
		}
		return idx, nil
	}

	addr, err := resolve(meta.AddressSignal)
	if err != nil {
		return nil, err
	}
	din, err := resolve(meta.DataInSignal)
	if err != nil {
		return nil, err
	}
	dout, err := resolve(meta.DataOutSignal)
	if err != nil {
		return nil, err
	}
	rd, err := resolve(meta.ReadSignal)
	if err != nil {
		return nil, err
	}
	wr, err := resolve(meta.WriteSignal)
	if err != nil {
		return nil, err
	}
	rvLo, err := resolve(meta.ResetVectorLoSig)
	if err != nil {
		return nil, err
	}
	rvHi, err := resolve(meta.ResetVectorHiSig)
	if err != nil {
		return nil, err
	}

	if len(d.Banks) != len(meta.Spaces) {
		return nil, fmt.Errorf("cpu: %d banks supplied for %d declared runner spaces", len(d.Banks), len(meta.Spaces))
	}

	b := &Bus{
		backend:          d.Backend,
		address:          addr,
		dataIn:           din,
		dataOut:          dout,
		read:             rd,
		write:            wr,
		resetVectorLoSig: rvLo,
		resetVectorHiSig: rvHi,
		haveResetVector:  meta.ResetVectorLoSig != "" && meta.ResetVectorHiSig != "",
		debug:            d.Debug,
		tickDone:         true,
	}

	var base uint64
	for i, sp := range meta.Spaces {
		b.regions = append(b.regions, region{kind: sp.Kind, base: base, size: uint64(sp.Size), bank: d.Banks[i]})
		base += uint64(sp.Size)
	}
	return b, nil
}

func (b *Bus) decode(addr uint64) (region, uint64, bool) {
	for _, r := range b.regions {
		if addr >= r.base && addr < r.base+r.size {
			return r, addr - r.base, true
		}
	}
	return region{}, 0, false
}

func (b *Bus) decodeIndex(addr uint64) (int, uint64, bool) {
	for i, r := range b.regions {
		if addr >= r.base && addr < r.base+r.size {
			return i, addr - r.base, true
		}
	}
	return -1, 0, false
}

// WriteCount returns the number of writes observed against the named
// space since power-on, used by the runner adapter to detect whether a
// batched run touched video memory ("text page changed").
func (b *Bus) WriteCount(kind ir.RunnerSpaceKind) int {
	for _, r := range b.regions {
		if r.kind == kind {
			return r.writeCount
		}
	}
	return 0
}

// BankByKind returns the bank backing the named space, or nil if the
// runner has no such space.
func (b *Bus) BankByKind(kind ir.RunnerSpaceKind) memmap.Bank {
	for _, r := range b.regions {
		if r.kind == kind {
			return r.bank
		}
	}
	return nil
}

// InjectResetVector pokes the low and high bytes of addr onto the design's
// declared ResetVectorLoSig/HiSig signals, the way a runner harness forces
// a synthetic entry point instead of relying on whatever a loaded ROM
// image holds. No memory space is written; without a declared reset-vector
// signal pair it does nothing.
func (b *Bus) InjectResetVector(addr uint16) {
	if !b.haveResetVector {
		return
	}
	b.backend.Poke(b.resetVectorLoSig, uint64(addr&0xFF))
	b.backend.Poke(b.resetVectorHiSig, uint64(addr>>8))
}

// Tick runs one bus cycle: sample the address/control lines the design
// drove during the previous settle, perform the read or write against the
// decoded region, stage the result for the design to see on data-in, then
// advance the design's own clock by one Tick.
func (b *Bus) Tick() error {
	b.clocks++
	if !b.tickDone {
		return fmt.Errorf("cpu: Tick called without a prior TickDone")
	}
	b.tickDone = false

	addr := b.backend.Peek(b.address)
	if b.read != -1 && b.backend.Peek(b.read) != 0 {
		if r, off, ok := b.decode(addr); ok {
			b.backend.Poke(b.dataIn, uint64(r.bank.Read(uint16(off))))
		} else {
			b.backend.Poke(b.dataIn, 0)
		}
	}
	if b.write != -1 && b.backend.Peek(b.write) != 0 {
		if i, off, ok := b.decodeIndex(addr); ok {
			// memmap.Bank documents Write as a safe no-op on read-only
			// implementations (ROM/boot ROM), so no read-only check here.
			b.regions[i].bank.Write(uint16(off), uint8(b.backend.Peek(b.dataOut)))
			b.regions[i].writeCount++
		}
	}

	if err := b.backend.Tick(); err != nil {
		return fmt.Errorf("cpu: backend tick: %w", err)
	}
	return nil
}

// TickDone marks the bus cycle complete, matching the teacher's
// Tick/TickDone convention for multi-chip synchronization.
func (b *Bus) TickDone() {
	b.tickDone = true
}

// ReadByte reads one byte through the runner's address decode, the
// "mapped-view read that follows the CPU's memory map" of spec §4.6,
// independent of the design's own bus Tick.
func (b *Bus) ReadByte(addr uint16) uint8 {
	if r, off, ok := b.decode(uint64(addr)); ok {
		return r.bank.Read(uint16(off))
	}
	return 0
}

// WriteByte writes one byte through the runner's address decode. Writes
// against a read-only region are a safe no-op per memmap.Bank's contract.
func (b *Bus) WriteByte(addr uint16, val uint8) {
	if r, off, ok := b.decode(uint64(addr)); ok {
		r.bank.Write(uint16(off), val)
	}
}

// ReadRange reads a contiguous mapped-view slice starting at addr.
func (b *Bus) ReadRange(addr uint16, n int) []uint8 {
	out := make([]uint8, n)
	for i := 0; i < n; i++ {
		out[i] = b.ReadByte(addr + uint16(i))
	}
	return out
}

// Debug returns a one-line trace when debug logging is enabled.
func (b *Bus) Debug() string {
	if !b.debug {
		return ""
	}
	return fmt.Sprintf("%.6d bus addr=%#04x", b.clocks, b.backend.Peek(b.address))
}
