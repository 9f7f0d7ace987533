// Package memmap defines the byte-addressable memory interface behind the
// runner adapter's named spaces (main, ROM, boot ROM, VRAM, zero-page,
// work RAM, framebuffer), which are all Banks of this shape. The IR
// memory tables of the interpreter and netlist backends keep their own
// word arrays and do not use it.
package memmap

import (
	"math/rand"
)

// Bank is a byte-addressable region of memory. Implementations that back
// read-only space (ROM, boot ROM) make Write a no-op rather than an error,
// matching the façade's documented "writes to ROM spaces are rejected"
// behavior for the runner.
type Bank interface {
	// Read returns the byte stored at addr.
	Read(addr uint16) uint8
	// Write updates addr with val. For a read-only Bank this is a no-op.
	Write(addr uint16, val uint8)
	// PowerOn resets the bank to its power-on state.
	PowerOn()
	// Parent returns the enclosing Bank in a chained memory map, or nil.
	Parent() Bank
	// DatabusVal returns the last value observed crossing this bank's bus.
	DatabusVal() uint8
}

// LatestDatabusVal walks a chain of Banks to the outermost one and returns
// its DatabusVal. Some peripherals (open-bus reads) depend on this
// transient state.
func LatestDatabusVal(b Bank) uint8 {
	if b.Parent() != nil {
		return LatestDatabusVal(b.Parent())
	}
	return b.DatabusVal()
}

// ram is a flat, power-of-two-sized read/write region. If mapped into a
// larger address space it is the parent's job to mask addr before calling
// Read/Write.
type ram struct {
	data       []uint8
	parent     Bank
	databusVal uint8
	randomize  bool
}

// NewRAM creates a read/write bank of the given size. size must be a power
// of two no larger than 64Ki. randomize controls whether PowerOn fills the
// bank with pseudo-random bytes (as real SRAM powers on in an undefined
// state) or leaves it zeroed (deterministic, used by conformance tests that
// need two instances to agree after reset).
func NewRAM(size int, parent Bank, randomize bool) (Bank, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, SizeError{Size: size}
	}
	if size > 1<<16 {
		return nil, SizeError{Size: size}
	}
	return &ram{
		data:      make([]uint8, size),
		parent:    parent,
		randomize: randomize,
	}, nil
}

// SizeError reports an invalid bank size requested of NewRAM or NewROM.
type SizeError struct {
	Size int
}

func (e SizeError) Error() string {
	return "memmap: invalid size: must be a power of 2 no larger than 65536"
}

func (r *ram) Read(addr uint16) uint8 {
	addr &= uint16(len(r.data) - 1)
	v := r.data[addr]
	r.databusVal = v
	return v
}

func (r *ram) Write(addr uint16, val uint8) {
	addr &= uint16(len(r.data) - 1)
	r.databusVal = val
	r.data[addr] = val
}

func (r *ram) PowerOn() {
	if r.randomize {
		for i := range r.data {
			r.data[i] = uint8(rand.Intn(256))
		}
		return
	}
	for i := range r.data {
		r.data[i] = 0
	}
}

func (r *ram) Parent() Bank        { return r.parent }
func (r *ram) DatabusVal() uint8   { return r.databusVal }

// LoadAt copies src into the bank starting at addr, wrapping at the bank's
// size. Used by the runner's image loader.
func (r *ram) LoadAt(addr uint16, src []uint8) {
	mask := uint16(len(r.data) - 1)
	for i, b := range src {
		r.data[(addr+uint16(i))&mask] = b
	}
}

// rom is a read-only region: Write is a no-op; WriteBypass and LoadAt
// are the only methods that change its contents.
type rom struct {
	data       []uint8
	parent     Bank
	databusVal uint8
}

// NewROM creates a read-only bank pre-loaded with contents. If contents is
// shorter than size the remainder is zero-filled; if longer it is
// truncated.
func NewROM(size int, contents []uint8, parent Bank) (Bank, error) {
	if size <= 0 || size&(size-1) != 0 || size > 1<<16 {
		return nil, SizeError{Size: size}
	}
	d := make([]uint8, size)
	copy(d, contents)
	return &rom{data: d, parent: parent}, nil
}

func (r *rom) Read(addr uint16) uint8 {
	addr &= uint16(len(r.data) - 1)
	v := r.data[addr]
	r.databusVal = v
	return v
}

func (r *rom) Write(addr uint16, val uint8) {
	// Real ROM: writes are simply ignored.
	r.databusVal = val
}

// WriteBypass writes through ROM protection. Nothing in this module calls
// it: the runner's "set reset vector" control op goes through
// cpu.Bus.InjectResetVector, which pokes design signals instead.
func (r *rom) WriteBypass(addr uint16, val uint8) {
	addr &= uint16(len(r.data) - 1)
	r.databusVal = val
	r.data[addr] = val
}

func (r *rom) PowerOn()           {}
func (r *rom) Parent() Bank       { return r.parent }
func (r *rom) DatabusVal() uint8  { return r.databusVal }

// LoadAt replaces the ROM's contents starting at addr, wrapping at size.
// Used only by the image loader prior to the system being powered on.
func (r *rom) LoadAt(addr uint16, src []uint8) {
	mask := uint16(len(r.data) - 1)
	for i, b := range src {
		r.data[(addr+uint16(i))&mask] = b
	}
}

// RAM and ROM are the constructor-facing types so callers outside the
// package can reach LoadAt/WriteBypass without a type assertion back onto
// the unexported structs.
type RAM = *ram
type ROM = *rom

// NewRAMBank is NewRAM with its concrete type exposed.
func NewRAMBank(size int, parent Bank, randomize bool) (RAM, error) {
	b, err := NewRAM(size, parent, randomize)
	if err != nil {
		return nil, err
	}
	return b.(RAM), nil
}

// NewROMBank is NewROM with its concrete type exposed.
func NewROMBank(size int, contents []uint8, parent Bank) (ROM, error) {
	b, err := NewROM(size, contents, parent)
	if err != nil {
		return nil, err
	}
	return b.(ROM), nil
}
