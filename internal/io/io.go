// Package io defines the basic interfaces for working with a single-bit or
// byte-wide I/O port as seen by the runner adapter's keyboard and speaker
// slots. It's intended that implementors call the input callback (if
// provided) on every clock tick and properly account for the fact that
// output won't mirror input for a clock cycle (to account for latches
// being loaded).
package io

// Port8 defines an 8 bit I/O port.
type Port8 interface {
	// Input returns the current value being driven into the port.
	Input() uint8
}

// PortIn1 defines a single-bit input port (a switch, joystick line, or
// latched key-ready flag).
type PortIn1 interface {
	// Input returns the current logic level on the pin.
	Input() bool
}

// PortOut8 defines an 8 bit output port (a register snapshot a host can
// sample between ticks).
type PortOut8 interface {
	// Output returns the byte currently being driven out of the port.
	Output() uint8
}

// PortOut1 defines a single-bit output port.
type PortOut1 interface {
	// Output returns the current logic level being driven out of the pin.
	Output() bool
}
