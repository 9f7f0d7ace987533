package ioslot

import "testing"

type fixedInput uint8

func (f fixedInput) Input() uint8 { return uint8(f) }

func TestReadInputReflectsSource(t *testing.T) {
	s, err := Init(&Def{Input: fixedInput(0x42)})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := s.ReadInput(); got != 0x42 {
		t.Fatalf("ReadInput=%#x want 0x42", got)
	}
}

func TestReadInputWithNilSourceIsZero(t *testing.T) {
	s, err := Init(&Def{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := s.ReadInput(); got != 0 {
		t.Fatalf("ReadInput=%#x want 0 with nil source", got)
	}
}

func TestUnknownEdgeStyleRejected(t *testing.T) {
	_, err := Init(&Def{Edge: "sideways"})
	if err == nil {
		t.Fatal("expected an error for an unrecognized edge style")
	}
	if _, ok := err.(UnknownEdgeError); !ok {
		t.Fatalf("expected UnknownEdgeError, got %T", err)
	}
}

// TestPositiveEdgeLatchesStrobe writes the strobe bit high through the
// shadow latch and confirms it only becomes visible after TickDone, then
// that ClearStrobe acknowledges it without disturbing the edge counter.
func TestPositiveEdgeLatchesStrobe(t *testing.T) {
	s, err := Init(&Def{Edge: "positive"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	s.WriteOutput(StrobeMask)
	if s.StrobeRaised() {
		t.Fatal("strobe should not be visible before TickDone commits it")
	}
	s.TickDone()

	if !s.StrobeRaised() {
		t.Fatal("expected strobe latched after rising edge on TickDone")
	}
	if got := s.StrobeCount(); got != 1 {
		t.Fatalf("StrobeCount=%d want 1", got)
	}

	s.ClearStrobe()
	if s.StrobeRaised() {
		t.Fatal("ClearStrobe should clear the sticky flag")
	}
	if got := s.StrobeCount(); got != 1 {
		t.Fatalf("StrobeCount after ClearStrobe=%d want 1 (counter is independent of the sticky flag)", got)
	}
}

func TestNegativeEdgeIgnoresRisingTransition(t *testing.T) {
	s, err := Init(&Def{Edge: "negative"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	s.Tick()
	s.WriteOutput(StrobeMask)
	s.TickDone()
	if s.StrobeRaised() {
		t.Fatal("negative-edge slot should not latch on a rising transition")
	}

	s.Tick()
	s.WriteOutput(0)
	s.TickDone()
	if !s.StrobeRaised() {
		t.Fatal("negative-edge slot should latch on the falling transition")
	}
}

func TestResetStrobeCountKeepsStickyFlag(t *testing.T) {
	s, err := Init(&Def{Edge: "positive"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	s.Tick()
	s.WriteOutput(StrobeMask)
	s.TickDone()

	s.ResetStrobeCount()
	if got := s.StrobeCount(); got != 0 {
		t.Fatalf("StrobeCount after ResetStrobeCount=%d want 0", got)
	}
	if !s.StrobeRaised() {
		t.Fatal("ResetStrobeCount must not clear the sticky strobe flag")
	}
}

func TestTickWithoutTickDoneErrors(t *testing.T) {
	s, err := Init(&Def{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.Tick(); err != nil {
		t.Fatalf("first Tick: %v", err)
	}
	if err := s.Tick(); err == nil {
		t.Fatal("expected error calling Tick twice without an intervening TickDone")
	}
}
