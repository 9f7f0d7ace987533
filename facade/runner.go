package facade

import (
	"github.com/rhdl/engine/internal/ir"
	"github.com/rhdl/engine/internal/runnercore"
)

// RunnerControlOp enumerates spec §6's runner control op-codes: "0 = set
// reset vector (arg: 16-bit vector), 1 = clear speaker toggle count, 2 =
// reset LCD state."
type RunnerControlOp int

const (
	RunnerControlSetResetVector RunnerControlOp = iota
	RunnerControlClearSpeakerToggles
	RunnerControlResetLCD
)

// RunnerProbeOp enumerates spec §6's runner probe op-codes: "kind,
// in-runner-mode, speaker toggles, framebuffer length, frame count,
// vertical counter, horizontal counter, vertical-blank IRQ, IRQ flags,
// named signal read, LCDC enable, horizontal divider counter."
type RunnerProbeOp int

const (
	RunnerProbeKind RunnerProbeOp = iota
	RunnerProbeInRunnerMode
	RunnerProbeSpeakerToggles
	RunnerProbeFramebufferLength
	RunnerProbeFrameCount
	RunnerProbeVerticalCounter
	RunnerProbeHorizontalCounter
	RunnerProbeVBlankIRQ
	RunnerProbeIRQFlags
	RunnerProbeNamedSignal // arg: signal name, via RunnerProbeSignal
	RunnerProbeLCDCEnable
	RunnerProbeHorizontalDivider
)

func (b *Backend) requireRunner(op string) (*runnercore.System, error) {
	if b.kind != KindRunner || b.runner == nil {
		return nil, RunnerUnsupportedError{Operation: op}
	}
	return b.runner, nil
}

// RunnerLoadImage copies a raw byte image into the named space at addr
// (spec §4.6 "the host loads bytes into a space via one call").
func (b *Backend) RunnerLoadImage(kind ir.RunnerSpaceKind, addr uint16, data []uint8) error {
	sys, err := b.requireRunner("runner_load_image")
	if err != nil {
		return err
	}
	sys.LoadImage(kind, addr, data)
	return nil
}

// RunnerReadByte reads one byte through the runner's address decode
// (spec §4.6 "reads and writes single bytes via direct byte operations").
func (b *Backend) RunnerReadByte(addr uint16) (uint8, error) {
	sys, err := b.requireRunner("runner_read_byte")
	if err != nil {
		return 0, err
	}
	return sys.Bus().ReadByte(addr), nil
}

// RunnerWriteByte writes one byte through the runner's address decode.
func (b *Backend) RunnerWriteByte(addr uint16, val uint8) error {
	sys, err := b.requireRunner("runner_write_byte")
	if err != nil {
		return err
	}
	sys.Bus().WriteByte(addr, val)
	return nil
}

// RunnerReadRange reads a contiguous mapped-view slice (spec §4.6 "reads
// arbitrary ranges via a mapped-view read that follows the CPU's memory
// map").
func (b *Backend) RunnerReadRange(addr uint16, n int) ([]uint8, error) {
	sys, err := b.requireRunner("runner_read_range")
	if err != nil {
		return nil, err
	}
	return sys.Bus().ReadRange(addr, n), nil
}

// RunnerRun executes the batched inner loop (spec §4.6 "Batched
// execution").
func (b *Backend) RunnerRun(cycles int, kbdByte uint8, keyReady bool, mode runnercore.RunMode) (runnercore.RunResult, error) {
	sys, err := b.requireRunner("runner_run")
	if err != nil {
		return runnercore.RunResult{}, err
	}
	return sys.Run(cycles, kbdByte, keyReady, mode)
}

// RunnerControl dispatches one runner control op-code.
func (b *Backend) RunnerControl(op RunnerControlOp, arg uint16) error {
	sys, err := b.requireRunner("runner_control")
	if err != nil {
		return err
	}
	switch op {
	case RunnerControlSetResetVector:
		sys.Bus().InjectResetVector(arg)
	case RunnerControlClearSpeakerToggles:
		sys.ZeroSpeakerToggleCount()
	case RunnerControlResetLCD:
		sys.ResetLCDState()
	}
	return nil
}

// RunnerProbe dispatches one runner probe op-code. signalName is only
// consulted by RunnerProbeNamedSignal.
func (b *Backend) RunnerProbe(op RunnerProbeOp, signalName string) (uint64, error) {
	sys, err := b.requireRunner("runner_probe")
	if err != nil {
		return 0, err
	}
	switch op {
	case RunnerProbeKind:
		return uint64(sys.Kind()), nil
	case RunnerProbeInRunnerMode:
		return 1, nil
	case RunnerProbeSpeakerToggles:
		return uint64(sys.SpeakerToggleCount()), nil
	case RunnerProbeFramebufferLength:
		if v := sys.Video(); v != nil {
			return uint64(v.Len()), nil
		}
		return 0, nil
	case RunnerProbeFrameCount:
		if v := sys.Video(); v != nil {
			return uint64(v.FrameCount()), nil
		}
		return 0, nil
	case RunnerProbeVerticalCounter:
		if v := sys.Video(); v != nil {
			_, y := v.Dot()
			return uint64(y), nil
		}
		return 0, nil
	case RunnerProbeHorizontalCounter:
		if v := sys.Video(); v != nil {
			x, _ := v.Dot()
			return uint64(x), nil
		}
		return 0, nil
	case RunnerProbeVBlankIRQ:
		return boolResult(sys.VBlankIRQ()), nil
	case RunnerProbeIRQFlags:
		return sys.IRQFlags(), nil
	case RunnerProbeNamedSignal:
		val, ok := sys.SignalRead(signalName)
		if !ok {
			return 0, nil
		}
		return val, nil
	case RunnerProbeLCDCEnable:
		return boolResult(sys.LCDCEnabled()), nil
	case RunnerProbeHorizontalDivider:
		return uint64(sys.HorizontalDividerCounter()), nil
	}
	return 0, nil
}
