// Package trace implements the append-only change-log recorder and its
// standard value-change-dump encoding (spec §4.5). There is no teacher
// package for waveform recording; the buffered writer below follows the
// plain-struct idiom the teacher's chip packages use elsewhere (no typed
// errors, no third-party serialization), while the wire format itself
// (the `$scope`/`$var`/`#<time>`/`b<bits> <id>` layout) is dictated
// directly by the specification rather than any retrieved example.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"sort"
)

// Sample is one recorded change: the cycle it was observed on, the
// subscribed signal's index, and its value at that instant.
type Sample struct {
	Cycle  uint64
	Signal int
	Value  uint64
}

// signalMeta carries the width and display name needed to encode a
// subscribed signal, plus the VCD identifier assigned to it.
type signalMeta struct {
	index int
	name  string
	width int
	vcdID string
	last  uint64
	have  bool
}

// Recorder is the append-only change log described in spec §4.5: capture
// samples every subscribed signal and appends only the values that
// differ from what was last recorded for that signal.
type Recorder struct {
	enabled  bool
	all      bool
	signals  map[int]*signalMeta
	order    []int // subscription order, preserved for deterministic VCD var declarations
	log      []Sample
	cycle    uint64
	timescale string
	module    string
}

// New returns a disabled recorder with no subscriptions.
func New() *Recorder {
	return &Recorder{
		signals:   make(map[int]*signalMeta),
		timescale: "1ns",
		module:    "rhdl_top",
	}
}

// Enable turns capture on or off; capture is a no-op while disabled.
func (r *Recorder) Enable(on bool) { r.enabled = on }

// Enabled reports the current enable state.
func (r *Recorder) Enabled() bool { return r.enabled }

// SubscribeAll records that a driver asked to trace "all" rather than a
// name pattern or explicit list. It does not subscribe anything by itself:
// Capture and WriteVCD cover only signals added with Subscribe.
func (r *Recorder) SubscribeAll() { r.all = true }

// Subscribe adds one signal (by index, name, and declared width) to the
// tracked set. Re-subscribing an already-tracked signal is a no-op.
func (r *Recorder) Subscribe(index int, name string, width int) {
	if _, ok := r.signals[index]; ok {
		return
	}
	r.signals[index] = &signalMeta{index: index, name: name, width: width, vcdID: vcdIdent(len(r.order))}
	r.order = append(r.order, index)
}

// Clear empties the change log and the per-signal "last recorded value"
// state (so the next capture always records every subscribed signal's
// current value as a fresh change), but keeps subscriptions intact.
func (r *Recorder) Clear() {
	r.log = nil
	r.cycle = 0
	for _, m := range r.signals {
		m.have = false
	}
}

// Reset clears the log and drops every subscription, returning the
// recorder to its just-constructed state.
func (r *Recorder) Reset() {
	r.Clear()
	r.signals = make(map[int]*signalMeta)
	r.order = nil
	r.all = false
}

// Capture samples every subscribed signal via read, appending a Sample for
// each one whose value differs from the last recorded sample, then
// advances the recorder's own cycle counter. read is called once per
// subscribed signal index; callers typically pass a closure over the
// owning backend's Peek.
func (r *Recorder) Capture(read func(index int) uint64) {
	if !r.enabled {
		return
	}
	for _, idx := range r.order {
		m := r.signals[idx]
		v := read(idx)
		if m.have && m.last == v {
			continue
		}
		m.have = true
		m.last = v
		r.log = append(r.log, Sample{Cycle: r.cycle, Signal: idx, Value: v})
	}
	r.cycle++
}

// Log returns the recorded samples in capture order.
func (r *Recorder) Log() []Sample {
	return r.log
}

// SeriesFor returns the recorded (cycle, value) pairs for one signal, in
// the order they were captured, used to verify the round-trip invariant
// (a trace captured every cycle then replayed and dumped reproduces the
// original per-signal time series).
func (r *Recorder) SeriesFor(index int) []Sample {
	var out []Sample
	for _, s := range r.log {
		if s.Signal == index {
			out = append(out, s)
		}
	}
	return out
}

// Measure returns the number of recorded changes for a signal, the
// façade's `trace` op-code "measure" behavior.
func (r *Recorder) Measure(index int) int {
	return len(r.SeriesFor(index))
}

func vcdIdent(n int) string {
	// Printable ASCII 33 ('!') through 126 ('~'), base-94, matching the
	// identifier-code convention real VCD writers use to keep files small.
	const first, count = 33, 126 - 33 + 1
	if n < count {
		return string(rune(first + n))
	}
	var out []rune
	for {
		out = append([]rune{rune(first + n%count)}, out...)
		n = n/count - 1
		if n < 0 {
			break
		}
	}
	return string(out)
}

// WriteVCD renders the recorder's full log as a standard value-change-dump
// file (spec §4.5 "Trace file layout"): a single scope containing one
// $var per subscribed signal in subscription order, $enddefinitions, then
// interleaved #<time> markers and change records ordered by cycle.
func (r *Recorder) WriteVCD(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "$timescale %s $end\n", r.timescale)
	fmt.Fprintf(bw, "$scope module %s $end\n", r.module)
	for _, idx := range r.order {
		m := r.signals[idx]
		fmt.Fprintf(bw, "$var wire %d %s %s $end\n", m.width, m.vcdID, m.name)
	}
	fmt.Fprintf(bw, "$upscope $end\n")
	fmt.Fprintf(bw, "$enddefinitions $end\n")

	byCycle := make(map[uint64][]Sample)
	for _, s := range r.log {
		byCycle[s.Cycle] = append(byCycle[s.Cycle], s)
	}
	var cycles []uint64
	for c := range byCycle {
		cycles = append(cycles, c)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i] < cycles[j] })

	for _, c := range cycles {
		fmt.Fprintf(bw, "#%d\n", c)
		for _, s := range byCycle[c] {
			m := r.signals[s.Signal]
			writeChange(bw, m, s.Value)
		}
	}
	return bw.Flush()
}

func writeChange(w *bufio.Writer, m *signalMeta, val uint64) {
	if m.width == 1 {
		if val != 0 {
			fmt.Fprintf(w, "1%s\n", m.vcdID)
		} else {
			fmt.Fprintf(w, "0%s\n", m.vcdID)
		}
		return
	}
	fmt.Fprintf(w, "b%s %s\n", binaryString(val, m.width), m.vcdID)
}

func binaryString(val uint64, width int) string {
	buf := make([]byte, width)
	for i := 0; i < width; i++ {
		bit := (val >> uint(width-1-i)) & 1
		if bit == 1 {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}
