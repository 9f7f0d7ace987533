package ir

import (
	"encoding/json"
	"fmt"
)

// ParseError reports a malformed JSON document or a schema version this
// engine does not understand. Standard library encoding/json is used for
// decoding: no third-party JSON library appears anywhere in the retrieved
// example pack, and the IR document's schema is small and internal (not a
// format this engine needs to interoperate with an external JSON-schema
// ecosystem), so there is nothing an ecosystem library would buy here.
type ParseError struct {
	Reason string
	Cause  error
}

func (e ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ir-parse-error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("ir-parse-error: %s", e.Reason)
}

func (e ParseError) Unwrap() error { return e.Cause }

// wireDocument is the literal on-the-wire JSON shape (§6: "an ordered
// signal list with name and width; literal table; node table keyed by
// integer id...").
type wireDocument struct {
	Version int `json:"version"`
	Signals []struct {
		Name  string `json:"name"`
		Width int    `json:"width"`
		Clock bool   `json:"clock"`
		Reset *uint64 `json:"reset"`
	} `json:"signals"`
	Nodes []struct {
		ID       int      `json:"id"`
		Op       string   `json:"op"`
		Width    int      `json:"width"`
		Operands []int    `json:"operands"`
		Literal  uint64   `json:"literal"`
		Hi       int      `json:"hi"`
		Lo       int      `json:"lo"`
		Case     []struct {
			Value  uint64 `json:"value"`
			Result int    `json:"result"`
		} `json:"case"`
		Default int `json:"default"`
	} `json:"nodes"`
	CombDrivers []struct {
		Target string `json:"target"`
		Root   int    `json:"root"`
	} `json:"comb_drivers"`
	Sequential []struct {
		Target string `json:"target"`
		Clock  string `json:"clock"`
		Guard  int    `json:"guard"`
		Next   int    `json:"next"`
	} `json:"sequential"`
	Memories []struct {
		Name      string  `json:"name"`
		Depth     int     `json:"depth"`
		Width     int     `json:"width"`
		Reset     *uint64 `json:"reset"`
		ReadPorts []struct {
			Addr       int    `json:"addr"`
			Sync       bool   `json:"sync"`
			Clock      string `json:"clock"`
			ResultWire string `json:"result_wire"`
		} `json:"read_ports"`
		WritePorts []struct {
			Clock  string `json:"clock"`
			Enable int    `json:"enable"`
			Addr   int    `json:"addr"`
			Data   int    `json:"data"`
		} `json:"write_ports"`
	} `json:"memories"`
	ClockList []string `json:"clock_list"`
	Schedule  []string `json:"schedule"`
	Runner    *struct {
		Enabled          bool   `json:"enabled"`
		Kind             string `json:"kind"`
		Address          string `json:"address_signal"`
		DataIn           string `json:"data_in_signal"`
		DataOut          string `json:"data_out_signal"`
		Read             string `json:"read_signal"`
		Write            string `json:"write_signal"`
		ResetVectorLo    string `json:"reset_vector_lo_signal"`
		ResetVectorHi    string `json:"reset_vector_hi_signal"`
		Spaces           []struct {
			Kind     string `json:"kind"`
			Size     int    `json:"size"`
			ReadOnly bool   `json:"read_only"`
		} `json:"spaces"`
	} `json:"runner"`
}

var opNames = map[string]Op{
	"literal": OpLiteral, "signal": OpSignalRef, "slice": OpSlice, "concat": OpConcat,
	"add": OpAdd, "sub": OpSub, "mul": OpMul, "div": OpDiv, "rem": OpRem,
	"eq": OpEq, "ne": OpNe, "lt": OpLt, "le": OpLe, "gt": OpGt, "ge": OpGe,
	"lt_signed": OpLtSigned, "le_signed": OpLeSigned, "gt_signed": OpGtSigned, "ge_signed": OpGeSigned,
	"and": OpAnd, "or": OpOr, "xor": OpXor, "not": OpNot, "neg": OpNeg,
	"shl": OpShl, "shr": OpShr, "sar": OpSar,
	"mux": OpMux, "case": OpCase,
	"reduce_and": OpReduceAnd, "reduce_or": OpReduceOr, "reduce_xor": OpReduceXor,
	"zext": OpZeroExtend, "sext": OpSignExtend,
}

var spaceNames = map[string]RunnerSpaceKind{
	"main": SpaceMain, "rom": SpaceROM, "boot_rom": SpaceBootROM,
	"vram": SpaceVRAM, "zero_page": SpaceZeroPage, "work_ram": SpaceWorkRAM,
	"framebuffer": SpaceFramebuffer,
}

// Parse decodes raw JSON bytes into a Document. It does not validate
// cross-references or widths; call Validate for that (create combines
// both, surfacing ir-parse-error or ir-validate-error as appropriate).
func Parse(data []byte) (*Document, error) {
	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, ParseError{Reason: "malformed JSON", Cause: err}
	}
	if w.Version != 1 {
		return nil, ParseError{Reason: fmt.Sprintf("unsupported schema version %d", w.Version)}
	}

	d := &Document{Version: w.Version}

	for _, s := range w.Signals {
		sig := Signal{Name: s.Name, Width: s.Width, IsClock: s.Clock}
		if s.Reset != nil {
			sig.HasReset = true
			sig.Reset = *s.Reset
		}
		d.Signals = append(d.Signals, sig)
	}

	byID := map[int]int{} // wire node id -> index in d.Nodes
	maxID := -1
	for _, n := range w.Nodes {
		if n.ID > maxID {
			maxID = n.ID
		}
	}
	d.Nodes = make([]Node, maxID+1)
	for _, n := range w.Nodes {
		op, ok := opNames[n.Op]
		if !ok {
			return nil, ParseError{Reason: fmt.Sprintf("unknown node op %q at id %d", n.Op, n.ID)}
		}
		node := Node{Op: op, Width: n.Width, Literal: n.Literal, Hi: n.Hi, Lo: n.Lo}
		for _, o := range n.Operands {
			node.Operands = append(node.Operands, NodeID(o))
		}
		if op == OpCase {
			for _, c := range n.Case {
				node.CaseArms = append(node.CaseArms, CaseArm{Value: c.Value, Result: NodeID(c.Result)})
			}
			node.CaseArms = append(node.CaseArms, CaseArm{Result: NodeID(n.Default)})
		}
		d.Nodes[n.ID] = node
		byID[n.ID] = n.ID
	}

	sigIndex := func(name string) (SignalIndex, error) {
		idx, ok := d.SignalByName(name)
		if !ok {
			return -1, ParseError{Reason: fmt.Sprintf("reference to unknown signal %q", name)}
		}
		return idx, nil
	}

	for _, cd := range w.CombDrivers {
		idx, err := sigIndex(cd.Target)
		if err != nil {
			return nil, err
		}
		d.CombDrivers = append(d.CombDrivers, CombDriver{Target: idx, Root: NodeID(cd.Root)})
	}

	for _, sp := range w.Sequential {
		tgt, err := sigIndex(sp.Target)
		if err != nil {
			return nil, err
		}
		clk, err := sigIndex(sp.Clock)
		if err != nil {
			return nil, err
		}
		d.Sequential = append(d.Sequential, SeqPort{Target: tgt, Clock: clk, Guard: NodeID(sp.Guard), Next: NodeID(sp.Next)})
	}

	for _, m := range w.Memories {
		mem := Memory{Name: m.Name, Depth: m.Depth, Width: m.Width}
		if m.Reset != nil {
			mem.HasReset = true
			mem.ResetWord = *m.Reset
		}
		for _, rp := range m.ReadPorts {
			port := MemReadPort{Addr: NodeID(rp.Addr), Sync: rp.Sync}
			if rp.Clock != "" {
				clk, err := sigIndex(rp.Clock)
				if err != nil {
					return nil, err
				}
				port.Clock = clk
			}
			if rp.ResultWire != "" {
				rw, err := sigIndex(rp.ResultWire)
				if err != nil {
					return nil, err
				}
				port.ResultWire = rw
			}
			mem.ReadPorts = append(mem.ReadPorts, port)
		}
		for _, wp := range m.WritePorts {
			clk, err := sigIndex(wp.Clock)
			if err != nil {
				return nil, err
			}
			mem.WritePorts = append(mem.WritePorts, MemWritePort{Clock: clk, Enable: NodeID(wp.Enable), Addr: NodeID(wp.Addr), Data: NodeID(wp.Data)})
		}
		d.Memories = append(d.Memories, mem)
	}

	for _, c := range w.ClockList {
		idx, err := sigIndex(c)
		if err != nil {
			return nil, err
		}
		d.ClockList = append(d.ClockList, idx)
	}

	for _, s := range w.Schedule {
		idx, err := sigIndex(s)
		if err != nil {
			return nil, err
		}
		d.Schedule = append(d.Schedule, idx)
	}

	if w.Runner != nil {
		d.Runner = RunnerMeta{
			Enabled:          w.Runner.Enabled,
			Kind:             w.Runner.Kind,
			AddressSignal:    w.Runner.Address,
			DataInSignal:     w.Runner.DataIn,
			DataOutSignal:    w.Runner.DataOut,
			ReadSignal:       w.Runner.Read,
			WriteSignal:      w.Runner.Write,
			ResetVectorLoSig: w.Runner.ResetVectorLo,
			ResetVectorHiSig: w.Runner.ResetVectorHi,
		}
		for _, sp := range w.Runner.Spaces {
			kind, ok := spaceNames[sp.Kind]
			if !ok {
				return nil, ParseError{Reason: fmt.Sprintf("unknown runner space kind %q", sp.Kind)}
			}
			d.Runner.Spaces = append(d.Runner.Spaces, RunnerSpace{Kind: kind, Size: sp.Size, ReadOnly: sp.ReadOnly})
		}
	}

	return d, nil
}
