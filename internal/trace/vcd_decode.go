package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DecodedVar is one $var declaration parsed out of a VCD header.
type DecodedVar struct {
	Width int
	ID    string
	Name  string
}

// DecodedChange is one parsed change record, timestamped by the most
// recent preceding #<time> marker.
type DecodedChange struct {
	Cycle uint64
	ID    string
	Value uint64
}

// ParseVCD reads back a file written by WriteVCD, returning the declared
// variables (in declaration order) and the ordered list of value changes.
// It exists to support the round-trip invariant (spec §8): a trace
// captured every cycle, dumped, and parsed back must reproduce the
// original per-signal time series.
func ParseVCD(r io.Reader) ([]DecodedVar, []DecodedChange, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	var vars []DecodedVar
	var changes []DecodedChange
	var cycle uint64
	inDefs := true

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		switch {
		case inDefs && strings.HasPrefix(line, "$var"):
			v, err := parseVarLine(line)
			if err != nil {
				return nil, nil, err
			}
			vars = append(vars, v)
		case strings.HasPrefix(line, "$enddefinitions"):
			inDefs = false
		case strings.HasPrefix(line, "$"):
			// $timescale, $scope, $upscope and similar are structural and
			// carry no state this decoder needs beyond ignoring them.
		case strings.HasPrefix(line, "#"):
			n, err := strconv.ParseUint(line[1:], 10, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("trace: bad time marker %q: %w", line, err)
			}
			cycle = n
		case strings.HasPrefix(line, "b"):
			fields := strings.Fields(line)
			if len(fields) != 2 {
				return nil, nil, fmt.Errorf("trace: bad vector change %q", line)
			}
			val, err := strconv.ParseUint(fields[0][1:], 2, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("trace: bad vector value %q: %w", line, err)
			}
			changes = append(changes, DecodedChange{Cycle: cycle, ID: fields[1], Value: val})
		case line[0] == '0' || line[0] == '1':
			val := uint64(0)
			if line[0] == '1' {
				val = 1
			}
			changes = append(changes, DecodedChange{Cycle: cycle, ID: line[1:], Value: val})
		default:
			return nil, nil, fmt.Errorf("trace: unrecognized VCD line %q", line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return vars, changes, nil
}

func parseVarLine(line string) (DecodedVar, error) {
	// $var wire <width> <id> <name> $end
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "$var" {
		return DecodedVar{}, fmt.Errorf("trace: malformed $var line %q", line)
	}
	width, err := strconv.Atoi(fields[2])
	if err != nil {
		return DecodedVar{}, fmt.Errorf("trace: bad $var width in %q: %w", line, err)
	}
	return DecodedVar{Width: width, ID: fields[3], Name: fields[4]}, nil
}

// SeriesByID reduces a decoded change list to the (cycle, value) pairs for
// one variable id, matching the shape of Recorder.SeriesFor so callers can
// directly compare a pre-dump series against a post-round-trip one.
func SeriesByID(changes []DecodedChange, id string) []Sample {
	var out []Sample
	for _, c := range changes {
		if c.ID == id {
			out = append(out, Sample{Cycle: c.Cycle, Value: c.Value})
		}
	}
	return out
}

// VarID returns the VCD identifier assigned to a subscribed signal, so a
// caller holding decoded output can look its series up by the same index
// it subscribed with.
func (r *Recorder) VarID(index int) (string, bool) {
	m, ok := r.signals[index]
	if !ok {
		return "", false
	}
	return m.vcdID, true
}
