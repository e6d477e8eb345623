package vcd

import (
	"fmt"
	"strconv"
	"strings"
)

// Signal describes one $var declaration.
type Signal struct {
	Type  string
	Width int
	Code  string
	Name  string
}

// Step is the value of every extracted signal at one timestamp. Values is
// indexed in the order the signal names were passed to Extract.
type Step struct {
	Time   uint64
	Values []bool
}

// Signals lists the $var declarations in file order. Malformed declarations
// are skipped.
func (d *Document) Signals() []Signal {
	var signals []Signal
	for _, item := range d.Items {
		if item.Command == nil || item.Command.Keyword != "$var" {
			continue
		}
		body := item.Command.Body
		if len(body) < 4 {
			continue
		}
		width, err := strconv.Atoi(body[1])
		if err != nil {
			continue
		}
		signals = append(signals, Signal{
			Type:  body[0],
			Width: width,
			Code:  body[2],
			Name:  body[3],
		})
	}
	return signals
}

// Timescale returns the $timescale body, e.g. "1 ns", or an empty string.
func (d *Document) Timescale() string {
	for _, item := range d.Items {
		if item.Command != nil && item.Command.Keyword == "$timescale" {
			return strings.Join(item.Command.Body, " ")
		}
	}
	return ""
}

// Extract merges the value changes of the named scalar signals into one
// stream of timestamped samples. Signals start low until the dump assigns
// them; x and z values read as low.
func (d *Document) Extract(names ...string) ([]Step, error) {
	codeFor := make(map[string]string)
	for _, s := range d.Signals() {
		codeFor[s.Name] = s.Code
	}
	codes := make([]string, len(names))
	for i, name := range names {
		code, ok := codeFor[name]
		if !ok {
			return nil, fmt.Errorf("vcd: no signal %q in capture", name)
		}
		codes[i] = code
	}

	values := make(map[string]bool)
	var steps []Step
	var time uint64
	dirty := false

	flush := func() {
		if !dirty {
			return
		}
		vals := make([]bool, len(codes))
		for i, code := range codes {
			vals[i] = values[code]
		}
		steps = append(steps, Step{Time: time, Values: vals})
		dirty = false
	}
	apply := func(change string) {
		if len(change) < 2 {
			return
		}
		switch change[0] {
		case '0', '1', 'x', 'X', 'z', 'Z':
		default:
			return
		}
		values[change[1:]] = change[0] == '1'
		dirty = true
	}

	for _, item := range d.Items {
		switch {
		case item.Time != nil:
			flush()
			t, err := strconv.ParseUint((*item.Time)[1:], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("vcd: bad timestamp %q: %w", *item.Time, err)
			}
			time = t
		case item.Change != nil:
			apply(*item.Change)
		case item.Command != nil:
			switch item.Command.Keyword {
			case "$dumpvars", "$dumpon", "$dumpall":
				for _, tok := range item.Command.Body {
					apply(tok)
				}
			}
		}
	}
	flush()
	return steps, nil
}
