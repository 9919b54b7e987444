// Package hl7 parses pipe-delimited HL7 v2 messages into segments and fields.
package hl7

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmpty      = errors.New("hl7: message is empty")
	ErrMissingMSH = errors.New("hl7: first segment must be MSH")
)

// Message is a parsed HL7 v2 message
type Message struct {
	Type       string // MSH-9, e.g. ORU^R01
	ControlID  string // MSH-10
	Version    string // MSH-12
	SendingApp string // MSH-3
	Facility   string // MSH-4
	Timestamp  time.Time
	Segments   []Segment

	comp, rep string
}

// Segment is one line of a message
type Segment struct {
	Name   string
	Fields []Field
}

// Field holds the raw value plus its components and repetitions
type Field struct {
	Value      string
	Components []string
	Repeats    [][]string
}

// Parse reads a raw message. Segments may be separated by \r, \n or \r\n.
func Parse(raw string) (*Message, error) {
	text := strings.ReplaceAll(raw, "\r\n", "\r")
	text = strings.ReplaceAll(text, "\n", "\r")

	var lines []string
	for _, line := range strings.Split(text, "\r") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, ErrEmpty
	}
	if !strings.HasPrefix(lines[0], "MSH") || len(lines[0]) < 8 {
		return nil, ErrMissingMSH
	}

	sep := string(lines[0][3])
	enc := strings.SplitN(lines[0][4:], sep, 2)[0]
	msg := &Message{comp: "^", rep: "~"}
	if len(enc) >= 2 {
		msg.comp = string(enc[0])
		msg.rep = string(enc[1])
	}

	for i, line := range lines {
		seg, err := msg.parseSegment(line, sep)
		if err != nil {
			return nil, fmt.Errorf("hl7: segment %d: %w", i+1, err)
		}
		msg.Segments = append(msg.Segments, seg)
	}

	msh := msg.Segment("MSH")
	msg.SendingApp = msh.Get(3)
	msg.Facility = msh.Get(4)
	msg.Type = msh.Get(9)
	msg.ControlID = msh.Get(10)
	msg.Version = msh.Get(12)
	if ts, err := ParseTimestamp(msh.Get(7)); err == nil {
		msg.Timestamp = ts
	}
	if msg.Type == "" {
		return nil, errors.New("hl7: MSH-9 message type is required")
	}

	return msg, nil
}

func (m *Message) parseSegment(line, sep string) (Segment, error) {
	if len(line) < 3 {
		return Segment{}, fmt.Errorf("too short: %q", line)
	}
	name := line[:3]
	for _, r := range name {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return Segment{}, fmt.Errorf("invalid segment name %q", name)
		}
	}

	seg := Segment{Name: name}
	if name == "MSH" {
		// MSH-1 is the separator itself and MSH-2 the encoding characters,
		// which must not be split on components.
		seg.Fields = append(seg.Fields, Field{Value: sep, Components: []string{sep}})
		parts := strings.Split(line[4:], sep)
		seg.Fields = append(seg.Fields, Field{Value: parts[0], Components: []string{parts[0]}})
		for _, p := range parts[1:] {
			seg.Fields = append(seg.Fields, m.parseField(p))
		}
		return seg, nil
	}

	if len(line) > 3 {
		if string(line[3]) != sep {
			return Segment{}, fmt.Errorf("segment %s is not %q delimited", name, sep)
		}
		for _, p := range strings.Split(line[4:], sep) {
			seg.Fields = append(seg.Fields, m.parseField(p))
		}
	}
	return seg, nil
}

func (m *Message) parseField(raw string) Field {
	f := Field{Value: raw}
	for _, rep := range strings.Split(raw, m.rep) {
		f.Repeats = append(f.Repeats, strings.Split(rep, m.comp))
	}
	f.Components = f.Repeats[0]
	return f
}

// Segment returns the first segment with the given name or nil
func (m *Message) Segment(name string) *Segment {
	for i := range m.Segments {
		if m.Segments[i].Name == name {
			return &m.Segments[i]
		}
	}
	return nil
}

// All returns every segment with the given name, in message order
func (m *Message) All(name string) []*Segment {
	var out []*Segment
	for i := range m.Segments {
		if m.Segments[i].Name == name {
			out = append(out, &m.Segments[i])
		}
	}
	return out
}

// Lookup resolves a reference like "PID-5" or "OBX-3.2" on the first matching segment
func (m *Message) Lookup(ref string) (string, bool) {
	name, field, comp, err := ParseRef(ref)
	if err != nil {
		return "", false
	}
	v := m.Segment(name).Value(field, comp)
	return v, v != ""
}

// Value returns the whole field when comp is 0, else that component
func (s *Segment) Value(field, comp int) string {
	if comp > 0 {
		return s.Component(field, comp)
	}
	return s.Get(field)
}

// Get returns the raw value of a 1-based field
func (s *Segment) Get(index int) string {
	if s == nil || index < 1 || index > len(s.Fields) {
		return ""
	}
	return s.Fields[index-1].Value
}

// Component returns a 1-based component of a 1-based field
func (s *Segment) Component(field, comp int) string {
	if s == nil || field < 1 || field > len(s.Fields) {
		return ""
	}
	c := s.Fields[field-1].Components
	if comp < 1 || comp > len(c) {
		return ""
	}
	return c[comp-1]
}

// ParseRef splits "OBX-3.1" into segment, field and component (0 when absent)
func ParseRef(ref string) (string, int, int, error) {
	name, rest, ok := strings.Cut(ref, "-")
	if !ok || len(name) != 3 {
		return "", 0, 0, fmt.Errorf("hl7: invalid reference %q", ref)
	}
	fieldStr, compStr, hasComp := strings.Cut(rest, ".")
	field, err := strconv.Atoi(fieldStr)
	if err != nil || field < 1 {
		return "", 0, 0, fmt.Errorf("hl7: invalid field in %q", ref)
	}
	comp := 0
	if hasComp {
		comp, err = strconv.Atoi(compStr)
		if err != nil || comp < 1 {
			return "", 0, 0, fmt.Errorf("hl7: invalid component in %q", ref)
		}
	}
	return name, field, comp, nil
}

// ParseTimestamp reads YYYYMMDD[HHMM[SS]] prefixes
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case len(s) >= 14:
		return time.Parse("20060102150405", s[:14])
	case len(s) >= 12:
		return time.Parse("200601021504", s[:12])
	case len(s) >= 8:
		return time.Parse("20060102", s[:8])
	}
	return time.Time{}, fmt.Errorf("hl7: unrecognized timestamp %q", s)
}
