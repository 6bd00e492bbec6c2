package executor

import (
	"fmt"
	"strings"
)

// EventKind classifies an entry of the execution trace.
type EventKind int

const (
	EventOutput EventKind = iota
	EventError
	EventSystem
)

var eventKindNames = [...]string{
	EventOutput: "output",
	EventError:  "error",
	EventSystem: "system",
}

func (k EventKind) String() string {
	if k >= 0 && int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// MarshalText encodes the kind by name in JSON and YAML.
func (k EventKind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(eventKindNames) {
		return nil, fmt.Errorf("unknown event kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(text []byte) error {
	for i, name := range eventKindNames {
		if strings.EqualFold(name, string(text)) {
			*k = EventKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", text)
}

// Event is one entry of the trace, in program order.
type Event struct {
	Kind EventKind `json:"kind" cbor:"1,keyasint"`
	Text string    `json:"text" cbor:"2,keyasint"`
	Line int       `json:"line,omitempty" cbor:"3,keyasint,omitempty"`
}

// JoinMode is the separator placed between the values of one OUTPUT.
type JoinMode int

const (
	JoinSpace JoinMode = iota
	JoinComma
	JoinNone
)

var joinModeNames = [...]string{
	JoinSpace: "space",
	JoinComma: "comma",
	JoinNone:  "none",
}

func (m JoinMode) String() string {
	if m >= 0 && int(m) < len(joinModeNames) {
		return joinModeNames[m]
	}
	return fmt.Sprintf("JoinMode(%d)", int(m))
}

// ParseJoinMode accepts "space", "comma" or "none".
func ParseJoinMode(s string) (JoinMode, error) {
	for i, name := range joinModeNames {
		if strings.EqualFold(name, s) {
			return JoinMode(i), nil
		}
	}
	return JoinSpace, fmt.Errorf("unknown output join mode %q (want space, comma or none)", s)
}

func (m JoinMode) separator() string {
	switch m {
	case JoinComma:
		return ", "
	case JoinNone:
		return ""
	}
	return " "
}
