package model

import (
	"fmt"
	"strconv"
	"strings"
)

// FlowKey identifies a flow by its 4-tuple. The destination IP is not carried
// in the wire record; it is the address of the node that captured the flow.
type FlowKey struct {
	SourceIP        string
	SourcePort      uint16
	DestinationIP   string
	DestinationPort uint16
}

// IsBase reports whether the flow targets the base port.
func (k FlowKey) IsBase() bool {
	return k.DestinationPort == BasePort
}

// String renders the key as "('src', sport, 'dst', dport)", the layout used
// for flow keys in the statistics documents.
func (k FlowKey) String() string {
	return fmt.Sprintf("('%s', %d, '%s', %d)", k.SourceIP, k.SourcePort, k.DestinationIP, k.DestinationPort)
}

func (k FlowKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *FlowKey) UnmarshalText(text []byte) error {
	parsed, err := ParseFlowKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseFlowKey parses the textual form produced by FlowKey.String.
func ParseFlowKey(s string) (FlowKey, error) {
	inner := strings.TrimSpace(s)
	if !strings.HasPrefix(inner, "(") || !strings.HasSuffix(inner, ")") {
		return FlowKey{}, fmt.Errorf("malformed flow key %q", s)
	}
	parts := strings.Split(inner[1:len(inner)-1], ",")
	if len(parts) != 4 {
		return FlowKey{}, fmt.Errorf("malformed flow key %q: expected 4 fields, got %d", s, len(parts))
	}

	srcPort, err := parsePort(parts[1])
	if err != nil {
		return FlowKey{}, fmt.Errorf("malformed flow key %q: source port: %w", s, err)
	}
	dstPort, err := parsePort(parts[3])
	if err != nil {
		return FlowKey{}, fmt.Errorf("malformed flow key %q: destination port: %w", s, err)
	}

	return FlowKey{
		SourceIP:        unquote(parts[0]),
		SourcePort:      srcPort,
		DestinationIP:   unquote(parts[2]),
		DestinationPort: dstPort,
	}, nil
}

func parsePort(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `'"`)
}
