package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CommandMarker prefixes every command frame.
const CommandMarker = "N000001"

// Group and field keys used in commands.
const (
	GroupSystem = "SYST"
	GroupHeat   = "HGOM"
	GroupCool   = "CGOM"
)

// System mode letters for SYST.OSS.MD.
const (
	SystemModeHeat = "H"
	SystemModeCool = "C"
)

// Operating states for {GROUP}.OOP.ST.
const (
	StateOn  = "N"
	StateOff = "F"
)

var errEmptyPath = errors.New("command path has an empty segment")

// Command is a single key-path write.
type Command struct {
	Path  []string
	Value string
}

// NewCommand splits a dotted path such as "HGOM.GSO.SP".
func NewCommand(path, value string) (Command, error) {
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return Command{}, fmt.Errorf("%w: %q", errEmptyPath, path)
		}
	}
	return Command{Path: parts, Value: value}, nil
}

// String returns the dotted path and value, for logs.
func (c Command) String() string {
	return strings.Join(c.Path, ".") + "=" + c.Value
}

// Body builds the nested object, e.g. {"HGOM":{"GSO":{"SP":"22"}}}.
func (c Command) Body() map[string]any {
	var node any = c.Value
	for i := len(c.Path) - 1; i >= 0; i-- {
		node = map[string]any{c.Path[i]: node}
	}
	m, _ := node.(map[string]any)
	return m
}

// Encode renders the frame that goes on the wire.
func (c Command) Encode() ([]byte, error) {
	if len(c.Path) == 0 {
		return nil, errEmptyPath
	}
	body, err := json.Marshal(c.Body())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c, err)
	}
	return append([]byte(CommandMarker), body...), nil
}

// SetpointCommand sets {group}.GSO.SP.
func SetpointCommand(group string, celsius int) Command {
	return Command{Path: []string{group, "GSO", "SP"}, Value: strconv.Itoa(celsius)}
}

// SystemModeCommand sets SYST.OSS.MD to H or C.
func SystemModeCommand(letter string) Command {
	return Command{Path: []string{GroupSystem, "OSS", "MD"}, Value: letter}
}

// OperatingStateCommand switches a group on (N) or off (F).
func OperatingStateCommand(group string, on bool) Command {
	v := StateOff
	if on {
		v = StateOn
	}
	return Command{Path: []string{group, "OOP", "ST"}, Value: v}
}
