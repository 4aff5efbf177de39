package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownTier = errors.New("command: unknown tier")

// Level is the ordered readiness rank a queued command waits for.
type Level int

const (
	LevelImmediate      Level = 3
	LevelTransportReady Level = 4
	LevelTargetLoaded   Level = 5
)

// String returns the tier alias for named levels and the decimal rank otherwise.
func (l Level) String() string {
	switch l {
	case LevelImmediate:
		return "immediate"
	case LevelTransportReady:
		return "transport-ready"
	case LevelTargetLoaded:
		return "target-loaded"
	default:
		return strconv.Itoa(int(l))
	}
}

// ParseLevel resolves a tier alias or decimal rank at the text boundary.
func ParseLevel(raw string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "immediate":
		return LevelImmediate, nil
	case "transport-ready":
		return LevelTransportReady, nil
	case "target-loaded":
		return LevelTargetLoaded, nil
	case "":
		return 0, fmt.Errorf("%w: empty", ErrUnknownTier)
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, raw)
	}
	return Level(n), nil
}
