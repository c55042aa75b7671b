package device

import "fmt"

// Fault is a CANopen-domain failure, analogous to the abort-code-flavored
// ODR type in github.com/samsamfire/gocanopen's pkg/od/constants.go, but
// scoped to device-model construction/lookup failures (spec §7's
// KeyError/ValueError kinds) rather than live SDO abort codes.
type Fault struct {
	Kind    FaultKind
	Section string
	Key     string
	Message string
}

// FaultKind names the spec §7 error kind a Fault represents.
type FaultKind uint8

const (
	FaultParse FaultKind = iota
	FaultValue
	FaultKey
)

func (k FaultKind) String() string {
	switch k {
	case FaultParse:
		return "ParseError"
	case FaultValue:
		return "ValueError"
	case FaultKey:
		return "KeyError"
	default:
		return "Fault"
	}
}

func (f *Fault) Error() string {
	if f.Section != "" {
		return fmt.Sprintf("device: %s: [%s]%s: %s", f.Kind, f.Section, keySuffix(f.Key), f.Message)
	}
	return fmt.Sprintf("device: %s: %s", f.Kind, f.Message)
}

func keySuffix(key string) string {
	if key == "" {
		return ""
	}
	return "." + key
}

func newFault(kind FaultKind, section, key, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Section: section, Key: key, Message: fmt.Sprintf(format, args...)}
}
