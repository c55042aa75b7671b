package device

import "fmt"

// AccessType is one of the six CiA-301 sub-object access disciplines
// (spec §3 AccessType).
type AccessType string

const (
	RO    AccessType = "ro"
	WO    AccessType = "wo"
	RW    AccessType = "rw"
	RWR   AccessType = "rwr"
	RWW   AccessType = "rww"
	Const AccessType = "const"
)

// ParseAccessType validates a raw AccessType token (case-insensitive in the
// source EDS text, but canonicalized to lower-case here).
func ParseAccessType(s string) (AccessType, error) {
	switch AccessType(lower(s)) {
	case RO, WO, RW, RWR, RWW, Const:
		return AccessType(lower(s)), nil
	default:
		return "", fmt.Errorf("device: invalid AccessType %q", s)
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Readable reports whether a sub-object with this access may be uploaded.
func (a AccessType) Readable() bool {
	switch a {
	case RO, RW, RWR, RWW, Const:
		return true
	default:
		return false
	}
}

// Writable reports whether a sub-object with this access may be downloaded.
func (a AccessType) Writable() bool {
	switch a {
	case WO, RW, RWR, RWW:
		return true
	default:
		return false
	}
}

// TPDOMappable reports whether the sub-object may appear in a TPDO mapping.
func (a AccessType) TPDOMappable() bool {
	return a == RWR
}

// RPDOMappable reports whether the sub-object may appear in an RPDO mapping.
func (a AccessType) RPDOMappable() bool {
	return a == RWW
}
