// Package concise implements the concise-SDO binary encoder (spec §4.2,
// §4.7, C7): a 7-byte header (index u16-LE, sub u8, length u32-LE) followed
// by the little-endian payload for a single SDO download record, plus the
// file-level framing described in spec §6 (a little-endian u32 record
// count, then the records back to back).
//
// Grounded on github.com/samsamfire/gocanopen's pkg/od/variable.go
// (EncodeFromString/CheckSize, the per-kind little-endian packing switch)
// and on lely-core's dcfgen/cli.py (concise_value/print_sdo, the verbose
// dump format this package's DescribeRecord reproduces).
package concise

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/lely-tools/dcftools/pkg/dtype"
	"github.com/lely-tools/dcftools/pkg/value"
)

// Record is one encoded concise-SDO download: header + payload.
type Record struct {
	Index    uint16
	SubIndex uint8
	Payload  []byte
}

// Pack encodes (index, sub, value) against t's concise wire format (spec
// §4.2): index u16-LE, sub u8, length u32-LE, then the payload.
func Pack(index uint16, sub uint8, v int64, t dtype.Type) (Record, error) {
	cf, ok := t.Concise()
	if !ok {
		return Record{}, fmt.Errorf("concise: %s has no concise wire format", t.Name)
	}
	if cf.Float {
		return Record{}, fmt.Errorf("concise: %s is a float type, use PackFloat", t.Name)
	}
	nbytes := (cf.PayloadBits + 7) / 8
	payload := make([]byte, nbytes)
	putLittleEndian(payload, uint64(v))
	return Record{Index: index, SubIndex: sub, Payload: payload}, nil
}

// PackFloat encodes an IEEE-754 float value directly (avoiding the
// bit-reinterpretation footgun in Pack when the caller already has a
// float64/float32, not an integer bit pattern).
func PackFloat(index uint16, sub uint8, f float64, t dtype.Type) (Record, error) {
	cf, ok := t.Concise()
	if !ok || !cf.Float {
		return Record{}, fmt.Errorf("concise: %s is not a float type", t.Name)
	}
	payload := make([]byte, cf.PayloadBits/8)
	switch cf.PayloadBits {
	case 32:
		binary.LittleEndian.PutUint32(payload, math.Float32bits(float32(f)))
	case 64:
		binary.LittleEndian.PutUint64(payload, math.Float64bits(f))
	default:
		return Record{}, fmt.Errorf("concise: unsupported float width %d", cf.PayloadBits)
	}
	return Record{Index: index, SubIndex: sub, Payload: payload}, nil
}

// PackValue encodes a resolved pkg/value.Value directly.
func PackValue(index uint16, sub uint8, v value.Value, env value.Env) (Record, error) {
	if v.Type.Kind == dtype.KindFloat {
		f, err := v.ResolveFloat(env)
		if err != nil {
			return Record{}, err
		}
		return PackFloat(index, sub, f, v.Type)
	}
	n, err := v.Resolve(env)
	if err != nil {
		return Record{}, err
	}
	return Pack(index, sub, n, v.Type)
}

func putLittleEndian(dst []byte, v uint64) {
	for i := range dst {
		dst[i] = byte(v >> (8 * uint(i)))
	}
}

// Bytes renders a Record in the §6 wire layout: u16 index ∥ u8 sub ∥ u32
// length ∥ payload, all little-endian.
func (r Record) Bytes() []byte {
	out := make([]byte, 7+len(r.Payload))
	binary.LittleEndian.PutUint16(out[0:2], r.Index)
	out[2] = r.SubIndex
	binary.LittleEndian.PutUint32(out[3:7], uint32(len(r.Payload)))
	copy(out[7:], r.Payload)
	return out
}

// EncodeFile frames a full script: u32-LE record count, then each Record's
// Bytes() back to back (spec §6 "Concise-SDO binary layout").
func EncodeFile(records []Record) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, uint32(len(records)))
	for _, r := range records {
		out = append(out, r.Bytes()...)
	}
	return out
}

// DescribeRecord renders one record the way lely-core's dcfgen/cli.py
// print_sdo does, for dcfgen's -v verbose dump (SPEC_FULL supplemental
// feature #2): "writing N bytes to 0xXXXX/S: HH HH ...".
func DescribeRecord(r Record) string {
	hexBytes := make([]string, len(r.Payload))
	for i, b := range r.Payload {
		hexBytes[i] = fmt.Sprintf("%02X", b)
	}
	return fmt.Sprintf("writing %d bytes to 0x%04X/%d: %s", len(r.Payload), r.Index, r.SubIndex, strings.Join(hexBytes, " "))
}
