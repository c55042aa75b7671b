// Package cdevice implements the device-descriptor emission contract (spec
// §6 "Device-descriptor text (output)"): the core populates a parallel
// C-emission attribute tree over a parsed Device, and a template engine
// (external, out of scope) renders it to C source text.
//
// Grounded on lely-core's dcf2dev/cdevice.py, translated attribute-for-
// attribute: CDevice/CObject/CSubObject/CDataType/CValue become Device/
// Object/SubObject/DataType plus the free functions formatValue/typeName
// that replace Python's attribute-monkeypatching (val.c = ...) with ordinary
// return values, since Go has no equivalent to bolting an attribute onto an
// existing instance at runtime.
package cdevice

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lely-tools/dcftools/pkg/device"
	"github.com/lely-tools/dcftools/pkg/dtype"
	"github.com/lely-tools/dcftools/pkg/value"
)

// Params is the full parameter set a template engine is invoked with (spec
// §6): {no_strings, include_config, dev, name}.
type Params struct {
	NoStrings     bool
	IncludeConfig bool
	Name          string
	Dev           *Device
}

// Device carries the C-emission attributes derived from a device.Device
// (spec §6's per-Device {baud, rate, lss, dummy}), plus the parallel
// C-attribute tree for every contained Object.
type Device struct {
	*device.Device

	Name        string
	VendorName  string
	ProductName string
	OrderCode   string

	// Baud is the bitwise-OR'd CO_BAUD_* token string, e.g.
	// "0 | CO_BAUD_125 | CO_BAUD_500".
	Baud string
	Rate int
	LSS  int
	// Dummy is a bitmask over DummyUsage.Dummy0000..Dummy001F, bit i set
	// when DummyUsage.DummyXXXX (i in hex) is "1".
	Dummy uint32

	Objects map[uint16]*Object
}

// Object carries the C-emission attributes for one Object Dictionary entry
// (spec §6's per-Object {code}).
type Object struct {
	*device.Object

	// Code is the CO_OBJECT_* enumerant name, or a raw "0xXX" literal for
	// an object_type value outside the known CiA-301 set.
	Code string

	Subs map[uint8]*SubObject
}

// SubObject carries the C-emission attributes for one sub-entry (spec §6's
// per-SubObject {type, access, flags, default_value, value}).
type SubObject struct {
	*device.SubObject

	Type   string
	Access string
	// Flags is the bitwise-OR'd CO_OBJ_FLAGS_* token string, e.g.
	// "0 | CO_OBJ_FLAGS_DEF_NODEID | CO_OBJ_FLAGS_PARAMETER_VALUE".
	Flags        string
	DefaultValue string
	Value        string
}

// DataType carries the C-emission attributes for one data-type index (spec
// §6's per-DataType {typename, member}).
type DataType struct {
	Typename string
	Member   string
}

var cFormat = map[dtype.Index]string{
	dtype.BOOLEAN:        "%d",
	dtype.INTEGER8:       "%d",
	dtype.INTEGER16:      "%d",
	dtype.INTEGER32:      "%d",
	dtype.UNSIGNED8:      "0x%02X",
	dtype.UNSIGNED16:     "0x%04X",
	dtype.UNSIGNED32:     "0x%08X",
	dtype.REAL32:         "%.9g",
	dtype.VISIBLE_STRING: `CO_VISIBLE_STRING_C("%s")`,
	dtype.OCTET_STRING:   `CO_OCTET_STRING_C("%s")`,
	dtype.UNICODE_STRING: `CO_UNICODE_STRING_C({ %s })`,
	dtype.TIME_OF_DAY:    "{ .ms = %d, .days = %d }",
	dtype.TIME_DIFF:      "{ .ms = %d, .days = %d }",
	dtype.DOMAIN:         "CO_DOMAIN_C(co_unsigned8_t, { %s })",
	dtype.INTEGER24:      "%d",
	dtype.REAL64:         "%.17g",
	dtype.INTEGER40:      "%d",
	dtype.INTEGER48:      "%d",
	dtype.INTEGER56:      "%d",
	dtype.INTEGER64:      "%d",
	dtype.UNSIGNED24:     "0x%06X",
	dtype.UNSIGNED40:     "0x%010X",
	dtype.UNSIGNED48:     "0x%012X",
	dtype.UNSIGNED56:     "0x%014X",
	dtype.UNSIGNED64:     "0x%016X",
}

var cMember = map[dtype.Index]string{
	dtype.BOOLEAN:        "b",
	dtype.INTEGER8:       "i8",
	dtype.INTEGER16:      "i16",
	dtype.INTEGER32:      "i32",
	dtype.UNSIGNED8:      "u8",
	dtype.UNSIGNED16:     "u16",
	dtype.UNSIGNED32:     "u32",
	dtype.REAL32:         "r32",
	dtype.VISIBLE_STRING: "vs",
	dtype.OCTET_STRING:   "os",
	dtype.UNICODE_STRING: "us",
	dtype.TIME_OF_DAY:    "t",
	dtype.TIME_DIFF:      "td",
	dtype.DOMAIN:         "dom",
	dtype.INTEGER24:      "i24",
	dtype.REAL64:         "r64",
	dtype.INTEGER40:      "i40",
	dtype.INTEGER48:      "i48",
	dtype.INTEGER56:      "i56",
	dtype.INTEGER64:      "i64",
	dtype.UNSIGNED24:     "u24",
	dtype.UNSIGNED40:     "u40",
	dtype.UNSIGNED48:     "u48",
	dtype.UNSIGNED56:     "u56",
	dtype.UNSIGNED64:     "u64",
}

// typeName builds the DataType C-emission attributes, falling back to the
// lower-cased Type.Name as the member for a custom (AddCustom-registered)
// type outside the fixed table.
func typeName(t dtype.Type) DataType {
	member, ok := cMember[t.Index]
	if !ok {
		member = strings.ToLower(t.Name)
	}
	return DataType{
		Typename: "co_" + strings.ToLower(t.Name) + "_t",
		Member:   member,
	}
}

// objectCode maps an ObjectType to its CO_OBJECT_* enumerant name.
func objectCode(ot device.ObjectType) string {
	switch ot {
	case device.ObjectNull:
		return "CO_OBJECT_NULL"
	case device.ObjectDomain:
		return "CO_OBJECT_DOMAIN"
	case device.ObjectDefType:
		return "CO_OBJECT_DEFTYPE"
	case device.ObjectDefStruct:
		return "CO_OBJECT_DEFSTRUCT"
	case device.ObjectVar:
		return "CO_OBJECT_VAR"
	case device.ObjectArray:
		return "CO_OBJECT_ARRAY"
	case device.ObjectRecord:
		return "CO_OBJECT_RECORD"
	default:
		return fmt.Sprintf("0x%02X", uint8(ot))
	}
}

// accessCode maps an AccessType to its CO_ACCESS_* enumerant name.
func accessCode(a device.AccessType) string {
	return "CO_ACCESS_" + strings.ToUpper(string(a))
}

// formatValue implements CDataType.print_value: render val against env as
// the C literal a template would splice in, collapsing a basic value equal
// to its type's min/max to the CO_TYPE_MIN/MAX macro (min only when
// non-zero, matching the Python "== min and != 0" guard).
func formatValue(t dtype.Type, v value.Value, env value.Env) (string, error) {
	format, known := cFormat[t.Index]
	switch {
	case t.IsBasic() && t.Kind == dtype.KindFloat:
		f, err := v.ResolveFloat(env)
		if err != nil {
			return "", err
		}
		if !known {
			format = "%.9g"
		}
		return fmt.Sprintf(format, f), nil
	case t.IsBasic():
		n, err := v.Resolve(env)
		if err != nil {
			return "", err
		}
		if n == int64(t.Min) && n != 0 {
			return "CO_" + t.Name + "_MIN", nil
		}
		if n == int64(t.Max) {
			return "CO_" + t.Name + "_MAX", nil
		}
		if !known {
			format = "%d"
		}
		if strings.Contains(format, "X") {
			return fmt.Sprintf(format, uint64(n)), nil
		}
		return fmt.Sprintf(format, n), nil
	case t.Index == dtype.VISIBLE_STRING:
		s, err := value.ParseVisibleString(v.Literal)
		if err != nil {
			return "", err
		}
		if s == "" {
			return "CO_ARRAY_C", nil
		}
		return fmt.Sprintf(format, escapeC(s)), nil
	case t.Index == dtype.OCTET_STRING:
		b, err := value.ParseOctetString(v.Literal)
		if err != nil {
			return "", err
		}
		if len(b) == 0 {
			return "CO_ARRAY_C", nil
		}
		return fmt.Sprintf(format, hexEscapes(b)), nil
	case t.Index == dtype.DOMAIN:
		b, err := value.ParseOctetString(v.Literal)
		if err != nil {
			return "", err
		}
		if len(b) == 0 {
			return "CO_ARRAY_C", nil
		}
		return fmt.Sprintf(format, hexList(b)), nil
	case t.Index == dtype.UNICODE_STRING:
		s, err := value.ParseVisibleString(v.Literal)
		if err != nil {
			return "", err
		}
		if s == "" {
			return "CO_ARRAY_C", nil
		}
		return fmt.Sprintf(format, utf16List(s)), nil
	case t.Index == dtype.TIME_OF_DAY, t.Index == dtype.TIME_DIFF:
		tv, err := value.ParseTime(v.Literal)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(format, tv.Ms, tv.Days), nil
	case t.CFormat != "":
		// A manufacturer-specific type registered via dtype.AddCustom (e.g.
		// dcf2dev's --deftype-time-scet): the literal is whitespace-separated
		// integers, and CFormat addresses them positionally (e.g.
		// "{ .subseconds = %[2]d, .seconds = %[1]d }"), mirroring
		// cdevice.py's CDataType.add_custom(index, member, format_spec).
		fields := strings.Fields(v.Literal)
		args := make([]any, len(fields))
		for i, f := range fields {
			n, err := strconv.ParseInt(f, 0, 64)
			if err != nil {
				return "", fmt.Errorf("custom literal field %d: %w", i, err)
			}
			args[i] = n
		}
		return fmt.Sprintf(t.CFormat, args...), nil
	default:
		return "", fmt.Errorf("cdevice: unrenderable data type 0x%04X", t.Index)
	}
}

func escapeC(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hexEscapes(b []byte) string {
	var out strings.Builder
	for _, x := range b {
		fmt.Fprintf(&out, `\x%02x`, x)
	}
	return out.String()
}

func hexList(b []byte) string {
	parts := make([]string, len(b))
	for i, x := range b {
		parts[i] = fmt.Sprintf("0x%02x", x)
	}
	return strings.Join(parts, ", ")
}

// utf16List little-endian UTF-16-encodes s plus a terminating null byte,
// matching cdevice.py's CDataType.print_value UNICODE_STRING branch.
func utf16List(s string) string {
	encoded := utf16Encode(s + "\x00")
	parts := make([]string, len(encoded))
	for i, u := range encoded {
		parts[i] = fmt.Sprintf("0x%04x", u)
	}
	return strings.Join(parts, ", ")
}

func utf16Encode(s string) []uint16 {
	var out []uint16
	for _, r := range s {
		if r <= 0xFFFF {
			out = append(out, uint16(r))
			continue
		}
		r -= 0x10000
		out = append(out, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return out
}

const (
	flagMinNodeID      = "CO_OBJ_FLAGS_MIN_NODEID"
	flagMaxNodeID      = "CO_OBJ_FLAGS_MAX_NODEID"
	flagDefNodeID      = "CO_OBJ_FLAGS_DEF_NODEID"
	flagValNodeID      = "CO_OBJ_FLAGS_VAL_NODEID"
	flagUploadFile     = "CO_OBJ_FLAGS_UPLOAD_FILE"
	flagDownloadFile   = "CO_OBJ_FLAGS_DOWNLOAD_FILE"
	flagParameterValue = "CO_OBJ_FLAGS_PARAMETER_VALUE"
)

// Build constructs the full C-emission attribute tree for dev (spec §6),
// following cdevice.py:CDevice.__init__'s field-by-field extraction order.
func Build(dev *device.Device, name string) (*Device, error) {
	d := &Device{Device: dev, Name: name, Objects: map[uint16]*Object{}}

	if sec, ok := dev.Store.Section("DeviceInfo"); ok {
		d.VendorName = sec.GetDefault("VendorName", "")
		d.ProductName = sec.GetDefault("ProductName", "")
		d.OrderCode = sec.GetDefault("OrderCode", "")
		d.Baud, d.Rate = parseBaudRate(sec)
		if sec.Has("LSS_Supported") {
			n, err := strconv.Atoi(sec.GetDefault("LSS_Supported", "0"))
			if err == nil {
				d.LSS = n
			}
		}
	}
	if sec, ok := dev.Store.Section("DeviceComissioning"); ok {
		d.Name = sec.GetDefault("NodeName", d.Name)
	}
	if sec, ok := dev.Store.Section("DummyUsage"); ok {
		for i := 0; i < 0x20; i++ {
			key := fmt.Sprintf("Dummy%04X", i)
			raw := sec.GetDefault(key, "0")
			n, err := strconv.ParseUint(raw, 2, 1)
			if err == nil && n != 0 {
				d.Dummy |= 1 << uint(i)
			}
		}
	}

	for _, idx := range dev.SortedObjectIndices() {
		obj, _ := dev.Object(idx)
		co, err := buildObject(obj, dev.Env)
		if err != nil {
			return nil, fmt.Errorf("cdevice: object 0x%04X: %w", idx, err)
		}
		d.Objects[idx] = co
	}
	return d, nil
}

// parseBaudRate implements cdevice.py's __parse_baud_rate: each
// BaudRate_N key is a binary flag; the highest true one wins for rate
// (matching the Python assignment order, last-writer-wins).
func parseBaudRate(sec interface {
	GetDefault(string, string) string
}) (string, int) {
	rates := []struct {
		key   string
		token string
		rate  int
	}{
		{"BaudRate_10", "CO_BAUD_10", 10},
		{"BaudRate_20", "CO_BAUD_20", 20},
		{"BaudRate_50", "CO_BAUD_50", 50},
		{"BaudRate_125", "CO_BAUD_125", 125},
		{"BaudRate_250", "CO_BAUD_250", 250},
		{"BaudRate_500", "CO_BAUD_500", 500},
		{"BaudRate_800", "CO_BAUD_800", 800},
		{"BaudRate_1000", "CO_BAUD_1000", 1000},
	}
	baud := "0"
	rate := 0
	for _, r := range rates {
		n, err := strconv.ParseUint(sec.GetDefault(r.key, "0"), 2, 1)
		if err == nil && n != 0 {
			baud += " | " + r.token
			rate = r.rate
		}
	}
	return baud, rate
}

func buildObject(obj *device.Object, env value.Env) (*Object, error) {
	co := &Object{
		Object: obj,
		Code:   objectCode(obj.ObjectType),
		Subs:   map[uint8]*SubObject{},
	}
	for _, sub := range obj.SubObjects() {
		cs, err := buildSubObject(sub, env)
		if err != nil {
			return nil, err
		}
		co.Subs[sub.SubIndex] = cs
	}
	return co, nil
}

func buildSubObject(sub *device.SubObject, env value.Env) (*SubObject, error) {
	t, ok := dtype.Lookup(sub.DataType)
	if !ok {
		return nil, fmt.Errorf("unregistered data type 0x%04X", sub.DataType)
	}

	cs := &SubObject{
		SubObject: sub,
		Type:      "CO_DEFTYPE_" + t.Name,
		Access:    accessCode(sub.Access),
	}
	flags := []string{"0"}
	if sub.UploadFile != "" {
		flags = append(flags, flagUploadFile)
	}
	if sub.DownloadFile != "" {
		flags = append(flags, flagDownloadFile)
	}
	if sub.LowLimit != nil && sub.LowLimit.HasNodeID() {
		flags = append(flags, flagMinNodeID)
	}
	if sub.HighLimit != nil && sub.HighLimit.HasNodeID() {
		flags = append(flags, flagMaxNodeID)
	}

	switch {
	case sub.UploadFile != "":
		cs.DefaultValue = "NULL"
		cs.Value = fmt.Sprintf(`CO_VISIBLE_STRING_C("%s")`, escapeC(sub.UploadFile))
	case sub.DownloadFile != "":
		cs.DefaultValue = "NULL"
		cs.Value = fmt.Sprintf(`CO_VISIBLE_STRING_C("%s")`, escapeC(sub.DownloadFile))
	default:
		if sub.Default.HasNodeID() {
			flags = append(flags, flagDefNodeID)
		}
		dv, err := formatValue(t, sub.Default, env)
		if err != nil {
			return nil, fmt.Errorf("default_value: %w", err)
		}
		cs.DefaultValue = dv

		if sub.Value.HasNodeID() {
			flags = append(flags, flagValNodeID)
		}
		v, err := formatValue(t, sub.Value, env)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		cs.Value = v
	}

	if sub.HasExplicitParameterValue {
		flags = append(flags, flagParameterValue)
	}
	cs.Flags = strings.Join(flags, " | ")
	return cs, nil
}
