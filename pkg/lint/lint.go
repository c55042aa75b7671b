// Package lint implements the pure DCF/EDS validator (spec §4.4, C4): a
// predicate over an inistore.Store that emits a warning per structural
// violation and returns an overall success/failure flag. It performs no
// I/O and carries no state across calls, matching spec §4.4's "pure
// validator" framing and §9's "reinterpret exceptions as explicit failure
// results" design note.
//
// Grounded on lely-core's dcf/lint.py, most importantly __parse_limit's
// $NODEID-aware tie-break arithmetic, reproduced verbatim below rather than
// re-derived, since the spec calls this out as safety-critical.
package lint

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lely-tools/dcftools/pkg/dtype"
	"github.com/lely-tools/dcftools/pkg/inistore"
	"github.com/lely-tools/dcftools/pkg/value"
)

// Warning is one lint finding: the offending section/key and a message,
// plus a nesting depth mirroring the Python source's stacklevel diagnostic
// hint (spec §9 "Warnings with stacklevel").
type Warning struct {
	Section    string
	Key        string
	Message    string
	StackLevel int
}

func (w Warning) String() string {
	if w.Key != "" {
		return fmt.Sprintf("[%s].%s: %s", w.Section, w.Key, w.Message)
	}
	return fmt.Sprintf("[%s]: %s", w.Section, w.Message)
}

// Result is the outcome of a Lint call.
type Result struct {
	OK       bool
	Warnings []Warning
}

var objectSectionPattern = regexp.MustCompile(`^[0-9A-Fa-f]{4}(Name|Value|sub[0-9A-Fa-f]+)?$`)
var bareObjectSectionPattern = regexp.MustCompile(`^[0-9A-Fa-f]{4}$`)
var dummyKeyPattern = regexp.MustCompile(`^(?i)Dummy[0-9A-F]{4}$`)

var fixedSections = map[string]bool{
	"fileinfo":            true,
	"devicecomissioning":   true,
	"deviceinfo":           true,
	"dummyusage":           true,
	"comments":             true,
	"mandatoryobjects":     true,
	"optionalobjects":      true,
	"manufacturerobjects":  true,
}

// recognizedKeys lists the keys permitted inside each fixed section (the
// "only recognized keys permitted" check, spec §4.4).
var recognizedKeys = map[string]map[string]bool{
	"fileinfo": setOf("FileName", "FileVersion", "FileRevision", "EDSVersion", "Description",
		"CreationTime", "CreationDate", "CreatedBy", "ModificationTime", "ModificationDate", "ModifiedBy"),
	"devicecomissioning": setOf("NodeID", "NodeName", "Baudrate", "NetNumber", "NetworkName",
		"CANopenManager", "LSS_SerialNumber"),
	"deviceinfo": setOf("VendorName", "VendorNumber", "ProductName", "ProductNumber",
		"RevisionNumber", "OrderCode", "BaudRate_10", "BaudRate_20", "BaudRate_50", "BaudRate_125",
		"BaudRate_250", "BaudRate_500", "BaudRate_800", "BaudRate_1000", "SimpleBootUpMaster",
		"SimpleBootUpSlave", "Granularity", "DynamicChannelsSupported", "CompactPDO",
		"GroupMessaging", "NrOfRXPDO", "NrOfRxPDO", "NrOfTXPDO", "NrOfTxPDO", "LSS_Supported"),
	"dummyusage": nil, // keys are Dummy0001..DummyFFFF, validated structurally below
	"comments":   nil, // Lines/Line1.. free-form
	"mandatoryobjects":    nil, // SupportedObjects + "1".."N", validated below
	"optionalobjects":     nil,
	"manufacturerobjects": nil,
}

func setOf(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[strings.ToLower(k)] = true
	}
	return m
}

// Lint validates store against spec §4.4's rule set.
func Lint(store *inistore.Store, env value.Env) Result {
	var warnings []Warning
	add := func(section, key, format string, args ...any) {
		warnings = append(warnings, Warning{Section: section, Key: key, Message: fmt.Sprintf(format, args...), StackLevel: 1})
	}

	for _, sec := range store.Sections() {
		lower := strings.ToLower(sec.Name)
		if fixedSections[lower] {
			continue
		}
		if !objectSectionPattern.MatchString(sec.Name) {
			add(sec.Name, "", "unrecognized section")
		}
	}

	if sec, ok := store.Section("FileInfo"); ok {
		lintRecognizedKeys(sec, recognizedKeys["fileinfo"], add)
	}
	if sec, ok := store.Section("DeviceComissioning"); ok {
		lintRecognizedKeys(sec, recognizedKeys["devicecomissioning"], add)
	}
	if sec, ok := store.Section("DeviceInfo"); ok {
		lintRecognizedKeys(sec, recognizedKeys["deviceinfo"], add)
	}
	if sec, ok := store.Section("DummyUsage"); ok {
		for _, k := range sec.Keys() {
			if !dummyKeyPattern.MatchString(k.Name) {
				add(sec.Name, k.Name, "unrecognized DummyUsage key")
				continue
			}
			if k.Value != "0" && k.Value != "1" {
				add(sec.Name, k.Name, "DummyUsage value must be 0 or 1, got %q", k.Value)
			}
		}
	}

	enumeratedIndices := map[string]map[uint16]bool{}
	for _, section := range []string{"MandatoryObjects", "OptionalObjects", "ManufacturerObjects"} {
		sec, ok := store.Section(section)
		if !ok {
			continue
		}
		indices, bad := lintEnumeration(sec, add)
		enumeratedIndices[strings.ToLower(section)] = indices
		_ = bad
	}
	lintEnumerationRange(enumeratedIndices["mandatoryobjects"], "MandatoryObjects", func(idx uint16) bool {
		return idx == 0x1000 || idx == 0x1001 || idx == 0x1018
	}, add)
	lintEnumerationRange(enumeratedIndices["manufacturerobjects"], "ManufacturerObjects", func(idx uint16) bool {
		return idx >= 0x2000 && idx < 0x6000
	}, add)
	for idx := range enumeratedIndices["optionalobjects"] {
		if idx >= 0x2000 && idx < 0x6000 {
			add("OptionalObjects", fmt.Sprintf("0x%04X", idx), "OptionalObjects must be disjoint from the manufacturer range [0x2000,0x6000)")
		}
	}
	for _, indices := range enumeratedIndices {
		for idx := range indices {
			if idx < 0x1000 {
				add("", fmt.Sprintf("0x%04X", idx), "data-type indices < 0x1000 are not valid object indices")
			}
			name := fmt.Sprintf("%04X", idx)
			if _, ok := store.Section(name); !ok {
				add(name, "", "enumerated object has no corresponding section")
			}
		}
	}

	for _, sec := range store.Sections() {
		if !isBareObjectSection(sec.Name) {
			continue
		}
		lintObjectSection(store, sec, env, add)
	}

	return Result{OK: len(warnings) == 0, Warnings: warnings}
}

func lintRecognizedKeys(sec *inistore.Section, recognized map[string]bool, add func(string, string, string, ...any)) {
	if recognized == nil {
		return
	}
	for _, k := range sec.Keys() {
		if !recognized[strings.ToLower(k.Name)] {
			add(sec.Name, k.Name, "unrecognized key")
		}
	}
}

func lintEnumeration(sec *inistore.Section, add func(string, string, string, ...any)) (map[uint16]bool, bool) {
	out := map[uint16]bool{}
	countRaw, ok := sec.Get("SupportedObjects")
	if !ok {
		return out, true
	}
	count, err := strconv.Atoi(countRaw)
	if err != nil {
		add(sec.Name, "SupportedObjects", "invalid count %q", countRaw)
		return out, false
	}
	for i := 1; i <= count; i++ {
		raw, ok := sec.Get(strconv.Itoa(i))
		if !ok {
			add(sec.Name, strconv.Itoa(i), "missing enumerated entry")
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSpace(raw), 0, 16)
		if err != nil {
			add(sec.Name, strconv.Itoa(i), "invalid hex index %q", raw)
			continue
		}
		out[uint16(n)] = true
	}
	return out, true
}

func lintEnumerationRange(indices map[uint16]bool, section string, allowed func(uint16) bool, add func(string, string, string, ...any)) {
	for idx := range indices {
		if !allowed(idx) {
			add(section, fmt.Sprintf("0x%04X", idx), "index not permitted in this section")
		}
	}
}

func isBareObjectSection(name string) bool {
	return bareObjectSectionPattern.MatchString(name)
}

func lintObjectSection(store *inistore.Store, sec *inistore.Section, env value.Env, add func(string, string, string, ...any)) {
	objType, hasType := sec.Get("ObjectType")
	if sec.GetDefault("ParameterName", "") == "" {
		add(sec.Name, "ParameterName", "ParameterName is required")
	}
	ot := uint64(0x07) // VAR, the dcf/lint.py default when ObjectType is absent
	if hasType {
		parsed, err := strconv.ParseUint(strings.TrimSpace(objType), 0, 8)
		if err != nil {
			add(sec.Name, "ObjectType", "invalid ObjectType %q", objType)
		} else {
			ot = parsed
		}
	}

	needsDataType := ot == 0x07 || ot == 0x05 // VAR, DEFTYPE
	if needsDataType && !sec.Has("DataType") && !sec.Has("SubNumber") && !sec.Has("CompactSubObj") {
		add(sec.Name, "DataType", "DataType is required for VAR/DEFTYPE")
	}

	subNumberVal, _ := strconv.ParseUint(strings.TrimSpace(sec.GetDefault("SubNumber", "0")), 0, 16)
	compactVal, _ := strconv.ParseUint(strings.TrimSpace(sec.GetDefault("CompactSubObj", "0")), 0, 16)

	if accessType, hasAccess := sec.Get("AccessType"); hasAccess && accessType != "" {
		if (ot == 0x06 || ot == 0x08 || ot == 0x09) && compactVal == 0 {
			add(sec.Name, "AccessType", "AccessType not supported for DEFSTRUCT/ARRAY/RECORD")
		}
	} else if ot != 0x02 && compactVal != 0 {
		add(sec.Name, "AccessType", "AccessType is required")
	}

	subNumber := sec.Has("SubNumber")
	switch {
	case subNumberVal != 0 && compactVal != 0:
		add(sec.Name, "", "exactly one of SubNumber/CompactSubObj may be non-zero")
	case subNumberVal != 0, compactVal != 0:
		if ot != 0x08 && ot != 0x09 {
			add(sec.Name, "ObjectType", "ObjectType should be 0x08 (ARRAY) or 0x09 (RECORD)")
		}
	}

	if subNumber {
		declared := subNumberVal
		found := 0
		for sub := 0; sub <= 254; sub++ {
			subName := fmt.Sprintf("%ssub%X", sec.Name, sub)
			subSec, ok := store.Section(subName)
			if !ok {
				continue
			}
			found++
			if sub == 0 {
				dt := subSec.GetDefault("DataType", "")
				if n, err := strconv.ParseUint(strings.TrimSpace(dt), 0, 16); dt != "" && (err != nil || dtype.Index(n) != dtype.UNSIGNED8) {
					add(subName, "DataType", "sub-index 0 of a compound object must be UNSIGNED8")
				}
			}
			lintSubObject(subSec, env, add)
		}
		if uint64(found) != declared {
			add(sec.Name, "SubNumber", "declared %d sub-entries, found %d", declared, found)
		}
	}
}

func lintSubObject(sec *inistore.Section, env value.Env, add func(string, string, string, ...any)) {
	dtRaw, ok := sec.Get("DataType")
	if !ok {
		return
	}
	dtVal, err := strconv.ParseUint(strings.TrimSpace(dtRaw), 0, 16)
	if err != nil {
		add(sec.Name, "DataType", "invalid DataType %q", dtRaw)
		return
	}
	t, ok := dtype.Lookup(dtype.Index(dtVal))
	if !ok || !t.IsBasic() {
		return
	}

	literal := sec.GetDefault("ParameterValue", "")
	if literal == "" {
		literal = sec.GetDefault("DefaultValue", "")
	}
	if literal == "" {
		return
	}
	v, err := value.New(t, literal)
	if err != nil {
		add(sec.Name, "DefaultValue", "%v", err)
		return
	}

	lowLit := sec.GetDefault("LowLimit", formatFloat(t.Min))
	highLit := sec.GetDefault("HighLimit", formatFloat(t.Max))
	low, err := value.New(t, lowLit)
	if err != nil {
		add(sec.Name, "LowLimit", "%v", err)
		return
	}
	high, err := value.New(t, highLit)
	if err != nil {
		add(sec.Name, "HighLimit", "%v", err)
		return
	}

	if err := checkLimit(v, low, high, env); err != nil {
		add(sec.Name, "DefaultValue", "%v", err)
	}
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return "0"
}

// checkLimit implements spec §4.4's NODEID-aware tie-break rule verbatim
// from lely-core's lint.py.__parse_limit/__parse_value: if a bound carries
// $NODEID and the checked value does not (or vice versa), the bound is
// shifted by +1 at the low end or -127 at the high end before comparing.
func checkLimit(v, low, high value.Value, env value.Env) error {
	vn, err := v.Resolve(env)
	if err != nil {
		return err
	}
	lowN, err := low.Resolve(env)
	if err != nil {
		return err
	}
	highN, err := high.Resolve(env)
	if err != nil {
		return err
	}

	if low.HasNodeID() != v.HasNodeID() {
		lowN++
	}
	if high.HasNodeID() != v.HasNodeID() {
		highN -= 127
	}

	if vn < lowN {
		return fmt.Errorf("value %d below LowLimit %d (NODEID-adjusted)", vn, lowN)
	}
	if vn > highN {
		return fmt.Errorf("value %d above HighLimit %d (NODEID-adjusted)", vn, highN)
	}
	return nil
}

// SortWarnings orders warnings deterministically by section then key, for
// stable CLI output.
func SortWarnings(ws []Warning) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].Section != ws[j].Section {
			return ws[i].Section < ws[j].Section
		}
		return ws[i].Key < ws[j].Key
	})
}
