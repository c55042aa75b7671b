package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lely-tools/dcftools/pkg/dtype"
	"github.com/lely-tools/dcftools/pkg/inistore"
	"github.com/lely-tools/dcftools/pkg/value"
)

// ObjectType is a CiA-301 object-type code (spec §3 Object).
type ObjectType uint8

const (
	ObjectNull      ObjectType = 0x00
	ObjectDomain    ObjectType = 0x02
	ObjectDefType   ObjectType = 0x05
	ObjectDefStruct ObjectType = 0x06
	ObjectVar       ObjectType = 0x07
	ObjectArray     ObjectType = 0x08
	ObjectRecord    ObjectType = 0x09
)

// SubObject is one component of a composite (or the sole entry of a VAR)
// Object Dictionary entry (spec §3 SubObject).
type SubObject struct {
	ParentIndex uint16
	SubIndex    uint8
	Name        string
	Access      AccessType
	DataType    dtype.Index
	Default     value.Value
	Value       value.Value
	LowLimit    *value.Value
	HighLimit   *value.Value
	PDOMapping  bool

	UploadFile   string
	DownloadFile string

	HasExplicitParameterValue bool
}

// Object is one CiA-301 Object Dictionary entry, keyed by sub-index
// (spec §3 Object).
type Object struct {
	Index      uint16
	Name       string
	ObjectType ObjectType

	subs    []*SubObject
	subByNo map[uint8]*SubObject
}

// SubCount returns the number of populated sub-objects.
func (o *Object) SubCount() int {
	return len(o.subs)
}

// Sub returns the sub-object at subIndex, or ok=false.
func (o *Object) Sub(subIndex uint8) (*SubObject, bool) {
	s, ok := o.subByNo[subIndex]
	return s, ok
}

// SubObjects returns all sub-objects ordered by ascending sub-index.
func (o *Object) SubObjects() []*SubObject {
	return o.subs
}

func (o *Object) addSub(s *SubObject) {
	if o.subByNo == nil {
		o.subByNo = map[uint8]*SubObject{}
	}
	o.subByNo[s.SubIndex] = s
	o.subs = append(o.subs, s)
}

// sectionName is the canonical 4-hex-digit, upper-case name for an index.
func sectionName(index uint16) string {
	return fmt.Sprintf("%04X", index)
}

// buildObject constructs one Object from the store, given its index, per
// spec §4.5 step 3: SubNumber-driven explicit sub-sections, or
// CompactSubObj-driven synthesis, or a bare VAR/DEFTYPE single entry.
func buildObject(store *inistore.Store, index uint16) (*Object, error) {
	name := sectionName(index)
	sec, ok := store.Section(name)
	if !ok {
		return nil, newFault(FaultKey, name, "", "no such object section")
	}
	objTypeRaw := sec.GetDefault("ObjectType", "0x7")
	objType, err := parseU64(objTypeRaw)
	if err != nil {
		return nil, newFault(FaultValue, name, "ObjectType", "invalid ObjectType %q: %v", objTypeRaw, err)
	}
	obj := &Object{
		Index:      index,
		Name:       sec.GetDefault("ParameterName", ""),
		ObjectType: ObjectType(objType),
	}
	if obj.Name == "" {
		return nil, newFault(FaultValue, name, "ParameterName", "ParameterName is required")
	}

	subNumber := parseHexDefault(sec, "SubNumber", 0)
	compactN := parseHexDefault(sec, "CompactSubObj", 0)
	if subNumber != 0 && compactN != 0 {
		return nil, newFault(FaultValue, name, "", "exactly one of SubNumber/CompactSubObj may be non-zero")
	}

	switch {
	case subNumber != 0:
		for sub := 0; sub <= 254; sub++ {
			subName := fmt.Sprintf("%ssub%X", name, sub)
			subSec, ok := store.Section(subName)
			if !ok {
				continue
			}
			so, err := buildSubObject(subSec, index, uint8(sub))
			if err != nil {
				return nil, err
			}
			obj.addSub(so)
		}
		if obj.SubCount() != subNumber {
			return nil, newFault(FaultValue, name, "SubNumber", "declared %d sub-entries, found %d", subNumber, obj.SubCount())
		}
	case compactN != 0:
		nameSec, _ := store.Section(name + "Name")
		valueSec, _ := store.Section(name + "Value")
		zero := value.Value{Type: dtype.MustLookup(dtype.UNSIGNED8), Literal: strconv.Itoa(compactN)}
		obj.addSub(&SubObject{
			ParentIndex: index,
			SubIndex:    0,
			Name:        "NrOfObjects",
			Access:      RO,
			DataType:    dtype.UNSIGNED8,
			Default:     zero,
			Value:       zero,
		})
		parentAccess, _ := ParseAccessType(sec.GetDefault("AccessType", "ro"))
		parentType, err := parseDataType(sec)
		if err != nil {
			return nil, newFault(FaultValue, name, "DataType", "%v", err)
		}
		parentPDO := sec.GetDefault("PDOMapping", "0") != "0"
		for i := 1; i <= compactN; i++ {
			entryName := sec.GetDefault("ParameterName", "") + strconv.Itoa(i)
			if nameSec != nil {
				if v, ok := nameSec.Get(strconv.Itoa(i)); ok {
					entryName = v
				}
			}
			literal := ""
			if valueSec != nil {
				if v, ok := valueSec.Get(strconv.Itoa(i)); ok {
					literal = v
				}
			}
			t, ok := dtype.Lookup(parentType)
			if !ok {
				return nil, newFault(FaultValue, name, "DataType", "unknown data type 0x%04X", parentType)
			}
			val, err := value.New(t, literal)
			if err != nil {
				return nil, newFault(FaultValue, fmt.Sprintf("%sValue", name), strconv.Itoa(i), "%v", err)
			}
			limits, err := inferLimits(t, nil, nil)
			if err != nil {
				return nil, err
			}
			obj.addSub(&SubObject{
				ParentIndex: index,
				SubIndex:    uint8(i),
				Name:        entryName,
				Access:      parentAccess,
				DataType:    parentType,
				Default:     val,
				Value:       val,
				LowLimit:    limits.low,
				HighLimit:   limits.high,
				PDOMapping:  parentPDO,
			})
		}
	default:
		so, err := buildSubObject(sec, index, 0)
		if err != nil {
			return nil, err
		}
		obj.addSub(so)
	}
	return obj, nil
}

// buildSubObject constructs a single SubObject from its own INI section
// (spec §3 SubObject invariants).
func buildSubObject(sec *inistore.Section, parentIndex uint16, subIndex uint8) (*SubObject, error) {
	name := sec.GetDefault("ParameterName", "")
	accessRaw := sec.GetDefault("AccessType", "ro")
	access, err := ParseAccessType(accessRaw)
	if err != nil {
		return nil, newFault(FaultValue, sec.Name, "AccessType", "%v", err)
	}

	dtIndex, err := parseDataType(sec)
	if err != nil {
		return nil, newFault(FaultValue, sec.Name, "DataType", "%v", err)
	}
	t, ok := dtype.Lookup(dtIndex)
	if !ok {
		return nil, newFault(FaultValue, sec.Name, "DataType", "unknown data type 0x%04X", dtIndex)
	}

	defaultLiteral := sec.GetDefault("DefaultValue", "")
	def, err := value.New(t, defaultLiteral)
	if err != nil {
		return nil, newFault(FaultValue, sec.Name, "DefaultValue", "%v", err)
	}

	explicit := sec.Has("ParameterValue")
	cur := def
	if explicit {
		cur, err = value.New(t, sec.GetDefault("ParameterValue", ""))
		if err != nil {
			return nil, newFault(FaultValue, sec.Name, "ParameterValue", "%v", err)
		}
	}

	var lowLit, highLit *string
	if v, ok := sec.Get("LowLimit"); ok {
		lowLit = &v
	}
	if v, ok := sec.Get("HighLimit"); ok {
		highLit = &v
	}
	limits, err := inferLimits(t, lowLit, highLit)
	if err != nil {
		return nil, newFault(FaultValue, sec.Name, "LowLimit/HighLimit", "%v", err)
	}

	pdoMapping := sec.GetDefault("PDOMapping", "0") != "0"

	so := &SubObject{
		ParentIndex:               parentIndex,
		SubIndex:                  subIndex,
		Name:                      name,
		Access:                    access,
		DataType:                  dtIndex,
		Default:                   def,
		Value:                     cur,
		LowLimit:                  limits.low,
		HighLimit:                 limits.high,
		PDOMapping:                pdoMapping,
		UploadFile:                sec.GetDefault("UploadFile", ""),
		DownloadFile:              sec.GetDefault("DownloadFile", ""),
		HasExplicitParameterValue: explicit,
	}
	return so, nil
}

type limitPair struct {
	low  *value.Value
	high *value.Value
}

// inferLimits implements "data_type is basic ⇒ limits are defined (inferred
// from type range if absent)" (spec §3 SubObject invariants).
func inferLimits(t dtype.Type, lowLit, highLit *string) (limitPair, error) {
	if !t.IsBasic() {
		return limitPair{}, nil
	}
	var lp limitPair
	if lowLit != nil {
		v, err := value.New(t, *lowLit)
		if err != nil {
			return limitPair{}, err
		}
		lp.low = &v
	} else {
		v, err := value.New(t, formatLimit(t.Min))
		if err != nil {
			return limitPair{}, err
		}
		lp.low = &v
	}
	if highLit != nil {
		v, err := value.New(t, *highLit)
		if err != nil {
			return limitPair{}, err
		}
		lp.high = &v
	} else {
		v, err := value.New(t, formatLimit(t.Max))
		if err != nil {
			return limitPair{}, err
		}
		lp.high = &v
	}
	return lp, nil
}

func formatLimit(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return "0"
}

func parseDataType(sec *inistore.Section) (dtype.Index, error) {
	raw, ok := sec.Get("DataType")
	if !ok {
		return 0, fmt.Errorf("DataType is required")
	}
	n, err := parseU64(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid DataType %q: %w", raw, err)
	}
	return dtype.Index(n), nil
}

func parseHexDefault(sec *inistore.Section, key string, def int) int {
	raw, ok := sec.Get(key)
	if !ok {
		return def
	}
	n, err := parseU64(raw)
	if err != nil {
		return def
	}
	return int(n)
}

func parseU64(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	return strconv.ParseUint(s, 0, 64)
}
