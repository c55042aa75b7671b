package device

import (
	"fmt"

	"github.com/lely-tools/dcftools/pkg/dtype"
)

// PDO is a resolved Process Data Object: communication parameters plus the
// ordered mapping of payload slots to dictionary sub-objects (spec §3 PDO,
// §4.6 PDO resolver / C6).
//
// Grounded on github.com/samsamfire/gocanopen's pkg/config/pdo.go naming
// (PDOMappingParameter/PDOConfigurationParameter) and on lely-core's
// dcf/device.py PDO.from_device, which this mirrors field-for-field.
type PDO struct {
	CobID            uint32
	TransmissionType uint8
	InhibitTime      uint16
	EventTimer       uint16
	EventDeadline    uint16
	SyncStartValue   uint8
	N                uint8
	Mapping          map[uint8]*SubObject
}

// IsDisabled reports whether the PDO's COB-ID carries the disable bit
// (bit 31), per spec §3 PDO.
func (p *PDO) IsDisabled() bool {
	return p.CobID&0x80000000 != 0
}

// resolvePDO implements C6: given the communication object at commIndex and
// the mapping object at commIndex+0x200, reconstructs a PDO. isTPDO governs
// whether sub 3/6 (inhibit/sync-start) or sub 5 (event timer vs. event
// deadline) apply, per the (index & 0xFE00) == 0x1800 rule in spec §4.6.
func resolvePDO(dev *Device, commIndex uint16, isTPDO bool) (*PDO, error) {
	commObj, ok := dev.Object(commIndex)
	if !ok {
		return nil, nil
	}
	mapIndex := commIndex + 0x200
	mapObj, ok := dev.Object(mapIndex)
	if !ok {
		return nil, newFault(FaultKey, sectionName(commIndex), "", "communication object present without mapping object 0x%04X", mapIndex)
	}

	n, err := subU8(commObj, 0, dev.Env)
	if err != nil {
		return nil, err
	}
	pdo := &PDO{}
	if cob, err := subU32IfPresent(commObj, 1, n, 1, dev.Env); err == nil && cob != nil {
		pdo.CobID = *cob
	} else if err != nil {
		return nil, err
	}
	if tt, err := subU8IfPresent(commObj, 2, n, 2, dev.Env); err == nil && tt != nil {
		pdo.TransmissionType = *tt
	} else if err != nil {
		return nil, err
	}
	if isTPDO {
		if v, err := subU16IfPresent(commObj, 3, n, 3, dev.Env); err == nil && v != nil {
			pdo.InhibitTime = *v
		} else if err != nil {
			return nil, err
		}
		if v, err := subU16IfPresent(commObj, 5, n, 5, dev.Env); err == nil && v != nil {
			pdo.EventTimer = *v
		} else if err != nil {
			return nil, err
		}
		if v, err := subU8IfPresent(commObj, 6, n, 6, dev.Env); err == nil && v != nil {
			pdo.SyncStartValue = *v
		} else if err != nil {
			return nil, err
		}
	} else {
		if v, err := subU16IfPresent(commObj, 5, n, 5, dev.Env); err == nil && v != nil {
			pdo.EventDeadline = *v
		} else if err != nil {
			return nil, err
		}
	}

	mapN, err := subU8(mapObj, 0, dev.Env)
	if err != nil {
		return nil, err
	}
	pdo.N = mapN
	pdo.Mapping = map[uint8]*SubObject{}
	for i := uint8(1); i <= mapN; i++ {
		sub, ok := mapObj.Sub(i)
		if !ok {
			continue
		}
		w, err := subObjValueAsUint(sub, dev.Env)
		if err != nil {
			return nil, err
		}
		if w == 0 {
			continue
		}
		idx := uint16(w >> 16)
		subIdx := uint8((w >> 8) & 0xFF)
		if idx < 0x1000 {
			dummySub, err := dummyMappingEntry(dev, idx)
			if err != nil {
				return nil, err
			}
			pdo.Mapping[i] = dummySub
			continue
		}
		target, ok := dev.Object(idx)
		if !ok {
			return nil, newFault(FaultKey, sectionName(mapIndex), fmt.Sprintf("sub%d", i), "mapping references unknown object 0x%04X", idx)
		}
		targetSub, ok := target.Sub(subIdx)
		if !ok {
			return nil, newFault(FaultKey, sectionName(idx), fmt.Sprintf("sub%d", subIdx), "mapping references unknown sub-index")
		}
		pdo.Mapping[i] = targetSub
	}
	return pdo, nil
}

// dummyMappingEntry fabricates the dummy Object CiA-data-type placeholder
// entry a mapping word with index < 0x1000 refers to (spec §4.5 "Dummy
// mapping synthesis", confirmed verbatim against lely-core's
// device.py:Object.from_dummy): ObjectType DEFTYPE, DataType == index,
// AccessType rw, PDOMapping set, one sub-entry (sub 0) whose DataType is the
// index itself.
func dummyMappingEntry(dev *Device, index uint16) (*SubObject, error) {
	if obj, ok := dev.Objects[index]; ok {
		sub, _ := obj.Sub(0)
		return sub, nil
	}
	t, ok := dtype.Lookup(dtype.Index(index))
	if !ok {
		return nil, newFault(FaultValue, sectionName(index), "", "dummy mapping references unregistered data type 0x%04X", index)
	}
	def, err := valueZero(t)
	if err != nil {
		return nil, err
	}
	sub := &SubObject{
		ParentIndex: index,
		SubIndex:    0,
		Name:        t.Name,
		Access:      RW,
		DataType:    dtype.Index(index),
		Default:     def,
		Value:       def,
		PDOMapping:  true,
	}
	obj := &Object{Index: index, Name: t.Name, ObjectType: ObjectDefType}
	obj.addSub(sub)
	if dev.Objects == nil {
		dev.Objects = map[uint16]*Object{}
	}
	dev.Objects[index] = obj
	return sub, nil
}
