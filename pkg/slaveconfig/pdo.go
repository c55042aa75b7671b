package slaveconfig

import (
	"fmt"
	"sort"

	"github.com/lely-tools/dcftools/pkg/device"
	"github.com/lely-tools/dcftools/pkg/dtype"
	"github.com/lely-tools/dcftools/pkg/overlay"
)

// cobPool is the monotonic COB-ID allocator backing the "auto" sentinel for
// PDO slots at or beyond the fourth of their kind (spec §4.8 step 5): starts
// at opts.CobID (default 0x680) and refuses to cross 0x6E0.
type cobPool struct {
	next uint32
}

func newCobPool(opts overlay.Options) *cobPool {
	base := uint32(opts.CobID)
	if base == 0 {
		base = 0x680
	}
	return &cobPool{next: base}
}

func (p *cobPool) take() (uint32, error) {
	if p.next > 0x6E0 {
		return 0, fmt.Errorf("slaveconfig: COB-ID auto-assign pool exhausted past 0x6E0")
	}
	v := p.next
	p.next++
	return v, nil
}

// defaultSlotCobID reproduces pkg/inistore.defaultCompactCOBID's slot<4
// convention, resolved against this slave's concrete node ID rather than
// left as a $NODEID-symbolic literal.
func defaultSlotCobID(slotIndex int, isRPDO bool, nodeID uint8) (uint32, bool) {
	if slotIndex >= 4 {
		return 0, false
	}
	var offset uint32
	if isRPDO {
		offset = uint32(slotIndex+1)*0x100 + 0x100
	} else {
		offset = uint32(slotIndex+1)*0x100 + 0x80
	}
	return offset + uint32(nodeID), true
}

// reconfigurePDOs implements spec §4.8 steps 4-5: for every overlay-named
// RPDO/TPDO slot, diff against the resolved PDO and emit the two-phase
// disable -> reconfigure -> enable SDO sequence.
func (s *Slave) reconfigurePDOs(ov overlay.Slave, opts overlay.Options) error {
	pool := newCobPool(opts)

	if err := s.reconfigureKind(ov.RPDO, s.RPDO, 0x1400, false, pool); err != nil {
		return err
	}
	if err := s.reconfigureKind(ov.TPDO, s.TPDO, 0x1800, true, pool); err != nil {
		return err
	}
	return nil
}

func (s *Slave) reconfigureKind(overlays map[int]overlay.PDOOverlay, current map[int]*device.PDO, commBase uint16, isTPDO bool, pool *cobPool) error {
	slots := make([]int, 0, len(overlays))
	for slot := range overlays {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	for _, slot := range slots {
		ov := overlays[slot]
		pdo, ok := current[slot]
		if !ok {
			s.logger.Warn("slaveconfig: overlay references unresolved PDO slot", "slot", slot, "tpdo", isTPDO)
			continue
		}
		commIndex := commBase + uint16(slot-1)
		mapIndex := commIndex + 0x200

		if err := s.reconfigureOne(ov, pdo, commIndex, mapIndex, slot, isTPDO, pool); err != nil {
			return fmt.Errorf("slaveconfig: slot %d: %w", slot, err)
		}
	}
	return nil
}

func (s *Slave) reconfigureOne(ov overlay.PDOOverlay, pdo *device.PDO, commIndex, mapIndex uint16, slot int, isTPDO bool, pool *cobPool) error {
	oldRaw := pdo.CobID

	newEnabled := oldRaw &^ 0x80000000
	if ov.CobID != nil {
		resolved, err := s.resolveCobID(*ov.CobID, slot, isTPDO, pool)
		if err != nil {
			return err
		}
		newEnabled = resolved &^ 0x80000000
	}

	disabledOld := oldRaw | 0x80000000
	if err := s.emit(commIndex, 1, int64(disabledOld)); err != nil {
		return err
	}
	pdo.CobID = disabledOld

	if ov.Transmission != nil && *ov.Transmission != pdo.TransmissionType {
		if err := s.emit(commIndex, 2, int64(*ov.Transmission)); err != nil {
			return err
		}
		pdo.TransmissionType = *ov.Transmission
	}

	if isTPDO {
		if ov.InhibitTime != nil && *ov.InhibitTime != pdo.InhibitTime {
			if err := s.emit(commIndex, 3, int64(*ov.InhibitTime)); err != nil {
				return err
			}
			pdo.InhibitTime = *ov.InhibitTime
		}
		if ov.EventTimer != nil && *ov.EventTimer != pdo.EventTimer {
			if err := s.emit(commIndex, 5, int64(*ov.EventTimer)); err != nil {
				return err
			}
			pdo.EventTimer = *ov.EventTimer
		}
		if ov.SyncStart != nil && *ov.SyncStart != pdo.SyncStartValue {
			if err := s.emit(commIndex, 6, int64(*ov.SyncStart)); err != nil {
				return err
			}
			pdo.SyncStartValue = *ov.SyncStart
		}
	} else {
		// RPDO sub 5 is event_deadline, not event_timer - the one place the
		// reference tooling historically wrote the wrong overlay field.
		if ov.EventDeadline != nil && *ov.EventDeadline != pdo.EventDeadline {
			if err := s.emit(commIndex, 5, int64(*ov.EventDeadline)); err != nil {
				return err
			}
			pdo.EventDeadline = *ov.EventDeadline
		}
	}

	if ov.Mapping != nil {
		if err := s.remapOne(mapIndex, ov.Mapping, isTPDO); err != nil {
			return err
		}
		mapping := make(map[uint8]*device.SubObject, len(ov.Mapping))
		for i, m := range ov.Mapping {
			obj, ok := s.Object(m.Index)
			if !ok {
				return fmt.Errorf("mapping entry %d: unknown object 0x%04X", i+1, m.Index)
			}
			sub, ok := obj.Sub(m.SubIndex)
			if !ok {
				return fmt.Errorf("mapping entry %d: unknown sub-object 0x%04X/%d", i+1, m.Index, m.SubIndex)
			}
			mapping[uint8(i+1)] = sub
		}
		pdo.Mapping = mapping
		pdo.N = uint8(len(ov.Mapping))
	}

	enabled := true
	if ov.Enabled != nil {
		enabled = *ov.Enabled
	}
	if enabled {
		if err := s.emit(commIndex, 1, int64(newEnabled)); err != nil {
			return err
		}
		pdo.CobID = newEnabled
	}
	return nil
}

// remapOne validates and (re)writes a mapping table: zero the count, write
// each word, then write the final count (spec §4.8 step 4's mapping
// sub-sequence, exactly reproduced by the §8 worked "slot reconfiguration"
// scenario).
func (s *Slave) remapOne(mapIndex uint16, entries []overlay.MappingOverlay, isTPDO bool) error {
	if err := s.emit(mapIndex, 0, 0); err != nil {
		return err
	}
	for i, m := range entries {
		obj, ok := s.Object(m.Index)
		if !ok {
			return fmt.Errorf("mapping entry %d: unknown object 0x%04X", i+1, m.Index)
		}
		sub, ok := obj.Sub(m.SubIndex)
		if !ok {
			return fmt.Errorf("mapping entry %d: unknown sub-object 0x%04X/%d", i+1, m.Index, m.SubIndex)
		}
		if isTPDO && !sub.Access.TPDOMappable() {
			return fmt.Errorf("mapping entry %d: 0x%04X/%d is not TPDO-mappable (access=%s)", i+1, m.Index, m.SubIndex, sub.Access)
		}
		if !isTPDO && !sub.Access.RPDOMappable() {
			return fmt.Errorf("mapping entry %d: 0x%04X/%d is not RPDO-mappable (access=%s)", i+1, m.Index, m.SubIndex, sub.Access)
		}
		dt, ok := dtype.Lookup(sub.DataType)
		if !ok {
			return fmt.Errorf("mapping entry %d: unregistered data type for 0x%04X/%d", i+1, m.Index, m.SubIndex)
		}
		word := uint32(m.Index)<<16 | uint32(m.SubIndex)<<8 | uint32(dt.Bits)
		if err := s.emit(mapIndex, uint8(i+1), int64(word)); err != nil {
			return err
		}
	}
	return s.emit(mapIndex, 0, int64(len(entries)))
}

// resolveCobID implements spec §4.8 step 5: a literal numeric COB-ID, or the
// "auto" sentinel (default slot<4 convention, else pool allocation).
func (s *Slave) resolveCobID(literal string, slot int, isTPDO bool, pool *cobPool) (uint32, error) {
	if literal == "auto" {
		if v, ok := defaultSlotCobID(slot-1, !isTPDO, s.NodeID); ok {
			return v, nil
		}
		return pool.take()
	}
	var n uint32
	if _, err := fmt.Sscanf(literal, "0x%X", &n); err == nil {
		return n, nil
	}
	if _, err := fmt.Sscanf(literal, "%d", &n); err == nil {
		return n, nil
	}
	return 0, fmt.Errorf("invalid cob_id literal %q", literal)
}
