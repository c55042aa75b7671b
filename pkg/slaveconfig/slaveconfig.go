// Package slaveconfig implements the slave configurator (spec §4.8, C8): a
// deterministic, side-effect-free function from (parsed Device, declarative
// overlay) to an augmented Slave plus an ordered concise-SDO script.
//
// Grounded on lely-core's dcfgen/cli.py:Slave (the seven numbered actions
// below reproduce its method order) and on github.com/samsamfire/gocanopen's
// pkg/config/pdo.go naming (PDOConfigurationParameter) for the Go-idiom
// struct shape; the *slog.Logger-carrying-struct pattern follows
// pkg/od/entry.go.
package slaveconfig

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/lely-tools/dcftools/pkg/concise"
	"github.com/lely-tools/dcftools/pkg/device"
	"github.com/lely-tools/dcftools/pkg/dtype"
	"github.com/lely-tools/dcftools/pkg/overlay"
	"github.com/lely-tools/dcftools/pkg/value"
)

// Slave extends a parsed Device with the configuration-time fields and
// accumulated SDO script spec §3's Slave type names.
type Slave struct {
	*device.Device

	Name    string
	DCFPath string

	TimeCobID           uint32
	HeartbeatMultiplier float64
	HeartbeatConsumer   bool
	HeartbeatProducer   uint32
	RetryFactor         int
	LifeTimeFactor      uint8
	GuardTime           uint16

	Boot                 bool
	Mandatory            bool
	ResetCommunication   bool
	SoftwareFile         string
	SoftwareVersion      uint32
	ConfigurationFile    string
	RestoreConfiguration bool

	SDO []concise.Record

	logger *slog.Logger
}

// Build runs spec §4.8's seven numbered actions against dev, producing the
// augmented Slave and its ordered SDO script.
func Build(dev *device.Device, name string, ov overlay.Slave, opts overlay.Options, logger *slog.Logger) (*Slave, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Slave{
		Device:              dev,
		Name:                name,
		DCFPath:             ov.DCF,
		HeartbeatMultiplier: opts.HeartbeatMultiplier,
		RetryFactor:         opts.RetryFactor,
		logger:              logger,
	}
	if ov.TimeCobID != nil {
		s.TimeCobID = *ov.TimeCobID
	}
	if ov.HeartbeatMultiplier != nil {
		s.HeartbeatMultiplier = *ov.HeartbeatMultiplier
	}
	s.HeartbeatConsumer = ov.HeartbeatConsumer
	s.HeartbeatProducer = ov.HeartbeatProducer
	s.GuardTime = ov.GuardTime
	s.LifeTimeFactor = ov.LifeTimeFactor
	s.Boot = ov.Boot
	s.Mandatory = ov.Mandatory
	s.ResetCommunication = ov.ResetCommunication
	s.SoftwareFile = ov.SoftwareFile
	s.SoftwareVersion = ov.SoftwareVersion
	s.ConfigurationFile = ov.ConfigurationFile
	s.RestoreConfiguration = ov.RestoreConfiguration

	if err := s.pinIdentity(ov); err != nil {
		return nil, err
	}
	if err := s.wireTimeHeartbeatGuard(ov); err != nil {
		return nil, err
	}
	if err := s.wireErrorBehavior(ov); err != nil {
		return nil, err
	}
	if err := s.reconfigurePDOs(ov, opts); err != nil {
		return nil, err
	}
	if err := s.appendRawSDO(ov); err != nil {
		return nil, err
	}
	s.pruneDeadPDOs()
	return s, nil
}

// emit resolves (index, sub, value) against the device model the way
// Slave.concise_value does (spec §4.7) and appends the record.
func (s *Slave) emit(index uint16, sub uint8, v int64) error {
	t, err := s.lookupConciseType(index, sub)
	if err != nil {
		return err
	}
	r, err := concise.Pack(index, sub, v, t)
	if err != nil {
		return err
	}
	s.SDO = append(s.SDO, r)
	return nil
}

// lookupConciseType implements spec §4.7's target-type resolution: look up
// the sub-object's declared DataType, warning if not writable; when the
// lookup misses but sub==0 and the object has sub-entries, fall back to
// UNSIGNED8 (the "highest sub-index supported" convention).
func (s *Slave) lookupConciseType(index uint16, sub uint8) (dtype.Type, error) {
	obj, ok := s.Object(index)
	if !ok {
		return dtype.Type{}, fmt.Errorf("slaveconfig: unknown object 0x%04X", index)
	}
	if subObj, ok := obj.Sub(sub); ok {
		if !subObj.Access.Writable() {
			s.logger.Warn("slaveconfig: writing to non-writable sub-object", "index", fmt.Sprintf("0x%04X", index), "sub", sub)
		}
		t, ok := dtype.Lookup(subObj.DataType)
		if !ok {
			return dtype.Type{}, fmt.Errorf("slaveconfig: unregistered data type for 0x%04X/%d", index, sub)
		}
		return t, nil
	}
	if sub == 0 && obj.SubCount() > 0 {
		return dtype.MustLookup(dtype.UNSIGNED8), nil
	}
	return dtype.Type{}, fmt.Errorf("slaveconfig: unknown sub-object 0x%04X/%d", index, sub)
}

// pinIdentity implements spec §4.8 step 1.
func (s *Slave) pinIdentity(ov overlay.Slave) error {
	if ov.RevisionNumber != 0 {
		if s.RevisionNumber != 0 && s.RevisionNumber != ov.RevisionNumber {
			s.logger.Warn("slaveconfig: revision_number overlay mismatch with DCF", "dcf", s.RevisionNumber, "overlay", ov.RevisionNumber)
		}
		s.RevisionNumber = ov.RevisionNumber
	}
	if ov.SerialNumber != 0 {
		if s.SerialNumber != 0 && s.SerialNumber != ov.SerialNumber {
			s.logger.Warn("slaveconfig: serial_number overlay mismatch with DCF", "dcf", s.SerialNumber, "overlay", ov.SerialNumber)
		}
		s.SerialNumber = ov.SerialNumber
	}
	return nil
}

// wireTimeHeartbeatGuard implements spec §4.8 step 2.
func (s *Slave) wireTimeHeartbeatGuard(ov overlay.Slave) error {
	if s.GuardTime != 0 && s.HeartbeatProducer != 0 && s.LifeTimeFactor != 0 {
		s.logger.Warn("slaveconfig: guard_time and heartbeat_producer both non-zero with non-zero life_time_factor; clearing guard_time")
		s.GuardTime = 0
	}

	if ov.TimeCobID != nil && s.hasObject(0x1012) {
		if cur, ok := s.currentU32(0x1012, 0); !ok || cur != *ov.TimeCobID {
			if err := s.emit(0x1012, 0, int64(*ov.TimeCobID)); err != nil {
				return err
			}
		}
	}
	if s.hasObject(0x1017) {
		if cur, ok := s.currentU32(0x1017, 0); !ok || cur != s.HeartbeatProducer {
			if s.HeartbeatProducer != 0 || ok {
				if err := s.emit(0x1017, 0, int64(s.HeartbeatProducer)); err != nil {
					return err
				}
			}
		}
	}
	if s.hasObject(0x100C) {
		if cur, ok := s.currentU16(0x100C, 0); !ok || uint16(cur) != s.GuardTime {
			if err := s.emit(0x100C, 0, int64(s.GuardTime)); err != nil {
				return err
			}
		}
	}
	if s.hasObject(0x100D) {
		if cur, ok := s.currentU8(0x100D, 0); !ok || cur != s.LifeTimeFactor {
			if err := s.emit(0x100D, 0, int64(s.LifeTimeFactor)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Slave) hasObject(index uint16) bool {
	_, ok := s.Object(index)
	return ok
}

// wireErrorBehavior implements spec §4.8 step 3.
func (s *Slave) wireErrorBehavior(ov overlay.Slave) error {
	subs := make([]int, 0, len(ov.ErrorBehavior))
	for sub := range ov.ErrorBehavior {
		subs = append(subs, int(sub))
	}
	sort.Ints(subs)
	for _, sub := range subs {
		if err := s.emit(0x1029, uint8(sub), int64(ov.ErrorBehavior[uint8(sub)])); err != nil {
			return err
		}
		s.ErrorBehavior[uint8(sub)] = ov.ErrorBehavior[uint8(sub)]
	}
	return nil
}

// appendRawSDO implements spec §4.8 step 7.
func (s *Slave) appendRawSDO(ov overlay.Slave) error {
	for _, raw := range ov.SDO {
		t, err := s.lookupConciseType(raw.Index, raw.SubIndex)
		if err != nil {
			return err
		}
		v, err := value.New(t, raw.Value)
		if err != nil {
			return err
		}
		r, err := concise.PackValue(raw.Index, raw.SubIndex, v, s.Env)
		if err != nil {
			return err
		}
		s.SDO = append(s.SDO, r)
	}
	return nil
}

// pruneDeadPDOs implements the post-condition stated at the end of spec
// §4.8: any PDO whose final COB-ID has bit 31 set, or whose mapping is
// empty, is dropped from rpdo/tpdo.
func (s *Slave) pruneDeadPDOs() {
	for slot, pdo := range s.RPDO {
		if pdo.IsDisabled() || len(pdo.Mapping) == 0 {
			delete(s.RPDO, slot)
		}
	}
	for slot, pdo := range s.TPDO {
		if pdo.IsDisabled() || len(pdo.Mapping) == 0 {
			delete(s.TPDO, slot)
		}
	}
}

func (s *Slave) currentU32(index uint16, sub uint8) (uint32, bool) {
	obj, ok := s.Object(index)
	if !ok {
		return 0, false
	}
	so, ok := obj.Sub(sub)
	if !ok {
		return 0, false
	}
	n, err := so.Value.Resolve(s.Env)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

func (s *Slave) currentU16(index uint16, sub uint8) (uint32, bool) {
	return s.currentU32(index, sub)
}

func (s *Slave) currentU8(index uint16, sub uint8) (uint8, bool) {
	n, ok := s.currentU32(index, sub)
	return uint8(n), ok
}
