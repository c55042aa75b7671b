// Package masterconfig implements the master configurator (spec §4.9, C9):
// aggregates already-built slaves and composes the master-level SDO script,
// plus the heartbeat-consumer wiring that mutates each consenting slave's own
// script in place.
//
// Grounded on lely-core's dcfgen/cli.py:Master (the four numbered emissions
// below reproduce its write order) and on pkg/slaveconfig's emit/Build idiom
// for the Go-side shape.
package masterconfig

import (
	"log/slog"

	"github.com/lely-tools/dcftools/pkg/concise"
	"github.com/lely-tools/dcftools/pkg/dtype"
	"github.com/lely-tools/dcftools/pkg/overlay"
	"github.com/lely-tools/dcftools/pkg/slaveconfig"
)

// Master is the built master configuration: the overlay fields plus the
// accumulated master-level SDO script.
type Master struct {
	overlay.Master

	// HeartbeatMultiplier is the resolved (options-default-or-overridden)
	// multiplier used for the master's own heartbeat-consumer time
	// calculation, distinct from any individual slave's own multiplier.
	HeartbeatMultiplier float64

	SDO []concise.Record

	logger *slog.Logger
}

var u32 = dtype.MustLookup(dtype.UNSIGNED32)

// Build runs spec §4.9's emissions against an ordered set of already-built
// slaves, mutating each slave's own SDO list for the heartbeat-consumer
// wiring (spec §4.9's "slave's 0x1016" instruction) and accumulating the
// master-addressed writes (0x1018/4, 0x1F55, 0x1F87, 0x1F88) on the
// returned Master.
func Build(ov overlay.Master, opts overlay.Options, slaves map[string]*slaveconfig.Slave, order []string, logger *slog.Logger) (*Master, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Master{Master: ov, logger: logger, HeartbeatMultiplier: opts.HeartbeatMultiplier}
	if ov.HeartbeatMultiplier != nil {
		m.HeartbeatMultiplier = *ov.HeartbeatMultiplier
	}

	if ov.SerialNumber != 0 {
		r, err := concise.Pack(0x1018, 4, int64(ov.SerialNumber), u32)
		if err != nil {
			return nil, err
		}
		m.SDO = append(m.SDO, r)
	}

	for _, name := range order {
		slave, ok := slaves[name]
		if !ok {
			continue
		}
		if err := m.wireHeartbeatConsumer(slave); err != nil {
			return nil, err
		}
		if slave.SoftwareVersion != 0 {
			r, err := concise.Pack(0x1F55, slave.NodeID, int64(slave.SoftwareVersion), u32)
			if err != nil {
				return nil, err
			}
			m.SDO = append(m.SDO, r)
		}
		if obj, ok := slave.Object(0x1018); ok {
			if _, hasRev := obj.Sub(3); hasRev && slave.RevisionNumber != 0 {
				r, err := concise.Pack(0x1F87, slave.NodeID, int64(slave.RevisionNumber), u32)
				if err != nil {
					return nil, err
				}
				m.SDO = append(m.SDO, r)
			}
			if _, hasSerial := obj.Sub(4); hasSerial && slave.SerialNumber != 0 {
				r, err := concise.Pack(0x1F88, slave.NodeID, int64(slave.SerialNumber), u32)
				if err != nil {
					return nil, err
				}
				m.SDO = append(m.SDO, r)
			}
		}
	}

	return m, nil
}

// wireHeartbeatConsumer implements spec §4.9's heartbeat-consumer slot
// reuse/allocation/disable rule against the slave's own 0x1016 (Consumer
// Heartbeat Time) object.
func (m *Master) wireHeartbeatConsumer(slave *slaveconfig.Slave) error {
	if m.HeartbeatProducer == 0 {
		return nil
	}
	obj, ok := slave.Object(0x1016)
	if !ok {
		if slave.HeartbeatConsumer {
			m.logger.Warn("masterconfig: slave wants heartbeat consumption but has no 0x1016", "slave", slave.Name)
		}
		return nil
	}

	if !slave.HeartbeatConsumer {
		for _, sub := range obj.SubObjects() {
			if sub.SubIndex == 0 {
				continue
			}
			n, err := sub.Value.Resolve(slave.Env)
			if err != nil {
				continue
			}
			nodeID := uint8((n >> 16) & 0xFF)
			if nodeID != m.NodeID {
				continue
			}
			r, err := concise.Pack(0x1016, sub.SubIndex, int64(uint32(nodeID)<<16), u32)
			if err != nil {
				return err
			}
			slave.SDO = append([]concise.Record{r}, slave.SDO...)
		}
		return nil
	}

	var targetSub uint8
	found := false
	var firstUnused uint8
	unusedFound := false
	for _, sub := range obj.SubObjects() {
		if sub.SubIndex == 0 {
			continue
		}
		n, err := sub.Value.Resolve(slave.Env)
		if err != nil {
			continue
		}
		nodeID := uint8((n >> 16) & 0xFF)
		timeMs := uint16(n & 0xFFFF)
		if nodeID == m.NodeID {
			targetSub = sub.SubIndex
			found = true
			break
		}
		if !unusedFound && (timeMs == 0 || nodeID == 0 || nodeID > 127) {
			firstUnused = sub.SubIndex
			unusedFound = true
		}
	}
	if !found && unusedFound {
		targetSub = firstUnused
		found = true
	}
	if !found {
		m.logger.Warn("masterconfig: no free 0x1016 slot for heartbeat consumer wiring", "slave", slave.Name)
		return nil
	}

	timeMs := uint32(float64(m.HeartbeatProducer) * m.HeartbeatMultiplier)
	val := uint32(m.NodeID)<<16 | (timeMs & 0xFFFF)
	r, err := concise.Pack(0x1016, targetSub, int64(val), u32)
	if err != nil {
		return err
	}
	slave.SDO = append([]concise.Record{r}, slave.SDO...)
	return nil
}
