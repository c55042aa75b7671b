// Package overlay decodes the YAML master/slave configuration document fed
// to the slave and master configurators (spec §6 "YAML overlay (input to
// C8/C9)"). It is pure data: no validation beyond YAML shape, no SDO
// emission — that is pkg/slaveconfig/pkg/masterconfig's job.
//
// Grounded on lely-core's dcfgen/cli.py (the field set this struct tree
// mirrors) and on gopkg.in/yaml.v3's decode-target-struct idiom, already an
// indirect dependency of github.com/samsamfire/gocanopen promoted here to
// direct since pkg/slaveconfig/pkg/masterconfig consume it without going
// through gopkg.in/ini.v1.
package overlay

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the top-level YAML overlay: "options", "master", and one key
// per slave (keys beginning with "." are ignored).
type Document struct {
	Options Options
	Master  Master
	Slaves  map[string]Slave // ordered by SlaveOrder
	// SlaveOrder preserves the YAML top-level key order for slaves, since
	// spec §5 states configurator emission order equals YAML key order.
	SlaveOrder []string
}

// Options carries the pool/default knobs §6 calls out.
type Options struct {
	CobID               uint16  `yaml:"cob_id"`
	DCFPath             string  `yaml:"dcf_path"`
	HeartbeatMultiplier float64 `yaml:"heartbeat_multiplier"`
	RetryFactor         int     `yaml:"retry_factor"`
}

// DefaultOptions returns §6's stated defaults (cob_id 0x680, heartbeat
// multiplier 3.0, retry_factor 3).
func DefaultOptions() Options {
	return Options{CobID: 0x680, HeartbeatMultiplier: 3.0, RetryFactor: 3}
}

// Master mirrors spec §3's Master-mirroring note plus SPEC_FULL's
// supplemental NMT/error-behavior fields (dcfgen/cli.py:Master).
type Master struct {
	NodeID         uint8            `yaml:"node_id"`
	RevisionNumber uint32           `yaml:"revision_number"`
	SerialNumber   uint32           `yaml:"serial_number"`
	HeartbeatProducer uint32        `yaml:"heartbeat_producer"`
	// HeartbeatMultiplier overrides options.heartbeat_multiplier for the
	// master-side heartbeat-consumer time calculation (dcfgen/cli.py:
	// Master.heartbeat_multiplier); nil means "use the options default".
	HeartbeatMultiplier *float64         `yaml:"heartbeat_multiplier"`
	ErrorBehavior  map[uint8]uint8  `yaml:"error_behavior"`

	Start            bool   `yaml:"start"`
	StartNodes       bool   `yaml:"start_nodes"`
	StartAllNodes    bool   `yaml:"start_all_nodes"`
	ResetAllNodes    bool   `yaml:"reset_all_nodes"`
	StopAllNodes     bool   `yaml:"stop_all_nodes"`
	BootTime         uint32 `yaml:"boot_time"`
	NMTInhibitTime   uint16 `yaml:"nmt_inhibit_time"`
	EMCYInhibitTime  uint16 `yaml:"emcy_inhibit_time"`
	SyncPeriod       uint32 `yaml:"sync_period"`
	SyncWindow       uint32 `yaml:"sync_window"`
	SyncOverflow     uint8  `yaml:"sync_overflow"`
}

// DefaultMaster returns a Master with §3's default error-behavior entry
// {1: 0x00} (dcfgen/cli.py:Master.__init__); Parse starts every Master
// from this value rather than having each caller set it by hand.
func DefaultMaster() Master {
	return Master{ErrorBehavior: map[uint8]uint8{1: 0x00}}
}

// PDOOverlay is one rpdo/tpdo slot entry under a Slave. CobID is a raw YAML
// scalar string so it can carry either a numeric literal or the literal
// "auto" (spec §4.8 step 5, C8's COB-ID auto-assign); pkg/slaveconfig
// resolves it.
type PDOOverlay struct {
	CobID         *string          `yaml:"cob_id"`
	Transmission  *uint8           `yaml:"transmission"`
	InhibitTime   *uint16          `yaml:"inhibit_time"`
	EventTimer    *uint16          `yaml:"event_timer"`
	EventDeadline *uint16          `yaml:"event_deadline"`
	SyncStart     *uint8           `yaml:"sync_start"`
	Mapping       []MappingOverlay `yaml:"mapping"`
	Enabled       *bool            `yaml:"enabled"`
}

// MappingOverlay is one {index, sub_index} mapping-slot entry.
type MappingOverlay struct {
	Index    uint16 `yaml:"index"`
	SubIndex uint8  `yaml:"sub_index"`
}

// SDOOverlay is one raw {index, sub_index, value} verbatim SDO entry.
type SDOOverlay struct {
	Index    uint16 `yaml:"index"`
	SubIndex uint8  `yaml:"sub_index"`
	Value    string `yaml:"value"`
}

// Slave mirrors the full field list in spec §6's "Recognized slave fields".
type Slave struct {
	DCF            string `yaml:"dcf"`
	NodeID         uint8  `yaml:"node_id"`
	RevisionNumber uint32 `yaml:"revision_number"`
	SerialNumber   uint32 `yaml:"serial_number"`

	TimeCobID           *uint32 `yaml:"time_cob_id"`
	HeartbeatMultiplier *float64 `yaml:"heartbeat_multiplier"`
	HeartbeatConsumer   bool    `yaml:"heartbeat_consumer"`
	HeartbeatProducer   uint32  `yaml:"heartbeat_producer"`
	GuardTime           uint16  `yaml:"guard_time"`
	LifeTimeFactor      uint8   `yaml:"life_time_factor"`

	ErrorBehavior map[uint8]uint8 `yaml:"error_behavior"`

	RPDO map[int]PDOOverlay `yaml:"rpdo"`
	TPDO map[int]PDOOverlay `yaml:"tpdo"`

	Boot                 bool   `yaml:"boot"`
	Mandatory            bool   `yaml:"mandatory"`
	ResetCommunication   bool   `yaml:"reset_communication"`
	SoftwareFile         string `yaml:"software_file"`
	SoftwareVersion      uint32 `yaml:"software_version"`
	RestoreConfiguration bool   `yaml:"restore_configuration"`
	ConfigurationFile    string `yaml:"configuration_file"`

	SDO []SDOOverlay `yaml:"sdo"`
}

// Parse decodes a YAML overlay document. Slave keys beginning with "." are
// ignored (spec §6), and SlaveOrder records the surviving keys' original
// top-level order.
func Parse(data []byte) (*Document, error) {
	var raw yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}
	if len(raw.Content) == 0 {
		return &Document{Options: DefaultOptions(), Master: DefaultMaster(), Slaves: map[string]Slave{}}, nil
	}
	root := raw.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("overlay: top-level document must be a mapping")
	}

	doc := &Document{
		Options: DefaultOptions(),
		Master:  DefaultMaster(),
		Slaves:  map[string]Slave{},
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode := root.Content[i]
		valNode := root.Content[i+1]
		key := keyNode.Value
		switch key {
		case "options":
			if err := valNode.Decode(&doc.Options); err != nil {
				return nil, fmt.Errorf("overlay: options: %w", err)
			}
		case "master":
			m := DefaultMaster()
			if err := valNode.Decode(&m); err != nil {
				return nil, fmt.Errorf("overlay: master: %w", err)
			}
			doc.Master = m
		default:
			if strings.HasPrefix(key, ".") {
				continue
			}
			var s Slave
			if err := valNode.Decode(&s); err != nil {
				return nil, fmt.Errorf("overlay: slave %q: %w", key, err)
			}
			doc.Slaves[key] = s
			doc.SlaveOrder = append(doc.SlaveOrder, key)
		}
	}
	return doc, nil
}
