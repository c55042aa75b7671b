// Package device implements the in-memory CANopen device model (spec §4.5,
// C5): Object/SubObject construction from an INI store, identity
// cross-checks, error-behavior extraction, and PDO reconstruction (C6,
// folded into this package since PDO resolution operates directly over a
// Device's own Objects map — splitting it into a separate package would
// only introduce an import cycle for no structural benefit; see DESIGN.md).
//
// Grounded on github.com/samsamfire/gocanopen's pkg/od/entry.go and
// pkg/od/od.go (the *slog.Logger-carrying struct idiom, addEntry/Index
// accessor shape) and on lely-core's dcf/device.py (the authoritative
// construction order and identity cross-check semantics).
package device

import (
	"log/slog"
	"sort"
	"strconv"

	"github.com/lely-tools/dcftools/pkg/inistore"
	"github.com/lely-tools/dcftools/pkg/value"
)

// Device is a fully constructed, validated CANopen Object Dictionary plus
// its resolved identity and PDOs (spec §3 Device).
type Device struct {
	Store *inistore.Store
	Env   value.Env

	NodeID uint8 // 255 means unconfigured

	DeviceType     uint32
	VendorID       uint32
	ProductCode    uint32
	RevisionNumber uint32
	SerialNumber   uint32

	ErrorBehavior map[uint8]uint8

	RPDO map[int]*PDO
	TPDO map[int]*PDO

	Objects map[uint16]*Object

	logger *slog.Logger
}

// Object returns the Object at index, or ok=false.
func (d *Device) Object(index uint16) (*Object, bool) {
	o, ok := d.Objects[index]
	return o, ok
}

// Option configures New.
type Option func(*buildOpts)

type buildOpts struct {
	nodeID *uint8
	logger *slog.Logger
}

// WithNodeID overrides the NodeID that would otherwise be seeded from
// [DeviceComissioning].NodeID (spec §4.5 step 1).
func WithNodeID(nodeID uint8) Option {
	return func(o *buildOpts) { o.nodeID = &nodeID }
}

// WithLogger installs a *slog.Logger for DomainWarning diagnostics;
// defaults to slog.Default(), matching od.NewOD's logger-injection idiom.
func WithLogger(logger *slog.Logger) Option {
	return func(o *buildOpts) { o.logger = logger }
}

// New constructs a Device from a parsed INI store, following spec §4.5's
// six-step construction order.
func New(store *inistore.Store, opts ...Option) (*Device, error) {
	o := buildOpts{logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}

	dev := &Device{
		Store:         store,
		Env:           value.Env{},
		ErrorBehavior: map[uint8]uint8{},
		RPDO:          map[int]*PDO{},
		TPDO:          map[int]*PDO{},
		Objects:       map[uint16]*Object{},
		logger:        o.logger,
	}

	// Step 1: seed env + node_id.
	nodeID, err := resolveNodeID(store, o.nodeID)
	if err != nil {
		return nil, err
	}
	dev.NodeID = nodeID
	dev.Env["NODEID"] = int64(nodeID)

	// Steps 2-3: enumerate and build every object.
	for _, section := range []string{"MandatoryObjects", "OptionalObjects", "ManufacturerObjects"} {
		indices, err := enumerateIndices(store, section)
		if err != nil {
			return nil, err
		}
		for _, idx := range indices {
			if _, exists := dev.Objects[idx]; exists {
				continue
			}
			obj, err := buildObject(store, idx)
			if err != nil {
				return nil, err
			}
			dev.Objects[idx] = obj
		}
	}

	// Step 4: identity extraction + cross-check.
	if err := dev.extractIdentity(); err != nil {
		return nil, err
	}

	// Step 5: error_behavior from 0x1029.
	dev.extractErrorBehavior()

	// Step 6: PDO reconstruction.
	if err := dev.resolveAllPDOs(); err != nil {
		return nil, err
	}

	return dev, nil
}

func resolveNodeID(store *inistore.Store, override *uint8) (uint8, error) {
	if override != nil {
		if err := validateNodeID(*override); err != nil {
			return 0, err
		}
		return *override, nil
	}
	sec, ok := store.Section("DeviceComissioning")
	if !ok {
		return 255, nil
	}
	raw, ok := sec.Get("NodeID")
	if !ok {
		return 255, nil
	}
	n, err := parseU64(raw)
	if err != nil {
		return 0, newFault(FaultValue, "DeviceComissioning", "NodeID", "invalid NodeID %q: %v", raw, err)
	}
	if err := validateNodeID(uint8(n)); err != nil {
		return 0, err
	}
	return uint8(n), nil
}

func validateNodeID(id uint8) error {
	if id == 255 || (id >= 1 && id <= 127) {
		return nil
	}
	return newFault(FaultValue, "DeviceComissioning", "NodeID", "node_id %d out of range [1,127] ∪ {255}", id)
}

// enumerateIndices reads SupportedObjects (decimal) and the decimal keys
// "1".."N" from section, returning the referenced hex object indices in
// enumeration order (spec §4.5 step 2).
func enumerateIndices(store *inistore.Store, sectionName string) ([]uint16, error) {
	sec, ok := store.Section(sectionName)
	if !ok {
		return nil, nil
	}
	countRaw, ok := sec.Get("SupportedObjects")
	if !ok {
		return nil, nil
	}
	count, err := strconv.Atoi(countRaw)
	if err != nil {
		return nil, newFault(FaultValue, sectionName, "SupportedObjects", "invalid count %q: %v", countRaw, err)
	}
	out := make([]uint16, 0, count)
	for i := 1; i <= count; i++ {
		raw, ok := sec.Get(strconv.Itoa(i))
		if !ok {
			return nil, newFault(FaultKey, sectionName, strconv.Itoa(i), "missing enumerated entry")
		}
		n, err := parseU64(raw)
		if err != nil {
			return nil, newFault(FaultValue, sectionName, strconv.Itoa(i), "invalid index %q: %v", raw, err)
		}
		out = append(out, uint16(n))
	}
	return out, nil
}

// extractIdentity implements spec §4.5 step 4: device_type from 0x1000,
// vendor/product/revision/serial from 0x1018, cross-checked against
// [DeviceInfo] and [DeviceComissioning].LSS_SerialNumber, preferring the
// section value on mismatch (spec §4.5's Device note, §7's "explicit
// identity-precedence rule").
func (d *Device) extractIdentity() error {
	if obj, ok := d.Object(0x1000); ok {
		if sub, ok := obj.Sub(0); ok {
			n, err := sub.Value.Resolve(d.Env)
			if err != nil {
				return newFault(FaultValue, "1000", "", "%v", err)
			}
			d.DeviceType = uint32(n)
		}
	}

	identity, ok := d.Object(0x1018)
	if ok {
		if v, ok := identitySubU32(identity, 1, d.Env); ok {
			d.VendorID = v
		}
		if v, ok := identitySubU32(identity, 2, d.Env); ok {
			d.ProductCode = v
		}
		if v, ok := identitySubU32(identity, 3, d.Env); ok {
			d.RevisionNumber = v
		}
		if v, ok := identitySubU32(identity, 4, d.Env); ok {
			d.SerialNumber = v
		}
	}

	devInfo, _ := d.Store.Section("DeviceInfo")
	comm, _ := d.Store.Section("DeviceComissioning")

	d.crossCheck(devInfo, "VendorNumber", &d.VendorID, "0x1018/1")
	d.crossCheck(devInfo, "ProductNumber", &d.ProductCode, "0x1018/2")
	d.crossCheck(devInfo, "RevisionNumber", &d.RevisionNumber, "0x1018/3")
	if comm != nil {
		d.crossCheck(comm, "LSS_SerialNumber", &d.SerialNumber, "0x1018/4")
	}
	return nil
}

func identitySubU32(obj *Object, subIndex uint8, env value.Env) (uint32, bool) {
	sub, ok := obj.Sub(subIndex)
	if !ok {
		return 0, false
	}
	n, err := sub.Value.Resolve(env)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// crossCheck implements the identity cross-check and precedence rule: if
// section has key and the Identity-object field is non-zero, they must
// agree; on mismatch, warn and prefer the section value.
func (d *Device) crossCheck(sec *inistore.Section, key string, field *uint32, sourceLabel string) {
	if sec == nil {
		return
	}
	raw, ok := sec.Get(key)
	if !ok {
		return
	}
	n, err := parseU64(raw)
	if err != nil {
		d.logger.Warn("device: invalid identity cross-check value", "section", sec.Name, "key", key, "error", err)
		return
	}
	sectionValue := uint32(n)
	if *field != 0 && sectionValue != *field {
		d.logger.Warn("device: identity mismatch", "section", sec.Name, "key", key, "section_value", sectionValue, "object_value", *field, "object", sourceLabel)
	}
	*field = sectionValue
}

// extractErrorBehavior implements spec §4.5 step 5.
func (d *Device) extractErrorBehavior() {
	obj, ok := d.Object(0x1029)
	if !ok {
		return
	}
	for _, sub := range obj.SubObjects() {
		if sub.SubIndex == 0 {
			continue
		}
		n, err := sub.Value.Resolve(d.Env)
		if err != nil {
			d.logger.Warn("device: invalid error_behavior entry", "sub", sub.SubIndex, "error", err)
			continue
		}
		d.ErrorBehavior[sub.SubIndex] = uint8(n)
	}
}

// resolveAllPDOs implements spec §4.5 step 6 / §4.6 (C6).
func (d *Device) resolveAllPDOs() error {
	for i := 0; i <= 511; i++ {
		commIndex := 0x1400 + i
		if _, ok := d.Object(uint16(commIndex)); ok {
			pdo, err := resolvePDO(d, uint16(commIndex), false)
			if err != nil {
				return err
			}
			if pdo != nil {
				d.RPDO[i+1] = pdo
			}
		}
	}
	for i := 0; i <= 511; i++ {
		commIndex := 0x1800 + i
		if commIndex > 0xFFFF {
			break
		}
		if _, ok := d.Object(uint16(commIndex)); ok {
			pdo, err := resolvePDO(d, uint16(commIndex), true)
			if err != nil {
				return err
			}
			if pdo != nil {
				d.TPDO[i+1] = pdo
			}
		}
	}
	return nil
}

// SortedObjectIndices returns every populated Object index in ascending
// order, used by pkg/cdevice for deterministic emission order.
func (d *Device) SortedObjectIndices() []uint16 {
	out := make([]uint16, 0, len(d.Objects))
	for idx := range d.Objects {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
