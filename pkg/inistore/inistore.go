// Package inistore implements the case-insensitive, order-preserving INI
// store that backs every EDS/DCF document (spec §4.1, C1): section/key
// lookup is case-insensitive but the first-seen casing is preserved for
// display, values are kept verbatim, and section iteration order matches
// insertion order (required by the CompactPDO expansion pass and by PDO
// auto-creation).
//
// Grounded on github.com/samsamfire/gocanopen's pkg/od/parser.go, which
// shows both a hand-rolled bufio.Scanner INI reader (ParseV2) and a
// gopkg.in/ini.v1-based one (Parse); this package takes the hand-rolled
// approach because gopkg.in/ini.v1's own case-insensitive mode
// (ini.LoadSources with Insensitive) lowercases keys destructively, which
// loses the original casing the spec requires us to preserve for reporting.
// gopkg.in/ini.v1 is instead used downstream as pkg/inistore's re-export
// vehicle for EDS export (WriteTo), matching pkg/od/export.go's
// ini.Empty()/NewSection()/NewKey() shape.
package inistore

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// Key is one "name = value" entry inside a Section, with original casing
// preserved on Name.
type Key struct {
	Name  string
	Value string
}

// Section is an ordered, case-insensitively addressed set of Keys.
type Section struct {
	Name string
	keys []*Key
	idx  map[string]*Key // lowercase key name -> *Key
}

// Get returns the raw value for key (case-insensitive), or ok=false.
func (s *Section) Get(key string) (string, bool) {
	k, ok := s.idx[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	return k.Value, true
}

// GetDefault returns Get(key), or def if absent.
func (s *Section) GetDefault(key, def string) string {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Has reports whether key is present.
func (s *Section) Has(key string) bool {
	_, ok := s.idx[strings.ToLower(key)]
	return ok
}

// Set inserts or overwrites a key, preserving first-seen casing if it
// already exists, else recording name's casing as given.
func (s *Section) Set(name, val string) {
	lower := strings.ToLower(name)
	if k, ok := s.idx[lower]; ok {
		k.Value = val
		return
	}
	k := &Key{Name: name, Value: val}
	s.keys = append(s.keys, k)
	s.idx[lower] = k
}

// Keys returns the section's keys in insertion order.
func (s *Section) Keys() []*Key {
	return s.keys
}

// Store is an ordered, case-insensitively addressed set of Sections.
type Store struct {
	sections []*Section
	idx      map[string]*Section // lowercase section name -> *Section
}

// New returns an empty Store.
func New() *Store {
	return &Store{idx: map[string]*Section{}}
}

// Section returns the named section (case-insensitive), or ok=false.
func (s *Store) Section(name string) (*Section, bool) {
	sec, ok := s.idx[strings.ToLower(name)]
	return sec, ok
}

// Sections returns all sections in insertion order.
func (s *Store) Sections() []*Section {
	return s.sections
}

// EnsureSection returns the named section, creating it (appended at the
// end) if absent.
func (s *Store) EnsureSection(name string) *Section {
	if sec, ok := s.Section(name); ok {
		return sec
	}
	sec := &Section{Name: name, idx: map[string]*Key{}}
	s.sections = append(s.sections, sec)
	s.idx[strings.ToLower(name)] = sec
	return sec
}

var _ = ini.Empty // re-exported indirectly via WriteTo below

// Parse reads an EDS/DCF-dialect INI document: "[section]" headers;
// "key = value", "key : value", or bare "key"; "#"/";" introduce inline
// comments (outside of a value they began); keys are case-insensitive with
// first-seen casing preserved; a duplicate key within a section is an
// error.
func Parse(r io.Reader) (*Store, error) {
	store := New()
	var cur *Section
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Text()
		text := stripComment(raw)
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "[") {
			end := strings.Index(text, "]")
			if end < 0 {
				return nil, fmt.Errorf("inistore: line %d: unterminated section header: %q", line, raw)
			}
			name := strings.TrimSpace(text[1:end])
			cur = store.EnsureSection(name)
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("inistore: line %d: key outside of any section: %q", line, raw)
		}
		name, val := splitKeyValue(text)
		lower := strings.ToLower(name)
		if _, dup := cur.idx[lower]; dup {
			return nil, fmt.Errorf("inistore: line %d: duplicate key %q in section [%s]", line, name, cur.Name)
		}
		k := &Key{Name: name, Value: val}
		cur.keys = append(cur.keys, k)
		cur.idx[lower] = k
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("inistore: %w", err)
	}
	return store, nil
}

func stripComment(line string) string {
	for i, c := range line {
		if c == '#' || c == ';' {
			return line[:i]
		}
	}
	return line
}

func splitKeyValue(text string) (name, val string) {
	i := strings.IndexAny(text, "=:")
	if i < 0 {
		return strings.TrimSpace(text), ""
	}
	return strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+1:])
}

// WriteTo serializes the store back to canonical INI text, section order
// preserved, mirroring github.com/samsamfire/gocanopen's
// od.ExportEDS default-values path (odict.iniFile.SaveTo). Used by
// dcfchk's -x normalized-EDS dump.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	f := ini.Empty()
	for _, sec := range s.sections {
		section, err := f.NewSection(sec.Name)
		if err != nil {
			return 0, err
		}
		for _, k := range sec.keys {
			if _, err := section.NewKey(k.Name, k.Value); err != nil {
				return 0, err
			}
		}
	}
	return f.WriteTo(w)
}

// --- CompactPDO expansion (spec §4.1 second paragraph) ---

// commField describes one of the sub1..sub6 communication-parameter entries
// CompactPDO can synthesize; compactCommFields lists them in bit order
// (bit 0x01 == sub1).
type commField struct {
	sub      int
	name     string
	dataType string // hex DataType value, as written into the synthesized section
}

var compactCommFields = []commField{
	{1, "COB-ID used by PDO", "0x7"},           // UNSIGNED32
	{2, "transmission type", "0x5"},            // UNSIGNED8
	{3, "inhibit time", "0x6"},                 // UNSIGNED16
	{4, "compatibility entry", "0x5"},           // UNSIGNED8
	{5, "event timer", "0x6"},                  // UNSIGNED16
	{6, "SYNC start value", "0x5"},              // UNSIGNED8
}

// ExpandCompactPDO runs the CompactPDO pass in place. It is idempotent:
// running it twice is a no-op the second time, since synthesized sections
// are only created when absent (spec §8 "CompactPDO idempotence").
func ExpandCompactPDO(store *Store) error {
	devInfo, ok := store.Section("DeviceInfo")
	if !ok {
		return nil
	}
	maskStr, ok := devInfo.Get("CompactPDO")
	if !ok {
		return nil
	}
	mask, err := strconv.ParseUint(maskStr, 0, 8)
	if err != nil {
		return fmt.Errorf("inistore: invalid CompactPDO mask %q: %w", maskStr, err)
	}
	if mask == 0 {
		return nil
	}
	nrRx := parseCountDefault(devInfo, "NrOfRxPDO", 0)
	nrTx := parseCountDefault(devInfo, "NrOfTxPDO", 0)

	for i := 0; i < nrRx; i++ {
		if err := expandOnePDO(store, uint32(mask), i, 0x1400, 0x1600, "RPDO", true); err != nil {
			return err
		}
	}
	for i := 0; i < nrTx; i++ {
		if err := expandOnePDO(store, uint32(mask), i, 0x1800, 0x1A00, "TPDO", false); err != nil {
			return err
		}
	}
	return nil
}

func parseCountDefault(sec *Section, key string, def int) int {
	v, ok := sec.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 0, 16)
	if err != nil {
		return def
	}
	return int(n)
}

func expandOnePDO(store *Store, mask uint32, slot int, commBase, mapBase uint32, kind string, isRPDO bool) error {
	commIndex := commBase + uint32(slot)
	commName := fmt.Sprintf("%04X", commIndex)
	if _, exists := store.Section(commName); exists {
		return nil
	}

	var synthesized []commField
	for _, f := range compactCommFields {
		if mask&(1<<(uint(f.sub)-1)) != 0 {
			synthesized = append(synthesized, f)
		}
	}

	sec := store.EnsureSection(commName)
	parmName := "RPDO communication parameter"
	if !isRPDO {
		parmName = "TPDO communication parameter"
	}
	sec.Set("ParameterName", parmName)
	sec.Set("ObjectType", "0x09")
	sec.Set("SubNumber", fmt.Sprintf("0x%X", len(synthesized)))

	defaultCOB := defaultCompactCOBID(slot, isRPDO)
	for _, f := range synthesized {
		subName := fmt.Sprintf("%ssub%d", commName, f.sub)
		subSec := store.EnsureSection(subName)
		subSec.Set("ParameterName", f.name)
		subSec.Set("ObjectType", "0x7")
		subSec.Set("DataType", f.dataType)
		subSec.Set("AccessType", "rw")
		if f.sub == 1 {
			subSec.Set("DefaultValue", defaultCOB)
		} else {
			subSec.Set("DefaultValue", "0")
		}
	}

	mapIndex := mapBase + uint32(slot)
	mapName := fmt.Sprintf("%04X", mapIndex)
	if _, exists := store.Section(mapName); !exists {
		mapSec := store.EnsureSection(mapName)
		mapSec.Set("ParameterName", kind+" mapping parameter")
		mapSec.Set("ObjectType", "0x09")
		mapSec.Set("CompactSubObj", "0x40")
	}

	opt := store.EnsureSection("OptionalObjects")
	count := parseCountDefault(opt, "SupportedObjects", 0)
	opt.Set("SupportedObjects", strconv.Itoa(count+1))
	opt.Set(fmt.Sprintf("%d", count+1), fmt.Sprintf("0x%X", commIndex))

	return nil
}

// defaultCompactCOBID computes the default COB-ID literal for a CompactPDO
// synthesized communication section: $NODEID-relative for the first four
// slots of each kind, else disabled (bit 31 set), per spec §4.1.
func defaultCompactCOBID(slot int, isRPDO bool) string {
	if slot >= 4 {
		return "0x80000000"
	}
	var offset int
	if isRPDO {
		offset = (slot+1)*0x100 + 0x100
	} else {
		offset = (slot+1)*0x100 + 0x80
	}
	return fmt.Sprintf("$NODEID+0x%X", offset)
}

// sortedSectionNames is a small helper kept for debugging: returns
// section names sorted case-insensitively, independent of insertion order.
func sortedSectionNames(store *Store) []string {
	names := make([]string, 0, len(store.sections))
	for _, s := range store.sections {
		names = append(names, s.Name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}
