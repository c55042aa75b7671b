package inistore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleEDS = `[FileInfo]
FileName=sample.eds
FileVersion=1

; a comment line
[DeviceInfo]
VendorNumber=0x12345678
CompactPDO=0

[1000]
ParameterName=Device type
ObjectType=0x7
DataType=0x0007
AccessType=ro
DefaultValue=0x00000000
`

func TestParseBasic(t *testing.T) {
	store, err := Parse(strings.NewReader(sampleEDS))
	assert.Nil(t, err)

	sec, ok := store.Section("fileinfo")
	assert.True(t, ok)
	v, ok := sec.Get("FILENAME")
	assert.True(t, ok)
	assert.Equal(t, "sample.eds", v)

	// original casing preserved for display
	assert.Equal(t, "FileInfo", store.Sections()[0].Name)
}

func TestParseDuplicateKeyIsError(t *testing.T) {
	doc := "[DeviceInfo]\nVendorNumber=1\nVendorNumber=2\n"
	_, err := Parse(strings.NewReader(doc))
	assert.NotNil(t, err)
}

func TestParseKeyOutsideSectionIsError(t *testing.T) {
	_, err := Parse(strings.NewReader("Foo=Bar\n"))
	assert.NotNil(t, err)
}

func TestSectionIterationOrderPreserved(t *testing.T) {
	doc := "[B]\nx=1\n[A]\nx=2\n[C]\nx=3\n"
	store, err := Parse(strings.NewReader(doc))
	assert.Nil(t, err)
	var names []string
	for _, s := range store.Sections() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"B", "A", "C"}, names)
}

func TestExpandCompactPDONoMaskIsNoop(t *testing.T) {
	store, err := Parse(strings.NewReader(sampleEDS))
	assert.Nil(t, err)
	before := len(store.Sections())
	assert.Nil(t, ExpandCompactPDO(store))
	assert.Equal(t, before, len(store.Sections()))
}

func TestExpandCompactPDOSynthesizesRPDO(t *testing.T) {
	doc := `[DeviceInfo]
CompactPDO=0x3F
NrOfRxPDO=1
NrOfTxPDO=0

[OptionalObjects]
SupportedObjects=0
`
	store, err := Parse(strings.NewReader(doc))
	assert.Nil(t, err)
	assert.Nil(t, ExpandCompactPDO(store))

	sec, ok := store.Section("1400")
	assert.True(t, ok)
	assert.Equal(t, "0x6", sec.GetDefault("SubNumber", ""))

	sub1, ok := store.Section("1400sub1")
	assert.True(t, ok)
	cob, _ := sub1.Get("DefaultValue")
	assert.Equal(t, "$NODEID+0x200", cob)

	_, ok = store.Section("1600")
	assert.True(t, ok)

	opt, ok := store.Section("OptionalObjects")
	assert.True(t, ok)
	assert.Equal(t, "1", opt.GetDefault("SupportedObjects", ""))
}

func TestExpandCompactPDOIdempotent(t *testing.T) {
	doc := `[DeviceInfo]
CompactPDO=0x3F
NrOfRxPDO=1
NrOfTxPDO=0
`
	store, err := Parse(strings.NewReader(doc))
	assert.Nil(t, err)
	assert.Nil(t, ExpandCompactPDO(store))
	first := len(store.Sections())
	assert.Nil(t, ExpandCompactPDO(store))
	assert.Equal(t, first, len(store.Sections()))
}

func TestWriteToRoundTrips(t *testing.T) {
	store, err := Parse(strings.NewReader(sampleEDS))
	assert.Nil(t, err)
	var buf strings.Builder
	_, err = store.WriteTo(&buf)
	assert.Nil(t, err)
	assert.Contains(t, buf.String(), "FileName")
}
