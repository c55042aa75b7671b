package dtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupBasicType(t *testing.T) {
	typ, ok := Lookup(UNSIGNED16)
	assert.True(t, ok)
	assert.Equal(t, "UNSIGNED16", typ.Name)
	assert.EqualValues(t, 16, typ.Bits)
	assert.True(t, typ.IsBasic())
	assert.False(t, typ.IsArray())
}

func TestLookupUnknownIndex(t *testing.T) {
	_, ok := Lookup(Index(0xBEEF))
	assert.False(t, ok)
}

func TestConciseDescriptorForBasicType(t *testing.T) {
	typ := MustLookup(INTEGER32)
	cf, ok := typ.Concise()
	assert.True(t, ok)
	assert.EqualValues(t, 32, cf.PayloadBits)
	assert.True(t, cf.Signed)
	assert.False(t, cf.Float)

	_, ok = MustLookup(VISIBLE_STRING).Concise()
	assert.False(t, ok)
}

func TestAddCustomRejectsDuplicateIndex(t *testing.T) {
	idx := Index(0x00A0)
	assert.Nil(t, AddCustom(Type{Index: idx, Name: "TIME_SCET", CFormat: "%[1]d"}))
	err := AddCustom(Type{Index: idx, Name: "TIME_SCET_AGAIN"})
	assert.NotNil(t, err)
}
