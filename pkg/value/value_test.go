package value

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lely-tools/dcftools/pkg/dtype"
)

func TestNewPlainInteger(t *testing.T) {
	v, err := New(dtype.MustLookup(dtype.UNSIGNED8), "0x20")
	assert.Nil(t, err)
	assert.False(t, v.HasNodeID())
	n, err := v.Resolve(nil)
	assert.Nil(t, err)
	assert.EqualValues(t, 0x20, n)
}

func TestNewNodeIDOffset(t *testing.T) {
	v, err := New(dtype.MustLookup(dtype.UNSIGNED32), "$NODEID+0x600")
	assert.Nil(t, err)
	assert.True(t, v.HasNodeID())
	n, err := v.Resolve(Env{"NODEID": 5})
	assert.Nil(t, err)
	assert.EqualValues(t, 0x605, n)
}

func TestNewBareNodeID(t *testing.T) {
	v, err := New(dtype.MustLookup(dtype.UNSIGNED8), "$NODEID")
	assert.Nil(t, err)
	assert.True(t, v.HasNodeID())
	n, err := v.Resolve(Env{"NODEID": 9})
	assert.Nil(t, err)
	assert.EqualValues(t, 9, n)
}

func TestResolveMissingNodeID(t *testing.T) {
	v, err := New(dtype.MustLookup(dtype.UNSIGNED8), "$NODEID+1")
	assert.Nil(t, err)
	_, err = v.Resolve(Env{})
	assert.NotNil(t, err)
}

func TestNewInvalidLiteral(t *testing.T) {
	_, err := New(dtype.MustLookup(dtype.UNSIGNED8), "not-a-number")
	assert.NotNil(t, err)
}

func TestResolveFloat32(t *testing.T) {
	v, err := New(dtype.MustLookup(dtype.REAL32), "0x3F800000")
	assert.Nil(t, err)
	f, err := v.ResolveFloat(nil)
	assert.Nil(t, err)
	assert.EqualValues(t, 1.0, f)
}

func TestParseVisibleStringEscapes(t *testing.T) {
	s, err := ParseVisibleString(`"hello\tworld\x21"`)
	assert.Nil(t, err)
	assert.Equal(t, "hello\tworld!", s)
}

func TestParseVisibleStringEmpty(t *testing.T) {
	s, err := ParseVisibleString("")
	assert.Nil(t, err)
	assert.Equal(t, "", s)
}

func TestParseVisibleStringUnquoted(t *testing.T) {
	_, err := ParseVisibleString("hello")
	assert.NotNil(t, err)
}

func TestParseOctetString(t *testing.T) {
	b, err := ParseOctetString("01 02 ab")
	assert.Nil(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0xab}, b)
}

func TestParseOctetStringOddDigits(t *testing.T) {
	_, err := ParseOctetString("123")
	assert.NotNil(t, err)
}

func TestParseTime(t *testing.T) {
	tv, err := ParseTime("5 120")
	assert.Nil(t, err)
	assert.EqualValues(t, 5, tv.Days)
	assert.EqualValues(t, 120, tv.Ms)
}

func TestParseTimeEmpty(t *testing.T) {
	tv, err := ParseTime("")
	assert.Nil(t, err)
	assert.EqualValues(t, 0, tv.Days)
	assert.EqualValues(t, 0, tv.Ms)
}
