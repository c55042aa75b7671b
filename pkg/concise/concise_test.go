package concise

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lely-tools/dcftools/pkg/dtype"
)

func TestPackUnsigned16Scenario(t *testing.T) {
	r, err := Pack(0x1017, 0, 500, dtype.MustLookup(dtype.UNSIGNED16))
	assert.Nil(t, err)
	assert.Equal(t, []byte{0x17, 0x10, 0x00, 0x02, 0x00, 0x00, 0x00, 0xF4, 0x01}, r.Bytes())
}

func TestPackSigned8Negative(t *testing.T) {
	r, err := Pack(0x2000, 1, -1, dtype.MustLookup(dtype.INTEGER8))
	assert.Nil(t, err)
	assert.Equal(t, []byte{0xFF}, r.Payload)
}

func TestPackFloat32(t *testing.T) {
	r, err := PackFloat(0x2100, 0, 1.0, dtype.MustLookup(dtype.REAL32))
	assert.Nil(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3F}, r.Payload)
}

func TestPackRejectsFloatType(t *testing.T) {
	_, err := Pack(0x2100, 0, 0, dtype.MustLookup(dtype.REAL32))
	assert.NotNil(t, err)
}

func TestEncodeFileFraming(t *testing.T) {
	r, _ := Pack(0x1017, 0, 500, dtype.MustLookup(dtype.UNSIGNED16))
	out := EncodeFile([]Record{r})
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, out[:4])
	assert.Equal(t, r.Bytes(), out[4:])
}

func TestDescribeRecord(t *testing.T) {
	r, _ := Pack(0x1017, 0, 500, dtype.MustLookup(dtype.UNSIGNED16))
	s := DescribeRecord(r)
	assert.Equal(t, "writing 2 bytes to 0x1017/0: F4 01", s)
}
