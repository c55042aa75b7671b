package device

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lely-tools/dcftools/pkg/inistore"
)

const testDCF = `[DeviceComissioning]
NodeID=0x20

[MandatoryObjects]
SupportedObjects=2
1=0x1000
2=0x1018

[OptionalObjects]
SupportedObjects=4
1=0x1029
2=0x1800
3=0x1A00
4=0x6000

[1000]
ParameterName=Device type
ObjectType=0x7
DataType=0x0007
AccessType=ro
DefaultValue=0x00000000

[1018]
ParameterName=Identity
ObjectType=0x9
SubNumber=0x5

[1018sub0]
ParameterName=highest sub-index supported
ObjectType=0x7
DataType=0x0005
AccessType=const
DefaultValue=4

[1018sub1]
ParameterName=Vendor-ID
ObjectType=0x7
DataType=0x0007
AccessType=ro
DefaultValue=0x11

[1018sub2]
ParameterName=Product code
ObjectType=0x7
DataType=0x0007
AccessType=ro
DefaultValue=42

[1018sub3]
ParameterName=Revision number
ObjectType=0x7
DataType=0x0007
AccessType=ro
DefaultValue=0

[1018sub4]
ParameterName=Serial number
ObjectType=0x7
DataType=0x0007
AccessType=ro
DefaultValue=0

[1029]
ParameterName=Error behavior
ObjectType=0x8
SubNumber=0x2

[1029sub0]
ParameterName=highest sub-index supported
ObjectType=0x7
DataType=0x0005
AccessType=const
DefaultValue=1

[1029sub1]
ParameterName=communication error
ObjectType=0x7
DataType=0x0005
AccessType=rw
DefaultValue=0

[1800]
ParameterName=TPDO1 communication parameter
ObjectType=0x9
SubNumber=0x6

[1800sub0]
ParameterName=highest sub-index supported
ObjectType=0x7
DataType=0x0005
AccessType=const
DefaultValue=6

[1800sub1]
ParameterName=COB-ID
ObjectType=0x7
DataType=0x0007
AccessType=rw
DefaultValue=0x40000180

[1800sub2]
ParameterName=transmission type
ObjectType=0x7
DataType=0x0005
AccessType=rw
DefaultValue=1

[1800sub3]
ParameterName=inhibit time
ObjectType=0x7
DataType=0x0006
AccessType=rw
DefaultValue=0

[1800sub5]
ParameterName=event timer
ObjectType=0x7
DataType=0x0006
AccessType=rw
DefaultValue=100

[1800sub6]
ParameterName=SYNC start value
ObjectType=0x7
DataType=0x0005
AccessType=rw
DefaultValue=0

[1A00]
ParameterName=TPDO1 mapping parameter
ObjectType=0x9
SubNumber=0x2

[1A00sub0]
ParameterName=number of mapped objects
ObjectType=0x7
DataType=0x0005
AccessType=rw
DefaultValue=1

[1A00sub1]
ParameterName=mapping entry 1
ObjectType=0x7
DataType=0x0007
AccessType=rw
DefaultValue=0x60000108

[6000]
ParameterName=Sample record
ObjectType=0x9
SubNumber=0x2

[6000sub0]
ParameterName=highest sub-index supported
ObjectType=0x7
DataType=0x0005
AccessType=const
DefaultValue=1

[6000sub1]
ParameterName=value
ObjectType=0x7
DataType=0x0005
AccessType=rwr
DefaultValue=5
`

func parseTestDevice(t *testing.T, doc string) *Device {
	t.Helper()
	store, err := inistore.Parse(strings.NewReader(doc))
	assert.Nil(t, err)
	dev, err := New(store)
	assert.Nil(t, err)
	return dev
}

func TestNewDeviceIdentity(t *testing.T) {
	dev := parseTestDevice(t, testDCF)
	assert.EqualValues(t, 0x20, dev.NodeID)
	assert.EqualValues(t, 0x11, dev.VendorID)
	assert.EqualValues(t, 42, dev.ProductCode)
}

func TestDeviceIdentityCrossCheckPrefersSectionValue(t *testing.T) {
	doc := testDCF + "\n[DeviceInfo]\nProductNumber=43\n"
	dev := parseTestDevice(t, doc)
	assert.EqualValues(t, 43, dev.ProductCode)
}

func TestDeviceErrorBehavior(t *testing.T) {
	dev := parseTestDevice(t, testDCF)
	assert.Contains(t, dev.ErrorBehavior, uint8(1))
	assert.EqualValues(t, 0, dev.ErrorBehavior[1])
}

func TestPDOReconstruction(t *testing.T) {
	dev := parseTestDevice(t, testDCF)
	tpdo, ok := dev.TPDO[1]
	assert.True(t, ok)
	assert.EqualValues(t, 0x40000180, tpdo.CobID)
	assert.EqualValues(t, 1, tpdo.TransmissionType)
	assert.EqualValues(t, 100, tpdo.EventTimer)
	mapped, ok := tpdo.Mapping[1]
	assert.True(t, ok)
	assert.Equal(t, "value", mapped.Name)
}

func TestDummyMapping(t *testing.T) {
	doc := `[MandatoryObjects]
SupportedObjects=0

[OptionalObjects]
SupportedObjects=2
1=0x1800
2=0x1A00

[1800]
ParameterName=TPDO1 communication parameter
ObjectType=0x9
SubNumber=0x2

[1800sub0]
ParameterName=highest sub-index supported
ObjectType=0x7
DataType=0x0005
AccessType=const
DefaultValue=2

[1800sub1]
ParameterName=COB-ID
ObjectType=0x7
DataType=0x0007
AccessType=rw
DefaultValue=0x180

[1A00]
ParameterName=TPDO1 mapping parameter
ObjectType=0x9
SubNumber=0x2

[1A00sub0]
ParameterName=number of mapped objects
ObjectType=0x7
DataType=0x0005
AccessType=rw
DefaultValue=1

[1A00sub1]
ParameterName=mapping entry 1
ObjectType=0x7
DataType=0x0007
AccessType=rw
DefaultValue=0x00050008
`
	dev := parseTestDevice(t, doc)
	tpdo, ok := dev.TPDO[1]
	assert.True(t, ok)
	dummy, ok := tpdo.Mapping[1]
	assert.True(t, ok)
	assert.True(t, dummy.PDOMapping)
	obj, ok := dev.Object(0x0005)
	assert.True(t, ok)
	assert.EqualValues(t, ObjectDefType, obj.ObjectType)
}

func TestAccessTypeDerivedBooleans(t *testing.T) {
	assert.True(t, RO.Readable())
	assert.False(t, RO.Writable())
	assert.True(t, RWR.TPDOMappable())
	assert.True(t, RWW.RPDOMappable())
	assert.True(t, Const.Readable())
	assert.False(t, Const.Writable())
}

func TestValidateNodeIDRange(t *testing.T) {
	assert.Nil(t, validateNodeID(1))
	assert.Nil(t, validateNodeID(127))
	assert.Nil(t, validateNodeID(255))
	assert.NotNil(t, validateNodeID(0))
	assert.NotNil(t, validateNodeID(200))
}
