package cdevice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lely-tools/dcftools/pkg/device"
	"github.com/lely-tools/dcftools/pkg/inistore"
)

const testDCF = `[DeviceInfo]
VendorName=Acme Robotics
ProductName=Widget Drive
OrderCode=WD-1
BaudRate_125=1
BaudRate_500=1
LSS_Supported=1

[DeviceComissioning]
NodeID=0x02
NodeName=drive1

[DummyUsage]
Dummy0001=1

[MandatoryObjects]
SupportedObjects=1
1=0x1000

[1000]
ParameterName=Device type
ObjectType=0x7
DataType=0x0007
AccessType=ro
DefaultValue=0

[OptionalObjects]
SupportedObjects=2
1=0x2000
2=0x2001

[2000]
ParameterName=Max current
ObjectType=0x7
DataType=0x0006
AccessType=rw
DefaultValue=0xFFFF

[2001]
ParameterName=Drive name
ObjectType=0x7
DataType=0x0009
AccessType=rw
DefaultValue="drive1"
ParameterValue="configured"
`

func buildTestDevice(t *testing.T) *device.Device {
	t.Helper()
	store, err := inistore.Parse(strings.NewReader(testDCF))
	assert.Nil(t, err)
	dev, err := device.New(store)
	assert.Nil(t, err)
	return dev
}

func TestDeviceFieldsFromDeviceInfo(t *testing.T) {
	dev := buildTestDevice(t)
	d, err := Build(dev, "widget")
	assert.Nil(t, err)
	assert.Equal(t, "Acme Robotics", d.VendorName)
	assert.Equal(t, "Widget Drive", d.ProductName)
	assert.Equal(t, "WD-1", d.OrderCode)
	assert.Equal(t, 1, d.LSS)
	assert.Equal(t, "drive1", d.Name)
	assert.Contains(t, d.Baud, "CO_BAUD_125")
	assert.Contains(t, d.Baud, "CO_BAUD_500")
	assert.Equal(t, 500, d.Rate) // last true flag wins, matching the reference assignment order
	assert.EqualValues(t, 1<<1, d.Dummy)
}

func TestObjectCodeAndMaxLimitCollapse(t *testing.T) {
	dev := buildTestDevice(t)
	d, err := Build(dev, "widget")
	assert.Nil(t, err)

	obj, ok := d.Objects[0x2000]
	assert.True(t, ok)
	assert.Equal(t, "CO_OBJECT_VAR", obj.Code)

	sub, ok := obj.Subs[0]
	assert.True(t, ok)
	assert.Equal(t, "CO_DEFTYPE_UNSIGNED16", sub.Type)
	assert.Equal(t, "CO_ACCESS_RW", sub.Access)
	// 0xFFFF is UNSIGNED16's max, so both default_value and value collapse
	// to the macro form rather than the raw 0x%04X literal.
	assert.Equal(t, "CO_UNSIGNED16_MAX", sub.DefaultValue)
	assert.Equal(t, "CO_UNSIGNED16_MAX", sub.Value)
}

func TestVisibleStringParameterValueFlag(t *testing.T) {
	dev := buildTestDevice(t)
	d, err := Build(dev, "widget")
	assert.Nil(t, err)

	obj, ok := d.Objects[0x2001]
	assert.True(t, ok)
	sub, ok := obj.Subs[0]
	assert.True(t, ok)
	assert.Equal(t, `CO_VISIBLE_STRING_C("drive1")`, sub.DefaultValue)
	assert.Equal(t, `CO_VISIBLE_STRING_C("configured")`, sub.Value)
	assert.Contains(t, sub.Flags, "CO_OBJ_FLAGS_PARAMETER_VALUE")
}

func TestUnsigned32MinDefaultRendersLiteralNotMacro(t *testing.T) {
	dev := buildTestDevice(t)
	d, err := Build(dev, "widget")
	assert.Nil(t, err)

	obj, ok := d.Objects[0x1000]
	assert.True(t, ok)
	sub, ok := obj.Subs[0]
	assert.True(t, ok)
	// default value 0 equals UNSIGNED32's min (0), but the "!= 0" guard
	// means it renders as a plain literal, not CO_UNSIGNED32_MIN.
	assert.Equal(t, "0x00000000", sub.DefaultValue)
}
