package masterconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lely-tools/dcftools/pkg/device"
	"github.com/lely-tools/dcftools/pkg/inistore"
	"github.com/lely-tools/dcftools/pkg/overlay"
	"github.com/lely-tools/dcftools/pkg/slaveconfig"
)

const heartbeatDCF = `[DeviceComissioning]
NodeID=0x05

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
SupportedObjects=1
1=0x1016

[1016]
ParameterName=Consumer heartbeat time
ObjectType=0x8
SubNumber=3

[1016sub0]
ParameterName=Highest sub-index supported
ObjectType=0x7
DataType=0x0005
AccessType=ro
DefaultValue=2

[1016sub1]
ParameterName=Consumer heartbeat time 1
ObjectType=0x7
DataType=0x0007
AccessType=rw
DefaultValue=0

[1016sub2]
ParameterName=Consumer heartbeat time 2
ObjectType=0x7
DataType=0x0007
AccessType=rw
DefaultValue=0
`

func buildTestSlave(t *testing.T, doc string, ov overlay.Slave) *slaveconfig.Slave {
	t.Helper()
	store, err := inistore.Parse(strings.NewReader(doc))
	assert.Nil(t, err)
	dev, err := device.New(store)
	assert.Nil(t, err)
	s, err := slaveconfig.Build(dev, "drive1", ov, overlay.DefaultOptions(), nil)
	assert.Nil(t, err)
	return s
}

func TestHeartbeatConsumerSlotAllocated(t *testing.T) {
	slave := buildTestSlave(t, heartbeatDCF, overlay.Slave{HeartbeatConsumer: true})
	master := overlay.Master{NodeID: 1, HeartbeatProducer: 1000}

	m, err := Build(master, overlay.DefaultOptions(), map[string]*slaveconfig.Slave{"drive1": slave}, []string{"drive1"}, nil)
	assert.Nil(t, err)
	assert.NotNil(t, m)

	found := false
	for _, r := range slave.SDO {
		if r.Index == 0x1016 && r.SubIndex == 1 {
			found = true
		}
	}
	assert.True(t, found)
}

func TestHeartbeatConsumerSlotReuse(t *testing.T) {
	doc := strings.Replace(heartbeatDCF, "[1016sub1]\nParameterName=Consumer heartbeat time 1\nObjectType=0x7\nDataType=0x0007\nAccessType=rw\nDefaultValue=0\n",
		"[1016sub1]\nParameterName=Consumer heartbeat time 1\nObjectType=0x7\nDataType=0x0007\nAccessType=rw\nDefaultValue=0x00010064\n", 1)
	slave := buildTestSlave(t, doc, overlay.Slave{HeartbeatConsumer: true})
	master := overlay.Master{NodeID: 1, HeartbeatProducer: 1000}

	_, err := Build(master, overlay.DefaultOptions(), map[string]*slaveconfig.Slave{"drive1": slave}, []string{"drive1"}, nil)
	assert.Nil(t, err)

	// exactly one write to 0x1016/1, overwriting the existing entry rather
	// than allocating a new slot.
	count := 0
	for _, r := range slave.SDO {
		if r.Index == 0x1016 {
			count++
			assert.EqualValues(t, 1, r.SubIndex)
		}
	}
	assert.Equal(t, 1, count)
}

func TestMasterSerialNumberWrite(t *testing.T) {
	slave := buildTestSlave(t, heartbeatDCF, overlay.Slave{})
	master := overlay.Master{NodeID: 1, SerialNumber: 77}

	m, err := Build(master, overlay.DefaultOptions(), map[string]*slaveconfig.Slave{"drive1": slave}, []string{"drive1"}, nil)
	assert.Nil(t, err)
	assert.Len(t, m.SDO, 1)
	assert.EqualValues(t, 0x1018, m.SDO[0].Index)
	assert.EqualValues(t, 4, m.SDO[0].SubIndex)
}
