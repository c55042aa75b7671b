package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleYAML = `
options:
  cob_id: 0x700
  retry_factor: 5

master:
  node_id: 1
  serial_number: 99

drive1:
  dcf: drive1.dcf
  node_id: 2
  heartbeat_consumer: true
  heartbeat_producer: 1000
  rpdo:
    1:
      cob_id: "0x201"
      transmission: 255
      mapping:
        - index: 0x6200
          sub_index: 1

.ignored:
  dcf: nope.dcf
`

func TestParseOverlay(t *testing.T) {
	doc, err := Parse([]byte(sampleYAML))
	assert.Nil(t, err)

	assert.EqualValues(t, 0x700, doc.Options.CobID)
	assert.Equal(t, 5, doc.Options.RetryFactor)

	assert.EqualValues(t, 1, doc.Master.NodeID)
	assert.EqualValues(t, 99, doc.Master.SerialNumber)
	assert.Equal(t, map[uint8]uint8{1: 0x00}, doc.Master.ErrorBehavior)

	slave, ok := doc.Slaves["drive1"]
	assert.True(t, ok)
	assert.Equal(t, "drive1.dcf", slave.DCF)
	assert.True(t, slave.HeartbeatConsumer)

	rpdo1, ok := slave.RPDO[1]
	assert.True(t, ok)
	assert.Equal(t, "0x201", *rpdo1.CobID)
	assert.Len(t, rpdo1.Mapping, 1)
	assert.EqualValues(t, 0x6200, rpdo1.Mapping[0].Index)

	_, ignored := doc.Slaves[".ignored"]
	assert.False(t, ignored)

	assert.Equal(t, []string{"drive1"}, doc.SlaveOrder)
}

func TestParseOverlayDefaults(t *testing.T) {
	doc, err := Parse([]byte("master:\n  node_id: 1\n"))
	assert.Nil(t, err)
	assert.EqualValues(t, 0x680, doc.Options.CobID)
	assert.Equal(t, 3, doc.Options.RetryFactor)
}

func TestParseOverlayEmpty(t *testing.T) {
	doc, err := Parse([]byte(""))
	assert.Nil(t, err)
	assert.NotNil(t, doc)
	assert.Empty(t, doc.Slaves)
}
