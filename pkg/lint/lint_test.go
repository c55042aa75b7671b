package lint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lely-tools/dcftools/pkg/dtype"
	"github.com/lely-tools/dcftools/pkg/inistore"
	"github.com/lely-tools/dcftools/pkg/value"
)

func mustParse(t *testing.T, doc string) *inistore.Store {
	t.Helper()
	store, err := inistore.Parse(strings.NewReader(doc))
	assert.Nil(t, err)
	return store
}

func TestLintRejectsUnrecognizedSection(t *testing.T) {
	store := mustParse(t, "[NotASection]\nFoo=1\n")
	res := Lint(store, value.Env{"NODEID": 1})
	assert.False(t, res.OK)
}

func TestLintAcceptsWellFormedMinimalFile(t *testing.T) {
	doc := `[FileInfo]
FileName=sample.eds

[MandatoryObjects]
SupportedObjects=1
1=0x1000

[1000]
ParameterName=Device type
ObjectType=0x7
DataType=0x0007
AccessType=ro
DefaultValue=0
`
	store := mustParse(t, doc)
	res := Lint(store, value.Env{"NODEID": 1})
	assert.True(t, res.OK)
}

func TestLintRejectsSubLowIndexDataType(t *testing.T) {
	doc := `[MandatoryObjects]
SupportedObjects=1
1=0x0005

[0005]
ParameterName=Bad
ObjectType=0x7
DataType=0x0005
AccessType=ro
DefaultValue=0
`
	store := mustParse(t, doc)
	res := Lint(store, value.Env{"NODEID": 1})
	assert.False(t, res.OK)
}

func TestLintRejectsMissingEnumeratedSection(t *testing.T) {
	doc := `[MandatoryObjects]
SupportedObjects=1
1=0x1000
`
	store := mustParse(t, doc)
	res := Lint(store, value.Env{"NODEID": 1})
	assert.False(t, res.OK)
}

func TestCheckLimitNodeIDAccepted(t *testing.T) {
	u32 := dtype.MustLookup(dtype.UNSIGNED32)
	v, _ := value.New(u32, "$NODEID+1")
	low, _ := value.New(u32, "1")
	high, _ := value.New(u32, "0xFFFFFFFF")
	err := checkLimit(v, low, high, value.Env{"NODEID": 1})
	assert.Nil(t, err)
}

func TestCheckLimitNodeIDRejected(t *testing.T) {
	u32 := dtype.MustLookup(dtype.UNSIGNED32)
	v, _ := value.New(u32, "$NODEID+1")
	low, _ := value.New(u32, "2")
	high, _ := value.New(u32, "0xFFFFFFFF")
	err := checkLimit(v, low, high, value.Env{"NODEID": 1})
	assert.NotNil(t, err)
}

func TestCheckLimitBothNodeIDAccepted(t *testing.T) {
	u32 := dtype.MustLookup(dtype.UNSIGNED32)
	v, _ := value.New(u32, "$NODEID+1")
	low, _ := value.New(u32, "$NODEID+1")
	high, _ := value.New(u32, "0xFFFFFFFF")
	err := checkLimit(v, low, high, value.Env{"NODEID": 1})
	assert.Nil(t, err)
}
