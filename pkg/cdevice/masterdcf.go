package cdevice

import (
	"github.com/lely-tools/dcftools/pkg/masterconfig"
	"github.com/lely-tools/dcftools/pkg/slaveconfig"
)

// MasterDCFParams is the parameter set a master-side DCF template would be
// invoked with (SPEC_FULL.md §3 item 2a, grounded on dcfgen/cli.py:
// Master.write_dcf / data/master.dcf.em): the built master, its slaves in
// YAML declaration order, and whether the network uses remote (consumer-
// driven) PDO transmission. As with Device above, only the parameter
// struct is defined here; the template engine that renders it to text is
// an external collaborator out of scope.
type MasterDCFParams struct {
	Master *masterconfig.Master
	Slaves map[string]*slaveconfig.Slave
	Order  []string

	RemotePDO bool
}
