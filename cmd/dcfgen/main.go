// Command dcfgen turns a YAML overlay document into per-slave and
// master-level concise-SDO scripts (spec §4.8/§4.9, C8/C9): it writes one
// "<slave>.bin" per slave with a non-empty script, a "master.bin" when the
// master script is non-empty, and stops at constructing cdevice.MasterDCFParams for the
// master-side DCF template, which is an external collaborator out of scope
// here.
//
// Grounded on lely-core's dcfgen/cli.py:main (the directory/remote-pdo/
// no-strict/verbose flag set and the skip-unconfigured-slave warning this
// mirrors).
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/lely-tools/dcftools/pkg/cdevice"
	"github.com/lely-tools/dcftools/pkg/concise"
	"github.com/lely-tools/dcftools/pkg/device"
	"github.com/lely-tools/dcftools/pkg/inistore"
	"github.com/lely-tools/dcftools/pkg/lint"
	"github.com/lely-tools/dcftools/pkg/masterconfig"
	"github.com/lely-tools/dcftools/pkg/overlay"
	"github.com/lely-tools/dcftools/pkg/slaveconfig"
)

func main() {
	log.SetLevel(log.InfoLevel)

	directory := flag.String("d", "", "directory in which to store the generated files")
	remotePDO := flag.Bool("r", false, "generate remote PDO mappings")
	noStrict := flag.Bool("S", false, "do not abort in case of an invalid slave EDS/DCF")
	verbose := flag.Bool("v", false, "print the generated SDO requests")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: dcfgen [-d dir] [-r] [-S] [-v] FILE")
		os.Exit(2)
	}

	raw, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Errorf("dcfgen: %v", err)
		os.Exit(1)
	}
	doc, err := overlay.Parse(raw)
	if err != nil {
		log.Errorf("dcfgen: %v", err)
		os.Exit(1)
	}

	base := filepath.Dir(flag.Arg(0))
	slaves := map[string]*slaveconfig.Slave{}
	failed := false

	for _, name := range doc.SlaveOrder {
		ov, ok := doc.Slaves[name]
		if !ok {
			continue
		}
		if ov.NodeID == 255 {
			log.Warnf("dcfgen: %s: ignoring slave with unconfigured node-ID", name)
			continue
		}

		dcfPath := ov.DCF
		if dcfPath == "" {
			dcfPath = doc.Options.DCFPath
		}
		if !filepath.IsAbs(dcfPath) {
			dcfPath = filepath.Join(base, dcfPath)
		}

		f, err := os.Open(dcfPath)
		if err != nil {
			log.Errorf("dcfgen: %s: %v", name, err)
			failed = true
			continue
		}
		store, err := inistore.Parse(f)
		f.Close()
		if err != nil {
			log.Errorf("dcfgen: %s: %v", name, err)
			failed = true
			continue
		}

		dev, err := device.New(store, device.WithNodeID(ov.NodeID))
		if err != nil {
			log.Errorf("dcfgen: %s: %v", name, err)
			failed = true
			continue
		}

		result := lint.Lint(store, dev.Env)
		for _, w := range result.Warnings {
			log.Warnf("%s: %s", name, w.String())
		}
		if !result.OK {
			if !*noStrict {
				failed = true
				continue
			}
			log.Warnf("dcfgen: %s: invalid DCF, continuing (-S)", name)
		}

		slave, err := slaveconfig.Build(dev, name, ov, doc.Options, nil)
		if err != nil {
			log.Errorf("dcfgen: %s: %v", name, err)
			failed = true
			continue
		}
		slaves[name] = slave
	}

	if failed && !*noStrict {
		os.Exit(1)
	}

	master, err := masterconfig.Build(doc.Master, doc.Options, slaves, doc.SlaveOrder, nil)
	if err != nil {
		log.Errorf("dcfgen: %v", err)
		os.Exit(1)
	}

	// masterconfig.Build may prepend heartbeat-consumer entries to a slave's
	// own SDO script, so slave files are written only after it returns.
	for _, name := range doc.SlaveOrder {
		slave, ok := slaves[name]
		if !ok || len(slave.SDO) == 0 {
			continue
		}
		writeBin(*directory, name, slave.SDO, *verbose)
	}

	params := cdevice.MasterDCFParams{
		Master:    master,
		Slaves:    slaves,
		Order:     doc.SlaveOrder,
		RemotePDO: *remotePDO,
	}
	log.Infof("dcfgen: built master DCF parameters (%d slaves, remote_pdo=%v)", len(params.Slaves), params.RemotePDO)

	if len(master.SDO) > 0 {
		writeBin(*directory, "master", master.SDO, *verbose)
	}
}

func writeBin(directory, name string, records []concise.Record, verbose bool) {
	if verbose {
		for _, r := range records {
			fmt.Println(concise.DescribeRecord(r))
		}
	}
	path := filepath.Join(directory, name+".bin")
	if err := os.WriteFile(path, concise.EncodeFile(records), 0o644); err != nil {
		log.Errorf("dcfgen: %s: %v", name, err)
	}
}
