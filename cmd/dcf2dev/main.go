// Command dcf2dev turns a parsed Device Configuration File into the
// C-emission attribute set a device-descriptor template renders (spec §6):
// it stops at constructing cdevice.Params, since the template engine itself
// is an external collaborator out of scope here.
//
// Grounded on lely-core's dcf2dev/cli.py (the flag set and custom-dtype
// registration this mirrors) and on cmd/dcfchk for the parse/build flow.
package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/lely-tools/dcftools/pkg/cdevice"
	"github.com/lely-tools/dcftools/pkg/device"
	"github.com/lely-tools/dcftools/pkg/dtype"
	"github.com/lely-tools/dcftools/pkg/inistore"
)

func main() {
	log.SetLevel(log.InfoLevel)

	noStrings := flag.Bool("no-strings", false, "emit string/domain values as byte arrays rather than the CO_*_STRING_C macros")
	includeConfig := flag.Bool("include-config", false, "emit a #include for the generated config header")
	header := flag.String("header", "", "path to an extra header to #include verbatim")
	scetIndex := flag.Int("deftype-time-scet", 0, "register this data-type index as an ECSS TIME_SCET custom type")
	sutcIndex := flag.Int("deftype-time-sutc", 0, "register this data-type index as an ECSS TIME_SUTC custom type")
	output := flag.String("o", "", "output path (default stdout)")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: dcf2dev [flags] FILE NAME")
		os.Exit(2)
	}
	path, name := flag.Arg(0), flag.Arg(1)

	if *scetIndex != 0 {
		if err := dtype.AddCustom(dtype.Type{
			Index:   dtype.Index(*scetIndex),
			Name:    "TIME_SCET",
			Kind:    dtype.KindTimeOfDay, // non-basic: rendered through CFormat
			CFormat: "{ .subseconds = %[2]d, .seconds = %[1]d }",
		}); err != nil {
			log.Errorf("dcf2dev: %v", err)
			os.Exit(1)
		}
	}
	if *sutcIndex != 0 {
		if err := dtype.AddCustom(dtype.Type{
			Index:   dtype.Index(*sutcIndex),
			Name:    "TIME_SUTC",
			Kind:    dtype.KindTimeOfDay, // non-basic: rendered through CFormat
			CFormat: "{ .subseconds = %[3]d, .seconds = %[2]d, .epoch = %[1]d }",
		}); err != nil {
			log.Errorf("dcf2dev: %v", err)
			os.Exit(1)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		log.Errorf("dcf2dev: %v", err)
		os.Exit(1)
	}
	defer f.Close()

	store, err := inistore.Parse(f)
	if err != nil {
		log.Errorf("dcf2dev: %v", err)
		os.Exit(1)
	}

	dev, err := device.New(store)
	if err != nil {
		log.Errorf("dcf2dev: %v", err)
		os.Exit(1)
	}

	cdev, err := cdevice.Build(dev, name)
	if err != nil {
		log.Errorf("dcf2dev: %v", err)
		os.Exit(1)
	}

	params := cdevice.Params{
		NoStrings:     *noStrings,
		IncludeConfig: *includeConfig,
		Name:          name,
		Dev:           cdev,
	}

	w := os.Stdout
	if *output != "" {
		out, err := os.Create(*output)
		if err != nil {
			log.Errorf("dcf2dev: %v", err)
			os.Exit(1)
		}
		defer out.Close()
		w = out
	}

	fmt.Fprintf(w, "// device-descriptor parameters for %q: %d objects, no_strings=%v, include_config=%v\n",
		params.Name, len(params.Dev.Objects), params.NoStrings, params.IncludeConfig)
	if *header != "" {
		fmt.Fprintf(w, "#include \"%s\"\n", *header)
	}
}
