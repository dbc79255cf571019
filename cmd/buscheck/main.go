package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/robotalks/databus/pkg/config"
	"github.com/robotalks/databus/pkg/env"
)

// buscheck validates bus configuration files and exits non-zero when any
// of them is invalid, e.g. two buses sharing a UART. pkg/config runs it on
// the sample databus.json through go generate.
func main() {
	env.SetupFlags()
	flag.Parse()
	files := flag.Args()
	if len(files) == 0 {
		files = []string{env.Default().ConfigFile}
	}
	failed := false
	for _, fn := range files {
		conf, err := config.Load(fn)
		if err == nil {
			err = conf.Validate()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", fn, err)
			failed = true
			continue
		}
		fmt.Printf("%s: %d buses OK\n", fn, len(conf.Buses))
	}
	if failed {
		os.Exit(1)
	}
}
