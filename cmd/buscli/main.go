package main

import (
	"github.com/robotalks/databus/pkg/cli/sh"
	"github.com/robotalks/databus/pkg/env"

	_ "github.com/robotalks/databus/pkg/cli/cmds/bus"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
