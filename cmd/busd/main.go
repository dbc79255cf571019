package main

import (
	"context"
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/databus/pkg/config"
	"github.com/robotalks/databus/pkg/databus"
	"github.com/robotalks/databus/pkg/databus/poll"
	"github.com/robotalks/databus/pkg/env"
	fx "github.com/robotalks/databus/pkg/framework"
	"github.com/robotalks/databus/pkg/periph"
)

func init() {
	env.SetupFlags()
}

func closeAll(instances []*config.Instance) {
	for _, inst := range instances {
		if err := inst.Close(); err != nil {
			glog.Warningf("close %s: %v", inst.Bus.Name, err)
		}
	}
}

// openAll opens every bus. On failure the buses already opened are closed.
func openAll(conf *config.Config) ([]*config.Instance, error) {
	var instances []*config.Instance
	for _, bus := range conf.Buses {
		inst, err := conf.Open(bus, periph.DefaultVectors)
		if err != nil {
			closeAll(instances)
			return nil, err
		}
		instances = append(instances, inst)
		glog.Infof("%s: UART%d %s at %d baud", bus.Name, bus.Peripheral, bus.Binding, bus.BaudRate)
	}
	return instances, nil
}

func main() {
	flag.Parse()
	ec := env.NewConfig()
	conf, err := config.Load(ec.ConfigFile)
	if err != nil {
		glog.Exit(err)
	}
	if err := conf.Validate(); err != nil {
		glog.Exit(err)
	}
	conf.MQTTBrokerURL, conf.Node = ec.MQTTBrokerURL, ec.Node

	instances, err := openAll(conf)
	if err != nil {
		glog.Exit(err)
	}

	loop := fx.NewLoop()
	drivers := make([]*databus.Driver, 0, len(instances))
	for _, inst := range instances {
		if r := inst.Runnable(); r != nil {
			loop.AddRunnable(fx.NamedRun(inst.Bus.Name, r))
		}
		drivers = append(drivers, inst.Driver)
	}
	loop.Add(poll.New(poll.HandleByteFunc(func(_ context.Context, src *databus.Driver, b byte) {
		glog.Infof("%s: %02x", src.Name(), b)
	}), drivers...))

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("loop", loop))
	err = runner.Wait()
	closeAll(instances)
	if err != nil {
		glog.Exit(err)
	}
}
