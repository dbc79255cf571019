package main

import (
	"context"
	"flag"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/databus/pkg/env"
	fx "github.com/robotalks/databus/pkg/framework"
	"github.com/robotalks/databus/pkg/periph/mqttline"
)

// splitTopic splits <line>/<kind>/<node>, where line may contain '/'.
func splitTopic(topic string) (line, kind, node string, ok bool) {
	i := strings.LastIndex(topic, "/")
	if i < 0 {
		return "", "", "", false
	}
	node, topic = topic[i+1:], topic[:i]
	if i = strings.LastIndex(topic, "/"); i < 0 {
		return "", "", "", false
	}
	return topic[:i], topic[i+1:], node, true
}

// busmon prints every byte and baud announcement seen on virtual lines.
func main() {
	env.SetupFlags()
	flag.Parse()
	conf := env.NewConfig()

	opts, prefix, err := mqttline.ClientOptionsFromURL(conf.MQTTBrokerURL)
	if err != nil {
		glog.Exit(err)
	}
	q := mqttline.NewQueue(opts, prefix)
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		glog.Exit(token.Error())
	}
	defer q.Close()

	if err := q.Subscribe("#", func(topic string, payload []byte) {
		line, kind, node, ok := splitTopic(topic)
		if !ok {
			return
		}
		switch kind {
		case "tx":
			glog.Infof("%s <%s> % x", line, node, payload)
		case "baud":
			glog.Infof("%s <%s> baud %s", line, node, string(payload))
		}
	}); err != nil {
		glog.Error(err)
		return
	}

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("monitor", fx.RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})))
	if err := runner.Wait(); err != nil {
		glog.Error(err)
	}
}
