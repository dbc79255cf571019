package sh

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/databus/pkg/config"
	"github.com/robotalks/databus/pkg/databus"
	"github.com/robotalks/databus/pkg/env"
	fx "github.com/robotalks/databus/pkg/framework"
	"github.com/robotalks/databus/pkg/periph"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	OpenBus     string

	Shell  *ishell.Shell
	Config *env.Config
	Bus    *BusLoop

	prompt string
}

// BusLoop is an opened bus with its receive loop running.
type BusLoop struct {
	Ctx      context.Context
	Cancel   func()
	Instance *config.Instance
	Loop     *fx.Loop
	done     chan struct{}
}

const (
	shellKey     = "$shell"
	closedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	openBus    string

	// commands
	commands = []*ishell.Cmd{
		&ListCmd,
		&OpenCmd,
		&CloseCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.StringVar(&openBus, "bus", openBus, "Bus to open on start.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		OpenBus:     openBus,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.setPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// DriverFrom gets the driver of the opened bus.
func DriverFrom(c *ishell.Context) *databus.Driver {
	return ShellFrom(c).Bus.Instance.Driver
}

// MustBeOpened wraps command func requires an opened bus.
func MustBeOpened(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Bus == nil {
			c.Err(fmt.Errorf("no bus opened"))
			return
		}
		fn(c)
	}
}

// Output prints v in JSON when requested, otherwise text.
func Output(c *ishell.Context, v interface{}, text string) {
	if !ShellFrom(c).OutputJSON {
		c.Println(text)
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// LoadBuses loads bus definitions using the shell's config.
func (s *Shell) LoadBuses() (*config.Config, error) {
	conf, err := config.Load(s.Config.ConfigFile)
	if err != nil {
		return nil, err
	}
	conf.MQTTBrokerURL, conf.Node = s.Config.MQTTBrokerURL, s.Config.Node
	return conf, nil
}

// Open opens the named bus and starts its receive loop.
func (s *Shell) Open(name string) error {
	conf, err := s.LoadBuses()
	if err != nil {
		return err
	}
	bus, ok := conf.Find(name)
	if !ok {
		return fmt.Errorf("unknown bus %q", name)
	}
	s.Close()
	// The shell holds at most one bus, so each open gets its own table.
	inst, err := conf.Open(*bus, periph.NewVectors())
	if err != nil {
		return err
	}
	busLoop := &BusLoop{Instance: inst, Loop: fx.NewLoop(), done: make(chan struct{})}
	if r := inst.Runnable(); r != nil {
		busLoop.Loop.AddRunnable(fx.NamedRun(name, r))
	}
	busLoop.Ctx, busLoop.Cancel = context.WithCancel(context.Background())
	s.Bus = busLoop
	go func() {
		defer close(busLoop.done)
		if err := busLoop.Loop.Run(busLoop.Ctx); err != nil && !errors.Is(err, context.Canceled) {
			glog.Warningf("%s: %v", name, err)
		}
	}()
	s.setPrompt(fmt.Sprintf("%s > ", name))
	return nil
}

// Close closes the opened bus.
func (s *Shell) Close() {
	if s.Bus == nil {
		return
	}
	s.Bus.Cancel()
	if err := s.Bus.Instance.Close(); err != nil {
		glog.Warningf("close %s: %v", s.Bus.Instance.Bus.Name, err)
	}
	<-s.Bus.done
	s.Bus = nil
	s.setPrompt(closedPrompt)
}

func (s *Shell) setPrompt(prompt string) {
	s.prompt = prompt
	s.Shell.SetPrompt(prompt)
}

// Prompt returns the current prompt.
func (s *Shell) Prompt() string {
	return s.prompt
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Close()
	if s.OpenBus != "" {
		if err := s.Open(s.OpenBus); err != nil {
			glog.Exitf("open %q failed: %v", s.OpenBus, err)
		}
	}
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Exit(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	glog.Exit("command expected")
}

type busInfo struct {
	Name       string    `json:"name"`
	Peripheral periph.ID `json:"peripheral"`
	Binding    string    `json:"binding"`
	BaudRate   int64     `json:"baud_rate"`
}

var (
	// ListCmd lists configured buses.
	ListCmd = ishell.Cmd{
		Name:    "list",
		Aliases: []string{"l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			conf, err := ShellFrom(c).LoadBuses()
			if err != nil {
				c.Err(err)
				return
			}
			if ShellFrom(c).OutputJSON {
				infoList := make([]busInfo, 0, len(conf.Buses))
				for _, bus := range conf.Buses {
					infoList = append(infoList, busInfo{bus.Name, bus.Peripheral, bus.Binding, bus.BaudRate})
				}
				Output(c, infoList, "")
				return
			}
			if len(conf.Buses) == 0 {
				c.Println("No buses configured")
				return
			}
			for _, bus := range conf.Buses {
				c.Printf("%s: UART%d %s %d\n", bus.Name, bus.Peripheral, bus.Binding, bus.BaudRate)
			}
		},
	}

	// OpenCmd opens a bus.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "NAME",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("NAME required"))
				return
			}
			if err := ShellFrom(c).Open(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the opened bus.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).Run(flag.Args()...)
}
