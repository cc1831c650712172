// Package device carries out the platform side of device commands: opening
// URLs on the desktop, toggling radios and switching bus-attached appliances.
package device

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os/exec"
	"strings"

	"jarvis/internal/service"
	"jarvis/pkg/protocol"
)

// Runner runs an external command to completion.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Command builds the argv toggling one feature.
type Command func(on bool) []string

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

var DefaultSwitches = map[string]Command{
	"WiFi":      func(on bool) []string { return []string{"nmcli", "radio", "wifi", onOff(on)} },
	"Bluetooth": func(on bool) []string { return []string{"bluetoothctl", "power", onOff(on)} },
}

// Desktop drives the local session through xdg-open and radio tools. A
// missing tool is reported as unsupported rather than failed.
type Desktop struct {
	Opener   string
	Dialing  bool
	Switches map[string]Command
	Run      Runner
	LookPath func(string) (string, error)
	Logger   *log.Logger
}

func NewDesktop(logger *log.Logger) *Desktop {
	if logger == nil {
		logger = log.Default()
	}
	return &Desktop{
		Opener:   "xdg-open",
		Switches: DefaultSwitches,
		Run:      execRunner,
		LookPath: exec.LookPath,
		Logger:   logger,
	}
}

func (d *Desktop) run(ctx context.Context, svc string, argv []string) error {
	if _, err := d.LookPath(argv[0]); err != nil {
		return service.Unsupported(svc, err)
	}
	d.Logger.Debug("Running device command", "argv", argv)
	if err := d.Run(ctx, argv[0], argv[1:]...); err != nil {
		return service.Unavailable(svc, err)
	}
	return nil
}

func (d *Desktop) Open(ctx context.Context, target string) error {
	if target == "" {
		return service.Invalid("open", errors.New("empty target"))
	}
	return d.run(ctx, "open", []string{d.Opener, target})
}

// Dial hands a tel: URL to the opener when dialing is enabled; most desktops
// have no handler for it.
func (d *Desktop) Dial(ctx context.Context, number string) error {
	if !d.Dialing {
		return service.Unsupported("call", nil)
	}
	if number == "" {
		return service.Invalid("call", errors.New("empty number"))
	}
	return d.run(ctx, "call", []string{d.Opener, "tel:" + number})
}

func (d *Desktop) Switch(ctx context.Context, feature string, on bool) error {
	cmd, ok := d.Switches[feature]
	if !ok {
		return service.Unsupported("switch", fmt.Errorf("no switch for %s", feature))
	}
	return d.run(ctx, "switch", cmd(on))
}

// Requester is the request side of the bus protocol.
type Requester interface {
	Request(ctx context.Context, m protocol.Message) (*protocol.Message, error)
}

// Target addresses an appliance on the bus.
type Target struct {
	To   string
	Noun string
}

var DefaultTargets = map[string]Target{
	"Lamp": {To: "VERTEX", Noun: "LAMP"},
}

// Bus switches appliances over the smart-home bus.
type Bus struct {
	ptcl    Requester
	targets map[string]Target
	log     *log.Logger
}

func NewBus(ptcl Requester, targets map[string]Target, logger *log.Logger) *Bus {
	if targets == nil {
		targets = DefaultTargets
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{ptcl: ptcl, targets: targets, log: logger}
}

func (b *Bus) Handles(feature string) bool {
	_, ok := b.targets[feature]
	return ok
}

func (b *Bus) Switch(ctx context.Context, feature string, on bool) error {
	t, ok := b.targets[feature]
	if !ok {
		return service.Unsupported("bus", fmt.Errorf("no bus target for %s", feature))
	}

	verb := "OFF"
	if on {
		verb = "ON"
	}
	resp, err := b.ptcl.Request(ctx, protocol.Message{To: t.To, Verb: verb, Noun: t.Noun})
	if err != nil {
		return service.Unavailable("bus", err)
	}
	if resp.IsError() {
		return service.Unavailable("bus", fmt.Errorf("%s refused %s %s: %s", t.To, verb, t.Noun, resp.Noun))
	}

	b.log.Info("Switched bus device", "feature", feature, "on", on, "to", t.To)
	return nil
}

// Device routes switches to the bus when it knows the feature and everything
// else to the desktop.
type Device struct {
	Desktop *Desktop
	Bus     *Bus
}

func (d *Device) Open(ctx context.Context, target string) error {
	if d.Desktop == nil {
		return service.Unsupported("open", nil)
	}
	return d.Desktop.Open(ctx, target)
}

func (d *Device) Dial(ctx context.Context, number string) error {
	if d.Desktop == nil {
		return service.Unsupported("call", nil)
	}
	return d.Desktop.Dial(ctx, number)
}

func (d *Device) Switch(ctx context.Context, feature string, on bool) error {
	if d.Bus != nil && d.Bus.Handles(feature) {
		return d.Bus.Switch(ctx, feature, on)
	}
	if d.Desktop == nil {
		return service.Unsupported("switch", nil)
	}
	return d.Desktop.Switch(ctx, feature, on)
}
