package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/driversdk"
	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/metrics"
)

type Command string

const (
	CommandPowerOn  Command = "power_on"
	CommandPowerOff Command = "power_off"
)

func (c Command) wantsPower() bool { return c == CommandPowerOn }

func (c Command) deviceCommand() string {
	if c == CommandPowerOn {
		return cmdPowerOn
	}
	return cmdPowerOff
}

// parseCommandID maps "<adapter>.<instance>.commands.<command>" to a Command.
// ok is false for well formed ids that do not name a known command.
func parseCommandID(id string) (cmd Command, ok bool, err error) {
	parts := strings.Split(id, ".")
	if len(parts) != 4 {
		return "", false, fmt.Errorf("%w: %q has %d segments, want 4", ErrProtocolMismatch, id, len(parts))
	}
	switch c := Command(parts[3]); c {
	case CommandPowerOn, CommandPowerOff:
		return c, true, nil
	}
	return "", false, nil
}

type dispatchState string

const (
	dispatchIdle           dispatchState = "Idle"
	dispatchCommandSent    dispatchState = "CommandSent"
	dispatchAwaitingResult dispatchState = "AwaitingResult"
)

type commandDevice interface {
	Command(ctx context.Context, name string) error
	FetchResult(ctx context.Context) (string, error)
}

type slotWriter func(ctx context.Context, id string, val any) error

// dispatcher turns power requests into bridge commands. It runs on the
// driver's run loop, so at most one command is in flight.
type dispatcher struct {
	state   dispatchState
	device  commandDevice
	cache   *stateCache
	write   slotWriter
	log     driversdk.Logger
	metrics *metrics.Metrics
}

func newDispatcher(device commandDevice, cache *stateCache, write slotWriter, log driversdk.Logger, m *metrics.Metrics) *dispatcher {
	return &dispatcher{
		state:   dispatchIdle,
		device:  device,
		cache:   cache,
		write:   write,
		log:     log,
		metrics: m,
	}
}

// Handle sends cmd unless the last observed power state already matches it.
func (x *dispatcher) Handle(ctx context.Context, cmd Command) error {
	if x.state != dispatchIdle {
		return fmt.Errorf("dispatch %s while in state %s", cmd, x.state)
	}
	if cmd.wantsPower() == x.cache.snapshot().Power {
		x.log.Debug("command matches observed power, skipping", "cmd", string(cmd))
		x.metrics.Command(string(cmd), "skipped")
		return nil
	}

	x.enter(ctx, dispatchCommandSent)
	if err := x.device.Command(ctx, cmd.deviceCommand()); err != nil {
		x.log.Warn("power command failed", "cmd", string(cmd), "err", err.Error())
		x.metrics.Command(string(cmd), "failed")
		x.enter(ctx, dispatchIdle)
		return err
	}

	x.enter(ctx, dispatchAwaitingResult)
	raw, err := x.device.FetchResult(ctx)
	result := ""
	switch {
	case err != nil:
		x.log.Warn("fetching command result failed", "cmd", string(cmd), "err", err.Error())
	default:
		if reply, ok := ParseReply(raw); ok {
			x.log.Info("projector replied", "cmd", string(cmd), "name", reply.Name, "value", reply.Value)
			result = reply.Raw
		} else {
			x.log.Debug("command result not understood", "cmd", string(cmd), "raw", raw)
		}
	}
	x.cache.update(func(s *DeviceState) { s.LastResult = result })
	if werr := x.write(ctx, SlotLastResult, result); werr != nil {
		x.log.Warn("write last result failed", "err", werr.Error())
	}
	if err != nil {
		x.metrics.Command(string(cmd), "result_failed")
	} else {
		x.metrics.Command(string(cmd), "sent")
	}
	x.enter(ctx, dispatchIdle)
	return err
}

func (x *dispatcher) enter(ctx context.Context, next dispatchState) {
	x.log.Debug("dispatch transition", "from", string(x.state), "to", string(next))
	x.state = next
	if next == dispatchCommandSent {
		x.resetIndicators(ctx)
	}
}

// resetIndicators clears both command switches so they read as "no pending
// command" while the command is in flight and afterwards.
func (x *dispatcher) resetIndicators(ctx context.Context) {
	for _, id := range []string{SlotPowerOn, SlotPowerOff} {
		if err := x.write(ctx, id, false); err != nil {
			x.log.Warn("reset command indicator failed", "id", id, "err", err.Error())
		}
	}
}
