package driver

import (
	"context"
	"errors"
	"time"
)

type pollDevice interface {
	commandDevice
	Alive(ctx context.Context) (float64, error)
}

// pollCycle runs one liveness check followed by a power query. The returned
// error only decides how long the run loop waits before the next cycle.
func (d *ProjectorDriver) pollCycle(ctx context.Context) error {
	alive, err := d.device.Alive(ctx)
	if err != nil {
		d.deps.Logger.Warn("liveness check failed", "err", err.Error())
		d.deps.Health.SetServing(false)
		d.metrics.PollCycle(outcomeOf(err))
		return err
	}
	d.deps.Logger.Debug("bridge alive", "alive", alive)
	d.cache.update(func(s *DeviceState) {
		s.Alive = alive
		s.AliveSeen = true
	})
	d.metrics.SetAlive(alive)
	d.deps.Health.SetServing(alive != 0)
	if err := d.setSlot(ctx, SlotAlive, alive); err != nil {
		d.deps.Logger.Warn("write alive failed", "err", err.Error())
	}

	err = d.queryPower(ctx)
	d.metrics.PollCycle(outcomeOf(err))
	return err
}

// queryPower asks the projector for its model name. Only a powered projector
// answers, so a parsed reply doubles as the power indicator.
func (d *ProjectorDriver) queryPower(ctx context.Context) error {
	if err := d.device.Command(ctx, cmdModelName); err != nil {
		d.deps.Logger.Warn("model name query failed", "err", err.Error())
		return err
	}
	raw, err := d.device.FetchResult(ctx)
	if err != nil {
		d.deps.Logger.Warn("fetching model name result failed", "err", err.Error())
		d.applyPower(ctx, false, "")
		return err
	}
	reply, ok := ParseReply(raw)
	if !ok {
		d.deps.Logger.Debug("model name reply not understood", "raw", raw)
		d.applyPower(ctx, false, "")
		return nil
	}
	d.deps.Logger.Debug("projector replied", "name", reply.Name, "value", reply.Value)
	d.applyPower(ctx, true, reply.Value)
	return nil
}

// applyPower records the power observation. The model name is kept as is
// when the projector did not answer.
func (d *ProjectorDriver) applyPower(ctx context.Context, on bool, model string) {
	now := d.deps.Clock.Now()
	d.cache.update(func(s *DeviceState) {
		s.Power = on
		if on {
			s.ModelName = model
		}
		s.LastPoll = now
	})
	d.metrics.SetPower(on)
	if err := d.setSlot(ctx, SlotPower, on); err != nil {
		d.deps.Logger.Warn("write power failed", "err", err.Error())
	}
	if !on {
		return
	}
	if err := d.setSlot(ctx, SlotModelName, model); err != nil {
		d.deps.Logger.Warn("write model name failed", "err", err.Error())
	}
}

// nextDelay is the single place the poll loop is re-armed from.
func (d *ProjectorDriver) nextDelay(err error) time.Duration {
	if err == nil {
		d.backoff.Reset()
		return d.cfg.PollInterval()
	}
	delay := d.backoff.Next()
	d.deps.Logger.Info("poll failed, backing off", "delay", delay.String())
	return delay
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport_error"
	}
}
