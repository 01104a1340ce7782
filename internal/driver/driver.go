package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/backoff"
	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/driversdk"
	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/metrics"
)

const commandQueueSize = 8

// ProjectorDriver mirrors a BenQ projector, reached through a serial-to-HTTP
// bridge, into a state store and executes power commands written there.
type ProjectorDriver struct {
	deviceID string

	deps    driversdk.Dependencies
	cfg     Config
	device  pollDevice
	metrics *metrics.Metrics

	cache    stateCache
	dispatch *dispatcher
	backoff  backoff.Backoff
	cmdCh    chan Command

	runCtx    context.Context
	runCancel context.CancelFunc
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewProjectorDriver(deviceID string, m *metrics.Metrics) *ProjectorDriver {
	return &ProjectorDriver{
		deviceID: deviceID,
		metrics:  m,
		cmdCh:    make(chan Command, commandQueueSize),
		stopCh:   make(chan struct{}),
	}
}

func (d *ProjectorDriver) ID() string      { return "com.notrix.benq.projector" }
func (d *ProjectorDriver) Version() string { return "0.1.0" }

func (d *ProjectorDriver) Init(ctx context.Context, deps driversdk.Dependencies, cfg driversdk.JSONConfig) error {
	if deps.Store == nil {
		return fmt.Errorf("deps.Store is required")
	}
	if deps.Logger == nil {
		deps.Logger = driversdk.NewStdLogger()
	}
	if deps.Clock == nil {
		deps.Clock = driversdk.NewSystemClock()
	}
	if deps.Health == nil {
		deps.Health = driversdk.NoopHealth{}
	}
	d.deps = deps

	if err := cfg.Decode(&d.cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	d.cfg.ApplyDefaults()
	if err := d.cfg.Validate(); err != nil {
		return err
	}

	client := NewClient(d.cfg.Server, d.cfg.RequestTimeout(), d.cfg.ResultDelay(), d.cfg.RetryAttempts)
	client.SetObserver(d.metrics.ObserveRequest)
	d.device = client
	d.backoff = backoff.NewExponentialBackoff(d.cfg.PollInterval(), d.cfg.MaxBackoff())
	d.dispatch = newDispatcher(d.device, &d.cache, d.setSlot, d.deps.Logger, d.metrics)
	return nil
}

func (d *ProjectorDriver) Config() Config { return d.cfg }

func (d *ProjectorDriver) Start(ctx context.Context) error {
	if d.device == nil {
		return fmt.Errorf("driver not initialised")
	}
	d.deps.Logger.Info("address of serial server", "server", d.cfg.Server, "device_id", d.deviceID)

	d.deps.Store.SubscribeStates("*")
	d.deps.Store.OnStateChange(d.HandleStateChange)

	for _, id := range []string{SlotPowerOn, SlotPowerOff} {
		if err := d.setSlot(ctx, id, false); err != nil {
			return fmt.Errorf("reset %s: %w", id, err)
		}
	}

	d.runCtx, d.runCancel = context.WithCancel(context.Background())
	d.wg.Add(1)
	go d.runLoop()
	return nil
}

// runLoop owns every bridge request. Poll cycles and queued commands never
// overlap, which the bridge's single /result slot requires.
func (d *ProjectorDriver) runLoop() {
	defer d.wg.Done()

	t := time.NewTimer(0)
	defer t.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case cmd := <-d.cmdCh:
			_ = d.dispatch.Handle(d.runCtx, cmd)
		case <-t.C:
			err := d.pollCycle(d.runCtx)
			t.Reset(d.nextDelay(err))
		}
	}
}

// HandleStateChange receives store notifications. Unacknowledged writes to
// a command slot are queued for the run loop.
func (d *ProjectorDriver) HandleStateChange(id string, st *driversdk.State) {
	if id == "" || st == nil || st.Ack {
		return
	}
	d.deps.Logger.Info("state change", "id", id, "val", st.Val)

	cmd, ok, err := parseCommandID(id)
	if err != nil {
		d.deps.Logger.Warn("ignoring state change", "id", id, "err", err.Error())
		return
	}
	if !ok {
		d.deps.Logger.Debug("state change is not a command", "id", id)
		return
	}

	select {
	case d.cmdCh <- cmd:
	case <-d.stopCh:
	default:
		d.deps.Logger.Warn("command queue full, dropping", "cmd", string(cmd))
		d.metrics.Command(string(cmd), "dropped")
	}
}

// setSlot creates the slot object on first use and writes an acknowledged value.
func (d *ProjectorDriver) setSlot(ctx context.Context, id string, val any) error {
	_, ok, err := d.deps.Store.GetObject(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		if err := d.deps.Store.SetObject(ctx, id, slotDescriptor(id)); err != nil {
			return err
		}
	}
	_, err = d.deps.Store.SetStateChanged(ctx, id, val, true)
	return err
}

// Snapshot returns the last observed device state.
func (d *ProjectorDriver) Snapshot() DeviceState {
	return d.cache.snapshot()
}

func (d *ProjectorDriver) Health(ctx context.Context) (driversdk.HealthStatus, map[string]string) {
	st := d.cache.snapshot()
	meta := map[string]string{"server": d.cfg.Server}
	if !st.AliveSeen {
		meta["reason"] = "no liveness reply yet"
		return driversdk.HealthDegraded, meta
	}
	if st.Alive == 0 {
		meta["reason"] = "bridge reports not alive"
		return driversdk.HealthDown, meta
	}
	if st.ModelName != "" {
		meta["model"] = st.ModelName
	}
	return driversdk.HealthOK, meta
}

func (d *ProjectorDriver) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		if d.runCancel != nil {
			d.runCancel()
		}
	})
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if d.deps.Logger != nil {
			d.deps.Logger.Info("cleaned everything up", "device_id", d.deviceID)
		}
		return nil
	}
}
