package driver

import (
	"sync"
	"time"

	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/driversdk"
)

// Slot ids, relative to the store namespace.
const (
	SlotAlive      = "alive"
	SlotPower      = "power"
	SlotModelName  = "modelname"
	SlotLastResult = "last_result"
	SlotPowerOn    = "commands.power_on"
	SlotPowerOff   = "commands.power_off"
)

var slotCommons = map[string]driversdk.ObjectCommon{
	SlotAlive:      {Name: "server alive", Role: "indicator", Type: "number", Read: true},
	SlotPower:      {Name: "projector power", Role: "indicator", Type: "boolean", Read: true},
	SlotModelName:  {Name: "projector model name", Role: "text", Type: "string", Read: true},
	SlotLastResult: {Name: "last projector result", Role: "text", Type: "string", Read: true},
	SlotPowerOn:    {Name: "set projector power on", Role: "switch", Type: "boolean", Read: true, Write: true},
	SlotPowerOff:   {Name: "set projector power off", Role: "switch", Type: "boolean", Read: true, Write: true},
}

func slotDescriptor(id string) driversdk.ObjectDescriptor {
	common, ok := slotCommons[id]
	if !ok {
		common = driversdk.ObjectCommon{Name: id, Type: "mixed", Read: true}
	}
	return driversdk.ObjectDescriptor{Type: "state", Common: common, Native: map[string]any{}}
}

// DeviceState is the last observed projector state.
type DeviceState struct {
	Alive      float64
	AliveSeen  bool
	Power      bool
	ModelName  string
	LastResult string
	LastPoll   time.Time
}

// stateCache is written by the run loop only; everything else reads snapshots.
type stateCache struct {
	mu sync.RWMutex
	st DeviceState
}

func (c *stateCache) snapshot() DeviceState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st
}

func (c *stateCache) update(fn func(*DeviceState)) {
	c.mu.Lock()
	fn(&c.st)
	c.mu.Unlock()
}
