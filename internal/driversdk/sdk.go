package driversdk

import (
	"context"
	"time"
)

// Logger is the structured key/value logger handed to drivers.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type Clock interface {
	Now() time.Time
}

type HealthStatus string

const (
	HealthOK       HealthStatus = "OK"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthDown     HealthStatus = "DOWN"
)

// HealthReporter receives the device liveness observed by a driver.
type HealthReporter interface {
	SetServing(serving bool)
}

// ObjectCommon is the human facing part of an object descriptor.
type ObjectCommon struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Type  string `json:"type"`
	Read  bool   `json:"read"`
	Write bool   `json:"write"`
}

// ObjectDescriptor describes a named slot in the state store.
type ObjectDescriptor struct {
	Type   string         `json:"type"`
	Common ObjectCommon   `json:"common"`
	Native map[string]any `json:"native"`
}

// State is the value currently held by a slot. Ack is false while a write
// is still waiting to be acted on by the owning driver.
type State struct {
	Val  any       `json:"val"`
	Ack  bool      `json:"ack"`
	Ts   time.Time `json:"ts"`
	Lc   time.Time `json:"lc"`
	From string    `json:"from,omitempty"`
}

// StateChangeHandler is called with the full dot separated id of a slot.
// st is nil when the state was deleted.
type StateChangeHandler func(id string, st *State)

// StateStore is the external key/value store drivers mirror device state into.
// Ids passed to the setters and getters are relative to the store namespace;
// ids delivered to handlers are fully qualified.
type StateStore interface {
	Namespace() string
	GetObject(ctx context.Context, id string) (ObjectDescriptor, bool, error)
	SetObject(ctx context.Context, id string, obj ObjectDescriptor) error
	SetStateChanged(ctx context.Context, id string, val any, ack bool) (bool, error)
	GetState(ctx context.Context, id string) (State, bool, error)
	SubscribeStates(pattern string)
	OnStateChange(fn StateChangeHandler)
}

type Dependencies struct {
	Store  StateStore
	Logger Logger
	Clock  Clock
	Health HealthReporter
}
