package store

import (
	"context"
	"fmt"
	"path"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/driversdk"
)

// Mirror receives every object and state written to the store.
type Mirror interface {
	MirrorObject(ctx context.Context, id string, obj driversdk.ObjectDescriptor) error
	MirrorState(ctx context.Context, id string, st driversdk.State) error
}

// Store is an in-process object/state registry scoped to one adapter
// namespace (e.g. "benqbang.0"). Writes are forwarded to the configured
// mirrors and to every subscribed state change handler.
type Store struct {
	namespace string
	log       driversdk.Logger
	clock     driversdk.Clock

	mu       sync.RWMutex
	objects  map[string]driversdk.ObjectDescriptor
	states   map[string]driversdk.State
	patterns []string
	handlers []driversdk.StateChangeHandler
	mirrors  []Mirror
}

var _ driversdk.StateStore = (*Store)(nil)

func New(namespace string, log driversdk.Logger, clock driversdk.Clock) *Store {
	if clock == nil {
		clock = driversdk.NewSystemClock()
	}
	return &Store{
		namespace: strings.Trim(namespace, "."),
		log:       log,
		clock:     clock,
		objects:   map[string]driversdk.ObjectDescriptor{},
		states:    map[string]driversdk.State{},
	}
}

func (s *Store) Namespace() string { return s.namespace }

func (s *Store) AddMirror(m Mirror) {
	if m == nil {
		return
	}
	s.mu.Lock()
	s.mirrors = append(s.mirrors, m)
	s.mu.Unlock()
}

// FullID qualifies id with the store namespace unless it already is.
func (s *Store) FullID(id string) string {
	id = strings.Trim(id, ".")
	if s.namespace == "" || id == s.namespace || strings.HasPrefix(id, s.namespace+".") {
		return id
	}
	return s.namespace + "." + id
}

// LocalID strips the namespace from a fully qualified id.
func (s *Store) LocalID(full string) (string, bool) {
	if s.namespace == "" {
		return full, true
	}
	if strings.HasPrefix(full, s.namespace+".") {
		return strings.TrimPrefix(full, s.namespace+"."), true
	}
	return "", false
}

func (s *Store) GetObject(ctx context.Context, id string) (driversdk.ObjectDescriptor, bool, error) {
	if strings.TrimSpace(id) == "" {
		return driversdk.ObjectDescriptor{}, false, fmt.Errorf("get object: empty id")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[s.FullID(id)]
	return obj, ok, nil
}

func (s *Store) SetObject(ctx context.Context, id string, obj driversdk.ObjectDescriptor) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("set object: empty id")
	}
	if obj.Native == nil {
		obj.Native = map[string]any{}
	}
	full := s.FullID(id)

	s.mu.Lock()
	s.objects[full] = obj
	mirrors := append([]Mirror(nil), s.mirrors...)
	s.mu.Unlock()

	for _, m := range mirrors {
		if err := m.MirrorObject(ctx, full, obj); err != nil {
			s.warn("mirror object failed", "id", full, "err", err.Error())
		}
	}
	return nil
}

func (s *Store) GetState(ctx context.Context, id string) (driversdk.State, bool, error) {
	if strings.TrimSpace(id) == "" {
		return driversdk.State{}, false, fmt.Errorf("get state: empty id")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[s.FullID(id)]
	return st, ok, nil
}

// SetStateChanged writes the state only when value or ack differ from what
// is stored. It reports whether a write happened.
func (s *Store) SetStateChanged(ctx context.Context, id string, val any, ack bool) (bool, error) {
	return s.write(ctx, id, val, ack, true)
}

// SetState always writes and notifies, as an external write would.
func (s *Store) SetState(ctx context.Context, id string, val any, ack bool) error {
	_, err := s.write(ctx, id, val, ack, false)
	return err
}

func (s *Store) write(ctx context.Context, id string, val any, ack bool, onlyChanged bool) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, fmt.Errorf("set state: empty id")
	}
	full := s.FullID(id)
	now := s.clock.Now()

	s.mu.Lock()
	prev, existed := s.states[full]
	sameVal := existed && reflect.DeepEqual(prev.Val, val)
	if onlyChanged && sameVal && prev.Ack == ack {
		s.mu.Unlock()
		return false, nil
	}
	st := driversdk.State{Val: val, Ack: ack, Ts: now, Lc: now}
	if sameVal {
		st.Lc = prev.Lc
	}
	if ack {
		st.From = "system.adapter." + s.namespace
	}
	s.states[full] = st
	handlers := s.matchingHandlers(full)
	mirrors := append([]Mirror(nil), s.mirrors...)
	s.mu.Unlock()

	for _, m := range mirrors {
		if err := m.MirrorState(ctx, full, st); err != nil {
			s.warn("mirror state failed", "id", full, "err", err.Error())
		}
	}
	for _, h := range handlers {
		cp := st
		h(full, &cp)
	}
	return true, nil
}

// SubscribeStates registers interest in ids matching pattern. The pattern is
// relative to the namespace; "*" selects every state of the adapter.
func (s *Store) SubscribeStates(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return
	}
	s.mu.Lock()
	s.patterns = append(s.patterns, s.FullID(pattern))
	s.mu.Unlock()
}

func (s *Store) OnStateChange(fn driversdk.StateChangeHandler) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.handlers = append(s.handlers, fn)
	s.mu.Unlock()
}

// States returns a copy of every state keyed by full id, sorted keys first.
func (s *Store) States() ([]string, map[string]driversdk.State) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]driversdk.State, len(s.states))
	keys := make([]string, 0, len(s.states))
	for k, v := range s.states {
		out[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, out
}

// matchingHandlers must be called with s.mu held.
func (s *Store) matchingHandlers(full string) []driversdk.StateChangeHandler {
	for _, p := range s.patterns {
		if ok, _ := path.Match(p, full); ok {
			return append([]driversdk.StateChangeHandler(nil), s.handlers...)
		}
	}
	return nil
}

func (s *Store) warn(msg string, kv ...any) {
	if s.log != nil {
		s.log.Warn(msg, kv...)
	}
}
