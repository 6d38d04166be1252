// Package platformtest provides in-memory platform services for tests.
package platformtest

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"readlater/internal/platform"
)

type entry struct {
	value    []byte
	revision int64
}

type Storage struct {
	mu      sync.Mutex
	entries map[string]entry

	// FailGet and FailSet, when set, are returned by the next calls.
	FailGet error
	FailSet error
}

func NewStorage() *Storage {
	return &Storage{entries: make(map[string]entry)}
}

func (s *Storage) Get(_ context.Context, key string) (platform.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailGet != nil {
		return platform.Item{}, s.FailGet
	}

	e, ok := s.entries[key]
	if !ok {
		return platform.Item{}, nil
	}

	return platform.Item{Value: append([]byte(nil), e.value...), Revision: e.revision}, nil
}

func (s *Storage) Set(_ context.Context, key string, value []byte, revision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSet != nil {
		return s.FailSet
	}

	if s.entries[key].revision != revision {
		return platform.ErrConflict
	}

	s.entries[key] = entry{value: append([]byte(nil), value...), revision: revision + 1}

	return nil
}

func (s *Storage) Snapshot(_ context.Context) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailGet != nil {
		return nil, s.FailGet
	}

	out := make(map[string][]byte, len(s.entries))
	for k, e := range s.entries {
		out[k] = append([]byte(nil), e.value...)
	}

	return out, nil
}

// Put seeds a raw value, bypassing the revision check.
func (s *Storage) Put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{value: value, revision: s.entries[key].revision + 1}
}

// Raw returns the stored bytes of key.
func (s *Storage) Raw(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.entries[key].value
}

type Alarms struct {
	mu     sync.Mutex
	alarms map[string]time.Time
}

func NewAlarms() *Alarms {
	return &Alarms{alarms: make(map[string]time.Time)}
}

func (a *Alarms) Create(_ context.Context, name string, when time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.alarms[name] = when

	return nil
}

func (a *Alarms) Get(_ context.Context, name string) (platform.Alarm, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	when, ok := a.alarms[name]
	if !ok {
		return platform.Alarm{}, false, nil
	}

	return platform.Alarm{Name: name, ScheduledAt: when}, true, nil
}

func (a *Alarms) Clear(_ context.Context, name string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.alarms[name]
	delete(a.alarms, name)

	return ok, nil
}

func (a *Alarms) All() map[string]time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	return maps.Clone(a.alarms)
}

type Notifier struct {
	mu   sync.Mutex
	sent []platform.Notification

	Err error
}

func (n *Notifier) Notify(_ context.Context, notification platform.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.Err != nil {
		return n.Err
	}

	n.sent = append(n.sent, notification)

	return nil
}

func (n *Notifier) Sent() []platform.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]platform.Notification(nil), n.sent...)
}

type areaKey struct {
	ownerID int64
	area    string
}

// Backend hands out in-memory services per owner, keeping them between calls.
type Backend struct {
	mu       sync.Mutex
	storages map[areaKey]*Storage
	alarms   map[int64]*Alarms
}

func NewBackend() *Backend {
	return &Backend{
		storages: make(map[areaKey]*Storage),
		alarms:   make(map[int64]*Alarms),
	}
}

func (b *Backend) Storage(ownerID int64, area string) platform.Storage {
	return b.StorageOf(ownerID, area)
}

func (b *Backend) StorageOf(ownerID int64, area string) *Storage {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := areaKey{ownerID: ownerID, area: area}

	s, ok := b.storages[key]
	if !ok {
		s = NewStorage()
		b.storages[key] = s
	}

	return s
}

func (b *Backend) Alarms(ownerID int64) platform.Alarms {
	return b.AlarmsOf(ownerID)
}

func (b *Backend) AlarmsOf(ownerID int64) *Alarms {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.alarms[ownerID]
	if !ok {
		a = NewAlarms()
		b.alarms[ownerID] = a
	}

	return a
}

// Owners lists owners whose storage or alarms were ever touched.
func (b *Backend) Owners(context.Context) ([]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var owners []int64
	for key := range b.storages {
		owners = append(owners, key.ownerID)
	}
	owners = append(owners, slices.Collect(maps.Keys(b.alarms))...)

	slices.Sort(owners)

	return slices.Compact(owners), nil
}
