package platform

import (
	"context"
	"sync"
)

// Memory is an in-memory Platform fake: storage + tabs + runtime. It
// stands in for a real browser in every test and in the demo binary —
// there is no real browser to talk to in a systems build.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte

	storageWatchers []func(key string, newValue []byte)
	runtimeHandler  func(payload []byte) []byte

	tabs             map[int]Tab
	tabActivated     []func(int)
	tabRemoved       []func(int)
	tabUpdated       []func(int, Tab)
}

// NewMemory constructs an empty in-memory platform.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string][]byte),
		tabs: make(map[int]Tab),
	}
}

func (m *Memory) Storage() Storage { return (*memoryStorage)(m) }
func (m *Memory) Runtime() Runtime { return (*memoryRuntime)(m) }
func (m *Memory) Tabs() Tabs       { return (*memoryTabs)(m) }

type memoryStorage Memory

func (s *memoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *memoryStorage) Set(_ context.Context, key string, value []byte) error {
	m := (*Memory)(s)
	m.mu.Lock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	watchers := append([]func(string, []byte){}, m.storageWatchers...)
	m.mu.Unlock()

	for _, fn := range watchers {
		fn(key, stored)
	}
	return nil
}

func (s *memoryStorage) Remove(_ context.Context, key string) error {
	m := (*Memory)(s)
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (s *memoryStorage) OnChanged(fn func(key string, newValue []byte)) (unsubscribe func()) {
	m := (*Memory)(s)
	m.mu.Lock()
	m.storageWatchers = append(m.storageWatchers, fn)
	idx := len(m.storageWatchers) - 1
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if idx < len(m.storageWatchers) {
			m.storageWatchers[idx] = func(string, []byte) {}
		}
	}
}

type memoryRuntime Memory

func (r *memoryRuntime) SendMessage(_ context.Context, payload []byte) ([]byte, error) {
	m := (*Memory)(r)
	m.mu.Lock()
	h := m.runtimeHandler
	m.mu.Unlock()
	if h == nil {
		return nil, nil
	}
	return h(payload), nil
}

func (r *memoryRuntime) OnMessage(fn func(payload []byte) []byte) (unsubscribe func()) {
	m := (*Memory)(r)
	m.mu.Lock()
	m.runtimeHandler = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.runtimeHandler = nil
		m.mu.Unlock()
	}
}

func (r *memoryRuntime) GetURL(path string) string { return "memory://" + path }

type memoryTabs Memory

func (t *memoryTabs) Query(_ context.Context) ([]Tab, error) {
	m := (*Memory)(t)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Tab, 0, len(m.tabs))
	for _, tab := range m.tabs {
		out = append(out, tab)
	}
	return out, nil
}

func (t *memoryTabs) Get(_ context.Context, tabID int) (Tab, error) {
	m := (*Memory)(t)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tabs[tabID], nil
}

func (t *memoryTabs) Update(_ context.Context, tabID int, changes Tab) error {
	m := (*Memory)(t)
	m.mu.Lock()
	m.tabs[tabID] = changes
	updated := append([]func(int, Tab){}, m.tabUpdated...)
	m.mu.Unlock()
	for _, fn := range updated {
		fn(tabID, changes)
	}
	return nil
}

func (t *memoryTabs) SendMessage(_ context.Context, _ int, payload []byte) ([]byte, error) {
	return payload, nil
}

func (t *memoryTabs) OnActivated(fn func(tabID int)) (unsubscribe func()) {
	m := (*Memory)(t)
	m.mu.Lock()
	m.tabActivated = append(m.tabActivated, fn)
	m.mu.Unlock()
	return func() {}
}

func (t *memoryTabs) OnRemoved(fn func(tabID int)) (unsubscribe func()) {
	m := (*Memory)(t)
	m.mu.Lock()
	m.tabRemoved = append(m.tabRemoved, fn)
	m.mu.Unlock()
	return func() {}
}

func (t *memoryTabs) OnUpdated(fn func(tabID int, changes Tab)) (unsubscribe func()) {
	m := (*Memory)(t)
	m.mu.Lock()
	m.tabUpdated = append(m.tabUpdated, fn)
	m.mu.Unlock()
	return func() {}
}

// FireActivated lets tests/demo code simulate a host tabs.onActivated
// event.
func (m *Memory) FireActivated(tabID int) {
	m.mu.Lock()
	handlers := append([]func(int){}, m.tabActivated...)
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(tabID)
	}
}

// FireRemoved lets tests/demo code simulate a host tabs.onRemoved
// event.
func (m *Memory) FireRemoved(tabID int) {
	m.mu.Lock()
	handlers := append([]func(int){}, m.tabRemoved...)
	delete(m.tabs, tabID)
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(tabID)
	}
}

// SeedTab registers a tab in the fake without firing any event —
// used by test setup to establish pre-existing tabs.
func (m *Memory) SeedTab(tab Tab) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tabs[tab.ID] = tab
}
