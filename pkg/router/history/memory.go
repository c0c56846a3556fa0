// Package history provides an in-memory browser-history medium for routers
// running outside a browser: tests, server-side drivers and headless hosts.
package history

import "sync"

// Memory is a session history stack. PushState drops forward entries like a
// browser does; Back, Forward and Go move through the stack and fire the
// pop-state listeners.
type Memory struct {
	mu        sync.Mutex
	entries   []string
	index     int
	listeners []func()
}

// NewMemory creates a history whose only entry is initial.
func NewMemory(initial string) *Memory {
	return &Memory{entries: []string{initial}}
}

// PushState appends path after the current entry.
func (m *Memory) PushState(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries[:m.index+1], path)
	m.index = len(m.entries) - 1
}

// ReplaceState overwrites the current entry.
func (m *Memory) ReplaceState(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.index] = path
}

// CurrentPath returns the current entry.
func (m *Memory) CurrentPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.index]
}

// OnPopState registers fn to run after Back, Forward or Go.
func (m *Memory) OnPopState(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Back moves one entry back. It reports false at the start of the stack.
func (m *Memory) Back() bool {
	return m.Go(-1)
}

// Forward moves one entry forward. It reports false at the end of the stack.
func (m *Memory) Forward() bool {
	return m.Go(1)
}

// Go moves delta entries and fires the pop-state listeners. Moves past
// either end are ignored and report false.
func (m *Memory) Go(delta int) bool {
	m.mu.Lock()
	next := m.index + delta
	if delta == 0 || next < 0 || next >= len(m.entries) {
		m.mu.Unlock()
		return false
	}
	m.index = next
	listeners := append([]func(){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return true
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Entries returns a copy of the stack and the current index.
func (m *Memory) Entries() ([]string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.entries...), m.index
}
