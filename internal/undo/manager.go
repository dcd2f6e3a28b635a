/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps per-page edit history as serialized graph snapshots.
package undo

import (
	"sync"
	"time"
)

// Snapshot is one reversible state of a page: the page's serialized graph at
// a point in time. The blob is opaque to the manager.
type Snapshot struct {
	PageID string
	Blob   []byte
	TS     time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; oldest entries across all pages are pruned
	// when exceeded.
	MaxBytes int
	// MaxPerPage limits snapshots kept per page (0 means unlimited).
	MaxPerPage int
	// MinInterval coalesces snapshots captured within the interval for the
	// same page, replacing the previous one instead of pushing a new entry.
	// Rapid drags produce one history entry, not hundreds.
	MinInterval time.Duration
}

// Manager provides an in-memory undo/redo stack per page. Safe for
// concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex

	undo map[string][]Snapshot
	redo map[string][]Snapshot

	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	return &Manager{cfg: cfg, undo: make(map[string][]Snapshot), redo: make(map[string][]Snapshot)}
}

// Push records a snapshot for a page. Within MinInterval of the previous
// snapshot of the same page it replaces that one. Any push invalidates the
// page's redo stack.
func (m *Manager) Push(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[s.PageID]
	if n := len(stack); n > 0 {
		last := stack[n-1]
		if s.TS.Sub(last.TS) < m.cfg.MinInterval {
			m.totalBytes -= len(last.Blob)
			m.totalBytes += len(s.Blob)
			stack[n-1] = s
			m.undo[s.PageID] = stack
			m.redo[s.PageID] = nil
			m.enforceCapsLocked(s.PageID)
			return
		}
	}
	stack = append(stack, s)
	m.undo[s.PageID] = stack
	m.totalBytes += len(s.Blob)
	m.redo[s.PageID] = nil
	m.enforceCapsLocked(s.PageID)
}

// Undo pops the page's latest snapshot onto its redo stack and returns it.
func (m *Manager) Undo(pageID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[pageID]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[pageID] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	m.redo[pageID] = append(m.redo[pageID], s)
	return s, true
}

// Redo pops from the page's redo stack back onto undo and returns it.
func (m *Manager) Redo(pageID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[pageID]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[pageID] = r[:len(r)-1]
	m.undo[pageID] = append(m.undo[pageID], s)
	m.totalBytes += len(s.Blob)
	m.enforceCapsLocked(pageID)
	return s, true
}

// ClearPage drops both stacks of a page, freeing its memory. Called when a
// page is removed or its scene is disposed for good.
func (m *Manager) ClearPage(pageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[pageID] {
		m.totalBytes -= len(s.Blob)
	}
	delete(m.undo, pageID)
	delete(m.redo, pageID)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, pages int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pages = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, pages, totalSnapshots
}

func (m *Manager) enforceCapsLocked(pageID string) {
	if m.cfg.MaxPerPage > 0 {
		stack := m.undo[pageID]
		if len(stack) > m.cfg.MaxPerPage {
			toDrop := len(stack) - m.cfg.MaxPerPage
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= len(stack[i].Blob)
			}
			m.undo[pageID] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune oldest across all pages.
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldestPage := ""
		oldestIdx := -1
		var oldestTS time.Time
		for page, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if oldestIdx == -1 || stack[0].TS.Before(oldestTS) {
				oldestPage = page
				oldestIdx = 0
				oldestTS = stack[0].TS
			}
		}
		if oldestIdx == -1 {
			break
		}
		stack := m.undo[oldestPage]
		m.totalBytes -= len(stack[0].Blob)
		m.undo[oldestPage] = stack[1:]
		if len(m.undo[oldestPage]) == 0 {
			delete(m.undo, oldestPage)
		}
	}
}
