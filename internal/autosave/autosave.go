/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package autosave periodically flushes the active document to the store.
package autosave

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	applog "postcanvas/internal/log"
)

// SaveFunc flushes the current editing state. It runs on the scheduler
// goroutine; implementations serialize the live graph and hand it to the
// store.
type SaveFunc func() error

// Scheduler runs the save function on a fixed interval.
type Scheduler struct {
	interval time.Duration
	save     SaveFunc
	log      *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	lastErr error
}

// New builds a scheduler; intervals below one second are clamped to one
// second.
func New(interval time.Duration, save SaveFunc) *Scheduler {
	if interval < time.Second {
		interval = time.Second
	}
	return &Scheduler{
		interval: interval,
		save:     save,
		log:      applog.WithComponent("autosave"),
	}
}

// Start begins the periodic saves. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("schedule autosave: %w", err)
	}
	c.Start()
	s.cron = c
	s.log.Info("autosave started", slog.Duration("interval", s.interval))
	return nil
}

// Stop halts the schedule and waits for an in-flight save to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
		s.log.Info("autosave stopped")
	}
}

// LastErr returns the error of the most recent save attempt, nil when it
// succeeded.
func (s *Scheduler) LastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Scheduler) run() {
	err := s.save()
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("autosave failed", slog.Any("err", err))
	}
}
