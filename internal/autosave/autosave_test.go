/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package autosave

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsSaves(t *testing.T) {
	var calls int32
	s := New(time.Second, func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.After(3 * time.Second)
	for atomic.LoadInt32(&calls) == 0 {
		select {
		case <-deadline:
			t.Fatalf("no autosave within 3s")
		case <-time.After(50 * time.Millisecond):
		}
	}
	if err := s.LastErr(); err != nil {
		t.Fatalf("LastErr = %v, want nil", err)
	}
}

func TestSchedulerRecordsFailure(t *testing.T) {
	wantErr := errors.New("disk full")
	var calls int32
	s := New(time.Second, func() error {
		atomic.AddInt32(&calls, 1)
		return wantErr
	})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.After(3 * time.Second)
	for atomic.LoadInt32(&calls) == 0 {
		select {
		case <-deadline:
			t.Fatalf("no autosave within 3s")
		case <-time.After(50 * time.Millisecond):
		}
	}
	if err := s.LastErr(); !errors.Is(err, wantErr) {
		t.Fatalf("LastErr = %v, want %v", err, wantErr)
	}
}

func TestStartTwiceAndStop(t *testing.T) {
	s := New(time.Second, func() error { return nil })
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	s.Stop()
	s.Stop() // idempotent
}
