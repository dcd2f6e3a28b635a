/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	applog "postcanvas/internal/log"
)

// Watch observes the documents directory and invokes onChange with the
// document id whenever a document file is written or removed by another
// process. Temp files from our own transactional saves are filtered out.
// Watch blocks until ctx is cancelled.
func (w *Workspace) Watch(ctx context.Context, onChange func(docID string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Join(w.Root, DocumentsDirName)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	l := applog.WithComponent("store").With(slog.String("dir", dir))
	l.Info("watching documents")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, docFileSuffix) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			id := strings.TrimSuffix(name, docFileSuffix)
			l.Debug("document changed on disk", slog.String("doc", id), slog.String("op", ev.Op.String()))
			onChange(id)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.Warn("watch error", slog.Any("err", err))
		}
	}
}
