/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package store persists documents on disk. Each document is one JSON file
// under <root>/documents; saves are transactional (temp file, fsync, rename)
// and keep a timestamped backup of the previous version, so a crash mid-save
// never leaves a half-written document and a corrupted file can fall back to
// its latest backup.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"postcanvas/internal/domain"
)

const (
	DocumentsDirName = "documents"
	BackupsDirName   = "backups"
	docFileSuffix    = ".json"
)

// ErrNotFound is returned when no document with the requested id exists.
var ErrNotFound = errors.New("document not found")

// Workspace is a directory holding the user's documents plus their backups
// and the preview index.
type Workspace struct {
	Root string
}

// Open ensures the workspace directory structure exists and returns a handle.
func Open(root string) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	for _, d := range []string{DocumentsDirName, BackupsDirName} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create workspace dir %s: %w", d, err)
		}
	}
	return &Workspace{Root: root}, nil
}

// DocumentPath returns the on-disk path of the document with the given id.
func (w *Workspace) DocumentPath(id string) string {
	return filepath.Join(w.Root, DocumentsDirName, id+docFileSuffix)
}

// Save writes the document transactionally, backing up the previous version
// first. The document is stored as written; callers bump UpdatedAt via Touch
// before saving.
func (w *Workspace) Save(doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return errors.New("document has no id")
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	data = append(data, '\n')

	path := w.DocumentPath(doc.ID)
	if _, statErr := os.Stat(path); statErr == nil {
		if err := w.backup(doc.ID, path); err != nil {
			return err
		}
	}

	// Temp file in the same directory so the rename stays on one filesystem.
	temp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.tmp-%d-%d", doc.ID, os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// Load reads the document with the given id. When the current file is
// missing or unparseable it falls back to the latest backup.
func (w *Workspace) Load(id string) (*domain.Document, error) {
	path := w.DocumentPath(id)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			doc, berr := w.loadLatestBackup(id)
			if berr != nil {
				return nil, ErrNotFound
			}
			return doc, nil
		}
		return nil, fmt.Errorf("read document: %w", err)
	}
	var doc domain.Document
	if uerr := json.Unmarshal(b, &doc); uerr != nil {
		fallback, berr := w.loadLatestBackup(id)
		if berr != nil {
			return nil, fmt.Errorf("parse document: %w; backup attempt: %v", uerr, berr)
		}
		return fallback, nil
	}
	return &doc, nil
}

// Delete removes the document file. Backups are kept.
func (w *Workspace) Delete(id string) error {
	err := os.Remove(w.DocumentPath(id))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

// List returns every readable document sorted by UpdatedAt descending.
// Unreadable files are skipped rather than failing the listing.
func (w *Workspace) List() ([]*domain.Document, error) {
	ents, err := os.ReadDir(filepath.Join(w.Root, DocumentsDirName))
	if err != nil {
		return nil, fmt.Errorf("read documents dir: %w", err)
	}
	var out []*domain.Document
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, docFileSuffix) || strings.HasPrefix(name, ".") {
			continue
		}
		doc, err := w.Load(strings.TrimSuffix(name, docFileSuffix))
		if err != nil {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (w *Workspace) backup(id, path string) error {
	stamp := time.Now().Format("20060102-150405.000000000")
	bpath := filepath.Join(w.Root, BackupsDirName, fmt.Sprintf("%s.%s.bak", id, stamp))
	if err := copyFile(path, bpath); err != nil {
		return fmt.Errorf("backup document %s: %w", id, err)
	}
	return nil
}

func (w *Workspace) loadLatestBackup(id string) (*domain.Document, error) {
	bdir := filepath.Join(w.Root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, id+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	// Timestamps in the names sort lexicographically.
	sort.Strings(candidates)
	for i := len(candidates) - 1; i >= 0; i-- {
		b, err := os.ReadFile(candidates[i])
		if err != nil {
			continue
		}
		var doc domain.Document
		if err := json.Unmarshal(b, &doc); err != nil {
			continue
		}
		return &doc, nil
	}
	return nil, errors.New("no readable backup")
}

// writeFileSync writes data and flushes it to disk before returning.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func copyFile(src, dst string) (err error) {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return writeFileSync(dst, b)
}
