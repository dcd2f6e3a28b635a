/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	applog "postcanvas/internal/log"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores ephemeral per-workspace data under the root.
	IndexDirName  = ".postcanvas"
	IndexFileName = "index.sqlite"
)

// IndexPath returns the full path of the workspace's preview database.
func (w *Workspace) IndexPath() string {
	return filepath.Join(w.Root, IndexDirName, IndexFileName)
}

// OpenIndex opens (creating if needed) the preview cache database with WAL
// mode enabled. Callers close it when done.
func (w *Workspace) OpenIndex(ctx context.Context) (*sql.DB, error) {
	l := applog.WithComponent("store")
	if err := os.MkdirAll(filepath.Join(w.Root, IndexDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(w.IndexPath()))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		l.Warn("enable WAL failed", slog.Any("err", err))
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS previews (
		id          INTEGER PRIMARY KEY,
		doc_id      TEXT    NOT NULL,
		page_id     TEXT    NOT NULL,
		w           INTEGER NOT NULL DEFAULT 0,
		h           INTEGER NOT NULL DEFAULT 0,
		blob        BLOB,
		size        INTEGER NOT NULL DEFAULT 0,
		updated_at  TEXT    NOT NULL,
		last_access TEXT
	);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure previews table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS ux_previews_key ON previews(doc_id, page_id, w, h)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create previews index: %w", err)
	}
	_, _ = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_previews_access ON previews(last_access)`)
	return db, nil
}

// GetPreview returns the cached preview PNG for a page at the given size and
// touches its access time. A nil slice without error means cache miss.
func (w *Workspace) GetPreview(ctx context.Context, docID, pageID string, pw, ph int) ([]byte, error) {
	db, err := w.OpenIndex(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var blob []byte
	err = db.QueryRowContext(ctx,
		`SELECT blob FROM previews WHERE doc_id=? AND page_id=? AND w=? AND h=?`,
		docID, pageID, pw, ph).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preview: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, _ = db.ExecContext(ctx,
		`UPDATE previews SET last_access=? WHERE doc_id=? AND page_id=? AND w=? AND h=?`,
		now, docID, pageID, pw, ph)
	return blob, nil
}

// PutPreview upserts a preview blob and evicts least-recently-used entries
// past the cache cap.
func (w *Workspace) PutPreview(ctx context.Context, docID, pageID string, pw, ph int, blob []byte) error {
	db, err := w.OpenIndex(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.ExecContext(ctx, `INSERT INTO previews(doc_id,page_id,w,h,blob,size,updated_at,last_access)
		VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(doc_id,page_id,w,h) DO UPDATE SET blob=excluded.blob, size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		docID, pageID, pw, ph, blob, len(blob), now, now); err != nil {
		return fmt.Errorf("upsert preview: %w", err)
	}
	if capBytes := maxPreviewBytes(); capBytes > 0 {
		return evictPreviewsToFit(ctx, db, capBytes)
	}
	return nil
}

// DropPreviews removes every cached preview of a document, used when the
// document is deleted or its pages change shape.
func (w *Workspace) DropPreviews(ctx context.Context, docID string) error {
	db, err := w.OpenIndex(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, `DELETE FROM previews WHERE doc_id=?`, docID); err != nil {
		return fmt.Errorf("drop previews: %w", err)
	}
	return nil
}

// evictPreviewsToFit deletes least-recently-used rows until the total size
// fits capBytes.
func evictPreviewsToFit(ctx context.Context, db *sql.DB, capBytes int64) error {
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM previews`).Scan(&total); err != nil {
		return fmt.Errorf("sum previews size: %w", err)
	}
	if total <= capBytes {
		return nil
	}
	rows, err := db.QueryContext(ctx, `SELECT id, size FROM previews ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END ASC, last_access ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []int64
	cur := total
	for rows.Next() {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		victims = append(victims, id)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// Close the cursor before writing.
	if err := rows.Close(); err != nil {
		return err
	}
	for _, id := range victims {
		if _, err := db.ExecContext(ctx, `DELETE FROM previews WHERE id=?`, id); err != nil {
			return fmt.Errorf("evict preview %d: %w", id, err)
		}
	}
	return nil
}

// maxPreviewBytes reads PCV_PREVIEWS_MAX_BYTES, defaulting to 64MB.
func maxPreviewBytes() int64 {
	const def = 64 * 1024 * 1024
	v := os.Getenv("PCV_PREVIEWS_MAX_BYTES")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
