/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenDB opens the share service's Postgres database through the pgx stdlib
// driver.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// SearchQuery filters the shared-documents search.
type SearchQuery struct {
	Text   string // full-text query over extracted document text
	Format string // optional: "post" or "story"
	Theme  string // optional theme name
	Limit  int
	Offset int
}

// SearchResult is one matching shared document.
type SearchResult struct {
	DocID   int64
	Name    string
	Format  string
	Snippet string
}

// SearchShared runs a tsvector search over the shared documents table.
// An empty Text lists documents filtered by format/theme only.
func SearchShared(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if text := strings.TrimSpace(q.Text); text != "" {
		p := place(text)
		b.WriteString("SELECT d.id, d.name, d.format, ")
		b.WriteString("COALESCE(ts_headline('simple', COALESCE(d.raw_text,''), plainto_tsquery('simple', " + p + "), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') AS snippet ")
		b.WriteString("FROM shared_documents d WHERE d.search_vector @@ plainto_tsquery('simple', " + p + ") ")
	} else {
		b.WriteString("SELECT d.id, d.name, d.format, '' AS snippet FROM shared_documents d WHERE TRUE ")
	}

	if f := strings.TrimSpace(q.Format); f != "" {
		b.WriteString(" AND d.format = " + place(f) + " ")
	}
	if t := strings.TrimSpace(q.Theme); t != "" {
		b.WriteString(" AND d.theme = " + place(t) + " ")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY d.updated_at DESC, d.id ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search shared query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.DocID, &r.Name, &r.Format, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
