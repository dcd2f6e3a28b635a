/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend talks to the optional share service: an HTTP gallery of
// published documents plus a Postgres full-text search over their text
// content. Everything here sits behind the enable_share config flag; the
// editor is fully functional without it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal HTTP client for the share gallery API.
type Client struct {
	BaseURL string
	Token   string // bearer token from the OS keyring
	client  *http.Client
}

// NewClient creates a client. baseURL may include a trailing slash; it is
// normalized. A zero timeout defaults to 10s.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// SharedDocument is the gallery's projection of a published document.
type SharedDocument struct {
	ID        int64     `json:"id"`
	StableID  string    `json:"stable_id"`
	Name      string    `json:"name"`
	Format    string    `json:"format"`
	Theme     string    `json:"theme"`
	Pages     int       `json:"pages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListShared returns the documents visible to the token's account.
func (c *Client) ListShared(ctx context.Context) ([]SharedDocument, error) {
	var list []SharedDocument
	if err := c.doJSON(ctx, http.MethodGet, "/api/documents", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// PublishRequest uploads a document's metadata and extracted text for
// gallery listing and server-side search. Rendered pages travel separately
// as share-preset PNG exports.
type PublishRequest struct {
	StableID string `json:"stable_id"`
	Name     string `json:"name"`
	Format   string `json:"format"`
	Theme    string `json:"theme"`
	Pages    int    `json:"pages"`
	RawText  string `json:"raw_text"`
}

// Publish creates or updates the shared copy of a document and returns its
// gallery projection.
func (c *Client) Publish(ctx context.Context, req PublishRequest) (*SharedDocument, error) {
	var doc SharedDocument
	if err := c.doJSON(ctx, http.MethodPost, "/api/documents", req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
