/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pagebuilder/internal/domain"
)

// ErrUnauthorized is returned when the server rejects the bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// Client talks to the page API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a client. baseURL may include a trailing slash; it will be
// normalized. A zero timeout means 10s.
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

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, header http.Header, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
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
		return statusError(method, u.Path, resp)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if w, ok := dest.(io.Writer); ok {
		_, err = io.Copy(w, resp.Body)
		return err
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func statusError(method, path string, resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	var base error
	switch resp.StatusCode {
	case http.StatusNotFound:
		base = ErrNotFound
	case http.StatusConflict:
		base = ErrConflict
	case http.StatusUnauthorized:
		base = ErrUnauthorized
	}
	msg := body.Error
	if msg == "" {
		msg = resp.Status
	}
	if base != nil {
		return fmt.Errorf("server %s %s: %w: %s", method, path, base, msg)
	}
	return fmt.Errorf("server %s %s: %s", method, path, msg)
}

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

// Login asks the server for a bearer token and stores it on the client.
func (c *Client) Login(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	body, err := jsonBody(map[string]any{"subject": subject, "ttl_seconds": int64(ttl / time.Second)})
	if err != nil {
		return "", err
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/token", body, nil, &resp); err != nil {
		return "", err
	}
	c.Token = resp.Token
	return resp.Token, nil
}

func (c *Client) ListPages(ctx context.Context) ([]PageMeta, error) {
	var list []PageMeta
	if err := c.do(ctx, http.MethodGet, "/api/pages", nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) GetPage(ctx context.Context, id string) (Page, error) {
	var p Page
	err := c.do(ctx, http.MethodGet, "/api/pages/"+url.PathEscape(id), nil, nil, &p)
	return p, err
}

func (c *Client) CreatePage(ctx context.Context, name string, doc domain.Document) (Page, error) {
	body, err := jsonBody(map[string]any{"name": name, "document": doc})
	if err != nil {
		return Page{}, err
	}
	var p Page
	err = c.do(ctx, http.MethodPost, "/api/pages", body, nil, &p)
	return p, err
}

// UpdatePage replaces the page document. A non-zero ifVersion is sent as If-Match.
func (c *Client) UpdatePage(ctx context.Context, id string, doc domain.Document, ifVersion int64) (Page, error) {
	data, err := domain.Marshal(doc)
	if err != nil {
		return Page{}, err
	}
	h := http.Header{}
	if ifVersion > 0 {
		h.Set("If-Match", strconv.FormatInt(ifVersion, 10))
	}
	var p Page
	err = c.do(ctx, http.MethodPut, "/api/pages/"+url.PathEscape(id), bytes.NewReader(data), h, &p)
	return p, err
}

func (c *Client) DeletePage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/pages/"+url.PathEscape(id), nil, nil, nil)
}

// ApplyCommand runs placeTop, placeBottom or delete on the server with the
// given blocks focused.
func (c *Client) ApplyCommand(ctx context.Context, id, name string, focus []int) (Page, error) {
	body, err := jsonBody(CommandRequest{Name: name, Focus: focus})
	if err != nil {
		return Page{}, err
	}
	var p Page
	err = c.do(ctx, http.MethodPost, "/api/pages/"+url.PathEscape(id)+"/commands", body, nil, &p)
	return p, err
}

// Export streams the page rendered as "png" or "pdf" into w.
func (c *Client) Export(ctx context.Context, id, format string, w io.Writer) error {
	return c.do(ctx, http.MethodGet, "/api/pages/"+url.PathEscape(id)+"/export."+format, nil, nil, w)
}
