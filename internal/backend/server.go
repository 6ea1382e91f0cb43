/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pagebuilder/internal/command"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
	"pagebuilder/internal/export"
	"pagebuilder/internal/registry"
	"pagebuilder/internal/storage"
	"pagebuilder/internal/version"
)

const maxBody = 4 << 20

// devSecret signs tokens when no secret is configured.
const devSecret = "dev-secret-change-me"

// ServerOptions configures a Server.
type ServerOptions struct {
	// Secret signs bearer tokens. Empty uses an insecure development secret.
	Secret   string
	Registry *registry.Registry
	Logger   *slog.Logger
	// RequestTimeout bounds each request; zero means 30s.
	RequestTimeout time.Duration
}

// Server is the HTTP page API.
type Server struct {
	store  Store
	secret string
	reg    *registry.Registry
	log    *slog.Logger
	router chi.Router
	now    func() time.Time
}

func NewServer(store Store, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = registry.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	s := &Server{store: store, secret: opts.Secret, reg: opts.Registry, log: opts.Logger, now: time.Now}
	if s.secret == "" {
		s.secret = devSecret
		s.log.Warn("auth secret not set; using insecure dev secret")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.handleReady)
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(version.String()))
	})
	r.Post("/api/auth/token", s.handleToken)

	r.Route("/api/pages", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Put("/", s.handleUpdate)
			r.Delete("/", s.handleDelete)
			r.Post("/commands", s.handleCommand)
			r.Get("/export.{format}", s.handleExport)
		})
	})
	s.router = r
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("page api listening", slog.String("addr", addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := s.now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("took", time.Since(start)),
			slog.String("req_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store not ready"))
		return
	}
	_, _ = w.Write([]byte("ready"))
}

// POST /api/auth/token {subject, ttl_seconds} → {token, expires_at}
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject    string `json:"subject"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = json.Unmarshal(b, &req)
	if req.Subject == "" {
		req.Subject = "dev"
	}
	if req.TTLSeconds <= 0 || req.TTLSeconds > 24*3600 {
		req.TTLSeconds = 3600
	}
	exp := s.now().Add(time.Duration(req.TTLSeconds) * time.Second)
	tok, err := signToken(s.secret, req.Subject, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListPages(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type createRequest struct {
	Name     string          `json:"name"`
	Document json.RawMessage `json:"document"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	doc := domain.NewDocument(800, 600)
	if len(req.Document) > 0 {
		var err error
		if doc, err = storage.ParseDocument(req.Document); err != nil {
			s.fail(w, err)
			return
		}
	}
	p, err := s.store.CreatePage(r.Context(), NewPage{Name: req.Name, Owner: Subject(r.Context()), Document: doc})
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("ETag", strconv.FormatInt(p.Version, 10))
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("ETag", strconv.FormatInt(p.Version, 10))
	writeJSON(w, http.StatusOK, p)
}

// PUT /api/pages/{id} with the document as body. An If-Match header carrying
// the expected version turns the write into a compare-and-swap.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	doc, err := storage.ParseDocument(body)
	if err != nil {
		s.fail(w, err)
		return
	}
	ifVersion, err := ifMatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := s.store.UpdatePage(r.Context(), chi.URLParam(r, "id"), doc, ifVersion)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("ETag", strconv.FormatInt(p.Version, 10))
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeletePage(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CommandRequest applies one editor command to a stored page. Focus lists the
// block indices to select first; every other block is unfocused.
type CommandRequest struct {
	Name  string `json:"name"`
	Focus []int  `json:"focus"`
}

// commandsOverHTTP are the commands that act on a selection without pointer input.
var commandsOverHTTP = map[string]bool{
	command.PlaceTop:    true,
	command.PlaceBottom: true,
	command.Delete:      true,
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if !commandsOverHTTP[req.Name] {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", command.ErrUnknownCommand, req.Name))
		return
	}
	p, err := s.store.GetPage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	doc := p.Document.Clone()
	for _, b := range doc.Blocks {
		b.Focus = false
	}
	for _, i := range req.Focus {
		if i < 0 || i >= len(doc.Blocks) {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: index %d", editor.ErrNoBlock, i))
			return
		}
		doc.Blocks[i].Focus = true
	}

	ed := editor.New(doc, editor.Options{Registry: s.reg, Logger: s.log})
	defer ed.Close()
	if err := ed.Invoke(req.Name); err != nil {
		s.fail(w, err)
		return
	}
	p, err = s.store.UpdatePage(r.Context(), p.ID, ed.Document(), p.Version)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("ETag", strconv.FormatInt(p.Version, 10))
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	scale := 1.0
	if v := r.URL.Query().Get("scale"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 8 {
			scale = f
		}
	}
	opt := export.Options{Registry: s.reg, Scale: scale, IncludeGuides: r.URL.Query().Get("guides") != "0"}
	switch chi.URLParam(r, "format") {
	case "png":
		w.Header().Set("Content-Type", "image/png")
		err = export.WritePNG(w, p.Document, opt)
	case "pdf":
		w.Header().Set("Content-Type", "application/pdf")
		err = export.WritePDF(w, p.Document, opt)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown export format"))
		return
	}
	if err != nil {
		s.log.Warn("export failed", slog.String("id", p.ID), slog.Any("err", err))
	}
}

func ifMatch(r *http.Request) (int64, error) {
	v := r.Header.Get("If-Match")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(trimQuotes(v), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid If-Match %q", v)
	}
	return n, nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// fail maps store and validation errors to status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, storage.ErrInvalidDocument), errors.Is(err, command.ErrInvalidArgs):
		writeError(w, http.StatusBadRequest, err)
	default:
		s.log.Error("request failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
