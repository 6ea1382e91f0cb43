/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"pagebuilder/internal/backend"
	"pagebuilder/internal/config"
	"pagebuilder/internal/storage"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		addr   string
		memory bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the page API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = a.cfg.Backend.Addr
			}

			var store backend.Store
			switch {
			case memory || a.cfg.Backend.DatabaseURL == "":
				if !memory {
					a.log.Warn("no database configured; pages are kept in memory")
				}
				store = backend.NewMemStore()
			default:
				pg, err := backend.OpenPG(ctx, a.cfg.Backend.DatabaseURL)
				if err != nil {
					return err
				}
				defer func() { _ = pg.Close() }()
				store = pg
			}

			if url := a.cfg.Backend.RedisURL; url != "" {
				rdb, err := backend.NewRedisClient(url)
				if err != nil {
					return err
				}
				defer func() { _ = rdb.Close() }()
				store = backend.NewCachedStore(store, rdb, 0)
				a.log.Info("page cache enabled")
			}

			secret := os.Getenv("PB_TOKEN_SECRET")
			if secret == "" {
				a.log.Warn("PB_TOKEN_SECRET is not set; using the development signing secret")
			}
			srv := backend.NewServer(store, backend.ServerOptions{
				Secret: secret,
				Logger: a.log.With(slog.String("component", "api")),
			})
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&memory, "memory", false, "keep pages in memory instead of PostgreSQL")
	return cmd
}

func (a *app) client() *backend.Client {
	return backend.NewClient(a.cfg.Backend.BaseURL, a.token, a.cfg.Backend.Timeout())
}

func (a *app) loginCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Obtain an API token and store it in the OS keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := a.client().Login(cmd.Context(), subject, ttl)
			if err != nil {
				return err
			}
			if err := config.Save(a.cfg, tok); err != nil {
				return err
			}
			a.token = tok
			fmt.Fprintln(a.out, "Logged in to", a.cfg.Backend.BaseURL)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "as", "", "subject the token is issued for")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API token",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := config.ClearToken(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func (a *app) remoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Work with pages stored on the page API",
	}
	cmd.AddCommand(a.remoteListCmd(), a.pushCmd(), a.pullCmd(), a.remoteExportCmd())
	return cmd
}

func (a *app) remoteListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List remote pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pages, err := a.client().ListPages(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range pages {
				fmt.Fprintf(a.out, "%s  v%-3d %-20s %s\n", p.ID, p.Version, p.Name, p.UpdatedAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}
}

// pushCmd uploads a local page. With --id it replaces that remote page at
// its current version, otherwise a new remote page is created.
func (a *app) pushCmd() *cobra.Command {
	var name, id string
	cmd := &cobra.Command{
		Use:   "push <dir>",
		Short: "Upload a local page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := storage.Open(absDir(args[0]))
			if err != nil {
				return err
			}
			c := a.client()
			ctx := cmd.Context()
			if id != "" {
				remote, err := c.GetPage(ctx, id)
				if err != nil {
					return err
				}
				p, err := c.UpdatePage(ctx, remote.ID, ph.Document, remote.Version)
				if errors.Is(err, backend.ErrConflict) {
					return fmt.Errorf("%s changed while uploading; retry: %w", id, err)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Updated %s to version %d\n", p.ID, p.Version)
				return nil
			}
			if name == "" {
				name = filepath.Base(ph.Root)
			}
			p, err := c.CreatePage(ctx, name, ph.Document)
			if err != nil {
				return err
			}
			a.log.Info("pushed page", slog.String("local", ph.ID), slog.String("remote", p.ID))
			fmt.Fprintf(a.out, "Created remote page %s\n", p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "remote page name (default: directory name)")
	cmd.Flags().StringVar(&id, "id", "", "remote page to update")
	return cmd
}

func (a *app) pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <id> <dir>",
		Short: "Download a remote page into a local directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.client().GetPage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			root := absDir(args[1])
			ph, err := storage.Open(root)
			if err != nil {
				ph, err = storage.InitPage(root, p.Document)
				if err != nil {
					return err
				}
			} else {
				ph.Document = p.Document
				if err := storage.Save(ph); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.out, "Pulled %s (version %d) into %s\n", p.ID, p.Version, ph.Root)
			return nil
		},
	}
}

func (a *app) remoteExportCmd() *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Render a remote page on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = args[0] + "." + format
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := a.client().Export(cmd.Context(), args[0], format, f); err != nil {
				_ = f.Close()
				_ = os.Remove(out)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Exported", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "png", "output format: png or pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	return cmd
}
