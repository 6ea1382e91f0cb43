/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pagebuilder/internal/crash"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/export"
	"pagebuilder/internal/selection"
	"pagebuilder/internal/storage"
	"pagebuilder/internal/telemetry"
	"pagebuilder/internal/tui"
)

func (a *app) newCmd() *cobra.Command {
	var width, height float64
	cmd := &cobra.Command{
		Use:   "new <dir>",
		Short: "Create a new empty page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := absDir(args[0])
			if width <= 0 {
				width = a.cfg.Canvas.Width
			}
			if height <= 0 {
				height = a.cfg.Canvas.Height
			}
			a.log.Info("init page", slog.String("root", root), slog.Float64("width", width), slog.Float64("height", height))
			ph, err := storage.InitPage(root, domain.NewDocument(width, height))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created page %s at %s\n", ph.ID, ph.Root)
			return nil
		},
	}
	cmd.Flags().Float64Var(&width, "width", 0, "canvas width in pixels (default from config)")
	cmd.Flags().Float64Var(&height, "height", 0, "canvas height in pixels (default from config)")
	return cmd
}

func (a *app) openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <dir>",
		Short: "Open a page and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := storage.Open(absDir(args[0]))
			if err != nil {
				return err
			}
			doc := ph.Document
			snap := selection.Compute(doc.Blocks)
			fmt.Fprintf(a.out, "Page:      %s\n", ph.ID)
			fmt.Fprintf(a.out, "Root:      %s\n", ph.Root)
			fmt.Fprintf(a.out, "Canvas:    %gx%g\n", doc.Container.Width, doc.Container.Height)
			fmt.Fprintf(a.out, "Blocks:    %d\n", len(doc.Blocks))
			fmt.Fprintf(a.out, "Focused:   %d\n", len(snap.Focused))
			for i, b := range doc.Blocks {
				w, h := b.Size()
				fmt.Fprintf(a.out, "  %2d %-10s left=%g top=%g z=%d size=%gx%g\n", i, b.Key, b.Left, b.Top, b.ZIndex, w, h)
			}
			return nil
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a page document against the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := storage.ValidateDocument(data); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "OK")
			return nil
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var (
		format string
		out    string
		scale  float64
		guides bool
	)
	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Render a page to PNG or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := storage.Open(absDir(args[0]))
			if err != nil {
				return err
			}
			format = strings.ToLower(format)
			if out == "" {
				out = "page." + format
			}
			opt := export.Options{Scale: scale, IncludeGuides: guides}
			switch format {
			case "png":
				err = export.ExportPNG(ph, out, opt)
			case "pdf":
				err = export.ExportPDF(ph, out, opt)
			default:
				return fmt.Errorf("unsupported format %q (want png or pdf)", format)
			}
			if err != nil {
				return err
			}
			a.log.Info("exported", slog.String("format", format), slog.String("out", out))
			fmt.Fprintln(a.out, "Exported", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "png", "output format: png or pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file; relative paths go to the page's exports folder")
	cmd.Flags().Float64Var(&scale, "scale", 1, "output units per canvas pixel")
	cmd.Flags().BoolVar(&guides, "guides", true, "draw the container outline")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <dir>",
		Short: "List stored snapshots of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := storage.Open(absDir(args[0]))
			if err != nil {
				return err
			}
			snaps, err := storage.ListSnapshots(cmd.Context(), ph, limit)
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Fprintln(a.out, "No snapshots")
				return nil
			}
			for _, s := range snaps {
				fmt.Fprintf(a.out, "%6d  %s  %-9s %d blocks\n", s.ID, s.TS.Local().Format(time.DateTime), s.Label, s.Blocks)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of snapshots")
	return cmd
}

func (a *app) restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <dir> <snapshot-id>",
		Short: "Replace page.json with a stored snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("snapshot id: %w", err)
			}
			ph, err := storage.Open(absDir(args[0]))
			if err != nil {
				return err
			}
			s, err := storage.LoadSnapshot(cmd.Context(), ph, id)
			if err != nil {
				return err
			}
			doc, err := s.Document()
			if err != nil {
				return err
			}
			ph.Document = doc
			if err := storage.Save(ph); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Restored snapshot %d (%s) into %s\n", s.ID, s.Label, ph.PagePath)
			return nil
		},
	}
}

func (a *app) editCmd() *cobra.Command {
	var preview bool
	cmd := &cobra.Command{
		Use:   "edit <dir>",
		Short: "Edit a page in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := storage.Open(absDir(args[0]))
			if err != nil {
				return err
			}

			tcfg := telemetry.FromEnv()
			tcfg.OptIn = tcfg.OptIn || a.cfg.General.TelemetryOptIn
			tel := telemetry.New(tcfg)
			prev := telemetry.SetDefault(tel)
			defer func() {
				tel.Flush(cmd.Context())
				tel.Close()
				telemetry.SetDefault(prev)
			}()

			w, err := storage.NewWatcher(ph)
			if err != nil {
				a.log.Warn("page watcher unavailable", slog.Any("err", err))
				w = nil
			} else {
				defer func() { _ = w.Close() }()
			}
			auto := storage.NewAutosaver(ph, storage.AutosaveOptions{
				MinInterval: a.cfg.Editor.AutosaveInterval(),
				Keep:        a.cfg.Storage.SnapshotKeep,
			})

			var m *tui.Model
			defer crash.Recover(ph, func() domain.Document {
				if m == nil {
					return ph.Document
				}
				return m.Editor().Document()
			})

			opts := tui.Options{
				Handle:        ph,
				Autosave:      auto,
				Watcher:       w,
				Telemetry:     tel,
				SnapThreshold: a.cfg.Editor.SnapThreshold,
				HistoryLimit:  a.cfg.Editor.HistoryLimit,
				Preview:       preview || a.cfg.Editor.Preview,
			}
			tel.Event("session_start", map[string]any{"blocks": len(ph.Document.Blocks)})
			m, err = tui.Run(cmd.Context(), ph.Document, opts)
			if m != nil {
				if m.Dirty() {
					fmt.Fprintln(a.out, "Unsaved changes were kept as an autosave snapshot; see `pagebuilder history`.")
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "start in read-only preview mode")
	return cmd
}
