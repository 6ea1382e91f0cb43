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
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pagebuilder/internal/config"
	applog "pagebuilder/internal/log"
	"pagebuilder/internal/version"
)

// app is the state shared by all subcommands once the root pre-run has loaded it.
type app struct {
	cfg     config.AppConfig
	token   string
	log     *slog.Logger
	verbose bool
	out     io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{out: os.Stdout}
	root := &cobra.Command{
		Use:           "pagebuilder",
		Short:         "Drag and drop page builder",
		Long:          "pagebuilder edits page documents: blocks from a component palette placed on a fixed size canvas.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetVersionTemplate("Page Builder {{.Version}}\n")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.newCmd(),
		a.openCmd(),
		a.validateCmd(),
		a.exportCmd(),
		a.editCmd(),
		a.historyCmd(),
		a.restoreCmd(),
		a.serveCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.remoteCmd(),
		a.versionCmd(),
	)
	return root
}

// setup loads the configuration and initializes logging. The terminal editor
// owns the screen, so its console output is discarded unless a log file is set.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, token, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg, a.token = cfg, token
	a.out = cmd.OutOrStdout()

	opts := applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Writer:    cmd.ErrOrStderr(),
	}
	if a.verbose {
		opts.Level = "debug"
	}
	if cmd.Name() == "edit" {
		opts.Writer = io.Discard
	}
	applog.Init(opts)
	a.log = applog.WithComponent("cli")
	a.log.Debug("start", slog.String("cmd", cmd.Name()))
	return nil
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			fmt.Fprintln(a.out, "Page Builder")
			fmt.Fprintln(a.out, version.String())
			return nil
		},
	}
}

func absDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}
