/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"pagebuilder/internal/domain"
)

// Run starts the full screen editor on doc and blocks until it quits or ctx
// is done. It returns the model so callers can inspect the final state.
func Run(ctx context.Context, doc domain.Document, opts Options) (*Model, error) {
	m := New(doc, opts)
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithReportFocus(),
	)
	if _, err := p.Run(); err != nil {
		m.shutdown()
		return m, fmt.Errorf("run terminal ui: %w", err)
	}
	return m, nil
}
