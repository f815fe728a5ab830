// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/latiju/wastectl/internal/config"
	"github.com/latiju/wastectl/internal/importflow"
	"github.com/latiju/wastectl/internal/simprogress"
	"github.com/latiju/wastectl/internal/snackbar"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

// importAPI is the part of the backend client the wizard needs.
type importAPI interface {
	Import(ctx context.Context, up wasteapi.Upload) (*wasteapi.ImportResponse, error)
	ResolveConflicts(ctx context.Context, session wasteapi.ImportSession, res wasteapi.Resolution, applyToAll bool) (*wasteapi.ImportResponse, error)
	CancelImport(ctx context.Context, session wasteapi.ImportSession) (*wasteapi.ImportResponse, error)
}

// WizardOptions are the timings and limits the wizard runs with.
type WizardOptions struct {
	Limits         importflow.Limits
	Timeout        time.Duration
	NotifyDuration time.Duration
	ProgressTick   time.Duration
	CloseDelay     time.Duration
	// Embedded wizards report wizardClosedMsg instead of quitting.
	Embedded bool
}

// wizardOptionsFromConfig maps the resolved configuration onto the wizard.
func wizardOptionsFromConfig(c *config.Config) WizardOptions {
	return WizardOptions{
		Limits: importflow.Limits{
			MaxBytes:          c.Import.MaxBytes,
			AllowedExtensions: c.Import.AllowedExtensions,
		},
		Timeout:        c.Timeout,
		NotifyDuration: c.UI.NotifyDuration,
		ProgressTick:   c.UI.ProgressTick,
		CloseDelay:     c.Import.SuccessCloseDelay,
	}
}

// Messages for the import wizard
type wizardUploadMsg struct {
	ticket importflow.Ticket
	resp   *wasteapi.ImportResponse
	err    error
}

type wizardSubmitMsg struct {
	ticket importflow.Ticket
	resp   *wasteapi.ImportResponse
	err    error
}

type wizardAutoCloseMsg struct {
	seq int
}

// wizardClosedMsg tells an embedding model the wizard is gone.
type wizardClosedMsg struct {
	imported bool
}

type wizardKeyMap struct {
	Upload     key.Binding
	ToggleType key.Binding
	Prev       key.Binding
	Next       key.Binding
	Skip       key.Binding
	Replace    key.Binding
	Cancel     key.Binding
	ApplyAll   key.Binding
	Resolve    key.Binding
	Retry      key.Binding
	Close      key.Binding
}

func (k wizardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Upload, k.ToggleType, k.Close}
}

func (k wizardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Upload, k.ToggleType, k.Close}}
}

// conflictHelp lists the bindings shown while resolving conflicts.
type conflictHelp struct{ k wizardKeyMap }

func (c conflictHelp) ShortHelp() []key.Binding {
	return []key.Binding{c.k.Prev, c.k.Next, c.k.Skip, c.k.Replace, c.k.Cancel, c.k.ApplyAll, c.k.Resolve, c.k.Close}
}

func (c conflictHelp) FullHelp() [][]key.Binding { return [][]key.Binding{c.ShortHelp()} }

var wizardKeys = wizardKeyMap{
	Upload:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "upload")),
	ToggleType: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "disposal/reuse")),
	Prev:       key.NewBinding(key.WithKeys("left", "p"), key.WithHelp("←/p", "prev")),
	Next:       key.NewBinding(key.WithKeys("right", "n"), key.WithHelp("→/n", "next")),
	Skip:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip")),
	Replace:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "replace")),
	Cancel:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel import")),
	ApplyAll:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "apply to all")),
	Resolve:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "resolve")),
	Retry:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
	Close:      key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "close")),
}

// Import wizard styles
var (
	wizardTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Background(lipgloss.Color("236")).
				Padding(0, 1).
				MarginBottom(1)

	wizardPaneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	wizardSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("212")).
				Bold(true)

	wizardDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	wizardDiffStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	wizardErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196"))

	wizardSuccessStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("82"))

	wizardWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// ImportWizardModel is the bubbletea model for the import wizard
type ImportWizardModel struct {
	wiz    *importflow.Wizard
	api    importAPI
	opts   WizardOptions
	runlog *RunLogger

	path     textinput.Model
	progress simprogress.Model
	snack    snackbar.Model
	diff     viewport.Model
	help     help.Model

	confirmClose  bool
	confirmCancel bool
	closeSeq      int
	// last is the result of the most recent successful import.
	last importflow.Result

	width  int
	height int
	quit   bool
}

// NewImportWizardModel creates a wizard, optionally with a file path typed in.
func NewImportWizardModel(api importAPI, opts WizardOptions, runlog *RunLogger, initialPath string) ImportWizardModel {
	ti := textinput.New()
	ti.Prompt = "File: "
	ti.Placeholder = "path/to/manifests.csv"
	ti.CharLimit = 512
	ti.Width = 50
	ti.Cursor.SetMode(cursor.CursorStatic)
	ti.SetValue(initialPath)
	ti.Focus()

	return ImportWizardModel{
		wiz:      importflow.New(opts.Limits),
		api:      api,
		opts:     opts,
		runlog:   runlog,
		path:     ti,
		progress: simprogress.New(opts.ProgressTick),
		snack:    snackbar.New(opts.NotifyDuration),
		diff:     viewport.New(70, 12),
		help:     help.New(),
		width:    80,
		height:   24,
	}
}

// Init initializes the model
func (m ImportWizardModel) Init() tea.Cmd {
	return nil
}

// Wizard exposes the state machine, mainly for tests.
func (m ImportWizardModel) Wizard() *importflow.Wizard { return m.wiz }

// LastResult is the outcome of the last import that succeeded.
func (m ImportWizardModel) LastResult() importflow.Result { return m.last }

func (m ImportWizardModel) requestCtx() (context.Context, context.CancelFunc) {
	if m.opts.Timeout > 0 {
		return context.WithTimeout(context.Background(), m.opts.Timeout)
	}
	return context.WithCancel(context.Background())
}

// Update handles a message
func (m ImportWizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.diff.Width = max(msg.Width-6, 20)
		m.diff.Height = max(msg.Height-14, 4)
		m.help.Width = msg.Width

	case tea.KeyMsg:
		return m.handleKey(msg)

	case wizardUploadMsg:
		if !m.wiz.ApplyUploadResult(msg.ticket, msg.resp, msg.err) {
			return m, nil
		}
		return m.afterResult()

	case wizardSubmitMsg:
		if !m.wiz.ApplySubmitResult(msg.ticket, msg.resp, msg.err) {
			return m, nil
		}
		return m.afterResult()

	case wizardAutoCloseMsg:
		if msg.seq == m.closeSeq && m.wiz.State() == importflow.Success {
			return m.close()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.progress, cmd = m.progress.Update(msg)
	cmds = append(cmds, cmd)
	m.snack, cmd = m.snack.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m ImportWizardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmClose {
		switch msg.String() {
		case "y", "Y":
			m.confirmClose = false
			return m.close()
		case "n", "N", "esc":
			m.confirmClose = false
		}
		return m, nil
	}
	if m.confirmCancel {
		switch msg.String() {
		case "y", "Y":
			m.confirmCancel = false
			return m.submit(importflow.Decision{Resolution: wasteapi.Cancel, ApplyToAll: true})
		case "n", "N", "esc":
			m.confirmCancel = false
		}
		return m, nil
	}

	if key.Matches(msg, wizardKeys.Close) {
		if m.wiz.RequestClose() == importflow.NeedsConfirm {
			m.confirmClose = true
			return m, nil
		}
		return m.close()
	}

	switch m.wiz.State() {
	case importflow.Idle, importflow.FileSelected:
		return m.handleFileKey(msg)

	case importflow.ConflictPending, importflow.ResolvingConflicts:
		return m.handleConflictKey(msg)

	case importflow.Failed:
		if key.Matches(msg, wizardKeys.Retry) && m.path.Value() == filePath(m.wiz.File()) {
			return m.retry()
		}
		return m.handleFileKey(msg)

	case importflow.Success:
		if key.Matches(msg, wizardKeys.Upload) {
			return m.close()
		}
	}
	// Uploading and Submitting ignore everything but close.
	return m, nil
}

func filePath(f *importflow.File) string {
	if f == nil {
		return ""
	}
	return f.Path
}

func (m ImportWizardModel) handleFileKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, wizardKeys.ToggleType):
		next := wasteapi.Reuse
		if m.wiz.ImportType() == wasteapi.Reuse {
			next = wasteapi.Disposal
		}
		if err := m.wiz.SetImportType(next); err != nil {
			text := err.Error()
			if errors.Is(err, importflow.ErrWrongState) {
				text = fmt.Sprintf("This import is already %s; choose a file again to change it", m.wiz.ImportType())
			}
			var cmd tea.Cmd
			m.snack, cmd = m.snack.Notify(text, snackbar.Info)
			return m, cmd
		}
		return m, nil

	case key.Matches(msg, wizardKeys.Upload):
		path := strings.TrimSpace(m.path.Value())
		if err := m.wiz.SelectFile(path); err != nil {
			var cmd tea.Cmd
			m.snack, cmd = m.snack.Notify(err.Error(), snackbar.Negative)
			return m, cmd
		}
		return m.upload()
	}

	var cmd tea.Cmd
	m.path, cmd = m.path.Update(msg)
	return m, cmd
}

func (m ImportWizardModel) upload() (tea.Model, tea.Cmd) {
	ticket, up, err := m.wiz.BeginUpload()
	if err != nil {
		return m, nil
	}
	m.runlog.LogFile(m.wiz.File(), up.Type)
	m.snack = m.snack.Close()

	var progressCmd tea.Cmd
	m.progress.Label = "Uploading " + up.FileName
	m.progress, progressCmd = m.progress.Start()

	api := m.api
	ctx, cancel := m.requestCtx()
	return m, tea.Batch(progressCmd, func() tea.Msg {
		defer cancel()
		resp, err := api.Import(ctx, up)
		return wizardUploadMsg{ticket: ticket, resp: resp, err: err}
	})
}

func (m ImportWizardModel) handleConflictKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, wizardKeys.Prev):
		m.wiz.Prev()
		m.refreshDiff()
	case key.Matches(msg, wizardKeys.Next):
		if m.wiz.Next() == importflow.ReachedEnd {
			return m.resolve()
		}
		m.refreshDiff()
	case key.Matches(msg, wizardKeys.Skip):
		m.wiz.SetChoice(wasteapi.Skip)
	case key.Matches(msg, wizardKeys.Replace):
		m.wiz.SetChoice(wasteapi.Replace)
	case key.Matches(msg, wizardKeys.Cancel):
		m.wiz.SetChoice(wasteapi.Cancel)
	case key.Matches(msg, wizardKeys.ApplyAll):
		m.wiz.SetApplyToAll(!m.wiz.ApplyToAll())
	case key.Matches(msg, wizardKeys.Resolve):
		return m.resolve()
	default:
		var cmd tea.Cmd
		m.diff, cmd = m.diff.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ImportWizardModel) resolve() (tea.Model, tea.Cmd) {
	d, err := m.wiz.Finalize()
	if err != nil {
		return m, nil
	}
	if d.NeedsConfirm {
		m.confirmCancel = true
		return m, nil
	}
	return m.submit(d)
}

func (m ImportWizardModel) choiceCounts() map[string]int {
	counts := make(map[string]int)
	for i := range m.wiz.Records() {
		counts[string(m.wiz.Choice(i))]++
	}
	return counts
}

func (m ImportWizardModel) submit(d importflow.Decision) (tea.Model, tea.Cmd) {
	counts := m.choiceCounts()
	ticket, session, err := m.wiz.BeginSubmit(d)
	if err != nil {
		return m, nil
	}
	m.runlog.LogDecision(counts, d)

	var progressCmd tea.Cmd
	m.progress.Label = "Resolving conflicts"
	if d.Resolution == wasteapi.Cancel {
		m.progress.Label = "Cancelling import"
	}
	m.progress, progressCmd = m.progress.Start()

	api := m.api
	ctx, cancel := m.requestCtx()
	return m, tea.Batch(progressCmd, func() tea.Msg {
		defer cancel()
		var resp *wasteapi.ImportResponse
		var err error
		if d.Resolution == wasteapi.Cancel {
			resp, err = api.CancelImport(ctx, session)
		} else {
			resp, err = api.ResolveConflicts(ctx, session, d.Resolution, d.ApplyToAll)
		}
		return wizardSubmitMsg{ticket: ticket, resp: resp, err: err}
	})
}

// afterResult updates progress and notifications for the state a response left.
func (m ImportWizardModel) afterResult() (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.wiz.State() {
	case importflow.Success:
		m.progress = m.progress.Complete()
		r := m.wiz.Result()
		m.runlog.LogResult(r, "", nil)
		if r.Cancelled {
			m.snack, cmd = m.snack.Notify("Import cancelled, nothing was imported", snackbar.Info)
		} else {
			m.snack, cmd = m.snack.Notify(successText(r), snackbar.Positive)
		}
		m.closeSeq++
		seq := m.closeSeq
		return m, tea.Batch(cmd, tea.Tick(m.opts.CloseDelay, func(time.Time) tea.Msg {
			return wizardAutoCloseMsg{seq: seq}
		}))

	case importflow.ConflictPending:
		m.progress = m.progress.Reset()
		m.runlog.LogConflicts(m.wiz.Records())
		m.refreshDiff()
		m.snack, cmd = m.snack.Notify(fmt.Sprintf("%d records conflict with stored manifests", len(m.wiz.Records())), snackbar.Info)

	case importflow.Failed:
		m.progress = m.progress.Reset()
		m.runlog.LogResult(importflow.Result{}, m.wiz.Failure(), m.wiz.Err())
		m.snack, cmd = m.snack.Notify(m.wiz.Failure(), snackbar.Negative)
	}
	return m, cmd
}

func successText(r importflow.Result) string {
	if r.Message != "" {
		return r.Message
	}
	return fmt.Sprintf("Imported %d, skipped %d of %d", r.Imported, r.Skipped, r.Total)
}

func (m ImportWizardModel) retry() (tea.Model, tea.Cmd) {
	if err := m.wiz.Retry(); err != nil {
		return m, nil
	}
	m.snack = m.snack.Close()
	switch m.wiz.State() {
	case importflow.FileSelected:
		return m.upload()
	case importflow.ResolvingConflicts:
		m.refreshDiff()
	}
	return m, nil
}

func (m ImportWizardModel) close() (tea.Model, tea.Cmd) {
	imported := m.wiz.State() == importflow.Success && !m.wiz.Result().Cancelled
	if m.wiz.State() == importflow.Success {
		m.last = m.wiz.Result()
	}
	m.wiz.Close()
	m.progress = m.progress.Reset()
	m.snack = m.snack.Close()
	m.confirmClose, m.confirmCancel = false, false
	m.closeSeq++
	if m.opts.Embedded {
		return m, func() tea.Msg { return wizardClosedMsg{imported: imported} }
	}
	m.quit = true
	return m, tea.Quit
}

// refreshDiff renders the current record's field comparison into the viewport.
func (m *ImportWizardModel) refreshDiff() {
	records := m.wiz.Records()
	if len(records) == 0 {
		m.diff.SetContent("")
		return
	}
	rec := records[m.wiz.Cursor()]
	rows := importflow.Diff(rec)

	fieldW := 6
	existingW := 8
	for _, r := range rows {
		fieldW = max(fieldW, lipgloss.Width(r.Field))
		existingW = max(existingW, lipgloss.Width(r.Existing))
	}

	var b strings.Builder
	b.WriteString(wizardDimStyle.Render(fmt.Sprintf("%s  %s  %s",
		padRight("Field", fieldW), padRight("Existing", existingW), "New")))
	b.WriteString("\n")
	for _, r := range rows {
		line := fmt.Sprintf("%s  %s  %s", padRight(r.Field, fieldW), padRight(r.Existing, existingW), r.New)
		if r.Differs {
			line = wizardDiffStyle.Render(line + "  ≠")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	m.diff.SetContent(strings.TrimRight(b.String(), "\n"))
	m.diff.GotoTop()
}

// padRight pads s with spaces to display width w.
func padRight(s string, w int) string {
	if gap := w - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

// View renders the wizard
func (m ImportWizardModel) View() string {
	if m.quit {
		return ""
	}

	var b strings.Builder
	b.WriteString(wizardTitleStyle.Render("Import manifests"))
	b.WriteString("\n")

	switch m.wiz.State() {
	case importflow.ConflictPending, importflow.ResolvingConflicts:
		b.WriteString(m.renderConflicts())
	case importflow.Uploading, importflow.Submitting:
		b.WriteString(m.renderFileInfo())
		b.WriteString("\n\n")
		b.WriteString(m.progress.View())
	case importflow.Success:
		b.WriteString(m.renderSuccess())
	default:
		b.WriteString(m.renderFileInfo())
		b.WriteString("\n")
		if m.wiz.State() == importflow.Failed {
			b.WriteString("\n")
			b.WriteString(wizardErrorStyle.Render("✗ " + m.wiz.Failure()))
			b.WriteString("\n")
			b.WriteString(wizardDimStyle.Render("Press r to retry, or edit the path and press enter"))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.confirmClose:
		b.WriteString(wizardWarnStyle.Render("A request is still running. Close anyway? [y/N]"))
	case m.confirmCancel:
		b.WriteString(wizardWarnStyle.Render("Cancel discards the whole import. Continue? [y/N]"))
	case m.wiz.State() == importflow.ConflictPending || m.wiz.State() == importflow.ResolvingConflicts:
		b.WriteString(m.help.View(conflictHelp{wizardKeys}))
	default:
		b.WriteString(m.help.View(wizardKeys))
	}

	if v := m.snack.View(); v != "" {
		b.WriteString("\n\n")
		b.WriteString(v)
	}
	return b.String()
}

func (m ImportWizardModel) renderFileInfo() string {
	var b strings.Builder
	b.WriteString(m.path.View())
	b.WriteString("\n")
	typ := m.wiz.ImportType()
	for _, t := range []wasteapi.ManifestType{wasteapi.Disposal, wasteapi.Reuse} {
		label := "( ) " + typeLabel(t)
		if t == typ {
			b.WriteString(wizardSelectedStyle.Render("(•) " + typeLabel(t)))
		} else {
			b.WriteString(wizardDimStyle.Render(label))
		}
		b.WriteString("  ")
	}
	if f := m.wiz.File(); f != nil {
		b.WriteString("\n")
		info := fmt.Sprintf("%s, %d bytes", f.Name, f.Size)
		if f.Converted {
			info += ", converted from spreadsheet"
		}
		b.WriteString(wizardDimStyle.Render(info))
	}
	return b.String()
}

func typeLabel(t wasteapi.ManifestType) string {
	if t == wasteapi.Reuse {
		return "再利用 reuse"
	}
	return "清除 disposal"
}

func (m ImportWizardModel) renderConflicts() string {
	records := m.wiz.Records()
	i := m.wiz.Cursor()
	rec := records[i]

	var b strings.Builder
	b.WriteString(wizardWarnStyle.Render(fmt.Sprintf("Conflict %d of %d", i+1, len(records))))
	b.WriteString("  ")
	b.WriteString(fmt.Sprintf("聯單 %s / 廢棄物 %s", rec.ManifestID, rec.WasteID))
	if rec.CompanyName != "" {
		b.WriteString(wizardDimStyle.Render("  " + rec.CompanyName))
	}
	b.WriteString("\n")
	b.WriteString(wizardPaneStyle.Render(m.diff.View()))
	b.WriteString("\n")

	choice := m.wiz.Choice(i)
	for _, c := range []wasteapi.Resolution{wasteapi.Skip, wasteapi.Replace, wasteapi.Cancel} {
		if c == choice {
			b.WriteString(wizardSelectedStyle.Render("[x] " + string(c)))
		} else {
			b.WriteString(wizardDimStyle.Render("[ ] " + string(c)))
		}
		b.WriteString("  ")
	}
	if m.wiz.ApplyToAll() {
		b.WriteString(wizardSelectedStyle.Render("apply to all: on"))
	} else {
		b.WriteString(wizardDimStyle.Render("apply to all: off"))
	}
	b.WriteString("\n")

	if d, err := m.wiz.Finalize(); err == nil {
		note := fmt.Sprintf("Will submit: %s", d.Resolution)
		if d.Mixed {
			note += " (choices differ, so every conflicting record is skipped)"
		}
		b.WriteString(wizardDimStyle.Render(note))
		b.WriteString("\n")
	}
	return b.String()
}

func (m ImportWizardModel) renderSuccess() string {
	r := m.wiz.Result()
	if r.Cancelled {
		return wizardWarnStyle.Render("Import cancelled. Nothing was imported.") + "\n"
	}
	var b strings.Builder
	b.WriteString(wizardSuccessStyle.Render("✓ " + successText(r)))
	b.WriteString("\n")
	b.WriteString(wizardDimStyle.Render(fmt.Sprintf("imported %d · skipped %d · total %d", r.Imported, r.Skipped, r.Total)))
	b.WriteString("\n")
	b.WriteString(m.progress.View())
	b.WriteString("\n")
	return b.String()
}
