// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/latiju/wastectl/internal/autocomplete"
	"github.com/latiju/wastectl/internal/clierr"
	"github.com/latiju/wastectl/internal/config"
	"github.com/latiju/wastectl/internal/selection"
	"github.com/latiju/wastectl/internal/snackbar"
	"github.com/latiju/wastectl/pkg/wasteapi"
)

var (
	manifestsFilters wasteapi.Filters
	manifestsPreset  string
)

var manifestsCmd = &cobra.Command{
	Use:     "manifests",
	Aliases: []string{"ls"},
	Short:   "Browse, filter and delete manifests",
	Long: `Browse manifests interactively.

Keys:
  ↑/↓ j/k   move
  space     select the manifest under the cursor
  a         select or clear every manifest matching the filters
  d         delete the selected manifests (asks for confirmation)
  enter     show manifest detail
  /         edit filters (company, waste name and code autocomplete)
  x         clear filters
  I         open the import wizard
  r         reload
  q         quit

Examples:
  wastectl manifests
  wastectl manifests --preset unconfirmed
  wastectl manifests --company 台大 --from 2024-01-01
`,
	RunE: runManifests,
}

func init() {
	rootCmd.AddCommand(manifestsCmd)
	addFilterFlags(manifestsCmd, &manifestsFilters, &manifestsPreset)
}

// manifestsAPI is the backend surface the manifest browser uses.
type manifestsAPI interface {
	importAPI
	AllManifestIDs(ctx context.Context, f wasteapi.Filters) ([]wasteapi.ManifestKey, error)
	DeleteManifests(ctx context.Context, keys []wasteapi.ManifestKey) (int, error)
	ManifestDetail(ctx context.Context, key wasteapi.ManifestKey) (string, error)
	Autocomplete(ctx context.Context, field wasteapi.Field, query string) ([]wasteapi.Suggestion, error)
}

// Messages for the manifest browser
type manifestsLoadedMsg struct {
	gen  int
	keys []wasteapi.ManifestKey
	err  error
}

type manifestsDeletedMsg struct {
	keys    []wasteapi.ManifestKey
	deleted int
	err     error
}

type detailLoadedMsg struct {
	gen   int
	lines []string
	err   error
}

type manifestsKeyMap struct {
	Up, Down, Toggle, ToggleAll, Delete, Detail, Filter, ClearFilter, Import, Reload, Quit key.Binding
}

func (k manifestsKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.ToggleAll, k.Delete, k.Detail, k.Filter, k.Import, k.Quit}
}

func (k manifestsKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle, k.ToggleAll},
		{k.Delete, k.Detail, k.Filter, k.ClearFilter},
		{k.Import, k.Reload, k.Quit},
	}
}

var manifestsKeys = manifestsKeyMap{
	Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Toggle:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
	ToggleAll:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select all")),
	Delete:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Detail:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "detail")),
	Filter:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
	ClearFilter: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear filters")),
	Import:      key.NewBinding(key.WithKeys("I"), key.WithHelp("I", "import")),
	Reload:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

var (
	listCheckOn   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	listCheckOff  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	listCursor    = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	listTypeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
)

// ManifestsOptions configure the browser.
type ManifestsOptions struct {
	Wizard       WizardOptions
	Autocomplete autocomplete.Options
}

func manifestsOptionsFromConfig(c *config.Config) ManifestsOptions {
	return ManifestsOptions{
		Wizard: wizardOptionsFromConfig(c),
		Autocomplete: autocomplete.Options{
			Debounce:   c.Autocomplete.Debounce,
			QueryEmpty: c.Autocomplete.EmptyPolicy == config.EmptyQuery,
			Timeout:    c.Timeout,
		},
	}
}

// ManifestsModel is the bubbletea model for the manifest browser
type ManifestsModel struct {
	api    manifestsAPI
	opts   ManifestsOptions
	runlog *RunLogger

	filters   wasteapi.Filters
	fields    []autocomplete.Model
	filtering bool
	focus     int

	sel     *selection.Set
	cursor  int
	offset  int
	loading bool
	loadGen int
	loadErr error

	confirmDelete bool
	deleting      bool

	detailOpen bool
	detailGen  int
	detailKey  wasteapi.ManifestKey
	detailErr  error
	detail     viewport.Model

	wizard *ImportWizardModel

	spinner spinner.Model
	snack   snackbar.Model
	help    help.Model

	width  int
	height int
	quit   bool
}

// NewManifestsModel creates a browser over api starting with filters.
func NewManifestsModel(api manifestsAPI, opts ManifestsOptions, runlog *RunLogger, filters wasteapi.Filters) ManifestsModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	labels := map[wasteapi.Field]string{
		wasteapi.FieldCompanyName: "事業機構名稱",
		wasteapi.FieldWasteName:   "廢棄物名稱",
		wasteapi.FieldWasteCode:   "廢棄物代碼",
	}
	var fields []autocomplete.Model
	for _, f := range wasteapi.Fields {
		field := f
		lookup := func(ctx context.Context, q string) ([]string, error) {
			res, err := api.Autocomplete(ctx, field, q)
			if err != nil {
				return nil, err
			}
			out := make([]string, 0, len(res))
			for _, s := range res {
				if v := s.Display(field); v != "" {
					out = append(out, v)
				}
			}
			return out, nil
		}
		ac := autocomplete.New(string(field), labels[field], lookup, opts.Autocomplete)
		ac.SetValue(filters.Get(field))
		fields = append(fields, ac)
	}

	return ManifestsModel{
		api:     api,
		opts:    opts,
		runlog:  runlog,
		filters: filters,
		fields:  fields,
		sel:     selection.New(nil),
		loading: true,
		loadGen: 1,
		detail:  viewport.New(70, 14),
		spinner: s,
		snack:   snackbar.New(opts.Wizard.NotifyDuration),
		help:    help.New(),
		width:   80,
		height:  24,
	}
}

// Init initializes the model
func (m ManifestsModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

// Selection exposes the selection set, mainly for tests.
func (m ManifestsModel) Selection() *selection.Set { return m.sel }

func (m ManifestsModel) ctx() (context.Context, context.CancelFunc) {
	if t := m.opts.Wizard.Timeout; t > 0 {
		return context.WithTimeout(context.Background(), t)
	}
	return context.WithCancel(context.Background())
}

// load starts a new generation of the list request.
func (m *ManifestsModel) load() tea.Cmd {
	m.loadGen++
	m.loading = true
	return m.fetch()
}

func (m ManifestsModel) fetch() tea.Cmd {
	gen, api, filters := m.loadGen, m.api, m.filters
	ctx, cancel := m.ctx()
	return func() tea.Msg {
		defer cancel()
		keys, err := api.AllManifestIDs(ctx, filters)
		return manifestsLoadedMsg{gen: gen, keys: keys, err: err}
	}
}

// Update handles a message
func (m ManifestsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if closed, ok := msg.(wizardClosedMsg); ok {
		m.wizard = nil
		if closed.imported {
			cmd := m.load()
			return m, cmd
		}
		return m, nil
	}
	if m.wizard != nil {
		next, cmd := m.wizard.Update(msg)
		w := next.(ImportWizardModel)
		m.wizard = &w
		if _, isKey := msg.(tea.KeyMsg); isKey {
			return m, cmd
		}
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.detail.Width = max(msg.Width-4, 20)
		m.detail.Height = max(msg.Height-8, 4)
		m.help.Width = msg.Width

	case tea.KeyMsg:
		return m.handleKey(msg)

	case manifestsLoadedMsg:
		if msg.gen != m.loadGen {
			return m, nil
		}
		m.loading = false
		m.loadErr = msg.err
		if msg.err != nil {
			var cmd tea.Cmd
			m.snack, cmd = m.snack.Notify(clierr.Message(msg.err, "Loading manifests failed"), snackbar.Negative)
			return m, cmd
		}
		m.sel.Load(msg.keys)
		m.clampCursor()
		return m, nil

	case manifestsDeletedMsg:
		m.deleting = false
		var cmd tea.Cmd
		if msg.err != nil {
			m.snack, cmd = m.snack.Notify(clierr.Message(msg.err, "Delete failed, please try again"), snackbar.Negative)
			return m, cmd
		}
		m.runlog.Log("Deleted %d of %d selected manifests", msg.deleted, len(msg.keys))
		m.sel.Remove(msg.keys)
		m.sel.Clear()
		m.clampCursor()
		m.snack, cmd = m.snack.Notify(fmt.Sprintf("Deleted %d manifests", msg.deleted), snackbar.Positive)
		reload := m.load()
		return m, tea.Batch(cmd, reload)

	case detailLoadedMsg:
		if msg.gen != m.detailGen || !m.detailOpen {
			return m, nil
		}
		m.detailErr = msg.err
		if msg.err == nil {
			m.detail.SetContent(strings.Join(msg.lines, "\n"))
			m.detail.GotoTop()
		}
		return m, nil

	case autocomplete.ChangedMsg:
		m.setFilter(wasteapi.Field(msg.Name), msg.Value)
		cmds = append(cmds, m.load())
	}

	var cmd tea.Cmd
	for i := range m.fields {
		m.fields[i], cmd = m.fields[i].Update(msg)
		cmds = append(cmds, cmd)
	}
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)
	m.snack, cmd = m.snack.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *ManifestsModel) setFilter(field wasteapi.Field, value string) {
	m.filters.Set(field, strings.TrimSpace(value))
}

func (m *ManifestsModel) clampCursor() {
	if m.cursor >= m.sel.Len() {
		m.cursor = m.sel.Len() - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	rows := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

func (m ManifestsModel) listHeight() int {
	return max(m.height-10, 3)
}

func (m ManifestsModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmDelete {
		switch msg.String() {
		case "y", "Y":
			m.confirmDelete = false
			return m.deleteSelected()
		case "n", "N", "esc":
			m.confirmDelete = false
		}
		return m, nil
	}
	if m.detailOpen {
		switch msg.String() {
		case "esc", "q", "enter":
			m.detailOpen = false
			return m, nil
		}
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}
	if m.filtering {
		return m.handleFilterKey(msg)
	}

	switch {
	case key.Matches(msg, manifestsKeys.Quit):
		m.quit = true
		return m, tea.Quit
	case key.Matches(msg, manifestsKeys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.clampCursor()
		}
	case key.Matches(msg, manifestsKeys.Down):
		if m.cursor < m.sel.Len()-1 {
			m.cursor++
			m.clampCursor()
		}
	case key.Matches(msg, manifestsKeys.Toggle):
		if k, ok := m.current(); ok {
			m.sel.Toggle(k)
		}
	case key.Matches(msg, manifestsKeys.ToggleAll):
		m.sel.SetAll(!m.sel.AllSelected())
	case key.Matches(msg, manifestsKeys.Delete):
		if m.deleting {
			return m, nil
		}
		if m.sel.Count() == 0 {
			var cmd tea.Cmd
			m.snack, cmd = m.snack.Notify("Select manifests to delete first", snackbar.Info)
			return m, cmd
		}
		m.confirmDelete = true
	case key.Matches(msg, manifestsKeys.Detail):
		return m.openDetail()
	case key.Matches(msg, manifestsKeys.Filter):
		m.filtering = true
		m.focus = 0
		return m, m.fields[0].Focus()
	case key.Matches(msg, manifestsKeys.ClearFilter):
		m.filters = wasteapi.Filters{}
		for i := range m.fields {
			m.fields[i].SetValue("")
		}
		cmd := m.load()
		return m, cmd
	case key.Matches(msg, manifestsKeys.Import):
		opts := m.opts.Wizard
		opts.Embedded = true
		w := NewImportWizardModel(m.api, opts, m.runlog, "")
		w.width, w.height = m.width, m.height
		m.wizard = &w
		return m, w.Init()
	case key.Matches(msg, manifestsKeys.Reload):
		cmd := m.load()
		return m, cmd
	}
	return m, nil
}

func (m ManifestsModel) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.fields[m.focus]
	switch msg.String() {
	case "tab", "shift+tab":
		f.Blur()
		if msg.String() == "tab" {
			m.focus = (m.focus + 1) % len(m.fields)
		} else {
			m.focus = (m.focus + len(m.fields) - 1) % len(m.fields)
		}
		return m, m.fields[m.focus].Focus()
	case "esc":
		if f.Open() {
			break
		}
		f.Blur()
		m.filtering = false
		return m, nil
	case "enter":
		if f.Open() && len(f.Items()) > 0 {
			break
		}
		for i := range m.fields {
			m.setFilter(wasteapi.Field(m.fields[i].Name), m.fields[i].Value())
			m.fields[i].Blur()
		}
		m.filtering = false
		cmd := m.load()
		return m, cmd
	}
	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	return m, cmd
}

func (m ManifestsModel) current() (wasteapi.ManifestKey, bool) {
	rows := m.sel.Rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return wasteapi.ManifestKey{}, false
	}
	return rows[m.cursor], true
}

func (m ManifestsModel) deleteSelected() (tea.Model, tea.Cmd) {
	keys := m.sel.Selected()
	if len(keys) == 0 {
		return m, nil
	}
	m.deleting = true
	api := m.api
	ctx, cancel := m.ctx()
	return m, func() tea.Msg {
		defer cancel()
		n, err := api.DeleteManifests(ctx, keys)
		return manifestsDeletedMsg{keys: keys, deleted: n, err: err}
	}
}

func (m ManifestsModel) openDetail() (tea.Model, tea.Cmd) {
	k, ok := m.current()
	if !ok {
		return m, nil
	}
	m.detailOpen = true
	m.detailGen++
	m.detailKey = k
	m.detailErr = nil
	m.detail.SetContent("Loading...")

	gen, api := m.detailGen, m.api
	ctx, cancel := m.ctx()
	return m, func() tea.Msg {
		defer cancel()
		html, err := api.ManifestDetail(ctx, k)
		if err != nil {
			return detailLoadedMsg{gen: gen, err: err}
		}
		lines, err := wasteapi.DetailText(html)
		return detailLoadedMsg{gen: gen, lines: lines, err: err}
	}
}

// View renders the browser
func (m ManifestsModel) View() string {
	if m.quit {
		return ""
	}
	if m.wizard != nil {
		return m.wizard.View()
	}

	var b strings.Builder
	b.WriteString(wizardTitleStyle.Render("Manifests"))
	b.WriteString("\n")

	if m.detailOpen {
		b.WriteString(m.renderDetail())
	} else {
		b.WriteString(m.renderFilters())
		b.WriteString("\n\n")
		b.WriteString(m.renderList())
	}

	b.WriteString("\n")
	if m.confirmDelete {
		b.WriteString(wizardWarnStyle.Render(fmt.Sprintf("Delete %d selected manifests? [y/N]", m.sel.Count())))
	} else if !m.detailOpen && !m.filtering {
		b.WriteString(m.help.View(manifestsKeys))
	} else if m.filtering {
		b.WriteString(wizardDimStyle.Render("tab next field · enter apply · esc done"))
	} else {
		b.WriteString(wizardDimStyle.Render("esc back · ↑/↓ scroll"))
	}

	if v := m.snack.View(); v != "" {
		b.WriteString("\n\n")
		b.WriteString(v)
	}
	return b.String()
}

func (m ManifestsModel) renderFilters() string {
	var parts []string
	if m.filtering {
		for _, f := range m.fields {
			parts = append(parts, f.View())
		}
		return strings.Join(parts, "\n")
	}
	if m.filters.IsEmpty() {
		return wizardDimStyle.Render("No filters (press / to filter)")
	}
	return wizardDimStyle.Render("Filters: " + describeFilters(m.filters))
}

func (m ManifestsModel) renderList() string {
	if m.loading && m.sel.Len() == 0 {
		return m.spinner.View() + " Loading manifests..."
	}
	if m.loadErr != nil {
		return wizardErrorStyle.Render("Load failed: " + clierr.Message(m.loadErr, "unknown error"))
	}
	if m.sel.Len() == 0 {
		return wizardDimStyle.Render(clierr.NothingFound("manifests"))
	}

	var b strings.Builder
	all := listCheckOff.Render("[ ]")
	if m.sel.AllSelected() {
		all = listCheckOn.Render("[x]")
	}
	b.WriteString(fmt.Sprintf("%s all  %d manifests, %d selected", all, m.sel.Len(), m.sel.Count()))
	if m.loading {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n")

	rows := m.sel.Rows()
	end := min(m.offset+m.listHeight(), len(rows))
	for i := m.offset; i < end; i++ {
		k := rows[i]
		check := listCheckOff.Render("[ ]")
		if m.sel.IsSelected(k) {
			check = listCheckOn.Render("[x]")
		}
		line := fmt.Sprintf("%s %s  %-14s %s", check, listTypeStyle.Render(padRight(string(k.Type), 8)), k.ManifestID, k.WasteID)
		if i == m.cursor {
			line = listCursor.Render("▸ ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if end < len(rows) {
		b.WriteString(wizardDimStyle.Render(fmt.Sprintf("  ... %d more", len(rows)-end)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m ManifestsModel) renderDetail() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s / %s\n", typeLabel(m.detailKey.Type), m.detailKey.ManifestID, m.detailKey.WasteID))
	if m.detailErr != nil {
		b.WriteString(wizardErrorStyle.Render("Load failed: " + clierr.Message(m.detailErr, "please try again")))
		return b.String()
	}
	b.WriteString(wizardPaneStyle.Render(m.detail.View()))
	return b.String()
}

func runManifests(cmd *cobra.Command, args []string) error {
	filters, err := resolveFilters(manifestsFilters, manifestsPreset)
	if err != nil {
		return err
	}

	runlog, err := NewRunLogger(cfg.LogDir, "manifests", cfg.LogrusLevel())
	if err != nil {
		log.WithError(err).Warn("run log disabled")
	}
	defer runlog.Close()

	client, err := newClient(runlog.Logger())
	if err != nil {
		return err
	}

	m := NewManifestsModel(client, manifestsOptionsFromConfig(cfg), runlog, filters)
	start := time.Now()
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	runlog.Log("Session lasted %s", time.Since(start).Round(time.Second))
	if err != nil {
		return fmt.Errorf("run manifest browser: %w", err)
	}
	return nil
}
