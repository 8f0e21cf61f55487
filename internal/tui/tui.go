// Package tui is a read-only terminal viewer that shows a patch applied to its
// original, with inserted and deleted lines highlighted.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	glam "github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/termenv"

	"github.com/asynkron/strictpatch/internal/config"
	"github.com/asynkron/strictpatch/pkg/patch"
)

// Config selects the files shown by Run.
type Config struct {
	OriginalPath string
	PatchPath    string
	Color        config.ColorMode
	// Watch reloads the view whenever either file changes on disk.
	Watch bool
}

type document struct {
	rows  []Row
	stats Stats
	err   error
}

type loadedMsg struct{ doc document }
type fileChangedMsg struct{ name string }
type watchErrMsg struct{ err error }

// load reads both files and builds the annotated rows.
func load(originalPath, patchPath string) document {
	original, err := os.ReadFile(originalPath)
	if err != nil {
		return document{err: fmt.Errorf("read original: %w", err)}
	}
	diffText, err := os.ReadFile(patchPath)
	if err != nil {
		return document{err: fmt.Errorf("read patch: %w", err)}
	}
	diff, err := patch.Parse(string(diffText))
	if err != nil {
		return document{err: err}
	}
	rows, stats, err := BuildView(diff, string(original))
	return document{rows: rows, stats: stats, err: err}
}

func loadCmd(cfg Config) tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{doc: load(cfg.OriginalPath, cfg.PatchPath)}
	}
}

type styles struct {
	border    lipgloss.Style
	gutter    lipgloss.Style
	insert    lipgloss.Style
	delete    lipgloss.Style
	context   lipgloss.Style
	unchanged lipgloss.Style
	cursor    lipgloss.Style
	status    lipgloss.Style
	errPanel  lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		border:    lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")),
		gutter:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		insert:    lipgloss.NewStyle().Foreground(lipgloss.Color("70")),
		delete:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Strikethrough(true).Faint(true),
		context:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		unchanged: lipgloss.NewStyle().Foreground(lipgloss.Color("246")),
		cursor:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		status:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		errPanel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Foreground(lipgloss.Color("252")).
			PaddingLeft(1).
			PaddingRight(1),
	}
}

// renderRows draws rows with old and new line numbers in the gutter. The row
// at cursor gets a marker.
func renderRows(rows []Row, st styles, cursor int) string {
	var b strings.Builder
	for i, row := range rows {
		marker := " "
		if i == cursor {
			marker = st.cursor.Render(">")
		}
		b.WriteString(marker)
		b.WriteString(st.gutter.Render(fmt.Sprintf("%5s %5s │", lineLabel(row.OldLine), lineLabel(row.NewLine))))
		switch row.Kind {
		case RowInsert:
			b.WriteString(st.insert.Render("+" + row.Text))
		case RowDelete:
			b.WriteString(st.delete.Render("-" + row.Text))
		case RowContext:
			b.WriteString(st.context.Render(" " + row.Text))
		default:
			b.WriteString(st.unchanged.Render(" " + row.Text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func lineLabel(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprint(n)
}

type model struct {
	cfg    Config
	styles styles

	vp     viewport.Model
	spin   spinner.Model
	glam   *glam.TermRenderer
	width  int
	height int
	ready  bool

	loading bool
	doc     document
	header  string
	cursor  int
	status  string

	watcher *fsnotify.Watcher
}

func newModel(cfg Config, watcher *fsnotify.Watcher) *model {
	sp := spinner.New()
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	m := &model{
		cfg:     cfg,
		styles:  defaultStyles(),
		spin:    sp,
		loading: true,
		cursor:  -1,
		watcher: watcher,
	}
	_ = m.rebuildRenderer(80)
	return m
}

// rebuildRenderer recreates the glamour renderer with the given wrap width.
func (m *model) rebuildRenderer(wrap int) error {
	if wrap < 10 {
		wrap = 10
	}
	style := "dark"
	if m.cfg.Color == config.ColorNever {
		style = "notty"
	}
	r, err := glam.NewTermRenderer(
		glam.WithStylePath(style),
		glam.WithWordWrap(wrap),
	)
	if err != nil {
		return err
	}
	m.glam = r
	return nil
}

func (m *model) renderHeader() {
	if m.doc.err != nil {
		m.header = ""
		return
	}
	summary := Summary(filepath.Base(m.cfg.OriginalPath), m.doc.stats)
	if m.glam == nil {
		m.header = summary
		return
	}
	rendered, err := m.glam.Render(summary)
	if err != nil {
		m.header = summary
		return
	}
	m.header = strings.TrimRight(rendered, "\n")
}

func (m *model) refresh() {
	if m.doc.err != nil {
		message := m.doc.err.Error()
		var pe *patch.Error
		if errors.As(m.doc.err, &pe) {
			message = patch.FormatError(pe)
		}
		width := max(m.vp.Width-4, 1)
		m.vp.SetContent(m.styles.errPanel.Width(width).Render(message))
		return
	}
	m.vp.SetContent(renderRows(m.doc.rows, m.styles, m.cursor))
}

func (m *model) recalcLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.vp.Width = m.width - 2
	_ = m.rebuildRenderer(m.vp.Width - 2)
	m.renderHeader()
	headerHeight := 0
	if m.header != "" {
		headerHeight = lipgloss.Height(m.header)
	}
	// border (2) and status line (1)
	m.vp.Height = max(m.height-headerHeight-3, 3)
}

func (m *model) jump(index int) {
	if index < 0 {
		return
	}
	m.cursor = index
	m.refresh()
	m.vp.SetYOffset(max(index-m.vp.Height/3, 0))
}

func waitForChange(w *fsnotify.Watcher, names []string) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return nil
				}
				if event.Has(fsnotify.Chmod) {
					continue
				}
				for _, name := range names {
					if filepath.Clean(event.Name) == name {
						return fileChangedMsg{name: name}
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				return watchErrMsg{err: err}
			}
		}
	}
}

func (m *model) watchedNames() []string {
	return []string{filepath.Clean(m.cfg.OriginalPath), filepath.Clean(m.cfg.PatchPath)}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{loadCmd(m.cfg), m.spin.Tick}
	if cmd := waitForChange(m.watcher, m.watchedNames()); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if m.loading {
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		m.ready = true
		m.refresh()
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit
		case "n":
			m.jump(NextChange(m.doc.rows, m.cursor))
			return m, tea.Batch(cmds...)
		case "p", "N":
			from := m.cursor
			if from < 0 {
				from = len(m.doc.rows)
			}
			m.jump(PrevChange(m.doc.rows, from))
			return m, tea.Batch(cmds...)
		case "r":
			m.loading = true
			return m, tea.Batch(append(cmds, loadCmd(m.cfg), m.spin.Tick)...)
		}

	case loadedMsg:
		m.loading = false
		m.doc = msg.doc
		m.cursor = -1
		m.status = ""
		m.recalcLayout()
		m.refresh()
		return m, tea.Batch(cmds...)

	case fileChangedMsg:
		m.loading = true
		m.status = "reloading " + filepath.Base(msg.name)
		cmds = append(cmds, loadCmd(m.cfg), m.spin.Tick, waitForChange(m.watcher, m.watchedNames()))
		return m, tea.Batch(cmds...)

	case watchErrMsg:
		m.status = "watch error: " + msg.err.Error()
		return m, tea.Batch(cmds...)
	}

	m.vp, cmd = m.vp.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if !m.ready {
		return "Initializing…"
	}
	var b strings.Builder
	if m.header != "" {
		b.WriteString(m.header)
		b.WriteString("\n")
	}
	b.WriteString(m.styles.border.Render(m.vp.View()))
	b.WriteString("\n")

	status := "q quit · n/p next/previous change · r reload"
	if m.loading {
		status = m.spin.View() + " loading"
	}
	if m.status != "" {
		status += " · " + m.status
	}
	b.WriteString(m.styles.status.Render(status))
	return b.String()
}

func applyColorMode(mode config.ColorMode) {
	// Pinning the profile keeps lipgloss and termenv from querying the
	// terminal's background colour through stdin.
	switch mode {
	case config.ColorNever:
		lipgloss.SetColorProfile(termenv.Ascii)
	case config.ColorAlways:
		lipgloss.SetColorProfile(termenv.TrueColor)
	default:
		lipgloss.SetColorProfile(termenv.EnvColorProfile())
	}
	lipgloss.SetHasDarkBackground(true)
}

// Run shows the viewer until the user quits or ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	applyColorMode(cfg.Color)

	var watcher *fsnotify.Watcher
	if cfg.Watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer w.Close()
		dirs := map[string]bool{}
		for _, path := range []string{cfg.OriginalPath, cfg.PatchPath} {
			dir := filepath.Dir(filepath.Clean(path))
			if dirs[dir] {
				continue
			}
			dirs[dir] = true
			if err := w.Add(dir); err != nil {
				return fmt.Errorf("watching %s: %w", dir, err)
			}
		}
		watcher = w
	}

	p := tea.NewProgram(newModel(cfg, watcher), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
