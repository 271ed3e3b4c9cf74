package ui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yildizm/nginx-config-viewer/internal/viewer"
)

// DefaultTitle is shown in the header when Options.Title is empty.
const DefaultTitle = "nginx.conf"

const loadingText = "Loading nginx configuration..."

// Model is the read-only config view. It follows the loader state, reloads
// on every signal from the event stream and re-renders on scheme changes.
type Model struct {
	ctx    context.Context
	scope  *viewer.Scope
	bridge *bridge

	loader *viewer.Loader
	sub    *viewer.Subscription
	theme  *viewer.ThemeContext

	title       string
	noColor     bool
	highlighter *Highlighter
	styles      *Styles

	// State mirrored from the observers.
	snap viewer.Snapshot
	conn viewer.ConnState
	mode viewer.ThemeMode

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model

	width    int
	height   int
	ready    bool
	quitting bool
}

// NewModel mounts the view. The stream subscription starts right away and
// lives until Close; the initial load starts with Init.
func NewModel(ctx context.Context, opts Options) (*Model, error) {
	if opts.Loader == nil {
		return nil, errors.New("ui: a loader is required")
	}
	if opts.Theme == nil {
		opts.Theme = viewer.NewThemeContext("")
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}

	ctx, cancel := context.WithCancel(ctx)
	m := &Model{
		ctx:         ctx,
		scope:       viewer.NewScope(),
		bridge:      newBridge(),
		loader:      opts.Loader,
		theme:       opts.Theme,
		title:       opts.Title,
		noColor:     opts.NoColor,
		highlighter: NewHighlighter(opts.NoColor),
		snap:        opts.Loader.Snapshot(),
		conn:        viewer.ConnClosed,
		mode:        opts.Theme.Mode(),
		keys:        newKeyMap(),
		help:        help.New(),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		viewport:    viewport.New(0, 0),
	}
	m.scope.Add(viewer.Disposer(cancel))

	if opts.Listener != nil {
		m.sub = opts.Listener.Subscribe(ctx)
		m.scope.AddCloser(m.sub)
		m.scope.Add(m.sub.OnState(func(s viewer.ConnState) {
			m.bridge.send(connStateMsg{state: s})
		}))
		// Read after registering so no transition falls in between.
		m.conn = m.sub.State()
	}

	m.scope.Add(m.loader.OnChange(func(s viewer.Snapshot) {
		m.bridge.send(snapshotMsg{snap: s})
	}))
	m.scope.Add(m.theme.Subscribe(func(mode viewer.ThemeMode) {
		m.bridge.send(themeMsg{mode: mode})
	}))
	m.scope.Add(m.bridge.close)

	m.applyTheme()
	return m, nil
}

// Init starts the first load and the observer loops.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		loadCommand(m.ctx, m.loader),
		waitForUpdate(m.bridge),
		m.spinner.Tick,
	}
	if m.sub != nil {
		cmds = append(cmds, waitForSignal(m.sub))
	}
	return tea.Batch(cmds...)
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case snapshotMsg:
		return m.handleSnapshot(msg.snap)

	case connStateMsg:
		m.conn = msg.state
		return m, waitForUpdate(m.bridge)

	case themeMsg:
		m.mode = msg.mode
		m.applyTheme()
		return m, waitForUpdate(m.bridge)

	case signalMsg:
		return m, tea.Batch(loadCommand(m.ctx, m.loader), waitForSignal(m.sub))

	case streamEndedMsg:
		return m, nil

	case spinner.TickMsg:
		// The spinner only shows while loading; let the tick loop end.
		if m.snap.State != viewer.StateLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Reload):
		return m, loadCommand(m.ctx, m.loader)

	case key.Matches(msg, m.keys.Theme):
		// Notify from a command: observers answer through the bridge,
		// which the program loop has to be free to drain.
		next := m.mode.Toggle()
		return m, func() tea.Msg {
			m.theme.Notify(viewer.ColorSchemeChange{ColorScheme: next.String()})
			return nil
		}

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleSnapshot(s viewer.Snapshot) (tea.Model, tea.Cmd) {
	// Notifications can be overtaken by a later one on their way here.
	if s.Seq < m.snap.Seq {
		return m, waitForUpdate(m.bridge)
	}
	wasLoading := m.snap.State == viewer.StateLoading
	m.snap = s
	if s.State == viewer.StateLoaded {
		m.renderContent()
	}
	if s.State == viewer.StateLoading && !wasLoading {
		return m, tea.Batch(waitForUpdate(m.bridge), m.spinner.Tick)
	}
	return m, waitForUpdate(m.bridge)
}

// applyTheme rebuilds styles for the current mode and re-highlights.
func (m *Model) applyTheme() {
	m.styles = GetStyles(ThemeFor(m.mode), m.noColor)
	m.spinner.Style = m.styles.Spinner
	m.renderContent()
}

func (m *Model) renderContent() {
	text, err := m.highlighter.Render(m.snap.Content, m.styles.Theme)
	if err != nil {
		text = m.snap.Content
	}
	m.viewport.SetContent(text)
}

func (m *Model) layout() {
	if !m.ready {
		return
	}
	bodyHeight := m.height - lipgloss.Height(m.headerView()) - lipgloss.Height(m.footerView())
	m.viewport.Width = m.width
	m.viewport.Height = max(0, bodyHeight)
	m.renderContent()
}

// View renders the model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.bodyView(),
		m.footerView(),
	)
}

func (m *Model) headerView() string {
	left := strings.Join([]string{
		m.styles.Title.Render(m.title),
		m.styles.Source.Render(m.loader.Endpoint()),
		m.styles.Badge.Render("readonly"),
	}, " ")

	right := ""
	if m.sub != nil {
		right = m.styles.ConnStyle(m.conn).Render("● " + m.conn.String())
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return m.styles.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m *Model) bodyView() string {
	body := lipgloss.NewStyle().Height(m.viewport.Height)

	switch m.snap.State {
	case viewer.StateLoading:
		return body.Render(m.spinner.View() + " " + m.styles.Muted.Render(loadingText))
	case viewer.StateError:
		return body.Render(m.styles.Error.Render("Error: " + m.snap.Message()))
	default:
		return m.viewport.View()
	}
}

func (m *Model) footerView() string {
	return m.styles.Muted.Render(m.help.View(m.keys))
}

// Snapshot returns the loader state the view currently shows.
func (m *Model) Snapshot() viewer.Snapshot {
	return m.snap
}

// Mode returns the color scheme the view currently renders with.
func (m *Model) Mode() viewer.ThemeMode {
	return m.mode
}

// Close unsubscribes from the stream, the loader and the theme context.
func (m *Model) Close() {
	m.scope.Close()
}

// Run mounts the view in the alternate screen and blocks until the user
// quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	m, err := NewModel(ctx, opts)
	if err != nil {
		return err
	}
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
