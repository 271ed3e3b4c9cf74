package ui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yildizm/nginx-config-viewer/internal/viewer"
)

// Messages delivered to the model.
type snapshotMsg struct {
	snap viewer.Snapshot
}

type connStateMsg struct {
	state viewer.ConnState
}

type themeMsg struct {
	mode viewer.ThemeMode
}

type signalMsg struct {
	signal viewer.Signal
}

// streamEndedMsg is sent once the signal channel is closed.
type streamEndedMsg struct{}

// bridge turns observer callbacks, which run on other goroutines, into
// messages for the program loop.
type bridge struct {
	updates chan tea.Msg
	done    chan struct{}
	once    sync.Once
}

func newBridge() *bridge {
	return &bridge{
		updates: make(chan tea.Msg, 16),
		done:    make(chan struct{}),
	}
}

// send blocks until the model takes msg or the bridge is closed.
func (b *bridge) send(msg tea.Msg) {
	select {
	case b.updates <- msg:
	case <-b.done:
	}
}

func (b *bridge) close() {
	b.once.Do(func() { close(b.done) })
}

// waitForUpdate returns the next observer message. It returns nil once the
// bridge is closed so the program stops re-arming it.
func waitForUpdate(b *bridge) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.updates:
			return msg
		case <-b.done:
			return nil
		}
	}
}

// waitForSignal returns the next reload signal of sub.
func waitForSignal(sub *viewer.Subscription) tea.Cmd {
	return func() tea.Msg {
		sig, ok := <-sub.Signals()
		if !ok {
			return streamEndedMsg{}
		}
		return signalMsg{signal: sig}
	}
}

// loadCommand runs one load. The outcome reaches the model through the
// loader's change notifications, so the command itself yields nothing.
func loadCommand(ctx context.Context, l *viewer.Loader) tea.Cmd {
	return func() tea.Msg {
		_, _ = l.Load(ctx)
		return nil
	}
}
