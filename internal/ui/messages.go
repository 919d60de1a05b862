package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/olivier-w/tagdeck/internal/progress"
	"github.com/olivier-w/tagdeck/internal/session"
)

// frameRate drives the tick and the progress spring.
const frameRate = 10

type tickMsg time.Time

// updateMsg means the session published a new snapshot.
type updateMsg struct{}

// sessionClosedMsg means the session stopped and the UI should exit.
type sessionClosedMsg struct{}

// progressMsg carries one sample from the session's progress stream.
type progressMsg progress.Snapshot

type appendDoneMsg struct {
	result session.AppendResult
	err    error
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForUpdate(updates <-chan struct{}, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-updates:
			return updateMsg{}
		case <-done:
			return sessionClosedMsg{}
		}
	}
}

func appendCmd(ctl Controls, paths []string) tea.Cmd {
	return func() tea.Msg {
		res, err := ctl.AppendPaths(context.Background(), paths)
		return appendDoneMsg{result: res, err: err}
	}
}

// streamProgress forwards the session's progress stream into ch until ctx is
// done. ch holds at most one sample; a newer sample replaces an unread one.
func streamProgress(ctx context.Context, ctl Controls, ch chan progress.Snapshot) tea.Cmd {
	return func() tea.Msg {
		for p := range ctl.Progress(ctx) {
			select {
			case ch <- p:
			default:
				select {
				case <-ch:
				default:
				}
				ch <- p
			}
		}
		return nil
	}
}

func waitForProgress(ctx context.Context, ch <-chan progress.Snapshot) tea.Cmd {
	return func() tea.Msg {
		select {
		case p := <-ch:
			return progressMsg(p)
		case <-ctx.Done():
			return nil
		}
	}
}
