package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/olivier-w/tagdeck/internal/media"
)

// BrowserSelectedMsg carries the entries picked in the browser, in list order.
type BrowserSelectedMsg struct {
	Paths []string
}

// BrowserCancelledMsg is sent when the browser is closed without a choice.
type BrowserCancelledMsg struct{}

type fileItem struct {
	name   string
	kind   string
	marked bool
}

func (i fileItem) Title() string {
	title := i.name
	if i.kind != "folder" && i.kind != "playlist" {
		title = strings.TrimSuffix(i.name, filepath.Ext(i.name))
	}
	if i.marked {
		return "+ " + title
	}
	return title
}

func (i fileItem) Description() string { return i.kind }
func (i fileItem) FilterValue() string { return i.name }

// BrowserModel lists the folders, playlists and audio files of one directory.
// space marks entries; enter picks the marked ones, or the highlighted one
// when nothing is marked.
type BrowserModel struct {
	dir  string
	list list.Model
	err  error
}

// NewBrowser scans dir.
func NewBrowser(dir string) BrowserModel {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return BrowserModel{dir: dir, err: fmt.Errorf("cannot read directory: %w", err)}
	}

	var folders, files []list.Item
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		switch {
		case e.IsDir():
			folders = append(folders, fileItem{name: e.Name(), kind: "folder"})
		case media.IsPlaylistExt(ext):
			files = append(files, fileItem{name: e.Name(), kind: "playlist"})
		case media.IsSupportedExt(ext):
			files = append(files, fileItem{name: e.Name(), kind: ext})
		}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"}).
		BorderLeftForeground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}).
		BorderLeftForeground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})

	l := list.New(append(folders, files...), delegate, 80, 20)
	l.Title = "tagdeck: add to playlist"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = headerStyle
	l.DisableQuitKeybindings()

	return BrowserModel{dir: dir, list: l}
}

// HasError returns true if the browser could not be initialized.
func (m BrowserModel) HasError() bool {
	return m.err != nil
}

// Error returns the initialization error, if any.
func (m BrowserModel) Error() error {
	return m.err
}

func (m BrowserModel) Init() tea.Cmd {
	return tea.SetWindowTitle("tagdeck")
}

func (m BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.err != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, func() tea.Msg { return BrowserCancelledMsg{} }
		}
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case " ":
			if item, ok := m.list.SelectedItem().(fileItem); ok {
				item.marked = !item.marked
				cmd := m.list.SetItem(m.list.GlobalIndex(), item)
				m.list.CursorDown()
				return m, cmd
			}
			return m, nil
		case "enter":
			paths := m.picked()
			if len(paths) == 0 {
				return m, nil
			}
			return m, func() tea.Msg { return BrowserSelectedMsg{Paths: paths} }
		case "q", "esc", "ctrl+c":
			if m.list.FilterState() == list.FilterApplied && msg.String() == "esc" {
				break
			}
			return m, func() tea.Msg { return BrowserCancelledMsg{} }
		}

	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m BrowserModel) picked() []string {
	var paths []string
	for _, it := range m.list.Items() {
		if item, ok := it.(fileItem); ok && item.marked {
			paths = append(paths, filepath.Join(m.dir, item.name))
		}
	}
	if len(paths) > 0 {
		return paths
	}
	if item, ok := m.list.SelectedItem().(fileItem); ok {
		return []string{filepath.Join(m.dir, item.name)}
	}
	return nil
}

func (m BrowserModel) View() string {
	if m.err != nil {
		return "\n  " + statusStyle.Render(m.err.Error()) + "\n\n  " + helpStyle.Render("esc back") + "\n"
	}
	return m.list.View()
}
