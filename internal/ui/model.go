package ui

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/olivier-w/tagdeck/internal/cover"
	"github.com/olivier-w/tagdeck/internal/playback"
	playpos "github.com/olivier-w/tagdeck/internal/progress"
	"github.com/olivier-w/tagdeck/internal/session"
	"github.com/olivier-w/tagdeck/internal/util"
)

// Controls is the part of the session the TUI drives.
type Controls interface {
	Snapshot() session.Snapshot
	Updates() <-chan struct{}
	Done() <-chan struct{}
	TogglePause() error
	PlayTrack(id string) error
	Next() playback.Outcome
	Previous() playback.Outcome
	AppendPaths(ctx context.Context, args []string) (session.AppendResult, error)
	Cover(ref string) (cover.Image, bool)
	Progress(ctx context.Context) iter.Seq[playpos.Snapshot]
}

// Mixer adjusts output volume.
type Mixer interface {
	Volume() float64
	AdjustVolume(delta float64)
}

const statusTTL = 5 * time.Second

// Model is the Bubbletea model for the tagdeck TUI. It renders session
// snapshots and turns keys into session calls; it holds no playback state
// of its own.
type Model struct {
	ctl   Controls
	mixer Mixer
	snap  session.Snapshot

	// pos is the last sample pushed by the progress stream.
	pos        playpos.Snapshot
	posCh      chan playpos.Snapshot
	streamCtx  context.Context
	stopStream context.CancelFunc

	cursor int
	offset int
	volume float64
	width  int
	height int

	quitting bool
	adding   bool
	browser  *BrowserModel
	dir      string

	bar      progress.Model
	spinner  spinner.Model
	help     help.Model
	spring   harmonica.Spring
	shown    float64
	velocity float64
	shownID  string

	coverRef  string
	coverView string

	status     string
	statusTime time.Time
}

// New creates a Model. dir is where the add browser starts.
func New(ctl Controls, mixer Mixer, dir string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})

	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		ctl:        ctl,
		mixer:      mixer,
		dir:        dir,
		posCh:      make(chan playpos.Snapshot, 1),
		streamCtx:  ctx,
		stopStream: cancel,
		bar: progress.New(
			progress.WithScaledGradient("#FF8C00", "#FF5F1F"),
			progress.WithoutPercentage(),
		),
		spinner:   s,
		help:      help.New(),
		spring:    harmonica.NewSpring(harmonica.FPS(frameRate), 6.0, 1.0),
		coverView: renderCover(cover.Image{}, false),
	}
	if mixer != nil {
		m.volume = mixer.Volume()
	}
	m.refresh()
	if len(m.snap.Tracks) == 0 {
		m.openBrowser()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		waitForUpdate(m.ctl.Updates(), m.ctl.Done()),
		streamProgress(m.streamCtx, m.ctl, m.posCh),
		waitForProgress(m.streamCtx, m.posCh),
		tea.SetWindowTitle(m.windowTitle()),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.browser != nil {
			return m.updateBrowser(msg)
		}
		return m.handleKey(msg)

	case BrowserSelectedMsg:
		m.browser = nil
		m.adding = true
		m.setStatus("reading tags…")
		return m, tea.Batch(appendCmd(m.ctl, msg.Paths), m.spinner.Tick)

	case BrowserCancelledMsg:
		m.browser = nil
		if len(m.snap.Tracks) == 0 {
			return m.quit()
		}
		return m, nil

	case appendDoneMsg:
		m.adding = false
		cmd := m.handleAppend(msg)
		return m, cmd

	case spinner.TickMsg:
		if !m.adding {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case updateMsg:
		m.refresh()
		return m, tea.Batch(
			waitForUpdate(m.ctl.Updates(), m.ctl.Done()),
			tea.SetWindowTitle(m.windowTitle()),
		)

	case sessionClosedMsg:
		return m.quit()

	case progressMsg:
		m.pos = playpos.Snapshot(msg)
		return m, waitForProgress(m.streamCtx, m.posCh)

	case tickMsg:
		m.animate()
		if m.mixer != nil {
			m.volume = m.mixer.Volume()
		}
		if m.status != "" && time.Since(m.statusTime) > statusTTL {
			m.status = ""
		}
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.scrollToCursor()
		if m.browser != nil {
			return m.updateBrowser(msg)
		}
		return m, nil
	}

	if m.browser != nil {
		return m.updateBrowser(msg)
	}
	return m, nil
}

func (m Model) updateBrowser(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := m.browser.Update(msg)
	b := model.(BrowserModel)
	m.browser = &b
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if isQuit(msg) {
		return m.quit()
	}

	switch {
	case key.Matches(msg, keys.Toggle):
		m.check(m.ctl.TogglePause())
		m.refresh()
		return m, tea.SetWindowTitle(m.windowTitle())
	case key.Matches(msg, keys.Next):
		m.reportOutcome(m.ctl.Next())
	case key.Matches(msg, keys.Prev):
		m.reportOutcome(m.ctl.Previous())
	case key.Matches(msg, keys.Play):
		if m.cursor < len(m.snap.Tracks) {
			m.check(m.ctl.PlayTrack(m.snap.Tracks[m.cursor].ID))
		}
	case key.Matches(msg, keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, keys.VolUp):
		m.adjustVolume(0.05)
	case key.Matches(msg, keys.VolDn):
		m.adjustVolume(-0.05)
	case key.Matches(msg, keys.Add):
		if !m.adding {
			cmd := m.openBrowser()
			return m, cmd
		}
	}
	m.refresh()
	return m, nil
}

func (m *Model) handleAppend(msg appendDoneMsg) tea.Cmd {
	if msg.err != nil {
		if errors.Is(msg.err, session.ErrClosed) {
			return tea.Quit
		}
		m.setStatus(fmt.Sprintf("Add failed: %v", msg.err))
		return nil
	}

	res := msg.result
	text := fmt.Sprintf("Added %d track%s", len(res.Added), plural(len(res.Added)))
	if n := len(res.Failures); n > 0 {
		text += fmt.Sprintf(", %d unreadable", n)
	}
	if res.Skipped > 0 {
		text += fmt.Sprintf(", %d skipped", res.Skipped)
	}
	m.setStatus(text)

	if len(res.Added) > 0 && !m.snap.State.HasSelection() {
		m.check(m.ctl.PlayTrack(res.Added[0].ID))
	}
	m.refresh()
	if len(m.snap.Tracks) == 0 {
		m.openBrowser()
	}
	return tea.SetWindowTitle(m.windowTitle())
}

func (m *Model) openBrowser() tea.Cmd {
	b := NewBrowser(m.dir)
	m.browser = &b
	if m.width > 0 || m.height > 0 {
		w, h := m.width, m.height
		return func() tea.Msg { return tea.WindowSizeMsg{Width: w, Height: h} }
	}
	return nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.stopStream()
	return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
}

// refresh pulls the latest snapshot and keeps the cursor and cover in sync.
func (m *Model) refresh() {
	prev := m.snap.State.SelectedID
	m.snap = m.ctl.Snapshot()

	if n := len(m.snap.Tracks); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
	cur, idx, ok := m.snap.Selected()
	if ok && cur.ID != prev {
		m.cursor = idx
	}
	m.scrollToCursor()

	if cur.Cover != m.coverRef {
		m.coverRef = cur.Cover
		img, found := m.ctl.Cover(cur.Cover)
		m.coverView = renderCover(img, found)
	}
}

// position returns the streamed sample if it belongs to the selected track.
func (m Model) position() playpos.Snapshot {
	if m.pos.TrackID == "" || m.pos.TrackID != m.snap.State.SelectedID {
		return playpos.Snapshot{}
	}
	return m.pos
}

// animate moves the displayed progress towards the streamed fraction.
// Track changes and backward jumps snap instead of easing.
func (m *Model) animate() {
	p := m.position()
	target := p.Fraction
	if p.TrackID != m.shownID || target < m.shown-0.02 {
		m.shownID = p.TrackID
		m.shown, m.velocity = target, 0
		return
	}
	m.shown, m.velocity = m.spring.Update(m.shown, m.velocity, target)
	m.shown = min(max(m.shown, 0), 1)
}

func (m *Model) moveCursor(delta int) {
	n := len(m.snap.Tracks)
	if n == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), n-1)
	m.scrollToCursor()
}

func (m *Model) scrollToCursor() {
	rows := m.listRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	m.offset = max(0, m.offset)
}

// listRows is how many playlist rows fit under the player.
func (m Model) listRows() int {
	if m.height <= 0 {
		return 8
	}
	return max(3, m.height-coverRows-12)
}

func (m *Model) adjustVolume(delta float64) {
	if m.mixer == nil {
		return
	}
	m.mixer.AdjustVolume(delta)
	m.volume = m.mixer.Volume()
}

func (m *Model) reportOutcome(out playback.Outcome) {
	switch out {
	case playback.EndOfPlaylist:
		m.setStatus("End of playlist")
	case playback.StartOfPlaylist:
		m.setStatus("Start of playlist")
	case playback.NoSelection:
		m.setStatus("Nothing selected")
	}
}

func (m *Model) check(err error) {
	if err != nil {
		m.setStatus(err.Error())
	}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusTime = time.Now()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.browser != nil {
		return m.browser.View()
	}

	w := m.width
	if w < 30 {
		w = 50
	}

	cur, idx, ok := m.snap.Selected()
	title := "Nothing playing"
	sub := ""
	if ok {
		title = cur.DisplayTitle()
		sub = subtitle(cur)
	}
	info := titleStyle.Render(truncate(title, w-coverCols-6))
	if sub != "" {
		info += "\n" + artistStyle.Render(truncate(sub, w-coverCols-6))
	}
	if ok {
		info += "\n" + timeStyle.Render(fmt.Sprintf("%s  %d/%d", cur.Format, idx+1, len(m.snap.Tracks)))
	}
	top := lipgloss.JoinHorizontal(lipgloss.Top, m.coverView, "  ", info)

	p := m.position()
	elapsed := util.FormatDuration(p.Current)
	total := util.FormatDuration(p.Duration)
	m.bar.Width = max(10, w-len(elapsed)-len(total)-6)
	progressLine := fmt.Sprintf("%s %s %s", timeStyle.Render(elapsed), m.bar.ViewAs(m.shown), timeStyle.Render(total))

	icon, text := statusLabel(m.snap.State)
	leftText := fmt.Sprintf("%s  %s", icon, text)
	volStr := renderVolumePercent(m.volume)
	gap := max(2, w-lipgloss.Width(leftText)-len(volStr)-4)
	statusLine := statusStyle.Render(leftText) + strings.Repeat(" ", gap) + statusStyle.Render(volStr)

	var b strings.Builder
	b.WriteString("\n  " + headerStyle.Render("tagdeck") + "\n\n")
	b.WriteString(indent(top) + "\n\n")
	b.WriteString("  " + progressLine + "\n")
	b.WriteString("  " + statusLine + "\n")
	switch {
	case m.adding:
		b.WriteString("  " + m.spinner.View() + " " + helpStyle.Render(m.status) + "\n")
	case m.status != "":
		b.WriteString("  " + helpStyle.Render(m.status) + "\n")
	default:
		b.WriteString("\n")
	}
	b.WriteString("\n" + m.renderPlaylist(w) + "\n")
	b.WriteString("  " + m.help.View(keys) + "\n")

	view := b.String()
	if m.height > 0 {
		if pad := m.height - lipgloss.Height(view); pad > 0 {
			view += strings.Repeat("\n", pad)
		}
	}
	return view
}

func (m Model) renderPlaylist(w int) string {
	if len(m.snap.Tracks) == 0 {
		return "  " + helpStyle.Render("Playlist is empty, press a to add files") + "\n"
	}
	var b strings.Builder
	end := min(len(m.snap.Tracks), m.offset+m.listRows())
	for i := m.offset; i < end; i++ {
		t := m.snap.Tracks[i]
		line := truncate(fmt.Sprintf("%d. %s - %s", i+1, t.DisplayTitle(), t.Artist), w-6)
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		switch {
		case t.ID == m.snap.State.SelectedID:
			line = currentStyle.Render(line)
		case i == m.cursor:
			line = cursorStyle.Render(line)
		default:
			line = artistStyle.Render(line)
		}
		b.WriteString("  " + prefix + line + "\n")
	}
	return b.String()
}

func (m Model) windowTitle() string {
	cur, _, ok := m.snap.Selected()
	if !ok {
		return "tagdeck"
	}
	if m.snap.State.Run == playback.Paused {
		return "⏸ " + cur.DisplayTitle() + " - tagdeck"
	}
	return "▶ " + cur.DisplayTitle() + " - tagdeck"
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
