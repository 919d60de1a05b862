// Package repl is a line-oriented front end for a session, for terminals
// where the full-screen UI is unwanted.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/olivier-w/tagdeck/internal/cover"
	"github.com/olivier-w/tagdeck/internal/playback"
	"github.com/olivier-w/tagdeck/internal/session"
	"github.com/olivier-w/tagdeck/internal/util"
)

// Controls is the part of the session the REPL drives.
type Controls interface {
	Snapshot() session.Snapshot
	AppendPaths(ctx context.Context, args []string) (session.AppendResult, error)
	PlayIndex(i int) error
	Pause() error
	Resume() error
	TogglePause() error
	Next() playback.Outcome
	Previous() playback.Outcome
	Cover(ref string) (cover.Image, bool)
}

// Mixer sets output volume.
type Mixer interface {
	Volume() float64
	SetVolume(v float64)
}

// ErrQuit is returned by Exec for the quit command.
var ErrQuit = errors.New("quit")

const helpText = `commands:
  add <path>...   append files, folders or playlists
  list            show the playlist
  play <n>        play track n
  pause | resume | toggle
  next | prev
  status          show the current track and position
  volume [0-100]  show or set the volume
  cover [n] [url] describe the cover of track n (default: current),
                  url prints it as a data: URL
  quit`

// REPL reads commands and applies them to a session.
type REPL struct {
	ctl    Controls
	mixer  Mixer
	out    io.Writer
	logger *slog.Logger
}

// New creates a REPL writing its replies to out.
func New(ctl Controls, mixer Mixer, out io.Writer, logger *slog.Logger) *REPL {
	if logger == nil {
		logger = slog.Default()
	}
	return &REPL{ctl: ctl, mixer: mixer, out: out, logger: logger}
}

// Run prompts until quit, end of input, or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tagdeck> ",
		Stdout:          r.out,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("add", readline.PcItemDynamic(listFiles)),
			readline.PcItem("list"),
			readline.PcItem("play"),
			readline.PcItem("pause"),
			readline.PcItem("resume"),
			readline.PcItem("toggle"),
			readline.PcItem("next"),
			readline.PcItem("prev"),
			readline.PcItem("status"),
			readline.PcItem("volume"),
			readline.PcItem("cover", readline.PcItem("url")),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return fmt.Errorf("starting readline: %w", err)
	}
	defer rl.Close()

	stop := context.AfterFunc(ctx, func() { rl.Close() })
	defer stop()

	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if line == "" {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := r.Exec(ctx, line); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			if errors.Is(err, session.ErrClosed) {
				return err
			}
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

// Exec runs one command line.
func (r *REPL) Exec(ctx context.Context, line string) error {
	args := splitArgs(line)
	if len(args) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(args[0]), args[1:]

	switch cmd {
	case "add", "a":
		if len(args) == 0 {
			return errors.New("usage: add <path>...")
		}
		return r.add(ctx, args)
	case "list", "ls", "l":
		r.list()
	case "play":
		if len(args) != 1 {
			return errors.New("usage: play <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid track number %q", args[0])
		}
		return r.ctl.PlayIndex(n - 1)
	case "pause":
		return r.ctl.Pause()
	case "resume":
		return r.ctl.Resume()
	case "toggle", "t":
		return r.ctl.TogglePause()
	case "next", "n":
		r.outcome(r.ctl.Next())
	case "prev", "previous", "p":
		r.outcome(r.ctl.Previous())
	case "status", "s":
		r.status()
	case "volume", "vol", "v":
		return r.volume(args)
	case "cover", "art":
		return r.cover(args)
	case "help", "?":
		fmt.Fprintln(r.out, helpText)
	case "quit", "exit", "q":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

func (r *REPL) add(ctx context.Context, args []string) error {
	res, err := r.ctl.AppendPaths(ctx, args)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "added %d, unreadable %d, skipped %d\n", len(res.Added), len(res.Failures), res.Skipped)
	for _, f := range res.Failures {
		fmt.Fprintf(r.out, "  %v\n", f)
	}
	return nil
}

func (r *REPL) list() {
	snap := r.ctl.Snapshot()
	if len(snap.Tracks) == 0 {
		fmt.Fprintln(r.out, "playlist is empty")
		return
	}
	for i, t := range snap.Tracks {
		mark := " "
		if t.ID == snap.State.SelectedID {
			mark = "*"
		}
		line := fmt.Sprintf("%s %3d. %s - %s", mark, i+1, t.DisplayTitle(), t.Artist)
		if t.Album != "" {
			line += " (" + t.Album + ")"
		}
		fmt.Fprintln(r.out, line)
	}
}

func (r *REPL) status() {
	snap := r.ctl.Snapshot()
	t, i, ok := snap.Selected()
	if !ok {
		fmt.Fprintln(r.out, "stopped, nothing selected")
		return
	}
	state := snap.State.Run.String()
	if snap.State.Loading {
		state = "loading"
	}
	p := snap.Progress
	fmt.Fprintf(r.out, "%s: %d/%d %s - %s  %s / %s (%d%%)\n",
		state, i+1, len(snap.Tracks), t.DisplayTitle(), t.Artist,
		util.FormatDuration(p.Current), util.FormatDuration(p.Duration), int(p.Fraction*100))
}

func (r *REPL) outcome(out playback.Outcome) {
	switch out {
	case playback.Moved:
		r.status()
	case playback.EndOfPlaylist:
		fmt.Fprintln(r.out, "end of playlist")
	case playback.StartOfPlaylist:
		fmt.Fprintln(r.out, "start of playlist")
	case playback.NoSelection:
		fmt.Fprintln(r.out, "nothing selected")
	}
}

func (r *REPL) cover(args []string) error {
	asURL := len(args) > 0 && strings.EqualFold(args[len(args)-1], "url")
	if asURL {
		args = args[:len(args)-1]
	}
	if len(args) > 1 {
		return errors.New("usage: cover [n] [url]")
	}

	snap := r.ctl.Snapshot()
	t, _, ok := snap.Selected()
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(snap.Tracks) {
			return fmt.Errorf("invalid track number %q", args[0])
		}
		t, ok = snap.Tracks[n-1], true
	}
	if !ok {
		fmt.Fprintln(r.out, "nothing selected")
		return nil
	}

	img, found := r.ctl.Cover(t.Cover)
	if !found {
		fmt.Fprintf(r.out, "%s: no cover\n", t.DisplayTitle())
		return nil
	}
	if asURL {
		fmt.Fprintln(r.out, cover.Codec{}.DataURL(img.Data, img.MIME))
		return nil
	}
	line := fmt.Sprintf("%s: %s, %d bytes", t.DisplayTitle(), img.MIME, len(img.Data))
	if img.Width > 0 && img.Height > 0 {
		line += fmt.Sprintf(", %dx%d", img.Width, img.Height)
	}
	if img.BlurHash != "" {
		line += ", blurhash " + img.BlurHash
	}
	fmt.Fprintln(r.out, line)
	return nil
}

func (r *REPL) volume(args []string) error {
	if r.mixer == nil {
		return errors.New("no audio output")
	}
	if len(args) == 0 {
		fmt.Fprintf(r.out, "volume %d%%\n", int(r.mixer.Volume()*100+0.5))
		return nil
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(args[0], "%"))
	if err != nil || pct < 0 || pct > 100 {
		return fmt.Errorf("invalid volume %q", args[0])
	}
	r.mixer.SetVolume(float64(pct) / 100)
	r.logger.Debug("volume changed", "volume", pct)
	return nil
}

// splitArgs splits on whitespace, keeping double-quoted runs together.
func splitArgs(line string) []string {
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		pending bool
	)
	for _, c := range line {
		switch {
		case c == '"':
			quoted = !quoted
			pending = true
		case !quoted && (c == ' ' || c == '\t'):
			if pending {
				args = append(args, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(c)
			pending = true
		}
	}
	if pending {
		args = append(args, cur.String())
	}
	return args
}

func listFiles(line string) []string {
	fields := splitArgs(line)
	prefix := ""
	if len(fields) > 1 && !strings.HasSuffix(line, " ") {
		prefix = fields[len(fields)-1]
	}
	dir := filepath.Dir(prefix)
	if prefix == "" {
		dir = "."
	}
	entries, _ := os.ReadDir(dir)
	var names []string
	for _, e := range entries {
		name := filepath.Join(dir, e.Name())
		if dir == "." && !strings.HasPrefix(prefix, ".") {
			name = e.Name()
		}
		if e.IsDir() {
			name += string(filepath.Separator)
		}
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names
}
