package ui

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/bbrks/go-blurhash"
	"github.com/charmbracelet/lipgloss"
	"github.com/olivier-w/tagdeck/internal/cover"
	"github.com/olivier-w/tagdeck/internal/playback"
	"github.com/olivier-w/tagdeck/internal/playlist"
)

// Cover swatch size in terminal cells. Each cell shows two pixels stacked.
const (
	coverCols = 10
	coverRows = 4
)

func renderVolumePercent(vol float64) string {
	return fmt.Sprintf("vol %d%%", int(vol*100+0.5))
}

// renderCover draws the cover's BlurHash placeholder with half-block cells,
// or an empty frame when there is nothing to show.
func renderCover(img cover.Image, ok bool) string {
	if ok && img.BlurHash != "" {
		pix, err := blurhash.Decode(img.BlurHash, coverCols, coverRows*2, 1)
		if err == nil {
			var b strings.Builder
			for y := range coverRows {
				for x := range coverCols {
					cell := lipgloss.NewStyle().
						Foreground(hexColor(pix.At(x, 2*y))).
						Background(hexColor(pix.At(x, 2*y+1)))
					b.WriteString(cell.Render("▀"))
				}
				if y < coverRows-1 {
					b.WriteByte('\n')
				}
			}
			return b.String()
		}
	}
	rows := make([]string, coverRows)
	for i := range rows {
		rows[i] = strings.Repeat("░", coverCols)
	}
	return coverEmptyStyle.Render(strings.Join(rows, "\n"))
}

func hexColor(c color.Color) lipgloss.Color {
	r, g, b, _ := c.RGBA()
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8))
}

func statusLabel(st playback.State) (icon, text string) {
	switch {
	case st.Loading:
		return "…", "loading"
	case st.Run == playback.Playing:
		return "▶", "playing"
	case st.Run == playback.Paused:
		return "❚❚", "paused"
	default:
		return "■", "stopped"
	}
}

func subtitle(t playlist.Track) string {
	switch {
	case t.Artist != "" && t.Album != "":
		return fmt.Sprintf("%s - %s", t.Artist, t.Album)
	case t.Artist != "":
		return t.Artist
	default:
		return t.Album
	}
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > width-1 {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
