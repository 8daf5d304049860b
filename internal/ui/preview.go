package ui

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// fitSize scales a srcW x srcH image into maxW x maxH pixels keeping the
// aspect ratio. Both results are at least 1.
func fitSize(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0
	}
	w, h := maxW, srcH*maxW/srcW
	if h > maxH {
		h = maxH
		w = srcW * maxH / srcH
	}
	return maxInt(w, 1), maxInt(h, 1)
}

// renderFrame draws img into at most cols x rows terminal cells. Each cell
// carries two vertical pixels: the upper half block takes the top pixel as
// foreground and the bottom pixel as background.
func renderFrame(img image.Image, cols, rows int) string {
	if img == nil || cols <= 0 || rows <= 0 {
		return ""
	}
	bounds := img.Bounds()
	w, h := fitSize(bounds.Dx(), bounds.Dy(), cols, rows*2)
	if w == 0 || h == 0 {
		return ""
	}

	var b strings.Builder
	for y := 0; y < h; y += 2 {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < w; x++ {
			top := samplePixel(img, bounds, x, y, w, h)
			bottom := top
			if y+1 < h {
				bottom = samplePixel(img, bounds, x, y+1, w, h)
			}
			b.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom)).
				Render("▀"))
		}
	}
	return b.String()
}

// samplePixel returns the nearest source pixel for target (x, y) as #rrggbb.
func samplePixel(img image.Image, bounds image.Rectangle, x, y, w, h int) string {
	sx := bounds.Min.X + x*bounds.Dx()/w
	sy := bounds.Min.Y + y*bounds.Dy()/h
	r, g, b, _ := img.At(sx, sy).RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
