package extract

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/ledongthuc/pdf"
)

// layout orders positioned text items into lines. PDF user space grows
// upward, so lines run from high Y to low Y and items from low X to high X.
func layout(items []pdf.Text, lineTolerance, spaceFactor float64) string {
	if len(items) == 0 {
		return ""
	}

	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b pdf.Text) int {
		return cmp.Compare(b.Y, a.Y)
	})

	var lines [][]pdf.Text
	lineY := math.Inf(1)
	for _, item := range sorted {
		if len(lines) == 0 || math.Abs(lineY-item.Y) > lineTolerance {
			lines = append(lines, nil)
			lineY = item.Y
		}
		lines[len(lines)-1] = append(lines[len(lines)-1], item)
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		slices.SortStableFunc(line, func(a, b pdf.Text) int {
			return cmp.Compare(a.X, b.X)
		})
		text := strings.TrimSpace(joinLine(line, spaceFactor))
		if text != "" {
			out = append(out, text)
		}
	}
	return strings.Join(out, "\n")
}

// joinLine concatenates the items of one line, inserting a space where the
// gap after the previous item is wide relative to its font size.
func joinLine(line []pdf.Text, spaceFactor float64) string {
	var b strings.Builder
	for i, item := range line {
		if i > 0 {
			prev := line[i-1]
			gap := item.X - (prev.X + prev.W)
			if prev.W > 0 && gap > prev.FontSize*spaceFactor &&
				!strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(item.S, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(item.S)
	}
	return b.String()
}
