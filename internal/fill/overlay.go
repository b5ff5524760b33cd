package fill

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	ledongthuc "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const (
	overlayOffsetX   = 10.0
	overlayFontSize  = 10.0
	overlayLineStep  = 12.0
	overlayWrapWidth = 50
	overlayMaxLines  = 3
	overlayLineLimit = 60
)

// textRun is one positioned fragment of page text.
type textRun struct {
	s string
	x float64
	w float64
}

// textLine is the runs of one visual row, left to right, with their
// concatenated text.
type textLine struct {
	y      float64
	runs   []textRun
	joined string
	starts []int // start index of each run within joined
}

// anchorHit locates where an anchor phrase ends on a page.
type anchorHit struct {
	page int
	x    float64
	y    float64
}

// fillOverlay renders values as absolute-positioned text merged onto the
// template pages. Each value is placed at a fixed offset after its anchor
// phrase, wrapped and truncated for space.
func fillOverlay(data Values, fm *FieldMap, template []byte, out io.Writer, warn func(string)) (int, int, error) {
	pages, err := pageLines(template)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read template text: %w", err)
	}

	watermarks, placed := overlayPlacements(data, fm.Table, pages, textWatermark, warn)

	if placed == 0 {
		return 0, len(fm.Table), fmt.Errorf("no anchor phrases matched the template text")
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.AddWatermarksSliceMap(bytes.NewReader(template), out, watermarks, conf); err != nil {
		return 0, len(fm.Table), fmt.Errorf("failed to merge overlay: %w", err)
	}
	return placed, len(fm.Table), nil
}

type watermarkFunc func(text string, x, y float64) (*model.Watermark, error)

// overlayPlacements resolves each mapped value to positioned stamps below
// its anchor. A semantic key counts as placed only when at least one of its
// lines produced a stamp.
func overlayPlacements(data Values, table Table, pages map[int][]textLine, mk watermarkFunc, warn func(string)) (map[int][]*model.Watermark, int) {
	watermarks := make(map[int][]*model.Watermark)
	placed := 0

	for _, m := range table {
		value, ok := data[m.Semantic]
		if !ok || strings.TrimSpace(value) == "" || len(m.Anchors) == 0 {
			continue
		}

		hit, ok := findAnchor(pages, m.Anchors)
		if !ok {
			continue
		}

		stamped := 0
		for i, line := range displayLines(value, m.Multiline) {
			wm, err := mk(line, hit.x+overlayOffsetX, hit.y-float64(i)*overlayLineStep)
			if err != nil {
				warn(fmt.Sprintf("overlay for %q failed: %v", m.Semantic, err))
				break
			}
			watermarks[hit.page] = append(watermarks[hit.page], wm)
			stamped++
		}
		if stamped > 0 {
			placed++
		}
	}
	return watermarks, placed
}

// textWatermark builds a single positioned text stamp in points from the
// page's bottom-left corner.
func textWatermark(text string, x, y float64) (*model.Watermark, error) {
	desc := fmt.Sprintf(
		"fontname:Helvetica, points:%.0f, scalefactor:1 abs, position:bl, offset:%.1f %.1f, fillcolor:#0000ff, rotation:0, opacity:1",
		overlayFontSize, x, y)
	return api.TextWatermark(text, desc, true, false, types.POINTS)
}

// pageLines extracts positioned text rows for every template page.
func pageLines(template []byte) (map[int][]textLine, error) {
	reader, err := ledongthuc.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, err
	}

	pages := make(map[int][]textLine)
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		lines := groupRows(page.Content().Text)
		if len(lines) > 0 {
			pages[pageNum] = lines
		}
	}
	return pages, nil
}

// groupRows merges text fragments into visual rows: fragments whose
// baselines sit within the tolerance of the row's first fragment share a
// row. Rows come back top of page first, runs left to right.
func groupRows(texts []ledongthuc.Text) []textLine {
	const rowTolerance = 2.0

	frags := make([]ledongthuc.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" {
			frags = append(frags, t)
		}
	}
	sort.Slice(frags, func(i, j int) bool { return frags[i].Y > frags[j].Y })

	var lines []textLine
	for _, t := range frags {
		if n := len(lines); n > 0 && math.Abs(lines[n-1].y-t.Y) <= rowTolerance {
			lines[n-1].runs = append(lines[n-1].runs, textRun{s: t.S, x: t.X, w: t.W})
			continue
		}
		lines = append(lines, textLine{
			y:    t.Y,
			runs: []textRun{{s: t.S, x: t.X, w: t.W}},
		})
	}

	for i := range lines {
		line := &lines[i]
		sort.Slice(line.runs, func(a, b int) bool { return line.runs[a].x < line.runs[b].x })
		var sb strings.Builder
		for _, r := range line.runs {
			line.starts = append(line.starts, sb.Len())
			sb.WriteString(r.s)
		}
		line.joined = sb.String()
	}
	return lines
}

// findAnchor scans pages in order for the first line containing any of the
// candidate phrases and returns the position just past the phrase.
func findAnchor(pages map[int][]textLine, terms []string) (anchorHit, bool) {
	pageNums := make([]int, 0, len(pages))
	for n := range pages {
		pageNums = append(pageNums, n)
	}
	sort.Ints(pageNums)

	for _, term := range terms {
		lowerTerm := strings.ToLower(term)
		for _, pageNum := range pageNums {
			for _, line := range pages[pageNum] {
				idx := strings.Index(strings.ToLower(line.joined), lowerTerm)
				if idx < 0 {
					continue
				}
				return anchorHit{
					page: pageNum,
					x:    line.endX(idx + len(lowerTerm)),
					y:    line.y,
				}, true
			}
		}
	}
	return anchorHit{}, false
}

// endX returns the right edge of the run containing the given character
// offset within the joined line.
func (l textLine) endX(offset int) float64 {
	for i := len(l.starts) - 1; i >= 0; i-- {
		if l.starts[i] < offset {
			return l.runs[i].x + l.runs[i].w
		}
	}
	if len(l.runs) > 0 {
		last := l.runs[len(l.runs)-1]
		return last.x + last.w
	}
	return 0
}

// displayLines prepares a value for overlay rendering: multiline values
// word-wrap and cap the line count, single-line values truncate with an
// ellipsis.
func displayLines(value string, multiline bool) []string {
	if multiline && len(value) > overlayWrapWidth {
		lines := wrapText(value, overlayWrapWidth)
		if len(lines) > overlayMaxLines {
			lines = lines[:overlayMaxLines]
		}
		return lines
	}
	if len(value) > overlayLineLimit {
		value = value[:overlayLineLimit-3] + "..."
	}
	return []string{value}
}

// wrapText greedily wraps words to the given width.
func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	var lines []string
	var current []string
	length := 0

	for _, word := range words {
		if length+len(word)+1 <= width {
			current = append(current, word)
			length += len(word) + 1
			continue
		}
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
		}
		current = []string{word}
		length = len(word)
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}
	return lines
}
