package document

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/dslipak/pdf"

	"cvoptimizer/internal/layout"
)

const (
	// Glyphs on the same baseline further apart than this many font sizes
	// start a new fragment.
	runBreakFactor = 1.0
	// Gaps wider than this many font sizes inside a run become a space.
	wordSpaceFactor = 0.15
	baselineEpsilon = 0.5
	fallbackFontSz  = 10.0

	letterWidth  = 612.0
	letterHeight = 792.0
)

// readPDFPages parses every page into positioned fragments. The parser
// panics on some malformed inputs; those panics become errors.
func readPDFPages(ctx context.Context, data []byte) (pages []layout.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf parser: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	n := reader.NumPage()
	if n == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	pages = make([]layout.Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := reader.Page(i)
		if p.V.IsNull() {
			return nil, fmt.Errorf("page %d is missing", i)
		}
		width, height := mediaBox(p.V)
		pages = append(pages, layout.Page{
			Fragments: mergeGlyphs(p.Content().Text),
			Width:     width,
			Height:    height,
		})
	}
	return pages, nil
}

// mediaBox returns the page size, following inherited attributes up the page tree.
func mediaBox(v pdf.Value) (float64, float64) {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			w := box.Index(2).Float64() - box.Index(0).Float64()
			h := box.Index(3).Float64() - box.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h
			}
		}
		v = v.Key("Parent")
	}
	return letterWidth, letterHeight
}

// mergeGlyphs folds the per-glyph output of the parser into word runs, in
// content-stream order. The parser drops space glyphs, so spaces are
// recovered from the horizontal gap between glyphs.
func mergeGlyphs(glyphs []pdf.Text) []layout.Fragment {
	var (
		fragments []layout.Fragment
		sb        strings.Builder
		x, y, end float64
		size      float64
		open      bool
	)
	flush := func() {
		if open && sb.Len() > 0 {
			fragments = append(fragments, layout.Fragment{Text: sb.String(), X: x, Y: y})
		}
		sb.Reset()
		open = false
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		gs := g.FontSize
		if gs <= 0 {
			gs = fallbackFontSz
		}

		if open {
			gap := g.X - end
			sameBaseline := math.Abs(g.Y-y) < baselineEpsilon
			if sameBaseline && gap > -size && gap <= runBreakFactor*size {
				if gap > wordSpaceFactor*size {
					sb.WriteByte(' ')
				}
				sb.WriteString(g.S)
				end = g.X + g.W
				continue
			}
			flush()
		}

		sb.WriteString(g.S)
		x, y, end, size = g.X, g.Y, g.X+g.W, gs
		open = true
	}
	flush()

	return fragments
}
