// Package layout rebuilds reading-order text lines from positioned text
// fragments extracted from a paginated document.
package layout

import (
	"cmp"
	"math"
	"slices"
	"strings"
)

const (
	DefaultSortTolerance = 5.0
	DefaultLineTolerance = 8.0
	DefaultMargin        = 20.0
)

// Fragment is a piece of text at a position on a page. Y grows upwards,
// so larger values are nearer the top of the page.
type Fragment struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Page is the unordered set of fragments found on one source page.
type Page struct {
	Fragments []Fragment `json:"fragments"`
	Width     float64    `json:"width"`
	Height    float64    `json:"height"`
}

// Line is a run of fragments judged to sit on the same visual line.
type Line struct {
	Text      string     `json:"text"`
	Y         float64    `json:"y"`
	Fragments []Fragment `json:"-"`
}

// PageBlock is the rendering unit for one reconstructed page.
type PageBlock struct {
	Lines  []Line  `json:"lines"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Margin float64 `json:"margin"`
}

// Config holds the tuning knobs of the reconstructor.
//
// SortTolerance decides when two fragments are ordered by X instead of Y
// during sorting. LineTolerance decides when a fragment joins the current
// line. The two are independent; setting them equal makes sorting and
// grouping agree at the boundary.
type Config struct {
	SortTolerance float64 `mapstructure:"sortTolerance"`
	LineTolerance float64 `mapstructure:"lineTolerance"`
	Margin        float64 `mapstructure:"margin"`
}

// DefaultConfig returns the stock tolerances.
func DefaultConfig() Config {
	return Config{
		SortTolerance: DefaultSortTolerance,
		LineTolerance: DefaultLineTolerance,
		Margin:        DefaultMargin,
	}
}

// Reconstructor groups page fragments into lines.
type Reconstructor struct {
	cfg Config
}

// New creates a Reconstructor. Negative tolerances are clamped to zero.
func New(cfg Config) *Reconstructor {
	cfg.SortTolerance = math.Max(cfg.SortTolerance, 0)
	cfg.LineTolerance = math.Max(cfg.LineTolerance, 0)
	cfg.Margin = math.Max(cfg.Margin, 0)
	return &Reconstructor{cfg: cfg}
}

// Config returns the effective configuration.
func (r *Reconstructor) Config() Config {
	return r.cfg
}

// Reconstruct turns one page of fragments into a PageBlock.
func (r *Reconstructor) Reconstruct(page Page) PageBlock {
	block := PageBlock{
		Lines:  []Line{},
		Width:  page.Width,
		Height: page.Height,
		Margin: r.cfg.Margin,
	}

	fragments := make([]Fragment, 0, len(page.Fragments))
	for _, f := range page.Fragments {
		if !finite(f.X) || !finite(f.Y) {
			continue
		}
		fragments = append(fragments, f)
	}
	if len(fragments) == 0 {
		return block
	}

	slices.SortStableFunc(fragments, func(a, b Fragment) int {
		if math.Abs(b.Y-a.Y) > r.cfg.SortTolerance {
			return cmp.Compare(b.Y, a.Y)
		}
		return cmp.Compare(a.X, b.X)
	})

	var (
		current []Fragment
		refY    float64
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		texts := make([]string, len(current))
		for i, f := range current {
			texts[i] = f.Text
		}
		text := strings.Join(texts, " ")
		if strings.TrimSpace(text) != "" {
			block.Lines = append(block.Lines, Line{Text: text, Y: refY, Fragments: current})
		}
		current = nil
	}

	for _, f := range fragments {
		if len(current) > 0 && math.Abs(f.Y-refY) < r.cfg.LineTolerance {
			current = append(current, f)
			continue
		}
		flush()
		current = []Fragment{f}
		refY = f.Y
	}
	flush()

	return block
}

// ReconstructDocument reconstructs every page in source order.
func (r *Reconstructor) ReconstructDocument(pages []Page) []PageBlock {
	blocks := make([]PageBlock, 0, len(pages))
	for _, p := range pages {
		blocks = append(blocks, r.Reconstruct(p))
	}
	return blocks
}

// Reconstruct runs a single page through a Reconstructor built from DefaultConfig.
func Reconstruct(page Page) PageBlock {
	return New(DefaultConfig()).Reconstruct(page)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
