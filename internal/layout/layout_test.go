package layout

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineTexts(b PageBlock) []string {
	out := make([]string, len(b.Lines))
	for i, l := range b.Lines {
		out[i] = l.Text
	}
	return out
}

func TestReconstruct(t *testing.T) {
	tests := []struct {
		name      string
		fragments []Fragment
		expected  []string
	}{
		{
			name: "label and value share a line",
			fragments: []Fragment{
				{Text: "Nome:", X: 10, Y: 100},
				{Text: "João", X: 60, Y: 100},
				{Text: "Cargo:", X: 10, Y: 80},
			},
			expected: []string{"Nome: João", "Cargo:"},
		},
		{
			name: "offsets within tolerance merge",
			fragments: []Fragment{
				{Text: "top", X: 10, Y: 100},
				{Text: "close", X: 40, Y: 93},
			},
			expected: []string{"top close"},
		},
		{
			name: "offsets beyond tolerance split",
			fragments: []Fragment{
				{Text: "top", X: 10, Y: 100},
				{Text: "below", X: 40, Y: 91},
			},
			expected: []string{"top", "below"},
		},
		{
			name: "input order does not matter",
			fragments: []Fragment{
				{Text: "third", X: 10, Y: 20},
				{Text: "right", X: 200, Y: 300},
				{Text: "second", X: 10, Y: 150},
				{Text: "left", X: 5, Y: 300},
			},
			expected: []string{"left right", "second", "third"},
		},
		{
			name: "wide horizontal gap still joins with one space",
			fragments: []Fragment{
				{Text: "Engenheiro", X: 10, Y: 500},
				{Text: "2019 - 2023", X: 480, Y: 500},
			},
			expected: []string{"Engenheiro 2019 - 2023"},
		},
		{
			name: "whitespace-only lines are dropped",
			fragments: []Fragment{
				{Text: "Resumo", X: 10, Y: 700},
				{Text: "  ", X: 10, Y: 650},
				{Text: "", X: 30, Y: 650},
				{Text: "Experiência", X: 10, Y: 600},
			},
			expected: []string{"Resumo", "Experiência"},
		},
		{
			name: "non-finite coordinates are skipped",
			fragments: []Fragment{
				{Text: "ok", X: 10, Y: 100},
				{Text: "nan", X: math.NaN(), Y: 100},
				{Text: "inf", X: 10, Y: math.Inf(1)},
			},
			expected: []string{"ok"},
		},
	}

	r := New(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := r.Reconstruct(Page{Fragments: tt.fragments, Width: 595, Height: 842})
			assert.Equal(t, tt.expected, lineTexts(block))
		})
	}
}

func TestReconstructEmptyPage(t *testing.T) {
	block := Reconstruct(Page{Width: 612, Height: 792})

	assert.Empty(t, block.Lines)
	assert.NotNil(t, block.Lines)
	assert.Equal(t, 612.0, block.Width)
	assert.Equal(t, 792.0, block.Height)
	assert.Equal(t, DefaultMargin, block.Margin)
}

func TestReconstructLinesDescendByY(t *testing.T) {
	fragments := []Fragment{
		{Text: "c", X: 0, Y: 10},
		{Text: "a", X: 0, Y: 300},
		{Text: "b", X: 0, Y: 150},
		{Text: "d", X: 0, Y: -40},
	}
	block := Reconstruct(Page{Fragments: fragments})

	require.Len(t, block.Lines, 4)
	for i := 1; i < len(block.Lines); i++ {
		assert.Greater(t, block.Lines[i-1].Y, block.Lines[i].Y)
	}
}

func TestReconstructIsIdempotent(t *testing.T) {
	r := New(DefaultConfig())
	first := r.Reconstruct(Page{Fragments: []Fragment{
		{Text: "Maria", X: 10, Y: 800},
		{Text: "Silva", X: 70, Y: 798},
		{Text: "Desenvolvedora", X: 10, Y: 770},
		{Text: "Go", X: 150, Y: 771},
		{Text: "São Paulo", X: 10, Y: 740},
	}, Width: 595, Height: 842})

	// Re-tokenize each emitted line on word boundaries at the line's offset.
	var refed []Fragment
	for _, l := range first.Lines {
		for i, word := range strings.Fields(l.Text) {
			refed = append(refed, Fragment{Text: word, X: float64(i * 40), Y: l.Y})
		}
	}
	second := r.Reconstruct(Page{Fragments: refed, Width: 595, Height: 842})

	assert.Equal(t, []string{"Maria Silva", "Desenvolvedora Go", "São Paulo"}, lineTexts(first))
	assert.Equal(t, lineTexts(first), lineTexts(second))
}

func TestToleranceDivergence(t *testing.T) {
	fragments := []Fragment{
		{Text: "A", X: 50, Y: 100},
		{Text: "B", X: 10, Y: 93},
	}

	// With the stock 5/8 split the sort keeps Y order, then grouping merges.
	assert.Equal(t, []string{"A B"}, lineTexts(New(DefaultConfig()).Reconstruct(Page{Fragments: fragments})))

	// Unified tolerances sort the pair by X before grouping.
	unified := New(Config{SortTolerance: 8, LineTolerance: 8})
	assert.Equal(t, []string{"B A"}, lineTexts(unified.Reconstruct(Page{Fragments: fragments})))
}

func TestLineToleranceIsStrict(t *testing.T) {
	block := Reconstruct(Page{Fragments: []Fragment{
		{Text: "x", X: 0, Y: 100},
		{Text: "y", X: 0, Y: 92},
	}})
	assert.Equal(t, []string{"x", "y"}, lineTexts(block))
}

func TestNewClampsNegativeValues(t *testing.T) {
	cfg := New(Config{SortTolerance: -1, LineTolerance: -3, Margin: -5}).Config()
	assert.Zero(t, cfg.SortTolerance)
	assert.Zero(t, cfg.LineTolerance)
	assert.Zero(t, cfg.Margin)
}

func TestReconstructDocumentKeepsPageOrder(t *testing.T) {
	blocks := New(DefaultConfig()).ReconstructDocument([]Page{
		{Fragments: []Fragment{{Text: "page one", X: 0, Y: 10}}, Width: 100, Height: 200},
		{},
		{Fragments: []Fragment{{Text: "page three", X: 0, Y: 10}}, Width: 300, Height: 400},
	})

	require.Len(t, blocks, 3)
	assert.Equal(t, []string{"page one"}, lineTexts(blocks[0]))
	assert.Empty(t, blocks[1].Lines)
	assert.Equal(t, 300.0, blocks[2].Width)
	assert.Equal(t, 2, LineCount(blocks))
}
