package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dslipak/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvoptimizer/internal/layout"
)

// buildPDF assembles a single-page PDF with a Helvetica font of uniform
// 500-unit glyph widths and the given content stream.
func buildPDF(content string) []byte {
	widths := strings.TrimSpace(strings.Repeat("500 ", 95))
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 595 842] >>",
		"<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [" + widths + "] >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractPDF(t *testing.T) {
	content := strings.Join([]string{
		"BT /F1 12 Tf 10 100 Td (Nome:) Tj ET",
		"BT /F1 12 Tf 60 100 Td (Joao) Tj ET",
		"BT /F1 12 Tf 10 80 Td (Cargo: Dev) Tj ET",
	}, "\n")
	ext := NewExtractor(Config{Layout: layout.DefaultConfig()}, nil)

	doc, err := ext.Extract(context.Background(), Upload{
		Filename:    "cv.pdf",
		ContentType: MIMETypePDF,
		Data:        buildPDF(content),
	})
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	page := doc.Pages[0]
	assert.Equal(t, 595.0, page.Width)
	assert.Equal(t, 842.0, page.Height)

	require.Len(t, page.Lines, 2)
	assert.Equal(t, "Nome: Joao", page.Lines[0].Text)
	assert.Equal(t, "Cargo: Dev", page.Lines[1].Text)
	assert.Equal(t, "Nome: Joao\nCargo: Dev", doc.Text)
	assert.Contains(t, doc.HTML, "<p>Nome: Joao</p><p>Cargo: Dev</p>")
	assert.Equal(t, 1, doc.PageCount)
}

func TestExtractPDFHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(Config{}, nil).Extract(ctx, Upload{
		Filename:    "cv.pdf",
		ContentType: MIMETypePDF,
		Data:        buildPDF("BT /F1 12 Tf 10 100 Td (x) Tj ET"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMergeGlyphs(t *testing.T) {
	glyph := func(s string, x, y float64) pdf.Text {
		return pdf.Text{S: s, X: x, Y: y, W: 6, FontSize: 12}
	}

	tests := []struct {
		name     string
		glyphs   []pdf.Text
		expected []layout.Fragment
	}{
		{
			name:   "adjacent glyphs form one word",
			glyphs: []pdf.Text{glyph("G", 10, 50), glyph("o", 16, 50)},
			expected: []layout.Fragment{
				{Text: "Go", X: 10, Y: 50},
			},
		},
		{
			name:   "dropped space glyph is recovered from the gap",
			glyphs: []pdf.Text{glyph("a", 10, 50), glyph("b", 19, 50)},
			expected: []layout.Fragment{
				{Text: "a b", X: 10, Y: 50},
			},
		},
		{
			name:   "wide gap starts a new fragment",
			glyphs: []pdf.Text{glyph("a", 10, 50), glyph("b", 200, 50)},
			expected: []layout.Fragment{
				{Text: "a", X: 10, Y: 50},
				{Text: "b", X: 200, Y: 50},
			},
		},
		{
			name:   "baseline change starts a new fragment",
			glyphs: []pdf.Text{glyph("a", 10, 50), glyph("b", 16, 38)},
			expected: []layout.Fragment{
				{Text: "a", X: 10, Y: 50},
				{Text: "b", X: 16, Y: 38},
			},
		},
		{
			name:     "empty input",
			glyphs:   nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mergeGlyphs(tt.glyphs))
		})
	}
}
