package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderHTML(t *testing.T) {
	blocks := []PageBlock{
		{
			Lines:  []Line{{Text: "Nome: João"}, {Text: "C++ & <Go>"}},
			Width:  595.5,
			Height: 842,
			Margin: 20,
		},
	}

	out := RenderHTML(blocks)

	assert.True(t, strings.HasPrefix(out, `<div class="page-content"`))
	assert.Contains(t, out, "min-height: 842px")
	assert.Contains(t, out, "max-width: 595.5px")
	assert.Contains(t, out, "padding: 20px")
	assert.Contains(t, out, "<p>Nome: João</p>")
	assert.Contains(t, out, "<p>C++ &amp; &lt;Go&gt;</p>")
	assert.True(t, strings.HasSuffix(out, "</div>"))
}

func TestRenderHTMLEmptyBlock(t *testing.T) {
	out := RenderHTML([]PageBlock{{Lines: []Line{}, Width: 100, Height: 200}})
	assert.NotContains(t, out, "<p>")
	assert.Equal(t, 1, strings.Count(out, "<div"))
}

func TestPlainText(t *testing.T) {
	blocks := []PageBlock{
		{Lines: []Line{{Text: "a"}, {Text: "b"}}},
		{Lines: []Line{{Text: "c"}}},
	}
	assert.Equal(t, "a\nb\n\nc", PlainText(blocks))
	assert.Equal(t, "", PlainText(nil))
}
