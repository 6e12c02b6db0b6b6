package layout

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// RenderHTML renders blocks as page-sized containers with one paragraph per line.
func RenderHTML(blocks []PageBlock) string {
	var sb strings.Builder
	for _, b := range blocks {
		fmt.Fprintf(&sb,
			`<div class="page-content" style="position: relative; min-height: %spx; width: 100%%; max-width: %spx; margin: 0 auto %spx auto; padding: %spx; box-sizing: border-box;">`,
			px(b.Height), px(b.Width), px(b.Margin), px(b.Margin))
		for _, l := range b.Lines {
			sb.WriteString("<p>")
			sb.WriteString(html.EscapeString(l.Text))
			sb.WriteString("</p>")
		}
		sb.WriteString("</div>")
	}
	return sb.String()
}

// PlainText joins lines with newlines and separates pages with a blank line.
func PlainText(blocks []PageBlock) string {
	pages := make([]string, 0, len(blocks))
	for _, b := range blocks {
		lines := make([]string, len(b.Lines))
		for i, l := range b.Lines {
			lines[i] = l.Text
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return strings.Join(pages, "\n\n")
}

// LineCount returns the total number of lines across blocks.
func LineCount(blocks []PageBlock) int {
	n := 0
	for _, b := range blocks {
		n += len(b.Lines)
	}
	return n
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
