package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"strings"
)

const (
	docxBodyPart   = "word/document.xml"
	wordMLNS       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	markupCompatNS = "http://schemas.openxmlformats.org/markup-compatibility/2006"
	// Uncompressed size ceiling for the body part.
	maxDocxBodySize = 64 << 20
)

type docxRun struct {
	text   string
	bold   bool
	italic bool
}

type docxParagraph struct {
	style string
	runs  []docxRun
}

func (p docxParagraph) text() string {
	var sb strings.Builder
	for _, r := range p.runs {
		sb.WriteString(r.text)
	}
	return sb.String()
}

// headingLevel maps paragraph styles such as "Heading2" or "Title" to an HTML heading level.
func (p docxParagraph) headingLevel() int {
	style := strings.ToLower(strings.ReplaceAll(p.style, " ", ""))
	switch {
	case style == "title":
		return 1
	case strings.HasPrefix(style, "heading") && len(style) == len("heading")+1:
		if d := style[len(style)-1]; d >= '1' && d <= '6' {
			return int(d - '0')
		}
	}
	return 0
}

func extractDOCX(ctx context.Context, data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPart {
			body = f
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("no %s found in docx", docxBodyPart)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rc, err := body.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", docxBodyPart, err)
	}
	defer rc.Close()

	paragraphs, err := parseDocxBody(io.LimitReader(rc, maxDocxBodySize))
	if err != nil {
		return nil, err
	}

	return &Document{
		PageCount: 1,
		HTML:      renderDocxHTML(paragraphs),
		Text:      docxPlainText(paragraphs),
	}, nil
}

// docxFrame holds the paragraph a text box interrupted.
type docxFrame struct {
	para *docxParagraph
	run  *docxRun
}

// parseDocxBody walks the WordprocessingML body and collects paragraphs
// with their styled runs. Text-box paragraphs nested inside a run are
// emitted after the paragraph that anchors them.
func parseDocxBody(r io.Reader) ([]docxParagraph, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []docxParagraph
		nested     []docxParagraph
		outer      []docxFrame
		para       *docxParagraph
		run        *docxRun
		inRunProps bool
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", docxBodyPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			// Of each mc:AlternateContent only the Fallback branch is read.
			if t.Name.Space == markupCompatNS && t.Name.Local == "Choice" {
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("parse %s: %w", docxBodyPart, err)
				}
				continue
			}
			if !isWordML(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "p":
				if para != nil {
					outer = append(outer, docxFrame{para: para, run: run})
				}
				para, run = &docxParagraph{}, nil
				inRunProps, inText = false, false
			case "pStyle":
				if para != nil {
					para.style = attr(t, "val")
				}
			case "r":
				run = &docxRun{}
			case "rPr":
				inRunProps = run != nil
			case "b":
				if inRunProps {
					run.bold = toggleOn(t)
				}
			case "i":
				if inRunProps {
					run.italic = toggleOn(t)
				}
			case "t":
				inText = run != nil
			case "tab":
				if run != nil {
					run.text += "\t"
				}
			case "br", "cr":
				if run != nil {
					run.text += "\n"
				}
			}
		case xml.CharData:
			if inText {
				run.text += string(t)
			}
		case xml.EndElement:
			if !isWordML(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "rPr":
				inRunProps = false
			case "r":
				if run != nil && para != nil && run.text != "" {
					para.runs = append(para.runs, *run)
				}
				run = nil
			case "p":
				if para == nil {
					continue
				}
				if n := len(outer); n > 0 {
					nested = append(nested, *para)
					para, run = outer[n-1].para, outer[n-1].run
					outer = outer[:n-1]
					continue
				}
				paragraphs = append(paragraphs, *para)
				paragraphs = append(paragraphs, nested...)
				nested = nil
				para = nil
			}
		}
	}

	return paragraphs, nil
}

// isWordML filters out DrawingML and other embedded vocabularies that reuse
// element names like "p" and "t".
func isWordML(name xml.Name) bool {
	return name.Space == "" || name.Space == wordMLNS
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// toggleOn reads an OOXML on/off property; a bare element means on.
func toggleOn(el xml.StartElement) bool {
	switch strings.ToLower(attr(el, "val")) {
	case "0", "false", "off":
		return false
	}
	return true
}

func renderDocxHTML(paragraphs []docxParagraph) string {
	var sb strings.Builder
	for _, p := range paragraphs {
		if strings.TrimSpace(p.text()) == "" {
			continue
		}
		tag := "p"
		if level := p.headingLevel(); level > 0 {
			tag = fmt.Sprintf("h%d", level)
		}
		sb.WriteString("<" + tag + ">")
		for _, r := range mergeRuns(p.runs) {
			text := strings.ReplaceAll(html.EscapeString(r.text), "\n", "<br />")
			if r.italic {
				text = "<em>" + text + "</em>"
			}
			if r.bold {
				text = "<strong>" + text + "</strong>"
			}
			sb.WriteString(text)
		}
		sb.WriteString("</" + tag + ">")
	}
	return sb.String()
}

// mergeRuns joins adjacent runs that share formatting.
func mergeRuns(runs []docxRun) []docxRun {
	var out []docxRun
	for _, r := range runs {
		if n := len(out); n > 0 && out[n-1].bold == r.bold && out[n-1].italic == r.italic {
			out[n-1].text += r.text
			continue
		}
		out = append(out, r)
	}
	return out
}

func docxPlainText(paragraphs []docxParagraph) string {
	lines := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if text := p.text(); strings.TrimSpace(text) != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}
