package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// DOCX is a ZIP containing the OOXML document body at word/document.xml.
// Body paragraphs are emitted first, one per line, then every table row as a
// line of space-joined cell texts, mirroring how word-processor text reads.
const docxBodyPath = "word/document.xml"

var (
	// wpTextRe matches <w:t>…</w:t> text runs, with or without attributes
	// (e.g. xml:space="preserve").
	wpTextRe = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// paragraphRe matches a whole <w:p> element; real-world documents carry
	// attributes (<w:p w:rsidR="…">), so the open tag cannot be matched literally.
	paragraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	tableRe     = regexp.MustCompile(`(?s)<w:tbl>.*?</w:tbl>`)
	tableRowRe  = regexp.MustCompile(`(?s)<w:tr[ >].*?</w:tr>`)
	tableCellRe = regexp.MustCompile(`(?s)<w:tc>.*?</w:tc>`)
)

func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	body, err := readZipFile(zr, docxBodyPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}

	xml := string(body)
	tables := tableRe.FindAllString(xml, -1)
	// Tables nest paragraphs, so strip them before collecting body paragraphs
	// to avoid emitting cell text twice.
	withoutTables := tableRe.ReplaceAllString(xml, "")

	var out strings.Builder
	for _, p := range paragraphRe.FindAllString(withoutTables, -1) {
		if text := runText(p); text != "" {
			out.WriteString(text)
			out.WriteByte('\n')
		}
	}
	for _, tbl := range tables {
		for _, row := range tableRowRe.FindAllString(tbl, -1) {
			var cells []string
			for _, cell := range tableCellRe.FindAllString(row, -1) {
				if text := runText(cell); text != "" {
					cells = append(cells, text)
				}
			}
			if len(cells) > 0 {
				out.WriteString(strings.Join(cells, " "))
				out.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(out.String()), nil
}

// runText joins all <w:t> runs inside an element fragment.
func runText(fragment string) string {
	parts := wpTextRe.FindAllStringSubmatch(fragment, -1)
	if len(parts) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p[1])
	}
	return strings.TrimSpace(b.String())
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s not found", name)
}
