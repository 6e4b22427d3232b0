package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type docxDocument struct {
	Body struct {
		Paras  []docxPara  `xml:"p"`
		Tables []docxTable `xml:"tbl"`
	} `xml:"body"`
}

type docxPara struct {
	Runs []struct {
		Text []string `xml:"t"`
	} `xml:"r"`
}

type docxTable struct {
	Rows []struct {
		Cells []struct {
			Paras []docxPara `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

func (p docxPara) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t)
		}
	}
	return b.String()
}

// docxText reads word/document.xml, one line per paragraph followed by
// table rows rendered as pipe-separated cells.
func docxText(_ context.Context, path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening docx: %w", err)
	}
	defer zr.Close()

	var body []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("opening document.xml: %w", err)
		}
		body, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("reading document.xml: %w", err)
		}
		break
	}
	if body == nil {
		return "", fmt.Errorf("docx: word/document.xml not found")
	}
	return parseDocxXML(body)
}

func parseDocxXML(data []byte) (string, error) {
	var doc docxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parsing document.xml: %w", err)
	}

	var lines []string
	for _, p := range doc.Body.Paras {
		if t := strings.TrimSpace(p.text()); t != "" {
			lines = append(lines, t)
		}
	}
	for _, tbl := range doc.Body.Tables {
		for _, row := range tbl.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, c := range row.Cells {
				parts := make([]string, 0, len(c.Paras))
				for _, p := range c.Paras {
					parts = append(parts, p.text())
				}
				cells = append(cells, strings.TrimSpace(strings.Join(parts, " ")))
			}
			lines = append(lines, strings.Join(cells, " | "))
		}
	}
	return strings.Join(lines, "\n"), nil
}
