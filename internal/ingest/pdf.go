package ingest

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/ledongthuc/pdf"
)

// PDFPageReader extracts page text with github.com/ledongthuc/pdf.
type PDFPageReader struct{}

// ReadPages returns one entry per page. Pages without extractable text, or
// whose content stream cannot be decoded, yield an empty string.
func (PDFPageReader) ReadPages(path string) (pages []string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		pages = append(pages, pageText(r, i, filepath.Base(path)))
	}
	return pages, nil
}

func pageText(r *pdf.Reader, num int, name string) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("ingest: %s page %d unreadable: %v", name, num, rec)
			text = ""
		}
	}()

	p := r.Page(num)
	if p.V.IsNull() {
		return ""
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		log.Printf("ingest: %s page %d has no extractable text: %v", name, num, err)
		return ""
	}
	return text
}
