// Package docinfo inspects uploaded proposal documents before they are sent
// for analysis.
package docinfo

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Kind is the document family derived from the file extension.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindHWP   Kind = "hwp"
	KindPPTX  Kind = "pptx"
	KindDOCX  Kind = "docx"
	KindOther Kind = "other"
)

// Info describes an uploaded document.
type Info struct {
	Kind  Kind
	Size  int64
	Pages int // 0 when unknown
}

// KindOf maps a filename to its document kind.
func KindOf(filename string) Kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF
	case ".hwp", ".hwpx":
		return KindHWP
	case ".pptx":
		return KindPPTX
	case ".docx":
		return KindDOCX
	}
	return KindOther
}

// Inspect reports the kind, size and, for PDFs, the page count. A PDF that
// cannot be read still yields Kind and Size along with the read error.
func Inspect(filename string, content []byte) (Info, error) {
	info := Info{Kind: KindOf(filename), Size: int64(len(content))}
	if info.Kind != KindPDF {
		return info, nil
	}
	pages, err := pageCount(content)
	if err != nil {
		return info, fmt.Errorf("reading pdf %s: %w", filename, err)
	}
	info.Pages = pages
	return info, nil
}

func pageCount(content []byte) (n int, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}
