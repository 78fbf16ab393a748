package forms

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	rpdf "rsc.io/pdf"
)

// ErrNoPDFText is returned for PDFs without an extractable text layer (scans need OCR).
var ErrNoPDFText = errors.New("pdf has no extractable text")

// ExtractPDFText concatenates the text fragments of every page. Unreadable uploads are
// reported as ErrValidation; the parser panics on some malformed files, so panics are too.
func ExtractPDFText(content []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: unreadable pdf: %v", ErrValidation, recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", ErrValidation, err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			b.WriteString(fragment.S)
			b.WriteString(" ")
		}
		b.WriteString("\n")
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrNoPDFText
	}
	return out, nil
}
