package generation

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxExtractBytes caps the plain text read out of one document.
const maxExtractBytes = 2 << 20

// ExtractText returns the plain text of a PDF. A document without any
// extractable text yields ErrUnreadable.
func ExtractText(r io.ReaderAt, size int64) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrUnreadable, p)
		}
	}()

	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(plain, maxExtractBytes)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	text = strings.TrimSpace(buf.String())
	if text == "" {
		return "", ErrUnreadable
	}
	return text, nil
}
