// Package extract turns stored document bytes into the plain text that gets chunked
// and keyword indexed. Office and PDF documents are parsed; everything else must
// already be UTF-8 text.
package extract

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

// ErrNotText is returned for content that is neither a supported document format
// nor valid UTF-8.
var ErrNotText = errors.New("content is not valid UTF-8 text")

type parser func(content []byte) (string, error)

var parsers = map[string]parser{
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".xlsx": extractExcel,
	".pptx": extractPPTX,
}

// IsDocument reports whether p names a binary document format this package can parse.
func IsDocument(p string) bool {
	_, ok := parsers[strings.ToLower(path.Ext(p))]
	return ok
}

// Text returns the text of content. The format is chosen from the extension of
// docPath, a repo-relative path.
func Text(docPath string, content []byte) (string, error) {
	ext := strings.ToLower(path.Ext(docPath))
	if parse, ok := parsers[ext]; ok {
		text, err := parse(content)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", docPath, err)
		}
		return text, nil
	}
	if !utf8.Valid(content) {
		return "", ErrNotText
	}
	return string(content), nil
}
