package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

const (
	contentTypesPath    = "[Content_Types].xml"
	docxDefaultBodyPath = "word/document.xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePrefix     = "ppt/slides/slide"
)

var (
	wordText  = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	slideText = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	// Override elements list PartName and ContentType in either order.
	docxBodyPart = regexp.MustCompile(`<Override[^>]*(?:PartName="([^"]+)"[^>]*ContentType="` +
		regexp.QuoteMeta(docxMainContentType) + `"|ContentType="` +
		regexp.QuoteMeta(docxMainContentType) + `"[^>]*PartName="([^"]+)")`)
)

func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("docx is not a zip archive: %w", err)
	}
	bodyPath := docxDefaultBodyPath
	if ct, err := readPart(zr, contentTypesPath); err == nil {
		if m := docxBodyPart.FindSubmatch(ct); m != nil {
			name := string(m[1])
			if name == "" {
				name = string(m[2])
			}
			bodyPath = strings.TrimPrefix(name, "/")
		}
	}
	body, err := readPart(zr, bodyPath)
	if err != nil {
		return "", fmt.Errorf("docx body: %w", err)
	}
	return joinMatches(wordText, body), nil
}

func extractPPTX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("pptx is not a zip archive: %w", err)
	}
	var slides []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, pptxSlidePrefix) && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f.Name)
		}
	}
	// slide10 sorts after slide9.
	sort.Slice(slides, func(i, j int) bool {
		if len(slides[i]) != len(slides[j]) {
			return len(slides[i]) < len(slides[j])
		}
		return slides[i] < slides[j]
	})

	texts := make([]string, 0, len(slides))
	for _, name := range slides {
		xml, err := readPart(zr, name)
		if err != nil {
			return "", err
		}
		if t := joinMatches(slideText, xml); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n"), nil
}

func readPart(zr *zip.Reader, name string) ([]byte, error) {
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

func joinMatches(re *regexp.Regexp, xml []byte) string {
	var parts []string
	for _, m := range re.FindAllSubmatch(xml, -1) {
		if s := strings.TrimSpace(string(m[1])); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
