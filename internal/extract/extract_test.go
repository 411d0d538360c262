package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func wordBody(text string) string {
	return `<w:document><w:body><w:p w:rsidR="00A1"><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p></w:body></w:document>`
}

func TestText_plain(t *testing.T) {
	got, err := Text("internal/app.go", []byte("package app\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "package app\n" {
		t.Errorf("got %q", got)
	}
}

func TestText_invalidUTF8(t *testing.T) {
	_, err := Text("docs/blob.txt", []byte("hello\x80world"))
	if !errors.Is(err, ErrNotText) {
		t.Errorf("err = %v, want ErrNotText", err)
	}
}

func TestText_docx(t *testing.T) {
	content := zipOf(t, map[string]string{"word/document.xml": wordBody("Release notes")})
	got, err := Text("docs/notes.DOCX", content)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Release notes" {
		t.Errorf("got %q", got)
	}
}

func TestText_docxBodyFromContentTypes(t *testing.T) {
	for name, override := range map[string]string{
		"part name first":    `<Override PartName="/word/document2.xml" ContentType="` + docxMainContentType + `"/>`,
		"content type first": `<Override ContentType="` + docxMainContentType + `" PartName="/word/document2.xml"/>`,
	} {
		t.Run(name, func(t *testing.T) {
			content := zipOf(t, map[string]string{
				contentTypesPath:     `<Types>` + override + `</Types>`,
				"word/document2.xml": wordBody("moved body"),
			})
			got, err := Text("docs/a.docx", content)
			if err != nil {
				t.Fatal(err)
			}
			if got != "moved body" {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestText_docxMissingBody(t *testing.T) {
	content := zipOf(t, map[string]string{"other.xml": "<x/>"})
	if _, err := Text("docs/a.docx", content); err == nil {
		t.Error("expected error")
	}
}

func TestText_pptxSlideOrder(t *testing.T) {
	slide := func(s string) string { return `<p:sld><a:t>` + s + `</a:t></p:sld>` }
	content := zipOf(t, map[string]string{
		"ppt/slides/slide10.xml": slide("ten"),
		"ppt/slides/slide2.xml":  slide("two"),
		"ppt/slides/slide1.xml":  slide("one"),
	})
	got, err := Text("docs/deck.pptx", content)
	if err != nil {
		t.Fatal(err)
	}
	if got != "one\ntwo\nten" {
		t.Errorf("got %q", got)
	}
}

func TestText_pptxNotZip(t *testing.T) {
	if _, err := Text("docs/deck.pptx", []byte("plain")); err == nil {
		t.Error("expected error")
	}
}

func TestText_xlsx(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetCellValue("Sheet1", "A1", "Name")
	_ = f.SetCellValue("Sheet1", "A2", "alpha")
	_ = f.SetCellValue("Sheet1", "B2", "beta")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	got, err := Text("docs/data.xlsx", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got != "Name\nalpha\tbeta" {
		t.Errorf("got %q", got)
	}
}

func TestText_pdfGarbage(t *testing.T) {
	if _, err := Text("docs/manual.pdf", []byte("not a pdf")); err == nil {
		t.Error("expected error")
	}
}

func TestIsDocument(t *testing.T) {
	cases := map[string]bool{
		"docs/a.pdf":  true,
		"docs/b.XLSX": true,
		"docs/c.pptx": true,
		"docs/d.docx": true,
		"main.go":     false,
		"README":      false,
	}
	for p, want := range cases {
		if got := IsDocument(p); got != want {
			t.Errorf("IsDocument(%q) = %v, want %v", p, got, want)
		}
	}
}
