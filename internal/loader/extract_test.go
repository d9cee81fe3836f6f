package loader

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/hyperjump/pdfqa/internal/testutil"
	"github.com/xuri/excelize/v2"
)

func TestExtractPagesBytes_plain(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		ext     string
		want    string
	}{
		{"text", []byte("Hello world\nLine 2"), ".txt", "Hello world\nLine 2"},
		{"utf8", []byte("caf\xc3\xa9"), ".md", "café"},
		{"invalid utf8", []byte("hello\x80world"), ".txt", "hello�world"},
		{"unknown extension", []byte("raw content"), ".xyz", "raw content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractPagesBytes(tt.content, tt.ext)
			if err != nil {
				t.Fatalf("ExtractPagesBytes: %v", err)
			}
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("got %q, want [%q]", got, tt.want)
			}
		})
	}
}

func TestExtractPagesBytes_pdf(t *testing.T) {
	pages, err := ExtractPagesBytes(testutil.MinimalPDF("alpha", "beta", "gamma"), ".pdf")
	if err != nil {
		t.Fatalf("ExtractPagesBytes: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}
	for i, want := range []string{"alpha", "beta", "gamma"} {
		if !strings.Contains(pages[i], want) {
			t.Errorf("page %d = %q, want to contain %q", i, pages[i], want)
		}
	}
}

func TestExtractPagesBytes_pdfInvalid(t *testing.T) {
	if _, err := ExtractPagesBytes([]byte("%PDF-1.4 garbage"), ".pdf"); err == nil {
		t.Error("expected error for invalid pdf")
	}
}

func TestExtractPagesBytes_excelSheets(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	if _, err := f.NewSheet("Second"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Second", "A1", "Other sheet")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	pages, err := ExtractPagesBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractPagesBytes: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	if pages[0] != "Title\nValue 1\tValue 2" {
		t.Errorf("sheet 1 = %q", pages[0])
	}
	if pages[1] != "Other sheet" {
		t.Errorf("sheet 2 = %q", pages[1])
	}
}

func minimalDocx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document><w:body><w:p w:rsidR="00A1"><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func TestExtractPagesBytes_docx(t *testing.T) {
	pages, err := ExtractPagesBytes(minimalDocx("Indemnity clause"), ".docx")
	if err != nil {
		t.Fatalf("ExtractPagesBytes: %v", err)
	}
	if len(pages) != 1 || pages[0] != "Indemnity clause" {
		t.Errorf("got %q", pages)
	}
}

func TestExtractPagesBytes_docxContentTypes(t *testing.T) {
	tests := []struct {
		name     string
		override string
	}{
		{"part name first", `<Override PartName="/word/document2.xml" ContentType="` + docxMainContentType + `"/>`},
		{"content type first", `<Override ContentType="` + docxMainContentType + `" PartName="/word/document2.xml"/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := zip.NewWriter(&buf)
			ct, _ := w.Create(contentTypesPath)
			_, _ = ct.Write([]byte(`<Types>` + tt.override + `</Types>`))
			fw, _ := w.Create("word/document2.xml")
			_, _ = fw.Write([]byte(`<w:document><w:body><w:p><w:r><w:t>From part two</w:t></w:r></w:p></w:body></w:document>`))
			_ = w.Close()

			pages, err := ExtractPagesBytes(buf.Bytes(), ".docx")
			if err != nil {
				t.Fatalf("ExtractPagesBytes: %v", err)
			}
			if pages[0] != "From part two" {
				t.Errorf("got %q", pages[0])
			}
		})
	}
}

func TestExtractPagesBytes_docxErrors(t *testing.T) {
	if _, err := ExtractPagesBytes([]byte("not a zip"), ".docx"); err == nil {
		t.Error("expected error for non-zip docx")
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, _ = w.Create("other.xml")
	_ = w.Close()
	if _, err := ExtractPagesBytes(buf.Bytes(), ".docx"); err == nil {
		t.Error("expected error when body part is missing")
	}
}

func TestExtractPagesBytes_pptxSlideOrder(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	// Written out of order; slide10 must sort after slide2.
	for _, s := range []struct{ name, text string }{
		{"ppt/slides/slide10.xml", "Tenth"},
		{"ppt/slides/slide1.xml", "First"},
		{"ppt/slides/slide2.xml", "Second"},
		{"ppt/slides/_rels/slide1.xml.rels", "ignored"},
	} {
		fw, _ := w.Create(s.name)
		_, _ = fw.Write([]byte(`<p:sld><a:p><a:r><a:t>` + s.text + `</a:t></a:r></a:p></p:sld>`))
	}
	_ = w.Close()

	pages, err := ExtractPagesBytes(buf.Bytes(), ".pptx")
	if err != nil {
		t.Fatalf("ExtractPagesBytes: %v", err)
	}
	want := []string{"First", "Second", "Tenth"}
	if len(pages) != len(want) {
		t.Fatalf("got %q, want %q", pages, want)
	}
	for i := range want {
		if pages[i] != want[i] {
			t.Errorf("slide %d = %q, want %q", i, pages[i], want[i])
		}
	}
}
