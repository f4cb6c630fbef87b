package ingestion

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/quizrag/apperr"
)

var allExtensions = []string{".txt", ".csv", ".docx", ".pdf"}

func newTestExtractor(t *testing.T, allowed ...string) (*TextExtractor, string) {
	t.Helper()
	if len(allowed) == 0 {
		allowed = allExtensions
	}
	scratch := filepath.Join(t.TempDir(), "documents")
	extractor, err := NewTextExtractor(scratch, allowed, nil)
	require.NoError(t, err)
	return extractor, scratch
}

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	return buildDocxBody(t, body.String())
}

func buildDocxBody(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
		` xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// buildPDF writes a single page PDF with a correct cross-reference table.
func buildPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files left behind")
}

func TestNewTextExtractorRejectsUnknownExtension(t *testing.T) {
	_, err := NewTextExtractor(t.TempDir(), []string{".txt", ".exe"}, nil)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestNewTextExtractorScratchOnlyNeededForBinaryFormats(t *testing.T) {
	extractor, err := NewTextExtractor("", []string{".txt", ".csv"}, nil)
	require.NoError(t, err)
	got, err := extractor.Extract(context.Background(), UploadedDocument{Filename: "a.txt", Data: []byte("plain")})
	require.NoError(t, err)
	assert.Equal(t, "plain", got.Text)

	for _, ext := range []string{".docx", ".pdf"} {
		_, err = NewTextExtractor(" ", []string{".txt", ext}, nil)
		assert.ErrorIs(t, err, apperr.ErrConfiguration, ext)
	}
}

func TestExtractSupportedFormats(t *testing.T) {
	cases := []struct {
		name     string
		doc      UploadedDocument
		contains []string
	}{
		{
			name:     "text",
			doc:      UploadedDocument{Filename: "notes.txt", Data: []byte("\xef\xbb\xbfThe capital of France is Paris.")},
			contains: []string{"The capital of France is Paris."},
		},
		{
			name:     "csv",
			doc:      UploadedDocument{Filename: "cities.CSV", Data: []byte("country,capital\nFrance,Paris\nItaly,Rome,extra\n")},
			contains: []string{"country capital France Paris Italy Rome extra"},
		},
		{
			name:     "docx",
			doc:      UploadedDocument{Filename: "report.docx", Data: buildDocx(t, "First paragraph.", "", "Second paragraph.")},
			contains: []string{"First paragraph. Second paragraph."},
		},
		{
			name:     "pdf",
			doc:      UploadedDocument{Filename: "paper.pdf", Data: buildPDF("Hello PDF")},
			contains: []string{"Hello PDF"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			extractor, scratch := newTestExtractor(t)

			got, err := extractor.Extract(context.Background(), tc.doc)
			require.NoError(t, err)
			assert.Equal(t, tc.doc.Filename, got.Source)
			assert.NotEmpty(t, strings.TrimSpace(got.Text))
			for _, want := range tc.contains {
				assert.Contains(t, got.Text, want)
			}
			assertScratchEmpty(t, scratch)
		})
	}
}

func TestExtractRejectsUnsupportedTypeWithoutSideEffects(t *testing.T) {
	extractor, scratch := newTestExtractor(t, ".txt")

	for _, name := range []string{"slides.pptx", "report.pdf", "README"} {
		_, err := extractor.Extract(context.Background(), UploadedDocument{Filename: name, Data: []byte("data")})
		assert.ErrorIs(t, err, apperr.ErrUnsupportedType, name)
	}
	assert.NoDirExists(t, scratch)
}

func TestExtractMalformedDocuments(t *testing.T) {
	cases := []UploadedDocument{
		{Filename: "broken.pdf", Data: []byte("%PDF-1.4 not really a pdf")},
		{Filename: "broken.docx", Data: []byte("PK not a zip archive")},
		{Filename: "latin1.txt", Data: []byte{0x66, 0x6f, 0xe9, 0x0a}},
		{Filename: "quotes.csv", Data: []byte("a,\"unterminated\nb,c\n")},
	}

	for _, doc := range cases {
		t.Run(doc.Filename, func(t *testing.T) {
			extractor, scratch := newTestExtractor(t)

			_, err := extractor.Extract(context.Background(), doc)
			assert.ErrorIs(t, err, apperr.ErrExtraction)
			assertScratchEmpty(t, scratch)
		})
	}
}

func TestExtractDocxTextBoxKeepsSurroundingText(t *testing.T) {
	body := `<w:p><w:r><w:t>Before box.</w:t></w:r>` +
		`<w:r><w:pict><w:txbxContent><w:p><w:r><w:t>Inside box.</w:t></w:r></w:p></w:txbxContent></w:pict></w:r>` +
		`<w:r><w:t>After box.</w:t></w:r></w:p>` +
		`<w:p><w:r><mc:AlternateContent>` +
		`<mc:Choice><w:txbxContent><w:p><w:r><w:t>Shape text.</w:t></w:r></w:p></w:txbxContent></mc:Choice>` +
		`<mc:Fallback><w:pict><w:txbxContent><w:p><w:r><w:t>Shape text.</w:t></w:r></w:p></w:txbxContent></w:pict></mc:Fallback>` +
		`</mc:AlternateContent></w:r></w:p>`

	extractor, scratch := newTestExtractor(t)
	got, err := extractor.Extract(context.Background(), UploadedDocument{Filename: "boxes.docx", Data: buildDocxBody(t, body)})
	require.NoError(t, err)
	assert.Equal(t, "Before box. Inside box. After box. Shape text.", got.Text)
	assertScratchEmpty(t, scratch)
}

func TestExtractDocxWithoutDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	extractor, scratch := newTestExtractor(t)
	_, err = extractor.Extract(context.Background(), UploadedDocument{Filename: "empty.docx", Data: buf.Bytes()})
	assert.ErrorIs(t, err, apperr.ErrExtraction)
	assertScratchEmpty(t, scratch)
}

func TestServicePrepare(t *testing.T) {
	extractor, _ := newTestExtractor(t)
	splitter, err := NewSplitter(1000, 100)
	require.NoError(t, err)
	svc := NewService(extractor, splitter, nil)

	chunks, err := svc.Prepare(context.Background(), UploadedDocument{Filename: "paris.txt", Data: []byte("The capital of France is Paris.")})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "paris.txt", chunks[0].Source)

	_, err = svc.Prepare(context.Background(), UploadedDocument{Filename: "blank.txt", Data: []byte(" \n\t ")})
	assert.ErrorIs(t, err, apperr.ErrExtraction)

	_, err = svc.Resolve("archive.zip")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedType)
}
