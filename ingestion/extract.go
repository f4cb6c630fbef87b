package ingestion

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/fabfab/quizrag/apperr"
	"github.com/fabfab/quizrag/logger"
)

// Extractor recovers plain text from one document format.
type Extractor interface {
	Extract(ctx context.Context, doc UploadedDocument) (string, error)
}

// TextExtractor dispatches an upload to the extractor for its declared type.
type TextExtractor struct {
	allowed    map[DocumentType]bool
	extractors map[DocumentType]Extractor
	logger     *logger.Logger
}

// NewTextExtractor builds an extractor accepting the listed extensions. Binary
// formats are staged in scratchDir while they are parsed, so scratchDir may be
// empty only when every allowed format is text.
func NewTextExtractor(scratchDir string, allowedExtensions []string, log *logger.Logger) (*TextExtractor, error) {
	const op = "new text extractor"

	allowed := make(map[DocumentType]bool, len(allowedExtensions))
	staged := false
	for _, ext := range allowedExtensions {
		docType := typeForExtension(ext)
		if docType == TypeUnknown {
			return nil, apperr.Newf(apperr.ErrConfiguration, op, "no extractor for extension %q", ext)
		}
		allowed[docType] = true
		staged = staged || docType.Binary()
	}
	if len(allowed) == 0 {
		return nil, apperr.Newf(apperr.ErrConfiguration, op, "at least one extension must be allowed")
	}
	if staged && strings.TrimSpace(scratchDir) == "" {
		return nil, apperr.Newf(apperr.ErrConfiguration, op, "scratch directory is required for binary formats")
	}

	return &TextExtractor{
		allowed: allowed,
		extractors: map[DocumentType]Extractor{
			TypeText: plainTextExtractor{},
			TypeCSV:  csvExtractor{},
			TypeDOCX: docxExtractor{scratchDir: scratchDir},
			TypePDF:  pdfExtractor{scratchDir: scratchDir},
		},
		logger: logger.OrNop(log),
	}, nil
}

// Resolve maps a filename to an allowed document type, failing with
// ErrUnsupportedType otherwise.
func (e *TextExtractor) Resolve(filename string) (DocumentType, error) {
	docType := DetectType(filename)
	if docType == TypeUnknown || !e.allowed[docType] {
		return TypeUnknown, apperr.Newf(apperr.ErrUnsupportedType, "resolve document type", "%q", filename)
	}
	return docType, nil
}

// Extract recovers the text of doc. Unsupported extensions are rejected before
// anything touches the disk.
func (e *TextExtractor) Extract(ctx context.Context, doc UploadedDocument) (ExtractedText, error) {
	const op = "extract text"

	docType, err := e.Resolve(doc.Filename)
	if err != nil {
		return ExtractedText{}, err
	}
	if err := ctx.Err(); err != nil {
		return ExtractedText{}, apperr.Classify(apperr.ErrExtraction, op, err)
	}

	text, err := e.extractors[docType].Extract(ctx, doc)
	if err != nil {
		e.logger.Warn("extraction failed", "source", doc.Filename, "type", string(docType), "error", err)
		return ExtractedText{}, apperr.Classify(apperr.ErrExtraction, op, err)
	}

	e.logger.Debug("extracted text", "source", doc.Filename, "type", string(docType), "chars", utf8.RuneCountInString(text))
	return ExtractedText{Source: doc.Filename, Text: text}, nil
}

type plainTextExtractor struct{}

func (plainTextExtractor) Extract(_ context.Context, doc UploadedDocument) (string, error) {
	return decodeUTF8(doc.Data)
}

type csvExtractor struct{}

// Extract flattens every cell, header included, into one space separated
// string.
func (csvExtractor) Extract(_ context.Context, doc UploadedDocument) (string, error) {
	text, err := decodeUTF8(doc.Data)
	if err != nil {
		return "", err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1

	var cells []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read csv: %w", err)
		}
		for _, cell := range record {
			if cell = strings.TrimSpace(cell); cell != "" {
				cells = append(cells, cell)
			}
		}
	}

	return strings.Join(cells, " "), nil
}

type docxExtractor struct {
	scratchDir string
}

// Extract joins the text of every non-empty paragraph with single spaces.
func (x docxExtractor) Extract(_ context.Context, doc UploadedDocument) (string, error) {
	var paragraphs []string
	err := withTempFile(x.scratchDir, "upload-*"+TypeDOCX.Extension(), doc.Data, func(path string) error {
		zr, err := zip.OpenReader(path)
		if err != nil {
			return fmt.Errorf("open docx archive: %w", err)
		}
		defer zr.Close()

		for _, f := range zr.File {
			if f.Name != "word/document.xml" {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("open document.xml: %w", err)
			}
			defer rc.Close()

			paragraphs, err = docxParagraphs(rc)
			return err
		}
		return errors.New("docx archive has no word/document.xml")
	})
	if err != nil {
		return "", err
	}

	return strings.Join(paragraphs, " "), nil
}

// docxParagraphs returns paragraph texts in reading order. A paragraph nested
// in a text box splits its parent, so the parent's text before and after the
// box is kept as separate entries. mc:Fallback repeats the mc:Choice content
// and is skipped.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
		skipDepth  int
	)

	flush := func() {
		if para := strings.TrimSpace(current.String()); para != "" {
			paragraphs = append(paragraphs, para)
		}
		current.Reset()
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if skipDepth > 0 || t.Name.Local == "Fallback" {
				skipDepth++
				continue
			}
			switch t.Name.Local {
			case "p":
				flush()
			case "t":
				inText = true
			case "tab":
				current.WriteString("\t")
			case "br", "cr":
				current.WriteString("\n")
			}
		case xml.EndElement:
			if skipDepth > 0 {
				skipDepth--
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText && skipDepth == 0 {
				current.Write(t)
			}
		}
	}
	flush()

	return paragraphs, nil
}

type pdfExtractor struct {
	scratchDir string
}

// Extract concatenates the text of every page, one page per line.
func (x pdfExtractor) Extract(ctx context.Context, doc UploadedDocument) (string, error) {
	var text string
	err := withTempFile(x.scratchDir, "upload-*"+TypePDF.Extension(), doc.Data, func(path string) error {
		var err error
		text, err = readPDF(ctx, path)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func readPDF(ctx context.Context, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if f != nil {
		defer f.Close()
	}
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var buf strings.Builder
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		buf.WriteString(content)
		buf.WriteString("\n")
	}

	return buf.String(), nil
}

func decodeUTF8(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", errors.New("content is not valid UTF-8")
	}
	return string(data), nil
}
