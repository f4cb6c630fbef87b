// Package ingestion turns uploaded documents into plain text and splits that
// text into overlapping chunks ready for embedding.
package ingestion

import (
	"path/filepath"
	"strings"
)

// DocumentType enumerates the upload formats the extractor understands.
type DocumentType string

const (
	// TypeUnknown represents an unsupported or undetected format.
	TypeUnknown DocumentType = ""
	// TypeText represents UTF-8 plain text.
	TypeText DocumentType = "text"
	// TypeCSV represents comma separated values.
	TypeCSV DocumentType = "csv"
	// TypeDOCX represents Office Open XML word-processor documents.
	TypeDOCX DocumentType = "docx"
	// TypePDF represents PDF documents.
	TypePDF DocumentType = "pdf"
)

// DetectType infers a document type from the filename's extension.
func DetectType(filename string) DocumentType {
	return typeForExtension(filepath.Ext(filename))
}

func typeForExtension(ext string) DocumentType {
	switch strings.ToLower(strings.TrimSpace(ext)) {
	case ".txt":
		return TypeText
	case ".csv":
		return TypeCSV
	case ".docx":
		return TypeDOCX
	case ".pdf":
		return TypePDF
	default:
		return TypeUnknown
	}
}

// Binary reports whether extraction goes through a temporary file on disk.
func (t DocumentType) Binary() bool {
	return t == TypeDOCX || t == TypePDF
}

// Extension returns the canonical file extension for t.
func (t DocumentType) Extension() string {
	switch t {
	case TypeText:
		return ".txt"
	case TypeCSV:
		return ".csv"
	case TypeDOCX:
		return ".docx"
	case TypePDF:
		return ".pdf"
	default:
		return ""
	}
}

// UploadedDocument is the raw upload handed to the pipeline. It lives only for
// the duration of one ingest call.
type UploadedDocument struct {
	Filename string
	Data     []byte
}

// ExtractedText is the plain text recovered from one upload.
type ExtractedText struct {
	Source string
	Text   string
}
