package scanning

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ErrNoEngine is returned when an image or PDF arrives but no OCR engine is configured
var ErrNoEngine = errors.New("no text recognition engine configured")

// Kind is the broad class of an uploaded document
type Kind int

const (
	KindUnsupported Kind = iota
	KindText
	KindImage
	KindPDF
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindPDF:
		return "pdf"
	default:
		return "unsupported"
	}
}

// KindFromFilename classifies a document by its extension
func KindFromFilename(filename string) Kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return KindText
	case ".jpg", ".jpeg", ".png", ".heic", ".heif":
		return KindImage
	case ".pdf":
		return KindPDF
	default:
		return KindUnsupported
	}
}

// Recognizer turns document bytes into raw recognized text
type Recognizer interface {
	// Recognize returns the text found in the document
	Recognize(ctx context.Context, data []byte, contentType string) (string, error)
	// Close releases any resources held by the recognizer
	Close() error
}
