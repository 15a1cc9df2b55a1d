package scanning

import (
	"context"
	"strings"
	"unicode/utf8"
)

// Router reads plain text uploads directly and sends images and PDFs to an OCR engine
type Router struct {
	engine Recognizer
}

// NewRouter creates a Router; engine may be nil when only text uploads are expected
func NewRouter(engine Recognizer) *Router {
	return &Router{engine: engine}
}

// Recognize implements Recognizer
func (r *Router) Recognize(ctx context.Context, data []byte, contentType string) (string, error) {
	if isPlainText(contentType) {
		return decodeText(data), nil
	}
	if r.engine == nil {
		return "", ErrNoEngine
	}
	return r.engine.Recognize(ctx, data, contentType)
}

// Close closes the OCR engine
func (r *Router) Close() error {
	if r.engine == nil {
		return nil
	}
	return r.engine.Close()
}

func isPlainText(contentType string) bool {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(mimeType, "text/plain")
}

// decodeText drops a UTF-8 byte order mark and replaces invalid sequences
func decodeText(data []byte) string {
	text := strings.TrimPrefix(string(data), "\ufeff")
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\ufffd")
	}
	return text
}
