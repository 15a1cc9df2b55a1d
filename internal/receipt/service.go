package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-analyzer/internal/extract"
	"github.com/zombor/receipt-analyzer/internal/scanning"
)

// ErrUnsupportedContentType is returned for uploads outside the accepted MIME types
var ErrUnsupportedContentType = errors.New("unsupported content type")

var allowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/heic":      true,
	"image/heif":      true,
	"application/pdf": true,
	"text/plain":      true,
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// IDGenerator generates unique keys for stored files
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// UploadResult is a stored receipt together with how its fields were obtained
type UploadResult struct {
	Receipt    *Receipt
	Extraction extract.Result
}

// Service runs the ingestion pipeline and the record operations on top of it
type Service struct {
	db          DB
	recognizer  scanning.Recognizer
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource

	// mu serializes duplicate checks with the insert that follows them
	mu sync.Mutex
}

// NewService creates a new Service with a UUID key generator and the wall clock
func NewService(db DB, recognizer scanning.Recognizer, storage Storage) *Service {
	return NewServiceWithDeps(db, recognizer, storage, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, recognizer scanning.Recognizer, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		recognizer:  recognizer,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaceRuns.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	// 50 chars for base, plus extension
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// normalizeContentType strips parameters such as charset
func normalizeContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// ProcessUpload stores a document, extracts its fields and inserts the receipt
// unless it duplicates an existing filename or (vendor, date, amount).
func (s *Service) ProcessUpload(ctx context.Context, filename string, data []byte, contentType string) (*UploadResult, error) {
	mediaType := normalizeContentType(contentType)
	if !allowedContentTypes[mediaType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timeSource.Now()
	candidate := &Receipt{
		Filename:    filename,
		ContentType: mediaType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	sameFilename, err := s.db.FindByFilename(filename)
	if err != nil {
		return nil, fmt.Errorf("checking filename: %w", err)
	}
	if err := Admit(candidate, sameFilename, nil); err != nil {
		return nil, err
	}

	storedPath, err := s.storage.Save(ctx, fmt.Sprintf("%s_%s", s.idGenerator.Generate(), sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}
	candidate.StoredPath = storedPath

	result := s.extract(ctx, filename, data, mediaType)
	candidate.Vendor = result.Fields.Vendor
	candidate.Date = result.Fields.Date
	candidate.Amount = result.Fields.Amount
	candidate.Category = result.Fields.Category

	sameContent, err := s.db.FindByContent(candidate.Vendor, candidate.Date, candidate.Amount)
	if err != nil {
		s.discard(ctx, storedPath)
		return nil, fmt.Errorf("checking content: %w", err)
	}
	if err := Admit(candidate, nil, sameContent); err != nil {
		s.discard(ctx, storedPath)
		return nil, err
	}

	if err := s.db.InsertReceipt(candidate); err != nil {
		s.discard(ctx, storedPath)
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	slog.Info("Stored receipt",
		"id", candidate.ID,
		"filename", filename,
		"status", result.Status.String(),
		"needs_review", candidate.NeedsReview(),
	)

	return &UploadResult{Receipt: candidate, Extraction: result}, nil
}

// extract recognizes the document text and pulls fields from it.
// Recognition failures yield sentinel fields so the upload is still stored for review.
func (s *Service) extract(ctx context.Context, filename string, data []byte, contentType string) extract.Result {
	kind := scanning.KindFromFilename(filename)
	if kind == scanning.KindUnsupported {
		slog.Warn("Unsupported file type", "filename", filename)
		return extract.Unsupported()
	}

	text, err := s.recognizer.Recognize(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to recognize receipt text",
			"filename", filename,
			"kind", kind.String(),
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		text = ""
	}

	result := extract.Extract(text)
	if result.Status == extract.StatusFailed {
		slog.Warn("No fields found in receipt", "filename", filename, "kind", kind.String())
	}
	return result
}

func (s *Service) discard(ctx context.Context, path string) {
	if err := s.storage.Delete(ctx, path); err != nil {
		slog.Warn("Failed to delete file", "path", path, "error", err)
	}
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id int64) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts in insertion order
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// UpdateReceipt replaces the editable fields of a stored receipt.
// Edits are user corrections and are not checked for duplicates.
func (s *Service) UpdateReceipt(id int64, edit Edit) (*Receipt, error) {
	now := s.timeSource.Now()
	receipt, err := s.db.UpdateReceipt(id, func(r *Receipt) {
		r.apply(edit, now)
	})
	if err != nil {
		return nil, fmt.Errorf("updating receipt: %w", err)
	}
	return receipt, nil
}

// GetReceiptFile retrieves the original upload for a receipt
func (s *Service) GetReceiptFile(ctx context.Context, id int64) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(ctx, receipt.StoredPath)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	return data, receipt.ContentType, nil
}

// Close releases the recognizer and the database
func (s *Service) Close() error {
	return errors.Join(s.recognizer.Close(), s.db.Close())
}
