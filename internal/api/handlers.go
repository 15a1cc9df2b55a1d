package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/receipt-analyzer/internal/analytics"
	"github.com/zombor/receipt-analyzer/internal/export"
	"github.com/zombor/receipt-analyzer/internal/extract"
	"github.com/zombor/receipt-analyzer/internal/query"
	"github.com/zombor/receipt-analyzer/internal/receipt"
)

// maxUploadSize covers high-resolution phone photos
const maxUploadSize = int64(50 << 20)

const tooLargeMessage = "File is too large. Maximum size is 50MB. Please compress or resize your image."

// uploadResponse is returned after a successful upload
type uploadResponse struct {
	Filename string           `json:"filename"`
	Status   string           `json:"status"`
	Parsed   extract.Fields   `json:"parsed"`
	Receipt  *receipt.Receipt `json:"receipt"`
}

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// receiptID parses the {id} path value
func receiptID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// parseRange reads date_from, date_to, amount_min and amount_max from the query string
func parseRange(r *http.Request) (query.Range, error) {
	var rng query.Range
	params := r.URL.Query()

	var err error
	if v := params.Get("date_from"); v != "" {
		if rng.DateFrom, err = time.Parse(time.DateOnly, v); err != nil {
			return rng, errors.New("date_from must be YYYY-MM-DD")
		}
	}
	if v := params.Get("date_to"); v != "" {
		if rng.DateTo, err = time.Parse(time.DateOnly, v); err != nil {
			return rng, errors.New("date_to must be YYYY-MM-DD")
		}
	}
	if v := params.Get("amount_min"); v != "" {
		if rng.AmountMin, err = strconv.ParseFloat(v, 64); err != nil {
			return rng, errors.New("amount_min must be a number")
		}
	}
	if v := params.Get("amount_max"); v != "" {
		if rng.AmountMax, err = strconv.ParseFloat(v, 64); err != nil {
			return rng, errors.New("amount_max must be a number")
		}
	}
	return rng, nil
}

// filteredReceipts applies the q, range, sort and order query parameters to a fresh snapshot.
// Without a sort parameter receipts stay in insertion order.
func (s *Server) filteredReceipts(w http.ResponseWriter, r *http.Request) ([]*receipt.Receipt, bool) {
	rng, err := parseRange(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}

	params := r.URL.Query()
	receipts = query.Search(receipts, params.Get("q"))
	if !rng.IsZero() {
		receipts = query.FilterRange(receipts, rng)
	}

	if sortField := params.Get("sort"); sortField != "" {
		receipts, err = sortReceipts(receipts, sortField, params.Get("order"))
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return nil, false
		}
	}

	return receipts, true
}

func sortReceipts(receipts []*receipt.Receipt, fieldName, orderName string) ([]*receipt.Receipt, error) {
	field, err := query.ParseField(fieldName)
	if err != nil {
		return nil, err
	}
	order, err := query.ParseOrder(orderName)
	if err != nil {
		return nil, err
	}
	return query.SortBy(receipts, field, order)
}

// handleHealth reports liveness without authentication
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok")
}

// handleListReceipts returns receipts, optionally searched, filtered and sorted
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, ok := s.filteredReceipts(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleSearchReceipts returns receipts containing the q keyword
func (s *Server) handleSearchReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, query.Search(receipts, r.URL.Query().Get("q")))
}

// handleSortReceipts returns every receipt ordered by field, defaulting to amount descending
func (s *Server) handleSortReceipts(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	if field == "" {
		field = string(query.FieldAmount)
	}

	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	sorted, err := sortReceipts(receipts, field, r.URL.Query().Get("order"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, sorted)
}

// handleExportReceipts streams the filtered listing as a file download
func (s *Server) handleExportReceipts(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	receipts, ok := s.filteredReceipts(w, r)
	if !ok {
		return
	}

	// Render fully before writing headers so a failure still gets a clean 500
	var buf bytes.Buffer
	if err := export.Write(&buf, format, receipts); err != nil {
		slog.Error("Error exporting receipts", "format", format, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.Filename()))
	w.Write(buf.Bytes())
}

// handleUploadReceipt handles receipt upload
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = tooLargeMessage
		}
		writeError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > s.maxUploadSize {
		writeError(w, tooLargeMessage, http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromExt(header.Filename)
	}

	result, err := s.service.ProcessUpload(r.Context(), header.Filename, data, contentType)
	switch {
	case errors.Is(err, receipt.ErrUnsupportedContentType):
		writeError(w, "Unsupported file type. Upload a JPEG, PNG, HEIC, PDF or text file.", http.StatusBadRequest)
		return
	case errors.Is(err, receipt.ErrDuplicateFilename), errors.Is(err, receipt.ErrDuplicateContent):
		writeError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		writeError(w, "Error processing receipt", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Filename: header.Filename,
		Status:   "uploaded",
		Parsed:   result.Extraction.Fields,
		Receipt:  result.Receipt,
	})
}

// contentTypeFromExt guesses a MIME type when the client sent none
func contentTypeFromExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := receiptID(r)
	if err != nil {
		writeError(w, "Receipt ID must be an integer", http.StatusBadRequest)
		return
	}

	rec, err := s.service.GetReceipt(id)
	if errors.Is(err, receipt.ErrNotFound) {
		writeError(w, "Receipt not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error getting receipt", "id", id, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// handleUpdateReceipt replaces the editable fields of a receipt
func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := receiptID(r)
	if err != nil {
		writeError(w, "Receipt ID must be an integer", http.StatusBadRequest)
		return
	}

	var edit receipt.Edit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := s.service.UpdateReceipt(id, edit)
	if errors.Is(err, receipt.ErrNotFound) {
		writeError(w, "Receipt not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error updating receipt", "id", id, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	slog.Info("Updated receipt", "id", id)
	writeJSON(w, http.StatusOK, rec)
}

// handleGetReceiptFile returns the original upload for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	id, err := receiptID(r)
	if err != nil {
		writeError(w, "Receipt ID must be an integer", http.StatusBadRequest)
		return
	}

	data, contentType, err := s.service.GetReceiptFile(r.Context(), id)
	if errors.Is(err, receipt.ErrNotFound) || errors.Is(err, receipt.ErrFileNotFound) {
		writeError(w, "File not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error getting receipt file", "id", id, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleStats returns aggregate statistics over every receipt
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, analytics.ComputeStats(receipts))
}

// handleMonthlyTrend returns summed spend per month
func (s *Server) handleMonthlyTrend(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, analytics.MonthlyTrend(receipts))
}
