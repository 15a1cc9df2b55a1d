package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Sentinel values substituted when a field cannot be extracted
const (
	UnknownVendor     = "Unknown Vendor"
	UnknownDate       = "2023-01-01"
	UnsupportedVendor = "Unsupported file type"
)

var (
	vendorPattern = regexp.MustCompile(`(?i)Vendor[:\s]*([\p{L}\p{N}_ &]+)`)
	datePattern   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	amountPattern = regexp.MustCompile(`(?i)Amount[:\s]*([\d.]+)`)
)

// Status describes how a Result was produced
type Status int

const (
	// StatusExtracted means at least one field was read from the text
	StatusExtracted Status = iota
	// StatusFailed means nothing was recognized and every field is a sentinel
	StatusFailed
	// StatusUnsupported means the input kind was never handed to recognition
	StatusUnsupported
)

func (s Status) String() string {
	switch s {
	case StatusExtracted:
		return "extracted"
	case StatusFailed:
		return "failed"
	case StatusUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Fields holds the structured values pulled out of recognized text
type Fields struct {
	Vendor   string  `json:"vendor"`
	Date     string  `json:"date"`
	Amount   float64 `json:"amount"`
	Category *string `json:"category"`
}

// NeedsReview reports whether the fields look like a failed extraction
func (f Fields) NeedsReview() bool {
	if f.Vendor == UnsupportedVendor {
		return true
	}
	return f.Vendor == UnknownVendor && f.Amount == 0
}

// Result is the outcome of running the extractor over one document
type Result struct {
	Fields Fields
	Status Status
}

// Sentinel returns the record used when nothing could be extracted
func Sentinel() Fields {
	return Fields{
		Vendor: UnknownVendor,
		Date:   UnknownDate,
		Amount: 0,
	}
}

// Unsupported returns the result for an input kind the recognizer does not handle
func Unsupported() Result {
	return Result{
		Fields: Fields{Vendor: UnsupportedVendor, Date: "", Amount: 0},
		Status: StatusUnsupported,
	}
}

// Extract maps raw recognized text to structured fields.
// Each field is searched independently and only its first match is used;
// a missing or malformed field falls back to its sentinel.
func Extract(text string) Result {
	fields := Sentinel()
	matched := false

	if m := vendorPattern.FindStringSubmatch(text); m != nil {
		if vendor := strings.TrimSpace(m[1]); vendor != "" {
			fields.Vendor = vendor
			matched = true
		}
	}

	if m := datePattern.FindString(text); m != "" {
		fields.Date = m
		matched = true
	}

	if m := amountPattern.FindStringSubmatch(text); m != nil {
		if amount, err := strconv.ParseFloat(m[1], 64); err == nil {
			fields.Amount = amount
			matched = true
		}
	}

	if !matched {
		return Result{Fields: fields, Status: StatusFailed}
	}
	return Result{Fields: fields, Status: StatusExtracted}
}
