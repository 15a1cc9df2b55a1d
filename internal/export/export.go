// Package export renders receipt listings as downloadable CSV, JSON or XLSX files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/receipt-analyzer/internal/receipt"
)

// ErrUnknownFormat is returned for an export format other than csv, json or xlsx
var ErrUnknownFormat = errors.New("unknown export format")

// Format is an export file type
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	XLSX Format = "xlsx"
)

const sheetName = "Receipts"

var headers = []string{"id", "vendor", "date", "amount", "category", "filename", "needs_review"}

// ParseFormat validates a format name; empty means CSV
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return CSV, nil
	case CSV, JSON, XLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}

// Filename returns the download name for the format
func (f Format) Filename() string {
	return "receipts." + string(f)
}

// Write renders records to w in the given format
func Write(w io.Writer, f Format, records []*receipt.Receipt) error {
	switch f {
	case CSV:
		return writeCSV(w, records)
	case JSON:
		return writeJSON(w, records)
	case XLSX:
		return writeXLSX(w, records)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

func row(r *receipt.Receipt) []string {
	category := ""
	if r.Category != nil {
		category = *r.Category
	}
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Vendor,
		r.Date,
		strconv.FormatFloat(r.Amount, 'f', -1, 64),
		category,
		r.Filename,
		strconv.FormatBool(r.NeedsReview()),
	}
}

func writeCSV(w io.Writer, records []*receipt.Receipt) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return fmt.Errorf("writing csv row %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, records []*receipt.Receipt) error {
	if records == nil {
		records = []*receipt.Receipt{}
	}
	if err := json.NewEncoder(w).Encode(records); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

var columnWidths = []struct {
	col   string
	width float64
}{
	{"B", 28}, // vendor
	{"C", 12}, // date
	{"E", 18}, // category
	{"F", 40}, // filename
}

func writeXLSX(w io.Writer, records []*receipt.Receipt) error {
	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet rather than adding a second one
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, r := range records {
		line := i + 2
		values := []any{r.ID, r.Vendor, r.Date, r.Amount, "", r.Filename, r.NeedsReview()}
		if r.Category != nil {
			values[4] = *r.Category
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, line)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("writing row %d: %w", r.ID, err)
			}
		}
	}

	for _, c := range columnWidths {
		if err := f.SetColWidth(sheetName, c.col, c.col, c.width); err != nil {
			return fmt.Errorf("setting width of column %s: %w", c.col, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
