package receipt

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/receipt-analyzer/internal/extract"
)

// Receipt represents one ingested document and the fields extracted from it
type Receipt struct {
	ID          int64     `json:"id" db:"id"`
	Vendor      string    `json:"vendor" db:"vendor"`
	Date        string    `json:"date" db:"date"` // YYYY-MM-DD, not calendar-validated
	Amount      float64   `json:"amount" db:"amount"`
	Category    *string   `json:"category" db:"category"`
	Filename    string    `json:"filename" db:"filename"` // original upload name, unique
	StoredPath  string    `json:"stored_path,omitempty" db:"stored_path"`
	ContentType string    `json:"content_type,omitempty" db:"content_type"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Edit is the set of fields a user may correct after ingestion
type Edit struct {
	Vendor   string  `json:"vendor"`
	Date     string  `json:"date"`
	Amount   float64 `json:"amount"`
	Category *string `json:"category"`
}

// Fields returns the extracted portion of the receipt
func (r *Receipt) Fields() extract.Fields {
	return extract.Fields{
		Vendor:   r.Vendor,
		Date:     r.Date,
		Amount:   r.Amount,
		Category: r.Category,
	}
}

// NeedsReview reports whether the receipt holds sentinel values from a failed extraction
func (r *Receipt) NeedsReview() bool {
	return r.Fields().NeedsReview()
}

// String joins the user-visible field values with spaces; keyword search matches against it
func (r *Receipt) String() string {
	category := ""
	if r.Category != nil {
		category = *r.Category
	}
	return strings.Join([]string{
		strconv.FormatInt(r.ID, 10),
		r.Vendor,
		r.Date,
		strconv.FormatFloat(r.Amount, 'f', -1, 64),
		category,
		r.Filename,
	}, " ")
}

// MarshalJSON adds the needs_review flag so sentinel records are never rendered unmarked
func (r *Receipt) MarshalJSON() ([]byte, error) {
	type plain Receipt
	return json.Marshal(struct {
		*plain
		NeedsReview bool `json:"needs_review"`
	}{
		plain:       (*plain)(r),
		NeedsReview: r.NeedsReview(),
	})
}

// apply copies an edit onto the receipt; an empty category clears it
func (r *Receipt) apply(e Edit, now time.Time) {
	r.Vendor = e.Vendor
	r.Date = e.Date
	r.Amount = e.Amount
	r.Category = nil
	if e.Category != nil && *e.Category != "" {
		category := *e.Category
		r.Category = &category
	}
	r.UpdatedAt = now
}
