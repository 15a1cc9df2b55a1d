// Package query implements keyword search, ordering and range filtering over receipt snapshots.
package query

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/zombor/receipt-analyzer/internal/receipt"
)

var (
	// ErrUnknownField is returned for a sort field outside the supported set
	ErrUnknownField = errors.New("unknown sort field")
	// ErrUnknownOrder is returned for an order other than asc or desc
	ErrUnknownOrder = errors.New("unknown sort order")
)

// Field names a sortable receipt attribute
type Field string

const (
	FieldID       Field = "id"
	FieldVendor   Field = "vendor"
	FieldDate     Field = "date"
	FieldAmount   Field = "amount"
	FieldCategory Field = "category"
	FieldFilename Field = "filename"
)

// Order is the direction of a sort
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// comparators maps each sortable field to a typed three-way comparison
var comparators = map[Field]func(a, b *receipt.Receipt) int{
	FieldID:       func(a, b *receipt.Receipt) int { return cmp.Compare(a.ID, b.ID) },
	FieldVendor:   func(a, b *receipt.Receipt) int { return strings.Compare(a.Vendor, b.Vendor) },
	FieldDate:     func(a, b *receipt.Receipt) int { return strings.Compare(a.Date, b.Date) },
	FieldAmount:   func(a, b *receipt.Receipt) int { return cmp.Compare(a.Amount, b.Amount) },
	FieldCategory: compareCategory,
	FieldFilename: func(a, b *receipt.Receipt) int { return strings.Compare(a.Filename, b.Filename) },
}

// compareCategory orders a missing category after every present one
func compareCategory(a, b *receipt.Receipt) int {
	switch {
	case a.Category == nil && b.Category == nil:
		return 0
	case a.Category == nil:
		return 1
	case b.Category == nil:
		return -1
	default:
		return strings.Compare(*a.Category, *b.Category)
	}
}

// ParseField validates a sort field name
func ParseField(name string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := comparators[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f, nil
}

// ParseOrder validates a sort order; empty means descending
func ParseOrder(name string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(name))) {
	case "", Desc:
		return Desc, nil
	case Asc:
		return Asc, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOrder, name)
	}
}

// Search returns the receipts whose rendered fields contain keyword, ignoring case.
// Input order is kept and an empty keyword matches everything.
func Search(records []*receipt.Receipt, keyword string) []*receipt.Receipt {
	needle := strings.ToLower(keyword)
	results := make([]*receipt.Receipt, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.String()), needle) {
			results = append(results, r)
		}
	}
	return results
}

// SortBy orders receipts by field. Equal keys fall back to ID so the order is total
// and Desc is always the exact reverse of Asc.
func SortBy(records []*receipt.Receipt, field Field, order Order) ([]*receipt.Receipt, error) {
	compare, ok := comparators[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if order != Asc && order != Desc {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOrder, order)
	}

	byKey := func(a, b *receipt.Receipt) int {
		if c := compare(a, b); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}

	sorted := pivotSort(records, byKey)
	if order == Desc {
		slices.Reverse(sorted)
	}
	return sorted, nil
}

// pivotSort takes the first element as pivot, sends keys <= pivot left and keys > pivot
// right, and concatenates left + pivot + right. The input slice is not modified.
func pivotSort(records []*receipt.Receipt, compare func(a, b *receipt.Receipt) int) []*receipt.Receipt {
	if len(records) <= 1 {
		return slices.Clone(records)
	}

	pivot := records[0]
	var left, right []*receipt.Receipt
	for _, r := range records[1:] {
		if compare(r, pivot) <= 0 {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	sorted := make([]*receipt.Receipt, 0, len(records))
	sorted = append(sorted, pivotSort(left, compare)...)
	sorted = append(sorted, pivot)
	sorted = append(sorted, pivotSort(right, compare)...)
	return sorted
}

// Range bounds a listing by inclusive date and amount limits. Zero values mean unbounded.
type Range struct {
	DateFrom  time.Time
	DateTo    time.Time
	AmountMin float64
	AmountMax float64
}

// IsZero reports whether the range filters nothing
func (r Range) IsZero() bool {
	return r.DateFrom.IsZero() && r.DateTo.IsZero() && r.AmountMin == 0 && r.AmountMax == 0
}

// FilterRange keeps receipts inside the range. When a date bound is set, receipts whose
// date does not parse are dropped.
func FilterRange(records []*receipt.Receipt, rng Range) []*receipt.Receipt {
	results := make([]*receipt.Receipt, 0, len(records))
	for _, r := range records {
		if !rng.DateFrom.IsZero() || !rng.DateTo.IsZero() {
			date, err := time.Parse(time.DateOnly, r.Date)
			if err != nil {
				continue
			}
			if !rng.DateFrom.IsZero() && date.Before(rng.DateFrom) {
				continue
			}
			if !rng.DateTo.IsZero() && date.After(rng.DateTo) {
				continue
			}
		}
		if rng.AmountMin != 0 && r.Amount < rng.AmountMin {
			continue
		}
		if rng.AmountMax > 0 && r.Amount > rng.AmountMax {
			continue
		}
		results = append(results, r)
	}
	return results
}
